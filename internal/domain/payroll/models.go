package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// RunTotals are exact sums of already-rounded line values. Nothing is
// re-rounded at this level, so the totals reconcile against the line list.
type RunTotals struct {
	GrossPay              decimal.Decimal `json:"grossPay"`
	NetPay                decimal.Decimal `json:"netPay"`
	EmployeeTaxes         decimal.Decimal `json:"employeeTaxes"`
	EmployeeDeductions    decimal.Decimal `json:"employeeDeductions"`
	EmployerTaxes         decimal.Decimal `json:"employerTaxes"`
	EmployerContributions decimal.Decimal `json:"employerContributions"`
	EmployeeCount         int             `json:"employeeCount"`
}

// Run is the aggregate root of the engine. Totals stay nil until the run
// has been calculated at least once and are replaced wholesale on every
// recalculation before approval.
type Run struct {
	ID                    string     `json:"id"`
	PeriodID              string     `json:"periodId"`
	RunType               string     `json:"runType"`
	RunNumber             int        `json:"runNumber"`
	Status                string     `json:"status"`
	Currency              string     `json:"currency"`
	Totals                *RunTotals `json:"totals,omitempty"`
	AnomalyCount          int        `json:"anomalyCount"`
	AnomaliesAcknowledged bool       `json:"anomaliesAcknowledged"`
	Notes                 string     `json:"notes,omitempty"`
	JournalEntryID        string     `json:"journalEntryId,omitempty"`
	CalculatedAt          *time.Time `json:"calculatedAt,omitempty"`
	CalculatedBy          string     `json:"calculatedBy,omitempty"`
	ApprovedAt            *time.Time `json:"approvedAt,omitempty"`
	ApprovedBy            string     `json:"approvedBy,omitempty"`
	PostedAt              *time.Time `json:"postedAt,omitempty"`
	PostedBy              string     `json:"postedBy,omitempty"`
	PaidAt                *time.Time `json:"paidAt,omitempty"`
	PaidBy                string     `json:"paidBy,omitempty"`
	VoidedAt              *time.Time `json:"voidedAt,omitempty"`
	VoidedBy              string     `json:"voidedBy,omitempty"`
	VoidReason            string     `json:"voidReason,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
}

// Earning is one computed earning component on a line. Percent is set when
// the component was percent-of-base; Amount is always the final rounded
// value that entered gross pay.
type Earning struct {
	Name    string          `json:"name"`
	Amount  decimal.Decimal `json:"amount"`
	Percent decimal.Decimal `json:"percent,omitempty"`
}

type Deduction struct {
	Name    string          `json:"name"`
	Amount  decimal.Decimal `json:"amount"`
	Percent decimal.Decimal `json:"percent,omitempty"`
	Basis   string          `json:"basis,omitempty"`
}

// Line is one person's computed pay within a run. Lines are owned by the
// run that created them and are destroyed and regenerated on every
// recalculation.
type Line struct {
	ID                    string          `json:"id"`
	RunID                 string          `json:"runId"`
	PersonID              string          `json:"personId"`
	FullName              string          `json:"fullName"`
	PersonType            string          `json:"personType"`
	Jurisdiction          string          `json:"jurisdiction"`
	IsIncluded            bool            `json:"isIncluded"`
	ExcludeReason         string          `json:"excludeReason,omitempty"`
	PayRate               decimal.Decimal `json:"payRate"`
	BasePay               decimal.Decimal `json:"basePay"`
	Earnings              []Earning       `json:"earnings"`
	Deductions            []Deduction     `json:"deductions"`
	GrossPay              decimal.Decimal `json:"grossPay"`
	TotalTaxes            decimal.Decimal `json:"totalTaxes"`
	TotalDeductions       decimal.Decimal `json:"totalDeductions"`
	NetPay                decimal.Decimal `json:"netPay"`
	EmployerTaxes         decimal.Decimal `json:"employerTaxes"`
	EmployerContributions decimal.Decimal `json:"employerContributions"`
	TotalEmployerCost     decimal.Decimal `json:"totalEmployerCost"`
	Currency              string          `json:"currency"`
	RowNotes              string          `json:"rowNotes,omitempty"`
}

// Anomaly is advisory and ephemeral: it is returned in the calculate
// response and only its count survives on the run.
type Anomaly struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	PersonID string `json:"personId"`
	FullName string `json:"fullName"`
}

// CalculationResult is the calculate response payload.
type CalculationResult struct {
	Run       Run       `json:"run"`
	Lines     []Line    `json:"lines"`
	Anomalies []Anomaly `json:"anomalies"`
}

type RegisterRow struct {
	PersonID          string
	FullName          string
	IsIncluded        bool
	ExcludeReason     string
	GrossPay          decimal.Decimal
	TotalTaxes        decimal.Decimal
	TotalDeductions   decimal.Decimal
	NetPay            decimal.Decimal
	TotalEmployerCost decimal.Decimal
	Currency          string
}
