package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Account codes used by payroll posting. The chart is deliberately small:
// this service is the only writer, external accounting consumes the entries.
const (
	AccountPayrollExpense         = "6000"
	AccountEmployerTaxExpense     = "6100"
	AccountEmployerContribExpense = "6200"
	AccountNetPayPayable          = "2100"
	AccountEmployeeTaxPayable     = "2200"
	AccountEmployeeDeductPayable  = "2300"
	AccountEmployerTaxPayable     = "2400"
	AccountEmployerContribPayable = "2500"
)

const SourcePayrollRun = "payroll_run"

var ErrUnbalanced = errors.New("journal entry debits do not equal credits")

var ErrEntryNotFound = errors.New("journal entry not found")

type Line struct {
	AccountCode string          `json:"accountCode"`
	AccountName string          `json:"accountName"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

// Entry is one balanced journal entry. Source/SourceID link it back to the
// payroll run that produced it.
type Entry struct {
	ID        string    `json:"id"`
	EntryDate time.Time `json:"entryDate"`
	Memo      string    `json:"memo"`
	Currency  string    `json:"currency"`
	Source    string    `json:"source"`
	SourceID  string    `json:"sourceId"`
	Lines     []Line    `json:"lines"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks that the entry balances exactly and carries no line that
// is both debit and credit, or neither.
func (e Entry) Validate() error {
	if len(e.Lines) == 0 {
		return fmt.Errorf("%w: entry has no lines", ErrUnbalanced)
	}
	debits := decimal.Zero
	credits := decimal.Zero
	for _, line := range e.Lines {
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("%w: negative amount on account %s", ErrUnbalanced, line.AccountCode)
		}
		if line.Debit.IsPositive() && line.Credit.IsPositive() {
			return fmt.Errorf("%w: account %s is both debit and credit", ErrUnbalanced, line.AccountCode)
		}
		if line.Debit.IsZero() && line.Credit.IsZero() {
			return fmt.Errorf("%w: account %s has no amount", ErrUnbalanced, line.AccountCode)
		}
		debits = debits.Add(line.Debit)
		credits = credits.Add(line.Credit)
	}
	if !debits.Equal(credits) {
		return fmt.Errorf("%w: debits %s, credits %s", ErrUnbalanced, debits.String(), credits.String())
	}
	return nil
}

func (e Entry) TotalDebits() decimal.Decimal {
	total := decimal.Zero
	for _, line := range e.Lines {
		total = total.Add(line.Debit)
	}
	return total
}

func (e Entry) TotalCredits() decimal.Decimal {
	total := decimal.Zero
	for _, line := range e.Lines {
		total = total.Add(line.Credit)
	}
	return total
}
