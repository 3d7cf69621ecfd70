package payroll

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"payrun/internal/domain/ledger"
)

// BuildJournalEntry maps run totals onto the ledger chart: expenses are
// debited for what the employer incurs, liabilities credited for what is
// owed out. Zero-amount lines are omitted. Balance is structural, because
// gross pay equals net pay plus employee taxes plus employee deductions on
// every line.
func BuildJournalEntry(run Run, totals RunTotals, entryDate time.Time) ledger.Entry {
	entry := ledger.Entry{
		EntryDate: entryDate,
		Memo:      fmt.Sprintf("Payroll run %s #%d", run.RunType, run.RunNumber),
		Currency:  run.Currency,
		Source:    ledger.SourcePayrollRun,
		SourceID:  run.ID,
	}

	add := func(code, name string, debit, credit decimal.Decimal) {
		if debit.IsZero() && credit.IsZero() {
			return
		}
		entry.Lines = append(entry.Lines, ledger.Line{AccountCode: code, AccountName: name, Debit: debit, Credit: credit})
	}

	var zero decimal.Decimal
	add(ledger.AccountPayrollExpense, "Payroll expense", totals.GrossPay, zero)
	add(ledger.AccountEmployerTaxExpense, "Employer payroll tax expense", totals.EmployerTaxes, zero)
	add(ledger.AccountEmployerContribExpense, "Employer contribution expense", totals.EmployerContributions, zero)
	add(ledger.AccountNetPayPayable, "Net pay payable", zero, totals.NetPay)
	add(ledger.AccountEmployeeTaxPayable, "Employee tax withholding payable", zero, totals.EmployeeTaxes)
	add(ledger.AccountEmployeeDeductPayable, "Employee deductions payable", zero, totals.EmployeeDeductions)
	add(ledger.AccountEmployerTaxPayable, "Employer payroll tax payable", zero, totals.EmployerTaxes)
	add(ledger.AccountEmployerContribPayable, "Employer contribution payable", zero, totals.EmployerContributions)
	return entry
}
