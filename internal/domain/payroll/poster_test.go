package payroll

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"payrun/internal/domain/ledger"
)

func TestBuildJournalEntryBalances(t *testing.T) {
	run := Run{ID: "run-1", RunType: RunTypeRegular, RunNumber: 1, Currency: "USD"}
	totals := RunTotals{
		GrossPay:              dec("3500"),
		NetPay:                dec("2800"),
		EmployeeTaxes:         dec("700"),
		EmployerTaxes:         dec("175"),
		EmployerContributions: dec("50"),
		EmployeeCount:         2,
	}
	payDate := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	entry := BuildJournalEntry(run, totals, payDate)
	if err := entry.Validate(); err != nil {
		t.Fatalf("expected balanced entry: %v", err)
	}
	if entry.Source != ledger.SourcePayrollRun || entry.SourceID != "run-1" {
		t.Fatalf("expected entry linked to run, got source %s/%s", entry.Source, entry.SourceID)
	}
	if !entry.EntryDate.Equal(payDate) {
		t.Fatalf("expected entry date %s, got %s", payDate, entry.EntryDate)
	}
	// 3500 + 175 + 50 debited against the liability accounts.
	assertEq(t, "total debits", entry.TotalDebits(), dec("3725"))

	byAccount := map[string]ledger.Line{}
	for _, line := range entry.Lines {
		byAccount[line.AccountCode] = line
	}
	assertEq(t, "payroll expense", byAccount[ledger.AccountPayrollExpense].Debit, dec("3500"))
	assertEq(t, "net pay payable", byAccount[ledger.AccountNetPayPayable].Credit, dec("2800"))
	assertEq(t, "employee tax payable", byAccount[ledger.AccountEmployeeTaxPayable].Credit, dec("700"))
	assertEq(t, "employer tax payable", byAccount[ledger.AccountEmployerTaxPayable].Credit, dec("175"))
}

func TestBuildJournalEntryOmitsZeroLines(t *testing.T) {
	run := Run{ID: "run-2", RunType: RunTypeBonus, RunNumber: 1, Currency: "USD"}
	totals := RunTotals{GrossPay: dec("1000"), NetPay: dec("1000"), EmployeeCount: 1}

	entry := BuildJournalEntry(run, totals, time.Now())
	if len(entry.Lines) != 2 {
		t.Fatalf("expected only expense and net payable lines, got %d", len(entry.Lines))
	}
	if err := entry.Validate(); err != nil {
		t.Fatalf("expected balanced entry: %v", err)
	}
}

func TestBuildJournalEntryDeductions(t *testing.T) {
	totals := RunTotals{
		GrossPay:           dec("2000"),
		NetPay:             dec("1500"),
		EmployeeTaxes:      dec("350"),
		EmployeeDeductions: dec("150"),
		EmployeeCount:      1,
	}
	entry := BuildJournalEntry(Run{ID: "run-3", RunType: RunTypeRegular, RunNumber: 2, Currency: "USD"}, totals, time.Now())
	if err := entry.Validate(); err != nil {
		t.Fatalf("expected balanced entry: %v", err)
	}

	var deductPayable decimal.Decimal
	for _, line := range entry.Lines {
		if line.AccountCode == ledger.AccountEmployeeDeductPayable {
			deductPayable = line.Credit
		}
	}
	assertEq(t, "deductions payable", deductPayable, dec("150"))
}
