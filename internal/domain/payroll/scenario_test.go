package payroll

import (
	"testing"
	"time"
)

// Two included persons, no deductions, no pay history: aggregate, detect
// and post from the same line set and check every stage reconciles.
func TestTwoPersonRunPostsBalanced(t *testing.T) {
	lines := []Line{
		{
			IsIncluded: true, PersonID: "p1", FullName: "Ada Okafor",
			PayRate: dec("2000"), BasePay: dec("2000"), GrossPay: dec("2000"),
			TotalTaxes: dec("400"), NetPay: dec("1600"),
			TotalEmployerCost: dec("2000"),
		},
		{
			IsIncluded: true, PersonID: "p2", FullName: "Ben Ito",
			PayRate: dec("1500"), BasePay: dec("1500"), GrossPay: dec("1500"),
			TotalTaxes: dec("300"), NetPay: dec("1200"),
			TotalEmployerCost: dec("1500"),
		},
	}

	totals := Aggregate(lines)
	assertEq(t, "gross", totals.GrossPay, dec("3500"))
	assertEq(t, "taxes", totals.EmployeeTaxes, dec("700"))
	assertEq(t, "net", totals.NetPay, dec("2800"))
	if totals.EmployeeCount != 2 {
		t.Fatalf("expected 2 employees, got %d", totals.EmployeeCount)
	}

	for _, line := range lines {
		if got := DetectAnomalies(testPolicy(), line, nil); len(got) != 0 {
			t.Fatalf("expected no anomalies for %s, got %+v", line.PersonID, got)
		}
	}

	run := Run{ID: "run-ex", RunType: RunTypeRegular, RunNumber: 1, Currency: "USD"}
	entry := BuildJournalEntry(run, totals, time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC))
	if err := entry.Validate(); err != nil {
		t.Fatalf("expected balanced entry: %v", err)
	}
	assertEq(t, "debits", entry.TotalDebits(), dec("3500"))
	assertEq(t, "credits", entry.TotalCredits(), dec("3500"))
}
