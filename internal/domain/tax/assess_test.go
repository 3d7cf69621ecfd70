package tax

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAssessAppliesRulesInOrder(t *testing.T) {
	rules := []Rule{
		{Name: "Income Tax", Scope: ScopeEmployeeTax, RatePercent: dec("20")},
		{Name: "Social Security", Scope: ScopeEmployeeTax, RatePercent: dec("6.2")},
		{Name: "Employer SS", Scope: ScopeEmployerTax, RatePercent: dec("6.2")},
		{Name: "Pension Match", Scope: ScopeEmployerContribution, FlatAmount: dec("50")},
	}

	got := Assess(dec("2000"), rules)
	if len(got) != 4 {
		t.Fatalf("expected 4 assessments, got %d", len(got))
	}
	if !got[0].Amount.Equal(dec("400")) {
		t.Fatalf("expected income tax 400, got %s", got[0].Amount)
	}
	if !got[1].Amount.Equal(dec("124")) {
		t.Fatalf("expected social security 124, got %s", got[1].Amount)
	}
	if got[2].Scope != ScopeEmployerTax || !got[2].Amount.Equal(dec("124")) {
		t.Fatalf("unexpected employer tax assessment %+v", got[2])
	}
	if got[3].Scope != ScopeEmployerContribution || !got[3].Amount.Equal(dec("50")) {
		t.Fatalf("unexpected contribution assessment %+v", got[3])
	}
}

func TestAssessCombinesRateAndFlat(t *testing.T) {
	rules := []Rule{{Name: "Levy", Scope: ScopeEmployeeTax, RatePercent: dec("1"), FlatAmount: dec("10")}}
	got := Assess(dec("1000"), rules)
	if len(got) != 1 || !got[0].Amount.Equal(dec("20")) {
		t.Fatalf("expected combined amount 20, got %+v", got)
	}
}

func TestAssessEmptyRules(t *testing.T) {
	if got := Assess(dec("1000"), nil); len(got) != 0 {
		t.Fatalf("expected no assessments, got %d", len(got))
	}
}
