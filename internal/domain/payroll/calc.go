package payroll

import (
	"github.com/shopspring/decimal"

	"payrun/internal/domain/compensation"
	"payrun/internal/domain/tax"
)

// minorUnitPlaces is the currency minor unit every monetary component is
// rounded to. Rounding happens once per component as it enters the line;
// all later arithmetic is exact sums of already-rounded values.
const minorUnitPlaces = 2

var hundred = decimal.NewFromInt(100)

// roundMinor rounds half up at the currency minor unit. decimal.Round is
// half-away-from-zero, which matches half-up for the non-negative amounts
// produced here (signed adjustments are split into positive earnings or
// deductions before rounding).
func roundMinor(d decimal.Decimal) decimal.Decimal {
	return d.Round(minorUnitPlaces)
}

// CalcInput is everything the line calculator needs for one person. Rules
// carry the person's jurisdiction tax rules; RulesKnown is false when the
// jurisdiction lookup failed, which excludes the person rather than
// failing the run.
type CalcInput struct {
	Person      compensation.PersonPay
	Adjustments []compensation.Adjustment
	Rules       []tax.Rule
	RulesKnown  bool
	Currency    string
}

// CalculateLine computes one person's pay line. It is a pure function:
// identical inputs always produce an identical line, and nothing is
// persisted here. Earnings are evaluated base pay first, then recurring
// components in their configured order, then one-off period adjustments,
// so percent-of-base terms never depend on input ordering. Deductions are
// evaluated only after gross pay is final.
func CalculateLine(in CalcInput) Line {
	person := in.Person.Person
	line := Line{
		PersonID:     person.ID,
		FullName:     person.FullName(),
		PersonType:   person.PersonType,
		Jurisdiction: person.JurisdictionCode,
		Currency:     in.Currency,
		Earnings:     []Earning{},
		Deductions:   []Deduction{},
	}

	if in.Person.Profile == nil {
		line.ExcludeReason = ExcludeReasonNoProfile
		return line
	}
	if !in.RulesKnown {
		line.ExcludeReason = ExcludeReasonNoTaxData
		return line
	}

	profile := in.Person.Profile
	line.IsIncluded = true
	if profile.Currency != "" {
		line.Currency = profile.Currency
	}
	line.PayRate = profile.PayRate
	line.BasePay = roundMinor(profile.PayRate)

	// Recurring earnings, in component order.
	for _, comp := range in.Person.Components {
		if comp.Kind != compensation.ComponentKindEarning {
			continue
		}
		earning := Earning{Name: comp.Name, Percent: comp.Percent}
		if comp.Percent.IsPositive() {
			earning.Amount = roundMinor(line.BasePay.Mul(comp.Percent).Div(hundred))
		} else {
			earning.Amount = roundMinor(comp.Amount)
		}
		line.Earnings = append(line.Earnings, earning)
	}

	// One-off adjustments: positive amounts are earnings, negative ones
	// become deductions after gross is settled.
	var adjustmentDeductions []Deduction
	for _, adj := range in.Adjustments {
		if adj.Amount.IsPositive() {
			line.Earnings = append(line.Earnings, Earning{Name: adj.Name, Amount: roundMinor(adj.Amount)})
		} else if adj.Amount.IsNegative() {
			adjustmentDeductions = append(adjustmentDeductions, Deduction{Name: adj.Name, Amount: roundMinor(adj.Amount.Neg())})
		}
	}

	line.GrossPay = line.BasePay
	for _, earning := range line.Earnings {
		line.GrossPay = line.GrossPay.Add(earning.Amount)
	}

	// Recurring deductions reference final gross pay unless configured
	// against base.
	for _, comp := range in.Person.Components {
		if comp.Kind != compensation.ComponentKindDeduction {
			continue
		}
		deduction := Deduction{Name: comp.Name, Percent: comp.Percent, Basis: comp.Basis}
		if comp.Percent.IsPositive() {
			basis := line.GrossPay
			if comp.Basis == compensation.BasisBase {
				basis = line.BasePay
			}
			deduction.Amount = roundMinor(basis.Mul(comp.Percent).Div(hundred))
		} else {
			deduction.Amount = roundMinor(comp.Amount)
		}
		line.Deductions = append(line.Deductions, deduction)
	}
	line.Deductions = append(line.Deductions, adjustmentDeductions...)

	for _, deduction := range line.Deductions {
		line.TotalDeductions = line.TotalDeductions.Add(deduction.Amount)
	}

	// Taxes are opaque amounts from jurisdiction rules: summed, never
	// derived here.
	for _, assessment := range tax.Assess(line.GrossPay, in.Rules) {
		amount := roundMinor(assessment.Amount)
		switch assessment.Scope {
		case tax.ScopeEmployeeTax:
			line.TotalTaxes = line.TotalTaxes.Add(amount)
		case tax.ScopeEmployerTax:
			line.EmployerTaxes = line.EmployerTaxes.Add(amount)
		case tax.ScopeEmployerContribution:
			line.EmployerContributions = line.EmployerContributions.Add(amount)
		}
	}

	line.NetPay = line.GrossPay.Sub(line.TotalTaxes).Sub(line.TotalDeductions)
	line.TotalEmployerCost = line.GrossPay.Add(line.EmployerTaxes).Add(line.EmployerContributions)
	return line
}
