package tax

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ScopeEmployeeTax          = "employee_tax"
	ScopeEmployerTax          = "employer_tax"
	ScopeEmployerContribution = "employer_contribution"
)

type Jurisdiction struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Rule describes one statutory amount for a jurisdiction. RatePercent
// applies to gross pay; FlatAmount is added as-is. Position fixes the
// order amounts are reported in.
type Rule struct {
	ID           string          `json:"id"`
	Jurisdiction string          `json:"jurisdiction"`
	Name         string          `json:"name"`
	Scope        string          `json:"scope"`
	RatePercent  decimal.Decimal `json:"ratePercent"`
	FlatAmount   decimal.Decimal `json:"flatAmount"`
	Position     int             `json:"position"`
}

// Assessment is one computed amount for a gross figure. The payroll
// calculator treats these as opaque inputs.
type Assessment struct {
	Name   string          `json:"name"`
	Scope  string          `json:"scope"`
	Amount decimal.Decimal `json:"amount"`
}

func ValidScope(scope string) bool {
	switch scope {
	case ScopeEmployeeTax, ScopeEmployerTax, ScopeEmployerContribution:
		return true
	}
	return false
}

// Assess applies the jurisdiction's rules to a gross figure. Amounts are
// returned at full precision; rounding is the caller's concern.
func Assess(gross decimal.Decimal, rules []Rule) []Assessment {
	out := make([]Assessment, 0, len(rules))
	for _, rule := range rules {
		amount := rule.FlatAmount
		if rule.RatePercent.IsPositive() {
			amount = amount.Add(gross.Mul(rule.RatePercent).Div(decimal.NewFromInt(100)))
		}
		out = append(out, Assessment{Name: rule.Name, Scope: rule.Scope, Amount: amount})
	}
	return out
}
