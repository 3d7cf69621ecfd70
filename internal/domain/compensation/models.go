package compensation

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PersonTypeEmployee   = "employee"
	PersonTypeContractor = "contractor"

	PersonStatusActive   = "active"
	PersonStatusInactive = "inactive"

	ComponentKindEarning   = "earning"
	ComponentKindDeduction = "deduction"

	PayTypeSalaried = "salaried"
	PayTypeHourly   = "hourly"

	BasisGross = "gross"
	BasisBase  = "base"
)

type Person struct {
	ID               string    `json:"id"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	Email            string    `json:"email"`
	PersonType       string    `json:"personType"`
	JurisdictionCode string    `json:"jurisdictionCode"`
	Status           string    `json:"status"`
	BankAccount      string    `json:"bankAccount,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Profile carries a person's pay terms for a date range. PayRate is the
// per-period base amount. EffectiveTo nil means open-ended.
type Profile struct {
	ID            string          `json:"id"`
	PersonID      string          `json:"personId"`
	PayType       string          `json:"payType"`
	PayRate       decimal.Decimal `json:"payRate"`
	Currency      string          `json:"currency"`
	EffectiveFrom time.Time       `json:"effectiveFrom"`
	EffectiveTo   *time.Time      `json:"effectiveTo,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Component is a recurring earning or deduction attached to a profile.
// Percent > 0 makes it percent-based: earnings take a percent of base pay,
// deductions a percent of the configured basis (gross unless set to base).
// Otherwise Amount is a flat per-period value. Position fixes evaluation
// order.
type Component struct {
	ID        string          `json:"id"`
	ProfileID string          `json:"profileId"`
	Kind      string          `json:"kind"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	Percent   decimal.Decimal `json:"percent"`
	Basis     string          `json:"basis,omitempty"`
	Position  int             `json:"position"`
}

// Adjustment is a one-off amount for a (period, person). Positive amounts
// are applied as one-off earnings, negative as one-off deductions.
type Adjustment struct {
	ID        string          `json:"id"`
	PeriodID  string          `json:"periodId"`
	PersonID  string          `json:"personId"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"createdAt"`
	CreatedBy string          `json:"createdBy"`
}

// PersonPay is one roster entry handed to the line calculator: the person,
// their covering profile for the period (nil when none), and the profile's
// ordered recurring components.
type PersonPay struct {
	Person     Person
	Profile    *Profile
	Components []Component
}

func (p Person) FullName() string {
	return p.FirstName + " " + p.LastName
}
