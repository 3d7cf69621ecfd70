package compensation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidInput = errors.New("invalid compensation input")

type Service struct {
	store           *Store
	defaultCurrency string
}

func NewService(store *Store, defaultCurrency string) *Service {
	return &Service{store: store, defaultCurrency: defaultCurrency}
}

func (s *Service) CreatePerson(ctx context.Context, tenantID string, p Person) (Person, error) {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Email = strings.TrimSpace(p.Email)
	p.JurisdictionCode = strings.TrimSpace(p.JurisdictionCode)
	if p.FirstName == "" || p.LastName == "" || p.Email == "" {
		return Person{}, fmt.Errorf("%w: name and email are required", ErrInvalidInput)
	}
	if p.PersonType != PersonTypeEmployee && p.PersonType != PersonTypeContractor {
		return Person{}, fmt.Errorf("%w: personType must be employee or contractor", ErrInvalidInput)
	}
	if p.Status == "" {
		p.Status = PersonStatusActive
	}
	if p.Status != PersonStatusActive && p.Status != PersonStatusInactive {
		return Person{}, fmt.Errorf("%w: status must be active or inactive", ErrInvalidInput)
	}
	return s.store.CreatePerson(ctx, tenantID, p)
}

func (s *Service) GetPerson(ctx context.Context, tenantID, personID string) (Person, error) {
	return s.store.GetPerson(ctx, tenantID, personID)
}

func (s *Service) ListPersons(ctx context.Context, tenantID string, limit, offset int) ([]Person, error) {
	return s.store.ListPersons(ctx, tenantID, limit, offset)
}

func (s *Service) CreateProfile(ctx context.Context, tenantID string, prof Profile) (Profile, error) {
	if prof.PersonID == "" {
		return Profile{}, fmt.Errorf("%w: personId is required", ErrInvalidInput)
	}
	if prof.PayType == "" {
		prof.PayType = PayTypeSalaried
	}
	if prof.PayType != PayTypeSalaried && prof.PayType != PayTypeHourly {
		return Profile{}, fmt.Errorf("%w: payType must be salaried or hourly", ErrInvalidInput)
	}
	if prof.PayRate.IsNegative() {
		return Profile{}, fmt.Errorf("%w: payRate must not be negative", ErrInvalidInput)
	}
	if prof.Currency == "" {
		prof.Currency = s.defaultCurrency
	}
	if prof.EffectiveFrom.IsZero() {
		return Profile{}, fmt.Errorf("%w: effectiveFrom is required", ErrInvalidInput)
	}
	if prof.EffectiveTo != nil && prof.EffectiveTo.Before(prof.EffectiveFrom) {
		return Profile{}, fmt.Errorf("%w: effectiveTo precedes effectiveFrom", ErrInvalidInput)
	}
	if _, err := s.store.GetPerson(ctx, tenantID, prof.PersonID); err != nil {
		return Profile{}, err
	}
	return s.store.CreateProfile(ctx, tenantID, prof)
}

func (s *Service) ListProfiles(ctx context.Context, tenantID, personID string) ([]Profile, error) {
	return s.store.ListProfiles(ctx, tenantID, personID)
}

func (s *Service) CreateComponent(ctx context.Context, tenantID string, comp Component) (Component, error) {
	comp.Name = strings.TrimSpace(comp.Name)
	if comp.ProfileID == "" || comp.Name == "" {
		return Component{}, fmt.Errorf("%w: profileId and name are required", ErrInvalidInput)
	}
	if comp.Kind != ComponentKindEarning && comp.Kind != ComponentKindDeduction {
		return Component{}, fmt.Errorf("%w: kind must be earning or deduction", ErrInvalidInput)
	}
	if comp.Amount.IsNegative() || comp.Percent.IsNegative() {
		return Component{}, fmt.Errorf("%w: amount and percent must not be negative", ErrInvalidInput)
	}
	if comp.Percent.GreaterThan(decimal.NewFromInt(100)) {
		return Component{}, fmt.Errorf("%w: percent must not exceed 100", ErrInvalidInput)
	}
	if comp.Percent.IsPositive() && comp.Amount.IsPositive() {
		return Component{}, fmt.Errorf("%w: set either amount or percent, not both", ErrInvalidInput)
	}
	if comp.Kind == ComponentKindDeduction && comp.Percent.IsPositive() {
		if comp.Basis == "" {
			comp.Basis = BasisGross
		}
		if comp.Basis != BasisGross && comp.Basis != BasisBase {
			return Component{}, fmt.Errorf("%w: basis must be gross or base", ErrInvalidInput)
		}
	} else {
		comp.Basis = ""
	}
	return s.store.CreateComponent(ctx, tenantID, comp)
}

func (s *Service) ListComponents(ctx context.Context, tenantID, profileID string) ([]Component, error) {
	return s.store.ListComponents(ctx, tenantID, profileID)
}

func (s *Service) CreateAdjustment(ctx context.Context, tenantID string, adj Adjustment) (Adjustment, error) {
	adj.Name = strings.TrimSpace(adj.Name)
	if adj.PeriodID == "" || adj.PersonID == "" || adj.Name == "" {
		return Adjustment{}, fmt.Errorf("%w: periodId, personId and name are required", ErrInvalidInput)
	}
	if adj.Amount.IsZero() {
		return Adjustment{}, fmt.Errorf("%w: amount must not be zero", ErrInvalidInput)
	}
	return s.store.CreateAdjustment(ctx, tenantID, adj)
}

func (s *Service) ListAdjustments(ctx context.Context, tenantID, periodID string) ([]Adjustment, error) {
	return s.store.ListAdjustments(ctx, tenantID, periodID)
}

// Roster is the calculate-time read: active persons, covering profiles and
// components for the period window.
func (s *Service) Roster(ctx context.Context, tenantID string, periodStart, periodEnd time.Time) ([]PersonPay, error) {
	return s.store.Roster(ctx, tenantID, periodStart, periodEnd)
}
