package tax

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidInput = errors.New("invalid tax input")

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) CreateJurisdiction(ctx context.Context, tenantID string, j Jurisdiction) (Jurisdiction, error) {
	j.Code = strings.ToUpper(strings.TrimSpace(j.Code))
	j.Name = strings.TrimSpace(j.Name)
	if j.Code == "" || j.Name == "" {
		return Jurisdiction{}, fmt.Errorf("%w: code and name are required", ErrInvalidInput)
	}
	return s.store.CreateJurisdiction(ctx, tenantID, j)
}

func (s *Service) ListJurisdictions(ctx context.Context, tenantID string) ([]Jurisdiction, error) {
	return s.store.ListJurisdictions(ctx, tenantID)
}

func (s *Service) CreateRule(ctx context.Context, tenantID string, rule Rule) (Rule, error) {
	rule.Jurisdiction = strings.ToUpper(strings.TrimSpace(rule.Jurisdiction))
	rule.Name = strings.TrimSpace(rule.Name)
	if rule.Jurisdiction == "" || rule.Name == "" {
		return Rule{}, fmt.Errorf("%w: jurisdiction and name are required", ErrInvalidInput)
	}
	if !ValidScope(rule.Scope) {
		return Rule{}, fmt.Errorf("%w: scope must be employee_tax, employer_tax or employer_contribution", ErrInvalidInput)
	}
	if rule.RatePercent.IsNegative() || rule.FlatAmount.IsNegative() {
		return Rule{}, fmt.Errorf("%w: rate and flat amount must not be negative", ErrInvalidInput)
	}
	if rule.RatePercent.GreaterThan(decimal.NewFromInt(100)) {
		return Rule{}, fmt.Errorf("%w: rate must not exceed 100", ErrInvalidInput)
	}
	if rule.RatePercent.IsZero() && rule.FlatAmount.IsZero() {
		return Rule{}, fmt.Errorf("%w: rate or flat amount is required", ErrInvalidInput)
	}
	if _, err := s.store.GetJurisdiction(ctx, tenantID, rule.Jurisdiction); err != nil {
		return Rule{}, err
	}
	return s.store.CreateRule(ctx, tenantID, rule)
}

func (s *Service) ListRules(ctx context.Context, tenantID, jurisdiction string) ([]Rule, error) {
	return s.store.ListRules(ctx, tenantID, strings.ToUpper(strings.TrimSpace(jurisdiction)))
}
