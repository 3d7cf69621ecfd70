package tax

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrJurisdictionNotFound = errors.New("jurisdiction not found")

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) CreateJurisdiction(ctx context.Context, tenantID string, j Jurisdiction) (Jurisdiction, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO tax_jurisdictions (tenant_id, code, name)
    VALUES ($1, $2, $3)
    RETURNING id, created_at
  `, tenantID, j.Code, j.Name).Scan(&j.ID, &j.CreatedAt)
	return j, err
}

func (s *Store) GetJurisdiction(ctx context.Context, tenantID, code string) (Jurisdiction, error) {
	var j Jurisdiction
	err := s.DB.QueryRow(ctx, `
    SELECT id, code, name, created_at
    FROM tax_jurisdictions
    WHERE tenant_id = $1 AND code = $2
  `, tenantID, code).Scan(&j.ID, &j.Code, &j.Name, &j.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Jurisdiction{}, ErrJurisdictionNotFound
	}
	return j, err
}

func (s *Store) ListJurisdictions(ctx context.Context, tenantID string) ([]Jurisdiction, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, code, name, created_at
    FROM tax_jurisdictions
    WHERE tenant_id = $1
    ORDER BY code
  `, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Jurisdiction
	for rows.Next() {
		var j Jurisdiction
		if err := rows.Scan(&j.ID, &j.Code, &j.Name, &j.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *Store) CreateRule(ctx context.Context, tenantID string, rule Rule) (Rule, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO tax_rules (tenant_id, jurisdiction_code, name, scope, rate_percent, flat_amount, position)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    RETURNING id
  `, tenantID, rule.Jurisdiction, rule.Name, rule.Scope, rule.RatePercent, rule.FlatAmount, rule.Position).Scan(&rule.ID)
	return rule, err
}

func (s *Store) ListRules(ctx context.Context, tenantID, jurisdiction string) ([]Rule, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, jurisdiction_code, name, scope, rate_percent, flat_amount, position
    FROM tax_rules
    WHERE tenant_id = $1 AND jurisdiction_code = $2
    ORDER BY position, id
  `, tenantID, jurisdiction)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

// RulesByJurisdiction loads the tenant's whole rule table keyed by
// jurisdiction code. The payroll calculator reads this once per run rather
// than once per person.
func (s *Store) RulesByJurisdiction(ctx context.Context, tenantID string) (map[string][]Rule, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, jurisdiction_code, name, scope, rate_percent, flat_amount, position
    FROM tax_rules
    WHERE tenant_id = $1
    ORDER BY jurisdiction_code, position, id
  `, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules, err := scanRules(rows)
	if err != nil {
		return nil, err
	}
	out := map[string][]Rule{}
	for _, rule := range rules {
		out[rule.Jurisdiction] = append(out[rule.Jurisdiction], rule)
	}
	return out, nil
}

func scanRules(rows pgx.Rows) ([]Rule, error) {
	var out []Rule
	for rows.Next() {
		var rule Rule
		if err := rows.Scan(&rule.ID, &rule.Jurisdiction, &rule.Name, &rule.Scope, &rule.RatePercent, &rule.FlatAmount, &rule.Position); err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}
