package compensation

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	cryptoutil "payrun/internal/platform/crypto"
)

var (
	ErrPersonNotFound  = errors.New("person not found")
	ErrProfileNotFound = errors.New("compensation profile not found")
)

type Store struct {
	DB     *pgxpool.Pool
	Crypto *cryptoutil.Service
}

func NewStore(db *pgxpool.Pool, crypto *cryptoutil.Service) *Store {
	return &Store{DB: db, Crypto: crypto}
}

func (s *Store) CreatePerson(ctx context.Context, tenantID string, p Person) (Person, error) {
	bankEnc, err := s.Crypto.EncryptString(p.BankAccount)
	if err != nil {
		return Person{}, err
	}
	err = s.DB.QueryRow(ctx, `
    INSERT INTO persons (tenant_id, first_name, last_name, email, person_type, jurisdiction_code, status, bank_account_enc)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    RETURNING id, created_at
  `, tenantID, p.FirstName, p.LastName, p.Email, p.PersonType, p.JurisdictionCode, p.Status, bankEnc).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return Person{}, err
	}
	p.BankAccount = ""
	return p, nil
}

func (s *Store) GetPerson(ctx context.Context, tenantID, personID string) (Person, error) {
	var p Person
	var bankEnc []byte
	err := s.DB.QueryRow(ctx, `
    SELECT id, first_name, last_name, email, person_type, jurisdiction_code, status, bank_account_enc, created_at
    FROM persons
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, personID).Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.PersonType, &p.JurisdictionCode, &p.Status, &bankEnc, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Person{}, ErrPersonNotFound
	}
	if err != nil {
		return Person{}, err
	}
	bank, err := s.Crypto.DecryptString(bankEnc)
	if err != nil {
		return Person{}, err
	}
	p.BankAccount = maskAccount(bank)
	return p, nil
}

func (s *Store) ListPersons(ctx context.Context, tenantID string, limit, offset int) ([]Person, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, first_name, last_name, email, person_type, jurisdiction_code, status, created_at
    FROM persons
    WHERE tenant_id = $1
    ORDER BY last_name, first_name, id
    LIMIT $2 OFFSET $3
  `, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Person
	for rows.Next() {
		var p Person
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.PersonType, &p.JurisdictionCode, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CreateProfile(ctx context.Context, tenantID string, prof Profile) (Profile, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO compensation_profiles (tenant_id, person_id, pay_type, pay_rate, currency, effective_from, effective_to)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    RETURNING id, created_at
  `, tenantID, prof.PersonID, prof.PayType, prof.PayRate, prof.Currency, prof.EffectiveFrom, prof.EffectiveTo).Scan(&prof.ID, &prof.CreatedAt)
	return prof, err
}

func (s *Store) ListProfiles(ctx context.Context, tenantID, personID string) ([]Profile, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, person_id, pay_type, pay_rate, currency, effective_from, effective_to, created_at
    FROM compensation_profiles
    WHERE tenant_id = $1 AND person_id = $2
    ORDER BY effective_from DESC
  `, tenantID, personID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		var prof Profile
		if err := rows.Scan(&prof.ID, &prof.PersonID, &prof.PayType, &prof.PayRate, &prof.Currency, &prof.EffectiveFrom, &prof.EffectiveTo, &prof.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, prof)
	}
	return out, rows.Err()
}

func (s *Store) CreateComponent(ctx context.Context, tenantID string, comp Component) (Component, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO recurring_components (tenant_id, profile_id, kind, name, amount, percent, basis, position)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    RETURNING id
  `, tenantID, comp.ProfileID, comp.Kind, comp.Name, comp.Amount, comp.Percent, comp.Basis, comp.Position).Scan(&comp.ID)
	return comp, err
}

func (s *Store) ListComponents(ctx context.Context, tenantID, profileID string) ([]Component, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, profile_id, kind, name, amount, percent, COALESCE(basis, ''), position
    FROM recurring_components
    WHERE tenant_id = $1 AND profile_id = $2
    ORDER BY position, id
  `, tenantID, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanComponents(rows)
}

func (s *Store) CreateAdjustment(ctx context.Context, tenantID string, adj Adjustment) (Adjustment, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO pay_adjustments (tenant_id, period_id, person_id, name, amount, created_by)
    VALUES ($1, $2, $3, $4, $5, $6)
    RETURNING id, created_at
  `, tenantID, adj.PeriodID, adj.PersonID, adj.Name, adj.Amount, adj.CreatedBy).Scan(&adj.ID, &adj.CreatedAt)
	return adj, err
}

func (s *Store) ListAdjustments(ctx context.Context, tenantID, periodID string) ([]Adjustment, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, period_id, person_id, name, amount, created_at, created_by
    FROM pay_adjustments
    WHERE tenant_id = $1 AND period_id = $2
    ORDER BY created_at, id
  `, tenantID, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Adjustment
	for rows.Next() {
		var adj Adjustment
		if err := rows.Scan(&adj.ID, &adj.PeriodID, &adj.PersonID, &adj.Name, &adj.Amount, &adj.CreatedAt, &adj.CreatedBy); err != nil {
			return nil, err
		}
		out = append(out, adj)
	}
	return out, rows.Err()
}

// Roster loads every active person with their covering profile for the
// period window and that profile's ordered components, in a stable order.
// Persons without a covering profile come back with a nil Profile so the
// calculator can exclude them with a reason.
func (s *Store) Roster(ctx context.Context, tenantID string, periodStart, periodEnd time.Time) ([]PersonPay, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, first_name, last_name, email, person_type, jurisdiction_code, status, created_at
    FROM persons
    WHERE tenant_id = $1 AND status = 'active'
    ORDER BY last_name, first_name, id
  `, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roster []PersonPay
	index := map[string]int{}
	for rows.Next() {
		var p Person
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.PersonType, &p.JurisdictionCode, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		index[p.ID] = len(roster)
		roster = append(roster, PersonPay{Person: p})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	profRows, err := s.DB.Query(ctx, `
    SELECT DISTINCT ON (person_id)
           id, person_id, pay_type, pay_rate, currency, effective_from, effective_to, created_at
    FROM compensation_profiles
    WHERE tenant_id = $1
      AND effective_from <= $2
      AND (effective_to IS NULL OR effective_to >= $3)
    ORDER BY person_id, effective_from DESC
  `, tenantID, periodEnd, periodStart)
	if err != nil {
		return nil, err
	}
	defer profRows.Close()

	profileIndex := map[string]int{}
	for profRows.Next() {
		var prof Profile
		if err := profRows.Scan(&prof.ID, &prof.PersonID, &prof.PayType, &prof.PayRate, &prof.Currency, &prof.EffectiveFrom, &prof.EffectiveTo, &prof.CreatedAt); err != nil {
			return nil, err
		}
		i, ok := index[prof.PersonID]
		if !ok {
			continue
		}
		copied := prof
		roster[i].Profile = &copied
		profileIndex[prof.ID] = i
	}
	if err := profRows.Err(); err != nil {
		return nil, err
	}

	compRows, err := s.DB.Query(ctx, `
    SELECT id, profile_id, kind, name, amount, percent, COALESCE(basis, ''), position
    FROM recurring_components
    WHERE tenant_id = $1
    ORDER BY profile_id, position, id
  `, tenantID)
	if err != nil {
		return nil, err
	}
	defer compRows.Close()

	comps, err := scanComponents(compRows)
	if err != nil {
		return nil, err
	}
	for _, comp := range comps {
		if i, ok := profileIndex[comp.ProfileID]; ok {
			roster[i].Components = append(roster[i].Components, comp)
		}
	}

	return roster, nil
}

func scanComponents(rows pgx.Rows) ([]Component, error) {
	var out []Component
	for rows.Next() {
		var comp Component
		if err := rows.Scan(&comp.ID, &comp.ProfileID, &comp.Kind, &comp.Name, &comp.Amount, &comp.Percent, &comp.Basis, &comp.Position); err != nil {
			return nil, err
		}
		out = append(out, comp)
	}
	return out, rows.Err()
}

func maskAccount(account string) string {
	if len(account) <= 4 {
		return account
	}
	return "****" + account[len(account)-4:]
}
