package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"payrun/internal/domain/ledger"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const runColumns = `
    id, period_id, run_type, run_number, status, currency, notes,
    anomaly_count, anomalies_acknowledged, journal_entry_id,
    gross_pay, net_pay, employee_taxes, employee_deductions,
    employer_taxes, employer_contributions, employee_count,
    calculated_at, calculated_by, approved_at, approved_by,
    posted_at, posted_by, paid_at, paid_by,
    voided_at, voided_by, void_reason, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run            Run
		journalEntryID *string
		gross          *decimal.Decimal
		net            *decimal.Decimal
		empTaxes       *decimal.Decimal
		empDeductions  *decimal.Decimal
		erTaxes        *decimal.Decimal
		erContribs     *decimal.Decimal
		employeeCount  *int
		calculatedBy   *string
		approvedBy     *string
		postedBy       *string
		paidBy         *string
		voidedBy       *string
		voidReason     *string
	)
	err := row.Scan(
		&run.ID, &run.PeriodID, &run.RunType, &run.RunNumber, &run.Status, &run.Currency, &run.Notes,
		&run.AnomalyCount, &run.AnomaliesAcknowledged, &journalEntryID,
		&gross, &net, &empTaxes, &empDeductions,
		&erTaxes, &erContribs, &employeeCount,
		&run.CalculatedAt, &calculatedBy, &run.ApprovedAt, &approvedBy,
		&run.PostedAt, &postedBy, &run.PaidAt, &paidBy,
		&run.VoidedAt, &voidedBy, &voidReason, &run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, err
	}
	if gross != nil {
		run.Totals = &RunTotals{
			GrossPay:              *gross,
			NetPay:                *net,
			EmployeeTaxes:         *empTaxes,
			EmployeeDeductions:    *empDeductions,
			EmployerTaxes:         *erTaxes,
			EmployerContributions: *erContribs,
			EmployeeCount:         *employeeCount,
		}
	}
	if journalEntryID != nil {
		run.JournalEntryID = *journalEntryID
	}
	for dst, src := range map[*string]*string{
		&run.CalculatedBy: calculatedBy,
		&run.ApprovedBy:   approvedBy,
		&run.PostedBy:     postedBy,
		&run.PaidBy:       paidBy,
		&run.VoidedBy:     voidedBy,
		&run.VoidReason:   voidReason,
	} {
		if src != nil {
			*dst = *src
		}
	}
	return run, nil
}

// CreateRun inserts a draft run. When runNumber is zero the next number
// within the period and run type is assigned, skipping void runs; since
// concurrent creators can collide on the number's unique index, that insert
// retries before reporting a duplicate. An explicit runNumber is taken as
// given, so a retried create hits the same row and collides instead of
// opening a second run.
func (s *Store) CreateRun(ctx context.Context, tenantID, periodID, runType string, runNumber int, notes, currency string) (Run, error) {
	if runNumber > 0 {
		run, err := scanRun(s.DB.QueryRow(ctx, `
      INSERT INTO payroll_runs (tenant_id, period_id, run_type, run_number, status, currency, notes)
      VALUES ($1, $2, $3, $4, 'draft', $5, $6)
      RETURNING `+runColumns, tenantID, periodID, runType, runNumber, currency, notes))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return Run{}, ErrDuplicateRun
			}
			return Run{}, err
		}
		return run, nil
	}

	for attempt := 0; attempt < 3; attempt++ {
		run, err := scanRun(s.DB.QueryRow(ctx, `
      INSERT INTO payroll_runs (tenant_id, period_id, run_type, run_number, status, currency, notes)
      SELECT $1, $2, $3, COALESCE(MAX(run_number), 0) + 1, 'draft', $4, $5
      FROM payroll_runs
      WHERE tenant_id = $1 AND period_id = $2 AND run_type = $3 AND status <> 'void'
      RETURNING `+runColumns, tenantID, periodID, runType, currency, notes))
		if err == nil {
			return run, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			continue
		}
		return Run{}, err
	}
	return Run{}, ErrDuplicateRun
}

func (s *Store) GetRun(ctx context.Context, tenantID, runID string) (Run, error) {
	return scanRun(s.DB.QueryRow(ctx, `
    SELECT `+runColumns+`
    FROM payroll_runs
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, runID))
}

// ListRuns returns runs newest first, optionally filtered by period and
// status.
func (s *Store) ListRuns(ctx context.Context, tenantID, periodID, status string, limit, offset int) ([]Run, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+runColumns+`
    FROM payroll_runs
    WHERE tenant_id = $1
      AND ($2 = '' OR period_id::text = $2)
      AND ($3 = '' OR status = $3)
    ORDER BY created_at DESC
    LIMIT $4 OFFSET $5
  `, tenantID, periodID, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func lockRun(ctx context.Context, tx pgx.Tx, tenantID, runID string) (Run, error) {
	return scanRun(tx.QueryRow(ctx, `
    SELECT `+runColumns+`
    FROM payroll_runs
    WHERE tenant_id = $1 AND id = $2
    FOR UPDATE
  `, tenantID, runID))
}

// ClaimCalculation flips the run to calculating and commits, so the heavy
// computation never runs under a row lock. A run that is already
// calculating is only reclaimable once its claim is older than staleAfter,
// which covers claimants that died without finishing.
func (s *Store) ClaimCalculation(ctx context.Context, tenantID, runID, userID string, staleAfter time.Duration) (Run, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Run{}, err
	}
	defer tx.Rollback(ctx)

	run, err := lockRun(ctx, tx, tenantID, runID)
	if err != nil {
		return Run{}, err
	}

	priorStatus := run.Status
	if run.Status == StatusCalculating {
		// Reclaiming a stale claim keeps the original prior status, so a
		// release after this claim still reverts to where the run stood
		// before the dead claimant took it.
		var startedAt time.Time
		if err := tx.QueryRow(ctx, `
      SELECT calc_started_at, COALESCE(calc_prior_status, 'draft')
      FROM payroll_runs WHERE tenant_id = $1 AND id = $2
    `, tenantID, runID).Scan(&startedAt, &priorStatus); err != nil {
			return Run{}, err
		}
		if time.Since(startedAt) < staleAfter {
			return Run{}, ErrCalculationInProgress
		}
	} else if err := CheckTransition(run.Status, StatusCalculating); err != nil {
		return Run{}, err
	}
	if _, err := tx.Exec(ctx, `
    UPDATE payroll_runs
    SET status = 'calculating', calc_started_at = now(), calc_prior_status = $3
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, runID, priorStatus); err != nil {
		return Run{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Run{}, err
	}
	run.Status = StatusCalculating
	return run, nil
}

// ReleaseClaim reverts a failed calculation to the status the claim found,
// leaving prior lines and totals untouched. It is a no-op if another
// claimant has already taken over.
func (s *Store) ReleaseClaim(ctx context.Context, tenantID, runID string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE payroll_runs
    SET status = calc_prior_status, calc_started_at = NULL
    WHERE tenant_id = $1 AND id = $2 AND status = 'calculating'
  `, tenantID, runID)
	return err
}

// FinishCalculation replaces the run's lines and totals and moves it to
// calculated, all in one transaction. The run must still be calculating
// when the write happens; a stale claimant that lost its claim gets a
// transition error instead of clobbering the winner's result.
func (s *Store) FinishCalculation(ctx context.Context, tenantID string, run Run, lines []Line, totals RunTotals, anomalyCount int, userID string) (Run, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Run{}, err
	}
	defer tx.Rollback(ctx)

	current, err := lockRun(ctx, tx, tenantID, run.ID)
	if err != nil {
		return Run{}, err
	}
	if current.Status == StatusVoid {
		return Run{}, fmt.Errorf("%w: run was voided during calculation", ErrInvalidTransition)
	}
	if current.Status != StatusCalculating {
		return Run{}, ErrCalculationInProgress
	}

	if _, err := tx.Exec(ctx, `
    DELETE FROM payroll_lines WHERE tenant_id = $1 AND run_id = $2
  `, tenantID, run.ID); err != nil {
		return Run{}, err
	}
	if err := insertLinesTx(ctx, tx, tenantID, run.ID, lines); err != nil {
		return Run{}, err
	}

	updated, err := scanRun(tx.QueryRow(ctx, `
    UPDATE payroll_runs
    SET status = 'calculated',
        gross_pay = $3, net_pay = $4,
        employee_taxes = $5, employee_deductions = $6,
        employer_taxes = $7, employer_contributions = $8,
        employee_count = $9,
        anomaly_count = $10, anomalies_acknowledged = false,
        calculated_at = now(), calculated_by = $11,
        calc_started_at = NULL, calc_prior_status = NULL
    WHERE tenant_id = $1 AND id = $2
    RETURNING `+runColumns,
		tenantID, run.ID,
		totals.GrossPay, totals.NetPay,
		totals.EmployeeTaxes, totals.EmployeeDeductions,
		totals.EmployerTaxes, totals.EmployerContributions,
		totals.EmployeeCount,
		anomalyCount, userID))
	if err != nil {
		return Run{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Run{}, err
	}
	return updated, nil
}

// Review moves a calculated run into reviewing.
func (s *Store) Review(ctx context.Context, tenantID, runID string) (Run, error) {
	return s.guardedTransition(ctx, tenantID, runID, StatusReviewing, `
    UPDATE payroll_runs SET status = 'reviewing'
    WHERE tenant_id = $1 AND id = $2
    RETURNING `+runColumns)
}

// Approve locks the run's result. A run carrying anomalies can only be
// approved with an explicit acknowledgement.
func (s *Store) Approve(ctx context.Context, tenantID, runID, userID string, acknowledgeAnomalies bool) (Run, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Run{}, err
	}
	defer tx.Rollback(ctx)

	run, err := lockRun(ctx, tx, tenantID, runID)
	if err != nil {
		return Run{}, err
	}
	if err := CheckTransition(run.Status, StatusApproved); err != nil {
		return Run{}, err
	}
	if run.AnomalyCount > 0 && !acknowledgeAnomalies {
		return Run{}, ErrAnomaliesUnacknowledged
	}

	updated, err := scanRun(tx.QueryRow(ctx, `
    UPDATE payroll_runs
    SET status = 'approved', approved_at = now(), approved_by = $3, anomalies_acknowledged = $4
    WHERE tenant_id = $1 AND id = $2
    RETURNING `+runColumns, tenantID, runID, userID, acknowledgeAnomalies))
	if err != nil {
		return Run{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Run{}, err
	}
	return updated, nil
}

// Post writes the balanced journal entry and flips the run to posted in a
// single transaction, so a posted run always has its entry and an entry
// never exists for an unposted run. Only one run per period can ever post.
func (s *Store) Post(ctx context.Context, tenantID, runID, userID string, entryDate time.Time) (Run, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Run{}, err
	}
	defer tx.Rollback(ctx)

	run, err := lockRun(ctx, tx, tenantID, runID)
	if err != nil {
		return Run{}, err
	}
	if err := CheckTransition(run.Status, StatusPosted); err != nil {
		return Run{}, err
	}
	if run.Totals == nil {
		return Run{}, ErrInvalidTransition
	}

	var posted bool
	if err := tx.QueryRow(ctx, `
    SELECT EXISTS (
      SELECT 1 FROM payroll_runs
      WHERE tenant_id = $1 AND period_id = $2 AND status IN ('posted', 'paid') AND id <> $3
    )
  `, tenantID, run.PeriodID, runID).Scan(&posted); err != nil {
		return Run{}, err
	}
	if posted {
		return Run{}, ErrPeriodAlreadyPosted
	}

	entryID, err := ledger.InsertEntryTx(ctx, tx, tenantID, BuildJournalEntry(run, *run.Totals, entryDate))
	if err != nil {
		return Run{}, err
	}

	updated, err := scanRun(tx.QueryRow(ctx, `
    UPDATE payroll_runs
    SET status = 'posted', posted_at = now(), posted_by = $3, journal_entry_id = $4
    WHERE tenant_id = $1 AND id = $2
    RETURNING `+runColumns, tenantID, runID, userID, entryID))
	if err != nil {
		return Run{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Run{}, err
	}
	return updated, nil
}

// Pay marks a posted run as disbursed.
func (s *Store) Pay(ctx context.Context, tenantID, runID, userID string) (Run, error) {
	return s.guardedTransition(ctx, tenantID, runID, StatusPaid, `
    UPDATE payroll_runs
    SET status = 'paid', paid_at = now(), paid_by = $3
    WHERE tenant_id = $1 AND id = $2
    RETURNING `+runColumns, userID)
}

// Void retires a run. Numbering ignores void runs, so the number becomes
// available again for the period.
func (s *Store) Void(ctx context.Context, tenantID, runID, userID, reason string) (Run, error) {
	return s.guardedTransition(ctx, tenantID, runID, StatusVoid, `
    UPDATE payroll_runs
    SET status = 'void', voided_at = now(), voided_by = $3, void_reason = $4,
        calc_started_at = NULL, calc_prior_status = NULL
    WHERE tenant_id = $1 AND id = $2
    RETURNING `+runColumns, userID, reason)
}

// guardedTransition re-checks the state machine against the row's current
// status under lock before writing.
func (s *Store) guardedTransition(ctx context.Context, tenantID, runID, to, query string, extra ...any) (Run, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Run{}, err
	}
	defer tx.Rollback(ctx)

	run, err := lockRun(ctx, tx, tenantID, runID)
	if err != nil {
		return Run{}, err
	}
	if err := CheckTransition(run.Status, to); err != nil {
		return Run{}, err
	}

	args := append([]any{tenantID, runID}, extra...)
	updated, err := scanRun(tx.QueryRow(ctx, query, args...))
	if err != nil {
		return Run{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Run{}, err
	}
	return updated, nil
}
