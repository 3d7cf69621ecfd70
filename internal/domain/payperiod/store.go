package payperiod

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrScheduleNotFound = errors.New("pay schedule not found")
	ErrPeriodNotFound   = errors.New("pay period not found")
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) CreateSchedule(ctx context.Context, tenantID string, sched Schedule) (Schedule, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO pay_schedules (tenant_id, name, frequency, anchor_date, pay_date_offset_days)
    VALUES ($1, $2, $3, $4, $5)
    RETURNING id, created_at
  `, tenantID, sched.Name, sched.Frequency, sched.AnchorDate, sched.PayDateOffsetDays).Scan(&sched.ID, &sched.CreatedAt)
	return sched, err
}

func (s *Store) GetSchedule(ctx context.Context, tenantID, scheduleID string) (Schedule, error) {
	var sched Schedule
	err := s.DB.QueryRow(ctx, `
    SELECT id, name, frequency, anchor_date, pay_date_offset_days, created_at
    FROM pay_schedules
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, scheduleID).Scan(&sched.ID, &sched.Name, &sched.Frequency, &sched.AnchorDate, &sched.PayDateOffsetDays, &sched.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Schedule{}, ErrScheduleNotFound
	}
	return sched, err
}

func (s *Store) ListSchedules(ctx context.Context, tenantID string) ([]Schedule, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, frequency, anchor_date, pay_date_offset_days, created_at
    FROM pay_schedules
    WHERE tenant_id = $1
    ORDER BY name
  `, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		var sched Schedule
		if err := rows.Scan(&sched.ID, &sched.Name, &sched.Frequency, &sched.AnchorDate, &sched.PayDateOffsetDays, &sched.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sched)
	}
	return out, rows.Err()
}

// InsertPeriods writes the generated periods, skipping any (schedule, year,
// number) tuple that already exists. Existing periods are never updated:
// they are immutable once generated.
func (s *Store) InsertPeriods(ctx context.Context, tenantID string, periods []Period) (int, error) {
	inserted := 0
	for _, p := range periods {
		tag, err := s.DB.Exec(ctx, `
      INSERT INTO pay_periods (tenant_id, schedule_id, period_number, year, start_date, end_date, pay_date)
      VALUES ($1, $2, $3, $4, $5, $6, $7)
      ON CONFLICT (tenant_id, schedule_id, year, period_number) DO NOTHING
    `, tenantID, p.ScheduleID, p.PeriodNumber, p.Year, p.StartDate, p.EndDate, p.PayDate)
		if err != nil {
			return inserted, err
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (s *Store) GetPeriod(ctx context.Context, tenantID, periodID string) (Period, error) {
	var p Period
	err := s.DB.QueryRow(ctx, `
    SELECT id, schedule_id, period_number, year, start_date, end_date, pay_date, created_at
    FROM pay_periods
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, periodID).Scan(&p.ID, &p.ScheduleID, &p.PeriodNumber, &p.Year, &p.StartDate, &p.EndDate, &p.PayDate, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, ErrPeriodNotFound
	}
	return p, err
}

func (s *Store) ListPeriods(ctx context.Context, tenantID, scheduleID string, year, limit, offset int) ([]Period, error) {
	query := `
    SELECT id, schedule_id, period_number, year, start_date, end_date, pay_date, created_at
    FROM pay_periods
    WHERE tenant_id = $1`
	args := []any{tenantID}
	if scheduleID != "" {
		args = append(args, scheduleID)
		query += ` AND schedule_id = $2`
	}
	if year > 0 {
		args = append(args, year)
		query += ` AND year = $` + itoa(len(args))
	}
	args = append(args, limit, offset)
	query += ` ORDER BY start_date LIMIT $` + itoa(len(args)-1) + ` OFFSET $` + itoa(len(args))

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Period
	for rows.Next() {
		var p Period
		if err := rows.Scan(&p.ID, &p.ScheduleID, &p.PeriodNumber, &p.Year, &p.StartDate, &p.EndDate, &p.PayDate, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func itoa(value int) string {
	return strconv.Itoa(value)
}
