package payperiod

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrInvalidSchedule = errors.New("invalid schedule")

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) CreateSchedule(ctx context.Context, tenantID string, sched Schedule) (Schedule, error) {
	if strings.TrimSpace(sched.Name) == "" {
		return Schedule{}, ErrInvalidSchedule
	}
	if !ValidFrequency(sched.Frequency) {
		return Schedule{}, ErrInvalidSchedule
	}
	if sched.PayDateOffsetDays < 0 || sched.PayDateOffsetDays > 30 {
		return Schedule{}, ErrInvalidSchedule
	}
	if sched.AnchorDate.IsZero() {
		sched.AnchorDate = time.Date(time.Now().UTC().Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return s.store.CreateSchedule(ctx, tenantID, sched)
}

func (s *Service) ListSchedules(ctx context.Context, tenantID string) ([]Schedule, error) {
	return s.store.ListSchedules(ctx, tenantID)
}

// GenerateYear materializes the schedule's periods for a year. Periods that
// already exist are left untouched, so regeneration is safe.
func (s *Service) GenerateYear(ctx context.Context, tenantID, scheduleID string, year int) ([]Period, int, error) {
	sched, err := s.store.GetSchedule(ctx, tenantID, scheduleID)
	if err != nil {
		return nil, 0, err
	}

	generated, err := Generate(sched, year)
	if err != nil {
		return nil, 0, err
	}

	inserted, err := s.store.InsertPeriods(ctx, tenantID, generated)
	if err != nil {
		return nil, inserted, err
	}

	periods, err := s.store.ListPeriods(ctx, tenantID, scheduleID, year, len(generated)+1, 0)
	if err != nil {
		return nil, inserted, err
	}
	return periods, inserted, nil
}

func (s *Service) GetPeriod(ctx context.Context, tenantID, periodID string) (Period, error) {
	return s.store.GetPeriod(ctx, tenantID, periodID)
}

func (s *Service) ListPeriods(ctx context.Context, tenantID, scheduleID string, year, limit, offset int) ([]Period, error) {
	return s.store.ListPeriods(ctx, tenantID, scheduleID, year, limit, offset)
}

// EnsureUpcoming tops up generated periods for every schedule in the tenant
// so coverage extends at least leadDays past now. Invoked by the background
// period scan.
func EnsureUpcoming(ctx context.Context, db *pgxpool.Pool, tenantID string, leadDays int, now time.Time) (map[string]any, error) {
	store := NewStore(db)
	schedules, err := store.ListSchedules(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	horizon := now.AddDate(0, 0, leadDays)
	created := 0
	for _, sched := range schedules {
		years := []int{now.Year()}
		if horizon.Year() != now.Year() {
			years = append(years, horizon.Year())
		}
		for _, year := range years {
			generated, err := Generate(sched, year)
			if err != nil {
				return nil, err
			}
			n, err := store.InsertPeriods(ctx, tenantID, generated)
			if err != nil {
				return nil, err
			}
			created += n
		}
	}

	return map[string]any{
		"schedules":      len(schedules),
		"periodsCreated": created,
	}, nil
}
