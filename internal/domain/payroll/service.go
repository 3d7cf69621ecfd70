package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"payrun/internal/domain/auth"
	"payrun/internal/domain/compensation"
	"payrun/internal/domain/notifications"
	"payrun/internal/domain/payperiod"
	"payrun/internal/domain/tax"
	"payrun/internal/platform/metrics"
)

// Service orchestrates the run lifecycle: roster assembly, calculation,
// anomaly detection, aggregation and the lifecycle transitions.
type Service struct {
	Store   *Store
	Periods *payperiod.Store
	Comp    *compensation.Store
	Tax     *tax.Store
	Auth    *auth.Store
	Notify  *notifications.Service
	Metrics *metrics.Collector

	AnomalyPolicy   AnomalyPolicy
	CalcStaleAfter  time.Duration
	DefaultCurrency string
}

func NewService(store *Store, periods *payperiod.Store, comp *compensation.Store, taxStore *tax.Store, authStore *auth.Store, notify *notifications.Service, collector *metrics.Collector, policy AnomalyPolicy, staleAfter time.Duration, currency string) *Service {
	return &Service{
		Store:           store,
		Periods:         periods,
		Comp:            comp,
		Tax:             taxStore,
		Auth:            authStore,
		Notify:          notify,
		Metrics:         collector,
		AnomalyPolicy:   policy,
		CalcStaleAfter:  staleAfter,
		DefaultCurrency: currency,
	}
}

// CreateRun opens a draft run against an existing period. A zero runNumber
// asks for the next number in the period's sequence.
func (s *Service) CreateRun(ctx context.Context, tenantID, periodID, runType string, runNumber int, notes string) (Run, error) {
	if !ValidRunType(runType) {
		return Run{}, fmt.Errorf("%w: %q", ErrInvalidRunType, runType)
	}
	if _, err := s.Periods.GetPeriod(ctx, tenantID, periodID); err != nil {
		return Run{}, err
	}
	return s.Store.CreateRun(ctx, tenantID, periodID, runType, runNumber, notes, s.DefaultCurrency)
}

func (s *Service) GetRun(ctx context.Context, tenantID, runID string) (Run, error) {
	return s.Store.GetRun(ctx, tenantID, runID)
}

func (s *Service) ListRuns(ctx context.Context, tenantID, periodID, status string, limit, offset int) ([]Run, error) {
	return s.Store.ListRuns(ctx, tenantID, periodID, status, limit, offset)
}

func (s *Service) GetLines(ctx context.Context, tenantID, runID string) ([]Line, error) {
	if _, err := s.Store.GetRun(ctx, tenantID, runID); err != nil {
		return nil, err
	}
	return s.Store.GetLines(ctx, tenantID, runID)
}

// Calculate claims the run, computes every roster line, detects anomalies,
// aggregates totals and persists the result. The claim commits before the
// computation so concurrent calculators fail fast instead of queueing on a
// row lock; if computing or persisting fails the claim is released and the
// run's previous result stays intact.
func (s *Service) Calculate(ctx context.Context, tenantID, runID, userID string) (CalculationResult, error) {
	run, err := s.Store.ClaimCalculation(ctx, tenantID, runID, userID, s.CalcStaleAfter)
	if err != nil {
		if errors.Is(err, ErrCalculationInProgress) {
			s.Metrics.RecordCalcConflict()
		}
		return CalculationResult{}, err
	}

	lines, anomalies, err := s.computeLines(ctx, tenantID, run)
	if err != nil {
		if relErr := s.Store.ReleaseClaim(ctx, tenantID, runID); relErr != nil {
			slog.Warn("calculation claim release failed", "runId", runID, "err", relErr)
		}
		return CalculationResult{}, err
	}

	totals := Aggregate(lines)
	updated, err := s.Store.FinishCalculation(ctx, tenantID, run, lines, totals, len(anomalies), userID)
	if err != nil {
		// A lost claim means someone else owns the run now; anything else
		// (voided mid-flight, a write error) leaves our claim to clean up.
		if !errors.Is(err, ErrCalculationInProgress) {
			if relErr := s.Store.ReleaseClaim(ctx, tenantID, runID); relErr != nil {
				slog.Warn("calculation claim release failed", "runId", runID, "err", relErr)
			}
		}
		return CalculationResult{}, err
	}
	s.Metrics.RecordRunCalculated()

	if len(anomalies) > 0 {
		s.notifyApprovers(ctx, tenantID, notifications.TypeRunAnomalies,
			fmt.Sprintf("Payroll run %s #%d has %d anomalies", updated.RunType, updated.RunNumber, len(anomalies)),
			"Review the flagged lines before approving the run.")
	}
	return CalculationResult{Run: updated, Lines: lines, Anomalies: anomalies}, nil
}

func (s *Service) computeLines(ctx context.Context, tenantID string, run Run) ([]Line, []Anomaly, error) {
	period, err := s.Periods.GetPeriod(ctx, tenantID, run.PeriodID)
	if err != nil {
		return nil, nil, err
	}
	roster, err := s.Comp.Roster(ctx, tenantID, period.StartDate, period.EndDate)
	if err != nil {
		return nil, nil, err
	}
	adjustments, err := s.Comp.ListAdjustments(ctx, tenantID, run.PeriodID)
	if err != nil {
		return nil, nil, err
	}
	rulesByJurisdiction, err := s.Tax.RulesByJurisdiction(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	previousNets, err := s.Store.LatestPostedNets(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}

	adjustmentsByPerson := make(map[string][]compensation.Adjustment)
	for _, adj := range adjustments {
		adjustmentsByPerson[adj.PersonID] = append(adjustmentsByPerson[adj.PersonID], adj)
	}

	lines := make([]Line, 0, len(roster))
	var anomalies []Anomaly
	for _, entry := range roster {
		rules, known := rulesByJurisdiction[entry.Person.JurisdictionCode]
		line := CalculateLine(CalcInput{
			Person:      entry,
			Adjustments: adjustmentsByPerson[entry.Person.ID],
			Rules:       rules,
			RulesKnown:  known,
			Currency:    run.Currency,
		})
		line.RunID = run.ID

		var previousNet *decimal.Decimal
		if net, ok := previousNets[entry.Person.ID]; ok {
			previousNet = &net
		}
		anomalies = append(anomalies, DetectAnomalies(s.AnomalyPolicy, line, previousNet)...)
		lines = append(lines, line)
	}
	return lines, anomalies, nil
}

// Review parks a calculated run for inspection.
func (s *Service) Review(ctx context.Context, tenantID, runID string) (Run, error) {
	return s.Store.Review(ctx, tenantID, runID)
}

func (s *Service) Approve(ctx context.Context, tenantID, runID, userID string, acknowledgeAnomalies bool) (Run, error) {
	run, err := s.Store.Approve(ctx, tenantID, runID, userID, acknowledgeAnomalies)
	if err != nil {
		return Run{}, err
	}
	s.Metrics.RecordRunApproved()
	return run, nil
}

// Post writes the run's journal entry on the period's pay date and marks
// the run posted.
func (s *Service) Post(ctx context.Context, tenantID, runID, userID string) (Run, error) {
	run, err := s.Store.GetRun(ctx, tenantID, runID)
	if err != nil {
		return Run{}, err
	}
	period, err := s.Periods.GetPeriod(ctx, tenantID, run.PeriodID)
	if err != nil {
		return Run{}, err
	}
	posted, err := s.Store.Post(ctx, tenantID, runID, userID, period.PayDate)
	if err != nil {
		return Run{}, err
	}
	s.Metrics.RecordRunPosted()
	s.notifyApprovers(ctx, tenantID, notifications.TypeRunPosted,
		fmt.Sprintf("Payroll run %s #%d posted", posted.RunType, posted.RunNumber),
		fmt.Sprintf("Journal entry %s was created for pay date %s.", posted.JournalEntryID, period.PayDate.Format("2006-01-02")))
	return posted, nil
}

func (s *Service) Pay(ctx context.Context, tenantID, runID, userID string) (Run, error) {
	return s.Store.Pay(ctx, tenantID, runID, userID)
}

func (s *Service) Void(ctx context.Context, tenantID, runID, userID, reason string) (Run, error) {
	run, err := s.Store.Void(ctx, tenantID, runID, userID, reason)
	if err != nil {
		return Run{}, err
	}
	s.Metrics.RecordRunVoided()
	return run, nil
}

// RegisterRows flattens a run's lines for the register export.
func (s *Service) RegisterRows(ctx context.Context, tenantID, runID string) ([]RegisterRow, error) {
	lines, err := s.GetLines(ctx, tenantID, runID)
	if err != nil {
		return nil, err
	}
	rows := make([]RegisterRow, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, RegisterRow{
			PersonID:          line.PersonID,
			FullName:          line.FullName,
			IsIncluded:        line.IsIncluded,
			ExcludeReason:     line.ExcludeReason,
			GrossPay:          line.GrossPay,
			TotalTaxes:        line.TotalTaxes,
			TotalDeductions:   line.TotalDeductions,
			NetPay:            line.NetPay,
			TotalEmployerCost: line.TotalEmployerCost,
			Currency:          line.Currency,
		})
	}
	return rows, nil
}

func (s *Service) notifyApprovers(ctx context.Context, tenantID, ntype, title, body string) {
	userIDs, err := s.Auth.UserIDsWithPermission(ctx, tenantID, auth.PermRunsApprove)
	if err != nil {
		slog.Warn("approver lookup failed", "tenantId", tenantID, "err", err)
		return
	}
	for _, userID := range userIDs {
		if err := s.Notify.Create(ctx, tenantID, userID, ntype, title, body); err != nil {
			slog.Warn("notification create failed", "tenantId", tenantID, "userId", userID, "err", err)
		}
	}
}
