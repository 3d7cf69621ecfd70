package handlers_test

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"payrun/internal/app/server"
	"payrun/internal/domain/payroll"
)

// A stale claim left by a dead calculator is reclaimable, and releasing the
// new claim must land on the status the run had before the dead claimant
// took it, not on draft.
func TestStaleClaimReclaimPreservesPriorStatus(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := testConfig(dbURL)
	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	defer app.Close()

	ts := httptest.NewServer(app.Router)
	defer ts.Close()

	client := ts.Client()
	token := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	ctx := context.Background()

	suffix := time.Now().UnixNano()
	scheduleID := createSchedule(t, client, ts.URL, token, fmt.Sprintf("Stale %d", suffix))
	periodID := generateFirstPeriod(t, client, ts.URL, token, scheduleID)
	run := createRun(t, client, ts.URL, token, periodID)
	runID, _ := run["id"].(string)
	tenantID := runTenantID(t, app, runID)

	// A calculator claimed the run from calculated and died an hour ago.
	if _, err := app.DB.Exec(ctx, `
    UPDATE payroll_runs
    SET status = 'calculating',
        calc_started_at = now() - interval '1 hour',
        calc_prior_status = 'calculated'
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, runID); err != nil {
		t.Fatalf("failed to stage stale claim: %v", err)
	}

	store := payroll.NewStore(app.DB)
	if _, err := store.ClaimCalculation(ctx, tenantID, runID, "", cfg.CalcStaleAfter); err != nil {
		t.Fatalf("expected stale claim to be reclaimable: %v", err)
	}
	if err := store.ReleaseClaim(ctx, tenantID, runID); err != nil {
		t.Fatalf("failed to release claim: %v", err)
	}

	if got := runStatus(t, app, runID); got != "calculated" {
		t.Fatalf("expected release to restore calculated, got %s", got)
	}
}

// Voiding a run while its calculation is in flight must make the finish fail
// as an invalid transition and leave the run void.
func TestFinishCalculationRejectsVoidedRun(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := testConfig(dbURL)
	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	defer app.Close()

	ts := httptest.NewServer(app.Router)
	defer ts.Close()

	client := ts.Client()
	token := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	ctx := context.Background()

	suffix := time.Now().UnixNano()
	scheduleID := createSchedule(t, client, ts.URL, token, fmt.Sprintf("MidVoid %d", suffix))
	periodID := generateFirstPeriod(t, client, ts.URL, token, scheduleID)
	created := createRun(t, client, ts.URL, token, periodID)
	runID, _ := created["id"].(string)
	tenantID := runTenantID(t, app, runID)

	store := payroll.NewStore(app.DB)
	claimed, err := store.ClaimCalculation(ctx, tenantID, runID, "", cfg.CalcStaleAfter)
	if err != nil {
		t.Fatalf("failed to claim calculation: %v", err)
	}

	voidEnv := postJSON(t, client, ts.URL+"/api/v1/payroll/runs/"+runID+"/void", token, map[string]any{"reason": "cancelled mid-calculation"})
	if status := envelopeStatus(t, voidEnv); status != "void" {
		t.Fatalf("expected void status, got %s", status)
	}

	_, err = store.FinishCalculation(ctx, tenantID, claimed, nil, payroll.RunTotals{}, 0, "")
	if !errors.Is(err, payroll.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition finishing a voided run, got %v", err)
	}

	// The stale claimant's cleanup must not resurrect the voided run.
	if err := store.ReleaseClaim(ctx, tenantID, runID); err != nil {
		t.Fatalf("failed to release claim: %v", err)
	}
	if got := runStatus(t, app, runID); got != "void" {
		t.Fatalf("expected run to stay void, got %s", got)
	}
}

func runTenantID(t *testing.T, app *server.App, runID string) string {
	t.Helper()
	var tenantID string
	if err := app.DB.QueryRow(context.Background(), `
    SELECT tenant_id FROM payroll_runs WHERE id = $1
  `, runID).Scan(&tenantID); err != nil {
		t.Fatalf("failed to look up tenant: %v", err)
	}
	return tenantID
}

func runStatus(t *testing.T, app *server.App, runID string) string {
	t.Helper()
	var status string
	if err := app.DB.QueryRow(context.Background(), `
    SELECT status FROM payroll_runs WHERE id = $1
  `, runID).Scan(&status); err != nil {
		t.Fatalf("failed to look up run status: %v", err)
	}
	return status
}
