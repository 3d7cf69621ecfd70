package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"payrun/internal/app/server"
)

func TestCreateRunWithExplicitNumber(t *testing.T) {
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

	suffix := time.Now().UnixNano()
	scheduleID := createSchedule(t, client, ts.URL, token, fmt.Sprintf("Numbering %d", suffix))
	periodID := generateFirstPeriod(t, client, ts.URL, token, scheduleID)
	runsURL := ts.URL + "/api/v1/payroll/periods/" + periodID + "/runs"

	first := createRun(t, client, ts.URL, token, periodID)
	if first["runNumber"] != float64(1) {
		t.Fatalf("expected first auto-numbered run to be 1, got %v", first["runNumber"])
	}

	// Asking for a number that is already taken is a conflict, not a retry.
	status, env := postJSONStatus(t, client, runsURL, token, map[string]any{
		"runType": "regular", "runNumber": 1,
	}, nil)
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for taken run number, got %d: %+v", status, env.Error)
	}
	if code := errorCode(t, env); code != "duplicate_run" {
		t.Fatalf("expected duplicate_run, got %q", code)
	}

	// An explicit number ahead of the sequence is taken as given.
	status, env = postJSONStatus(t, client, runsURL, token, map[string]any{
		"runType": "regular", "runNumber": 5,
	}, nil)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 for explicit run number, got %d: %+v", status, env.Error)
	}
	var explicit map[string]any
	if err := json.Unmarshal(env.Data, &explicit); err != nil {
		t.Fatalf("failed to decode run response: %v", err)
	}
	if explicit["runNumber"] != float64(5) {
		t.Fatalf("expected run number 5, got %v", explicit["runNumber"])
	}

	// A replayed create with the same explicit number hits the same slot.
	status, env = postJSONStatus(t, client, runsURL, token, map[string]any{
		"runType": "regular", "runNumber": 5,
	}, nil)
	if status != http.StatusConflict {
		t.Fatalf("expected 409 replaying explicit run number, got %d", status)
	}
	if code := errorCode(t, env); code != "duplicate_run" {
		t.Fatalf("expected duplicate_run on replay, got %q", code)
	}

	status, env = postJSONStatus(t, client, runsURL, token, map[string]any{
		"runType": "regular", "runNumber": -1,
	}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative run number, got %d", status)
	}
	if code := errorCode(t, env); code != "validation_error" {
		t.Fatalf("expected validation_error, got %q", code)
	}
}

func errorCode(t *testing.T, env envelope) string {
	t.Helper()
	raw, err := json.Marshal(env.Error)
	if err != nil {
		t.Fatalf("failed to remarshal error: %v", err)
	}
	var failure struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(raw, &failure); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	return failure.Code
}
