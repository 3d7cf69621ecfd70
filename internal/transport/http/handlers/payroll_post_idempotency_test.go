package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"payrun/internal/app/server"
)

func TestPayrollPostIdempotencyReplays(t *testing.T) {
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
	ensurePayee(t, client, ts.URL, token, suffix)
	scheduleID := createSchedule(t, client, ts.URL, token, fmt.Sprintf("Idem %d", suffix))
	periodID := generateFirstPeriod(t, client, ts.URL, token, scheduleID)
	runID := approvedRun(t, client, ts.URL, token, periodID)

	key := fmt.Sprintf("post-%d", suffix)
	headers := map[string]string{"Idempotency-Key": key}

	status, first := postJSONStatus(t, client, ts.URL+"/api/v1/payroll/runs/"+runID+"/post", token, nil, headers)
	if status != http.StatusOK {
		t.Fatalf("expected post to succeed, got %d: %+v", status, first.Error)
	}
	firstRun := decodeRun(t, first)
	if firstRun["status"] != "posted" {
		t.Fatalf("expected posted, got %v", firstRun["status"])
	}

	// Same key replays the stored response instead of failing on the
	// already-posted run.
	status, second := postJSONStatus(t, client, ts.URL+"/api/v1/payroll/runs/"+runID+"/post", token, nil, headers)
	if status != http.StatusOK {
		t.Fatalf("expected replay to succeed, got %d: %+v", status, second.Error)
	}
	secondRun := decodeRun(t, second)
	if secondRun["journalEntryId"] != firstRun["journalEntryId"] {
		t.Fatalf("expected replayed journal entry %v, got %v", firstRun["journalEntryId"], secondRun["journalEntryId"])
	}

	// Without the key the posted run rejects a second post.
	status, _ = postJSONStatus(t, client, ts.URL+"/api/v1/payroll/runs/"+runID+"/post", token, nil, nil)
	if status != http.StatusConflict {
		t.Fatalf("expected conflict reposting without key, got %d", status)
	}
}

func TestPayrollPostIdempotencyKeyConflict(t *testing.T) {
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
	ensurePayee(t, client, ts.URL, token, suffix)
	firstSchedule := createSchedule(t, client, ts.URL, token, fmt.Sprintf("Conflict A %d", suffix))
	firstPeriod := generateFirstPeriod(t, client, ts.URL, token, firstSchedule)
	firstRun := approvedRun(t, client, ts.URL, token, firstPeriod)

	secondSchedule := createSchedule(t, client, ts.URL, token, fmt.Sprintf("Conflict B %d", suffix))
	secondPeriod := generateFirstPeriod(t, client, ts.URL, token, secondSchedule)
	secondRun := approvedRun(t, client, ts.URL, token, secondPeriod)

	key := fmt.Sprintf("conflict-%d", suffix)
	headers := map[string]string{"Idempotency-Key": key}

	status, env := postJSONStatus(t, client, ts.URL+"/api/v1/payroll/runs/"+firstRun+"/post", token, nil, headers)
	if status != http.StatusOK {
		t.Fatalf("expected first post to succeed, got %d: %+v", status, env.Error)
	}

	// Reusing the key for a different run is a conflict, and the second run
	// stays approved.
	status, _ = postJSONStatus(t, client, ts.URL+"/api/v1/payroll/runs/"+secondRun+"/post", token, nil, headers)
	if status != http.StatusConflict {
		t.Fatalf("expected idempotency conflict, got %d", status)
	}

	runEnv := getJSON(t, client, ts.URL+"/api/v1/payroll/runs/"+secondRun, token)
	if got := envelopeStatus(t, runEnv); got != "approved" {
		t.Fatalf("expected second run to stay approved, got %s", got)
	}
}

func TestConcurrentCalculateYieldsSingleWinner(t *testing.T) {
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
	ensurePayee(t, client, ts.URL, token, suffix)
	scheduleID := createSchedule(t, client, ts.URL, token, fmt.Sprintf("Race %d", suffix))
	periodID := generateFirstPeriod(t, client, ts.URL, token, scheduleID)
	run := createRun(t, client, ts.URL, token, periodID)
	runID, _ := run["id"].(string)

	const workers = 4
	statuses := make([]int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/payroll/runs/"+runID+"/calculate", nil)
			if err != nil {
				return
			}
			req.Header.Set("Authorization", "Bearer "+token)
			resp, err := client.Do(req)
			if err != nil {
				return
			}
			defer resp.Body.Close()
			statuses[slot] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	winners, losers := 0, 0
	for _, code := range statuses {
		switch code {
		case http.StatusOK:
			winners++
		case http.StatusConflict:
			losers++
		default:
			t.Fatalf("unexpected status %d from concurrent calculate", code)
		}
	}
	if winners < 1 {
		t.Fatalf("expected at least one successful calculation, got statuses %v", statuses)
	}
	// Losers are allowed to retry later; the run must settle calculated.
	runEnv := getJSON(t, client, ts.URL+"/api/v1/payroll/runs/"+runID, token)
	if got := envelopeStatus(t, runEnv); got != "calculated" {
		t.Fatalf("expected run to settle calculated, got %s", got)
	}
}

// ensurePayee seeds one person with an active profile so runs have at
// least one line to post.
func ensurePayee(t *testing.T, client *http.Client, baseURL, token string, suffix int64) {
	t.Helper()
	code := fmt.Sprintf("YY-%d", suffix)
	createJurisdictionWithRules(t, client, baseURL, token, code)
	personID := createPerson(t, client, baseURL, token, fmt.Sprintf("payee-%d@test.local", suffix), code)
	createProfile(t, client, baseURL, token, personID, "2500")
}

// approvedRun walks a fresh run up to approved so post can be exercised.
func approvedRun(t *testing.T, client *http.Client, baseURL, token, periodID string) string {
	t.Helper()
	run := createRun(t, client, baseURL, token, periodID)
	runID, _ := run["id"].(string)

	calcEnv := postJSON(t, client, baseURL+"/api/v1/payroll/runs/"+runID+"/calculate", token, nil)
	var calc struct {
		Run struct {
			AnomalyCount int `json:"anomalyCount"`
		} `json:"run"`
	}
	if err := json.Unmarshal(calcEnv.Data, &calc); err != nil {
		t.Fatalf("failed to decode calculate response: %v", err)
	}

	postJSON(t, client, baseURL+"/api/v1/payroll/runs/"+runID+"/review", token, nil)
	body := map[string]any{}
	if calc.Run.AnomalyCount > 0 {
		body["acknowledgeAnomalies"] = true
	}
	postJSON(t, client, baseURL+"/api/v1/payroll/runs/"+runID+"/approve", token, body)
	return runID
}

func decodeRun(t *testing.T, env envelope) map[string]any {
	t.Helper()
	var run map[string]any
	if err := json.Unmarshal(env.Data, &run); err != nil {
		t.Fatalf("failed to decode run: %v", err)
	}
	return run
}
