package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"payrun/internal/app/server"
)

func TestPayloadValidationRejections(t *testing.T) {
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

	cases := []struct {
		name      string
		path      string
		body      map[string]any
		wantField string
	}{
		{
			name:      "schedule with unknown frequency",
			path:      "/api/v1/payroll/schedules",
			body:      map[string]any{"name": "Bad", "frequency": "fortnightly-ish", "anchorDate": "2026-01-01"},
			wantField: "frequency",
		},
		{
			name:      "schedule with malformed anchor date",
			path:      "/api/v1/payroll/schedules",
			body:      map[string]any{"name": "Bad", "frequency": "monthly", "anchorDate": "January 1st"},
			wantField: "anchorDate",
		},
		{
			name:      "person missing email",
			path:      "/api/v1/compensation/persons",
			body:      map[string]any{"firstName": "No", "lastName": "Mail", "personType": "employee"},
			wantField: "email",
		},
		{
			name:      "tax rule with unknown scope",
			path:      "/api/v1/tax/jurisdictions/XX/rules",
			body:      map[string]any{"name": "Bad", "scope": "levy", "ratePercent": "1"},
			wantField: "scope",
		},
		{
			name:      "tax rule with neither rate nor flat amount",
			path:      "/api/v1/tax/jurisdictions/XX/rules",
			body:      map[string]any{"name": "Bad", "scope": "employee_tax"},
			wantField: "ratePercent",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, env := postJSONStatus(t, client, ts.URL+tc.path, token, tc.body, nil)
			if status != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", status)
			}
			raw, err := json.Marshal(env.Error)
			if err != nil {
				t.Fatalf("failed to remarshal error: %v", err)
			}
			var failure struct {
				Code    string `json:"code"`
				Details struct {
					Fields []struct {
						Field string `json:"field"`
					} `json:"fields"`
				} `json:"details"`
			}
			if err := json.Unmarshal(raw, &failure); err != nil {
				t.Fatalf("failed to decode error: %v", err)
			}
			if failure.Code != "validation_error" {
				t.Fatalf("expected validation_error, got %q", failure.Code)
			}
			found := false
			for _, f := range failure.Details.Fields {
				if f.Field == tc.wantField {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected an issue on field %q, got %+v", tc.wantField, failure.Details.Fields)
			}
		})
	}
}

func TestVoidRequiresReason(t *testing.T) {
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

	status, _ := postJSONStatus(t, client, ts.URL+"/api/v1/payroll/runs/00000000-0000-0000-0000-000000000000/void", token, map[string]any{"reason": ""}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank reason, got %d", status)
	}
}

func TestCreateRunRejectsUnknownType(t *testing.T) {
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

	status, env := postJSONStatus(t, client, ts.URL+"/api/v1/payroll/periods/00000000-0000-0000-0000-000000000000/runs", token, map[string]any{"runType": "bonus-ish"}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown run type, got %d", status)
	}
	raw, _ := json.Marshal(env.Error)
	var failure struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(raw, &failure); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	if failure.Code != "invalid_run_type" {
		t.Fatalf("expected invalid_run_type, got %q", failure.Code)
	}
}
