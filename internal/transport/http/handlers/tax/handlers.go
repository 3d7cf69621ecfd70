package taxhandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"payrun/internal/domain/audit"
	"payrun/internal/domain/auth"
	"payrun/internal/domain/tax"
	"payrun/internal/transport/http/api"
	"payrun/internal/transport/http/middleware"
	"payrun/internal/transport/http/shared"
)

type Handler struct {
	Service *tax.Service
	Perms   middleware.PermissionStore
	Audit   *audit.Service
}

func NewHandler(service *tax.Service, perms middleware.PermissionStore, auditor *audit.Service) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditor}
}

type jurisdictionPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type rulePayload struct {
	Name        string `json:"name"`
	Scope       string `json:"scope"`
	RatePercent string `json:"ratePercent"`
	FlatAmount  string `json:"flatAmount"`
	Position    int    `json:"position"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/tax/jurisdictions", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermTaxManage, h.Perms)).Post("/", h.handleCreateJurisdiction)
		r.With(middleware.RequirePermission(auth.PermTaxRead, h.Perms)).Get("/", h.handleListJurisdictions)
		r.With(middleware.RequirePermission(auth.PermTaxManage, h.Perms)).Post("/{code}/rules", h.handleCreateRule)
		r.With(middleware.RequirePermission(auth.PermTaxRead, h.Perms)).Get("/{code}/rules", h.handleListRules)
	})
}

func (h *Handler) handleCreateJurisdiction(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload jurisdictionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("code", payload.Code, "is required")
	v.Required("name", payload.Name, "is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	j, err := h.Service.CreateJurisdiction(r.Context(), user.TenantID, tax.Jurisdiction{Code: payload.Code, Name: payload.Name})
	if errors.Is(err, tax.ErrInvalidInput) {
		api.Fail(w, http.StatusBadRequest, "invalid_jurisdiction", "invalid jurisdiction data", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "jurisdiction_create_failed", "failed to create jurisdiction", middleware.GetRequestID(r.Context()))
		return
	}

	h.record(r, user, "tax.jurisdiction.create", "tax_jurisdiction", j.ID, j)
	api.Created(w, j, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListJurisdictions(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	jurisdictions, err := h.Service.ListJurisdictions(r.Context(), user.TenantID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "jurisdiction_list_failed", "failed to list jurisdictions", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, jurisdictions, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload rulePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("name", payload.Name, "is required")
	v.Enum("scope", payload.Scope, []string{tax.ScopeEmployeeTax, tax.ScopeEmployerTax, tax.ScopeEmployerContribution}, "must be employee_tax, employer_tax or employer_contribution")
	rate := decimal.Zero
	if payload.RatePercent != "" {
		parsed, err := decimal.NewFromString(payload.RatePercent)
		if err != nil || parsed.IsNegative() {
			v.Add("ratePercent", "must be a non-negative decimal")
		} else {
			rate = parsed
		}
	}
	flat := decimal.Zero
	if payload.FlatAmount != "" {
		parsed, err := decimal.NewFromString(payload.FlatAmount)
		if err != nil || parsed.IsNegative() {
			v.Add("flatAmount", "must be a non-negative decimal")
		} else {
			flat = parsed
		}
	}
	if rate.IsZero() && flat.IsZero() {
		v.Add("ratePercent", "rule needs a rate or a flat amount")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	rule, err := h.Service.CreateRule(r.Context(), user.TenantID, tax.Rule{
		Jurisdiction: chi.URLParam(r, "code"),
		Name:         payload.Name,
		Scope:        payload.Scope,
		RatePercent:  rate,
		FlatAmount:   flat,
		Position:     payload.Position,
	})
	if errors.Is(err, tax.ErrJurisdictionNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "jurisdiction not found", middleware.GetRequestID(r.Context()))
		return
	}
	if errors.Is(err, tax.ErrInvalidInput) {
		api.Fail(w, http.StatusBadRequest, "invalid_rule", "invalid rule data", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "rule_create_failed", "failed to create rule", middleware.GetRequestID(r.Context()))
		return
	}

	h.record(r, user, "tax.rule.create", "tax_rule", rule.ID, rule)
	api.Created(w, rule, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListRules(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	rules, err := h.Service.ListRules(r.Context(), user.TenantID, chi.URLParam(r, "code"))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "rule_list_failed", "failed to list rules", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, rules, middleware.GetRequestID(r.Context()))
}

func (h *Handler) record(r *http.Request, user auth.UserContext, action, entityType, entityID string, after any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, action, entityType, entityID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, after); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}
