package compensationhandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"payrun/internal/domain/audit"
	"payrun/internal/domain/auth"
	"payrun/internal/domain/compensation"
	"payrun/internal/transport/http/api"
	"payrun/internal/transport/http/middleware"
	"payrun/internal/transport/http/shared"
)

type Handler struct {
	Service *compensation.Service
	Perms   middleware.PermissionStore
	Audit   *audit.Service
}

func NewHandler(service *compensation.Service, perms middleware.PermissionStore, auditor *audit.Service) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditor}
}

type personPayload struct {
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Email            string `json:"email"`
	PersonType       string `json:"personType"`
	JurisdictionCode string `json:"jurisdictionCode"`
	BankAccount      string `json:"bankAccount"`
}

type profilePayload struct {
	PayType       string `json:"payType"`
	PayRate       string `json:"payRate"`
	Currency      string `json:"currency"`
	EffectiveFrom string `json:"effectiveFrom"`
	EffectiveTo   string `json:"effectiveTo"`
}

type componentPayload struct {
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Amount   string `json:"amount"`
	Percent  string `json:"percent"`
	Basis    string `json:"basis"`
	Position int    `json:"position"`
}

type adjustmentPayload struct {
	PersonID string `json:"personId"`
	Name     string `json:"name"`
	Amount   string `json:"amount"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/compensation", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermCompensationManage, h.Perms)).Post("/persons", h.handleCreatePerson)
		r.With(middleware.RequirePermission(auth.PermCompensationRead, h.Perms)).Get("/persons", h.handleListPersons)
		r.With(middleware.RequirePermission(auth.PermCompensationRead, h.Perms)).Get("/persons/{personID}", h.handleGetPerson)
		r.With(middleware.RequirePermission(auth.PermCompensationManage, h.Perms)).Post("/persons/{personID}/profiles", h.handleCreateProfile)
		r.With(middleware.RequirePermission(auth.PermCompensationRead, h.Perms)).Get("/persons/{personID}/profiles", h.handleListProfiles)
		r.With(middleware.RequirePermission(auth.PermCompensationManage, h.Perms)).Post("/profiles/{profileID}/components", h.handleCreateComponent)
		r.With(middleware.RequirePermission(auth.PermCompensationRead, h.Perms)).Get("/profiles/{profileID}/components", h.handleListComponents)
	})
	r.Route("/payroll/periods/{periodID}/adjustments", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermCompensationManage, h.Perms)).Post("/", h.handleCreateAdjustment)
		r.With(middleware.RequirePermission(auth.PermCompensationRead, h.Perms)).Get("/", h.handleListAdjustments)
	})
}

func (h *Handler) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload personPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("firstName", payload.FirstName, "is required")
	v.Required("lastName", payload.LastName, "is required")
	v.Required("email", payload.Email, "is required")
	v.Enum("personType", payload.PersonType, []string{compensation.PersonTypeEmployee, compensation.PersonTypeContractor}, "must be employee or contractor")
	v.Required("jurisdictionCode", payload.JurisdictionCode, "is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	person, err := h.Service.CreatePerson(r.Context(), user.TenantID, compensation.Person{
		FirstName:        payload.FirstName,
		LastName:         payload.LastName,
		Email:            payload.Email,
		PersonType:       payload.PersonType,
		JurisdictionCode: payload.JurisdictionCode,
		BankAccount:      payload.BankAccount,
	})
	if errors.Is(err, compensation.ErrInvalidInput) {
		api.Fail(w, http.StatusBadRequest, "invalid_person", "invalid person data", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "person_create_failed", "failed to create person", middleware.GetRequestID(r.Context()))
		return
	}

	h.record(r, user, "compensation.person.create", "person", person.ID, person)
	api.Created(w, person, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListPersons(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	page := shared.ParsePagination(r, 100, 500)
	persons, err := h.Service.ListPersons(r.Context(), user.TenantID, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "person_list_failed", "failed to list persons", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, persons, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	person, err := h.Service.GetPerson(r.Context(), user.TenantID, chi.URLParam(r, "personID"))
	if errors.Is(err, compensation.ErrPersonNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "person not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "person_get_failed", "failed to load person", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, person, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload profilePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Enum("payType", payload.PayType, []string{compensation.PayTypeSalaried, compensation.PayTypeHourly}, "must be salaried or hourly")
	rate, rateErr := decimal.NewFromString(payload.PayRate)
	if rateErr != nil || rate.IsNegative() {
		v.Add("payRate", "must be a non-negative decimal")
	}
	from, _ := v.Date("effectiveFrom", payload.EffectiveFrom)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	prof := compensation.Profile{
		PersonID:      chi.URLParam(r, "personID"),
		PayType:       payload.PayType,
		PayRate:       rate,
		Currency:      payload.Currency,
		EffectiveFrom: from,
	}
	if payload.EffectiveTo != "" {
		to, err := shared.ParseDate(payload.EffectiveTo)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_date", "effectiveTo must be YYYY-MM-DD", middleware.GetRequestID(r.Context()))
			return
		}
		prof.EffectiveTo = &to
	}

	created, err := h.Service.CreateProfile(r.Context(), user.TenantID, prof)
	if errors.Is(err, compensation.ErrPersonNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "person not found", middleware.GetRequestID(r.Context()))
		return
	}
	if errors.Is(err, compensation.ErrInvalidInput) {
		api.Fail(w, http.StatusBadRequest, "invalid_profile", "invalid profile data", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "profile_create_failed", "failed to create profile", middleware.GetRequestID(r.Context()))
		return
	}

	h.record(r, user, "compensation.profile.create", "compensation_profile", created.ID, created)
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	profiles, err := h.Service.ListProfiles(r.Context(), user.TenantID, chi.URLParam(r, "personID"))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "profile_list_failed", "failed to list profiles", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, profiles, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateComponent(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload componentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Enum("kind", payload.Kind, []string{compensation.ComponentKindEarning, compensation.ComponentKindDeduction}, "must be earning or deduction")
	v.Required("name", payload.Name, "is required")
	amount := decimal.Zero
	if payload.Amount != "" {
		parsed, err := decimal.NewFromString(payload.Amount)
		if err != nil || parsed.IsNegative() {
			v.Add("amount", "must be a non-negative decimal")
		} else {
			amount = parsed
		}
	}
	percent := decimal.Zero
	if payload.Percent != "" {
		parsed, err := decimal.NewFromString(payload.Percent)
		if err != nil || parsed.IsNegative() {
			v.Add("percent", "must be a non-negative decimal")
		} else {
			percent = parsed
		}
	}
	if payload.Basis != "" && payload.Basis != compensation.BasisGross && payload.Basis != compensation.BasisBase {
		v.Add("basis", "must be gross or base")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	comp, err := h.Service.CreateComponent(r.Context(), user.TenantID, compensation.Component{
		ProfileID: chi.URLParam(r, "profileID"),
		Kind:      payload.Kind,
		Name:      payload.Name,
		Amount:    amount,
		Percent:   percent,
		Basis:     payload.Basis,
		Position:  payload.Position,
	})
	if errors.Is(err, compensation.ErrProfileNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "compensation profile not found", middleware.GetRequestID(r.Context()))
		return
	}
	if errors.Is(err, compensation.ErrInvalidInput) {
		api.Fail(w, http.StatusBadRequest, "invalid_component", "invalid component data", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "component_create_failed", "failed to create component", middleware.GetRequestID(r.Context()))
		return
	}

	h.record(r, user, "compensation.component.create", "recurring_component", comp.ID, comp)
	api.Created(w, comp, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListComponents(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	components, err := h.Service.ListComponents(r.Context(), user.TenantID, chi.URLParam(r, "profileID"))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "component_list_failed", "failed to list components", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, components, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateAdjustment(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload adjustmentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("personId", payload.PersonID, "is required")
	v.Required("name", payload.Name, "is required")
	amount, amountErr := decimal.NewFromString(payload.Amount)
	if amountErr != nil || amount.IsZero() {
		v.Add("amount", "must be a non-zero decimal")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	adj, err := h.Service.CreateAdjustment(r.Context(), user.TenantID, compensation.Adjustment{
		PeriodID:  chi.URLParam(r, "periodID"),
		PersonID:  payload.PersonID,
		Name:      payload.Name,
		Amount:    amount,
		CreatedBy: user.UserID,
	})
	if errors.Is(err, compensation.ErrPersonNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "person not found", middleware.GetRequestID(r.Context()))
		return
	}
	if errors.Is(err, compensation.ErrInvalidInput) {
		api.Fail(w, http.StatusBadRequest, "invalid_adjustment", "invalid adjustment data", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "adjustment_create_failed", "failed to create adjustment", middleware.GetRequestID(r.Context()))
		return
	}

	h.record(r, user, "compensation.adjustment.create", "pay_adjustment", adj.ID, adj)
	api.Created(w, adj, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListAdjustments(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	adjustments, err := h.Service.ListAdjustments(r.Context(), user.TenantID, chi.URLParam(r, "periodID"))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "adjustment_list_failed", "failed to list adjustments", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, adjustments, middleware.GetRequestID(r.Context()))
}

func (h *Handler) record(r *http.Request, user auth.UserContext, action, entityType, entityID string, after any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, action, entityType, entityID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, after); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}
