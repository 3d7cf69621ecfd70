package payperiodhandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"payrun/internal/domain/audit"
	"payrun/internal/domain/auth"
	"payrun/internal/domain/payperiod"
	"payrun/internal/transport/http/api"
	"payrun/internal/transport/http/middleware"
	"payrun/internal/transport/http/shared"
)

type Handler struct {
	Service *payperiod.Service
	Perms   middleware.PermissionStore
	Audit   *audit.Service
}

func NewHandler(service *payperiod.Service, perms middleware.PermissionStore, auditor *audit.Service) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditor}
}

type schedulePayload struct {
	Name              string `json:"name"`
	Frequency         string `json:"frequency"`
	AnchorDate        string `json:"anchorDate"`
	PayDateOffsetDays int    `json:"payDateOffsetDays"`
}

type generatePayload struct {
	Year int `json:"year"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payroll", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermPeriodsRead, h.Perms)).Get("/schedules", h.handleListSchedules)
		r.With(middleware.RequirePermission(auth.PermPeriodsManage, h.Perms)).Post("/schedules", h.handleCreateSchedule)
		r.With(middleware.RequirePermission(auth.PermPeriodsManage, h.Perms)).Post("/schedules/{scheduleID}/generate", h.handleGenerate)
		r.With(middleware.RequirePermission(auth.PermPeriodsRead, h.Perms)).Get("/periods", h.handleListPeriods)
		r.With(middleware.RequirePermission(auth.PermPeriodsRead, h.Perms)).Get("/periods/{periodID}", h.handleGetPeriod)
	})
}

func (h *Handler) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload schedulePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("name", payload.Name, "is required")
	v.Required("frequency", payload.Frequency, "is required")
	v.Enum("frequency", payload.Frequency, []string{
		payperiod.FrequencyWeekly, payperiod.FrequencyBiweekly, payperiod.FrequencySemimonthly, payperiod.FrequencyMonthly,
	}, "must be weekly, biweekly, semimonthly or monthly")
	anchor, okDate := v.Date("anchorDate", payload.AnchorDate)
	if !okDate {
		anchor = time.Time{}
	}
	if payload.PayDateOffsetDays < 0 || payload.PayDateOffsetDays > 30 {
		v.Add("payDateOffsetDays", "must be between 0 and 30")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	sched, err := h.Service.CreateSchedule(r.Context(), user.TenantID, payperiod.Schedule{
		Name:              payload.Name,
		Frequency:         payload.Frequency,
		AnchorDate:        anchor,
		PayDateOffsetDays: payload.PayDateOffsetDays,
	})
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "schedule_create_failed", "failed to create schedule", middleware.GetRequestID(r.Context()))
		return
	}

	h.record(r, user, "payroll.schedule.create", "pay_schedule", sched.ID, sched)
	api.Created(w, sched, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	schedules, err := h.Service.ListSchedules(r.Context(), user.TenantID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "schedule_list_failed", "failed to list schedules", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, schedules, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload generatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if payload.Year < 2000 || payload.Year > 2200 {
		api.Fail(w, http.StatusBadRequest, "invalid_year", "year must be between 2000 and 2200", middleware.GetRequestID(r.Context()))
		return
	}

	scheduleID := chi.URLParam(r, "scheduleID")
	periods, inserted, err := h.Service.GenerateYear(r.Context(), user.TenantID, scheduleID, payload.Year)
	if errors.Is(err, payperiod.ErrScheduleNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "schedule not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "period_generate_failed", "failed to generate periods", middleware.GetRequestID(r.Context()))
		return
	}

	h.record(r, user, "payroll.periods.generate", "pay_schedule", scheduleID, map[string]any{"year": payload.Year, "inserted": inserted})
	api.Success(w, map[string]any{"periods": periods, "inserted": inserted}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	page := shared.ParsePagination(r, 100, 500)
	scheduleID := r.URL.Query().Get("scheduleId")
	year := 0
	if raw := r.URL.Query().Get("year"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			year = parsed
		}
	}

	periods, err := h.Service.ListPeriods(r.Context(), user.TenantID, scheduleID, year, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "period_list_failed", "failed to list periods", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, periods, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetPeriod(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	period, err := h.Service.GetPeriod(r.Context(), user.TenantID, chi.URLParam(r, "periodID"))
	if errors.Is(err, payperiod.ErrPeriodNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "pay period not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "period_get_failed", "failed to load period", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) record(r *http.Request, user auth.UserContext, action, entityType, entityID string, after any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, action, entityType, entityID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, after); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}
