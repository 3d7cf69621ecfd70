package payrollhandler

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"payrun/internal/domain/audit"
	"payrun/internal/domain/auth"
	"payrun/internal/domain/ledger"
	"payrun/internal/domain/payperiod"
	"payrun/internal/domain/payroll"
	"payrun/internal/transport/http/api"
	"payrun/internal/transport/http/middleware"
	"payrun/internal/transport/http/shared"
)

type Handler struct {
	Service     *payroll.Service
	Ledger      *ledger.Store
	Perms       middleware.PermissionStore
	Idempotency *middleware.IdempotencyStore
	Audit       *audit.Service
}

func NewHandler(service *payroll.Service, ledgerStore *ledger.Store, perms middleware.PermissionStore, idem *middleware.IdempotencyStore, auditor *audit.Service) *Handler {
	return &Handler{Service: service, Ledger: ledgerStore, Perms: perms, Idempotency: idem, Audit: auditor}
}

type createRunPayload struct {
	RunType   string `json:"runType"`
	RunNumber int    `json:"runNumber"`
	Notes     string `json:"notes"`
}

type approvePayload struct {
	AcknowledgeAnomalies bool `json:"acknowledgeAnomalies"`
}

type voidPayload struct {
	Reason string `json:"reason"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequirePermission(auth.PermRunsManage, h.Perms)).
		Post("/payroll/periods/{periodID}/runs", h.handleCreateRun)
	r.With(middleware.RequirePermission(auth.PermRunsRead, h.Perms)).
		Get("/payroll/periods/{periodID}/runs", h.handleListPeriodRuns)

	r.Route("/payroll/runs", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermRunsRead, h.Perms)).Get("/", h.handleListRuns)
		r.With(middleware.RequirePermission(auth.PermRunsRead, h.Perms)).Get("/{runID}", h.handleGetRun)
		r.With(middleware.RequirePermission(auth.PermRunsRead, h.Perms)).Get("/{runID}/lines", h.handleGetLines)
		r.With(middleware.RequirePermission(auth.PermRunsCalculate, h.Perms)).Post("/{runID}/calculate", h.handleCalculate)
		r.With(middleware.RequirePermission(auth.PermRunsManage, h.Perms)).Post("/{runID}/review", h.handleReview)
		r.With(middleware.RequirePermission(auth.PermRunsApprove, h.Perms)).Post("/{runID}/approve", h.handleApprove)
		r.With(middleware.RequirePermission(auth.PermRunsPost, h.Perms)).Post("/{runID}/post", h.handlePost)
		r.With(middleware.RequirePermission(auth.PermRunsPost, h.Perms)).Post("/{runID}/pay", h.handlePay)
		r.With(middleware.RequirePermission(auth.PermRunsManage, h.Perms)).Post("/{runID}/void", h.handleVoid)
		r.With(middleware.RequirePermission(auth.PermRunsRead, h.Perms)).Get("/{runID}/export/register", h.handleExportRegister)
		r.With(middleware.RequirePermission(auth.PermRunsRead, h.Perms)).Get("/{runID}/export/journal", h.handleExportJournal)
		r.With(middleware.RequirePermission(auth.PermRunsRead, h.Perms)).Get("/{runID}/lines/{lineID}/payslip", h.handlePayslip)
	})
}

func (h *Handler) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload createRunPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if payload.RunType == "" {
		payload.RunType = payroll.RunTypeRegular
	}
	if payload.RunNumber < 0 {
		v := shared.NewValidator()
		v.Add("runNumber", "must be a positive sequence number")
		v.Reject(w, middleware.GetRequestID(r.Context()))
		return
	}

	run, err := h.Service.CreateRun(r.Context(), user.TenantID, chi.URLParam(r, "periodID"), payload.RunType, payload.RunNumber, payload.Notes)
	if err != nil {
		h.failRunError(w, r, err, "run_create_failed", "failed to create run")
		return
	}

	h.record(r, user, "payroll.run.create", run.ID, run)
	api.Created(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	status := r.URL.Query().Get("status")
	if status != "" && !payroll.ValidStatus(status) {
		api.Fail(w, http.StatusBadRequest, "invalid_status", "unknown run status", middleware.GetRequestID(r.Context()))
		return
	}

	page := shared.ParsePagination(r, 100, 500)
	runs, err := h.Service.ListRuns(r.Context(), user.TenantID, r.URL.Query().Get("periodId"), status, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "run_list_failed", "failed to list runs", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, runs, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListPeriodRuns(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	page := shared.ParsePagination(r, 100, 500)
	runs, err := h.Service.ListRuns(r.Context(), user.TenantID, chi.URLParam(r, "periodID"), "", page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "run_list_failed", "failed to list runs", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, runs, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	run, err := h.Service.GetRun(r.Context(), user.TenantID, chi.URLParam(r, "runID"))
	if err != nil {
		h.failRunError(w, r, err, "run_get_failed", "failed to load run")
		return
	}
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetLines(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	lines, err := h.Service.GetLines(r.Context(), user.TenantID, chi.URLParam(r, "runID"))
	if err != nil {
		h.failRunError(w, r, err, "line_list_failed", "failed to load lines")
		return
	}
	api.Success(w, lines, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	result, err := h.Service.Calculate(r.Context(), user.TenantID, chi.URLParam(r, "runID"), user.UserID)
	if err != nil {
		h.failRunError(w, r, err, "run_calculate_failed", "failed to calculate run")
		return
	}

	h.record(r, user, "payroll.run.calculate", result.Run.ID, result.Run)
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	run, err := h.Service.Review(r.Context(), user.TenantID, chi.URLParam(r, "runID"))
	if err != nil {
		h.failRunError(w, r, err, "run_review_failed", "failed to move run to review")
		return
	}

	h.record(r, user, "payroll.run.review", run.ID, run)
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload approvePayload
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
			return
		}
	}

	run, err := h.Service.Approve(r.Context(), user.TenantID, chi.URLParam(r, "runID"), user.UserID, payload.AcknowledgeAnomalies)
	if err != nil {
		h.failRunError(w, r, err, "run_approve_failed", "failed to approve run")
		return
	}

	h.record(r, user, "payroll.run.approve", run.ID, run)
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	runID := chi.URLParam(r, "runID")
	const endpoint = "payroll.runs.post"
	idemKey := r.Header.Get("Idempotency-Key")
	requestHash := middleware.RequestHash([]byte(runID))

	if idemKey != "" {
		stored, found, err := h.Idempotency.Check(r.Context(), user.TenantID, user.UserID, endpoint, idemKey, requestHash)
		if errors.Is(err, middleware.ErrIdempotencyConflict) {
			api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used for a different request", middleware.GetRequestID(r.Context()))
			return
		}
		if err != nil {
			api.Fail(w, http.StatusInternalServerError, "run_post_failed", "failed to post run", middleware.GetRequestID(r.Context()))
			return
		}
		if found {
			api.Success(w, json.RawMessage(stored), middleware.GetRequestID(r.Context()))
			return
		}
	}

	run, err := h.Service.Post(r.Context(), user.TenantID, runID, user.UserID)
	if err != nil {
		h.failRunError(w, r, err, "run_post_failed", "failed to post run")
		return
	}

	if idemKey != "" {
		if body, marshalErr := json.Marshal(run); marshalErr == nil {
			if err := h.Idempotency.Save(r.Context(), user.TenantID, user.UserID, endpoint, idemKey, requestHash, body); err != nil {
				slog.Warn("idempotency save failed", "endpoint", endpoint, "err", err)
			}
		}
	}

	h.record(r, user, "payroll.run.post", run.ID, run)
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePay(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	run, err := h.Service.Pay(r.Context(), user.TenantID, chi.URLParam(r, "runID"), user.UserID)
	if err != nil {
		h.failRunError(w, r, err, "run_pay_failed", "failed to mark run paid")
		return
	}

	h.record(r, user, "payroll.run.pay", run.ID, run)
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleVoid(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload voidPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if payload.Reason == "" {
		api.Fail(w, http.StatusBadRequest, "reason_required", "a void reason is required", middleware.GetRequestID(r.Context()))
		return
	}

	run, err := h.Service.Void(r.Context(), user.TenantID, chi.URLParam(r, "runID"), user.UserID, payload.Reason)
	if err != nil {
		h.failRunError(w, r, err, "run_void_failed", "failed to void run")
		return
	}

	h.record(r, user, "payroll.run.void", run.ID, map[string]any{"reason": payload.Reason, "status": run.Status})
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePayslip(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	// Render into a buffer first so failures can still produce a JSON error.
	var buf bytes.Buffer
	err := h.Service.RenderPayslip(r.Context(), &buf, user.TenantID, chi.URLParam(r, "runID"), chi.URLParam(r, "lineID"))
	if err != nil {
		h.failRunError(w, r, err, "payslip_failed", "failed to render payslip")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=payslip.pdf")
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("payslip write failed", "err", err)
	}
}

func (h *Handler) failRunError(w http.ResponseWriter, r *http.Request, err error, code, message string) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, payroll.ErrRunNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "payroll run not found", requestID)
	case errors.Is(err, payroll.ErrLineNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "payroll line not found", requestID)
	case errors.Is(err, payperiod.ErrPeriodNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "pay period not found", requestID)
	case errors.Is(err, payroll.ErrInvalidRunType):
		api.Fail(w, http.StatusBadRequest, "invalid_run_type", "unknown run type", requestID)
	case errors.Is(err, payroll.ErrDuplicateRun):
		api.Fail(w, http.StatusConflict, "duplicate_run", "a run with this type and number already exists", requestID)
	case errors.Is(err, payroll.ErrCalculationInProgress):
		api.Fail(w, http.StatusConflict, "calculation_in_progress", "a calculation for this run is already in progress", requestID)
	case errors.Is(err, payroll.ErrAnomaliesUnacknowledged):
		api.Fail(w, http.StatusConflict, "anomalies_unacknowledged", "run anomalies must be acknowledged before approval", requestID)
	case errors.Is(err, payroll.ErrPeriodAlreadyPosted):
		api.Fail(w, http.StatusConflict, "period_already_posted", "another run for this period has already been posted", requestID)
	case errors.Is(err, payroll.ErrInvalidTransition):
		api.Fail(w, http.StatusConflict, "invalid_transition", err.Error(), requestID)
	case errors.Is(err, payroll.ErrRunNotPosted):
		api.Fail(w, http.StatusConflict, "run_not_posted", "run must be posted before payslips are available", requestID)
	default:
		slog.Warn("payroll handler error", "code", code, "err", err)
		api.Fail(w, http.StatusInternalServerError, code, message, requestID)
	}
}

func (h *Handler) record(r *http.Request, user auth.UserContext, action, runID string, after any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, action, "payroll_run", runID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, after); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}
