package ledgerhandler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"payrun/internal/domain/auth"
	"payrun/internal/domain/ledger"
	"payrun/internal/transport/http/api"
	"payrun/internal/transport/http/middleware"
	"payrun/internal/transport/http/shared"
)

type Handler struct {
	Store *ledger.Store
	Perms middleware.PermissionStore
}

func NewHandler(store *ledger.Store, perms middleware.PermissionStore) *Handler {
	return &Handler{Store: store, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/ledger/entries", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermLedgerRead, h.Perms)).Get("/", h.handleListEntries)
		r.With(middleware.RequirePermission(auth.PermLedgerRead, h.Perms)).Get("/{entryID}", h.handleGetEntry)
	})
}

func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	page := shared.ParsePagination(r, 100, 500)
	entries, err := h.Store.ListEntries(r.Context(), user.TenantID, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "entry_list_failed", "failed to list journal entries", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, entries, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	entry, err := h.Store.GetEntry(r.Context(), user.TenantID, chi.URLParam(r, "entryID"))
	if errors.Is(err, ledger.ErrEntryNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "journal entry not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "entry_get_failed", "failed to load journal entry", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, entry, middleware.GetRequestID(r.Context()))
}
