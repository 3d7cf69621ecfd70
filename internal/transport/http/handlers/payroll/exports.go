package payrollhandler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"payrun/internal/domain/ledger"
	"payrun/internal/transport/http/api"
	"payrun/internal/transport/http/middleware"
)

func (h *Handler) handleExportRegister(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	runID := chi.URLParam(r, "runID")
	rows, err := h.Service.RegisterRows(r.Context(), user.TenantID, runID)
	if err != nil {
		h.failRunError(w, r, err, "register_export_failed", "failed to export register")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=payroll-register-%s.csv", runID))
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"person_id", "full_name", "included", "exclude_reason", "gross_pay", "total_taxes", "total_deductions", "net_pay", "total_employer_cost", "currency"}); err != nil {
		slog.Warn("register export header failed", "err", err)
	}
	for _, row := range rows {
		record := []string{
			row.PersonID,
			row.FullName,
			fmt.Sprint(row.IsIncluded),
			row.ExcludeReason,
			row.GrossPay.StringFixed(2),
			row.TotalTaxes.StringFixed(2),
			row.TotalDeductions.StringFixed(2),
			row.NetPay.StringFixed(2),
			row.TotalEmployerCost.StringFixed(2),
			row.Currency,
		}
		if err := writer.Write(record); err != nil {
			slog.Warn("register export row failed", "err", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		slog.Warn("register export flush failed", "err", err)
	}
}

func (h *Handler) handleExportJournal(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	runID := chi.URLParam(r, "runID")
	run, err := h.Service.GetRun(r.Context(), user.TenantID, runID)
	if err != nil {
		h.failRunError(w, r, err, "journal_export_failed", "failed to export journal")
		return
	}
	if run.JournalEntryID == "" {
		api.Fail(w, http.StatusConflict, "run_not_posted", "run must be posted before its journal entry is available", middleware.GetRequestID(r.Context()))
		return
	}

	entry, err := h.Ledger.GetEntry(r.Context(), user.TenantID, run.JournalEntryID)
	if err != nil {
		if errors.Is(err, ledger.ErrEntryNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "journal entry not found", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "journal_export_failed", "failed to export journal", middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=journal-%s.csv", runID))
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"entry_id", "entry_date", "account_code", "account_name", "debit", "credit", "currency", "memo"}); err != nil {
		slog.Warn("journal export header failed", "err", err)
	}
	for _, line := range entry.Lines {
		record := []string{
			entry.ID,
			entry.EntryDate.Format("2006-01-02"),
			line.AccountCode,
			line.AccountName,
			line.Debit.StringFixed(2),
			line.Credit.StringFixed(2),
			entry.Currency,
			entry.Memo,
		}
		if err := writer.Write(record); err != nil {
			slog.Warn("journal export row failed", "err", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		slog.Warn("journal export flush failed", "err", err)
	}
}
