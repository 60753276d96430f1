package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"finlink/internal/core"
	"finlink/internal/services"
	"finlink/internal/store"
)

func (s *Server) handleSyncItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	itemKey := r.PathValue("itemKey")
	if strings.TrimSpace(itemKey) == "" {
		writeError(w, http.StatusBadRequest, "missing item key")
		return
	}
	full := r.URL.Query().Get("full") == "true"

	if r.URL.Query().Get("async") == "true" {
		if s.publisher == nil {
			writeError(w, http.StatusBadRequest, "async sync is not configured")
			return
		}
		if err := s.publisher.PublishSyncRequest(ctx, itemKey, full); err != nil {
			slog.ErrorContext(ctx, "Failed publishing sync request", "item_key", itemKey, "error", err)
			writeError(w, http.StatusServiceUnavailable, "failed to enqueue sync request")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "item_key": itemKey})
		return
	}

	item, err := s.items.Item(ctx, itemKey)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown item")
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed resolving item", "item_key", itemKey, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to resolve item")
		return
	}

	if full {
		err = s.syncer.FullSync(ctx, item.ItemKey, item.AccessToken)
	} else {
		err = s.syncer.Sync(ctx, item.ItemKey, item.AccessToken)
	}

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "synced", "item_key": itemKey})
	case errors.Is(err, core.ErrReauthRequired):
		writeErrorCode(w, http.StatusConflict, "item needs re-link", "reauth_required")
	case errors.Is(err, services.ErrSyncIncomplete):
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "partial", "item_key": itemKey})
	case core.IsRetryable(err):
		slog.WarnContext(ctx, "Sync failed, retryable", "item_key", itemKey, "error", err)
		writeError(w, http.StatusServiceUnavailable, "sync temporarily unavailable")
	default:
		slog.ErrorContext(ctx, "Sync failed", "item_key", itemKey, "error", err)
		writeError(w, http.StatusInternalServerError, "sync failed")
	}
}

func (s *Server) handleBudgetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user_id")
		return
	}

	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.budgets.Summary(ctx, userID, filter)
	if err != nil {
		slog.ErrorContext(ctx, "Budget summary failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute summary")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user_id")
		return
	}

	budgets, err := s.budgets.List(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "Budget list failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list budgets")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"budgets": budgets})
}

func (s *Server) handleSaveBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var budget core.Budget
	if err := json.NewDecoder(r.Body).Decode(&budget); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.budgets.Save(ctx, budget); err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		slog.ErrorContext(ctx, "Budget save failed",
			"user_id", budget.UserID, "category_id", budget.CategoryID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save budget")
		return
	}

	writeJSON(w, http.StatusOK, budget)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	categoryID := strings.TrimSpace(r.URL.Query().Get("category_id"))
	if userID == "" || categoryID == "" {
		writeError(w, http.StatusBadRequest, "missing user_id or category_id")
		return
	}

	if err := s.budgets.Delete(ctx, userID, categoryID); err != nil {
		slog.ErrorContext(ctx, "Budget delete failed",
			"user_id", userID, "category_id", categoryID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete budget")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page := 0
	if v := strings.TrimSpace(r.URL.Query().Get("page")); v != "" {
		page, err = strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
	}
	pageSize := 0
	if v := strings.TrimSpace(r.URL.Query().Get("page_size")); v != "" {
		pageSize, err = strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid page_size")
			return
		}
	}

	total, txns, err := s.pager.Page(ctx, filter, page, pageSize)
	if err != nil {
		slog.ErrorContext(ctx, "Transaction listing failed", "page", page, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total":        total,
		"page":         page,
		"transactions": txns,
	})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	categories, err := s.taxonomy.Categories(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Category listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

// filterFromQuery builds a transaction filter from start_date, end_date and
// category query parameters.
func filterFromQuery(r *http.Request) (core.TransactionFilter, error) {
	var filter core.TransactionFilter

	if v := strings.TrimSpace(r.URL.Query().Get("start_date")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return core.TransactionFilter{}, errors.New("invalid start_date, want YYYY-MM-DD")
		}
		filter.StartDate = &d
	}
	if v := strings.TrimSpace(r.URL.Query().Get("end_date")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return core.TransactionFilter{}, errors.New("invalid end_date, want YYYY-MM-DD")
		}
		filter.EndDate = &d
	}
	filter.Category = strings.TrimSpace(r.URL.Query().Get("category"))

	return filter, nil
}

func isValidationError(err error) bool {
	return errors.Is(err, core.ErrEmptyUserID) ||
		errors.Is(err, core.ErrEmptyCategoryID) ||
		errors.Is(err, core.ErrInvalidBudgetMax)
}
