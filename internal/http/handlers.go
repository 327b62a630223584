package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"tally/internal/core"
	"tally/internal/services"
	"tally/internal/store"
)

// Wire shapes. Amounts travel as integer cents; dates and months as their
// zero-padded keys.
type (
	monthJSON struct {
		Year  int    `json:"year"`
		Month int    `json:"month"`
		Key   string `json:"key"`
	}

	totalsJSON struct {
		IncomeCents  int64 `json:"income_cents"`
		ExpenseCents int64 `json:"expense_cents"`
		BalanceCents int64 `json:"balance_cents"`
	}

	transactionJSON struct {
		ID           string `json:"id"`
		Description  string `json:"description"`
		AmountCents  int64  `json:"amount_cents"`
		Type         string `json:"type"`
		Date         string `json:"date"`
		CategoryID   string `json:"category_id"`
		CategoryName string `json:"category_name"`
	}

	dayGroupJSON struct {
		Date         string            `json:"date"`
		Transactions []transactionJSON `json:"transactions"`
	}

	budgetRowJSON struct {
		CategoryID      string  `json:"category_id"`
		CategoryName    string  `json:"category_name"`
		SpentCents      int64   `json:"spent_cents"`
		BudgetCents     int64   `json:"budget_cents"`
		ProgressPercent float64 `json:"progress_percent"`
	}

	trendPointJSON struct {
		Month        string `json:"month"`
		IncomeCents  int64  `json:"income_cents"`
		ExpenseCents int64  `json:"expense_cents"`
	}

	categoryJSON struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Icon string `json:"icon"`
		Type string `json:"type"`
	}

	stateJSON struct {
		Month        monthJSON        `json:"month"`
		Totals       totalsJSON       `json:"totals"`
		Budgets      []budgetRowJSON  `json:"budgets"`
		Days         []dayGroupJSON   `json:"days"`
		Trend        []trendPointJSON `json:"trend"`
		Categories   []categoryJSON   `json:"categories"`
		Revision     uint64           `json:"revision"`
		StreamErrors []string         `json:"stream_errors,omitempty"`
	}

	errorJSON struct {
		Error string `json:"error"`
	}
)

func toMonthJSON(m core.Month) monthJSON {
	return monthJSON{Year: m.Year, Month: m.Month, Key: m.String()}
}

func toTotalsJSON(t core.Totals) totalsJSON {
	return totalsJSON{IncomeCents: t.Income.Cents, ExpenseCents: t.Expense.Cents, BalanceCents: t.Balance.Cents}
}

func toTransactionJSON(tx core.Transaction, ix core.CategoryIndex) transactionJSON {
	return transactionJSON{
		ID:           tx.ID,
		Description:  tx.Description,
		AmountCents:  tx.Amount.Cents,
		Type:         string(tx.Type),
		Date:         tx.Date.Key(),
		CategoryID:   tx.CategoryID,
		CategoryName: ix.Resolve(tx.CategoryID).Name,
	}
}

func toDayGroupsJSON(b core.DayBuckets, ix core.CategoryIndex) []dayGroupJSON {
	out := make([]dayGroupJSON, 0, len(b.Keys))
	for _, key := range b.Keys {
		group := dayGroupJSON{Date: key}
		for _, tx := range b.Groups[key] {
			group.Transactions = append(group.Transactions, toTransactionJSON(tx, ix))
		}
		out = append(out, group)
	}
	return out
}

func toBudgetRowsJSON(rows []core.BudgetStatus, ix core.CategoryIndex) []budgetRowJSON {
	out := make([]budgetRowJSON, 0, len(rows))
	for _, row := range rows {
		out = append(out, budgetRowJSON{
			CategoryID:      row.CategoryID,
			CategoryName:    ix.Resolve(row.CategoryID).Name,
			SpentCents:      row.Spent.Cents,
			BudgetCents:     row.BudgetAmount.Cents,
			ProgressPercent: row.ProgressPercent,
		})
	}
	return out
}

func toTrendJSON(points []core.TrendPoint) []trendPointJSON {
	out := make([]trendPointJSON, 0, len(points))
	for _, p := range points {
		out = append(out, trendPointJSON{
			Month:        p.Month.String(),
			IncomeCents:  p.Income.Cents,
			ExpenseCents: p.Expense.Cents,
		})
	}
	return out
}

func toCategoriesJSON(cats []core.Category) []categoryJSON {
	out := make([]categoryJSON, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryJSON{ID: c.ID, Name: c.Name, Icon: string(c.Icon), Type: string(c.Type)})
	}
	return out
}

func toStateJSON(st services.State) stateJSON {
	ix := core.NewCategoryIndex(st.Categories)
	out := stateJSON{
		Month:      toMonthJSON(st.Month),
		Totals:     toTotalsJSON(st.Totals),
		Budgets:    toBudgetRowsJSON(st.Budgets, ix),
		Days:       toDayGroupsJSON(st.Days, ix),
		Trend:      toTrendJSON(st.Trend),
		Categories: toCategoriesJSON(st.Categories),
		Revision:   st.Revision,
	}
	for collection, err := range st.StreamErrors {
		out.StreamErrors = append(out.StreamErrors, collection+": "+err.Error())
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes: validation failures are
// 422, unknown records 404, everything else is a failed write against the
// store, reported as 502.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case isValidationError(err):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusBadGateway {
		slog.ErrorContext(r.Context(), "mutation failed", "method", r.Method, "url", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorJSON{Error: err.Error()})
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		core.ErrInvalidAmount,
		core.ErrInvalidDate,
		core.ErrInvalidType,
		core.ErrInvalidMonth,
		core.ErrInvalidIcon,
		core.ErrEmptyDescription,
		core.ErrEmptyName,
		core.ErrMissingCategory,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// serveDerived answers a read endpoint from a single replica copy, caching
// the encoded body per (view, month, revision).
func (s *Server) serveDerived(w http.ResponseWriter, r *http.Request, view string, build func(services.State) any) {
	if !s.ledger.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, errorJSON{Error: "state not ready"})
		return
	}

	st := s.ledger.FullState()
	key := view + ":" + st.Month.String() + ":" + strconv.FormatUint(st.Revision, 10)
	if cached, ok := s.responseCache.Get(key); ok {
		w.Header().Set("Content-Type", cached.contentType)
		_, _ = w.Write(cached.body)
		return
	}

	body, err := json.Marshal(build(st))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "encode response"})
		return
	}
	body = append(body, '\n')
	s.responseCache.Set(key, cachedResponse{body: body, contentType: "application/json"})

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.serveDerived(w, r, "state", func(st services.State) any {
		return toStateJSON(st)
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.serveDerived(w, r, "summary", func(st services.State) any {
		return struct {
			Month  monthJSON  `json:"month"`
			Totals totalsJSON `json:"totals"`
		}{toMonthJSON(st.Month), toTotalsJSON(st.Totals)}
	})
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	s.serveDerived(w, r, "budgets", func(st services.State) any {
		return toBudgetRowsJSON(st.Budgets, core.NewCategoryIndex(st.Categories))
	})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	s.serveDerived(w, r, "transactions", func(st services.State) any {
		return toDayGroupsJSON(st.Days, core.NewCategoryIndex(st.Categories))
	})
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	s.serveDerived(w, r, "trend", func(st services.State) any {
		return toTrendJSON(st.Trend)
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	s.serveDerived(w, r, "categories", func(st services.State) any {
		return toCategoriesJSON(st.Categories)
	})
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
		Amount      string `json:"amount"`
		Type        string `json:"type"`
		Date        string `json:"date"`
		CategoryID  string `json:"category_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	var date core.Date
	if req.Date != "" {
		t, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorJSON{Error: core.ErrInvalidDate.Error()})
			return
		}
		date = core.Date{Time: t}
	}

	ref, err := s.gateway.AddTransaction(r.Context(), services.TransactionDraft{
		Description: req.Description,
		Amount:      req.Amount,
		Type:        core.TransactionType(req.Type),
		Date:        date,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		ID string `json:"id"`
	}{ref})
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	ref, err := s.gateway.CreateCategory(r.Context(), core.Category{
		Name: req.Name,
		Icon: core.Icon(req.Icon),
		Type: core.TransactionType(req.Type),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		ID string `json:"id"`
	}{ref})
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name *string `json:"name"`
		Icon *string `json:"icon"`
		Type *string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	patch := store.CategoryPatch{Name: req.Name}
	if req.Icon != nil {
		icon := core.Icon(*req.Icon)
		patch.Icon = &icon
	}
	if req.Type != nil {
		typ := core.TransactionType(*req.Type)
		patch.Type = &typ
	}

	if err := s.gateway.UpdateCategory(r.Context(), r.PathValue("id"), patch); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.gateway.DeleteCategory(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Year       int    `json:"year"`
		Month      int    `json:"month"`
		CategoryID string `json:"category_id"`
		Amount     string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	// Omitted year and month target the scoped month
	if req.Year == 0 && req.Month == 0 {
		cursor := s.ledger.Month()
		req.Year, req.Month = cursor.Year, cursor.Month
	}

	if err := s.gateway.SetBudget(r.Context(), req.Year, req.Month, req.CategoryID, req.Amount); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		ID string `json:"id"`
	}{core.BudgetKey(req.Year, req.Month, req.CategoryID)})
}

func (s *Server) handleAdvanceMonth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	month, err := s.ledger.AdvanceMonth(core.Direction(req.Direction))
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorJSON{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, toMonthJSON(month))
}
