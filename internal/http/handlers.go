package http

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"zetafin/internal/accessor"
	"zetafin/internal/core"
	"zetafin/internal/export"
	"zetafin/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady runs every readiness check with a shared deadline.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := make(map[string]string, len(s.checks))
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			checks[name] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	NewJSONResponse().Status(code).Body(map[string]any{
		"status":    status,
		"mode":      s.acc.Mode(),
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides request and security counters in plain text.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.traceMiddleware.GetMetrics()
	rateMetrics := s.rateLimiter.GetMetrics()
	secMetrics := s.securityDetector.GetMetrics()
	st := s.acc.Status()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "http_requests_total %d\n", traceMetrics.TotalRequests)
	fmt.Fprintf(w, "http_last_response_time_microseconds %d\n", traceMetrics.LastResponseTime)
	fmt.Fprintf(w, "rate_limit_hits_total %d\n", rateMetrics.TotalHits)
	fmt.Fprintf(w, "rate_limit_active_clients %d\n", rateMetrics.ClientCount)
	fmt.Fprintf(w, "security_suspicious_requests_total %d\n", secMetrics.SuspiciousRequests)
	fmt.Fprintf(w, "security_blocked_requests_total %d\n", secMetrics.BlockedRequests)
	fmt.Fprintf(w, "data_transactions %d\n", st.Transactions)
	fmt.Fprintf(w, "data_categories %d\n", st.Categories)
	fmt.Fprintf(w, "data_stale %d\n", boolToInt(st.Stale))
	fmt.Fprintf(w, "uptime_seconds %d\n", int64(time.Since(s.started).Seconds()))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.acc.Status()).Write(w)
}

// load makes sure data is available, reloading when asked to. A failed
// reload on top of loaded data still serves that data, flagged stale.
func (s *Server) load(r *http.Request) error {
	if !queryBool(r.URL.Query(), "reload") {
		return s.acc.EnsureLoaded(r.Context())
	}
	_, err := s.acc.LoadAll(r.Context())
	if err != nil && s.acc.Status().Stale {
		s.reqLogger(r).LogError(r.Context(), "Reload failed, serving stale data", err, log.OpLoad, nil)
		return nil
	}
	return err
}

// transactionView is a transaction with its resolved category label.
type transactionView struct {
	core.Transaction
	Category core.CategoryLabel `json:"category"`
}

type transactionList struct {
	Transactions []transactionView `json:"transactions"`
	Stale        bool              `json:"stale"`
	Mode         accessor.Mode     `json:"mode"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	if err := s.load(r); err != nil {
		s.reqLogger(r).LogError(r.Context(), "Load failed", err, log.OpLoad, nil)
		ErrorFor(err).Write(w)
		return
	}
	idx := s.acc.Index()
	txs := s.acc.Transactions()
	views := make([]transactionView, 0, len(txs))
	for _, t := range txs {
		views = append(views, transactionView{Transaction: t, Category: idx.Label(t.CategoryID)})
	}
	NewJSONResponse().Body(transactionList{
		Transactions: views,
		Stale:        s.acc.Status().Stale,
		Mode:         s.acc.Mode(),
	}).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in core.TransactionInput
	if err := DecodeJSON(w, r, &in); err != nil {
		decodeError(err).Write(w)
		return
	}
	in.Description = sanitizeInput(in.Description)
	in.Notes = sanitizeInput(in.Notes)
	in.RecordedBy = sanitizeInput(in.RecordedBy)

	tx, err := s.acc.CreateTransaction(r.Context(), in)
	s.reqLogger(r).LogMutation(r.Context(), log.OpCreate, core.EntityTransaction, tx.ID.String(), err)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+tx.ID.String()).
		Body(transactionView{Transaction: tx, Category: s.acc.CategoryLabel(tx.CategoryID)}).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	var patch core.TransactionPatch
	if err := DecodeJSON(w, r, &patch); err != nil {
		decodeError(err).Write(w)
		return
	}
	patch.Description = sanitizePtr(patch.Description)
	patch.Notes = sanitizePtr(patch.Notes)
	patch.RecordedBy = sanitizePtr(patch.RecordedBy)

	tx, err := s.acc.UpdateTransaction(r.Context(), id, patch)
	s.reqLogger(r).LogMutation(r.Context(), log.OpUpdate, core.EntityTransaction, id.String(), err)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	NewJSONResponse().Body(transactionView{Transaction: tx, Category: s.acc.CategoryLabel(tx.CategoryID)}).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	err := s.acc.DeleteTransaction(r.Context(), id)
	s.reqLogger(r).LogMutation(r.Context(), log.OpDelete, core.EntityTransaction, id.String(), err)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleTransactionCategory resolves a transaction's category label,
// falling back to the default label for dangling references.
func (s *Server) handleTransactionCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.acc.EnsureLoaded(r.Context()); err != nil {
		ErrorFor(err).Write(w)
		return
	}
	id := pathID(r)
	tx, ok := s.acc.Transaction(id)
	if !ok {
		ErrorFor(core.NotFound(core.EntityTransaction, id)).Write(w)
		return
	}
	NewJSONResponse().Body(s.acc.CategoryLabel(tx.CategoryID)).Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	if err := s.load(r); err != nil {
		ErrorFor(err).Write(w)
		return
	}
	cats := s.acc.Categories()
	if !queryBool(r.URL.Query(), "all") {
		active := cats[:0]
		for _, c := range cats {
			if c.Active {
				active = append(active, c)
			}
		}
		cats = active
	}
	NewJSONResponse().Body(map[string]any{"categories": cats}).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in core.CategoryInput
	if err := DecodeJSON(w, r, &in); err != nil {
		decodeError(err).Write(w)
		return
	}
	in.Name = sanitizeInput(in.Name)

	c, err := s.acc.CreateCategory(r.Context(), in)
	s.reqLogger(r).LogMutation(r.Context(), log.OpCreate, core.EntityCategory, c.ID.String(), err)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).
		Header("Location", "/api/categories/"+c.ID.String()).
		Body(c).Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	var patch core.CategoryPatch
	if err := DecodeJSON(w, r, &patch); err != nil {
		decodeError(err).Write(w)
		return
	}
	patch.Name = sanitizePtr(patch.Name)

	c, err := s.acc.UpdateCategory(r.Context(), id, patch)
	s.reqLogger(r).LogMutation(r.Context(), log.OpUpdate, core.EntityCategory, id.String(), err)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	NewJSONResponse().Body(c).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	err := s.acc.DeleteCategory(r.Context(), id)
	s.reqLogger(r).LogMutation(r.Context(), log.OpDelete, core.EntityCategory, id.String(), err)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

type summaryResponse struct {
	From    core.Date             `json:"from"`
	To      core.Date             `json:"to"`
	GroupBy core.GroupBy          `json:"groupBy"`
	Items   []core.CategoryAmount `json:"items"`
	Total   core.Money            `json:"total"`
	Stale   bool                  `json:"stale"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	win, err := ParseWindowParams(q, s.now())
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	by, err := core.ParseGroupBy(q.Get("group_by"))
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}

	items, err := s.acc.Summary(r.Context(), win.From, win.To, by)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	var total core.Money
	for _, it := range items {
		total = total.Add(it.Amount)
	}
	NewJSONResponse().Body(summaryResponse{
		From: win.From, To: win.To, GroupBy: by,
		Items: items, Total: total, Stale: s.acc.Status().Stale,
	}).Write(w)
}

type balanceResponse struct {
	AsOf    core.Date           `json:"asOf"`
	Balance core.Money          `json:"balance"`
	Series  []core.BalancePoint `json:"series"`
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	win, err := ParseWindowParams(q, s.now())
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	asOf, err := ParseAsOf(q, s.now())
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	if err := s.acc.EnsureLoaded(r.Context()); err != nil {
		ErrorFor(err).Write(w)
		return
	}
	series := s.acc.BalanceSeries(win.From, win.To)
	if series == nil {
		series = []core.BalancePoint{}
	}
	NewJSONResponse().Body(balanceResponse{
		AsOf:    asOf,
		Balance: s.acc.RunningBalance(asOf),
		Series:  series,
	}).Write(w)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if err := s.acc.EnsureLoaded(r.Context()); err != nil {
		ErrorFor(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+s.exportName("csv")+`"`)
	if err := export.WriteCSV(w, s.acc.Transactions(), s.userID); err != nil {
		s.reqLogger(r).LogError(r.Context(), "CSV export failed", err, log.OpRead, nil)
	}
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	if err := s.acc.EnsureLoaded(r.Context()); err != nil {
		ErrorFor(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+s.exportName("json")+`"`)
	if err := export.WriteJSON(w, s.acc.Transactions(), s.acc.Index()); err != nil {
		s.reqLogger(r).LogError(r.Context(), "JSON export failed", err, log.OpRead, nil)
	}
}

func (s *Server) exportName(ext string) string {
	return "transacoes_" + core.DateOf(s.now()).String() + "." + ext
}

// decodeError maps body decoding failures: field validation errors are
// 422, malformed JSON is 400.
func decodeError(err error) *JSONResponseBuilder {
	if StatusForError(err) == http.StatusUnprocessableEntity {
		return ErrorFor(err)
	}
	return BadRequestError(err.Error())
}
