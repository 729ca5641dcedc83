package apiv1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"subscription-radar/internal/domain"
	"subscription-radar/internal/domain/model"
	"subscription-radar/internal/infra/api"
	"subscription-radar/internal/usecase"
)

const dateLayout = "2006-01-02"

// RateLimiter guards the recompute endpoint; a nil limiter disables limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type RateLimitConfig struct {
	Limit  int
	Window time.Duration
	KeyFn  func(userID string) string
}

// Server carries the v1 REST surface: subscriptions (including on-demand
// recompute), accounts, transactions and notifications.
type Server struct {
	subUC     *usecase.SubscriptionUseCase
	notifUC   *usecase.NotificationUseCase
	accountUC *usecase.AccountUseCase
	txnUC     *usecase.TransactionUseCase
	limiter   RateLimiter
	rateCfg   RateLimitConfig
	log       *zerolog.Logger
}

func NewServer(subUC *usecase.SubscriptionUseCase, notifUC *usecase.NotificationUseCase, accountUC *usecase.AccountUseCase, txnUC *usecase.TransactionUseCase, limiter RateLimiter, rateCfg RateLimitConfig, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "apiv1").Logger()
	if rateCfg.Limit <= 0 {
		rateCfg.Limit = 5
	}
	if rateCfg.Window <= 0 {
		rateCfg.Window = time.Minute
	}
	return &Server{
		subUC:     subUC,
		notifUC:   notifUC,
		accountUC: accountUC,
		txnUC:     txnUC,
		limiter:   limiter,
		rateCfg:   rateCfg,
		log:       &l,
	}
}

// Register mounts all v1 routes on the router. Callers are expected to have
// wrapped the router with api.RequireAuth.
func (s *Server) Register(r chi.Router) {
	r.Route("/subscriptions", func(r chi.Router) {
		r.Post("/", s.createSubscription)
		r.Get("/", s.listSubscriptions)
		r.Get("/upcoming", s.listUpcoming)
		r.Post("/recompute", s.recompute)
		r.Get("/{id}", s.getSubscription)
		r.Patch("/{id}", s.updateSubscription)
		r.Delete("/{id}", s.deleteSubscription)
	})
	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", s.createAccount)
		r.Get("/", s.listAccounts)
	})
	r.Route("/transactions", func(r chi.Router) {
		r.Post("/", s.createTransaction)
		r.Get("/", s.listTransactions)
	})
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", s.listNotifications)
		r.Patch("/{id}/read", s.markNotificationRead)
	})
}

// ---------------- subscriptions ----------------

type subscriptionRequest struct {
	Merchant            string  `json:"merchant"`
	Amount              float64 `json:"amount"`
	Currency            *string `json:"currency"`
	Cadence             string  `json:"cadence"`
	CadenceDays         int     `json:"cadence_days"`
	LastTransactionDate *string `json:"last_transaction_date"`
	NextPaymentDate     *string `json:"next_payment_date"`
	Status              string  `json:"status"`
}

func (s *Server) createSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	last, err := parseDatePtr(req.LastTransactionDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid last_transaction_date")
		return
	}
	next, err := parseDatePtr(req.NextPaymentDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid next_payment_date")
		return
	}

	sub, err := s.subUC.Create(r.Context(), api.UserID(r), usecase.CreateSubscriptionInput{
		Merchant:            req.Merchant,
		Amount:              req.Amount,
		Currency:            req.Currency,
		Cadence:             model.Cadence(req.Cadence),
		CadenceDays:         req.CadenceDays,
		LastTransactionDate: last,
		NextPaymentDate:     next,
		Status:              model.SubscriptionStatus(req.Status),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusCreated, toSubscriptionDTO(sub))
}

func (s *Server) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.subUC.List(r.Context(), api.UserID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, toSubscriptionDTOs(subs))
}

func (s *Server) listUpcoming(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "days must be a positive integer")
			return
		}
		days = n
	}
	subs, err := s.subUC.Upcoming(r.Context(), api.UserID(r), days)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, toSubscriptionDTOs(subs))
}

type recomputeRequest struct {
	LookbackDays   int `json:"lookback_days"`
	MinOccurrences int `json:"min_occurrences"`
}

type recomputeResponse struct {
	Detected   int                `json:"detected"`
	Upserted   int                `json:"upserted"`
	Candidates []*subscriptionDTO `json:"candidates"`
	Rejected   []rejectedDTO      `json:"rejected"`
}

type rejectedDTO struct {
	Merchant    string  `json:"merchant"`
	Amount      float64 `json:"amount"`
	Occurrences int     `json:"occurrences"`
	Reason      string  `json:"reason"`
}

func (s *Server) recompute(w http.ResponseWriter, r *http.Request) {
	userID := api.UserID(r)

	if s.limiter != nil {
		key := userID
		if s.rateCfg.KeyFn != nil {
			key = s.rateCfg.KeyFn(userID)
		}
		ok, err := s.limiter.Allow(r.Context(), key, s.rateCfg.Limit, s.rateCfg.Window)
		if err == nil && !ok {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many recompute requests")
			return
		}
	}

	var req recomputeRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // empty body is fine
	}

	res, err := s.subUC.Recompute(r.Context(), userID, usecase.DetectionOptions{
		LookbackDays:   req.LookbackDays,
		MinOccurrences: req.MinOccurrences,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := recomputeResponse{
		Detected:   res.Detected,
		Upserted:   res.Upserted,
		Candidates: toSubscriptionDTOs(res.Candidates),
		Rejected:   make([]rejectedDTO, 0, len(res.Rejected)),
	}
	for _, rej := range res.Rejected {
		out.Rejected = append(out.Rejected, rejectedDTO{
			Merchant:    rej.Merchant,
			Amount:      rej.Amount,
			Occurrences: rej.Occurrences,
			Reason:      string(rej.Reason),
		})
	}
	writeData(w, http.StatusOK, out)
}

func (s *Server) getSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subUC.Get(r.Context(), api.UserID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, toSubscriptionDTO(sub))
}

type subscriptionPatchRequest struct {
	Merchant            *string  `json:"merchant"`
	Amount              *float64 `json:"amount"`
	Cadence             *string  `json:"cadence"`
	CadenceDays         *int     `json:"cadence_days"`
	LastTransactionDate *string  `json:"last_transaction_date"`
	NextPaymentDate     *string  `json:"next_payment_date"`
	Status              *string  `json:"status"`
}

func (s *Server) updateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	last, err := parseDatePtr(req.LastTransactionDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid last_transaction_date")
		return
	}
	next, err := parseDatePtr(req.NextPaymentDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid next_payment_date")
		return
	}

	in := usecase.UpdateSubscriptionInput{
		Merchant:            req.Merchant,
		Amount:              req.Amount,
		CadenceDays:         req.CadenceDays,
		LastTransactionDate: last,
		NextPaymentDate:     next,
	}
	if req.Cadence != nil {
		c := model.Cadence(*req.Cadence)
		in.Cadence = &c
	}
	if req.Status != nil {
		st := model.SubscriptionStatus(*req.Status)
		in.Status = &st
	}

	sub, err := s.subUC.Update(r.Context(), api.UserID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, toSubscriptionDTO(sub))
}

func (s *Server) deleteSubscription(w http.ResponseWriter, r *http.Request) {
	if err := s.subUC.Delete(r.Context(), api.UserID(r), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------- accounts ----------------

type accountRequest struct {
	Name        string  `json:"name"`
	Institution string  `json:"institution"`
	Type        string  `json:"type"`
	Currency    *string `json:"currency"`
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	a, err := s.accountUC.Create(r.Context(), api.UserID(r), usecase.CreateAccountInput{
		Name:        req.Name,
		Institution: req.Institution,
		Type:        model.AccountType(req.Type),
		Currency:    req.Currency,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusCreated, toAccountDTO(a))
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.accountUC.List(r.Context(), api.UserID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]*accountDTO, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountDTO(a))
	}
	writeData(w, http.StatusOK, out)
}

// ---------------- transactions ----------------

type transactionRequest struct {
	AccountID string  `json:"account_id"`
	Date      string  `json:"date"`
	Merchant  *string `json:"merchant"`
	Amount    float64 `json:"amount"`
	Currency  *string `json:"currency"`
	Pending   bool    `json:"pending"`
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid date")
		return
	}
	t, err := s.txnUC.Create(r.Context(), api.UserID(r), usecase.CreateTransactionInput{
		AccountID: req.AccountID,
		Date:      date,
		Merchant:  req.Merchant,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Pending:   req.Pending,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusCreated, toTransactionDTO(t))
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "account_id is required")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	txns, err := s.txnUC.ListByAccount(r.Context(), api.UserID(r), accountID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]*transactionDTO, 0, len(txns))
	for i := range txns {
		out = append(out, toTransactionDTO(&txns[i]))
	}
	writeData(w, http.StatusOK, out)
}

// ---------------- notifications ----------------

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	notifs, err := s.notifUC.List(r.Context(), api.UserID(r), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]*notificationDTO, 0, len(notifs))
	for _, n := range notifs {
		out = append(out, toNotificationDTO(n))
	}
	writeData(w, http.StatusOK, out)
}

func (s *Server) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := s.notifUC.MarkRead(r.Context(), api.UserID(r), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------- DTOs & helpers ----------------

type subscriptionDTO struct {
	ID                  string  `json:"id"`
	Merchant            string  `json:"merchant"`
	Amount              float64 `json:"amount"`
	Currency            *string `json:"currency"`
	Cadence             string  `json:"cadence"`
	CadenceDays         int     `json:"cadence_days"`
	LastTransactionDate *string `json:"last_transaction_date"`
	NextPaymentDate     *string `json:"next_payment_date"`
	Status              string  `json:"status"`
	Confidence          float64 `json:"confidence"`
	FirstDetectedAt     string  `json:"first_detected_at"`
	LastSeenAt          *string `json:"last_seen_at"`
}

func toSubscriptionDTO(s *model.Subscription) *subscriptionDTO {
	return &subscriptionDTO{
		ID:                  s.ID,
		Merchant:            s.Merchant,
		Amount:              s.Amount,
		Currency:            s.Currency,
		Cadence:             string(s.Cadence),
		CadenceDays:         s.CadenceDays,
		LastTransactionDate: formatDatePtr(s.LastTransactionDate),
		NextPaymentDate:     formatDatePtr(s.NextPaymentDate),
		Status:              string(s.Status),
		Confidence:          s.Confidence,
		FirstDetectedAt:     s.FirstDetectedAt.UTC().Format(time.RFC3339),
		LastSeenAt:          formatDatePtr(s.LastSeenAt),
	}
}

func toSubscriptionDTOs(subs []*model.Subscription) []*subscriptionDTO {
	out := make([]*subscriptionDTO, 0, len(subs))
	for _, s := range subs {
		out = append(out, toSubscriptionDTO(s))
	}
	return out
}

type accountDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Institution string  `json:"institution"`
	Type        string  `json:"type"`
	Currency    *string `json:"currency"`
}

func toAccountDTO(a *model.Account) *accountDTO {
	return &accountDTO{
		ID:          a.ID,
		Name:        a.Name,
		Institution: a.Institution,
		Type:        string(a.Type),
		Currency:    a.Currency,
	}
}

type transactionDTO struct {
	ID        string  `json:"id"`
	AccountID string  `json:"account_id"`
	Date      string  `json:"date"`
	Merchant  *string `json:"merchant"`
	Amount    float64 `json:"amount"`
	Currency  *string `json:"currency"`
	Pending   bool    `json:"pending"`
}

func toTransactionDTO(t *model.Transaction) *transactionDTO {
	return &transactionDTO{
		ID:        t.ID,
		AccountID: t.AccountID,
		Date:      t.Date.Format(dateLayout),
		Merchant:  t.Merchant,
		Amount:    t.Amount,
		Currency:  t.Currency,
		Pending:   t.Pending,
	}
}

type notificationDTO struct {
	ID             string `json:"id"`
	SubscriptionID string `json:"subscription_id"`
	Type           string `json:"type"`
	Content        string `json:"content"`
	Status         string `json:"status"`
	ScheduledAt    string `json:"scheduled_at"`
}

func toNotificationDTO(n *model.Notification) *notificationDTO {
	return &notificationDTO{
		ID:             n.ID,
		SubscriptionID: n.SubscriptionID,
		Type:           string(n.Type),
		Content:        n.Content,
		Status:         string(n.Status),
		ScheduledAt:    n.ScheduledAt.UTC().Format(time.RFC3339),
	}
}

func parseDatePtr(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func writeData(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

func writeError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{"code": errCode, "message": message},
	})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "not found")
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "CONFLICT", "already exists")
	case errors.Is(err, domain.ErrDetectionInProgress):
		writeError(w, http.StatusConflict, "DETECTION_IN_PROGRESS", "detection already running")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
	default:
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "internal error")
	}
}
