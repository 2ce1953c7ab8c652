package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/punchamoorthee/swapledger/internal/auth"
	"github.com/punchamoorthee/swapledger/internal/domain"
	"github.com/punchamoorthee/swapledger/internal/service"
	"go.uber.org/zap"
)

// Metrics
var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapledger_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swapledger_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	svc      *service.Marketplace
	tokens   *auth.Tokens
	log      *zap.Logger
	store    Pinger
	validate *validator.Validate
}

func NewHandler(svc *service.Marketplace, tokens *auth.Tokens, store Pinger, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		svc:      svc,
		tokens:   tokens,
		log:      log,
		store:    store,
		validate: newValidator(),
	}
}

// Router wires every route. Authenticated routes are wrapped one by one so
// the same path can carry both public and private methods.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.recoverer, h.requestLog, h.instrument)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "not_found", "route not found", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	r.HandleFunc("/health", h.HealthCheckHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	private := auth.Middleware(h.tokens, h.unauthorized)
	optional := auth.Optional(h.tokens, h.unauthorized)

	api.HandleFunc("/health", h.HealthCheckHandler).Methods(http.MethodGet)
	api.HandleFunc("/auth/signup", h.SignupHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.LoginHandler).Methods(http.MethodPost)

	api.Handle("/users/me", private(http.HandlerFunc(h.MeHandler))).Methods(http.MethodGet)
	api.Handle("/users/me", private(http.HandlerFunc(h.UpdateMeHandler))).Methods(http.MethodPut)
	api.Handle("/users/me/items", private(http.HandlerFunc(h.MyItemsHandler))).Methods(http.MethodGet)
	api.Handle("/users/me/ledger", private(http.HandlerFunc(h.MyLedgerHandler))).Methods(http.MethodGet)
	api.Handle("/users/{id}", optional(http.HandlerFunc(h.UserProfileHandler))).Methods(http.MethodGet)
	api.Handle("/users/{id}/rate", private(http.HandlerFunc(h.RateUserHandler))).Methods(http.MethodPost)
	api.Handle("/users/{id}/ratings", optional(http.HandlerFunc(h.ListRatingsHandler))).Methods(http.MethodGet)
	api.Handle("/ratings/{id}", private(http.HandlerFunc(h.UpdateRatingHandler))).Methods(http.MethodPut)

	api.Handle("/items", private(http.HandlerFunc(h.CreateItemHandler))).Methods(http.MethodPost)
	api.Handle("/items", optional(http.HandlerFunc(h.BrowseItemsHandler))).Methods(http.MethodGet)
	api.Handle("/items/{id}", optional(http.HandlerFunc(h.GetItemHandler))).Methods(http.MethodGet)
	api.Handle("/items/{id}", private(http.HandlerFunc(h.UpdateItemHandler))).Methods(http.MethodPut)
	api.Handle("/items/{id}", private(http.HandlerFunc(h.RemoveItemHandler))).Methods(http.MethodDelete)
	api.Handle("/items/{id}/purchase", private(http.HandlerFunc(h.PurchaseHandler))).Methods(http.MethodPost)

	api.Handle("/swaps", private(http.HandlerFunc(h.CreateSwapHandler))).Methods(http.MethodPost)
	api.Handle("/swaps", private(http.HandlerFunc(h.ListSwapsHandler))).Methods(http.MethodGet)
	api.Handle("/swaps/{id}", private(http.HandlerFunc(h.GetSwapHandler))).Methods(http.MethodGet)
	api.Handle("/swaps/{id}", private(http.HandlerFunc(h.UpdateSwapHandler))).Methods(http.MethodPut)

	return r
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			h.log.Warn("health check failed", zap.Error(err))
			respondError(w, http.StatusServiceUnavailable, "unavailable", "database unreachable", nil)
			return
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helpers

type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	writeEnvelope(w, code, envelope{Success: true, Data: payload})
}

func respondError(w http.ResponseWriter, status int, code, msg string, fields map[string]string) {
	writeEnvelope(w, status, envelope{Error: &apiError{Code: code, Message: msg, Fields: fields}})
}

func writeEnvelope(w http.ResponseWriter, code int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(env)
}

type errorKind struct {
	target error
	status int
	code   string
}

var errorKinds = []errorKind{
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrItemUnavailable, http.StatusConflict, "item_unavailable"},
	{domain.ErrInsufficientFunds, http.StatusBadRequest, "insufficient_funds"},
	{domain.ErrSelfTransaction, http.StatusBadRequest, "self_transaction_not_allowed"},
	{domain.ErrSelfRating, http.StatusBadRequest, "self_rating_not_allowed"},
	{domain.ErrInvalidMethodParams, http.StatusBadRequest, "invalid_method_params"},
	{domain.ErrInvalidScore, http.StatusBadRequest, "invalid_score"},
	{domain.ErrInvalidState, http.StatusBadRequest, "invalid_state"},
	{domain.ErrDuplicateRating, http.StatusConflict, "duplicate_rating"},
	{domain.ErrEmailTaken, http.StatusConflict, "email_taken"},
	{domain.ErrConflict, http.StatusConflict, "conflict"},
	{domain.ErrIdempotencyMismatch, http.StatusUnprocessableEntity, "idempotency_mismatch"},
	{domain.ErrUnimplemented, http.StatusNotImplemented, "unimplemented"},
}

// fixedMessages replace err.Error() for kinds whose wrapped text may carry
// store internals.
var fixedMessages = map[error]string{
	domain.ErrConflict: "the resource was modified concurrently, retry the request",
}

// writeError maps a service error onto the response envelope. Anything not
// recognised is logged and reported as a bare 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		respondError(w, http.StatusBadRequest, "validation_error", verr.Error(), verr.Fields)
		return
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			msg := err.Error()
			if fixed, ok := fixedMessages[k.target]; ok {
				h.log.Warn("request failed", zap.String("path", r.URL.Path), zap.String("code", k.code), zap.Error(err))
				msg = fixed
			}
			respondError(w, k.status, k.code, msg, nil)
			return
		}
	}
	if errors.Is(err, context.Canceled) {
		h.log.Debug("request cancelled", zap.String("path", r.URL.Path))
		respondError(w, 499, "cancelled", "request cancelled", nil)
		return
	}

	h.log.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", w.Header().Get(requestIDHeader)),
		zap.Error(err),
	)
	respondError(w, http.StatusInternalServerError, "internal", "internal server error", nil)
}

func (h *Handler) unauthorized(w http.ResponseWriter, _ *http.Request, err error) {
	msg := "authentication required"
	if err != nil {
		msg = "invalid or expired token"
	}
	respondError(w, http.StatusUnauthorized, "unauthorized", msg, nil)
}

// principal is only called behind auth.Middleware.
func principal(r *http.Request) uuid.UUID {
	id, _ := auth.Principal(r.Context())
	return id
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, domain.NewValidationError(name, "must be a valid UUID")
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, domain.NewValidationError(name, "must be an integer")
	}
	return &n, nil
}
