package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/jiaming2012/optionprisma/src/models"
	"github.com/jiaming2012/optionprisma/src/pricing"
)

const maxListLimit = 1000

type SimulationService interface {
	RunSimulation(ctx context.Context, req pricing.PricingRequest) (models.SimulationResult, error)
	GetSimulation(ctx context.Context, id string) (models.SimulationResult, error)
	ListSimulations(ctx context.Context, skip, limit int) ([]models.SimulationResult, error)
	DeleteSimulation(ctx context.Context, id string) error
}

type ListSimulationsQuery struct {
	Skip  int `schema:"skip"`
	Limit int `schema:"limit"`
}

type Handler struct {
	service        SimulationService
	limits         models.SimulationLimits
	version        string
	requestTimeout time.Duration
	decoder        *schema.Decoder
	now            func() time.Time
}

func NewHandler(service SimulationService, limits models.SimulationLimits, version string, requestTimeout time.Duration) *Handler {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	return &Handler{
		service:        service,
		limits:         limits,
		version:        version,
		requestTimeout: requestTimeout,
		decoder:        decoder,
		now:            time.Now,
	}
}

func (h *Handler) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := setResponse(models.NewHealthCheckResponse(h.version, h.now()), http.StatusOK, w); err != nil {
		writeError(r, w, "handleHealthCheck", err)
	}
}

func (h *Handler) handleCreateSimulation(w http.ResponseWriter, r *http.Request) {
	var req models.OptionPricingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r, w, "handleCreateSimulation", fmt.Errorf("%w: malformed body: %v", models.ErrInvalidRequest, err))
		return
	}

	pricingReq, err := req.ToPricingRequest(h.limits)
	if err != nil {
		writeError(r, w, "handleCreateSimulation", err)
		return
	}

	ctx := r.Context()
	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.requestTimeout)
		defer cancel()
	}

	result, err := h.service.RunSimulation(ctx, pricingReq)
	if err != nil {
		writeError(r, w, "handleCreateSimulation", err)
		return
	}

	if err := setResponse(result, http.StatusCreated, w); err != nil {
		writeError(r, w, "handleCreateSimulation", err)
	}
}

func (h *Handler) handleListSimulations(w http.ResponseWriter, r *http.Request) {
	var query ListSimulationsQuery
	if err := h.decoder.Decode(&query, r.URL.Query()); err != nil {
		writeError(r, w, "handleListSimulations", fmt.Errorf("%w: %v", models.ErrInvalidRequest, err))
		return
	}

	if query.Skip < 0 || query.Limit < 0 || query.Limit > maxListLimit {
		writeError(r, w, "handleListSimulations", fmt.Errorf("%w: skip must be >= 0 and limit between 0 and %d", models.ErrInvalidRequest, maxListLimit))
		return
	}

	results, err := h.service.ListSimulations(r.Context(), query.Skip, query.Limit)
	if err != nil {
		writeError(r, w, "handleListSimulations", err)
		return
	}

	if err := setResponse(results, http.StatusOK, w); err != nil {
		writeError(r, w, "handleListSimulations", err)
	}
}

func (h *Handler) handleGetSimulation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	result, err := h.service.GetSimulation(r.Context(), id)
	if err != nil {
		writeError(r, w, "handleGetSimulation", fmt.Errorf("simulation %s: %w", id, err))
		return
	}

	if err := setResponse(result, http.StatusOK, w); err != nil {
		writeError(r, w, "handleGetSimulation", err)
	}
}

func (h *Handler) handleDeleteSimulation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.service.DeleteSimulation(r.Context(), id); err != nil {
		writeError(r, w, "handleDeleteSimulation", fmt.Errorf("simulation %s: %w", id, err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetupHandler registers the simulation API on router. A nil limiter disables
// rate limiting.
func SetupHandler(router *mux.Router, h *Handler, limiter *rate.Limiter) {
	router.Use(requestIDMiddleware)

	// handleFunc is a replacement for mux.HandleFunc
	// which enriches the handler's HTTP instrumentation with the pattern as the http.route.
	handleFunc := func(pattern string, method string, handler http.Handler) {
		router.Handle(pattern, otelhttp.WithRouteTag(pattern, handler)).Methods(method)
	}

	handleFunc("/", http.MethodGet, http.HandlerFunc(h.handleHealthCheck))
	handleFunc("/simulations", http.MethodPost, rateLimitMiddleware(limiter, http.HandlerFunc(h.handleCreateSimulation)))
	handleFunc("/simulations", http.MethodGet, http.HandlerFunc(h.handleListSimulations))
	handleFunc("/simulations/{id}", http.MethodGet, http.HandlerFunc(h.handleGetSimulation))
	handleFunc("/simulations/{id}", http.MethodDelete, http.HandlerFunc(h.handleDeleteSimulation))
}

func NewRateLimiter(requestsPerSecond float64, burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}
