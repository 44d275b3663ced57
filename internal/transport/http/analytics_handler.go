// Package http provides the HTTP transport layer: the analytics endpoints,
// health and metrics, and the router wiring them together with the
// middleware stack.
package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "panelpulse/internal/errors"
	"panelpulse/internal/services"
)

// AnalyticsHandler handles the analytics HTTP endpoints.
type AnalyticsHandler struct {
	service      *services.AnalyticsService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(service *services.AnalyticsService, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service:      service,
		logger:       logger,
		errorHandler: apierrors.NewErrorHandler(logger, false),
	}
}

// RegisterRoutes registers the analytics routes.
func (h *AnalyticsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/capture", h.GetCapture)
		r.Get("/switching", h.GetSwitching)
		r.Get("/waterfall", h.GetWaterfall)
		r.Get("/basket", h.GetBasket)
		r.Get("/loyalty", h.GetLoyalty)
		r.Get("/overview", h.GetOverview)
	})
	r.Route("/dimensions", func(r chi.Router) {
		r.Get("/children", h.GetChildren)
	})
}

// baseRequest extracts the shared analytics parameters from the query string.
func baseRequest(r *http.Request) services.BaseRequest {
	q := r.URL.Query()
	req := services.BaseRequest{
		From:       q.Get("from"),
		To:         q.Get("to"),
		IssuerID:   q.Get("issuer_id"),
		StoreID:    q.Get("store_id"),
		Reconciled: q.Get("reconciled"),
		Domain:     q.Get("domain"),
		Level:      q.Get("level"),
		K:          intParam(q.Get("k")),
		MinN:       intParam(q.Get("min_n")),
		Project:    q.Get("project") == "true",
	}
	if path := q.Get("path"); path != "" {
		req.Path = strings.Split(path, ",")
	}
	return req
}

func intParam(raw string) int {
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func floatParam(raw string) float64 {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// GetCapture returns category capture and leakage for the cohort.
// A suppressed window is still a 200: suppression is a data state, not an error.
func (h *AnalyticsHandler) GetCapture(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := services.CaptureRequest{
		BaseRequest:          baseRequest(r),
		Scope:                q.Get("scope"),
		CoverageThresholdPct: floatParam(q.Get("coverage_threshold_pct")),
	}

	env, err := h.service.Capture(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, env)
}

// GetSwitching returns switching destinations for the cohort.
func (h *AnalyticsHandler) GetSwitching(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := services.SwitchingRequest{
		BaseRequest: baseRequest(r),
		MaxRows:     intParam(q.Get("max_rows")),
	}

	env, err := h.service.Switching(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, env)
}

// GetWaterfall returns the month-over-month retention waterfall.
func (h *AnalyticsHandler) GetWaterfall(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := services.WaterfallRequest{
		BaseRequest: baseRequest(r),
		RuleSet:     q.Get("rule_set"),
	}

	env, err := h.service.Waterfall(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, env)
}

// GetBasket returns average basket breadth per user-month.
func (h *AnalyticsHandler) GetBasket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := services.BasketRequest{
		BaseRequest: baseRequest(r),
		Suppression: q.Get("suppression"),
	}

	env, err := h.service.Basket(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, env)
}

// GetLoyalty returns brand loyalty tiers within one category.
func (h *AnalyticsHandler) GetLoyalty(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := services.LoyaltyRequest{
		BaseRequest:          baseRequest(r),
		Category:             q.Get("category"),
		Eligibility:          q.Get("eligibility"),
		MinReceipts:          intParam(q.Get("min_receipts")),
		MinMonths:            intParam(q.Get("min_months")),
		CoverageThresholdPct: floatParam(q.Get("coverage_threshold_pct")),
	}

	env, err := h.service.Loyalty(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, env)
}

// GetOverview returns all metrics from a single cohort resolution.
func (h *AnalyticsHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := services.OverviewRequest{
		BaseRequest: baseRequest(r),
		Scope:       q.Get("scope"),
		Category:    q.Get("category"),
		RuleSet:     q.Get("rule_set"),
	}

	env, err := h.service.Overview(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, env)
}

// GetChildren returns drill-down values one level below the request path.
func (h *AnalyticsHandler) GetChildren(w http.ResponseWriter, r *http.Request) {
	req := services.ChildrenRequest{BaseRequest: baseRequest(r)}

	env, err := h.service.Children(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, env)
}
