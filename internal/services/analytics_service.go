// Package services contains the application service layer between the HTTP
// transport and the analytics engine. It validates transport-level requests,
// translates them into engine requests, and applies presentation concerns
// such as household projection and methodology disclaimers.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"panelpulse/internal/config"
	"panelpulse/internal/infrastructure"
	"panelpulse/internal/panel"
)

const dateLayout = "2006-01-02"

// AnalyticsService exposes the analytics engine to the transport layer.
type AnalyticsService struct {
	engine    *panel.Engine
	analytics config.AnalyticsConfig
	validate  *validator.Validate
	metrics   *infrastructure.AnalyticsMetrics
	logger    *slog.Logger
}

// NewAnalyticsService creates a new analytics service.
func NewAnalyticsService(engine *panel.Engine, analytics config.AnalyticsConfig, metrics *infrastructure.AnalyticsMetrics, logger *slog.Logger) *AnalyticsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsService{
		engine:    engine,
		analytics: analytics,
		validate:  validator.New(),
		metrics:   metrics,
		logger:    logger.With(slog.String("component", "analytics_service")),
	}
}

// BaseRequest carries the parameters shared by every analytics request.
// Dates are inclusive calendar days; To is converted to an exclusive bound
// internally.
type BaseRequest struct {
	From       string   `json:"from" validate:"required,datetime=2006-01-02"`
	To         string   `json:"to" validate:"required,datetime=2006-01-02"`
	IssuerID   string   `json:"issuer_id" validate:"required"`
	StoreID    string   `json:"store_id,omitempty"`
	Reconciled string   `json:"reconciled,omitempty" validate:"omitempty,oneof=true false"`
	Domain     string   `json:"domain,omitempty" validate:"omitempty,oneof=product commerce"`
	Level      string   `json:"level,omitempty" validate:"omitempty,oneof=l1 l2 l3 l4"`
	Path       []string `json:"path,omitempty" validate:"max=4"`
	K          int      `json:"k,omitempty" validate:"omitempty,min=1"`
	MinN       int      `json:"min_n,omitempty" validate:"omitempty,min=1"`
	Project    bool     `json:"project,omitempty"`
}

// CaptureRequest parameterizes the capture and leakage metric.
type CaptureRequest struct {
	BaseRequest
	Scope                string  `json:"scope,omitempty" validate:"omitempty,oneof=all peers extended"`
	CoverageThresholdPct float64 `json:"coverage_threshold_pct,omitempty" validate:"omitempty,gt=0,lte=100"`
}

// SwitchingRequest parameterizes the switching destination metric.
type SwitchingRequest struct {
	BaseRequest
	MaxRows int `json:"max_rows,omitempty" validate:"omitempty,min=1"`
}

// WaterfallRequest parameterizes the retention waterfall.
type WaterfallRequest struct {
	BaseRequest
	RuleSet string `json:"rule_set,omitempty" validate:"omitempty,oneof=canonical legacy"`
}

// BasketRequest parameterizes the basket breadth metric.
type BasketRequest struct {
	BaseRequest
	Suppression string `json:"suppression,omitempty" validate:"omitempty,oneof=hard soft"`
}

// LoyaltyRequest parameterizes the brand loyalty metric.
type LoyaltyRequest struct {
	BaseRequest
	Category             string  `json:"category" validate:"required"`
	Eligibility          string  `json:"eligibility,omitempty" validate:"omitempty,oneof=receipts months"`
	MinReceipts          int     `json:"min_receipts,omitempty" validate:"omitempty,min=1"`
	MinMonths            int     `json:"min_months,omitempty" validate:"omitempty,min=1"`
	CoverageThresholdPct float64 `json:"coverage_threshold_pct,omitempty" validate:"omitempty,gt=0,lte=100"`
}

// ChildrenRequest parameterizes the dimension drill-down query.
type ChildrenRequest struct {
	BaseRequest
}

// OverviewRequest parameterizes the combined overview.
type OverviewRequest struct {
	BaseRequest
	Scope    string `json:"scope,omitempty" validate:"omitempty,oneof=all peers extended"`
	Category string `json:"category,omitempty"`
	RuleSet  string `json:"rule_set,omitempty" validate:"omitempty,oneof=canonical legacy"`
}

// Filters echoes the resolved request parameters back to the caller so the
// client can render exactly what was computed.
type Filters struct {
	From       string   `json:"from"`
	To         string   `json:"to"`
	IssuerID   string   `json:"issuer_id"`
	StoreID    string   `json:"store_id,omitempty"`
	Reconciled string   `json:"reconciled,omitempty"`
	Domain     string   `json:"domain"`
	Level      string   `json:"level"`
	Path       []string `json:"path,omitempty"`
	Scope      string   `json:"scope,omitempty"`
	Category   string   `json:"category,omitempty"`
	RuleSet    string   `json:"rule_set,omitempty"`
}

// Envelope wraps every analytics response with the echoed filters,
// projection metadata and methodology disclaimers.
type Envelope struct {
	GeneratedAt     time.Time   `json:"generated_at"`
	Filters         Filters     `json:"filters"`
	Projected       bool        `json:"projected"`
	ExpansionFactor float64     `json:"expansion_factor,omitempty"`
	Disclaimers     []string    `json:"disclaimers"`
	Result          interface{} `json:"result"`
}

func (s *AnalyticsService) validateRequest(req interface{}) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", panel.ErrMissingParameter, err)
	}
	return nil
}

// window converts the inclusive from/to dates into a half-open window.
func (s *AnalyticsService) window(from, to string) (panel.Window, error) {
	start, err := time.Parse(dateLayout, from)
	if err != nil {
		return panel.Window{}, panel.ErrInvalidWindow
	}
	end, err := time.Parse(dateLayout, to)
	if err != nil {
		return panel.Window{}, panel.ErrInvalidWindow
	}
	w := panel.Window{Start: start, End: end.AddDate(0, 0, 1)}
	if err := w.Validate(); err != nil {
		return panel.Window{}, err
	}
	return w, nil
}

func reconciledFlag(raw string) *bool {
	switch raw {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	default:
		return nil
	}
}

func (b BaseRequest) dimensionSpec() panel.DimensionSpec {
	domain := b.Domain
	if domain == "" {
		domain = string(panel.DomainProduct)
	}
	level := b.Level
	if level == "" {
		level = string(panel.LevelL1)
	}
	return panel.DimensionSpec{
		Domain: panel.Domain(domain),
		Level:  panel.Level(level),
		Path:   b.Path,
	}
}

func (b BaseRequest) filters() Filters {
	domain := b.Domain
	if domain == "" {
		domain = string(panel.DomainProduct)
	}
	level := b.Level
	if level == "" {
		level = string(panel.LevelL1)
	}
	return Filters{
		From:       b.From,
		To:         b.To,
		IssuerID:   b.IssuerID,
		StoreID:    b.StoreID,
		Reconciled: b.Reconciled,
		Domain:     domain,
		Level:      level,
		Path:       b.Path,
	}
}

// expansionFactor returns the issuer multiplier, 1 when absent or invalid.
func (s *AnalyticsService) expansionFactor(issuerID string) float64 {
	if f, ok := s.analytics.ExpansionFactors[issuerID]; ok && f > 0 {
		return f
	}
	return 1
}

func (s *AnalyticsService) envelope(base BaseRequest, result interface{}) *Envelope {
	env := &Envelope{
		GeneratedAt: time.Now().UTC(),
		Filters:     base.filters(),
		Disclaimers: standardDisclaimers(),
		Result:      result,
	}
	if base.Project {
		env.Projected = true
		env.ExpansionFactor = s.expansionFactor(base.IssuerID)
		env.Disclaimers = append(env.Disclaimers, projectionDisclaimer)
	}
	return env
}

func (s *AnalyticsService) record(ctx context.Context, kind string, start time.Time, err error) {
	s.metrics.RecordComputation(ctx, kind, time.Since(start), err)
}

// Capture computes category capture and leakage for the cohort.
func (s *AnalyticsService) Capture(ctx context.Context, req CaptureRequest) (*Envelope, error) {
	start := time.Now()
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	w, err := s.window(req.From, req.To)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Capture(ctx, panel.CaptureRequest{
		Window:               w,
		IssuerID:             req.IssuerID,
		StoreID:              req.StoreID,
		Reconciled:           reconciledFlag(req.Reconciled),
		Dimension:            req.dimensionSpec(),
		Scope:                panel.PeerScope(req.Scope),
		K:                    req.K,
		MinN:                 req.MinN,
		CoverageThresholdPct: req.CoverageThresholdPct,
	})
	s.record(ctx, "capture", start, err)
	if err != nil {
		return nil, err
	}
	if result.Trust == panel.TrustSuppressed {
		s.metrics.RecordSuppressedWindow(ctx, "capture")
	}
	if req.Project {
		result = projectCapture(result, s.expansionFactor(req.IssuerID))
	}

	env := s.envelope(req.BaseRequest, result)
	env.Filters.Scope = req.Scope
	return env, nil
}

// Switching computes switching destinations for the cohort.
func (s *AnalyticsService) Switching(ctx context.Context, req SwitchingRequest) (*Envelope, error) {
	start := time.Now()
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	w, err := s.window(req.From, req.To)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Switching(ctx, panel.SwitchingRequest{
		Window:     w,
		IssuerID:   req.IssuerID,
		StoreID:    req.StoreID,
		Reconciled: reconciledFlag(req.Reconciled),
		Dimension:  req.dimensionSpec(),
		K:          req.K,
		MinN:       req.MinN,
		MaxRows:    req.MaxRows,
	})
	s.record(ctx, "switching", start, err)
	if err != nil {
		return nil, err
	}
	if result.Trust == panel.TrustSuppressed {
		s.metrics.RecordSuppressedWindow(ctx, "switching")
	}
	if req.Project {
		result = projectSwitching(result, s.expansionFactor(req.IssuerID))
	}

	return s.envelope(req.BaseRequest, result), nil
}

// Waterfall classifies month-over-month retention transitions.
func (s *AnalyticsService) Waterfall(ctx context.Context, req WaterfallRequest) (*Envelope, error) {
	start := time.Now()
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	w, err := s.window(req.From, req.To)
	if err != nil {
		return nil, err
	}

	ruleSet := req.RuleSet
	if ruleSet == "" {
		ruleSet = s.analytics.WaterfallRuleSet
	}

	result, err := s.engine.Waterfall(ctx, panel.WaterfallRequest{
		Window:     w,
		IssuerID:   req.IssuerID,
		StoreID:    req.StoreID,
		Reconciled: reconciledFlag(req.Reconciled),
		Dimension:  req.dimensionSpec(),
		RuleSet:    ruleSet,
		MinN:       req.MinN,
	})
	s.record(ctx, "waterfall", start, err)
	if err != nil {
		return nil, err
	}
	if result.Trust == panel.TrustSuppressed {
		s.metrics.RecordSuppressedWindow(ctx, "waterfall")
	}

	env := s.envelope(req.BaseRequest, result)
	env.Filters.RuleSet = ruleSet
	return env, nil
}

// Basket computes average basket breadth per user-month.
func (s *AnalyticsService) Basket(ctx context.Context, req BasketRequest) (*Envelope, error) {
	start := time.Now()
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	w, err := s.window(req.From, req.To)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Basket(ctx, panel.BasketRequest{
		Window:     w,
		IssuerID:   req.IssuerID,
		StoreID:    req.StoreID,
		Reconciled: reconciledFlag(req.Reconciled),
		Dimension:  req.dimensionSpec(),
		K:          req.K,
		MinN:       req.MinN,
		Mode:       panel.SuppressionMode(req.Suppression),
	})
	s.record(ctx, "basket", start, err)
	if err != nil {
		return nil, err
	}
	if result.Trust == panel.TrustSuppressed {
		s.metrics.RecordSuppressedWindow(ctx, "basket")
	}

	return s.envelope(req.BaseRequest, result), nil
}

// Loyalty computes brand share tiering within one category.
func (s *AnalyticsService) Loyalty(ctx context.Context, req LoyaltyRequest) (*Envelope, error) {
	start := time.Now()
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	w, err := s.window(req.From, req.To)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Loyalty(ctx, panel.LoyaltyRequest{
		Window:               w,
		IssuerID:             req.IssuerID,
		StoreID:              req.StoreID,
		Reconciled:           reconciledFlag(req.Reconciled),
		Dimension:            req.dimensionSpec(),
		Category:             req.Category,
		Mode:                 panel.EligibilityMode(req.Eligibility),
		MinReceipts:          req.MinReceipts,
		MinMonths:            req.MinMonths,
		K:                    req.K,
		MinN:                 req.MinN,
		CoverageThresholdPct: req.CoverageThresholdPct,
	})
	s.record(ctx, "loyalty", start, err)
	if err != nil {
		return nil, err
	}
	if result.Trust == panel.TrustSuppressed {
		s.metrics.RecordSuppressedWindow(ctx, "loyalty")
	}

	env := s.envelope(req.BaseRequest, result)
	env.Filters.Category = req.Category
	return env, nil
}

// Children returns the drill-down values one level below the request path.
func (s *AnalyticsService) Children(ctx context.Context, req ChildrenRequest) (*Envelope, error) {
	start := time.Now()
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	w, err := s.window(req.From, req.To)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Children(ctx, panel.ChildrenRequest{
		Window:     w,
		IssuerID:   req.IssuerID,
		StoreID:    req.StoreID,
		Reconciled: reconciledFlag(req.Reconciled),
		Domain:     panel.Domain(req.Domain),
		ParentPath: req.Path,
		K:          req.K,
		MinN:       req.MinN,
	})
	s.record(ctx, "children", start, err)
	if err != nil {
		return nil, err
	}
	if req.Project {
		result = projectChildren(result, s.expansionFactor(req.IssuerID))
	}

	return s.envelope(req.BaseRequest, result), nil
}

// Overview computes all metrics from a single cohort resolution.
func (s *AnalyticsService) Overview(ctx context.Context, req OverviewRequest) (*Envelope, error) {
	start := time.Now()
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	w, err := s.window(req.From, req.To)
	if err != nil {
		return nil, err
	}

	ruleSet := req.RuleSet
	if ruleSet == "" {
		ruleSet = s.analytics.WaterfallRuleSet
	}

	result, err := s.engine.ComputeOverview(ctx, panel.OverviewRequest{
		Window:     w,
		IssuerID:   req.IssuerID,
		StoreID:    req.StoreID,
		Reconciled: reconciledFlag(req.Reconciled),
		Dimension:  req.dimensionSpec(),
		Scope:      panel.PeerScope(req.Scope),
		Category:   req.Category,
		RuleSet:    ruleSet,
	})
	s.record(ctx, "overview", start, err)
	if err != nil {
		return nil, err
	}
	if req.Project {
		factor := s.expansionFactor(req.IssuerID)
		result.Capture = projectCapture(result.Capture, factor)
		result.Switching = projectSwitching(result.Switching, factor)
	}

	env := s.envelope(req.BaseRequest, result)
	env.Filters.Scope = req.Scope
	env.Filters.Category = req.Category
	env.Filters.RuleSet = ruleSet
	return env, nil
}
