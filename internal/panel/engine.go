package panel

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Engine orchestrates the panel cohort analytics: store scan, cohort
// resolution, metric aggregation, and the suppression and trust policy. It is
// a pure request-scoped computation over an immutable snapshot; instances are
// safe for concurrent use.
type Engine struct {
	store    Scanner
	catalog  IssuerCatalog
	defaults Defaults
	logger   *slog.Logger
}

// NewEngine creates an engine over the given store. Zero-valued defaults are
// replaced with the package defaults.
func NewEngine(store Scanner, catalog IssuerCatalog, defaults Defaults, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		catalog:  catalog,
		defaults: defaults.FillDefaults(),
		logger:   logger,
	}
}

// Defaults returns the engine's effective policy defaults.
func (e *Engine) Defaults() Defaults {
	return e.defaults
}

// scan loads the window's lines from the store, bounded by the scan timeout.
// Failures surface as a retryable ErrStoreUnavailable.
func (e *Engine) scan(ctx context.Context, w Window, reconciled *bool) ([]TransactionLine, error) {
	scanCtx, cancel := context.WithTimeout(ctx, e.defaults.ScanTimeout)
	defer cancel()

	start := time.Now()
	lines, err := e.store.Scan(scanCtx, ScanFilter{Window: w, Reconciled: reconciled})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.logger.DebugContext(ctx, "store scan completed",
		"lines", len(lines),
		"duration", time.Since(start),
	)
	return lines, nil
}

func (e *Engine) resolveCohort(ctx context.Context, w Window, issuerID, storeID string, reconciled *bool, dim Dimension) (*CohortData, error) {
	if issuerID == "" {
		return nil, fmt.Errorf("%w: issuer_id", ErrMissingParameter)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	lines, err := e.scan(ctx, w, reconciled)
	if err != nil {
		return nil, err
	}

	data, err := ResolveCohort(lines, CohortParams{
		Window:     w,
		IssuerID:   issuerID,
		StoreID:    storeID,
		Reconciled: reconciled,
		Dimension:  dim,
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "cohort resolved",
		"issuer_id", issuerID,
		"cohort_size", data.CohortSize(),
		"months", len(data.Months),
		"lines", len(data.Lines),
	)
	return data, nil
}

// resolveDimension resolves a spec, falling back to product/l1 when none is
// supplied.
func (e *Engine) resolveDimension(spec DimensionSpec) (Dimension, error) {
	if spec.Domain == "" && spec.Level == "" && len(spec.Path) == 0 {
		return DefaultDimension(), nil
	}
	return ResolveDimension(spec)
}

func (e *Engine) k(v int) int {
	if v <= 0 {
		return e.defaults.K
	}
	return v
}

func (e *Engine) minN(v int) int {
	if v <= 0 {
		return e.defaults.MinN
	}
	return v
}

func (e *Engine) coverage(v float64) float64 {
	if v <= 0 {
		return e.defaults.CoverageThresholdPct
	}
	return v
}

// CaptureRequest parameterizes the capture/leakage metric.
type CaptureRequest struct {
	Window               Window
	IssuerID             string
	StoreID              string
	Reconciled           *bool
	Dimension            DimensionSpec
	Scope                PeerScope
	K                    int
	MinN                 int
	CoverageThresholdPct float64
}

// Capture computes category-level share-of-wallet and leakage.
func (e *Engine) Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error) {
	dim, err := e.resolveDimension(req.Dimension)
	if err != nil {
		return nil, err
	}
	data, err := e.resolveCohort(ctx, req.Window, req.IssuerID, req.StoreID, req.Reconciled, dim)
	if err != nil {
		return nil, err
	}
	return ComputeCapture(data, e.catalog, req.IssuerID, CaptureParams{
		Dimension:            dim,
		Scope:                req.Scope,
		K:                    e.k(req.K),
		MinN:                 e.minN(req.MinN),
		CoverageThresholdPct: e.coverage(req.CoverageThresholdPct),
	}), nil
}

// SwitchingRequest parameterizes the switching-destination metric.
type SwitchingRequest struct {
	Window     Window
	IssuerID   string
	StoreID    string
	Reconciled *bool
	Dimension  DimensionSpec
	K          int
	MinN       int
	MaxRows    int
}

// Switching computes where cohort spend lands outside the target issuer.
func (e *Engine) Switching(ctx context.Context, req SwitchingRequest) (*SwitchingResult, error) {
	dim, err := e.resolveDimension(req.Dimension)
	if err != nil {
		return nil, err
	}
	data, err := e.resolveCohort(ctx, req.Window, req.IssuerID, req.StoreID, req.Reconciled, dim)
	if err != nil {
		return nil, err
	}
	maxRows := req.MaxRows
	if maxRows <= 0 {
		maxRows = e.defaults.MaxSwitchingRows
	}
	return ComputeSwitching(data, req.IssuerID, SwitchingParams{
		K:       e.k(req.K),
		MinN:    e.minN(req.MinN),
		MaxRows: maxRows,
	}), nil
}

// WaterfallRequest parameterizes the retention waterfall. The dimension path
// is required: the waterfall is defined within a target category.
type WaterfallRequest struct {
	Window     Window
	IssuerID   string
	StoreID    string
	Reconciled *bool
	Dimension  DimensionSpec
	RuleSet    string
	MinN       int
}

// Waterfall classifies month-over-month retention transitions.
func (e *Engine) Waterfall(ctx context.Context, req WaterfallRequest) (*WaterfallResult, error) {
	if len(req.Dimension.Path) == 0 || req.Dimension.Path[0] == "" {
		return nil, fmt.Errorf("%w: category path is required for waterfall", ErrMissingParameter)
	}
	rules, err := RuleSetByName(req.RuleSet)
	if err != nil {
		return nil, err
	}
	dim, err := e.resolveDimension(req.Dimension)
	if err != nil {
		return nil, err
	}
	data, err := e.resolveCohort(ctx, req.Window, req.IssuerID, req.StoreID, req.Reconciled, dim)
	if err != nil {
		return nil, err
	}
	return ComputeWaterfall(data, WaterfallParams{
		Rules: rules,
		MinN:  e.minN(req.MinN),
	}), nil
}

// BasketRequest parameterizes the basket-breadth metric.
type BasketRequest struct {
	Window     Window
	IssuerID   string
	StoreID    string
	Reconciled *bool
	Dimension  DimensionSpec
	K          int
	MinN       int
	Mode       SuppressionMode
}

// Basket computes average distinct-category breadth per user-month.
func (e *Engine) Basket(ctx context.Context, req BasketRequest) (*BasketResult, error) {
	dim, err := e.resolveDimension(req.Dimension)
	if err != nil {
		return nil, err
	}
	data, err := e.resolveCohort(ctx, req.Window, req.IssuerID, req.StoreID, req.Reconciled, dim)
	if err != nil {
		return nil, err
	}
	mode := req.Mode
	if mode == "" {
		mode = e.defaults.BasketSuppression
	}
	return ComputeBasket(data, BasketParams{
		K:    e.k(req.K),
		MinN: e.minN(req.MinN),
		Mode: mode,
	}), nil
}

// LoyaltyRequest parameterizes the brand loyalty metric. Category is the
// dimension value to analyze and is required.
type LoyaltyRequest struct {
	Window               Window
	IssuerID             string
	StoreID              string
	Reconciled           *bool
	Dimension            DimensionSpec
	Category             string
	Mode                 EligibilityMode
	MinReceipts          int
	MinMonths            int
	K                    int
	MinN                 int
	CoverageThresholdPct float64
}

// Loyalty computes brand-share tiering within one category at the issuer.
func (e *Engine) Loyalty(ctx context.Context, req LoyaltyRequest) (*LoyaltyResult, error) {
	if req.Category == "" {
		return nil, fmt.Errorf("%w: category value is required for loyalty", ErrMissingParameter)
	}
	dim, err := e.resolveDimension(req.Dimension)
	if err != nil {
		return nil, err
	}
	data, err := e.resolveCohort(ctx, req.Window, req.IssuerID, req.StoreID, req.Reconciled, dim)
	if err != nil {
		return nil, err
	}
	return ComputeLoyalty(data, req.IssuerID, LoyaltyParams{
		Dimension:            dim,
		Category:             req.Category,
		Mode:                 req.Mode,
		MinReceipts:          req.MinReceipts,
		MinMonths:            req.MinMonths,
		K:                    e.k(req.K),
		MinN:                 e.minN(req.MinN),
		CoverageThresholdPct: e.coverage(req.CoverageThresholdPct),
	})
}

// ChildrenRequest parameterizes the drill-down children query.
type ChildrenRequest struct {
	Window     Window
	IssuerID   string
	StoreID    string
	Reconciled *bool
	Domain     Domain
	ParentPath []string
	K          int
	MinN       int
}

// ChildrenRow is one drill-down child value under a parent path.
type ChildrenRow struct {
	Value     string  `json:"value"`
	Users     int     `json:"users"`
	SpendUSD  float64 `json:"spend_usd"`
	IsUnknown bool    `json:"is_unknown,omitempty"`
}

// ChildrenResult lists the child values of a parent path for drill-down UIs.
type ChildrenResult struct {
	Level         Level         `json:"level"`
	Rows          []ChildrenRow `json:"data"`
	Trust         TrustLevel    `json:"trust_level"`
	EligibleUsers int           `json:"eligible_users"`
	Reasons       []string      `json:"suppression_reasons,omitempty"`
}

// Children returns the distinct values one level below the parent path, with
// distinct-user support and spend at the target issuer, k-merged like every
// other grouped output.
func (e *Engine) Children(ctx context.Context, req ChildrenRequest) (*ChildrenResult, error) {
	domain := req.Domain
	if domain == "" {
		domain = DomainProduct
	}
	dim, err := e.resolveDimension(DimensionSpec{Domain: domain, Level: LevelL1, Path: req.ParentPath})
	if err != nil {
		return nil, err
	}
	data, err := e.resolveCohort(ctx, req.Window, req.IssuerID, req.StoreID, req.Reconciled, dim)
	if err != nil {
		return nil, err
	}

	type childAccum struct {
		users map[string]struct{}
		spend float64
	}
	byValue := make(map[string]*childAccum)
	spendByValue := make(map[string]float64)
	for _, line := range data.Lines {
		if !lineAtIssuer(line, req.IssuerID, req.StoreID) {
			continue
		}
		value := dim.ValueOf(line)
		acc := byValue[value]
		if acc == nil {
			acc = &childAccum{users: make(map[string]struct{})}
			byValue[value] = acc
		}
		acc.users[line.UserID] = struct{}{}
		acc.spend += line.LineAmount
		spendByValue[value] += line.LineAmount
	}

	minN := e.minN(req.MinN)
	result := &ChildrenResult{
		Level:         dim.Level,
		EligibleUsers: data.CohortSize(),
	}
	result.Trust = WindowTrust(result.EligibleUsers, minN, 100, 0)
	if result.Trust == TrustSuppressed {
		result.Reasons = SuppressionReasons(result.EligibleUsers, minN, 100, 0)
		return result, nil
	}

	groups := make([]GroupRow, 0, len(byValue))
	for _, value := range sortedKeys(spendByValue) {
		acc := byValue[value]
		groups = append(groups, GroupRow{
			Key:       value,
			Users:     len(acc.users),
			Sums:      []float64{acc.spend},
			IsUnknown: value == UnknownValue,
		})
	}
	groups = MergeKAnonymity(groups, e.k(req.K))

	for _, g := range groups {
		result.Rows = append(result.Rows, ChildrenRow{
			Value:     g.Key,
			Users:     g.Users,
			SpendUSD:  g.Sums[0],
			IsUnknown: g.IsUnknown,
		})
	}
	sort.SliceStable(result.Rows, func(i, j int) bool {
		return result.Rows[i].SpendUSD > result.Rows[j].SpendUSD
	})

	return result, nil
}

// OverviewRequest bundles the shared parameters for the combined overview.
// Loyalty is included only when Category is set.
type OverviewRequest struct {
	Window     Window
	IssuerID   string
	StoreID    string
	Reconciled *bool
	Dimension  DimensionSpec
	Scope      PeerScope
	Category   string
	RuleSet    string
}

// Overview is the combined payload of all metrics for one request.
type Overview struct {
	Capture   *CaptureResult   `json:"capture"`
	Switching *SwitchingResult `json:"switching"`
	Waterfall *WaterfallResult `json:"waterfall,omitempty"`
	Basket    *BasketResult    `json:"basket"`
	Loyalty   *LoyaltyResult   `json:"loyalty,omitempty"`
}

// ComputeOverview scans and resolves the cohort once, then runs the
// aggregators in parallel: none of them reads another's output, so they only
// share the resolver result. The waterfall and loyalty legs are skipped when
// no category is supplied, since both are category-scoped.
func (e *Engine) ComputeOverview(ctx context.Context, req OverviewRequest) (*Overview, error) {
	dim, err := e.resolveDimension(req.Dimension)
	if err != nil {
		return nil, err
	}
	rules, err := RuleSetByName(req.RuleSet)
	if err != nil {
		return nil, err
	}
	data, err := e.resolveCohort(ctx, req.Window, req.IssuerID, req.StoreID, req.Reconciled, dim)
	if err != nil {
		return nil, err
	}

	d := e.defaults
	overview := &Overview{}
	var g errgroup.Group

	g.Go(func() error {
		overview.Capture = ComputeCapture(data, e.catalog, req.IssuerID, CaptureParams{
			Dimension:            dim,
			Scope:                req.Scope,
			K:                    d.K,
			MinN:                 d.MinN,
			CoverageThresholdPct: d.CoverageThresholdPct,
		})
		return nil
	})
	g.Go(func() error {
		overview.Switching = ComputeSwitching(data, req.IssuerID, SwitchingParams{
			K:       d.K,
			MinN:    d.MinN,
			MaxRows: d.MaxSwitchingRows,
		})
		return nil
	})
	g.Go(func() error {
		overview.Basket = ComputeBasket(data, BasketParams{
			K:    d.K,
			MinN: d.MinN,
			Mode: d.BasketSuppression,
		})
		return nil
	})
	if len(dim.Path) > 0 {
		g.Go(func() error {
			overview.Waterfall = ComputeWaterfall(data, WaterfallParams{Rules: rules, MinN: d.MinN})
			return nil
		})
	}
	if req.Category != "" {
		g.Go(func() error {
			loyalty, err := ComputeLoyalty(data, req.IssuerID, LoyaltyParams{
				Dimension:            dim,
				Category:             req.Category,
				K:                    d.K,
				MinN:                 d.MinN,
				CoverageThresholdPct: d.CoverageThresholdPct,
			})
			if err != nil {
				return err
			}
			overview.Loyalty = loyalty
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return overview, nil
}
