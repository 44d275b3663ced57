package panel

import "sort"

// IssuerCatalog maps issuers to retailer categories and drives peer-scope
// evaluation. Extended maps a retailer category to the additional categories
// that count as market under ScopeExtended.
type IssuerCatalog struct {
	Categories map[string]string
	Extended   map[string][]string
}

// InScope reports whether spend at issuer counts toward the market
// denominator for the given scope and target issuer. The target itself is
// always in scope.
func (c IssuerCatalog) InScope(scope PeerScope, target, issuer string) bool {
	if issuer == target {
		return true
	}
	switch scope {
	case ScopePeers:
		return c.sameCategory(target, issuer)
	case ScopeExtended:
		if c.sameCategory(target, issuer) {
			return true
		}
		targetCat, ok := c.Categories[target]
		if !ok {
			return false
		}
		issuerCat, ok := c.Categories[issuer]
		if !ok {
			return false
		}
		for _, cat := range c.Extended[targetCat] {
			if cat == issuerCat {
				return true
			}
		}
		return false
	default:
		// ScopeAll, or an unset scope.
		return true
	}
}

func (c IssuerCatalog) sameCategory(target, issuer string) bool {
	targetCat, ok := c.Categories[target]
	if !ok {
		return false
	}
	issuerCat, ok := c.Categories[issuer]
	return ok && issuerCat == targetCat
}

// CaptureParams tunes the share-of-wallet aggregation.
type CaptureParams struct {
	Dimension            Dimension
	Scope                PeerScope
	K                    int
	MinN                 int
	CoverageThresholdPct float64
}

// CaptureRow is one dimension value's share-of-wallet and leakage.
type CaptureRow struct {
	Value          string     `json:"value"`
	Users          int        `json:"users"`
	SpendInXUSD    float64    `json:"spend_in_x_usd"`
	SpendMarketUSD float64    `json:"spend_market_usd"`
	LeakageUSD     float64    `json:"leakage_usd"`
	SowPct         float64    `json:"sow_pct"`
	IsUnknown      bool       `json:"is_unknown,omitempty"`
	Trust          TrustLevel `json:"trust_level"`
}

// CaptureResult is the capture/leakage metric payload.
type CaptureResult struct {
	Rows             []CaptureRow `json:"data"`
	Trust            TrustLevel   `json:"trust_level"`
	EligibleUsers    int          `json:"eligible_users"`
	KnownCoveragePct float64      `json:"known_coverage_pct"`
	Reasons          []string     `json:"suppression_reasons,omitempty"`
}

type captureAccum struct {
	users       map[string]struct{}
	spendInX    float64
	spendMarket float64
}

// ComputeCapture aggregates cohort spend per resolved dimension value into
// share-of-wallet and leakage rows. Market spend counts only lines at issuers
// inside the peer scope; in-X spend counts lines at the target issuer. The
// k-anonymity merge runs on summed measures and percentages are recomputed
// afterwards, preserving leakage = market - inX by construction.
func ComputeCapture(data *CohortData, catalog IssuerCatalog, issuerID string, p CaptureParams) *CaptureResult {
	byValue := make(map[string]*captureAccum)
	spendByValue := make(map[string]float64)

	for _, line := range data.Lines {
		if _, ok := data.Cohort[line.UserID]; !ok {
			continue
		}
		if !catalog.InScope(p.Scope, issuerID, line.IssuerID) {
			continue
		}

		value := p.Dimension.ValueOf(line)
		acc := byValue[value]
		if acc == nil {
			acc = &captureAccum{users: make(map[string]struct{})}
			byValue[value] = acc
		}
		acc.users[line.UserID] = struct{}{}
		acc.spendMarket += line.LineAmount
		if line.IssuerID == issuerID {
			acc.spendInX += line.LineAmount
		}
		spendByValue[value] += line.LineAmount
	}

	result := &CaptureResult{
		EligibleUsers:    data.CohortSize(),
		KnownCoveragePct: coveragePct(spendByValue),
	}
	result.Trust = WindowTrust(result.EligibleUsers, p.MinN, result.KnownCoveragePct, p.CoverageThresholdPct)
	if result.Trust == TrustSuppressed {
		result.Reasons = SuppressionReasons(result.EligibleUsers, p.MinN, result.KnownCoveragePct, p.CoverageThresholdPct)
		return result
	}

	groups := make([]GroupRow, 0, len(byValue))
	for _, value := range sortedKeys(spendByValue) {
		acc := byValue[value]
		groups = append(groups, GroupRow{
			Key:       value,
			Users:     len(acc.users),
			Sums:      []float64{acc.spendInX, acc.spendMarket},
			IsUnknown: value == UnknownValue,
		})
	}
	groups = MergeKAnonymity(groups, p.K)

	result.Rows = make([]CaptureRow, 0, len(groups))
	for _, g := range groups {
		spendInX, spendMarket := g.Sums[0], g.Sums[1]
		row := CaptureRow{
			Value:          g.Key,
			Users:          g.Users,
			SpendInXUSD:    spendInX,
			SpendMarketUSD: spendMarket,
			LeakageUSD:     spendMarket - spendInX,
			IsUnknown:      g.IsUnknown,
			Trust:          result.Trust,
		}
		if spendMarket > 0 {
			row.SowPct = 100 * spendInX / spendMarket
		}
		if g.IsUnknown {
			row.Trust = TrustSuppressed
		}
		result.Rows = append(result.Rows, row)
	}

	sort.SliceStable(result.Rows, func(i, j int) bool {
		return result.Rows[i].SpendInXUSD > result.Rows[j].SpendInXUSD
	})

	return result
}
