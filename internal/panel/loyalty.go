package panel

import (
	"fmt"
	"sort"
)

// EligibilityMode selects the activity threshold a user must meet before
// their brand shares are counted.
type EligibilityMode string

const (
	EligibilityReceipts EligibilityMode = "receipts"
	EligibilityMonths   EligibilityMode = "months"
)

// Default eligibility thresholds.
const (
	DefaultMinReceipts = 3
	DefaultMinMonths   = 2
)

// LoyaltyTier buckets a brand share.
type LoyaltyTier string

const (
	TierExclusive LoyaltyTier = "EXCLUSIVE"
	TierLoyal     LoyaltyTier = "LOYAL"
	TierPrefer    LoyaltyTier = "PREFER"
	TierLight     LoyaltyTier = "LIGHT"
)

// TierOf classifies a brand share percentage.
func TierOf(sharePct float64) LoyaltyTier {
	switch {
	case sharePct >= 95:
		return TierExclusive
	case sharePct >= 80:
		return TierLoyal
	case sharePct >= 50:
		return TierPrefer
	default:
		return TierLight
	}
}

// TierCounts holds per-tier user counts. The four tiers partition a brand's
// buyers exactly.
type TierCounts struct {
	Exclusive int `json:"tier_exclusive"`
	Loyal     int `json:"tier_loyal"`
	Prefer    int `json:"tier_prefer"`
	Light     int `json:"tier_light"`
}

func (tc *TierCounts) add(t LoyaltyTier) {
	switch t {
	case TierExclusive:
		tc.Exclusive++
	case TierLoyal:
		tc.Loyal++
	case TierPrefer:
		tc.Prefer++
	case TierLight:
		tc.Light++
	}
}

func (tc *TierCounts) merge(other TierCounts) {
	tc.Exclusive += other.Exclusive
	tc.Loyal += other.Loyal
	tc.Prefer += other.Prefer
	tc.Light += other.Light
}

// Total returns the number of classified buyers.
func (tc TierCounts) Total() int {
	return tc.Exclusive + tc.Loyal + tc.Prefer + tc.Light
}

// LoyaltyParams tunes the brand loyalty engine. Category is required: the
// metric is not defined market-wide.
type LoyaltyParams struct {
	Dimension            Dimension
	Category             string
	Mode                 EligibilityMode
	MinReceipts          int
	MinMonths            int
	K                    int
	MinN                 int
	CoverageThresholdPct float64
}

// BrandRow is one brand's loyalty profile within the category.
type BrandRow struct {
	Brand          string     `json:"brand"`
	Buyers         int        `json:"brand_buyers"`
	PenetrationPct float64    `json:"penetration_pct"`
	ShareP75       float64    `json:"share_p75"`
	LoyalUsers     int        `json:"loyal_users"`
	LoyaltyRatePct float64    `json:"loyalty_rate_pct"`
	Tiers          TierCounts `json:"tiers"`
	IsUnknown      bool       `json:"is_unknown,omitempty"`
	Trust          TrustLevel `json:"trust_level"`
}

// LoyaltyResult is the brand loyalty metric payload.
type LoyaltyResult struct {
	EligibleUsers         int         `json:"eligible_users"`
	Tiers                 TierCounts  `json:"tiers"`
	SharePercentiles      Percentiles `json:"share_percentiles"`
	Brands                []BrandRow  `json:"data"`
	Trust                 TrustLevel  `json:"trust_level"`
	KnownBrandCoveragePct float64     `json:"known_brand_coverage_pct"`
	Reasons               []string    `json:"suppression_reasons,omitempty"`
}

type loyaltyUser struct {
	catSpend     float64
	receipts     map[string]struct{}
	months       map[Month]struct{}
	spendByBrand map[string]float64
}

type loyaltyBrand struct {
	buyers map[string]struct{}
	shares []float64
	loyal  int
	tiers  TierCounts
}

// ComputeLoyalty filters lines to the target issuer and category, applies the
// eligibility threshold, computes per-user brand shares, tiers them, and
// summarizes the share distribution globally and per brand. Brands below the
// k threshold merge into OTHER_SUPPRESSED; UNKNOWN stays standalone and is
// always reported suppressed.
func ComputeLoyalty(data *CohortData, issuerID string, p LoyaltyParams) (*LoyaltyResult, error) {
	if p.Category == "" {
		return nil, fmt.Errorf("%w: category value is required for loyalty", ErrMissingParameter)
	}
	switch p.Mode {
	case EligibilityReceipts, EligibilityMonths:
	case "":
		p.Mode = EligibilityReceipts
	default:
		return nil, fmt.Errorf("%w: unknown eligibility mode %q", ErrMissingParameter, p.Mode)
	}
	if p.MinReceipts <= 0 {
		p.MinReceipts = DefaultMinReceipts
	}
	if p.MinMonths <= 0 {
		p.MinMonths = DefaultMinMonths
	}

	byUser := make(map[string]*loyaltyUser)
	var totalSpend, knownBrandSpend float64

	for _, line := range data.Lines {
		if line.IssuerID != issuerID || p.Dimension.ValueOf(line) != p.Category {
			continue
		}

		totalSpend += line.LineAmount
		brand := line.BrandOrUnknown()
		if brand != UnknownValue {
			knownBrandSpend += line.LineAmount
		}

		u := byUser[line.UserID]
		if u == nil {
			u = &loyaltyUser{
				receipts:     make(map[string]struct{}),
				months:       make(map[Month]struct{}),
				spendByBrand: make(map[string]float64),
			}
			byUser[line.UserID] = u
		}
		u.catSpend += line.LineAmount
		u.receipts[line.InvoiceID] = struct{}{}
		u.months[MonthOf(line.InvoiceDate)] = struct{}{}
		u.spendByBrand[brand] += line.LineAmount
	}

	result := &LoyaltyResult{}
	if totalSpend > 0 {
		result.KnownBrandCoveragePct = 100 * knownBrandSpend / totalSpend
	} else {
		result.KnownBrandCoveragePct = 100
	}

	eligible := make(map[string]*loyaltyUser)
	for user, u := range byUser {
		switch p.Mode {
		case EligibilityReceipts:
			if len(u.receipts) < p.MinReceipts {
				continue
			}
		case EligibilityMonths:
			if len(u.months) < p.MinMonths {
				continue
			}
		}
		eligible[user] = u
	}
	result.EligibleUsers = len(eligible)

	result.Trust = WindowTrust(result.EligibleUsers, p.MinN, result.KnownBrandCoveragePct, p.CoverageThresholdPct)
	if result.Trust == TrustSuppressed {
		result.Reasons = SuppressionReasons(result.EligibleUsers, p.MinN, result.KnownBrandCoveragePct, p.CoverageThresholdPct)
		return result, nil
	}

	byBrand := make(map[string]*loyaltyBrand)
	var allShares []float64

	userIDs := make([]string, 0, len(eligible))
	for user := range eligible {
		userIDs = append(userIDs, user)
	}
	sort.Strings(userIDs)

	for _, user := range userIDs {
		u := eligible[user]
		if u.catSpend <= 0 {
			// Shares are undefined without category spend.
			continue
		}
		for brand, spend := range u.spendByBrand {
			if spend <= 0 {
				continue
			}
			share := 100 * spend / u.catSpend
			tier := TierOf(share)

			allShares = append(allShares, share)
			result.Tiers.add(tier)

			b := byBrand[brand]
			if b == nil {
				b = &loyaltyBrand{buyers: make(map[string]struct{})}
				byBrand[brand] = b
			}
			b.buyers[user] = struct{}{}
			b.shares = append(b.shares, share)
			b.tiers.add(tier)
			if share >= 80 {
				b.loyal++
			}
		}
	}

	result.SharePercentiles = SummarizePercentiles(allShares)

	brands := make([]string, 0, len(byBrand))
	for brand := range byBrand {
		brands = append(brands, brand)
	}
	sort.Strings(brands)

	var merged *loyaltyBrand
	mergedBuyers := 0
	for _, brand := range brands {
		b := byBrand[brand]
		if brand != UnknownValue && p.K > 1 && len(b.buyers) < p.K {
			if merged == nil {
				merged = &loyaltyBrand{}
			}
			mergedBuyers += len(b.buyers)
			merged.shares = append(merged.shares, b.shares...)
			merged.loyal += b.loyal
			merged.tiers.merge(b.tiers)
			continue
		}
		result.Brands = append(result.Brands, brandRow(brand, len(b.buyers), b, result))
	}
	if merged != nil {
		result.Brands = append(result.Brands, brandRow(OtherSuppressedKey, mergedBuyers, merged, result))
	}

	sort.SliceStable(result.Brands, func(i, j int) bool {
		return result.Brands[i].Buyers > result.Brands[j].Buyers
	})

	return result, nil
}

func brandRow(brand string, buyers int, b *loyaltyBrand, result *LoyaltyResult) BrandRow {
	row := BrandRow{
		Brand:      brand,
		Buyers:     buyers,
		ShareP75:   Percentile(b.shares, 75),
		LoyalUsers: b.loyal,
		Tiers:      b.tiers,
		IsUnknown:  brand == UnknownValue,
		Trust:      result.Trust,
	}
	if result.EligibleUsers > 0 {
		row.PenetrationPct = 100 * float64(buyers) / float64(result.EligibleUsers)
	}
	if buyers > 0 {
		row.LoyaltyRatePct = 100 * float64(b.loyal) / float64(buyers)
	}
	if row.IsUnknown {
		row.Trust = TrustSuppressed
	}
	return row
}
