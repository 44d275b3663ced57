package panel

import "fmt"

// Bucket is one retention state in the month-over-month waterfall.
type Bucket string

const (
	BucketRetained      Bucket = "RETAINED"
	BucketCategoryGone  Bucket = "CATEGORY_GONE"
	BucketReducedBasket Bucket = "REDUCED_BASKET"
	BucketReducedFreq   Bucket = "REDUCED_FREQ"
	BucketDelayedOnly   Bucket = "DELAYED_ONLY"
	BucketFullChurn     Bucket = "FULL_CHURN"
)

// BucketOrder is the reporting order of the waterfall buckets. It differs
// from the rule evaluation order, which is fixed by Classify.
var BucketOrder = [6]Bucket{
	BucketRetained,
	BucketCategoryGone,
	BucketReducedBasket,
	BucketReducedFreq,
	BucketDelayedOnly,
	BucketFullChurn,
}

// Rule set names accepted by RuleSetByName.
const (
	RuleSetCanonical = "canonical"
	RuleSetLegacy    = "legacy"
)

// WaterfallRuleSet is a named, versioned classification strategy. Source
// iterations of the waterfall disagreed on thresholds and on which bucket is
// the catch-all, so both knobs are explicit here instead of hard-coded.
type WaterfallRuleSet struct {
	Name string

	// RetainedSpendRatio: next-month in-X spend at or above this fraction of
	// origin spend keeps an active user RETAINED.
	RetainedSpendRatio float64

	// ReducedBasketRatio: next-month in-X spend below this fraction of origin
	// spend moves an active user to REDUCED_BASKET.
	ReducedBasketRatio float64

	// CatchAll receives transitions no explicit rule matched.
	CatchAll Bucket
}

// CanonicalRuleSet returns the rule set with an explicit FULL_CHURN rule and
// DELAYED_ONLY as the fallback.
func CanonicalRuleSet() WaterfallRuleSet {
	return WaterfallRuleSet{
		Name:               RuleSetCanonical,
		RetainedSpendRatio: 0.9,
		ReducedBasketRatio: 0.5,
		CatchAll:           BucketDelayedOnly,
	}
}

// LegacyRuleSet mirrors earlier source iterations where FULL_CHURN doubled as
// the catch-all, leaving DELAYED_ONLY unreachable.
func LegacyRuleSet() WaterfallRuleSet {
	rs := CanonicalRuleSet()
	rs.Name = RuleSetLegacy
	rs.CatchAll = BucketFullChurn
	return rs
}

// RuleSetByName resolves a configured rule-set name.
func RuleSetByName(name string) (WaterfallRuleSet, error) {
	switch name {
	case RuleSetCanonical, "":
		return CanonicalRuleSet(), nil
	case RuleSetLegacy:
		return LegacyRuleSet(), nil
	default:
		return WaterfallRuleSet{}, fmt.Errorf("%w: unknown waterfall rule set %q", ErrMissingParameter, name)
	}
}

// Classify assigns a transition to a bucket. The rule order is load-bearing:
// first match wins, and reordering changes results (a transition satisfying
// both the RETAINED and REDUCED_BASKET conditions must be RETAINED).
//
//  1. RETAINED        - active in X and spend held at >= RetainedSpendRatio
//  2. CATEGORY_GONE   - active in the category elsewhere, absent from X
//  3. REDUCED_BASKET  - active in X but spend below ReducedBasketRatio
//  4. REDUCED_FREQ    - active in X with fewer visits than origin
//  5. FULL_CHURN      - no activity anywhere
//  6. CatchAll        - none of the above
func (rs WaterfallRuleSet) Classify(origin, next MonthlyUserState) Bucket {
	switch {
	case next.VisitsInX > 0 && next.SpendInX >= rs.RetainedSpendRatio*origin.SpendInX:
		return BucketRetained
	case next.VisitsTotal > 0 && next.VisitsInX == 0:
		return BucketCategoryGone
	case next.VisitsInX > 0 && next.SpendInX < rs.ReducedBasketRatio*origin.SpendInX:
		return BucketReducedBasket
	case next.VisitsInX > 0 && next.VisitsInX < origin.VisitsInX:
		return BucketReducedFreq
	case next.VisitsTotal == 0:
		return BucketFullChurn
	default:
		return rs.CatchAll
	}
}

// WaterfallParams tunes the retention waterfall.
type WaterfallParams struct {
	Rules WaterfallRuleSet
	MinN  int
}

// BucketStat is one bucket's count and share for an origin month.
type BucketStat struct {
	Bucket Bucket  `json:"bucket"`
	Users  int     `json:"users"`
	Pct    float64 `json:"pct"`
}

// WaterfallRow is the waterfall for one origin month. Buckets partition the
// transitioning cohort exactly: user counts sum to CohortSize.
type WaterfallRow struct {
	OriginMonth Month        `json:"origin_month"`
	NextMonth   Month        `json:"next_month"`
	CohortSize  int          `json:"cohort_size"`
	Buckets     []BucketStat `json:"buckets"`
}

// WaterfallResult is the retention waterfall metric payload.
type WaterfallResult struct {
	Rows             []WaterfallRow `json:"data"`
	SuppressedMonths []Month        `json:"suppressed_months,omitempty"`
	Trust            TrustLevel     `json:"trust_level"`
	EligibleUsers    int            `json:"eligible_users"`
	Reasons          []string       `json:"suppression_reasons,omitempty"`
}

// ComputeWaterfall classifies every eligible month-to-month transition of the
// cohort. A transition runs from each month in the series to the next month
// present in the series, which is not necessarily calendar-adjacent; a user is
// eligible only with in-X visits in the origin month. Origin months whose
// transitioning cohort is below MinN are listed in SuppressedMonths and
// excluded from the rows.
func ComputeWaterfall(data *CohortData, p WaterfallParams) *WaterfallResult {
	result := &WaterfallResult{EligibleUsers: data.CohortSize()}
	result.Trust = WindowTrust(result.EligibleUsers, p.MinN, 100, 0)
	if result.Trust == TrustSuppressed {
		result.Reasons = SuppressionReasons(result.EligibleUsers, p.MinN, 100, 0)
		return result
	}

	users := data.CohortUsers()

	for i := 0; i+1 < len(data.Months); i++ {
		origin, next := data.Months[i], data.Months[i+1]

		counts := make(map[Bucket]int, len(BucketOrder))
		cohortSize := 0
		for _, user := range users {
			originState := data.State(user, origin)
			if originState.VisitsInX == 0 {
				continue
			}
			cohortSize++
			bucket := p.Rules.Classify(originState, data.State(user, next))
			counts[bucket]++
		}

		if cohortSize == 0 {
			continue
		}
		if cohortSize < p.MinN {
			result.SuppressedMonths = append(result.SuppressedMonths, origin)
			continue
		}

		row := WaterfallRow{
			OriginMonth: origin,
			NextMonth:   next,
			CohortSize:  cohortSize,
			Buckets:     make([]BucketStat, 0, len(BucketOrder)),
		}
		for _, bucket := range BucketOrder {
			n := counts[bucket]
			row.Buckets = append(row.Buckets, BucketStat{
				Bucket: bucket,
				Users:  n,
				Pct:    100 * float64(n) / float64(cohortSize),
			})
		}
		result.Rows = append(result.Rows, row)
	}

	return result
}
