package panel

import (
	"fmt"
	"sort"
)

// SuppressionMode selects how a metric family treats low-support groups:
// hard suppression merges or drops them, soft suppression keeps them flagged.
type SuppressionMode string

const (
	SuppressionHard SuppressionMode = "hard"
	SuppressionSoft SuppressionMode = "soft"
)

// GroupRow is the shape the k-anonymity merge operates on. Aggregators map
// their typed rows into GroupRows, merge, and map back; Sums are summed
// measure columns, so derived percentages must be recomputed after merging.
type GroupRow struct {
	Key       string
	Users     int
	Sums      []float64
	IsUnknown bool
}

// MergeKAnonymity merges every group with distinct-user support below k into
// one OTHER_SUPPRESSED row by summing users and measures. UNKNOWN groups are
// exempt from merging but are always reported with TrustSuppressed by their
// consumers. Order of surviving rows is preserved; the merged row, if any, is
// appended last.
func MergeKAnonymity(rows []GroupRow, k int) []GroupRow {
	if k <= 1 {
		return rows
	}

	kept := make([]GroupRow, 0, len(rows))
	var merged *GroupRow

	for _, row := range rows {
		if row.IsUnknown || row.Users >= k {
			kept = append(kept, row)
			continue
		}
		if merged == nil {
			merged = &GroupRow{Key: OtherSuppressedKey, Sums: make([]float64, len(row.Sums))}
		}
		merged.Users += row.Users
		for i := range row.Sums {
			if i < len(merged.Sums) {
				merged.Sums[i] += row.Sums[i]
			}
		}
	}

	if merged != nil {
		kept = append(kept, *merged)
	}
	return kept
}

// WindowTrust classifies the reliability of a metric window from its sample
// size and dimension coverage. Trust is monotonic in eligibleUsers for fixed
// coverage. When the verdict is SUPPRESSED the caller must not return any
// row-level detail.
func WindowTrust(eligibleUsers, minN int, knownCoveragePct, coverageThresholdPct float64) TrustLevel {
	if eligibleUsers < minN || knownCoveragePct < coverageThresholdPct {
		return TrustSuppressed
	}
	if eligibleUsers < 30 {
		return TrustLow
	}
	if eligibleUsers < 100 {
		return TrustMedium
	}
	return TrustHigh
}

// SuppressionReasons explains a SUPPRESSED verdict; empty for any other tier.
func SuppressionReasons(eligibleUsers, minN int, knownCoveragePct, coverageThresholdPct float64) []string {
	var reasons []string
	if eligibleUsers < minN {
		reasons = append(reasons, fmt.Sprintf("eligible users %d below minimum %d", eligibleUsers, minN))
	}
	if knownCoveragePct < coverageThresholdPct {
		reasons = append(reasons, fmt.Sprintf("known coverage %.1f%% below threshold %.1f%%", knownCoveragePct, coverageThresholdPct))
	}
	return reasons
}

// coveragePct computes the share of spend attributable to non-UNKNOWN keys.
// Returns 100 when there is no spend at all: an empty window is gated by the
// min_n check, not by coverage.
func coveragePct(spendByKey map[string]float64) float64 {
	var total, known float64
	for key, spend := range spendByKey {
		total += spend
		if key != UnknownValue {
			known += spend
		}
	}
	if total <= 0 {
		return 100
	}
	return 100 * known / total
}

// sortedKeys returns map keys in deterministic order.
func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
