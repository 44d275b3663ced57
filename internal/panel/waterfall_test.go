package panel

import (
	"math"
	"testing"
	"time"
)

func state(visitsInX int, spendInX float64, visitsTotal int, spendTotal float64) MonthlyUserState {
	return MonthlyUserState{
		VisitsInX:   visitsInX,
		SpendInX:    spendInX,
		VisitsTotal: visitsTotal,
		SpendTotal:  spendTotal,
	}
}

func TestClassifyRuleOrder(t *testing.T) {
	rules := CanonicalRuleSet()

	tests := []struct {
		name   string
		origin MonthlyUserState
		next   MonthlyUserState
		want   Bucket
	}{
		{
			// Satisfies both the RETAINED and REDUCED_FREQ raw conditions;
			// the earlier rule must win.
			name:   "retained_wins_over_reduced_freq",
			origin: state(3, 100, 3, 100),
			next:   state(1, 95, 1, 95),
			want:   BucketRetained,
		},
		{
			name:   "spend_held_at_exactly_90_pct",
			origin: state(1, 100, 1, 100),
			next:   state(1, 90, 1, 90),
			want:   BucketRetained,
		},
		{
			name:   "active_elsewhere_absent_from_x",
			origin: state(2, 50, 2, 50),
			next:   state(0, 0, 1, 30),
			want:   BucketCategoryGone,
		},
		{
			name:   "spend_collapsed",
			origin: state(1, 100, 1, 100),
			next:   state(1, 40, 1, 40),
			want:   BucketReducedBasket,
		},
		{
			name:   "fewer_visits_spend_between_thresholds",
			origin: state(3, 100, 3, 100),
			next:   state(1, 70, 1, 70),
			want:   BucketReducedFreq,
		},
		{
			name:   "no_activity_anywhere",
			origin: state(2, 80, 2, 80),
			next:   state(0, 0, 0, 0),
			want:   BucketFullChurn,
		},
		{
			// Same visits, spend between 50% and 90%: no explicit rule fires.
			name:   "fallback_delayed_only",
			origin: state(2, 100, 2, 100),
			next:   state(2, 70, 2, 70),
			want:   BucketDelayedOnly,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rules.Classify(tt.origin, tt.next); got != tt.want {
				t.Errorf("Classify = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyLegacyCatchAll(t *testing.T) {
	rules := LegacyRuleSet()
	// The fallback case lands in FULL_CHURN under the legacy variant.
	got := rules.Classify(state(2, 100, 2, 100), state(2, 70, 2, 70))
	if got != BucketFullChurn {
		t.Errorf("legacy catch-all = %s, want FULL_CHURN", got)
	}
}

func TestRuleSetByName(t *testing.T) {
	if rs, err := RuleSetByName(""); err != nil || rs.Name != RuleSetCanonical {
		t.Errorf("empty name must default to canonical, got %v/%v", rs.Name, err)
	}
	if _, err := RuleSetByName("v7"); err == nil {
		t.Error("unknown rule set must error")
	}
}

// End-to-end scenario: user A retains, user B stays in the category but
// leaves X, a third user never qualifies for the cohort.
func TestComputeWaterfallScenario(t *testing.T) {
	lines := []TransactionLine{
		testLine("a", "a-jan", day(2025, time.January, 10), "X", 100, "FOOD"),
		testLine("a", "a-feb", day(2025, time.February, 10), "X", 95, "FOOD"),
		testLine("b", "b-jan", day(2025, time.January, 12), "X", 50, "FOOD"),
		testLine("b", "b-feb", day(2025, time.February, 12), "Y", 30, "FOOD"),
		testLine("c", "c-jan", day(2025, time.January, 15), "Y", 70, "FOOD"),
	}
	data := mustCohort(t, lines, CohortParams{Window: q1Window(), IssuerID: "X"})

	result := ComputeWaterfall(data, WaterfallParams{Rules: CanonicalRuleSet(), MinN: 1})

	if len(result.Rows) != 1 {
		t.Fatalf("rows = %d, want 1 (only Jan has a next month)", len(result.Rows))
	}
	row := result.Rows[0]
	if row.OriginMonth != "2025-01" || row.CohortSize != 2 {
		t.Fatalf("row = %+v, want origin 2025-01 with cohort_size 2", row)
	}

	counts := map[Bucket]BucketStat{}
	for _, b := range row.Buckets {
		counts[b.Bucket] = b
	}
	if counts[BucketRetained].Users != 1 || counts[BucketRetained].Pct != 50 {
		t.Errorf("RETAINED = %+v, want 1 user at 50%%", counts[BucketRetained])
	}
	if counts[BucketCategoryGone].Users != 1 || counts[BucketCategoryGone].Pct != 50 {
		t.Errorf("CATEGORY_GONE = %+v, want 1 user at 50%%", counts[BucketCategoryGone])
	}
}

// Buckets must partition the transitioning cohort exactly.
func TestComputeWaterfallPartition(t *testing.T) {
	lines := []TransactionLine{
		testLine("a", "a1", day(2025, time.January, 10), "X", 100, "FOOD"),
		testLine("a", "a2", day(2025, time.February, 10), "X", 95, "FOOD"),
		testLine("b", "b1", day(2025, time.January, 12), "X", 50, "FOOD"),
		testLine("c", "c1", day(2025, time.January, 13), "X", 80, "FOOD"),
		testLine("c", "c2", day(2025, time.February, 13), "X", 30, "FOOD"),
		testLine("d", "d1", day(2025, time.January, 14), "X", 60, "FOOD"),
		testLine("d", "d2", day(2025, time.February, 14), "Y", 10, "FOOD"),
	}
	data := mustCohort(t, lines, CohortParams{Window: q1Window(), IssuerID: "X"})

	result := ComputeWaterfall(data, WaterfallParams{Rules: CanonicalRuleSet(), MinN: 1})
	for _, row := range result.Rows {
		total := 0
		pct := 0.0
		for _, b := range row.Buckets {
			total += b.Users
			pct += b.Pct
		}
		if total != row.CohortSize {
			t.Errorf("%s: bucket users sum to %d, cohort_size %d", row.OriginMonth, total, row.CohortSize)
		}
		if math.Abs(pct-100) > 1e-6 {
			t.Errorf("%s: bucket pcts sum to %.4f", row.OriginMonth, pct)
		}
	}
}

// A missing next-month state means no activity anywhere: FULL_CHURN.
func TestComputeWaterfallAbsentUserIsFullChurn(t *testing.T) {
	lines := []TransactionLine{
		testLine("a", "a1", day(2025, time.January, 10), "X", 100, "FOOD"),
		testLine("b", "b1", day(2025, time.January, 11), "X", 50, "FOOD"),
		testLine("b", "b2", day(2025, time.February, 11), "X", 50, "FOOD"),
	}
	data := mustCohort(t, lines, CohortParams{Window: q1Window(), IssuerID: "X"})

	result := ComputeWaterfall(data, WaterfallParams{Rules: CanonicalRuleSet(), MinN: 1})
	row := result.Rows[0]
	for _, b := range row.Buckets {
		if b.Bucket == BucketFullChurn && b.Users != 1 {
			t.Errorf("FULL_CHURN users = %d, want 1", b.Users)
		}
	}
}

// Transitions run to the next month present in the series, not the calendar
// neighbor.
func TestComputeWaterfallGapMonths(t *testing.T) {
	lines := []TransactionLine{
		testLine("a", "a1", day(2025, time.January, 10), "X", 100, "FOOD"),
		// No February activity for anyone; March is the next series month.
		testLine("a", "a2", day(2025, time.March, 10), "X", 100, "FOOD"),
	}
	data := mustCohort(t, lines, CohortParams{Window: q1Window(), IssuerID: "X"})

	result := ComputeWaterfall(data, WaterfallParams{Rules: CanonicalRuleSet(), MinN: 1})
	if len(result.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(result.Rows))
	}
	row := result.Rows[0]
	if row.OriginMonth != "2025-01" || row.NextMonth != "2025-03" {
		t.Fatalf("transition = %s -> %s, want 2025-01 -> 2025-03", row.OriginMonth, row.NextMonth)
	}
	if row.Buckets[0].Bucket != BucketRetained || row.Buckets[0].Users != 1 {
		t.Errorf("gap transition should be RETAINED, got %+v", row.Buckets)
	}
}

func TestComputeWaterfallSuppressedMonths(t *testing.T) {
	lines := []TransactionLine{
		// Only user a transitions out of January: below min_n 2.
		testLine("a", "a1", day(2025, time.January, 10), "X", 100, "FOOD"),
		testLine("a", "a2", day(2025, time.February, 10), "X", 95, "FOOD"),
		testLine("a", "a3", day(2025, time.March, 10), "X", 95, "FOOD"),
		// User b joins in February, so the Feb origin has two users.
		testLine("b", "b1", day(2025, time.February, 12), "X", 40, "FOOD"),
		testLine("b", "b2", day(2025, time.March, 12), "X", 40, "FOOD"),
	}
	data := mustCohort(t, lines, CohortParams{Window: q1Window(), IssuerID: "X"})

	result := ComputeWaterfall(data, WaterfallParams{Rules: CanonicalRuleSet(), MinN: 2})
	if result.Trust == TrustSuppressed {
		t.Fatalf("window with 2 eligible users and min_n 2 must not be suppressed")
	}

	if len(result.SuppressedMonths) != 1 || result.SuppressedMonths[0] != "2025-01" {
		t.Fatalf("suppressed_months = %v, want [2025-01]", result.SuppressedMonths)
	}
	if len(result.Rows) != 1 || result.Rows[0].OriginMonth != "2025-02" {
		t.Fatalf("rows = %+v, want only the 2025-02 origin", result.Rows)
	}
}
