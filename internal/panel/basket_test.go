package panel

import (
	"testing"
	"time"
)

func basketCohort(t *testing.T) *CohortData {
	lines := []TransactionLine{
		// January: a buys 2 categories at X plus 1 more elsewhere; b buys 1 at X.
		testLine("a", "a1", day(2025, time.January, 5), "X", 30, "FOOD"),
		testLine("a", "a1", day(2025, time.January, 5), "X", 20, "DRINKS"),
		testLine("a", "a2", day(2025, time.January, 8), "Y", 10, "PETS"),
		testLine("b", "b1", day(2025, time.January, 9), "X", 15, "FOOD"),
		// February: only a is active at X.
		testLine("a", "a3", day(2025, time.February, 5), "X", 25, "FOOD"),
	}
	return mustCohort(t, lines, CohortParams{Window: q1Window(), IssuerID: "X"})
}

func TestComputeBasketAverages(t *testing.T) {
	data := basketCohort(t)

	result := ComputeBasket(data, BasketParams{K: 1, MinN: 1, Mode: SuppressionSoft})
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(result.Rows))
	}

	jan := result.Rows[0]
	if jan.Month != "2025-01" || jan.Users != 2 {
		t.Fatalf("jan = %+v", jan)
	}
	// a: 3 categories market-wide, 2 at X; b: 1 and 1.
	if jan.AvgBreadthMarket != 2 {
		t.Errorf("avg_breadth_market = %.2f, want 2", jan.AvgBreadthMarket)
	}
	if jan.AvgBreadthInX != 1.5 {
		t.Errorf("avg_breadth_in_x = %.2f, want 1.5", jan.AvgBreadthInX)
	}
}

func TestComputeBasketSuppressionModes(t *testing.T) {
	data := basketCohort(t)

	soft := ComputeBasket(data, BasketParams{K: 2, MinN: 1, Mode: SuppressionSoft})
	if len(soft.Rows) != 2 {
		t.Fatalf("soft rows = %d, want 2", len(soft.Rows))
	}
	feb := soft.Rows[1]
	if feb.Users != 1 || !feb.IsSuppressed {
		t.Errorf("feb must be soft-flagged, got %+v", feb)
	}
	if soft.Rows[0].IsSuppressed {
		t.Error("jan meets k and must not be flagged")
	}

	hard := ComputeBasket(data, BasketParams{K: 2, MinN: 1, Mode: SuppressionHard})
	if len(hard.Rows) != 1 || hard.Rows[0].Month != "2025-01" {
		t.Errorf("hard mode must drop the low-support month, got %+v", hard.Rows)
	}
}

func TestComputeBasketSuppressedWindow(t *testing.T) {
	data := basketCohort(t)

	result := ComputeBasket(data, BasketParams{K: 1, MinN: 100, Mode: SuppressionSoft})
	if result.Trust != TrustSuppressed || len(result.Rows) != 0 {
		t.Errorf("expected suppressed empty result, got %+v", result)
	}
}
