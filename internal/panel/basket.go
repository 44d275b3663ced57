package panel

// BasketParams tunes the basket-breadth aggregation. Mode selects how
// low-support months are treated: soft flags them, hard drops the row.
type BasketParams struct {
	K    int
	MinN int
	Mode SuppressionMode
}

// BasketRow is one month's average distinct-category breadth over cohort
// members active at the target issuer that month.
type BasketRow struct {
	Month            Month   `json:"month"`
	Users            int     `json:"users"`
	AvgBreadthMarket float64 `json:"avg_breadth_market"`
	AvgBreadthInX    float64 `json:"avg_breadth_in_x"`
	IsSuppressed     bool    `json:"is_suppressed,omitempty"`
}

// BasketResult is the basket-breadth metric payload.
type BasketResult struct {
	Rows          []BasketRow `json:"data"`
	Trust         TrustLevel  `json:"trust_level"`
	EligibleUsers int         `json:"eligible_users"`
	Reasons       []string    `json:"suppression_reasons,omitempty"`
}

// ComputeBasket averages distinct resolved-dimension counts per user-month,
// market-wide versus in-X, over cohort members active at the issuer in each
// month of the series. Breadth is a distributional statistic rather than an
// identity, so months below the k threshold are soft-flagged by default
// instead of merged away; SuppressionHard drops them entirely.
func ComputeBasket(data *CohortData, p BasketParams) *BasketResult {
	result := &BasketResult{EligibleUsers: data.CohortSize()}
	result.Trust = WindowTrust(result.EligibleUsers, p.MinN, 100, 0)
	if result.Trust == TrustSuppressed {
		result.Reasons = SuppressionReasons(result.EligibleUsers, p.MinN, 100, 0)
		return result
	}

	users := data.CohortUsers()

	for _, month := range data.Months {
		var active int
		var sumMarket, sumInX float64
		for _, user := range users {
			state := data.State(user, month)
			if state.VisitsInX == 0 {
				continue
			}
			active++
			sumMarket += float64(state.CategoriesTotal)
			sumInX += float64(state.CategoriesInX)
		}
		if active == 0 {
			continue
		}

		row := BasketRow{
			Month:            month,
			Users:            active,
			AvgBreadthMarket: sumMarket / float64(active),
			AvgBreadthInX:    sumInX / float64(active),
		}
		if active < p.K {
			if p.Mode == SuppressionHard {
				continue
			}
			row.IsSuppressed = true
		}
		result.Rows = append(result.Rows, row)
	}

	return result
}
