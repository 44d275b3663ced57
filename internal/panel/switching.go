package panel

import "sort"

// SwitchingParams tunes the switching-destination aggregation.
type SwitchingParams struct {
	K       int
	MinN    int
	MaxRows int
}

// SwitchingRow is one destination issuer the cohort's leaked spend lands at.
type SwitchingRow struct {
	IssuerID    string     `json:"issuer_id"`
	Users       int        `json:"users"`
	SpendUSD    float64    `json:"spend_usd"`
	PctOfCohort float64    `json:"pct_of_cohort"`
	Trust       TrustLevel `json:"trust_level"`
}

// SwitchingResult is the switching-destination metric payload.
type SwitchingResult struct {
	Rows          []SwitchingRow `json:"data"`
	Trust         TrustLevel     `json:"trust_level"`
	EligibleUsers int            `json:"eligible_users"`
	Reasons       []string       `json:"suppression_reasons,omitempty"`
}

// ComputeSwitching aggregates cohort spend at every issuer other than the
// target, grouped by destination. Destination identity is always known, so
// coverage is full and trust gates on cohort size alone. Rows are sorted by
// distinct users descending and capped at MaxRows after merging.
func ComputeSwitching(data *CohortData, issuerID string, p SwitchingParams) *SwitchingResult {
	type destAccum struct {
		users map[string]struct{}
		spend float64
	}
	byDest := make(map[string]*destAccum)

	for _, line := range data.Lines {
		if line.IssuerID == issuerID {
			continue
		}
		if _, ok := data.Cohort[line.UserID]; !ok {
			continue
		}
		acc := byDest[line.IssuerID]
		if acc == nil {
			acc = &destAccum{users: make(map[string]struct{})}
			byDest[line.IssuerID] = acc
		}
		acc.users[line.UserID] = struct{}{}
		acc.spend += line.LineAmount
	}

	result := &SwitchingResult{EligibleUsers: data.CohortSize()}
	result.Trust = WindowTrust(result.EligibleUsers, p.MinN, 100, 0)
	if result.Trust == TrustSuppressed {
		result.Reasons = SuppressionReasons(result.EligibleUsers, p.MinN, 100, 0)
		return result
	}

	dests := make([]string, 0, len(byDest))
	for dest := range byDest {
		dests = append(dests, dest)
	}
	sort.Strings(dests)

	groups := make([]GroupRow, 0, len(dests))
	for _, dest := range dests {
		acc := byDest[dest]
		groups = append(groups, GroupRow{
			Key:   dest,
			Users: len(acc.users),
			Sums:  []float64{acc.spend},
		})
	}
	groups = MergeKAnonymity(groups, p.K)

	cohortSize := float64(data.CohortSize())
	result.Rows = make([]SwitchingRow, 0, len(groups))
	for _, g := range groups {
		row := SwitchingRow{
			IssuerID: g.Key,
			Users:    g.Users,
			SpendUSD: g.Sums[0],
			Trust:    result.Trust,
		}
		if cohortSize > 0 {
			row.PctOfCohort = 100 * float64(g.Users) / cohortSize
		}
		result.Rows = append(result.Rows, row)
	}

	sort.SliceStable(result.Rows, func(i, j int) bool {
		return result.Rows[i].Users > result.Rows[j].Users
	})
	if p.MaxRows > 0 && len(result.Rows) > p.MaxRows {
		result.Rows = result.Rows[:p.MaxRows]
	}

	return result
}
