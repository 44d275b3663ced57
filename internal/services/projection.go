package services

import "panelpulse/internal/panel"

// Disclaimers attached to every analytics response.
const (
	panelDisclaimer       = "Figures describe the reporting panel, not the full population."
	suppressionDisclaimer = "Groups below the k-anonymity threshold are merged into OTHER_SUPPRESSED; UNKNOWN values are reported separately with suppressed trust."
	projectionDisclaimer  = "Monetary figures are projected to household level using the issuer expansion factor; counts and percentages remain panel-level."
)

func standardDisclaimers() []string {
	return []string{panelDisclaimer, suppressionDisclaimer}
}

// projectCapture scales the monetary measures of a capture result by the
// household expansion factor. Shares, counts and trust are scale-invariant
// and left untouched. The input is not mutated.
func projectCapture(in *panel.CaptureResult, factor float64) *panel.CaptureResult {
	if in == nil || factor == 1 {
		return in
	}
	out := *in
	out.Rows = make([]panel.CaptureRow, len(in.Rows))
	for i, row := range in.Rows {
		row.SpendInXUSD *= factor
		row.SpendMarketUSD *= factor
		row.LeakageUSD *= factor
		out.Rows[i] = row
	}
	return &out
}

// projectSwitching scales switching spend by the expansion factor.
func projectSwitching(in *panel.SwitchingResult, factor float64) *panel.SwitchingResult {
	if in == nil || factor == 1 {
		return in
	}
	out := *in
	out.Rows = make([]panel.SwitchingRow, len(in.Rows))
	for i, row := range in.Rows {
		row.SpendUSD *= factor
		out.Rows[i] = row
	}
	return &out
}

// projectChildren scales drill-down spend by the expansion factor.
func projectChildren(in *panel.ChildrenResult, factor float64) *panel.ChildrenResult {
	if in == nil || factor == 1 {
		return in
	}
	out := *in
	out.Rows = make([]panel.ChildrenRow, len(in.Rows))
	for i, row := range in.Rows {
		row.SpendUSD *= factor
		out.Rows[i] = row
	}
	return &out
}
