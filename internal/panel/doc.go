// Package panel implements the panel cohort analytics engine: the aggregation
// and classification algorithms that turn a ledger of observed transaction
// line items into cohort-scoped commerce metrics for one target issuer.
//
// # Core Components
//
// The engine is built from seven components with a one-way data flow:
//
//  1. Dimension Resolver: resolves a (domain, level, path prefix) request to a
//     concrete grouping column with drill-down semantics.
//  2. Cohort Resolver: determines the qualifying user set for a window and
//     builds per-user, per-month activity states, split between the target
//     issuer and the whole market.
//  3. Suppression & Trust Policy: k-anonymity merging of low-support groups
//     and a window trust classification every metric applies identically.
//  4. Capture/Leakage Aggregator: share-of-wallet and leakage per category.
//  5. Switching Destination Aggregator: where leaked spend lands.
//  6. Retention Waterfall Classifier: six-bucket month-over-month user state
//     transitions under a fixed, order-sensitive rule set.
//  7. Basket Breadth and Brand Loyalty: distinct-category breadth averages
//     and brand-share tiering with percentile distributions.
//
// # Architecture
//
//   - types.go: core data structures and policy defaults
//   - dimension.go: dimension resolution and path filtering
//   - cohort.go: cohort and monthly state resolution
//   - policy.go: k-anonymity merge and window trust classification
//   - capture.go, switching.go, waterfall.go, basket.go, loyalty.go: the
//     metric aggregators
//   - percentile.go: continuous percentiles by linear interpolation
//   - engine.go: request orchestration over a store Scanner
//
// # Usage
//
//	engine := panel.NewEngine(store, catalog, panel.Defaults{}, slog.Default())
//	result, err := engine.Capture(ctx, panel.CaptureRequest{
//	    Window:   panel.Window{Start: start, End: end},
//	    IssuerID: "X",
//	    Scope:    panel.ScopeAll,
//	})
//
// Every computation is read-only and request-scoped; the engine holds no
// cross-request mutable state and requests may run fully in parallel. A
// SUPPRESSED trust verdict is a valid empty-detail result, not an error.
package panel
