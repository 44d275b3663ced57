package panel

import (
	"context"
	"time"
)

// UnknownValue is the sentinel for missing or blank dimension and brand values.
// Lines carrying it are never dropped by filters, but any group keyed by it is
// always reported with TrustSuppressed.
const UnknownValue = "UNKNOWN"

// OtherSuppressedKey is the merged bucket that absorbs groups whose distinct-user
// support falls below the k-anonymity threshold.
const OtherSuppressedKey = "OTHER_SUPPRESSED"

// Domain selects which category hierarchy a dimension refers to.
type Domain string

const (
	DomainProduct  Domain = "product"
	DomainCommerce Domain = "commerce"
)

// Level is a depth in a four-level category hierarchy.
type Level string

const (
	LevelL1 Level = "l1"
	LevelL2 Level = "l2"
	LevelL3 Level = "l3"
	LevelL4 Level = "l4"
)

// Index returns the zero-based depth of the level.
func (l Level) Index() (int, bool) {
	switch l {
	case LevelL1:
		return 0, true
	case LevelL2:
		return 1, true
	case LevelL3:
		return 2, true
	case LevelL4:
		return 3, true
	default:
		return 0, false
	}
}

// LevelAt returns the level for a zero-based depth.
func LevelAt(idx int) (Level, bool) {
	switch idx {
	case 0:
		return LevelL1, true
	case 1:
		return LevelL2, true
	case 2:
		return LevelL3, true
	case 3:
		return LevelL4, true
	default:
		return "", false
	}
}

// TrustLevel classifies the reliability of a metric window.
type TrustLevel string

const (
	TrustSuppressed TrustLevel = "SUPPRESSED"
	TrustLow        TrustLevel = "LOW"
	TrustMedium     TrustLevel = "MEDIUM"
	TrustHigh       TrustLevel = "HIGH"
)

// PeerScope controls which issuers count toward the market denominator.
type PeerScope string

const (
	ScopeAll      PeerScope = "all"
	ScopePeers    PeerScope = "peers"
	ScopeExtended PeerScope = "extended"
)

// ReconcileState is the tri-state reconciliation flag carried on a line.
type ReconcileState string

const (
	ReconciledTrue    ReconcileState = "true"
	ReconciledFalse   ReconcileState = "false"
	ReconciledUnknown ReconcileState = "unknown"
)

// CategoryPath holds the l1..l4 values of one hierarchy domain.
type CategoryPath [4]string

// At returns the value at a zero-based depth, normalized to UnknownValue.
func (p CategoryPath) At(idx int) string {
	if idx < 0 || idx >= len(p) || p[idx] == "" {
		return UnknownValue
	}
	return p[idx]
}

// TransactionLine is one observed line item. Lines are immutable and sourced
// from the transaction store; the engine never mutates or persists them.
type TransactionLine struct {
	UserID      string         `json:"user_id"`
	InvoiceID   string         `json:"invoice_id"`
	InvoiceDate time.Time      `json:"invoice_date"`
	IssuerID    string         `json:"issuer_id"`
	StoreID     string         `json:"store_id,omitempty"`
	Product     CategoryPath   `json:"product"`
	Commerce    CategoryPath   `json:"commerce"`
	Brand       string         `json:"brand,omitempty"`
	LineAmount  float64        `json:"line_amount"`
	Reconciled  ReconcileState `json:"reconciled"`
}

// BrandOrUnknown returns the brand, normalized to UnknownValue when blank.
func (t TransactionLine) BrandOrUnknown() string {
	if t.Brand == "" {
		return UnknownValue
	}
	return t.Brand
}

// IsValid reports whether the line carries the minimum fields the engine needs.
func (t TransactionLine) IsValid() bool {
	return t.UserID != "" && t.InvoiceID != "" && !t.InvoiceDate.IsZero() &&
		t.IssuerID != "" && t.LineAmount >= 0
}

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate checks that the window is non-empty.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() || !w.Start.Before(w.End) {
		return ErrInvalidWindow
	}
	return nil
}

// Contains reports whether t falls inside the window. End is exclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Month is a calendar month key in "YYYY-MM" form. Keys sort chronologically.
type Month string

// MonthOf truncates a date to its calendar month.
func MonthOf(t time.Time) Month {
	return Month(t.Format("2006-01"))
}

// MonthlyUserState aggregates one user's activity in one calendar month,
// split between the target issuer ("in X") and the whole market.
type MonthlyUserState struct {
	UserID          string  `json:"user_id"`
	Month           Month   `json:"month"`
	VisitsInX       int     `json:"visits_in_x"`
	SpendInX        float64 `json:"spend_in_x"`
	CategoriesInX   int     `json:"distinct_categories_in_x"`
	VisitsTotal     int     `json:"visits_total"`
	SpendTotal      float64 `json:"spend_total"`
	CategoriesTotal int     `json:"distinct_categories_total"`
}

// ScanFilter scopes a store scan. A nil Reconciled means the reconciliation
// flag is ignored; IssuerID and StoreID are optional narrowing filters.
type ScanFilter struct {
	Window     Window
	IssuerID   string
	StoreID    string
	Reconciled *bool
}

// Matches reports whether a line satisfies the filter. Stores may evaluate
// filters natively; this is the reference semantics.
func (f ScanFilter) Matches(l TransactionLine) bool {
	if !f.Window.Contains(l.InvoiceDate) {
		return false
	}
	if f.IssuerID != "" && l.IssuerID != f.IssuerID {
		return false
	}
	if f.StoreID != "" && l.StoreID != f.StoreID {
		return false
	}
	if f.Reconciled != nil {
		if *f.Reconciled {
			return l.Reconciled == ReconciledTrue
		}
		return l.Reconciled == ReconciledFalse
	}
	return true
}

// Scanner is the single capability the engine consumes from its environment:
// a filtered scan over the immutable transaction snapshot.
type Scanner interface {
	Scan(ctx context.Context, f ScanFilter) ([]TransactionLine, error)
}

// Default policy thresholds.
const (
	DefaultK                    = 5
	DefaultMinN                 = 10
	DefaultCoverageThresholdPct = 60.0
	DefaultMaxSwitchingRows     = 15
	DefaultScanTimeout          = 30 * time.Second
)

// Defaults carries the policy knobs applied when a request leaves them unset.
type Defaults struct {
	K                    int
	MinN                 int
	CoverageThresholdPct float64
	MaxSwitchingRows     int
	WaterfallRules       string
	BasketSuppression    SuppressionMode
	ScanTimeout          time.Duration
}

// FillDefaults replaces zero values with the package defaults.
func (d Defaults) FillDefaults() Defaults {
	if d.K <= 0 {
		d.K = DefaultK
	}
	if d.MinN <= 0 {
		d.MinN = DefaultMinN
	}
	if d.CoverageThresholdPct <= 0 {
		d.CoverageThresholdPct = DefaultCoverageThresholdPct
	}
	if d.MaxSwitchingRows <= 0 {
		d.MaxSwitchingRows = DefaultMaxSwitchingRows
	}
	if d.WaterfallRules == "" {
		d.WaterfallRules = RuleSetCanonical
	}
	if d.BasketSuppression == "" {
		d.BasketSuppression = SuppressionSoft
	}
	if d.ScanTimeout <= 0 {
		d.ScanTimeout = DefaultScanTimeout
	}
	return d
}
