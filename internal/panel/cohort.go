package panel

import (
	"sort"
)

// CohortParams scopes cohort resolution to one window and one target issuer.
// Reconciled is tri-state: nil ignores the flag, true/false require a
// reconciled state; lines with an unknown state match neither.
type CohortParams struct {
	Window     Window
	IssuerID   string
	StoreID    string
	Reconciled *bool
	Dimension  Dimension
}

// CohortData is the Cohort Resolver output every aggregator consumes: the
// qualifying user set, per-user monthly states for every user seen in the
// window (several metrics need both in-X and market-wide activity, so states
// are not restricted to cohort members), the month series actually present,
// and the filtered lines themselves.
type CohortData struct {
	Cohort map[string]struct{}
	States map[string]map[Month]*MonthlyUserState
	Months []Month
	Lines  []TransactionLine
}

type userMonthAccum struct {
	visitsInX    map[string]struct{}
	visitsTotal  map[string]struct{}
	catsInX      map[string]struct{}
	catsTotal    map[string]struct{}
	spendInX     float64
	spendTotal   float64
}

// ResolveCohort builds the cohort and the monthly state series from a window
// scan. Membership is presence-only: one qualifying line at the target issuer
// puts a user in the cohort, a zero amount does not exclude them. Months with
// no qualifying line for anyone are absent from the series, not zero-filled.
func ResolveCohort(lines []TransactionLine, p CohortParams) (*CohortData, error) {
	if err := p.Window.Validate(); err != nil {
		return nil, err
	}

	data := &CohortData{
		Cohort: make(map[string]struct{}),
		States: make(map[string]map[Month]*MonthlyUserState),
	}
	accums := make(map[string]map[Month]*userMonthAccum)
	monthSet := make(map[Month]struct{})

	for _, line := range lines {
		if !line.IsValid() || !p.Window.Contains(line.InvoiceDate) {
			continue
		}
		if !matchReconciled(line, p.Reconciled) {
			continue
		}
		if !p.Dimension.MatchesPath(line) {
			continue
		}

		data.Lines = append(data.Lines, line)

		month := MonthOf(line.InvoiceDate)
		monthSet[month] = struct{}{}

		byMonth := accums[line.UserID]
		if byMonth == nil {
			byMonth = make(map[Month]*userMonthAccum)
			accums[line.UserID] = byMonth
		}
		acc := byMonth[month]
		if acc == nil {
			acc = &userMonthAccum{
				visitsInX:   make(map[string]struct{}),
				visitsTotal: make(map[string]struct{}),
				catsInX:     make(map[string]struct{}),
				catsTotal:   make(map[string]struct{}),
			}
			byMonth[month] = acc
		}

		cat := p.Dimension.ValueOf(line)
		acc.visitsTotal[line.InvoiceID] = struct{}{}
		acc.catsTotal[cat] = struct{}{}
		acc.spendTotal += line.LineAmount

		if lineAtIssuer(line, p.IssuerID, p.StoreID) {
			acc.visitsInX[line.InvoiceID] = struct{}{}
			acc.catsInX[cat] = struct{}{}
			acc.spendInX += line.LineAmount
			data.Cohort[line.UserID] = struct{}{}
		}
	}

	for user, byMonth := range accums {
		states := make(map[Month]*MonthlyUserState, len(byMonth))
		for month, acc := range byMonth {
			states[month] = &MonthlyUserState{
				UserID:          user,
				Month:           month,
				VisitsInX:       len(acc.visitsInX),
				SpendInX:        acc.spendInX,
				CategoriesInX:   len(acc.catsInX),
				VisitsTotal:     len(acc.visitsTotal),
				SpendTotal:      acc.spendTotal,
				CategoriesTotal: len(acc.catsTotal),
			}
		}
		data.States[user] = states
	}

	data.Months = make([]Month, 0, len(monthSet))
	for m := range monthSet {
		data.Months = append(data.Months, m)
	}
	sort.Slice(data.Months, func(i, j int) bool { return data.Months[i] < data.Months[j] })

	return data, nil
}

// State returns the user's state for a month, or a zero-activity state when
// the user has no lines in that month.
func (c *CohortData) State(user string, month Month) MonthlyUserState {
	if byMonth := c.States[user]; byMonth != nil {
		if s := byMonth[month]; s != nil {
			return *s
		}
	}
	return MonthlyUserState{UserID: user, Month: month}
}

// CohortSize returns the number of distinct qualifying users.
func (c *CohortData) CohortSize() int {
	return len(c.Cohort)
}

// CohortUsers returns the cohort as a sorted slice, for deterministic output.
func (c *CohortData) CohortUsers() []string {
	users := make([]string, 0, len(c.Cohort))
	for u := range c.Cohort {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

func matchReconciled(line TransactionLine, want *bool) bool {
	if want == nil {
		return true
	}
	if *want {
		return line.Reconciled == ReconciledTrue
	}
	return line.Reconciled == ReconciledFalse
}

func lineAtIssuer(line TransactionLine, issuerID, storeID string) bool {
	if line.IssuerID != issuerID {
		return false
	}
	return storeID == "" || line.StoreID == storeID
}
