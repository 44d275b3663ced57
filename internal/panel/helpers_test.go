package panel

import (
	"time"
)

// testLine builds a minimal valid line for the product hierarchy.
func testLine(user, invoice string, date time.Time, issuer string, amount float64, l1 string) TransactionLine {
	return TransactionLine{
		UserID:      user,
		InvoiceID:   invoice,
		InvoiceDate: date,
		IssuerID:    issuer,
		Product:     CategoryPath{l1},
		Commerce:    CategoryPath{"RETAIL"},
		LineAmount:  amount,
		Reconciled:  ReconciledTrue,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testWindow(start, end time.Time) Window {
	return Window{Start: start, End: end}
}

// q1Window is Jan through Mar 2025, end exclusive.
func q1Window() Window {
	return testWindow(day(2025, time.January, 1), day(2025, time.April, 1))
}

func mustCohort(t interface{ Fatalf(string, ...interface{}) }, lines []TransactionLine, p CohortParams) *CohortData {
	if p.Dimension.Domain == "" {
		p.Dimension = DefaultDimension()
	}
	data, err := ResolveCohort(lines, p)
	if err != nil {
		t.Fatalf("ResolveCohort: %v", err)
	}
	return data
}

func boolPtr(b bool) *bool { return &b }
