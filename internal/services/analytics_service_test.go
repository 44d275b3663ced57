package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panelpulse/internal/config"
	"panelpulse/internal/panel"
	"panelpulse/internal/store"
)

func testLines() []panel.TransactionLine {
	lines := make([]panel.TransactionLine, 0, 12)
	for i := 0; i < 6; i++ {
		user := fmt.Sprintf("u%d", i)
		lines = append(lines,
			panel.TransactionLine{
				UserID:      user,
				InvoiceID:   fmt.Sprintf("inv-x-%d", i),
				InvoiceDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
				IssuerID:    "X",
				Product:     panel.CategoryPath{"FOOD"},
				Brand:       "ACME",
				LineAmount:  100,
				Reconciled:  panel.ReconciledTrue,
			},
			panel.TransactionLine{
				UserID:      user,
				InvoiceID:   fmt.Sprintf("inv-y-%d", i),
				InvoiceDate: time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC),
				IssuerID:    "Y",
				Product:     panel.CategoryPath{"FOOD"},
				Brand:       "ACME",
				LineAmount:  50,
				Reconciled:  panel.ReconciledTrue,
			},
		)
	}
	return lines
}

func newTestService(t *testing.T, analytics config.AnalyticsConfig) *AnalyticsService {
	t.Helper()
	mem := store.NewMemoryStore(testLines(), nil)
	engine := panel.NewEngine(mem, panel.IssuerCatalog{}, panel.Defaults{K: 2, MinN: 2}, nil)
	return NewAnalyticsService(engine, analytics, nil, nil)
}

func baseReq() BaseRequest {
	return BaseRequest{
		From:     "2025-01-01",
		To:       "2025-01-31",
		IssuerID: "X",
		K:        2,
		MinN:     2,
	}
}

func TestCaptureEnvelope(t *testing.T) {
	svc := newTestService(t, config.AnalyticsConfig{})

	env, err := svc.Capture(context.Background(), CaptureRequest{BaseRequest: baseReq()})
	require.NoError(t, err)

	assert.Equal(t, "X", env.Filters.IssuerID)
	assert.Equal(t, "product", env.Filters.Domain)
	assert.Equal(t, "l1", env.Filters.Level)
	assert.False(t, env.Projected)
	assert.NotEmpty(t, env.Disclaimers)

	result, ok := env.Result.(*panel.CaptureResult)
	require.True(t, ok)
	assert.Equal(t, 6, result.EligibleUsers)
	require.NotEmpty(t, result.Rows)
	assert.Equal(t, "FOOD", result.Rows[0].Value)
	assert.Equal(t, 600.0, result.Rows[0].SpendInXUSD)
	assert.Equal(t, 300.0, result.Rows[0].LeakageUSD)
}

func TestCaptureProjection(t *testing.T) {
	svc := newTestService(t, config.AnalyticsConfig{
		ExpansionFactors: map[string]float64{"X": 2.0},
	})

	req := CaptureRequest{BaseRequest: baseReq()}
	req.Project = true
	env, err := svc.Capture(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, env.Projected)
	assert.Equal(t, 2.0, env.ExpansionFactor)
	assert.Contains(t, env.Disclaimers, projectionDisclaimer)

	result := env.Result.(*panel.CaptureResult)
	assert.Equal(t, 1200.0, result.Rows[0].SpendInXUSD)
	assert.Equal(t, 600.0, result.Rows[0].LeakageUSD)
	// Share of wallet is scale-invariant.
	assert.InDelta(t, 66.7, result.Rows[0].SowPct, 0.1)
}

func TestValidationFailures(t *testing.T) {
	svc := newTestService(t, config.AnalyticsConfig{})
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() error
	}{
		{"missing issuer", func() error {
			req := baseReq()
			req.IssuerID = ""
			_, err := svc.Capture(ctx, CaptureRequest{BaseRequest: req})
			return err
		}},
		{"bad date", func() error {
			req := baseReq()
			req.From = "01/01/2025"
			_, err := svc.Capture(ctx, CaptureRequest{BaseRequest: req})
			return err
		}},
		{"bad domain", func() error {
			req := baseReq()
			req.Domain = "category"
			_, err := svc.Switching(ctx, SwitchingRequest{BaseRequest: req})
			return err
		}},
		{"loyalty without category", func() error {
			_, err := svc.Loyalty(ctx, LoyaltyRequest{BaseRequest: baseReq()})
			return err
		}},
		{"bad rule set", func() error {
			req := baseReq()
			req.Path = []string{"FOOD"}
			_, err := svc.Waterfall(ctx, WaterfallRequest{BaseRequest: req, RuleSet: "bogus"})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), panel.ErrMissingParameter)
		})
	}
}

func TestWindowEndInclusive(t *testing.T) {
	svc := newTestService(t, config.AnalyticsConfig{})

	// The January 12 lines at issuer Y must be included when the window ends
	// on the 12th, since "to" is an inclusive calendar day.
	req := baseReq()
	req.From = "2025-01-10"
	req.To = "2025-01-12"
	env, err := svc.Switching(context.Background(), SwitchingRequest{BaseRequest: req})
	require.NoError(t, err)

	result := env.Result.(*panel.SwitchingResult)
	require.NotEmpty(t, result.Rows)
	assert.Equal(t, "Y", result.Rows[0].IssuerID)
	assert.Equal(t, 6, result.Rows[0].Users)
}

func TestWindowReversed(t *testing.T) {
	svc := newTestService(t, config.AnalyticsConfig{})

	req := baseReq()
	req.From = "2025-02-01"
	req.To = "2025-01-01"
	_, err := svc.Basket(context.Background(), BasketRequest{BaseRequest: req})
	assert.ErrorIs(t, err, panel.ErrInvalidWindow)
}

func TestOverview(t *testing.T) {
	svc := newTestService(t, config.AnalyticsConfig{WaterfallRuleSet: panel.RuleSetCanonical})

	req := OverviewRequest{BaseRequest: baseReq(), Category: "FOOD"}
	req.Path = []string{"FOOD"}
	env, err := svc.Overview(context.Background(), req)
	require.NoError(t, err)

	overview := env.Result.(*panel.Overview)
	assert.NotNil(t, overview.Capture)
	assert.NotNil(t, overview.Switching)
	assert.NotNil(t, overview.Basket)
	assert.NotNil(t, overview.Waterfall)
	assert.NotNil(t, overview.Loyalty)
	assert.Equal(t, panel.RuleSetCanonical, env.Filters.RuleSet)
}
