package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/pricing"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/service"
)

func passthrough(h http.Handler) http.Handler { return h }

func newPricingMux(t *testing.T) *http.ServeMux {
	t.Helper()
	svc := service.NewPricingService(pricing.DefaultTierTable(), nil, service.PricingConfig{MaxAssetCount: 10000}, discardLogger())
	mux := http.NewServeMux()
	NewPricingHandler(svc, discardLogger()).RegisterRoutes(mux, passthrough)
	return mux
}

func doJSON(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// Tiers Tests
// =============================================================================

func TestPricingHandler_Tiers(t *testing.T) {
	rec := doJSON(t, newPricingMux(t), http.MethodGet, "/api/pricing/tiers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decodeBody[tiersResponse](t, rec)
	assert.Equal(t, "gbp", resp.Currency)
	assert.Equal(t, int64(20), resp.AnnualDiscountPercent)
	assert.NotEmpty(t, resp.Version)
	require.Len(t, resp.Tiers, 4)

	assert.Equal(t, "1-25", resp.Tiers[0].RangeLabel)
	assert.Equal(t, int64(499), resp.Tiers[0].UnitPriceMinorUnits)
	require.NotNil(t, resp.Tiers[0].UpperBound)
	assert.Equal(t, int64(25), *resp.Tiers[0].UpperBound)

	assert.Equal(t, "101+", resp.Tiers[3].RangeLabel)
	assert.Equal(t, int64(101), resp.Tiers[3].LowerBound)
	assert.Nil(t, resp.Tiers[3].UpperBound, "unbounded tier has a null upper bound")
}

func TestPricingHandler_TiersRejectsWrongMethod(t *testing.T) {
	rec := doJSON(t, newPricingMux(t), http.MethodPost, "/api/pricing/tiers", "{}")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// =============================================================================
// Preview Tests
// =============================================================================

func TestPricingHandler_Preview(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantTotal   int64
		wantTier    int
		wantLabel   string
		wantSavings *savingsView
		wantPeriod  *int64
	}{
		{
			name:        "first tier suggests next threshold",
			body:        `{"assetCount": 10}`,
			wantTotal:   4990,
			wantTier:    0,
			wantLabel:   "1-25",
			wantSavings: &savingsView{NextTierThreshold: 26, SavingsAmountMinorUnits: 1300},
		},
		{
			name:        "third tier",
			body:        `{"assetCount": 60}`,
			wantTotal:   23940,
			wantTier:    2,
			wantLabel:   "51-100",
			wantSavings: &savingsView{NextTierThreshold: 101, SavingsAmountMinorUnits: 5050},
		},
		{
			name:      "unbounded tier has no savings",
			body:      `{"assetCount": 250}`,
			wantTotal: 87250,
			wantTier:  3,
			wantLabel: "101+",
		},
		{
			name:        "annual cycle adds period total",
			body:        `{"assetCount": 50, "billingCycle": "annual"}`,
			wantTotal:   22450,
			wantTier:    1,
			wantLabel:   "26-50",
			wantSavings: &savingsView{NextTierThreshold: 51, SavingsAmountMinorUnits: 2550},
			wantPeriod:  ptr(int64(215520)),
		},
		{
			name:        "top of first tier",
			body:        `{"assetCount": 25}`,
			wantTotal:   12475,
			wantTier:    0,
			wantLabel:   "1-25",
			wantSavings: &savingsView{NextTierThreshold: 26, SavingsAmountMinorUnits: 1300},
		},
	}

	mux := newPricingMux(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, mux, http.MethodPost, "/api/pricing/preview", tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			resp := decodeBody[quoteResponse](t, rec)
			assert.Equal(t, "gbp", resp.Currency)
			assert.Equal(t, tt.wantTotal, resp.EstimatedMonthlyTotalMinorUnits)
			require.Len(t, resp.TierBreakdown, 1)
			assert.Equal(t, tt.wantTier, resp.TierBreakdown[0].TierIndex)
			assert.Equal(t, tt.wantLabel, resp.TierBreakdown[0].RangeLabel)
			assert.Equal(t, resp.AssetCount, resp.TierBreakdown[0].Quantity)
			assert.Equal(t, tt.wantTotal, resp.TierBreakdown[0].SubtotalMinorUnits)
			assert.Equal(t, tt.wantSavings, resp.PotentialSavings)
			assert.Equal(t, tt.wantPeriod, resp.PeriodTotalMinorUnits)
		})
	}
}

func TestPricingHandler_PreviewInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero", `{"assetCount": 0}`},
		{"negative", `{"assetCount": -5}`},
		{"fractional", `{"assetCount": 10.5}`},
		{"exponent", `{"assetCount": 1e3}`},
		{"missing", `{}`},
		{"not a number", `{"assetCount": "ten"}`},
		{"numeric string", `{"assetCount": "7"}`},
		{"null", `{"assetCount": null}`},
		{"over maximum", `{"assetCount": 10001}`},
		{"empty body", ``},
		{"malformed", `{"assetCount":`},
		{"unknown cycle", `{"assetCount": 10, "billingCycle": "weekly"}`},
	}

	mux := newPricingMux(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, mux, http.MethodPost, "/api/pricing/preview", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			resp := decodeBody[JSONError](t, rec)
			assert.Equal(t, domain.EINVALID, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Message)
		})
	}
}

// =============================================================================
// Proration Tests
// =============================================================================

func TestPricingHandler_Proration(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		wantOld       int64
		wantNew       int64
		wantProrated  int64
		wantDirection string
		wantLength    int64
	}{
		{
			name:          "monthly upgrade",
			body:          `{"oldAssetCount": 50, "newAssetCount": 60, "billingCycle": "monthly", "daysRemaining": 15}`,
			wantOld:       22450,
			wantNew:       23940,
			wantProrated:  745,
			wantDirection: "charge",
			wantLength:    30,
		},
		{
			name:          "annual upgrade uses period totals",
			body:          `{"oldAssetCount": 50, "newAssetCount": 60, "billingCycle": "annual", "daysRemaining": 100}`,
			wantOld:       215520,
			wantNew:       229824,
			wantProrated:  3919,
			wantDirection: "charge",
			wantLength:    365,
		},
		{
			name:          "monthly downgrade credits",
			body:          `{"oldAssetCount": 60, "newAssetCount": 50, "billingCycle": "monthly", "daysRemaining": 15}`,
			wantOld:       23940,
			wantNew:       22450,
			wantProrated:  -745,
			wantDirection: "credit",
			wantLength:    30,
		},
		{
			name:          "no days remaining",
			body:          `{"oldAssetCount": 10, "newAssetCount": 20, "billingCycle": "monthly", "daysRemaining": 0}`,
			wantOld:       4990,
			wantNew:       9980,
			wantProrated:  0,
			wantDirection: "none",
			wantLength:    30,
		},
	}

	mux := newPricingMux(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, mux, http.MethodPost, "/api/pricing/proration", tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			resp := decodeBody[prorationResponse](t, rec)
			assert.Equal(t, tt.wantOld, resp.OldTotalMinorUnits)
			assert.Equal(t, tt.wantNew, resp.NewTotalMinorUnits)
			assert.Equal(t, tt.wantNew-tt.wantOld, resp.DeltaMinorUnits)
			assert.Equal(t, tt.wantProrated, resp.ProratedMinorUnits)
			assert.Equal(t, tt.wantDirection, resp.Direction)
			assert.Equal(t, tt.wantLength, resp.BillingCycleLengthDays)
			assert.Equal(t, "gbp", resp.Currency)
		})
	}
}

func TestPricingHandler_ProrationInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"weekly cycle", `{"oldAssetCount": 50, "newAssetCount": 60, "billingCycle": "weekly", "daysRemaining": 3}`},
		{"missing cycle", `{"oldAssetCount": 50, "newAssetCount": 60, "daysRemaining": 3}`},
		{"zero old count", `{"oldAssetCount": 0, "newAssetCount": 60, "billingCycle": "monthly", "daysRemaining": 3}`},
		{"fractional new count", `{"oldAssetCount": 50, "newAssetCount": 60.5, "billingCycle": "monthly", "daysRemaining": 3}`},
		{"negative days", `{"oldAssetCount": 50, "newAssetCount": 60, "billingCycle": "monthly", "daysRemaining": -1}`},
		{"days beyond cycle", `{"oldAssetCount": 50, "newAssetCount": 60, "billingCycle": "monthly", "daysRemaining": 31}`},
		{"fractional days", `{"oldAssetCount": 50, "newAssetCount": 60, "billingCycle": "monthly", "daysRemaining": 1.5}`},
		{"quoted old count", `{"oldAssetCount": "50", "newAssetCount": 60, "billingCycle": "monthly", "daysRemaining": 3}`},
		{"quoted days", `{"oldAssetCount": 50, "newAssetCount": 60, "billingCycle": "monthly", "daysRemaining": "3"}`},
	}

	mux := newPricingMux(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, mux, http.MethodPost, "/api/pricing/proration", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, domain.EINVALID, decodeBody[JSONError](t, rec).Error.Code)
		})
	}
}

func TestPricingHandler_QuotedCountMessage(t *testing.T) {
	mux := newPricingMux(t)
	rec := doJSON(t, mux, http.MethodPost, "/api/pricing/preview", `{"assetCount": "7"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[JSONError](t, rec)
	assert.Equal(t, domain.EINVALID, resp.Error.Code)
	assert.Equal(t, "counts must be JSON numbers, not strings", resp.Error.Message)
}

func ptr[T any](v T) *T { return &v }
