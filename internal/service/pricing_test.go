package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/cache"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/pricing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPricingService(c cache.QuoteCache, config PricingConfig) PricingService {
	return NewPricingService(pricing.DefaultTierTable(), c, config, testLogger())
}

// brokenCache fails every call.
type brokenCache struct{ sets int }

func (b *brokenCache) Get(context.Context, string) (domain.PricingQuote, error) {
	return domain.PricingQuote{}, errors.New("connection refused")
}

func (b *brokenCache) Set(context.Context, string, domain.PricingQuote) error {
	b.sets++
	return errors.New("connection refused")
}

// =============================================================================
// Quote Tests
// =============================================================================

func TestPricingService_Quote(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemoryCache(10)
	svc := newTestPricingService(mem, PricingConfig{})

	quote, err := svc.Quote(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(4990), quote.TotalMinorUnits)
	require.NotNil(t, quote.PotentialSavings)
	assert.Equal(t, int64(26), quote.PotentialSavings.NextTierThreshold)
	assert.Equal(t, int64(1300), quote.PotentialSavings.SavingsAmountMinorUnits)
	assert.Equal(t, 1, mem.Len())

	again, err := svc.Quote(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, quote, again)
	assert.Equal(t, 1, mem.Len())
}

func TestPricingService_Quote_Invalid(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemoryCache(10)
	svc := newTestPricingService(mem, PricingConfig{MaxAssetCount: 1000})

	tests := []struct {
		name  string
		count int64
	}{
		{"zero", 0},
		{"negative", -5},
		{"above maximum", 1001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Quote(ctx, tt.count)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
		})
	}
	assert.Equal(t, 0, mem.Len(), "rejected counts are never cached")

	quote, err := svc.Quote(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(349000), quote.TotalMinorUnits)
}

func TestPricingService_Quote_CacheFailureIsNotFatal(t *testing.T) {
	broken := &brokenCache{}
	svc := newTestPricingService(broken, PricingConfig{})

	quote, err := svc.Quote(context.Background(), 60)
	require.NoError(t, err)
	assert.Equal(t, int64(23940), quote.TotalMinorUnits)
	assert.Equal(t, 1, broken.sets)
}

func TestPricingService_NilCache(t *testing.T) {
	svc := newTestPricingService(nil, PricingConfig{})

	quote, err := svc.Quote(context.Background(), 250)
	require.NoError(t, err)
	assert.Equal(t, int64(87250), quote.TotalMinorUnits)
	assert.Nil(t, quote.PotentialSavings)
}

func TestPricingService_PeriodQuote(t *testing.T) {
	svc := newTestPricingService(nil, PricingConfig{})

	monthly, err := svc.PeriodQuote(context.Background(), 60, domain.BillingCycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, int64(23940), monthly.TotalMinorUnits)

	annual, err := svc.PeriodQuote(context.Background(), 60, domain.BillingCycleAnnual)
	require.NoError(t, err)
	assert.Equal(t, int64(229824), annual.TotalMinorUnits)
}

// =============================================================================
// Prorate Tests
// =============================================================================

func TestPricingService_Prorate(t *testing.T) {
	svc := newTestPricingService(cache.NewMemoryCache(0), PricingConfig{})

	tests := []struct {
		name          string
		req           ProrationRequest
		wantDelta     int64
		wantProrated  int64
		wantDirection domain.Direction
	}{
		{
			name:          "monthly upgrade mid-cycle",
			req:           ProrationRequest{OldAssetCount: 50, NewAssetCount: 60, BillingCycle: domain.BillingCycleMonthly, DaysRemaining: 15},
			wantDelta:     1490,
			wantProrated:  745,
			wantDirection: domain.DirectionCharge,
		},
		{
			name:          "monthly downgrade",
			req:           ProrationRequest{OldAssetCount: 60, NewAssetCount: 50, BillingCycle: domain.BillingCycleMonthly, DaysRemaining: 15},
			wantDelta:     -1490,
			wantProrated:  -745,
			wantDirection: domain.DirectionCredit,
		},
		{
			name:          "annual prorates the discounted period total",
			req:           ProrationRequest{OldAssetCount: 50, NewAssetCount: 60, BillingCycle: domain.BillingCycleAnnual, DaysRemaining: 100},
			wantDelta:     229824 - 215520,
			wantProrated:  3919,
			wantDirection: domain.DirectionCharge,
		},
		{
			name:          "no days left",
			req:           ProrationRequest{OldAssetCount: 10, NewAssetCount: 200, BillingCycle: domain.BillingCycleMonthly, DaysRemaining: 0},
			wantDelta:     200*349 - 10*499,
			wantProrated:  0,
			wantDirection: domain.DirectionNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Prorate(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDelta, got.DeltaMinorUnits)
			assert.Equal(t, tt.wantProrated, got.ProratedMinorUnits)
			assert.Equal(t, tt.wantDirection, got.Direction)
			assert.Equal(t, tt.req.DaysRemaining, got.DaysRemainingInPeriod)
		})
	}
}

func TestPricingService_Prorate_Invalid(t *testing.T) {
	svc := newTestPricingService(nil, PricingConfig{})

	tests := []struct {
		name    string
		req     ProrationRequest
		wantErr error
	}{
		{
			name:    "unknown cycle",
			req:     ProrationRequest{OldAssetCount: 10, NewAssetCount: 20, BillingCycle: "weekly", DaysRemaining: 3},
			wantErr: domain.ErrInvalidProrationInput,
		},
		{
			name:    "days beyond cycle",
			req:     ProrationRequest{OldAssetCount: 10, NewAssetCount: 20, BillingCycle: domain.BillingCycleMonthly, DaysRemaining: 31},
			wantErr: domain.ErrInvalidDaysRemaining,
		},
		{
			name:    "negative days",
			req:     ProrationRequest{OldAssetCount: 10, NewAssetCount: 20, BillingCycle: domain.BillingCycleAnnual, DaysRemaining: -1},
			wantErr: domain.ErrInvalidProrationInput,
		},
		{
			name:    "invalid old count",
			req:     ProrationRequest{OldAssetCount: 0, NewAssetCount: 20, BillingCycle: domain.BillingCycleMonthly, DaysRemaining: 3},
			wantErr: domain.ErrInvalidQuantity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Prorate(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
		})
	}
}
