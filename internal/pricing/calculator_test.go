package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
)

// =============================================================================
// ComputeQuote Tests
// =============================================================================

func TestComputeQuote_DefaultTable(t *testing.T) {
	calc := NewCalculator(DefaultTierTable())

	tests := []struct {
		name        string
		count       int64
		wantTier    int
		wantTotal   int64
		wantLabel   string
		wantSavings *domain.PotentialSavings
	}{
		{"first asset", 1, 0, 499, "1-25", &domain.PotentialSavings{NextTierThreshold: 26, SavingsAmountMinorUnits: 1300}},
		{"ten assets", 10, 0, 4990, "1-25", &domain.PotentialSavings{NextTierThreshold: 26, SavingsAmountMinorUnits: 1300}},
		{"tier 0 boundary", 25, 0, 12475, "1-25", &domain.PotentialSavings{NextTierThreshold: 26, SavingsAmountMinorUnits: 1300}},
		{"tier 1 start", 26, 1, 11674, "26-50", &domain.PotentialSavings{NextTierThreshold: 51, SavingsAmountMinorUnits: 2550}},
		{"tier 1 boundary", 50, 1, 22450, "26-50", &domain.PotentialSavings{NextTierThreshold: 51, SavingsAmountMinorUnits: 2550}},
		{"tier 2 start", 51, 2, 20349, "51-100", &domain.PotentialSavings{NextTierThreshold: 101, SavingsAmountMinorUnits: 5050}},
		{"sixty assets", 60, 2, 23940, "51-100", &domain.PotentialSavings{NextTierThreshold: 101, SavingsAmountMinorUnits: 5050}},
		{"tier 2 boundary", 100, 2, 39900, "51-100", &domain.PotentialSavings{NextTierThreshold: 101, SavingsAmountMinorUnits: 5050}},
		{"tier 3 start", 101, 3, 35249, "101+", nil},
		{"two hundred fifty", 250, 3, 87250, "101+", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote, err := calc.ComputeQuote(tt.count)
			require.NoError(t, err)

			assert.Equal(t, tt.count, quote.AssetCount)
			assert.Equal(t, tt.wantTier, quote.MatchedTierIndex)
			assert.Equal(t, tt.wantTotal, quote.TotalMinorUnits)
			require.Len(t, quote.Breakdown, 1)
			row := quote.Breakdown[0]
			assert.Equal(t, tt.wantTier, row.TierIndex)
			assert.Equal(t, tt.wantLabel, row.RangeLabel)
			assert.Equal(t, tt.count, row.Quantity)
			assert.Equal(t, tt.wantTotal, row.SubtotalMinorUnits)
			assert.Equal(t, tt.wantSavings, quote.PotentialSavings)
		})
	}
}

func TestComputeQuote_TenAssetsBreakdown(t *testing.T) {
	calc := NewCalculator(DefaultTierTable())

	quote, err := calc.ComputeQuote(10)
	require.NoError(t, err)

	assert.Equal(t, []domain.TierBreakdownRow{{
		TierIndex:           0,
		RangeLabel:          "1-25",
		UnitPriceMinorUnits: 499,
		Quantity:            10,
		SubtotalMinorUnits:  4990,
	}}, quote.Breakdown)
}

func TestComputeQuote_InvalidQuantity(t *testing.T) {
	calc := NewCalculator(DefaultTierTable())

	for _, count := range []int64{0, -1, -5, math.MinInt64} {
		_, err := calc.ComputeQuote(count)
		require.Error(t, err, "count %d", count)
		assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
		assert.Equal(t, "pricing.compute_quote", domain.ErrorOp(err))
	}
}

func TestComputeQuote_Overflow(t *testing.T) {
	calc := NewCalculator(DefaultTierTable())

	_, err := calc.ComputeQuote(math.MaxInt64)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	// Largest count whose total still fits.
	limit := int64(math.MaxInt64 / 349)
	quote, err := calc.ComputeQuote(limit)
	require.NoError(t, err)
	assert.Equal(t, limit*349, quote.TotalMinorUnits)
}

func TestComputeQuote_NoSavingsWhenNextTierNotCheaper(t *testing.T) {
	table, err := NewTierTable([]domain.PricingTier{
		{UpperBound: 10, UnitPriceMinorUnits: 100},
		{UpperBound: 20, UnitPriceMinorUnits: 100},
		{UpperBound: domain.Unbounded, UnitPriceMinorUnits: 120},
	}, TableOptions{})
	require.NoError(t, err)
	calc := NewCalculator(table)

	quote, err := calc.ComputeQuote(5)
	require.NoError(t, err)
	assert.Nil(t, quote.PotentialSavings, "equal next tier price offers no savings")

	quote, err = calc.ComputeQuote(15)
	require.NoError(t, err)
	assert.Nil(t, quote.PotentialSavings, "pricier next tier offers no savings")
}

func TestComputeQuote_SingleUnboundedTier(t *testing.T) {
	table, err := NewTierTable([]domain.PricingTier{
		{UpperBound: domain.Unbounded, UnitPriceMinorUnits: 250},
	}, TableOptions{})
	require.NoError(t, err)

	quote, err := NewCalculator(table).ComputeQuote(7)
	require.NoError(t, err)
	assert.Equal(t, 0, quote.MatchedTierIndex)
	assert.Equal(t, int64(1750), quote.TotalMinorUnits)
	assert.Equal(t, "1+", quote.Breakdown[0].RangeLabel)
	assert.Nil(t, quote.PotentialSavings)
}

// =============================================================================
// Property Tests
// =============================================================================

func TestComputeQuote_Properties(t *testing.T) {
	table := DefaultTierTable()
	calc := NewCalculator(table)

	const maxCount = 100000
	var prevTier int
	for n := int64(1); n <= maxCount; n++ {
		quote, err := calc.ComputeQuote(n)
		require.NoError(t, err, "count %d", n)

		// Tiers are reached in order and every count matches one.
		require.GreaterOrEqual(t, quote.MatchedTierIndex, prevTier, "count %d", n)
		prevTier = quote.MatchedTierIndex
		tier := table.Tier(quote.MatchedTierIndex)
		require.True(t, tier.Contains(table.LowerBound(quote.MatchedTierIndex), n), "count %d", n)

		// Whole-count pricing.
		require.Equal(t, n*tier.UnitPriceMinorUnits, quote.TotalMinorUnits, "count %d", n)
		require.Len(t, quote.Breakdown, 1)
		require.Equal(t, quote.TotalMinorUnits, quote.Breakdown[0].SubtotalMinorUnits)

		// Savings consistency.
		if s := quote.PotentialSavings; s != nil {
			next := table.Tier(quote.MatchedTierIndex + 1)
			require.Equal(t, tier.UpperBound+1, s.NextTierThreshold)
			require.Equal(t, (tier.UnitPriceMinorUnits-next.UnitPriceMinorUnits)*s.NextTierThreshold, s.SavingsAmountMinorUnits)
			require.Positive(t, s.SavingsAmountMinorUnits)
		}
	}
	assert.Equal(t, table.Len()-1, prevTier)
}

func TestComputeQuote_Idempotent(t *testing.T) {
	calc := NewCalculator(DefaultTierTable())

	for _, n := range []int64{1, 25, 26, 99, 101, 5000} {
		a, err := calc.ComputeQuote(n)
		require.NoError(t, err)
		b, err := calc.ComputeQuote(n)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

// =============================================================================
// ParseAssetCount Tests
// =============================================================================

func TestParseAssetCount(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"1", 1, false},
		{"60", 60, false},
		{" 250 ", 250, false},
		{"0", 0, true},
		{"-5", 0, true},
		{"10.0", 0, true},
		{"10.5", 0, true},
		{"1e3", 0, true},
		{"NaN", 0, true},
		{"Inf", 0, true},
		{"", 0, true},
		{"abc", 0, true},
		{"99999999999999999999", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAssetCount(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
