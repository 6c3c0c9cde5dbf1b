package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
)

func TestDefaultTierTable(t *testing.T) {
	table := DefaultTierTable()

	assert.Equal(t, 4, table.Len())
	assert.Equal(t, "gbp", table.Currency())
	assert.Equal(t, int64(20), table.AnnualDiscountPercent())
	assert.Equal(t, []string{"1-25", "26-50", "51-100", "101+"}, []string{
		table.RangeLabel(0), table.RangeLabel(1), table.RangeLabel(2), table.RangeLabel(3),
	})
	assert.Equal(t, int64(51), table.LowerBound(2))
	assert.Len(t, table.Version(), 12)
}

func TestNewTierTable_Validation(t *testing.T) {
	unbounded := domain.PricingTier{UpperBound: domain.Unbounded, UnitPriceMinorUnits: 100}

	tests := []struct {
		name  string
		tiers []domain.PricingTier
		opts  TableOptions
	}{
		{"empty", nil, TableOptions{}},
		{"last tier bounded", []domain.PricingTier{{UpperBound: 10, UnitPriceMinorUnits: 100}}, TableOptions{}},
		{"unbounded before last", []domain.PricingTier{unbounded, unbounded}, TableOptions{}},
		{"zero first bound", []domain.PricingTier{{UpperBound: 0, UnitPriceMinorUnits: 100}, unbounded}, TableOptions{}},
		{"bounds not ascending", []domain.PricingTier{
			{UpperBound: 20, UnitPriceMinorUnits: 100},
			{UpperBound: 20, UnitPriceMinorUnits: 90},
			unbounded,
		}, TableOptions{}},
		{"negative price", []domain.PricingTier{{UpperBound: domain.Unbounded, UnitPriceMinorUnits: -1}}, TableOptions{}},
		{"bad currency", []domain.PricingTier{unbounded}, TableOptions{Currency: "pounds"}},
		{"numeric currency", []domain.PricingTier{unbounded}, TableOptions{Currency: "g8p"}},
		{"negative discount", []domain.PricingTier{unbounded}, TableOptions{AnnualDiscountPercent: -1}},
		{"full discount", []domain.PricingTier{unbounded}, TableOptions{AnnualDiscountPercent: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTierTable(tt.tiers, tt.opts)
			assert.ErrorIs(t, err, ErrInvalidTierTable)
		})
	}
}

func TestNewTierTable_NormalizesCurrency(t *testing.T) {
	table, err := NewTierTable([]domain.PricingTier{{UpperBound: domain.Unbounded, UnitPriceMinorUnits: 1}},
		TableOptions{Currency: " EUR "})
	require.NoError(t, err)
	assert.Equal(t, "eur", table.Currency())
}

func TestTierTable_IsImmutable(t *testing.T) {
	tiers := []domain.PricingTier{
		{UpperBound: 10, UnitPriceMinorUnits: 100},
		{UpperBound: domain.Unbounded, UnitPriceMinorUnits: 90},
	}
	table, err := NewTierTable(tiers, TableOptions{})
	require.NoError(t, err)

	tiers[0].UnitPriceMinorUnits = 1
	assert.Equal(t, int64(100), table.Tier(0).UnitPriceMinorUnits)

	copied := table.Tiers()
	copied[0].UnitPriceMinorUnits = 1
	assert.Equal(t, int64(100), table.Tier(0).UnitPriceMinorUnits)
}

func TestTierTable_Version(t *testing.T) {
	a := DefaultTierTable()
	b := DefaultTierTable()
	assert.Equal(t, a.Version(), b.Version())

	tiers := a.Tiers()
	tiers[0].UnitPriceMinorUnits = 500
	changed, err := NewTierTable(tiers, TableOptions{Currency: a.Currency(), AnnualDiscountPercent: a.AnnualDiscountPercent()})
	require.NoError(t, err)
	assert.NotEqual(t, a.Version(), changed.Version())

	// Labels are display only and do not change pricing.
	tiers = a.Tiers()
	tiers[0].Label = "Hobby"
	relabeled, err := NewTierTable(tiers, TableOptions{Currency: a.Currency(), AnnualDiscountPercent: a.AnnualDiscountPercent()})
	require.NoError(t, err)
	assert.Equal(t, a.Version(), relabeled.Version())
}
