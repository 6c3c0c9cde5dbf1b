package pricing

import (
	"math"
	"strconv"
	"strings"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
)

// Calculator prices asset counts against a tier table. It holds no mutable
// state and is safe for concurrent use.
type Calculator struct {
	table *TierTable
}

// NewCalculator creates a Calculator over table.
func NewCalculator(table *TierTable) *Calculator {
	return &Calculator{table: table}
}

// Table returns the tier table the calculator prices against.
func (c *Calculator) Table() *TierTable {
	return c.table
}

// ComputeQuote prices assetCount.
//
// The whole quantity is billed at the single tier whose range contains it
// (whole-count pricing, not graduated): 60 assets cost 60 × the 51-100 rate.
// The breakdown therefore always has exactly one row.
//
// PotentialSavings is set only when the next tier exists and is strictly
// cheaper; it is what the customer would save in total at the next tier's
// first asset count.
//
// Returns a domain.Error wrapping domain.ErrInvalidQuantity for counts below 1
// or counts whose total would overflow. No upper limit is enforced here.
func (c *Calculator) ComputeQuote(assetCount int64) (domain.PricingQuote, error) {
	const op = "pricing.compute_quote"

	if assetCount < 1 {
		return domain.PricingQuote{}, domain.Wrap(domain.ErrInvalidQuantity, domain.EINVALID, op,
			"asset count must be a positive integer")
	}

	idx := c.matchTier(assetCount)
	tier := c.table.Tier(idx)

	if tier.UnitPriceMinorUnits > 0 && assetCount > math.MaxInt64/tier.UnitPriceMinorUnits {
		return domain.PricingQuote{}, domain.Wrap(domain.ErrInvalidQuantity, domain.EINVALID, op,
			"asset count is too large to price")
	}
	total := assetCount * tier.UnitPriceMinorUnits

	quote := domain.PricingQuote{
		AssetCount:       assetCount,
		MatchedTierIndex: idx,
		TotalMinorUnits:  total,
		Breakdown: []domain.TierBreakdownRow{{
			TierIndex:           idx,
			RangeLabel:          c.table.RangeLabel(idx),
			UnitPriceMinorUnits: tier.UnitPriceMinorUnits,
			Quantity:            assetCount,
			SubtotalMinorUnits:  total,
		}},
	}

	if idx+1 < c.table.Len() {
		next := c.table.Tier(idx + 1)
		if diff := tier.UnitPriceMinorUnits - next.UnitPriceMinorUnits; diff > 0 {
			threshold := tier.UpperBound + 1
			quote.PotentialSavings = &domain.PotentialSavings{
				NextTierThreshold:       threshold,
				SavingsAmountMinorUnits: diff * threshold,
			}
		}
	}

	return quote, nil
}

// matchTier returns the first tier whose upper bound covers count. The last
// tier is unbounded, so a match always exists.
func (c *Calculator) matchTier(count int64) int {
	last := c.table.Len() - 1
	for i := 0; i < last; i++ {
		if count <= c.table.Tier(i).UpperBound {
			return i
		}
	}
	return last
}

// ParseAssetCount parses a decimal asset count as typed by a user or sent in
// a JSON body. Fractional, exponent, non-finite and non-positive values are
// rejected with domain.ErrInvalidQuantity.
func ParseAssetCount(s string) (int64, error) {
	const op = "pricing.parse_asset_count"

	s = strings.TrimSpace(s)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, domain.Wrap(domain.ErrInvalidQuantity, domain.EINVALID, op,
			"asset count must be a positive integer")
	}
	if n < 1 {
		return 0, domain.Wrap(domain.ErrInvalidQuantity, domain.EINVALID, op,
			"asset count must be a positive integer")
	}
	return n, nil
}
