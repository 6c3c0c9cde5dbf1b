package pricing

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
)

const monthsPerYear = 12

// PeriodTotal returns what one full billing period costs for quote.
//
// Monthly is the quote total. Annual is twelve monthly totals less the
// table's annual discount, rounded once (half away from zero) to a whole
// minor unit.
func (c *Calculator) PeriodTotal(quote domain.PricingQuote, cycle domain.BillingCycle) (int64, error) {
	const op = "pricing.period_total"

	switch cycle {
	case domain.BillingCycleMonthly:
		return quote.TotalMinorUnits, nil
	case domain.BillingCycleAnnual:
		keep := decimal.NewFromInt(100 - c.table.AnnualDiscountPercent())
		total := decimal.NewFromInt(quote.TotalMinorUnits).
			Mul(decimal.NewFromInt(monthsPerYear)).
			Mul(keep).
			DivRound(decimal.NewFromInt(100), 0)
		if total.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
			return 0, domain.Wrap(domain.ErrInvalidQuantity, domain.EINVALID, op,
				"asset count is too large to price")
		}
		return total.IntPart(), nil
	default:
		return 0, domain.Wrap(domain.ErrInvalidCycle, domain.EINVALID, op,
			"billing cycle must be \"monthly\" or \"annual\"")
	}
}

// PeriodQuote returns a copy of quote whose totals cover one full billing
// period of cycle. Proration of an annual subscription must be computed
// from period quotes, otherwise a 365-day cycle would be prorated against a
// single month's price.
func (c *Calculator) PeriodQuote(quote domain.PricingQuote, cycle domain.BillingCycle) (domain.PricingQuote, error) {
	total, err := c.PeriodTotal(quote, cycle)
	if err != nil {
		return domain.PricingQuote{}, err
	}
	if total == quote.TotalMinorUnits {
		return quote, nil
	}

	out := quote
	out.TotalMinorUnits = total
	out.Breakdown = make([]domain.TierBreakdownRow, len(quote.Breakdown))
	copy(out.Breakdown, quote.Breakdown)
	for i := range out.Breakdown {
		out.Breakdown[i].SubtotalMinorUnits = total
	}
	// Savings are a monthly projection and do not carry over.
	out.PotentialSavings = nil
	return out, nil
}

// DaysRemaining derives the proration input from the record store's period
// end: whole days left (partial days are dropped), clamped to
// [0, cycle length]. An unknown cycle yields 0.
func DaysRemaining(periodEnd, now time.Time, cycle domain.BillingCycle) int64 {
	length := cycle.LengthDays()
	if length == 0 || !periodEnd.After(now) {
		return 0
	}
	days := int64(periodEnd.Sub(now) / (24 * time.Hour))
	if days > length {
		return length
	}
	return days
}
