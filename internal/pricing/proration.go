package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
)

// ComputeProration prices a mid-cycle change from oldQuote to newQuote with
// daysRemaining days left in a cycle of fixed length (30 or 365 days).
//
//	delta    = new.Total - old.Total
//	prorated = round(delta × daysRemaining / cycleLength)
//
// Rounding is half away from zero, applied once to the exact quotient.
// Positive results are charges, negative results credits, zero is a no-op.
// Nothing is charged here; the caller hands the result to the billing provider.
//
// Returns a domain.Error wrapping domain.ErrInvalidCycle or
// domain.ErrInvalidDaysRemaining (both refine domain.ErrInvalidProrationInput).
func ComputeProration(oldQuote, newQuote domain.PricingQuote, cycle domain.BillingCycle, daysRemaining int64) (domain.ProrationQuote, error) {
	const op = "pricing.compute_proration"

	cycleLength := cycle.LengthDays()
	if cycleLength == 0 {
		return domain.ProrationQuote{}, domain.Wrap(domain.ErrInvalidCycle, domain.EINVALID, op,
			fmt.Sprintf("billing cycle must be %q or %q", domain.BillingCycleMonthly, domain.BillingCycleAnnual))
	}
	if daysRemaining < 0 || daysRemaining > cycleLength {
		return domain.ProrationQuote{}, domain.Wrap(domain.ErrInvalidDaysRemaining, domain.EINVALID, op,
			fmt.Sprintf("days remaining must be between 0 and %d", cycleLength))
	}

	delta := newQuote.TotalMinorUnits - oldQuote.TotalMinorUnits
	prorated := prorate(delta, daysRemaining, cycleLength)

	return domain.ProrationQuote{
		OldTotalMinorUnits:     oldQuote.TotalMinorUnits,
		NewTotalMinorUnits:     newQuote.TotalMinorUnits,
		BillingCycle:           cycle,
		BillingCycleLengthDays: cycleLength,
		DaysRemainingInPeriod:  daysRemaining,
		DeltaMinorUnits:        delta,
		ProratedMinorUnits:     prorated,
		Direction:              domain.DirectionOf(prorated),
	}, nil
}

// prorate computes round(delta*days/length) half away from zero. The product
// is formed in decimal so it cannot overflow int64. Since 0 <= days <= length
// the result's magnitude never exceeds |delta|.
func prorate(delta, days, length int64) int64 {
	if delta == 0 || days == 0 {
		return 0
	}
	if days == length {
		return delta
	}
	return decimal.NewFromInt(delta).
		Mul(decimal.NewFromInt(days)).
		DivRound(decimal.NewFromInt(length), 0).
		IntPart()
}
