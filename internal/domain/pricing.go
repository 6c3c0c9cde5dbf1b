// Package domain contains core business types and interfaces.
//
// This file defines the tiered volume-pricing types shared by the pricing
// engine, the HTTP layer and the CLI. All money is carried as integer minor
// units (pence for GBP); formatting is left to the presentation layer.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Unbounded marks the last tier, which has no upper asset limit.
const Unbounded int64 = -1

// Pricing sentinel errors. Callers match them with errors.Is; the pricing
// package wraps them in a *Error with code EINVALID.
var (
	ErrInvalidQuantity       = errors.New("invalid quantity")
	ErrInvalidProrationInput = errors.New("invalid proration input")

	// ErrInvalidDaysRemaining and ErrInvalidCycle refine ErrInvalidProrationInput,
	// so errors.Is matches either the refinement or the parent.
	ErrInvalidDaysRemaining = fmt.Errorf("%w: days remaining out of range", ErrInvalidProrationInput)
	ErrInvalidCycle         = fmt.Errorf("%w: unrecognized billing cycle", ErrInvalidProrationInput)
)

// PricingTier is one row of the tier table.
type PricingTier struct {
	// UpperBound is the inclusive maximum asset count, or Unbounded.
	UpperBound          int64
	UnitPriceMinorUnits int64
	// Label is a human-readable description; it plays no part in calculation.
	Label string
}

// IsUnbounded reports whether the tier has no upper limit.
func (t PricingTier) IsUnbounded() bool {
	return t.UpperBound == Unbounded
}

// Contains reports whether count falls in [lower, UpperBound].
func (t PricingTier) Contains(lower, count int64) bool {
	if count < lower {
		return false
	}
	return t.IsUnbounded() || count <= t.UpperBound
}

// TierBreakdownRow is one display row of a quote. Pricing is whole-count,
// so a quote always carries exactly one row: the matched tier.
type TierBreakdownRow struct {
	TierIndex           int
	RangeLabel          string
	UnitPriceMinorUnits int64
	Quantity            int64
	SubtotalMinorUnits  int64
}

// PotentialSavings projects what the customer would save by growing to the
// first asset count of the next, cheaper tier.
type PotentialSavings struct {
	NextTierThreshold       int64
	SavingsAmountMinorUnits int64
}

// PricingQuote is the derived, transient result of pricing an asset count.
type PricingQuote struct {
	AssetCount       int64
	MatchedTierIndex int
	// TotalMinorUnits bills every asset at the matched tier's unit price.
	TotalMinorUnits  int64
	Breakdown        []TierBreakdownRow
	PotentialSavings *PotentialSavings
}

// BillingCycle is the recurring period a subscription is charged over.
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleAnnual  BillingCycle = "annual"
)

// Fixed cycle lengths used for proration. Calendar month lengths are not
// consulted.
const (
	MonthlyCycleDays = 30
	AnnualCycleDays  = 365
)

// LengthDays returns the proration length of the cycle, or 0 if unknown.
func (c BillingCycle) LengthDays() int64 {
	switch c {
	case BillingCycleMonthly:
		return MonthlyCycleDays
	case BillingCycleAnnual:
		return AnnualCycleDays
	default:
		return 0
	}
}

// Valid reports whether c is one of the recognized cycles.
func (c BillingCycle) Valid() bool {
	return c.LengthDays() > 0
}

// ParseBillingCycle converts user input into a BillingCycle.
// "yearly" is accepted as an alias for annual.
func ParseBillingCycle(s string) (BillingCycle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly":
		return BillingCycleMonthly, nil
	case "annual", "yearly":
		return BillingCycleAnnual, nil
	default:
		return "", ErrInvalidCycle
	}
}

// Direction classifies a prorated amount.
type Direction string

const (
	DirectionCharge Direction = "charge"
	DirectionCredit Direction = "credit"
	DirectionNone   Direction = "none"
)

// DirectionOf classifies a signed minor-unit amount.
func DirectionOf(amount int64) Direction {
	switch {
	case amount > 0:
		return DirectionCharge
	case amount < 0:
		return DirectionCredit
	default:
		return DirectionNone
	}
}

// ProrationQuote is the derived, transient result of a mid-cycle change.
type ProrationQuote struct {
	OldTotalMinorUnits     int64
	NewTotalMinorUnits     int64
	BillingCycle           BillingCycle
	BillingCycleLengthDays int64
	DaysRemainingInPeriod  int64
	DeltaMinorUnits        int64
	ProratedMinorUnits     int64
	Direction              Direction
}
