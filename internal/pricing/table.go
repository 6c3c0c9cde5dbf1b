// Package pricing is the single authoritative tiered volume-pricing engine.
//
// Every caller (pricing preview, checkout, subscription changes, the CLI)
// prices through this package so that the tier rules cannot drift between
// call sites. Everything here is pure: no I/O, no clocks, no shared mutable
// state. Money is integer minor units throughout.
package pricing

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
)

// ErrInvalidTierTable is returned when a tier table violates its invariants.
var ErrInvalidTierTable = errors.New("invalid tier table")

// Defaults for the observed production table.
const (
	DefaultCurrency              = "gbp"
	DefaultAnnualDiscountPercent = 20
)

// TableOptions carries the non-tier settings of a table.
type TableOptions struct {
	// Currency is an ISO 4217 code; stored lower-case as the billing provider expects.
	Currency string

	// AnnualDiscountPercent is taken off twelve monthly totals for annual billing.
	AnnualDiscountPercent int64
}

// TierTable is an ordered, validated, immutable list of pricing tiers.
//
// Invariants (checked by NewTierTable):
//   - at least one tier
//   - the first tier's upper bound is at least 1
//   - bounded upper bounds strictly ascend
//   - exactly one unbounded tier, and it is last
//   - unit prices are non-negative
//
// Tier n covers [tier(n-1).UpperBound+1, tier(n).UpperBound]; tier 0 starts at 1.
type TierTable struct {
	tiers                 []domain.PricingTier
	currency              string
	annualDiscountPercent int64
	version               string
}

// NewTierTable validates tiers and opts and returns an immutable table.
func NewTierTable(tiers []domain.PricingTier, opts TableOptions) (*TierTable, error) {
	if err := validateTiers(tiers); err != nil {
		return nil, err
	}

	currency := strings.ToLower(strings.TrimSpace(opts.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	if len(currency) != 3 {
		return nil, fmt.Errorf("%w: currency must be a 3-letter ISO code, got %q", ErrInvalidTierTable, opts.Currency)
	}
	for _, r := range currency {
		if r < 'a' || r > 'z' {
			return nil, fmt.Errorf("%w: currency must be a 3-letter ISO code, got %q", ErrInvalidTierTable, opts.Currency)
		}
	}

	if opts.AnnualDiscountPercent < 0 || opts.AnnualDiscountPercent >= 100 {
		return nil, fmt.Errorf("%w: annual discount must be in [0, 100), got %d", ErrInvalidTierTable, opts.AnnualDiscountPercent)
	}

	copied := make([]domain.PricingTier, len(tiers))
	copy(copied, tiers)

	t := &TierTable{
		tiers:                 copied,
		currency:              currency,
		annualDiscountPercent: opts.AnnualDiscountPercent,
	}
	t.version = t.computeVersion()
	return t, nil
}

// DefaultTierTable returns the observed configuration:
// 1-25 @ 499, 26-50 @ 449, 51-100 @ 399, 101+ @ 349 (pence), 20% annual discount.
func DefaultTierTable() *TierTable {
	t, err := NewTierTable([]domain.PricingTier{
		{UpperBound: 25, UnitPriceMinorUnits: 499, Label: "Starter"},
		{UpperBound: 50, UnitPriceMinorUnits: 449, Label: "Growth"},
		{UpperBound: 100, UnitPriceMinorUnits: 399, Label: "Scale"},
		{UpperBound: domain.Unbounded, UnitPriceMinorUnits: 349, Label: "Enterprise"},
	}, TableOptions{
		Currency:              DefaultCurrency,
		AnnualDiscountPercent: DefaultAnnualDiscountPercent,
	})
	if err != nil {
		panic(fmt.Sprintf("pricing: default tier table is invalid: %v", err))
	}
	return t
}

func validateTiers(tiers []domain.PricingTier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("%w: at least one tier is required", ErrInvalidTierTable)
	}

	last := len(tiers) - 1
	if !tiers[last].IsUnbounded() {
		return fmt.Errorf("%w: last tier must be unbounded", ErrInvalidTierTable)
	}

	var prev int64
	for i, tier := range tiers {
		if tier.UnitPriceMinorUnits < 0 {
			return fmt.Errorf("%w: tier %d has a negative unit price", ErrInvalidTierTable, i)
		}
		if i == last {
			break
		}
		if tier.IsUnbounded() {
			return fmt.Errorf("%w: tier %d is unbounded but is not the last tier", ErrInvalidTierTable, i)
		}
		if tier.UpperBound < 1 {
			return fmt.Errorf("%w: tier %d upper bound must be at least 1, got %d", ErrInvalidTierTable, i, tier.UpperBound)
		}
		if i > 0 && tier.UpperBound <= prev {
			return fmt.Errorf("%w: tier %d upper bound %d does not exceed previous bound %d", ErrInvalidTierTable, i, tier.UpperBound, prev)
		}
		prev = tier.UpperBound
	}

	return nil
}

// Len returns the number of tiers.
func (t *TierTable) Len() int {
	return len(t.tiers)
}

// Tier returns the tier at index i.
func (t *TierTable) Tier(i int) domain.PricingTier {
	return t.tiers[i]
}

// Tiers returns a copy of the tiers in order.
func (t *TierTable) Tiers() []domain.PricingTier {
	out := make([]domain.PricingTier, len(t.tiers))
	copy(out, t.tiers)
	return out
}

// Currency returns the lower-case ISO currency code.
func (t *TierTable) Currency() string {
	return t.currency
}

// AnnualDiscountPercent returns the discount applied to annual billing.
func (t *TierTable) AnnualDiscountPercent() int64 {
	return t.annualDiscountPercent
}

// LowerBound returns the first asset count covered by tier i.
func (t *TierTable) LowerBound(i int) int64 {
	if i == 0 {
		return 1
	}
	return t.tiers[i-1].UpperBound + 1
}

// RangeLabel renders tier i's range, e.g. "1-25" or "101+".
func (t *TierTable) RangeLabel(i int) string {
	lower := strconv.FormatInt(t.LowerBound(i), 10)
	if t.tiers[i].IsUnbounded() {
		return lower + "+"
	}
	return lower + "-" + strconv.FormatInt(t.tiers[i].UpperBound, 10)
}

// Version is a stable fingerprint of the table's pricing content. Two
// tables with the same version price every asset count identically, so it
// is safe to use in cache keys.
func (t *TierTable) Version() string {
	return t.version
}

func (t *TierTable) computeVersion() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%d", t.currency, t.annualDiscountPercent)
	for _, tier := range t.tiers {
		fmt.Fprintf(&b, "|%d:%d", tier.UpperBound, tier.UnitPriceMinorUnits)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:6])
}
