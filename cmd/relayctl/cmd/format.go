package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/pricing"
)

var printer = message.NewPrinter(language.English)

// formatMoney renders a minor-unit amount with the currency's symbol and
// standard number of decimals. Unknown codes fall back to "<minor> <CODE>".
func formatMoney(code string, minor int64) string {
	unit, err := currency.ParseISO(strings.ToUpper(code))
	if err != nil {
		return fmt.Sprintf("%d %s", minor, strings.ToUpper(code))
	}
	scale, _ := currency.Standard.Rounding(unit)
	amount := decimal.New(minor, -int32(scale)).StringFixed(int32(scale))
	return printer.Sprint(currency.Symbol(unit)) + " " + amount
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// =============================================================================
// JSON Output Types
// =============================================================================

type tierOutput struct {
	Index      int    `json:"index"`
	RangeLabel string `json:"rangeLabel"`
	UpTo       *int64 `json:"upTo"`
	UnitPrice  int64  `json:"unitPriceMinorUnits"`
	Label      string `json:"label,omitempty"`
}

type tiersOutput struct {
	Version               string       `json:"version"`
	Currency              string       `json:"currency"`
	AnnualDiscountPercent int64        `json:"annualDiscountPercent"`
	Tiers                 []tierOutput `json:"tiers"`
}

type savingsOutput struct {
	NextTierThreshold int64 `json:"nextTierThreshold"`
	SavingsMinorUnits int64 `json:"savingsMinorUnits"`
}

type quoteOutput struct {
	AssetCount       int64          `json:"assetCount"`
	BillingCycle     string         `json:"billingCycle"`
	Currency         string         `json:"currency"`
	TierIndex        int            `json:"tierIndex"`
	RangeLabel       string         `json:"rangeLabel"`
	UnitPrice        int64          `json:"unitPriceMinorUnits"`
	TotalMinorUnits  int64          `json:"totalMinorUnits"`
	PotentialSavings *savingsOutput `json:"potentialSavings"`
}

type prorationOutput struct {
	Currency           string `json:"currency"`
	BillingCycle       string `json:"billingCycle"`
	CycleLengthDays    int64  `json:"cycleLengthDays"`
	DaysRemaining      int64  `json:"daysRemaining"`
	OldTotalMinorUnits int64  `json:"oldTotalMinorUnits"`
	NewTotalMinorUnits int64  `json:"newTotalMinorUnits"`
	DeltaMinorUnits    int64  `json:"deltaMinorUnits"`
	ProratedMinorUnits int64  `json:"proratedMinorUnits"`
	Direction          string `json:"direction"`
}

func newTiersOutput(t *pricing.TierTable) tiersOutput {
	out := tiersOutput{
		Version:               t.Version(),
		Currency:              t.Currency(),
		AnnualDiscountPercent: t.AnnualDiscountPercent(),
		Tiers:                 make([]tierOutput, 0, t.Len()),
	}
	for i, tier := range t.Tiers() {
		row := tierOutput{
			Index:      i,
			RangeLabel: t.RangeLabel(i),
			UnitPrice:  tier.UnitPriceMinorUnits,
			Label:      tier.Label,
		}
		if !tier.IsUnbounded() {
			upTo := tier.UpperBound
			row.UpTo = &upTo
		}
		out.Tiers = append(out.Tiers, row)
	}
	return out
}

func newQuoteOutput(q domain.PricingQuote, cycle domain.BillingCycle, code string) quoteOutput {
	out := quoteOutput{
		AssetCount:      q.AssetCount,
		BillingCycle:    string(cycle),
		Currency:        code,
		TierIndex:       q.MatchedTierIndex,
		TotalMinorUnits: q.TotalMinorUnits,
	}
	if len(q.Breakdown) > 0 {
		out.RangeLabel = q.Breakdown[0].RangeLabel
		out.UnitPrice = q.Breakdown[0].UnitPriceMinorUnits
	}
	if q.PotentialSavings != nil {
		out.PotentialSavings = &savingsOutput{
			NextTierThreshold: q.PotentialSavings.NextTierThreshold,
			SavingsMinorUnits: q.PotentialSavings.SavingsAmountMinorUnits,
		}
	}
	return out
}

func newProrationOutput(p domain.ProrationQuote, code string) prorationOutput {
	return prorationOutput{
		Currency:           code,
		BillingCycle:       string(p.BillingCycle),
		CycleLengthDays:    p.BillingCycleLengthDays,
		DaysRemaining:      p.DaysRemainingInPeriod,
		OldTotalMinorUnits: p.OldTotalMinorUnits,
		NewTotalMinorUnits: p.NewTotalMinorUnits,
		DeltaMinorUnits:    p.DeltaMinorUnits,
		ProratedMinorUnits: p.ProratedMinorUnits,
		Direction:          string(p.Direction),
	}
}
