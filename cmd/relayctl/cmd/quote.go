package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/pricing"
)

func newQuoteCmd(a *app) *cobra.Command {
	var cycleFlag string

	quoteCmd := &cobra.Command{
		Use:   "quote <asset-count>",
		Short: "Price an asset count",
		Long: `Price an asset count against the tier table.

Every asset is billed at the unit price of the tier the whole count falls in.
Monthly quotes also show how much growing into the next tier would save.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := pricing.ParseAssetCount(args[0])
			if err != nil {
				return fmt.Errorf("invalid asset count %q: %w", args[0], err)
			}
			cycle, err := domain.ParseBillingCycle(cycleFlag)
			if err != nil {
				return fmt.Errorf("invalid cycle %q: %w", cycleFlag, err)
			}

			var quote domain.PricingQuote
			if cycle == domain.BillingCycleMonthly {
				quote, err = a.pricing.Quote(cmd.Context(), count)
			} else {
				quote, err = a.pricing.PeriodQuote(cmd.Context(), count, cycle)
			}
			if err != nil {
				return err
			}

			code := a.table.Currency()
			out := cmd.OutOrStdout()
			if a.format == formatJSON {
				return writeJSON(out, newQuoteOutput(quote, cycle, code))
			}

			row := quote.Breakdown[0]
			fmt.Fprintf(out, "Assets:   %d\n", quote.AssetCount)
			fmt.Fprintf(out, "Tier:     %d (%s) at %s per asset\n", row.TierIndex, row.RangeLabel, formatMoney(code, row.UnitPriceMinorUnits))
			fmt.Fprintf(out, "Total:    %s %s\n", formatMoney(code, quote.TotalMinorUnits), cycle)
			if s := quote.PotentialSavings; s != nil {
				fmt.Fprintf(out, "Savings:  %s at %d assets\n", formatMoney(code, s.SavingsAmountMinorUnits), s.NextTierThreshold)
			}
			return nil
		},
	}

	quoteCmd.Flags().StringVarP(&cycleFlag, "cycle", "c", string(domain.BillingCycleMonthly), "billing cycle (monthly, annual)")

	return quoteCmd
}
