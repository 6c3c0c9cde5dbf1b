package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/service"
)

func newProrateCmd(a *app) *cobra.Command {
	var (
		oldCount  int64
		newCount  int64
		cycleFlag string
		days      int64
	)

	prorateCmd := &cobra.Command{
		Use:   "prorate",
		Short: "Price a mid-cycle asset count change",
		Long: `Compute the prorated charge or credit for changing the asset count
part way through a billing period.

Examples:
  relayctl prorate --old 50 --new 60 --cycle monthly --days 15
  relayctl prorate --old 60 --new 50 --cycle annual --days 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cycle, err := domain.ParseBillingCycle(cycleFlag)
			if err != nil {
				return fmt.Errorf("invalid cycle %q: %w", cycleFlag, err)
			}

			p, err := a.pricing.Prorate(cmd.Context(), service.ProrationRequest{
				OldAssetCount: oldCount,
				NewAssetCount: newCount,
				BillingCycle:  cycle,
				DaysRemaining: days,
			})
			if err != nil {
				return err
			}

			code := a.table.Currency()
			out := cmd.OutOrStdout()
			if a.format == formatJSON {
				return writeJSON(out, newProrationOutput(p, code))
			}

			fmt.Fprintf(out, "Old total:  %s %s\n", formatMoney(code, p.OldTotalMinorUnits), p.BillingCycle)
			fmt.Fprintf(out, "New total:  %s %s\n", formatMoney(code, p.NewTotalMinorUnits), p.BillingCycle)
			fmt.Fprintf(out, "Remaining:  %d of %d days\n", p.DaysRemainingInPeriod, p.BillingCycleLengthDays)
			switch p.Direction {
			case domain.DirectionCharge:
				fmt.Fprintf(out, "Charge:     %s\n", formatMoney(code, p.ProratedMinorUnits))
			case domain.DirectionCredit:
				fmt.Fprintf(out, "Credit:     %s\n", formatMoney(code, -p.ProratedMinorUnits))
			default:
				fmt.Fprintln(out, "No change")
			}
			return nil
		},
	}

	prorateCmd.Flags().Int64Var(&oldCount, "old", 0, "current asset count [REQUIRED]")
	prorateCmd.Flags().Int64Var(&newCount, "new", 0, "new asset count [REQUIRED]")
	prorateCmd.Flags().StringVarP(&cycleFlag, "cycle", "c", string(domain.BillingCycleMonthly), "billing cycle (monthly, annual)")
	prorateCmd.Flags().Int64Var(&days, "days", 0, "days remaining in the current period [REQUIRED]")

	_ = prorateCmd.MarkFlagRequired("old")
	_ = prorateCmd.MarkFlagRequired("new")
	_ = prorateCmd.MarkFlagRequired("days")

	return prorateCmd
}
