// Package cmd provides the CLI commands for relayctl.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/cache"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/pricing"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/service"
)

const (
	formatText = "text"
	formatJSON = "json"
)

// app holds state shared by every subcommand of one invocation.
type app struct {
	format    string
	tiersFile string
	verbose   bool

	logger  *slog.Logger
	table   *pricing.TierTable
	pricing service.PricingService
}

// Execute runs the CLI
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree. Each call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "relayctl",
		Short: "Quote, prorate and manage Relay pricing tiers",
		Long: `relayctl prices asset counts against the Relay tier table.

Amounts are computed in minor units and only formatted for display.

Examples:
  relayctl quote 60
  relayctl quote 60 --cycle annual --format json
  relayctl prorate --old 50 --new 60 --cycle monthly --days 15
  relayctl tiers validate ./tiers.yaml
  relayctl tiers publish ./tiers.yaml --storage r2`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.format, "format", "f", formatText, "output format (text, json)")
	rootCmd.PersistentFlags().StringVar(&a.tiersFile, "tiers", "", "tier document to price against (default is the built-in table)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newQuoteCmd(a))
	rootCmd.AddCommand(newProrateCmd(a))
	rootCmd.AddCommand(newTiersCmd(a))

	return rootCmd
}

func (a *app) init(stderr io.Writer) error {
	if a.format != formatText && a.format != formatJSON {
		return fmt.Errorf("unsupported format %q (use text or json)", a.format)
	}

	level := "warn"
	if a.verbose {
		level = "debug"
	}
	a.logger = internal.NewLogger(stderr, "development", level)

	table := pricing.DefaultTierTable()
	if a.tiersFile != "" {
		var err error
		if table, err = readTierFile(a.tiersFile); err != nil {
			return err
		}
	}
	a.table = table
	a.pricing = service.NewPricingService(table, cache.Noop{}, service.PricingConfig{}, a.logger)

	a.logger.Debug("tier table loaded", "version", table.Version(), "tiers", table.Len())
	return nil
}

func readTierFile(path string) (*pricing.TierTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tier document: %w", err)
	}
	table, err := pricing.ParseTierDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}
