package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/pricing"
	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/storage"
)

// storeFlags selects the object store holding published tier documents.
type storeFlags struct {
	provider  string
	localPath string
	key       string
	timeout   time.Duration
}

func (f *storeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.provider, "storage", envOr("STORAGE_PROVIDER", storage.ProviderLocal), "storage provider (local, r2)")
	cmd.Flags().StringVar(&f.localPath, "local-path", envOr("LOCAL_STORAGE_PATH", "./storage"), "base directory for local storage")
	cmd.Flags().StringVar(&f.key, "key", envOr("TIER_DOCUMENT_KEY", storage.TierDocumentKey), "object key of the tier document")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 30*time.Second, "timeout for storage calls")
}

// open connects to the store. R2 credentials come from the environment,
// including a .env file if present.
func (f *storeFlags) open(cmd *cobra.Command, a *app) (storage.Store, context.Context, context.CancelFunc, error) {
	_ = godotenv.Load()
	store, err := storage.New(f.provider, storage.LocalConfig{
		BasePath: f.localPath,
	}, storage.R2Config{
		AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		BucketName:      os.Getenv("R2_BUCKET_NAME"),
		Endpoint:        os.Getenv("R2_ENDPOINT"),
	}, a.logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("storage initialization failed: %w", err)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
	return store, ctx, cancel, nil
}

func newTiersCmd(a *app) *cobra.Command {
	tiersCmd := &cobra.Command{
		Use:   "tiers",
		Short: "Inspect, validate and publish tier tables",
	}

	tiersCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the active tier table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printTable(cmd.OutOrStdout(), a.table)
		},
	})

	tiersCmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Check a tier document without publishing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := readTierFile(args[0])
			if err != nil {
				return err
			}
			if a.format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), newTiersOutput(table))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid, %d tiers, version %s\n", args[0], table.Len(), table.Version())
			return nil
		},
	})

	tiersCmd.AddCommand(newTiersPublishCmd(a))
	tiersCmd.AddCommand(newTiersHistoryCmd(a))
	tiersCmd.AddCommand(newTiersRestoreCmd(a))
	tiersCmd.AddCommand(newTiersPruneCmd(a))

	return tiersCmd
}

func newTiersPublishCmd(a *app) *cobra.Command {
	var sf storeFlags

	cmd := &cobra.Command{
		Use:   "publish <file>",
		Short: "Validate a tier document and publish it to storage",
		Long: `Validate a tier document and publish it where the server loads it from.

Every published version is also archived, see "tiers history".
R2 credentials are read from R2_ACCOUNT_ID, R2_ACCESS_KEY_ID,
R2_SECRET_ACCESS_KEY and R2_BUCKET_NAME (a .env file is honored).
The server picks up the new table on its next start.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := readTierFile(args[0])
			if err != nil {
				return err
			}

			store, ctx, cancel, err := sf.open(cmd, a)
			if err != nil {
				return err
			}
			defer cancel()

			if err := storage.PublishTierTable(ctx, store, sf.key, table); err != nil {
				return fmt.Errorf("publish tier document: %w", err)
			}
			a.logger.Info("tier document published", "key", sf.key, "version", table.Version())

			fmt.Fprintf(cmd.OutOrStdout(), "published %s to %s (version %s)\n", args[0], sf.key, table.Version())
			return nil
		},
	}
	sf.register(cmd)
	return cmd
}

type revisionOutput struct {
	Version     string    `json:"version"`
	Key         string    `json:"key"`
	PublishedAt time.Time `json:"publishedAt"`
	Active      bool      `json:"active"`
}

func newTiersHistoryCmd(a *app) *cobra.Command {
	var sf storeFlags

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived tier document versions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, ctx, cancel, err := sf.open(cmd, a)
			if err != nil {
				return err
			}
			defer cancel()

			revisions, err := storage.ListTierRevisions(ctx, store, sf.key)
			if err != nil {
				return fmt.Errorf("list revisions: %w", err)
			}

			out := cmd.OutOrStdout()
			if a.format == formatJSON {
				rows := make([]revisionOutput, 0, len(revisions))
				for _, r := range revisions {
					rows = append(rows, revisionOutput(r))
				}
				return writeJSON(out, rows)
			}

			if len(revisions) == 0 {
				fmt.Fprintln(out, "No published versions")
				return nil
			}
			fmt.Fprintf(out, "%-14s %-22s %s\n", "VERSION", "PUBLISHED", "")
			for _, r := range revisions {
				marker := ""
				if r.Active {
					marker = "active"
				}
				fmt.Fprintf(out, "%-14s %-22s %s\n", r.Version, r.PublishedAt.UTC().Format(time.RFC3339), marker)
			}
			return nil
		},
	}
	sf.register(cmd)
	return cmd
}

func newTiersRestoreCmd(a *app) *cobra.Command {
	var sf storeFlags

	cmd := &cobra.Command{
		Use:   "restore <version>",
		Short: "Make an archived version the active tier document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, ctx, cancel, err := sf.open(cmd, a)
			if err != nil {
				return err
			}
			defer cancel()

			table, err := storage.RestoreTierRevision(ctx, store, sf.key, args[0])
			if storage.IsNotFound(err) {
				return fmt.Errorf("version %s is not in the archive", args[0])
			}
			if err != nil {
				return fmt.Errorf("restore version %s: %w", args[0], err)
			}
			a.logger.Info("tier document restored", "key", sf.key, "version", table.Version())

			fmt.Fprintf(cmd.OutOrStdout(), "restored version %s to %s\n", table.Version(), sf.key)
			return nil
		},
	}
	sf.register(cmd)
	return cmd
}

func newTiersPruneCmd(a *app) *cobra.Command {
	var (
		sf   storeFlags
		keep int
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old archived versions",
		Long:  "Delete all but the newest --keep archived versions. The active version is always kept.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, ctx, cancel, err := sf.open(cmd, a)
			if err != nil {
				return err
			}
			defer cancel()

			removed, err := storage.PruneTierRevisions(ctx, store, sf.key, keep)
			if err != nil {
				return fmt.Errorf("prune revisions: %w", err)
			}

			if a.format == formatJSON {
				if removed == nil {
					removed = []string{}
				}
				return writeJSON(cmd.OutOrStdout(), map[string][]string{"removed": removed})
			}
			if len(removed) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to prune")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d versions: %s\n", len(removed), strings.Join(removed, ", "))
			return nil
		},
	}
	sf.register(cmd)
	cmd.Flags().IntVar(&keep, "keep", 5, "number of recent versions to keep")
	return cmd
}

func (a *app) printTable(w io.Writer, table *pricing.TierTable) error {
	if a.format == formatJSON {
		return writeJSON(w, newTiersOutput(table))
	}

	code := table.Currency()
	fmt.Fprintf(w, "Currency: %s  Annual discount: %d%%  Version: %s\n\n", code, table.AnnualDiscountPercent(), table.Version())
	fmt.Fprintf(w, "%-4s %-12s %-14s %s\n", "TIER", "ASSETS", "PER ASSET", "LABEL")
	for i, tier := range table.Tiers() {
		fmt.Fprintf(w, "%-4d %-12s %-14s %s\n", i, table.RangeLabel(i), formatMoney(code, tier.UnitPriceMinorUnits), tier.Label)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
