package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/tendant/creative-analysis/pkg/creative"
	"github.com/tendant/creative-analysis/pkg/creative/config"
	"github.com/tendant/creative-analysis/pkg/creative/scan"
)

// NewReanalyzeCommand re-runs analysis for persisted records with a status.
func NewReanalyzeCommand() *cobra.Command {
	var status string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "reanalyze",
		Short: "Run analysis again for records in a given status",
		Long: `Run analysis again for every record with the given status (default Error),
fetching the object from the configured STORAGE_URL. Useful after retrieval
gave up on an object that became visible later.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.WithEnv(), config.WithMetrics(false))
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			rt, err := cfg.BuildAnalyzer(ctx, slog.Default())
			if err != nil {
				return err
			}
			defer rt.Close()

			lister, ok := rt.Metadata.(scan.RecordLister)
			if !ok {
				return fmt.Errorf("database type %s cannot list records by status", cfg.DatabaseType)
			}

			res, err := scan.New(lister, slog.Default()).Scan(ctx, scan.Options{
				Status:    creative.Status(status),
				Processor: scan.Reanalyze(rt.Analyzer),
				DryRun:    dryRun,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "found=%d processed=%d skipped=%d failed=%d\n",
				res.TotalFound, res.TotalProcessed, res.TotalSkipped, res.TotalFailed)
			if res.TotalFailed > 0 {
				return fmt.Errorf("%d records failed: %v", res.TotalFailed, res.FailedIDs)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", string(creative.StatusError), "status of the records to reanalyze")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only report what would be reanalyzed")

	return cmd
}
