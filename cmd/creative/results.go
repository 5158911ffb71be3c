package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tendant/creative-analysis/pkg/creative"
	"github.com/tendant/creative-analysis/pkg/creative/config"
	repopg "github.com/tendant/creative-analysis/pkg/creative/repo/postgres"
)

// NewResultsCommand inspects persisted analysis records.
func NewResultsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Inspect persisted analysis results",
	}
	cmd.AddCommand(newResultsGetCommand())
	cmd.AddCommand(newResultsListCommand())
	return cmd
}

func newResultsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <content-id>",
		Short: "Print the analysis record of one content id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.WithEnv(), config.WithMetrics(false), config.WithEventLogging(false))
			if err != nil {
				return err
			}
			rt, err := cfg.BuildAnalyzer(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			rec, err := rt.Analyzer.GetResult(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
}

func newResultsListCommand() *cobra.Command {
	var status string
	var useJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records by status (postgres only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := creative.Status(status)
			switch st {
			case creative.StatusProcessing, creative.StatusCompleted, creative.StatusError:
			default:
				return fmt.Errorf("unknown status %q", status)
			}

			cfg, err := config.Load(config.WithEnv())
			if err != nil {
				return err
			}
			if cfg.DatabaseType != config.DatabasePostgres {
				return fmt.Errorf("listing requires a postgres DATABASE_URL, database type is %s", cfg.DatabaseType)
			}

			ctx := cmd.Context()
			pool, err := config.OpenPostgres(ctx, cfg.DatabaseURL, cfg.DBSchema)
			if err != nil {
				return err
			}
			defer pool.Close()
			repo := repopg.NewWithPool(pool)

			ids, err := repo.ListRecordsByStatus(ctx, st)
			if err != nil {
				return err
			}
			records := make([]*creative.AnalysisRecord, 0, len(ids))
			for _, id := range ids {
				rec, err := repo.GetRecord(ctx, id)
				if err != nil {
					return fmt.Errorf("load %s: %w", id, err)
				}
				records = append(records, rec)
			}
			return printRecords(cmd, records, useJSON)
		},
	}

	cmd.Flags().StringVar(&status, "status", string(creative.StatusError), "Processing, Completed or Error")
	cmd.Flags().BoolVar(&useJSON, "json", false, "print JSON instead of a table")

	return cmd
}

func printRecords(cmd *cobra.Command, records []*creative.AnalysisRecord, useJSON bool) error {
	out := cmd.OutOrStdout()
	if useJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "CONTENT ID\tNAME\tCATEGORY\tSTATUS\tFAILED CHECKS\n")
	for _, rec := range records {
		failed := 0
		for _, c := range rec.ValidationChecks {
			if c.Status == creative.CheckFail {
				failed++
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			rec.ContentID,
			truncate(rec.DisplayName, 30),
			rec.Category,
			rec.Status,
			failed,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nTotal: %d\n", len(records))
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
