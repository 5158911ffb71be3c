package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tendant/creative-analysis/internal/server"
	"github.com/tendant/creative-analysis/pkg/creative"
	"github.com/tendant/creative-analysis/pkg/creative/analyzer"
	"github.com/tendant/creative-analysis/pkg/creative/config"
)

// NewRootCommand builds the creative CLI.
func NewRootCommand() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "creative",
		Short: "Creative analysis - ad creative validation",
		Long: `Creative analysis validates uploaded advertising creatives
(display images, audio, video and HTML5 bundles) against publishing specs.

Configuration is read from the environment (DATABASE_URL, STORAGE_URL, ...)
and from a .env file in the current directory when present.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Variables already set in the environment win over .env.
			_ = godotenv.Load()

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(NewAnalyzeCommand())
	rootCmd.AddCommand(NewMigrateCommand())
	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewResultsCommand())
	rootCmd.AddCommand(NewReanalyzeCommand())

	return rootCmd
}

// NewAnalyzeCommand runs the pipeline against a local file.
func NewAnalyzeCommand() *cobra.Command {
	var isCtv bool
	var ffprobePath string

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyze a local creative and print the JSON report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			cfg, err := config.Load(
				config.WithMetrics(false),
				config.WithEventLogging(false),
				config.WithFFProbePath(ffprobePath),
			)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			rt, err := cfg.BuildAnalyzer(ctx, slog.Default())
			if err != nil {
				return err
			}
			defer rt.Close()

			req := analyzer.NewRequest(creative.Locator{Container: "local", Name: filepath.Base(args[0])})
			if isCtv {
				if err := rt.Analyzer.SetSideMetadata(ctx, &creative.SideMetadata{ContentID: req.ContentID, IsCtv: true}); err != nil {
					return err
				}
			}

			rec, err := rt.Analyzer.AnalyzeContent(ctx, req, data)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}

	cmd.Flags().BoolVar(&isCtv, "ctv", false, "treat video as connected-TV inventory")
	cmd.Flags().StringVar(&ffprobePath, "ffprobe", "", "path to the ffprobe binary")

	return cmd
}

// NewMigrateCommand applies the Postgres schema migrations.
func NewMigrateCommand() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply Postgres schema migrations for DATABASE_URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.WithEnv())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if err := cfg.MigratePostgres(ctx); err != nil {
				return err
			}
			slog.Info("Migrations applied", "schema", cfg.DBSchema)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "migration timeout")

	return cmd
}

// NewServeCommand starts the HTTP server.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the analysis HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.WithEnv())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return server.Run(ctx, cfg, slog.Default())
		},
	}
}
