package main

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/claims-cli/internal/model"
	"github.com/sells-group/claims-cli/internal/pipeline"
)

var (
	runCSVPath     string
	runXLSXPath    string
	runOutputPath  string
	runLimit       int
	runConcurrency int
	runOffline     bool
	runNoStore     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Adjudicate a batch of claims from a CSV or XLSX file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		claims, header, source, err := loadClaims()
		if err != nil {
			return err
		}
		if runLimit > 0 && runLimit < len(claims) {
			claims = claims[:runLimit]
		}
		if len(claims) == 0 {
			return eris.New("run: no claims to process")
		}

		env, err := buildEnv(ctx, runOffline, !runNoStore)
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := cfg.Batch.Concurrency
		if runConcurrency > 0 {
			concurrency = runConcurrency
		}

		opts := []pipeline.BatchOption{
			pipeline.WithAnomalyFields(cfg.Anomaly.Fields, cfg.Anomaly.StdFloor),
			pipeline.WithConcurrency(concurrency),
			pipeline.WithProgress(func(done, total int) {
				zap.L().Info("run: progress",
					zap.Int("done", done),
					zap.Int("total", total),
				)
			}),
		}
		if env.Store != nil {
			opts = append(opts, pipeline.WithStore(env.Store))
		}

		batch := pipeline.NewBatch(env.Executor, opts...)

		result, err := batch.Process(ctx, claims, source)
		if err != nil {
			return err
		}

		if runOutputPath != "" {
			if err := pipeline.ExportResultsCSV(runOutputPath, header, result.States); err != nil {
				return err
			}
			zap.L().Info("run: results written", zap.String("path", runOutputPath))
		}

		zap.L().Info("run: done",
			zap.String("run_id", result.RunID),
			zap.Int("succeeded", result.Succeeded),
			zap.Int("failed", result.Failed),
		)
		return nil
	},
}

// loadClaims reads the input file named by the flags. Exactly one of
// --csv and --xlsx must be set. The returned header preserves input
// column order for the results export.
func loadClaims() ([]model.Claim, []string, string, error) {
	switch {
	case runCSVPath != "" && runXLSXPath != "":
		return nil, nil, "", eris.New("run: --csv and --xlsx are mutually exclusive")
	case runCSVPath != "":
		claims, header, err := pipeline.ParseClaimsCSV(runCSVPath)
		return claims, header, filepath.Base(runCSVPath), err
	case runXLSXPath != "":
		claims, header, err := pipeline.ParseClaimsXLSX(runXLSXPath)
		return claims, header, filepath.Base(runXLSXPath), err
	default:
		return nil, nil, "", eris.New("run: one of --csv or --xlsx is required")
	}
}

// buildEnv picks real or stub collaborators.
func buildEnv(ctx context.Context, offline, withStore bool) (*adjudicatorEnv, error) {
	if offline {
		return initOfflineEnv(ctx, withStore)
	}
	return initEnv(ctx, withStore)
}

func init() {
	runCmd.Flags().StringVar(&runCSVPath, "csv", "", "path to input CSV file")
	runCmd.Flags().StringVar(&runXLSXPath, "xlsx", "", "path to input XLSX file")
	runCmd.Flags().StringVarP(&runOutputPath, "output", "o", "", "path to write the results CSV")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "process at most N claims (0 = all)")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "claims to adjudicate in parallel (0 = config default)")
	runCmd.Flags().BoolVar(&runOffline, "offline", false, "use stub collaborators instead of live services")
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "skip run persistence")

	rootCmd.AddCommand(runCmd)
}
