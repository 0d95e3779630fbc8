package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/claims-cli/internal/store"
)

var (
	runsLimit  int
	runsDetail string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List past adjudication runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()

		if runsDetail != "" {
			run, err := st.GetRun(ctx, runsDetail)
			if err != nil {
				return err
			}
			results, err := st.ListClaimResults(ctx, runsDetail)
			if err != nil {
				return err
			}
			return enc.Encode(map[string]any{
				"run":     run,
				"results": results,
			})
		}

		runs, err := st.ListRuns(ctx, runsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return eris.New("runs: no runs recorded")
		}
		return enc.Encode(runs)
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs to list")
	runsCmd.Flags().StringVar(&runsDetail, "id", "", "show one run with its claim results")

	rootCmd.AddCommand(runsCmd)
}
