package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show the pipeline run history of a lead",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		leadID, _ := cmd.Flags().GetString("lead")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, leadID, limit)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 && outputFormat == formatTable {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}
		return render(os.Stdout, outputFormat, runs, func(w io.Writer) { formatRunsList(w, runs) })
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the lead and run tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		fmt.Fprintf(os.Stderr, "Store migrated (%s).\n", cfg.Store.Driver)
		return nil
	},
}

func init() {
	runsCmd.Flags().String("lead", "", "lead ID")
	runsCmd.Flags().Int("limit", 20, "max number of runs to display")
	_ = runsCmd.MarkFlagRequired("lead")

	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(migrateCmd)
}
