package main

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrichment/internal/model"
	"github.com/sells-group/lead-enrichment/internal/pipeline"
)

var runLeadID string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full enrichment pipeline for a single lead",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "pipeline")
		if err != nil {
			return err
		}
		defer env.Close()

		lead, err := env.Store.GetLead(ctx, runLeadID)
		if err != nil {
			return eris.Wrapf(err, "run: get lead %s", runLeadID)
		}

		result, runErr := env.Orchestrator.Run(ctx, lead, logObserver())
		if result != nil {
			if err := render(os.Stdout, outputFormat, result, func(w io.Writer) { formatRunResult(w, result) }); err != nil {
				return err
			}
		}
		return runErr
	},
}

// logObserver reports step progress and notifications through the logger.
func logObserver() pipeline.Observer {
	return pipeline.ObserverFuncs{
		Step: func(leadID string, step pipeline.Step) {
			zap.L().Debug("pipeline step", zap.String("lead_id", leadID), zap.String("step", step.Key))
		},
		Notify: func(leadID string, n model.Notification) {
			zap.L().Info(n.Title,
				zap.String("lead_id", leadID),
				zap.String("description", n.Description),
				zap.String("variant", string(n.Variant)),
			)
		},
	}
}

func init() {
	runCmd.Flags().StringVar(&runLeadID, "lead", "", "lead ID to enrich")
	_ = runCmd.MarkFlagRequired("lead")
	rootCmd.AddCommand(runCmd)
}
