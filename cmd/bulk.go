package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrichment/internal/model"
	"github.com/sells-group/lead-enrichment/internal/pipeline"
	"github.com/sells-group/lead-enrichment/internal/store"
)

var (
	bulkStatus        string
	bulkLimit         int
	bulkMissingDomain bool
	bulkCompany       string
)

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Run the pipeline sequentially over matching leads",
	Long:  "Runs the full pipeline for every lead matching the filter, one at a time. The first interrupt stops after the current lead; a second one cancels it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		env, err := initPipeline(ctx, "pipeline")
		if err != nil {
			return err
		}
		defer env.Close()

		bulk := pipeline.NewBulk(env.Orchestrator, logObserver())

		sigs := make(chan os.Signal, 2)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigs)
		go watchInterrupts(ctx, sigs, bulk, cancel)

		filter := bulkFilter()
		res, err := bulk.RunFiltered(ctx, env.Store, filter, func(p pipeline.Progress) {
			zap.L().Info("bulk progress",
				zap.Int("current", p.Current),
				zap.Int("total", p.Total),
				zap.String("company", p.CurrentCompany),
				zap.String("step", p.CurrentStep),
			)
		})
		if err != nil {
			return err
		}

		return render(os.Stdout, outputFormat, res, func(w io.Writer) { formatBulkResult(w, res) })
	},
}

// watchInterrupts stops the bulk run on the first signal and cancels the
// in-flight lead on the second.
func watchInterrupts(ctx context.Context, sigs <-chan os.Signal, bulk *pipeline.Bulk, cancel context.CancelFunc) {
	select {
	case <-ctx.Done():
		return
	case <-sigs:
		zap.L().Info("stopping bulk run after the current lead; interrupt again to abort")
		bulk.Stop()
	}
	select {
	case <-ctx.Done():
	case <-sigs:
		zap.L().Warn("aborting bulk run")
		cancel()
	}
}

func bulkFilter() store.LeadFilter {
	status := bulkStatus
	if status == "" {
		status = cfg.Bulk.DefaultStatus
	}
	limit := bulkLimit
	if limit <= 0 {
		limit = cfg.Bulk.Limit
	}
	return store.LeadFilter{
		Status:        model.EnrichmentStatus(status),
		MissingDomain: bulkMissingDomain,
		Company:       bulkCompany,
		Limit:         limit,
	}
}

func formatBulkResult(out io.Writer, res *pipeline.BulkResult) {
	formatRunsList(out, runResults(res.Runs))
	_, _ = io.WriteString(out, "\n"+res.Notification.Title+": "+res.Notification.Description+"\n")
}

func runResults(runs []*model.RunResult) []model.RunResult {
	out := make([]model.RunResult, 0, len(runs))
	for _, r := range runs {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

func init() {
	bulkCmd.Flags().StringVar(&bulkStatus, "status", "", "enrichment status to select (default from config)")
	bulkCmd.Flags().IntVar(&bulkLimit, "limit", 0, "max number of leads to process (default from config)")
	bulkCmd.Flags().BoolVar(&bulkMissingDomain, "missing-domain", false, "only select leads without a domain")
	bulkCmd.Flags().StringVar(&bulkCompany, "company", "", "only select leads whose company contains this text")
	rootCmd.AddCommand(bulkCmd)
}
