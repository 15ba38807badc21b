package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrichment/internal/model"
	"github.com/sells-group/lead-enrichment/internal/store"
)

// Bulk notification titles.
const (
	TitlePaused       = "Pipeline Paused"
	TitleBulkComplete = "Bulk Pipeline Complete"
	TitleBulkFailed   = "Bulk Pipeline Failed"
)

// ErrBulkRunning is returned when a bulk run is started while another is in progress.
var ErrBulkRunning = eris.New("pipeline: bulk run already in progress")

// Runner runs the pipeline for one lead. *Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, lead *model.Lead, obs Observer) (*model.RunResult, error)
}

// Progress is reported after every step transition of a bulk run.
type Progress struct {
	Current        int    `json:"current"`
	Total          int    `json:"total"`
	CurrentCompany string `json:"currentCompany"`
	CurrentStep    string `json:"currentStep"`
}

// ProgressFunc receives bulk progress updates.
type ProgressFunc func(Progress)

// BulkResult summarises a bulk run.
type BulkResult struct {
	Total        int                `json:"total"`
	Processed    int                `json:"processed"`
	Succeeded    int                `json:"succeeded"`
	Failed       int                `json:"failed"`
	Stopped      bool               `json:"stopped"`
	Runs         []*model.RunResult `json:"runs"`
	Notification model.Notification `json:"notification"`
	Duration     time.Duration      `json:"duration"`
}

// Bulk drives leads through a Runner one at a time. Stop is cooperative:
// it is checked before each lead starts, never during one.
type Bulk struct {
	runner  Runner
	obs     Observer
	stop    atomic.Bool
	running atomic.Bool
	claimed atomic.Bool
}

// NewBulk creates a bulk driver. obs, if non-nil, also receives every lead's
// events; bulk-level notifications are sent to it with an empty lead id.
func NewBulk(runner Runner, obs Observer) *Bulk {
	if obs == nil {
		obs = NopObserver{}
	}
	return &Bulk{runner: runner, obs: obs}
}

// Stop asks the current run to stop before its next lead.
func (b *Bulk) Stop() {
	b.stop.Store(true)
}

// Stopped reports whether a stop has been requested.
func (b *Bulk) Stopped() bool {
	return b.stop.Load()
}

// Running reports whether a bulk run is in progress.
func (b *Bulk) Running() bool {
	return b.running.Load()
}

// TryStart reserves the driver for the next Run or RunFiltered call. It
// reports false when a run is already in progress or reserved.
func (b *Bulk) TryStart() bool {
	if !b.running.CompareAndSwap(false, true) {
		return false
	}
	b.stop.Store(false)
	b.claimed.Store(true)
	return true
}

// begin takes the reservation made by TryStart, or starts a new one.
func (b *Bulk) begin() bool {
	if b.claimed.CompareAndSwap(true, false) {
		return true
	}
	if !b.running.CompareAndSwap(false, true) {
		return false
	}
	b.stop.Store(false)
	return true
}

// RunFiltered lists leads matching filter and runs them. A failed query is
// the only error that fails the whole run.
func (b *Bulk) RunFiltered(ctx context.Context, st store.Store, filter store.LeadFilter, onProgress ProgressFunc) (*BulkResult, error) {
	if !b.begin() {
		return nil, ErrBulkRunning
	}
	defer b.running.Store(false)

	leads, err := st.ListLeads(ctx, filter)
	if err != nil {
		err = eris.Wrap(err, "pipeline: list leads for bulk run")
		n := model.Notification{Title: TitleBulkFailed, Description: err.Error(), Variant: model.VariantDestructive}
		b.obs.OnNotify("", n)
		zap.L().Error("pipeline: bulk run failed", zap.Error(err))
		return &BulkResult{Notification: n, Runs: []*model.RunResult{}}, err
	}
	return b.run(ctx, leads, onProgress), nil
}

// Run processes leads sequentially. A failure or panic in one lead is logged
// and the loop moves on to the next.
func (b *Bulk) Run(ctx context.Context, leads []model.Lead, onProgress ProgressFunc) (*BulkResult, error) {
	if !b.begin() {
		return nil, ErrBulkRunning
	}
	defer b.running.Store(false)
	return b.run(ctx, leads, onProgress), nil
}

func (b *Bulk) run(ctx context.Context, leads []model.Lead, onProgress ProgressFunc) *BulkResult {
	if onProgress == nil {
		onProgress = func(Progress) {}
	}

	start := time.Now()
	res := &BulkResult{Total: len(leads), Runs: make([]*model.RunResult, 0, len(leads))}
	zap.L().Info("pipeline: bulk run starting", zap.Int("leads", len(leads)))

	for i := range leads {
		if b.stop.Load() || ctx.Err() != nil {
			res.Stopped = true
			break
		}
		lead := leads[i]
		onProgress(Progress{Current: i + 1, Total: len(leads), CurrentCompany: lead.Company, CurrentStep: "Starting"})

		run, err := b.runOne(ctx, &lead, i+1, len(leads), onProgress)
		res.Processed++
		if run != nil {
			res.Runs = append(res.Runs, run)
		}
		if err != nil {
			res.Failed++
			zap.L().Error("pipeline: bulk lead failed",
				zap.String("lead_id", lead.ID),
				zap.String("company", lead.Company),
				zap.Error(err),
			)
			continue
		}
		res.Succeeded++
	}

	res.Duration = time.Since(start)
	if res.Stopped {
		res.Notification = model.Notification{
			Title:       TitlePaused,
			Description: fmt.Sprintf("Stopped after processing %d of %d leads", res.Processed, res.Total),
			Variant:     model.VariantDefault,
		}
	} else {
		res.Notification = model.Notification{
			Title:       TitleBulkComplete,
			Description: fmt.Sprintf("Processed %d leads: %d succeeded, %d failed", res.Processed, res.Succeeded, res.Failed),
			Variant:     model.VariantDefault,
		}
	}
	b.obs.OnNotify("", res.Notification)

	zap.L().Info("pipeline: bulk run complete",
		zap.Int("total", res.Total),
		zap.Int("processed", res.Processed),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Bool("stopped", res.Stopped),
		zap.Duration("duration", res.Duration),
	)
	return res
}

func (b *Bulk) runOne(ctx context.Context, lead *model.Lead, current, total int, onProgress ProgressFunc) (run *model.RunResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			run, err = nil, eris.Errorf("pipeline: panic processing lead %s: %v", lead.ID, p)
		}
	}()

	progress := ObserverFuncs{
		Step: func(_ string, step Step) {
			onProgress(Progress{Current: current, Total: total, CurrentCompany: lead.Company, CurrentStep: step.Name})
		},
	}
	return b.runner.Run(ctx, lead, Observers(b.obs, progress))
}
