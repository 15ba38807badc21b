package api

import (
	"slices"
	"sync"
	"time"

	"github.com/sells-group/lead-enrichment/internal/model"
	"github.com/sells-group/lead-enrichment/internal/pipeline"
)

const maxNotifications = 20

// LeadProgress is the latest known pipeline state of one lead.
type LeadProgress struct {
	LeadID        string               `json:"lead_id"`
	RunID         string               `json:"run_id,omitempty"`
	Running       bool                 `json:"running"`
	CurrentStep   string               `json:"current_step,omitempty"`
	StepKey       string               `json:"step_key,omitempty"`
	Notifications []model.Notification `json:"notifications"`
	Result        *model.RunResult     `json:"result,omitempty"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// BulkStatus is the state of the current or last bulk run.
type BulkStatus struct {
	Running       bool                 `json:"running"`
	Progress      pipeline.Progress    `json:"progress"`
	Notifications []model.Notification `json:"notifications"`
	Result        *pipeline.BulkResult `json:"result,omitempty"`
	Error         string               `json:"error,omitempty"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// Tracker is a pipeline.Observer that keeps the latest progress per lead and
// for the bulk run, for the dashboard to poll.
type Tracker struct {
	mu    sync.RWMutex
	leads map[string]*LeadProgress
	bulk  BulkStatus
	now   func() time.Time
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		leads: make(map[string]*LeadProgress),
		bulk:  BulkStatus{Notifications: []model.Notification{}},
		now:   time.Now,
	}
}

func (t *Tracker) lead(id string) *LeadProgress {
	lp, ok := t.leads[id]
	if !ok {
		lp = &LeadProgress{LeadID: id, Notifications: []model.Notification{}}
		t.leads[id] = lp
	}
	return lp
}

// OnStart marks a lead as running and clears the result of its previous run.
func (t *Tracker) OnStart(leadID, runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	lp := t.lead(leadID)
	lp.RunID = runID
	lp.Running = true
	lp.CurrentStep, lp.StepKey = "", ""
	lp.Result = nil
	lp.UpdatedAt = t.now()
}

func (t *Tracker) OnStep(leadID string, step pipeline.Step) {
	t.mu.Lock()
	defer t.mu.Unlock()
	lp := t.lead(leadID)
	lp.Running = true
	lp.CurrentStep = step.Name
	lp.StepKey = step.Key
	lp.UpdatedAt = t.now()
}

// OnNotify records a notification. An empty lead id is a bulk-level message.
func (t *Tracker) OnNotify(leadID string, n model.Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if leadID == "" {
		t.bulk.Notifications = appendCapped(t.bulk.Notifications, n)
		t.bulk.UpdatedAt = t.now()
		return
	}
	lp := t.lead(leadID)
	lp.Notifications = appendCapped(lp.Notifications, n)
	lp.UpdatedAt = t.now()
}

func (t *Tracker) OnComplete(res *model.RunResult) {
	if res == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	lp := t.lead(res.LeadID)
	lp.Running = false
	lp.CurrentStep, lp.StepKey = "", ""
	lp.Result = res
	lp.UpdatedAt = t.now()
}

// Lead returns a copy of the progress of leadID.
func (t *Tracker) Lead(leadID string) (LeadProgress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	lp, ok := t.leads[leadID]
	if !ok {
		return LeadProgress{}, false
	}
	out := *lp
	out.Notifications = slices.Clone(lp.Notifications)
	return out, true
}

// BulkStarted resets the bulk status for a new run.
func (t *Tracker) BulkStarted(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bulk = BulkStatus{
		Running:       true,
		Progress:      pipeline.Progress{Total: total},
		Notifications: []model.Notification{},
		UpdatedAt:     t.now(),
	}
}

// BulkProgress is a pipeline.ProgressFunc.
func (t *Tracker) BulkProgress(p pipeline.Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bulk.Running = true
	t.bulk.Progress = p
	t.bulk.UpdatedAt = t.now()
}

// BulkFinished records the end of a bulk run.
func (t *Tracker) BulkFinished(res *pipeline.BulkResult, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bulk.Running = false
	t.bulk.Result = res
	if err != nil {
		t.bulk.Error = err.Error()
	}
	t.bulk.UpdatedAt = t.now()
}

// Bulk returns a copy of the bulk status.
func (t *Tracker) Bulk() BulkStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := t.bulk
	out.Notifications = slices.Clone(t.bulk.Notifications)
	return out
}

func appendCapped(ns []model.Notification, n model.Notification) []model.Notification {
	ns = append(ns, n)
	if len(ns) > maxNotifications {
		ns = ns[len(ns)-maxNotifications:]
	}
	return ns
}
