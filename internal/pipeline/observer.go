package pipeline

import (
	"sync"

	"github.com/sells-group/lead-enrichment/internal/model"
)

// Observer receives progress from a pipeline run. Calls for one run are
// serialised, but may arrive from different goroutines.
type Observer interface {
	// OnStart is called once the run owns the lead, before its first step.
	OnStart(leadID, runID string)
	OnStep(leadID string, step Step)
	OnNotify(leadID string, n model.Notification)
	OnComplete(result *model.RunResult)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Start    func(leadID, runID string)
	Step     func(leadID string, step Step)
	Notify   func(leadID string, n model.Notification)
	Complete func(result *model.RunResult)
}

func (f ObserverFuncs) OnStart(leadID, runID string) {
	if f.Start != nil {
		f.Start(leadID, runID)
	}
}

func (f ObserverFuncs) OnStep(leadID string, step Step) {
	if f.Step != nil {
		f.Step(leadID, step)
	}
}

func (f ObserverFuncs) OnNotify(leadID string, n model.Notification) {
	if f.Notify != nil {
		f.Notify(leadID, n)
	}
}

func (f ObserverFuncs) OnComplete(result *model.RunResult) {
	if f.Complete != nil {
		f.Complete(result)
	}
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) OnStart(string, string)              {}
func (NopObserver) OnStep(string, Step)                 {}
func (NopObserver) OnNotify(string, model.Notification) {}
func (NopObserver) OnComplete(*model.RunResult)         {}

// Observers fans events out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var out multiObserver
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

type multiObserver []Observer

func (m multiObserver) OnStart(leadID, runID string) {
	for _, o := range m {
		o.OnStart(leadID, runID)
	}
}

func (m multiObserver) OnStep(leadID string, step Step) {
	for _, o := range m {
		o.OnStep(leadID, step)
	}
}

func (m multiObserver) OnNotify(leadID string, n model.Notification) {
	for _, o := range m {
		o.OnNotify(leadID, n)
	}
}

func (m multiObserver) OnComplete(result *model.RunResult) {
	for _, o := range m {
		o.OnComplete(result)
	}
}

// syncObserver serialises calls from the forks of one run.
type syncObserver struct {
	mu  sync.Mutex
	obs Observer
}

func (s *syncObserver) OnStart(leadID, runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obs.OnStart(leadID, runID)
}

func (s *syncObserver) OnStep(leadID string, step Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obs.OnStep(leadID, step)
}

func (s *syncObserver) OnNotify(leadID string, n model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obs.OnNotify(leadID, n)
}

func (s *syncObserver) OnComplete(result *model.RunResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obs.OnComplete(result)
}
