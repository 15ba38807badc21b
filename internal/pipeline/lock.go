package pipeline

import (
	"sync"

	"github.com/rotisserie/eris"
)

// ErrAlreadyRunning is returned when a lead already has a run in flight.
var ErrAlreadyRunning = eris.New("pipeline: lead already running")

// runGuard tracks which leads have a run in flight.
type runGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newRunGuard() *runGuard {
	return &runGuard{running: make(map[string]struct{})}
}

func (g *runGuard) acquire(leadID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.running[leadID]; ok {
		return false
	}
	g.running[leadID] = struct{}{}
	return true
}

func (g *runGuard) release(leadID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, leadID)
}

func (g *runGuard) isRunning(leadID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.running[leadID]
	return ok
}
