package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enrichment/internal/model"
	"github.com/sells-group/lead-enrichment/internal/store"
	"github.com/sells-group/lead-enrichment/pkg/functions"
)

// fakeRunner emits two steps per lead and delegates the outcome to fn.
type fakeRunner struct {
	mu  sync.Mutex
	ran []string
	fn  func(lead *model.Lead) (*model.RunResult, error)
}

func (f *fakeRunner) Run(_ context.Context, lead *model.Lead, obs Observer) (*model.RunResult, error) {
	f.mu.Lock()
	f.ran = append(f.ran, lead.ID)
	f.mu.Unlock()

	obs.OnStep(lead.ID, StepApollo)
	obs.OnStep(lead.ID, StepGoogle)
	if f.fn != nil {
		return f.fn(lead)
	}
	return &model.RunResult{LeadID: lead.ID, Outcome: model.OutcomeLowScore}, nil
}

func bulkLeads(n int) []model.Lead {
	leads := make([]model.Lead, n)
	for i := range leads {
		leads[i] = model.Lead{ID: fmt.Sprintf("lead-%d", i+1), Company: fmt.Sprintf("Company %d", i+1)}
	}
	return leads
}

func TestBulk_StopAfterSecondLead(t *testing.T) {
	runner := &fakeRunner{}
	obs := &recorder{}
	b := NewBulk(runner, obs)
	runner.fn = func(lead *model.Lead) (*model.RunResult, error) {
		if lead.ID == "lead-2" {
			b.Stop()
		}
		return &model.RunResult{LeadID: lead.ID, Outcome: model.OutcomeLowScore}, nil
	}

	res, err := b.Run(context.Background(), bulkLeads(5), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"lead-1", "lead-2"}, runner.ran)
	assert.True(t, res.Stopped)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, TitlePaused, res.Notification.Title)
	assert.Equal(t, "Stopped after processing 2 of 5 leads", res.Notification.Description)
	assert.Equal(t, TitlePaused, obs.last().Title)
	assert.True(t, b.Stopped())
	assert.False(t, b.Running())
}

func TestBulk_ProgressAfterEveryStep(t *testing.T) {
	var progress []Progress
	b := NewBulk(&fakeRunner{}, nil)

	res, err := b.Run(context.Background(), bulkLeads(2), func(p Progress) {
		progress = append(progress, p)
	})
	require.NoError(t, err)
	assert.Equal(t, TitleBulkComplete, res.Notification.Title)

	want := []Progress{
		{Current: 1, Total: 2, CurrentCompany: "Company 1", CurrentStep: "Starting"},
		{Current: 1, Total: 2, CurrentCompany: "Company 1", CurrentStep: StepApollo.Name},
		{Current: 1, Total: 2, CurrentCompany: "Company 1", CurrentStep: StepGoogle.Name},
		{Current: 2, Total: 2, CurrentCompany: "Company 2", CurrentStep: "Starting"},
		{Current: 2, Total: 2, CurrentCompany: "Company 2", CurrentStep: StepApollo.Name},
		{Current: 2, Total: 2, CurrentCompany: "Company 2", CurrentStep: StepGoogle.Name},
	}
	assert.Equal(t, want, progress)
}

func TestBulk_IsolatesFailuresAndPanics(t *testing.T) {
	runner := &fakeRunner{fn: func(lead *model.Lead) (*model.RunResult, error) {
		switch lead.ID {
		case "lead-2":
			return &model.RunResult{LeadID: lead.ID, Outcome: model.OutcomeFailed}, errors.New("pipeline: enrich_google: boom")
		case "lead-3":
			panic("nil map write")
		}
		return &model.RunResult{LeadID: lead.ID, Outcome: model.OutcomeFullPipeline}, nil
	}}
	b := NewBulk(runner, nil)

	res, err := b.Run(context.Background(), bulkLeads(4), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"lead-1", "lead-2", "lead-3", "lead-4"}, runner.ran)
	assert.False(t, res.Stopped)
	assert.Equal(t, 4, res.Processed)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 2, res.Failed)
	assert.Len(t, res.Runs, 3)
	assert.Equal(t, TitleBulkComplete, res.Notification.Title)
	assert.Equal(t, "Processed 4 leads: 2 succeeded, 2 failed", res.Notification.Description)
}

func TestBulk_ContextCancelStopsBeforeNextLead(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeRunner{fn: func(lead *model.Lead) (*model.RunResult, error) {
		cancel()
		return &model.RunResult{LeadID: lead.ID}, nil
	}}

	res, err := NewBulk(runner, nil).Run(ctx, bulkLeads(3), nil)
	require.NoError(t, err)
	assert.True(t, res.Stopped)
	assert.Equal(t, 1, res.Processed)
}

func TestBulk_RejectsConcurrentRun(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	runner := &fakeRunner{fn: func(lead *model.Lead) (*model.RunResult, error) {
		close(entered)
		<-release
		return &model.RunResult{LeadID: lead.ID}, nil
	}}
	b := NewBulk(runner, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = b.Run(context.Background(), bulkLeads(1), nil)
	}()

	<-entered
	assert.True(t, b.Running())
	_, err := b.Run(context.Background(), bulkLeads(1), nil)
	assert.ErrorIs(t, err, ErrBulkRunning)

	close(release)
	<-done
	assert.False(t, b.Running())
}

func TestBulk_RunFiltered(t *testing.T) {
	e := newTestEnv(t)
	pending := e.seed(model.Lead{Company: "Pending Co"})
	done := e.seed(model.Lead{Company: "Done Co"})
	e.write(done.ID, model.NewPatch().Set(model.ColEnrichmentStatus, model.EnrichmentStatusComplete))

	runner := &fakeRunner{}
	res, err := NewBulk(runner, nil).RunFiltered(context.Background(), e.store,
		store.LeadFilter{Status: model.EnrichmentStatusPending}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{pending.ID}, runner.ran)
	assert.Equal(t, 1, res.Total)
}

func TestBulk_RunFilteredQueryFailure(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.store.Close())

	obs := &recorder{}
	res, err := NewBulk(&fakeRunner{}, obs).RunFiltered(context.Background(), e.store, store.LeadFilter{}, nil)
	require.Error(t, err)
	assert.Equal(t, TitleBulkFailed, res.Notification.Title)
	assert.Equal(t, TitleBulkFailed, obs.last().Title)
}

func TestBulk_PanicInCriticalStepFailsRun(t *testing.T) {
	e := newTestEnv(t)
	lead := e.seed(model.Lead{Company: "Acme Trucking"})
	e.fns.On("EnrichLead", mock.Anything, bySource(functions.SourceApollo)).
		Panic("nil map write").Once()

	res, err := NewBulk(e.orch, e.obs).Run(context.Background(), []model.Lead{*lead}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Runs, 1)
	assert.Equal(t, model.OutcomeFailed, res.Runs[0].Outcome)
	assert.Contains(t, res.Runs[0].Error, "nil map write")
	assert.Contains(t, e.obs.titles(), TitleFailed)
	assert.Len(t, e.obs.completed, 1)
	e.fns.AssertNotCalled(t, "EnrichLead", mock.Anything, bySource(functions.SourceGoogle))

	runs, err := e.store.ListRuns(context.Background(), lead.ID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.OutcomeFailed, runs[0].Outcome)
	assert.False(t, e.orch.Running(lead.ID))
}

func TestBulk_PanicInContactForkIsAbsorbed(t *testing.T) {
	e := newTestEnv(t)
	lead := e.seed(model.Lead{Company: "Acme Trucking", FullName: "Dana Ortiz", Email: model.Ptr("dana@acme.com")})

	e.fns.On("EnrichContact", mock.Anything, mock.Anything).Panic("contact decoder").Once()
	e.expectDiscovery(lead.ID, functions.SourceApollo, "")
	e.expectDiscovery(lead.ID, functions.SourceGoogle, "")
	e.expectDiscovery(lead.ID, functions.SourceEmail, "")
	e.expectSocial(lead.ID, nil)
	e.expectScoreSocial()
	e.expectMatchScore(lead.ID, nil)
	e.fns.On("DiagnoseEnrichment", mock.Anything, mock.Anything).
		Return(&functions.DiagnosisResponse{Category: "no_web_presence"}, nil).Once()

	res, err := NewBulk(e.orch, e.obs).Run(context.Background(), []model.Lead{*lead}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Succeeded)
	assert.Zero(t, res.Failed)
	require.Len(t, res.Runs, 1)
	assert.Equal(t, model.OutcomeNoDomain, res.Runs[0].Outcome)
	e.fns.AssertNotCalled(t, "SendToClay", mock.Anything, mock.Anything)
	e.fns.AssertExpectations(t)

	var contact *model.StepResult
	for i, s := range res.Runs[0].Steps {
		if s.Key == StepEnrichContact.Key {
			contact = &res.Runs[0].Steps[i]
		}
	}
	require.NotNil(t, contact)
	assert.Equal(t, model.StepStatusFailed, contact.Status)
	assert.Contains(t, contact.Error, "contact decoder")
	assert.False(t, e.orch.Running(lead.ID))
}

func TestBulk_TryStartReservesNextRun(t *testing.T) {
	runner := &fakeRunner{}
	b := NewBulk(runner, nil)

	require.True(t, b.TryStart())
	assert.True(t, b.Running())
	assert.False(t, b.TryStart())

	res, err := b.Run(context.Background(), bulkLeads(2), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.False(t, b.Running())

	require.True(t, b.TryStart())
	b.Stop()
	res, err = b.Run(context.Background(), bulkLeads(2), nil)
	require.NoError(t, err)
	assert.True(t, res.Stopped)
	assert.Zero(t, res.Processed)
	assert.Len(t, runner.ran, 2)
}

func TestBulk_TryStartReleasedOnQueryFailure(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.store.Close())

	b := NewBulk(&fakeRunner{}, nil)
	require.True(t, b.TryStart())
	_, err := b.RunFiltered(context.Background(), e.store, store.LeadFilter{}, nil)
	require.Error(t, err)
	assert.False(t, b.Running())
	assert.True(t, b.TryStart())
}
