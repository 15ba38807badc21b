package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrichment/internal/db"
	"github.com/sells-group/lead-enrichment/internal/pipeline"
	"github.com/sells-group/lead-enrichment/internal/resilience"
	"github.com/sells-group/lead-enrichment/internal/store"
	"github.com/sells-group/lead-enrichment/pkg/functions"
)

// pipelineEnv holds the store, the functions client and the orchestrator
// needed by the run/bulk/serve commands.
type pipelineEnv struct {
	Store        store.Store
	Functions    functions.Client
	Orchestrator *pipeline.Orchestrator
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leads.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, db.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore initializes and migrates the store for commands that only read
// or write leads.
func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func initFunctions() functions.Client {
	opts := []functions.Option{
		functions.WithTimeout(time.Duration(cfg.Functions.TimeoutSecs) * time.Second),
	}
	if cfg.Functions.RateLimit > 0 {
		opts = append(opts, functions.WithRateLimit(cfg.Functions.RateLimit))
	}
	if cfg.Functions.MaxAttempts > 1 {
		opts = append(opts, functions.WithRetry(resilience.NewRetryConfig(cfg.Functions.MaxAttempts)))
	}
	return functions.NewClient(cfg.Functions.BaseURL, cfg.Functions.Key, opts...)
}

// initPipeline sets up the store and functions client and builds the
// orchestrator. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	fns := initFunctions()

	zap.L().Debug("pipeline initialized",
		zap.String("store", cfg.Store.Driver),
		zap.Float64("match_score_threshold", cfg.Pipeline.MatchScoreThreshold),
		zap.Int("max_attempts", cfg.Functions.MaxAttempts),
	)

	return &pipelineEnv{
		Store:        st,
		Functions:    fns,
		Orchestrator: pipeline.New(cfg.Pipeline, st, fns),
	}, nil
}
