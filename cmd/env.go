package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/claims-cli/internal/notify"
	"github.com/sells-group/claims-cli/internal/pipeline"
	"github.com/sells-group/claims-cli/internal/store"
	"github.com/sells-group/claims-cli/pkg/oracle"
	"github.com/sells-group/claims-cli/pkg/policy"
)

// adjudicatorEnv bundles the executor and its collaborators for one
// command invocation. All collaborators are constructed once at startup
// and injected; nothing is lazily initialized per claim.
type adjudicatorEnv struct {
	Executor *pipeline.Executor
	Store    store.Store // nil when persistence is disabled
}

// Close releases held resources.
func (e *adjudicatorEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("env: close store", zap.Error(err))
		}
	}
}

// initEnv builds the real collaborators from configuration. Missing email
// or oracle configuration is a startup error.
func initEnv(ctx context.Context, withStore bool) (*adjudicatorEnv, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("env: anthropic.key is required (set CLAIMS_ANTHROPIC_KEY)")
	}

	oc := oracle.NewClient(cfg.Anthropic.Key, cfg.Anthropic.Model,
		oracle.WithMaxTokens(int64(cfg.Anthropic.MaxTokens)),
		oracle.WithRateLimit(cfg.Anthropic.RPS),
	)

	retriever, err := policy.NewStore(cfg.Policy.Path,
		policy.WithTopK(cfg.Policy.TopK),
		policy.WithChunking(cfg.Policy.ChunkSize, cfg.Policy.ChunkOverlap),
		policy.WithCacheTTL(time.Duration(cfg.Policy.CacheTTLHours)*time.Hour),
	)
	if err != nil {
		return nil, err
	}

	dispatcher, err := notify.NewSMTP(cfg.Email)
	if err != nil {
		return nil, err
	}

	env := &adjudicatorEnv{
		Executor: pipeline.NewExecutor(oc, retriever, dispatcher),
	}

	if withStore {
		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return nil, err
		}
		env.Store = st
	}

	return env, nil
}

// initOfflineEnv builds an environment with stub collaborators so the full
// pipeline can run without API keys or an SMTP server.
func initOfflineEnv(ctx context.Context, withStore bool) (*adjudicatorEnv, error) {
	env := &adjudicatorEnv{
		Executor: pipeline.NewExecutor(
			&pipeline.StubOracle{},
			&pipeline.StubRetriever{},
			&pipeline.StubDispatcher{},
		),
	}

	if withStore {
		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return nil, err
		}
		env.Store = st
	}

	return env, nil
}
