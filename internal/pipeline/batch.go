package pipeline

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/claims-cli/internal/anomaly"
	"github.com/sells-group/claims-cli/internal/model"
	"github.com/sells-group/claims-cli/internal/store"
)

// ProgressFunc is invoked synchronously after each claim completes.
type ProgressFunc func(done, total int)

// oracleFailureRationale is the fail-safe disposition recorded when a claim
// could not be adjudicated at all.
const oracleFailureRationale = "Adjudication aborted: reasoning oracle unavailable; routing to human review."

// Batch drives the adjudication pipeline across a set of claims. Anomaly
// statistics are computed once over the whole batch before any claim runs;
// per-claim execution then only reads the frozen statistics.
type Batch struct {
	exec        *Executor
	store       store.Store // optional; nil disables persistence
	fields      []string
	stdFloor    float64
	concurrency int
	progress    ProgressFunc
}

// BatchOption configures a Batch.
type BatchOption func(*Batch)

// WithStore enables run and claim-result persistence.
func WithStore(st store.Store) BatchOption {
	return func(b *Batch) { b.store = st }
}

// WithAnomalyFields sets the candidate numeric fields for anomaly scoring.
func WithAnomalyFields(fields []string, stdFloor float64) BatchOption {
	return func(b *Batch) {
		b.fields = fields
		b.stdFloor = stdFloor
	}
}

// WithConcurrency bounds the number of claims adjudicated in parallel.
// Claims are independent: each run mutates only its own state and reads
// only the frozen batch statistics.
func WithConcurrency(n int) BatchOption {
	return func(b *Batch) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithProgress registers a per-claim completion callback.
func WithProgress(fn ProgressFunc) BatchOption {
	return func(b *Batch) { b.progress = fn }
}

// NewBatch creates a batch processor around an executor.
func NewBatch(exec *Executor, opts ...BatchOption) *Batch {
	b := &Batch{
		exec:        exec,
		fields:      anomaly.DefaultFields,
		stdFloor:    anomaly.DefaultStdFloor,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BatchResult is the outcome of one batch run. States preserves input
// order, one finalized state per input claim.
type BatchResult struct {
	RunID     string
	States    []*model.ClaimState
	Succeeded int
	Failed    int
}

// Process adjudicates all claims. Phase one computes batch statistics;
// phase two runs each claim through the executor. A claim whose oracle
// calls fail outright is recorded with an explicit error and a fail-safe
// escalation decision; it never silently vanishes and never aborts the
// rest of the batch.
func (b *Batch) Process(ctx context.Context, claims []model.Claim, source string) (*BatchResult, error) {
	total := len(claims)
	result := &BatchResult{States: make([]*model.ClaimState, total)}

	stats := anomaly.Compute(claims, b.fields, b.stdFloor)

	if b.store != nil {
		run, err := b.store.CreateRun(ctx, source, total)
		if err != nil {
			// Persistence problems don't stop adjudication.
			zap.L().Warn("pipeline: create run failed", zap.Error(err))
		} else {
			result.RunID = run.ID
		}
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	var done, succeeded, failed atomic.Int64

	for i, claim := range claims {
		g.Go(func() error {
			st := model.NewClaimState(claim, stats.Score(claim))

			final, runErr := b.exec.Run(gCtx, st)
			if runErr != nil {
				failed.Add(1)
				final.Error = runErr.Error()
				final.Decision = model.Decision{
					Outcome:    model.OutcomeEscalate,
					Rationale:  oracleFailureRationale,
					Confidence: 0.0,
				}
				final.Tracef("pipeline", "claim aborted: %s", runErr)
				zap.L().Error("pipeline: claim failed",
					zap.String("claim_id", claim.DisplayID()),
					zap.Error(runErr),
				)
			} else {
				succeeded.Add(1)
			}

			result.States[i] = final

			if b.store != nil && result.RunID != "" {
				if saveErr := b.store.SaveClaimResult(gCtx, result.RunID, final); saveErr != nil {
					zap.L().Warn("pipeline: save claim result failed",
						zap.String("claim_id", claim.DisplayID()),
						zap.Error(saveErr),
					)
				}
			}

			if b.progress != nil {
				b.progress(int(done.Add(1)), total)
			}
			return nil
		})
	}

	_ = g.Wait()

	result.Succeeded = int(succeeded.Load())
	result.Failed = int(failed.Load())

	if b.store != nil && result.RunID != "" {
		if err := b.store.CompleteRun(ctx, result.RunID, result.Succeeded, result.Failed); err != nil {
			zap.L().Warn("pipeline: complete run failed", zap.Error(err))
		}
	}

	zap.L().Info("pipeline: batch complete",
		zap.Int("total", total),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
	)

	return result, nil
}
