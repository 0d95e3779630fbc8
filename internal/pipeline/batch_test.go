package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/claims-cli/internal/model"
)

func batchClaims(n int) []model.Claim {
	claims := make([]model.Claim, 0, n)
	for i := 0; i < n; i++ {
		claims = append(claims, model.NewClaim(map[string]string{
			"claim_id":     "WC-" + string(rune('A'+i)),
			"vehicle_type": "sedan",
			"total_cost":   "500",
		}))
	}
	return claims
}

func TestBatchProcessPreservesOrder(t *testing.T) {
	t.Parallel()

	exec := NewExecutor(&StubOracle{}, &StubRetriever{}, &StubDispatcher{})
	batch := NewBatch(exec, WithConcurrency(4))

	claims := batchClaims(5)
	result, err := batch.Process(context.Background(), claims, "test.csv")
	require.NoError(t, err)

	require.Len(t, result.States, 5)
	for i, st := range result.States {
		require.NotNil(t, st)
		assert.Equal(t, claims[i].ID, st.Claim.ID)
	}
	assert.Equal(t, 5, result.Succeeded)
	assert.Zero(t, result.Failed)
	assert.Empty(t, result.RunID)
}

func TestBatchProcessProgress(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var calls []int

	exec := NewExecutor(&StubOracle{}, &StubRetriever{}, &StubDispatcher{})
	batch := NewBatch(exec, WithProgress(func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 3, total)
		calls = append(calls, done)
	}))

	_, err := batch.Process(context.Background(), batchClaims(3), "test.csv")
	require.NoError(t, err)

	// Sequential with concurrency 1.
	assert.Equal(t, []int{1, 2, 3}, calls)
}

func TestBatchProcessClaimFailureContinues(t *testing.T) {
	t.Parallel()

	stub := &StubOracle{}
	oracleErr := errors.New("api: overloaded")
	flaky := oracleFunc(func(ctx context.Context, system, user string) (string, error) {
		// Fail every oracle call for the second claim only.
		if strings.Contains(user, "WC-B") {
			return "", oracleErr
		}
		return stub.Complete(ctx, system, user)
	})

	exec := NewExecutor(flaky, &StubRetriever{}, &StubDispatcher{}).WithRetryPolicy(noRetry())
	batch := NewBatch(exec)

	result, err := batch.Process(context.Background(), batchClaims(3), "test.csv")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)

	failed := result.States[1]
	assert.Equal(t, "WC-B", failed.Claim.ID)
	assert.NotEmpty(t, failed.Error)

	// Fail-safe disposition: a claim that cannot be adjudicated goes to
	// a human, never to silent approval.
	assert.Equal(t, model.OutcomeEscalate, failed.Decision.Outcome)
	assert.Zero(t, failed.Decision.Confidence)
	assert.Contains(t, failed.Trace[len(failed.Trace)-1], "claim aborted")

	// Neighbors are unaffected.
	assert.Equal(t, model.OutcomeApprove, result.States[0].Decision.Outcome)
	assert.Equal(t, model.OutcomeApprove, result.States[2].Decision.Outcome)
}

func TestBatchProcessSharedStatistics(t *testing.T) {
	t.Parallel()

	exec := NewExecutor(&StubOracle{}, &StubRetriever{}, &StubDispatcher{})
	batch := NewBatch(exec, WithAnomalyFields([]string{"total_cost"}, 1e-6))

	claims := []model.Claim{
		model.NewClaim(map[string]string{"claim_id": "WC-1", "total_cost": "100"}),
		model.NewClaim(map[string]string{"claim_id": "WC-2", "total_cost": "100"}),
		model.NewClaim(map[string]string{"claim_id": "WC-3", "total_cost": "100"}),
		model.NewClaim(map[string]string{"claim_id": "WC-4", "total_cost": "500"}),
	}

	result, err := batch.Process(context.Background(), claims, "test.csv")
	require.NoError(t, err)

	assert.InDelta(t, 0.577, result.States[0].Anomaly.Score, 0.001)
	assert.Equal(t, model.RiskLow, result.States[0].Anomaly.Bucket)
	assert.InDelta(t, 1.732, result.States[3].Anomaly.Score, 0.001)
	assert.Equal(t, model.RiskMedium, result.States[3].Anomaly.Bucket)
}
