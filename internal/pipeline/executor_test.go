package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/claims-cli/internal/model"
	"github.com/sells-group/claims-cli/internal/resilience"
)

// oracleFunc adapts a function to oracle.Client for scripted responses.
type oracleFunc func(ctx context.Context, system, user string) (string, error)

func (f oracleFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

// escalatingOracle answers like StubOracle except the decision stage
// returns escalate_hitl.
func escalatingOracle() oracleFunc {
	stub := &StubOracle{}
	return func(ctx context.Context, system, user string) (string, error) {
		if strings.Contains(strings.ToLower(system), "decision") {
			return `{"decision": "escalate_hitl", "rationale": "Coverage unclear and high anomaly.", "confidence": 0.4}`, nil
		}
		return stub.Complete(ctx, system, user)
	}
}

// noRetry keeps failure tests fast.
func noRetry() resilience.Policy {
	return resilience.Policy{MaxAttempts: 1, InitialBackoff: time.Millisecond}
}

func testClaimState() *model.ClaimState {
	claim := model.NewClaim(map[string]string{
		"claim_id":            "WC-1001",
		"vehicle_type":        "sedan",
		"part_replaced":       "alternator",
		"failure_description": "no charge at idle",
		"total_cost":          "850",
	})
	return model.NewClaimState(claim, model.AnomalyResult{
		Score:     0.4,
		Bucket:    model.RiskLow,
		PerFieldZ: map[string]float64{"total_cost": 0.4},
	})
}

func stagePrefixes(trace []string) []string {
	var out []string
	for _, entry := range trace {
		end := strings.Index(entry, "]")
		if end > 0 {
			out = append(out, entry[1:end])
		}
	}
	return out
}

func TestExecutorApprovePath(t *testing.T) {
	t.Parallel()

	dispatcher := &StubDispatcher{}
	exec := NewExecutor(&StubOracle{}, &StubRetriever{}, dispatcher)

	st, err := exec.Run(context.Background(), testClaimState())
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeApprove, st.Decision.Outcome)
	assert.Equal(t, model.CoverageCovered, st.Policy.Coverage)
	assert.NotEmpty(t, st.Policy.Context)
	assert.Equal(t, 12.5, st.Fraud.Score)
	assert.NotEmpty(t, st.Evidence.Summary)

	// Approved claims are never escalated and never notified.
	assert.False(t, st.Escalation.Required)
	assert.Empty(t, dispatcher.Sent())

	// One entry per stage, in execution order (policy check emits a
	// second entry for its key rules).
	assert.Equal(t,
		[]string{"policy_check", "policy_check", "fraud_scoring", "evidence", "decision"},
		stagePrefixes(st.Trace),
	)
}

func TestExecutorEscalatePath(t *testing.T) {
	t.Parallel()

	dispatcher := &StubDispatcher{}
	exec := NewExecutor(escalatingOracle(), &StubRetriever{}, dispatcher)

	st, err := exec.Run(context.Background(), testClaimState())
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeEscalate, st.Decision.Outcome)
	assert.True(t, st.Escalation.Required)
	assert.True(t, st.Escalation.NotificationSent)
	assert.Equal(t, "reviewers@example.com", st.Escalation.Recipient)
	assert.Contains(t, st.Escalation.Note, "policy_coverage=covered")
	assert.Contains(t, st.Escalation.Note, "risk_bucket=low")

	sent := dispatcher.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "WC-1001", sent[0].ClaimID)
	assert.Equal(t, "escalate_hitl", sent[0].Decision)
	assert.Equal(t, 12.5, sent[0].FraudScore)

	prefixes := stagePrefixes(st.Trace)
	assert.Equal(t, "hitl_review", prefixes[len(prefixes)-1])
}

func TestExecutorNotificationFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	dispatcher := &StubDispatcher{Fail: errors.New("smtp: connection refused")}
	exec := NewExecutor(escalatingOracle(), &StubRetriever{}, dispatcher)

	st, err := exec.Run(context.Background(), testClaimState())
	require.NoError(t, err)

	// The review flag is authoritative even when the email never left.
	assert.True(t, st.Escalation.Required)
	assert.False(t, st.Escalation.NotificationSent)
	assert.Contains(t, st.Escalation.NotificationError, "connection refused")

	last := st.Trace[len(st.Trace)-1]
	assert.Contains(t, last, "notification failed")
}

func TestExecutorOracleFailure(t *testing.T) {
	t.Parallel()

	oracleErr := errors.New("api: overloaded")
	failing := oracleFunc(func(context.Context, string, string) (string, error) {
		return "", oracleErr
	})
	exec := NewExecutor(failing, &StubRetriever{}, &StubDispatcher{}).WithRetryPolicy(noRetry())

	st, err := exec.Run(context.Background(), testClaimState())
	require.Error(t, err)
	assert.ErrorIs(t, err, oracleErr)

	// Partial state comes back for auditability.
	require.NotNil(t, st)
	assert.Empty(t, st.Policy.Summary)
}

func TestExecutorRetrievalFailureDegrades(t *testing.T) {
	t.Parallel()

	failingRetriever := &failRetriever{err: errors.New("policy store unavailable")}
	exec := NewExecutor(&StubOracle{}, failingRetriever, &StubDispatcher{})

	st, err := exec.Run(context.Background(), testClaimState())
	require.NoError(t, err)

	// The stage proceeds with an empty context instead of aborting.
	assert.Empty(t, st.Policy.Context)
	assert.Equal(t, model.CoverageCovered, st.Policy.Coverage)
}

type failRetriever struct{ err error }

func (f *failRetriever) Query(context.Context, string) ([]string, error) {
	return nil, f.err
}
