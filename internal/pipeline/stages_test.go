package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/claims-cli/internal/model"
)

func TestParsePolicyAssessment(t *testing.T) {
	t.Parallel()

	got := parsePolicyAssessment(`{"coverage": "covered", "summary": "Within powertrain warranty.", "key_rules": ["Section 2.1"]}`)
	assert.Equal(t, model.CoverageCovered, got.Coverage)
	assert.Equal(t, "Within powertrain warranty.", got.Summary)
	assert.Equal(t, []string{"Section 2.1"}, got.KeyRules)
}

func TestParsePolicyAssessmentUnknownCoverage(t *testing.T) {
	t.Parallel()

	got := parsePolicyAssessment(`{"coverage": "probably", "summary": "hmm"}`)
	assert.Equal(t, model.CoverageUnclear, got.Coverage)
	assert.Equal(t, "hmm", got.Summary)
}

func TestParsePolicyAssessmentUnparseable(t *testing.T) {
	t.Parallel()

	got := parsePolicyAssessment("The policy clearly covers this.")
	assert.Equal(t, model.CoverageUnclear, got.Coverage)
	// Raw text survives in the summary for auditability.
	assert.Equal(t, "The policy clearly covers this.", got.Summary)

	got = parsePolicyAssessment("")
	assert.Equal(t, policyFallbackSummary, got.Summary)
}

func TestParseFraudAssessment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		in        string
		wantScore float64
	}{
		{"normal", `{"fraud_score": 35, "reasons": ["late claim"]}`, 35},
		{"clamped high", `{"fraud_score": 150}`, 100},
		{"clamped low", `{"fraud_score": -10}`, 0},
		{"string number", `{"fraud_score": "62.5"}`, 62.5},
		{"missing key", `{"reasons": ["x"]}`, fraudFallbackScore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseFraudAssessment(tt.in)
			assert.Equal(t, tt.wantScore, got.Score)
		})
	}
}

func TestParseFraudAssessmentUnparseable(t *testing.T) {
	t.Parallel()

	got := parseFraudAssessment("looks fishy to me")
	assert.Equal(t, fraudFallbackScore, got.Score)
	assert.Equal(t, []string{"Unparsed fraud JSON: looks fishy to me"}, got.Reasons)
}

func TestParseDecision(t *testing.T) {
	t.Parallel()

	got := parseDecision(`{"decision": "approve", "rationale": "Covered and low risk.", "confidence": 0.92}`)
	assert.Equal(t, model.OutcomeApprove, got.Outcome)
	assert.Equal(t, "Covered and low risk.", got.Rationale)
	assert.Equal(t, 0.92, got.Confidence)
}

func TestParseDecisionUnknownOutcome(t *testing.T) {
	t.Parallel()

	// Anything outside the three recognized dispositions falls back to
	// human review.
	got := parseDecision(`{"decision": "maybe", "rationale": "unsure", "confidence": 0.5}`)
	assert.Equal(t, model.OutcomeEscalate, got.Outcome)
	assert.Equal(t, "unsure", got.Rationale)
	assert.Equal(t, 0.5, got.Confidence)
}

func TestParseDecisionConfidenceClamped(t *testing.T) {
	t.Parallel()

	got := parseDecision(`{"decision": "decline", "rationale": "r", "confidence": 1.7}`)
	assert.Equal(t, model.OutcomeDecline, got.Outcome)
	assert.Equal(t, 1.0, got.Confidence)

	got = parseDecision(`{"decision": "decline", "rationale": "r", "confidence": -0.3}`)
	assert.Equal(t, 0.0, got.Confidence)
}

func TestParseDecisionUnparseable(t *testing.T) {
	t.Parallel()

	got := parseDecision("APPROVE!!!")
	assert.Equal(t, model.OutcomeEscalate, got.Outcome)
	assert.Equal(t, "APPROVE!!!", got.Rationale)
	assert.Zero(t, got.Confidence)
}

func TestBuildRetrievalQuery(t *testing.T) {
	t.Parallel()

	c := model.NewClaim(map[string]string{
		"claim_id":            "WC-1",
		"vehicle_type":        "sedan",
		"part_replaced":       "alternator",
		"failure_description": "no charge",
	})
	got := buildRetrievalQuery(c)
	assert.Equal(t, "vehicle_type: sedan | part_replaced: alternator | failure_description: no charge", got)
}

func TestBuildRetrievalQueryFallsBackToJSON(t *testing.T) {
	t.Parallel()

	c := model.NewClaim(map[string]string{"claim_id": "WC-1", "total_cost": "900"})
	got := buildRetrievalQuery(c)
	assert.Contains(t, got, `"claim_id":"WC-1"`)
	assert.Contains(t, got, `"total_cost":"900"`)
}
