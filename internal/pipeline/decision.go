package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/claims-cli/internal/model"
)

const decisionSystemPrompt = `You are a senior warranty decision specialist.
You must decide whether to approve, decline, or escalate this claim for human review.

You MUST respond with STRICT JSON only, with keys:
  decision   : one of 'approve', 'decline', 'escalate_hitl'
  rationale  : short explanation (2-4 sentences)
  confidence : float in [0, 1] representing your confidence.`

const decisionUserPrompt = `Claim JSON:
%s

Policy coverage: %s
Policy summary:
%s

Fraud score: %g
Fraud reasons: %s

Anomaly score: %.4f
Risk bucket: %s
Evidence summary:
%s`

// decisionFallbackRationale explains the fail-safe default when the oracle
// returned parseable JSON without a usable rationale.
const decisionFallbackRationale = "Decision could not be parsed; defaulting to escalate for human review."

// decide asks the oracle for the final disposition. Any ambiguity about the
// intended decision defaults to routing the claim to a human.
func (e *Executor) decide(ctx context.Context, st *model.ClaimState) error {
	prompt := fmt.Sprintf(decisionUserPrompt,
		st.Claim.JSONString(),
		st.Policy.Coverage,
		st.Policy.Summary,
		st.Fraud.Score,
		strings.Join(st.Fraud.Reasons, "; "),
		st.Anomaly.Score,
		st.Anomaly.Bucket,
		st.Evidence.Summary,
	)

	raw, err := e.complete(ctx, decisionSystemPrompt, prompt)
	if err != nil {
		return eris.Wrap(err, "pipeline: decision")
	}

	st.Decision = parseDecision(raw)
	st.Tracef("decision", "decision=%s, confidence=%.2f, rationale=%s",
		st.Decision.Outcome, st.Decision.Confidence, st.Decision.Rationale)
	return nil
}

// parseDecision interprets the oracle's disposition. A value outside the
// three recognized outcomes, or unparseable text, yields escalate_hitl with
// zero confidence; on parse failure the rationale carries the raw text.
func parseDecision(raw string) model.Decision {
	parsed := parseOracleJSON(raw)
	if !parsed.OK {
		return model.Decision{
			Outcome:    model.OutcomeEscalate,
			Rationale:  fallbackSummary(parsed.Raw, decisionFallbackRationale),
			Confidence: 0.0,
		}
	}

	outcome := model.OutcomeEscalate
	if d := strings.ToLower(strings.TrimSpace(parsed.stringField("decision", ""))); model.ValidOutcome(d) {
		outcome = model.Outcome(d)
	}

	return model.Decision{
		Outcome:    outcome,
		Rationale:  parsed.stringField("rationale", decisionFallbackRationale),
		Confidence: clamp(parsed.floatField("confidence", 0.0), 0, 1),
	}
}
