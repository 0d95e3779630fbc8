package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/claims-cli/internal/model"
)

const fraudSystemPrompt = `You are a warranty fraud analyst.
Estimate the likelihood of fraud or abuse based on:
- the claim data
- policy coverage and summary
- statistical anomaly metrics (z-scores).

Interpret anomaly_score as:
  ~0: normal, 1-2: somewhat unusual, >2.5: highly unusual.

You MUST respond with STRICT JSON with keys:
  fraud_score: float in [0, 100]
  reasons    : list of short bullet strings explaining the score.`

const fraudUserPrompt = `Claim data:
%s

Policy coverage: %s
Policy summary: %s

Anomaly score (avg z-score): %.4f
Risk bucket: %s
Per-field z-scores: %s`

// fraudFallbackScore is the neutral midpoint used when the oracle's fraud
// estimate cannot be parsed.
const fraudFallbackScore = 50.0

// fraudScoring asks the oracle for a fraud likelihood given the claim, the
// policy verdict, and the anomaly metrics.
func (e *Executor) fraudScoring(ctx context.Context, st *model.ClaimState) error {
	prompt := fmt.Sprintf(fraudUserPrompt,
		st.Claim.JSONString(),
		st.Policy.Coverage,
		st.Policy.Summary,
		st.Anomaly.Score,
		st.Anomaly.Bucket,
		marshalZScores(st.Anomaly.PerFieldZ),
	)

	raw, err := e.complete(ctx, fraudSystemPrompt, prompt)
	if err != nil {
		return eris.Wrap(err, "pipeline: fraud scoring")
	}

	st.Fraud = parseFraudAssessment(raw)
	st.Tracef("fraud_scoring", "fraud_score=%g, reasons=%s",
		st.Fraud.Score, strings.Join(st.Fraud.Reasons, "; "))
	return nil
}

// parseFraudAssessment interprets the oracle's fraud estimate. The score is
// clamped into [0, 100] regardless of what the oracle produced; on parse
// failure the raw text is preserved inside the fallback reason.
func parseFraudAssessment(raw string) model.FraudAssessment {
	parsed := parseOracleJSON(raw)
	if !parsed.OK {
		return model.FraudAssessment{
			Score:   fraudFallbackScore,
			Reasons: []string{"Unparsed fraud JSON: " + parsed.Raw},
		}
	}

	return model.FraudAssessment{
		Score:   clamp(parsed.floatField("fraud_score", fraudFallbackScore), 0, 100),
		Reasons: parsed.stringListField("reasons"),
	}
}

// marshalZScores renders per-field z-scores for prompt injection.
func marshalZScores(z map[string]float64) string {
	if len(z) == 0 {
		return "{}"
	}
	b, err := json.Marshal(z)
	if err != nil {
		return "{}"
	}
	return string(b)
}
