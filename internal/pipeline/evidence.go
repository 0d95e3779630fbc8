package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/claims-cli/internal/model"
)

const evidenceSystemPrompt = `You are an assistant preparing a concise evidence bundle for a warranty claim.
Summarize the most relevant facts, focusing on:
- time & mileage vs. policy limits
- component category (wear-and-tear vs covered)
- suspicious patterns or mitigating factors

Write 1-2 short paragraphs plus a bullet list of key points.`

const evidenceUserPrompt = `Claim JSON:
%s

Policy coverage: %s
Policy summary:
%s

Anomaly score: %.4f
Risk bucket: %s
Per-field z-scores: %s
Fraud score: %g / 100
Fraud reasons: %s

Prepare a concise evidence summary.`

// synthesizeEvidence asks the oracle for a free-text evidence summary for
// reviewers. No JSON schema is enforced; the response is stored verbatim.
func (e *Executor) synthesizeEvidence(ctx context.Context, st *model.ClaimState) error {
	prompt := fmt.Sprintf(evidenceUserPrompt,
		st.Claim.JSONString(),
		st.Policy.Coverage,
		st.Policy.Summary,
		st.Anomaly.Score,
		st.Anomaly.Bucket,
		marshalZScores(st.Anomaly.PerFieldZ),
		st.Fraud.Score,
		strings.Join(st.Fraud.Reasons, "; "),
	)

	raw, err := e.complete(ctx, evidenceSystemPrompt, prompt)
	if err != nil {
		return eris.Wrap(err, "pipeline: evidence synthesis")
	}

	st.Evidence = model.EvidenceBundle{Summary: raw}
	st.Tracef("evidence", "evidence summary generated (%d chars)", len(raw))
	return nil
}
