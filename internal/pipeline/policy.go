package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/claims-cli/internal/model"
)

const policySystemPrompt = `You are a senior warranty engineer.
You will receive:
- Policy text snippets
- Claim data as JSON

Decide whether this claim is covered by the policy.
You MUST respond with JSON only (no markdown) with keys:
  coverage : one of 'covered', 'not_covered', 'unclear'
  summary  : a short natural-language explanation (3-5 sentences)
  key_rules: a list of short bullet strings naming the policy rules you used.`

const policyUserPrompt = `Policy snippets:
%s

Claim data:
%s

Respond with STRICT JSON only.`

// snippetSeparator joins retrieved policy snippets into the context block.
const snippetSeparator = "\n\n---\n\n"

// policyFallbackSummary is used when the oracle's policy verdict cannot be
// parsed; the raw text then lands in the trace via the summary.
const policyFallbackSummary = "Could not parse policy result."

// retrievalQueryFields is the preference list of claim fields used to build
// the policy retrieval query, in order.
var retrievalQueryFields = []string{
	model.FieldVehicleType,
	model.FieldModel,
	model.FieldPartReplaced,
	model.FieldFailureDescription,
}

// policyCheck retrieves relevant policy snippets and asks the oracle for a
// coverage verdict.
func (e *Executor) policyCheck(ctx context.Context, st *model.ClaimState) error {
	query := buildRetrievalQuery(st.Claim)

	snippets, err := e.retriever.Query(ctx, query)
	if err != nil {
		// Retrieval failure degrades to an empty context rather than
		// aborting the claim; the oracle still sees the full claim.
		zap.L().Warn("pipeline: policy retrieval failed",
			zap.String("claim_id", st.Claim.DisplayID()),
			zap.Error(err),
		)
		snippets = nil
	}
	policyContext := strings.Join(snippets, snippetSeparator)

	prompt := fmt.Sprintf(policyUserPrompt, policyContext, st.Claim.JSONString())
	raw, err := e.complete(ctx, policySystemPrompt, prompt)
	if err != nil {
		return eris.Wrap(err, "pipeline: policy check")
	}

	assessment := parsePolicyAssessment(raw)
	assessment.Context = policyContext
	st.Policy = assessment

	st.Tracef("policy_check", "coverage=%s, summary=%s", assessment.Coverage, assessment.Summary)
	if len(assessment.KeyRules) > 0 {
		st.Tracef("policy_check", "key_rules=%s", strings.Join(assessment.KeyRules, "; "))
	}
	return nil
}

// parsePolicyAssessment interprets the oracle's coverage verdict. On parse
// failure the summary carries the raw text so the response stays auditable.
func parsePolicyAssessment(raw string) model.PolicyAssessment {
	parsed := parseOracleJSON(raw)
	if !parsed.OK {
		return model.PolicyAssessment{
			Coverage: model.CoverageUnclear,
			Summary:  fallbackSummary(parsed.Raw, policyFallbackSummary),
		}
	}

	return model.PolicyAssessment{
		Coverage: model.NormalizeCoverage(parsed.stringField("coverage", string(model.CoverageUnclear))),
		Summary:  parsed.stringField("summary", policyFallbackSummary),
		KeyRules: parsed.stringListField("key_rules"),
	}
}

// fallbackSummary surfaces the raw oracle text when present, else the
// stage's documented default.
func fallbackSummary(raw, def string) string {
	if strings.TrimSpace(raw) != "" {
		return raw
	}
	return def
}

// buildRetrievalQuery concatenates "field: value" for the preference-list
// fields present on the claim, falling back to the full claim JSON when
// none are present.
func buildRetrievalQuery(claim model.Claim) string {
	var parts []string
	for _, field := range retrievalQueryFields {
		if v, ok := claim.Field(field); ok {
			parts = append(parts, field+": "+v)
		}
	}
	if len(parts) == 0 {
		return claim.JSONString()
	}
	return strings.Join(parts, " | ")
}
