package pipeline

import (
	"context"
	"fmt"

	"github.com/sells-group/claims-cli/internal/model"
	"github.com/sells-group/claims-cli/internal/notify"
)

// escalate marks the claim for human review and dispatches a notification.
// Dispatch failure is recorded, never propagated: the authoritative
// escalation signal is the Required flag and the trace, not the email.
func (e *Executor) escalate(ctx context.Context, st *model.ClaimState) error {
	note := fmt.Sprintf(
		"Flagged for human-in-the-loop review based on policy_coverage=%s, fraud_score=%g, risk_bucket=%s.",
		st.Policy.Coverage, st.Fraud.Score, st.Anomaly.Bucket,
	)

	st.Escalation = model.EscalationRecord{
		Required:  true,
		Note:      note,
		Recipient: e.dispatcher.DefaultRecipient(),
	}

	err := e.dispatcher.Send(ctx, notify.Message{
		ClaimID:         st.Claim.DisplayID(),
		Decision:        string(st.Decision.Outcome),
		FraudScore:      st.Fraud.Score,
		RiskBucket:      string(st.Anomaly.Bucket),
		Note:            note,
		EvidenceSummary: st.Evidence.Summary,
	})
	if err != nil {
		st.Escalation.NotificationSent = false
		st.Escalation.NotificationError = err.Error()
		st.Tracef("hitl_review", "marked for HITL review BUT notification failed: %s", err)
		return nil
	}

	st.Escalation.NotificationSent = true
	st.Tracef("hitl_review", "marked for HITL review and notification sent for claim %s", st.Claim.DisplayID())
	return nil
}
