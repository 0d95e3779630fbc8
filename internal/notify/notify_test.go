package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/claims-cli/internal/config"
)

func validEmailConfig() config.EmailConfig {
	return config.EmailConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "claims",
		Password: "secret",
		From:     "claims@example.com",
		To:       "reviewers@example.com",
	}
}

func TestNewSMTP(t *testing.T) {
	t.Parallel()

	d, err := NewSMTP(validEmailConfig())
	require.NoError(t, err)
	assert.Equal(t, "reviewers@example.com", d.DefaultRecipient())
}

func TestNewSMTPRejectsIncompleteConfig(t *testing.T) {
	t.Parallel()

	cfg := validEmailConfig()
	cfg.Host = ""
	cfg.To = ""

	_, err := NewSMTP(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email.host")
	assert.Contains(t, err.Error(), "email.to")
}

func TestComposeBody(t *testing.T) {
	t.Parallel()

	body := composeBody(Message{
		ClaimID:         "WC-1001",
		Decision:        "escalate_hitl",
		FraudScore:      72.5,
		RiskBucket:      "high",
		Note:            "Flagged for human-in-the-loop review.",
		EvidenceSummary: "High repair cost relative to batch.",
	})

	assert.Contains(t, body, "Claim ID: WC-1001")
	assert.Contains(t, body, "Decision: escalate_hitl")
	assert.Contains(t, body, "Fraud score: 72.5")
	assert.Contains(t, body, "Risk bucket: high")
	assert.Contains(t, body, "Flagged for human-in-the-loop review.")
	assert.Contains(t, body, "Evidence summary:\nHigh repair cost relative to batch.")
}

func TestComposeBodyEmptyOptionalSections(t *testing.T) {
	t.Parallel()

	body := composeBody(Message{ClaimID: "WC-1", Decision: "escalate_hitl"})

	assert.Contains(t, body, "Notes:\n(none)")
	assert.NotContains(t, body, "Evidence summary:")
}
