// Package notify delivers human-review notifications for escalated claims.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/claims-cli/internal/config"
)

// Message is one human-review notification payload.
type Message struct {
	ClaimID         string
	Recipient       string // optional; falls back to the configured default
	Decision        string
	FraudScore      float64
	RiskBucket      string
	Note            string
	EvidenceSummary string
}

// Dispatcher sends human-review notifications. Implementations must treat
// any failure as a per-message error; configuration problems are caught at
// construction time instead.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
	DefaultRecipient() string
}

// SMTPDispatcher sends notifications over SMTP with STARTTLS.
type SMTPDispatcher struct {
	cfg config.EmailConfig
}

// NewSMTP validates the email configuration and returns a dispatcher.
// Missing settings are a startup error.
func NewSMTP(cfg config.EmailConfig) (*SMTPDispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SMTPDispatcher{cfg: cfg}, nil
}

// DefaultRecipient returns the configured fallback recipient.
func (d *SMTPDispatcher) DefaultRecipient() string {
	return d.cfg.To
}

// Send delivers one notification. The context is not honored mid-dial;
// SMTP delivery is short-lived and the pipeline tolerates the latency.
func (d *SMTPDispatcher) Send(_ context.Context, msg Message) error {
	recipient := msg.Recipient
	if recipient == "" {
		recipient = d.cfg.To
	}

	subject := fmt.Sprintf("[HITL] Review needed for claim %s", msg.ClaimID)
	body := composeBody(msg)

	var raw strings.Builder
	raw.WriteString("From: " + d.cfg.From + "\r\n")
	raw.WriteString("To: " + recipient + "\r\n")
	raw.WriteString("Subject: " + subject + "\r\n")
	raw.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	raw.WriteString("\r\n")
	raw.WriteString(body)

	addr := fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port)
	auth := smtp.PlainAuth("", d.cfg.Username, d.cfg.Password, d.cfg.Host)

	if err := smtp.SendMail(addr, auth, d.cfg.From, []string{recipient}, []byte(raw.String())); err != nil {
		return eris.Wrapf(err, "notify: send to %s", recipient)
	}

	zap.L().Info("notify: review notification sent",
		zap.String("claim_id", msg.ClaimID),
		zap.String("recipient", recipient),
	)
	return nil
}

// composeBody renders the plain-text notification body.
func composeBody(msg Message) string {
	lines := []string{
		"Claim ID: " + msg.ClaimID,
		"Decision: " + msg.Decision,
		fmt.Sprintf("Fraud score: %g", msg.FraudScore),
		"Risk bucket: " + msg.RiskBucket,
		"",
		"Notes:",
	}
	if msg.Note != "" {
		lines = append(lines, msg.Note)
	} else {
		lines = append(lines, "(none)")
	}
	if msg.EvidenceSummary != "" {
		lines = append(lines, "", "Evidence summary:", msg.EvidenceSummary)
	}
	return strings.Join(lines, "\n")
}
