package model

import (
	"fmt"
	"time"
)

// Coverage is the policy-coverage verdict for a claim.
type Coverage string

const (
	CoverageCovered    Coverage = "covered"
	CoverageNotCovered Coverage = "not_covered"
	CoverageUnclear    Coverage = "unclear"
)

// NormalizeCoverage maps an arbitrary string onto a valid Coverage value.
// Anything unrecognized becomes CoverageUnclear.
func NormalizeCoverage(s string) Coverage {
	switch Coverage(s) {
	case CoverageCovered, CoverageNotCovered, CoverageUnclear:
		return Coverage(s)
	}
	return CoverageUnclear
}

// Outcome is the final adjudication disposition.
type Outcome string

const (
	OutcomeApprove  Outcome = "approve"
	OutcomeDecline  Outcome = "decline"
	OutcomeEscalate Outcome = "escalate_hitl"
)

// ValidOutcome reports whether s is one of the three recognized dispositions.
func ValidOutcome(s string) bool {
	switch Outcome(s) {
	case OutcomeApprove, OutcomeDecline, OutcomeEscalate:
		return true
	}
	return false
}

// RiskBucket is the coarse anomaly classification for a claim.
type RiskBucket string

const (
	RiskLow    RiskBucket = "low"
	RiskMedium RiskBucket = "medium"
	RiskHigh   RiskBucket = "high"
)

// PolicyAssessment is the output of the policy-check stage.
type PolicyAssessment struct {
	Coverage Coverage `json:"coverage"`
	Summary  string   `json:"summary"`
	Context  string   `json:"context"`
	KeyRules []string `json:"key_rules,omitempty"`
}

// FraudAssessment is the output of the fraud-scoring stage.
// Score is always within [0, 100].
type FraudAssessment struct {
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons,omitempty"`
}

// EvidenceBundle is the free-text evidence summary prepared for reviewers.
type EvidenceBundle struct {
	Summary string `json:"summary"`
}

// Decision is the output of the decision stage.
// Confidence is always within [0, 1].
type Decision struct {
	Outcome    Outcome `json:"outcome"`
	Rationale  string  `json:"rationale"`
	Confidence float64 `json:"confidence"`
}

// AnomalyResult carries the statistical deviation metrics for one claim,
// computed against frozen batch statistics.
type AnomalyResult struct {
	Score     float64            `json:"score"`
	Bucket    RiskBucket         `json:"bucket"`
	PerFieldZ map[string]float64 `json:"per_field_z,omitempty"`
}

// EscalationRecord records the human-review handoff. Required is the
// authoritative signal; NotificationSent only reports the outbound email.
type EscalationRecord struct {
	Required          bool   `json:"required"`
	Note              string `json:"note,omitempty"`
	NotificationSent  bool   `json:"notification_sent"`
	NotificationError string `json:"notification_error,omitempty"`
	Recipient         string `json:"recipient,omitempty"`
}

// ClaimState is the mutable working record for one claim's pipeline run.
// It is owned by exactly one executor run and never shared across claims.
type ClaimState struct {
	Claim      Claim            `json:"claim"`
	Anomaly    AnomalyResult    `json:"anomaly"`
	Policy     PolicyAssessment `json:"policy"`
	Fraud      FraudAssessment  `json:"fraud"`
	Evidence   EvidenceBundle   `json:"evidence"`
	Decision   Decision         `json:"decision"`
	Escalation EscalationRecord `json:"escalation"`

	// Error is set when the claim could not be adjudicated at all
	// (oracle invocation failure after retries). The claim still appears
	// in batch output with a fail-safe decision.
	Error string `json:"error,omitempty"`

	// Trace is the append-only audit log, one or more entries per stage,
	// in execution order.
	Trace []string `json:"trace"`
}

// NewClaimState builds the initial state for one claim with its
// pre-computed anomaly result.
func NewClaimState(claim Claim, anomaly AnomalyResult) *ClaimState {
	return &ClaimState{
		Claim:   claim,
		Anomaly: anomaly,
		Trace:   []string{},
	}
}

// Tracef appends a formatted entry to the trace log under the given
// stage label.
func (s *ClaimState) Tracef(stage, format string, args ...any) {
	s.Trace = append(s.Trace, fmt.Sprintf("[%s] ", stage)+fmt.Sprintf(format, args...))
}

// RunStatus is the lifecycle state of a batch adjudication run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one batch adjudication run as persisted by the store.
type Run struct {
	ID        string    `json:"id" yaml:"id"`
	Source    string    `json:"source" yaml:"source"`
	Status    RunStatus `json:"status" yaml:"status"`
	Total     int       `json:"total" yaml:"total"`
	Succeeded int       `json:"succeeded" yaml:"succeeded"`
	Failed    int       `json:"failed" yaml:"failed"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}
