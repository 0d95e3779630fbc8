package pipeline

import (
	"context"
	"strings"
	"sync"

	"github.com/sells-group/claims-cli/internal/notify"
	"github.com/sells-group/claims-cli/pkg/oracle"
	"github.com/sells-group/claims-cli/pkg/policy"
)

// Compile-time interface checks.
var (
	_ oracle.Client     = (*StubOracle)(nil)
	_ policy.Retriever  = (*StubRetriever)(nil)
	_ notify.Dispatcher = (*StubDispatcher)(nil)
)

// StubOracle implements oracle.Client with canned responses for fully
// offline runs. The response is chosen by inspecting the system prompt.
type StubOracle struct{}

// Complete returns a canned JSON (or free-text) response matching the
// requesting stage's expected schema.
func (s *StubOracle) Complete(_ context.Context, system, _ string) (string, error) {
	lower := strings.ToLower(system)
	switch {
	case strings.Contains(lower, "warranty engineer"):
		return `{"coverage": "covered", "summary": "Stub policy assessment: claim falls within standard warranty terms.", "key_rules": ["Powertrain coverage 5 years / 60,000 miles"]}`, nil
	case strings.Contains(lower, "fraud analyst"):
		return `{"fraud_score": 12.5, "reasons": ["No anomalous cost pattern", "First claim for this vehicle"]}`, nil
	case strings.Contains(lower, "decision specialist"):
		return `{"decision": "approve", "rationale": "Stub decision: covered claim with low fraud likelihood.", "confidence": 0.9}`, nil
	default:
		return "Stub evidence summary: claim details are consistent with a routine covered repair.", nil
	}
}

// StubRetriever implements policy.Retriever with fixed snippets.
type StubRetriever struct {
	Snippets []string
}

// Query returns the configured snippets regardless of the query.
func (s *StubRetriever) Query(_ context.Context, _ string) ([]string, error) {
	if s.Snippets != nil {
		return s.Snippets, nil
	}
	return []string{
		"Section 2.1: Powertrain components are covered for 5 years or 60,000 miles, whichever comes first.",
		"Section 4.3: Wear-and-tear items such as brake pads and wiper blades are excluded.",
	}, nil
}

// StubDispatcher implements notify.Dispatcher, recording sent messages and
// optionally failing every send.
type StubDispatcher struct {
	Fail error // returned from Send when non-nil

	mu   sync.Mutex
	sent []notify.Message
}

// Send records the message, or fails if configured to.
func (s *StubDispatcher) Send(_ context.Context, msg notify.Message) error {
	if s.Fail != nil {
		return s.Fail
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

// DefaultRecipient implements notify.Dispatcher.
func (s *StubDispatcher) DefaultRecipient() string {
	return "reviewers@example.com"
}

// Sent returns a copy of the messages recorded so far.
func (s *StubDispatcher) Sent() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notify.Message, len(s.sent))
	copy(out, s.sent)
	return out
}
