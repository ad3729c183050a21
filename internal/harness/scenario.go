package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/paywatch/internal/ledger"
	"github.com/roach88/paywatch/internal/payload"
)

// Scenario defines a reconciliation scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Timeout overrides the pending timeout (Go duration). Default 120s.
	Timeout string `yaml:"timeout,omitempty"`

	// Oracle scripts the status answers per transaction reference.
	Oracle map[string][]string `yaml:"oracle,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is exactly one of submit, advance, cycle, restart.
type Step struct {
	Submit  *Submission `yaml:"submit,omitempty"`
	Advance string      `yaml:"advance,omitempty"`
	Cycle   bool        `yaml:"cycle,omitempty"`
	Restart bool        `yaml:"restart,omitempty"`
}

// Submission is a payment already accepted by the submitter.
type Submission struct {
	Owner   string    `yaml:"owner"`
	Ref     string    `yaml:"ref"`
	Kind    string    `yaml:"kind"`
	Payload yaml.Node `yaml:"payload"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type (see package docs).
	Type string `yaml:"type"`

	// Event is the notification type (event_count).
	Event string `yaml:"event,omitempty"`

	// Events is the expected order (event_order).
	Events []string `yaml:"events,omitempty"`

	// Kind and Ref identify a record (committed, oracle_calls, abandoned).
	Kind string `yaml:"kind,omitempty"`
	Ref  string `yaml:"ref,omitempty"`

	// Absent inverts committed and abandoned.
	Absent bool `yaml:"absent,omitempty"`

	// Count is the expected number (event_count, pending_count, oracle_calls).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertEventCount   = "event_count"
	AssertEventOrder   = "event_order"
	AssertCommitted    = "committed"
	AssertPendingCount = "pending_count"
	AssertOracleCalls  = "oracle_calls"
	AssertAbandoned    = "abandoned"
)

// oracleAnswers maps script words to oracle statuses. "error" is handled
// separately.
var oracleAnswers = map[string]ledger.Status{
	"pending":   ledger.StatusPending,
	"confirmed": ledger.StatusConfirmed,
	"failed":    ledger.StatusFailed,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// timeout returns the scenario's pending timeout, or zero for the default.
func (s *Scenario) timeout() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive")
	}
	return d, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if _, err := s.timeout(); err != nil {
		return err
	}

	for ref, answers := range s.Oracle {
		for i, a := range answers {
			if _, ok := oracleAnswers[a]; !ok && a != "error" {
				return fmt.Errorf("oracle[%s][%d]: unknown answer %q", ref, i, a)
			}
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step) error {
	set := 0
	if step.Submit != nil {
		set++
	}
	if step.Advance != "" {
		set++
	}
	if step.Cycle {
		set++
	}
	if step.Restart {
		set++
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of submit, advance, cycle, restart is required", index)
	}

	if step.Advance != "" {
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("steps[%d].advance: %w", index, err)
		}
		if d <= 0 {
			return fmt.Errorf("steps[%d].advance: must be positive", index)
		}
	}

	if sub := step.Submit; sub != nil {
		if sub.Owner == "" || sub.Ref == "" {
			return fmt.Errorf("steps[%d].submit: owner and ref are required", index)
		}
		if _, err := payload.ParseKind(sub.Kind); err != nil {
			return fmt.Errorf("steps[%d].submit: %w", index, err)
		}
		if sub.Payload.Kind == 0 {
			return fmt.Errorf("steps[%d].submit: payload is required", index)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertEventOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for event_order", index)
		}
	case AssertCommitted:
		if a.Ref == "" {
			return fmt.Errorf("assertions[%d]: ref is required for committed", index)
		}
		if _, err := payload.ParseKind(a.Kind); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertPendingCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for pending_count", index)
		}
	case AssertOracleCalls, AssertAbandoned:
		if a.Ref == "" {
			return fmt.Errorf("assertions[%d]: ref is required for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// decodePayload decodes a submission's payload node strictly for its kind.
func (s *Submission) decodePayload() (payload.Payload, error) {
	kind, err := payload.ParseKind(s.Kind)
	if err != nil {
		return nil, err
	}
	raw, err := yaml.Marshal(&s.Payload)
	if err != nil {
		return nil, fmt.Errorf("re-encode payload: %w", err)
	}
	return payload.DecodeYAML(kind, bytes.NewReader(raw))
}
