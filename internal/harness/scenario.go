package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a scheduler test scenario.
// Scenarios run real programs on a real scheduler with a deterministic
// clock and assert on the resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Programs is inline CUE source defining the programs to run.
	Programs string `yaml:"programs"`

	// Config tunes the scheduler's frame budget for this scenario.
	Config ScenarioConfig `yaml:"config,omitempty"`

	// Ticks is the number of frames to advance.
	Ticks int `yaml:"ticks"`

	// Assertions validate the final trace and state.
	// Supported types: said, ended, var_equals, block_order,
	// active_count, event_count
	Assertions []Assertion `yaml:"assertions"`
}

// ScenarioConfig mirrors the scheduler's frame budget settings.
// Durations are in milliseconds to keep the YAML integer-only.
type ScenarioConfig struct {
	// TickTimeMS is the wall-clock budget per frame. Defaults to 16.
	TickTimeMS int `yaml:"tick_time_ms,omitempty"`

	// Turbo ignores the wall clock and re-enters loops up to
	// MaxIterations per frame.
	Turbo bool `yaml:"turbo,omitempty"`

	// MaxIterations is the turbo iteration cap (0 = unlimited).
	MaxIterations int `yaml:"max_iterations,omitempty"`

	// MaxStackDepth bounds nested program calls (0 = unlimited).
	MaxStackDepth int `yaml:"max_stack_depth,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "said": program emitted the given say text
	// - "ended": program's executor ended (optionally with an error)
	// - "var_equals": a still-active executor's variable has a value
	// - "block_order": executed blocks appear in exactly this order
	// - "active_count": number of executors still active after the run
	// - "event_count": number of trace events of a kind
	Type string `yaml:"type"`

	// Program names the program (used by said, ended, var_equals).
	Program string `yaml:"program,omitempty"`

	// Text is the expected say output (used by said).
	Text string `yaml:"text,omitempty"`

	// Error is a substring of the expected end error (used by ended).
	// Empty means a clean end.
	Error string `yaml:"error,omitempty"`

	// Var and Value identify a scope variable (used by var_equals).
	Var   string `yaml:"var,omitempty"`
	Value int64  `yaml:"value,omitempty"`

	// Blocks is the expected execution order (used by block_order).
	Blocks []string `yaml:"blocks,omitempty"`

	// Kind is the trace event kind (used by event_count).
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number (used by active_count, event_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertSaid        = "said"
	AssertEnded       = "ended"
	AssertVarEquals   = "var_equals"
	AssertBlockOrder  = "block_order"
	AssertActiveCount = "active_count"
	AssertEventCount  = "event_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
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

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Programs == "" {
		return fmt.Errorf("programs source is required")
	}

	if s.Ticks <= 0 {
		return fmt.Errorf("ticks must be positive")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Config.TickTimeMS < 0 {
		return fmt.Errorf("config.tick_time_ms must not be negative")
	}
	if s.Config.MaxIterations < 0 {
		return fmt.Errorf("config.max_iterations must not be negative")
	}
	if s.Config.MaxStackDepth < 0 {
		return fmt.Errorf("config.max_stack_depth must not be negative")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
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
	case AssertSaid:
		if a.Program == "" || a.Text == "" {
			return fmt.Errorf("assertions[%d]: program and text are required for said", index)
		}
	case AssertEnded:
		if a.Program == "" {
			return fmt.Errorf("assertions[%d]: program is required for ended", index)
		}
	case AssertVarEquals:
		if a.Program == "" || a.Var == "" {
			return fmt.Errorf("assertions[%d]: program and var are required for var_equals", index)
		}
	case AssertBlockOrder:
		if len(a.Blocks) == 0 {
			return fmt.Errorf("assertions[%d]: blocks list is required for block_order", index)
		}
	case AssertActiveCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for active_count", index)
		}
	case AssertEventCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
