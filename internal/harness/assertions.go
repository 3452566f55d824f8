package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s\n  Expected: %s\n  Actual: %s",
		e.Type, e.Expected, e.Actual)
}

// evaluateAssertion checks one assertion against the run result.
func evaluateAssertion(r *Result, a Assertion) error {
	switch a.Type {
	case AssertSaid:
		return assertSaid(r, a)
	case AssertEnded:
		return assertEnded(r, a)
	case AssertVarEquals:
		return assertVarEquals(r, a)
	case AssertBlockOrder:
		return assertBlockOrder(r, a)
	case AssertActiveCount:
		return assertActiveCount(r, a)
	case AssertEventCount:
		return assertEventCount(r, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertSaid(r *Result, a Assertion) error {
	if r.said(a.Program, a.Text) {
		return nil
	}
	return &AssertionError{
		Type:     AssertSaid,
		Expected: fmt.Sprintf("program %q says %q", a.Program, a.Text),
		Actual:   r.sayTranscript(),
	}
}

func assertEnded(r *Result, a Assertion) error {
	endErr, ended := r.EndedErrs[a.Program]
	if !ended {
		return &AssertionError{
			Type:     AssertEnded,
			Expected: fmt.Sprintf("program %q ended", a.Program),
			Actual:   "still active",
		}
	}

	if a.Error == "" {
		if endErr != nil {
			return &AssertionError{
				Type:     AssertEnded,
				Expected: fmt.Sprintf("program %q ended cleanly", a.Program),
				Actual:   fmt.Sprintf("ended with error: %v", endErr),
			}
		}
		return nil
	}

	if endErr == nil || !strings.Contains(endErr.Error(), a.Error) {
		return &AssertionError{
			Type:     AssertEnded,
			Expected: fmt.Sprintf("program %q ended with error containing %q", a.Program, a.Error),
			Actual:   fmt.Sprintf("end error: %v", endErr),
		}
	}
	return nil
}

func assertVarEquals(r *Result, a Assertion) error {
	vars, ok := r.vars[a.Program]
	if !ok {
		return &AssertionError{
			Type:     AssertVarEquals,
			Expected: fmt.Sprintf("program %q still active with variables", a.Program),
			Actual:   "executor not active (ended executors discard their scope)",
		}
	}

	got, ok := vars[a.Var]
	if !ok {
		return &AssertionError{
			Type:     AssertVarEquals,
			Expected: fmt.Sprintf("%s.%s = %d", a.Program, a.Var, a.Value),
			Actual:   fmt.Sprintf("variable %q not set", a.Var),
		}
	}

	n, ok := got.(int64)
	if !ok || n != a.Value {
		return &AssertionError{
			Type:     AssertVarEquals,
			Expected: fmt.Sprintf("%s.%s = %d", a.Program, a.Var, a.Value),
			Actual:   fmt.Sprintf("%s.%s = %v", a.Program, a.Var, got),
		}
	}
	return nil
}

func assertBlockOrder(r *Result, a Assertion) error {
	got := r.executedBlocks()
	if len(got) == len(a.Blocks) {
		match := true
		for i := range got {
			if got[i] != a.Blocks[i] {
				match = false
				break
			}
		}
		if match {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertBlockOrder,
		Expected: strings.Join(a.Blocks, ", "),
		Actual:   strings.Join(got, ", "),
	}
}

func assertActiveCount(r *Result, a Assertion) error {
	if r.ActiveCount == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertActiveCount,
		Expected: fmt.Sprintf("%d active executor(s)", a.Count),
		Actual:   fmt.Sprintf("%d active executor(s)", r.ActiveCount),
	}
}

func assertEventCount(r *Result, a Assertion) error {
	count := 0
	for _, ev := range r.Snapshot.Events {
		if string(ev.Kind) == a.Kind {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertEventCount,
		Expected: fmt.Sprintf("%d %q event(s)", a.Count, a.Kind),
		Actual:   fmt.Sprintf("%d %q event(s)", count, a.Kind),
	}
}
