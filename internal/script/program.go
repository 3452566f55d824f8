// Package script implements the block-interpreter collaborator that
// feeds the scheduler. A Program is an ordered list of blocks; the
// Interpreter turns a registered program into a sched.StepFunc that
// advances one block per step, suspends on wait blocks via
// continuations, and routes nested subroutine calls through the
// executor's call-stack guard.
package script

import (
	"fmt"
	"time"

	"github.com/roach88/stagehand/internal/sched"
)

// Op is a block opcode.
type Op string

const (
	// OpSet assigns Value to the scope variable Target.
	OpSet Op = "set"
	// OpAdd adds Value to the scope variable Target (missing vars read as 0).
	OpAdd Op = "add"
	// OpSay emits Text through the interpreter's say hook.
	OpSay Op = "say"
	// OpWait suspends the executor for the Wait duration.
	OpWait Op = "wait"
	// OpStop ends the script (returns from a subroutine when called).
	OpStop Op = "stop"
	// OpCall evaluates the named program inline, guarded against
	// runaway recursion.
	OpCall Op = "call"
)

// Block is one instruction of a program. Which fields are meaningful
// depends on Op; Validate enforces the shape.
type Block struct {
	// ID identifies the block in watch events and traces. Filled with
	// "program/index" at registration when empty.
	ID sched.BlockID

	Op     Op
	Target string        // set, add
	Value  int64         // set, add
	Text   string        // say
	Wait   time.Duration // wait
	Call   string        // call
}

// Program is a named block script. Loop marks a repeating construct
// ("forever"): its executor wraps to the first block instead of ending,
// and is eligible for loop-phase re-entry within one tick.
type Program struct {
	Name   string
	Loop   bool
	Blocks []Block
}

// Validate checks the program shape: known opcodes and the per-opcode
// required fields.
func (p *Program) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("program name is required")
	}
	for i, b := range p.Blocks {
		if err := b.validate(); err != nil {
			return fmt.Errorf("program %s: block %d: %w", p.Name, i, err)
		}
	}
	return nil
}

func (b Block) validate() error {
	switch b.Op {
	case OpSet, OpAdd:
		if b.Target == "" {
			return fmt.Errorf("%s requires a target variable", b.Op)
		}
	case OpSay:
		if b.Text == "" {
			return fmt.Errorf("say requires text")
		}
	case OpWait:
		if b.Wait <= 0 {
			return fmt.Errorf("wait requires a positive duration")
		}
	case OpStop:
		// No operands.
	case OpCall:
		if b.Call == "" {
			return fmt.Errorf("call requires a program name")
		}
	default:
		return fmt.Errorf("unknown op %q", b.Op)
	}
	return nil
}
