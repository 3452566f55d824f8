package script

import (
	"fmt"
	"log/slog"

	"github.com/roach88/stagehand/internal/sched"
)

// SayFunc receives say-block output.
type SayFunc func(program, text string)

// Interpreter holds a registry of programs and produces step functions
// for the scheduler. Call blocks resolve against the registry, so
// programs that call each other must be registered on the same
// interpreter.
//
// Must be used from the host's frame goroutine, like the scheduler.
type Interpreter struct {
	programs map[string]*Program
	clock    sched.Clock
	logger   *slog.Logger
	say      SayFunc
}

// InterpreterOption configures an Interpreter.
type InterpreterOption func(*Interpreter)

// WithClock injects the clock used to compute wait deadlines.
func WithClock(c sched.Clock) InterpreterOption {
	return func(in *Interpreter) { in.clock = c }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) InterpreterOption {
	return func(in *Interpreter) { in.logger = l }
}

// WithSayFunc overrides the say-block sink. The default logs at Info.
func WithSayFunc(fn SayFunc) InterpreterOption {
	return func(in *Interpreter) { in.say = fn }
}

// NewInterpreter creates an interpreter with an empty program registry.
func NewInterpreter(opts ...InterpreterOption) *Interpreter {
	in := &Interpreter{
		programs: make(map[string]*Program),
		clock:    sched.SystemClock{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.say == nil {
		logger := in.logger
		in.say = func(program, text string) {
			logger.Info("say", "program", program, "text", text)
		}
	}
	return in
}

// Register validates a program and adds it to the registry. Blocks are
// copied so later mutation of the argument cannot change registered
// scripts; empty block IDs are filled with "name/index".
// Duplicate names are rejected.
func (in *Interpreter) Register(p Program) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if _, exists := in.programs[p.Name]; exists {
		return fmt.Errorf("duplicate program name: %s", p.Name)
	}

	blocks := make([]Block, len(p.Blocks))
	copy(blocks, p.Blocks)
	for i := range blocks {
		if blocks[i].ID == "" {
			blocks[i].ID = sched.BlockID(fmt.Sprintf("%s/%d", p.Name, i))
		}
	}
	p.Blocks = blocks
	in.programs[p.Name] = &p
	return nil
}

// Programs returns the registered program names.
// Used for testing and introspection.
func (in *Interpreter) Programs() []string {
	names := make([]string, 0, len(in.programs))
	for name := range in.programs {
		names = append(names, name)
	}
	return names
}

// StepFunc returns the scheduler step function for a registered program.
func (in *Interpreter) StepFunc(name string) (sched.StepFunc, error) {
	p, ok := in.programs[name]
	if !ok {
		return nil, fmt.Errorf("program %s not registered", name)
	}
	return func(sc *sched.Scope) (sched.StepResult, error) {
		return in.step(p, sc)
	}, nil
}

// step advances a program by exactly one block. Loop programs wrap to
// the first block and report Looped so the scheduler re-enters them in
// the loop phase; others end once the cursor passes the last block.
func (in *Interpreter) step(p *Program, sc *sched.Scope) (sched.StepResult, error) {
	res := sched.StepResult{Looped: p.Loop}

	if len(p.Blocks) == 0 {
		res.Ended = true
		return res, nil
	}
	if sc.Cursor >= len(p.Blocks) {
		// A continuation suspended the executor on the last block.
		if !p.Loop {
			res.Ended = true
			return res, nil
		}
		sc.Cursor = 0
	}

	b := p.Blocks[sc.Cursor]
	consumed := []sched.BlockID{b.ID}

	switch b.Op {
	case OpStop:
		sc.Cursor++
		res.Consumed = consumed
		res.Ended = true
		return res, nil

	case OpWait:
		res.Continuation = &sched.Continuation{ReadyAt: in.clock.Now().Add(b.Wait)}

	case OpCall:
		if err := in.callProgram(sc, b.Call, &consumed); err != nil {
			res.Consumed = consumed
			return res, err
		}

	default:
		if err := in.evalSimple(p.Name, b, sc); err != nil {
			res.Consumed = consumed
			return res, err
		}
	}

	sc.Cursor++
	if sc.Cursor >= len(p.Blocks) {
		if p.Loop {
			sc.Cursor = 0
		} else if res.Continuation == nil {
			res.Ended = true
		}
	}
	res.Consumed = consumed
	return res, nil
}

// callProgram evaluates a callee program synchronously within the
// current step, consuming its blocks. Depth is tracked by the
// executor's call-stack guard; self-recursive scripts trip the guard
// when a finite limit is configured.
func (in *Interpreter) callProgram(sc *sched.Scope, name string, consumed *[]sched.BlockID) error {
	callee, ok := in.programs[name]
	if !ok {
		return fmt.Errorf("call target %s not registered", name)
	}

	if err := sc.Guard.Enter(); err != nil {
		return err
	}
	defer sc.Guard.Leave()

	for _, b := range callee.Blocks {
		*consumed = append(*consumed, b.ID)
		switch b.Op {
		case OpStop:
			// Early return from the subroutine.
			return nil
		case OpWait:
			return fmt.Errorf("program %s: wait is not allowed inside a called subroutine", name)
		case OpCall:
			if err := in.callProgram(sc, b.Call, consumed); err != nil {
				return err
			}
		default:
			if err := in.evalSimple(name, b, sc); err != nil {
				return err
			}
		}
	}
	return nil
}

// evalSimple executes a non-suspending block against the scope.
func (in *Interpreter) evalSimple(program string, b Block, sc *sched.Scope) error {
	switch b.Op {
	case OpSet:
		sc.Vars[b.Target] = b.Value
	case OpAdd:
		cur, _ := sc.Vars[b.Target].(int64)
		sc.Vars[b.Target] = cur + b.Value
	case OpSay:
		in.say(program, b.Text)
	default:
		return fmt.Errorf("unknown op %q", b.Op)
	}
	return nil
}
