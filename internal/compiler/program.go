// Package compiler parses CUE program definitions into script
// programs. Programs are authored as CUE structs so definitions get
// schema checking, defaults, and composition for free before any
// block reaches the scheduler.
package compiler

import (
	"fmt"
	"time"

	"cuelang.org/go/cue"

	"github.com/roach88/stagehand/internal/script"
)

// CompileProgram parses a CUE value into a script Program.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the program struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`program: greet: { blocks: [...] }`)
//	p, err := CompileProgram("greet", v.LookupPath(cue.ParsePath("program.greet")))
func CompileProgram(name string, v cue.Value) (*script.Program, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	p := &script.Program{Name: name}

	// Parse loop flag (optional, defaults to false)
	loopVal := v.LookupPath(cue.ParsePath("loop"))
	if loopVal.Exists() {
		loop, err := loopVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		p.Loop = loop
	}

	// Parse blocks (required, at least one)
	blocksVal := v.LookupPath(cue.ParsePath("blocks"))
	if !blocksVal.Exists() {
		return nil, &CompileError{
			Field:   "blocks",
			Message: "blocks list is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := blocksVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		block, err := compileBlock(iter.Value())
		if err != nil {
			return nil, err
		}
		p.Blocks = append(p.Blocks, block)
	}

	if len(p.Blocks) == 0 {
		return nil, &CompileError{
			Field:   "blocks",
			Message: "at least one block is required",
			Pos:     blocksVal.Pos(),
		}
	}

	if err := p.Validate(); err != nil {
		return nil, &CompileError{
			Field:   "program",
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}

	return p, nil
}

// CompilePrograms parses every entry under the top-level "program"
// struct, in declaration order.
func CompilePrograms(root cue.Value) ([]*script.Program, error) {
	if err := root.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	progVal := root.LookupPath(cue.ParsePath("program"))
	if !progVal.Exists() {
		return nil, &CompileError{
			Field:   "program",
			Message: "top-level program struct is required",
			Pos:     root.Pos(),
		}
	}

	iter, err := progVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var programs []*script.Program
	for iter.Next() {
		p, err := CompileProgram(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}

	if len(programs) == 0 {
		return nil, &CompileError{
			Field:   "program",
			Message: "at least one program is required",
			Pos:     progVal.Pos(),
		}
	}

	return programs, nil
}

// CheckCallTargets verifies every call block names a compiled program.
// Run after CompilePrograms, once the full set of names is known; the
// interpreter would otherwise only surface an unknown target at step
// time.
func CheckCallTargets(programs []*script.Program) error {
	known := make(map[string]bool, len(programs))
	for _, p := range programs {
		known[p.Name] = true
	}
	for _, p := range programs {
		for i, b := range p.Blocks {
			if b.Op == script.OpCall && !known[b.Call] {
				return &CompileError{
					Field:   fmt.Sprintf("program.%s.blocks[%d]", p.Name, i),
					Message: fmt.Sprintf("call target %q is not defined", b.Call),
				}
			}
		}
	}
	return nil
}

// compileBlock parses a single block struct.
func compileBlock(v cue.Value) (script.Block, error) {
	var b script.Block

	opVal := v.LookupPath(cue.ParsePath("op"))
	if !opVal.Exists() {
		return b, &CompileError{
			Field:   "op",
			Message: "block op is required",
			Pos:     v.Pos(),
		}
	}
	op, err := opVal.String()
	if err != nil {
		return b, formatCUEError(err)
	}
	b.Op = script.Op(op)

	if s, err := stringField(v, "target"); err != nil {
		return b, err
	} else {
		b.Target = s
	}
	if s, err := stringField(v, "text"); err != nil {
		return b, err
	} else {
		b.Text = s
	}
	if s, err := stringField(v, "call"); err != nil {
		return b, err
	} else {
		b.Call = s
	}

	if n, ok, err := intField(v, "value"); err != nil {
		return b, err
	} else if ok {
		b.Value = n
	}

	// Wait durations are authored in milliseconds to keep the CUE
	// surface integer-only.
	if ms, ok, err := intField(v, "wait_ms"); err != nil {
		return b, err
	} else if ok {
		if ms <= 0 {
			return b, &CompileError{
				Field:   "wait_ms",
				Message: fmt.Sprintf("must be positive, got %d", ms),
				Pos:     v.Pos(),
			}
		}
		b.Wait = time.Duration(ms) * time.Millisecond
	}

	return b, nil
}

// stringField reads an optional string field, returning "" when absent.
func stringField(v cue.Value, name string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// intField reads an optional integer field. Floats are rejected so
// recorded traces stay bit-identical across platforms.
func intField(v cue.Value, name string) (int64, bool, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return 0, false, nil
	}
	switch fv.IncompleteKind() {
	case cue.IntKind:
	case cue.FloatKind, cue.NumberKind:
		return 0, false, &CompileError{
			Field:   name,
			Message: "float values are forbidden - use int instead",
			Pos:     fv.Pos(),
		}
	default:
		return 0, false, &CompileError{
			Field:   name,
			Message: fmt.Sprintf("must be an int, got %v", fv.IncompleteKind()),
			Pos:     fv.Pos(),
		}
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, false, formatCUEError(err)
	}
	return n, true, nil
}
