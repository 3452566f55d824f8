package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const finitePrograms = `
package programs

program: intro: {
	blocks: [
		{ op: "say", text: "lights up" },
		{ op: "say", text: "curtain" },
	]
}

program: tally: {
	blocks: [
		{ op: "set", target: "n", value: 40 },
		{ op: "add", target: "n", value: 2 },
		{ op: "stop" },
	]
}
`

func TestRunFinitePrograms(t *testing.T) {
	dir := writePrograms(t, finitePrograms)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{dir, "--turbo"})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "[intro] lights up")
	assert.Contains(t, output, "[intro] curtain")
	assert.Contains(t, output, "0 executor(s) still active")
}

func TestRunTickLimit(t *testing.T) {
	dir := writePrograms(t, `
package programs

program: spin: {
	loop: true
	blocks: [
		{ op: "add", target: "n", value: 1 },
	]
}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{dir, "--turbo", "--max-iterations", "10", "--ticks", "3"})

	err := cmd.Execute()
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "Ran 3 tick(s)")
	assert.Contains(t, buf.String(), "1 executor(s) still active")
}

func TestRunPersistsTrace(t *testing.T) {
	dir := writePrograms(t, finitePrograms)
	dbPath := filepath.Join(t.TempDir(), "trace.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{dir, "--turbo", "--trace-db", dbPath})

	err := cmd.Execute()
	require.NoError(t, err)

	// Both executors end, so at least the two end events are recorded
	traceBuf := &bytes.Buffer{}
	traceCmd := NewTraceCommand(&RootOptions{Format: "text"})
	traceCmd.SetOut(traceBuf)
	traceCmd.SetArgs([]string{"--db", dbPath, "--kind", "end"})

	require.NoError(t, traceCmd.Execute())
	assert.Contains(t, traceBuf.String(), "End Events:   2")
}

func TestRunMissingDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"/nonexistent/programs"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunInvalidConfig(t *testing.T) {
	dir := writePrograms(t, finitePrograms)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{dir, "--tick-time", "0s"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "configuration")
}
