package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// goldenScenarios are the scenario files pinned by golden traces.
var goldenScenarios = []string{
	"intro-then-tally",
	"spin-cap",
	"wait-parks",
}

func TestScenarioGoldenTraces(t *testing.T) {
	for _, name := range goldenScenarios {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join("testdata", "scenarios", name+".yaml")
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			require.Equal(t, name, scenario.Name, "scenario name must match its file name")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Passed, "assertion failures: %v", result.Errors)
		})
	}
}
