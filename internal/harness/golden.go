package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes a scenario and compares its recorded trace
// against a golden file. The golden file is stored in
// testdata/golden/{scenario.Name}.golden as canonical JSON.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Golden files pin the exact trace a scenario produces: block order,
// event sequence numbers, and end events. They catch scheduling
// regressions that coarser assertions miss.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	traceJSON, err := result.Snapshot.CanonicalJSON()
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return result, nil
}
