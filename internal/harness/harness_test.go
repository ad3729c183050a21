package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return scenario
}

func TestRun_Scenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v\ntrace: %+v", result.Errors, result.Trace)
		})
	}
}

func TestRun_JobPostingConfirmedGolden(t *testing.T) {
	result, err := RunWithGolden(t, loadScenario(t, "job_posting_confirmed"))
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_TimeoutTrace(t *testing.T) {
	result, err := Run(loadScenario(t, "timeout_abandons"))
	require.NoError(t, err)
	require.True(t, result.Pass, result.Errors)

	var timedOut *TraceEvent
	for i := range result.Trace {
		if result.Trace[i].Type == "operationTimedOut" {
			timedOut = &result.Trace[i]
		}
	}
	require.NotNil(t, timedOut)
	assert.Equal(t, "30s", timedOut.At)
	assert.Equal(t, "timeout", timedOut.Reason)
	assert.Contains(t, timedOut.Message, "not confirmed in time")
}

func TestRun_FailingAssertionsReported(t *testing.T) {
	scenario := loadScenario(t, "failed_transaction")
	scenario.Assertions = []Assertion{
		{Type: AssertEventCount, Event: "operationConfirmed", Count: 1},
		{Type: AssertCommitted, Kind: "job", Ref: "tx-job-3"},
		{Type: AssertOracleCalls, Ref: "tx-job-3", Count: 7},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 3)
}

func TestRun_RecordIDsAreSequential(t *testing.T) {
	result, err := Run(loadScenario(t, "project_funding"))
	require.NoError(t, err)
	require.True(t, result.Pass, result.Errors)

	var ids []string
	for _, ev := range result.Trace {
		if ev.RecordID != "" {
			ids = append(ids, ev.RecordID)
		}
	}
	assert.Equal(t, []string{"rec-1", "rec-2"}, ids)
}
