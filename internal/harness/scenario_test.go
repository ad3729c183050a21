package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/paywatch/internal/payload"
)

const validScenario = `
name: test_scenario
description: "Test scenario for validation"
oracle:
  tx-1: [pending, confirmed]
steps:
  - submit:
      owner: addr_test1alice
      ref: tx-1
      kind: extend
      payload:
        job_id: job-1
        days: 15
  - advance: 10s
assertions:
  - type: pending_count
    count: 1
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validScenario), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, []string{"pending", "confirmed"}, scenario.Oracle["tx-1"])
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, "10s", scenario.Steps[1].Advance)

	p, err := scenario.Steps[0].Submit.decodePayload()
	require.NoError(t, err)
	assert.Equal(t, payload.JobExtension{JobID: "job-1", Days: 15}, p)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown field",
			content: validScenario + "flow_token: abc\n",
			wantErr: "failed to parse YAML",
		},
		{
			name: "missing name",
			content: `
description: "x"
steps: [{cycle: true}]
assertions: [{type: pending_count}]
`,
			wantErr: "name is required",
		},
		{
			name: "two actions in one step",
			content: `
name: n
description: "x"
steps: [{cycle: true, advance: 10s}]
assertions: [{type: pending_count}]
`,
			wantErr: "exactly one of",
		},
		{
			name: "negative advance",
			content: `
name: n
description: "x"
steps: [{advance: -5s}]
assertions: [{type: pending_count}]
`,
			wantErr: "must be positive",
		},
		{
			name: "unknown oracle answer",
			content: `
name: n
description: "x"
oracle: {tx-1: [maybe]}
steps: [{cycle: true}]
assertions: [{type: pending_count}]
`,
			wantErr: `unknown answer "maybe"`,
		},
		{
			name: "unknown kind",
			content: `
name: n
description: "x"
steps:
  - submit: {owner: o, ref: r, kind: gift, payload: {a: 1}}
assertions: [{type: pending_count}]
`,
			wantErr: "steps[0].submit",
		},
		{
			name: "unknown assertion",
			content: `
name: n
description: "x"
steps: [{cycle: true}]
assertions: [{type: trace_contains}]
`,
			wantErr: "unknown assertion type",
		},
		{
			name: "committed without ref",
			content: `
name: n
description: "x"
steps: [{cycle: true}]
assertions: [{type: committed, kind: job}]
`,
			wantErr: "ref is required",
		},
		{
			name: "bad timeout",
			content: `
name: n
description: "x"
timeout: soon
steps: [{cycle: true}]
assertions: [{type: pending_count}]
`,
			wantErr: "timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSubmission_PayloadUnknownFieldRejected(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: n
description: "x"
steps:
  - submit:
      owner: o
      ref: r
      kind: extend
      payload: {job_id: j, days: 3, weeks: 1}
assertions: [{type: pending_count}]
`))
	require.NoError(t, err)

	_, err = scenario.Steps[0].Submit.decodePayload()
	require.Error(t, err)
}
