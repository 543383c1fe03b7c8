package result

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePassedAllGreen(t *testing.T) {
	r := &RunResult{Checks: []CheckResult{{Passed: true}, {Passed: true}}}
	r.ComputePassed()
	assert.True(t, r.Passed)
	assert.Equal(t, 0, r.ExitCode())
}

func TestComputePassedOneRed(t *testing.T) {
	r := &RunResult{Checks: []CheckResult{{Passed: true}, {Passed: false}}}
	r.ComputePassed()
	assert.False(t, r.Passed)
	assert.Equal(t, 1, r.ExitCode())
}

func TestComputePassedNoChecks(t *testing.T) {
	r := &RunResult{}
	r.ComputePassed()
	assert.True(t, r.Passed)
}

func TestReportWritesPrettyJSON(t *testing.T) {
	r := &RunResult{Checks: []CheckResult{{Name: "home", Passed: true, DurationMs: 12}}, DurationMs: 12}
	r.ComputePassed()

	var buf bytes.Buffer
	code, err := Report(&buf, r)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	var decoded RunResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, *r, decoded)
	assert.Contains(t, buf.String(), "\n  ")
}
