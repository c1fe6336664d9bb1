package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inlineB = `$timescale 1ns $end
$scope module b $end
$var wire 1 ! rst_n $end
$var wire 1 " clk $end
$upscope $end
$enddefinitions $end
#0
0!
1"
#3
1!
`

func intPtr(v int) *int { return &v }

func TestRun_TwoInlineInputs(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline_pair",
		Description: "a ends reset at 8, b at 3",
		Reset:       "rst_n",
		Inputs: []Input{
			{Name: "a", VCD: inlineA},
			{Name: "b", VCD: inlineB},
		},
		Assertions: []Assertion{
			{Type: AssertResetEnd, Input: "a", Tick: 8},
			{Type: AssertResetEnd, Input: "b", Tick: 3},
			{Type: AssertSkew, Step: 0, Skew: 5},
			{Type: AssertSignalNames, Names: []string{"a.rst_n", "b.rst_n", "b.clk"}},
			{Type: AssertEventAt, Tick: 5, Signal: "b.clk", Value: intPtr(1)},
			{Type: AssertEventAt, Tick: 8, Signal: "b.rst_n", Value: intPtr(1)},
			{Type: AssertInitialFrame},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.MergeError)
	assert.NotEmpty(t, result.Digest)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, "a", result.Steps[0].Receiver)
	assert.True(t, strings.HasPrefix(result.Output, "$timescale 1ns $end\n$scope module top $end\n"))
}

func TestRun_FailingAssertionsAreReported(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong",
		Description: "every assertion is wrong",
		Reset:       "rst_n",
		Inputs: []Input{
			{Name: "a", VCD: inlineA},
			{Name: "b", VCD: inlineB},
		},
		Assertions: []Assertion{
			{Type: AssertResetEnd, Input: "a", Tick: 7},
			{Type: AssertSkew, Step: 3, Skew: 5},
			{Type: AssertSignalCount, Count: 2},
			{Type: AssertEventAt, Tick: 6, Signal: "b.clk", Value: intPtr(1)},
			{Type: AssertRenamed, From: "clk", To: "clk_2"},
			{Type: AssertMergeError, Contains: "timescale"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 6)
}

func TestRun_MergeErrorWithoutExpectationFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "unexpected",
		Description: "the reset does not exist",
		Reset:       "nope",
		Inputs: []Input{
			{Name: "a", VCD: inlineA},
			{Name: "b", VCD: inlineB},
		},
		Assertions: []Assertion{{Type: AssertInitialFrame}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.MergeError, "nope")
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[1], "merge failed")
}

func TestRun_MissingFileIsAnError(t *testing.T) {
	scenario := &Scenario{
		Name:        "missing",
		Description: "input vanished after loading",
		Reset:       "rst_n",
		Inputs: []Input{
			{Name: "a", VCD: inlineA},
			{Name: "b", Path: filepath.Join(t.TempDir(), "gone.vcd")},
		},
		Assertions: []Assertion{{Type: AssertInitialFrame}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
}

func TestRun_TestdataScenarios(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			scenario, err := LoadScenario(file)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}
