package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vcdsync/internal/ir"
	"github.com/roach88/vcdsync/internal/testutil"
	"github.com/roach88/vcdsync/internal/trace"
)

func TestMergeTwoTraces(t *testing.T) {
	dir := t.TempDir()
	a := writeVCD(t, dir, "a.vcd", vcdA)
	b := writeVCD(t, dir, "b.vcd", vcdB)
	out := filepath.Join(dir, "merged.vcd")

	stdout, _, err := execute(t, "merge", a, b, "--reset", "rst_n", "--output", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Merged 2 trace(s)")
	assert.Contains(t, stdout, "skew 20")
	assert.Contains(t, stdout, "digest: ")

	loaded, err := (&trace.Loader{Reset: "top.rst_n"}).LoadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"top.rst_n", "top.clk", "top.rst_n", "top.clk", "top.y"}, loaded.Trace.Names())
	assert.Equal(t, uint64(50), loaded.Trace.ResetEnd)

	// b's tick 0 change of y lands at the skew
	changes, ok := loaded.Trace.Events.At(20)
	require.True(t, ok)
	assert.Contains(t, changes, ir.Change{ID: 4, Value: true})
}

func TestMergeJSON(t *testing.T) {
	dir := t.TempDir()
	a := writeVCD(t, dir, "a.vcd", vcdA)
	b := writeVCD(t, dir, "b.vcd", vcdB)
	out := filepath.Join(dir, "merged.vcd")

	// order does not decide the receiver
	stdout, _, err := execute(t, "--format", "json", "merge", b, a, "--reset", "rst_n", "-o", out)
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   MergeResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, out, resp.Data.Output)
	assert.Equal(t, "top", resp.Data.Module)
	assert.Equal(t, map[string]uint64{a: 50, b: 30}, resp.Data.ResetEnds)
	require.Len(t, resp.Data.Steps, 1)
	assert.Equal(t, a, resp.Data.Steps[0].Receiver)
	assert.Equal(t, b, resp.Data.Steps[0].Donor)
	assert.Equal(t, uint64(20), resp.Data.Steps[0].Skew)
	assert.Equal(t, uint32(2), resp.Data.Steps[0].IDOffset)
	assert.Equal(t, 5, resp.Data.Signals)
	assert.NotEmpty(t, resp.Data.Digest)
	assert.Empty(t, resp.Data.TraceID)
}

func TestMergeModuleName(t *testing.T) {
	dir := t.TempDir()
	a := writeVCD(t, dir, "a.vcd", vcdA)
	b := writeVCD(t, dir, "b.vcd", vcdB)
	out := filepath.Join(dir, "merged.vcd")

	_, _, err := execute(t, "merge", a, b, "--reset", "rst_n", "--output", out, "--module", "soc")
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "$scope module soc $end")
}

func TestMergeFatalErrors(t *testing.T) {
	dir := t.TempDir()
	a := writeVCD(t, dir, "a.vcd", vcdA)
	b := writeVCD(t, dir, "b.vcd", vcdB)
	ps := writeVCD(t, dir, "ps.vcd", vcdPicoseconds)
	noTimescale := writeVCD(t, dir, "nots.vcd", testutil.NewVCD("").Wire("!", "rst_n").String())

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"timescale mismatch", []string{a, ps, "--reset", "rst_n"}, ErrCodeTimescaleMismatch},
		{"reset not found", []string{a, b, "--reset", "tb.nope"}, ErrCodeResetNotFound},
		{"missing timescale", []string{a, noTimescale, "--reset", "rst_n"}, ErrCodeNoTimescale},
		{"missing input", []string{a, filepath.Join(dir, "gone.vcd"), "--reset", "rst_n"}, ErrCodeNotFound},
		{"single input", []string{a, "--reset", "rst_n"}, ErrCodeInvalidJob},
		{"no reset", []string{a, b}, ErrCodeInvalidJob},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "merged.vcd")
			args := append([]string{"merge", "--output", out}, tt.args...)

			stdout, _, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.code)
			assert.Contains(t, stdout, "["+tt.code+"]")
			assert.NoFileExists(t, out)
		})
	}
}

func TestMergeMissingOutput(t *testing.T) {
	dir := t.TempDir()
	a := writeVCD(t, dir, "a.vcd", vcdA)
	b := writeVCD(t, dir, "b.vcd", vcdB)

	_, _, err := execute(t, "merge", a, b, "--reset", "rst_n")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeInvalidJob)
}

func TestMergeUnwritableOutput(t *testing.T) {
	dir := t.TempDir()
	a := writeVCD(t, dir, "a.vcd", vcdA)
	b := writeVCD(t, dir, "b.vcd", vcdB)

	_, _, err := execute(t, "merge", a, b, "--reset", "rst_n", "--output", filepath.Join(dir, "no", "such", "dir", "out.vcd"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to write output")
}

func TestMergeFromJobFile(t *testing.T) {
	dir := t.TempDir()
	writeVCD(t, dir, "a.vcd", vcdA)
	writeVCD(t, dir, "b.vcd", vcdB)
	job := filepath.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(job, []byte(`inputs: [a.vcd, b.vcd]
reset: rst_n
output: merged.vcd
module: bench
`), 0644))

	_, _, err := execute(t, "merge", "--config", job)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "merged.vcd"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "$scope module bench $end")
}

func TestMergeFlagsOverrideJobFile(t *testing.T) {
	dir := t.TempDir()
	writeVCD(t, dir, "a.vcd", vcdA)
	writeVCD(t, dir, "b.vcd", vcdB)
	job := filepath.Join(dir, "job.cue")
	require.NoError(t, os.WriteFile(job, []byte(`inputs: ["a.vcd", "b.vcd"]
reset: "nope"
output: "from-job.vcd"
`), 0644))
	out := filepath.Join(dir, "from-flag.vcd")

	_, _, err := execute(t, "merge", "--config", job, "--reset", "rst_n", "--output", out)
	require.NoError(t, err)
	assert.FileExists(t, out)
	assert.NoFileExists(t, filepath.Join(dir, "from-job.vcd"))
}

func TestMergeInvalidJobFile(t *testing.T) {
	dir := t.TempDir()
	job := filepath.Join(dir, "job.toml")
	require.NoError(t, os.WriteFile(job, []byte("inputs = [\"a.vcd\", \"b.vcd\"]\nbogus = 1\n"), 0644))

	stdout, _, err := execute(t, "merge", "--config", job)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "["+ErrCodeInvalidJob+"]")
}

func TestMergeArchive(t *testing.T) {
	dir := t.TempDir()
	a := writeVCD(t, dir, "a.vcd", vcdA)
	b := writeVCD(t, dir, "b.vcd", vcdB)
	out := filepath.Join(dir, "merged.vcd")
	db := filepath.Join(dir, "runs.db")

	stdout, _, err := execute(t, "--format", "json", "merge", a, b, "--reset", "rst_n", "-o", out, "--db", db, "--label", "nightly")
	require.NoError(t, err)

	var resp struct {
		Data MergeResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.NotEmpty(t, resp.Data.TraceID)

	listing, _, err := execute(t, "replay", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, listing, resp.Data.TraceID)
	assert.Contains(t, listing, "nightly")
	assert.Contains(t, listing, "1 trace(s)")
}

func TestMergeThreeWayCollisions(t *testing.T) {
	dir := t.TempDir()
	core := func(releaseAt uint64) string {
		return testutil.NewVCD("1ns").
			Scope("tb").
			Wire("!", "clk").
			Wire(`"`, "rst_n").
			At(0, "0!", `0"`).
			At(releaseAt, `1"`).
			String()
	}
	in1 := writeVCD(t, dir, "c1.vcd", core(10))
	in2 := writeVCD(t, dir, "c2.vcd", core(30))
	in3 := writeVCD(t, dir, "c3.vcd", core(20))
	out := filepath.Join(dir, "merged.vcd")

	stdout, _, err := execute(t, "--format", "json", "merge", in1, in2, in3, "--reset", "tb.rst_n", "-o", out)
	require.NoError(t, err)

	var resp struct {
		Data MergeResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data.Steps, 2)
	assert.Equal(t, uint64(20), resp.Data.Steps[0].Skew)
	assert.Equal(t, uint64(10), resp.Data.Steps[1].Skew)
	assert.Equal(t, 6, resp.Data.Signals)

	loaded, err := (&trace.Loader{Reset: "top.rst_n"}).LoadFile(out)
	require.NoError(t, err)
	assert.Len(t, loaded.Trace.Signals, 6)
	// every input releases its reset at the receiver's tick
	assert.Equal(t, uint64(30), loaded.Trace.ResetEnd)
	changes, ok := loaded.Trace.Events.At(30)
	require.True(t, ok)
	assert.ElementsMatch(t, []ir.Change{{ID: 1, Value: true}, {ID: 3, Value: true}, {ID: 5, Value: true}}, changes)
}
