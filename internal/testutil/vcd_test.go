package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vcdsync/internal/trace"
)

func TestVCDText(t *testing.T) {
	got := NewVCD("10ps").
		Scope("tb").
		Wire("!", "rst_n").
		At(0, "0!").
		At(40, "1!").
		String()

	want := `$timescale 10ps $end
$scope module tb $end
$var wire 1 ! rst_n $end
$upscope $end
$enddefinitions $end
#0
0!
#40
1!
`
	assert.Equal(t, want, got)
}

func TestVCDWithoutTimescale(t *testing.T) {
	got := NewVCD("").Wire("!", "rst_n").String()
	assert.Equal(t, "$var wire 1 ! rst_n $end\n$enddefinitions $end\n", got)
}

func TestVCDLoads(t *testing.T) {
	src := NewVCD("1ns").
		Scope("tb").
		Wire("!", "clk").
		Scope("dut").
		Wire(`"`, "rst_n").
		Upscope().
		Upscope().
		At(0, `0"`, "0!").
		At(30, `1"`).
		At(35, "1!").
		String()

	loaded, err := (&trace.Loader{Reset: "rst_n"}).Load(strings.NewReader(src), "built.vcd")
	require.NoError(t, err)
	assert.Equal(t, []string{"tb.clk", "tb.dut.rst_n"}, loaded.Trace.Names())
	assert.Equal(t, uint64(30), loaded.Trace.ResetEnd)
	assert.Equal(t, 4, loaded.Trace.Events.Count())
}
