package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vcdsync/internal/testutil"
)

// vcdA releases its reset at 50, vcdB at 30.
const vcdA = `$timescale 1ns $end
$scope module a $end
$var wire 1 ! rst_n $end
$var wire 1 " clk $end
$upscope $end
$enddefinitions $end
#0
0!
1"
#50
1!
#60
0"
`

const vcdB = `$timescale 1ns $end
$scope module b $end
$var wire 1 ! rst_n $end
$var wire 1 " clk $end
$var wire 1 # y $end
$upscope $end
$enddefinitions $end
#0
0!
1#
#30
1!
#35
1"
0#
`

var vcdPicoseconds = testutil.NewVCD("1ps").
	Wire("!", "rst_n").
	At(0, "0!").
	At(10, "1!").
	String()

// writeVCD writes content to name inside dir and returns the path.
func writeVCD(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs the root command with args and returns stdout, stderr and
// the command error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(append([]string{"--color", "off"}, args...))
	err := cmd.Execute()
	return buf.String(), errBuf.String(), err
}

// newTestRoot returns a root command wired to buffers.
func newTestRoot(out, errOut *bytes.Buffer) *cobra.Command {
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd
}
