// Package testutil builds VCD fixtures for tests.
package testutil

import (
	"fmt"
	"strings"
)

// VCD accumulates the text of a value change dump.
//
// Declarations must come before the first At call; the builder closes any
// open scopes and emits $enddefinitions on the first timestamp.
type VCD struct {
	b      strings.Builder
	open   int
	inBody bool
}

// NewVCD starts a dump with the given timescale, e.g. "1ns". An empty
// timescale omits the $timescale section.
func NewVCD(timescale string) *VCD {
	v := &VCD{}
	if timescale != "" {
		fmt.Fprintf(&v.b, "$timescale %s $end\n", timescale)
	}
	return v
}

// Scope opens a module scope.
func (v *VCD) Scope(name string) *VCD {
	fmt.Fprintf(&v.b, "$scope module %s $end\n", name)
	v.open++
	return v
}

// Upscope closes the innermost scope.
func (v *VCD) Upscope() *VCD {
	v.b.WriteString("$upscope $end\n")
	v.open--
	return v
}

// Wire declares a 1-bit wire with the identifier code.
func (v *VCD) Wire(code, name string) *VCD {
	fmt.Fprintf(&v.b, "$var wire 1 %s %s $end\n", code, name)
	return v
}

// At emits a timestamp followed by changes written as value and code,
// e.g. "1!" or "0#".
func (v *VCD) At(tick uint64, changes ...string) *VCD {
	v.endDefinitions()
	fmt.Fprintf(&v.b, "#%d\n", tick)
	for _, c := range changes {
		v.b.WriteString(c)
		v.b.WriteByte('\n')
	}
	return v
}

// String returns the dump text.
func (v *VCD) String() string {
	v.endDefinitions()
	return v.b.String()
}

func (v *VCD) endDefinitions() {
	if v.inBody {
		return
	}
	for ; v.open > 0; v.open-- {
		v.b.WriteString("$upscope $end\n")
	}
	v.b.WriteString("$enddefinitions $end\n")
	v.inBody = true
}
