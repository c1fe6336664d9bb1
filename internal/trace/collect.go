package trace

import (
	"github.com/roach88/vcdsync/internal/ir"
	"github.com/roach88/vcdsync/internal/vcd"
)

// CollectSignals flattens a declaration tree into signals, depth-first in
// declaration order. Names are dot-joined scope paths; the root contributes
// no segment. The walk uses an explicit stack so deeply nested input cannot
// grow the call stack.
func CollectSignals(items []vcd.ScopeItem) []ir.Signal {
	type frame struct {
		items  []vcd.ScopeItem
		prefix string
		next   int
	}

	var signals []ir.Signal
	stack := []frame{{items: items}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next >= len(top.items) {
			stack = stack[:len(stack)-1]
			continue
		}
		item := top.items[top.next]
		top.next++

		switch it := item.(type) {
		case *vcd.Var:
			signals = append(signals, ir.Signal{
				Name:   join(top.prefix, it.Reference),
				Source: string(it.Code),
			})
		case *vcd.Scope:
			// top may be invalidated by append; compute the prefix first
			prefix := join(top.prefix, it.Name)
			stack = append(stack, frame{items: it.Items, prefix: prefix})
		}
	}

	return signals
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
