package vcd

import (
	"fmt"
	"strconv"
	"strings"
)

// TimescaleUnit is the unit part of a $timescale declaration.
type TimescaleUnit string

// Timescale units accepted by the format.
const (
	UnitS  TimescaleUnit = "s"
	UnitMS TimescaleUnit = "ms"
	UnitUS TimescaleUnit = "us"
	UnitNS TimescaleUnit = "ns"
	UnitPS TimescaleUnit = "ps"
	UnitFS TimescaleUnit = "fs"
)

// ValidUnits lists the timescale units in decreasing order of magnitude.
var ValidUnits = []TimescaleUnit{UnitS, UnitMS, UnitUS, UnitNS, UnitPS, UnitFS}

// Timescale is a parsed $timescale declaration such as "10 ps".
type Timescale struct {
	Magnitude uint32
	Unit      TimescaleUnit
}

func (t Timescale) String() string {
	return fmt.Sprintf("%d%s", t.Magnitude, t.Unit)
}

// ParseTimescale parses "1ns", "10 ps" or "100us".
// Magnitude must be 1, 10 or 100.
func ParseTimescale(s string) (Timescale, error) {
	s = strings.Join(strings.Fields(s), "")
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return Timescale{}, fmt.Errorf("invalid timescale %q: missing magnitude", s)
	}

	mag, err := strconv.ParseUint(s[:i], 10, 32)
	if err != nil {
		return Timescale{}, fmt.Errorf("invalid timescale %q: %w", s, err)
	}
	if mag != 1 && mag != 10 && mag != 100 {
		return Timescale{}, fmt.Errorf("invalid timescale %q: magnitude must be 1, 10 or 100", s)
	}

	unit := TimescaleUnit(s[i:])
	if !isValidUnit(unit) {
		return Timescale{}, fmt.Errorf("invalid timescale %q: unknown unit %q", s, unit)
	}

	return Timescale{Magnitude: uint32(mag), Unit: unit}, nil
}

func isValidUnit(u TimescaleUnit) bool {
	for _, v := range ValidUnits {
		if v == u {
			return true
		}
	}
	return false
}

// IDCode is the per-file identifier of a variable (e.g. "!" or "#a").
type IDCode string

// ScopeItem is an element of the declaration tree: a *Scope or a *Var.
type ScopeItem interface {
	scopeItem()
}

// Scope is a $scope block (module, task, function, begin, fork).
type Scope struct {
	Kind  string
	Name  string
	Items []ScopeItem
}

// Var is a $var declaration.
type Var struct {
	Kind      string // wire, reg, ...
	Width     uint32
	Code      IDCode
	Reference string
	Index     string // optional bit select, e.g. "[7:0]"
}

func (*Scope) scopeItem() {}
func (*Var) scopeItem()   {}

// Header is everything before $enddefinitions.
type Header struct {
	Date      string
	Version   string
	Comment   string
	Timescale *Timescale // nil when the file declares none
	Items     []ScopeItem
}

// FindVar resolves a scope path such as ["top", "dut", "rst_n"].
// The last segment names the variable; earlier segments name nested scopes
// starting at the root.
func (h *Header) FindVar(path []string) (*Var, bool) {
	if len(path) == 0 {
		return nil, false
	}

	items := h.Items
	for _, seg := range path[:len(path)-1] {
		scope := findScope(items, seg)
		if scope == nil {
			return nil, false
		}
		items = scope.Items
	}

	leaf := path[len(path)-1]
	for _, item := range items {
		if v, ok := item.(*Var); ok && v.Reference == leaf {
			return v, true
		}
	}
	return nil, false
}

// FindLeaf returns the first variable, in depth-first declaration order,
// whose reference equals name regardless of the scope it lives in.
func (h *Header) FindLeaf(name string) (*Var, bool) {
	type frame struct {
		items []ScopeItem
		next  int
	}

	stack := []frame{{items: h.Items}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next >= len(top.items) {
			stack = stack[:len(stack)-1]
			continue
		}
		item := top.items[top.next]
		top.next++

		switch it := item.(type) {
		case *Var:
			if it.Reference == name {
				return it, true
			}
		case *Scope:
			stack = append(stack, frame{items: it.Items})
		}
	}
	return nil, false
}

func findScope(items []ScopeItem, name string) *Scope {
	for _, item := range items {
		if s, ok := item.(*Scope); ok && s.Name == name {
			return s
		}
	}
	return nil
}
