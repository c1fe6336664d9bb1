package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/vcdsync/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Signals  []string // Merged signal names for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Signals) > 0 {
		fmt.Fprintf(&buf, "\nMerged signals:\n")
		for i, name := range e.Signals {
			fmt.Fprintf(&buf, "  [%d] %s\n", i, name)
		}
	}

	return buf.String()
}

// assertResetEnd checks the reset-end tick of one input.
func assertResetEnd(result *Result, a Assertion) error {
	got, ok := result.ResetEnds[a.Input]
	if !ok {
		return &AssertionError{
			Type:     AssertResetEnd,
			Expected: fmt.Sprintf("input %s loaded with reset end %d", a.Input, a.Tick),
			Actual:   "input not loaded",
		}
	}
	if got != a.Tick {
		return &AssertionError{
			Type:     AssertResetEnd,
			Expected: fmt.Sprintf("%s reset ends at %d", a.Input, a.Tick),
			Actual:   fmt.Sprintf("reset ends at %d", got),
		}
	}
	return nil
}

// assertSkew checks the shift applied by one merge step.
func assertSkew(result *Result, a Assertion) error {
	if a.Step >= len(result.Steps) {
		return &AssertionError{
			Type:     AssertSkew,
			Expected: fmt.Sprintf("merge step %d with skew %d", a.Step, a.Skew),
			Actual:   fmt.Sprintf("%d merge steps", len(result.Steps)),
		}
	}
	step := result.Steps[a.Step]
	if step.Skew != a.Skew {
		return &AssertionError{
			Type:     AssertSkew,
			Expected: fmt.Sprintf("step %d (%s <- %s) skew %d", a.Step, step.Receiver, step.Donor, a.Skew),
			Actual:   fmt.Sprintf("skew %d", step.Skew),
		}
	}
	return nil
}

// assertSignalNames checks the merged names, in id order.
func assertSignalNames(result *Result, a Assertion) error {
	if len(result.Signals) == len(a.Names) {
		match := true
		for i := range a.Names {
			if result.Signals[i] != a.Names[i] {
				match = false
				break
			}
		}
		if match {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertSignalNames,
		Expected: fmt.Sprintf("%v", a.Names),
		Actual:   fmt.Sprintf("%v", result.Signals),
	}
}

// assertSignalCount checks the number of merged signals.
func assertSignalCount(result *Result, a Assertion) error {
	if len(result.Signals) != a.Count {
		return &AssertionError{
			Type:     AssertSignalCount,
			Expected: fmt.Sprintf("%d signals", a.Count),
			Actual:   fmt.Sprintf("%d signals", len(result.Signals)),
			Signals:  result.Signals,
		}
	}
	return nil
}

// assertEventAt checks that the merged log holds signal=value at tick.
func assertEventAt(result *Result, a Assertion) error {
	expected := fmt.Sprintf("%s=%d at tick %d", a.Signal, *a.Value, a.Tick)
	if result.Merged == nil {
		return &AssertionError{Type: AssertEventAt, Expected: expected, Actual: "no merged trace"}
	}

	id, ok := result.Merged.Lookup(a.Signal)
	if !ok {
		return &AssertionError{
			Type:     AssertEventAt,
			Expected: expected,
			Actual:   fmt.Sprintf("no signal named %s", a.Signal),
			Signals:  result.Signals,
		}
	}

	want := *a.Value == 1
	changes, _ := result.Merged.Events.At(a.Tick)
	var seen []string
	for _, c := range changes {
		if c.ID == id && c.Value == want {
			return nil
		}
		seen = append(seen, fmt.Sprintf("%s=%d", result.Signals[c.ID], bit(c.Value)))
	}
	return &AssertionError{
		Type:     AssertEventAt,
		Expected: expected,
		Actual:   fmt.Sprintf("tick %d holds %v", a.Tick, seen),
	}
}

// assertInitialFrame checks that tick 0 holds exactly one low value per
// signal.
func assertInitialFrame(result *Result, _ Assertion) error {
	if result.Merged == nil {
		return &AssertionError{Type: AssertInitialFrame, Expected: "an initial frame", Actual: "no merged trace"}
	}
	if err := checkInitialFrame(result.Merged); err != "" {
		return &AssertionError{
			Type:     AssertInitialFrame,
			Expected: fmt.Sprintf("one low value for each of %d signals at tick 0", len(result.Signals)),
			Actual:   err,
		}
	}
	return nil
}

func checkInitialFrame(t *ir.Trace) string {
	changes, ok := t.Events.At(0)
	if !ok {
		return "no tick 0"
	}
	seen := make(map[uint32]bool, len(changes))
	for _, c := range changes {
		if c.Value {
			return fmt.Sprintf("%s is high", t.Signals[c.ID].Name)
		}
		if seen[c.ID] {
			return fmt.Sprintf("%s appears twice", t.Signals[c.ID].Name)
		}
		seen[c.ID] = true
	}
	if len(seen) != len(t.Signals) {
		return fmt.Sprintf("%d of %d signals initialized", len(seen), len(t.Signals))
	}
	return ""
}

// assertRenamed checks that some merge step renamed from to to.
func assertRenamed(result *Result, a Assertion) error {
	for _, step := range result.Steps {
		for _, r := range step.Renames {
			if r.From == a.From && r.To == a.To {
				return nil
			}
		}
	}
	return &AssertionError{
		Type:     AssertRenamed,
		Expected: fmt.Sprintf("%s renamed to %s", a.From, a.To),
		Actual:   "no such rename",
		Signals:  result.Signals,
	}
}

// assertMergeError checks that loading or merging failed as expected.
func assertMergeError(result *Result, a Assertion) error {
	if result.MergeError == "" {
		return &AssertionError{
			Type:     AssertMergeError,
			Expected: fmt.Sprintf("failure containing %q", a.Contains),
			Actual:   "merge succeeded",
		}
	}
	if !strings.Contains(result.MergeError, a.Contains) {
		return &AssertionError{
			Type:     AssertMergeError,
			Expected: fmt.Sprintf("failure containing %q", a.Contains),
			Actual:   result.MergeError,
		}
	}
	return nil
}

func bit(v bool) int {
	if v {
		return 1
	}
	return 0
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns the failure messages, empty if all hold.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertResetEnd:
			err = assertResetEnd(result, assertion)
		case AssertSkew:
			err = assertSkew(result, assertion)
		case AssertSignalNames:
			err = assertSignalNames(result, assertion)
		case AssertSignalCount:
			err = assertSignalCount(result, assertion)
		case AssertEventAt:
			if assertion.Value == nil {
				err = fmt.Errorf("assertion[%d]: event_at requires a value", i)
			} else {
				err = assertEventAt(result, assertion)
			}
		case AssertInitialFrame:
			err = assertInitialFrame(result, assertion)
		case AssertRenamed:
			err = assertRenamed(result, assertion)
		case AssertMergeError:
			err = assertMergeError(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
