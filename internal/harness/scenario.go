package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines one merge test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Reset is the dotted path of the reset signal, shared by all inputs.
	Reset string `yaml:"reset"`

	// Module names the output scope. Empty means the default.
	Module string `yaml:"module,omitempty"`

	// Inputs are merged in order.
	Inputs []Input `yaml:"inputs"`

	// Assertions validate the merged result.
	Assertions []Assertion `yaml:"assertions"`
}

// Input is one VCD trace, given inline or as a file.
type Input struct {
	// Name labels the trace in assertions and merge steps. Defaults to the
	// base name of Path.
	Name string `yaml:"name,omitempty"`

	// VCD is the inline trace text.
	VCD string `yaml:"vcd,omitempty"`

	// Path is a VCD file, relative to the scenario file.
	Path string `yaml:"path,omitempty"`
}

// Assertion validates the merged result.
type Assertion struct {
	// Type selects the check; see the Assert* constants.
	Type string `yaml:"type"`

	// Input names the trace (reset_end).
	Input string `yaml:"input,omitempty"`

	// Step indexes the merge step (skew).
	Step int `yaml:"step,omitempty"`

	// Tick is the expected reset end (reset_end) or the event tick (event_at).
	Tick uint64 `yaml:"tick,omitempty"`

	// Skew is the expected donor shift (skew).
	Skew uint64 `yaml:"skew,omitempty"`

	// Signal is the merged signal name (event_at).
	Signal string `yaml:"signal,omitempty"`

	// Value is 0 or 1 (event_at).
	Value *int `yaml:"value,omitempty"`

	// Names lists merged signal names in id order (signal_names).
	Names []string `yaml:"names,omitempty"`

	// Count is the expected number of merged signals (signal_count).
	Count int `yaml:"count,omitempty"`

	// From and To describe a collision rename (renamed).
	From string `yaml:"from,omitempty"`
	To   string `yaml:"to,omitempty"`

	// Contains is a substring of the expected failure (merge_error).
	Contains string `yaml:"contains,omitempty"`
}

// Assertion type constants.
const (
	AssertResetEnd     = "reset_end"
	AssertSkew         = "skew"
	AssertSignalNames  = "signal_names"
	AssertSignalCount  = "signal_count"
	AssertEventAt      = "event_at"
	AssertInitialFrame = "initial_frame"
	AssertRenamed      = "renamed"
	AssertMergeError   = "merge_error"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Input paths are resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	for i, in := range scenario.Inputs {
		if in.Path != "" && !filepath.IsAbs(in.Path) {
			scenario.Inputs[i].Path = filepath.Join(base, in.Path)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid, and
// fills in default input names.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Reset == "" {
		return fmt.Errorf("reset is required")
	}

	if len(s.Inputs) == 0 {
		return fmt.Errorf("inputs list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	names := make(map[string]bool, len(s.Inputs))
	for i := range s.Inputs {
		in := &s.Inputs[i]
		switch {
		case in.VCD == "" && in.Path == "":
			return fmt.Errorf("inputs[%d]: one of vcd or path is required", i)
		case in.VCD != "" && in.Path != "":
			return fmt.Errorf("inputs[%d]: vcd and path are mutually exclusive", i)
		}
		if in.Path != "" {
			if _, err := os.Stat(in.Path); os.IsNotExist(err) {
				return fmt.Errorf("inputs[%d]: file not found: %s", i, in.Path)
			}
			if in.Name == "" {
				in.Name = filepath.Base(in.Path)
			}
		}
		if in.Name == "" {
			return fmt.Errorf("inputs[%d]: name is required for inline traces", i)
		}
		if names[in.Name] {
			return fmt.Errorf("inputs[%d]: duplicate name %q", i, in.Name)
		}
		names[in.Name] = true
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, names); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, inputs map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertResetEnd:
		if !inputs[a.Input] {
			return fmt.Errorf("assertions[%d]: input %q is not a scenario input", index, a.Input)
		}
	case AssertSkew:
		if a.Step < 0 {
			return fmt.Errorf("assertions[%d]: step must be non-negative for skew", index)
		}
	case AssertSignalNames:
		if len(a.Names) == 0 {
			return fmt.Errorf("assertions[%d]: names list is required for signal_names", index)
		}
	case AssertSignalCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for signal_count", index)
		}
	case AssertEventAt:
		if a.Signal == "" {
			return fmt.Errorf("assertions[%d]: signal is required for event_at", index)
		}
		if a.Value == nil || (*a.Value != 0 && *a.Value != 1) {
			return fmt.Errorf("assertions[%d]: value must be 0 or 1 for event_at", index)
		}
	case AssertInitialFrame:
	case AssertRenamed:
		if a.From == "" || a.To == "" {
			return fmt.Errorf("assertions[%d]: from and to are required for renamed", index)
		}
	case AssertMergeError:
		if a.Contains == "" {
			return fmt.Errorf("assertions[%d]: contains is required for merge_error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
