package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/vcdsync/internal/ir"
	"github.com/roach88/vcdsync/internal/merge"
)

// marshalInputs converts input names to canonical JSON TEXT for storage.
func marshalInputs(inputs []string) (string, error) {
	list := make([]any, len(inputs))
	for i, in := range inputs {
		list[i] = in
	}
	data, err := ir.MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("marshal inputs: %w", err)
	}
	return string(data), nil
}

// marshalSteps converts merge steps to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so identical merges store identical text.
func marshalSteps(steps []merge.Step) (string, error) {
	list := make([]any, len(steps))
	for i, st := range steps {
		renames := make([]any, len(st.Renames))
		for j, r := range st.Renames {
			renames[j] = map[string]any{"from": r.From, "to": r.To}
		}
		list[i] = map[string]any{
			"receiver":  st.Receiver,
			"donor":     st.Donor,
			"skew":      st.Skew,
			"id_offset": st.IDOffset,
			"signals":   st.Signals,
			"renames":   renames,
		}
	}
	data, err := ir.MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("marshal steps: %w", err)
	}
	return string(data), nil
}

// unmarshalInputs parses JSON TEXT to input names.
func unmarshalInputs(data string) ([]string, error) {
	inputs := []string{}
	if data == "" {
		return inputs, nil
	}
	if err := json.Unmarshal([]byte(data), &inputs); err != nil {
		return nil, fmt.Errorf("unmarshal inputs: %w", err)
	}
	return inputs, nil
}

// unmarshalSteps parses JSON TEXT to merge steps. Empty rename lists come
// back as nil.
func unmarshalSteps(data string) ([]merge.Step, error) {
	steps := []merge.Step{}
	if data == "" {
		return steps, nil
	}
	if err := json.Unmarshal([]byte(data), &steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	for i := range steps {
		if len(steps[i].Renames) == 0 {
			steps[i].Renames = nil
		}
	}
	return steps, nil
}
