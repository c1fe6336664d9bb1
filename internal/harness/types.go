package harness

import (
	"github.com/roach88/vcdsync/internal/ir"
	"github.com/roach88/vcdsync/internal/merge"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every assertion held and the merged
	// trace survived the archive round trip.
	Pass bool `json:"pass"`

	// ResetEnds maps input name to its reset-end tick.
	ResetEnds map[string]uint64 `json:"reset_ends"`

	// Steps lists the merges in fold order.
	Steps []merge.Step `json:"steps"`

	// Signals are the merged signal names in id order.
	Signals []string `json:"signals"`

	// Digest is the content hash of the merged trace.
	Digest string `json:"digest,omitempty"`

	// MergeError holds the load or merge failure, if any.
	MergeError string `json:"merge_error,omitempty"`

	// Errors contains assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Output is the merged trace as VCD text. Golden files hold it.
	Output string `json:"-"`

	// Merged is the merged trace, nil when MergeError is set.
	Merged *ir.Trace `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		ResetEnds: make(map[string]uint64),
		Steps:     []merge.Step{},
		Signals:   []string{},
		Errors:    []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
