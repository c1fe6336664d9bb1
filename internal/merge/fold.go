package merge

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"fortio.org/safecast"

	"github.com/roach88/vcdsync/internal/ir"
)

// Validation errors.
var (
	ErrTooFewTraces      = errors.New("at least two traces are required")
	ErrTimescaleMismatch = errors.New("timescales differ")
	ErrIDSpaceExhausted  = errors.New("combined signal count exceeds the id space")
)

// Options configure Fold.
type Options struct {
	// Logger receives one message per merge step. Nil discards them.
	Logger *slog.Logger
}

// Validate checks that traces can be merged: there are at least two, all
// timescales are equal, and every signal of every trace fits one id space.
func Validate(traces []*ir.Trace) error {
	if len(traces) < 2 {
		return fmt.Errorf("%w: got %d", ErrTooFewTraces, len(traces))
	}

	first := traces[0]
	total := 0
	for _, t := range traces {
		if t.Timescale.Magnitude != first.Timescale.Magnitude {
			return fmt.Errorf("%w: timescale values are different: %s has %d, %s has %d",
				ErrTimescaleMismatch, first.Name, first.Timescale.Magnitude, t.Name, t.Timescale.Magnitude)
		}
		if t.Timescale.Unit != first.Timescale.Unit {
			return fmt.Errorf("%w: timescale units are different: %s has %s, %s has %s",
				ErrTimescaleMismatch, first.Name, first.Timescale.Unit, t.Name, t.Timescale.Unit)
		}
		total += len(t.Signals)
	}

	if _, err := safecast.Conv[uint32](total); err != nil {
		return fmt.Errorf("%w: %d signals", ErrIDSpaceExhausted, total)
	}
	return nil
}

// Fold validates traces and merges them left to right. At each step the
// side whose reset ended strictly later receives the other; on a tie the
// running result stays the receiver.
//
// The input traces are consumed.
func Fold(traces []*ir.Trace, opts Options) (*ir.Trace, []Step, error) {
	if err := Validate(traces); err != nil {
		return nil, nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	acc := traces[0]
	steps := make([]Step, 0, len(traces)-1)
	for _, next := range traces[1:] {
		receiver, donor := acc, next
		if next.ResetEnd > acc.ResetEnd {
			receiver, donor = next, acc
		}

		logger.Info("merging traces",
			"receiver", receiver.Name,
			"receiver_reset_end", receiver.ResetEnd,
			"donor", donor.Name,
			"donor_reset_end", donor.ResetEnd,
		)

		step := Merge(receiver, donor)
		for _, r := range step.Renames {
			logger.Info("renamed colliding signal", "from", r.From, "to", r.To)
		}
		logger.Info("merged", "skew", step.Skew, "id_offset", step.IDOffset, "signals", len(receiver.Signals))

		steps = append(steps, step)
		acc = receiver
	}

	return acc, steps, nil
}
