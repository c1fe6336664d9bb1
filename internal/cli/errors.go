package cli

import (
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/roach88/vcdsync/internal/config"
	"github.com/roach88/vcdsync/internal/merge"
	"github.com/roach88/vcdsync/internal/store"
	"github.com/roach88/vcdsync/internal/trace"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric  = "E001" // Generic/unknown error
	ErrCodeNotFound = "E005" // Path not found

	// Input errors
	ErrCodeNoTimescale   = "E102" // Header declares no timescale
	ErrCodeResetNotFound = "E103" // Reset path not in the schema

	// Merge errors
	ErrCodeTimescaleMismatch = "E110" // Inputs use different timescales
	ErrCodeTooFewTraces      = "E111" // Fewer than two inputs
	ErrCodeIDSpace           = "E112" // Combined signals exceed the id space

	// Job and archive errors
	ErrCodeInvalidJob     = "E120" // Job file or flags incomplete/invalid
	ErrCodeTraceNotFound  = "E131" // No archived trace with that id
	ErrCodeDigestMismatch = "E132" // Archived trace fails its digest
)

// errorCode maps an error to the code reported for it.
func errorCode(err error) string {
	var cfgErr *config.Error
	switch {
	case errors.Is(err, os.ErrNotExist):
		return ErrCodeNotFound
	case errors.Is(err, trace.ErrNoTimescale):
		return ErrCodeNoTimescale
	case errors.Is(err, trace.ErrResetNotFound):
		return ErrCodeResetNotFound
	case errors.Is(err, merge.ErrTimescaleMismatch):
		return ErrCodeTimescaleMismatch
	case errors.Is(err, merge.ErrTooFewTraces):
		return ErrCodeTooFewTraces
	case errors.Is(err, merge.ErrIDSpaceExhausted):
		return ErrCodeIDSpace
	case errors.As(err, &cfgErr), errors.Is(err, config.ErrUnsupportedFormat):
		return ErrCodeInvalidJob
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrAmbiguousID):
		return ErrCodeTraceNotFound
	case errors.Is(err, store.ErrDigestMismatch):
		return ErrCodeDigestMismatch
	default:
		return ErrCodeGeneric
	}
}

// fail reports err through the formatter and returns an ExitError whose
// message starts with the error code.
func fail(f *OutputFormatter, exitCode int, message string, err error) error {
	code := errorCode(err)
	_ = f.Error(code, message+": "+err.Error(), nil)
	return WrapExitError(exitCode, code+": "+message, err)
}

// encodeIndented writes v as indented JSON.
func encodeIndented(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
