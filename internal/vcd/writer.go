package vcd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Writer state errors.
var (
	ErrDefinitionsClosed = errors.New("vcd: definitions already ended")
	ErrDefinitionsOpen   = errors.New("vcd: value changes before $enddefinitions")
	ErrTimeRegression    = errors.New("vcd: timestamp lower than previous")
	ErrUnbalancedScope   = errors.New("vcd: $upscope without open scope")
)

// Writer emits a VCD stream. Declarations come first, then timestamps in
// non-decreasing order, each followed by its value changes.
type Writer struct {
	w       *bufio.Writer
	nextID  uint64
	depth   int
	ended   bool
	timed   bool
	current uint64
}

// NewWriter returns a writer on w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Date writes a $date section.
func (w *Writer) Date(s string) error {
	return w.keyword("$date", s)
}

// Version writes a $version section.
func (w *Writer) Version(s string) error {
	return w.keyword("$version", s)
}

// Comment writes a $comment section.
func (w *Writer) Comment(s string) error {
	return w.keyword("$comment", s)
}

// Timescale writes the $timescale section.
func (w *Writer) Timescale(ts Timescale) error {
	return w.keyword("$timescale", ts.String())
}

// AddModule opens a module scope.
func (w *Writer) AddModule(name string) error {
	if err := w.keyword("$scope", "module "+name); err != nil {
		return err
	}
	w.depth++
	return nil
}

// AddWire declares a wire in the current scope and returns its identifier.
func (w *Writer) AddWire(width uint32, name string) (IDCode, error) {
	if w.ended {
		return "", ErrDefinitionsClosed
	}
	if strings.ContainsAny(name, " \t\r\n") || name == "" {
		return "", fmt.Errorf("vcd: invalid wire name %q", name)
	}

	code := codeFor(w.nextID)
	w.nextID++
	if _, err := fmt.Fprintf(w.w, "$var wire %d %s %s $end\n", width, code, name); err != nil {
		return "", err
	}
	return code, nil
}

// Upscope closes the innermost scope.
func (w *Writer) Upscope() error {
	if w.depth == 0 {
		return ErrUnbalancedScope
	}
	if err := w.keyword("$upscope", ""); err != nil {
		return err
	}
	w.depth--
	return nil
}

// EndDefinitions closes the header. Any scope still open is closed first.
func (w *Writer) EndDefinitions() error {
	for w.depth > 0 {
		if err := w.Upscope(); err != nil {
			return err
		}
	}
	if err := w.keyword("$enddefinitions", ""); err != nil {
		return err
	}
	w.ended = true
	return nil
}

// Timestamp starts a new time step.
func (w *Writer) Timestamp(t uint64) error {
	if !w.ended {
		return ErrDefinitionsOpen
	}
	if w.timed && t < w.current {
		return fmt.Errorf("%w: #%d after #%d", ErrTimeRegression, t, w.current)
	}
	w.timed = true
	w.current = t
	_, err := fmt.Fprintf(w.w, "#%d\n", t)
	return err
}

// ChangeScalar writes a scalar value change at the current time.
func (w *Writer) ChangeScalar(code IDCode, v bool) error {
	if !w.ended {
		return ErrDefinitionsOpen
	}
	c := byte('0')
	if v {
		c = '1'
	}
	if err := w.w.WriteByte(c); err != nil {
		return err
	}
	if _, err := w.w.WriteString(string(code)); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

func (w *Writer) keyword(kw, body string) error {
	if w.ended {
		return ErrDefinitionsClosed
	}
	var err error
	if body == "" {
		_, err = fmt.Fprintf(w.w, "%s $end\n", kw)
	} else {
		_, err = fmt.Fprintf(w.w, "%s %s $end\n", kw, body)
	}
	return err
}

// codeFor maps n to a printable identifier over '!'..'~' using bijective
// base-94, so every n yields a distinct, non-empty code.
func codeFor(n uint64) IDCode {
	var b []byte
	for {
		b = append(b, byte('!'+n%94))
		n /= 94
		if n == 0 {
			break
		}
		n--
	}
	return IDCode(b)
}
