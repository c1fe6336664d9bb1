// Package config loads merge jobs from CUE, YAML or TOML files.
//
// All three forms are unified with the same CUE schema, so a YAML job and a
// CUE job are checked by identical rules and report identical errors.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// ErrUnsupportedFormat is returned for job files that are not .cue, .yaml,
// .yml or .toml.
var ErrUnsupportedFormat = errors.New("unsupported job file format")

// Job describes one merge.
type Job struct {
	Inputs []string `json:"inputs,omitempty"`
	Reset  string   `json:"reset,omitempty"`
	Output string   `json:"output,omitempty"`
	Module string   `json:"module,omitempty"`
	DB     string   `json:"db,omitempty"`
}

// Error is a job that does not satisfy the schema.
type Error struct {
	File    string
	Pos     token.Pos // valid only for CUE sources
	Message string
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// Load reads the job file at path. Relative paths inside the job are taken
// relative to the directory holding the file. The job may be partial; call
// Check once command-line values have been applied.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job %s: %w", path, err)
	}

	ctx := cuecontext.New()
	schema, err := compileSchema(ctx)
	if err != nil {
		return nil, err
	}

	var v cue.Value
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		v = ctx.CompileBytes(data, cue.Filename(path))
	case ".yaml", ".yml":
		var m map[string]any
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, &Error{File: path, Message: err.Error()}
		}
		v = ctx.Encode(m)
	case ".toml":
		var m map[string]any
		if _, err := toml.Decode(string(data), &m); err != nil {
			return nil, &Error{File: path, Message: err.Error()}
		}
		v = ctx.Encode(m)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err := v.Err(); err != nil {
		return nil, newError(path, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Job")).Unify(v)
	if err := unified.Validate(); err != nil {
		return nil, newError(path, err)
	}

	var job Job
	if err := unified.Decode(&job); err != nil {
		return nil, newError(path, err)
	}

	job.resolve(filepath.Dir(path))
	return &job, nil
}

// Check reports whether j is complete: at least two inputs, a reset path and
// an output. An empty Module becomes the default.
func (j *Job) Check() error {
	ctx := cuecontext.New()
	schema, err := compileSchema(ctx)
	if err != nil {
		return err
	}

	unified := schema.LookupPath(cue.ParsePath("#Complete")).Unify(ctx.Encode(j))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return newError("", err)
	}
	return unified.Decode(j)
}

func (j *Job) resolve(dir string) {
	for i, in := range j.Inputs {
		j.Inputs[i] = join(dir, in)
	}
	j.Output = join(dir, j.Output)
	j.DB = join(dir, j.DB)
}

func join(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func compileSchema(ctx *cue.Context) (cue.Value, error) {
	v := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("compile job schema: %w", err)
	}
	return v, nil
}

func newError(file string, err error) *Error {
	e := &Error{File: file}
	list := cueerrors.Errors(err)
	msgs := make([]string, 0, len(list))
	for _, ce := range list {
		if pos := ce.Position(); !e.Pos.IsValid() && file != "" && pos.Filename() == file {
			e.Pos = pos
		}
		msgs = append(msgs, ce.Error())
	}
	if len(msgs) == 0 {
		msgs = append(msgs, err.Error())
	}
	e.Message = strings.Join(msgs, "; ")
	return e
}
