package vcd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxTokenSize bounds a single whitespace-separated token (long $comment
// words, huge vector literals).
const maxTokenSize = 1 << 20

// CommandKind identifies a body command.
type CommandKind int

const (
	// CommandTimestamp advances the current time to Command.Time.
	CommandTimestamp CommandKind = iota + 1
	// CommandChangeScalar sets Command.Code to Command.Value.
	CommandChangeScalar
)

// Command is one entry of the value change section.
type Command struct {
	Kind  CommandKind
	Time  uint64
	Code  IDCode
	Value bool
}

// Parser reads a VCD stream: first the header, then commands.
type Parser struct {
	sc     *bufio.Scanner
	header bool
}

// NewParser returns a parser reading from r.
func NewParser(r io.Reader) *Parser {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxTokenSize)
	sc.Split(bufio.ScanWords)
	return &Parser{sc: sc}
}

// ParseHeader consumes declarations up to and including
// "$enddefinitions $end". It must be called once, before Next.
func (p *Parser) ParseHeader() (*Header, error) {
	if p.header {
		return nil, errors.New("vcd: header already parsed")
	}
	p.header = true

	h := &Header{}
	var stack []*Scope

	add := func(item ScopeItem) {
		if len(stack) == 0 {
			h.Items = append(h.Items, item)
			return
		}
		top := stack[len(stack)-1]
		top.Items = append(top.Items, item)
	}

	for {
		tok, ok := p.token()
		if !ok {
			if err := p.sc.Err(); err != nil {
				return nil, fmt.Errorf("vcd: read header: %w", err)
			}
			return nil, errors.New("vcd: unexpected end of file in header")
		}

		switch tok {
		case "$date":
			body, err := p.section(tok)
			if err != nil {
				return nil, err
			}
			h.Date = strings.Join(body, " ")

		case "$version":
			body, err := p.section(tok)
			if err != nil {
				return nil, err
			}
			h.Version = strings.Join(body, " ")

		case "$comment":
			body, err := p.section(tok)
			if err != nil {
				return nil, err
			}
			h.Comment = strings.Join(body, " ")

		case "$timescale":
			body, err := p.section(tok)
			if err != nil {
				return nil, err
			}
			ts, err := ParseTimescale(strings.Join(body, ""))
			if err != nil {
				return nil, fmt.Errorf("vcd: %w", err)
			}
			h.Timescale = &ts

		case "$scope":
			body, err := p.section(tok)
			if err != nil {
				return nil, err
			}
			if len(body) != 2 {
				return nil, fmt.Errorf("vcd: malformed $scope %q", strings.Join(body, " "))
			}
			scope := &Scope{Kind: body[0], Name: body[1]}
			add(scope)
			stack = append(stack, scope)

		case "$upscope":
			if _, err := p.section(tok); err != nil {
				return nil, err
			}
			if len(stack) == 0 {
				return nil, errors.New("vcd: $upscope without matching $scope")
			}
			stack = stack[:len(stack)-1]

		case "$var":
			body, err := p.section(tok)
			if err != nil {
				return nil, err
			}
			v, err := parseVar(body)
			if err != nil {
				return nil, err
			}
			add(v)

		case "$enddefinitions":
			if _, err := p.section(tok); err != nil {
				return nil, err
			}
			return h, nil

		default:
			if !strings.HasPrefix(tok, "$") {
				return nil, fmt.Errorf("vcd: unexpected token %q in header", tok)
			}
			if _, err := p.section(tok); err != nil {
				return nil, err
			}
		}
	}
}

// Next returns the next timestamp or scalar change. It returns io.EOF when
// the stream is exhausted. Malformed commands are skipped.
func (p *Parser) Next() (Command, error) {
	if !p.header {
		return Command{}, errors.New("vcd: Next called before ParseHeader")
	}

	for {
		tok, ok := p.token()
		if !ok {
			if err := p.sc.Err(); err != nil {
				return Command{}, fmt.Errorf("vcd: read body: %w", err)
			}
			return Command{}, io.EOF
		}

		switch tok[0] {
		case '#':
			t, err := strconv.ParseUint(tok[1:], 10, 64)
			if err != nil {
				continue
			}
			return Command{Kind: CommandTimestamp, Time: t}, nil

		case '0', '1':
			if len(tok) < 2 {
				continue
			}
			return Command{
				Kind:  CommandChangeScalar,
				Code:  IDCode(tok[1:]),
				Value: tok[0] == '1',
			}, nil

		case 'b', 'B', 'r', 'R', 's', 'S':
			// vector, real and string changes carry their identifier in the
			// following token
			p.token()

		case '$':
			if tok == "$comment" {
				if _, err := p.section(tok); err != nil {
					return Command{}, err
				}
			}
		}
	}
}

// token returns the next whitespace-separated token.
func (p *Parser) token() (string, bool) {
	if !p.sc.Scan() {
		return "", false
	}
	return p.sc.Text(), true
}

// section collects the tokens of a keyword section up to its $end.
func (p *Parser) section(keyword string) ([]string, error) {
	var body []string
	for {
		tok, ok := p.token()
		if !ok {
			if err := p.sc.Err(); err != nil {
				return nil, fmt.Errorf("vcd: read %s: %w", keyword, err)
			}
			return nil, fmt.Errorf("vcd: unterminated %s", keyword)
		}
		if tok == "$end" {
			return body, nil
		}
		body = append(body, tok)
	}
}

// parseVar parses the body of "$var wire 1 ! clk [0] $end".
func parseVar(body []string) (*Var, error) {
	if len(body) < 4 {
		return nil, fmt.Errorf("vcd: malformed $var %q", strings.Join(body, " "))
	}

	width, err := strconv.ParseUint(body[1], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("vcd: malformed $var width %q: %w", body[1], err)
	}

	v := &Var{
		Kind:      body[0],
		Width:     uint32(width),
		Code:      IDCode(body[2]),
		Reference: body[3],
	}
	if len(body) > 4 {
		v.Index = strings.Join(body[4:], "")
	}
	return v, nil
}
