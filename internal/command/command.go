// Package command implements the command layer: a typed parser over
// a command's argument frames, one Go type per supported command, and
// the dispatch table that ties a command name to its parser.
package command

import (
	"fmt"
	"strconv"
	"strings"

	"gokv/internal/resp"
	"gokv/internal/srvstate"
)

// Parser is a cursor over a command's argument frames (the array
// elements after the command name), with typed accessors. Trailing
// unconsumed arguments are a syntax error, checked by Dispatch after
// a command's Parse returns.
type Parser struct {
	args [][]byte
	pos  int
}

func NewParser(args [][]byte) *Parser {
	return &Parser{args: args}
}

func (p *Parser) HasNext() bool  { return p.pos < len(p.args) }
func (p *Parser) Remaining() int { return len(p.args) - p.pos }

// NextBulkOrSimple returns the next argument's raw bytes, or false if
// exhausted.
func (p *Parser) NextBulkOrSimple() ([]byte, bool) {
	if !p.HasNext() {
		return nil, false
	}
	b := p.args[p.pos]
	p.pos++
	return b, true
}

// NextInteger consumes and parses the next argument as a base-10
// int64.
func (p *Parser) NextInteger() (int64, bool, error) {
	b, ok := p.NextBulkOrSimple()
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, true, errNotInteger
	}
	return n, true, nil
}

var errNotInteger = fmt.Errorf("ERR value is not an integer or out of range")

// ErrSyntax is returned by a Parse function on malformed arguments.
var ErrSyntax = fmt.Errorf("ERR syntax error")

// Result is what a command's Apply produces: the reply to send, how
// many logical changes it made (0 for reads), and — if it mutated —
// the canonical command(s) to append to the AOF. Most commands emit
// zero or one; SET with an expiry flag emits two (SET, then
// PEXPIREAT), since the AOF's replay path only understands commands
// this dispatcher can itself parse back.
type Result struct {
	Reply   resp.Frame
	Dirty   int
	Rewrite [][]string
}

func Reply(f resp.Frame) Result { return Result{Reply: f} }

// Command is implemented by every parsed, ready-to-run command.
type Command interface {
	Apply(state *srvstate.State) Result
}

// ParseFunc parses a command's arguments (command name already
// consumed) into a ready Command.
type ParseFunc func(p *Parser) (Command, error)

var registry = map[string]ParseFunc{}

func register(name string, fn ParseFunc) {
	registry[name] = fn
}

// Dispatch parses and executes one command given its raw argument
// vector (args[0] is the command name). It never panics: a command
// handler panic is recovered and turned into a generic error reply so
// one bad connection cannot corrupt keyspace state or crash the
// server.
func Dispatch(state *srvstate.State, args [][]byte) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			state.Log.Errorf("command: recovered panic: %v", r)
			result = Result{Reply: resp.NewError("ERR internal error")}
		}
	}()

	if len(args) == 0 {
		return Result{Reply: resp.NewError("ERR empty command")}
	}

	name := strings.ToUpper(string(args[0]))
	parseFn, ok := registry[name]
	if !ok {
		return Result{Reply: resp.NewError(fmt.Sprintf("ERR unknown command '%s'", string(args[0])))}
	}

	p := NewParser(args[1:])
	cmd, err := parseFn(p)
	if err != nil {
		return Result{Reply: resp.NewError(err.Error())}
	}
	if p.HasNext() {
		return Result{Reply: resp.NewError(ErrSyntax.Error())}
	}

	return cmd.Apply(state)
}

// arity checks are expressed inline per command, matching the
// teacher's style of "if len(args) < N" guards rather than a
// declarative table — most commands have one or two fixed-arity
// special cases (SET's flags, variadic DEL/EXISTS/SADD/...).
func wrongArgs(name string) error {
	return fmt.Errorf("ERR wrong number of arguments for '%s' command", strings.ToLower(name))
}
