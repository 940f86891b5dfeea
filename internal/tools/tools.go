package tools

import (
	"context"
	"fmt"
	"splan/internal/object"
)

type ErrorKind string

const (
	NotFound        ErrorKind = "TOOL_NOT_FOUND"
	ExecutionFailed ErrorKind = "TOOL_EXECUTION_FAILED"
	Timeout         ErrorKind = "TOOL_TIMEOUT"
)

// Error is the only error type the dispatch boundary produces. The evaluator
// relies on Kind to distinguish a missing tool from a failing or timed-out one.
type Error struct {
	Kind    ErrorKind
	Tool    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tool '%s' %s: %s: %v", e.Tool, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("tool '%s' %s: %s", e.Tool, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, tool string, format string, a ...any) *Error {
	return &Error{Kind: kind, Tool: tool, Message: fmt.Sprintf(format, a...)}
}

// Args carries a tool call's evaluated arguments. Positional arguments keep
// their program order; named arguments come from bare key=value symbols.
type Args struct {
	Positional []object.Value
	Named      map[string]object.Value
}

// First returns the first positional argument, or NIL when there is none.
func (a Args) First() object.Value {
	if len(a.Positional) == 0 {
		return object.NIL
	}
	return a.Positional[0]
}

// Provider is the dispatch contract between the evaluator and whatever
// supplies tools. The evaluator does not know tool identities ahead of time;
// any operator that is not a control form is routed here.
type Provider interface {
	ExecuteTool(ctx context.Context, name string, args Args) (object.Value, error)
}
