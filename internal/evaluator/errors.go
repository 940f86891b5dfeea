package evaluator

import (
	"errors"
	"fmt"
	"splan/internal/ast"
	"splan/internal/security"
	"splan/internal/tools"
)

const (
	NAME_ERROR          = "NAME_ERROR"
	ARITY_ERROR         = "ARITY_ERROR"
	TYPE_ERROR          = "TYPE_ERROR"
	CONFIGURATION_ERROR = "CONFIGURATION_ERROR"
	TOOL_NOT_FOUND      = "TOOL_NOT_FOUND"
	TOOL_FAILED         = "TOOL_EXECUTION_FAILED"
	TOOL_TIMEOUT        = "TOOL_TIMEOUT"
	SECURITY_VIOLATION  = "SECURITY_VIOLATION"
	CANCELLED           = "CANCELLED"
)

// Error is the single in-evaluation error type. Everything the evaluator can
// raise is catchable by a handle form except CANCELLED, which must keep
// propagating so a failing par can tear its siblings down.
type Error struct {
	Kind       string
	Message    string
	Path       []int
	Expression string
	Err        error
}

func (e *Error) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%s at path %v: %s", e.Kind, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind string, expr ast.Expression, path []int, format string, a ...any) *Error {
	e := &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, a...),
		Path:    append([]int(nil), path...),
	}
	if expr != nil {
		e.Expression = expr.String()
	}
	return e
}

// wrapToolError translates a dispatch-boundary failure into the evaluator's
// taxonomy, keeping the original error in the chain. A tool that reports a
// security violation mid-evaluation stays catchable by handle; only the
// pre-evaluation gate is outside any handle scope.
func wrapToolError(err error, expr ast.Expression, path []int) *Error {
	kind := TOOL_FAILED
	var te *tools.Error
	if errors.As(err, &te) {
		switch te.Kind {
		case tools.NotFound:
			kind = TOOL_NOT_FOUND
		case tools.Timeout:
			kind = TOOL_TIMEOUT
		}
	}
	var sv *security.Violation
	if errors.As(err, &sv) {
		kind = SECURITY_VIOLATION
	}
	e := newError(kind, expr, path, "%v", err)
	e.Err = err
	return e
}

// ErrorKind reports the taxonomy kind of err, for callers building the
// handle form's error record.
func ErrorKind(err error) string {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return "EVAL_ERROR"
}
