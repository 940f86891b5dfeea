package object

import (
	"bytes"
	"fmt"
	"strconv"
)

const (
	NIL_OBJ          = "NIL"
	BOOLEAN_OBJ      = "BOOLEAN"
	INTEGER_OBJ      = "INTEGER"
	FLOAT_OBJ        = "FLOAT"
	STRING_OBJ       = "STRING"
	LIST_OBJ         = "LIST"
	TOOL_RESULT_OBJ  = "TOOL_RESULT"
	ERROR_RECORD_OBJ = "ERROR_RECORD"
)

var (
	NIL   = &Nil{}
	TRUE  = &Boolean{Value: true}
	FALSE = &Boolean{Value: false}
)

type ValueType string

type Value interface {
	Type() ValueType
	Inspect() string
}

type Integer struct {
	Value int64
}

func (i *Integer) Type() ValueType { return INTEGER_OBJ }
func (i *Integer) Inspect() string { return strconv.FormatInt(i.Value, 10) }

type Float struct {
	Value float64
}

func (f *Float) Type() ValueType { return FLOAT_OBJ }
func (f *Float) Inspect() string { return strconv.FormatFloat(f.Value, 'g', -1, 64) }

type String struct {
	Value string
}

func (s *String) Type() ValueType { return STRING_OBJ }
func (s *String) Inspect() string { return s.Value }

type Boolean struct {
	Value bool
}

func (b *Boolean) Type() ValueType { return BOOLEAN_OBJ }
func (b *Boolean) Inspect() string { return fmt.Sprintf("%t", b.Value) }

type Nil struct{}

func (n *Nil) Type() ValueType { return NIL_OBJ }
func (n *Nil) Inspect() string { return "nil" }

// List holds ordered results, e.g. the outcome of a par form where element i
// is the result of branch i regardless of completion order.
type List struct {
	Elements []Value
}

func (l *List) Type() ValueType { return LIST_OBJ }
func (l *List) Inspect() string {
	var out bytes.Buffer
	out.WriteString("[")
	for i, e := range l.Elements {
		if i > 0 {
			out.WriteString(", ")
		}
		out.WriteString(e.Inspect())
	}
	out.WriteString("]")
	return out.String()
}

// ToolResult wraps an opaque payload returned by an external tool. Tool is the
// operator name that produced it; Provenance says which kind of backend
// answered (builtin, tool, mcp).
type ToolResult struct {
	Tool       string
	Provenance string
	Payload    Value
}

func (t *ToolResult) Type() ValueType { return TOOL_RESULT_OBJ }
func (t *ToolResult) Inspect() string { return t.Payload.Inspect() }

// ErrorRecord is the structured value bound to a handle form's error
// variable: the error kind, its message, and the expression that failed.
type ErrorRecord struct {
	Kind       string
	Message    string
	Expression string
}

func (e *ErrorRecord) Type() ValueType { return ERROR_RECORD_OBJ }
func (e *ErrorRecord) Inspect() string {
	return fmt.Sprintf("{kind: %s, message: %s, expression: %s}", e.Kind, e.Message, e.Expression)
}

func NativeBoolToBooleanValue(input bool) *Boolean {
	if input {
		return TRUE
	}
	return FALSE
}

// IsTruthy is the one truthiness rule applied everywhere: NIL, false, integer
// zero, float zero and the empty string are false; every other value is true.
func IsTruthy(v Value) bool {
	switch v := v.(type) {
	case *Nil:
		return false
	case *Boolean:
		return v.Value
	case *Integer:
		return v.Value != 0
	case *Float:
		return v.Value != 0
	case *String:
		return v.Value != ""
	case *ToolResult:
		return IsTruthy(v.Payload)
	case nil:
		return false
	default:
		return true
	}
}
