package ast

import (
	"bytes"
	"strconv"
	"strings"
)

type AtomKind int

const (
	StringAtom AtomKind = iota
	IntegerAtom
	FloatAtom
)

// The base Expression interface. An expression is either an Atom leaf or a
// List of sub-expressions. Expressions are built once by the parser and never
// mutated afterwards, so they are safe to share across concurrent branches.
type Expression interface {
	String() string
	expressionNode()
}

type Atom struct {
	Kind   AtomKind
	Str    string
	Int    int64
	Float  float64
	Quoted bool // true when the source token was a double-quoted literal
}

func (a *Atom) expressionNode() {}
func (a *Atom) String() string {
	switch a.Kind {
	case IntegerAtom:
		return strconv.FormatInt(a.Int, 10)
	case FloatAtom:
		return strconv.FormatFloat(a.Float, 'g', -1, 64)
	default:
		if a.Quoted {
			return `"` + strings.ReplaceAll(a.Str, `"`, `\"`) + `"`
		}
		return a.Str
	}
}

type List struct {
	Elements []Expression
}

func (l *List) expressionNode() {}
func (l *List) String() string {
	var out bytes.Buffer
	out.WriteString("(")
	for i, e := range l.Elements {
		if i > 0 {
			out.WriteString(" ")
		}
		out.WriteString(e.String())
	}
	out.WriteString(")")
	return out.String()
}

// Operator returns the list's operator name when its first element is a bare
// string atom. Quoted strings are data, not operators.
func (l *List) Operator() (string, bool) {
	if len(l.Elements) == 0 {
		return "", false
	}
	head, ok := l.Elements[0].(*Atom)
	if !ok || head.Kind != StringAtom || head.Quoted {
		return "", false
	}
	return head.Str, true
}

func NewString(s string, quoted bool) *Atom {
	return &Atom{Kind: StringAtom, Str: s, Quoted: quoted}
}

func NewInteger(i int64) *Atom {
	return &Atom{Kind: IntegerAtom, Int: i}
}

func NewFloat(f float64) *Atom {
	return &Atom{Kind: FloatAtom, Float: f}
}
