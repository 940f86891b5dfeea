package tools

import (
	"context"
	"fmt"
	"math"
	"splan/internal/object"
	"strconv"
	"strings"
)

// calc evaluates a plain arithmetic expression string. It deliberately
// understands nothing but numbers, the operators + - * / % **, comparisons,
// and parentheses; anything else is rejected before parsing. The symbolic
// math backend this stands in for lives outside the core.
type calcTool struct{}

func (t *calcTool) Name() string { return "calc" }

const maxCalcLength = 1000

func (t *calcTool) Call(ctx context.Context, args Args) (object.Value, error) {
	input := args.First().Inspect()
	expr := strings.TrimSpace(input)
	if expr == "" {
		return nil, fmt.Errorf("empty expression")
	}
	if len(expr) > maxCalcLength {
		return nil, fmt.Errorf("expression longer than %d characters", maxCalcLength)
	}
	if i := strings.IndexFunc(expr, func(r rune) bool {
		return !strings.ContainsRune("0123456789.+-*/%()<>=! \t", r)
	}); i >= 0 {
		return nil, fmt.Errorf("illegal character %q in expression", expr[i])
	}

	p := &calcParser{input: expr}
	result, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return nil, fmt.Errorf("unexpected %q at position %d", p.input[p.pos], p.pos)
	}
	return &object.ToolResult{Tool: "calc", Provenance: "builtin", Payload: result.toValue()}, nil
}

// calcNumber keeps integer results integral; any float operand promotes.
type calcNumber struct {
	isFloat bool
	i       int64
	f       float64
}

func (n calcNumber) asFloat() float64 {
	if n.isFloat {
		return n.f
	}
	return float64(n.i)
}

func (n calcNumber) toValue() object.Value {
	if n.isFloat {
		return &object.Float{Value: n.f}
	}
	return &object.Integer{Value: n.i}
}

type calcParser struct {
	input string
	pos   int
}

func (p *calcParser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *calcParser) accept(op string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.input[p.pos:], op) {
		p.pos += len(op)
		return true
	}
	return false
}

func (p *calcParser) parseComparison() (calcNumber, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return calcNumber{}, err
	}
	for _, op := range []string{"<=", ">=", "==", "!=", "<", ">"} {
		if p.accept(op) {
			right, err := p.parseAdditive()
			if err != nil {
				return calcNumber{}, err
			}
			l, r := left.asFloat(), right.asFloat()
			var b bool
			switch op {
			case "<=":
				b = l <= r
			case ">=":
				b = l >= r
			case "==":
				b = l == r
			case "!=":
				b = l != r
			case "<":
				b = l < r
			case ">":
				b = l > r
			}
			if b {
				return calcNumber{i: 1}, nil
			}
			return calcNumber{i: 0}, nil
		}
	}
	return left, nil
}

func (p *calcParser) parseAdditive() (calcNumber, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return calcNumber{}, err
	}
	for {
		if p.accept("+") {
			right, err := p.parseMultiplicative()
			if err != nil {
				return calcNumber{}, err
			}
			left = addNumbers(left, right)
		} else if p.accept("-") {
			right, err := p.parseMultiplicative()
			if err != nil {
				return calcNumber{}, err
			}
			left = subNumbers(left, right)
		} else {
			return left, nil
		}
	}
}

func (p *calcParser) parseMultiplicative() (calcNumber, error) {
	left, err := p.parseUnary()
	if err != nil {
		return calcNumber{}, err
	}
	for {
		if p.acceptMul() {
			right, err := p.parseUnary()
			if err != nil {
				return calcNumber{}, err
			}
			left = mulNumbers(left, right)
		} else if p.accept("/") {
			right, err := p.parseUnary()
			if err != nil {
				return calcNumber{}, err
			}
			if right.asFloat() == 0 {
				return calcNumber{}, fmt.Errorf("division by zero")
			}
			left = calcNumber{isFloat: true, f: left.asFloat() / right.asFloat()}
		} else if p.accept("%") {
			right, err := p.parseUnary()
			if err != nil {
				return calcNumber{}, err
			}
			if left.isFloat || right.isFloat {
				if right.asFloat() == 0 {
					return calcNumber{}, fmt.Errorf("modulo by zero")
				}
				left = calcNumber{isFloat: true, f: math.Mod(left.asFloat(), right.asFloat())}
			} else {
				if right.i == 0 {
					return calcNumber{}, fmt.Errorf("modulo by zero")
				}
				left = calcNumber{i: left.i % right.i}
			}
		} else {
			return left, nil
		}
	}
}

// acceptMul matches a single '*' but not the '**' power operator.
func (p *calcParser) acceptMul() bool {
	p.skipSpace()
	if strings.HasPrefix(p.input[p.pos:], "*") && !strings.HasPrefix(p.input[p.pos:], "**") {
		p.pos++
		return true
	}
	return false
}

func (p *calcParser) parseUnary() (calcNumber, error) {
	if p.accept("-") {
		n, err := p.parseUnary()
		if err != nil {
			return calcNumber{}, err
		}
		if n.isFloat {
			return calcNumber{isFloat: true, f: -n.f}, nil
		}
		return calcNumber{i: -n.i}, nil
	}
	return p.parsePower()
}

// parsePower binds tighter than * and is right-associative: 2**3**2 is 2**9.
func (p *calcParser) parsePower() (calcNumber, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return calcNumber{}, err
	}
	if p.accept("**") {
		exp, err := p.parseUnary()
		if err != nil {
			return calcNumber{}, err
		}
		return powNumbers(base, exp), nil
	}
	return base, nil
}

func (p *calcParser) parsePrimary() (calcNumber, error) {
	if p.accept("(") {
		n, err := p.parseComparison()
		if err != nil {
			return calcNumber{}, err
		}
		if !p.accept(")") {
			return calcNumber{}, fmt.Errorf("missing closing parenthesis")
		}
		return n, nil
	}

	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) && (p.input[p.pos] >= '0' && p.input[p.pos] <= '9' || p.input[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		return calcNumber{}, fmt.Errorf("expected a number at position %d", start)
	}
	tok := p.input[start:p.pos]
	if strings.Contains(tok, ".") {
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return calcNumber{}, fmt.Errorf("bad number %q", tok)
		}
		return calcNumber{isFloat: true, f: f}, nil
	}
	i, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return calcNumber{}, fmt.Errorf("bad number %q", tok)
	}
	return calcNumber{i: i}, nil
}

func addNumbers(a, b calcNumber) calcNumber {
	if a.isFloat || b.isFloat {
		return calcNumber{isFloat: true, f: a.asFloat() + b.asFloat()}
	}
	return calcNumber{i: a.i + b.i}
}

func subNumbers(a, b calcNumber) calcNumber {
	if a.isFloat || b.isFloat {
		return calcNumber{isFloat: true, f: a.asFloat() - b.asFloat()}
	}
	return calcNumber{i: a.i - b.i}
}

func mulNumbers(a, b calcNumber) calcNumber {
	if a.isFloat || b.isFloat {
		return calcNumber{isFloat: true, f: a.asFloat() * b.asFloat()}
	}
	return calcNumber{i: a.i * b.i}
}

// maxIntExponent bounds the exact integer power path; int64 cannot hold any
// base >= 2 raised beyond 62 anyway.
const maxIntExponent = 62

func powNumbers(a, b calcNumber) calcNumber {
	if !a.isFloat && !b.isFloat && b.i >= 0 && b.i <= maxIntExponent {
		result := int64(1)
		for k := int64(0); k < b.i; k++ {
			next := result * a.i
			if a.i != 0 && next/a.i != result {
				return calcNumber{isFloat: true, f: math.Pow(a.asFloat(), b.asFloat())}
			}
			result = next
		}
		return calcNumber{i: result}
	}
	return calcNumber{isFloat: true, f: math.Pow(a.asFloat(), b.asFloat())}
}
