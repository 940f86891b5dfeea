package evaluator

import (
	"context"

	"splan/internal/ast"
	"splan/internal/object"
)

// numeric is the promoted form of an operand: integer until any float
// appears, float afterwards.
type numeric struct {
	isFloat bool
	i       int64
	f       float64
}

func (n numeric) asFloat() float64 {
	if n.isFloat {
		return n.f
	}
	return float64(n.i)
}

// evalArithmetic folds two or more operands left to right. Mixed
// integer/float operands promote the whole fold to float; strings are a type
// error even for +.
func (e *Evaluator) evalArithmetic(ctx context.Context, op string, list *ast.List, args []ast.Expression, env *object.Environment, path []int) (object.Value, error) {
	if len(args) < 2 {
		return nil, newError(ARITY_ERROR, list, path, "operator %q expects at least 2 operands, got %d", op, len(args))
	}

	acc, err := e.evalNumericOperand(ctx, op, args[0], env, childPath(path, 0))
	if err != nil {
		return nil, err
	}
	for i, arg := range args[1:] {
		operand, err := e.evalNumericOperand(ctx, op, arg, env, childPath(path, i+1))
		if err != nil {
			return nil, err
		}
		acc, err = applyArithmetic(op, acc, operand, list, path)
		if err != nil {
			return nil, err
		}
	}

	if acc.isFloat {
		return &object.Float{Value: acc.f}, nil
	}
	return &object.Integer{Value: acc.i}, nil
}

func applyArithmetic(op string, left, right numeric, list *ast.List, path []int) (numeric, error) {
	if left.isFloat || right.isFloat {
		l, r := left.asFloat(), right.asFloat()
		switch op {
		case "+":
			return numeric{isFloat: true, f: l + r}, nil
		case "-":
			return numeric{isFloat: true, f: l - r}, nil
		case "*":
			return numeric{isFloat: true, f: l * r}, nil
		case "/":
			if r == 0 {
				return numeric{}, newError(TYPE_ERROR, list, path, "division by zero")
			}
			return numeric{isFloat: true, f: l / r}, nil
		}
	}

	l, r := left.i, right.i
	switch op {
	case "+":
		return numeric{i: l + r}, nil
	case "-":
		return numeric{i: l - r}, nil
	case "*":
		return numeric{i: l * r}, nil
	case "/":
		if r == 0 {
			return numeric{}, newError(TYPE_ERROR, list, path, "division by zero")
		}
		if l%r == 0 {
			return numeric{i: l / r}, nil
		}
		return numeric{isFloat: true, f: float64(l) / float64(r)}, nil
	}
	return numeric{}, newError(TYPE_ERROR, list, path, "unknown arithmetic operator %q", op)
}

// evalComparison chains pairwise: (< 1 2 3) holds when every adjacent pair
// holds. Equality also accepts string operands; the ordering operators are
// numeric only.
func (e *Evaluator) evalComparison(ctx context.Context, op string, list *ast.List, args []ast.Expression, env *object.Environment, path []int) (object.Value, error) {
	if len(args) < 2 {
		return nil, newError(ARITY_ERROR, list, path, "operator %q expects at least 2 operands, got %d", op, len(args))
	}

	operands := make([]object.Value, len(args))
	for i, arg := range args {
		val, err := e.eval(ctx, arg, env, childPath(path, i))
		if err != nil {
			return nil, err
		}
		operands[i] = unwrapToolResult(val)
	}

	// Equality also accepts strings, but only all-string operand lists;
	// mixing strings with numbers is a type error no matter the order.
	if op == "=" && anyString(operands) {
		s, ok := operands[0].(*object.String)
		if !ok {
			return nil, newError(TYPE_ERROR, list, path,
				"operator \"=\" cannot compare %s with STRING", operands[0].Type())
		}
		for i, operand := range operands[1:] {
			other, ok := operand.(*object.String)
			if !ok {
				return nil, newError(TYPE_ERROR, args[i+1], childPath(path, i+1),
					"operator \"=\" cannot compare STRING with %s", operand.Type())
			}
			if other.Value != s.Value {
				return object.FALSE, nil
			}
		}
		return object.TRUE, nil
	}

	nums := make([]numeric, len(operands))
	for i, operand := range operands {
		n, ok := asNumeric(operand)
		if !ok {
			return nil, newError(TYPE_ERROR, args[i], childPath(path, i),
				"operator %q expects numeric operands, got %s", op, operand.Type())
		}
		nums[i] = n
	}

	for i := 0; i < len(nums)-1; i++ {
		if !compareNumeric(op, nums[i], nums[i+1]) {
			return object.FALSE, nil
		}
	}
	return object.TRUE, nil
}

func anyString(operands []object.Value) bool {
	for _, operand := range operands {
		if _, ok := operand.(*object.String); ok {
			return true
		}
	}
	return false
}

func compareNumeric(op string, left, right numeric) bool {
	l, r := left.asFloat(), right.asFloat()
	switch op {
	case "<":
		return l < r
	case ">":
		return l > r
	case "<=":
		return l <= r
	case ">=":
		return l >= r
	case "=":
		return l == r
	}
	return false
}

func (e *Evaluator) evalNumericOperand(ctx context.Context, op string, arg ast.Expression, env *object.Environment, path []int) (numeric, error) {
	val, err := e.eval(ctx, arg, env, path)
	if err != nil {
		return numeric{}, err
	}
	n, ok := asNumeric(unwrapToolResult(val))
	if !ok {
		return numeric{}, newError(TYPE_ERROR, arg, path,
			"operator %q expects numeric operands, got %s", op, val.Type())
	}
	return n, nil
}

// unwrapToolResult lets a tool's payload participate directly in arithmetic
// and comparison, so (+ (calc "2+2") 1) works without an explicit cast.
func unwrapToolResult(val object.Value) object.Value {
	if tr, ok := val.(*object.ToolResult); ok && tr.Payload != nil {
		return tr.Payload
	}
	return val
}

func asNumeric(val object.Value) (numeric, bool) {
	switch val := val.(type) {
	case *object.Integer:
		return numeric{i: val.Value}, true
	case *object.Float:
		return numeric{isFloat: true, f: val.Value}, true
	case *object.Boolean:
		if val.Value {
			return numeric{i: 1}, true
		}
		return numeric{i: 0}, true
	}
	return numeric{}, false
}
