package evaluator

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"splan/internal/ast"
	"splan/internal/object"
	"splan/internal/tools"
	"splan/internal/trace"
)

const (
	DefaultMaxParallel = 10
	DefaultWhileCap    = 1000
	// Hard safety ceiling for a while form's max_iterations argument.
	WhileCapCeiling = 10000
)

type Config struct {
	// Concurrent selects the cooperatively scheduled task model; the default
	// is the blocking worker-pool model.
	Concurrent bool
	// MaxParallel bounds concurrently admitted par branches in the task
	// model. Zero means DefaultMaxParallel.
	MaxParallel int
}

// Evaluator is a tree walker over (Expression, Environment). The AST is
// immutable and shared read-only across branches; each evaluation threads its
// own path value, so concurrent branches never share position state.
type Evaluator struct {
	cfg      Config
	tools    tools.Provider
	recorder *trace.Recorder
	logger   *slog.Logger
	sched    branchScheduler

	taskCounter atomic.Int64
}

func New(cfg Config, provider tools.Provider, recorder *trace.Recorder, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = trace.NewRecorder()
	}
	e := &Evaluator{
		cfg:      cfg,
		tools:    provider,
		recorder: recorder,
		logger:   logger,
	}
	if cfg.Concurrent {
		e.sched = newTaskScheduler(cfg.MaxParallel)
	} else {
		e.sched = &poolScheduler{}
	}
	return e
}

func (e *Evaluator) Recorder() *trace.Recorder { return e.recorder }

// Evaluate runs one program to completion against env.
func (e *Evaluator) Evaluate(ctx context.Context, expr ast.Expression, env *object.Environment) (object.Value, error) {
	return e.eval(ctx, expr, env, nil)
}

type taskIDKey struct{}

func (e *Evaluator) nextTaskID() int64 { return e.taskCounter.Add(1) }

func taskIDFrom(ctx context.Context) int64 {
	if id, ok := ctx.Value(taskIDKey{}).(int64); ok {
		return id
	}
	return 0
}

// eval is the single dispatch core shared by both scheduling models. Every
// recursive call checks for cancellation, which makes each sub-expression a
// cooperative suspension point in the task model.
func (e *Evaluator) eval(ctx context.Context, expr ast.Expression, env *object.Environment, path []int) (object.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, newError(CANCELLED, expr, path, "evaluation cancelled: %v", err)
	}

	switch expr := expr.(type) {
	case *ast.Atom:
		return e.evalAtom(expr, env), nil
	case *ast.List:
		return e.evalList(ctx, expr, env, path)
	}
	return object.NIL, nil
}

// A bare symbol resolves through the scope chain and falls back to its own
// literal text, so (notify done) and (notify "done") both say "done". Only
// set distinguishes an undefined name as an error.
func (e *Evaluator) evalAtom(atom *ast.Atom, env *object.Environment) object.Value {
	switch atom.Kind {
	case ast.IntegerAtom:
		return &object.Integer{Value: atom.Int}
	case ast.FloatAtom:
		return &object.Float{Value: atom.Float}
	default:
		if !atom.Quoted {
			if val, ok := env.Get(atom.Str); ok {
				return val
			}
		}
		return &object.String{Value: atom.Str}
	}
}

func (e *Evaluator) evalList(ctx context.Context, list *ast.List, env *object.Environment, path []int) (object.Value, error) {
	if len(list.Elements) == 0 {
		return object.NIL, nil
	}

	op, ok := list.Operator()
	if !ok {
		return nil, newError(TYPE_ERROR, list, path, "form does not start with an operator name")
	}

	args := list.Elements[1:]

	switch op {
	case "plan":
		if len(args) != 1 {
			return nil, newError(ARITY_ERROR, list, path, "plan expects exactly 1 argument, got %d", len(args))
		}
		return e.eval(ctx, args[0], env, childPath(path, 0))

	case "seq":
		return e.evalSeq(ctx, args, env, path)

	case "par":
		return e.evalPar(ctx, args, env, path)

	case "if":
		return e.evalIf(ctx, list, args, env, path)

	case "let":
		return e.evalLet(ctx, list, args, env, path)

	case "set":
		return e.evalSet(ctx, list, args, env, path)

	case "while":
		return e.evalWhile(ctx, list, args, env, path)

	case "handle":
		return e.evalHandle(ctx, list, args, env, path)

	case "+", "-", "*", "/":
		return e.evalArithmetic(ctx, op, list, args, env, path)

	case "<", ">", "<=", ">=", "=":
		return e.evalComparison(ctx, op, list, args, env, path)

	default:
		return e.dispatchTool(ctx, op, list, args, env, path)
	}
}

// seq evaluates each form in order under the same environment; side effects
// of one step are visible to the next. The last result wins.
func (e *Evaluator) evalSeq(ctx context.Context, args []ast.Expression, env *object.Environment, path []int) (object.Value, error) {
	if len(args) == 0 {
		return object.NIL, nil
	}
	var result object.Value = object.NIL
	for i, arg := range args {
		var err error
		result, err = e.eval(ctx, arg, env, childPath(path, i))
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// par runs every branch against the same environment. Results keep
// declaration order regardless of completion order.
func (e *Evaluator) evalPar(ctx context.Context, args []ast.Expression, env *object.Environment, path []int) (object.Value, error) {
	branches := make([]branch, len(args))
	for i, arg := range args {
		i, arg := i, arg
		branchPath := childPath(path, i)
		branches[i] = func(ctx context.Context) (object.Value, error) {
			ctx = context.WithValue(ctx, taskIDKey{}, e.nextTaskID())
			return e.eval(ctx, arg, env, branchPath)
		}
	}

	results, err := e.sched.Run(ctx, branches)
	if err != nil {
		return nil, err
	}
	return &object.List{Elements: results}, nil
}

func (e *Evaluator) evalIf(ctx context.Context, list *ast.List, args []ast.Expression, env *object.Environment, path []int) (object.Value, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, newError(ARITY_ERROR, list, path, "if expects 2 or 3 arguments, got %d", len(args))
	}

	cond, err := e.eval(ctx, args[0], env, childPath(path, 0))
	if err != nil {
		return nil, err
	}
	if object.IsTruthy(cond) {
		return e.eval(ctx, args[1], env, childPath(path, 1))
	}
	if len(args) == 3 {
		return e.eval(ctx, args[2], env, childPath(path, 2))
	}
	return object.NIL, nil
}

// let evaluates every binding expression against the outer environment, so
// bindings cannot see each other or themselves. The concurrent model runs
// the binding expressions in parallel under the same constraint.
func (e *Evaluator) evalLet(ctx context.Context, list *ast.List, args []ast.Expression, env *object.Environment, path []int) (object.Value, error) {
	if len(args) != 2 {
		return nil, newError(ARITY_ERROR, list, path, "let expects a binding list and a body, got %d arguments", len(args))
	}

	bindingsList, ok := args[0].(*ast.List)
	if !ok {
		return nil, newError(TYPE_ERROR, args[0], childPath(path, 0), "let bindings must be a list")
	}

	type bindingSpec struct {
		name string
		expr ast.Expression
		path []int
	}
	specs := make([]bindingSpec, len(bindingsList.Elements))
	for i, b := range bindingsList.Elements {
		pair, ok := b.(*ast.List)
		if !ok || len(pair.Elements) != 2 {
			return nil, newError(TYPE_ERROR, b, childPath(path, 0), "let binding %d must be a (name expr) pair", i)
		}
		nameAtom, ok := pair.Elements[0].(*ast.Atom)
		if !ok || nameAtom.Kind != ast.StringAtom {
			return nil, newError(TYPE_ERROR, pair, childPath(path, 0), "let binding %d name must be a symbol", i)
		}
		specs[i] = bindingSpec{
			name: nameAtom.Str,
			expr: pair.Elements[1],
			path: append(childPath(path, 0), i, 1),
		}
	}

	child := object.NewEnclosedEnvironment(env)

	if e.cfg.Concurrent && len(specs) > 1 {
		branches := make([]branch, len(specs))
		for i, spec := range specs {
			spec := spec
			branches[i] = func(ctx context.Context) (object.Value, error) {
				return e.eval(ctx, spec.expr, env, spec.path)
			}
		}
		values, err := e.sched.Run(ctx, branches)
		if err != nil {
			return nil, err
		}
		for i, spec := range specs {
			child.Define(spec.name, values[i])
		}
	} else {
		for _, spec := range specs {
			val, err := e.eval(ctx, spec.expr, env, spec.path)
			if err != nil {
				return nil, err
			}
			child.Define(spec.name, val)
		}
	}

	return e.eval(ctx, args[1], child, childPath(path, 1))
}

func (e *Evaluator) evalSet(ctx context.Context, list *ast.List, args []ast.Expression, env *object.Environment, path []int) (object.Value, error) {
	if len(args) != 2 {
		return nil, newError(ARITY_ERROR, list, path, "set expects a name and a value, got %d arguments", len(args))
	}
	nameAtom, ok := args[0].(*ast.Atom)
	if !ok || nameAtom.Kind != ast.StringAtom || nameAtom.Quoted {
		return nil, newError(TYPE_ERROR, args[0], childPath(path, 0), "set target must be a bare symbol")
	}

	val, err := e.eval(ctx, args[1], env, childPath(path, 1))
	if err != nil {
		return nil, err
	}
	if err := env.Assign(nameAtom.Str, val); err != nil {
		return nil, newError(NAME_ERROR, list, path, "%v", err)
	}
	return val, nil
}

// while re-evaluates cond and body until cond is false or the iteration cap
// is hit. An invalid cap is a configuration error raised before the loop
// starts, never a silent truncation.
func (e *Evaluator) evalWhile(ctx context.Context, list *ast.List, args []ast.Expression, env *object.Environment, path []int) (object.Value, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, newError(ARITY_ERROR, list, path, "while expects a condition, a body and an optional iteration cap, got %d arguments", len(args))
	}

	maxIterations := int64(DefaultWhileCap)
	if len(args) == 3 {
		capVal, err := e.eval(ctx, args[2], env, childPath(path, 2))
		if err != nil {
			return nil, err
		}
		capInt, ok := capVal.(*object.Integer)
		if !ok {
			return nil, newError(CONFIGURATION_ERROR, args[2], childPath(path, 2),
				"max_iterations must be an integer, got %s", capVal.Type())
		}
		if capInt.Value <= 0 || capInt.Value > WhileCapCeiling {
			return nil, newError(CONFIGURATION_ERROR, args[2], childPath(path, 2),
				"max_iterations must be between 1 and %d, got %d", WhileCapCeiling, capInt.Value)
		}
		maxIterations = capInt.Value
	}

	var result object.Value = object.NIL
	for iterations := int64(0); iterations < maxIterations; iterations++ {
		cond, err := e.eval(ctx, args[0], env, childPath(path, 0))
		if err != nil {
			return nil, err
		}
		if !object.IsTruthy(cond) {
			break
		}
		result, err = e.eval(ctx, args[1], env, childPath(path, 1))
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// handle evaluates its try expression and, on any catchable failure, binds a
// structured error record in a fresh child scope and evaluates the fallback
// there. Cancellation is not a program error and keeps propagating.
func (e *Evaluator) evalHandle(ctx context.Context, list *ast.List, args []ast.Expression, env *object.Environment, path []int) (object.Value, error) {
	if len(args) != 3 {
		return nil, newError(ARITY_ERROR, list, path, "handle expects an error name, a try expression and a fallback, got %d arguments", len(args))
	}
	nameAtom, ok := args[0].(*ast.Atom)
	if !ok || nameAtom.Kind != ast.StringAtom || nameAtom.Quoted {
		return nil, newError(TYPE_ERROR, args[0], childPath(path, 0), "handle error name must be a bare symbol")
	}

	result, err := e.eval(ctx, args[1], env, childPath(path, 1))
	if err == nil {
		return result, nil
	}
	if isCancellation(err) {
		return nil, err
	}

	e.logger.Debug("handle form caught an error",
		slog.String("kind", ErrorKind(err)),
		slog.String("error", err.Error()))

	record := &object.ErrorRecord{
		Kind:       ErrorKind(err),
		Message:    err.Error(),
		Expression: args[1].String(),
	}
	child := object.NewEnclosedEnvironment(env)
	child.Define(nameAtom.Str, record)
	return e.eval(ctx, args[2], child, childPath(path, 2))
}

// dispatchTool routes an unrecognized operator to the external tool provider.
// Bare key=value symbols become named arguments; everything else stays
// positional in program order.
func (e *Evaluator) dispatchTool(ctx context.Context, name string, list *ast.List, argExprs []ast.Expression, env *object.Environment, path []int) (object.Value, error) {
	args := tools.Args{Named: make(map[string]object.Value)}
	for i, argExpr := range argExprs {
		if key, valExpr, ok := namedArg(argExpr); ok {
			val := e.evalAtom(valExpr, env)
			args.Named[key] = val
			continue
		}
		val, err := e.eval(ctx, argExpr, env, childPath(path, i))
		if err != nil {
			return nil, err
		}
		args.Positional = append(args.Positional, val)
	}

	id := e.recorder.StartOperation(name, path, list.String())
	result, err := e.tools.ExecuteTool(ctx, name, args)
	if err != nil {
		wrapped := wrapToolError(err, list, path)
		e.recorder.LogError(name, path, list.String(), wrapped)
		return nil, wrapped
	}

	provenance := trace.ProvenanceTool
	if tr, ok := result.(*object.ToolResult); ok && tr.Provenance == "builtin" {
		provenance = trace.ProvenanceBuiltin
	}
	e.recorder.EndOperation(id, result.Inspect(), &trace.Metadata{
		Provenance: provenance,
		ToolCalled: name,
		TaskID:     taskIDFrom(ctx),
	})
	return result, nil
}

// namedArg recognizes the key=value sugar on bare symbols, e.g.
// (search "go" limit=5).
func namedArg(expr ast.Expression) (string, *ast.Atom, bool) {
	atom, ok := expr.(*ast.Atom)
	if !ok || atom.Kind != ast.StringAtom || atom.Quoted {
		return "", nil, false
	}
	idx := strings.Index(atom.Str, "=")
	if idx <= 0 || idx == len(atom.Str)-1 {
		return "", nil, false
	}
	key := atom.Str[:idx]
	raw := atom.Str[idx+1:]
	return key, parseNamedValue(raw), true
}

func parseNamedValue(raw string) *ast.Atom {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ast.NewInteger(i)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return ast.NewFloat(f)
	}
	return ast.NewString(raw, false)
}

func childPath(path []int, index int) []int {
	out := make([]int, len(path)+1)
	copy(out, path)
	out[len(path)] = index
	return out
}
