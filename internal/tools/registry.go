package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"splan/internal/object"
)

// Tool is one callable unit registered with the Registry.
type Tool interface {
	Name() string
	Call(ctx context.Context, args Args) (object.Value, error)
}

// Registry is the default Provider: a name-indexed set of builtin tools plus
// an optional fallback provider consulted for names it does not know (the
// external MCP process manager plugs in there).
type Registry struct {
	tools    map[string]Tool
	fallback Provider
	logger   *slog.Logger
	timeout  time.Duration
}

type Options struct {
	Logger   *slog.Logger
	Fallback Provider
	// Timeout bounds a single tool call. Zero means 30s.
	Timeout time.Duration
	// DBDriver/DBDSN configure the db-query tool: "sqlite3", "mysql" or
	// "postgres" with the matching connection string.
	DBDriver string
	DBDSN    string
}

func NewRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	r := &Registry{
		tools:    make(map[string]Tool),
		fallback: opts.Fallback,
		logger:   opts.Logger,
		timeout:  opts.Timeout,
	}
	r.Register(&notifyTool{logger: opts.Logger})
	r.Register(&searchTool{logger: opts.Logger})
	r.Register(&calcTool{})
	r.Register(newDBQueryTool(opts.DBDriver, opts.DBDSN))
	return r
}

func (r *Registry) Register(tool Tool) {
	r.tools[tool.Name()] = tool
}

// ListTools returns the registered tool names.
func (r *Registry) ListTools() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

func (r *Registry) ExecuteTool(ctx context.Context, name string, args Args) (object.Value, error) {
	tool, ok := r.tools[name]
	if !ok {
		if r.fallback != nil {
			return r.fallback.ExecuteTool(ctx, name, args)
		}
		return nil, newError(NotFound, name, "no such tool")
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	result, err := tool.Call(callCtx, args)
	r.logger.Debug("tool call finished",
		slog.String("tool", name),
		slog.Duration("elapsed", time.Since(start)),
		slog.Bool("ok", err == nil))

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return nil, &Error{Kind: Timeout, Tool: name, Message: "call exceeded its deadline", Err: err}
		}
		var te *Error
		if errors.As(err, &te) {
			return nil, err
		}
		return nil, &Error{Kind: ExecutionFailed, Tool: name, Message: "call failed", Err: err}
	}
	return result, nil
}

// notify logs its message through the injected logger and hands it back, so
// a while body like (notify "x") evaluates to "x".
type notifyTool struct {
	logger *slog.Logger
}

func (t *notifyTool) Name() string { return "notify" }

func (t *notifyTool) Call(ctx context.Context, args Args) (object.Value, error) {
	msg := args.First()
	t.logger.Info("notify", slog.String("message", msg.Inspect()))
	return &object.ToolResult{Tool: "notify", Provenance: "builtin", Payload: msg}, nil
}

// search is a stub at the tool boundary; the real backend is an external
// collaborator.
type searchTool struct {
	logger *slog.Logger
}

func (t *searchTool) Name() string { return "search" }

func (t *searchTool) Call(ctx context.Context, args Args) (object.Value, error) {
	query := args.First().Inspect()
	t.logger.Info("search", slog.String("query", query))
	return &object.ToolResult{
		Tool:       "search",
		Provenance: "builtin",
		Payload:    &object.String{Value: fmt.Sprintf("search results for: %s", query)},
	}, nil
}
