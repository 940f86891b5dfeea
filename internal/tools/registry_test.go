package tools

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"splan/internal/object"
	"testing"
	"time"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
}

func strArgs(s string) Args {
	return Args{Positional: []object.Value{&object.String{Value: s}}}
}

func TestNotifyReturnsMessage(t *testing.T) {
	r := testRegistry(t)
	val, err := r.ExecuteTool(context.Background(), "notify", strArgs("hello"))
	if err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if val.Inspect() != "hello" {
		t.Errorf("notify returned %q, want the message back", val.Inspect())
	}
}

func TestSearchStub(t *testing.T) {
	r := testRegistry(t)
	val, err := r.ExecuteTool(context.Background(), "search", strArgs("go testing"))
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	result, ok := val.(*object.ToolResult)
	if !ok || result.Tool != "search" {
		t.Errorf("expected a search tool result, got %v", val)
	}
}

func TestUnknownToolIsNotFound(t *testing.T) {
	r := testRegistry(t)
	_, err := r.ExecuteTool(context.Background(), "teleport", Args{})
	var te *Error
	if !errors.As(err, &te) || te.Kind != NotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestToolFailureIsExecutionFailed(t *testing.T) {
	r := testRegistry(t)
	_, err := r.ExecuteTool(context.Background(), "calc", strArgs("1/0"))
	var te *Error
	if !errors.As(err, &te) || te.Kind != ExecutionFailed {
		t.Errorf("expected ExecutionFailed, got %v", err)
	}
}

func TestFallbackProvider(t *testing.T) {
	spy := NewSpy()
	spy.Responses["mcp-tool"] = &object.String{Value: "from fallback"}
	r := NewRegistry(Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Fallback: spy})

	val, err := r.ExecuteTool(context.Background(), "mcp-tool", Args{})
	if err != nil {
		t.Fatalf("fallback dispatch failed: %v", err)
	}
	if val.Inspect() != "from fallback" {
		t.Errorf("got %q", val.Inspect())
	}
	if spy.CallCount("mcp-tool") != 1 {
		t.Errorf("fallback should have been called once, got %d", spy.CallCount("mcp-tool"))
	}
}

type slowTool struct{}

func (s *slowTool) Name() string { return "slow" }
func (s *slowTool) Call(ctx context.Context, args Args) (object.Value, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		return object.NIL, nil
	}
}

func TestToolTimeout(t *testing.T) {
	r := NewRegistry(Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Timeout: 20 * time.Millisecond})
	r.Register(&slowTool{})

	_, err := r.ExecuteTool(context.Background(), "slow", Args{})
	var te *Error
	if !errors.As(err, &te) || te.Kind != Timeout {
		t.Errorf("expected Timeout, got %v", err)
	}
}

func TestDBQuerySQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE TABLE users (id INTEGER, name TEXT); INSERT INTO users VALUES (1, 'ada'), (2, 'grace');`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	r := NewRegistry(Options{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		DBDriver: "sqlite3",
		DBDSN:    path,
	})

	val, err := r.ExecuteTool(context.Background(), "db-query", strArgs("SELECT id, name FROM users ORDER BY id"))
	if err != nil {
		t.Fatalf("db-query failed: %v", err)
	}
	rows := val.(*object.ToolResult).Payload.(*object.List)
	if len(rows.Elements) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows.Elements))
	}
	first := rows.Elements[0].(*object.List)
	if first.Elements[0].(*object.Integer).Value != 1 {
		t.Errorf("first id = %s, want 1", first.Elements[0].Inspect())
	}
	if first.Elements[1].(*object.String).Value != "ada" {
		t.Errorf("first name = %s, want ada", first.Elements[1].Inspect())
	}
}

func TestDBQueryNoArguments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	db.Close()

	r := NewRegistry(Options{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		DBDriver: "sqlite3",
		DBDSN:    path,
	})

	_, err = r.ExecuteTool(context.Background(), "db-query", Args{})
	var te *Error
	if !errors.As(err, &te) || te.Kind != ExecutionFailed {
		t.Fatalf("expected ExecutionFailed for a query-less call, got %v", err)
	}
}

func TestDBQueryUnconfigured(t *testing.T) {
	r := testRegistry(t)
	if _, err := r.ExecuteTool(context.Background(), "db-query", strArgs("SELECT 1")); err == nil {
		t.Error("db-query without a configured database should fail")
	}
}
