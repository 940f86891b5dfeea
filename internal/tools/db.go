package tools

import (
	"context"
	"database/sql"
	"fmt"
	"splan/internal/object"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// dbQueryTool runs read queries against the configured database. The driver
// name selects sqlite3, mysql or postgres; all three are registered above.
// The connection opens lazily on first use and is shared across calls.
type dbQueryTool struct {
	driver string
	dsn    string

	once sync.Once
	db   *sql.DB
	err  error
}

func newDBQueryTool(driver, dsn string) *dbQueryTool {
	return &dbQueryTool{driver: driver, dsn: dsn}
}

func (t *dbQueryTool) Name() string { return "db-query" }

func (t *dbQueryTool) open() (*sql.DB, error) {
	t.once.Do(func() {
		if t.driver == "" || t.dsn == "" {
			t.err = fmt.Errorf("no database configured")
			return
		}
		db, err := sql.Open(t.driver, t.dsn)
		if err != nil {
			t.err = fmt.Errorf("failed to open connection: %w", err)
			return
		}
		if err := db.Ping(); err != nil {
			t.err = fmt.Errorf("failed to ping database: %w", err)
			return
		}
		t.db = db
	})
	return t.db, t.err
}

func (t *dbQueryTool) Call(ctx context.Context, args Args) (object.Value, error) {
	if len(args.Positional) == 0 {
		return nil, fmt.Errorf("missing query argument")
	}

	db, err := t.open()
	if err != nil {
		return nil, err
	}

	query := args.Positional[0].Inspect()
	params := make([]any, 0, len(args.Positional)-1)
	for _, arg := range args.Positional[1:] {
		params = append(params, arg.Inspect())
	}

	rows, err := db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	rendered, err := renderRows(rows)
	if err != nil {
		return nil, err
	}
	return &object.ToolResult{Tool: "db-query", Provenance: "tool", Payload: rendered}, nil
}

// renderRows flattens a result set into a list of rows, each a list of
// column values mapped onto the language's value kinds.
func renderRows(rows *sql.Rows) (object.Value, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &object.List{}
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		row := &object.List{Elements: make([]object.Value, len(columns))}
		for i := range columns {
			row.Elements[i] = mapColumn(values[i])
		}
		result.Elements = append(result.Elements, row)
	}
	return result, rows.Err()
}

func mapColumn(v any) object.Value {
	switch x := v.(type) {
	case nil:
		return object.NIL
	case int64:
		return &object.Integer{Value: x}
	case float64:
		return &object.Float{Value: x}
	case bool:
		return object.NativeBoolToBooleanValue(x)
	case []byte:
		return &object.String{Value: string(x)}
	case string:
		return &object.String{Value: x}
	case time.Time:
		return &object.String{Value: x.Format(time.RFC3339)}
	default:
		return &object.String{Value: fmt.Sprintf("%v", v)}
	}
}
