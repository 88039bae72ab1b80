// Package storage implements the storage node kinds: file (read/write/
// append) and a local relational store backed by an embedded, pure-Go
// SQLite database. Both emit on the error port on failure.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/flowrt/flowrt/internal/flow"
	"github.com/flowrt/flowrt/internal/node"
	"github.com/flowrt/flowrt/internal/nodes/nodeutil"
	"github.com/flowrt/flowrt/internal/registry"
)

func ioErr() ([]flow.Port, []flow.Port) {
	return []flow.Port{{Name: flow.PortInput, Direction: flow.DirectionInput}},
		[]flow.Port{
			{Name: flow.PortOutput, Direction: flow.DirectionOutput},
			{Name: flow.PortError, Direction: flow.DirectionOutput},
		}
}

// Install registers the storage node kinds.
func Install(reg *registry.Registry) {
	in, out := ioErr()

	reg.Register(flow.Descriptor{
		Type: "storage.file", Category: "storage", Label: "File",
		InputPorts: in, OutputPorts: out,
	}, func() node.Runtime { return &File{} })

	reg.Register(flow.Descriptor{
		Type: "storage.relational", Category: "storage", Label: "Local Store",
		InputPorts: in, OutputPorts: out,
	}, func() node.Runtime { return NewRelational() })
}

// File implements read/write/append against the host filesystem, creating
// parent directories on write.
type File struct{}

func (f *File) Execute(ctx context.Context, rc *node.Context) error {
	path := nodeutil.ConfigString(rc.Config, "path", "")
	if path == "" {
		rc.Logger.Warn("storage file: missing path config")
		rc.Emit(flow.PortError, map[string]interface{}{"error": "missing path config"})
		return nil
	}

	mode := nodeutil.ConfigString(rc.Config, "mode", "read")
	switch mode {
	case "write", "append":
		content, _ := nodeutil.ExtractProperty(rc.Message.Payload, "content")
		s, _ := content.(string)

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			rc.Emit(flow.PortError, map[string]interface{}{"error": fmt.Sprintf("create parent directory: %v", err)})
			return nil
		}

		flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		if mode == "append" {
			flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		}
		fh, err := os.OpenFile(path, flags, 0o644)
		if err != nil {
			rc.Emit(flow.PortError, map[string]interface{}{"error": err.Error()})
			return nil
		}
		defer fh.Close()

		if _, err := fh.WriteString(s); err != nil {
			rc.Emit(flow.PortError, map[string]interface{}{"error": err.Error()})
			return nil
		}

		rc.Emit(flow.PortOutput, rc.Message.Payload)
		return nil

	default: // read
		buf, err := os.ReadFile(path)
		if err != nil {
			rc.Emit(flow.PortError, map[string]interface{}{"error": err.Error()})
			return nil
		}
		rc.Emit(flow.PortOutput, map[string]interface{}{"content": string(buf)})
		return nil
	}
}

// Relational executes SQL statements against an embedded SQLite database,
// one connection pool per compiled node instance shared across
// activations. A select statement returns rows as a list of name->value
// maps; any other statement returns the affected-row count.
type Relational struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// NewRelational constructs an unopened Relational runtime; the database
// handle is lazily opened on first activation against the configured path.
func NewRelational() *Relational {
	return &Relational{}
}

func (r *Relational) open(path string) (*sql.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil && r.path == path {
		return r.db, nil
	}
	if r.db != nil {
		r.db.Close()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	r.db = db
	r.path = path
	return db, nil
}

func (r *Relational) Execute(ctx context.Context, rc *node.Context) error {
	path := nodeutil.ConfigString(rc.Config, "database_path", "")
	if path == "" {
		rc.Logger.Warn("storage relational: missing database_path config")
		rc.Emit(flow.PortError, map[string]interface{}{"error": "missing database_path config"})
		return nil
	}

	query := nodeutil.ConfigString(rc.Config, "query", "")
	if query == "" {
		rc.Emit(flow.PortError, map[string]interface{}{"error": "missing query config"})
		return nil
	}

	db, err := r.open(path)
	if err != nil {
		rc.Emit(flow.PortError, map[string]interface{}{"error": err.Error()})
		return nil
	}

	args := queryArgs(rc.Config["params"])

	if isSelect(query) {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			rc.Emit(flow.PortError, map[string]interface{}{"error": err.Error()})
			return nil
		}
		defer rows.Close()

		result, err := scanRows(rows)
		if err != nil {
			rc.Emit(flow.PortError, map[string]interface{}{"error": err.Error()})
			return nil
		}
		rc.Emit(flow.PortOutput, map[string]interface{}{"rows": result})
		return nil
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		rc.Emit(flow.PortError, map[string]interface{}{"error": err.Error()})
		return nil
	}
	affected, _ := res.RowsAffected()
	rc.Emit(flow.PortOutput, map[string]interface{}{"affected_rows": affected})
	return nil
}

func isSelect(query string) bool {
	for _, c := range query {
		switch c {
		case ' ', '\t', '\n', '\r', '(':
			continue
		default:
			return c == 's' || c == 'S'
		}
	}
	return false
}

func queryArgs(raw interface{}) []interface{} {
	arr, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	return arr
}

func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			row[col] = normalizeSQLValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeSQLValue(v interface{}) interface{} {
	switch t := v.(type) {
	case []byte:
		return string(t)
	default:
		return t
	}
}
