package sqlite

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/xmlshred/internal/ident"
	"github.com/mesh-intelligence/xmlshred/pkg/types"
)

// Registry remembers which tables and columns exist so the walk does not
// probe the catalog for every node. It mutates the schema on demand through
// the session's open transaction. Keys are lower-cased because SQLite
// identifiers are case-insensitive.
type Registry struct {
	session *Session
	log     *zap.Logger

	tables  map[string]bool
	columns map[string]map[string]bool
	created []string
}

// NewRegistry returns an empty registry bound to session.
func NewRegistry(session *Session, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		session: session,
		log:     logger,
		tables:  make(map[string]bool),
		columns: make(map[string]map[string]bool),
	}
}

// EnsureTable creates table with the reserved columns and its parent index
// unless it is already known in memory or present on disk.
func (r *Registry) EnsureTable(ctx context.Context, table string) error {
	key := strings.ToLower(table)
	if r.tables[key] {
		return nil
	}

	exists, err := TableExists(ctx, r.session, table)
	if err != nil {
		return fmt.Errorf("ensure table %s: %w: %w", table, types.ErrSchemaMutation, err)
	}
	if exists {
		// Columns are read from the catalog on first EnsureColumns.
		r.tables[key] = true
		return nil
	}

	if _, err := r.session.ExecContext(ctx, createTableSQL(table)); err != nil {
		return fmt.Errorf("create table %s: %w: %w", table, types.ErrSchemaMutation, err)
	}
	if _, err := r.session.ExecContext(ctx, createParentIndexSQL(table)); err != nil {
		return fmt.Errorf("create parent index on %s: %w: %w", table, types.ErrSchemaMutation, err)
	}

	cols := make(map[string]bool, len(types.ReservedColumns))
	for _, c := range types.ReservedColumns {
		cols[strings.ToLower(c)] = true
	}
	r.tables[key] = true
	r.columns[key] = cols
	r.created = append(r.created, table)
	r.log.Debug("created table", zap.String("table", table))
	return nil
}

// EnsureColumns adds a TEXT column for every name not yet present on table.
// Names are normalized first. The live column set is read once per table.
func (r *Registry) EnsureColumns(ctx context.Context, table string, names []string) error {
	cols, err := r.columnSet(ctx, table)
	if err != nil {
		return err
	}

	for _, raw := range names {
		col := ident.Normalize(raw)
		key := strings.ToLower(col)
		if cols[key] {
			continue
		}
		if _, err := r.session.ExecContext(ctx, addColumnSQL(table, col)); err != nil {
			return fmt.Errorf("add column %s.%s: %w: %w", table, col, types.ErrSchemaMutation, err)
		}
		cols[key] = true
		r.log.Debug("added column", zap.String("table", table), zap.String("column", col))
	}
	return nil
}

// HasColumn reports whether column is cached as present on table.
func (r *Registry) HasColumn(table, column string) bool {
	return r.columns[strings.ToLower(table)][strings.ToLower(ident.Normalize(column))]
}

// Forget drops every cached table and column so the next lookups probe the
// catalog again. Call it after a rollback that may have undone DDL.
func (r *Registry) Forget() {
	r.tables = make(map[string]bool)
	r.columns = make(map[string]map[string]bool)
}

// Known returns the number of tables the registry has seen.
func (r *Registry) Known() int {
	return len(r.tables)
}

// Created returns the tables this registry created, in creation order.
func (r *Registry) Created() []string {
	return append([]string(nil), r.created...)
}

func (r *Registry) columnSet(ctx context.Context, table string) (map[string]bool, error) {
	key := strings.ToLower(table)
	if cols, ok := r.columns[key]; ok {
		return cols, nil
	}

	info, err := TableInfo(ctx, r.session, table)
	if err != nil {
		return nil, fmt.Errorf("probe columns of %s: %w: %w", table, types.ErrSchemaMutation, err)
	}
	cols := make(map[string]bool, len(info))
	for _, c := range info {
		cols[strings.ToLower(c.Name)] = true
	}
	r.columns[key] = cols
	return cols, nil
}
