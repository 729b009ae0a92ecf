package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/xmlshred/internal/ident"
	"github.com/mesh-intelligence/xmlshred/pkg/types"
)

// Rows turns column maps into persisted rows inside the session's open
// transaction. Row identifiers have the form <table>_<n>, with n counted per
// table from 1 and never reused within a run. Table names that differ only in
// case share one counter and the spelling first seen in the run.
type Rows struct {
	session  *Session
	counters map[string]int64
	prefixes map[string]string
	inserted int64
}

// NewRows returns a materializer bound to session.
func NewRows(session *Session) *Rows {
	return &Rows{
		session:  session,
		counters: make(map[string]int64),
		prefixes: make(map[string]string),
	}
}

// NextID reserves the next identifier for table.
func (m *Rows) NextID(table string) string {
	key := strings.ToLower(table)
	prefix, ok := m.prefixes[key]
	if !ok {
		prefix = table
		m.prefixes[key] = prefix
	}
	m.counters[key]++
	return prefix + "_" + strconv.FormatInt(m.counters[key], 10)
}

// Insert writes one row to table and returns its identifier. Keys of data
// are normalized; a nil value is written as NULL.
func (m *Rows) Insert(ctx context.Context, table string, data map[string]any) (string, error) {
	id := m.NextID(table)

	cols, vals := columnsOf(data, types.ColID)
	cols = append([]string{types.ColID}, cols...)
	vals = append([]any{id}, vals...)

	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quote(c)
		marks[i] = "?"
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))

	if _, err := m.session.ExecContext(ctx, stmt, vals...); err != nil {
		return "", fmt.Errorf("insert into %s: %w: %w", table, types.ErrRowMutation, err)
	}
	m.inserted++
	return id, nil
}

// Update sets the given columns on row rowID of table. It does nothing when
// rowID or updates is empty.
func (m *Rows) Update(ctx context.Context, table, rowID string, updates map[string]any) error {
	if rowID == "" || len(updates) == 0 {
		return nil
	}

	cols, vals := columnsOf(updates, types.ColID)
	if len(cols) == 0 {
		return nil
	}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = quote(c) + " = ?"
	}
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		quote(table), strings.Join(sets, ", "), quote(types.ColID))

	if _, err := m.session.ExecContext(ctx, stmt, append(vals, rowID)...); err != nil {
		return fmt.Errorf("update %s %s: %w: %w", table, rowID, types.ErrRowMutation, err)
	}
	return nil
}

// Delete removes row rowID from table. It does nothing when rowID is empty.
func (m *Rows) Delete(ctx context.Context, table, rowID string) error {
	if rowID == "" {
		return nil
	}
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quote(table), quote(types.ColID))
	if _, err := m.session.ExecContext(ctx, stmt, rowID); err != nil {
		return fmt.Errorf("delete %s %s: %w: %w", table, rowID, types.ErrRowMutation, err)
	}
	return nil
}

// Inserted returns the number of rows inserted so far.
func (m *Rows) Inserted() int64 {
	return m.inserted
}

// columnsOf normalizes the keys of data, drops skip, and resolves keys that
// collide case-insensitively in favor of the lexically last original key.
// Columns come back in a stable order.
func columnsOf(data map[string]any, skip string) ([]string, []any) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	byLower := make(map[string]int, len(keys))
	var (
		cols []string
		vals []any
	)
	for _, k := range keys {
		col := ident.Normalize(k)
		lower := strings.ToLower(col)
		if strings.EqualFold(col, skip) {
			continue
		}
		if i, ok := byLower[lower]; ok {
			vals[i] = data[k]
			continue
		}
		byLower[lower] = len(cols)
		cols = append(cols, col)
		vals = append(vals, data[k])
	}
	return cols, vals
}
