package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Querier is satisfied by *sql.DB, *sql.Conn, *sql.Tx and *Session.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ColumnInfo is one row of a table's live column catalog.
type ColumnInfo struct {
	Name       string
	Type       string
	NotNull    bool
	Default    sql.NullString
	PrimaryKey bool
}

// ForeignKey is one declared foreign-key column of a table.
type ForeignKey struct {
	Table    string
	From     string
	RefTable string
	To       string
	OnDelete string
}

// TableExists reports whether a table named table exists, ignoring case.
func TableExists(ctx context.Context, q Querier, table string) (bool, error) {
	rows, err := q.QueryContext(ctx, tableExistsSQL, table)
	if err != nil {
		return false, fmt.Errorf("probe table %s: %w", table, err)
	}
	defer rows.Close()
	exists := rows.Next()
	return exists, rows.Err()
}

// Tables lists the user tables in the database, sorted by name.
func Tables(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, listTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// TableInfo reads the live column definitions of table.
func TableInfo(ctx context.Context, q Querier, table string) ([]ColumnInfo, error) {
	rows, err := q.QueryContext(ctx, tableInfoSQL, table)
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var (
			c       ColumnInfo
			notNull int
			pk      int
		)
		if err := rows.Scan(&c.Name, &c.Type, &notNull, &c.Default, &pk); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		c.NotNull = notNull == 1
		c.PrimaryKey = pk > 0
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// ForeignKeys reads the declared foreign keys of table, deduplicated.
func ForeignKeys(ctx context.Context, q Querier, table string) ([]ForeignKey, error) {
	rows, err := q.QueryContext(ctx, foreignKeysSQL, table)
	if err != nil {
		return nil, fmt.Errorf("read foreign keys of %s: %w", table, err)
	}
	defer rows.Close()

	var (
		fks  []ForeignKey
		seen = make(map[ForeignKey]bool)
	)
	for rows.Next() {
		fk := ForeignKey{Table: table}
		var to sql.NullString
		if err := rows.Scan(&fk.RefTable, &fk.From, &to, &fk.OnDelete); err != nil {
			return nil, fmt.Errorf("scan foreign key of %s: %w", table, err)
		}
		fk.To = to.String
		if seen[fk] {
			continue
		}
		seen[fk] = true
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// RowCount returns the number of rows in table.
func RowCount(ctx context.Context, q Querier, table string) (int64, error) {
	rows, err := q.QueryContext(ctx, "SELECT COUNT(*) FROM "+quote(table))
	if err != nil {
		return 0, fmt.Errorf("count rows of %s: %w", table, err)
	}
	defer rows.Close()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("count rows of %s: %w", table, err)
		}
	}
	return n, rows.Err()
}
