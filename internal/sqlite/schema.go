package sqlite

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/xmlshred/pkg/types"
)

// reservedDefs gives the column definition of each reserved column, in
// table-definition order.
var reservedDefs = []struct {
	name string
	def  string
}{
	{types.ColID, "TEXT PRIMARY KEY"},
	{types.ColParentID, "TEXT NULL"},
	{types.ColPath, "TEXT NOT NULL"},
	{types.ColNS, "TEXT NULL"},
	{types.ColValue, "TEXT NULL"},
}

const (
	objectExistsSQL = `SELECT 1 FROM sqlite_master WHERE name = ? COLLATE NOCASE`
	tableExistsSQL  = `SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE`
	listTablesSQL   = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	tableInfoSQL    = `SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`
	foreignKeysSQL  = `SELECT "table", "from", "to", on_delete FROM pragma_foreign_key_list(?) ORDER BY id, seq`
)

// quote returns name as a double-quoted SQLite identifier.
func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// parentIndexName is the name of the index on a table's parent-id column.
func parentIndexName(table string) string {
	return "ix_" + table + "__parent"
}

// rebuildTableName is the sibling table used while adding foreign keys. The
// nth attempt (from 0) is suffixed with n when the plain name is taken.
func rebuildTableName(table string, n int) string {
	if n == 0 {
		return table + "__fk_rebuild"
	}
	return table + "__fk_rebuild" + strconv.Itoa(n)
}

func createTableSQL(table string) string {
	defs := make([]string, len(reservedDefs))
	for i, c := range reservedDefs {
		defs[i] = quote(c.name) + " " + c.def
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(table), strings.Join(defs, ", "))
}

func createParentIndexSQL(table string) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		quote(parentIndexName(table)), quote(table), quote(types.ColParentID))
}

func addColumnSQL(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", quote(table), quote(column))
}
