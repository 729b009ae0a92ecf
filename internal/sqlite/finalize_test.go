package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mesh-intelligence/xmlshred/pkg/types"
)

// seedTree creates Root -> Item -> Sub with two items and one sub row under
// the first item.
func seedTree(t *testing.T) (*Store, *Session) {
	t.Helper()
	ctx := context.Background()
	store, s := openTestSession(t)
	r := NewRegistry(s, nil)
	m := NewRows(s)

	for _, table := range []string{"Root", "Item", "Sub"} {
		require.NoError(t, r.EnsureTable(ctx, table))
	}
	require.NoError(t, r.EnsureColumns(ctx, "Item", []string{"name"}))

	root, err := m.Insert(ctx, "Root", map[string]any{types.ColPath: "Root"})
	require.NoError(t, err)
	item1, err := m.Insert(ctx, "Item", map[string]any{types.ColParentID: root, types.ColPath: "Root/Item", "name": "one"})
	require.NoError(t, err)
	_, err = m.Insert(ctx, "Item", map[string]any{types.ColParentID: root, types.ColPath: "Root/Item", "name": "two"})
	require.NoError(t, err)
	_, err = m.Insert(ctx, "Sub", map[string]any{types.ColParentID: item1, types.ColPath: "Root/Item/Sub"})
	require.NoError(t, err)
	return store, s
}

func treeRelations() map[string][]types.Relationship {
	return map[string][]types.Relationship{
		"Item": {{ChildTable: "Item", ParentTable: "Root", Column: types.ColParentID}},
		"Sub":  {{ChildTable: "Sub", ParentTable: "Item", Column: types.ColParentID}},
	}
}

func rowCount(t *testing.T, q Querier, table string) int {
	t.Helper()
	rows, err := q.QueryContext(context.Background(), `SELECT COUNT(*) FROM `+quote(table))
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
	var n int
	require.NoError(t, rows.Scan(&n))
	return n
}

func TestAddForeignKeys(t *testing.T) {
	ctx := context.Background()
	store, s := seedTree(t)

	n, err := AddForeignKeys(ctx, s, treeRelations(), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, s.InTx())
	assert.Equal(t, 1, foreignKeysSetting(t, s))

	for child, parent := range map[string]string{"Item": "Root", "Sub": "Item"} {
		fks, err := ForeignKeys(ctx, store.DB(), child)
		require.NoError(t, err)
		require.Len(t, fks, 1, child)
		assert.Equal(t, ForeignKey{Table: child, From: types.ColParentID, RefTable: parent, To: types.ColID, OnDelete: "CASCADE"}, fks[0])
	}

	assert.Equal(t, 2, rowCount(t, s, "Item"))
	assert.Equal(t, 1, rowCount(t, s, "Sub"))
	assert.Equal(t, append(append([]string{}, types.ReservedColumns...), "name"), columnNames(t, s, "Item"))

	info, err := TableInfo(ctx, s, "Item")
	require.NoError(t, err)
	assert.True(t, info[0].PrimaryKey)
	assert.True(t, info[2].NotNull)

	tables, err := Tables(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"Item", "Root", "Sub"}, tables)

	var idx int
	require.NoError(t, store.DB().QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name IN ('ix_Item__parent', 'ix_Sub__parent')`).Scan(&idx))
	assert.Equal(t, 2, idx)
}

func TestAddForeignKeysCascades(t *testing.T) {
	ctx := context.Background()
	_, s := seedTree(t)
	_, err := AddForeignKeys(ctx, s, treeRelations(), nil)
	require.NoError(t, err)

	_, err = s.ExecContext(ctx, `DELETE FROM "Item" WHERE "name" = 'one'`)
	require.NoError(t, err)
	assert.Equal(t, 1, rowCount(t, s, "Item"))
	assert.Zero(t, rowCount(t, s, "Sub"))

	_, err = s.ExecContext(ctx, `INSERT INTO "Item" ("_Id", "_ParentId", "_Path") VALUES ('x', 'Root_404', 'Root/Item')`)
	assert.Error(t, err, "orphan rows are rejected once constraints exist")
}

func TestAddForeignKeysNothingToDo(t *testing.T) {
	_, s := openTestSession(t)
	n, err := AddForeignKeys(context.Background(), s, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAddForeignKeysSkipsMissingTables(t *testing.T) {
	_, s := seedTree(t)
	rels := treeRelations()
	rels["Ghost"] = []types.Relationship{{ChildTable: "Ghost", ParentTable: "Root", Column: types.ColParentID}}

	n, err := AddForeignKeys(context.Background(), s, rels, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAddForeignKeysRollsBack(t *testing.T) {
	ctx := context.Background()
	store, s := seedTree(t)
	rels := treeRelations()
	rels["Sub"] = append(rels["Sub"], types.Relationship{ChildTable: "Sub", ParentTable: "Item", Column: "no_such_column"})

	_, err := AddForeignKeys(ctx, s, rels, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrFinalize)
	assert.False(t, s.InTx())
	assert.Equal(t, 1, foreignKeysSetting(t, s))

	// Item was rebuilt before Sub failed; the whole pass is undone.
	fks, err := ForeignKeys(ctx, store.DB(), "Item")
	require.NoError(t, err)
	assert.Empty(t, fks)
	assert.Equal(t, 2, rowCount(t, s, "Item"))
	assert.Equal(t, 1, rowCount(t, s, "Sub"))
}

func TestAddForeignKeysKeepsTablesNamedLikeSibling(t *testing.T) {
	ctx := context.Background()
	store, s := seedTree(t)

	_, err := s.ExecContext(ctx, `CREATE TABLE "Item__fk_rebuild" ("keep" TEXT)`)
	require.NoError(t, err)
	_, err = s.ExecContext(ctx, `INSERT INTO "Item__fk_rebuild" VALUES ('me')`)
	require.NoError(t, err)
	_, err = s.ExecContext(ctx, `CREATE VIEW "Item__fk_rebuild1" AS SELECT 1`)
	require.NoError(t, err)

	n, err := AddForeignKeys(ctx, s, treeRelations(), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, 1, rowCount(t, s, "Item__fk_rebuild"))
	exists, err := TableExists(ctx, s, "Item__fk_rebuild2")
	require.NoError(t, err)
	assert.False(t, exists)

	fks, err := ForeignKeys(ctx, store.DB(), "Item")
	require.NoError(t, err)
	require.Len(t, fks, 1)
	assert.Equal(t, "Root", fks[0].RefTable)
	assert.Equal(t, 2, rowCount(t, s, "Item"))
}
