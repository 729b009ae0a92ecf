package sqlite

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/xmlshred/pkg/types"
)

func newItemTable(t *testing.T, cols ...string) (*Store, *Session) {
	t.Helper()
	ctx := context.Background()
	store, s := openTestSession(t)
	r := NewRegistry(s, nil)
	require.NoError(t, r.EnsureTable(ctx, "Item"))
	require.NoError(t, r.EnsureColumns(ctx, "Item", cols))
	return store, s
}

func TestNextID(t *testing.T) {
	m := NewRows(nil)
	assert.Equal(t, "Item_1", m.NextID("Item"))
	assert.Equal(t, "Item_2", m.NextID("Item"))
	assert.Equal(t, "Item_3", m.NextID("item"), "counters are shared case-insensitively")
	assert.Equal(t, "Item_4", m.NextID("ITEM"), "the first spelling names every id")
	assert.Equal(t, "Order_1", m.NextID("Order"))
}

func TestInsertAndUpdate(t *testing.T) {
	ctx := context.Background()
	store, s := newItemTable(t, "a", "b")
	m := NewRows(s)

	id, err := m.Insert(ctx, "Item", map[string]any{
		types.ColParentID: nil,
		types.ColPath:     "Root/Item",
		types.ColID:       "ignored",
		"A":               "1",
		"a":               "2",
	})
	require.NoError(t, err)
	assert.Equal(t, "Item_1", id)
	assert.Equal(t, int64(1), m.Inserted())

	var (
		parent sql.NullString
		path   string
		a      string
	)
	require.NoError(t, store.DB().QueryRow(
		`SELECT "_ParentId", "_Path", "a" FROM "Item" WHERE "_Id" = ?`, id).Scan(&parent, &path, &a))
	assert.False(t, parent.Valid)
	assert.Equal(t, "Root/Item", path)
	assert.Equal(t, "2", a, "lexically last key wins on case-insensitive collision")

	require.NoError(t, m.Update(ctx, "Item", id, map[string]any{"b": "x", types.ColValue: "text"}))
	require.NoError(t, m.Update(ctx, "Item", id, nil))
	require.NoError(t, m.Update(ctx, "Item", "", map[string]any{"b": "ignored"}))

	var b, v string
	require.NoError(t, store.DB().QueryRow(
		`SELECT "b", "_Value" FROM "Item" WHERE "_Id" = ?`, id).Scan(&b, &v))
	assert.Equal(t, "x", b)
	assert.Equal(t, "text", v)
}

func TestRowMutationErrors(t *testing.T) {
	ctx := context.Background()
	_, s := newItemTable(t)
	m := NewRows(s)

	_, err := m.Insert(ctx, "Item", map[string]any{types.ColPath: "Item", "missing": "x"})
	assert.ErrorIs(t, err, types.ErrRowMutation)

	_, err = m.Insert(ctx, "Item", map[string]any{"only": "x"})
	assert.ErrorIs(t, err, types.ErrRowMutation)

	err = m.Update(ctx, "Item", "Item_9", map[string]any{"missing": "x"})
	assert.ErrorIs(t, err, types.ErrRowMutation)
	assert.Zero(t, m.Inserted())
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store, s := newItemTable(t)
	m := NewRows(s)

	id, err := m.Insert(ctx, "Item", map[string]any{types.ColPath: "Item"})
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, "Item", id))
	require.NoError(t, m.Delete(ctx, "Item", ""))

	var n int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM "Item"`).Scan(&n))
	assert.Zero(t, n)
}

func TestColumnsOf(t *testing.T) {
	cols, vals := columnsOf(map[string]any{
		"b":         2,
		"a-x":       1,
		types.ColID: "skip",
		"_id":       "skip too",
	}, types.ColID)
	assert.Equal(t, []string{"a_x", "b"}, cols)
	assert.Equal(t, []any{1, 2}, vals)
}
