package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mesh-intelligence/xmlshred/pkg/types"
)

func columnNames(t *testing.T, q Querier, table string) []string {
	t.Helper()
	info, err := TableInfo(context.Background(), q, table)
	require.NoError(t, err)
	names := make([]string, len(info))
	for i, c := range info {
		names[i] = c.Name
	}
	return names
}

func TestEnsureTable(t *testing.T) {
	ctx := context.Background()
	store, s := openTestSession(t)
	r := NewRegistry(s, zaptest.NewLogger(t))

	require.NoError(t, r.EnsureTable(ctx, "Item"))
	require.NoError(t, r.EnsureTable(ctx, "item"))
	require.NoError(t, r.EnsureTable(ctx, "Order"))

	assert.Equal(t, []string{"Item", "Order"}, r.Created())
	assert.Equal(t, 2, r.Known())
	assert.Equal(t, types.ReservedColumns, columnNames(t, store.DB(), "Item"))

	info, err := TableInfo(ctx, store.DB(), "Item")
	require.NoError(t, err)
	assert.True(t, info[0].PrimaryKey)
	assert.True(t, info[2].NotNull, "_Path is NOT NULL")
	assert.False(t, info[1].NotNull, "_ParentId is nullable")

	var idx int
	require.NoError(t, store.DB().QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND tbl_name = 'Order' AND name = 'ix_Order__parent'`).Scan(&idx))
	assert.Equal(t, 1, idx)
}

func TestEnsureTableFindsExisting(t *testing.T) {
	ctx := context.Background()
	_, s := openTestSession(t)

	first := NewRegistry(s, nil)
	require.NoError(t, first.EnsureTable(ctx, "Item"))
	require.NoError(t, first.EnsureColumns(ctx, "Item", []string{"a"}))

	second := NewRegistry(s, nil)
	require.NoError(t, second.EnsureTable(ctx, "ITEM"))
	assert.Empty(t, second.Created())

	require.NoError(t, second.EnsureColumns(ctx, "Item", []string{"A", "b"}))
	assert.True(t, second.HasColumn("Item", "a"))
	assert.True(t, second.HasColumn("item", "B"))
	assert.Equal(t, append(append([]string{}, types.ReservedColumns...), "a", "b"), columnNames(t, s, "Item"))
}

func TestEnsureColumnsIdempotent(t *testing.T) {
	ctx := context.Background()
	_, s := openTestSession(t)
	r := NewRegistry(s, nil)
	require.NoError(t, r.EnsureTable(ctx, "Item"))

	for range 3 {
		require.NoError(t, r.EnsureColumns(ctx, "Item", []string{"name", "Name", "odd name", "_Value"}))
	}
	assert.Equal(t, append(append([]string{}, types.ReservedColumns...), "name", "odd_name"), columnNames(t, s, "Item"))
}

func TestEnsureColumnsMissingTable(t *testing.T) {
	ctx := context.Background()
	_, s := openTestSession(t)
	r := NewRegistry(s, nil)

	err := r.EnsureColumns(ctx, "Ghost", []string{"a"})
	assert.ErrorIs(t, err, types.ErrSchemaMutation)
}

func TestForgetAfterRollback(t *testing.T) {
	ctx := context.Background()
	_, s := openTestSession(t)
	r := NewRegistry(s, nil)

	require.NoError(t, s.Begin(ctx))
	require.NoError(t, r.EnsureTable(ctx, "Item"))
	require.NoError(t, s.Rollback())
	r.Forget()

	assert.Zero(t, r.Known())
	require.NoError(t, r.EnsureTable(ctx, "Item"))
	exists, err := TableExists(ctx, s, "Item")
	require.NoError(t, err)
	assert.True(t, exists)
}
