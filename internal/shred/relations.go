package shred

import (
	"sort"
	"strings"

	"github.com/mesh-intelligence/xmlshred/pkg/types"
)

// relationTracker accumulates, per child table, the distinct parent tables
// observed during a run. It only grows.
type relationTracker struct {
	byChild map[string][]types.Relationship
	count   int
}

func newRelationTracker() *relationTracker {
	return &relationTracker{byChild: make(map[string][]types.Relationship)}
}

// Track records that rows of child link to rows of parent through column.
// Repeated observations are ignored.
func (t *relationTracker) Track(child, parent, column string) {
	key := strings.ToLower(child)
	for _, r := range t.byChild[key] {
		if strings.EqualFold(r.ParentTable, parent) && strings.EqualFold(r.Column, column) {
			return
		}
	}
	t.byChild[key] = append(t.byChild[key], types.Relationship{
		ChildTable:  child,
		ParentTable: parent,
		Column:      column,
	})
	t.count++
}

// ByChild returns the relationships grouped by child table name.
func (t *relationTracker) ByChild() map[string][]types.Relationship {
	out := make(map[string][]types.Relationship, len(t.byChild))
	for _, list := range t.byChild {
		if len(list) == 0 {
			continue
		}
		out[list[0].ChildTable] = append([]types.Relationship(nil), list...)
	}
	return out
}

// All returns every relationship sorted by child then parent table.
func (t *relationTracker) All() []types.Relationship {
	var all []types.Relationship
	for _, list := range t.byChild {
		all = append(all, list...)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].ChildTable != all[j].ChildTable {
			return all[i].ChildTable < all[j].ChildTable
		}
		return all[i].ParentTable < all[j].ParentTable
	})
	return all
}

// Len returns the number of distinct relationships.
func (t *relationTracker) Len() int {
	return t.count
}
