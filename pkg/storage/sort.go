package storage

import (
	"cmp"
	"slices"
)

// SortGroups orders groups by update time (newest first) and then by path,
// and orders the items of every group by create time (newest first) and
// then by name. Both orders are total, so the result does not depend on
// the input order and sorting twice is a no-op.
func SortGroups(groups []*Group) {
	slices.SortStableFunc(groups, compareGroups)

	for _, g := range groups {
		slices.SortStableFunc(g.Items, compareRecords)
	}
}

func compareGroups(a, b *Group) int {
	if c := cmp.Compare(b.UpdateTime, a.UpdateTime); c != 0 {
		return c
	}

	return cmp.Compare(a.Path, b.Path)
}

func compareRecords(a, b *Record) int {
	if c := cmp.Compare(b.CreateTime, a.CreateTime); c != 0 {
		return c
	}

	return cmp.Compare(a.Name, b.Name)
}
