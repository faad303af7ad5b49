package tree

import (
	"slices"
	"strings"

	"github.com/mlcomp/mlboard/pkg/storage"
)

// Flatten walks nodes depth-first and collects every leaf into the group
// of its parent path. Root-level leaves land in the group with the empty
// path. Groups come back in discovery order; use storage.SortGroups to
// order them.
func Flatten(nodes []*Node) []*storage.Group {
	f := &flattener{groups: make(map[string]*storage.Group, 16)}
	f.walk(nil, nodes)

	return f.order
}

type flattener struct {
	groups map[string]*storage.Group
	order  []*storage.Group
}

func (f *flattener) walk(parent []string, nodes []*Node) {
	for _, n := range nodes {
		switch n.Kind {
		case KindDirectory:
			f.walk(append(slices.Clip(parent), n.Name), n.Children)
		case KindLeaf:
			f.group(parent).Append(storage.NewRecord(parent, n.Name, n.Data))
		}
	}
}

func (f *flattener) group(parent []string) *storage.Group {
	key := strings.Join(parent, "/")

	g, ok := f.groups[key]
	if !ok {
		g = storage.NewGroup(key)
		f.groups[key] = g
		f.order = append(f.order, g)
	}

	return g
}
