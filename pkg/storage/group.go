package storage

// Group holds all records that share one parent path. Aggregates are kept
// up to date by Append; a group handed out to callers is treated as
// read-only and Filter builds a fresh copy instead of mutating it.
type Group struct {
	Path         string    `json:"path" yaml:"path"`
	Items        []*Record `json:"items" yaml:"items"`
	UpdateTime   int64     `json:"update_time" yaml:"update_time"`
	ActiveCount  int       `json:"active_count" yaml:"active_count"`
	ErrorCount   int       `json:"error_count" yaml:"error_count"`
	SuccessCount int       `json:"success_count" yaml:"success_count"`
}

// NewGroup creates an empty group for path.
func NewGroup(path string) *Group {
	return &Group{
		Path:  path,
		Items: make([]*Record, 0, 4),
	}
}

// Append adds r to the group and updates the aggregates.
func (g *Group) Append(r *Record) {
	g.Items = append(g.Items, r)
	g.UpdateTime = max(g.UpdateTime, r.UpdateTime)

	switch r.State() {
	case StateActive:
		g.ActiveCount++
	case StateError:
		g.ErrorCount++
	default:
		g.SuccessCount++
	}
}

// Filter returns a new group holding the records for which keep returns
// true, in the same order. Aggregates of the copy are computed from
// scratch. The records themselves are shared.
func (g *Group) Filter(keep func(*Record) bool) *Group {
	out := NewGroup(g.Path)

	for _, r := range g.Items {
		if keep(r) {
			out.Append(r)
		}
	}

	return out
}

// Len returns the number of records in the group.
func (g *Group) Len() int {
	return len(g.Items)
}

// Records returns every record of groups in group order.
func Records(groups []*Group) []*Record {
	total := 0
	for _, g := range groups {
		total += len(g.Items)
	}

	records := make([]*Record, 0, total)
	for _, g := range groups {
		records = append(records, g.Items...)
	}

	return records
}
