package filter

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mlcomp/mlboard/pkg/search"
	"github.com/mlcomp/mlboard/pkg/storage"
)

// Engine filters one version of the storage groups. It owns a search
// index built when the engine is created; a new fetch needs a new engine.
// An Engine never modifies the groups it was built from and is safe for
// concurrent use.
type Engine struct {
	log    logrus.FieldLogger
	groups []*storage.Group
	index  *search.Index
}

// NewEngine builds an engine and its search index over groups.
func NewEngine(
	log logrus.FieldLogger,
	groups []*storage.Group,
	opts search.Options,
) *Engine {
	return &Engine{
		log:    log.WithField("component", "filter"),
		groups: groups,
		index:  search.NewIndex(storage.Records(groups), opts),
	}
}

// Groups returns the unfiltered groups.
func (e *Engine) Groups() []*storage.Group {
	return e.groups
}

// Index returns the search index of the engine.
func (e *Engine) Index() *search.Index {
	return e.index
}

// Filter returns the groups restricted to records matching both the
// status filter and the fuzzy query. Without any filter the engine's
// slice is returned as is. Otherwise every group is copied with only the
// matching records and empty groups are dropped. An unknown status logs a
// warning and keeps every status.
func (e *Engine) Filter(status, query string) []*storage.Group {
	mask, key, ok := lookupStatus(status)
	if !ok {
		e.log.WithField("status", key).
			Warn("Ignoring unknown status filter")

		mask = allStates
	}

	query = strings.TrimSpace(query)

	if mask == allStates && query == "" {
		return e.groups
	}

	matchStatus := func(r *storage.Record) bool {
		return r.State()&mask != 0
	}

	matchQuery := func(*storage.Record) bool { return true }

	if query != "" {
		matched := e.index.Matches(query)
		matchQuery = func(r *storage.Record) bool {
			_, ok := matched[r]

			return ok
		}
	}

	keep := func(r *storage.Record) bool {
		return matchStatus(r) && matchQuery(r)
	}

	out := make([]*storage.Group, 0, len(e.groups))

	for _, g := range e.groups {
		if fg := g.Filter(keep); fg.Len() > 0 {
			out = append(out, fg)
		}
	}

	return out
}
