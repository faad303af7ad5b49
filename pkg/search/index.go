package search

import (
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/text/cases"

	"github.com/mlcomp/mlboard/pkg/storage"
)

// Index is an immutable fuzzy search index over a set of records. It is
// built once per record corpus and may be searched concurrently.
type Index struct {
	opts    Options
	dmp     *diffmatchpatch.DiffMatchPatch
	entries []entry
}

type entry struct {
	record *storage.Record
	fields []field
}

// field is one searchable, case-folded value of a record.
type field struct {
	text   string
	tokens []string
}

// Match is one search hit. Lower scores are better.
type Match struct {
	Record *storage.Record
	Score  float64
}

// NewIndex builds an index over records. The records are referenced, not
// copied.
func NewIndex(records []*storage.Record, opts Options) *Index {
	fold := cases.Fold()
	idx := &Index{
		opts:    opts,
		dmp:     newMatcher(opts),
		entries: make([]entry, 0, len(records)),
	}

	for _, r := range records {
		e := entry{record: r}

		for _, key := range opts.Keys {
			for _, value := range fieldValues(r, key) {
				if value == "" {
					continue
				}

				e.fields = append(e.fields, newField(fold.String(value)))
			}
		}

		idx.entries = append(idx.entries, e)
	}

	return idx
}

// Len returns the number of indexed records.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Options returns the options the index was built with.
func (idx *Index) Options() Options {
	return idx.opts
}

// Search returns the records matching query, best match first. Records
// with equal scores keep their index order. An empty query or an empty
// corpus yields no matches.
func (idx *Index) Search(query string) []Match {
	if len(idx.entries) == 0 {
		return nil
	}

	pattern, tokens := idx.prepare(query)
	if pattern == "" {
		return nil
	}

	var matches []Match

	for _, e := range idx.entries {
		if s, ok := idx.matchEntry(pattern, tokens, e); ok {
			matches = append(matches, Match{Record: e.record, Score: s})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score < matches[j].Score
	})

	return matches
}

// Matches returns the set of records matching query.
func (idx *Index) Matches(query string) map[*storage.Record]struct{} {
	found := idx.Search(query)
	set := make(map[*storage.Record]struct{}, len(found))

	for _, m := range found {
		set[m.Record] = struct{}{}
	}

	return set
}

func (idx *Index) prepare(query string) (string, []string) {
	folded := strings.TrimSpace(cases.Fold().String(query))
	pattern := truncate(folded, idx.opts.MaxPatternLength)

	if !idx.opts.Tokenize {
		return pattern, nil
	}

	words := strings.Fields(folded)
	tokens := make([]string, 0, len(words))

	for _, w := range words {
		tokens = append(tokens, truncate(w, idx.opts.MaxPatternLength))
	}

	return pattern, tokens
}

// matchEntry reports whether any field of e matches and the best score.
func (idx *Index) matchEntry(pattern string, tokens []string, e entry) (float64, bool) {
	best := noMatch
	matched := false

	for _, f := range e.fields {
		s, ok := idx.matchField(pattern, tokens, f)
		if !ok {
			continue
		}

		matched = true

		if s < best {
			best = s
		}
	}

	return best, matched
}

// matchField matches the whole pattern against the whole field text and,
// when tokenizing, every query token against every text token.
func (idx *Index) matchField(pattern string, tokens []string, f field) (float64, bool) {
	best, matched := idx.score(pattern, f.text)

	for _, tok := range tokens {
		for _, word := range f.tokens {
			s, ok := idx.score(tok, word)
			if !ok {
				continue
			}

			if !matched || s < best {
				best = s
			}

			matched = true
		}
	}

	return best, matched
}

func newField(folded string) field {
	return field{text: folded, tokens: strings.Fields(folded)}
}

func fieldValues(r *storage.Record, key string) []string {
	switch key {
	case KeyName:
		return []string{r.Name}
	case KeyPath:
		return []string{r.Path()}
	case KeyFullPath:
		return []string{r.FullPath()}
	case KeyPathSegments:
		return r.PathSegments()
	case KeyDescription:
		return []string{r.Description}
	case KeyTags:
		return r.Tags
	case KeyHostname:
		if r.RunningStatus != nil {
			return []string{r.RunningStatus.Hostname}
		}
	}

	return nil
}
