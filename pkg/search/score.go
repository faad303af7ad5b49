package search

import (
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// noMatch is the score of a complete miss.
const noMatch = 1.0

// maxPatternBits is the longest pattern, in bytes, handed to the bitap
// matcher.
const maxPatternBits = 32

func newMatcher(opts Options) *diffmatchpatch.DiffMatchPatch {
	dmp := diffmatchpatch.New()
	dmp.MatchThreshold = opts.Threshold
	dmp.MatchDistance = opts.Distance
	dmp.MatchMaxBits = maxPatternBits

	return dmp
}

// score locates pattern inside text with the bitap matcher and rates the
// hit: edit errors over the matched window per pattern byte, plus the
// distance of the hit from the expected location scaled by Distance. Lower
// is better and 0 is an exact match at the expected location.
func (idx *Index) score(pattern, text string) (float64, bool) {
	if pattern == "" || utf8.RuneCountInString(pattern) < idx.opts.MinMatchCharLength {
		return noMatch, false
	}

	loc := idx.dmp.MatchMain(text, pattern, idx.opts.Location)
	if loc < 0 {
		return noMatch, false
	}

	end := min(loc+len(pattern), len(text))
	errs := idx.dmp.DiffLevenshtein(idx.dmp.DiffMain(pattern, text[loc:end], false))

	return float64(errs)/float64(len(pattern)) + idx.proximity(loc, len(text)), true
}

// proximity is the location penalty of a hit starting at start.
func (idx *Index) proximity(start, textLen int) float64 {
	off := start - min(idx.opts.Location, textLen)
	if off < 0 {
		off = -off
	}

	if off == 0 {
		return 0
	}

	if idx.opts.Distance == 0 {
		return noMatch
	}

	return float64(off) / float64(idx.opts.Distance)
}

// truncate cuts s to at most limit runes and maxPatternBits bytes without
// splitting a rune.
func truncate(s string, limit int) string {
	n := 0

	for i := 0; i < len(s); n++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		if (limit > 0 && n == limit) || i+size > maxPatternBits {
			return s[:i]
		}

		i += size
	}

	return s
}
