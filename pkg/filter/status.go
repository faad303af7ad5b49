package filter

import (
	"slices"
	"strings"

	"github.com/mlcomp/mlboard/pkg/storage"
)

// StatusAll is the status key that keeps every record.
const StatusAll = "all"

// statusSets maps every canonical status key to the states it keeps.
var statusSets = map[string]storage.State{
	"active":               storage.StateActive,
	"error":                storage.StateError,
	"success":              storage.StateSuccess,
	"active+error":         storage.StateActive | storage.StateError,
	"active+success":       storage.StateActive | storage.StateSuccess,
	"error+success":        storage.StateError | storage.StateSuccess,
	"active+error+success": storage.StateActive | storage.StateError | storage.StateSuccess,
}

// allStates is the mask of every state.
const allStates = storage.StateActive | storage.StateError | storage.StateSuccess

// StatusKey canonicalizes a status filter: names may be separated by "+"
// or ",", come in any order and repeat. The result is the sorted,
// de-duplicated names joined with "+". An empty input yields "".
func StatusKey(status string) string {
	parts := strings.FieldsFunc(strings.ToLower(status), func(r rune) bool {
		return r == '+' || r == ',' || r == ' '
	})

	return JoinStatuses(parts)
}

// JoinStatuses builds the canonical key from a list of state names, as
// stored in the status filter preference.
func JoinStatuses(statuses []string) string {
	names := slices.Clone(statuses)
	slices.Sort(names)

	return strings.Join(slices.Compact(names), "+")
}

// lookupStatus resolves a status filter to a state mask. Unset and "all"
// resolve to every state. ok is false for unknown keys.
func lookupStatus(status string) (mask storage.State, key string, ok bool) {
	key = StatusKey(status)
	if key == "" || key == StatusAll {
		return allStates, key, true
	}

	mask, ok = statusSets[key]

	return mask, key, ok
}

// StatusKeys returns every recognized canonical status key, sorted.
func StatusKeys() []string {
	keys := make([]string, 0, len(statusSets))
	for k := range statusSets {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}
