package filter_test

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlcomp/mlboard/pkg/filter"
	"github.com/mlcomp/mlboard/pkg/search"
	"github.com/mlcomp/mlboard/pkg/storage"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func testGroups() []*storage.Group {
	runs := storage.NewGroup("runs")
	runs.Append(&storage.Record{
		ParentPath: []string{"runs"}, Name: "train-a", IsActive: true, UpdateTime: 3000,
	})
	runs.Append(&storage.Record{
		ParentPath: []string{"runs"}, Name: "train-b", HasError: true, UpdateTime: 2000,
	})
	runs.Append(&storage.Record{
		ParentPath: []string{"runs"}, Name: "train-c", UpdateTime: 1000,
	})

	archive := storage.NewGroup("archive")
	archive.Append(&storage.Record{
		ParentPath: []string{"archive"}, Name: "old-baseline", Tags: []string{"baseline"},
	})

	return []*storage.Group{runs, archive}
}

func itemNames(groups []*storage.Group) map[string][]string {
	out := make(map[string][]string, len(groups))
	for _, g := range groups {
		for _, r := range g.Items {
			out[g.Path] = append(out[g.Path], r.Name)
		}
	}

	return out
}

func TestStatusKey(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{in: "", expected: ""},
		{in: "all", expected: "all"},
		{in: "active", expected: "active"},
		{in: "error+active", expected: "active+error"},
		{in: "success,error", expected: "error+success"},
		{in: "Success+ACTIVE+success", expected: "active+success"},
		{in: "success+error+active", expected: "active+error+success"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, filter.StatusKey(tt.in))
		})
	}
}

func TestStatusKeys(t *testing.T) {
	assert.Equal(t, []string{
		"active",
		"active+error",
		"active+error+success",
		"active+success",
		"error",
		"error+success",
		"success",
	}, filter.StatusKeys())
}

func TestEngine_Identity(t *testing.T) {
	groups := testGroups()
	e := filter.NewEngine(testLogger(), groups, search.DefaultOptions())

	for _, status := range []string{"", "all", "active+error+success", "bogus"} {
		t.Run(status, func(t *testing.T) {
			out := e.Filter(status, "  ")
			require.Len(t, out, len(groups))

			for i := range groups {
				assert.Same(t, groups[i], out[i])
			}
		})
	}
}

func TestEngine_StatusCombinations(t *testing.T) {
	e := filter.NewEngine(testLogger(), testGroups(), search.DefaultOptions())

	tests := []struct {
		status   string
		expected map[string][]string
	}{
		{
			status:   "active",
			expected: map[string][]string{"runs": {"train-a"}},
		},
		{
			status:   "error",
			expected: map[string][]string{"runs": {"train-b"}},
		},
		{
			status: "success",
			expected: map[string][]string{
				"runs":    {"train-c"},
				"archive": {"old-baseline"},
			},
		},
		{
			status:   "active+error",
			expected: map[string][]string{"runs": {"train-a", "train-b"}},
		},
		{
			status: "active+success",
			expected: map[string][]string{
				"runs":    {"train-a", "train-c"},
				"archive": {"old-baseline"},
			},
		},
		{
			status: "error+success",
			expected: map[string][]string{
				"runs":    {"train-b", "train-c"},
				"archive": {"old-baseline"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.expected, itemNames(e.Filter(tt.status, "")))
		})
	}
}

func TestEngine_FilteredAggregates(t *testing.T) {
	groups := testGroups()
	e := filter.NewEngine(testLogger(), groups, search.DefaultOptions())

	out := e.Filter("active+error", "")
	require.Len(t, out, 1)

	g := out[0]
	assert.Equal(t, "runs", g.Path)
	assert.Len(t, g.Items, 2)
	assert.Equal(t, 1, g.ActiveCount)
	assert.Equal(t, 1, g.ErrorCount)
	assert.Equal(t, 0, g.SuccessCount)

	// Source groups are untouched.
	assert.Len(t, groups[0].Items, 3)
	assert.Equal(t, 1, groups[0].SuccessCount)
}

func TestEngine_Query(t *testing.T) {
	e := filter.NewEngine(testLogger(), testGroups(), search.DefaultOptions())

	t.Run("query alone", func(t *testing.T) {
		assert.Equal(t,
			map[string][]string{"archive": {"old-baseline"}},
			itemNames(e.Filter("", "baseline")),
		)
	})

	t.Run("query and status are combined", func(t *testing.T) {
		assert.Empty(t, e.Filter("active", "baseline"))
		assert.Equal(t,
			map[string][]string{"archive": {"old-baseline"}},
			itemNames(e.Filter("success", "baseline")),
		)
	})

	t.Run("no match drops every group", func(t *testing.T) {
		assert.Empty(t, e.Filter("", "xylophone"))
	})
}

func TestEngine_EmptyGroups(t *testing.T) {
	e := filter.NewEngine(testLogger(), nil, search.DefaultOptions())

	assert.Empty(t, e.Filter("active", "anything"))
	assert.Empty(t, e.Filter("", ""))
}
