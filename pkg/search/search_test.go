package search_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlcomp/mlboard/pkg/search"
	"github.com/mlcomp/mlboard/pkg/storage"
)

func corpus() []*storage.Record {
	return []*storage.Record{
		{
			ParentPath:  []string{"vision", "cifar"},
			Name:        "resnet50",
			Description: "ResNet baseline on ImageNet",
			Tags:        []string{"baseline", "imagenet-21k"},
		},
		{
			ParentPath: []string{"nlp"},
			Name:       "bert-large",
			Tags:       []string{"transformer"},
			IsActive:   true,
			RunningStatus: &storage.RunningStatus{
				Hostname: "gpu-node-07",
			},
		},
		{
			Name:        "scratch",
			Description: "quick sanity check",
		},
	}
}

func names(matches []search.Match) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Record.Name)
	}

	return out
}

func TestIndex_Search(t *testing.T) {
	idx := search.NewIndex(corpus(), search.DefaultOptions())
	require.Equal(t, 3, idx.Len())

	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{name: "exact tag", query: "transformer", expected: []string{"bert-large"}},
		{name: "exact name", query: "scratch", expected: []string{"scratch"}},
		{name: "case insensitive", query: "RESNET50", expected: []string{"resnet50"}},
		{name: "word inside description", query: "imagenet", expected: []string{"resnet50"}},
		{name: "path segment", query: "cifar", expected: []string{"resnet50"}},
		{name: "hostname", query: "gpu-node-07", expected: []string{"bert-large"}},
		{name: "small typo in long word", query: "imagenet21k", expected: []string{"resnet50"}},
		{name: "any query token", query: "zzz sanity", expected: []string{"scratch"}},
		{name: "no approximate match", query: "xylophone", expected: []string{}},
		{name: "match too far from start", query: "net50", expected: []string{}},
		{name: "empty query", query: "   ", expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, names(idx.Search(tt.query)))
		})
	}
}

func TestIndex_EmptyCorpus(t *testing.T) {
	idx := search.NewIndex(nil, search.DefaultOptions())

	assert.Zero(t, idx.Len())
	assert.Empty(t, idx.Search("anything"))
	assert.Empty(t, idx.Matches("anything"))
}

func TestIndex_Tunables(t *testing.T) {
	t.Run("larger distance accepts later matches", func(t *testing.T) {
		opts := search.DefaultOptions()
		opts.Distance = 1000

		idx := search.NewIndex(corpus(), opts)
		assert.Equal(t, []string{"resnet50"}, names(idx.Search("net50")))
	})

	t.Run("keys restrict searched fields", func(t *testing.T) {
		opts := search.DefaultOptions()
		opts.Keys = []string{search.KeyName}

		idx := search.NewIndex(corpus(), opts)
		assert.Empty(t, idx.Search("transformer"))
		assert.Equal(t, []string{"bert-large"}, names(idx.Search("bert-large")))
	})

	t.Run("min match length", func(t *testing.T) {
		opts := search.DefaultOptions()
		opts.MinMatchCharLength = 4

		idx := search.NewIndex(corpus(), opts)
		assert.Empty(t, idx.Search("nlp"))
	})

	t.Run("without tokenize only whole fields are compared", func(t *testing.T) {
		opts := search.DefaultOptions()
		opts.Tokenize = false

		idx := search.NewIndex(corpus(), opts)
		assert.Empty(t, idx.Search("sanity"))
		assert.Equal(t, []string{"scratch"}, names(idx.Search("quick sanity check")))
	})

	t.Run("long patterns are truncated", func(t *testing.T) {
		opts := search.DefaultOptions()
		opts.MaxPatternLength = 6

		idx := search.NewIndex(corpus(), opts)
		assert.Equal(t, []string{"resnet50"}, names(idx.Search("resnetXYZ")))
	})
}

func TestIndex_ExactMatchesRankFirst(t *testing.T) {
	records := []*storage.Record{
		{Name: "xbaseline"},
		{Name: "baseline"},
	}

	idx := search.NewIndex(records, search.DefaultOptions())
	matches := idx.Search("baseline")

	require.Len(t, matches, 2)
	assert.Equal(t, "baseline", matches[0].Record.Name)
	assert.Zero(t, matches[0].Score)
}

func TestIndex_ApproximateHitsRankBehindExact(t *testing.T) {
	records := []*storage.Record{
		{Name: "imagenet-21k"},
		{Name: "imagenet21k"},
		{Name: "resnet50"},
		{Name: "transformer"},
	}

	idx := search.NewIndex(records, search.DefaultOptions())

	matches := idx.Search("imagenet21k")
	require.Len(t, matches, 2)
	assert.Equal(t, "imagenet21k", matches[0].Record.Name)
	assert.Zero(t, matches[0].Score)
	assert.Equal(t, "imagenet-21k", matches[1].Record.Name)
	assert.Positive(t, matches[1].Score)

	assert.Empty(t, idx.Search("net50"))
	assert.Empty(t, idx.Search("xylophone"))
}

func TestIndex_MultibytePatternsAreTruncated(t *testing.T) {
	name := strings.Repeat("é", 20)
	idx := search.NewIndex([]*storage.Record{{Name: name}}, search.DefaultOptions())

	matches := idx.Search(strings.Repeat("é", 40))
	require.Len(t, matches, 1)
	assert.Zero(t, matches[0].Score)
}

func TestOptions_Validate(t *testing.T) {
	valid := search.DefaultOptions()
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(o *search.Options)
	}{
		{name: "threshold above one", mutate: func(o *search.Options) { o.Threshold = 1.5 }},
		{name: "negative distance", mutate: func(o *search.Options) { o.Distance = -1 }},
		{name: "zero min length", mutate: func(o *search.Options) { o.MinMatchCharLength = 0 }},
		{name: "max below min", mutate: func(o *search.Options) { o.MaxPatternLength = 0 }},
		{name: "max above bitap width", mutate: func(o *search.Options) { o.MaxPatternLength = 64 }},
		{name: "no keys", mutate: func(o *search.Options) { o.Keys = nil }},
		{name: "unknown key", mutate: func(o *search.Options) { o.Keys = []string{"owner"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := search.DefaultOptions()
			tt.mutate(&o)
			assert.Error(t, o.Validate())
		})
	}
}
