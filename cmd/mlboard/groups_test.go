package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mlcomp/mlboard/pkg/storage"
)

func testGroups(now time.Time) []*storage.Group {
	g := storage.NewGroup("vision")
	g.Append(&storage.Record{
		ParentPath: []string{"vision"},
		Name:       "resnet50",
		Tags:       []string{"baseline", "gpu"},
		IsActive:   true,
		UpdateTime: now.Add(-5 * time.Minute).UnixMilli(),
	})
	g.Append(&storage.Record{
		ParentPath: []string{"vision"},
		Name:       "vgg16",
		HasError:   true,
	})

	return []*storage.Group{g}
}

func TestHumanSince(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "-", humanSince(now, 0))
	assert.Equal(t, "30 seconds ago", humanSince(now, now.Add(-30*time.Second).UnixMilli()))
	assert.Equal(t, "5 minutes ago", humanSince(now, now.Add(-5*time.Minute).UnixMilli()))
	assert.Equal(t, "in 2 seconds", humanSince(now, now.Add(2*time.Second).UnixMilli()))
}

func TestPrintGroups_Table(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, printGroups(&buf, "table", testGroups(now), now))

	assert.NotContains(t, buf.String(), "\x1b[", "no colors outside a terminal")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Index(lines[0], "STATE"), strings.Index(lines[1], "active"))

	assert.Equal(t, []string{"PATH", "NAME", "STATE", "UPDATED", "TAGS"}, strings.Fields(lines[0]))
	assert.Equal(t,
		[]string{"/vision/resnet50", "resnet50", "active", "5", "minutes", "ago", "baseline,gpu"},
		strings.Fields(lines[1]),
	)
	assert.Equal(t, []string{"/vision/vgg16", "vgg16", "error", "-"}, strings.Fields(lines[2]))
}

func TestPrintGroups_JSON(t *testing.T) {
	now := time.Now()

	var buf bytes.Buffer
	require.NoError(t, printGroups(&buf, "json", testGroups(now), now))

	var out []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 1)

	assert.Equal(t, "vision", out[0]["path"])
	assert.EqualValues(t, 1, out[0]["active_count"])

	items, ok := out[0]["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)

	first, ok := items[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/vision/resnet50", first["full_path"])
}

func TestPrintGroups_YAML(t *testing.T) {
	now := time.Now()

	var buf bytes.Buffer
	require.NoError(t, printGroups(&buf, "yaml", testGroups(now), now))

	var out []struct {
		Path  string `yaml:"path"`
		Items []struct {
			Name  string `yaml:"name"`
			State string `yaml:"state"`
		} `yaml:"items"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &out))

	require.Len(t, out, 1)
	assert.Equal(t, "vision", out[0].Path)
	require.Len(t, out[0].Items, 2)
	assert.Equal(t, "error", out[0].Items[1].State)
}

func TestPrintGroups_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printGroups(&buf, "json", nil, time.Now()))
	assert.Equal(t, "[]\n", buf.String())
}
