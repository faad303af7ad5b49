package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mlcomp/mlboard/pkg/filter"
	"github.com/mlcomp/mlboard/pkg/loader"
	"github.com/mlcomp/mlboard/pkg/source"
	"github.com/mlcomp/mlboard/pkg/storage"
)

var (
	groupsStatus string
	groupsQuery  string
	groupsOutput string
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Load the sources once and print the filtered groups",
	RunE:  runGroups,
}

func init() {
	groupsCmd.Flags().StringVar(&groupsStatus, "status", "",
		"status filter ("+strings.Join(filter.StatusKeys(), ", ")+")")
	groupsCmd.Flags().StringVar(&groupsQuery, "query", "", "fuzzy search query")
	groupsCmd.Flags().StringVarP(&groupsOutput, "output", "o", "table",
		"output format (table, json, yaml)")

	rootCmd.AddCommand(groupsCmd)
}

func runGroups(cmd *cobra.Command, args []string) error {
	switch groupsOutput {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unsupported output format %q", groupsOutput)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Logs would interleave with the printed groups.
	log.SetOutput(os.Stderr)

	sources, err := source.NewAll(log, cfg.Sources)
	if err != nil {
		return fmt.Errorf("creating sources: %w", err)
	}

	l := loader.New(log, sources, cfg.Tree, cfg.Loader.Concurrency)

	res, err := l.Load(context.Background())
	if err != nil {
		return fmt.Errorf("loading sources: %w", err)
	}

	for _, w := range res.Warnings {
		log.WithField("source", w.Source).
			WithField("path", w.Path).
			Warn(w.Reason)
	}

	groups := filter.NewEngine(log, res.Groups, cfg.Search).
		Filter(groupsStatus, groupsQuery)

	return printGroups(cmd.OutOrStdout(), groupsOutput, groups, time.Now())
}

func printGroups(
	w io.Writer,
	format string,
	groups []*storage.Group,
	now time.Time,
) error {
	if groups == nil {
		groups = []*storage.Group{}
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(groups)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		if err := enc.Encode(groups); err != nil {
			return err
		}

		return enc.Close()
	}

	return printTable(w, groups, now)
}

// printTable writes one line per record with the state column colored
// when w is a color terminal.
func printTable(w io.Writer, groups []*storage.Group, now time.Time) error {
	re := lipgloss.NewRenderer(w)
	header := re.NewStyle().Bold(true)
	states := map[storage.State]lipgloss.Style{
		storage.StateActive:  re.NewStyle().Foreground(lipgloss.Color("12")),
		storage.StateError:   re.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		storage.StateSuccess: re.NewStyle().Foreground(lipgloss.Color("10")),
	}

	rows := [][]string{{
		header.Render("PATH"),
		header.Render("NAME"),
		header.Render("STATE"),
		header.Render("UPDATED"),
		header.Render("TAGS"),
	}}

	for _, g := range groups {
		for _, r := range g.Items {
			rows = append(rows, []string{
				r.FullPath(),
				r.Name,
				states[r.State()].Render(r.State().String()),
				humanSince(now, r.UpdateTime),
				strings.Join(r.Tags, ","),
			})
		}
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder

	for _, row := range rows {
		var line strings.Builder

		for i, cell := range row {
			line.WriteString(cell)

			if i < len(row)-1 {
				line.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+2))
			}
		}

		b.WriteString(strings.TrimRight(line.String(), " "))
		b.WriteByte('\n')
	}

	_, err := io.WriteString(w, b.String())

	return err
}

// humanSince renders a millisecond timestamp relative to now.
func humanSince(now time.Time, ms int64) string {
	if ms == 0 {
		return "-"
	}

	d := now.Sub(time.UnixMilli(ms))
	if d < 0 {
		return "in " + units.HumanDuration(-d)
	}

	return units.HumanDuration(d) + " ago"
}
