package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mlcomp/mlboard/pkg/source"
	"github.com/mlcomp/mlboard/pkg/storage"
	"github.com/mlcomp/mlboard/pkg/tree"
)

// defaultConcurrency is the number of sources fetched in parallel when
// no explicit concurrency value is configured.
const defaultConcurrency = 4

// ErrAllFailed is returned when no source could be loaded.
var ErrAllFailed = errors.New("all sources failed to load")

// Warning is a malformed node skipped while decoding a source.
type Warning struct {
	Source string `json:"source" yaml:"source"`
	Path   string `json:"path" yaml:"path"`
	Reason string `json:"reason" yaml:"reason"`
}

// Failure is a source that could not be fetched or decoded.
type Failure struct {
	Source string `json:"source" yaml:"source"`
	Error  string `json:"error" yaml:"error"`
}

// Result is the outcome of one load cycle.
type Result struct {
	Groups   []*storage.Group `json:"groups" yaml:"groups"`
	Warnings []Warning        `json:"warnings" yaml:"warnings"`
	Failures []Failure        `json:"failures" yaml:"failures"`
	Sources  int              `json:"sources" yaml:"sources"`

	// Tree holds the merged nodes of every loaded source, each mounted
	// under its prefix.
	Tree []*tree.Node `json:"-" yaml:"-"`
}

// Loaded returns the number of sources that were loaded.
func (r *Result) Loaded() int {
	return r.Sources - len(r.Failures)
}

// Summary describes the partial success of the load.
func (r *Result) Summary() string {
	return fmt.Sprintf("%d of %d sources loaded", r.Loaded(), r.Sources)
}

// Loader fetches every source, merges the trees under their mount
// prefixes and turns them into sorted storage groups.
type Loader struct {
	log         logrus.FieldLogger
	sources     []source.Source
	opts        tree.Options
	concurrency int
}

// New creates a Loader over sources.
func New(
	log logrus.FieldLogger,
	sources []source.Source,
	opts tree.Options,
	concurrency int,
) *Loader {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &Loader{
		log:         log.WithField("component", "loader"),
		sources:     sources,
		opts:        opts,
		concurrency: concurrency,
	}
}

type fetched struct {
	nodes    []*tree.Node
	warnings []*tree.NodeError
	err      error
}

// Load runs one load cycle. Sources are fetched concurrently; a failing
// source is reported in Result.Failures and the others are still used.
// An error is returned only when every source failed.
func (l *Loader) Load(ctx context.Context) (*Result, error) {
	start := time.Now()
	results := make([]fetched, len(l.sources))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for i, src := range l.sources {
		i, src := i, src
		g.Go(func() error {
			nodes, warnings, err := l.loadSource(gCtx, src)
			results[i] = fetched{nodes: nodes, warnings: warnings, err: err}

			return nil
		})
	}

	_ = g.Wait()

	res := &Result{Sources: len(l.sources)}

	var (
		nodes    []*tree.Node
		firstErr error
	)

	for i, r := range results {
		name := l.sources[i].Name()

		if r.err != nil {
			l.log.WithError(r.err).WithField("source", name).
				Warn("Failed to load source")

			res.Failures = append(res.Failures, Failure{Source: name, Error: r.err.Error()})

			if firstErr == nil {
				firstErr = r.err
			}

			continue
		}

		for _, w := range r.warnings {
			res.Warnings = append(res.Warnings, Warning{
				Source: name,
				Path:   w.Path,
				Reason: w.Reason,
			})
		}

		nodes = append(nodes, tree.Mount(name, r.nodes)...)
	}

	if len(l.sources) > 0 && len(res.Failures) == len(l.sources) {
		return res, fmt.Errorf("%w: %w", ErrAllFailed, firstErr)
	}

	res.Tree = nodes
	res.Groups = tree.Flatten(nodes)
	storage.SortGroups(res.Groups)

	l.log.WithFields(logrus.Fields{
		"groups":   len(res.Groups),
		"warnings": len(res.Warnings),
		"duration": time.Since(start).Round(time.Millisecond),
	}).Info(res.Summary())

	return res, nil
}

func (l *Loader) loadSource(
	ctx context.Context, src source.Source,
) ([]*tree.Node, []*tree.NodeError, error) {
	data, err := src.Fetch(ctx)
	if err != nil {
		return nil, nil, err
	}

	nodes, warnings, err := tree.Parse(data, l.opts)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding tree: %w", err)
	}

	return nodes, warnings, nil
}
