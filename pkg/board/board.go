package board

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mlcomp/mlboard/pkg/filter"
	"github.com/mlcomp/mlboard/pkg/loader"
	"github.com/mlcomp/mlboard/pkg/search"
	"github.com/mlcomp/mlboard/pkg/storage"
)

// ErrStale is returned by Load when a newer load was published first and
// the result was discarded.
var ErrStale = errors.New("load result superseded by a newer load")

// Loader produces the storage groups of one load cycle.
type Loader interface {
	Load(ctx context.Context) (*loader.Result, error)
}

// View is one published, immutable state of the board.
type View struct {
	Token    uint64
	Groups   []*storage.Group
	Engine   *filter.Engine
	Error    string
	Warnings []loader.Warning
	Failures []loader.Failure
	Sources  int
	LoadedAt time.Time
}

// Board holds the loaded experiment groups and hands out filtered views
// of them. Loads may overlap; each gets a monotonic token and a result is
// only published when no newer one has been published already.
type Board struct {
	log    logrus.FieldLogger
	loader Loader
	opts   search.Options

	tokens   atomic.Uint64
	inflight atomic.Int32
	view     atomic.Pointer[View]
	// mu serializes the compare and publish of a view.
	mu sync.Mutex
}

// New creates a board with an empty initial view.
func New(
	log logrus.FieldLogger,
	l Loader,
	opts search.Options,
) *Board {
	b := &Board{
		log:    log.WithField("component", "board"),
		loader: l,
		opts:   opts,
	}

	b.view.Store(&View{Engine: filter.NewEngine(log, nil, opts)})

	return b
}

// View returns the currently published view.
func (b *Board) View() *View {
	return b.view.Load()
}

// Loading reports whether a load is in flight.
func (b *Board) Loading() bool {
	return b.inflight.Load() > 0
}

// Filter returns the groups of the current view filtered by status and
// query.
func (b *Board) Filter(status, query string) []*storage.Group {
	return b.View().Engine.Filter(status, query)
}

// Load runs the loader and publishes the outcome. A failed load is
// published too, as a view with the error message and no groups. The
// returned error is the load error, or ErrStale when the outcome lost to
// a newer load and was dropped.
func (b *Board) Load(ctx context.Context) (*View, error) {
	token := b.tokens.Add(1)

	b.inflight.Add(1)
	defer b.inflight.Add(-1)

	res, err := b.loader.Load(ctx)

	v := b.newView(token, res, err)

	b.mu.Lock()
	defer b.mu.Unlock()

	if cur := b.view.Load(); cur.Token > token {
		b.log.WithFields(logrus.Fields{
			"token":     token,
			"published": cur.Token,
		}).Debug("Discarding stale load result")

		return cur, ErrStale
	}

	b.view.Store(v)

	return v, err
}

func (b *Board) newView(token uint64, res *loader.Result, err error) *View {
	v := &View{
		Token:    token,
		LoadedAt: time.Now(),
	}

	if res != nil {
		v.Warnings = res.Warnings
		v.Failures = res.Failures
		v.Sources = res.Sources
	}

	if err != nil {
		b.log.WithError(err).Error("Failed to load experiment tree")

		v.Error = err.Error()
		v.Engine = filter.NewEngine(b.log, nil, b.opts)

		return v
	}

	v.Groups = res.Groups
	v.Engine = filter.NewEngine(b.log, res.Groups, b.opts)

	return v
}
