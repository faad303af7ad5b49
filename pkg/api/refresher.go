package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mlcomp/mlboard/pkg/board"
)

// refresher loads the board once when started and then at a fixed
// interval. A zero interval disables the periodic reloads.
type refresher struct {
	log      logrus.FieldLogger
	board    *board.Board
	interval time.Duration
	done     chan struct{}
	wg       sync.WaitGroup
}

func newRefresher(
	log logrus.FieldLogger,
	b *board.Board,
	interval time.Duration,
) *refresher {
	return &refresher{
		log:      log.WithField("component", "refresher"),
		board:    b,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches a background goroutine that runs an immediate load and
// then ticks at the configured interval. The first load is asynchronous
// so the caller is not blocked.
func (r *refresher) Start(ctx context.Context) error {
	r.log.WithField("interval", r.interval.String()).
		Info("Starting refresher")

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		r.load(ctx)

		if r.interval <= 0 {
			return
		}

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.load(ctx)
			case <-r.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop signals the refresher goroutine to stop and waits for it.
func (r *refresher) Stop() error {
	close(r.done)
	r.wg.Wait()

	return nil
}

func (r *refresher) load(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-r.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	v, err := r.board.Load(ctx)

	switch {
	case errors.Is(err, board.ErrStale):
		return
	case err != nil:
		r.log.WithError(err).Warn("Board load failed")
	default:
		r.log.WithFields(logrus.Fields{
			"token":    v.Token,
			"groups":   len(v.Groups),
			"failures": len(v.Failures),
		}).Debug("Board loaded")
	}
}
