package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mlcomp/mlboard/pkg/config"
)

// ErrNotFound is returned when the tree snapshot does not exist.
var ErrNotFound = errors.New("tree not found")

// Source provides the raw experiment tree of one mounted storage root,
// without the caller knowing where it lives (board HTTP endpoint, local
// snapshot file or S3 object).
type Source interface {
	// Name returns the mount prefix of the tree. Empty means root.
	Name() string

	// Fetch returns the raw tree payload.
	Fetch(ctx context.Context) ([]byte, error)
}

// New creates the Source described by cfg.
func New(log logrus.FieldLogger, cfg *config.SourceConfig) (Source, error) {
	log = log.WithFields(logrus.Fields{
		"component": "source",
		"source":    cfg.Name,
	})

	switch {
	case cfg.HTTP != nil:
		return NewHTTPSource(log, cfg.Name, cfg.HTTP), nil
	case cfg.Local != nil:
		return NewLocalSource(cfg.Name, cfg.Local), nil
	case cfg.S3 != nil:
		return NewS3Source(cfg.Name, cfg.S3), nil
	default:
		return nil, fmt.Errorf("source %q: no backend configured", cfg.Name)
	}
}

// NewAll creates one Source per configured source, in order.
func NewAll(log logrus.FieldLogger, cfgs []config.SourceConfig) ([]Source, error) {
	sources := make([]Source, 0, len(cfgs))

	for i := range cfgs {
		src, err := New(log, &cfgs[i])
		if err != nil {
			return nil, err
		}

		sources = append(sources, src)
	}

	return sources, nil
}
