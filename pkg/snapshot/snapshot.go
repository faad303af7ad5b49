// Package snapshot writes the merged storage tree to a file or an S3
// object in the same wire form the local and s3 sources read.
package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mlcomp/mlboard/pkg/config"
	"github.com/mlcomp/mlboard/pkg/tree"
)

// ErrNoDestination is returned when no snapshot destination is configured.
var ErrNoDestination = errors.New("no snapshot destination configured")

// Writer stores a snapshot payload.
type Writer interface {
	// Preflight verifies the destination is writable before the sources
	// are loaded, so misconfiguration fails fast.
	Preflight(ctx context.Context) error

	// Write stores data, replacing any previous snapshot.
	Write(ctx context.Context, data []byte) error

	// Location describes the destination for logs.
	Location() string
}

// NewWriter creates the Writer for the configured destination.
func NewWriter(log logrus.FieldLogger, cfg *config.SnapshotConfig) (Writer, error) {
	switch {
	case cfg.Local != nil:
		return NewLocalWriter(log, cfg.Local)
	case cfg.S3 != nil:
		return NewS3Writer(log, cfg.S3), nil
	default:
		return nil, ErrNoDestination
	}
}

// Save encodes nodes and hands them to w.
func Save(ctx context.Context, w Writer, nodes []*tree.Node) (int, error) {
	data, err := tree.Encode(nodes)
	if err != nil {
		return 0, err
	}

	if err := w.Write(ctx, data); err != nil {
		return 0, fmt.Errorf("writing snapshot to %s: %w", w.Location(), err)
	}

	return len(data), nil
}
