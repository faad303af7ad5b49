package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/mlcomp/mlboard/pkg/config"
	"github.com/mlcomp/mlboard/pkg/fsutil"
)

// Compile-time interface check.
var _ Writer = (*localWriter)(nil)

type localWriter struct {
	log   logrus.FieldLogger
	path  string
	owner *fsutil.Owner
}

// NewLocalWriter creates a Writer that replaces a local file atomically.
func NewLocalWriter(
	log logrus.FieldLogger,
	cfg *config.LocalSnapshotConfig,
) (Writer, error) {
	owner, err := fsutil.ParseOwner(cfg.Owner)
	if err != nil {
		return nil, fmt.Errorf("parsing owner: %w", err)
	}

	return &localWriter{
		log:   log.WithField("component", "snapshot-local"),
		path:  cfg.Path,
		owner: owner,
	}, nil
}

// Preflight checks that the target directory can be created and written.
func (w *localWriter) Preflight(_ context.Context) error {
	dir := filepath.Dir(w.path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, ".mlboard-write-test-*")
	if err != nil {
		return fmt.Errorf("writing test file to %s: %w", dir, err)
	}

	_ = f.Close()

	return os.Remove(f.Name())
}

func (w *localWriter) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := fsutil.WriteFileAtomic(w.path, data, 0o644, w.owner); err != nil {
		return err
	}

	w.log.WithFields(logrus.Fields{
		"path":  w.path,
		"bytes": len(data),
	}).Debug("Snapshot written")

	return nil
}

func (w *localWriter) Location() string {
	return w.path
}
