package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/mlcomp/mlboard/pkg/config"
)

// Compile-time interface check.
var _ Source = (*localSource)(nil)

type localSource struct {
	name string
	path string
}

// NewLocalSource creates a Source reading a tree snapshot file.
func NewLocalSource(name string, cfg *config.LocalSourceConfig) Source {
	return &localSource{name: name, path: cfg.Path}
}

// Name returns the mount prefix.
func (s *localSource) Name() string {
	return s.name
}

// Fetch reads the snapshot file.
func (s *localSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path) //nolint:gosec // trusted paths from config
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}

		return nil, fmt.Errorf("reading file %s: %w", s.path, err)
	}

	return data, nil
}
