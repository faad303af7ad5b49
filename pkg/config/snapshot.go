package config

import (
	"errors"
	"fmt"

	"github.com/mlcomp/mlboard/pkg/fsutil"
)

// SnapshotConfig selects where `mlboard snapshot` writes the merged tree.
// At most one destination may be set.
type SnapshotConfig struct {
	Local *LocalSnapshotConfig `yaml:"local,omitempty" mapstructure:"local"`
	S3    *S3SourceConfig      `yaml:"s3,omitempty" mapstructure:"s3"`
}

// LocalSnapshotConfig writes the snapshot to a file.
type LocalSnapshotConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
	// Owner optionally sets the "UID:GID" of the written file.
	Owner string `yaml:"owner,omitempty" mapstructure:"owner"`
}

// Configured reports whether a destination is set.
func (s *SnapshotConfig) Configured() bool {
	return s.Local != nil || s.S3 != nil
}

func (s *SnapshotConfig) applyDefaults() {
	if s.S3 != nil && s.S3.Region == "" {
		s.S3.Region = DefaultS3Region
	}
}

// Validate checks the snapshot destination.
func (s *SnapshotConfig) Validate() error {
	if s.Local != nil && s.S3 != nil {
		return errors.New("only one of local or s3 may be set")
	}

	if s.Local != nil {
		if s.Local.Path == "" {
			return errors.New("local.path is required")
		}

		if _, err := fsutil.ParseOwner(s.Local.Owner); err != nil {
			return fmt.Errorf("local.owner: %w", err)
		}
	}

	if s.S3 != nil {
		if s.S3.Bucket == "" {
			return errors.New("s3.bucket is required")
		}

		if s.S3.Key == "" {
			return errors.New("s3.key is required")
		}
	}

	return nil
}
