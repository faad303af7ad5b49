package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
)

// Owner holds the UID/GID applied to written files.
type Owner struct {
	UID int
	GID int
}

// ParseOwner parses a "UID:GID" string. Returns nil if empty.
func ParseOwner(owner string) (*Owner, error) {
	if owner == "" {
		return nil, nil
	}

	u, g, found := strings.Cut(owner, ":")
	if !found || strings.Contains(g, ":") {
		return nil, fmt.Errorf("invalid format %q, expected UID:GID", owner)
	}

	uid, err := strconv.Atoi(u)
	if err != nil {
		return nil, fmt.Errorf("invalid UID %q: %w", u, err)
	}

	gid, err := strconv.Atoi(g)
	if err != nil {
		return nil, fmt.Errorf("invalid GID %q: %w", g, err)
	}

	if uid < 0 || gid < 0 {
		return nil, fmt.Errorf("invalid owner %q: ids must not be negative", owner)
	}

	return &Owner{UID: uid, GID: gid}, nil
}

// Chown sets ownership if owner is not nil. Best-effort, ignores errors.
func Chown(path string, owner *Owner) {
	if owner == nil {
		return
	}

	_ = os.Chown(path, owner.UID, owner.GID)
}

// WriteFileAtomic writes data to a pending file next to path and renames it
// into place, so readers never observe a partial file. The owner is applied
// before the rename. Missing parent directories are created.
func WriteFileAtomic(path string, data []byte, perm os.FileMode, owner *Owner) error {
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	pf, err := renameio.NewPendingFile(path,
		renameio.WithTempDir(dir),
		renameio.WithStaticPermissions(perm),
	)
	if err != nil {
		return fmt.Errorf("creating pending file: %w", err)
	}

	defer func() { _ = pf.Cleanup() }()

	if _, err := pf.Write(data); err != nil {
		return fmt.Errorf("writing pending file: %w", err)
	}

	Chown(pf.Name(), owner)

	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}

	return nil
}
