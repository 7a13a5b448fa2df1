package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// writeFilePortable is the create-tmp-and-rename fallback used when the
// O_TMPFILE fast path in WriteFile fails (a filesystem that rejects
// O_TMPFILE such as some overlay/network mounts, or a failed linkat).
// WriteFile itself is defined only in atomicfile_linux.go.
func writeFilePortable(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Symlink atomically creates or replaces the symlink at linkName so that
// it points at target, per the spec's "create-tmp-and-rename" swap
// semantics for the active and current links: a concurrent reader always
// sees either the old or the new target, never a missing link.
func Symlink(target, linkName string) error {
	dir := filepath.Dir(linkName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmpName := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%s", filepath.Base(linkName), uuid.NewString()))
	if err := os.Symlink(target, tmpName); err != nil {
		return err
	}
	if err := os.Rename(tmpName, linkName); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// RandomName returns a short random suffix, used for quarantine directory
// names ("{random}-{checksum}") and other one-off temp names outside the
// write/symlink helpers above.
func RandomName() string {
	return uuid.NewString()
}
