// Package atomicfile provides the create-tmp-and-rename primitives the
// installation directory manager relies on throughout: writing a
// rewritten .desktop/.service file over the original, and swapping the
// active/current symlinks. On Linux, WriteFile uses an anonymous
// O_TMPFILE handle (adapted from the teacher's system/anonfile_linux.go,
// which used the same Linkat trick to materialize build artifacts
// without a visible partial-write window) instead of a named temp file,
// so a crash before the data is linked into the directory leaves no
// stray sibling file.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// anonFile is an unlinked temporary file descriptor living in a target
// directory, materialized into the filesystem on demand via Linkat.
type anonFile struct {
	os.File
}

func createAnon(dir string) (*anonFile, error) {
	anonPath := filepath.Join(dir, "(unlinked)")
	fd, err := unix.Open(dir, unix.O_RDWR|unix.O_TMPFILE|unix.O_CLOEXEC, 0600)
	if err != nil {
		return nil, &os.PathError{Op: "openat", Path: anonPath, Err: err}
	}
	return &anonFile{*os.NewFile(uintptr(fd), anonPath)}, nil
}

// link materializes the anonymous file at name, which must not already
// exist (linkat fails with EEXIST otherwise).
func (a *anonFile) link(name string) error {
	err := unix.Linkat(
		unix.AT_FDCWD, fmt.Sprintf("/proc/self/fd/%d", a.Fd()),
		unix.AT_FDCWD, name, unix.AT_SYMLINK_FOLLOW)
	if err != nil {
		return &os.LinkError{Op: "linkat", Old: a.Name(), New: name, Err: err}
	}
	return nil
}

// WriteFile writes data to path such that a concurrent reader never
// observes a partially-written file: the bytes are written to an
// anonymous inode, linked under a sibling name derived from the process
// id, then renamed over path. A crash between the link and the rename
// leaves that sibling behind.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	af, err := createAnon(dir)
	if err != nil {
		return writeFilePortable(path, data, perm)
	}
	defer af.Close()

	if err := af.Chmod(perm); err != nil {
		return err
	}
	if _, err := af.Write(data); err != nil {
		return err
	}
	if err := af.Sync(); err != nil {
		return err
	}

	tmpName := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d", filepath.Base(path), os.Getpid()))
	_ = os.Remove(tmpName)
	if err := af.link(tmpName); err != nil {
		return writeFilePortable(path, data, perm)
	}
	defer os.Remove(tmpName)

	return os.Rename(tmpName, path)
}
