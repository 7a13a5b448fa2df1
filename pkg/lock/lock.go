// Package lock implements the advisory whole-file write-lock probe used
// to detect in-use deployments before removal (§4.9). A running sandboxed
// application holds a shared lock on its deployment's files/.ref while
// running; the installer never takes a lock itself, it only probes.
package lock

import (
	"golang.org/x/sys/unix"
)

// IsLocked opens path read-write, close-on-exec, and probes with F_GETLK
// for a conflicting write lock. It returns true only if some other
// process holds a lock that would conflict with a write lock on the
// whole file; a missing or unopenable file, or an unlocked file, reports
// false rather than an error, matching the spec's "false if the probe
// reports F_UNLCK or if the file is missing/unopenable".
func IsLocked(path string) bool {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return false
	}
	defer unix.Close(fd)

	flock := unix.Flock_t{
		Type:   int16(unix.F_WRLCK),
		Whence: int16(unix.SEEK_SET),
		Start:  0,
		Len:    0, // whole file
	}
	if err := unix.FcntlFlock(uintptr(fd), unix.F_GETLK, &flock); err != nil {
		return false
	}
	return flock.Type != unix.F_UNLCK
}
