//go:build unix

package registry

import (
	"golang.org/x/sys/unix"
)

type fder interface {
	Fd() uintptr
}

// lockFile takes a blocking exclusive flock when f is backed by a real
// descriptor. In-memory files are covered by the registry mutex alone.
func lockFile(f any) (func(), error) {
	fd, ok := f.(fder)
	if !ok {
		return func() {}, nil
	}
	if err := unix.Flock(int(fd.Fd()), unix.LOCK_EX); err != nil {
		return nil, err
	}
	return func() {
		_ = unix.Flock(int(fd.Fd()), unix.LOCK_UN)
	}, nil
}
