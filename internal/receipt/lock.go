package receipt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

const (
	// LockName is the install lock's file name inside the prefix.
	LockName = ".leizi-formula.lock"
	// StaleLockThreshold is the age after which a lock whose owner cannot
	// be determined is considered abandoned.
	StaleLockThreshold = 10 * time.Minute
)

// ErrLockExists is returned when another install holds the prefix.
var ErrLockExists = errors.New("install lock exists: another install into this prefix may be in progress")

// Lock is an exclusive install lock on a prefix.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock takes the install lock in dir, which must exist. A lock whose
// recorded process has exited is removed and acquisition retried once. A
// lock held by a live process is never taken over, however old. Age only
// decides when the owner cannot be read.
func AcquireLock(dir string) (*Lock, error) {
	lockPath := filepath.Join(dir, LockName)

	file, err := createExclusive(lockPath)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
		if !isLockStale(lockPath) {
			return nil, ErrLockExists
		}
		os.Remove(lockPath)
		if file, err = createExclusive(lockPath); err != nil {
			return nil, ErrLockExists
		}
	}

	data := fmt.Sprintf("pid=%d\ntimestamp=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(data); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("write lock data: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("sync lock file: %w", err)
	}

	return &Lock{path: lockPath, file: file}, nil
}

func createExclusive(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
}

// Release removes the lock. Calling it more than once is harmless.
func (l *Lock) Release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	if l.path != "" {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove lock file: %w", err)
		}
		l.path = ""
	}
	return nil
}

func isLockStale(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	if pid, ok := lockOwner(path); ok {
		if pid == os.Getpid() {
			return false
		}
		alive, err := process.PidExistsWithContext(context.Background(), int32(pid))
		if err == nil {
			return !alive
		}
	}
	return time.Since(info.ModTime()) > StaleLockThreshold
}

// lockOwner reads the pid= line written by AcquireLock.
func lockOwner(path string) (int, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if v, found := strings.CutPrefix(scanner.Text(), "pid="); found {
			pid, err := strconv.Atoi(v)
			return pid, err == nil && pid > 0
		}
	}
	return 0, false
}
