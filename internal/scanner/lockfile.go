package scanner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// lockName is the lock file created inside the output directory.
const lockName = "scan.lock"

// ErrLocked indicates another scan already owns the output directory.
var ErrLocked = errors.New("output directory is locked by another scan")

// Lock is an exclusive hold on one output directory, taken before any
// state file is touched.
type Lock struct {
	path string
}

// AcquireLock takes the output-directory lock, creating the directory if
// needed. The lock file carries the owning pid for operator forensics; a
// pre-existing lock means a concurrent or crashed scan and is not broken
// automatically.
func AcquireLock(dir string) (*Lock, error) {
	err := os.MkdirAll(dir, 0o750)
	if err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	path := filepath.Join(dir, lockName)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}

		return nil, fmt.Errorf("acquire lock: %w", err)
	}

	_, err = file.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	if err == nil {
		err = file.Close()
	} else {
		_ = file.Close()
	}

	if err != nil {
		_ = os.Remove(path)

		return nil, fmt.Errorf("write lock file: %w", err)
	}

	return &Lock{path: path}, nil
}

// Release drops the lock. Safe to call more than once.
func (l *Lock) Release() error {
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release lock: %w", err)
	}

	return nil
}
