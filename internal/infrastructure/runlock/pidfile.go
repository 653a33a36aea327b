// Package runlock keeps overlapping scheduled runs from driving the booking site at once.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// ErrLocked reports that another live process holds the lock.
var ErrLocked = errors.New("run lock held by another process")

// HeldError describes the process holding the lock. It matches ErrLocked.
type HeldError struct {
	Path string
	PID  int32
	Name string
}

func (e HeldError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s held by pid %d (%s)", ErrLocked, e.Path, e.PID, e.Name)
	}
	return fmt.Sprintf("%s: %s held by pid %d", ErrLocked, e.Path, e.PID)
}

func (e HeldError) Is(target error) bool {
	return target == ErrLocked
}

// Lock is an acquired PID file.
type Lock struct {
	path string
	pid  int
}

// DefaultPath returns the lock location used when none is configured.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), "ferry-watch.lock")
}

// Acquire creates the PID file at path. A file left behind by a process that is no
// longer running is reclaimed.
func Acquire(ctx context.Context, path string) (*Lock, error) {
	pid := os.Getpid()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, writeErr := f.WriteString(strconv.Itoa(pid) + "\n")
			closeErr := f.Close()
			if err := errors.Join(writeErr, closeErr); err != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("write lock file %s: %w", path, err)
			}
			return &Lock{path: path, pid: pid}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create lock file %s: %w", path, err)
		}

		holder, alive, err := inspect(ctx, path)
		if err != nil {
			return nil, err
		}
		if alive {
			held := HeldError{Path: path, PID: holder}
			if proc, err := process.NewProcessWithContext(ctx, holder); err == nil {
				if name, err := proc.NameWithContext(ctx); err == nil {
					held.Name = name
				}
			}
			return nil, held
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale lock file %s: %w", path, err)
		}
	}

	return nil, fmt.Errorf("acquire lock file %s: lost race with another process", path)
}

// inspect reads the holder PID. Unreadable or garbage content counts as stale.
func inspect(ctx context.Context, path string) (int32, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read lock file %s: %w", path, err)
	}

	pid, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 32)
	if err != nil || pid <= 0 {
		return 0, false, nil
	}

	alive, err := process.PidExistsWithContext(ctx, int32(pid))
	if err != nil {
		return 0, false, fmt.Errorf("check lock holder %d: %w", pid, err)
	}
	return int32(pid), alive, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release removes the PID file if this process still owns it.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}

	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read lock file %s: %w", l.path, err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(l.pid) {
		return nil
	}

	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock file %s: %w", l.path, err)
	}
	return nil
}
