package fileutil

import (
	"fmt"
	"os"
)

// FileLock is an advisory cross-process lock held on a sidecar file.
type FileLock struct {
	f *os.File
}

// Lock opens (creating if needed) the lock file at path and blocks until the
// lock is held. Shared locks may be held by several readers at once.
func Lock(path string, exclusive bool) (*FileLock, error) {
	if err := EnsureParentDir(path); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := flock(f, exclusive, false); err != nil {
		f.Close()
		kind := "shared"
		if exclusive {
			kind = "exclusive"
		}
		return nil, fmt.Errorf("failed to acquire %s lock: %w", kind, err)
	}
	return &FileLock{f: f}, nil
}

// TryLock is like Lock with an exclusive lock but fails immediately when
// another process holds it.
func TryLock(path string) (*FileLock, error) {
	if err := EnsureParentDir(path); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := flock(f, true, true); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock %s is held by another process: %w", path, err)
	}
	return &FileLock{f: f}, nil
}

// Unlock releases the lock and closes the file. It is safe on a nil lock.
func (l *FileLock) Unlock() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := funlock(l.f)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	return err
}
