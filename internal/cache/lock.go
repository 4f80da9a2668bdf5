package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DirLock is an advisory, cross-process lock on one cache directory. It is
// held until Release is called or the owning process exits.
type DirLock struct {
	path string
	file *os.File
	once sync.Once
}

// TryLock attempts to take the lock on dir without blocking. It returns
// ErrLocked when another holder, in this process or another one, already owns
// it. The caller must Release the returned lock.
func TryLock(dir string) (*DirLock, error) {
	path := filepath.Join(dir, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	if err := lockFile(f); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrLocked) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	return &DirLock{path: path, file: f}, nil
}

// Release unlocks and closes the lock file. It is safe to call more than once.
func (l *DirLock) Release() error {
	var err error
	l.once.Do(func() {
		err = unlockFile(l.file)
		if cerr := l.file.Close(); err == nil {
			err = cerr
		}
	})
	return err
}
