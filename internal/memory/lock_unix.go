//go:build unix

package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	minLockBackoff = 50 * time.Millisecond
	maxLockBackoff = time.Second
)

// Lock implements Locker with flock(2) on LockPath. It waits for as long as
// ctx allows.
func (f *FileStore) Lock(ctx context.Context) (func(), error) {
	lockPath := f.LockPath()
	if err := os.MkdirAll(filepath.Dir(lockPath), 0700); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %w", ErrStorageIO, filepath.Dir(lockPath), err)
	}
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrStorageIO, lockPath, err)
	}

	backoff := minLockBackoff
	for waited := false; ; waited = true {
		err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			break
		}
		if !errors.Is(err, syscall.EWOULDBLOCK) {
			file.Close()
			return nil, fmt.Errorf("%w: flock %s: %w", ErrStorageIO, lockPath, err)
		}
		if !waited {
			f.logger.Info("waiting for memory lock held by another process", zap.String("path", lockPath))
		}

		select {
		case <-ctx.Done():
			file.Close()
			return nil, fmt.Errorf("%w: %s: %w", ErrStorageLocked, lockPath, ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxLockBackoff)
	}

	return func() {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
	}, nil
}
