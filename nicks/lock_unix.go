//go:build !windows

package nicks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

const lockRetryWait = 25 * time.Millisecond

func withLock(ctx context.Context, lockPath string, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(lockPath), defaultDirPerm); err != nil {
		return fmt.Errorf("ensure lock dir: %w", err)
	}
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, defaultFilePerm)
	if err != nil {
		return fmt.Errorf("open lock %s: %w", lockPath, err)
	}
	defer file.Close()

	fd := int(file.Fd())
	for {
		err = unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			break
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			timer := time.NewTimer(lockRetryWait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("lock %s: %w", lockPath, ctx.Err())
			case <-timer.C:
			}
			continue
		}
		return fmt.Errorf("flock %s: %w", lockPath, err)
	}
	defer func() {
		_ = unix.Flock(fd, unix.LOCK_UN)
	}()
	return fn()
}
