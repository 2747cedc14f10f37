package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// LockFileName is the run lock inside the output directory.
const LockFileName = ".reflectgen.lock"

// ErrLocked is returned when another run holds the output directory.
var ErrLocked = errors.New("output directory is locked by another run")

const lockRetryDelay = 50 * time.Millisecond

// Lock is an exclusive advisory lock on an output directory.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the run lock for outDir, waiting up to timeout. A zero
// timeout tries once.
func Acquire(ctx context.Context, outDir string, timeout time.Duration) (*Lock, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}
	fl := flock.New(filepath.Join(outDir, LockFileName))

	var (
		ok  bool
		err error
	)
	if timeout <= 0 {
		ok, err = fl.TryLock()
	} else {
		lockCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		ok, err = fl.TryLockContext(lockCtx, lockRetryDelay)
		if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w (waited %s)", ErrLocked, timeout)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock. The lock file itself is left in place.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
