package files

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// LockPollPeriod is the minimum period between attempts to acquire a lock held by someone else.
// Each attempt waits a random duration between LockPollPeriod and 2*LockPollPeriod.
var LockPollPeriod = time.Second

// ExecOnFileLock opens the lockPath file (or creates it if it doesn't yet exist), locks it, and executes fn.
// If the lockPath is already locked, it polls until it acquires the lock or ctx is done.
//
// The lockPath is not removed. It's safe to remove it from fn, if one knows that no new calls to
// ExecOnFileLock with the same lockPath are going to be made.
func ExecOnFileLock(ctx context.Context, lockPath string, fn func()) (err error) {
	fileLock := flock.New(lockPath)
	for {
		locked, err := fileLock.TryLock()
		if err != nil {
			return errors.Wrapf(err, "while trying to lock %q", lockPath)
		}
		if locked {
			break
		}
		wait := LockPollPeriod + time.Duration(rand.Int64N(int64(LockPollPeriod)+1))
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "while waiting for lock %q", lockPath)
		case <-time.After(wait):
		}
	}

	// Unlock even if fn panics.
	defer func() {
		unlockErr := fileLock.Unlock()
		if unlockErr != nil {
			if err == nil {
				err = errors.Wrapf(unlockErr, "unlocking file %q", lockPath)
			} else {
				klog.Errorf("Error unlocking file %q: %v", lockPath, unlockErr)
			}
		}
	}()

	fn()
	return
}
