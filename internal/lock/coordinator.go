// Package lock wraps gofrs/flock into the three acquisition strategies from
// spec.md §4.2: Block, Fail-fast, and Bounded-poll. The coordinator never
// opens a lock path itself — acquiring always goes through the library,
// following the single-struct-field wrapping idiom used throughout the
// retrieved corpus (store a *flock.Flock, delegate Lock/TryLock/Unlock to
// it) — but every path reaches this package only after
// internal/symlink.CheckLock has already lstat-rejected a symlinked lock
// file, so flock itself never has to defend against that case.
package lock

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/gofrs/flock"

	"github.com/termfx/mutx/internal/mutxerr"
)

// Strategy selects how Acquire behaves when the lock is already held.
type Strategy string

const (
	// Block waits indefinitely for the lock.
	Block Strategy = "block"
	// FailFast returns LockWouldBlock immediately on contention.
	FailFast Strategy = "fail-fast"
	// BoundedPoll retries with exponential backoff and jitter until
	// Timeout elapses, then returns LockTimeout.
	BoundedPoll Strategy = "bounded-poll"
)

// PollSchedule configures the Bounded-poll backoff curve.
type PollSchedule struct {
	Initial    time.Duration
	Growth     float64
	Max        time.Duration
	JitterMax  time.Duration
	Timeout    time.Duration
}

// DefaultPollSchedule matches spec.md §4.2: 10ms initial, ×1.5 growth,
// capped at 1s, plus up to 100ms of uniform jitter per attempt.
func DefaultPollSchedule(timeout time.Duration) PollSchedule {
	return PollSchedule{
		Initial:   10 * time.Millisecond,
		Growth:    1.5,
		Max:       time.Second,
		JitterMax: 100 * time.Millisecond,
		Timeout:   timeout,
	}
}

// Lock is a held advisory lock. Release is idempotent-safe to call once;
// calling it twice returns the error from the second underlying Unlock.
type Lock struct {
	path string
	fl   *flock.Flock
}

// Path returns the lock file path this Lock was acquired against.
func (l *Lock) Path() string { return l.path }

// Release unlocks the underlying flock handle. The lock file itself is
// deliberately left on disk; internal/housekeep's CleanLocks reclaims lock
// files that ProbeOrphan shows no process holds.
func (l *Lock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return mutxerr.Wrap(mutxerr.Other, l.path, err)
	}
	return nil
}

// Acquire takes the advisory lock at path using the given strategy. ctx
// cancellation is honored between poll attempts and during Block (via a
// background goroutine racing flock's blocking Lock against ctx.Done).
func Acquire(ctx context.Context, path string, strategy Strategy, sched PollSchedule) (*Lock, error) {
	fl := flock.New(path)

	switch strategy {
	case FailFast:
		ok, err := fl.TryLock()
		if err != nil {
			return nil, mutxerr.Wrap(mutxerr.LockAcquisitionFailed, path, err)
		}
		if !ok {
			return nil, mutxerr.New(mutxerr.LockWouldBlock, path)
		}
		return &Lock{path: path, fl: fl}, nil

	case Block:
		return acquireBlocking(ctx, path, fl)

	case BoundedPoll:
		return acquirePolling(ctx, path, fl, sched)

	default:
		return nil, mutxerr.New(mutxerr.Other, path)
	}
}

func acquireBlocking(ctx context.Context, path string, fl *flock.Flock) (*Lock, error) {
	done := make(chan error, 1)
	go func() {
		done <- fl.Lock()
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, mutxerr.Wrap(mutxerr.LockAcquisitionFailed, path, err)
		}
		return &Lock{path: path, fl: fl}, nil
	case <-ctx.Done():
		return nil, mutxerr.Wrap(mutxerr.Interrupted, path, ctx.Err())
	}
}

func acquirePolling(ctx context.Context, path string, fl *flock.Flock, sched PollSchedule) (*Lock, error) {
	start := time.Now()
	interval := sched.Initial
	if interval <= 0 {
		interval = DefaultPollSchedule(sched.Timeout).Initial
	}
	growth := sched.Growth
	if growth <= 1 {
		growth = DefaultPollSchedule(sched.Timeout).Growth
	}
	max := sched.Max
	if max <= 0 {
		max = DefaultPollSchedule(sched.Timeout).Max
	}

	for {
		ok, err := fl.TryLock()
		if err != nil {
			return nil, mutxerr.Wrap(mutxerr.LockAcquisitionFailed, path, err)
		}
		if ok {
			return &Lock{path: path, fl: fl}, nil
		}

		elapsed := time.Since(start)
		if elapsed >= sched.Timeout {
			return nil, mutxerr.New(mutxerr.LockTimeout, path).WithDuration(elapsed)
		}

		wait := interval
		if sched.JitterMax > 0 {
			wait += time.Duration(rand.Int64N(int64(sched.JitterMax)))
		}
		if remaining := sched.Timeout - elapsed; wait > remaining {
			wait = remaining
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, mutxerr.Wrap(mutxerr.Interrupted, path, ctx.Err())
		}

		interval = time.Duration(float64(interval) * growth)
		if interval > max {
			interval = max
		}
	}
}

// ProbeOrphan attempts a non-blocking lock on path purely to test whether
// any process currently holds it, then releases immediately on success.
// Used by internal/housekeep to decide whether a stale-looking lock file is
// actually orphaned. A false result here means the file is still live and
// must not be removed.
func ProbeOrphan(path string) (orphaned bool, err error) {
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return false, mutxerr.Wrap(mutxerr.LockAcquisitionFailed, path, err)
	}
	if !ok {
		return false, nil
	}
	if err := fl.Unlock(); err != nil {
		return false, mutxerr.Wrap(mutxerr.Other, path, err)
	}
	return true, nil
}
