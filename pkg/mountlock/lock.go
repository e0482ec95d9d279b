// Package mountlock implements the mtab locking protocol: a hard-link
// rendezvous compatible with third-party mount helpers, and a
// simpler whole-file flock mode for private files.
package mountlock

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const (
	// DefaultTimeout bounds how long Lock waits for a contended
	// hard-link lock before failing with ErrStale.
	DefaultTimeout = 30 * time.Second
	// DefaultRetryInterval is the pause between hard-link attempts.
	DefaultRetryInterval = 5 * time.Millisecond
)

// ErrStale is returned when a lock could not be acquired before its
// deadline — the caller should treat it as "someone is holding a
// lockfile that looks abandoned."
var ErrStale = fmt.Errorf("mountlock: timed out waiting for lock")

// Lock governs access to a shared data file (e.g. an mtab-equivalent)
// using the same on-disk protocol as traditional mtab locking, so
// this process interoperates with third-party mount helpers touching
// the same file.
type Lock struct {
	dataFile string
	lockFile string
	linkFile string

	simple bool

	timeout       time.Duration
	retryInterval time.Duration

	mu       deadlock.Mutex
	lockFD   *os.File
	locked   bool
	sigBlock bool
	oldMask  unix.Sigset_t

	log *logrus.Entry
}

// SetLogger attaches a structured logger; nil (the default) disables
// logging entirely.
func (l *Lock) SetLogger(e *logrus.Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log = e
}

func (l *Lock) debugf(format string, args ...interface{}) {
	if l.log == nil {
		return
	}
	l.log.WithField("category", "locks").Debugf(format, args...)
}

// New returns a lock handle for dataFile. id distinguishes concurrent
// handles within the same process (and, compatibly with third-party
// tools, across processes sharing a data file); 0 defaults to the
// calling process's PID.
func New(dataFile string, id int) *Lock {
	if id == 0 {
		id = os.Getpid()
	}
	return &Lock{
		dataFile:      dataFile,
		lockFile:      dataFile + "~",
		linkFile:      fmt.Sprintf("%s~.%d", dataFile, id),
		timeout:       DefaultTimeout,
		retryInterval: DefaultRetryInterval,
	}
}

// UseSimpleLock switches the handle between the hard-link mtab
// protocol and a single advisory-locked file, rewriting the lockfile
// suffix in place ("<data>~" <-> "<data>.lock").
func (l *Lock) UseSimpleLock(enable bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.simple = enable
	if enable {
		l.lockFile = l.dataFile + ".lock"
	} else {
		l.lockFile = l.dataFile + "~"
	}
}

// BlockSignals toggles whether all signals except SIGTRAP/SIGALRM are
// blocked while the lock is held.
func (l *Lock) BlockSignals(enable bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sigBlock = enable
}

// SetTimeout overrides the default 30s hard-link wait budget, mainly
// useful in tests.
func (l *Lock) SetTimeout(d time.Duration) { l.timeout = d }

// SetRetryInterval overrides the default 5ms retry pause.
func (l *Lock) SetRetryInterval(d time.Duration) { l.retryInterval = d }

// Lock acquires the lock, blocking until it is held, ctx is done, or
// the hard-link protocol's own timeout expires — whichever comes
// first. In simple-lock mode ctx and the timeout are not consulted:
// Lock blocks until flock succeeds or fails.
//
// When sigBlock is set, Lock pins the calling goroutine to its OS
// thread until Unlock restores the signal mask: Sigprocmask is
// per-OS-thread, and without pinning, Go's scheduler could migrate the
// goroutine to a different thread between Lock and Unlock, leaving the
// mask applied to a thread nothing else touches and restoring it on a
// thread that was never blocked.
func (l *Lock) Lock(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locked {
		return nil
	}
	if l.sigBlock {
		runtime.LockOSThread()
		if err := blockSignals(&l.oldMask); err != nil {
			runtime.UnlockOSThread()
			return err
		}
	}

	var err error
	if l.simple {
		err = l.lockSimple()
	} else {
		err = l.lockHardLink(ctx)
	}
	if err != nil {
		l.debugf("failed to acquire lock on %s: %v", l.dataFile, err)
		if l.sigBlock {
			restoreSignals(&l.oldMask)
			runtime.UnlockOSThread()
		}
		return err
	}
	l.locked = true
	l.debugf("acquired lock on %s", l.dataFile)
	return nil
}

// lockSimple opens (or creates) the lockfile and takes a whole-file
// exclusive advisory lock, retrying across benign interrupts.
func (l *Lock) lockSimple() error {
	f, err := os.OpenFile(l.lockFile, os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("mountlock: open lockfile: %w", err)
	}
	unix.CloseOnExec(int(f.Fd()))

	if fi, statErr := f.Stat(); statErr == nil {
		if fi.Mode().Perm()&0644 != 0644 {
			if err := f.Chmod(0644); err != nil {
				f.Close()
				return fmt.Errorf("mountlock: chmod lockfile: %w", err)
			}
		}
	}

	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX)
		if err == nil {
			break
		}
		if err == unix.EINTR || err == unix.EAGAIN {
			continue
		}
		f.Close()
		return fmt.Errorf("mountlock: flock: %w", err)
	}

	l.lockFD = f
	return nil
}

// lockHardLink implements the link()-then-F_SETLK rendezvous: the
// process that wins the link() race owns the lock; every loser waits
// on a blocking F_SETLKW for the winner to release, then retries.
//
// syscall.FcntlFlock (and the raw unix F_SETLKW) blocks the calling
// OS thread uninterruptibly — there is no Go analogue of racing it
// against SIGALRM. Instead the wait runs on a goroutine pinned to its
// own OS thread, raced against ctx/the hard deadline via a buffered
// result channel; if the deadline wins, the goroutine is abandoned
// (it completes harmlessly whenever the real owner eventually
// releases, and its result is discarded).
func (l *Lock) lockHardLink(ctx context.Context) (err error) {
	linkFD, err := os.OpenFile(l.linkFile, os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("mountlock: create linkfile: %w", err)
	}
	unix.CloseOnExec(int(linkFD.Fd()))
	linkFD.Close()
	// The linkfile stays while the lock is held (unlockHardLink removes
	// it); it is removed here only when acquisition fails.
	defer func() {
		if err != nil {
			os.Remove(l.linkFile)
		}
	}()

	deadline := time.Now().Add(l.timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	for {
		owner := false
		if linkErr := os.Link(l.linkFile, l.lockFile); linkErr == nil {
			owner = true
		} else if !os.IsExist(linkErr) {
			return fmt.Errorf("mountlock: link: %w", linkErr)
		}

		lockFD, err := os.OpenFile(l.lockFile, os.O_WRONLY, 0)
		if err != nil {
			if os.IsNotExist(err) && time.Now().Before(deadline) {
				// Raced with the owner unlinking the lockfile; retry.
				continue
			}
			return fmt.Errorf("mountlock: open lockfile: %w", err)
		}
		unix.CloseOnExec(int(lockFD.Fd()))

		if owner {
			// We created the link; claim the advisory lock but proceed
			// regardless of whether F_SETLK succeeds, since ownership of
			// the link is itself authoritative.
			_ = unix.FcntlFlock(lockFD.Fd(), unix.F_SETLK, &unix.Flock_t{
				Type:   unix.F_WRLCK,
				Whence: int16(os.SEEK_SET),
			})
			l.lockFD = lockFD
			return nil
		}

		// Someone else owns the link; wait for them to release it.
		timedOut, err := waitSetlkw(ctx, lockFD)
		lockFD.Close()
		if err != nil {
			return fmt.Errorf("mountlock: fcntl F_SETLKW: %w", err)
		}
		if timedOut {
			return ErrStale
		}
		time.Sleep(l.retryInterval)
	}
}

// waitSetlkw races a blocking F_SETLKW on fd against ctx's deadline.
func waitSetlkw(ctx context.Context, fd *os.File) (timedOut bool, err error) {
	done := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		done <- unix.FcntlFlock(fd.Fd(), unix.F_SETLKW, &unix.Flock_t{
			Type:   unix.F_WRLCK,
			Whence: int16(os.SEEK_SET),
		})
	}()

	select {
	case err := <-done:
		return false, err
	case <-ctx.Done():
		return true, nil
	}
}

// Unlock releases the lock. It may be called even if Lock never
// succeeded (e.g. from a deferred cleanup), in which case it is a
// no-op beyond clearing any residual file descriptors.
func (l *Lock) Unlock() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.simple {
		l.unlockSimple()
	} else {
		l.unlockHardLink()
	}
	l.locked = false
	l.debugf("released lock on %s", l.dataFile)
	if l.lockFD != nil {
		l.lockFD.Close()
		l.lockFD = nil
	}
	if l.sigBlock {
		restoreSignals(&l.oldMask)
		runtime.UnlockOSThread()
	}
}

func (l *Lock) unlockSimple() {
	// closing lockFD (done by the caller, Unlock) releases the flock.
}

func (l *Lock) unlockHardLink() {
	owner := l.locked
	if !owner && l.lockFile != "" && l.linkFile != "" {
		// We may own the lock without *knowing* it, if a signal landed
		// between link() succeeding and the flag being set. Recover the
		// flag by comparing the lockfile and linkfile's identity.
		if lo, errL := os.Stat(l.lockFile); errL == nil {
			if li, errN := os.Stat(l.linkFile); errN == nil {
				if os.SameFile(lo, li) {
					owner = true
				}
			}
		}
	}

	os.Remove(l.linkFile)
	if owner {
		os.Remove(l.lockFile)
	}
}
