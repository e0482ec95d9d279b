package mountlock

import (
	"context"
	"sync"
)

// Updater repeatedly acquires a Lock, runs a mutation against the
// file it guards, and releases it, until stopped — adapted from the
// stop-channel goroutine pattern used elsewhere in this codebase for
// supervising a single long-running background job.
type Updater struct {
	lock *Lock

	waitingMutex sync.Mutex
	current      *updateLoop
}

type updateLoop struct {
	stop          chan struct{}
	notifyStopped chan struct{}
}

// NewUpdater wraps lock with a managed retry loop.
func NewUpdater(lock *Lock) *Updater {
	return &Updater{lock: lock}
}

// Start launches a goroutine that repeatedly acquires the lock,
// invokes mutate, releases, and repeats, until Stop is called or ctx
// is done. Starting a new loop stops any loop already running on this
// Updater.
func (u *Updater) Start(ctx context.Context, mutate func() error) {
	u.waitingMutex.Lock()
	defer u.waitingMutex.Unlock()

	if u.current != nil {
		u.current.Stop()
	}

	loop := &updateLoop{
		stop:          make(chan struct{}, 1),
		notifyStopped: make(chan struct{}),
	}
	u.current = loop

	go func() {
		defer func() { loop.notifyStopped <- struct{}{} }()
		for {
			select {
			case <-loop.stop:
				return
			case <-ctx.Done():
				return
			default:
			}

			if err := u.lock.Lock(ctx); err != nil {
				continue
			}
			_ = mutate()
			u.lock.Unlock()
		}
	}()
}

// Stop halts the running loop, blocking until its goroutine has
// returned.
func (u *Updater) Stop() {
	u.waitingMutex.Lock()
	defer u.waitingMutex.Unlock()

	if u.current != nil {
		u.current.Stop()
		u.current = nil
	}
}

func (l *updateLoop) Stop() {
	l.stop <- struct{}{}
	<-l.notifyStopped
}
