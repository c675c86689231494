// Package runlock guards long-running batch jobs so that only one run of a
// given kind is active at a time, across every process sharing the backend.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrLocked is returned when another run holds the lock.
	ErrLocked = errors.New("lock is held by another run")
	// ErrLeaseLost is the cancellation cause of a bound context whose lease
	// could no longer be renewed.
	ErrLeaseLost = errors.New("lock lease lost")
)

// Locker hands out exclusive leases by name.
type Locker interface {
	TryAcquire(ctx context.Context, name string) (*Lease, error)
}

// Lease is a held lock. Release is safe to call more than once.
type Lease struct {
	Name string

	once    sync.Once
	release func(ctx context.Context) error

	lost     chan struct{}
	lostOnce sync.Once

	stop    chan struct{}
	stopped chan struct{}
}

func newLease(name string, release func(ctx context.Context) error) *Lease {
	return &Lease{Name: name, release: release, lost: make(chan struct{})}
}

// Lost is closed once the lease can no longer be trusted.
func (l *Lease) Lost() <-chan struct{} {
	return l.lost
}

func (l *Lease) markLost() {
	l.lostOnce.Do(func() { close(l.lost) })
}

// Bind returns a context cancelled with ErrLeaseLost when the lease is lost.
func (l *Lease) Bind(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	go func() {
		select {
		case <-l.lost:
			cancel(ErrLeaseLost)
		case <-ctx.Done():
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}

// Release stops the renewals and gives the lock back.
func (l *Lease) Release(ctx context.Context) error {
	var err error
	l.once.Do(func() {
		if l.stop != nil {
			close(l.stop)
			<-l.stopped
		}
		err = l.release(ctx)
	})
	return err
}

// keepAlive calls renew every interval until Release. A renewal answering
// false loses the lease at once; renewal errors are retried until grace has
// passed since the last good renewal.
func (l *Lease) keepAlive(interval, grace time.Duration, renew func(ctx context.Context) (bool, error)) {
	l.stop = make(chan struct{})
	l.stopped = make(chan struct{})

	go func() {
		defer close(l.stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		validUntil := time.Now().Add(grace)
		for {
			select {
			case <-l.stop:
				return
			case <-ticker.C:
			}

			ctx, cancel := context.WithTimeout(context.Background(), interval)
			held, err := renew(ctx)
			cancel()

			switch {
			case err == nil && held:
				validUntil = time.Now().Add(grace)
			case err == nil, !time.Now().Before(validUntil):
				l.markLost()
				return
			}
		}
	}()
}

// LocalLocker keeps locks in process memory. It only excludes runs inside
// one process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLocker creates an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

// TryAcquire takes the lock or returns ErrLocked without waiting.
func (l *LocalLocker) TryAcquire(_ context.Context, name string) (*Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[name]; busy {
		return nil, fmt.Errorf("%w: %s", ErrLocked, name)
	}
	l.held[name] = struct{}{}

	return newLease(name, func(context.Context) error {
		l.mu.Lock()
		delete(l.held, name)
		l.mu.Unlock()
		return nil
	}), nil
}
