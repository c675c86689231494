package runlock

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	tryLockSQL = `SELECT pg_try_advisory_lock(hashtext($1))`
	unlockSQL  = `SELECT pg_advisory_unlock(hashtext($1))`
)

// PostgresLocker takes session level advisory locks. The lock lives on one
// pooled connection held for the whole run, so it vanishes with the session
// if the holder dies.
type PostgresLocker struct {
	pool      *pgxpool.Pool
	prefix    string
	heartbeat time.Duration
}

// NewPostgresLocker creates a PostgresLocker. heartbeat is how often the
// holding connection is checked.
func NewPostgresLocker(pool *pgxpool.Pool, prefix string, heartbeat time.Duration) *PostgresLocker {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &PostgresLocker{pool: pool, prefix: prefix, heartbeat: heartbeat}
}

// TryAcquire takes the lock or returns ErrLocked without waiting.
func (p *PostgresLocker) TryAcquire(ctx context.Context, name string) (*Lease, error) {
	key := p.prefix + "lock:" + name

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection for lock %s: %w", name, err)
	}

	var ok bool
	if err := conn.QueryRow(ctx, tryLockSQL, key).Scan(&ok); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if !ok {
		conn.Release()
		return nil, fmt.Errorf("%w: %s", ErrLocked, name)
	}

	lease := newLease(name, func(ctx context.Context) error {
		defer conn.Release()
		var unlocked bool
		if err := conn.QueryRow(ctx, unlockSQL, key).Scan(&unlocked); err != nil {
			// The session must not go back to the pool still holding the lock.
			_ = conn.Conn().Close(ctx)
			return fmt.Errorf("failed to release lock %s: %w", name, err)
		}
		return nil
	})
	// A dead session has already dropped the lock, so any ping error loses the lease.
	lease.keepAlive(p.heartbeat, 0, func(ctx context.Context) (bool, error) {
		return true, conn.Ping(ctx)
	})
	return lease, nil
}
