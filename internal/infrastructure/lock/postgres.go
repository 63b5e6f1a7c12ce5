package lock

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"RegulatoryRadar/internal/ports"
)

// Postgres holds a session-level advisory lock on a dedicated connection, so
// every worker attached to the same database sees the same lock.
type Postgres struct {
	db     *sql.DB
	key    int64
	logger *slog.Logger
}

var _ ports.RunLocker = (*Postgres)(nil)

// NewPostgres derives the advisory key from the namespace.
func NewPostgres(db *sql.DB, namespace string, logger *slog.Logger) *Postgres {
	return &Postgres{db: db, key: AdvisoryKey64(namespace), logger: logger}
}

// AdvisoryKey64 hashes a namespace into a pg advisory lock key.
func AdvisoryKey64(namespace string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(namespace))
	return int64(h.Sum64())
}

// TryLock takes pg_try_advisory_lock without waiting. The returned release
// unlocks and returns the connection to the pool.
func (p *Postgres) TryLock(ctx context.Context) (func(), bool, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", p.key).Scan(&acquired); err != nil {
		_ = conn.Close()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		_ = conn.Close()
		return nil, false, nil
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := conn.ExecContext(unlockCtx, "SELECT pg_advisory_unlock($1)", p.key); err != nil && p.logger != nil {
				p.logger.Warn("advisory unlock failed", "error", err)
			}
			_ = conn.Close()
		})
	}
	return release, true, nil
}
