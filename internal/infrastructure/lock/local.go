// Package lock provides the run locks that keep scans from overlapping.
package lock

import (
	"context"
	"sync"

	"RegulatoryRadar/internal/ports"
)

// Local serializes scans inside a single process.
type Local struct {
	mu sync.Mutex
}

var _ ports.RunLocker = (*Local)(nil)

// NewLocal returns an unlocked in-process lock.
func NewLocal() *Local {
	return &Local{}
}

// TryLock acquires the lock without waiting.
func (l *Local) TryLock(ctx context.Context) (func(), bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if !l.mu.TryLock() {
		return nil, false, nil
	}

	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, true, nil
}
