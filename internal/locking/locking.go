// Package locking serializes work on a named key.
//
// Catalog mutations lock "catalog:{id}", synchronization locks
// "sync:{assetID}" and certificate issuance locks "issue:{orderID}:{itemID}".
// The in-process Local locker covers a single instance; Redis coordinates
// several instances through redsync.
package locking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrEmptyKey is returned when WithLock is called with a blank key
var ErrEmptyKey = errors.New("lock key cannot be empty")

// Locker runs fn while holding the lock for key. Acquisition honors ctx.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// CatalogKey names the lock serializing mutations of one catalog
func CatalogKey(catalogID string) string { return "catalog:" + catalogID }

// SyncKey names the lock serializing synchronization of one asset
func SyncKey(assetID string) string { return "sync:" + assetID }

// IssueKey names the lock serializing issuance for one order line
func IssueKey(orderID, itemID int64) string { return fmt.Sprintf("issue:%d:%d", orderID, itemID) }

// Local is a keyed mutex for a single process
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal creates an in-process locker
func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

// WithLock implements Locker
func (l *Local) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}

	s := l.acquireSlot(key)
	defer l.releaseSlot(key, s)

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
	}
	defer func() { <-s.ch }()

	return fn(ctx)
}

func (l *Local) acquireSlot(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) releaseSlot(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
