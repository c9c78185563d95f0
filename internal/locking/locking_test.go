package locking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func slotCount(l *Local) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func TestLocal_SerializesSameKey(t *testing.T) {
	l := NewLocal()

	var active, maxActive int32
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			return l.WithLock(ctx, SyncKey("asset-1"), func(ctx context.Context) error {
				n := atomic.AddInt32(&active, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
		})
	}

	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), maxActive)
	assert.Equal(t, 0, slotCount(l), "slots are released once idle")
}

func TestLocal_DifferentKeysRunConcurrently(t *testing.T) {
	l := NewLocal()

	entered := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = l.WithLock(context.Background(), IssueKey(10, 3), func(ctx context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	done := make(chan error, 1)
	go func() {
		done <- l.WithLock(context.Background(), IssueKey(10, 4), func(ctx context.Context) error { return nil })
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("independent key blocked")
	}

	close(release)
	wg.Wait()
}

func TestLocal_HonorsContext(t *testing.T) {
	l := NewLocal()

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = l.WithLock(context.Background(), CatalogKey("default"), func(ctx context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	called := false
	err := l.WithLock(ctx, CatalogKey("default"), func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
}

func TestLocal_PropagatesError(t *testing.T) {
	l := NewLocal()
	want := errors.New("boom")

	err := l.WithLock(context.Background(), "k", func(ctx context.Context) error { return want })
	assert.ErrorIs(t, err, want)

	assert.ErrorIs(t, l.WithLock(context.Background(), " ", func(ctx context.Context) error { return nil }), ErrEmptyKey)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "catalog:default", CatalogKey("default"))
	assert.Equal(t, "sync:a1", SyncKey("a1"))
	assert.Equal(t, "issue:10:3", IssueKey(10, 3))
}
