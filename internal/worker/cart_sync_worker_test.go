package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scandishop/storefront_api/internal/cache"
	"github.com/scandishop/storefront_api/internal/cart"
)

type recordingNotifier struct {
	mu      sync.Mutex
	changes []cart.Change
}

func (n *recordingNotifier) NotifyCartChanged(change cart.Change) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.changes)
}

type flakySource struct {
	mu       sync.Mutex
	attempts int
}

func (s *flakySource) SubscribeAll(ctx context.Context, fn func(cart.Change)) error {
	s.mu.Lock()
	s.attempts++
	attempt := s.attempts
	s.mu.Unlock()

	if attempt == 1 {
		return errors.New("connection reset")
	}
	fn(cart.Change{CartID: "cart-1", TabID: "tab-a"})
	<-ctx.Done()
	return nil
}

func TestCartSyncWorker_ResubscribesAfterFailure(t *testing.T) {
	source := &flakySource{}
	notifier := &recordingNotifier{}
	w := NewCartSyncWorker(source, notifier, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return notifier.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, 2, source.attempts)
}

func TestCartSyncWorker_RelaysRedisChanges(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	backend := cache.NewCartStore(cache.WrapClient(client), "scandishop_cart_v1", 0)

	notifier := &recordingNotifier{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewCartSyncWorker(backend, notifier, 50*time.Millisecond).Start(ctx)
	require.Eventually(t, func() bool { return mr.PubSubNumPat() == 1 }, time.Second, 10*time.Millisecond)

	store := cart.NewStore("cart-9", "tab-a", backend, backend)
	_, err := store.AddOrMerge(ctx, cart.Product{ID: "tee"}, nil, 1)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return notifier.count() == 1 }, time.Second, 10*time.Millisecond)
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, "cart-9", notifier.changes[0].CartID)
	assert.Equal(t, "tab-a", notifier.changes[0].TabID)
}
