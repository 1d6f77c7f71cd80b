package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/scandishop/storefront_api/internal/cart"
	"github.com/scandishop/storefront_api/internal/utils"
)

const (
	eventsSuffix = ":events"
	// maxUpdateAttempts bounds the optimistic retries of one Update.
	maxUpdateAttempts = 100
)

// CartStore keeps carts in Redis and carries their change notifications over
// pub/sub. It serves as both cart.Storage and cart.Bus.
//
// Key: {prefix}:{cartId} (JSON array of line items)
// Channel: {prefix}:{cartId}:events
type CartStore struct {
	redis  *RedisClient
	prefix string
	ttl    time.Duration
}

// NewCartStore creates a CartStore. A zero ttl keeps carts until cleared.
func NewCartStore(redis *RedisClient, prefix string, ttl time.Duration) *CartStore {
	return &CartStore{redis: redis, prefix: prefix, ttl: ttl}
}

// Key returns the Redis key holding cartID.
func (c *CartStore) Key(cartID string) string {
	return fmt.Sprintf("%s:%s", c.prefix, cartID)
}

// Channel returns the change channel of cartID.
func (c *CartStore) Channel(cartID string) string {
	return c.Key(cartID) + eventsSuffix
}

// Pattern matches the change channel of every cart.
func (c *CartStore) Pattern() string {
	return c.prefix + ":*" + eventsSuffix
}

// Load returns the stored cart, or nil when none was saved.
func (c *CartStore) Load(ctx context.Context, cartID string) ([]byte, error) {
	data, err := c.redis.Get(ctx, c.Key(cartID))
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart %s: %w", cartID, err)
	}
	return data, nil
}

// Update rewrites the stored cart with fn's result under WATCH on the cart
// key, rerunning fn whenever another writer got in first. A nil result
// deletes the key.
func (c *CartStore) Update(ctx context.Context, cartID string, fn func(current []byte) ([]byte, error)) error {
	key := c.Key(cartID)
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to get cart %s: %w", cartID, err)
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, key)
			} else {
				pipe.Set(ctx, key, next, c.ttl)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := c.redis.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	log.Warn().Str("cart_id", cartID).Int("attempts", maxUpdateAttempts).Msg("Cart update kept conflicting")
	return fmt.Errorf("%w: cart %s", utils.ErrCartConflict, cartID)
}

// Publish announces a change on the cart's channel.
func (c *CartStore) Publish(ctx context.Context, change cart.Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal cart change: %w", err)
	}
	return c.redis.Publish(ctx, c.Channel(change.CartID), payload)
}

// Subscribe calls fn for every change of cartID until ctx is done.
func (c *CartStore) Subscribe(ctx context.Context, cartID string, fn func(cart.Change)) error {
	ps := c.redis.Subscribe(ctx, c.Channel(cartID))
	defer ps.Close()
	return c.consume(ctx, ps, fn)
}

// SubscribeAll calls fn for changes of every cart until ctx is done.
func (c *CartStore) SubscribeAll(ctx context.Context, fn func(cart.Change)) error {
	ps := c.redis.PSubscribe(ctx, c.Pattern())
	defer ps.Close()
	return c.consume(ctx, ps, fn)
}

func (c *CartStore) consume(ctx context.Context, ps *redis.PubSub, fn func(cart.Change)) error {
	// first reply is the subscription confirmation
	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var change cart.Change
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("Ignoring malformed cart change")
				continue
			}
			if change.CartID == "" {
				change.CartID = strings.TrimSuffix(strings.TrimPrefix(msg.Channel, c.prefix+":"), eventsSuffix)
			}
			fn(change)
		}
	}
}
