package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/scandishop/storefront_api/internal/cart"
	"github.com/scandishop/storefront_api/internal/sse"
)

// ChangeSource streams changes of every cart. SubscribeAll blocks until ctx is
// done or the subscription breaks.
type ChangeSource interface {
	SubscribeAll(ctx context.Context, fn func(cart.Change)) error
}

// CartSyncWorker relays cart changes published by any tab to the tabs
// connected over SSE.
type CartSyncWorker struct {
	source     ChangeSource
	notifier   sse.CartNotifier
	retryDelay time.Duration
}

// NewCartSyncWorker constructs a CartSyncWorker.
func NewCartSyncWorker(source ChangeSource, notifier sse.CartNotifier, retryDelay time.Duration) *CartSyncWorker {
	return &CartSyncWorker{
		source:     source,
		notifier:   notifier,
		retryDelay: retryDelay,
	}
}

// Start subscribes and resubscribes after failures until ctx is cancelled.
func (w *CartSyncWorker) Start(ctx context.Context) {
	log.Info().Dur("retry_delay", w.retryDelay).Msg("Starting cart sync worker")

	for {
		err := w.source.SubscribeAll(ctx, w.notifier.NotifyCartChanged)
		if ctx.Err() != nil {
			log.Info().Msg("Cart sync worker stopped")
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("Cart change subscription failed")
		}

		select {
		case <-time.After(w.retryDelay):
		case <-ctx.Done():
			log.Info().Msg("Cart sync worker stopped")
			return
		}
	}
}
