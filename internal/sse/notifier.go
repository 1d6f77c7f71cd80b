package sse

import (
	"time"

	"github.com/scandishop/storefront_api/internal/cart"
)

// CartNotifier is the interface the relay uses to emit cart events.
type CartNotifier interface {
	NotifyCartChanged(change cart.Change)
}

// HubNotifier implements CartNotifier using the SSE Hub.
type HubNotifier struct {
	hub *Hub
}

// NewHubNotifier creates a notifier backed by the given Hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyCartChanged(change cart.Change) {
	if n.hub.ClientCount() == 0 {
		return
	}
	n.hub.Broadcast(changeToEvent(change))
}

func changeToEvent(change cart.Change) *CartEvent {
	snap := cart.Summarize(change.Items)
	return &CartEvent{
		Event:     EventCartChanged,
		CartID:    change.CartID,
		TabID:     change.TabID,
		Items:     snap.Items,
		Count:     snap.Count,
		Total:     snap.Total,
		Timestamp: time.Now(),
	}
}
