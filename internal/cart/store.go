package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/scandishop/storefront_api/internal/models"
	"github.com/scandishop/storefront_api/internal/utils"
)

// Storage is the durable per-origin cart store. Load returns nil data when
// nothing has been saved yet. Update replaces the stored data with fn's result
// atomically against every other Update of the same cart; fn may run more
// than once and a nil result removes the cart. An error from fn aborts the
// update and is returned as is.
type Storage interface {
	Load(ctx context.Context, cartID string) ([]byte, error)
	Update(ctx context.Context, cartID string, fn func(current []byte) ([]byte, error)) error
}

// Change announces that a tab rewrote a cart.
type Change struct {
	CartID string     `json:"cartId"`
	TabID  string     `json:"tabId"`
	Items  []LineItem `json:"items"`
}

// Bus carries cart changes between tabs. Subscribe blocks, calling fn for
// every change of cartID, until ctx is done.
type Bus interface {
	Publish(ctx context.Context, change Change) error
	Subscribe(ctx context.Context, cartID string, fn func(Change)) error
}

// OrderLine is one cart row as submitted at checkout. Attributes holds the
// JSON encoded selections.
type OrderLine struct {
	ProductID   string
	ProductName string
	Price       decimal.Decimal
	Quantity    int
	Attributes  string
}

// OrderPlacer submits an order built from the cart.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, lines []OrderLine) (*models.Order, error)
}

// OrderPlacerFunc adapts a function to OrderPlacer.
type OrderPlacerFunc func(ctx context.Context, lines []OrderLine) (*models.Order, error)

// PlaceOrder calls f.
func (f OrderPlacerFunc) PlaceOrder(ctx context.Context, lines []OrderLine) (*models.Order, error) {
	return f(ctx, lines)
}

// Store is one tab's view of a cart. Every mutation is a read-modify-write
// inside one Storage.Update, so concurrent mutations of the same cart, from
// this tab or any other, never lose each other's changes.
type Store struct {
	cartID  string
	tabID   string
	storage Storage
	bus     Bus

	mu sync.Mutex

	lmu       sync.Mutex
	listeners map[int]func(Snapshot)
	nextID    int
}

// NewStore binds a tab to a cart. bus may be nil, in which case changes are
// only seen by this Store's listeners.
func NewStore(cartID, tabID string, storage Storage, bus Bus) *Store {
	return &Store{
		cartID:    cartID,
		tabID:     tabID,
		storage:   storage,
		bus:       bus,
		listeners: make(map[int]func(Snapshot)),
	}
}

// OnChange registers fn to run after every change this tab makes and, while
// Watch runs, after every change made by other tabs. fn must not call back
// into the Store. The returned func removes it.
func (s *Store) OnChange(fn func(Snapshot)) (unsubscribe func()) {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Store) notify(snap Snapshot) {
	s.lmu.Lock()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Snapshot reads the current cart.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.load(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Summarize(items), nil
}

// AddOrMerge adds product with the given selections. If a line with the same
// product and selection fingerprint exists its quantity grows instead.
// Quantities below one count as one.
func (s *Store) AddOrMerge(ctx context.Context, product Product, selections []SelectedAttribute, quantity int) (Snapshot, error) {
	if product.ID == "" {
		return Snapshot{}, fmt.Errorf("%w: product id is required", utils.ErrInvalidCartInput)
	}
	if quantity < 1 {
		quantity = 1
	}
	key := Fingerprint(selections)

	return s.mutate(ctx, func(items []LineItem) ([]LineItem, error) {
		for i := range items {
			if items[i].ProductID == product.ID && items[i].AttrKey == key {
				items[i].Quantity += quantity
				return items, nil
			}
		}
		return append(items, LineItem{
			ProductID:          product.ID,
			Name:               product.Name,
			Price:              product.Price,
			Image:              product.Image,
			Quantity:           quantity,
			SelectedAttributes: copySelections(selections),
			AttrKey:            key,
			AttributeSets:      product.AttributeSets,
		}), nil
	})
}

// AdjustQuantity adds delta to the line at index, removing it when the result
// is not positive.
func (s *Store) AdjustQuantity(ctx context.Context, index, delta int) (Snapshot, error) {
	return s.mutate(ctx, func(items []LineItem) ([]LineItem, error) {
		if err := checkIndex(items, index); err != nil {
			return nil, err
		}
		return setQuantity(items, index, items[index].Quantity+delta), nil
	})
}

// SetQuantity replaces the quantity of the line at index, removing it when
// quantity is not positive.
func (s *Store) SetQuantity(ctx context.Context, index, quantity int) (Snapshot, error) {
	return s.mutate(ctx, func(items []LineItem) ([]LineItem, error) {
		if err := checkIndex(items, index); err != nil {
			return nil, err
		}
		return setQuantity(items, index, quantity), nil
	})
}

// RemoveLine deletes the line at index.
func (s *Store) RemoveLine(ctx context.Context, index int) (Snapshot, error) {
	return s.mutate(ctx, func(items []LineItem) ([]LineItem, error) {
		if err := checkIndex(items, index); err != nil {
			return nil, err
		}
		return removeAt(items, index), nil
	})
}

// UpdateAttributes replaces the selections of the line at index. When the new
// fingerprint matches another line of the same product the two lines merge.
func (s *Store) UpdateAttributes(ctx context.Context, index int, selections []SelectedAttribute) (Snapshot, error) {
	return s.Reselect(ctx, index, func(LineItem) ([]SelectedAttribute, error) {
		return selections, nil
	})
}

// Reselect is UpdateAttributes with the selections derived from the line at
// index as it is stored when the change applies. An error from resolve leaves
// the cart untouched.
func (s *Store) Reselect(ctx context.Context, index int, resolve func(line LineItem) ([]SelectedAttribute, error)) (Snapshot, error) {
	return s.mutate(ctx, func(items []LineItem) ([]LineItem, error) {
		if err := checkIndex(items, index); err != nil {
			return nil, err
		}
		line := items[index]
		selections, err := resolve(line)
		if err != nil {
			return nil, err
		}
		key := Fingerprint(selections)
		for i := range items {
			if i != index && items[i].ProductID == line.ProductID && items[i].AttrKey == key {
				items[i].Quantity += line.Quantity
				return removeAt(items, index), nil
			}
		}
		items[index].SelectedAttributes = copySelections(selections)
		items[index].AttrKey = key
		return items, nil
	})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) (Snapshot, error) {
	return s.mutate(ctx, func([]LineItem) ([]LineItem, error) {
		return []LineItem{}, nil
	})
}

// Checkout submits the cart through placer and, once placer confirms the
// order, removes the ordered quantities. Lines added while the order was being
// placed stay in the cart. On any failure the cart is left as it was.
func (s *Store) Checkout(ctx context.Context, placer OrderPlacer) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", utils.ErrInvalidCartInput)
	}

	lines := make([]OrderLine, 0, len(items))
	for _, item := range items {
		attrs, err := json.Marshal(item.SelectedAttributes)
		if err != nil {
			return nil, fmt.Errorf("encode attributes of %s: %w", item.ProductID, err)
		}
		lines = append(lines, OrderLine{
			ProductID:   item.ProductID,
			ProductName: item.Name,
			Price:       item.Price,
			Quantity:    item.Quantity,
			Attributes:  string(attrs),
		})
	}

	order, err := placer.PlaceOrder(ctx, lines)
	if err != nil {
		log.Warn().Err(err).Str("cart_id", s.cartID).Msg("Checkout failed, cart kept")
		return nil, err
	}
	if order == nil {
		log.Warn().Str("cart_id", s.cartID).Msg("Checkout returned no order, cart kept")
		return nil, fmt.Errorf("%w: no order returned", utils.ErrOrderSubmission)
	}

	if _, err := s.update(ctx, func(current []LineItem) ([]LineItem, error) {
		return subtractOrdered(current, items), nil
	}); err != nil {
		// The order exists; report it and let the caller retry the clear.
		log.Error().Err(err).Str("cart_id", s.cartID).Int("order_id", order.ID).Msg("Failed to clear cart after checkout")
		return order, err
	}
	log.Info().Str("cart_id", s.cartID).Int("order_id", order.ID).Msg("Cart checked out")
	return order, nil
}

// Watch relays changes made by other tabs to this Store's listeners until ctx
// is done. The durable store is re-read on every change.
func (s *Store) Watch(ctx context.Context) error {
	if s.bus == nil {
		return errors.New("cart: no change bus configured")
	}
	return s.bus.Subscribe(ctx, s.cartID, func(change Change) {
		if change.TabID == s.tabID {
			return
		}
		snap, err := s.Snapshot(ctx)
		if err != nil {
			log.Error().Err(err).Str("cart_id", s.cartID).Msg("Failed to reload cart after remote change")
			return
		}
		s.notify(snap)
	})
}

func (s *Store) mutate(ctx context.Context, fn func([]LineItem) ([]LineItem, error)) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(ctx, fn)
}

// update applies fn to the stored cart inside one Storage.Update, then tells
// this tab's listeners and finally the other tabs. An empty result removes the
// stored cart. Callers hold s.mu.
func (s *Store) update(ctx context.Context, fn func([]LineItem) ([]LineItem, error)) (Snapshot, error) {
	var items []LineItem
	err := s.storage.Update(ctx, s.cartID, func(raw []byte) ([]byte, error) {
		next, err := fn(s.decode(raw))
		if err != nil {
			return nil, err
		}
		if len(next) == 0 {
			items = []LineItem{}
			return nil, nil
		}
		data, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("encode cart: %w", err)
		}
		items = next
		return data, nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	snap := Summarize(items)
	s.notify(snap)

	if s.bus != nil {
		if err := s.bus.Publish(ctx, Change{CartID: s.cartID, TabID: s.tabID, Items: items}); err != nil {
			log.Warn().Err(err).Str("cart_id", s.cartID).Msg("Failed to publish cart change")
		}
	}
	return snap, nil
}

func (s *Store) load(ctx context.Context) ([]LineItem, error) {
	raw, err := s.storage.Load(ctx, s.cartID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return s.decode(raw), nil
}

// decode parses and normalizes persisted data. Unparseable data reads as an
// empty cart.
func (s *Store) decode(raw []byte) []LineItem {
	if len(raw) == 0 {
		return []LineItem{}
	}
	var items []LineItem
	if err := json.Unmarshal(raw, &items); err != nil {
		log.Error().Err(err).Str("cart_id", s.cartID).Msg("Corrupt cart data, starting empty")
		return []LineItem{}
	}
	return normalize(items)
}

// normalize repairs data written by older or foreign writers: quantities are
// at least one, fingerprints are recomputed and duplicate identities merge.
func normalize(items []LineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	type identity struct{ product, key string }
	pos := make(map[identity]int, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		if item.SelectedAttributes == nil {
			item.SelectedAttributes = []SelectedAttribute{}
		}
		item.AttrKey = Fingerprint(item.SelectedAttributes)
		id := identity{item.ProductID, item.AttrKey}
		if i, ok := pos[id]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		pos[id] = len(out)
		out = append(out, item)
	}
	return out
}

// subtractOrdered takes the ordered quantities off the matching lines of
// current, dropping lines that reach zero.
func subtractOrdered(current, ordered []LineItem) []LineItem {
	for _, o := range ordered {
		for i := range current {
			if current[i].ProductID == o.ProductID && current[i].AttrKey == o.AttrKey {
				current = setQuantity(current, i, current[i].Quantity-o.Quantity)
				break
			}
		}
	}
	return current
}

func checkIndex(items []LineItem, index int) error {
	if index < 0 || index >= len(items) {
		return fmt.Errorf("%w: index %d of %d", utils.ErrCartLineNotFound, index, len(items))
	}
	return nil
}

func setQuantity(items []LineItem, index, quantity int) []LineItem {
	if quantity <= 0 {
		return removeAt(items, index)
	}
	items[index].Quantity = quantity
	return items
}

func removeAt(items []LineItem, index int) []LineItem {
	return append(items[:index], items[index+1:]...)
}

func copySelections(selections []SelectedAttribute) []SelectedAttribute {
	out := make([]SelectedAttribute, len(selections))
	for i, sel := range selections {
		if sel.ItemID != nil {
			id := *sel.ItemID
			sel.ItemID = &id
		}
		out[i] = sel
	}
	return out
}
