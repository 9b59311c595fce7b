// Package cart holds the in-memory cart for one customer session. All reads
// and writes go through Store; every mutation is applied under the store's
// lock and is visible to the next reader immediately.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/domain"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/notify"
	"go.uber.org/zap"
)

var (
	ErrStockLimit      = errors.New("quantity exceeds available stock")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrItemNotFound    = errors.New("cart item not found")
)

const MessageStockLimit = "You have reached the maximum available quantity for this item."

// Persister keeps a convenience copy of the cart between runs. It is never
// treated as authoritative.
type Persister interface {
	SaveCart(ctx context.Context, owner string, items []domain.CartItem) error
	LoadCart(ctx context.Context, owner string) ([]domain.CartItem, error)
	DeleteCart(ctx context.Context, owner string) error
}

type Listener func(items []domain.CartItem)

type Option func(*Store)

func WithPersister(p Persister, owner string) Option {
	return func(s *Store) {
		s.persister = p
		s.owner = owner
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Store) { s.log = log }
}

type Store struct {
	mu        sync.RWMutex
	items     []domain.CartItem
	listeners []Listener

	persister Persister
	owner     string
	notifier  notify.Notifier
	log       *zap.Logger
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		notifier: notify.Discard{},
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddItem appends item, or adds its quantity to the line with the same
// product and variant. A result above the known stock leaves the cart
// unchanged.
func (s *Store) AddItem(item domain.CartItem) error {
	if item.Quantity < 1 {
		return fmt.Errorf("add %s: %w", item.LineKey(), ErrInvalidQuantity)
	}

	s.mu.Lock()
	idx := s.indexByKey(item.LineKey())
	if idx < 0 {
		if item.HasStockLimit() && item.Quantity > item.StockQuantity {
			s.mu.Unlock()
			return s.stockLimit(item.LineKey())
		}
		s.items = append(s.items, item)
	} else {
		line := s.items[idx]
		if item.HasStockLimit() {
			line.StockQuantity = item.StockQuantity
		}
		qty := line.Quantity + item.Quantity
		if line.HasStockLimit() && qty > line.StockQuantity {
			s.mu.Unlock()
			return s.stockLimit(item.LineKey())
		}
		line.Quantity = qty
		s.items[idx] = line
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.changed(snapshot)
	return nil
}

// UpdateQuantity moves the quantity of line id by delta, clamped to
// [1, stock]. Hitting the upper bound notifies and returns ErrStockLimit;
// the line keeps the clamped value.
func (s *Store) UpdateQuantity(id string, delta int) error {
	s.mu.Lock()
	idx := s.indexByID(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("update %s: %w", id, ErrItemNotFound)
	}

	line := s.items[idx]
	want := line.Quantity + delta
	qty := want
	if qty < 1 {
		qty = 1
	}
	overStock := line.HasStockLimit() && qty > line.StockQuantity
	if overStock {
		qty = line.StockQuantity
	}

	changed := qty != line.Quantity
	if changed {
		line.Quantity = qty
		s.items[idx] = line
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if changed {
		s.changed(snapshot)
	}
	if overStock {
		return s.stockLimit(id)
	}
	if want < 1 {
		return fmt.Errorf("update %s: %w", id, ErrInvalidQuantity)
	}
	return nil
}

// RemoveItem removes line id. Removing an absent line is not an error.
func (s *Store) RemoveItem(id string) {
	s.mu.Lock()
	idx := s.indexByID(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.items = append(s.items[:idx:idx], s.items[idx+1:]...)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.changed(snapshot)
}

func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()

	s.changed(nil)
}

// Replace reconciles the store with the server's list. A line the server
// reports without stock keeps the stock already known for it. Lines whose
// quantity exceeds the stock are clamped.
func (s *Store) Replace(items []domain.CartItem) {
	s.mu.Lock()
	known := make(map[string]int, len(s.items))
	for _, line := range s.items {
		if line.HasStockLimit() {
			known[line.LineKey()] = line.StockQuantity
		}
	}

	next := make([]domain.CartItem, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			continue
		}
		if !item.HasStockLimit() {
			item.StockQuantity = known[item.LineKey()]
		}
		if item.HasStockLimit() && item.Quantity > item.StockQuantity {
			item.Quantity = item.StockQuantity
		}
		next = append(next, item)
	}
	s.items = next
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.changed(snapshot)
}

// Items returns a copy of the current lines.
func (s *Store) Items() []domain.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) Item(id string) (domain.CartItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexByID(id)
	if idx < 0 {
		return domain.CartItem{}, false
	}
	return s.items[idx], true
}

func (s *Store) Cart() domain.Cart {
	return domain.Cart{Items: s.Items()}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Subscribe registers fn to receive the new lines after every mutation.
// The returned func removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
	idx := len(s.listeners) - 1
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < len(s.listeners) {
			s.listeners[idx] = nil
		}
	}
}

// Restore loads the persisted copy into an empty store. Callers still
// re-fetch from the server when they can.
func (s *Store) Restore(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	items, err := s.persister.LoadCart(ctx, s.owner)
	if err != nil {
		return fmt.Errorf("restore cart: %w", err)
	}

	s.mu.Lock()
	if len(s.items) > 0 {
		s.mu.Unlock()
		return nil
	}
	s.items = items
	s.mu.Unlock()
	return nil
}

func (s *Store) stockLimit(id string) error {
	s.notifier.Notify(notify.Notice{Level: notify.LevelWarning, Code: "stock_limit", Message: MessageStockLimit})
	return fmt.Errorf("line %s: %w", id, ErrStockLimit)
}

// changed fans out to listeners and the persister. Called without the lock.
func (s *Store) changed(items []domain.CartItem) {
	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()

	for _, fn := range listeners {
		if fn != nil {
			fn(items)
		}
	}

	if s.persister == nil {
		return
	}
	ctx := context.Background()
	var err error
	if len(items) == 0 {
		err = s.persister.DeleteCart(ctx, s.owner)
	} else {
		err = s.persister.SaveCart(ctx, s.owner, items)
	}
	if err != nil {
		s.log.Warn("persist cart snapshot failed", zap.String("owner", s.owner), zap.Error(err))
	}
}

func (s *Store) snapshotLocked() []domain.CartItem {
	if len(s.items) == 0 {
		return nil
	}
	out := make([]domain.CartItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) indexByKey(key string) int {
	for i, item := range s.items {
		if item.LineKey() == key {
			return i
		}
	}
	return -1
}

// indexByID matches the server ID or the line key; a line without a variant
// is keyed by its product ID.
func (s *Store) indexByID(id string) int {
	for i, item := range s.items {
		if item.ID == id || item.LineKey() == id {
			return i
		}
	}
	return -1
}
