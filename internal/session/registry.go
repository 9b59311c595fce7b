// Package session keeps one cart container and checkout orchestrator per
// signed-in customer, keyed by the cache scope of their token.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/cache"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/cart"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/checkout"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/domain"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/events"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/notify"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/queries"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/storage"
	"go.uber.org/zap"
)

// CartReader is the read side of the cart queries.
type CartReader interface {
	FetchCart(ctx context.Context) (domain.Cart, error)
	InvalidateCart(ctx context.Context) error
}

type Deps struct {
	API        checkout.Doer
	Cart       CartReader
	Persister  cart.Persister
	Publisher  events.Publisher
	SubmitPath string
	Log        *zap.Logger
}

// Customer is the per-token state.
type Customer struct {
	Owner    string
	Cart     *cart.Store
	Checkout *checkout.Orchestrator
	Notices  *notify.Inbox

	mu       sync.Mutex
	lastSeen time.Time
}

func (c *Customer) touch(now time.Time) {
	c.mu.Lock()
	c.lastSeen = now
	c.mu.Unlock()
}

func (c *Customer) idleSince(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.lastSeen)
}

type Registry struct {
	mu        sync.Mutex
	customers map[string]*Customer

	deps    Deps
	idleTTL time.Duration
	now     func() time.Time
}

func NewRegistry(deps Deps, idleTTL time.Duration) *Registry {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Nop{}
	}
	return &Registry{
		customers: make(map[string]*Customer),
		deps:      deps,
		idleTTL:   idleTTL,
		now:       time.Now,
	}
}

// For returns the customer for token, creating it on first use. A new
// customer is seeded from the local snapshot until Sync replaces it with
// the server cart.
func (r *Registry) For(ctx context.Context, token string) *Customer {
	owner := cache.Scope(token)

	r.mu.Lock()
	c, ok := r.customers[owner]
	if !ok {
		c = r.newCustomer(owner)
		r.customers[owner] = c
	}
	r.mu.Unlock()

	c.touch(r.now())
	if !ok {
		if err := c.Cart.Restore(ctx); err != nil && !errors.Is(err, storage.ErrSnapshotNotFound) {
			r.deps.Log.Warn("restore cart snapshot failed", zap.String("owner", owner), zap.Error(err))
		}
	}
	return c
}

func (r *Registry) newCustomer(owner string) *Customer {
	log := r.deps.Log.With(zap.String("owner", owner))
	inbox := notify.NewInbox(20)
	notifier := notify.NewLogged(inbox, log)

	storeOpts := []cart.Option{cart.WithNotifier(notifier), cart.WithLogger(log)}
	if r.deps.Persister != nil {
		storeOpts = append(storeOpts, cart.WithPersister(r.deps.Persister, owner))
	}
	store := cart.NewStore(storeOpts...)

	orch := checkout.NewOrchestrator(r.deps.API, store,
		checkout.WithSubmitPath(r.deps.SubmitPath),
		checkout.WithCartInvalidator(r.deps.Cart),
		checkout.WithNotifier(notifier),
		checkout.WithPublisher(r.deps.Publisher, owner),
		checkout.WithLogger(log),
	)

	return &Customer{Owner: owner, Cart: store, Checkout: orch, Notices: inbox}
}

// Sync reconciles the customer's container with the server cart. A
// disabled query leaves the container untouched.
func (r *Registry) Sync(ctx context.Context, c *Customer) error {
	remote, err := r.deps.Cart.FetchCart(ctx)
	if err != nil {
		if !errors.Is(err, queries.ErrDisabled) {
			r.deps.Log.Info("cart sync failed", zap.String("owner", c.Owner), zap.Error(err))
		}
		return err
	}
	c.Cart.Replace(remote.Items)
	return nil
}

// Drop signs the token's customer out: any checkout is cancelled and the
// cart, including its persisted snapshot, is cleared.
func (r *Registry) Drop(token string) {
	owner := cache.Scope(token)

	r.mu.Lock()
	c, ok := r.customers[owner]
	delete(r.customers, owner)
	r.mu.Unlock()

	if !ok {
		return
	}
	c.Checkout.Cancel()
	c.Cart.Clear()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.customers)
}

// Sweep drops customers idle for longer than the idle TTL and returns how
// many were dropped. Their persisted snapshots are kept.
func (r *Registry) Sweep() int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for owner, c := range r.customers {
		if c.idleSince(now) > r.idleTTL {
			c.Checkout.Cancel()
			delete(r.customers, owner)
			dropped++
		}
	}
	return dropped
}

// Run sweeps every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.deps.Log.Debug("idle sessions dropped", zap.Int("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}
