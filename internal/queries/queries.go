// Package queries wraps the cart and address endpoints behind a read-through
// query cache. Reads are deduplicated and cached for the staleness window;
// successful mutations invalidate the reads they affect.
package queries

import (
	"context"
	"errors"
	"time"

	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/apiclient"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/auth"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/cache"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/events"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/notify"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrDisabled is returned instead of issuing a request when there is no
// usable token. It represents the logged-out state, not a failure.
var ErrDisabled = errors.New("query disabled: not signed in")

const FallbackMessage = "Something went wrong. Please try again."

// Doer is the part of apiclient.Client the queries need.
type Doer interface {
	Do(ctx context.Context, req apiclient.Request, out any) error
}

// envelope is the backend's response wrapper.
type envelope[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

type Option func(*base)

func WithNotifier(n notify.Notifier) Option {
	return func(b *base) { b.notifier = n }
}

func WithLogger(log *zap.Logger) Option {
	return func(b *base) { b.log = log }
}

func WithPublisher(p events.Publisher) Option {
	return func(b *base) { b.events = p }
}

func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

type base struct {
	api      Doer
	tokens   apiclient.TokenSource
	cache    cache.QueryCache
	sfg      singleflight.Group // Prevents duplicate in-flight reads
	notifier notify.Notifier
	events   events.Publisher
	log      *zap.Logger
	now      func() time.Time
}

func newBase(api Doer, tokens apiclient.TokenSource, qc cache.QueryCache, opts []Option) *base {
	b := &base{
		api:      api,
		tokens:   tokens,
		cache:    qc,
		notifier: notify.Discard{},
		events:   events.Nop{},
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// scope returns the cache scope for the caller's token, or ErrDisabled.
func (b *base) scope(ctx context.Context) (string, error) {
	token, err := b.tokens.Token(ctx)
	if err != nil {
		b.log.Warn("token lookup failed", zap.Error(err))
		return "", ErrDisabled
	}
	if !auth.Usable(token, b.now()) {
		return "", ErrDisabled
	}
	return cache.Scope(token), nil
}

// read serves key from the cache, falling back to fetch on a miss.
// Concurrent callers for the same key share one fetch.
func read[T any](ctx context.Context, b *base, key string, fetch func(context.Context) (T, error)) (T, error) {
	v, err, _ := b.sfg.Do(key, func() (interface{}, error) {
		var cached T
		err := b.cache.Get(ctx, key, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			b.log.Warn("query cache get failed", zap.String("key", key), zap.Error(err))
		}

		fresh, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		if errSet := b.cache.Set(ctx, key, fresh); errSet != nil {
			b.log.Warn("query cache set failed", zap.String("key", key), zap.Error(errSet))
		}
		return fresh, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// mutated invalidates keys after a successful mutation.
func (b *base) mutated(keys ...string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := b.cache.Delete(ctx, keys...); err != nil {
		b.log.Warn("query cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// notify sends n to the configured notifier and to the caller's notifier
// carried in ctx.
func (b *base) notify(ctx context.Context, n notify.Notice) {
	b.notifier.Notify(n)
	if caller, ok := notify.FromContext(ctx); ok {
		caller.Notify(n)
	}
}

// failed tells the user about a mutation failure and returns err unchanged.
func (b *base) failed(ctx context.Context, op string, err error) error {
	notice := notify.Notice{Level: notify.LevelError, Message: FallbackMessage}
	if apiErr, ok := apiclient.AsError(err); ok {
		notice.Message = apiErr.UserMessage(FallbackMessage)
		notice.Code = apiErr.Kind.String()
		if apiErr.Kind == apiclient.KindUnauthorized {
			notice.Code = "sign_in"
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	b.log.Info("mutation failed", zap.String("op", op), zap.Error(err))
	b.notify(ctx, notice)
	return err
}
