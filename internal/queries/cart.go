package queries

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/apiclient"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/cache"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/domain"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/events"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/notify"
)

const (
	pathCart       = "/customer/cart"
	pathCartCreate = "/customer/cart/create"
	pathCartDelete = "/customer/cart/delete/"

	keyCart = "cart"
)

// ItemInput is the payload of the add/update cart endpoint. Quantity is
// the absolute quantity of the line.
type ItemInput struct {
	ProductID int64
	Quantity  int
	Variant   *domain.Variant
}

func (in ItemInput) fields() map[string]string {
	f := map[string]string{
		"product_id": strconv.FormatInt(in.ProductID, 10),
		"quantity":   strconv.Itoa(in.Quantity),
	}
	if in.Variant != nil {
		if in.Variant.SizeID != 0 {
			f["size_id"] = strconv.FormatInt(in.Variant.SizeID, 10)
		}
		if in.Variant.ColorID != 0 {
			f["color_id"] = strconv.FormatInt(in.Variant.ColorID, 10)
		}
	}
	return f
}

type CartQueries struct {
	*base
}

func NewCartQueries(api Doer, tokens apiclient.TokenSource, qc cache.QueryCache, opts ...Option) *CartQueries {
	return &CartQueries{base: newBase(api, tokens, qc, opts)}
}

// FetchCart returns the server cart, from cache while it is fresh.
func (q *CartQueries) FetchCart(ctx context.Context) (domain.Cart, error) {
	scope, err := q.scope(ctx)
	if err != nil {
		return domain.Cart{}, err
	}

	return read(ctx, q.base, cache.Key(scope, keyCart), func(ctx context.Context) (domain.Cart, error) {
		var resp envelope[[]domain.CartItem]
		if err := q.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: pathCart}, &resp); err != nil {
			return domain.Cart{}, err
		}
		return domain.Cart{Items: resp.Data}, nil
	})
}

func (q *CartQueries) AddItem(ctx context.Context, in ItemInput) error {
	return q.upsert(ctx, "add_item", events.CartItemAdded, in)
}

// UpdateItem sets the quantity of an existing line.
func (q *CartQueries) UpdateItem(ctx context.Context, in ItemInput) error {
	return q.upsert(ctx, "update_item", events.CartItemUpdated, in)
}

func (q *CartQueries) upsert(ctx context.Context, op string, evt events.Type, in ItemInput) error {
	scope, err := q.scope(ctx)
	if err != nil {
		return err
	}

	req := apiclient.Request{
		Method:    http.MethodPost,
		Path:      pathCartCreate,
		Body:      in.fields(),
		Multipart: true,
	}
	if err := q.api.Do(ctx, req, nil); err != nil {
		return q.failed(ctx, op, err)
	}

	q.mutated(cache.Key(scope, keyCart))
	q.events.Publish(ctx, events.Event{Type: evt, Owner: scope, ProductID: in.ProductID, Quantity: in.Quantity})
	return nil
}

func (q *CartQueries) DeleteItem(ctx context.Context, id string) error {
	scope, err := q.scope(ctx)
	if err != nil {
		return err
	}

	req := apiclient.Request{Method: http.MethodDelete, Path: pathCartDelete + url.PathEscape(id)}
	if err := q.api.Do(ctx, req, nil); err != nil {
		return q.failed(ctx, "delete_item", err)
	}

	q.mutated(cache.Key(scope, keyCart))
	q.events.Publish(ctx, events.Event{Type: events.CartItemRemoved, Owner: scope, ItemID: id})
	q.notify(ctx, notify.Notice{Level: notify.LevelInfo, Code: "item_removed", Message: "Item removed from cart."})
	return nil
}

// InvalidateCart drops the cached cart so the next read hits the server.
func (q *CartQueries) InvalidateCart(ctx context.Context) error {
	scope, err := q.scope(ctx)
	if err != nil {
		return err
	}
	q.mutated(cache.Key(scope, keyCart))
	return nil
}
