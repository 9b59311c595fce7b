package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/cart"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/domain"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/forms"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/notify"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/queries"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/render"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/session"
	"go.uber.org/zap"
)

type CartResponse struct {
	SignedIn bool               `json:"signed_in"`
	Cart     render.CartSummary `json:"cart"`
	Notices  []notify.Notice    `json:"notices,omitempty"`
}

func (h *Handler) cartResponse(c *session.Customer) CartResponse {
	if c == nil {
		return CartResponse{Cart: h.format.CartSummary(nil)}
	}
	return CartResponse{
		SignedIn: true,
		Cart:     h.format.CartSummary(c.Cart.Items()),
		Notices:  c.Notices.Drain(),
	}
}

// GET /api/v1/cart
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	c := h.customer(r)
	if c == nil {
		respondJSON(w, http.StatusOK, h.cartResponse(nil))
		return
	}
	ctx = forCustomer(ctx, c)

	// a failed sync leaves the last known lines in place
	if err := h.sessions.Sync(ctx, c); err != nil && !errors.Is(err, queries.ErrDisabled) {
		_, resp := errorFor(err)
		c.Notices.Notify(notify.Notice{Level: notify.LevelWarning, Code: resp.Code, Message: resp.Error})
	}
	respondJSON(w, http.StatusOK, h.cartResponse(c))
}

// GET /api/v1/cart/summary serves the container as is, without a server
// round trip.
func (h *Handler) GetCartSummary(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.cartResponse(h.customer(r)))
}

// POST /api/v1/cart/items
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	c := h.customer(r)
	if c == nil {
		respondSignIn(w)
		return
	}
	ctx = forCustomer(ctx, c)

	var form forms.AddItemForm
	if err := decodeJSON(r, &form); err != nil {
		respondBadJSON(w, err)
		return
	}
	if err := form.Validate(); err != nil {
		h.respondFailure(w, c, err)
		return
	}

	item := domain.CartItem{
		ProductID:     form.ProductID,
		Title:         form.Title,
		Quantity:      form.Quantity,
		Variant:       form.Variant(),
		StockQuantity: form.StockQuantity,
	}
	before := c.Cart.Items()
	if err := c.Cart.AddItem(item); err != nil {
		h.respondFailure(w, c, err)
		return
	}

	// the endpoint takes the absolute quantity of the merged line
	in := form.Input()
	if line, ok := c.Cart.Item(item.LineKey()); ok {
		in.Quantity = line.Quantity
	}
	if err := h.cart.AddItem(ctx, in); err != nil {
		c.Cart.Replace(before)
		h.respondFailure(w, c, err)
		return
	}

	h.resync(ctx, c)
	respondJSON(w, http.StatusCreated, h.cartResponse(c))
}

// PATCH /api/v1/cart/items/{id}
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	c := h.customer(r)
	if c == nil {
		respondSignIn(w)
		return
	}
	ctx = forCustomer(ctx, c)

	id := chi.URLParam(r, "id")
	var form forms.UpdateQuantityForm
	if err := decodeJSON(r, &form); err != nil {
		respondBadJSON(w, err)
		return
	}
	if err := form.Validate(); err != nil {
		h.respondFailure(w, c, err)
		return
	}

	line, ok := c.Cart.Item(id)
	if !ok {
		h.respondFailure(w, c, cart.ErrItemNotFound)
		return
	}
	delta := form.Delta
	if form.Quantity > 0 {
		delta = form.Quantity - line.Quantity
	}

	before := c.Cart.Items()
	stepErr := c.Cart.UpdateQuantity(id, delta)
	if errors.Is(stepErr, cart.ErrItemNotFound) {
		h.respondFailure(w, c, stepErr)
		return
	}

	// a clamped change is still sent so the server matches what is shown
	updated, _ := c.Cart.Item(id)
	if updated.Quantity != line.Quantity {
		in := queries.ItemInput{ProductID: line.ProductID, Quantity: updated.Quantity, Variant: line.Variant}
		if err := h.cart.UpdateItem(ctx, in); err != nil {
			c.Cart.Replace(before)
			h.respondFailure(w, c, err)
			return
		}
		h.resync(ctx, c)
	}

	if stepErr != nil {
		h.respondFailure(w, c, stepErr)
		return
	}
	respondJSON(w, http.StatusOK, h.cartResponse(c))
}

// DELETE /api/v1/cart/items/{id}
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	c := h.customer(r)
	if c == nil {
		respondSignIn(w)
		return
	}
	ctx = forCustomer(ctx, c)

	id := chi.URLParam(r, "id")
	remoteID := id
	if line, ok := c.Cart.Item(id); ok {
		remoteID = line.LineID()
	}

	before := c.Cart.Items()
	c.Cart.RemoveItem(id)
	if err := h.cart.DeleteItem(ctx, remoteID); err != nil {
		c.Cart.Replace(before)
		h.respondFailure(w, c, err)
		return
	}

	h.resync(ctx, c)
	respondJSON(w, http.StatusOK, h.cartResponse(c))
}

// resync pulls the server cart after a successful mutation. Failure keeps
// the optimistic state.
func (h *Handler) resync(ctx context.Context, c *session.Customer) {
	if err := h.sessions.Sync(ctx, c); err != nil {
		h.log.Debug("cart resync failed", zap.String("owner", c.Owner), zap.Error(err))
	}
}
