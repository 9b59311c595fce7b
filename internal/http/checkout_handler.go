package http

import (
	"context"
	"net/http"

	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/checkout"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/forms"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/notify"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/render"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/session"
)

type CheckoutResponse struct {
	CheckoutID string                 `json:"checkout_id"`
	Summary    render.CheckoutSummary `json:"summary"`
	Notices    []notify.Notice        `json:"notices,omitempty"`
}

func (h *Handler) checkoutResponse(c *session.Customer, s checkout.Session) CheckoutResponse {
	return CheckoutResponse{
		CheckoutID: s.ID,
		Summary:    h.format.CheckoutSummary(s),
		Notices:    c.Notices.Drain(),
	}
}

type checkoutStep func(ctx context.Context, c *session.Customer) (checkout.Session, error)

// runStep is the common shape of every checkout endpoint: resolve the
// customer, run one orchestrator step and render the resulting session.
func (h *Handler) runStep(w http.ResponseWriter, r *http.Request, status int, step checkoutStep) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	c := h.customer(r)
	if c == nil {
		respondSignIn(w)
		return
	}

	s, err := step(forCustomer(ctx, c), c)
	if err != nil {
		h.respondFailure(w, c, err)
		return
	}
	respondJSON(w, status, h.checkoutResponse(c, s))
}

// POST /api/v1/checkout
func (h *Handler) BeginCheckout(w http.ResponseWriter, r *http.Request) {
	h.runStep(w, r, http.StatusCreated, func(ctx context.Context, c *session.Customer) (checkout.Session, error) {
		h.resync(ctx, c)
		return c.Checkout.Begin(ctx)
	})
}

// GET /api/v1/checkout
func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	h.runStep(w, r, http.StatusOK, func(_ context.Context, c *session.Customer) (checkout.Session, error) {
		s, ok := c.Checkout.Session()
		if !ok {
			return checkout.Session{}, checkout.ErrNoSession
		}
		return s, nil
	})
}

// POST /api/v1/checkout/address
func (h *Handler) SelectAddress(w http.ResponseWriter, r *http.Request) {
	var form forms.SelectAddressForm
	if err := decodeJSON(r, &form); err != nil {
		respondBadJSON(w, err)
		return
	}
	h.runStep(w, r, http.StatusOK, func(ctx context.Context, c *session.Customer) (checkout.Session, error) {
		if err := form.Validate(); err != nil {
			return checkout.Session{}, err
		}
		return c.Checkout.SelectAddress(ctx, form.AddressID)
	})
}

// POST /api/v1/checkout/rate
func (h *Handler) SelectRate(w http.ResponseWriter, r *http.Request) {
	var form forms.SelectRateForm
	if err := decodeJSON(r, &form); err != nil {
		respondBadJSON(w, err)
		return
	}
	h.runStep(w, r, http.StatusOK, func(ctx context.Context, c *session.Customer) (checkout.Session, error) {
		if err := form.Validate(); err != nil {
			return checkout.Session{}, err
		}
		return c.Checkout.SelectRate(ctx, form.RateID)
	})
}

// POST /api/v1/checkout/shipping/retry
func (h *Handler) RetryShipping(w http.ResponseWriter, r *http.Request) {
	h.runStep(w, r, http.StatusOK, func(ctx context.Context, c *session.Customer) (checkout.Session, error) {
		return c.Checkout.RetryShipping(ctx)
	})
}

// POST /api/v1/checkout/submit
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	h.runStep(w, r, http.StatusOK, func(ctx context.Context, c *session.Customer) (checkout.Session, error) {
		return c.Checkout.Submit(ctx)
	})
}

// POST /api/v1/checkout/retry
func (h *Handler) RetryCheckout(w http.ResponseWriter, r *http.Request) {
	h.runStep(w, r, http.StatusOK, func(ctx context.Context, c *session.Customer) (checkout.Session, error) {
		return c.Checkout.Retry(ctx)
	})
}

// DELETE /api/v1/checkout
func (h *Handler) CancelCheckout(w http.ResponseWriter, r *http.Request) {
	c := h.customer(r)
	if c == nil {
		respondSignIn(w)
		return
	}
	c.Checkout.Cancel()
	w.WriteHeader(http.StatusNoContent)
}
