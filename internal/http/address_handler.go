package http

import (
	"net/http"

	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/domain"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/forms"
)

type AddressesResponse struct {
	SignedIn  bool             `json:"signed_in"`
	Addresses []domain.Address `json:"addresses"`
}

// GET /api/v1/addresses
func (h *Handler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	c := h.customer(r)
	if c == nil {
		respondJSON(w, http.StatusOK, AddressesResponse{Addresses: []domain.Address{}})
		return
	}
	ctx = forCustomer(ctx, c)

	addrs, err := h.addresses.ListAddresses(ctx)
	if err != nil {
		h.respondFailure(w, c, err)
		return
	}
	if addrs == nil {
		addrs = []domain.Address{}
	}
	respondJSON(w, http.StatusOK, AddressesResponse{SignedIn: true, Addresses: addrs})
}

// POST /api/v1/addresses
func (h *Handler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	c := h.customer(r)
	if c == nil {
		respondSignIn(w)
		return
	}
	ctx = forCustomer(ctx, c)

	var form forms.AddressForm
	if err := decodeJSON(r, &form); err != nil {
		respondBadJSON(w, err)
		return
	}
	if err := form.Validate(); err != nil {
		h.respondFailure(w, c, err)
		return
	}

	addr, err := h.addresses.CreateAddress(ctx, form.Address())
	if err != nil {
		h.respondFailure(w, c, err)
		return
	}
	respondJSON(w, http.StatusCreated, addr)
}
