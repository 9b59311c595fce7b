package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/apiclient"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/auth"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/cart"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/checkout"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/domain"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/forms"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/notify"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/queries"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/render"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/session"
	"go.uber.org/zap"
)

const messageSignIn = "Please sign in to continue."

type CartAPI interface {
	AddItem(ctx context.Context, in queries.ItemInput) error
	UpdateItem(ctx context.Context, in queries.ItemInput) error
	DeleteItem(ctx context.Context, id string) error
}

type AddressAPI interface {
	ListAddresses(ctx context.Context) ([]domain.Address, error)
	CreateAddress(ctx context.Context, addr domain.Address) (domain.Address, error)
}

type Handler struct {
	sessions  *session.Registry
	cart      CartAPI
	addresses AddressAPI
	format    *render.Formatter
	timeout   time.Duration
	log       *zap.Logger
	now       func() time.Time
}

func NewHandler(sessions *session.Registry, cartAPI CartAPI, addresses AddressAPI, format *render.Formatter, timeout time.Duration, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Handler{
		sessions:  sessions,
		cart:      cartAPI,
		addresses: addresses,
		format:    format,
		timeout:   timeout,
		log:       log,
		now:       time.Now,
	}
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Notices []notify.Notice   `json:"notices,omitempty"`
}

// customer returns the caller's session, or nil when the request carries no
// usable token.
func (h *Handler) customer(r *http.Request) *session.Customer {
	token := auth.TokenFromContext(r.Context())
	if !auth.Usable(token, h.now()) {
		return nil
	}
	return h.sessions.For(r.Context(), token)
}

func (h *Handler) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.timeout)
}

// forCustomer routes notices raised by the shared query layer to c.
func forCustomer(ctx context.Context, c *session.Customer) context.Context {
	return notify.WithContext(ctx, c.Notices)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func respondSignIn(w http.ResponseWriter) {
	respondError(w, http.StatusUnauthorized, "sign_in", messageSignIn)
}

// respondFailure maps err to a status and attaches the customer's pending
// notices so they are not shown again on the next response.
func (h *Handler) respondFailure(w http.ResponseWriter, c *session.Customer, err error) {
	status, resp := errorFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Warn("request failed", zap.Int("status", status), zap.Error(err))
	}
	if c != nil {
		resp.Notices = c.Notices.Drain()
	}
	respondJSON(w, status, resp)
}

type sentinel struct {
	err     error
	status  int
	code    string
	message string
}

var sentinels = []sentinel{
	{queries.ErrDisabled, http.StatusUnauthorized, "sign_in", messageSignIn},
	{cart.ErrStockLimit, http.StatusConflict, "stock_limit", cart.MessageStockLimit},
	{cart.ErrInvalidQuantity, http.StatusUnprocessableEntity, "invalid_quantity", "Quantity must be at least 1."},
	{cart.ErrItemNotFound, http.StatusNotFound, "item_not_found", "That item is no longer in your cart."},
	{checkout.ErrEmptyCart, http.StatusConflict, "empty_cart", "Your cart is empty."},
	{checkout.ErrNoSession, http.StatusNotFound, "no_checkout", "No checkout in progress."},
	{checkout.ErrSubmitInFlight, http.StatusConflict, "submit_in_flight", "Your order is already being placed."},
	{checkout.ErrShippingInProgress, http.StatusConflict, "shipping_in_progress", "Shipping options are still loading."},
	{checkout.ErrCartChanged, http.StatusConflict, "cart_changed", "Your cart changed. Shipping has been recalculated."},
	{checkout.ErrIllegalTransition, http.StatusConflict, "illegal_transition", "That step is not available right now."},
	{checkout.ErrNothingToRetry, http.StatusConflict, "nothing_to_retry", "There is nothing to retry."},
	{checkout.ErrAddressRequired, http.StatusUnprocessableEntity, "address_required", "Select a delivery address."},
	{checkout.ErrRateRequired, http.StatusUnprocessableEntity, "rate_required", "Select a shipping option."},
	{checkout.ErrUnknownRate, http.StatusUnprocessableEntity, "unknown_rate", "That shipping option is not available."},
	{checkout.ErrNoShippingOptions, http.StatusUnprocessableEntity, "no_shipping_options", "No shipping options are available for this address."},
}

func errorFor(err error) (int, ErrorResponse) {
	var fields forms.FieldErrors
	if errors.As(err, &fields) {
		return http.StatusUnprocessableEntity, ErrorResponse{
			Error:  "Please correct the highlighted fields.",
			Code:   "invalid_input",
			Fields: fields,
		}
	}

	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.status, ErrorResponse{Error: s.message, Code: s.code}
		}
	}

	if apiErr, ok := apiclient.AsError(err); ok {
		resp := ErrorResponse{Error: apiErr.UserMessage(queries.FallbackMessage)}
		var status int
		switch apiErr.Kind {
		case apiclient.KindValidation:
			status, resp.Code = http.StatusUnprocessableEntity, "validation"
			resp.Fields, _ = forms.FromAPIError(apiErr)
		case apiclient.KindUnauthorized:
			status, resp.Code = http.StatusUnauthorized, "sign_in"
		case apiclient.KindBusiness:
			status, resp.Code = http.StatusConflict, "rejected"
		case apiclient.KindNetwork:
			status, resp.Code = http.StatusServiceUnavailable, "service_unavailable"
		default:
			status, resp.Code = http.StatusBadGateway, "upstream_error"
		}
		return status, resp
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, ErrorResponse{Error: apiclient.MessageNetworkFailure, Code: "timeout"}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: queries.FallbackMessage, Code: "internal_error"}
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

func respondBadJSON(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
		return
	}
	respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
}
