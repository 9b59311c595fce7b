package checkout

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/apiclient"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/domain"
)

// StepError is the failure recorded against the step that produced it.
type StepError struct {
	Stage       Stage               `json:"stage"`
	Kind        string              `json:"kind"`
	Message     string              `json:"message"`
	FieldErrors map[string][]string `json:"field_errors,omitempty"`
}

// Session is the state of one checkout visit. It is never persisted.
type Session struct {
	ID             string                    `json:"id"`
	IdempotencyKey string                    `json:"idempotency_key"`
	Stage          Stage                     `json:"stage"`
	FailedStage    Stage                     `json:"failed_stage,omitempty"`
	AddressID      int64                     `json:"address_id,omitempty"`
	Rates          []domain.ShippingRate     `json:"rates,omitempty"`
	RateID         string                    `json:"rate_id,omitempty"`
	CartSnapshot   []domain.CartItem         `json:"cart_snapshot"`
	Fingerprint    string                    `json:"fingerprint"`
	LastError      *StepError                `json:"last_error,omitempty"`
	Order          *domain.OrderConfirmation `json:"order,omitempty"`
	InFlight       bool                      `json:"in_flight"`
	StartedAt      time.Time                 `json:"started_at"`
}

// SelectedRate returns the chosen shipping rate, if any.
func (s Session) SelectedRate() (domain.ShippingRate, bool) {
	for _, r := range s.Rates {
		if r.ID == s.RateID {
			return r, true
		}
	}
	return domain.ShippingRate{}, false
}

// Total is the cart snapshot subtotal plus the selected shipping rate.
func (s Session) Total() decimal.Decimal {
	total := domain.Cart{Items: s.CartSnapshot}.Subtotal()
	if rate, ok := s.SelectedRate(); ok {
		total = total.Add(rate.Amount)
	}
	return total
}

func (s Session) clone() Session {
	out := s
	out.Rates = append([]domain.ShippingRate(nil), s.Rates...)
	out.CartSnapshot = append([]domain.CartItem(nil), s.CartSnapshot...)
	if s.LastError != nil {
		e := *s.LastError
		out.LastError = &e
	}
	if s.Order != nil {
		o := *s.Order
		out.Order = &o
	}
	return out
}

// Fingerprint identifies cart contents independent of line order.
func Fingerprint(items []domain.CartItem) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, item.LineKey()+"x"+strconv.Itoa(item.Quantity))
	}
	sort.Strings(lines)
	return strconv.FormatUint(xxhash.Sum64String(strings.Join(lines, ",")), 16)
}

func shippingKey(addressID int64, fingerprint string) string {
	return strconv.FormatInt(addressID, 10) + ":" + fingerprint
}

func stepError(stage Stage, err error) *StepError {
	se := &StepError{Stage: stage, Kind: "checkout", Message: err.Error()}
	if apiErr, ok := apiclient.AsError(err); ok {
		se.Kind = apiErr.Kind.String()
		se.Message = apiErr.UserMessage(err.Error())
		se.FieldErrors = apiErr.FieldErrors
	}
	return se
}
