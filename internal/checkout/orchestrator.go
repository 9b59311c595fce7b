// Package checkout drives one customer's checkout visit through address
// selection, shipping calculation, review and order submission.
package checkout

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/apiclient"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/domain"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/events"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/notify"
	"go.uber.org/zap"
)

const (
	DefaultSubmitPath = "/customer/checkout"
	pathShippingRates = "/shipping/rates"

	HeaderIdempotencyKey = "Idempotency-Key"
)

// Doer is the part of apiclient.Client the orchestrator needs.
type Doer interface {
	Do(ctx context.Context, req apiclient.Request, out any) error
}

// Cart is the customer's cart container.
type Cart interface {
	Items() []domain.CartItem
	Clear()
}

// CartInvalidator drops the cached server cart after an order is placed.
type CartInvalidator interface {
	InvalidateCart(ctx context.Context) error
}

type Option func(*Orchestrator)

func WithSubmitPath(path string) Option {
	return func(o *Orchestrator) {
		if path != "" {
			o.submitPath = path
		}
	}
}

func WithCartInvalidator(inv CartInvalidator) Option {
	return func(o *Orchestrator) { o.invalidator = inv }
}

func WithNotifier(n notify.Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

func WithPublisher(p events.Publisher, owner string) Option {
	return func(o *Orchestrator) {
		o.events = p
		o.owner = owner
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator owns at most one checkout session. Stage changes happen
// under mu; requests are made without holding it.
type Orchestrator struct {
	mu      sync.Mutex
	session *Session
	// rates caches shipping responses by address and cart fingerprint for
	// the current session.
	rates map[string][]domain.ShippingRate
	// pendingShipping is the key of the newest shipping request; older
	// responses are dropped.
	pendingShipping string

	api         Doer
	cart        Cart
	invalidator CartInvalidator
	notifier    notify.Notifier
	events      events.Publisher
	owner       string
	submitPath  string
	log         *zap.Logger
	now         func() time.Time
}

func NewOrchestrator(api Doer, cart Cart, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		api:        api,
		cart:       cart,
		notifier:   notify.Discard{},
		events:     events.Nop{},
		submitPath: DefaultSubmitPath,
		log:        zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Session returns a copy of the current session.
func (o *Orchestrator) Session() (Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return Session{}, false
	}
	return o.session.clone(), true
}

// Begin enters checkout. An empty cart yields the EmptyCart stage and
// ErrEmptyCart. Calling Begin while a session is open returns it unchanged.
func (o *Orchestrator) Begin(_ context.Context) (Session, error) {
	items := o.cart.Items()

	o.mu.Lock()
	defer o.mu.Unlock()

	if len(items) == 0 {
		return o.emptyLocked()
	}
	if o.session != nil && o.session.Stage != StageEmptyCart && !o.session.Stage.IsTerminal() {
		return o.session.clone(), nil
	}

	o.session = &Session{
		ID:             uuid.NewString(),
		IdempotencyKey: uuid.NewString(),
		Stage:          StageSelectingAddress,
		CartSnapshot:   items,
		Fingerprint:    Fingerprint(items),
		StartedAt:      o.now().UTC(),
	}
	o.rates = make(map[string][]domain.ShippingRate)
	o.pendingShipping = ""
	o.log.Info("checkout started", zap.String("checkout_id", o.session.ID))
	return o.session.clone(), nil
}

// SelectAddress chooses the delivery address and requests shipping rates
// for it and the current cart.
func (o *Orchestrator) SelectAddress(ctx context.Context, addressID int64) (Session, error) {
	if addressID <= 0 {
		return o.current(ErrAddressRequired)
	}
	items := o.cart.Items()

	o.mu.Lock()
	if o.session == nil {
		o.mu.Unlock()
		return Session{}, ErrNoSession
	}
	if len(items) == 0 {
		defer o.mu.Unlock()
		return o.emptyLocked()
	}
	if err := o.transitionLocked(StageCalculatingShipping); err != nil {
		defer o.mu.Unlock()
		return o.session.clone(), err
	}
	o.session.AddressID = addressID
	o.session.CartSnapshot = items
	o.session.Fingerprint = Fingerprint(items)
	o.session.RateID = ""
	o.session.Rates = nil
	o.mu.Unlock()

	return o.fetchShipping(ctx)
}

// RetryShipping re-issues the shipping request after a failure.
func (o *Orchestrator) RetryShipping(ctx context.Context) (Session, error) {
	o.mu.Lock()
	if o.session == nil {
		o.mu.Unlock()
		return Session{}, ErrNoSession
	}
	if o.session.Stage != StageCalculatingShipping || o.session.LastError == nil {
		defer o.mu.Unlock()
		return o.session.clone(), ErrNothingToRetry
	}
	if o.session.InFlight {
		defer o.mu.Unlock()
		return o.session.clone(), ErrShippingInProgress
	}
	o.mu.Unlock()

	return o.fetchShipping(ctx)
}

func (o *Orchestrator) fetchShipping(ctx context.Context) (Session, error) {
	o.mu.Lock()
	s := o.session
	if s == nil {
		o.mu.Unlock()
		return Session{}, ErrNoSession
	}
	if o.rates == nil {
		o.rates = make(map[string][]domain.ShippingRate)
	}
	key := shippingKey(s.AddressID, s.Fingerprint)
	if rates, ok := o.rates[key]; ok {
		o.pendingShipping = ""
		o.applyRatesLocked(rates)
		defer o.mu.Unlock()
		return s.clone(), nil
	}
	o.pendingShipping = key
	s.InFlight = true
	s.LastError = nil
	sessionID := s.ID
	body := shippingRequest{AddressID: s.AddressID, Items: lines(s.CartSnapshot), CartFingerprint: s.Fingerprint}
	o.mu.Unlock()

	var resp envelope[[]domain.ShippingRate]
	err := o.api.Do(ctx, apiclient.Request{Method: http.MethodPost, Path: pathShippingRates, Body: body}, &resp)
	if err == nil && len(resp.Data) == 0 {
		err = ErrNoShippingOptions
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil {
		return Session{}, ErrNoSession
	}
	if o.session.ID != sessionID || o.pendingShipping != key ||
		key != shippingKey(o.session.AddressID, o.session.Fingerprint) {
		// superseded by a newer address selection or a cancel
		if err == nil && o.session.ID == sessionID {
			o.rates[key] = resp.Data
		}
		return o.session.clone(), nil
	}
	o.session.InFlight = false
	o.pendingShipping = ""

	if err != nil {
		o.session.LastError = stepError(StageCalculatingShipping, err)
		o.log.Info("shipping rates failed", zap.String("checkout_id", sessionID), zap.Error(err))
		o.notifyFailure(o.session.LastError)
		return o.session.clone(), fmt.Errorf("calculate shipping: %w", err)
	}

	o.rates[key] = resp.Data
	o.applyRatesLocked(resp.Data)
	return o.session.clone(), nil
}

func (o *Orchestrator) applyRatesLocked(rates []domain.ShippingRate) {
	s := o.session
	s.Rates = append([]domain.ShippingRate(nil), rates...)
	s.LastError = nil
	s.InFlight = false
	if len(rates) == 1 {
		s.RateID = rates[0].ID
	}
	s.Stage = StageReviewingSummary
}

// SelectRate picks one of the offered shipping rates.
func (o *Orchestrator) SelectRate(_ context.Context, rateID string) (Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil {
		return Session{}, ErrNoSession
	}
	if o.session.Stage != StageReviewingSummary {
		return o.session.clone(), fmt.Errorf("select rate in %s: %w", o.session.Stage, ErrIllegalTransition)
	}
	for _, r := range o.session.Rates {
		if r.ID == rateID {
			o.session.RateID = rateID
			return o.session.clone(), nil
		}
	}
	return o.session.clone(), ErrUnknownRate
}

// Submit places the order. An empty cart moves the session to EmptyCart
// without a request. Only one submission may be in flight.
func (o *Orchestrator) Submit(ctx context.Context) (Session, error) {
	items := o.cart.Items()

	o.mu.Lock()
	if o.session != nil && o.session.Stage == StageSubmitting {
		defer o.mu.Unlock()
		return o.session.clone(), ErrSubmitInFlight
	}
	if len(items) == 0 {
		defer o.mu.Unlock()
		return o.emptyLocked()
	}
	if o.session == nil {
		o.mu.Unlock()
		return Session{}, ErrNoSession
	}
	s := o.session
	if !CanTransitionTo(s.Stage, StageSubmitting) || (s.Stage == StageFailed && s.FailedStage != StageSubmitting) {
		defer o.mu.Unlock()
		return s.clone(), fmt.Errorf("submit in %s: %w", s.Stage, ErrIllegalTransition)
	}
	if s.AddressID == 0 {
		defer o.mu.Unlock()
		return s.clone(), ErrAddressRequired
	}
	if _, ok := s.SelectedRate(); !ok {
		defer o.mu.Unlock()
		return s.clone(), ErrRateRequired
	}
	if Fingerprint(items) != s.Fingerprint {
		// rates were quoted for different contents
		s.CartSnapshot = items
		s.Fingerprint = Fingerprint(items)
		s.Stage = StageCalculatingShipping
		s.FailedStage = ""
		s.RateID = ""
		s.Rates = nil
		s.LastError = stepError(StageCalculatingShipping, ErrCartChanged)
		defer o.mu.Unlock()
		return s.clone(), ErrCartChanged
	}

	s.Stage = StageSubmitting
	s.InFlight = true
	s.LastError = nil
	sessionID := s.ID
	idemKey := s.IdempotencyKey
	body := orderRequest{
		CheckoutID:     sessionID,
		AddressID:      s.AddressID,
		ShippingRateID: s.RateID,
		Items:          lines(s.CartSnapshot),
	}
	o.mu.Unlock()

	req := apiclient.Request{
		Method: http.MethodPost,
		Path:   o.submitPath,
		Body:   body,
		Header: http.Header{HeaderIdempotencyKey: []string{idemKey}},
	}
	var resp envelope[domain.OrderConfirmation]
	err := o.api.Do(ctx, req, &resp)

	if err != nil {
		return o.submitFailed(sessionID, err)
	}
	return o.confirmed(ctx, sessionID, resp.Data)
}

func (o *Orchestrator) submitFailed(sessionID string, err error) (Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil || o.session.ID != sessionID {
		return Session{}, fmt.Errorf("submit order: %w", err)
	}
	s := o.session
	s.InFlight = false
	s.Stage = StageFailed
	s.FailedStage = StageSubmitting
	s.LastError = stepError(StageSubmitting, err)
	o.log.Warn("order submission failed", zap.String("checkout_id", sessionID), zap.Error(err))
	o.notifyFailure(s.LastError)
	return s.clone(), fmt.Errorf("submit order: %w", err)
}

// confirmed records the order and only then clears the cart.
func (o *Orchestrator) confirmed(ctx context.Context, sessionID string, order domain.OrderConfirmation) (Session, error) {
	o.mu.Lock()
	out := Session{ID: sessionID, Stage: StageConfirmed, Order: &order}
	if o.session != nil && o.session.ID == sessionID {
		s := o.session
		s.InFlight = false
		s.Stage = StageConfirmed
		s.FailedStage = ""
		s.Order = &order
		out = s.clone()
	}
	o.mu.Unlock()

	o.cart.Clear()
	if o.invalidator != nil {
		if err := o.invalidator.InvalidateCart(ctx); err != nil {
			o.log.Warn("invalidate cart after order failed", zap.Error(err))
		}
	}
	o.events.Publish(ctx, events.Event{Type: events.OrderConfirmed, Owner: o.owner, OrderID: order.ID})
	o.notifier.Notify(notify.Notice{Level: notify.LevelInfo, Code: "order_confirmed", Message: "Your order has been placed."})
	o.log.Info("order confirmed", zap.String("checkout_id", sessionID), zap.String("order_id", order.ID))
	return out, nil
}

// Retry resumes the step that failed without re-entering earlier ones.
func (o *Orchestrator) Retry(ctx context.Context) (Session, error) {
	o.mu.Lock()
	if o.session == nil {
		o.mu.Unlock()
		return Session{}, ErrNoSession
	}
	stage, failed := o.session.Stage, o.session.FailedStage
	o.mu.Unlock()

	switch {
	case stage == StageFailed && failed == StageSubmitting:
		return o.Submit(ctx)
	case stage == StageCalculatingShipping:
		return o.RetryShipping(ctx)
	default:
		return o.current(ErrNothingToRetry)
	}
}

// Cancel discards the session. A request already in flight completes but
// its result is no longer recorded.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session != nil {
		o.log.Info("checkout cancelled", zap.String("checkout_id", o.session.ID), zap.String("stage", o.session.Stage.String()))
	}
	o.session = nil
	o.rates = nil
	o.pendingShipping = ""
}

func (o *Orchestrator) current(err error) (Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return Session{}, err
	}
	return o.session.clone(), err
}

// emptyLocked moves to (or opens) the EmptyCart stage.
func (o *Orchestrator) emptyLocked() (Session, error) {
	if o.session != nil && o.session.Stage == StageSubmitting {
		return o.session.clone(), ErrSubmitInFlight
	}
	if o.session == nil || o.session.Stage.IsTerminal() {
		o.session = &Session{ID: uuid.NewString(), StartedAt: o.now().UTC()}
	}
	o.session.Stage = StageEmptyCart
	o.session.CartSnapshot = nil
	o.session.Fingerprint = ""
	o.session.Rates = nil
	o.session.RateID = ""
	o.session.InFlight = false
	o.pendingShipping = ""
	return o.session.clone(), ErrEmptyCart
}

func (o *Orchestrator) transitionLocked(to Stage) error {
	from := o.session.Stage
	if from == StageCalculatingShipping && o.session.InFlight && to == StageCalculatingShipping {
		// a newer address selection supersedes the pending request
		return nil
	}
	if !CanTransitionTo(from, to) {
		return fmt.Errorf("%s -> %s: %w", from, to, ErrIllegalTransition)
	}
	o.session.Stage = to
	o.session.FailedStage = ""
	o.session.LastError = nil
	return nil
}

func (o *Orchestrator) notifyFailure(se *StepError) {
	code := se.Kind
	if se.Kind == apiclient.KindUnauthorized.String() {
		code = "sign_in"
	}
	o.notifier.Notify(notify.Notice{Level: notify.LevelError, Code: code, Message: se.Message})
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type orderLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	SizeID    int64 `json:"size_id,omitempty"`
	ColorID   int64 `json:"color_id,omitempty"`
}

type shippingRequest struct {
	AddressID       int64       `json:"address_id"`
	Items           []orderLine `json:"items"`
	CartFingerprint string      `json:"cart_fingerprint"`
}

type orderRequest struct {
	CheckoutID     string      `json:"checkout_id"`
	AddressID      int64       `json:"address_id"`
	ShippingRateID string      `json:"shipping_rate_id"`
	Items          []orderLine `json:"items"`
}

func lines(items []domain.CartItem) []orderLine {
	out := make([]orderLine, 0, len(items))
	for _, item := range items {
		l := orderLine{ProductID: item.ProductID, Quantity: item.Quantity}
		if item.Variant != nil {
			l.SizeID = item.Variant.SizeID
			l.ColorID = item.Variant.ColorID
		}
		out = append(out, l)
	}
	return out
}
