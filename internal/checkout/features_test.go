package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/apiclient"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/cart"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/domain"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/notify"
)

type checkoutTestContext struct {
	api     *mockAPI
	store   *cart.Store
	inbox   *notify.Inbox
	orch    *Orchestrator
	session Session
	err     error
}

func (c *checkoutTestContext) reset() {
	c.api = newMockAPI()
	c.inbox = notify.NewInbox(0)
	c.store = cart.NewStore(cart.WithNotifier(c.inbox))
	c.orch = NewOrchestrator(c.api, c.store, WithNotifier(c.inbox))
	c.session = Session{}
	c.err = nil
}

func (c *checkoutTestContext) theCartHoldsProductWithQuantityAndStock(productID int64, qty, stock int) error {
	return c.store.AddItem(domain.CartItem{
		ProductID:     productID,
		Title:         "product " + strconv.FormatInt(productID, 10),
		Quantity:      qty,
		UnitPrice:     decimal.RequireFromString("12.49"),
		StockQuantity: stock,
	})
}

func (c *checkoutTestContext) theCartIsEmpty() error {
	c.store.Clear()
	return nil
}

func (c *checkoutTestContext) iReachedTheReviewStep(addressID int64, rateID string) error {
	ctx := context.Background()
	if _, err := c.orch.Begin(ctx); err != nil {
		return err
	}
	if _, err := c.orch.SelectAddress(ctx, addressID); err != nil {
		return err
	}
	s, err := c.orch.SelectRate(ctx, rateID)
	c.session = s
	return err
}

func (c *checkoutTestContext) theShippingServiceIsFailing() error {
	c.api.setRatesErr(&apiclient.Error{Kind: apiclient.KindServer, Status: 502})
	return nil
}

func (c *checkoutTestContext) theShippingServiceRecovers() error {
	c.api.setRatesErr(nil)
	return nil
}

func (c *checkoutTestContext) theOrderServiceIsFailing() error {
	c.api.setSubmitErr(&apiclient.Error{Kind: apiclient.KindNetwork})
	return nil
}

func (c *checkoutTestContext) theOrderServiceRecovers() error {
	c.api.setSubmitErr(nil)
	return nil
}

var repeats = map[string]int{"once": 1, "twice": 2, "three times": 3, "five times": 5}

func (c *checkoutTestContext) iChangeTheQuantityOfProductBy(productID int64, delta int, times string) error {
	n, ok := repeats[times]
	if !ok {
		return fmt.Errorf("unsupported repeat %q", times)
	}
	id := strconv.FormatInt(productID, 10)
	for i := 0; i < n; i++ {
		c.err = c.store.UpdateQuantity(id, delta)
		if c.err != nil && !errors.Is(c.err, cart.ErrStockLimit) {
			return c.err
		}
	}
	return nil
}

func (c *checkoutTestContext) iAddProductWithQuantity(productID int64, qty int) error {
	c.err = c.store.AddItem(domain.CartItem{ProductID: productID, Quantity: qty, StockQuantity: 5})
	return nil
}

func (c *checkoutTestContext) theCartIsCleared() error {
	c.store.Clear()
	return nil
}

func (c *checkoutTestContext) iBeginCheckout() error {
	c.session, c.err = c.orch.Begin(context.Background())
	return nil
}

func (c *checkoutTestContext) iSelectAddress(addressID int64) error {
	c.session, c.err = c.orch.SelectAddress(context.Background(), addressID)
	return nil
}

func (c *checkoutTestContext) iSubmitTheOrder() error {
	c.session, c.err = c.orch.Submit(context.Background())
	return nil
}

func (c *checkoutTestContext) iRetry() error {
	c.session, c.err = c.orch.Retry(context.Background())
	return nil
}

func (c *checkoutTestContext) productHasQuantity(productID int64, qty int) error {
	item, ok := c.store.Item(strconv.FormatInt(productID, 10))
	if !ok {
		return fmt.Errorf("product %d not in cart", productID)
	}
	if item.Quantity != qty {
		return fmt.Errorf("expected quantity %d, got %d", qty, item.Quantity)
	}
	return nil
}

func (c *checkoutTestContext) aNoticeWasShown(code string) error {
	for _, n := range c.inbox.Peek() {
		if n.Code == code {
			return nil
		}
	}
	return fmt.Errorf("expected a %q notice, got %v", code, c.inbox.Peek())
}

func (c *checkoutTestContext) theCartHasLines(n int) error {
	if got := c.store.Len(); got != n {
		return fmt.Errorf("expected %d lines, got %d", n, got)
	}
	return nil
}

func (c *checkoutTestContext) theCheckoutStageIs(stage string) error {
	s, ok := c.orch.Session()
	if !ok {
		return errors.New("no checkout session")
	}
	if string(s.Stage) != stage {
		return fmt.Errorf("expected stage %s, got %s (last err: %v)", stage, s.Stage, c.err)
	}
	return nil
}

func (c *checkoutTestContext) noRequestWasSent() error {
	if n := c.api.total(); n != 0 {
		return fmt.Errorf("expected no requests, got %d", n)
	}
	return nil
}

func (c *checkoutTestContext) noOrderRequestWasSent() error {
	if n := c.api.count(DefaultSubmitPath); n != 0 {
		return fmt.Errorf("expected no order requests, got %d", n)
	}
	return nil
}

func (c *checkoutTestContext) theLastErrorIsShown() error {
	s, _ := c.orch.Session()
	if s.LastError == nil || s.LastError.Message == "" {
		return errors.New("expected a recorded error")
	}
	return nil
}

func (c *checkoutTestContext) everyOrderRequestCarriedTheSameIdempotencyKey() error {
	calls := c.api.callsTo(DefaultSubmitPath)
	if len(calls) < 2 {
		return fmt.Errorf("expected at least 2 order requests, got %d", len(calls))
	}
	key := calls[0].req.Header.Get(HeaderIdempotencyKey)
	if key == "" {
		return errors.New("order request without idempotency key")
	}
	for _, call := range calls[1:] {
		if got := call.req.Header.Get(HeaderIdempotencyKey); got != key {
			return fmt.Errorf("idempotency key changed from %s to %s", key, got)
		}
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &checkoutTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^the cart holds product (\d+) with quantity (\d+) and stock (\d+)$`, tc.theCartHoldsProductWithQuantityAndStock)
	ctx.Step(`^the cart is empty$`, tc.theCartIsEmpty)
	ctx.Step(`^I reached the review step with address (\d+) and rate "([^"]*)"$`, tc.iReachedTheReviewStep)
	ctx.Step(`^the shipping service is failing$`, tc.theShippingServiceIsFailing)
	ctx.Step(`^the order service is failing$`, tc.theOrderServiceIsFailing)

	// When steps
	ctx.Step(`^I change the quantity of product (\d+) by (-?\d+) (once|twice|three times|five times)$`, tc.iChangeTheQuantityOfProductBy)
	ctx.Step(`^I add product (\d+) with quantity (\d+)$`, tc.iAddProductWithQuantity)
	ctx.Step(`^the cart is cleared$`, tc.theCartIsCleared)
	ctx.Step(`^I begin checkout$`, tc.iBeginCheckout)
	ctx.Step(`^I select address (\d+)$`, tc.iSelectAddress)
	ctx.Step(`^I submit the order$`, tc.iSubmitTheOrder)
	ctx.Step(`^I retry$`, tc.iRetry)
	ctx.Step(`^the shipping service recovers$`, tc.theShippingServiceRecovers)
	ctx.Step(`^the order service recovers$`, tc.theOrderServiceRecovers)

	// Then steps
	ctx.Step(`^product (\d+) has quantity (\d+)$`, tc.productHasQuantity)
	ctx.Step(`^a "([^"]*)" notice was shown$`, tc.aNoticeWasShown)
	ctx.Step(`^the cart has (\d+) lines?$`, tc.theCartHasLines)
	ctx.Step(`^the checkout stage is "([^"]*)"$`, tc.theCheckoutStageIs)
	ctx.Step(`^no request was sent$`, tc.noRequestWasSent)
	ctx.Step(`^no order request was sent$`, tc.noOrderRequestWasSent)
	ctx.Step(`^the last error is shown$`, tc.theLastErrorIsShown)
	ctx.Step(`^every order request carried the same idempotency key$`, tc.everyOrderRequestCarriedTheSameIdempotencyKey)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
