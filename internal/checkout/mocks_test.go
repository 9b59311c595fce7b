package checkout

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/apiclient"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/domain"
)

type call struct {
	req  apiclient.Request
	body []byte
}

// mockAPI answers shipping and order requests from canned responses.
type mockAPI struct {
	m         sync.Mutex
	calls     []call
	rates     []domain.ShippingRate
	ratesErr  error
	order     domain.OrderConfirmation
	submitErr error
	// gate, when set, blocks order submission until closed
	gate    chan struct{}
	entered chan struct{}
	// ratesFor overrides rates per address; shipGate blocks the shipping
	// request for an address until closed
	ratesFor    map[int64][]domain.ShippingRate
	shipGate    map[int64]chan struct{}
	shipEntered chan int64
}

func newMockAPI() *mockAPI {
	return &mockAPI{
		rates: []domain.ShippingRate{
			{ID: "std", Carrier: "canada-post", Service: "Standard", Amount: decimal.RequireFromString("7.50"), Currency: "CAD"},
			{ID: "exp", Carrier: "canada-post", Service: "Express", Amount: decimal.RequireFromString("19.00"), Currency: "CAD"},
		},
		order: domain.OrderConfirmation{ID: "ord-1", Status: "pending", Total: decimal.RequireFromString("32.48")},
	}
}

func (m *mockAPI) Do(_ context.Context, req apiclient.Request, out any) error {
	body, _ := json.Marshal(req.Body)

	m.m.Lock()
	m.calls = append(m.calls, call{req: req, body: body})
	gate, entered := m.gate, m.entered
	m.m.Unlock()

	switch req.Path {
	case pathShippingRates:
		var addressID int64
		if sr, ok := req.Body.(shippingRequest); ok {
			addressID = sr.AddressID
		}
		m.m.Lock()
		shipGate, shipEntered := m.shipGate[addressID], m.shipEntered
		m.m.Unlock()
		if shipGate != nil {
			if shipEntered != nil {
				shipEntered <- addressID
			}
			<-shipGate
		}

		m.m.Lock()
		defer m.m.Unlock()
		if m.ratesErr != nil {
			return m.ratesErr
		}
		rates := m.rates
		if r, ok := m.ratesFor[addressID]; ok {
			rates = r
		}
		return fill(out, envelope[[]domain.ShippingRate]{Data: rates})
	default:
		if gate != nil {
			if entered != nil {
				entered <- struct{}{}
			}
			<-gate
		}
		m.m.Lock()
		defer m.m.Unlock()
		if m.submitErr != nil {
			return m.submitErr
		}
		return fill(out, envelope[domain.OrderConfirmation]{Data: m.order})
	}
}

func (m *mockAPI) count(path string) int {
	m.m.Lock()
	defer m.m.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.req.Path == path {
			n++
		}
	}
	return n
}

func (m *mockAPI) callsTo(path string) []call {
	m.m.Lock()
	defer m.m.Unlock()
	var out []call
	for _, c := range m.calls {
		if c.req.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func (m *mockAPI) total() int {
	m.m.Lock()
	defer m.m.Unlock()
	return len(m.calls)
}

func (m *mockAPI) setRatesErr(err error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.ratesErr = err
}

// gateShipping makes the shipping request for addressID block until the
// returned channel is closed.
func (m *mockAPI) gateShipping(addressID int64) chan struct{} {
	m.m.Lock()
	defer m.m.Unlock()
	if m.shipGate == nil {
		m.shipGate = make(map[int64]chan struct{})
	}
	if m.shipEntered == nil {
		m.shipEntered = make(chan int64, 4)
	}
	gate := make(chan struct{})
	m.shipGate[addressID] = gate
	return gate
}

func (m *mockAPI) setSubmitErr(err error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.submitErr = err
}

func fill(out, v any) error {
	if out == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

type mockCart struct {
	m       sync.Mutex
	items   []domain.CartItem
	cleared int
}

func (c *mockCart) Items() []domain.CartItem {
	c.m.Lock()
	defer c.m.Unlock()
	return append([]domain.CartItem(nil), c.items...)
}

func (c *mockCart) Clear() {
	c.m.Lock()
	defer c.m.Unlock()
	c.items = nil
	c.cleared++
}

func (c *mockCart) set(items ...domain.CartItem) {
	c.m.Lock()
	defer c.m.Unlock()
	c.items = items
}

type mockInvalidator struct {
	m     sync.Mutex
	calls int
}

func (i *mockInvalidator) InvalidateCart(context.Context) error {
	i.m.Lock()
	defer i.m.Unlock()
	i.calls++
	return nil
}

func shea() domain.CartItem {
	return domain.CartItem{ID: "1", ProductID: 42, Title: "Shea butter", Quantity: 1, UnitPrice: decimal.RequireFromString("12.49"), StockQuantity: 5}
}

func rate(id, amount string) domain.ShippingRate {
	return domain.ShippingRate{ID: id, Carrier: "canada-post", Service: "Standard", Amount: decimal.RequireFromString(amount), Currency: "CAD"}
}
