package render

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/checkout"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestMoney(t *testing.T) {
	f := NewFormatter("en-CA", "CAD")

	tests := []struct {
		name   string
		amount decimal.Decimal
		code   string
		want   string
	}{
		{"default currency", d("12.5"), "", "CA$12.50"},
		{"grouping", d("1234.5"), "", "CA$1,234.50"},
		{"rounds to minor units", d("9.999"), "", "CA$10.00"},
		{"explicit currency", d("7"), "NGN", "₦7.00"},
		{"zero-decimal currency", d("1234.5"), "JPY", "JPY 1,235"},
		{"negative", d("-5"), "", "-CA$5.00"},
		{"unknown code falls back", d("1"), "XYZ1", "CA$1.00"},
		{"beyond float precision", d("12345678901234567.89"), "", "CA$12,345,678,901,234,567.89"},
		{"exact group boundary", d("123456"), "", "CA$123,456.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Money(tt.amount, tt.code))
		})
	}
}

func TestNewFormatter_Fallbacks(t *testing.T) {
	f := NewFormatter("not a locale!!", "nope")
	assert.Equal(t, "CAD", f.Currency())
}

func TestStepperFor(t *testing.T) {
	atStock := StepperFor(domain.CartItem{Quantity: 5, StockQuantity: 5})
	assert.False(t, atStock.CanIncrement)
	assert.True(t, atStock.CanDecrement)
	assert.Equal(t, 5, atStock.Max)

	single := StepperFor(domain.CartItem{Quantity: 1, StockQuantity: 5})
	assert.True(t, single.CanIncrement)
	assert.False(t, single.CanDecrement)

	unknown := StepperFor(domain.CartItem{Quantity: 3})
	assert.True(t, unknown.CanIncrement)
	assert.Zero(t, unknown.Max)
}

func TestCartSummary(t *testing.T) {
	f := NewFormatter("en-CA", "CAD")
	items := []domain.CartItem{
		{ID: "1", ProductID: 42, Title: "Shea butter", Quantity: 2, UnitPrice: d("12.49"), StockQuantity: 5},
		{ProductID: 7, Title: "Ankara wrap", Quantity: 1, UnitPrice: d("30"), Variant: &domain.Variant{SizeID: 2, ColorID: 9}},
	}

	s := f.CartSummary(items)

	assert.False(t, s.Empty)
	assert.Equal(t, 3, s.ItemCount)
	assert.Equal(t, "CA$54.98", s.Subtotal)
	require.Len(t, s.Lines, 2)
	assert.Equal(t, "CA$24.98", s.Lines[0].Subtotal)
	assert.Equal(t, "7:s2:c9", s.Lines[1].ID)
	assert.Equal(t, "size 2, color 9", s.Lines[1].Variant)

	empty := f.CartSummary(nil)
	assert.True(t, empty.Empty)
	assert.Equal(t, "CA$0.00", empty.Subtotal)
	assert.NotNil(t, empty.Lines)
}

func reviewSession() checkout.Session {
	return checkout.Session{
		Stage:     checkout.StageReviewingSummary,
		AddressID: 10,
		CartSnapshot: []domain.CartItem{
			{ProductID: 42, Quantity: 1, UnitPrice: d("12.49")},
		},
		Rates: []domain.ShippingRate{
			{ID: "std", Carrier: "Canada Post", Service: "Regular", Amount: d("7.50"), Currency: "CAD", EstimatedDays: 5},
			{ID: "exp", Carrier: "Canada Post", Service: "Xpresspost", Amount: d("19"), Currency: "CAD"},
		},
		RateID: "std",
	}
}

func TestCheckoutSummary_Review(t *testing.T) {
	f := NewFormatter("en-CA", "CAD")

	s := f.CheckoutSummary(reviewSession())

	assert.True(t, s.CanSubmit)
	assert.False(t, s.CanRetry)
	assert.Equal(t, "CA$7.50", s.Shipping)
	assert.Equal(t, "CA$19.99", s.Total)
	require.Len(t, s.Rates, 2)
	assert.True(t, s.Rates[0].Selected)
	assert.Equal(t, "Canada Post Regular (5 business days)", s.Rates[0].Label)
	assert.Equal(t, []Step{
		{"Address", StepDone},
		{"Shipping", StepDone},
		{"Review", StepCurrent},
		{"Confirmation", StepPending},
	}, s.Steps)
}

func TestCheckoutSummary_SubmitDisabledWhileInFlight(t *testing.T) {
	f := NewFormatter("en-CA", "CAD")
	session := reviewSession()
	session.Stage = checkout.StageSubmitting
	session.InFlight = true

	s := f.CheckoutSummary(session)

	assert.False(t, s.CanSubmit)
	assert.False(t, s.CanRetry)
}

func TestCheckoutSummary_FailedSubmissionCanRetry(t *testing.T) {
	f := NewFormatter("en-CA", "CAD")
	session := reviewSession()
	session.Stage = checkout.StageFailed
	session.FailedStage = checkout.StageSubmitting
	session.LastError = &checkout.StepError{Stage: checkout.StageSubmitting, Message: "Item out of stock"}

	s := f.CheckoutSummary(session)

	assert.True(t, s.CanRetry)
	assert.True(t, s.CanSubmit)
	assert.Equal(t, "Item out of stock", s.Error)
}

func TestCheckoutSummary_NoRateSelected(t *testing.T) {
	f := NewFormatter("en-CA", "CAD")
	session := reviewSession()
	session.RateID = ""

	s := f.CheckoutSummary(session)

	assert.False(t, s.CanSubmit)
	assert.Empty(t, s.Shipping)
	assert.Equal(t, "CA$12.49", s.Total)
}

func TestCheckoutSummary_Confirmed(t *testing.T) {
	f := NewFormatter("en-CA", "CAD")
	session := reviewSession()
	session.Stage = checkout.StageConfirmed
	session.Order = &domain.OrderConfirmation{ID: "ord-9"}

	s := f.CheckoutSummary(session)

	assert.Equal(t, "ord-9", s.OrderID)
	for _, step := range s.Steps {
		assert.Equal(t, StepDone, step.State)
	}
}
