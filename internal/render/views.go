package render

import (
	"fmt"
	"strings"

	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/checkout"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/domain"
)

// Stepper is the state of a quantity control for one line.
type Stepper struct {
	Value        int  `json:"value"`
	Min          int  `json:"min"`
	Max          int  `json:"max,omitempty"`
	CanIncrement bool `json:"can_increment"`
	CanDecrement bool `json:"can_decrement"`
}

func StepperFor(item domain.CartItem) Stepper {
	s := Stepper{
		Value:        item.Quantity,
		Min:          1,
		CanDecrement: item.Quantity > 1,
		CanIncrement: true,
	}
	if item.HasStockLimit() {
		s.Max = item.StockQuantity
		s.CanIncrement = item.Quantity < item.StockQuantity
	}
	return s
}

type CartLine struct {
	ID        string  `json:"id"`
	ProductID int64   `json:"product_id"`
	Title     string  `json:"title"`
	Variant   string  `json:"variant,omitempty"`
	ImageURL  string  `json:"image_url,omitempty"`
	UnitPrice string  `json:"unit_price"`
	Subtotal  string  `json:"subtotal"`
	Stepper   Stepper `json:"stepper"`
}

type CartSummary struct {
	Lines     []CartLine `json:"lines"`
	ItemCount int        `json:"item_count"`
	Subtotal  string     `json:"subtotal"`
	Currency  string     `json:"currency"`
	Empty     bool       `json:"empty"`
}

func (f *Formatter) CartSummary(items []domain.CartItem) CartSummary {
	c := domain.Cart{Items: items}
	out := CartSummary{
		Lines:     make([]CartLine, 0, len(items)),
		ItemCount: c.ItemCount(),
		Subtotal:  f.Money(c.Subtotal(), ""),
		Currency:  f.Currency(),
		Empty:     c.IsEmpty(),
	}
	for _, item := range items {
		out.Lines = append(out.Lines, CartLine{
			ID:        item.LineID(),
			ProductID: item.ProductID,
			Title:     item.Title,
			Variant:   variantLabel(item.Variant),
			ImageURL:  item.ImageURL,
			UnitPrice: f.Money(item.UnitPrice, ""),
			Subtotal:  f.Money(item.Subtotal(), ""),
			Stepper:   StepperFor(item),
		})
	}
	return out
}

func variantLabel(v *domain.Variant) string {
	if v == nil {
		return ""
	}
	var parts []string
	if v.SizeID != 0 {
		parts = append(parts, fmt.Sprintf("size %d", v.SizeID))
	}
	if v.ColorID != 0 {
		parts = append(parts, fmt.Sprintf("color %d", v.ColorID))
	}
	return strings.Join(parts, ", ")
}

type StepState string

const (
	StepDone    StepState = "done"
	StepCurrent StepState = "current"
	StepPending StepState = "pending"
)

type Step struct {
	Label string    `json:"label"`
	State StepState `json:"state"`
}

var stepOrder = []struct {
	label  string
	stages []checkout.Stage
}{
	{"Address", []checkout.Stage{checkout.StageSelectingAddress}},
	{"Shipping", []checkout.Stage{checkout.StageCalculatingShipping}},
	{"Review", []checkout.Stage{checkout.StageReviewingSummary, checkout.StageSubmitting, checkout.StageFailed}},
	{"Confirmation", []checkout.Stage{checkout.StageConfirmed}},
}

type RateOption struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Price    string `json:"price"`
	Selected bool   `json:"selected"`
}

type CheckoutSummary struct {
	Stage       checkout.Stage      `json:"stage"`
	Steps       []Step              `json:"steps"`
	Cart        CartSummary         `json:"cart"`
	Rates       []RateOption        `json:"rates,omitempty"`
	Shipping    string              `json:"shipping,omitempty"`
	Total       string              `json:"total"`
	CanSubmit   bool                `json:"can_submit"`
	CanRetry    bool                `json:"can_retry"`
	Error       string              `json:"error,omitempty"`
	FieldErrors map[string][]string `json:"field_errors,omitempty"`
	OrderID     string              `json:"order_id,omitempty"`
}

// CheckoutSummary derives the review screen. The submit control is only
// enabled when a submission can start, so it is disabled while one is in
// flight.
func (f *Formatter) CheckoutSummary(s checkout.Session) CheckoutSummary {
	out := CheckoutSummary{
		Stage: s.Stage,
		Steps: steps(s.Stage),
		Cart:  f.CartSummary(s.CartSnapshot),
		Total: f.Money(s.Total(), ""),
	}

	for _, r := range s.Rates {
		out.Rates = append(out.Rates, RateOption{
			ID:       r.ID,
			Label:    rateLabel(r),
			Price:    f.Money(r.Amount, r.Currency),
			Selected: r.ID == s.RateID,
		})
	}
	if rate, ok := s.SelectedRate(); ok {
		out.Shipping = f.Money(rate.Amount, rate.Currency)
	}

	_, rateChosen := s.SelectedRate()
	resubmit := s.Stage == checkout.StageFailed && s.FailedStage == checkout.StageSubmitting
	out.CanSubmit = !s.InFlight && rateChosen && s.AddressID != 0 &&
		(s.Stage == checkout.StageReviewingSummary || resubmit)
	out.CanRetry = !s.InFlight && s.LastError != nil &&
		(resubmit || s.Stage == checkout.StageCalculatingShipping)

	if s.LastError != nil {
		out.Error = s.LastError.Message
		out.FieldErrors = s.LastError.FieldErrors
	}
	if s.Order != nil {
		out.OrderID = s.Order.ID
	}
	return out
}

func steps(stage checkout.Stage) []Step {
	current := -1
	for i, st := range stepOrder {
		for _, s := range st.stages {
			if s == stage {
				current = i
			}
		}
	}

	out := make([]Step, 0, len(stepOrder))
	for i, st := range stepOrder {
		state := StepPending
		switch {
		case stage == checkout.StageConfirmed:
			state = StepDone
		case i < current:
			state = StepDone
		case i == current:
			state = StepCurrent
		}
		out = append(out, Step{Label: st.label, State: state})
	}
	return out
}

func rateLabel(r domain.ShippingRate) string {
	label := strings.TrimSpace(r.Carrier + " " + r.Service)
	if r.EstimatedDays > 0 {
		label += fmt.Sprintf(" (%d business days)", r.EstimatedDays)
	}
	return label
}
