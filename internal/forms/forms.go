// Package forms validates customer input before it is sent to the API and
// maps the API's own validation failures into the same per-field shape.
package forms

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/apiclient"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/domain"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/queries"
)

// FieldErrors maps a JSON field name to the message shown next to it.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	fields := make([]string, 0, len(f))
	for k := range f {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, k := range fields {
		parts = append(parts, k+": "+f[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type AddressForm struct {
	Label   string `json:"label" validate:"required,min=2,max=50"`
	Street  string `json:"street" validate:"required,min=3,max=200"`
	City    string `json:"city" validate:"required,max=100"`
	State   string `json:"state" validate:"required,max=100"`
	Zip     string `json:"zip" validate:"required,max=20"`
	Country string `json:"country" validate:"required,iso3166_1_alpha2"`
	Phone   string `json:"phone" validate:"required,e164"`
}

func (f AddressForm) Validate() error {
	return check(f)
}

func (f AddressForm) Address() domain.Address {
	return domain.Address{
		Label:   strings.TrimSpace(f.Label),
		Street:  strings.TrimSpace(f.Street),
		City:    strings.TrimSpace(f.City),
		State:   strings.TrimSpace(f.State),
		Zip:     strings.TrimSpace(f.Zip),
		Country: strings.ToUpper(strings.TrimSpace(f.Country)),
		Phone:   strings.TrimSpace(f.Phone),
	}
}

type AddItemForm struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,min=1"`
	SizeID    int64 `json:"size_id" validate:"omitempty,gt=0"`
	ColorID   int64 `json:"color_id" validate:"omitempty,gt=0"`
	// StockQuantity is the stock reported by the last product fetch, if any.
	StockQuantity int    `json:"stock_quantity" validate:"omitempty,gte=0"`
	Title         string `json:"title" validate:"max=255"`
}

// Validate also rejects a quantity above the known stock.
func (f AddItemForm) Validate() error {
	if err := check(f); err != nil {
		return err
	}
	if f.StockQuantity > 0 && f.Quantity > f.StockQuantity {
		return FieldErrors{"quantity": fmt.Sprintf("Only %d available.", f.StockQuantity)}
	}
	return nil
}

func (f AddItemForm) Variant() *domain.Variant {
	if f.SizeID == 0 && f.ColorID == 0 {
		return nil
	}
	return &domain.Variant{SizeID: f.SizeID, ColorID: f.ColorID}
}

func (f AddItemForm) Input() queries.ItemInput {
	return queries.ItemInput{ProductID: f.ProductID, Quantity: f.Quantity, Variant: f.Variant()}
}

// UpdateQuantityForm carries either a relative change or an absolute quantity.
type UpdateQuantityForm struct {
	Delta    int `json:"delta" validate:"required_without=Quantity,excluded_with=Quantity"`
	Quantity int `json:"quantity" validate:"required_without=Delta,omitempty,min=1"`
}

func (f UpdateQuantityForm) Validate() error {
	return check(f)
}

type SelectAddressForm struct {
	AddressID int64 `json:"address_id" validate:"required,gt=0"`
}

func (f SelectAddressForm) Validate() error {
	return check(f)
}

type SelectRateForm struct {
	RateID string `json:"rate_id" validate:"required,max=100"`
}

func (f SelectRateForm) Validate() error {
	return check(f)
}

func check(form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate form: %w", err)
	}

	out := FieldErrors{}
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; !seen {
			out[fe.Field()] = message(fe)
		}
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "This field is required."
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Must be at least %s characters.", fe.Param())
		}
		return fmt.Sprintf("Must be at least %s.", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Must be at most %s characters.", fe.Param())
		}
		return fmt.Sprintf("Must be at most %s.", fe.Param())
	case "gt", "gte":
		return "Must be a positive number."
	case "e164":
		return "Enter the phone number in international format, e.g. +14165550123."
	case "iso3166_1_alpha2":
		return "Enter a two-letter country code."
	case "excluded_with":
		return "Send either a change or a quantity, not both."
	default:
		return "Invalid value."
	}
}

// FromAPIError extracts per-field messages from a backend validation
// failure. ok is false when err carries none.
func FromAPIError(err error) (FieldErrors, bool) {
	apiErr, ok := apiclient.AsError(err)
	if !ok || len(apiErr.FieldErrors) == 0 {
		return nil, false
	}

	out := FieldErrors{}
	for field, msgs := range apiErr.FieldErrors {
		if len(msgs) > 0 {
			out[field] = msgs[0]
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}
