package checkout

import "errors"

var (
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrIllegalTransition  = errors.New("illegal transition of checkout stage")
	ErrNoSession          = errors.New("no checkout in progress")
	ErrSubmitInFlight     = errors.New("order submission already in progress")
	ErrAddressRequired    = errors.New("a delivery address must be selected")
	ErrRateRequired       = errors.New("a shipping option must be selected")
	ErrUnknownRate        = errors.New("shipping option not offered for this address")
	ErrCartChanged        = errors.New("cart changed since shipping was calculated")
	ErrNoShippingOptions  = errors.New("no shipping options available for this address")
	ErrNothingToRetry     = errors.New("no failed step to retry")
	ErrShippingInProgress = errors.New("shipping rates are still being calculated")
)
