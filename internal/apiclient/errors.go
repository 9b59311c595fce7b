package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind categorizes a failed remote call.
type Kind int

const (
	// KindNetwork means no response was received.
	KindNetwork Kind = iota
	// KindValidation is a 4xx carrying field-level errors.
	KindValidation
	// KindUnauthorized is a 401; callers send the user to sign-in.
	KindUnauthorized
	// KindServer is any 5xx.
	KindServer
	// KindBusiness is a 4xx rejection such as insufficient stock.
	KindBusiness
	// KindParse means a 2xx response body was not valid JSON.
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindServer:
		return "server"
	case KindBusiness:
		return "business"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

const (
	MessageServerFailure  = "Something went wrong on our side. Please try again later."
	MessageNetworkFailure = "Unable to reach the store. Check your connection and try again."
)

// Error is the normalized shape of every remote call failure.
type Error struct {
	Kind        Kind
	Status      int
	Message     string
	FieldErrors map[string][]string
	Cause       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// UserMessage is the text shown to the user for this failure.
func (e *Error) UserMessage(fallback string) string {
	switch e.Kind {
	case KindServer:
		return MessageServerFailure
	case KindNetwork:
		return MessageNetworkFailure
	}
	if e.Message != "" {
		return e.Message
	}
	if first := e.firstFieldError(); first != "" {
		return first
	}
	return fallback
}

func (e *Error) firstFieldError() string {
	fields := make([]string, 0, len(e.FieldErrors))
	for field := range e.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		if msgs := e.FieldErrors[field]; len(msgs) > 0 {
			return msgs[0]
		}
	}
	return ""
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Kind == kind
}

type errorPayload struct {
	Message string                     `json:"message"`
	Error   string                     `json:"error"`
	Errors  map[string]json.RawMessage `json:"errors"`
}

// newStatusError builds an *Error from a non-2xx response.
func newStatusError(status int, body []byte) *Error {
	apiErr := &Error{Status: status}

	var payload errorPayload
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Error
		}
		apiErr.FieldErrors = decodeFieldErrors(payload.Errors)
	}

	switch {
	case status == http.StatusUnauthorized:
		apiErr.Kind = KindUnauthorized
	case status >= 500:
		apiErr.Kind = KindServer
	case status == http.StatusUnprocessableEntity || len(apiErr.FieldErrors) > 0:
		apiErr.Kind = KindValidation
	default:
		apiErr.Kind = KindBusiness
	}

	// field errors carry the user-facing text when the backend sends no message
	if apiErr.Message == "" && len(apiErr.FieldErrors) == 0 {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// decodeFieldErrors accepts both {"field": ["msg"]} and {"field": "msg"}.
func decodeFieldErrors(raw map[string]json.RawMessage) map[string][]string {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string][]string, len(raw))
	for field, value := range raw {
		var many []string
		if err := json.Unmarshal(value, &many); err == nil {
			out[field] = many
			continue
		}
		var one string
		if err := json.Unmarshal(value, &one); err == nil {
			out[field] = []string{one}
		}
	}
	return out
}
