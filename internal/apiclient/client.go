// Package apiclient wraps calls to the marketplace REST API: it attaches the
// bearer token and content headers, encodes the body and normalizes failures
// into *Error values.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// TokenSource supplies the bearer token for a call. An empty token means the
// call is made anonymously.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type Request struct {
	Method string
	Path   string
	// Body is JSON-encoded, or sent as form fields when Multipart is set
	// (it must then be a map[string]string).
	Body      any
	Multipart bool
	Header    http.Header
}

type response struct {
	status int
	body   []byte
}

var errServerStatus = errors.New("server returned 5xx")

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	breaker    *gobreaker.CircuitBreaker[*response]
	log        *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func WithLogger(log *zap.Logger) Option {
	return func(cl *Client) { cl.log = log }
}

func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(cl *Client) { cl.breaker = newBreaker(st) }
}

func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tokens: tokens,
		log:    zap.NewNop(),
	}
	c.breaker = newBreaker(gobreaker.Settings{
		Name:        "storefront-api",
		MaxRequests: 1,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newBreaker(st gobreaker.Settings) *gobreaker.CircuitBreaker[*response] {
	// only transport failures and 5xx count against the breaker
	st.IsSuccessful = func(err error) bool { return err == nil }
	return gobreaker.NewCircuitBreaker[*response](st)
}

// Do performs req and decodes the JSON response into out (which may be nil).
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return err
	}

	resp, err := c.breaker.Execute(func() (*response, error) {
		return c.send(httpReq)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.log.Warn("api circuit open", zap.String("path", req.Path))
		return &Error{Kind: KindNetwork, Message: "service temporarily unavailable", Cause: err}
	case errors.Is(err, errServerStatus):
		// resp carries the 5xx payload, handled below
	case err != nil:
		c.log.Warn("api request failed", zap.String("method", req.Method), zap.String("path", req.Path), zap.Error(err))
		return &Error{Kind: KindNetwork, Cause: err}
	}

	if resp.status < 200 || resp.status >= 300 {
		apiErr := newStatusError(resp.status, resp.body)
		c.log.Info("api request rejected",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Int("status", resp.status),
			zap.String("kind", apiErr.Kind.String()))
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return &Error{Kind: KindParse, Status: resp.status, Message: "malformed response body", Cause: err}
	}
	return nil
}

func (c *Client) send(httpReq *http.Request) (*response, error) {
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	resp := &response{status: httpResp.StatusCode, body: body}
	if resp.status >= 500 {
		return resp, errServerStatus
	}
	return resp, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.url(req.Path), body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: "invalid request", Cause: err}
	}

	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("read auth token: %w", err)
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return httpReq, nil
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

func encodeBody(req Request) (io.Reader, string, error) {
	if req.Body == nil {
		if req.Multipart {
			return nil, "", fmt.Errorf("multipart request to %s has no fields", req.Path)
		}
		return nil, "application/json", nil
	}

	if !req.Multipart {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, "", fmt.Errorf("marshal request body: %w", err)
		}
		return bytes.NewReader(payload), "application/json", nil
	}

	fields, ok := req.Body.(map[string]string)
	if !ok {
		return nil, "", fmt.Errorf("multipart body must be map[string]string, got %T", req.Body)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, k := range keys {
		if err := w.WriteField(k, fields[k]); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
