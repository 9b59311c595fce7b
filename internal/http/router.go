package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/apiclient"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/auth"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	// TokenStore enables device sign-in: the token is kept in local storage
	// and used for requests that carry no Authorization header.
	TokenStore auth.Store
}

func NewRouter(h *Handler, cfg RouterConfig, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxRequestBodySize <= 0 {
		cfg.MaxRequestBodySize = 1 << 20
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestIDHeader)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(LimitBody(cfg.MaxRequestBodySize))
	var fallback apiclient.TokenSource
	if cfg.TokenStore != nil {
		fallback = auth.NewStoredSource(cfg.TokenStore)
	}
	r.Use(BearerToken(fallback))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.TokenStore != nil {
			r.Post("/session", h.SignIn(cfg.TokenStore))
			r.Delete("/session", h.SignOut(cfg.TokenStore))
		}
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Get("/summary", h.GetCartSummary)
			r.Post("/items", h.AddItem)
			r.Patch("/items/{id}", h.UpdateItem)
			r.Delete("/items/{id}", h.RemoveItem)
		})
		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", h.ListAddresses)
			r.Post("/", h.CreateAddress)
		})
		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", h.BeginCheckout)
			r.Get("/", h.GetCheckout)
			r.Delete("/", h.CancelCheckout)
			r.Post("/address", h.SelectAddress)
			r.Post("/rate", h.SelectRate)
			r.Post("/shipping/retry", h.RetryShipping)
			r.Post("/submit", h.SubmitOrder)
			r.Post("/retry", h.RetryCheckout)
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
