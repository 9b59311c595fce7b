package http

import (
	"net/http"

	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/auth"
	"go.uber.org/zap"
)

type SignInRequestDTO struct {
	Token string `json:"token"`
}

type SessionResponseDTO struct {
	SignedIn bool `json:"signed_in"`
}

// POST /api/v1/session stores a token issued by the backend for this device.
func (h *Handler) SignIn(store auth.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SignInRequestDTO
		if err := decodeJSON(r, &req); err != nil {
			respondBadJSON(w, err)
			return
		}
		if !auth.Usable(req.Token, h.now()) {
			respondError(w, http.StatusUnprocessableEntity, "invalid_token", "token is missing or expired")
			return
		}

		if err := store.SaveToken(r.Context(), req.Token); err != nil {
			h.log.Error("save token failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "internal_error", "could not store token")
			return
		}
		respondJSON(w, http.StatusCreated, SessionResponseDTO{SignedIn: true})
	}
}

// DELETE /api/v1/session forgets the stored token and the customer's
// local state.
func (h *Handler) SignOut(store auth.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token := auth.TokenFromContext(r.Context()); token != "" {
			h.sessions.Drop(token)
		}
		if err := store.ClearToken(r.Context()); err != nil {
			h.log.Error("clear token failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "internal_error", "could not clear token")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
