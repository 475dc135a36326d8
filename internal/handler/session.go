package handler

import (
	"net/http"
	"strings"

	"github.com/f3-invigorate/invigorate/internal/apperror"
	"github.com/f3-invigorate/invigorate/internal/auth"
	"github.com/f3-invigorate/invigorate/internal/model"
	"github.com/f3-invigorate/invigorate/internal/service"
)

// SessionHandler moves the ID token in and out of the session cookie.
type SessionHandler struct {
	sessions *auth.SessionStore
	resp     *Responder
}

func NewSessionHandler(sessions *auth.SessionStore, resp *Responder) *SessionHandler {
	return &SessionHandler{sessions: sessions, resp: resp}
}

type setTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// HandleSetToken stores the browser's ID token in the HttpOnly cookie.
//
// HTTP: POST /api/auth/set-token
// REQUEST BODY: {"token": "<Firebase ID token>"}
//
// Nothing is verified here. A bad token is caught by the Authenticator on
// the next request that needs a user.
func (h *SessionHandler) HandleSetToken(w http.ResponseWriter, r *http.Request) {
	var req setTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if err := service.Validate(req); err != nil {
		h.resp.Error(w, r, err)
		return
	}

	h.sessions.Establish(w, req.Token)
	writeJSON(w, http.StatusOK, MessageResponse{Success: true})
}

// HandleLogout clears the cookie. Signing out of Firebase itself is the
// browser's job.
//
// HTTP: POST /api/auth/logout
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w)
	writeJSON(w, http.StatusOK, MessageResponse{Success: true})
}

type MeResponse struct {
	Success bool        `json:"success"`
	Data    *model.User `json:"data"`
}

// HandleMe returns the signed-in user.
//
// HTTP: GET /api/me (behind RequireUser)
func (h *SessionHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.resp.Error(w, r, apperror.Unauthorized("Unauthorized"))
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{Success: true, Data: user})
}
