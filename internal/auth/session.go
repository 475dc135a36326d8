package auth

import (
	"net/http"
	"strings"
	"time"
)

const (
	SessionCookieName = "firebaseToken"
	SessionMaxAge     = 7 * 24 * time.Hour
)

// SessionStore keeps the raw Firebase ID token in a cookie.
//
// COOKIE ATTRIBUTES:
//   - HttpOnly: page JavaScript cannot read it, so an XSS bug cannot steal it
//   - SameSite=Lax: not sent on cross-site POSTs, which blocks CSRF on the API
//   - Secure (production only): never sent over plain HTTP
//   - Max-Age 7 days. The token inside expires after an hour regardless; the
//     browser refreshes it and calls set-token again.
//
// The store does not verify anything. Current() hands back whatever the
// browser sent and the Authenticator verifies it on each request.
type SessionStore struct {
	secure bool
}

func NewSessionStore(secure bool) *SessionStore {
	return &SessionStore{secure: secure}
}

// Establish writes the session cookie.
func (s *SessionStore) Establish(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionMaxAge / time.Second),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Current returns the stored token. A missing or empty cookie is simply
// ("", false), never an error.
func (s *SessionStore) Current(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// Clear expires the cookie (logout).
func (s *SessionStore) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
