package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/f3-invigorate/invigorate/internal/apperror"
	"github.com/f3-invigorate/invigorate/internal/model"
)

// contextKey is an unexported type used for context keys in this package.
// Only this package can create one, so nothing else can shadow our values.
type contextKey string

const userKey contextKey = "user"

// UserLoader finds the local user for a verified subject.
// service.IdentityService satisfies it.
type UserLoader interface {
	BySubject(ctx context.Context, subject string) (*model.User, error)
}

// ErrorWriter renders an error response. The handler package supplies one
// so middleware failures look exactly like handler failures.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Authenticator ties the session cookie, the verifier and the user table
// together: cookie → Verify → BySubject → *model.User in the context.
type Authenticator struct {
	sessions *SessionStore
	verifier CredentialVerifier
	users    UserLoader
	writeErr ErrorWriter
	logger   *slog.Logger
}

func NewAuthenticator(sessions *SessionStore, verifier CredentialVerifier, users UserLoader, writeErr ErrorWriter, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		sessions: sessions,
		verifier: verifier,
		users:    users,
		writeErr: writeErr,
		logger:   logger,
	}
}

// CurrentUser resolves the caller from the session cookie.
//
// RETURN CONTRACT:
//   - (nil, nil)   no cookie: an anonymous visitor
//   - (user, nil)  valid token for a known user
//   - (nil, err)   ErrUnauthorized for a rejected token or a subject with no
//     local user; ErrUnavailable when verification itself failed
func (a *Authenticator) CurrentUser(r *http.Request) (*model.User, error) {
	token, ok := a.sessions.Current(r)
	if !ok {
		return nil, nil
	}

	claims, err := a.verifier.Verify(r.Context(), token)
	if err != nil {
		return nil, err
	}

	user, err := a.users.BySubject(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// Signed in with Firebase but never completed signup.
			return nil, apperror.Unauthorized("Unauthorized")
		}
		return nil, err
	}
	return user, nil
}

// RequireUser rejects the request unless CurrentUser finds someone, and
// stores that user in the context for the handler.
func (a *Authenticator) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.CurrentUser(r)
		if err != nil {
			if errors.Is(err, apperror.ErrUnauthorized) {
				a.logger.Debug("session rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", errorDetail(err)),
				)
			}
			a.writeErr(w, r, err)
			return
		}
		if user == nil {
			a.writeErr(w, r, apperror.Unauthorized("Unauthorized"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireRole must sit behind RequireUser. Users without the role get 403.
func (a *Authenticator) RequireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				a.writeErr(w, r, apperror.Unauthorized("Unauthorized"))
				return
			}
			if user.Role != role {
				a.logger.Info("role required",
					slog.String("user_id", user.ID),
					slog.String("role", string(role)),
					slog.String("path", r.URL.Path),
				)
				a.writeErr(w, r, apperror.Forbidden("Forbidden"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext retrieves the user stored by RequireUser.
//
// Returns (nil, false) on routes that are not behind RequireUser.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

func errorDetail(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Cause != nil {
		return appErr.Cause.Error()
	}
	return err.Error()
}
