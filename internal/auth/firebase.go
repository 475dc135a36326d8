// Package auth verifies Firebase ID tokens and manages the session cookie.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. The browser signs in with the Firebase web SDK and gets an ID token
//  2. It POSTs the token as a Bearer header to /api/f3him/create (or
//     /api/athlete/create); the server verifies it and upserts the local user
//  3. It POSTs the same token to /api/auth/set-token, which stores it in the
//     HttpOnly "firebaseToken" cookie
//  4. Every later request carries the cookie; the Authenticator re-verifies
//     the token and loads the local user by subject
//
// FIREBASE ID TOKENS:
// An ID token is an RS256 JWT signed by Google. Verifying one needs no call
// to Firebase itself, only Google's published certificates (see keys.go):
//
//	header:  {"alg":"RS256","kid":"<which certificate>"}
//	payload: {"iss":"https://securetoken.google.com/<project>",
//	          "aud":"<project>","sub":"<uid>","auth_time":...,"exp":...}
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/f3-invigorate/invigorate/internal/apperror"
	"github.com/f3-invigorate/invigorate/internal/config"
)

const issuerPrefix = "https://securetoken.google.com/"

// ErrNotConfigured is the sentinel behind every ConfigError.
var ErrNotConfigured = errors.New("auth: identity provider not configured")

// ConfigError names exactly which settings are missing so the operator does
// not have to guess.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf(
		"firebase credentials are missing or empty: set %s in the environment",
		strings.Join(e.Missing, ", "),
	)
}

func (e *ConfigError) Unwrap() error { return ErrNotConfigured }

// Claims are the verified facts about the caller.
// Optional fields are "" when the provider did not supply them.
type Claims struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
	AuthTime      time.Time
}

// CredentialVerifier turns a bearer string into verified Claims.
//
// Errors are always *apperror.AppError: ErrUnauthorized for a token we
// reject, ErrUnavailable when we could not check it at all.
type CredentialVerifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// firebaseClaims is the JWT payload as Firebase writes it.
type firebaseClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	AuthTime      int64  `json:"auth_time"`
}

type FirebaseVerifier struct {
	projectID  string
	keys       *KeySource
	revocation *RevocationChecker
	now        func() time.Time
}

type VerifierOption func(*verifierOptions)

type verifierOptions struct {
	httpClient  *http.Client
	certsURL    string
	identityURL string
	tokenURL    string
	now         func() time.Time
}

// WithHTTPClient sets the client used for certificate and account lookups.
func WithHTTPClient(c *http.Client) VerifierOption {
	return func(o *verifierOptions) { o.httpClient = c }
}

// WithEndpoints points the verifier at alternative Google endpoints. Empty
// values keep the defaults. Used by tests.
func WithEndpoints(certsURL, identityURL, tokenURL string) VerifierOption {
	return func(o *verifierOptions) {
		if certsURL != "" {
			o.certsURL = certsURL
		}
		if identityURL != "" {
			o.identityURL = identityURL
		}
		if tokenURL != "" {
			o.tokenURL = tokenURL
		}
	}
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) VerifierOption {
	return func(o *verifierOptions) { o.now = now }
}

// NewFirebaseVerifier validates the configuration up front. A missing project
// id (or missing service-account credentials when revocation checks are on)
// is a *ConfigError, and the server refuses to start on it.
func NewFirebaseVerifier(cfg config.FirebaseConfig, opts ...VerifierOption) (*FirebaseVerifier, error) {
	o := verifierOptions{
		certsURL:    GoogleCertsURL,
		identityURL: IdentityToolkitURL,
		tokenURL:    GoogleTokenURL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var missing []string
	if strings.TrimSpace(cfg.ProjectID) == "" {
		missing = append(missing, "FIREBASE_PROJECT_ID")
	}
	if cfg.CheckRevoked {
		if strings.TrimSpace(cfg.ClientEmail) == "" {
			missing = append(missing, "FIREBASE_CLIENT_EMAIL")
		}
		if strings.TrimSpace(cfg.PrivateKey) == "" {
			missing = append(missing, "FIREBASE_PRIVATE_KEY")
		}
	}
	if len(missing) > 0 {
		return nil, &ConfigError{Missing: missing}
	}

	keys := NewKeySource(o.certsURL, o.httpClient)
	keys.now = o.now

	v := &FirebaseVerifier{
		projectID: cfg.ProjectID,
		keys:      keys,
		now:       o.now,
	}

	if cfg.CheckRevoked {
		rc, err := NewRevocationChecker(cfg, o.identityURL, o.tokenURL, o.httpClient)
		if err != nil {
			return nil, err
		}
		v.revocation = rc
	}

	return v, nil
}

// Verify checks signature, issuer, audience and timing on every call.
//
// VALIDATION CHECKS:
//   - alg is RS256 and kid names a current Google certificate
//   - iss is https://securetoken.google.com/<project>, aud is <project>
//   - exp is present and in the future; iat and auth_time are not in the future
//   - sub is non-empty and at most 128 characters
//   - (optional) the account is not disabled and the token predates no revocation
func (v *FirebaseVerifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apperror.InvalidCredential(errors.New("token is empty"))
	}

	var c firebaseClaims
	_, err := jwt.ParseWithClaims(
		raw,
		&c,
		func(token *jwt.Token) (any, error) {
			kid, _ := token.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("token has no kid header")
			}
			return v.keys.Key(ctx, kid)
		},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(issuerPrefix+v.projectID),
		jwt.WithAudience(v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, ErrKeysUnavailable) {
			return nil, apperror.Unavailable("Identity provider unavailable", err)
		}
		return nil, apperror.InvalidCredential(err)
	}

	if c.Subject == "" {
		return nil, apperror.InvalidCredential(errors.New("token has no subject"))
	}
	if len(c.Subject) > 128 {
		return nil, apperror.InvalidCredential(errors.New("token subject is longer than 128 characters"))
	}
	if c.AuthTime == 0 {
		return nil, apperror.InvalidCredential(errors.New("token has no auth_time"))
	}
	authTime := time.Unix(c.AuthTime, 0)
	if authTime.After(v.now()) {
		return nil, apperror.InvalidCredential(errors.New("token auth_time is in the future"))
	}

	claims := &Claims{
		Subject:       c.Subject,
		Email:         c.Email,
		EmailVerified: c.EmailVerified,
		Name:          c.Name,
		Picture:       c.Picture,
		AuthTime:      authTime,
	}

	if v.revocation != nil {
		if err := v.revocation.Check(ctx, claims); err != nil {
			return nil, err
		}
	}

	return claims, nil
}
