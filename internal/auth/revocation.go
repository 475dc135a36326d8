package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	sajwt "golang.org/x/oauth2/jwt"

	"github.com/f3-invigorate/invigorate/internal/apperror"
	"github.com/f3-invigorate/invigorate/internal/config"
)

const (
	IdentityToolkitURL = "https://identitytoolkit.googleapis.com"
	GoogleTokenURL     = "https://oauth2.googleapis.com/token"
)

// ErrTokenRevoked means the user's sessions were revoked after this token
// was issued (password change, "sign out everywhere", admin action).
var ErrTokenRevoked = errors.New("auth: token has been revoked")

// RevocationChecker asks Identity Toolkit whether an account is disabled or
// has had its tokens revoked. Signature checks alone cannot tell; this is the
// one place a verification talks to Firebase over the network.
//
// OAUTH2 SERVICE ACCOUNT FLOW:
// The lookup API needs a bearer token for our service account. oauth2/jwt
// signs a JWT assertion with the service-account private key, trades it at
// Google's token endpoint for an access token, and caches that token until it
// expires. oauth2.NewClient wraps all of that into a plain *http.Client.
type RevocationChecker struct {
	projectID string
	endpoint  string
	client    *http.Client
}

func NewRevocationChecker(cfg config.FirebaseConfig, identityURL, tokenURL string, base *http.Client) (*RevocationChecker, error) {
	if _, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.PrivateKey)); err != nil {
		return nil, fmt.Errorf("%w: FIREBASE_PRIVATE_KEY is not a PEM encoded RSA key: %v", ErrNotConfigured, err)
	}

	sa := &sajwt.Config{
		Email:      cfg.ClientEmail,
		PrivateKey: []byte(cfg.PrivateKey),
		Scopes: []string{
			"https://www.googleapis.com/auth/identitytoolkit",
			"https://www.googleapis.com/auth/cloud-platform",
		},
		TokenURL: tokenURL,
	}

	ctx := context.Background()
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}

	return &RevocationChecker{
		projectID: cfg.ProjectID,
		endpoint:  identityURL,
		client:    oauth2.NewClient(ctx, sa.TokenSource(ctx)),
	}, nil
}

type lookupResponse struct {
	Users []struct {
		LocalID    string `json:"localId"`
		Disabled   bool   `json:"disabled"`
		ValidSince string `json:"validSince"`
	} `json:"users"`
}

// Check returns nil when the account is active and the token is still valid.
func (r *RevocationChecker) Check(ctx context.Context, claims *Claims) error {
	body, err := json.Marshal(map[string][]string{"localId": {claims.Subject}})
	if err != nil {
		return apperror.Unavailable("Identity provider unavailable", err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/accounts:lookup", r.endpoint, r.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return apperror.Unavailable("Identity provider unavailable", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return apperror.Unavailable("Identity provider unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperror.Unavailable("Identity provider unavailable",
			fmt.Errorf("accounts:lookup returned %s", resp.Status))
	}

	var out lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return apperror.Unavailable("Identity provider unavailable",
			fmt.Errorf("decoding accounts:lookup response: %w", err))
	}

	if len(out.Users) == 0 {
		return apperror.InvalidCredential(fmt.Errorf("no account for subject %s", claims.Subject))
	}
	account := out.Users[0]
	if account.Disabled {
		return apperror.InvalidCredential(errors.New("user account is disabled"))
	}
	if account.ValidSince != "" {
		validSince, err := strconv.ParseInt(account.ValidSince, 10, 64)
		if err == nil && claims.AuthTime.Unix() < validSince {
			return apperror.InvalidCredential(ErrTokenRevoked)
		}
	}
	return nil
}
