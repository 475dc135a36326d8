package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GoogleCertsURL publishes the X.509 certificates Firebase signs ID tokens with.
const GoogleCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

var (
	// ErrKeysUnavailable means the certificate endpoint could not be reached
	// or answered with something other than a certificate set.
	ErrKeysUnavailable = errors.New("auth: signing keys unavailable")
	// ErrUnknownKey means the token names a kid Google does not publish.
	ErrUnknownKey = errors.New("auth: unknown signing key")
)

// KeySource fetches and caches Google's public signing keys.
//
// CACHING:
// The certificate response carries Cache-Control: max-age=N. Keys are held
// until then and refetched on the first lookup after expiry. This caches the
// keys only, never a verification result.
type KeySource struct {
	url    string
	client *http.Client
	now    func() time.Time

	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	expires time.Time
}

func NewKeySource(url string, client *http.Client) *KeySource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &KeySource{url: url, client: client, now: time.Now}
}

// Key returns the public key for kid, refreshing the set if it has expired.
func (s *KeySource) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keys == nil || !s.now().Before(s.expires) {
		if err := s.refresh(ctx); err != nil {
			return nil, err
		}
	}

	key, ok := s.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, kid)
	}
	return key, nil
}

// refresh must be called with s.mu held.
func (s *KeySource) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("%w: building request: %v", ErrKeysUnavailable, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeysUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: certificate endpoint returned %s", ErrKeysUnavailable, resp.Status)
	}

	var certs map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&certs); err != nil {
		return fmt.Errorf("%w: decoding certificates: %v", ErrKeysUnavailable, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pemCert := range certs {
		// ParseRSAPublicKeyFromPEM accepts a CERTIFICATE block as well as a
		// bare public key, which is what Google publishes.
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemCert))
		if err != nil {
			return fmt.Errorf("%w: parsing certificate %q: %v", ErrKeysUnavailable, kid, err)
		}
		keys[kid] = key
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w: certificate set is empty", ErrKeysUnavailable)
	}

	s.keys = keys
	s.expires = s.now().Add(maxAge(resp.Header.Get("Cache-Control")))
	return nil
}

// maxAge pulls max-age out of a Cache-Control header. Without one the keys
// are refetched on every call, which is slow but never wrong.
func maxAge(header string) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		secs, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	return 0
}
