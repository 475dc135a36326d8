package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/f3-invigorate/invigorate/internal/apperror"
	"github.com/f3-invigorate/invigorate/internal/config"
)

const testProject = "f3-invigorate-test"

var testNow = time.Unix(1_700_000_000, 0)

// =========================================================================
// FAKE GOOGLE CERTIFICATE ENDPOINT
// =========================================================================

type certServer struct {
	*httptest.Server
	key    *rsa.PrivateKey
	hits   atomic.Int32
	status atomic.Int32
}

func selfSignedPEM(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "securetoken.system.gserviceaccount.com"},
		NotBefore:    testNow.Add(-time.Hour),
		NotAfter:     testNow.Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

func newCertServer(t *testing.T) *certServer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	cs := &certServer{key: key}
	cs.status.Store(http.StatusOK)
	certs := map[string]string{"kid-1": selfSignedPEM(t, key)}

	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.hits.Add(1)
		if code := int(cs.status.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600, must-revalidate")
		json.NewEncoder(w).Encode(certs)
	}))
	t.Cleanup(cs.Close)
	return cs
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":            issuerPrefix + testProject,
		"aud":            testProject,
		"sub":            "firebase-uid-1",
		"iat":            testNow.Add(-time.Minute).Unix(),
		"exp":            testNow.Add(time.Hour).Unix(),
		"auth_time":      testNow.Add(-2 * time.Minute).Unix(),
		"email":          "sam@example.com",
		"email_verified": true,
		"name":           "Sam Houston",
		"picture":        "https://example.com/sam.png",
	}
}

func (cs *certServer) mint(t *testing.T, claims jwt.MapClaims, kid string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	signed, err := tok.SignedString(cs.key)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func newTestVerifier(t *testing.T, cs *certServer, now *time.Time) *FirebaseVerifier {
	t.Helper()
	clock := func() time.Time { return *now }
	v, err := NewFirebaseVerifier(
		config.FirebaseConfig{ProjectID: testProject},
		WithEndpoints(cs.URL, "", ""),
		WithClock(clock),
	)
	if err != nil {
		t.Fatalf("NewFirebaseVerifier() error = %v", err)
	}
	return v
}

// =========================================================================
// Verify TESTS
// =========================================================================

func TestVerify_ValidToken(t *testing.T) {
	cs := newCertServer(t)
	now := testNow
	v := newTestVerifier(t, cs, &now)

	claims, err := v.Verify(context.Background(), cs.mint(t, validClaims(), "kid-1"))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if claims.Subject != "firebase-uid-1" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "firebase-uid-1")
	}
	if claims.Email != "sam@example.com" || !claims.EmailVerified {
		t.Errorf("Email = %q verified=%v", claims.Email, claims.EmailVerified)
	}
	if claims.Name != "Sam Houston" || claims.Picture != "https://example.com/sam.png" {
		t.Errorf("profile claims = %+v", claims)
	}
	if !claims.AuthTime.Equal(testNow.Add(-2 * time.Minute)) {
		t.Errorf("AuthTime = %v", claims.AuthTime)
	}
}

func TestVerify_Rejections(t *testing.T) {
	cs := newCertServer(t)
	now := testNow
	v := newTestVerifier(t, cs, &now)

	tests := []struct {
		name   string
		mutate func(jwt.MapClaims)
		kid    string
	}{
		{"expired", func(c jwt.MapClaims) { c["exp"] = testNow.Add(-time.Second).Unix() }, "kid-1"},
		{"missing exp", func(c jwt.MapClaims) { delete(c, "exp") }, "kid-1"},
		{"issued in the future", func(c jwt.MapClaims) { c["iat"] = testNow.Add(time.Hour).Unix() }, "kid-1"},
		{"wrong audience", func(c jwt.MapClaims) { c["aud"] = "someone-else" }, "kid-1"},
		{"wrong issuer", func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com/" + testProject }, "kid-1"},
		{"empty subject", func(c jwt.MapClaims) { c["sub"] = "" }, "kid-1"},
		{"subject too long", func(c jwt.MapClaims) { c["sub"] = strings.Repeat("x", 129) }, "kid-1"},
		{"missing auth_time", func(c jwt.MapClaims) { delete(c, "auth_time") }, "kid-1"},
		{"auth_time in the future", func(c jwt.MapClaims) { c["auth_time"] = testNow.Add(time.Hour).Unix() }, "kid-1"},
		{"unknown kid", func(c jwt.MapClaims) {}, "kid-unknown"},
		{"no kid", func(c jwt.MapClaims) {}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			tt.mutate(claims)

			_, err := v.Verify(context.Background(), cs.mint(t, claims, tt.kid))
			if !errors.Is(err, apperror.ErrUnauthorized) {
				t.Fatalf("Verify() error = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestVerify_MalformedAndWrongAlgorithm(t *testing.T) {
	cs := newCertServer(t)
	now := testNow
	v := newTestVerifier(t, cs, &now)

	hs := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
	hs.Header["kid"] = "kid-1"
	hsToken, err := hs.SignedString([]byte("shared-secret-shared-secret"))
	if err != nil {
		t.Fatalf("signing HS256 token: %v", err)
	}

	for name, token := range map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"HS256 signed": hsToken,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), token)
			if !errors.Is(err, apperror.ErrUnauthorized) {
				t.Errorf("Verify() error = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestVerify_SignedByOtherKey(t *testing.T) {
	cs := newCertServer(t)
	now := testNow
	v := newTestVerifier(t, cs, &now)

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims())
	tok.Header["kid"] = "kid-1"
	forged, _ := tok.SignedString(other)

	if _, err := v.Verify(context.Background(), forged); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Verify() error = %v, want ErrUnauthorized", err)
	}
}

func TestVerify_KeyEndpointDownIsUnavailable(t *testing.T) {
	cs := newCertServer(t)
	cs.status.Store(http.StatusServiceUnavailable)
	now := testNow
	v := newTestVerifier(t, cs, &now)

	_, err := v.Verify(context.Background(), cs.mint(t, validClaims(), "kid-1"))
	if !errors.Is(err, apperror.ErrUnavailable) {
		t.Fatalf("Verify() error = %v, want ErrUnavailable", err)
	}
	if errors.Is(err, apperror.ErrUnauthorized) {
		t.Error("a wire failure must not look like a bad token")
	}
}

func TestVerify_CachesKeysUntilMaxAge(t *testing.T) {
	cs := newCertServer(t)
	now := testNow
	v := newTestVerifier(t, cs, &now)
	token := cs.mint(t, validClaims(), "kid-1")

	for i := 0; i < 3; i++ {
		if _, err := v.Verify(context.Background(), token); err != nil {
			t.Fatalf("Verify() #%d error = %v", i, err)
		}
	}
	if got := cs.hits.Load(); got != 1 {
		t.Errorf("certificate fetches = %d, want 1", got)
	}

	// Past max-age the keys are fetched again.
	now = testNow.Add(61 * time.Minute)
	claims := validClaims()
	claims["exp"] = now.Add(time.Hour).Unix()
	if _, err := v.Verify(context.Background(), cs.mint(t, claims, "kid-1")); err != nil {
		t.Fatalf("Verify() after expiry error = %v", err)
	}
	if got := cs.hits.Load(); got != 2 {
		t.Errorf("certificate fetches after max-age = %d, want 2", got)
	}
}

// =========================================================================
// CONFIGURATION TESTS
// =========================================================================

func TestNewFirebaseVerifier_MissingConfig(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.FirebaseConfig
		wantMissing []string
	}{
		{
			name:        "no project",
			cfg:         config.FirebaseConfig{},
			wantMissing: []string{"FIREBASE_PROJECT_ID"},
		},
		{
			name:        "blank project",
			cfg:         config.FirebaseConfig{ProjectID: "   "},
			wantMissing: []string{"FIREBASE_PROJECT_ID"},
		},
		{
			name:        "revocation without service account",
			cfg:         config.FirebaseConfig{ProjectID: testProject, CheckRevoked: true},
			wantMissing: []string{"FIREBASE_CLIENT_EMAIL", "FIREBASE_PRIVATE_KEY"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFirebaseVerifier(tt.cfg)
			if !errors.Is(err, ErrNotConfigured) {
				t.Fatalf("error = %v, want ErrNotConfigured", err)
			}

			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("error %T is not *ConfigError", err)
			}
			if strings.Join(cfgErr.Missing, ",") != strings.Join(tt.wantMissing, ",") {
				t.Errorf("Missing = %v, want %v", cfgErr.Missing, tt.wantMissing)
			}
			for _, name := range tt.wantMissing {
				if !strings.Contains(err.Error(), name) {
					t.Errorf("message %q does not name %s", err.Error(), name)
				}
			}
		})
	}
}

func TestNewFirebaseVerifier_BadPrivateKey(t *testing.T) {
	_, err := NewFirebaseVerifier(config.FirebaseConfig{
		ProjectID:    testProject,
		CheckRevoked: true,
		ClientEmail:  "svc@f3.iam.gserviceaccount.com",
		PrivateKey:   "not a key",
	})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("error = %v, want ErrNotConfigured", err)
	}
}

func TestMaxAge(t *testing.T) {
	tests := map[string]time.Duration{
		"public, max-age=19302, must-revalidate, no-transform": 19302 * time.Second,
		"max-age=60":   time.Minute,
		"MAX-AGE=5":    5 * time.Second,
		"no-cache":     0,
		"":             0,
		"max-age=soon": 0,
		"max-age=-1":   0,
	}
	for header, want := range tests {
		if got := maxAge(header); got != want {
			t.Errorf("maxAge(%q) = %v, want %v", header, got, want)
		}
	}
}
