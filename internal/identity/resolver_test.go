package identity

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestKeys(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return priv, string(pubPEM)
}

func signToken(t *testing.T, priv *ecdsa.PrivateKey, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(priv)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func validClaims() Claims {
	now := time.Now().UTC()
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			Issuer:    "orderdesk",
			Audience:  jwt.ClaimStrings{"orderdesk-realtime"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Name: "Ana",
	}
}

func TestResolve_ValidBearerToken(t *testing.T) {
	priv, pubPEM := newTestKeys(t)
	r, err := NewResolver(pubPEM, "orderdesk", "orderdesk-realtime", false)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, priv, validClaims()))

	id, err := r.Resolve(req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id.UserID != "u-1" || id.Name != "Ana" {
		t.Errorf("identity = %+v, want UserID u-1 Name Ana", id)
	}
}

func TestResolve_TokenQueryParam(t *testing.T) {
	priv, pubPEM := newTestKeys(t)
	r, err := NewResolver(pubPEM, "orderdesk", "orderdesk-realtime", false)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	req := httptest.NewRequest("GET", "/ws?token="+signToken(t, priv, validClaims()), nil)
	id, err := r.Resolve(req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id.UserID != "u-1" {
		t.Errorf("UserID = %q, want u-1", id.UserID)
	}
}

func TestResolve_Rejections(t *testing.T) {
	priv, pubPEM := newTestKeys(t)
	otherPriv, _ := newTestKeys(t)
	r, err := NewResolver(pubPEM, "orderdesk", "orderdesk-realtime", false)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().UTC().Add(-time.Hour))

	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "someone-else"

	wrongAudience := validClaims()
	wrongAudience.Audience = jwt.ClaimStrings{"other-app"}

	noSubject := validClaims()
	noSubject.Subject = ""

	tests := []struct {
		name  string
		token string
	}{
		{"no credential", ""},
		{"garbage token", "not-a-jwt"},
		{"wrong key", signToken(t, otherPriv, validClaims())},
		{"expired", signToken(t, priv, expired)},
		{"wrong issuer", signToken(t, priv, wrongIssuer)},
		{"wrong audience", signToken(t, priv, wrongAudience)},
		{"no subject", signToken(t, priv, noSubject)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/ws", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			if _, err := r.Resolve(req); err == nil {
				t.Error("Resolve should fail")
			}
		})
	}
}

func TestResolve_NameFallsBackToSubject(t *testing.T) {
	priv, pubPEM := newTestKeys(t)
	r, err := NewResolver(pubPEM, "orderdesk", "orderdesk-realtime", false)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	claims := validClaims()
	claims.Name = ""
	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, priv, claims))

	id, err := r.Resolve(req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id.Name != "u-1" {
		t.Errorf("Name = %q, want subject fallback u-1", id.Name)
	}
}

func TestResolve_DevModeUserParam(t *testing.T) {
	r, err := NewResolver("", "", "", true)
	if err != nil {
		t.Fatalf("NewResolver dev mode: %v", err)
	}

	req := httptest.NewRequest("GET", "/ws?user=dev-user", nil)
	id, err := r.Resolve(req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id.UserID != "dev-user" {
		t.Errorf("UserID = %q, want dev-user", id.UserID)
	}

	if _, err := r.Resolve(httptest.NewRequest("GET", "/ws", nil)); err == nil {
		t.Error("dev mode without user param should fail")
	}
}

func TestNewResolver_RequiresKeyOutsideDevMode(t *testing.T) {
	if _, err := NewResolver("", "orderdesk", "orderdesk-realtime", false); err == nil {
		t.Error("NewResolver with empty key outside dev mode should fail")
	}
}

func TestNewResolver_InvalidPEM(t *testing.T) {
	if _, err := NewResolver("-----BEGIN PUBLIC KEY-----\ngarbage\n-----END PUBLIC KEY-----", "", "", false); err == nil {
		t.Error("NewResolver with invalid PEM should fail")
	}
}
