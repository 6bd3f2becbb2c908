// Package identity authenticates websocket handshakes and HTTP requests. The
// main app issues short-lived JWTs (RS256 or ES256); this package only
// verifies them against the configured public key.
package identity

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrUnauthenticated is returned when no credential is presented or the
	// token is malformed, expired, or signed with the wrong key.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidKey is returned when the configured public key PEM is invalid.
	ErrInvalidKey = errors.New("invalid key")
)

// Identity is the authenticated user behind a connection.
type Identity struct {
	UserID string
	Name   string
}

// Claims holds the JWT claims the resolver reads: subject is the user id,
// name is the display name shown in presence and conflict warnings.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name"`
}

// Resolver verifies bearer tokens on incoming requests. In dev mode (no
// public key configured, non-production environment) it accepts a plain
// ?user= query parameter instead so the realtime stack can run without the
// token issuer.
type Resolver struct {
	publicKey crypto.PublicKey
	issuer    string
	audience  string
	devMode   bool
}

// NewResolver builds a resolver from a PEM-encoded public key (inline PEM or
// a file path). An empty key is only allowed when devMode is true.
func NewResolver(publicKeyPEM, issuer, audience string, devMode bool) (*Resolver, error) {
	publicKeyPEM = strings.TrimSpace(publicKeyPEM)
	if publicKeyPEM == "" {
		if !devMode {
			return nil, errors.New("identity: public key required outside dev mode")
		}
		return &Resolver{devMode: true}, nil
	}
	pub, err := parsePublicKey(publicKeyPEM)
	if err != nil {
		return nil, err
	}
	return &Resolver{publicKey: pub, issuer: issuer, audience: audience, devMode: devMode}, nil
}

// Resolve authenticates the request. It checks the Authorization header
// first, then the token query parameter (browser websocket clients cannot
// set headers on the handshake). Dev mode without a key falls back to ?user=.
func (r *Resolver) Resolve(req *http.Request) (*Identity, error) {
	token := bearerToken(req)
	if token == "" {
		token = req.URL.Query().Get("token")
	}
	if token != "" && r.publicKey != nil {
		return r.verify(token)
	}
	if r.devMode && r.publicKey == nil {
		if user := strings.TrimSpace(req.URL.Query().Get("user")); user != "" {
			return &Identity{UserID: user, Name: user}, nil
		}
	}
	return nil, ErrUnauthenticated
}

func (r *Resolver) verify(tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
			return r.publicKey, nil
		}
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
			return r.publicKey, nil
		}
		return nil, ErrUnauthenticated
	})
	if err != nil {
		return nil, ErrUnauthenticated
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrUnauthenticated
	}
	if r.issuer != "" && claims.Issuer != r.issuer {
		return nil, ErrUnauthenticated
	}
	if r.audience != "" {
		audOk := false
		for _, a := range claims.Audience {
			if a == r.audience {
				audOk = true
				break
			}
		}
		if !audOk {
			return nil, ErrUnauthenticated
		}
	}
	if claims.Subject == "" {
		return nil, ErrUnauthenticated
	}
	name := claims.Name
	if name == "" {
		name = claims.Subject
	}
	return &Identity{UserID: claims.Subject, Name: name}, nil
}

func bearerToken(req *http.Request) string {
	h := req.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// parsePublicKey parses a PEM-encoded RSA or ECDSA public key. s may be
// inline PEM or a file path.
func parsePublicKey(s string) (crypto.PublicKey, error) {
	pemBytes := []byte(s)
	if !strings.HasPrefix(s, "-----BEGIN") {
		b, err := os.ReadFile(s)
		if err != nil {
			return nil, err
		}
		pemBytes = b
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrInvalidKey
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		return x509.ParsePKIXPublicKey(block.Bytes)
	default:
		return nil, ErrInvalidKey
	}
}
