package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Supported signing algorithms.
const (
	AlgHS256 = "HS256"
	AlgRS256 = "RS256"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// VerifierConfig holds configuration for JWT verification.
type VerifierConfig struct {
	Algorithm    string // "HS256" or "RS256"
	SecretKey    string // HS256
	PublicKeyPEM string // RS256, PKIX
}

// tokenClaims is the wire shape of a hub token.
type tokenClaims struct {
	Roles  []string `json:"roles"`
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

// Verifier checks token signatures and extracts claims.
type Verifier struct {
	alg       string
	secret    []byte
	publicKey *rsa.PublicKey
}

// NewVerifier creates a verifier for cfg.Algorithm.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	v := &Verifier{alg: cfg.Algorithm}

	switch cfg.Algorithm {
	case AlgHS256:
		if cfg.SecretKey == "" {
			return nil, fmt.Errorf("HS256 requires secret key")
		}
		v.secret = []byte(cfg.SecretKey)
	case AlgRS256:
		key, err := parsePublicKeyPEM(cfg.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to load public key from PEM: %w", err)
		}
		v.publicKey = key
	default:
		return nil, fmt.Errorf("unsupported algorithm: %q", cfg.Algorithm)
	}

	return v, nil
}

// VerifyToken verifies tokenString and returns its claims.
func (v *Verifier) VerifyToken(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	var tc tokenClaims
	_, err := jwt.ParseWithClaims(tokenString, &tc, v.key, jwt.WithValidMethods([]string{v.alg}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if tc.Subject == "" {
		return nil, fmt.Errorf("%w: missing 'sub' claim", ErrInvalidToken)
	}
	if len(tc.Scopes) == 0 {
		return nil, fmt.Errorf("%w: missing 'scopes' claim", ErrInvalidToken)
	}
	for _, role := range tc.Roles {
		if !validRoles[role] {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, role)
		}
	}

	return &Claims{
		Subject: tc.Subject,
		Roles:   tc.Roles,
		Scopes:  tc.Scopes,
	}, nil
}

func (v *Verifier) key(*jwt.Token) (interface{}, error) {
	if v.alg == AlgRS256 {
		return v.publicKey, nil
	}
	return v.secret, nil
}

func parsePublicKeyPEM(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA public key")
	}
	return rsaPub, nil
}
