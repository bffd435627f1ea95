package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key"

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}

func generateRSAKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("failed to marshal public key: %v", err)
	}
	return key, string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":    "ops-1",
		"roles":  []string{RoleViewer},
		"scopes": []string{ScopeRead},
		"exp":    time.Now().Add(time.Hour).Unix(),
	}
}

func TestNewVerifier(t *testing.T) {
	_, pubPEM := generateRSAKey(t)

	tests := []struct {
		name    string
		config  VerifierConfig
		wantErr bool
	}{
		{"HS256", VerifierConfig{Algorithm: AlgHS256, SecretKey: testSecret}, false},
		{"HS256 without secret", VerifierConfig{Algorithm: AlgHS256}, true},
		{"RS256 with PEM", VerifierConfig{Algorithm: AlgRS256, PublicKeyPEM: pubPEM}, false},
		{"RS256 with garbage PEM", VerifierConfig{Algorithm: AlgRS256, PublicKeyPEM: "not a key"}, true},
		{"unsupported algorithm", VerifierConfig{Algorithm: "ES256"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewVerifier(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewVerifier() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && v == nil {
				t.Fatal("NewVerifier() returned nil verifier")
			}
		})
	}
}

func TestVerifyHS256Token(t *testing.T) {
	v, err := NewVerifier(VerifierConfig{Algorithm: AlgHS256, SecretKey: testSecret})
	if err != nil {
		t.Fatal(err)
	}

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	noSub := validClaims()
	delete(noSub, "sub")
	noScopes := validClaims()
	delete(noScopes, "scopes")
	badRole := validClaims()
	badRole["roles"] = []string{"admin"}

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid", signHS256(t, testSecret, validClaims()), false},
		{"wrong secret", signHS256(t, "other", validClaims()), true},
		{"expired", signHS256(t, testSecret, expired), true},
		{"missing sub", signHS256(t, testSecret, noSub), true},
		{"missing scopes", signHS256(t, testSecret, noScopes), true},
		{"unknown role", signHS256(t, testSecret, badRole), true},
		{"empty", "", true},
		{"garbage", "a.b.c", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.VerifyToken(tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("VerifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidToken) {
					t.Errorf("error %v does not wrap ErrInvalidToken", err)
				}
				return
			}
			if claims.Subject != "ops-1" {
				t.Errorf("Subject = %q, want ops-1", claims.Subject)
			}
			if !HasScopes(claims, ScopeRead) {
				t.Errorf("Scopes = %v, want read", claims.Scopes)
			}
		})
	}
}

func TestVerifyRS256Token(t *testing.T) {
	key, pubPEM := generateRSAKey(t)
	v, err := NewVerifier(VerifierConfig{Algorithm: AlgRS256, PublicKeyPEM: pubPEM})
	if err != nil {
		t.Fatal(err)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims()).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := v.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if claims.Subject != "ops-1" {
		t.Errorf("Subject = %q, want ops-1", claims.Subject)
	}

	// An HS256 token must not pass an RS256 verifier.
	if _, err := v.VerifyToken(signHS256(t, testSecret, validClaims())); err == nil {
		t.Error("expected algorithm mismatch to fail")
	}
}
