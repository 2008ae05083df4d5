package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	verifier := NewVerifier("test-secret")

	token, err := issuer.Issue(Identity{UserID: "u1", Username: "Alice", IsAdmin: true})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	id, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.UserID != "u1" || id.Username != "Alice" || !id.IsAdmin {
		t.Fatalf("unexpected identity: %#v", id)
	}
}

func TestVerifyMissingToken(t *testing.T) {
	verifier := NewVerifier("test-secret")
	for _, token := range []string{"", "   "} {
		if _, err := verifier.Verify(token); !errors.Is(err, ErrMissingToken) {
			t.Fatalf("token %q: got %v, want ErrMissingToken", token, err)
		}
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer := NewIssuer("secret-a", time.Hour)
	verifier := NewVerifier("secret-b")

	token, err := issuer.Issue(Identity{UserID: "u1", Username: "Alice"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	verifier := NewVerifier("test-secret")
	if _, err := verifier.Verify("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	now := time.Now()
	claims := Claims{
		UserID:   "u1",
		Username: "Alice",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := NewVerifier("test-secret").Verify(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("got %v, want ErrExpiredToken", err)
	}
}

func TestVerifyRejectsUnsignedToken(t *testing.T) {
	claims := Claims{UserID: "u1", Username: "Alice"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := NewVerifier("test-secret").Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsEmptyUserID(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Username: "ghost"}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewVerifier("test-secret").Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestVerifyUsernameFallsBackToUserID(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "u1"}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	id, err := NewVerifier("test-secret").Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.Username != "u1" {
		t.Fatalf("username %q, want fallback to user id", id.Username)
	}
}
