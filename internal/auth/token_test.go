package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestIssueAndParseToken(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, NewClaims("Avery", "editor", time.Hour))
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	claims, err := ParseToken(secret, issued)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Name != "Avery" || claims.Role != "editor" || !strings.HasPrefix(claims.JTI, "jti_") {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, NewClaims("Avery", "editor", -time.Minute))
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err := ParseToken(secret, issued); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	issued, err := IssueToken([]byte("secret"), NewClaims("Avery", "viewer", time.Hour))
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	cases := map[string]string{
		"wrong secret":   "",
		"no separator":   strings.ReplaceAll(issued, ".", ""),
		"extra segment":  issued + ".x",
		"swapped payload": func() string {
			other, _ := IssueToken([]byte("secret"), NewClaims("Avery", "editor", time.Hour))
			payload, _, _ := strings.Cut(other, ".")
			_, sig, _ := strings.Cut(issued, ".")
			return payload + "." + sig
		}(),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			secret := []byte("secret")
			if token == "" {
				token = issued
				secret = []byte("other")
			}
			if _, err := ParseToken(secret, token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestLongSecret(t *testing.T) {
	secret := []byte(strings.Repeat("k", 200))
	issued, err := IssueToken(secret, NewClaims("Avery", "editor", time.Hour))
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err := ParseToken(secret, issued); err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
}
