package auth

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"
)

// makeToken builds an unsigned JWT with the given claims payload. The
// signature part is garbage on purpose; parsing never verifies it.
func makeToken(t *testing.T, claims map[string]interface{}) string {
	t.Helper()

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))

	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("failed to marshal claims: %v", err)
	}

	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

func TestParseUnverified(t *testing.T) {
	now := time.Now().Unix()

	token := makeToken(t, map[string]interface{}{
		"sub":       "user-123",
		"school_id": "school-7",
		"iat":       now,
		"exp":       now + 3600,
	})

	claims, err := ParseUnverified(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if claims.Subject != "user-123" {
		t.Errorf("expected subject user-123, got %s", claims.Subject)
	}

	if claims.SchoolID != "school-7" {
		t.Errorf("expected school_id school-7, got %s", claims.SchoolID)
	}

	if claims.IsExpired() {
		t.Error("expected token to not be expired")
	}

	if claims.ExpiresIn() <= 0 {
		t.Errorf("expected positive ExpiresIn, got %v", claims.ExpiresIn())
	}
}

func TestParseUnverifiedExpired(t *testing.T) {
	token := makeToken(t, map[string]interface{}{
		"sub": "user-123",
		"exp": time.Now().Unix() - 60,
	})

	claims, err := ParseUnverified(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !claims.IsExpired() {
		t.Error("expected token to be expired")
	}
}

func TestParseUnverifiedNoExpiry(t *testing.T) {
	token := makeToken(t, map[string]interface{}{
		"sub": "user-123",
	})

	claims, err := ParseUnverified(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if claims.IsExpired() {
		t.Error("expected token without exp claim to not be expired")
	}

	if claims.ExpiresIn() != 0 {
		t.Errorf("expected zero ExpiresIn without exp claim, got %v", claims.ExpiresIn())
	}
}

func TestParseUnverifiedErrors(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "two parts", token: "a.b"},
		{name: "four parts", token: "a.b.c.d"},
		{name: "bad base64 payload", token: "a.!!!.c"},
		{name: "payload not json", token: "a." + base64.RawURLEncoding.EncodeToString([]byte("nope")) + ".c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseUnverified(tt.token); err == nil {
				t.Error("expected error but got none")
			}
		})
	}
}
