package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSignAndParse(t *testing.T) {
	a := New("secret")
	token, err := a.Sign("user-1", time.Hour)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	got, err := a.ParseToken(token)
	if err != nil || got != "user-1" {
		t.Fatalf("ParseToken() = %q, %v; want user-1", got, err)
	}
}

func TestParseToken_Rejections(t *testing.T) {
	a := New("secret")
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	expired, _ := a.Sign("user-1", time.Minute)
	a.now = func() time.Time { return now.Add(time.Hour) }

	otherKey, _ := New("other").Sign("user-1", 0)

	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"name": "x"}).SignedString([]byte("secret"))
	numericUserID, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 7}).SignedString([]byte("secret"))
	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"expired":         expired,
		"wrong key":       otherKey,
		"no subject":      noSubject,
		"numeric user_id": numericUserID,
		"alg none":        unsigned,
		"garbage":         "not-a-token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := a.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("ParseToken() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestParseToken_UserIDClaim(t *testing.T) {
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "user-9"}).SignedString([]byte("secret"))
	got, err := New("secret").ParseToken(token)
	if err != nil || got != "user-9" {
		t.Fatalf("ParseToken() = %q, %v; want user-9", got, err)
	}
}

func TestMiddleware(t *testing.T) {
	a := New("secret")
	token, _ := a.Sign("user-1", time.Hour)

	var seen string
	h := a.Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserID(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		status int
		user   string
	}{
		{"valid", "Bearer " + token, http.StatusOK, "user-1"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"no bearer prefix", token, http.StatusUnauthorized, ""},
		{"bad token", "Bearer nope", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status || seen != tt.user {
				t.Fatalf("status = %d, user = %q; want %d, %q", rec.Code, seen, tt.status, tt.user)
			}
		})
	}
}
