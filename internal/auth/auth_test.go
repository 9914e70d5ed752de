package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/colorpipe/colorpipe/internal/apperror"
)

func TestClaims_IsAdmin(t *testing.T) {
	tests := []struct {
		name   string
		groups []string
		want   bool
	}{
		{"admin group", []string{"admins"}, true},
		{"admin among others", []string{"users", "admins"}, true},
		{"no groups", nil, false},
		{"other groups only", []string{"users"}, false},
		{"case sensitive", []string{"Admins"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Claims{Groups: tt.groups}
			if got := c.IsAdmin(); got != tt.want {
				t.Errorf("IsAdmin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClaimsContext(t *testing.T) {
	claims := &Claims{Subject: "user-1"}
	ctx := WithClaims(context.Background(), claims)

	got, ok := ClaimsFromContext(ctx)
	if !ok {
		t.Fatal("ClaimsFromContext() should find claims")
	}
	if got.Subject != "user-1" {
		t.Errorf("Subject = %q, want %q", got.Subject, "user-1")
	}

	if _, ok := ClaimsFromContext(context.Background()); ok {
		t.Error("ClaimsFromContext() on empty context should report false")
	}
}

func TestStaticVerifier(t *testing.T) {
	v := NewStaticVerifier().Add("good-token", &Claims{Subject: "user-1"})

	claims, err := v.Verify(context.Background(), "good-token")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("Subject = %q", claims.Subject)
	}

	_, err = v.Verify(context.Background(), "bad-token")
	if !apperror.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("Verify() error = %v, want unauthenticated", err)
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"subject": claims.Subject})
	})
}

func TestMiddleware(t *testing.T) {
	verifier := NewStaticVerifier().Add("valid", &Claims{
		Subject:   "user-1",
		Username:  "alice",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	handler := Middleware(verifier)(okHandler())

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid token", "Bearer valid", http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"lowercase bearer", "bearer valid", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			if tt.wantStatus == http.StatusUnauthorized {
				var body map[string]any
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("decode error body: %v", err)
				}
				// One opaque code for every failure mode.
				if body["code"] != "unauthenticated" {
					t.Errorf("code = %v, want unauthenticated", body["code"])
				}
			}
		})
	}
}

func TestMiddleware_AttachesClaims(t *testing.T) {
	verifier := NewStaticVerifier().Add("valid", &Claims{Subject: "user-42"})
	handler := Middleware(verifier)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer valid")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["subject"] != "user-42" {
		t.Errorf("subject = %q, want user-42", body["subject"])
	}
}
