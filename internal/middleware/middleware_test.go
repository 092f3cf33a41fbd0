package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xelth-com/loomtrace/internal/audit"
	"github.com/xelth-com/loomtrace/internal/testutil"
)

func echoActor() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Actor", audit.ActorFrom(r.Context()))
		w.Header().Set("X-Seen-Request", audit.RequestIDFrom(r.Context()))
	})
}

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestAuthAttachesActor(t *testing.T) {
	const secret = "test-secret-key-12345"
	h := Auth(secret)(echoActor())

	tests := []struct {
		name   string
		header string
		status int
		actor  string
	}{
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"bad signature", "Bearer " + sign(t, "other", jwt.MapClaims{"email": "qa@plant.local"}), http.StatusUnauthorized, ""},
		{"expired", "Bearer " + sign(t, secret, jwt.MapClaims{"email": "qa@plant.local", "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized, ""},
		{"email claim", "Bearer " + sign(t, secret, jwt.MapClaims{"email": "qa@plant.local", "exp": time.Now().Add(time.Hour).Unix()}), http.StatusOK, "qa@plant.local"},
		{"no identity", "Bearer " + sign(t, secret, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}), http.StatusOK, audit.SystemActor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/batches", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.actor != "" && rec.Header().Get("X-Actor") != tt.actor {
				t.Errorf("actor = %q, want %q", rec.Header().Get("X-Actor"), tt.actor)
			}
		})
	}
}

func TestAuthDisabledWithoutSecret(t *testing.T) {
	rec := httptest.NewRecorder()
	Auth("")(echoActor()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/batches", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("X-Actor") != audit.SystemActor {
		t.Errorf("got %d actor %q", rec.Code, rec.Header().Get("X-Actor"))
	}
}

func TestRequestLoggerPropagatesID(t *testing.T) {
	h := RequestLogger(testutil.Logger())(echoActor())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	id := rec.Header().Get(RequestIDHeader)
	if id == "" || rec.Header().Get("X-Seen-Request") != id {
		t.Errorf("generated id %q not propagated (%q)", id, rec.Header().Get("X-Seen-Request"))
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get(RequestIDHeader) != "abc-123" || rec.Header().Get("X-Seen-Request") != "abc-123" {
		t.Errorf("incoming id not kept")
	}
}
