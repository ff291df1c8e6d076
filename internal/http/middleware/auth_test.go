package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"detailhub/internal/domain"
)

func sign(t *testing.T, key []byte, method jwt.SigningMethod, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func claims(sub, role string, exp time.Duration) Claims {
	return Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(exp)),
		},
	}
}

func TestParseToken(t *testing.T) {
	key := []byte("k")
	a, err := ParseToken(key, sign(t, key, jwt.SigningMethodHS256, claims("prov-1", "provider", time.Hour)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.ID != "prov-1" || a.Role != domain.RoleProvider {
		t.Fatalf("actor = %+v", a)
	}

	bad := []struct {
		name  string
		token string
	}{
		{"expired", sign(t, key, jwt.SigningMethodHS256, claims("prov-1", "provider", -time.Hour))},
		{"system role", sign(t, key, jwt.SigningMethodHS256, claims("x", "system", time.Hour))},
		{"no subject", sign(t, key, jwt.SigningMethodHS256, claims("", "customer", time.Hour))},
		{"wrong key", sign(t, []byte("other"), jwt.SigningMethodHS256, claims("c", "customer", time.Hour))},
		{"wrong alg", sign(t, key, jwt.SigningMethodHS512, claims("c", "customer", time.Hour))},
	}
	for _, tc := range bad {
		if _, err := ParseToken(key, tc.token); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestRequestID_PropagatesToContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = GetRequestID(c)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if seen != "req-123" || w.Header().Get("X-Request-ID") != "req-123" {
		t.Fatalf("request id = %q / %q", seen, w.Header().Get("X-Request-ID"))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(w.Header().Get("X-Request-ID")) != 36 {
		t.Fatalf("expected generated uuid, got %q", w.Header().Get("X-Request-ID"))
	}
}
