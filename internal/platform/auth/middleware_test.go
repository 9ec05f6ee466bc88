package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSecret = []byte("test-secret-key-for-unit-tests-only")

func signTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func invoke(t *testing.T, mw echo.MiddlewareFunc, authHeader string) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return c, h(c)
}

func wantStatus(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	mw := JWTMiddleware(JWTConfig{Secret: testSecret})
	_, err := invoke(t, mw, "")
	wantStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"garbage bearer", "Bearer not-a-jwt"},
	}

	mw := JWTMiddleware(JWTConfig{Secret: testSecret})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := invoke(t, mw, tt.header)
			wantStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "dispatcher-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: []string{"dispatcher"},
	}
	token := signTestToken(t, claims, testSecret)

	mw := JWTMiddleware(JWTConfig{Secret: testSecret})
	c, err := invoke(t, mw, "Bearer "+token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := c.Request().Context()
	if got := UserIDFromContext(ctx); got != "dispatcher-1" {
		t.Errorf("expected subject dispatcher-1, got %q", got)
	}
	roles := RolesFromContext(ctx)
	if len(roles) != 1 || roles[0] != "dispatcher" {
		t.Errorf("unexpected roles: %v", roles)
	}
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "dispatcher-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := signTestToken(t, claims, []byte("a-different-secret"))

	mw := JWTMiddleware(JWTConfig{Secret: testSecret})
	_, err := invoke(t, mw, "Bearer "+token)
	wantStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "dispatcher-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token := signTestToken(t, claims, testSecret)

	mw := JWTMiddleware(JWTConfig{Secret: testSecret})
	_, err := invoke(t, mw, "Bearer "+token)
	wantStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_IssuerMismatch(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "dispatcher-1",
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := signTestToken(t, claims, testSecret)

	mw := JWTMiddleware(JWTConfig{Secret: testSecret, Issuer: "ambulink"})
	_, err := invoke(t, mw, "Bearer "+token)
	wantStatus(t, err, http.StatusUnauthorized)
}

func TestDevAuthMiddleware(t *testing.T) {
	c, err := invoke(t, DevAuthMiddleware(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := UserIDFromContext(c.Request().Context()); got != "dev-user" {
		t.Errorf("expected dev-user, got %q", got)
	}
}
