package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWithRoles(c echo.Context, roles []string) {
	ctx := context.WithValue(c.Request().Context(), UserRolesKey, roles)
	c.SetRequest(c.Request().WithContext(ctx))
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		required []string
		has      []string
		allowed  bool
	}{
		{"exact match", []string{"dispatcher"}, []string{"dispatcher"}, true},
		{"one of several", []string{"admin", "dispatcher"}, []string{"dispatcher"}, true},
		{"admin passes everything", []string{"dispatcher"}, []string{"admin"}, true},
		{"missing role", []string{"dispatcher"}, []string{"driver"}, false},
		{"no roles at all", []string{"dispatcher"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			contextWithRoles(c, tt.has)

			h := RequireRole(tt.required...)(func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			})
			err := h(c)

			if tt.allowed {
				if err != nil {
					t.Fatalf("expected access, got %v", err)
				}
				return
			}
			wantStatus(t, err, http.StatusForbidden)
		})
	}
}
