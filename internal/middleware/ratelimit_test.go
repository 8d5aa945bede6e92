package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-lot-reservation/internal/config"
)

func newLimiterCtx(userID interface{}) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/lots/1/allocate", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/lots/:id/allocate")
	if userID != nil {
		c.Set("user_id", userID)
	}
	return c
}

func TestCurrentUserIDNormalizesClaimTypes(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"float64 claim from JSON decoding", float64(7), "7"},
		{"uint64", uint64(7), "7"},
		{"int64", int64(7), "7"},
		{"int", 7, "7"},
		{"string", "7", "7"},
		{"unset", nil, "anon"},
		{"empty string", "", "anon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := currentUserID(newLimiterCtx(tt.value)); got != tt.want {
				t.Errorf("currentUserID(%#v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestBuildRateKeyUserStrategyDiscriminates(t *testing.T) {
	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}

	// The key must carry the authenticated identity, not a shared bucket.
	k7 := buildRateKey(cfg, newLimiterCtx(float64(7)))
	k8 := buildRateKey(cfg, newLimiterCtx(float64(8)))
	if k7 == k8 {
		t.Errorf("two users share one bucket: %q", k7)
	}
	if !strings.Contains(k7, "user:7") {
		t.Errorf("key %q does not carry user id 7", k7)
	}
	if strings.Contains(k7, "anon") {
		t.Errorf("authenticated request keyed as anon: %q", k7)
	}

	anon := buildRateKey(cfg, newLimiterCtx(nil))
	if !strings.Contains(anon, "anon") {
		t.Errorf("unauthenticated key = %q, want anon bucket", anon)
	}
}

func TestDisabledLimiterIsPassThrough(t *testing.T) {
	mw := NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil)
	e := echo.New()
	e.GET("/v1/lots", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, mw)

	req := httptest.NewRequest(http.MethodGet, "/v1/lots", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "" {
		t.Error("disabled limiter set rate-limit headers")
	}
}
