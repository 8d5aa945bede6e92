package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-lot-reservation/internal/config"
)

func TestEncodeDecodePayload(t *testing.T) {
	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")
	body := []byte(`{"items":[]}`)

	bs, err := encodePayload(http.StatusOK, hdr, body)
	if err != nil {
		t.Fatalf("encodePayload: %v", err)
	}
	status, gotHdr, gotBody, ok := decodePayload(bs)
	if !ok {
		t.Fatal("decodePayload rejected a valid payload")
	}
	if status != http.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}
	if gotHdr.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", gotHdr.Get("Content-Type"))
	}
	if !bytes.Equal(gotBody, body) {
		t.Errorf("body = %q, want %q", gotBody, body)
	}
}

func TestDecodePayloadRejectsTruncated(t *testing.T) {
	for _, bs := range [][]byte{nil, {1, 2, 3}, make([]byte, 7)} {
		if _, _, _, ok := decodePayload(bs); ok {
			t.Errorf("decodePayload accepted %d-byte input", len(bs))
		}
	}
	// Header length pointing past the buffer.
	bs := make([]byte, 12)
	bs[7] = 200
	if _, _, _, ok := decodePayload(bs); ok {
		t.Error("decodePayload accepted out-of-range header length")
	}
}

func TestCaptureWriterWithinLimit(t *testing.T) {
	cw := &captureWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK, limit: 64}
	body := []byte(`{"items":[1,2,3]}`)
	if _, err := cw.Write(body); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if cw.overflowed {
		t.Error("body within limit marked as overflowed")
	}
	if !bytes.Equal(cw.buf.Bytes(), body) {
		t.Errorf("captured %q, want %q", cw.buf.Bytes(), body)
	}
}

func TestCaptureWriterOversizedBodyNotCacheable(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 10}

	payload := bytes.Repeat([]byte("x"), 20)
	n, err := cw.Write(payload)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	// The client still gets the full body.
	if n != 20 || rec.Body.Len() != 20 {
		t.Errorf("client received %d bytes, want 20", rec.Body.Len())
	}
	// The capture is incomplete and must be flagged so it is never stored.
	if !cw.overflowed {
		t.Fatal("oversized body not marked as overflowed; a truncated capture would be cached")
	}

	// The same holds when the limit is crossed across multiple writes.
	cw = &captureWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK, limit: 10}
	for i := 0; i < 4; i++ {
		if _, err := cw.Write([]byte("xxxxx")); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if !cw.overflowed {
		t.Error("chunked oversized body not marked as overflowed")
	}
}

func TestCacheKeyFromStrategies(t *testing.T) {
	newCtx := func(target string) echo.Context {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, target, nil)
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetPath("/v1/lots/:id")
		return c
	}
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}

	k1 := cacheKeyFrom(cfg, newCtx("/v1/lots/1?x=1"))
	k2 := cacheKeyFrom(cfg, newCtx("/v1/lots/1?x=1"))
	k3 := cacheKeyFrom(cfg, newCtx("/v1/lots/1?x=2"))
	if k1 != k2 {
		t.Error("same request produced different cache keys")
	}
	if k1 == k3 {
		t.Error("different query strings share one cache key under route_query")
	}

	cfg.KeyStrategy = "route"
	k4 := cacheKeyFrom(cfg, newCtx("/v1/lots/1?x=1"))
	k5 := cacheKeyFrom(cfg, newCtx("/v1/lots/1?x=2"))
	if k4 != k5 {
		t.Error("query string altered cache key under route strategy")
	}
}

func TestDisabledCacheIsPassThrough(t *testing.T) {
	mw := NewRedisCache(config.CacheConfig{Enabled: false}, nil)
	e := echo.New()
	e.GET("/v1/lots", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, mw)

	req := httptest.NewRequest(http.MethodGet, "/v1/lots", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("pass-through response = %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Cache") != "" {
		t.Error("disabled cache set X-Cache header")
	}
}
