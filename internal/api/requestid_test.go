package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRequestIDMiddleware_GeneratesWhenAbsent(t *testing.T) {
	r := newTestRouter("")
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get(requestIDHeader) == "" {
		t.Error("expected a generated X-Request-Id header")
	}
}

func TestRequestIDMiddleware_EchoesIncoming(t *testing.T) {
	r := newTestRouter("")
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "fixed-id-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get(requestIDHeader); got != "fixed-id-123" {
		t.Errorf("X-Request-Id = %q, want fixed-id-123", got)
	}
}
