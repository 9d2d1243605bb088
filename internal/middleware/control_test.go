package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/onlytrade/room-server/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(h gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.GET("/protected", h, func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestControlTokenRejectsWhenNotConfigured(t *testing.T) {
	r := newRouter(middleware.ControlToken(""))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when no control token is configured, got %d", rec.Code)
	}
}

func TestControlTokenAcceptsMatchingXControlTokenHeader(t *testing.T) {
	r := newRouter(middleware.ControlToken("secret"))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-Control-Token", "secret")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with a matching token, got %d", rec.Code)
	}
}

func TestControlTokenAcceptsMatchingBearerAuthorizationHeader(t *testing.T) {
	r := newRouter(middleware.ControlToken("secret"))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with a matching bearer token, got %d", rec.Code)
	}
}

func TestControlTokenRejectsMismatchedToken(t *testing.T) {
	r := newRouter(middleware.ControlToken("secret"))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-Control-Token", "wrong")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with a mismatched token, got %d", rec.Code)
	}
}

func TestChatRateLimitAllowsBurstThenRejects(t *testing.T) {
	r := gin.New()
	r.GET("/chat", middleware.ChatRateLimit(60, 2), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/chat", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected request %d within burst to succeed, got %d", i, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected the request past the burst to be rate limited, got %d", rec.Code)
	}
}

func TestChatRateLimitTracksClientsIndependently(t *testing.T) {
	r := gin.New()
	r.GET("/chat", middleware.ChatRateLimit(60, 1), func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, ip := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
		req := httptest.NewRequest(http.MethodGet, "/chat", nil)
		req.RemoteAddr = ip
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("expected a fresh client %s to get its own burst allowance, got %d", ip, rec.Code)
		}
	}
}
