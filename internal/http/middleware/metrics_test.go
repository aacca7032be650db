package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountersInflightAndPathFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/requests/:protocol", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.POST("/admin/requests/:id/start", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	baseOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/requests/:protocol", "200"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/missing", "404"))
	base204 := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/admin/requests/:id/start", "204"))

	for _, tc := range []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/requests/ESIC-2024-000001", http.StatusOK},
		{http.MethodGet, "/requests/ESIC-2024-000002", http.StatusOK},
		{http.MethodGet, "/missing", http.StatusNotFound},
		{http.MethodPost, "/admin/requests/abc/start", http.StatusNoContent},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		if w.Code != tc.want {
			t.Fatalf("%s %s -> %d", tc.method, tc.path, w.Code)
		}
	}

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/requests/:protocol", "200")); got != baseOK+2 {
		t.Fatalf("route counter = %v, want %v", got, baseOK+2)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/missing", "404")); got != base404+1 {
		t.Fatalf("fallback counter = %v, want %v", got, base404+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/admin/requests/:id/start", "204")); got != base204+1 {
		t.Fatalf("204 counter = %v, want %v", got, base204+1)
	}
	if v := testutil.ToFloat64(httpInflight); v != 0 {
		t.Fatalf("inflight = %v, want 0", v)
	}
}

func TestMetrics_CountsReplays(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.Use(func(c *gin.Context) {
		if c.GetHeader("X-Replay") != "" {
			c.Set(ctxKeyIdemReplay, true)
		}
		c.Next()
	})
	r.POST("/requests", func(c *gin.Context) { c.Status(http.StatusCreated) })

	base := testutil.ToFloat64(httpReplays.WithLabelValues("/requests"))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/requests", nil))
	req := httptest.NewRequest(http.MethodPost, "/requests", nil)
	req.Header.Set("X-Replay", "1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if got := testutil.ToFloat64(httpReplays.WithLabelValues("/requests")); got != base+1 {
		t.Fatalf("replays = %v, want %v", got, base+1)
	}
}
