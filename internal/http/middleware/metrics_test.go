package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RouteLabelsAndReplays(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newHTTPMetrics(prometheus.NewRegistry())

	r := gin.New()
	r.Use(m.handler())
	r.GET("/complaints/:id", func(c *gin.Context) { c.String(http.StatusOK, "hello") })
	r.POST("/complaints", func(c *gin.Context) {
		if c.GetHeader(HeaderIdempotencyKey) != "" {
			c.Set(ctxKeyIdemReplay, true)
		}
		c.Status(http.StatusCreated)
	})

	do := func(method, path, body string, hdr map[string]string) int {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		for k, v := range hdr {
			req.Header.Set(k, v)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	for _, p := range []string{"/complaints/a", "/complaints/b"} {
		if code := do(http.MethodGet, p, "", nil); code != http.StatusOK {
			t.Fatalf("GET %s -> %d", p, code)
		}
	}
	if code := do(http.MethodGet, "/nope", "", nil); code != http.StatusNotFound {
		t.Fatalf("GET /nope -> %d", code)
	}
	do(http.MethodPost, "/complaints", `{"title":"x"}`, nil)
	do(http.MethodPost, "/complaints", `{"title":"x"}`, map[string]string{HeaderIdempotencyKey: "k1"})

	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"ids collapse into one route", m.requests.WithLabelValues("GET", "/complaints/:id", "200"), 2},
		{"unmatched", m.requests.WithLabelValues("GET", "unmatched", "404"), 1},
		{"posts", m.requests.WithLabelValues("POST", "/complaints", "201"), 2},
		{"replays", m.replays.WithLabelValues("POST", "/complaints"), 1},
		{"inflight back to zero", m.inflight, 0},
	}
	for _, ck := range checks {
		if got := testutil.ToFloat64(ck.c); got != ck.want {
			t.Fatalf("%s = %v, want %v", ck.name, got, ck.want)
		}
	}
	if n := testutil.CollectAndCount(m.reqBytes); n == 0 {
		t.Fatalf("no request size observations")
	}
}

func TestMetrics_DefaultRegistry(t *testing.T) {
	if err := prometheus.DefaultRegisterer.Register(defaultHTTPMetrics.requests); err == nil {
		t.Fatal("default metrics should already be registered")
	}
}
