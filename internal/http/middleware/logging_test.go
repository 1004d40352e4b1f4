package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

// logLines decodes the JSON log lines written so far.
func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/rid", func(c *gin.Context) {
		if c.GetString(requestIDKey) == "" {
			t.Fatalf("request id missing from context")
		}
		c.Status(http.StatusNoContent)
	})

	cases := []struct {
		in    string
		reuse bool
	}{
		{"", false},
		{"abc-123", true},
		{"Z-REQ-123", true},
		{"has space", false},
		{strings.Repeat("x", maxRequestIDLen+1), false},
		{"tab\tid", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/rid", nil)
		if tc.in != "" {
			req.Header.Set(strings.ToLower(requestIDHeader), tc.in)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		got := w.Header().Get(requestIDHeader)
		if got == "" {
			t.Fatalf("%q: no request id in response", tc.in)
		}
		if (got == tc.in) != tc.reuse {
			t.Fatalf("%q: response id %q, reuse=%v", tc.in, got, tc.reuse)
		}
	}
}

func TestLogger_LevelsAndFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger())
	r.Use(func(c *gin.Context) { c.Set("userID", "u7"); c.Next() })
	r.GET("/complaints/:id", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("handler")
		c.Status(http.StatusOK)
	})
	r.GET("/complaints/:id/attachments/:attachmentId", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
		c.Status(http.StatusBadRequest)
	})

	for _, p := range []string{"/complaints/c-1", "/complaints/c-1/attachments/a-9", "/missing", "/fail"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p+"?q=1", nil))
	}

	var access []map[string]any
	var handler map[string]any
	for _, m := range logLines(t, buf) {
		switch m["message"] {
		case "request":
			access = append(access, m)
		case "handler":
			handler = m
		}
	}
	if len(access) != 4 {
		t.Fatalf("access lines = %d", len(access))
	}
	if handler == nil || handler["complaint_id"] != "c-1" || handler["user_id"] != "u7" || handler["request_id"] == "" {
		t.Fatalf("request-scoped handler log = %v", handler)
	}

	want := []struct {
		level, path string
	}{
		{"info", "/complaints/:id"},
		{"info", "/complaints/:id/attachments/:attachmentId"},
		{"warn", "/missing"},
		{"error", "/fail"},
	}
	for i, w := range want {
		m := access[i]
		if m["level"] != w.level || m["path"] != w.path || m["query"] != "q=1" {
			t.Fatalf("line %d = %v; want level %s path %s", i, m, w.level, w.path)
		}
	}
	if access[1]["attachment_id"] != "a-9" || access[0]["user_id"] != "u7" {
		t.Fatalf("route params or caller missing: %v %v", access[0], access[1])
	}
	if access[3]["errors"] == nil {
		t.Fatalf("gin errors not logged: %v", access[3])
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger(), Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })
	r.GET("/late", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("late")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set(requestIDHeader, "rid-p")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body["code"] != "internal_error" || body["request_id"] != "rid-p" {
		t.Fatalf("body = %v", body)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/late", nil))
	if strings.Contains(w.Body.String(), "internal_error") {
		t.Fatalf("envelope written after partial response: %q", w.Body.String())
	}

	if n := strings.Count(buf.String(), "panic recovered"); n != 2 {
		t.Fatalf("panic logs = %d:\n%s", n, buf.String())
	}
}

func TestLoggerFrom_WithoutLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID())
	r.GET("/use", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("custom")
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/use", nil))

	lines := logLines(t, buf)
	if len(lines) != 1 || lines[0]["message"] != "custom" {
		t.Fatalf("lines = %v", lines)
	}
	if _, ok := lines[0]["request_id"]; ok {
		t.Fatalf("global logger carried request fields: %v", lines[0])
	}
}

func TestRouteParamFieldAndTruncate(t *testing.T) {
	cases := map[[2]string]string{
		{"/api/v1/complaints/:id", "id"}:                                     "complaint_id",
		{"/api/v1/chatbot/conversation/:id/end", "id"}:                       "conversation_id",
		{"/api/v1/complaints/:id/attachments/:attachmentId", "attachmentId"}: "attachment_id",
		{"/other/:id", "id"}:                                                 "param_id",
	}
	for in, want := range cases {
		if got := routeParamField(in[0], in[1]); got != want {
			t.Fatalf("routeParamField(%q, %q) = %q; want %q", in[0], in[1], got, want)
		}
	}

	if truncate("hello", 10) != "hello" || truncate("abc", 0) != "abc" {
		t.Fatalf("truncate changed a short value")
	}
	if got := truncate("abcdefgh", 5); got != "abcde…" {
		t.Fatalf("truncate = %q", got)
	}
}

func TestAccessLevel(t *testing.T) {
	cases := []struct {
		status int
		errs   bool
		want   zerolog.Level
	}{
		{200, false, zerolog.InfoLevel},
		{304, false, zerolog.InfoLevel},
		{404, false, zerolog.WarnLevel},
		{200, true, zerolog.ErrorLevel},
		{503, false, zerolog.ErrorLevel},
	}
	for _, tc := range cases {
		if got := accessLevel(tc.status, tc.errs); got != tc.want {
			t.Fatalf("accessLevel(%d, %v) = %v", tc.status, tc.errs, got)
		}
	}
}
