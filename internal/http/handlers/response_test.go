package handlers

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
)

func envelopeRouter(logs *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	logger := zerolog.New(logs)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-1")
		c.Set("logger", &logger)
		c.Next()
	})
	return r
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v (%s)", err, w.Body.String())
	}
	return resp
}

func TestFail_EnvelopeAndLogging(t *testing.T) {
	cases := []struct {
		status  int
		code    string
		logged  bool
		handler func(*gin.Context)
	}{
		{http.StatusInternalServerError, ErrCodeInternal, true, func(c *gin.Context) {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "database unavailable")
		}},
		{http.StatusNotFound, ErrCodeNotFound, false, func(c *gin.Context) {
			Fail(c, http.StatusNotFound, ErrCodeNotFound, "complaint not found")
		}},
		{http.StatusBadGateway, ErrCodeChatFailed, true, func(c *gin.Context) {
			failWith(c, http.StatusBadGateway, ErrorResponse{Code: ErrCodeChatFailed, Message: "assistant down", Response: "Try later."})
		}},
	}
	for _, tc := range cases {
		var logs bytes.Buffer
		r := envelopeRouter(&logs)
		r.GET("/x", tc.handler)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		if w.Code != tc.status {
			t.Fatalf("%s: status=%d", tc.code, w.Code)
		}
		resp := decodeEnvelope(t, w)
		if resp.RequestID != "rid-1" || resp.Code != tc.code || resp.Message == "" {
			t.Fatalf("%s: body=%+v", tc.code, resp)
		}
		if got := strings.Contains(logs.String(), `"level":"error"`); got != tc.logged {
			t.Fatalf("%s: logged=%v; want %v (%s)", tc.code, got, tc.logged, logs.String())
		}
		if tc.code == ErrCodeChatFailed && resp.Response != "Try later." {
			t.Fatalf("fallback response lost: %+v", resp)
		}
	}
}

func TestFailValidation(t *testing.T) {
	var logs bytes.Buffer
	r := envelopeRouter(&logs)
	r.POST("/bind", func(c *gin.Context) {
		var body struct {
			Title string `json:"title" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			failValidation(c, err)
			return
		}
		ok(c, http.StatusCreated, body)
	})
	r.GET("/raw", func(c *gin.Context) { failValidation(c, errors.New("eof")) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/bind", strings.NewReader(`{}`)))
	resp := decodeEnvelope(t, w)
	if w.Code != http.StatusBadRequest || resp.Code != ErrCodeValidation || len(resp.Details) != 1 {
		t.Fatalf("status=%d body=%+v", w.Code, resp)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/raw", nil))
	if resp := decodeEnvelope(t, w); resp.Code != ErrCodeBadRequest {
		t.Fatalf("non-validator error body=%+v", resp)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/bind", strings.NewReader(`{"title":"x"}`)))
	if w.Code != http.StatusCreated {
		t.Fatalf("ok status=%d", w.Code)
	}
}

func TestNoContent(t *testing.T) {
	r := envelopeRouter(&bytes.Buffer{})
	r.DELETE("/gone", noContent)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/gone", nil))
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
}
