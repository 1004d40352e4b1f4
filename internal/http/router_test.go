package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-complaint-desk/internal/auth"
	"github.com/tbourn/go-complaint-desk/internal/config"
	"github.com/tbourn/go-complaint-desk/internal/domain"
	"github.com/tbourn/go-complaint-desk/internal/http/middleware"
	"github.com/tbourn/go-complaint-desk/internal/repo"
	"github.com/tbourn/go-complaint-desk/internal/repo/repotest"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return repotest.Migrated(t, repo.AutoMigrate)
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:    "/api/v1",
		RateRPS:        100,
		RateBurst:      50,
		IdempotencyTTL: time.Hour,
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
		Upload:         config.UploadConfig{MaxBodyBytes: 1 << 20, MaxAttachments: 3, MaxAttachmentBytes: 1 << 10},
	}
}

func send(r http.Handler, method, target, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), Deps{}, testConfig())

	w := send(r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	w = send(r, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	if w := send(r, http.MethodGet, "/nope", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}
	if w := send(r, http.MethodPost, "/health", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	RegisterRoutes(r, newTestDB(t), Deps{}, cfg)

	w := send(r, http.MethodGet, "/health", "", map[string]string{"Origin": "http://example.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func TestComplaintFlow_EndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), Deps{}, testConfig())

	user := map[string]string{"X-User-ID": "alice", middleware.HeaderIdempotencyKey: "submit-1"}
	body := `{"title":"Broken streetlight","category":"infrastructure","priority":"high","description":"Out for a week","location":"Elm St"}`

	w := send(r, http.MethodPost, "/api/v1/complaints", body, user)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", w.Code, w.Body.String())
	}
	var first domain.Complaint
	if err := json.Unmarshal(w.Body.Bytes(), &first); err != nil {
		t.Fatalf("json: %v", err)
	}
	if first.Status != domain.StatusPending || first.Category != domain.CategoryInfrastructure {
		t.Fatalf("created=%+v", first)
	}

	// retry with the same key returns the same complaint
	w = send(r, http.MethodPost, "/api/v1/complaints", body, user)
	if w.Code != http.StatusCreated || w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("replay status=%d hdr=%q", w.Code, w.Header().Get("Idempotency-Replayed"))
	}
	var again domain.Complaint
	_ = json.Unmarshal(w.Body.Bytes(), &again)
	if again.ID != first.ID {
		t.Fatalf("replay produced a new complaint: %s vs %s", again.ID, first.ID)
	}

	// the same key from another user is independent
	w = send(r, http.MethodPost, "/api/v1/complaints", body, map[string]string{"X-User-ID": "bob", middleware.HeaderIdempotencyKey: "submit-1"})
	if w.Code != http.StatusCreated || w.Header().Get("Idempotency-Replayed") != "" {
		t.Fatalf("bob create status=%d", w.Code)
	}

	alice := map[string]string{"X-User-ID": "alice"}
	w = send(r, http.MethodGet, "/api/v1/complaints?status=pending", "", alice)
	if w.Code != http.StatusOK {
		t.Fatalf("list status=%d", w.Code)
	}
	var list struct {
		Complaints []domain.Complaint `json:"complaints"`
		Pagination domain.Pagination  `json:"pagination"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Complaints) != 1 || list.Pagination.Total != 1 {
		t.Fatalf("alice should see exactly one complaint: %+v", list)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}
	withETag := map[string]string{"X-User-ID": "alice", "If-None-Match": etag}
	if w := send(r, http.MethodGet, "/api/v1/complaints?status=pending", "", withETag); w.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", w.Code)
	}

	w = send(r, http.MethodPatch, "/api/v1/complaints/"+first.ID, `{"status":"resolved"}`, alice)
	if w.Code != http.StatusOK {
		t.Fatalf("resolve status=%d body=%s", w.Code, w.Body.String())
	}
	w = send(r, http.MethodPatch, "/api/v1/complaints/"+first.ID, `{"status":"pending"}`, alice)
	if w.Code != http.StatusConflict {
		t.Fatalf("reopen resolved expected 409, got %d", w.Code)
	}

	w = send(r, http.MethodGet, "/api/v1/complaints/stats", "", alice)
	var st domain.Stats
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if st.Total != 1 || st.Resolved != 1 {
		t.Fatalf("stats=%+v", st)
	}

	// bob cannot see alice's complaint
	if w := send(r, http.MethodGet, "/api/v1/complaints/"+first.ID, "", map[string]string{"X-User-ID": "bob"}); w.Code != http.StatusNotFound {
		t.Fatalf("cross-user get expected 404, got %d", w.Code)
	}

	if w := send(r, http.MethodDelete, "/api/v1/complaints/"+first.ID, "", alice); w.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", w.Code)
	}
	if w := send(r, http.MethodGet, "/api/v1/complaints/"+first.ID, "", alice); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete expected 404, got %d", w.Code)
	}
}

func TestChatbotFlow_EndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), Deps{}, testConfig())
	u := map[string]string{"X-User-ID": "carol"}

	w := send(r, http.MethodPost, "/api/v1/chatbot/message", `{"message":"hello"}`, u)
	if w.Code != http.StatusOK {
		t.Fatalf("message status=%d body=%s", w.Code, w.Body.String())
	}
	var reply struct {
		Message        string `json:"message"`
		ConversationID string `json:"conversationId"`
		MessageID      string `json:"messageId"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &reply)
	if reply.Message == "" || reply.ConversationID == "" || reply.MessageID == "" {
		t.Fatalf("reply=%+v", reply)
	}

	w = send(r, http.MethodGet, "/api/v1/chatbot/conversation/"+reply.ConversationID, "", u)
	if w.Code != http.StatusOK {
		t.Fatalf("history status=%d", w.Code)
	}
	var hist struct {
		History []domain.ChatMessage `json:"history"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &hist)
	if len(hist.History) != 2 || hist.History[0].Sender != domain.SenderUser || hist.History[1].Sender != domain.SenderBot {
		t.Fatalf("history=%+v", hist.History)
	}

	fb := fmt.Sprintf(`{"conversationId":%q,"messageId":%q,"rating":1}`, reply.ConversationID, reply.MessageID)
	if w := send(r, http.MethodPost, "/api/v1/chatbot/feedback", fb, u); w.Code != http.StatusCreated {
		t.Fatalf("feedback status=%d body=%s", w.Code, w.Body.String())
	}
	if w := send(r, http.MethodPost, "/api/v1/chatbot/feedback", fb, u); w.Code != http.StatusConflict {
		t.Fatalf("duplicate feedback expected 409, got %d", w.Code)
	}

	if w := send(r, http.MethodPost, "/api/v1/chatbot/conversation/"+reply.ConversationID+"/end", "", u); w.Code != http.StatusOK {
		t.Fatalf("end status=%d", w.Code)
	}
	msg := fmt.Sprintf(`{"message":"still there?","conversationId":%q}`, reply.ConversationID)
	w = send(r, http.MethodPost, "/api/v1/chatbot/message", msg, u)
	if w.Code != http.StatusConflict {
		t.Fatalf("message on ended conversation expected 409, got %d", w.Code)
	}

	if w := send(r, http.MethodGet, "/api/v1/chatbot/capabilities", "", u); w.Code != http.StatusOK {
		t.Fatalf("capabilities status=%d", w.Code)
	}
	if w := send(r, http.MethodGet, "/api/v1/chatbot/metrics", "", u); w.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", w.Code)
	}
}

func TestRegisterRoutes_AuthGuardsAPIOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	tm := auth.NewTokenManager("test-secret", "complaint-desk", time.Hour)
	RegisterRoutes(r, newTestDB(t), Deps{Tokens: tm}, testConfig())

	if w := send(r, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Fatalf("health must stay public, got %d", w.Code)
	}
	if w := send(r, http.MethodGet, "/api/v1/complaints", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	tok, _, err := tm.Issue("dave")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	// X-User-ID cannot override the token subject
	hdr := map[string]string{"Authorization": "Bearer " + tok, "X-User-ID": "mallory"}
	w := send(r, http.MethodPost, "/api/v1/complaints", `{"title":"t","category":"Safety","description":"d"}`, hdr)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", w.Code, w.Body.String())
	}
	var c domain.Complaint
	_ = json.Unmarshal(w.Body.Bytes(), &c)
	if c.UserID != "dave" {
		t.Fatalf("owner=%q, want token subject", c.UserID)
	}
}

func TestRegisterRoutes_BadIdempotencyKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), Deps{}, testConfig())

	w := send(r, http.MethodPost, "/api/v1/complaints", `{}`, map[string]string{middleware.HeaderIdempotencyKey: "has spaces"})
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "bad_idempotency_key") {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB"))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}
