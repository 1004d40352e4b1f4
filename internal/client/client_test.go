package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tbourn/go-complaint-desk/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL + "/api/v1/", Token: "tok", UserID: "u1", HTTPClient: srv.Client()})
}

func TestNew_Defaults(t *testing.T) {
	c := New(Options{})
	if c.BaseURL() != defaultBaseURL {
		t.Fatalf("base=%q", c.BaseURL())
	}
	if c.opts.Timeout != defaultTimeout || c.opts.UserAgent != defaultUA {
		t.Fatalf("opts=%+v", c.opts)
	}
}

func TestListComplaints_QueryAndHeaders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/complaints" {
			t.Fatalf("path=%q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("status") != "pending" || q.Get("page") != "2" || q.Has("category") {
			t.Fatalf("query=%v", q)
		}
		if r.Header.Get("Authorization") != "Bearer tok" || r.Header.Get("X-User-ID") != "u1" {
			t.Fatalf("headers=%v", r.Header)
		}
		_, _ = io.WriteString(w, `{"complaints":[{"id":"a","status":"pending"},{"id":"b","status":"resolved"}],"pagination":{"page":2,"limit":20,"total":22,"totalPages":2}}`)
	})

	got, err := c.ListComplaints(context.Background(), domain.Filters{Status: domain.StatusPending, Page: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got.Complaints) != 2 || got.Pagination == nil || got.Pagination.Total != 22 {
		t.Fatalf("got=%+v", got)
	}
}

func TestSearchComplaints_NoPagination(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/complaints/search" || r.URL.Query().Get("q") != "pothole" {
			t.Fatalf("url=%s", r.URL)
		}
		_, _ = io.WriteString(w, `{"complaints":[]}`)
	})
	got, err := c.SearchComplaints(context.Background(), "pothole", domain.Filters{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if got.Pagination != nil {
		t.Fatalf("pagination should be nil")
	}
}

func TestErrors_Classification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		notFound bool
		invalid  bool
		msg      string
	}{
		{"404", 404, `{"code":"not_found","message":"complaint not found","request_id":"r1"}`, true, false, "complaint not found"},
		{"400", 400, `{"code":"validation_failed","message":"title is required"}`, false, true, "title is required"},
		{"422", 422, `{"code":"x","message":"bad"}`, false, true, "bad"},
		{"500 text", 500, `upstream exploded`, false, false, "upstream exploded"},
		{"502 empty", 502, ``, false, false, "Bad Gateway"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})
			_, err := c.GetComplaint(context.Background(), "x")
			if err == nil {
				t.Fatalf("expected error")
			}
			if errors.Is(err, ErrNotFound) != tc.notFound || errors.Is(err, ErrValidation) != tc.invalid {
				t.Fatalf("classification wrong for %v", err)
			}
			e, ok := AsError(err)
			if !ok || e.Status != tc.status || e.Message != tc.msg {
				t.Fatalf("err=%+v", e)
			}
		})
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(Options{BaseURL: url})
	_, err := c.ComplaintStats(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("want ErrTransport, got %v", err)
	}
	if _, ok := AsError(err); ok {
		t.Fatalf("transport failures are not API errors")
	}
}

func TestSubmitComplaint_MultipartAndIdempotencyKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Idempotency-Key") == "" {
			t.Fatalf("method=%s key=%q", r.Method, r.Header.Get("Idempotency-Key"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("multipart: %v", err)
		}
		if r.FormValue("title") != "Noise" || r.FormValue("category") != "Environment" {
			t.Fatalf("fields=%v", r.MultipartForm.Value)
		}
		if _, ok := r.MultipartForm.Value["location"]; ok {
			t.Fatalf("empty fields must be omitted")
		}
		files := r.MultipartForm.File["attachments"]
		if len(files) != 2 || files[0].Filename != "a.txt" || files[1].Header.Get("Content-Type") != "image/png" {
			t.Fatalf("files=%+v", files)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(domain.Complaint{ID: "c1", Title: "Noise", Status: domain.StatusPending})
	})

	got, err := c.SubmitComplaint(context.Background(), Draft{
		Title:       "Noise",
		Category:    "Environment",
		Description: "Loud",
		Attachments: []File{
			{Name: "a.txt", Data: []byte("hello")},
			{Name: "b.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
		},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.ID != "c1" {
		t.Fatalf("got=%+v", got)
	}
}

func TestSubmitComplaint_LocalValidation(t *testing.T) {
	called := false
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) { called = true })

	_, err := c.SubmitComplaint(context.Background(), Draft{Title: "", Category: "Weather", Description: "d"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
	if called {
		t.Fatalf("invalid draft must not reach the server")
	}
	e, _ := AsError(err)
	if e.Status != 0 || !strings.Contains(e.Message, "category") {
		t.Fatalf("err=%+v", e)
	}

	bad := "archived"
	if _, err := c.UpdateComplaint(context.Background(), "c1", Patch{Status: &bad}); !errors.Is(err, ErrValidation) {
		t.Fatalf("patch: want ErrValidation, got %v", err)
	}
}

func TestDeleteComplaint_NoContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/v1/complaints/c%201" && r.URL.Path != "/api/v1/complaints/c 1" {
			t.Fatalf("%s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	if err := c.DeleteComplaint(context.Background(), "c 1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestChatEndpoints(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/chatbot/message":
			var req ChatRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Message == "fail" {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = io.WriteString(w, `{"code":"chat_failed","message":"boom","response":"Try later."}`)
				return
			}
			_, _ = io.WriteString(w, `{"message":"hi","conversationId":"c9","suggestions":["a"],"sentiment":{"score":0.2},"entities":[{"type":"x","value":"y"}]}`)
		case "/api/v1/chatbot/conversation":
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"conversationId":"c9","status":"started"}`)
		case "/api/v1/chatbot/conversation/c9/end":
			_, _ = io.WriteString(w, `{"conversationId":"c9","status":"ended"}`)
		case "/api/v1/chatbot/capabilities":
			_, _ = io.WriteString(w, `{"features":{"nlp":true}}`)
		case "/api/v1/chatbot/feedback":
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"status":"received"}`)
		default:
			t.Fatalf("unexpected %s", r.URL.Path)
		}
	})
	ctx := context.Background()

	reply, err := c.SendChatMessage(ctx, ChatRequest{Message: "hello"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply.Message != "hi" || reply.ConversationID != "c9" || string(reply.Sentiment) != `{"score":0.2}` {
		t.Fatalf("reply=%+v", reply)
	}

	_, err = c.SendChatMessage(ctx, ChatRequest{Message: "fail"})
	e, ok := AsError(err)
	if !ok || e.Response != "Try later." || e.Code != "chat_failed" {
		t.Fatalf("err=%v", err)
	}

	id, err := c.StartConversation(ctx)
	if err != nil || id != "c9" {
		t.Fatalf("start: %q %v", id, err)
	}
	if err := c.EndConversation(ctx, "c9"); err != nil {
		t.Fatalf("end: %v", err)
	}
	caps, err := c.Capabilities(ctx)
	if err != nil || !caps.Features["nlp"] {
		t.Fatalf("caps=%+v err=%v", caps, err)
	}
	if err := c.ReportFeedback(ctx, Feedback{ConversationID: "c9", Rating: 1}); err != nil {
		t.Fatalf("feedback: %v", err)
	}
}
