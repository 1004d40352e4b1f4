package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-complaint-desk/internal/domain"
	"github.com/tbourn/go-complaint-desk/internal/services"
)

const msgID = "fa4dfbe0-c3bf-47bd-b32f-d7de221cf43b"

func feedbackRouter(t *testing.T, svc *fakeFeedback) *gin.Engine {
	r := newEngine(t)
	h := New(nil, nil, svc, Options{})
	r.POST("/chatbot/feedback", h.LeaveFeedback)
	return r
}

func TestLeaveFeedback_BindingErrors(t *testing.T) {
	svc := &fakeFeedback{leave: func(context.Context, string, string, *string, int, string) (*domain.Feedback, error) {
		t.Fatalf("service should not be called on binding error")
		return nil, nil
	}}
	r := feedbackRouter(t, svc)

	bodies := []string{
		`{"conversationId":"` + convID + `","rating":0}`,
		`{"conversationId":"` + convID + `","rating":2}`,
		`{"conversationId":"nope","rating":1}`,
		`{"conversationId":"` + convID + `","messageId":"x","rating":1}`,
		`{"rating":1}`,
	}
	for _, b := range bodies {
		w := do(r, http.MethodPost, "/chatbot/feedback", b, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d", b, w.Code)
		}
		var er ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
			t.Fatalf("json: %v", err)
		}
		if er.Code != ErrCodeValidation || len(er.Details) == 0 {
			t.Fatalf("%s: envelope=%+v", b, er)
		}
	}
}

func TestLeaveFeedback_ErrorMappings(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"conv_not_found", services.ErrConversationNotFound, http.StatusNotFound},
		{"msg_not_found", services.ErrMessageNotFound, http.StatusNotFound},
		{"invalid", services.ErrInvalidFeedback, http.StatusBadRequest},
		{"forbidden", services.ErrForbiddenFeedback, http.StatusForbidden},
		{"duplicate", services.ErrDuplicateFeedback, http.StatusConflict},
		{"internal", context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeFeedback{leave: func(_ context.Context, userID, conv string, mid *string, rating int, comment string) (*domain.Feedback, error) {
				if userID != "u-123" || conv != convID {
					t.Fatalf("args: user=%q conv=%q", userID, conv)
				}
				if mid == nil || *mid != msgID {
					t.Fatalf("messageId not passed")
				}
				if rating != 1 || comment != "thanks" {
					t.Fatalf("rating=%d comment=%q", rating, comment)
				}
				return nil, tc.err
			}}
			r := feedbackRouter(t, svc)

			body := `{"conversationId":"` + convID + `","messageId":"` + msgID + `","rating":1,"comment":"thanks"}`
			w := do(r, http.MethodPost, "/chatbot/feedback", body, map[string]string{"X-User-ID": "u-123"})
			if w.Code != tc.wantStatus {
				t.Fatalf("status=%d, want %d. body=%s", w.Code, tc.wantStatus, w.Body.String())
			}
			var er ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
				t.Fatalf("json: %v", err)
			}
			if er.Code == "" || er.Message == "" {
				t.Fatalf("error envelope missing fields: %+v", er)
			}
		})
	}
}

func TestLeaveFeedback_Success201(t *testing.T) {
	at := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	var gotMID *string
	svc := &fakeFeedback{leave: func(_ context.Context, _ string, conv string, mid *string, rating int, _ string) (*domain.Feedback, error) {
		gotMID = mid
		return &domain.Feedback{ID: "fb-1", ConversationID: conv, Rating: rating, CreatedAt: at}, nil
	}}
	r := feedbackRouter(t, svc)

	w := do(r, http.MethodPost, "/chatbot/feedback", `{"conversationId":"`+convID+`","rating":-1}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if gotMID != nil {
		t.Fatalf("conversation-level rating should have no message id")
	}
	var resp LeaveFeedbackResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.ID != "fb-1" || resp.Status != "received" || !resp.Timestamp.Equal(at) {
		t.Fatalf("resp=%+v", resp)
	}
}
