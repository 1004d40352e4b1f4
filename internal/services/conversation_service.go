// Package services – ConversationService
//
// This file implements ConversationService, which owns server-side chat
// sessions: starting and ending conversations, answering user messages with
// the configured chatbot.Responder, paging through history, and the
// aggregate metrics exposed by the chatbot endpoints.
//
// Each exchange (user message + bot reply) is persisted atomically. The first
// user message of a conversation also names it.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-complaint-desk/internal/chatbot"
	"github.com/tbourn/go-complaint-desk/internal/domain"
	"github.com/tbourn/go-complaint-desk/internal/observability"
	"github.com/tbourn/go-complaint-desk/internal/repo"
	"github.com/tbourn/go-complaint-desk/internal/utils"
)

// defaultConversationTitle is the placeholder replaced by auto-titling.
const defaultConversationTitle = "New conversation"

// Exchange is the persisted result of one user message.
type Exchange struct {
	ConversationID string
	User           *domain.ChatMessage
	Bot            *domain.ChatMessage
	Reply          chatbot.Reply
}

// ChatMetrics aggregates usage of the chatbot across all users.
type ChatMetrics struct {
	TotalConversations     int64   `json:"totalConversations"`
	ActiveConversations    int64   `json:"activeConversations"`
	TotalMessages          int64   `json:"totalMessages"`
	AverageSessionDuration float64 `json:"averageSessionDuration"` // seconds
	FeedbackCount          int64   `json:"feedbackCount"`
	SatisfactionScore      float64 `json:"satisfactionScore"` // share of positive ratings, 0..1
}

// Capabilities describes which optional chatbot features this server offers.
type Capabilities struct {
	Capabilities []string        `json:"capabilities"`
	Features     map[string]bool `json:"features"`
}

// ConversationService coordinates chat sessions and rule-based replies.
type ConversationService struct {
	DB  *gorm.DB
	Bot chatbot.Responder

	// MaxMessageRunes rejects longer messages with ErrTooLong; zero disables.
	MaxMessageRunes int

	// Title generation config
	TitleLocale language.Tag
	TitleMaxLen int

	Now func() time.Time
}

func (s *ConversationService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *ConversationService) bot() chatbot.Responder {
	if s.Bot == nil {
		return chatbot.Default()
	}
	return s.Bot
}

// Start opens a new active conversation for userID.
func (s *ConversationService) Start(ctx context.Context, userID string) (*domain.Conversation, error) {
	tr := observability.Tracer("services/conversations")
	ctx, span := tr.Start(ctx, "Start",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	return repo.CreateConversation(ctx, s.DB, userID, defaultConversationTitle)
}

// Send answers text within conversationID. An empty conversationID starts a
// new conversation first. Messages to an ended conversation are rejected
// with ErrConversationEnded.
func (s *ConversationService) Send(ctx context.Context, userID, conversationID, text string) (*Exchange, error) {
	tr := observability.Tracer("services/conversations")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(text) > s.MaxMessageRunes {
		return nil, ErrTooLong
	}

	var conv *domain.Conversation
	var err error
	if conversationID == "" {
		conv, err = s.Start(ctx, userID)
		if err != nil {
			return nil, err
		}
	} else {
		conv, err = repo.GetConversation(ctx, s.DB, conversationID, userID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrConversationNotFound
			}
			return nil, err
		}
	}
	if conv.Status == domain.ConversationEnded {
		return nil, ErrConversationEnded
	}

	reply := s.bot().Respond(text)
	span.SetAttributes(
		attribute.String("chat.intent", reply.Intent),
		attribute.Float64("chat.confidence", reply.Confidence),
	)

	ex := &Exchange{ConversationID: conv.ID, Reply: reply}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := repo.CreateMessage(ctx, tx, conv.ID, domain.SenderUser, text, "", nil)
		if err != nil {
			return err
		}
		conf := reply.Confidence
		b, err := repo.CreateMessage(ctx, tx, conv.ID, domain.SenderBot, reply.Text, reply.Intent, &conf)
		if err != nil {
			return err
		}
		ex.User, ex.Bot = u, b

		if err := repo.TouchConversation(ctx, tx, conv.ID, s.now()); err != nil {
			return err
		}
		if s.shouldAutoTitle(conv.Title) {
			if gen := s.clipTitle(s.generateTitle(text)); gen != "" {
				if uerr := repo.UpdateConversationTitle(ctx, tx, conv.ID, userID, gen); uerr == nil {
					conv.Title = gen
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.ChatReplies.WithLabelValues(reply.Intent).Inc()
	return ex, nil
}

// History returns one page of a conversation's messages, oldest first,
// along with the total message count.
func (s *ConversationService) History(ctx context.Context, userID, conversationID string, page, pageSize int) (*domain.Conversation, []domain.ChatMessage, int64, error) {
	tr := observability.Tracer("services/conversations")
	ctx, span := tr.Start(ctx, "History",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	conv, err := repo.GetConversation(ctx, s.DB, conversationID, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, 0, ErrConversationNotFound
		}
		return nil, nil, 0, err
	}

	page, pageSize = clampPage(page, pageSize)
	total, err := repo.CountMessages(ctx, s.DB, conversationID)
	if err != nil {
		return nil, nil, 0, err
	}
	if total == 0 {
		return conv, []domain.ChatMessage{}, 0, nil
	}
	items, err := repo.ListMessagesPage(ctx, s.DB, conversationID, utils.Offset(page, pageSize), pageSize)
	return conv, items, total, err
}

// End closes a conversation. Ending an ended conversation is a no-op.
func (s *ConversationService) End(ctx context.Context, userID, conversationID string) error {
	tr := observability.Tracer("services/conversations")
	ctx, span := tr.Start(ctx, "End",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	err := repo.EndConversation(ctx, s.DB, conversationID, userID, s.now())
	if errors.Is(err, repo.ErrNotFound) {
		return ErrConversationNotFound
	}
	return err
}

// EndIdle ends every active conversation without activity for longer than
// idle and returns how many were closed.
func (s *ConversationService) EndIdle(ctx context.Context, idle time.Duration) (int64, error) {
	tr := observability.Tracer("services/conversations")
	ctx, span := tr.Start(ctx, "EndIdle",
		trace.WithAttributes(attribute.String("idle", idle.String())),
	)
	defer span.End()

	now := s.now()
	return repo.EndIdleConversations(ctx, s.DB, now.Add(-idle), now)
}

// Metrics returns usage counters across all conversations.
func (s *ConversationService) Metrics(ctx context.Context) (ChatMetrics, error) {
	tr := observability.Tracer("services/conversations")
	ctx, span := tr.Start(ctx, "Metrics")
	defer span.End()

	var m ChatMetrics
	var err error
	if m.TotalConversations, err = repo.CountConversations(ctx, s.DB, ""); err != nil {
		return m, err
	}
	if m.ActiveConversations, err = repo.CountConversations(ctx, s.DB, domain.ConversationActive); err != nil {
		return m, err
	}
	if m.TotalMessages, err = repo.CountAllMessages(ctx, s.DB); err != nil {
		return m, err
	}
	avg, err := repo.AverageSessionDuration(ctx, s.DB)
	if err != nil {
		return m, err
	}
	m.AverageSessionDuration = avg.Seconds()

	total, positive, err := repo.FeedbackTotals(ctx, s.DB)
	if err != nil {
		return m, err
	}
	m.FeedbackCount = total
	if total > 0 {
		m.SatisfactionScore = float64(positive) / float64(total)
	}
	return m, nil
}

// Capabilities reports the features of the rule-based responder. Sentiment
// analysis and multilingual replies are not offered.
func (s *ConversationService) Capabilities() Capabilities {
	return Capabilities{
		Capabilities: []string{
			"Basic Q&A",
			"Complaint Guidance",
			"Status Inquiries",
			"Intent Classification",
			"Entity Extraction",
		},
		Features: map[string]bool{
			"intentClassification": true,
			"sentimentAnalysis":    false,
			"entityExtraction":     true,
			"multilingual":         false,
		},
	}
}

// --- Title generation helpers ---

func (s *ConversationService) shouldAutoTitle(current string) bool {
	t := strings.TrimSpace(strings.ToLower(current))
	return t == "" || t == strings.ToLower(defaultConversationTitle)
}

// generateTitle derives a short title from the first user message.
func (s *ConversationService) generateTitle(text string) string {
	toks := titleWordRE.FindAllString(strings.ToLower(text), -1)
	if len(toks) == 0 {
		return ""
	}
	locale := s.TitleLocale
	if locale == language.Und {
		locale = language.English
	}
	caser := cases.Title(locale)

	out := make([]string, 0, 6)
	for _, w := range toks {
		if _, skip := titleStopWords[w]; skip {
			continue
		}
		out = append(out, caser.String(w))
		if len(out) >= 6 {
			break
		}
	}
	return strings.Join(out, " ")
}

func (s *ConversationService) clipTitle(title string) string {
	max := s.TitleMaxLen
	if max <= 0 {
		max = 60
	}
	if utf8.RuneCountInString(title) > max {
		return strings.TrimSpace(string([]rune(title)[:max]))
	}
	return title
}

var titleWordRE = regexp.MustCompile(`[\p{L}]+[\p{N}]*`)

var titleStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
	"i": {}, "my": {}, "me": {}, "want": {}, "need": {}, "please": {},
}
