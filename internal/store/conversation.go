package store

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-complaint-desk/internal/client"
	"github.com/tbourn/go-complaint-desk/internal/domain"
)

const (
	conversationStoreName = "conversation"

	// Greeting opens every initialized transcript.
	Greeting = "Hello! I'm your complaint desk assistant. How can I help you today?"
	// NotUnderstood is used when a reply carries no text.
	NotUnderstood = "I'm sorry, I didn't understand that."
	// Apology is used when a message fails without fallback text.
	Apology = "Sorry, I'm having trouble responding right now. Please try again later."

	feedbackTimeout = 10 * time.Second
)

// ErrConversationEnded is returned by SendMessage after EndConversation,
// until ResetConversation.
var ErrConversationEnded = &Failure{Message: "conversation has ended", Kind: KindValidation}

// Phase is the conversation lifecycle state.
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseIdle          Phase = "idle"
	PhaseAwaitingReply Phase = "awaiting_reply"
	PhaseEnded         Phase = "ended"
)

// Message is one transcript entry. Intent, Sentiment and Entities are
// copied from the reply as received.
type Message struct {
	ID        int64           `json:"id"`
	Text      string          `json:"text"`
	Sender    domain.Sender   `json:"sender"`
	Timestamp time.Time       `json:"timestamp"`
	Intent    string          `json:"intent,omitempty"`
	Sentiment json.RawMessage `json:"sentiment,omitempty"`
	Entities  json.RawMessage `json:"entities,omitempty"`
	IsError   bool            `json:"isError,omitempty"`
}

// ConversationState is a snapshot of ConversationStore. Typing is true
// exactly while Phase is PhaseAwaitingReply.
type ConversationState struct {
	Messages       []Message
	ConversationID string
	Typing         bool
	Connected      bool
	Suggestions    []string
	Capabilities   map[string]bool
	Error          *Failure
	Phase          Phase

	inFlight int
	// epoch advances on every local reset; replies from an older epoch
	// are dropped.
	epoch int
	// lastID is the highest message id handed out, kept across resets.
	lastID int64
}

// DefaultCapabilities is used when the capability fetch fails.
func DefaultCapabilities() map[string]bool {
	return map[string]bool{
		"intentClassification": false,
		"sentimentAnalysis":    false,
		"entityExtraction":     false,
		"multilingual":         false,
	}
}

func initialConversationState() ConversationState {
	return ConversationState{Phase: PhaseUninitialized, Capabilities: DefaultCapabilities()}
}

type conversationAction interface{ conversationAction() }

type (
	initialized struct {
		capabilities map[string]bool
		greeting     *Message
	}
	initFailed struct{ capabilities map[string]bool }
	userSent   struct{ msg Message }
	botReplied struct {
		epoch          int
		msg            Message
		conversationID string
		suggestions    []string
	}
	botFailed struct {
		epoch   int
		msg     Message
		failure *Failure
	}
	conversationOpened struct{ id string }
	conversationFailed struct{ failure *Failure }
	conversationReset  struct{ phase Phase }
)

func (initialized) conversationAction()        {}
func (initFailed) conversationAction()         {}
func (userSent) conversationAction()           {}
func (botReplied) conversationAction()         {}
func (botFailed) conversationAction()          {}
func (conversationOpened) conversationAction() {}
func (conversationFailed) conversationAction() {}
func (conversationReset) conversationAction()  {}

// push appends m with an id that is its timestamp in milliseconds, bumped
// past the previous id when two messages share a millisecond.
func (s *ConversationState) push(m Message) {
	m.ID = max(m.Timestamp.UnixMilli(), s.lastID+1)
	s.lastID = m.ID
	out := make([]Message, 0, len(s.Messages)+1)
	out = append(out, s.Messages...)
	s.Messages = append(out, m)
}

// settle closes one in-flight send.
func settle(s ConversationState) ConversationState {
	if s.inFlight > 0 {
		s.inFlight--
	}
	if s.inFlight == 0 {
		s.Typing = false
		if s.Phase == PhaseAwaitingReply {
			s.Phase = PhaseIdle
		}
	}
	return s
}

func reduceConversation(s ConversationState, a conversationAction) ConversationState {
	switch a := a.(type) {
	case initialized:
		s.Capabilities = a.capabilities
		if a.greeting != nil {
			s.push(*a.greeting)
		}
		s.Connected = true
		if s.Phase != PhaseAwaitingReply {
			s.Phase = PhaseIdle
		}

	case initFailed:
		s.Capabilities = a.capabilities
		s.Connected = false

	case userSent:
		if s.Phase == PhaseEnded {
			return s
		}
		s.push(a.msg)
		s.inFlight++
		s.Typing = true
		s.Phase = PhaseAwaitingReply
		s.Error = nil

	case botReplied:
		if a.epoch != s.epoch {
			return s
		}
		s.push(a.msg)
		if a.conversationID != "" {
			s.ConversationID = a.conversationID
		}
		if len(a.suggestions) > 0 {
			s.Suggestions = append([]string(nil), a.suggestions...)
		}
		s = settle(s)

	case botFailed:
		if a.epoch != s.epoch {
			return s
		}
		s.push(a.msg)
		s.Error = a.failure
		s = settle(s)

	case conversationOpened:
		s.ConversationID = a.id
		s.Error = nil

	case conversationFailed:
		s.Error = a.failure

	case conversationReset:
		n := initialConversationState()
		n.Capabilities = s.Capabilities
		n.Connected = s.Connected
		n.epoch = s.epoch + 1
		n.lastID = s.lastID
		n.Phase = a.phase
		return n

	default:
		panic("store: unhandled conversation action")
	}
	return s
}

func cloneConversationState(s ConversationState) ConversationState {
	if s.Messages != nil {
		msgs := make([]Message, len(s.Messages))
		for i, m := range s.Messages {
			m.Sentiment = append(json.RawMessage(nil), m.Sentiment...)
			m.Entities = append(json.RawMessage(nil), m.Entities...)
			if len(m.Sentiment) == 0 {
				m.Sentiment = nil
			}
			if len(m.Entities) == 0 {
				m.Entities = nil
			}
			msgs[i] = m
		}
		s.Messages = msgs
	}
	if s.Suggestions != nil {
		s.Suggestions = append([]string(nil), s.Suggestions...)
	}
	if s.Capabilities != nil {
		caps := make(map[string]bool, len(s.Capabilities))
		for k, v := range s.Capabilities {
			caps[k] = v
		}
		s.Capabilities = caps
	}
	if s.Error != nil {
		f := *s.Error
		s.Error = &f
	}
	return s
}

// ConversationStore drives the chat widget.
type ConversationStore struct {
	api ChatAPI
	log zerolog.Logger
	c   *container[ConversationState, conversationAction]
	now func() time.Time
	wg  sync.WaitGroup
}

// NewConversationStore creates an uninitialized store over api.
func NewConversationStore(api ChatAPI, opts ...Option) *ConversationStore {
	o := buildOptions("conversation_store", opts)
	return &ConversationStore{
		api: api,
		log: o.log,
		c:   newContainer(initialConversationState(), reduceConversation, cloneConversationState),
		now: time.Now,
	}
}

// State returns a snapshot; callers may modify it freely.
func (s *ConversationStore) State() ConversationState { return s.c.snapshot() }

// Subscribe calls fn with a snapshot after every transition. The returned
// func removes the listener.
func (s *ConversationStore) Subscribe(fn func(ConversationState)) func() {
	return s.c.subscribe(fn)
}

func (s *ConversationStore) message(sender domain.Sender, text string) Message {
	return Message{Text: text, Sender: sender, Timestamp: s.now()}
}

// Initialize fetches capabilities. On success the greeting is appended and
// Connected is set. On failure default capabilities are used, Connected is
// false and no greeting is added. It never fails.
func (s *ConversationStore) Initialize(ctx context.Context) {
	caps, err := s.api.Capabilities(ctx)
	if err != nil {
		advisory(s.log, conversationStoreName, "capabilities", err)
		s.c.dispatch(initFailed{capabilities: DefaultCapabilities()})
		return
	}
	features := DefaultCapabilities()
	for k, v := range caps.Features {
		features[k] = v
	}
	g := s.message(domain.SenderBot, Greeting)
	s.c.dispatch(initialized{capabilities: features, greeting: &g})
}

// SendMessage appends text as a user message, forwards it and appends the
// bot's answer. On failure the bot message carries the server's fallback
// text or Apology, Error is set and the error is returned. Either way the
// transcript grows by two.
func (s *ConversationStore) SendMessage(ctx context.Context, text string) error {
	// Ended check and epoch must come from the reduction that records the
	// user message.
	st := s.c.dispatch(userSent{msg: s.message(domain.SenderUser, text)})
	if st.Phase == PhaseEnded {
		return ErrConversationEnded
	}
	reply, err := s.api.SendChatMessage(ctx, client.ChatRequest{Message: text, ConversationID: st.ConversationID})
	if err != nil {
		fallback := Apology
		if e, ok := client.AsError(err); ok && strings.TrimSpace(e.Response) != "" {
			fallback = e.Response
		}
		m := s.message(domain.SenderBot, fallback)
		m.IsError = true
		s.c.dispatch(botFailed{epoch: st.epoch, msg: m, failure: normalize(err)})
		return err
	}

	body := reply.Message
	if body == "" {
		body = reply.Response
	}
	if body == "" {
		body = NotUnderstood
	}
	m := s.message(domain.SenderBot, body)
	m.Intent = reply.Intent
	m.Sentiment = reply.Sentiment
	m.Entities = reply.Entities
	s.c.dispatch(botReplied{
		epoch:          st.epoch,
		msg:            m,
		conversationID: reply.ConversationID,
		suggestions:    reply.Suggestions,
	})
	return nil
}

// StartConversation opens a server conversation and, when initial is not
// blank, sends it under the new id.
func (s *ConversationStore) StartConversation(ctx context.Context, initial string) error {
	id, err := s.api.StartConversation(ctx)
	if err != nil {
		s.c.dispatch(conversationFailed{failure: normalize(err)})
		return err
	}
	s.c.dispatch(conversationOpened{id: id})
	if strings.TrimSpace(initial) == "" {
		return nil
	}
	return s.SendMessage(ctx, initial)
}

// EndConversation notifies the server, ignoring failures, then resets the
// transcript. Capabilities are kept. SendMessage is refused until
// ResetConversation.
func (s *ConversationStore) EndConversation(ctx context.Context) {
	if id := s.State().ConversationID; id != "" {
		if err := s.api.EndConversation(ctx, id); err != nil {
			advisory(s.log, conversationStoreName, "end", err)
		}
	}
	s.c.dispatch(conversationReset{phase: PhaseEnded})
}

// ReportFeedback sends fb in the background. An empty ConversationID is
// filled from the current conversation. Failures are logged and counted.
func (s *ConversationStore) ReportFeedback(fb client.Feedback) {
	if fb.ConversationID == "" {
		fb.ConversationID = s.State().ConversationID
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), feedbackTimeout)
		defer cancel()
		if err := s.api.ReportFeedback(ctx, fb); err != nil {
			advisory(s.log, conversationStoreName, "feedback", err)
		}
	}()
}

// Wait blocks until background feedback reports have finished.
func (s *ConversationStore) Wait() { s.wg.Wait() }

// ResetConversation clears the transcript and initializes again.
func (s *ConversationStore) ResetConversation(ctx context.Context) {
	s.c.dispatch(conversationReset{phase: PhaseUninitialized})
	s.Initialize(ctx)
}
