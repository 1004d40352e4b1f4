// Package store holds the two client-side state containers: ComplaintStore
// (complaint list, current item, stats, filters, pagination) and
// ConversationStore (chat transcript and widget status).
//
// Each store owns its state and changes it only by reducing an Action.
// Operations call the API client, then dispatch the outcome. Readers take
// immutable snapshots with State or register a listener with Subscribe.
//
// The stores do not serialize operations. Concurrent calls each resolve
// independently and the last one to arrive wins on shared fields.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-complaint-desk/internal/client"
	"github.com/tbourn/go-complaint-desk/internal/domain"
	"github.com/tbourn/go-complaint-desk/internal/observability"
)

// ComplaintAPI is the slice of the API client used by ComplaintStore.
type ComplaintAPI interface {
	ListComplaints(ctx context.Context, f domain.Filters) (*client.ComplaintList, error)
	SearchComplaints(ctx context.Context, term string, f domain.Filters) (*client.ComplaintList, error)
	GetComplaint(ctx context.Context, id string) (*domain.Complaint, error)
	SubmitComplaint(ctx context.Context, d client.Draft) (*domain.Complaint, error)
	UpdateComplaint(ctx context.Context, id string, p client.Patch) (*domain.Complaint, error)
	DeleteComplaint(ctx context.Context, id string) error
	ComplaintStats(ctx context.Context) (domain.Stats, error)
}

// ChatAPI is the slice of the API client used by ConversationStore.
type ChatAPI interface {
	SendChatMessage(ctx context.Context, r client.ChatRequest) (*client.ChatReply, error)
	StartConversation(ctx context.Context) (string, error)
	EndConversation(ctx context.Context, id string) error
	Capabilities(ctx context.Context) (*client.Capabilities, error)
	ReportFeedback(ctx context.Context, fb client.Feedback) error
}

var (
	_ ComplaintAPI = (*client.Client)(nil)
	_ ChatAPI      = (*client.Client)(nil)
)

// Kind classifies a Failure.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindValidation Kind = "validation"
	KindTransport  Kind = "transport"
	KindRemote     Kind = "remote"
	KindUnknown    Kind = "unknown"
)

// Failure is the normalized form of an error held in store state.
type Failure struct {
	Message string `json:"message"`
	Kind    Kind   `json:"kind"`
}

func (f *Failure) Error() string { return f.Message }

// normalize turns any operation error into a Failure with a readable
// message. A nil error yields nil.
func normalize(err error) *Failure {
	if err == nil {
		return nil
	}
	f := &Failure{Message: err.Error(), Kind: KindUnknown}
	if e, ok := client.AsError(err); ok && e.Message != "" {
		f.Message = e.Message
	}
	switch {
	case errors.Is(err, client.ErrNotFound):
		f.Kind = KindNotFound
	case errors.Is(err, client.ErrValidation):
		f.Kind = KindValidation
	case errors.Is(err, client.ErrTransport),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		f.Kind = KindTransport
	default:
		if _, ok := client.AsError(err); ok {
			f.Kind = KindRemote
		}
	}
	if f.Message == "" {
		f.Message = "request failed"
	}
	return f
}

// Option configures a store.
type Option func(*options)

type options struct {
	log     zerolog.Logger
	logSet  bool
	fencing bool
}

// WithLogger sets the logger for absorbed failures.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log, o.logSet = l, true }
}

// WithListFencing makes ComplaintStore drop list responses (FetchAll and
// Search) that are older than the latest list request it issued. Without
// it, the last response to arrive wins. ConversationStore ignores it.
func WithListFencing() Option {
	return func(o *options) { o.fencing = true }
}

func buildOptions(component string, opts []Option) options {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	if !o.logSet {
		o.log = observability.Named(component)
	}
	return o
}

// advisory records a failure that is logged and absorbed.
func advisory(log zerolog.Logger, storeName, op string, err error) {
	observability.AdvisoryFailures.WithLabelValues(storeName, op).Inc()
	log.Warn().Err(err).Str("op", op).Msg("advisory call failed")
}

// container serializes access to one state value and fans out snapshots
// to listeners after every transition.
type container[S, A any] struct {
	mu     sync.Mutex
	state  S
	reduce func(S, A) S
	clone  func(S) S
	subs   map[int]func(S)
	nextID int
}

func newContainer[S, A any](initial S, reduce func(S, A) S, clone func(S) S) *container[S, A] {
	return &container[S, A]{state: initial, reduce: reduce, clone: clone, subs: map[int]func(S){}}
}

// dispatch reduces a, notifies listeners outside the lock and returns the
// state a produced.
func (c *container[S, A]) dispatch(a A) S {
	c.mu.Lock()
	c.state = c.reduce(c.state, a)
	snap := c.clone(c.state)
	fns := make([]func(S), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
	return c.clone(snap)
}

func (c *container[S, A]) snapshot() S {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clone(c.state)
}

func (c *container[S, A]) subscribe(fn func(S)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}
