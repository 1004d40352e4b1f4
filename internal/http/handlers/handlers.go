// Package handlers provides HTTP handler implementations for the public API.
//
// This file wires the handler set: the service contracts the handlers call,
// the Handlers struct and its options, and small helpers shared by the
// complaint, chatbot and feedback endpoints.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-complaint-desk/internal/domain"
	"github.com/tbourn/go-complaint-desk/internal/http/middleware"
	"github.com/tbourn/go-complaint-desk/internal/services"
	"github.com/tbourn/go-complaint-desk/internal/utils"
)

//
// Service contracts (context-aware)
//

// ComplaintService defines the complaint use-cases consumed by HTTP handlers.
//
// Implementations must scope every call to userID and honor ctx.
type ComplaintService interface {
	Create(ctx context.Context, userID string, in services.ComplaintInput, files []services.AttachmentInput) (*domain.Complaint, error)
	Get(ctx context.Context, userID, id string) (*domain.Complaint, error)
	List(ctx context.Context, userID string, f domain.Filters) ([]domain.Complaint, domain.Pagination, error)
	Search(ctx context.Context, userID, term string, f domain.Filters) ([]domain.Complaint, domain.Pagination, error)
	Update(ctx context.Context, userID, id string, patch services.ComplaintPatch) (*domain.Complaint, error)
	Delete(ctx context.Context, userID, id string) error
	Stats(ctx context.Context, userID string) (domain.Stats, error)
	Attachment(ctx context.Context, userID, complaintID, attachmentID string) (*domain.Attachment, error)
	// Fingerprint returns (count, latest update) of the user's complaints
	// for conditional GETs.
	Fingerprint(ctx context.Context, userID string) (int64, *time.Time, error)
}

// ConversationService defines chatbot session operations.
type ConversationService interface {
	Start(ctx context.Context, userID string) (*domain.Conversation, error)
	Send(ctx context.Context, userID, conversationID, text string) (*services.Exchange, error)
	History(ctx context.Context, userID, conversationID string, page, pageSize int) (*domain.Conversation, []domain.ChatMessage, int64, error)
	End(ctx context.Context, userID, conversationID string) error
	Metrics(ctx context.Context) (services.ChatMetrics, error)
	Capabilities() services.Capabilities
}

// FeedbackService captures user ratings of chatbot conversations.
type FeedbackService interface {
	Leave(ctx context.Context, userID, conversationID string, messageID *string, rating int, comment string) (*domain.Feedback, error)
}

// IdempotencyStore remembers which resource an Idempotency-Key produced.
// Replays are detected by middleware.IdempotencyValidator; handlers only
// remember new results.
type IdempotencyStore interface {
	Remember(ctx context.Context, userID, scope, key, resourceID string, status int, ttl time.Duration) error
}

//
// Handler wiring
//

// Options carries transport-level limits and optional collaborators.
type Options struct {
	// Idempotency persists Idempotency-Key results; nil disables recording.
	Idempotency    IdempotencyStore
	IdempotencyTTL time.Duration

	// MaxAttachments and MaxAttachmentBytes bound multipart uploads at the
	// edge before the service sees them.
	MaxAttachments     int
	MaxAttachmentBytes int64
}

// Handlers groups HTTP endpoints for complaints, chatbot sessions and
// feedback. It depends on abstract service interfaces to keep transport
// concerns separate from business logic.
type Handlers struct {
	complaints ComplaintService
	convs      ConversationService
	feedback   FeedbackService
	opts       Options
}

// New constructs and returns a Handlers instance bound to the given services.
func New(complaints ComplaintService, convs ConversationService, feedback FeedbackService, opts Options) *Handlers {
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	if opts.MaxAttachments <= 0 {
		opts.MaxAttachments = 5
	}
	if opts.MaxAttachmentBytes <= 0 {
		opts.MaxAttachmentBytes = 2 << 20
	}
	return &Handlers{complaints: complaints, convs: convs, feedback: feedback, opts: opts}
}

// userID returns the caller identity resolved by the middleware chain.
func userID(c *gin.Context) string { return middleware.UserID(c) }

//
// Pagination
//

// clampPagination parses page and limit (page_size is accepted as an alias)
// and bounds them to 1..100 with a default of 20.
func clampPagination(c *gin.Context) (page, limit int) {
	const (
		defaultPage  = 1
		defaultLimit = 20
		maxLimit     = 100
	)
	raw := c.Query("limit")
	if raw == "" {
		raw = c.Query("page_size")
	}
	limit = utils.AtoiDefault(raw, defaultLimit)
	if limit < 1 {
		limit = 1
	}
	return utils.ClampPage(utils.AtoiDefault(c.Query("page"), defaultPage), limit, defaultLimit, maxLimit)
}

// pagination builds the response metadata for a page.
func pagination(page, limit int, total int64) domain.Pagination {
	return domain.Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: utils.TotalPages(total, limit),
	}
}

// remember records an idempotent result; failures are logged only.
func (h *Handlers) remember(c *gin.Context, resourceID string, status int) {
	key, ok := middleware.GetIdempotencyKey(c)
	if !ok || h.opts.Idempotency == nil {
		return
	}
	err := h.opts.Idempotency.Remember(c.Request.Context(), userID(c), middleware.IdempotencyScope(c), key, resourceID, status, h.opts.IdempotencyTTL)
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Str("idempotency_key", key).Msg("idempotency record not stored")
	}
}
