// Package services – ComplaintService
//
// This file implements ComplaintService, which owns the complaint lifecycle:
// submission (with inline attachments), filtered listing and search, partial
// updates guarded by the status transition table, soft deletion, and the
// per-user status aggregates used by the dashboard.
//
// Stats are cached through a cache.StatsCache and invalidated on every write.
// Cache failures never fail a request; they are recorded on the active span.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include user and complaint identifiers where applicable.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-complaint-desk/internal/cache"
	"github.com/tbourn/go-complaint-desk/internal/domain"
	"github.com/tbourn/go-complaint-desk/internal/observability"
	"github.com/tbourn/go-complaint-desk/internal/repo"
	"github.com/tbourn/go-complaint-desk/internal/utils"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	maxTitleRunes       = 200
	maxDescriptionRunes = 5000
	maxLocationRunes    = 255
)

// ComplaintInput carries the user-supplied fields of a new complaint.
type ComplaintInput struct {
	Title       string
	Category    domain.Category
	Priority    domain.Priority
	Description string
	Location    string
}

// AttachmentInput is one uploaded file.
type AttachmentInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ComplaintPatch is a partial update; nil fields are left untouched.
type ComplaintPatch struct {
	Title       *string
	Category    *domain.Category
	Priority    *domain.Priority
	Status      *domain.Status
	Description *string
	Location    *string
}

// ComplaintService implements complaint use-cases on top of the repo package.
type ComplaintService struct {
	DB    *gorm.DB
	Cache cache.StatsCache

	// Upload limits; zero disables the check.
	MaxAttachments     int
	MaxAttachmentBytes int64

	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// NewComplaintService constructs a ComplaintService with a no-op cache.
func NewComplaintService(db *gorm.DB) *ComplaintService {
	return &ComplaintService{
		DB:                 db,
		Cache:              cache.Noop{},
		MaxAttachments:     5,
		MaxAttachmentBytes: 2 << 20,
		Now:                time.Now,
	}
}

func (s *ComplaintService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *ComplaintService) statsCache() cache.StatsCache {
	if s.Cache == nil {
		return cache.Noop{}
	}
	return s.Cache
}

func complaintTracer() trace.Tracer { return observability.Tracer("services/complaints") }

// Create validates in and files, then persists a new pending complaint.
func (s *ComplaintService) Create(ctx context.Context, userID string, in ComplaintInput, files []AttachmentInput) (*domain.Complaint, error) {
	ctx, span := complaintTracer().Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("attachments", len(files)),
		),
	)
	defer span.End()

	in, err := normalizeInput(in)
	if err != nil {
		return nil, err
	}
	if s.MaxAttachments > 0 && len(files) > s.MaxAttachments {
		return nil, fmt.Errorf("%w: at most %d files", ErrTooManyAttachments, s.MaxAttachments)
	}

	now := s.now()
	c := &domain.Complaint{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       in.Title,
		Category:    in.Category,
		Priority:    in.Priority,
		Status:      domain.StatusPending,
		Description: in.Description,
		Location:    in.Location,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	for _, f := range files {
		if s.MaxAttachmentBytes > 0 && int64(len(f.Data)) > s.MaxAttachmentBytes {
			return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrAttachmentTooLarge, f.Filename, s.MaxAttachmentBytes)
		}
		ct := strings.TrimSpace(f.ContentType)
		if ct == "" || ct == "application/octet-stream" {
			ct = http.DetectContentType(f.Data)
		}
		name := strings.TrimSpace(f.Filename)
		if name == "" {
			name = "attachment"
		}
		c.Attachments = append(c.Attachments, domain.Attachment{
			ID:          uuid.NewString(),
			ComplaintID: c.ID,
			Filename:    name,
			ContentType: ct,
			Size:        int64(len(f.Data)),
			Data:        f.Data,
			CreatedAt:   now,
		})
	}

	if err := repo.CreateComplaint(ctx, s.DB, c); err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	observability.ComplaintsSubmitted.WithLabelValues(string(c.Category)).Inc()

	for i := range c.Attachments {
		c.Attachments[i].Data = nil
	}
	return c, nil
}

// Get returns one complaint owned by userID.
func (s *ComplaintService) Get(ctx context.Context, userID, id string) (*domain.Complaint, error) {
	ctx, span := complaintTracer().Start(ctx, "Get",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("complaint.id", id),
		),
	)
	defer span.End()

	c, err := repo.GetComplaint(ctx, s.DB, id, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrComplaintNotFound
	}
	return c, err
}

// List returns one page of userID's complaints matching f, newest first.
// Page and Limit in f are clamped (page >= 1, 1 <= limit <= 100).
func (s *ComplaintService) List(ctx context.Context, userID string, f domain.Filters) ([]domain.Complaint, domain.Pagination, error) {
	ctx, span := complaintTracer().Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("filter.status", string(f.Status)),
			attribute.String("filter.category", string(f.Category)),
			attribute.Int("page", f.Page),
			attribute.Int("limit", f.Limit),
		),
	)
	defer span.End()

	if err := validateFilters(f); err != nil {
		return nil, domain.Pagination{}, err
	}
	page, limit := clampPage(f.Page, f.Limit)
	p := domain.Pagination{Page: page, Limit: limit}

	total, err := repo.CountComplaints(ctx, s.DB, userID, f)
	if err != nil {
		return nil, p, err
	}
	p.Total = total
	p.TotalPages = utils.TotalPages(total, limit)
	if total == 0 {
		return []domain.Complaint{}, p, nil
	}

	items, err := repo.ListComplaintsPage(ctx, s.DB, userID, f, utils.Offset(page, limit), limit)
	return items, p, err
}

// Search is List with a free-text term over title, description and location.
func (s *ComplaintService) Search(ctx context.Context, userID, term string, f domain.Filters) ([]domain.Complaint, domain.Pagination, error) {
	f.Search = strings.TrimSpace(term)
	return s.List(ctx, userID, f)
}

// Update applies patch to a complaint owned by userID. A status change must be
// permitted by domain.Status.CanTransition, otherwise ErrInvalidTransition.
func (s *ComplaintService) Update(ctx context.Context, userID, id string, patch ComplaintPatch) (*domain.Complaint, error) {
	ctx, span := complaintTracer().Start(ctx, "Update",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("complaint.id", id),
		),
	)
	defer span.End()

	fields, err := patchFields(patch)
	if err != nil {
		return nil, err
	}

	var (
		out  *domain.Complaint
		from domain.Status
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := repo.GetComplaint(ctx, tx, id, userID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrComplaintNotFound
			}
			return err
		}
		from = cur.Status
		if patch.Status != nil && !cur.Status.CanTransition(*patch.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, *patch.Status)
		}
		if len(fields) == 0 {
			out = cur
			return nil
		}
		fields["updated_at"] = s.now()
		if err := repo.UpdateComplaint(ctx, tx, id, userID, fields); err != nil {
			return err
		}
		out, err = repo.GetComplaint(ctx, tx, id, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(fields) > 0 {
		s.invalidate(ctx, userID)
	}
	if patch.Status != nil && *patch.Status != from {
		observability.ComplaintTransitions.WithLabelValues(string(from), string(*patch.Status)).Inc()
	}
	return out, nil
}

// Delete soft-deletes a complaint owned by userID.
func (s *ComplaintService) Delete(ctx context.Context, userID, id string) error {
	ctx, span := complaintTracer().Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("complaint.id", id),
		),
	)
	defer span.End()

	if err := repo.DeleteComplaint(ctx, s.DB, id, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrComplaintNotFound
		}
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// Stats returns userID's aggregate counts, served from cache when possible.
func (s *ComplaintService) Stats(ctx context.Context, userID string) (domain.Stats, error) {
	ctx, span := complaintTracer().Start(ctx, "Stats",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	c := s.statsCache()
	if st, ok, err := c.Get(ctx, userID); err != nil {
		span.RecordError(err)
	} else if ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return st, nil
	}

	st, err := repo.CountByStatus(ctx, s.DB, userID)
	if err != nil {
		return domain.Stats{}, err
	}
	if err := c.Set(ctx, userID, st); err != nil {
		span.RecordError(err)
	}
	return st, nil
}

// Attachment returns one attachment (payload included) of a complaint owned
// by userID.
func (s *ComplaintService) Attachment(ctx context.Context, userID, complaintID, attachmentID string) (*domain.Attachment, error) {
	ctx, span := complaintTracer().Start(ctx, "Attachment",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("complaint.id", complaintID),
			attribute.String("attachment.id", attachmentID),
		),
	)
	defer span.End()

	a, err := repo.GetAttachment(ctx, s.DB, complaintID, attachmentID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrAttachmentNotFound
	}
	return a, err
}

// Fingerprint returns the count and latest update time of userID's complaints,
// for weak ETags on list responses.
func (s *ComplaintService) Fingerprint(ctx context.Context, userID string) (int64, *time.Time, error) {
	return repo.ComplaintsStats(ctx, s.DB, userID)
}

func (s *ComplaintService) invalidate(ctx context.Context, userID string) {
	if err := s.statsCache().Invalidate(ctx, userID); err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
	}
}

// --- validation helpers ---

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidComplaint, fmt.Sprintf(format, args...))
}

func normalizeInput(in ComplaintInput) (ComplaintInput, error) {
	in.Title = normalizeText(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = normalizeText(in.Location)

	if in.Title == "" {
		return in, invalid("title is required")
	}
	if utf8.RuneCountInString(in.Title) > maxTitleRunes {
		return in, invalid("title exceeds %d characters", maxTitleRunes)
	}
	if in.Description == "" {
		return in, invalid("description is required")
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionRunes {
		return in, invalid("description exceeds %d characters", maxDescriptionRunes)
	}
	if utf8.RuneCountInString(in.Location) > maxLocationRunes {
		return in, invalid("location exceeds %d characters", maxLocationRunes)
	}
	cat, ok := domain.ParseCategory(string(in.Category))
	if !ok {
		return in, invalid("unknown category %q", in.Category)
	}
	in.Category = cat
	if in.Priority == "" {
		in.Priority = domain.PriorityMedium
	}
	in.Priority = domain.Priority(strings.ToLower(string(in.Priority)))
	if !in.Priority.Valid() {
		return in, invalid("unknown priority %q", in.Priority)
	}
	return in, nil
}

func patchFields(p ComplaintPatch) (map[string]any, error) {
	fields := map[string]any{}
	if p.Title != nil {
		t := normalizeText(*p.Title)
		if t == "" || utf8.RuneCountInString(t) > maxTitleRunes {
			return nil, invalid("title must be 1-%d characters", maxTitleRunes)
		}
		fields["title"] = t
	}
	if p.Description != nil {
		d := strings.TrimSpace(*p.Description)
		if d == "" || utf8.RuneCountInString(d) > maxDescriptionRunes {
			return nil, invalid("description must be 1-%d characters", maxDescriptionRunes)
		}
		fields["description"] = d
	}
	if p.Location != nil {
		l := normalizeText(*p.Location)
		if utf8.RuneCountInString(l) > maxLocationRunes {
			return nil, invalid("location exceeds %d characters", maxLocationRunes)
		}
		fields["location"] = l
	}
	if p.Category != nil {
		c, ok := domain.ParseCategory(string(*p.Category))
		if !ok {
			return nil, invalid("unknown category %q", *p.Category)
		}
		fields["category"] = c
	}
	if p.Priority != nil {
		if !p.Priority.Valid() {
			return nil, invalid("unknown priority %q", *p.Priority)
		}
		fields["priority"] = *p.Priority
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return nil, invalid("unknown status %q", *p.Status)
		}
		fields["status"] = *p.Status
	}
	return fields, nil
}

func validateFilters(f domain.Filters) error {
	if f.Status != "" && !f.Status.Valid() {
		return invalid("unknown status %q", f.Status)
	}
	if f.Category != "" && !f.Category.Valid() {
		return invalid("unknown category %q", f.Category)
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return invalid("unknown priority %q", f.Priority)
	}
	return nil
}

func clampPage(page, limit int) (int, int) {
	return utils.ClampPage(page, limit, defaultPageSize, maxPageSize)
}

// normalizeText trims whitespace and collapses runs of it to one space.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
