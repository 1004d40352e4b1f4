package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tbourn/go-complaint-desk/internal/domain"
)

// memCache is an in-process StatsCache that records calls.
type memCache struct {
	mu          sync.Mutex
	m           map[string]domain.Stats
	gets, sets  int
	invalidated []string
	failGet     error
}

func newMemCache() *memCache { return &memCache{m: map[string]domain.Stats{}} }

func (c *memCache) Get(_ context.Context, userID string) (domain.Stats, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.failGet != nil {
		return domain.Stats{}, false, c.failGet
	}
	s, ok := c.m[userID]
	return s, ok, nil
}

func (c *memCache) Set(_ context.Context, userID string, s domain.Stats) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.m[userID] = s
	return nil
}

func (c *memCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, userID)
	delete(c.m, userID)
	return nil
}

func validInput(title string) ComplaintInput {
	return ComplaintInput{
		Title:       title,
		Category:    "infrastructure",
		Priority:    domain.PriorityHigh,
		Description: "The streetlight on Elm St has been out for a week.",
		Location:    "  Elm   Street ",
	}
}

func newComplaintService(t *testing.T) (*ComplaintService, *memCache) {
	t.Helper()
	c := newMemCache()
	svc := NewComplaintService(newTestDB(t))
	svc.Cache = c
	return svc, c
}

func TestComplaintService_Create_NormalizesAndForcesPending(t *testing.T) {
	svc, c := newComplaintService(t)
	ctx := context.Background()

	got, err := svc.Create(ctx, "u1", validInput("  Broken   light "), []AttachmentInput{
		{Filename: "photo.png", Data: []byte("\x89PNG\r\n\x1a\n0000")},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.ID == "" || got.UserID != "u1" {
		t.Fatalf("unexpected identity: %+v", got)
	}
	if got.Status != domain.StatusPending {
		t.Fatalf("status = %q; want pending", got.Status)
	}
	if got.Title != "Broken light" || got.Location != "Elm Street" {
		t.Fatalf("text not normalized: title=%q location=%q", got.Title, got.Location)
	}
	if got.Category != domain.CategoryInfrastructure {
		t.Fatalf("category = %q", got.Category)
	}
	if len(got.Attachments) != 1 {
		t.Fatalf("attachments = %d", len(got.Attachments))
	}
	a := got.Attachments[0]
	if a.ContentType != "image/png" || a.Size != 12 || a.Data != nil {
		t.Fatalf("unexpected attachment: %+v", a)
	}
	if len(c.invalidated) != 1 || c.invalidated[0] != "u1" {
		t.Fatalf("expected stats invalidation for u1, got %v", c.invalidated)
	}

	// Round trip through Get.
	back, err := svc.Get(ctx, "u1", got.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if back.Title != got.Title || back.Status != got.Status || len(back.Attachments) != 1 {
		t.Fatalf("round trip mismatch: %+v vs %+v", back, got)
	}
}

func TestComplaintService_Create_Validation(t *testing.T) {
	svc, _ := newComplaintService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		mod  func(*ComplaintInput)
	}{
		{"empty title", func(in *ComplaintInput) { in.Title = "   " }},
		{"empty description", func(in *ComplaintInput) { in.Description = "" }},
		{"bad category", func(in *ComplaintInput) { in.Category = "Weather" }},
		{"bad priority", func(in *ComplaintInput) { in.Priority = "critical" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput("x")
			tc.mod(&in)
			if _, err := svc.Create(ctx, "u1", in, nil); !errors.Is(err, ErrInvalidComplaint) {
				t.Fatalf("expected ErrInvalidComplaint, got %v", err)
			}
		})
	}

	in := validInput("x")
	in.Priority = ""
	got, err := svc.Create(ctx, "u1", in, nil)
	if err != nil || got.Priority != domain.PriorityMedium {
		t.Fatalf("default priority: got=%+v err=%v", got, err)
	}
}

func TestComplaintService_Create_AttachmentLimits(t *testing.T) {
	svc, _ := newComplaintService(t)
	svc.MaxAttachments = 1
	svc.MaxAttachmentBytes = 4
	ctx := context.Background()

	two := []AttachmentInput{{Filename: "a", Data: []byte("1")}, {Filename: "b", Data: []byte("2")}}
	if _, err := svc.Create(ctx, "u1", validInput("t"), two); !errors.Is(err, ErrTooManyAttachments) {
		t.Fatalf("expected ErrTooManyAttachments, got %v", err)
	}
	big := []AttachmentInput{{Filename: "a", Data: []byte("12345")}}
	if _, err := svc.Create(ctx, "u1", validInput("t"), big); !errors.Is(err, ErrAttachmentTooLarge) {
		t.Fatalf("expected ErrAttachmentTooLarge, got %v", err)
	}
}

func TestComplaintService_ListAndSearch(t *testing.T) {
	svc, _ := newComplaintService(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	tick := 0
	svc.Now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Minute) }

	for _, title := range []string{"Pothole", "Loud music", "Pothole again"} {
		if _, err := svc.Create(ctx, "u1", validInput(title), nil); err != nil {
			t.Fatalf("Create %s: %v", title, err)
		}
	}
	if _, err := svc.Create(ctx, "u2", validInput("Pothole elsewhere"), nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	items, p, err := svc.List(ctx, "u1", domain.Filters{Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 || p.Total != 3 || p.TotalPages != 2 || p.Page != 1 || p.Limit != 2 {
		t.Fatalf("unexpected page: n=%d p=%+v", len(items), p)
	}
	if items[0].Title != "Pothole again" {
		t.Fatalf("expected newest first, got %q", items[0].Title)
	}

	_, p, err = svc.List(ctx, "u1", domain.Filters{Page: -3, Limit: 1000})
	if err != nil || p.Page != 1 || p.Limit != 100 {
		t.Fatalf("clamp: p=%+v err=%v", p, err)
	}

	hits, _, err := svc.Search(ctx, "u1", "  pothole ", domain.Filters{})
	if err != nil || len(hits) != 2 {
		t.Fatalf("Search: n=%d err=%v", len(hits), err)
	}

	none, p, err := svc.List(ctx, "nobody", domain.Filters{})
	if err != nil || none == nil || len(none) != 0 || p.Total != 0 {
		t.Fatalf("empty list: items=%v p=%+v err=%v", none, p, err)
	}

	if _, _, err := svc.List(ctx, "u1", domain.Filters{Status: "closed"}); !errors.Is(err, ErrInvalidComplaint) {
		t.Fatalf("expected invalid filter error, got %v", err)
	}
}

func TestComplaintService_Update_Transitions(t *testing.T) {
	svc, c := newComplaintService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "u1", validInput("Broken bench"), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	inProgress := domain.StatusInProgress
	title := "Broken bench in park"
	got, err := svc.Update(ctx, "u1", created.ID, ComplaintPatch{Status: &inProgress, Title: &title})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Status != domain.StatusInProgress || got.Title != title {
		t.Fatalf("patch not applied: %+v", got)
	}

	resolved := domain.StatusResolved
	if _, err := svc.Update(ctx, "u1", created.ID, ComplaintPatch{Status: &resolved}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	pending := domain.StatusPending
	if _, err := svc.Update(ctx, "u1", created.ID, ComplaintPatch{Status: &pending}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition from resolved, got %v", err)
	}
	// Same status is allowed.
	if _, err := svc.Update(ctx, "u1", created.ID, ComplaintPatch{Status: &resolved}); err != nil {
		t.Fatalf("same-status update: %v", err)
	}

	if _, err := svc.Update(ctx, "u2", created.ID, ComplaintPatch{Title: &title}); !errors.Is(err, ErrComplaintNotFound) {
		t.Fatalf("expected ErrComplaintNotFound for foreign user, got %v", err)
	}

	blank := " "
	if _, err := svc.Update(ctx, "u1", created.ID, ComplaintPatch{Title: &blank}); !errors.Is(err, ErrInvalidComplaint) {
		t.Fatalf("expected ErrInvalidComplaint for blank title, got %v", err)
	}

	// Empty patch returns the current complaint unchanged.
	same, err := svc.Update(ctx, "u1", created.ID, ComplaintPatch{})
	if err != nil || same.Status != domain.StatusResolved {
		t.Fatalf("empty patch: got=%+v err=%v", same, err)
	}
	if len(c.invalidated) < 3 {
		t.Fatalf("expected invalidations on writes, got %v", c.invalidated)
	}
}

func TestComplaintService_DeleteAndAttachment(t *testing.T) {
	svc, _ := newComplaintService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "u1", validInput("Graffiti"), []AttachmentInput{
		{Filename: "note.txt", ContentType: "text/plain", Data: []byte("hello")},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	aid := created.Attachments[0].ID

	a, err := svc.Attachment(ctx, "u1", created.ID, aid)
	if err != nil || string(a.Data) != "hello" {
		t.Fatalf("Attachment: a=%+v err=%v", a, err)
	}
	if _, err := svc.Attachment(ctx, "u2", created.ID, aid); !errors.Is(err, ErrAttachmentNotFound) {
		t.Fatalf("expected ErrAttachmentNotFound, got %v", err)
	}

	if err := svc.Delete(ctx, "u1", created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, "u1", created.ID); !errors.Is(err, ErrComplaintNotFound) {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := svc.Get(ctx, "u1", created.ID); !errors.Is(err, ErrComplaintNotFound) {
		t.Fatalf("Get after delete: %v", err)
	}
}

func TestComplaintService_Stats_UsesCache(t *testing.T) {
	svc, c := newComplaintService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.Create(ctx, "u1", validInput("x"), nil); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	s, err := svc.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s != (domain.Stats{Total: 2, Pending: 2}) {
		t.Fatalf("stats = %+v", s)
	}
	if c.sets != 1 {
		t.Fatalf("expected one cache fill, got %d", c.sets)
	}

	// Second read is a hit: seed a sentinel and see it come back.
	c.m["u1"] = domain.Stats{Total: 42}
	s, _ = svc.Stats(ctx, "u1")
	if s.Total != 42 {
		t.Fatalf("expected cached value, got %+v", s)
	}

	// Cache errors fall through to the database.
	c.failGet = errors.New("redis down")
	s, err = svc.Stats(ctx, "u1")
	if err != nil || s.Total != 2 {
		t.Fatalf("cache failure should not fail stats: s=%+v err=%v", s, err)
	}
}

func TestComplaintService_Fingerprint(t *testing.T) {
	svc, _ := newComplaintService(t)
	ctx := context.Background()

	n, last, err := svc.Fingerprint(ctx, "u1")
	if err != nil || n != 0 {
		t.Fatalf("empty fingerprint: n=%d last=%v err=%v", n, last, err)
	}
	if _, err := svc.Create(ctx, "u1", validInput("x"), nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	n, last, err = svc.Fingerprint(ctx, "u1")
	if err != nil || n != 1 || last == nil {
		t.Fatalf("fingerprint: n=%d last=%v err=%v", n, last, err)
	}
}
