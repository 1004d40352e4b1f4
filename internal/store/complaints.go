package store

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-complaint-desk/internal/client"
	"github.com/tbourn/go-complaint-desk/internal/domain"
)

const complaintStoreName = "complaints"

// ComplaintState is a snapshot of ComplaintStore.
//
// Complaints keeps server order. Stats is adjusted optimistically by
// Submit and Remove and may drift from the server until FetchStats.
type ComplaintState struct {
	Complaints []domain.Complaint
	Current    *domain.Complaint
	Stats      domain.Stats
	Filters    domain.Filters
	Pagination domain.Pagination
	Loading    bool
	Error      *Failure

	// latest list request issued; only set when fencing is on.
	listSeq uint64
}

// FilterPatch is a partial Filters update. Nil fields are left as they are;
// a pointer to "" clears the filter.
type FilterPatch struct {
	Status   *domain.Status
	Category *domain.Category
	Priority *domain.Priority
	Search   *string
}

func initialComplaintState() ComplaintState {
	return ComplaintState{Pagination: domain.Pagination{Page: 1, Limit: 20}}
}

// complaintAction is a ComplaintStore transition.
type complaintAction interface{ complaintAction() }

type (
	loadStarted struct{ seq uint64 }
	loadFailed  struct {
		seq     uint64
		failure *Failure
	}
	listLoaded struct {
		seq        uint64
		complaints []domain.Complaint
		pagination *domain.Pagination
	}
	currentLoaded   struct{ complaint domain.Complaint }
	complaintAdded  struct{ complaint domain.Complaint }
	complaintSaved  struct{ complaint domain.Complaint }
	complaintGone   struct{ id string }
	statsLoaded     struct{ stats domain.Stats }
	filtersMerged   struct{ patch FilterPatch }
	complaintErrOff struct{}
	complaintsReset struct{}
)

func (loadStarted) complaintAction()     {}
func (loadFailed) complaintAction()      {}
func (listLoaded) complaintAction()      {}
func (currentLoaded) complaintAction()   {}
func (complaintAdded) complaintAction()  {}
func (complaintSaved) complaintAction()  {}
func (complaintGone) complaintAction()   {}
func (statsLoaded) complaintAction()     {}
func (filtersMerged) complaintAction()   {}
func (complaintErrOff) complaintAction() {}
func (complaintsReset) complaintAction() {}

// reduceComplaints is the pure transition function. It never mutates slices
// held by s; changed slices are rebuilt.
func reduceComplaints(s ComplaintState, a complaintAction) ComplaintState {
	switch a := a.(type) {
	case loadStarted:
		if a.seq > s.listSeq {
			s.listSeq = a.seq
		}
		s.Loading = true
		s.Error = nil

	case loadFailed:
		if a.seq != 0 && a.seq < s.listSeq {
			return s
		}
		s.Loading = false
		s.Error = a.failure

	case listLoaded:
		if a.seq != 0 && a.seq < s.listSeq {
			return s
		}
		s.Complaints = append([]domain.Complaint(nil), a.complaints...)
		if a.pagination != nil {
			s.Pagination = *a.pagination
		}
		if s.Current != nil {
			for _, c := range s.Complaints {
				if c.ID == s.Current.ID {
					s.Current = &c
					break
				}
			}
		}
		s.Loading = false

	case currentLoaded:
		c := a.complaint
		s.Current = &c
		s.Loading = false

	case complaintAdded:
		list := make([]domain.Complaint, 0, len(s.Complaints)+1)
		list = append(list, a.complaint)
		s.Complaints = append(list, s.Complaints...)
		s.Stats.Total++
		s.Stats.Pending++
		s.Loading = false

	case complaintSaved:
		list := make([]domain.Complaint, len(s.Complaints))
		for i, c := range s.Complaints {
			if c.ID == a.complaint.ID {
				c = a.complaint
			}
			list[i] = c
		}
		s.Complaints = list
		if s.Current != nil && s.Current.ID == a.complaint.ID {
			c := a.complaint
			s.Current = &c
		}
		s.Loading = false

	case complaintGone:
		var prior *domain.Complaint
		list := make([]domain.Complaint, 0, len(s.Complaints))
		for i := range s.Complaints {
			if s.Complaints[i].ID == a.id {
				if prior == nil {
					prior = &s.Complaints[i]
				}
				continue
			}
			list = append(list, s.Complaints[i])
		}
		s.Complaints = list
		if s.Current != nil && s.Current.ID == a.id {
			s.Current = nil
		}
		s.Stats.Total = decr(s.Stats.Total)
		if prior != nil {
			switch prior.Status {
			case domain.StatusPending:
				s.Stats.Pending = decr(s.Stats.Pending)
			case domain.StatusResolved:
				s.Stats.Resolved = decr(s.Stats.Resolved)
			case domain.StatusRejected:
				s.Stats.Rejected = decr(s.Stats.Rejected)
			}
		}
		s.Loading = false

	case statsLoaded:
		s.Stats = a.stats

	case filtersMerged:
		if a.patch.Status != nil {
			s.Filters.Status = *a.patch.Status
		}
		if a.patch.Category != nil {
			s.Filters.Category = *a.patch.Category
		}
		if a.patch.Priority != nil {
			s.Filters.Priority = *a.patch.Priority
		}
		if a.patch.Search != nil {
			s.Filters.Search = *a.patch.Search
		}

	case complaintErrOff:
		s.Error = nil

	case complaintsReset:
		n := initialComplaintState()
		n.listSeq = s.listSeq
		return n

	default:
		panic("store: unhandled complaint action")
	}
	return s
}

func decr(n int) int {
	if n <= 0 {
		return 0
	}
	return n - 1
}

func cloneComplaint(c domain.Complaint) domain.Complaint {
	if c.Attachments != nil {
		c.Attachments = append([]domain.Attachment(nil), c.Attachments...)
	}
	return c
}

func cloneComplaintState(s ComplaintState) ComplaintState {
	if s.Complaints != nil {
		list := make([]domain.Complaint, len(s.Complaints))
		for i, c := range s.Complaints {
			list[i] = cloneComplaint(c)
		}
		s.Complaints = list
	}
	if s.Current != nil {
		c := cloneComplaint(*s.Current)
		s.Current = &c
	}
	if s.Error != nil {
		f := *s.Error
		s.Error = &f
	}
	return s
}

// ComplaintStore is the client-side view of the caller's complaints.
type ComplaintStore struct {
	api  ComplaintAPI
	log  zerolog.Logger
	c    *container[ComplaintState, complaintAction]
	seq  atomic.Uint64
	fenc bool
}

// NewComplaintStore creates an empty store over api.
func NewComplaintStore(api ComplaintAPI, opts ...Option) *ComplaintStore {
	o := buildOptions("complaint_store", opts)
	return &ComplaintStore{
		api:  api,
		log:  o.log,
		c:    newContainer(initialComplaintState(), reduceComplaints, cloneComplaintState),
		fenc: o.fencing,
	}
}

// State returns a snapshot; callers may modify it freely.
func (s *ComplaintStore) State() ComplaintState { return s.c.snapshot() }

// Subscribe calls fn with a snapshot after every transition. The returned
// func removes the listener.
func (s *ComplaintStore) Subscribe(fn func(ComplaintState)) func() { return s.c.subscribe(fn) }

func (s *ComplaintStore) nextListSeq() uint64 {
	if !s.fenc {
		return 0
	}
	return s.seq.Add(1)
}

func (s *ComplaintStore) fail(seq uint64, err error) error {
	s.c.dispatch(loadFailed{seq: seq, failure: normalize(err)})
	return err
}

// FetchAll replaces the list with the server's view for f. Pagination is
// replaced only when the response carries it. The result is stored as
// returned, without filtering locally.
func (s *ComplaintStore) FetchAll(ctx context.Context, f domain.Filters) error {
	seq := s.nextListSeq()
	s.c.dispatch(loadStarted{seq: seq})
	res, err := s.api.ListComplaints(ctx, f)
	if err != nil {
		return s.fail(seq, err)
	}
	s.c.dispatch(listLoaded{seq: seq, complaints: res.Complaints, pagination: res.Pagination})
	return nil
}

// Search is FetchAll through the search endpoint.
func (s *ComplaintStore) Search(ctx context.Context, term string, f domain.Filters) error {
	seq := s.nextListSeq()
	s.c.dispatch(loadStarted{seq: seq})
	res, err := s.api.SearchComplaints(ctx, term, f)
	if err != nil {
		return s.fail(seq, err)
	}
	s.c.dispatch(listLoaded{seq: seq, complaints: res.Complaints, pagination: res.Pagination})
	return nil
}

// FetchOne loads id into Current. A missing complaint returns an error
// matching client.ErrNotFound.
func (s *ComplaintStore) FetchOne(ctx context.Context, id string) (*domain.Complaint, error) {
	s.c.dispatch(loadStarted{})
	c, err := s.api.GetComplaint(ctx, id)
	if err != nil {
		return nil, s.fail(0, err)
	}
	s.c.dispatch(currentLoaded{complaint: *c})
	return c, nil
}

// Submit sends d and prepends the created complaint.
func (s *ComplaintStore) Submit(ctx context.Context, d client.Draft) (*domain.Complaint, error) {
	s.c.dispatch(loadStarted{})
	c, err := s.api.SubmitComplaint(ctx, d)
	if err != nil {
		return nil, s.fail(0, err)
	}
	s.c.dispatch(complaintAdded{complaint: *c})
	return c, nil
}

// Update applies p and swaps the returned complaint into the list and
// Current, matched by id.
func (s *ComplaintStore) Update(ctx context.Context, id string, p client.Patch) (*domain.Complaint, error) {
	s.c.dispatch(loadStarted{})
	c, err := s.api.UpdateComplaint(ctx, id, p)
	if err != nil {
		return nil, s.fail(0, err)
	}
	s.c.dispatch(complaintSaved{complaint: *c})
	return c, nil
}

// Remove deletes id. Total and the bucket for the removed item's status are
// decremented, never below zero; an id not in the list only touches Total.
func (s *ComplaintStore) Remove(ctx context.Context, id string) error {
	s.c.dispatch(loadStarted{})
	if err := s.api.DeleteComplaint(ctx, id); err != nil {
		return s.fail(0, err)
	}
	s.c.dispatch(complaintGone{id: id})
	return nil
}

// FetchStats replaces Stats with the server aggregate. Failures are logged
// and counted; Loading and Error are not touched.
func (s *ComplaintStore) FetchStats(ctx context.Context) {
	st, err := s.api.ComplaintStats(ctx)
	if err != nil {
		advisory(s.log, complaintStoreName, "stats", err)
		return
	}
	s.c.dispatch(statsLoaded{stats: st})
}

// SetFilters merges p into Filters. No request is made.
func (s *ComplaintStore) SetFilters(p FilterPatch) { s.c.dispatch(filtersMerged{patch: p}) }

// ClearError drops the current error.
func (s *ComplaintStore) ClearError() { s.c.dispatch(complaintErrOff{}) }

// Reset restores the initial state.
func (s *ComplaintStore) Reset() { s.c.dispatch(complaintsReset{}) }
