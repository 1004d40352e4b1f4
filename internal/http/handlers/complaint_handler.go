// Complaint HTTP handlers.
//
// This file exposes REST endpoints for complaint resources:
//   - GET    /complaints                                  (list, filters, ETag)
//   - GET    /complaints/search?q=                        (free-text search)
//   - GET    /complaints/stats                            (aggregate counts)
//   - POST   /complaints                                  (submit, multipart or JSON, idempotent)
//   - GET    /complaints/{id}                             (fetch)
//   - PATCH  /complaints/{id}                             (partial update)
//   - DELETE /complaints/{id}                             (remove)
//   - GET    /complaints/{id}/attachments/{attachmentId}  (raw download)
package handlers

import (
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-complaint-desk/internal/domain"
	"github.com/tbourn/go-complaint-desk/internal/http/middleware"
	"github.com/tbourn/go-complaint-desk/internal/services"
)

//
// DTOs
//

// CreateComplaintRequest is the payload for submitting a complaint. It binds
// from JSON or from multipart form fields; files travel as repeated
// "attachments" parts.
type CreateComplaintRequest struct {
	Title       string `json:"title"       form:"title"       binding:"required,max=200"     example:"Broken streetlight on Elm St"`
	Category    string `json:"category"    form:"category"    binding:"required,category"    example:"Infrastructure"`
	Priority    string `json:"priority"    form:"priority"    binding:"omitempty,priority"   example:"high"`
	Description string `json:"description" form:"description" binding:"required,max=5000"    example:"The light has been out for a week."`
	Location    string `json:"location"    form:"location"    binding:"omitempty,max=255"    example:"Elm St & 3rd Ave"`
}

// UpdateComplaintRequest is a partial update; omitted fields are unchanged.
type UpdateComplaintRequest struct {
	Title       *string `json:"title,omitempty"       binding:"omitempty,min=1,max=200"`
	Category    *string `json:"category,omitempty"    binding:"omitempty,category"`
	Priority    *string `json:"priority,omitempty"    binding:"omitempty,priority"`
	Status      *string `json:"status,omitempty"      binding:"omitempty,status"      example:"in-progress"`
	Description *string `json:"description,omitempty" binding:"omitempty,min=1,max=5000"`
	Location    *string `json:"location,omitempty"    binding:"omitempty,max=255"`
}

// ListComplaintsResponse wraps a page of complaints and pagination metadata.
type ListComplaintsResponse struct {
	Complaints []domain.Complaint `json:"complaints"`
	Pagination domain.Pagination  `json:"pagination"`
}

//
// Helpers
//

// filtersFromQuery reads status, category, priority, search, page and limit.
// Category accepts any casing; unknown values are rejected by the service.
func filtersFromQuery(c *gin.Context) domain.Filters {
	page, limit := clampPagination(c)
	f := domain.Filters{
		Status:   domain.Status(strings.ToLower(strings.TrimSpace(c.Query("status")))),
		Priority: domain.Priority(strings.ToLower(strings.TrimSpace(c.Query("priority")))),
		Search:   strings.TrimSpace(c.Query("search")),
		Page:     page,
		Limit:    limit,
	}
	if raw := strings.TrimSpace(c.Query("category")); raw != "" {
		if cat, ok := domain.ParseCategory(raw); ok {
			f.Category = cat
		} else {
			f.Category = domain.Category(raw)
		}
	}
	return f
}

// complaintsETag derives a weak validator from the user's complaint
// fingerprint and the query, so different filters never share an ETag.
func (h *Handlers) complaintsETag(c *gin.Context, uid string) (string, bool) {
	count, latest, err := h.complaints.Fingerprint(c.Request.Context(), uid)
	if err != nil {
		return "", false
	}
	var ts int64
	if latest != nil {
		ts = latest.UnixNano()
	}
	q := fnv.New32a()
	_, _ = io.WriteString(q, c.Request.URL.Path+"?"+c.Request.URL.Query().Encode())
	return fmt.Sprintf(`W/"complaints:%s:%d:%d:%x"`, uid, count, ts, q.Sum32()), true
}

// complaintError maps service errors to HTTP responses.
func complaintError(c *gin.Context, err error, fallbackCode string) {
	switch {
	case errors.Is(err, services.ErrComplaintNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "complaint not found")
	case errors.Is(err, services.ErrAttachmentNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "attachment not found")
	case errors.Is(err, services.ErrInvalidComplaint):
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, services.ErrTooManyAttachments):
		fail(c, http.StatusBadRequest, ErrCodeTooManyAttachments, err.Error())
	case errors.Is(err, services.ErrAttachmentTooLarge):
		fail(c, http.StatusRequestEntityTooLarge, ErrCodeAttachmentTooLarge, err.Error())
	case errors.Is(err, services.ErrInvalidTransition):
		fail(c, http.StatusConflict, ErrCodeInvalidTransition, err.Error())
	default:
		fail(c, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}

// readAttachments loads the "attachments" parts of a multipart form, enforcing
// the configured count and size limits before anything reaches the service.
func (h *Handlers) readAttachments(form *multipart.Form) ([]services.AttachmentInput, error) {
	if form == nil {
		return nil, nil
	}
	parts := form.File["attachments"]
	if len(parts) > h.opts.MaxAttachments {
		return nil, fmt.Errorf("%w: at most %d files", services.ErrTooManyAttachments, h.opts.MaxAttachments)
	}
	out := make([]services.AttachmentInput, 0, len(parts))
	for _, fh := range parts {
		if fh.Size > h.opts.MaxAttachmentBytes {
			return nil, fmt.Errorf("%w: %s exceeds %d bytes", services.ErrAttachmentTooLarge, fh.Filename, h.opts.MaxAttachmentBytes)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(io.LimitReader(f, h.opts.MaxAttachmentBytes+1))
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > h.opts.MaxAttachmentBytes {
			return nil, fmt.Errorf("%w: %s exceeds %d bytes", services.ErrAttachmentTooLarge, fh.Filename, h.opts.MaxAttachmentBytes)
		}
		out = append(out, services.AttachmentInput{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return out, nil
}

func validID(c *gin.Context, param, what string) (string, bool) {
	id := c.Param(param)
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, what+" id must be a UUID")
		return "", false
	}
	return id, true
}

//
// Handlers
//

// ListComplaints godoc
// @ID          listComplaints
// @Summary     List complaints (filtered, paginated)
// @Description Returns the caller's complaints, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Complaints
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       status         query   string  false "Status filter"   Enums(pending, in-progress, resolved, rejected)
// @Param       category       query   string  false "Category filter" example(Infrastructure)
// @Param       priority       query   string  false "Priority filter" Enums(low, medium, high, urgent)
// @Param       search         query   string  false "Free-text filter"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       limit          query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListComplaintsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /complaints [get]
func (h *Handlers) ListComplaints(c *gin.Context) {
	uid := userID(c)

	if etag, ok := h.complaintsETag(c, uid); ok {
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, p, err := h.complaints.List(c.Request.Context(), uid, filtersFromQuery(c))
	if err != nil {
		complaintError(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListComplaintsResponse{Complaints: items, Pagination: p})
}

// SearchComplaints godoc
// @ID          searchComplaints
// @Summary     Search complaints
// @Description Matches q against title, description and location; the list filters also apply.
// @Tags        Complaints
// @Produce     json
//
// @Param       q         query   string  true  "Search term"  example(pothole)
// @Param       status    query   string  false "Status filter"
// @Param       category  query   string  false "Category filter"
// @Param       priority  query   string  false "Priority filter"
// @Param       page      query   int     false "Page number"     minimum(1) default(1)
// @Param       limit     query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListComplaintsResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /complaints/search [get]
func (h *Handlers) SearchComplaints(c *gin.Context) {
	term := strings.TrimSpace(c.Query("q"))
	if term == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "q is required")
		return
	}
	items, p, err := h.complaints.Search(c.Request.Context(), userID(c), term, filtersFromQuery(c))
	if err != nil {
		complaintError(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListComplaintsResponse{Complaints: items, Pagination: p})
}

// ComplaintStats godoc
// @ID          complaintStats
// @Summary     Complaint counts
// @Description Returns total, pending, resolved and rejected counts for the caller.
// @Tags        Complaints
// @Produce     json
// @Success     200  {object} domain.Stats
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /complaints/stats [get]
func (h *Handlers) ComplaintStats(c *gin.Context) {
	st, err := h.complaints.Stats(c.Request.Context(), userID(c))
	if err != nil {
		complaintError(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, st)
}

// CreateComplaint godoc
// @ID          createComplaint
// @Summary     Submit a complaint
// @Description Accepts multipart/form-data (fields plus repeated "attachments" files) or JSON.
// @Description The status is always set to pending. A repeated Idempotency-Key returns the
// @Description originally created complaint with Idempotency-Replayed: true.
// @Tags        Complaints
// @Accept      multipart/form-data
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header    string  false "Idempotency key for safe retries"
// @Param       title            formData  string  true  "Title"
// @Param       category         formData  string  true  "Category"
// @Param       priority         formData  string  false "Priority"  Enums(low, medium, high, urgent)
// @Param       description      formData  string  true  "Description"
// @Param       location         formData  string  false "Location"
// @Param       attachments      formData  file    false "Attachment (repeatable)"
//
// @Success     201  {object} domain.Complaint
// @Header      201  {string} Idempotency-Replayed "true when served from a previous request"
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     413  {object} handlers.ErrorResponse "Attachment too large"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /complaints [post]
func (h *Handlers) CreateComplaint(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	if rid, replay := middleware.ReplayResource(c); replay {
		if prev, err := h.complaints.Get(ctx, uid, rid); err == nil {
			c.Header("Idempotency-Replayed", "true")
			ok(c, http.StatusCreated, prev)
			return
		}
	}

	var req CreateComplaintRequest
	if err := c.ShouldBind(&req); err != nil {
		failValidation(c, err)
		return
	}

	var files []services.AttachmentInput
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		form, err := c.MultipartForm()
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed multipart body")
			return
		}
		if files, err = h.readAttachments(form); err != nil {
			complaintError(c, err, ErrCodeCreateFailed)
			return
		}
	}

	cat, _ := domain.ParseCategory(req.Category)
	in := services.ComplaintInput{
		Title:       req.Title,
		Category:    cat,
		Priority:    domain.Priority(strings.ToLower(req.Priority)),
		Description: req.Description,
		Location:    req.Location,
	}
	cmp, err := h.complaints.Create(ctx, uid, in, files)
	if err != nil {
		complaintError(c, err, ErrCodeCreateFailed)
		return
	}

	h.remember(c, cmp.ID, http.StatusCreated)
	c.Header("Location", strings.TrimSuffix(c.FullPath(), "/")+"/"+cmp.ID)
	ok(c, http.StatusCreated, cmp)
}

// GetComplaint godoc
// @ID          getComplaint
// @Summary     Fetch a complaint
// @Tags        Complaints
// @Produce     json
// @Param       id   path  string  true  "Complaint ID (UUID)"  format(uuid)
// @Success     200  {object} domain.Complaint
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Complaint not found"
// @Router      /complaints/{id} [get]
func (h *Handlers) GetComplaint(c *gin.Context) {
	id, valid := validID(c, "id", "complaint")
	if !valid {
		return
	}
	cmp, err := h.complaints.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		complaintError(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, cmp)
}

// UpdateComplaint godoc
// @ID          updateComplaint
// @Summary     Update a complaint
// @Description Applies a partial update. Status changes follow the lifecycle
// @Description pending → in-progress → resolved|rejected; resolved and rejected are final.
// @Tags        Complaints
// @Accept      json
// @Produce     json
// @Param       id    path  string  true  "Complaint ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateComplaintRequest  true  "Fields to change"
// @Success     200  {object} domain.Complaint
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     404  {object} handlers.ErrorResponse "Complaint not found"
// @Failure     409  {object} handlers.ErrorResponse "Status transition not allowed"
// @Router      /complaints/{id} [patch]
func (h *Handlers) UpdateComplaint(c *gin.Context) {
	id, valid := validID(c, "id", "complaint")
	if !valid {
		return
	}
	var req UpdateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}

	patch := services.ComplaintPatch{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
	}
	if req.Category != nil {
		cat, _ := domain.ParseCategory(*req.Category)
		patch.Category = &cat
	}
	if req.Priority != nil {
		p := domain.Priority(strings.ToLower(*req.Priority))
		patch.Priority = &p
	}
	if req.Status != nil {
		s := domain.Status(strings.ToLower(*req.Status))
		patch.Status = &s
	}

	cmp, err := h.complaints.Update(c.Request.Context(), userID(c), id, patch)
	if err != nil {
		complaintError(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, cmp)
}

// DeleteComplaint godoc
// @ID          deleteComplaint
// @Summary     Delete a complaint
// @Tags        Complaints
// @Param       id   path  string  true  "Complaint ID (UUID)"  format(uuid)
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Complaint not found"
// @Router      /complaints/{id} [delete]
func (h *Handlers) DeleteComplaint(c *gin.Context) {
	id, valid := validID(c, "id", "complaint")
	if !valid {
		return
	}
	if err := h.complaints.Delete(c.Request.Context(), userID(c), id); err != nil {
		complaintError(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}

// DownloadAttachment godoc
// @ID          downloadAttachment
// @Summary     Download an attachment
// @Tags        Complaints
// @Produce     octet-stream
// @Param       id            path  string  true  "Complaint ID (UUID)"   format(uuid)
// @Param       attachmentId  path  string  true  "Attachment ID (UUID)"  format(uuid)
// @Success     200  {file}   file
// @Failure     404  {object} handlers.ErrorResponse "Attachment not found"
// @Router      /complaints/{id}/attachments/{attachmentId} [get]
func (h *Handlers) DownloadAttachment(c *gin.Context) {
	id, valid := validID(c, "id", "complaint")
	if !valid {
		return
	}
	aid, valid := validID(c, "attachmentId", "attachment")
	if !valid {
		return
	}
	att, err := h.complaints.Attachment(c.Request.Context(), userID(c), id, aid)
	if err != nil {
		complaintError(c, err, ErrCodeInternal)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(att.Filename))
	c.Data(http.StatusOK, att.ContentType, att.Data)
}
