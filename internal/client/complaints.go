package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/tbourn/go-complaint-desk/internal/domain"
	"github.com/tbourn/go-complaint-desk/internal/validation"
)

// filterQuery encodes only the filters that are set.
func filterQuery(f domain.Filters) url.Values {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Category != "" {
		q.Set("category", string(f.Category))
	}
	if f.Priority != "" {
		q.Set("priority", string(f.Priority))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

func complaintPath(id string) string { return "/complaints/" + url.PathEscape(id) }

// validate runs the shared validator and maps rule failures to a local
// *Error that satisfies errors.Is(err, ErrValidation).
func validate(v any) error {
	err := validation.Struct(v)
	if err == nil {
		return nil
	}
	var fields validation.Errors
	if errors.As(err, &fields) {
		return &Error{Code: codeValidation, Message: fields.Error()}
	}
	return err
}

// ListComplaints returns the caller's complaints matching f.
func (c *Client) ListComplaints(ctx context.Context, f domain.Filters) (*ComplaintList, error) {
	var out ComplaintList
	if err := c.do(ctx, request{method: http.MethodGet, path: "/complaints", query: filterQuery(f)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchComplaints runs a free-text search; f narrows the result further.
func (c *Client) SearchComplaints(ctx context.Context, term string, f domain.Filters) (*ComplaintList, error) {
	q := filterQuery(f)
	q.Set("q", term)
	var out ComplaintList
	if err := c.do(ctx, request{method: http.MethodGet, path: "/complaints/search", query: q}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetComplaint fetches one complaint. A missing id yields ErrNotFound.
func (c *Client) GetComplaint(ctx context.Context, id string) (*domain.Complaint, error) {
	var out domain.Complaint
	if err := c.do(ctx, request{method: http.MethodGet, path: complaintPath(id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitComplaint validates d and posts it as multipart/form-data, one
// "attachments" part per file.
func (c *Client) SubmitComplaint(ctx context.Context, d Draft) (*domain.Complaint, error) {
	if err := validate(d); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := []struct{ k, v string }{
		{"title", d.Title},
		{"category", d.Category},
		{"priority", d.Priority},
		{"description", d.Description},
		{"location", d.Location},
	}
	for _, f := range fields {
		if f.v == "" {
			continue
		}
		if err := mw.WriteField(f.k, f.v); err != nil {
			return nil, err
		}
	}
	for _, f := range d.Attachments {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="attachments"; filename=%q`, f.Name))
		ct := f.ContentType
		if ct == "" {
			ct = http.DetectContentType(f.Data)
		}
		h.Set("Content-Type", ct)
		pw, err := mw.CreatePart(h)
		if err != nil {
			return nil, err
		}
		if _, err := pw.Write(f.Data); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	key := strings.TrimSpace(d.IdempotencyKey)
	if key == "" {
		key = uuid.NewString()
	}
	var out domain.Complaint
	err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/complaints",
		body:        &buf,
		contentType: mw.FormDataContentType(),
		header:      http.Header{"Idempotency-Key": []string{key}},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateComplaint sends a partial update.
func (c *Client) UpdateComplaint(ctx context.Context, id string, p Patch) (*domain.Complaint, error) {
	if err := validate(p); err != nil {
		return nil, err
	}
	body, err := jsonBody(p)
	if err != nil {
		return nil, err
	}
	var out domain.Complaint
	if err := c.do(ctx, request{method: http.MethodPatch, path: complaintPath(id), body: body, contentType: "application/json"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteComplaint removes a complaint.
func (c *Client) DeleteComplaint(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: complaintPath(id)}, nil)
}

// ComplaintStats returns per-status counts.
func (c *Client) ComplaintStats(ctx context.Context) (domain.Stats, error) {
	var out domain.Stats
	err := c.do(ctx, request{method: http.MethodGet, path: "/complaints/stats"}, &out)
	return out, err
}
