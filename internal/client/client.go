// Package client is the HTTP client for the complaint desk API. The stores
// in internal/store call it; complaintctl builds one from the environment.
//
// Non-2xx answers become *Error; classify them with errors.Is against
// ErrNotFound and ErrValidation. Network failures wrap ErrTransport.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/tbourn/go-complaint-desk/internal/config"
	"github.com/tbourn/go-complaint-desk/internal/observability"
)

const (
	defaultBaseURL = "http://localhost:8080/api/v1"
	defaultTimeout = 10 * time.Second
	defaultUA      = "complaint-desk-client"
	maxErrorBody   = 8 << 10
)

// Options configures the Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string

	// Token is sent as a bearer token when set.
	Token string
	// UserID is sent as X-User-ID when set (demo servers without auth).
	UserID string

	// HTTPClient overrides the transport (tests); Timeout is then ignored.
	HTTPClient *http.Client
}

// Client talks to the REST API. It is safe for concurrent use.
type Client struct {
	http *http.Client
	opts Options
	log  zerolog.Logger
}

// New creates a Client with defaults for empty options.
func New(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = defaultBaseURL
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	hc := o.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: o.Timeout}
	}
	return &Client{http: hc, opts: o, log: observability.Named("client")}
}

// FromConfig builds a Client from the CLIENT_* / API_* settings.
func FromConfig(cfg config.ClientConfig) *Client {
	return New(Options{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Token:   cfg.Token,
		UserID:  cfg.UserID,
	})
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string { return c.opts.BaseURL }

// request describes one API call.
type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	header      http.Header
}

// jsonBody encodes v for a request body.
func jsonBody(v any) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(b), nil
}

// do sends r and decodes a 2xx JSON body into out (when non-nil).
func (c *Client) do(ctx context.Context, r request, out any) error {
	u := c.opts.BaseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	for k, vv := range r.header {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.opts.UserAgent)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}
	if c.opts.UserID != "" {
		req.Header.Set("X-User-ID", c.opts.UserID)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, r.method, r.path, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", r.method).
		Str("path", r.path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Str("request_id", resp.Header.Get("X-Request-ID")).
		Msg("api response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", r.method, r.path, err)
	}
	return nil
}

// decodeError reads the error envelope; non-JSON bodies become the message.
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	e := &Error{Status: resp.StatusCode, RequestID: resp.Header.Get("X-Request-ID")}

	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && (env.Message != "" || env.Code != "") {
		e.Code, e.Message, e.Response = env.Code, env.Message, env.Response
		if env.RequestID != "" {
			e.RequestID = env.RequestID
		}
		return e
	}
	e.Message = strings.TrimSpace(string(body))
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}

// AsError unwraps err into *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
