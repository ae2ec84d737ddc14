// Package apiclient talks to the error-tracking backend. Every response is a
// {success, message, data} envelope; callers receive the unwrapped data.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Notification texts surfaced for centrally handled failures.
const (
	MsgSessionExpired   = "Your session has expired, please sign in again"
	MsgForbidden        = "You do not have permission to perform this action"
	MsgNotFound         = "The requested resource does not exist"
	MsgServerError      = "The server encountered an error"
	MsgTransportFailure = "Network request failed, please check your connection"
	MsgRequestFailed    = "Request failed"
	MsgCredentials      = "Invalid username or password"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 8 << 20
)

// Notification kinds passed to Notifier.
const (
	NotifyError   = "error"
	NotifyWarning = "warning"
)

// TokenSource resolves the bearer token of the caller, empty when anonymous.
type TokenSource func(ctx context.Context) string

// Notifier surfaces a transient message to the operator.
type Notifier interface {
	Notify(ctx context.Context, kind, message string)
}

// SessionTerminator clears the signed-in identity of the caller.
type SessionTerminator interface {
	TerminateSession(ctx context.Context)
}

// Recorder observes every completed backend call.
type Recorder interface {
	ObserveBackendCall(method string, status int, elapsed time.Duration)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Tokens     TokenSource
	Notifier   Notifier
	Terminator SessionTerminator
	Recorder   Recorder
	Logger     *slog.Logger
	Now        func() time.Time
}

// Client is the single gateway to the backend. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	notifier   Notifier
	terminator SessionTerminator
	recorder   Recorder
	logger     *slog.Logger
	now        func() time.Time
}

// Envelope is the uniform backend response wrapper.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// New constructs a Client.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := &http.Client{}
	if opts.HTTPClient != nil {
		copied := *opts.HTTPClient
		httpClient = &copied
	}
	// One fixed overall timeout for every outbound call.
	httpClient.Timeout = timeout
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		tokens:     opts.Tokens,
		notifier:   opts.Notifier,
		terminator: opts.Terminator,
		recorder:   opts.Recorder,
		logger:     logger,
		now:        now,
	}
}

// Get issues a GET with optional query parameters and decodes data into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, nil, body, out)
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPatch, path, nil, body, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil, out)
}

// PostMultipart uploads a single file under field and decodes data into out.
func (c *Client) PostMultipart(ctx context.Context, path, field, filename string, content io.Reader, out any) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return c.fail(ctx, &Error{Kind: KindTransport, Method: http.MethodPost, Path: path, Err: err})
	}
	if _, err := io.Copy(part, content); err != nil {
		return c.fail(ctx, &Error{Kind: KindTransport, Method: http.MethodPost, Path: path, Err: err})
	}
	if err := writer.Close(); err != nil {
		return c.fail(ctx, &Error{Kind: KindTransport, Method: http.MethodPost, Path: path, Err: err})
	}
	return c.do(ctx, http.MethodPost, path, nil, body, writer.FormDataContentType(), out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return c.fail(ctx, &Error{Kind: KindTransport, Method: method, Path: path, Err: fmt.Errorf("encode body: %w", err)})
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, query, reader, contentType, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	token := ""
	if c.tokens != nil {
		token = c.tokens(ctx)
	}
	if token != "" && tokenExpired(token, c.now()) {
		return c.fail(ctx, &Error{Kind: KindUnauthorized, Status: http.StatusUnauthorized, Method: method, Path: path, Message: MsgSessionExpired})
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return c.fail(ctx, &Error{Kind: KindTransport, Method: method, Path: path, Err: err})
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(method, 0, start)
		return c.fail(ctx, &Error{Kind: KindTransport, Method: method, Path: path, Err: err})
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.observe(method, resp.StatusCode, start)
	if err != nil {
		return c.fail(ctx, &Error{Kind: KindTransport, Status: resp.StatusCode, Method: method, Path: path, Err: err})
	}

	if resp.StatusCode >= http.StatusBadRequest {
		e := statusError(method, path, resp.StatusCode, raw)
		if e.Kind == KindUnauthorized && token == "" {
			// No session was sent, so the backend refused the credentials.
			e.anonymous = true
			e.Message = e.Detail
			if e.Message == "" {
				e.Message = MsgCredentials
			}
		}
		return c.fail(ctx, e)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return c.fail(ctx, &Error{Kind: KindDecode, Status: resp.StatusCode, Method: method, Path: path, Err: err})
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = MsgRequestFailed
		}
		return c.fail(ctx, &Error{Kind: KindRejected, Status: resp.StatusCode, Method: method, Path: path, Message: msg})
	}
	if out == nil || len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return c.fail(ctx, &Error{Kind: KindDecode, Status: resp.StatusCode, Method: method, Path: path, Err: fmt.Errorf("decode data: %w", err)})
	}
	return nil
}

func statusError(method, path string, status int, raw []byte) *Error {
	var body struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &body)
	e := &Error{Status: status, Method: method, Path: path, Detail: body.Message}
	switch status {
	case http.StatusBadRequest:
		e.Kind = KindBadRequest
		e.Message = body.Message
		if e.Message == "" {
			e.Message = MsgRequestFailed
		}
	case http.StatusUnauthorized:
		e.Kind = KindUnauthorized
		e.Message = MsgSessionExpired
	case http.StatusForbidden:
		e.Kind = KindForbidden
		e.Message = MsgForbidden
	case http.StatusNotFound:
		e.Kind = KindNotFound
		e.Message = MsgNotFound
	case http.StatusInternalServerError:
		e.Kind = KindServer
		e.Message = MsgServerError
	default:
		e.Kind = KindTransport
		e.Message = MsgTransportFailure
	}
	return e
}

// fail applies the side effects owed for e and returns it. Rejected
// envelopes carry no side effect: the call site decides how to surface them.
func (c *Client) fail(ctx context.Context, e *Error) error {
	switch e.Kind {
	case KindRejected:
	case KindUnauthorized:
		if e.anonymous {
			break
		}
		if c.terminator != nil {
			c.terminator.TerminateSession(ctx)
		}
		c.notify(ctx, NotifyWarning, MsgSessionExpired)
	case KindTransport, KindDecode:
		if e.Message == "" {
			e.Message = MsgTransportFailure
		}
		c.notify(ctx, NotifyError, e.Message)
	default:
		c.notify(ctx, NotifyError, e.Message)
	}
	level := slog.LevelWarn
	if errors.Is(e, ErrRejected) || e.anonymous {
		level = slog.LevelDebug
	}
	c.logger.Log(ctx, level, "backend call failed",
		slog.String("method", e.Method),
		slog.String("path", e.Path),
		slog.Int("status", e.Status),
		slog.Any("error", e))
	return e
}

func (c *Client) notify(ctx context.Context, kind, message string) {
	if c.notifier != nil {
		c.notifier.Notify(ctx, kind, message)
	}
}

func (c *Client) observe(method string, status int, start time.Time) {
	if c.recorder != nil {
		c.recorder.ObserveBackendCall(method, status, c.now().Sub(start))
	}
}
