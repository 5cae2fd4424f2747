// Package api is the JSON-over-HTTP client for the Inner City backend.
//
// Every call is a single attempt: there is no retry policy, and callers decide
// whether to try again. Failures come in two flavours that callers branch on:
// the server answered but refused (*Error, matching ErrRejected), or no response
// arrived at all (ErrOffline).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrOffline marks failures where no HTTP response was received.
	ErrOffline = errors.New("server unreachable")
	// ErrRejected matches every *Error.
	ErrRejected = errors.New("request rejected")
)

// Error is a response the server answered with a non-2xx status or success=false.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	return target == ErrRejected
}

// IsOffline reports whether err means the backend could not be reached.
func IsOffline(err error) bool {
	return errors.Is(err, ErrOffline)
}

// Client sends requests to the backend rooted at baseURL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets a per-request timeout. Zero means none.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

// Do sends one request. body, when non-nil, is sent as JSON; out, when non-nil,
// receives the decoded response body.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	log := c.logger.With(
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
	)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s %s: %w", method, path, ctxErr)
		}
		log.Warn("backend unreachable", zap.Error(err), zap.Duration("latency", time.Since(start)))
		return fmt.Errorf("%w: %s %s: %v", ErrOffline, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn("read response", zap.Error(err))
		return fmt.Errorf("%w: read response: %v", ErrOffline, err)
	}
	log.Debug("backend response", zap.Int("status", resp.StatusCode), zap.Duration("latency", time.Since(start)))

	// An absent or non-JSON body is treated as {}.
	var env envelope
	parsed := len(bytes.TrimSpace(raw)) > 0 && json.Unmarshal(raw, &env) == nil

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok || (env.Success != nil && !*env.Success) {
		msg := env.Error
		if msg == "" {
			msg = statusMessage(resp.StatusCode)
		}
		log.Info("backend rejected request", zap.Int("status", resp.StatusCode), zap.String("error", msg))
		return &Error{Status: resp.StatusCode, Message: msg}
	}

	if out != nil && parsed {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

func statusMessage(status int) string {
	if status >= 200 && status < 300 {
		return "запрос отклонён сервером"
	}
	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("%d %s", status, text)
	}
	return fmt.Sprintf("request failed with status %d", status)
}
