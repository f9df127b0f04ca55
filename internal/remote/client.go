// Package remote is a ports.Store backed by the shop's REST API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"duka/internal/core"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for baseURL, e.g. "http://10.0.0.5:5000/api".
func New(baseURL, token string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid remote API URL %q", baseURL)
	}
	c := &Client{
		baseURL:    u.String(),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// do sends body as JSON and decodes the envelope's data into out. kind and
// id describe the addressed resource for NotFound errors.
func (c *Client) do(ctx context.Context, method, path string, body, out any, kind core.EntityKind, id string) error {
	op := strings.ToLower(method) + " " + path

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", op, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &core.IOError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &core.IOError{Op: op, Err: err}
	}
	c.logger.DebugContext(ctx, "Remote API call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	// Bodies are usually wrapped in {"data": ..., "message": ...}; bare
	// payloads are decoded as they are.
	var env map[string]json.RawMessage
	_ = json.Unmarshal(raw, &env)
	var msg string
	if m, ok := env["message"]; ok {
		_ = json.Unmarshal(m, &msg)
	}

	if err := statusError(resp.StatusCode, msg, op, kind, id); err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	data, wrapped := env["data"]
	if !wrapped {
		data = raw
	}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &core.IOError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// statusError maps an HTTP status onto the domain error taxonomy.
func statusError(status int, msg, op string, kind core.EntityKind, id string) error {
	switch {
	case status < 300:
		return nil
	case status == http.StatusNotFound:
		return &core.NotFoundError{Kind: kind, ID: id}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity || status == http.StatusConflict:
		if msg == "" {
			msg = "request rejected by server"
		}
		reason := core.ReasonInvalidValue
		if strings.Contains(strings.ToLower(msg), "insufficient") {
			reason = core.ReasonInsufficientStock
		}
		return core.NewValidationError("", reason, msg)
	default:
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &core.IOError{Op: op, Err: fmt.Errorf("status %d: %s", status, msg)}
	}
}

var errMissingProduct = errors.New("stock movement without product")
