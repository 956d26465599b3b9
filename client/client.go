// Package client talks to the comment API over HTTP.
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
	"strconv"
	"strings"
	"time"

	"github.com/folio/portfolio/models"
)

const defaultTimeout = 10 * time.Second

// ErrTransport marks failures to complete an exchange with the server:
// dial errors, timeouts, and bodies that are not a response envelope.
var ErrTransport = errors.New("comment api unreachable")

// APIError is a failure the server reported in the response envelope.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("comment api: %s (status %d)", e.Message, e.Status)
}

// Submitted is the server's answer to a successful submit.
type Submitted struct {
	Message string            `json:"message"`
	Comment models.CommentDTO `json:"comment"`
}

// Settings are the client parameters advertised by the server.
type Settings struct {
	PollIntervalMS   int64 `json:"poll_interval_ms"`
	PageLimit        int   `json:"page_limit"`
	MaxNameLength    int   `json:"max_name_length"`
	MaxMessageLength int   `json:"max_message_length"`
}

// PollInterval returns the advertised interval as a duration.
func (s Settings) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMS) * time.Millisecond
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Client is a comment API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ListSince fetches up to limit comments with id greater than afterID, oldest first.
func (c *Client) ListSince(ctx context.Context, afterID uint64, limit int) ([]models.CommentDTO, error) {
	q := url.Values{}
	q.Set("after_id", strconv.FormatUint(afterID, 10))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/comments?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		Comments []models.CommentDTO `json:"comments"`
	}
	if err := c.do(req, &data); err != nil {
		return nil, err
	}
	if data.Comments == nil {
		data.Comments = []models.CommentDTO{}
	}
	return data.Comments, nil
}

// Submit posts a new comment.
func (c *Client) Submit(ctx context.Context, in models.CommentInput) (*Submitted, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/comments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out Submitted
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Settings fetches the server's client settings.
func (c *Client) Settings(ctx context.Context) (*Settings, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/comments/config", nil)
	if err != nil {
		return nil, err
	}
	var s Settings
	if err := c.do(req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// do executes req and decodes the envelope whatever the status code.
func (c *Client) do(req *http.Request, data interface{}) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: status %d: undecodable body: %v", ErrTransport, resp.StatusCode, err)
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if data == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, data); err != nil {
		return fmt.Errorf("%w: decode data: %v", ErrTransport, err)
	}
	return nil
}
