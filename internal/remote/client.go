// Package remote talks to a brewpulsed server. Client implements the store
// interfaces over its HTTP API so the sync controller and both flows run the
// same way against a hosted store as against an in-process one.
package remote

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
	"sync"
	"time"

	"brewpulse/internal/auth"
	"brewpulse/internal/order"
	"brewpulse/internal/store"
)

// DefaultTimeout bounds every request except the event stream.
const DefaultTimeout = 10 * time.Second

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	Code    int
	Kind    error
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server answered %d: %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error { return e.Kind }

type errorBody struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Client is a session-holding client of one server.
type Client struct {
	base   string
	http   *http.Client
	stream *http.Client

	mu    sync.RWMutex
	token string

	feedMu sync.Mutex
	feed   *feed
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the client used for plain requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithStreamClient replaces the client used for event streams. It must not
// carry a request timeout.
func WithStreamClient(hc *http.Client) Option {
	return func(c *Client) { c.stream = hc }
}

// WithToken starts the client with an existing session token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{Timeout: DefaultTimeout},
		stream: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current session token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the session token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// SignInAnon starts a guest session.
func (c *Client) SignInAnon(ctx context.Context) (auth.Session, error) {
	var sess auth.Session
	if err := c.do(ctx, http.MethodPost, "/api/sessions/anon", nil, &sess); err != nil {
		return sess, fmt.Errorf("guest sign-in: %w", err)
	}
	c.SetToken(sess.Token)
	return sess, nil
}

// SignInAdmin starts an admin session with the shared password.
func (c *Client) SignInAdmin(ctx context.Context, password string) (auth.Session, error) {
	var sess auth.Session
	if err := c.do(ctx, http.MethodPost, "/api/sessions/admin", map[string]string{"password": password}, &sess); err != nil {
		return sess, fmt.Errorf("admin sign-in: %w", err)
	}
	c.SetToken(sess.Token)
	return sess, nil
}

// SignOut revokes the session. The local token is dropped even if the
// server cannot be reached.
func (c *Client) SignOut(ctx context.Context) error {
	if c.Token() == "" {
		return nil
	}
	err := c.do(ctx, http.MethodDelete, "/api/sessions", nil, nil)
	c.SetToken("")
	return err
}

// Menu fetches the server's menu.
func (c *Client) Menu(ctx context.Context) (order.Menu, error) {
	var entries []order.MenuEntry
	if err := c.do(ctx, http.MethodGet, "/api/menu", nil, &entries); err != nil {
		return nil, fmt.Errorf("load menu: %w", err)
	}
	return order.MenuFromEntries(entries), nil
}

// Suggest asks the server for a drink recommendation.
func (c *Client) Suggest(ctx context.Context, mood string) (string, error) {
	var resp struct {
		Suggestion string `json:"suggestion"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/suggestions", map[string]string{"mood": mood}, &resp); err != nil {
		return "", fmt.Errorf("suggest: %w", err)
	}
	return resp.Suggestion, nil
}

// Ping checks that the server and its store answer.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/healthz", nil, nil)
}

func (c *Client) Create(ctx context.Context, d order.Draft) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/orders", d, &resp); err != nil {
		return "", writeError(ctx, "create", "", err)
	}
	return resp.ID, nil
}

func (c *Client) Update(ctx context.Context, id string, p order.Patch) error {
	if err := c.do(ctx, http.MethodPatch, "/api/orders/"+url.PathEscape(id), p, nil); err != nil {
		return writeError(ctx, "update", id, err)
	}
	return nil
}

func (c *Client) Remove(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/orders/"+url.PathEscape(id), nil, nil); err != nil {
		return writeError(ctx, "remove", id, err)
	}
	return nil
}

func (c *Client) ServiceOpen(ctx context.Context) (bool, error) {
	var resp struct {
		Open bool `json:"open"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/service", nil, &resp); err != nil {
		return false, fmt.Errorf("read service flag: %w", err)
	}
	return resp.Open, nil
}

func (c *Client) SetServiceOpen(ctx context.Context, open bool) error {
	if err := c.do(ctx, http.MethodPut, "/api/service", map[string]bool{"open": open}, nil); err != nil {
		return writeError(ctx, "set service", "", err)
	}
	return nil
}

// writeError gives a failed write the same shape the local stores use.
// Validation failures pass through untouched.
func writeError(ctx context.Context, op, id string, err error) error {
	if errors.Is(err, order.ErrValidation) || errors.Is(err, order.ErrInvalidTransition) {
		return err
	}
	var se *StatusError
	if errors.As(err, &se) {
		return &store.WriteError{Op: op, ID: id, Kind: se.Kind, Err: se}
	}
	return store.WriteFailure(ctx, op, id, err)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return responseError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// responseError turns an error answer into a validation error or a
// StatusError carrying the store error kind.
func responseError(resp *http.Response) error {
	var body errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
	}

	if body.Kind == "validation" || (resp.StatusCode == http.StatusBadRequest && body.Kind == "") {
		if body.Field != "" {
			return &order.ValidationError{Field: body.Field, Reason: body.Reason}
		}
		return fmt.Errorf("%w: %s", order.ErrValidation, body.Error)
	}

	if body.Kind == "invalid_transition" || (resp.StatusCode == http.StatusConflict && body.Kind == "") {
		return fmt.Errorf("%w: %s", order.ErrInvalidTransition, body.Error)
	}

	return &StatusError{Code: resp.StatusCode, Kind: kindOf(resp.StatusCode, body.Kind), Message: body.Error}
}

func kindOf(code int, name string) error {
	if name != "" {
		return store.KindByName(name)
	}
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return store.ErrPermissionDenied
	case http.StatusNotFound:
		return store.ErrNotFound
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return store.ErrTimeout
	default:
		return store.ErrUnavailable
	}
}
