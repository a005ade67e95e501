// internal/api/client.go
package api

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

	"github.com/jason-s-yu/clique/internal/middleware"
	"github.com/sirupsen/logrus"
)

// TokenSource supplies the bearer token for authenticated calls. An empty token or an
// error means there is no session.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client is the single gateway between the state holders and the REST API. It makes one
// attempt per call and never retries.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
	logger  *logrus.Logger
	timeout time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its transport is still wrapped with
// request logging.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		cp := *hc
		c.http = &cp
	}
}

// WithLogger sets the logger used for request logging.
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTimeout bounds every call. Zero leaves calls unbounded, which is the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient builds a gateway for baseURL. tokens may be nil if only unauthenticated calls
// are made.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{},
		tokens:  tokens,
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		c.http.Timeout = c.timeout
	}
	c.http.Transport = middleware.LogTransport(c.logger, c.http.Transport)
	return c, nil
}

// statusErrors maps the status codes a particular endpoint gives meaning to.
type statusErrors struct {
	unauthorized error // 401, defaults to ErrUnauthorized
	notFound     error // 404
	conflict     func(body []byte) error
}

type request struct {
	method string
	path   string
	body   interface{}

	// authed requests attach the session token; bearer overrides it.
	authed bool
	bearer string

	errs statusErrors
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

// do performs r and decodes a 2xx body into out (when out is non-nil).
func (c *Client) do(ctx context.Context, r request, out interface{}) error {
	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("failed to encode %s payload: %w", r.path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.endpoint(r.path), body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if r.authed {
		token := r.bearer
		if token == "" {
			token, err = c.token(ctx)
			if err != nil {
				return err
			}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading %s body: %v", ErrInvalidResponse, r.path, err)
	}

	if err := r.errs.classify(resp.StatusCode, respBody); err != nil {
		c.logger.WithFields(logrus.Fields{
			"path":   r.path,
			"status": resp.StatusCode,
		}).Debug("API call rejected")
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrInvalidResponse, r.path, err)
	}
	return nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", ErrUnauthorized
	}
	token, err := c.tokens.Token(ctx)
	if err != nil || token == "" {
		return "", ErrUnauthorized
	}
	return token, nil
}

func (e statusErrors) classify(status int, body []byte) error {
	switch {
	case status >= 200 && status <= 299:
		return nil
	case status == http.StatusUnauthorized:
		if e.unauthorized != nil {
			return e.unauthorized
		}
		return ErrUnauthorized
	case status == http.StatusNotFound && e.notFound != nil:
		return e.notFound
	case status == http.StatusConflict && e.conflict != nil:
		return e.conflict(body)
	default:
		return fmt.Errorf("%w: status %d", ErrRequestFailed, status)
	}
}

// serverMessage pulls a human message out of an error body such as
// {"message": "..."} or {"error": "..."}.
func serverMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

// IsAuthFailure reports whether err means the session is no longer valid.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
