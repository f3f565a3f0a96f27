// Package apiclient talks to the appliance admin API.
//
// Every response is expected to be a JSON envelope {"code": int, "result": any}.
// A status outside 200/201, a non-zero code or an undecodable body is reported
// as *HTTPError carrying the status and the raw body.
package apiclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/connectbox/console/pkg/common/logger"
)

// HTTPError is the single error shape produced by the client.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("appliance api: status %d: %s", e.Status, truncate(e.Body, 200))
}

// IsUnauthorized reports whether err carries a 401 from the appliance.
func IsUnauthorized(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status == http.StatusUnauthorized
}

// StatusOf returns the appliance status carried by err, or 0.
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}

type envelope struct {
	Code   int             `json:"code"`
	Result json.RawMessage `json:"result"`
}

// Client issues requests relative to a fixed base URL.
type Client struct {
	base string
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets a per-request timeout; zero means none.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New returns a client for the API rooted at baseURL (e.g. "http://box/admin/api/").
func New(baseURL string, opts ...Option) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	c := &Client{base: baseURL, http: &http.Client{}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BasicToken builds the Authorization value used at login.
func BasicToken(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}

func (c *Client) Get(ctx context.Context, path, token string) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, path, token, nil)
}

func (c *Client) Put(ctx context.Context, path, token string, payload any) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPut, path, token, payload)
}

func (c *Client) Post(ctx context.Context, path, token string, payload any) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPost, path, token, payload)
}

func (c *Client) Delete(ctx context.Context, path, token string) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodDelete, path, token, nil)
}

// Do performs one request and unwraps the envelope. The returned value is the
// envelope's result when present, otherwise the whole body.
func (c *Client) Do(ctx context.Context, method, path, token string, payload any) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, "apiclient: encode payload")
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+strings.TrimPrefix(path, "/"), body)
	if err != nil {
		return nil, errors.Wrap(err, "apiclient: build request")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json;charset=utf-8")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "apiclient: %s %s", method, path)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "apiclient: read %s %s", method, path)
	}
	logger.Debug("apiclient: %s %s -> %d", method, path, resp.StatusCode)
	return analyse(resp.StatusCode, raw)
}

func analyse(status int, raw []byte) (json.RawMessage, error) {
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, &HTTPError{Status: status, Body: string(raw)}
	}
	var probe any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, &HTTPError{Status: status, Body: string(raw)}
	}
	obj, ok := probe.(map[string]any)
	if !ok {
		return json.RawMessage(raw), nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return json.RawMessage(raw), nil
	}
	if env.Code != 0 {
		return nil, &HTTPError{Status: status, Body: string(raw)}
	}
	if _, has := obj["result"]; has {
		return env.Result, nil
	}
	return json.RawMessage(raw), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
