// Package transport is the authenticated HTTP client shared by the
// Supabase-backed remote stores.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/agentstation/rostersync/pkg/constants"
	"github.com/agentstation/rostersync/pkg/errors"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = constants.DefaultHTTPTimeout

// Client provides HTTP client functionality with authentication.
type Client struct {
	http   *http.Client
	auth   Authenticator
	apiKey string
	base   *url.URL
	remote string
}

// New creates a client rooted at baseURL. remote names the service in
// errors and logs.
func New(baseURL, apiKey string, auth Authenticator, remote string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.NewConfigError(remote, "base URL is required", nil)
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.NewConfigError(remote, "invalid base URL", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.NewConfigError(remote, "base URL must be http or https", nil)
	}
	if auth == nil {
		auth = &NoAuth{}
	}
	return &Client{
		http:   &http.Client{Timeout: DefaultHTTPTimeout},
		auth:   auth,
		apiKey: apiKey,
		base:   base,
		remote: remote,
	}, nil
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// Remote is the service name given to New.
func (c *Client) Remote() string {
	return c.remote
}

// URL resolves path segments and a query against the base URL. Each
// segment is escaped, so a segment never introduces a path separator.
func (c *Client) URL(query url.Values, segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u := c.base.JoinPath(escaped...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// NewRequest builds a request against the base URL.
func (c *Client) NewRequest(ctx context.Context, method string, query url.Values, body io.Reader, segments ...string) (*http.Request, error) {
	target := c.URL(query, segments...)
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.WrapResource("create", "request", method+" "+target, err)
	}
	return req, nil
}

// Do performs an HTTP request with authentication applied. Transport
// failures come back as APIErrors with no status code.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.apiKey != "" {
		c.auth.Apply(req, c.apiKey)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &errors.APIError{
			Remote:   c.remote,
			Message:  err.Error(),
			Endpoint: req.Method + " " + req.URL.Path,
			Err:      err,
		}
	}
	return resp, nil
}

// DoJSON sends in (if non-nil) as a JSON body.
func (c *Client) DoJSON(ctx context.Context, method string, query url.Values, in any, header http.Header, segments ...string) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, errors.WrapParse("json", "request", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.NewRequest(ctx, method, query, body, segments...)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.Do(req)
}
