package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Request is one outbound call. Path is joined to Config.BaseURL unless it
// is already an absolute http(s) URL.
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	Query   map[string]string
	// Body is sent form-encoded for url.Values, raw for []byte and string,
	// and as JSON otherwise.
	Body any
	// Auth replaces Config.Auth for this call only.
	Auth *AuthConfig
}

// Response holds a fully read response body.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

func (r *Response) IsSuccess() bool { return r.StatusCode/100 == 2 }
func (r *Response) IsError() bool   { return r.StatusCode >= 400 }

// TypedResponse is a Response whose JSON body was decoded into Data.
type TypedResponse[T any] struct {
	StatusCode int
	Headers    map[string]string
	Data       T
}

// RequestOption adjusts a Request built by Get, Post or PostForm.
type RequestOption func(*Request)

func WithHeader(key, value string) RequestOption {
	return func(r *Request) { r.Headers = put(r.Headers, key, value) }
}

func WithQueryParam(key, value string) RequestOption {
	return func(r *Request) { r.Query = put(r.Query, key, value) }
}

// WithRequestAuth authenticates a single call, e.g. with a user's bearer
// token on a client that has no default auth.
func WithRequestAuth(auth *AuthConfig) RequestOption {
	return func(r *Request) { r.Auth = auth }
}

func put(m map[string]string, k, v string) map[string]string {
	if m == nil {
		m = make(map[string]string, 1)
	}
	m[k] = v
	return m
}

func Get[T any](c *Client, ctx context.Context, path string, opts ...RequestOption) (*TypedResponse[T], error) {
	return send[T](c, ctx, Request{Method: http.MethodGet, Path: path}, opts)
}

// Post sends body as JSON.
func Post[T any](c *Client, ctx context.Context, path string, body any, opts ...RequestOption) (*TypedResponse[T], error) {
	return send[T](c, ctx, Request{Method: http.MethodPost, Path: path, Body: body}, opts)
}

func PostForm[T any](c *Client, ctx context.Context, path string, form url.Values, opts ...RequestOption) (*TypedResponse[T], error) {
	return send[T](c, ctx, Request{Method: http.MethodPost, Path: path, Body: form}, opts)
}

// send performs req and decodes the body. On a non-2xx status the error is
// returned together with the decoded error body when it parses as T.
func send[T any](c *Client, ctx context.Context, req Request, opts []RequestOption) (*TypedResponse[T], error) {
	for _, opt := range opts {
		opt(&req)
	}

	resp, err := c.Do(ctx, req)
	if resp == nil {
		return nil, err
	}
	out := &TypedResponse[T]{StatusCode: resp.StatusCode, Headers: resp.Headers}
	if len(resp.Body) == 0 {
		return out, err
	}
	if decodeErr := json.Unmarshal(resp.Body, &out.Data); decodeErr != nil {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("httpclient: decode response: %w", decodeErr)
	}
	return out, err
}
