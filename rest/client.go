// Package rest is the thin JSON request helper the provisioning scripts
// use against collaborator REST APIs (gateway admin, identity provider,
// search engine). It deliberately stays dumb: one request, one decoded
// response, no retries.
package rest

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Options configures a Client.
type Options struct {
	// Timeout defaults to 30s.
	Timeout time.Duration

	// InsecureSkipVerify disables TLS verification. Internal cluster
	// calls run against self-signed endpoints.
	InsecureSkipVerify bool

	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

// Client issues JSON requests.
type Client struct {
	hc  *http.Client
	log *zap.Logger
}

// New builds a Client.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	transport := http.DefaultTransport
	if opts.InsecureSkipVerify {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		transport = t
	}
	return &Client{
		hc:  &http.Client{Timeout: timeout, Transport: transport},
		log: log,
	}
}

// Request describes one call. JSON and Form are mutually exclusive bodies.
type Request struct {
	Method string
	URL    string
	Header http.Header

	// JSON is marshalled as the request body with a JSON content type.
	JSON any

	// Form is sent URL-encoded.
	Form url.Values

	// Accept404 makes a 404 response return (nil, nil) instead of a
	// StatusError. Used for exists-checks against collaborator APIs.
	Accept404 bool
}

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Do sends the request and decodes the JSON response. A 204 (or empty)
// response yields nil. The decoded value is whatever the endpoint returned:
// object, array, or scalar.
func (c *Client) Do(ctx context.Context, req Request) (any, error) {
	var body io.Reader
	contentType := ""
	switch {
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, values := range req.Header {
		httpReq.Header[key] = values
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	res, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	defer res.Body.Close()

	c.log.Debug("rest call",
		zap.String("method", req.Method),
		zap.String("url", req.URL),
		zap.Int("status", res.StatusCode))

	if res.StatusCode == http.StatusNotFound && req.Accept404 {
		return nil, nil
	}
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{StatusCode: res.StatusCode, Body: string(data)}
	}
	if res.StatusCode == http.StatusNoContent || len(data) == 0 {
		return nil, nil
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("decode response from %s: %w", req.URL, err)
	}
	return decoded, nil
}
