package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jordanhubbard/modelhub/internal/tracing"
)

type authMode int

const (
	authNone authMode = iota
	authKey
	authAdmin
)

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
	Field   string
}

func (e *APIError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Code != "" {
		return fmt.Sprintf("HTTP %d %s: %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, msg)
}

// pageMeta mirrors the meta block of list responses.
type pageMeta struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Page   int `json:"page"`
	Pages  int `json:"pages"`
}

type client struct {
	baseURL    string
	apiKey     string
	adminToken string
	http       *http.Client
}

func newClient(baseURL, apiKey, adminToken string) *client {
	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		adminToken: adminToken,
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: tracing.HTTPTransport(http.DefaultTransport),
		},
	}
}

func (c *client) request(ctx context.Context, method, path string, query url.Values, auth authMode, body any) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch auth {
	case authKey:
		if c.apiKey == "" {
			return nil, fmt.Errorf("an API key is required: set --api-key, MODELHUBCTL_API_KEY or api_key in the config file")
		}
		req.Header.Set("X-API-KEY", c.apiKey)
	case authAdmin:
		if c.adminToken == "" {
			return nil, fmt.Errorf("an admin token is required: set --admin-token, MODELHUBCTL_ADMIN_TOKEN or admin_token in the config file")
		}
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}
	return c.http.Do(req)
}

// call performs a request and decodes the data member of the response
// envelope into out. meta is returned when present.
func (c *client) call(ctx context.Context, method, path string, query url.Values, auth authMode, body, out any) (*pageMeta, error) {
	resp, err := c.request(ctx, method, path, query, auth, body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, decodeError(resp.StatusCode, data)
	}
	var env struct {
		Data json.RawMessage `json:"data"`
		Meta *pageMeta       `json:"meta"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
	}
	return env.Meta, nil
}

func decodeError(status int, data []byte) error {
	var env struct {
		Error *struct {
			Message string `json:"message"`
			Code    string `json:"code"`
			Field   string `json:"field"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err == nil && env.Error != nil {
		return &APIError{Status: status, Code: env.Error.Code, Message: env.Error.Message, Field: env.Error.Field}
	}
	return &APIError{Status: status, Message: strings.TrimSpace(string(data))}
}

// health fetches the un-enveloped health report. A 503 still carries a
// report, so it is decoded rather than treated as an error.
func (c *client) health(ctx context.Context) (map[string]any, int, error) {
	resp, err := c.request(ctx, http.MethodGet, "/api/health", nil, authNone, nil)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	var rep map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode health: %w", err)
	}
	return rep, resp.StatusCode, nil
}
