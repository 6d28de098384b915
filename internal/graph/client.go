// Package graph is a thin client for the Microsoft Graph mail API,
// covering folder resolution, paginated message listing, and attachment
// content downloads against a single user's mailbox.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrNotFound is returned when a folder path segment has no matching
// child folder. The walk stops at the first missing segment.
var ErrNotFound = errors.New("folder not found")

// ErrTooLarge is returned when the server refuses to serve attachment
// content because it exceeds the payload limit. Callers treat it as a
// skip condition, not a failure.
var ErrTooLarge = errors.New("attachment content too large")

// APIError is a non-2xx response from the Graph API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph API error (%d %s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("graph API error (%d): %s", e.Status, e.Message)
}

// errorEnvelope is the Graph error response shape.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client is a Graph mail client scoped to one mailbox. Authentication
// is the transport's concern: the http.Client handed to NewClient is
// expected to inject the bearer token (see Credentials.HTTPClient).
type Client struct {
	baseURL    string
	mailUser   string
	pageSize   int
	httpClient *http.Client
	maxRetries int
}

// NewClient creates a Graph client for the given mailbox. baseURL is
// the API root (e.g. https://graph.microsoft.com/v1.0) and pageSize
// bounds how many messages a single list request returns.
func NewClient(
	httpClient *http.Client, baseURL, mailUser string, pageSize int,
) *Client {
	return &Client{
		baseURL:    baseURL,
		mailUser:   mailUser,
		pageSize:   pageSize,
		httpClient: httpClient,
		maxRetries: 3,
	}
}

// userURL builds an absolute URL under the client's mailbox.
func (c *Client) userURL(path string) string {
	return c.baseURL + "/users/" + url.PathEscape(c.mailUser) + path
}

// get performs a GET against an absolute URL and unmarshals the JSON
// response, retrying with backoff on HTTP 429 only.
func (c *Client) get(ctx context.Context, rawURL string, result interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing GET %s: %w", rawURL, err)
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = &APIError{Status: resp.StatusCode, Message: "rate limited"}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryAfterDuration(resp, attempt)):
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return apiError(resp.StatusCode, body)
		}

		if result == nil {
			return nil
		}
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshaling response from %s: %w", rawURL, err)
		}
		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// getStream performs a GET against an absolute URL and copies the raw
// response body to w. HTTP 413 is mapped to ErrTooLarge.
func (c *Client) getStream(ctx context.Context, rawURL string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusRequestEntityTooLarge {
		return fmt.Errorf("downloading %s: %w", rawURL, ErrTooLarge)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apiError(resp.StatusCode, body)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("copying response body: %w", err)
	}
	return nil
}

// apiError parses a Graph error body into an APIError.
func apiError(status int, body []byte) error {
	var envelope errorEnvelope
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
		return &APIError{
			Status:  status,
			Code:    envelope.Error.Code,
			Message: envelope.Error.Message,
		}
	}
	return &APIError{Status: status, Message: string(body)}
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
