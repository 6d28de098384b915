// Package asana is a thin HTTP client for the Asana REST API, covering
// the task creation, section membership, custom field, and attachment
// upload operations the bridge needs.
package asana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"
)

// APIError is a non-2xx response from the Asana API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("asana API error (%d): %s", e.Status, e.Message)
}

// errorEnvelope is Asana's error response shape.
type errorEnvelope struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Client is a thin Asana HTTP client. It handles Bearer token
// authentication, the {"data": ...} request/response envelope, and
// automatic retry with backoff on HTTP 429.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
}

// NewClient creates an Asana client authenticating with a personal
// access token. baseURL is the API root (e.g.
// https://app.asana.com/api/1.0).
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		maxRetries: 3,
	}
}

// do performs a JSON request. A non-nil body is wrapped in the "data"
// envelope before marshaling; a non-nil result receives the unwrapped
// "data" member of the response.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	rawURL := c.baseURL + path

	marshal := func() (io.Reader, error) {
		if body == nil {
			return nil, nil
		}
		data, err := json.Marshal(map[string]interface{}{"data": body})
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		return bytes.NewReader(data), nil
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		bodyReader, err := marshal()
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		done, err := c.finish(ctx, req, result, attempt, &lastErr)
		if done || err != nil {
			return err
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// finish executes a prepared request and decodes the response. It
// reports done=false only for a retryable 429.
func (c *Client) finish(
	ctx context.Context,
	req *http.Request,
	result interface{},
	attempt int,
	lastErr *error,
) (bool, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf(
			"executing %s %s: %w", req.Method, req.URL.Path, err,
		)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return false, fmt.Errorf("reading response body: %w", readErr)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		*lastErr = &APIError{Status: resp.StatusCode, Message: "rate limited"}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(retryAfterDuration(resp, attempt)):
			return false, nil
		}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return false, &APIError{
			Status:  resp.StatusCode,
			Message: "authentication failed: check the personal access token",
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope errorEnvelope
		if json.Unmarshal(respBody, &envelope) == nil && len(envelope.Errors) > 0 {
			return false, &APIError{
				Status:  resp.StatusCode,
				Message: envelope.Errors[0].Message,
			}
		}
		return false, &APIError{
			Status:  resp.StatusCode,
			Message: string(respBody),
		}
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return true, nil
	}

	wrapper := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(respBody, &wrapper); err != nil {
		return false, fmt.Errorf("unmarshaling response envelope: %w", err)
	}
	if err := json.Unmarshal(wrapper.Data, result); err != nil {
		return false, fmt.Errorf("unmarshaling response data: %w", err)
	}

	return true, nil
}

// upload performs a multipart/form-data POST, used for attachment
// uploads. The body is buffered up front, so a 429 is retried the same
// way as a JSON request.
func (c *Client) upload(
	ctx context.Context,
	path string,
	fields map[string]string,
	fileField, filename string,
	file io.Reader,
	result interface{},
) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			return fmt.Errorf("writing form field %s: %w", key, err)
		}
	}

	fw, err := mw.CreateFormFile(fileField, filename)
	if err != nil {
		return fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(fw, file); err != nil {
		return fmt.Errorf("copying file content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("finalizing multipart body: %w", err)
	}

	payload := buf.Bytes()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(
			ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload),
		)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Accept", "application/json")

		done, err := c.finish(ctx, req, result, attempt, &lastErr)
		if done || err != nil {
			return err
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
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
