package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aquamarinepk/aqm"
)

const (
	DefaultTimeout = 10 * time.Second
	maxErrorBody   = 64 << 10
)

var (
	ErrNotConfigured = errors.New("backend client not configured")
	ErrNotFound      = errors.New("resource not found")
	ErrConflict      = errors.New("request conflicts with current state")
	ErrUnauthorized  = errors.New("unauthorized")
)

// Requester performs one call against the POS backend and returns the decoded
// success envelope.
type Requester interface {
	Request(ctx context.Context, method, path string, body interface{}) (*aqm.SuccessResponse, error)
}

// APIError is a non 2xx answer from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend responded %d", e.Status)
	}
	return fmt.Sprintf("backend responded %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrConflict:
		return e.Status == http.StatusConflict
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	}
	return false
}

// Client talks to the POS backend with a bearer token on every request.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Request(ctx context.Context, method, path string, body interface{}) (*aqm.SuccessResponse, error) {
	if c == nil || c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("cannot encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("cannot build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}

	if resp.StatusCode == http.StatusNoContent {
		return &aqm.SuccessResponse{}, nil
	}

	var envelope struct {
		Data interface{} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("cannot decode %s %s response: %w", method, path, err)
	}
	return &aqm.SuccessResponse{Data: envelope.Data}, nil
}

// errorMessage pulls a readable message out of an error body without relying
// on a single envelope shape.
func errorMessage(raw []byte) string {
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}
	if msg, ok := body["message"].(string); ok {
		return msg
	}
	switch e := body["error"].(type) {
	case string:
		return e
	case map[string]interface{}:
		if msg, ok := e["message"].(string); ok {
			return msg
		}
	}
	return strings.TrimSpace(string(raw))
}

// decodeSuccessResponse copies the dynamic response payload into dest.
func decodeSuccessResponse(resp *aqm.SuccessResponse, dest interface{}) error {
	if resp == nil {
		return errors.New("nil success response")
	}

	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, dest)
}
