package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/desertthunder/moodbeats/internal/shared"
	"golang.org/x/oauth2"
)

// RequestIDHeader carries a per-request UUID for correlating client and server logs.
const RequestIDHeader = "X-Request-ID"

// Client makes requests against the MoodBeats API.
type Client struct {
	baseURL string
	public  *http.Client
	authed  *http.Client
}

// NewClient creates a client for baseURL.
//
// Requests to authenticated endpoints take their bearer token from source. A
// nil client defaults to [http.DefaultClient]; a nil source sends every request
// without credentials.
func NewClient(baseURL string, client *http.Client, source oauth2.TokenSource) *Client {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:5000"
	}
	if client == nil {
		client = http.DefaultClient
	}

	authed := client
	if source != nil {
		authed = &http.Client{
			Transport: &oauth2.Transport{Source: source, Base: client.Transport},
			Timeout:   client.Timeout,
		}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		public:  client,
		authed:  authed,
	}
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// StatusError is returned for a non-2xx response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v: status %d", shared.ErrAPIRequest, e.StatusCode)
	}
	return fmt.Sprintf("%v: status %d: %s", shared.ErrAPIRequest, e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	return shared.ErrAPIRequest
}

// Get performs an authenticated GET request to path and returns the raw response.
func (c *Client) Get(ctx context.Context, path string) (*APIResponse, error) {
	return c.do(ctx, c.authed, http.MethodGet, path, nil)
}

// Post performs an authenticated POST of the given JSON data and returns the raw response.
func (c *Client) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return c.do(ctx, c.authed, http.MethodPost, path, data)
}

func (c *Client) do(ctx context.Context, client *http.Client, method, path string, data []byte) (*APIResponse, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, shared.GenerateID())
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       raw,
	}

	var jsonData any
	if err := json.Unmarshal(raw, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

type validator interface {
	Validate() error
}

// expectOK converts a non-2xx response into a [*StatusError].
func expectOK(resp *APIResponse) error {
	if resp.OK() {
		return nil
	}

	statusErr := &StatusError{StatusCode: resp.StatusCode}
	if body, ok := resp.JSONData.(map[string]any); ok {
		for _, key := range []string{"message", "error", "msg"} {
			if msg, ok := body[key].(string); ok && msg != "" {
				statusErr.Message = msg
				break
			}
		}
	}
	return statusErr
}

// decode checks the status of resp, unmarshals its body into v and validates it.
func decode(resp *APIResponse, v validator) error {
	if err := expectOK(resp); err != nil {
		return err
	}

	if !resp.IsJSON {
		return fmt.Errorf("%w: body is not JSON", shared.ErrMalformedResponse)
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrMalformedResponse, err)
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrMalformedResponse, err)
	}
	return nil
}

func marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return data, nil
}

// IsStatus reports whether err is a [*StatusError] with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
