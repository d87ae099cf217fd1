// package testing contains shared testing utilities
package testing

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/moodbeats/internal/shared"
)

// MemStore is an in-memory client store satisfying session.Store.
type MemStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemStore(kv ...string) *MemStore {
	m := &MemStore{values: map[string]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		m.values[kv[i]] = kv[i+1]
	}
	return m
}

func (m *MemStore) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", shared.ErrNotFound
	}
	return v, nil
}

func (m *MemStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// RecordedRequest is a request captured by [APIStub].
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   []byte
}

// APIStub is an httptest server answering each path with a canned status and JSON body.
type APIStub struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string]stubRoute
	requests []RecordedRequest
	hits     atomic.Int32
}

type stubRoute struct {
	status int
	body   any
}

// NewAPIStub starts a stub server that is closed when the test ends.
func NewAPIStub(t *testing.T) *APIStub {
	t.Helper()
	s := &APIStub{routes: map[string]stubRoute{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Respond registers the response for path. A string body is written verbatim.
func (s *APIStub) Respond(path string, status int, body any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = stubRoute{status: status, body: body}
}

// Hits returns the number of requests served.
func (s *APIStub) Hits() int {
	return int(s.hits.Load())
}

// Requests returns a copy of the requests served so far.
func (s *APIStub) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

func (s *APIStub) serve(w http.ResponseWriter, r *http.Request) {
	s.hits.Add(1)
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Auth:   r.Header.Get("Authorization"),
		Body:   body,
	})
	route, ok := s.routes[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if raw, isString := route.body.(string); isString {
		w.WriteHeader(route.status)
		io.WriteString(w, raw)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(route.status)
	json.NewEncoder(w).Encode(route.body)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
