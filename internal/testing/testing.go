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
	"testing"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error

	mu       sync.Mutex
	requests []*http.Request
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.response, m.err
}

// Requests returns every request seen so far.
func (m *MockRoundTripper) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*http.Request(nil), m.requests...)
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// Reply is a canned answer from [AdminAPI]. A string Body is written verbatim,
// anything else is JSON encoded.
type Reply struct {
	Status int
	Body   any
}

// Recorded is a request seen by [AdminAPI].
type Recorded struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	Body          []byte
}

// AdminAPI is a fake remote admin API keyed by "METHOD /path".
// Unregistered routes answer 404 with an error envelope.
type AdminAPI struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string]Reply
	requests []Recorded
}

// NewAdminAPI starts a fake API and closes it when the test ends.
func NewAdminAPI(t *testing.T) *AdminAPI {
	t.Helper()

	api := &AdminAPI{routes: make(map[string]Reply)}
	api.Server = httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(api.Close)
	return api
}

// Handle registers a reply for method and path.
func (a *AdminAPI) Handle(method, path string, status int, body any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.routes[method+" "+path] = Reply{Status: status, Body: body}
}

// Requests returns every request seen so far.
func (a *AdminAPI) Requests() []Recorded {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Recorded(nil), a.requests...)
}

// Last returns the most recent request to path, or false if there was none.
func (a *AdminAPI) Last(path string) (Recorded, bool) {
	reqs := a.Requests()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Path == path {
			return reqs[i], true
		}
	}
	return Recorded{}, false
}

// Count returns how many requests reached path.
func (a *AdminAPI) Count(path string) int {
	n := 0
	for _, r := range a.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

func (a *AdminAPI) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	a.mu.Lock()
	a.requests = append(a.requests, Recorded{
		Method:        r.Method,
		Path:          r.URL.Path,
		Query:         r.URL.RawQuery,
		Authorization: r.Header.Get("Authorization"),
		Body:          body,
	})
	reply, ok := a.routes[r.Method+" "+r.URL.Path]
	a.mu.Unlock()

	if !ok {
		reply = Reply{Status: http.StatusNotFound, Body: map[string]any{"success": false, "message": "not found"}}
	}
	if reply.Status == 0 {
		reply.Status = http.StatusOK
	}

	if raw, isRaw := reply.Body.(string); isRaw {
		w.WriteHeader(reply.Status)
		io.WriteString(w, raw)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.Status)
	if reply.Body != nil {
		json.NewEncoder(w).Encode(reply.Body)
	}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
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
