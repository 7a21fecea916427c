package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/apostle/internal/shared"
	"github.com/google/uuid"
	"github.com/gregjones/httpcache"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries a per-request identifier to the API.
const RequestIDHeader = "X-Request-ID"

// Client makes requests to the remote admin API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewClient creates a client for baseURL. Empty values fall back to
// [DefaultBaseURL] and [http.DefaultClient].
func NewClient(baseURL string, client *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		logger:     log.New(io.Discard),
	}
}

// NewHTTPClient builds the transport chain used for API calls: the [Authorizer]
// on top of cache when cfg.Cache is set and cache is non-nil.
//
// Every response stored in the cache varies on the Authorization header, so a
// cached answer is only replayed to a request carrying the same credential.
func NewHTTPClient(cfg shared.APIConfig, src CredentialSource, cache *ResponseCache) *http.Client {
	var base http.RoundTripper = http.DefaultTransport
	if cfg.Cache && cache != nil {
		t := httpcache.NewTransport(cache)
		t.Transport = varyOnCredential{base: base}
		t.MarkCachedResponses = true
		base = t
	}

	return &http.Client{
		Transport: NewAuthorizer(src, base),
		Timeout:   cfg.Timeout(),
	}
}

// ResponseCache is the in-memory store behind the HTTP cache. It can be emptied
// when the session ends.
type ResponseCache struct {
	mu    sync.RWMutex
	items *httpcache.MemoryCache
}

var _ httpcache.Cache = (*ResponseCache)(nil)

// NewResponseCache creates an empty cache.
func NewResponseCache() *ResponseCache {
	return &ResponseCache{items: httpcache.NewMemoryCache()}
}

func (c *ResponseCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items.Get(key)
}

func (c *ResponseCache) Set(key string, resp []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.items.Set(key, resp)
}

func (c *ResponseCache) Delete(key string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.items.Delete(key)
}

// Flush drops every stored response.
func (c *ResponseCache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = httpcache.NewMemoryCache()
}

// varyOnCredential marks API responses as varying on Authorization before the
// cache layer sees them.
type varyOnCredential struct {
	base http.RoundTripper
}

func (t varyOnCredential) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	for _, v := range resp.Header.Values("Vary") {
		for _, field := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(field), "Authorization") {
				return resp, nil
			}
		}
	}
	resp.Header.Add("Vary", "Authorization")
	return resp, nil
}

// SetRateLimit caps outgoing requests per second. Non-positive disables the limit.
func (c *Client) SetRateLimit(rps float64) {
	if rps <= 0 {
		c.limiter = nil
		return
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
}

// SetLogger sets the logger used for request tracing.
func (c *Client) SetLogger(l *log.Logger) {
	if l != nil {
		c.logger = l
	}
}

// BaseURL returns the origin requests are sent to.
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

// Cached reports whether the response was served from the local HTTP cache.
func (r *APIResponse) Cached() bool {
	return r.Headers.Get(httpcache.XFromCache) != ""
}

// TransportError is a failure to get a usable answer from the API: the request
// did not complete, the server failed, or the body could not be understood.
type TransportError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(shared.ErrTransport.Error())
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	return b.String()
}

func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{shared.ErrTransport}
	}
	return []error{shared.ErrTransport, e.Err}
}

// Get performs a GET request to the specified path and returns the raw response.
func (c *Client) Get(ctx context.Context, path string) (*APIResponse, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (c *Client) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return c.Do(ctx, http.MethodPost, path, data)
}

// Do sends a request with an optional JSON body and returns the raw response.
//
// Only failures to complete the exchange are errors; any status code is returned as is.
func (c *Client) Do(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Op: method + " " + path, Err: err}
		}
	}

	c.logger.Debug("api request", "method", method, "path", path, "request_id", req.Header.Get(RequestIDHeader))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method + " " + path, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: method + " " + path, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
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

	c.logger.Debug("api response", "method", method, "path", path, "status", resp.StatusCode, "cached", apiResp.Cached())
	return apiResp, nil
}

// call sends a JSON request and decodes a successful body into out.
//
// Non-2xx answers become errors carrying the server's message: [TransportError]
// for 5xx, [shared.ErrAPIRequest] otherwise.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var data []byte
	if in != nil {
		var err error
		if data, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	resp, err := c.Do(ctx, method, path, data)
	if err != nil {
		return err
	}

	if err := statusError(method+" "+path, resp); err != nil {
		return err
	}

	if out != nil && len(bytes.TrimSpace(resp.Body)) > 0 {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return &TransportError{Op: method + " " + path, StatusCode: resp.StatusCode, Err: malformed("%v", err)}
		}
	}
	return nil
}

func statusError(op string, resp *APIResponse) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg := serverMessage(resp.Body)
	if resp.StatusCode >= 500 {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", shared.ErrNotFound, msg)
	}
	return fmt.Errorf("%w: %s (status %d)", shared.ErrAPIRequest, msg, resp.StatusCode)
}

// serverMessage extracts the message field of an error body, if any.
func serverMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &envelope) != nil {
		return ""
	}
	return envelope.Message
}

// escape encodes a path segment.
func escape(id string) string {
	return url.PathEscape(id)
}

// IsTransport reports whether err is a transport-class failure.
func IsTransport(err error) bool {
	return errors.Is(err, shared.ErrTransport)
}
