package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pinaka-makhana/storefront/internal/platform/observability"
	"github.com/pinaka-makhana/storefront/internal/platform/requestctx"
)

const maxErrorBody = 64 << 10

// Doer matches the subset of http.Client used by Client.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Request describes one backend call. Path is relative to the client's base URL and
// its segments are unescaped; Body, when non-nil, is sent as JSON.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header
}

// Client is the single chokepoint for backend calls. It carries no mutable state of
// its own and performs no retries or caching.
type Client struct {
	base      *url.URL
	http      Doer
	session   Session
	logger    *zap.Logger
	userAgent string
}

type Option func(*Client)

func WithHTTPClient(doer Doer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

func WithSession(session Session) Option {
	return func(c *Client) {
		if session != nil {
			c.session = session
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = strings.TrimSpace(ua) }
}

// New constructs a Client rooted at baseURL (e.g. http://localhost:8081/api).
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("restclient: base URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("restclient: parse base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("restclient: base URL %q must be absolute", baseURL)
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}

	c := &Client{
		base:      parsed,
		http:      &http.Client{Timeout: 30 * time.Second},
		session:   anonymous{},
		logger:    zap.NewNop(),
		userAgent: "pinaka-storefront",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithSession returns a copy of the client that authenticates as session.
func (c *Client) WithSession(session Session) *Client {
	cp := *c
	if session == nil {
		session = anonymous{}
	}
	cp.session = session
	return &cp
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path}, out)
}

// Do performs the call and decodes a 2xx body into out. out may be nil (body discarded),
// *string (raw text), *json.RawMessage or any JSON-decodable value.
// A non-2xx response always yields *Error and never touches out.
func (c *Client) Do(ctx context.Context, r Request, out any) error {
	method := strings.ToUpper(strings.TrimSpace(r.Method))
	if method == "" {
		method = http.MethodGet
	}

	req, err := c.build(ctx, method, r)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend call failed",
			zap.String("method", method), zap.String("path", r.Path), zap.Duration("latency", time.Since(start)), zap.Error(err))
		return &Error{
			Kind:    KindNetwork,
			Method:  method,
			Path:    r.Path,
			Message: fmt.Sprintf("network error calling %s %s: %v", method, r.Path, unwrapURLError(err)),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	c.logger.Debug("backend call",
		zap.String("method", method), zap.String("path", r.Path),
		zap.Int("status", resp.StatusCode), zap.Duration("latency", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(method, r.Path, resp)
	}
	return decode(method, r.Path, resp, out)
}

func (c *Client) build(ctx context.Context, method string, r Request) (*http.Request, error) {
	ref := &url.URL{Path: strings.TrimPrefix(r.Path, "/")}
	if len(r.Query) > 0 {
		ref.RawQuery = r.Query.Encode()
	}
	target := c.base.ResolveReference(ref)

	var body io.Reader
	if r.Body != nil {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(r.Body); err != nil {
			return nil, fmt.Errorf("restclient: encode %s %s body: %w", method, r.Path, err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("restclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain;q=0.9")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if token := strings.TrimSpace(c.session.Token()); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	requestID := requestctx.RequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-Id", requestID)
	observability.InjectOutbound(req)

	for name, values := range r.Header {
		req.Header.Del(name)
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	return req, nil
}

func errorFromResponse(method, path string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	statusText := reasonPhrase(resp)

	e := &Error{
		Kind:       KindHTTP,
		Method:     method,
		Path:       path,
		Status:     resp.StatusCode,
		StatusText: statusText,
		Message:    syntheticMessage(resp.StatusCode, statusText),
		Body:       body,
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && strings.TrimSpace(payload.Message) != "" {
		e.Message = payload.Message
	}
	return e
}

func decode(method, path string, resp *http.Response, out any) error {
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Method: method, Path: path, Status: resp.StatusCode,
			Message: fmt.Sprintf("network error reading %s %s: %v", method, path, err), Err: err}
	}

	switch dst := out.(type) {
	case *string:
		*dst = string(body)
		return nil
	case *json.RawMessage:
		*dst = append((*dst)[:0], body...)
		return nil
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{
			Kind:       KindDecode,
			Method:     method,
			Path:       path,
			Status:     resp.StatusCode,
			StatusText: reasonPhrase(resp),
			Message:    fmt.Sprintf("unexpected response from %s %s: %v", method, path, err),
			Body:       body,
			Err:        err,
		}
	}
	return nil
}

// reasonPhrase prefers the server's reason phrase over Go's canonical text.
func reasonPhrase(resp *http.Response) string {
	if text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func unwrapURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
