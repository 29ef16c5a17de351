// Package httpclient wraps an HTTP doer with bounded-retry semantics for
// the wiki API: transient failures back off exponentially, conflicts and
// other definitive responses return immediately.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fbain/confluence-markdown-sync/internal/contracts"
)

type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Classification decides how a response or transport error is handled.
type Classification int

const (
	// ClassDefinitive responses are returned to the caller as-is, success
	// and client errors alike. A version conflict (409) is definitive: it
	// reflects real divergence and retrying cannot resolve it.
	ClassDefinitive Classification = iota
	// ClassTransient responses are retried with exponential backoff.
	ClassTransient
)

type Options struct {
	Timeout     time.Duration
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Classify    func(statusCode int) Classification
}

type Sleeper interface {
	Sleep(d time.Duration)
}

type RetryClient struct {
	doer        Doer
	timeout     time.Duration
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	classify    func(statusCode int) Classification
	sleeper     Sleeper
}

func NewRetryClient(doer Doer, options Options) *RetryClient {
	resolved := resolveOptions(options)
	if doer == nil {
		doer = &http.Client{Timeout: resolved.Timeout}
	}

	return &RetryClient{
		doer:        doer,
		timeout:     resolved.Timeout,
		maxAttempts: resolved.MaxAttempts,
		baseBackoff: resolved.BaseBackoff,
		maxBackoff:  resolved.MaxBackoff,
		classify:    resolved.Classify,
		sleeper:     timeSleeper{},
	}
}

func (c *RetryClient) WithSleeper(sleeper Sleeper) *RetryClient {
	if c == nil {
		return nil
	}
	if sleeper == nil {
		return c
	}

	clone := *c
	clone.sleeper = sleeper
	return &clone
}

func (c *RetryClient) Do(req *http.Request) (*http.Response, error) {
	if c == nil {
		return nil, errors.New("retry client is nil")
	}
	if req == nil {
		return nil, errors.New("request is nil")
	}

	body, err := snapshotBody(req.Body)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		attemptReq := cloneRequest(req, body)
		attemptReq, cancel := withRequestTimeout(attemptReq, c.timeout)

		resp, err := c.doer.Do(attemptReq)
		if err != nil {
			cancel()
			if !transientError(err) || attempt == c.maxAttempts {
				return nil, err
			}
			c.sleep(c.backoffForAttempt(attempt))
			continue
		}

		if c.classify(resp.StatusCode) == ClassDefinitive || attempt == c.maxAttempts {
			if resp.Body != nil {
				resp.Body = &cancelOnCloseReadCloser{ReadCloser: resp.Body, cancel: cancel}
			} else {
				cancel()
			}
			return resp, nil
		}

		backoff := c.backoffForAttempt(attempt)
		if retryAfter := parseRetryAfter(resp.Header.Get("Retry-After")); retryAfter > backoff {
			backoff = retryAfter
		}

		drainAndClose(resp.Body)
		cancel()
		c.sleep(backoff)
	}

	return nil, errors.New("request retries exhausted")
}

func (c *RetryClient) sleep(duration time.Duration) {
	if duration <= 0 {
		return
	}
	if c.sleeper == nil {
		return
	}
	c.sleeper.Sleep(duration)
}

// DefaultClassify retries 429 and all 5xx responses. Everything else,
// including 409 conflicts and auth failures, is definitive.
func DefaultClassify(statusCode int) Classification {
	if statusCode == http.StatusTooManyRequests || statusCode >= 500 {
		return ClassTransient
	}
	return ClassDefinitive
}

func resolveOptions(options Options) Options {
	resolved := options
	if resolved.Timeout <= 0 {
		resolved.Timeout = contracts.DefaultHTTPTimeout
	}
	if resolved.MaxAttempts <= 0 {
		resolved.MaxAttempts = contracts.DefaultRetryMaxAttempts
	}
	if resolved.BaseBackoff <= 0 {
		resolved.BaseBackoff = contracts.DefaultRetryBaseBackoff
	}
	if resolved.MaxBackoff <= 0 {
		resolved.MaxBackoff = contracts.DefaultRetryMaxBackoff
	}
	if resolved.Classify == nil {
		resolved.Classify = DefaultClassify
	}
	return resolved
}

func snapshotBody(body io.ReadCloser) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	defer body.Close()
	return io.ReadAll(body)
}

func cloneRequest(req *http.Request, body []byte) *http.Request {
	clone := req.Clone(req.Context())
	if body == nil {
		clone.Body = nil
		clone.GetBody = nil
		clone.ContentLength = 0
		return clone
	}

	clone.Body = io.NopCloser(bytes.NewReader(body))
	clone.ContentLength = int64(len(body))
	clone.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return clone
}

func withRequestTimeout(req *http.Request, timeout time.Duration) (*http.Request, context.CancelFunc) {
	if timeout <= 0 {
		return req, func() {}
	}

	ctx, cancel := context.WithTimeout(req.Context(), timeout)
	return req.Clone(ctx), cancel
}

func transientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func (c *RetryClient) backoffForAttempt(attempt int) time.Duration {
	if c.baseBackoff <= 0 || attempt <= 0 {
		return 0
	}
	factor := 1 << (attempt - 1)
	backoff := time.Duration(factor) * c.baseBackoff
	if c.maxBackoff > 0 && backoff > c.maxBackoff {
		backoff = c.maxBackoff
	}
	return backoff
}

func parseRetryAfter(value string) time.Duration {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(trimmed); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if when, err := http.ParseTime(trimmed); err == nil {
		delta := time.Until(when)
		if delta > 0 {
			return delta
		}
	}

	return 0
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

type timeSleeper struct{}

func (timeSleeper) Sleep(d time.Duration) {
	time.Sleep(d)
}

type cancelOnCloseReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnCloseReadCloser) Close() error {
	if c == nil {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.ReadCloser == nil {
		return nil
	}
	return c.ReadCloser.Close()
}
