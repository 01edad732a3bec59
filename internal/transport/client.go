// Package transport is the shared HTTP layer used by every discovery
// strategy: a global throttle, connection-failure retries, per-host circuit
// breakers, user-agent rotation, and per-batch response caching.
package transport

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/blok-blok-studio/leadscraper/internal/resilience"
)

// Fetcher retrieves pages. Session is the implementation strategies use.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, params url.Values) (*Document, error)
	FetchRendered(ctx context.Context, rawURL string, wait WaitCondition) (*Document, error)
}

// WaitCondition tells a rendered fetch when the page is ready.
type WaitCondition struct {
	// Selector, when set, must match an element before the page is read.
	Selector string
	// Settle is extra time to let scripts finish, capped by the renderer.
	Settle time.Duration
}

// Renderer fetches pages that need script execution.
type Renderer interface {
	Render(ctx context.Context, rawURL string, wait WaitCondition) (*RenderedPage, error)
	Close() error
}

// RenderedPage is the serialized DOM of a rendered page.
type RenderedPage struct {
	URL  string
	HTML string
}

// Options configures a Client.
type Options struct {
	Timeout        time.Duration
	MinDelay       time.Duration
	JitterFraction float64
	MaxBodyBytes   int64
	Retry          resilience.RetryConfig
	Breaker        resilience.BreakerConfig
	UserAgents     []string
	Renderer       Renderer

	// HTTPClient overrides the default client; used by tests.
	HTTPClient *http.Client
}

// Client is the process-wide transport. It owns the throttle, breakers and
// renderer; caching lives in the per-batch Session.
type Client struct {
	http     *http.Client
	throttle *Throttle
	retry    resilience.RetryConfig
	breakers *resilience.HostBreakers
	maxBody  int64
	agents   []string
	renderer Renderer

	requests atomic.Int64
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 << 20
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Client{
		http:     hc,
		throttle: NewThrottle(opts.MinDelay, opts.JitterFraction),
		retry:    opts.Retry,
		breakers: resilience.NewHostBreakers(opts.Breaker),
		maxBody:  opts.MaxBodyBytes,
		agents:   opts.UserAgents,
		renderer: opts.Renderer,
	}
}

// NewSession starts a cache scope. Call Close when the batch ends.
func (c *Client) NewSession() *Session {
	return newSession(c)
}

// Requests returns the number of network requests issued so far.
func (c *Client) Requests() int64 { return c.requests.Load() }

// Close releases the renderer, if any.
func (c *Client) Close() error {
	if c.renderer == nil {
		return nil
	}
	return c.renderer.Close()
}

type response struct {
	url    string
	status int
	header http.Header
	body   []byte
}

// get fetches target with throttling, retries and the host breaker applied.
func (c *Client) get(ctx context.Context, target string) (*Document, error) {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return nil, &FetchError{URL: target, Kind: KindInvalidURL, Err: err}
	}
	breaker := c.breakers.For(u.Hostname())
	if err := breaker.Allow(); err != nil {
		return nil, &FetchError{URL: target, Kind: KindCircuitOpen, Err: err}
	}

	retry := c.retry
	retry.OnRetry = resilience.RetryLogger("fetch", target)
	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*response, error) {
		return c.roundTrip(ctx, target)
	})
	if err != nil {
		if ctx.Err() != nil {
			breaker.Release()
		} else {
			breaker.Failure()
		}
		kind := KindConnection
		if resilience.IsTimeout(err) {
			kind = KindTimeout
		}
		return nil, &FetchError{URL: target, Kind: kind, Err: err}
	}

	if resilience.IsThrottleStatus(resp.status) {
		breaker.Failure()
	} else {
		breaker.Success()
	}

	doc, err := ParseDocument(resp.url, resp.status, resp.header, resp.body)
	if err != nil {
		return nil, err
	}
	if blocked, kind := DetectBlock(resp.status, resp.header, doc.Body); blocked {
		doc.Blocked, doc.BlockType = true, kind
		zap.L().Debug("transport: blocked page",
			zap.String("url", target),
			zap.String("block_type", string(kind)),
			zap.Int("status", resp.status),
		)
		return doc, nil
	}
	if resp.status < 200 || resp.status > 299 {
		return nil, &FetchError{URL: target, Kind: KindStatus, StatusCode: resp.status}
	}
	return doc, nil
}

func (c *Client) roundTrip(ctx context.Context, target string) (*response, error) {
	if err := c.throttle.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", pickUserAgent(c.agents))
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	c.requests.Add(1)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return nil, err
	}

	final := target
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	return &response{url: final, status: resp.StatusCode, header: resp.Header, body: body}, nil
}

// render fetches target through the renderer. Callers check that one is
// configured.
func (c *Client) render(ctx context.Context, target string, wait WaitCondition) (*Document, error) {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return nil, &FetchError{URL: target, Kind: KindInvalidURL, Err: err}
	}
	breaker := c.breakers.For(u.Hostname())
	if err := breaker.Allow(); err != nil {
		return nil, &FetchError{URL: target, Kind: KindCircuitOpen, Err: err}
	}
	if err := c.throttle.Wait(ctx); err != nil {
		breaker.Release()
		return nil, &FetchError{URL: target, Kind: KindTimeout, Err: err}
	}

	c.requests.Add(1)
	page, err := c.renderer.Render(ctx, target, wait)
	if err != nil {
		breaker.Failure()
		return nil, &FetchError{URL: target, Kind: KindRender, Err: err}
	}
	breaker.Success()

	final := page.URL
	if final == "" {
		final = target
	}
	header := http.Header{"Content-Type": []string{"text/html; charset=utf-8"}}
	doc, err := ParseDocument(final, http.StatusOK, header, []byte(page.HTML))
	if err != nil {
		return nil, err
	}
	doc.Rendered = true
	if blocked, kind := DetectBlock(http.StatusOK, header, doc.Body); blocked {
		doc.Blocked, doc.BlockType = true, kind
	}
	return doc, nil
}
