package transport

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

type cacheEntry struct {
	doc *Document
	err error
}

// Session is a batch-scoped view of a Client. Responses, including
// failures, are cached by normalized URL until Close, and concurrent
// requests for the same URL share one network call. Safe for concurrent use.
type Session struct {
	client *Client
	group  singleflight.Group

	mu    sync.RWMutex
	cache map[string]cacheEntry

	hits   atomic.Int64
	misses atomic.Int64
}

func newSession(c *Client) *Session {
	return &Session{client: c, cache: make(map[string]cacheEntry)}
}

// Fetch retrieves rawURL with params merged into its query.
func (s *Session) Fetch(ctx context.Context, rawURL string, params url.Values) (*Document, error) {
	key, err := NormalizeURL(rawURL, params)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Kind: KindInvalidURL, Err: err}
	}
	return s.load(ctx, key, func(ctx context.Context) (*Document, error) {
		return s.client.get(ctx, key)
	})
}

// FetchRendered retrieves rawURL through the headless browser. Without a
// renderer it is a plain Fetch and shares that cache entry.
func (s *Session) FetchRendered(ctx context.Context, rawURL string, wait WaitCondition) (*Document, error) {
	if s.client.renderer == nil {
		return s.Fetch(ctx, rawURL, nil)
	}
	key, err := NormalizeURL(rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Kind: KindInvalidURL, Err: err}
	}
	return s.load(ctx, "rendered "+key, func(ctx context.Context) (*Document, error) {
		return s.client.render(ctx, key, wait)
	})
}

func (s *Session) load(ctx context.Context, key string, fetch func(context.Context) (*Document, error)) (*Document, error) {
	if e, ok := s.lookup(key); ok {
		s.hits.Add(1)
		return e.doc, e.err
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		if e, ok := s.lookup(key); ok {
			return e.doc, e.err
		}
		s.misses.Add(1)
		doc, err := fetch(ctx)
		// A cancelled caller says nothing about the URL itself.
		if err == nil || ctx.Err() == nil {
			s.mu.Lock()
			if s.cache != nil {
				s.cache[key] = cacheEntry{doc: doc, err: err}
			}
			s.mu.Unlock()
		}
		return doc, err
	})
	doc, _ := v.(*Document)
	return doc, err
}

func (s *Session) lookup(key string) (cacheEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.cache[key]
	return e, ok
}

// Stats returns cache hits and misses since the session started.
func (s *Session) Stats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}

// Close drops every cached response. The session must not be used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	s.cache = nil
	s.mu.Unlock()
}
