package strategy

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blok-blok-studio/leadscraper/internal/transport"
)

type fakePage struct {
	status  int
	header  http.Header
	body    string
	blocked bool
}

// fakeFetcher serves canned pages keyed by normalized URL. Unknown URLs
// fail with a 404 FetchError.
type fakeFetcher struct {
	t     *testing.T
	mu    sync.Mutex
	pages map[string]fakePage
	calls []string

	// rendered pages are served by FetchRendered; other URLs fall back to Fetch.
	rendered    map[string]fakePage
	renderCalls []transport.WaitCondition
}

func newFakeFetcher(t *testing.T) *fakeFetcher {
	return &fakeFetcher{t: t, pages: map[string]fakePage{}, rendered: map[string]fakePage{}}
}

func (f *fakeFetcher) addRendered(rawURL string, params url.Values, p fakePage) *fakeFetcher {
	if p.status == 0 {
		p.status = http.StatusOK
	}
	f.rendered[f.key(rawURL, params)] = p
	return f
}

func (f *fakeFetcher) key(rawURL string, params url.Values) string {
	k, err := transport.NormalizeURL(rawURL, params)
	require.NoError(f.t, err)
	return k
}

func (f *fakeFetcher) add(rawURL string, params url.Values, p fakePage) *fakeFetcher {
	if p.status == 0 {
		p.status = http.StatusOK
	}
	f.pages[f.key(rawURL, params)] = p
	return f
}

func (f *fakeFetcher) page(rawURL, body string) *fakeFetcher {
	return f.add(rawURL, nil, fakePage{body: body})
}

// search registers a results page for query at the default result count.
func (f *fakeFetcher) search(query, body string) *fakeFetcher {
	return f.searchN(query, 0, body)
}

func (f *fakeFetcher) searchN(query string, num int, body string) *fakeFetcher {
	base, params := NewSearcher(SearchConfig{}).SearchURL(query, num)
	return f.add(base, params, fakePage{body: body})
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string, params url.Values) (*transport.Document, error) {
	k, err := transport.NormalizeURL(rawURL, params)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, k)
	p, ok := f.pages[k]
	f.mu.Unlock()
	if !ok {
		return nil, &transport.FetchError{URL: k, Kind: transport.KindStatus, StatusCode: http.StatusNotFound}
	}
	doc, err := transport.ParseDocument(rawURL, p.status, p.header, []byte(p.body))
	if err != nil {
		return nil, err
	}
	doc.Blocked = p.blocked
	return doc, nil
}

func (f *fakeFetcher) FetchRendered(ctx context.Context, rawURL string, wait transport.WaitCondition) (*transport.Document, error) {
	k, err := transport.NormalizeURL(rawURL, nil)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.renderCalls = append(f.renderCalls, wait)
	p, ok := f.rendered[k]
	f.mu.Unlock()
	if !ok {
		return f.Fetch(ctx, rawURL, nil)
	}
	doc, err := transport.ParseDocument(rawURL, p.status, p.header, []byte(p.body))
	if err != nil {
		return nil, err
	}
	doc.Rendered = true
	doc.Blocked = p.blocked
	return doc, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testDeps() Deps {
	return Deps{Search: NewSearcher(SearchConfig{}), Policy: DefaultPolicy()}.normalize()
}
