package pipeline

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/blok-blok-studio/leadscraper/internal/model"
	"github.com/blok-blok-studio/leadscraper/internal/transport"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetRecords(ctx context.Context, ids []string) ([]model.Record, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Record), args.Error(1)
}

func (m *mockStore) UpdateFields(ctx context.Context, id string, u model.FieldUpdate) error {
	args := m.Called(ctx, id, u)
	return args.Error(0)
}

func (m *mockStore) FindUnenriched(ctx context.Context, limit int) ([]model.Record, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Record), args.Error(1)
}

func (m *mockStore) FindStale(ctx context.Context, olderThan time.Time, limit int) ([]model.Record, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Record), args.Error(1)
}

func (m *mockStore) ResetEnriched(ctx context.Context, ids []string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

func (m *mockStore) CreateRun(ctx context.Context, kind model.RunKind, params map[string]any) (*model.Run, error) {
	args := m.Called(ctx, kind, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.Summary, errMsg string) error {
	args := m.Called(ctx, runID, status, summary, errMsg)
	return args.Error(0)
}

// --- Strategy Fake ---

type fakeStrategy struct {
	name    string
	website bool
	fn      func(rec model.Record) (model.FieldUpdate, error)
	calls   atomic.Int32
	resets  atomic.Int32
}

func (s *fakeStrategy) Name() string          { return s.name }
func (s *fakeStrategy) RequiresWebsite() bool { return s.website }
func (s *fakeStrategy) ResetBatch()           { s.resets.Add(1) }

func (s *fakeStrategy) Discover(_ context.Context, _ transport.Fetcher, rec model.Record) (model.FieldUpdate, error) {
	s.calls.Add(1)
	if s.fn == nil {
		return nil, nil
	}
	return s.fn(rec)
}

func setting(f model.Field, v any) func(model.Record) (model.FieldUpdate, error) {
	return func(model.Record) (model.FieldUpdate, error) {
		return model.FieldUpdate{f: v}, nil
	}
}

// --- Session Fake ---

// fakeSession fails every fetch; fake strategies never fetch.
type fakeSession struct {
	closed *atomic.Int32
}

func (s fakeSession) Fetch(_ context.Context, rawURL string, _ url.Values) (*transport.Document, error) {
	return nil, &transport.FetchError{URL: rawURL, Kind: transport.KindStatus, StatusCode: http.StatusNotFound}
}

func (s fakeSession) FetchRendered(ctx context.Context, rawURL string, _ transport.WaitCondition) (*transport.Document, error) {
	return s.Fetch(ctx, rawURL, nil)
}

func (s fakeSession) Close() { s.closed.Add(1) }

// siteSession serves fixed pages keyed by host and path, ignoring the
// query. Everything else is a 404.
type siteSession struct {
	pages map[string]string
}

func (s siteSession) Fetch(_ context.Context, rawURL string, _ url.Values) (*transport.Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	body, ok := s.pages[u.Host+strings.TrimRight(u.Path, "/")]
	if !ok {
		return nil, &transport.FetchError{URL: rawURL, Kind: transport.KindStatus, StatusCode: http.StatusNotFound}
	}
	return transport.ParseDocument(rawURL, http.StatusOK, http.Header{"Content-Type": {"text/html"}}, []byte(body))
}

func (s siteSession) FetchRendered(ctx context.Context, rawURL string, _ transport.WaitCondition) (*transport.Document, error) {
	return s.Fetch(ctx, rawURL, nil)
}

func (s siteSession) Close() {}

// --- Verifier Fake ---

type fixedVerifier model.VerificationStatus

func (v fixedVerifier) Verify(context.Context, string) model.VerificationStatus {
	return model.VerificationStatus(v)
}

func (v fixedVerifier) ResetCache() {}

type sessionCounter struct {
	opened atomic.Int32
	closed atomic.Int32
}

func (c *sessionCounter) open() Session {
	c.opened.Add(1)
	return fakeSession{closed: &c.closed}
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestPipeline(st Store, catalog Catalog, cfg Config) (*Pipeline, *sessionCounter) {
	sc := &sessionCounter{}
	p := New(st, sc.open, catalog, cfg)
	p.now = func() time.Time { return testNow }
	return p, sc
}
