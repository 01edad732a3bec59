package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/blok-blok-studio/leadscraper/internal/ingest"
	"github.com/blok-blok-studio/leadscraper/internal/model"
	"github.com/blok-blok-studio/leadscraper/internal/store"
)

type enrichService interface {
	EnrichPending(ctx context.Context, limit int) (*model.Run, error)
	EnrichIDs(ctx context.Context, ids []string) (*model.Run, error)
	ReEnrichStale(ctx context.Context, staleDays, limit int) (*model.Run, error)
}

type ingestService interface {
	Run(ctx context.Context, p ingest.Producer, category, location string, pages int) (*model.Run, error)
}

type runReader interface {
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
	Stats(ctx context.Context) (*model.Stats, error)
}

// Background job kinds. At most one job of each kind runs at a time.
const (
	jobEnrich   = "enrich"
	jobReEnrich = "re-enrich"
	jobIngest   = "ingest"
)

// Job states reported by the status endpoints.
const (
	jobIdle      = "idle"
	jobRunning   = "running"
	jobCompleted = "completed"
	jobFailed    = "failed"
)

type jobState struct {
	Status     string         `json:"status"`
	Params     map[string]any `json:"params,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Run        *model.Run     `json:"run,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// jobTracker guards the background jobs and keeps the last state of each.
type jobTracker struct {
	mu   sync.Mutex
	jobs map[string]*jobState
	wg   sync.WaitGroup
}

func newJobTracker() *jobTracker {
	return &jobTracker{jobs: make(map[string]*jobState)}
}

// start marks kind as running. It reports false when kind already runs.
func (t *jobTracker) start(kind string, params map[string]any) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if j, ok := t.jobs[kind]; ok && j.Status == jobRunning {
		return false
	}
	now := time.Now().UTC()
	t.jobs[kind] = &jobState{Status: jobRunning, Params: params, StartedAt: &now}
	t.wg.Add(1)
	return true
}

func (t *jobTracker) finish(kind string, run *model.Run, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	defer t.wg.Done()
	j := t.jobs[kind]
	now := time.Now().UTC()
	j.FinishedAt = &now
	j.Run = run
	j.Status = jobCompleted
	if err != nil {
		j.Status = jobFailed
		j.Error = err.Error()
	}
}

func (t *jobTracker) snapshot(kind string) jobState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if j, ok := t.jobs[kind]; ok {
		return *j
	}
	return jobState{Status: jobIdle}
}

// wait blocks until every started job has finished.
func (t *jobTracker) wait() { t.wg.Wait() }

// server is the HTTP front end over the pipeline, the ingestor and run
// history.
type server struct {
	enrich   enrichService
	ingest   ingestService
	runs     runReader
	producer func(source, path string) (ingest.Producer, error)
	apiKey   string

	defaultLimit int
	staleDays    int

	jobs *jobTracker
	// ctx bounds background jobs; cancelling it stops them between batches.
	ctx context.Context
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)

		r.Post("/enrich", s.handleStartEnrich)
		r.Get("/enrich", s.handleJobStatus(jobEnrich))
		r.Post("/enrich/records", s.handleEnrichRecords)
		r.Post("/re-enrich", s.handleStartReEnrich)
		r.Get("/re-enrich", s.handleJobStatus(jobReEnrich))
		r.Post("/ingest", s.handleStartIngest)
		r.Get("/ingest", s.handleJobStatus(jobIngest))

		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/stats", s.handleStats)
	})
	return r
}

// requireAPIKey rejects requests without the configured X-API-Key. An empty
// key disables the check.
func (s *server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get("X-API-Key")), []byte(s.apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *server) handleStartEnrich(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Limit int `json:"limit"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Limit < 0 {
		writeError(w, http.StatusBadRequest, "limit must not be negative")
		return
	}
	if req.Limit == 0 {
		req.Limit = s.defaultLimit
	}
	s.launch(w, jobEnrich, map[string]any{"limit": req.Limit}, func(ctx context.Context) (*model.Run, error) {
		return s.enrich.EnrichPending(ctx, req.Limit)
	})
}

func (s *server) handleStartReEnrich(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Days  int `json:"days"`
		Limit int `json:"limit"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Days < 0 || req.Limit < 0 {
		writeError(w, http.StatusBadRequest, "days and limit must not be negative")
		return
	}
	if req.Days == 0 {
		req.Days = s.staleDays
	}
	if req.Limit == 0 {
		req.Limit = s.defaultLimit
	}
	s.launch(w, jobReEnrich, map[string]any{"days": req.Days, "limit": req.Limit}, func(ctx context.Context) (*model.Run, error) {
		return s.enrich.ReEnrichStale(ctx, req.Days, req.Limit)
	})
}

func (s *server) handleStartIngest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source   string `json:"source"`
		Path     string `json:"path"`
		Category string `json:"category"`
		Location string `json:"location"`
		Pages    int    `json:"pages"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Source == "" {
		req.Source = "file"
	}
	if req.Pages <= 0 {
		req.Pages = 5
	}
	p, err := s.producer(req.Source, req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	params := map[string]any{
		"source":   req.Source,
		"category": req.Category,
		"location": req.Location,
		"pages":    req.Pages,
	}
	s.launch(w, jobIngest, params, func(ctx context.Context) (*model.Run, error) {
		return s.ingest.Run(ctx, p, req.Category, req.Location, req.Pages)
	})
}

// handleEnrichRecords enriches the given ids synchronously.
func (s *server) handleEnrichRecords(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required")
		return
	}

	run, err := s.enrich.EnrichIDs(r.Context(), req.IDs)
	if err != nil {
		zap.L().Error("enrich records failed", zap.Strings("ids", req.IDs), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"status": jobFailed, "error": err.Error(), "run": run})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": jobCompleted, "run": run})
}

func (s *server) handleJobStatus(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.jobs.snapshot(kind))
	}
}

func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	runs, err := s.runs.ListRuns(r.Context(), store.RunFilter{
		Kind:   model.RunKind(q.Get("kind")),
		Status: model.RunStatus(q.Get("status")),
		Limit:  50,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.runs.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// launch starts fn as the background job of kind, or answers 409 when one
// is already running.
func (s *server) launch(w http.ResponseWriter, kind string, params map[string]any, fn func(context.Context) (*model.Run, error)) {
	if !s.jobs.start(kind, params) {
		writeError(w, http.StatusConflict, kind+" already running")
		return
	}
	go func() {
		run, err := fn(s.ctx)
		if err != nil {
			zap.L().Error("background job failed", zap.String("job", kind), zap.Error(err))
		}
		s.jobs.finish(kind, run, err)
	}()
	writeJSON(w, http.StatusAccepted, map[string]any{"status": jobRunning, "job": kind, "params": params})
}

// decodeBody decodes an optional JSON body into v. It writes a 400 and
// reports false on malformed input.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, "invalid request body")
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
