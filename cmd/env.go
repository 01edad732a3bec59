package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/blok-blok-studio/leadscraper/internal/dedup"
	"github.com/blok-blok-studio/leadscraper/internal/ingest"
	"github.com/blok-blok-studio/leadscraper/internal/pipeline"
	"github.com/blok-blok-studio/leadscraper/internal/resilience"
	"github.com/blok-blok-studio/leadscraper/internal/store"
	"github.com/blok-blok-studio/leadscraper/internal/strategy"
	"github.com/blok-blok-studio/leadscraper/internal/transport"
	"github.com/blok-blok-studio/leadscraper/internal/verify"
)

// initStore opens the configured store and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// appEnv holds the store, transport and services shared by the enrich,
// ingest and serve commands.
type appEnv struct {
	Store    store.Store
	Client   *transport.Client
	Pipeline *pipeline.Pipeline
	Ingestor *ingest.Ingestor
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Client != nil {
		if err := e.Client.Close(); err != nil {
			zap.L().Warn("close transport", zap.Error(err))
		}
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv wires the store, transport, strategy catalog, verifier and
// matcher. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	policy, err := strategyPolicy()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	client := transport.NewClient(transportOptions())
	deps := strategy.Deps{
		Search: strategy.NewSearcher(strategy.SearchConfig{
			BaseURL:          cfg.Search.BaseURL,
			NumResults:       cfg.Search.NumResults,
			QueriesPerMinute: cfg.Search.QueriesPerMinute,
		}),
		Policy: policy,
	}
	verifier := verify.New(verify.Config{
		SMTPTimeout: time.Duration(cfg.Verify.SMTPTimeoutSecs) * time.Second,
		SMTPPort:    cfg.Verify.SMTPPort,
		HeloDomain:  cfg.Verify.HeloDomain,
		MailFrom:    cfg.Verify.MailFrom,
		SkipSMTP:    cfg.Verify.SkipSMTP,
	}, nil, nil)

	p := pipeline.New(st, pipeline.ClientSessions(client), pipeline.DefaultCatalog(deps, verifier), pipelineConfig())
	matcher := dedup.NewMatcher(st, dedup.Config{
		FuzzyThreshold: cfg.Dedup.FuzzyThreshold,
		CandidateLimit: cfg.Dedup.CandidateLimit,
	})

	zap.L().Debug("environment ready",
		zap.String("store", cfg.Store.Driver),
		zap.Bool("browser", cfg.Browser.Enabled),
		zap.Int("batch_size", cfg.Batch.Size),
	)

	return &appEnv{
		Store:    st,
		Client:   client,
		Pipeline: p,
		Ingestor: ingest.New(st, matcher),
	}, nil
}

func transportOptions() transport.Options {
	t := cfg.Transport
	opts := transport.Options{
		Timeout:        time.Duration(t.TimeoutSecs) * time.Second,
		MinDelay:       time.Duration(t.MinDelayMs) * time.Millisecond,
		JitterFraction: t.JitterFraction,
		MaxBodyBytes:   t.MaxBodyBytes,
		Retry: resilience.NewRetryConfig(t.MaxRetries,
			time.Duration(t.InitialBackoffS*float64(time.Second)),
			time.Duration(t.MaxBackoffS*float64(time.Second)),
		),
		Breaker: resilience.NewBreakerConfig(t.BreakerFailures, time.Duration(t.BreakerResetS)*time.Second),
	}
	if cfg.Browser.Enabled {
		opts.Renderer = transport.NewBrowser(transport.BrowserConfig{
			Bin:         cfg.Browser.Bin,
			PageTimeout: time.Duration(cfg.Browser.PageTimeout) * time.Second,
			MaxSettle:   time.Duration(cfg.Browser.MaxSettleMs) * time.Millisecond,
		})
	}
	return opts
}

// strategyPolicy builds the strategy policy from the strategy settings. A
// policy file overrides only the keys it sets.
func strategyPolicy() (strategy.Policy, error) {
	policy := strategy.Policy{
		AcceptTollFree: cfg.Strategy.AcceptTollFree,
		MaxExtraPages:  cfg.Strategy.MaxExtraPages,
	}
	if cfg.Strategy.PolicyFile == "" {
		return policy, nil
	}
	return strategy.LoadPolicy(cfg.Strategy.PolicyFile, policy)
}

func pipelineConfig() pipeline.Config {
	return pipeline.Config{
		BatchSize:       cfg.Batch.Size,
		PhaseTwoWorkers: cfg.Batch.PhaseTwoWorkers,
		StrategyTimeout: time.Duration(cfg.Batch.StrategyTimeoutSecs) * time.Second,
	}
}

// producerFor resolves an ingest source by name. The file producer reads
// path.
func producerFor(source, path string) (ingest.Producer, error) {
	reg := ingest.Registry{"file": &ingest.FileProducer{Path: path}}
	p, err := reg.Get(source)
	if err != nil {
		return nil, err
	}
	if fp, ok := p.(*ingest.FileProducer); ok && fp.Path == "" {
		return nil, eris.New("file source requires a path")
	}
	return p, nil
}
