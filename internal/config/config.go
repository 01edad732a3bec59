package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Transport  TransportConfig  `yaml:"transport" mapstructure:"transport"`
	Browser    BrowserConfig    `yaml:"browser" mapstructure:"browser"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Dedup      DedupConfig      `yaml:"dedup" mapstructure:"dedup"`
	Verify     VerifyConfig     `yaml:"verify" mapstructure:"verify"`
	Strategy   StrategyConfig   `yaml:"strategy" mapstructure:"strategy"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
	LockFile    string `yaml:"lock_file" mapstructure:"lock_file"`
}

// TransportConfig configures the shared HTTP transport.
type TransportConfig struct {
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MinDelayMs      int     `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	JitterFraction  float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	MaxRetries      int     `yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoffS float64 `yaml:"initial_backoff_secs" mapstructure:"initial_backoff_secs"`
	MaxBackoffS     float64 `yaml:"max_backoff_secs" mapstructure:"max_backoff_secs"`
	MaxBodyBytes    int64   `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	BreakerFailures int     `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerResetS   int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// BrowserConfig configures the headless browser used for rendered fetches.
type BrowserConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Bin         string `yaml:"bin" mapstructure:"bin"`
	PageTimeout int    `yaml:"page_timeout_secs" mapstructure:"page_timeout_secs"`
	MaxSettleMs int    `yaml:"max_settle_ms" mapstructure:"max_settle_ms"`
}

// SearchConfig configures the web search endpoint used by the strategies.
type SearchConfig struct {
	BaseURL          string `yaml:"base_url" mapstructure:"base_url"`
	NumResults       int    `yaml:"num_results" mapstructure:"num_results"`
	QueriesPerMinute int    `yaml:"queries_per_minute" mapstructure:"queries_per_minute"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Size                int `yaml:"size" mapstructure:"size"`
	PhaseTwoWorkers     int `yaml:"phase_two_workers" mapstructure:"phase_two_workers"`
	DefaultLimit        int `yaml:"default_limit" mapstructure:"default_limit"`
	StaleDays           int `yaml:"stale_days" mapstructure:"stale_days"`
	StrategyTimeoutSecs int `yaml:"strategy_timeout_secs" mapstructure:"strategy_timeout_secs"`
}

// DedupConfig configures the duplicate matcher.
type DedupConfig struct {
	FuzzyThreshold int `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	CandidateLimit int `yaml:"candidate_limit" mapstructure:"candidate_limit"`
}

// VerifyConfig configures mailbox verification.
type VerifyConfig struct {
	SMTPTimeoutSecs int    `yaml:"smtp_timeout_secs" mapstructure:"smtp_timeout_secs"`
	SMTPPort        int    `yaml:"smtp_port" mapstructure:"smtp_port"`
	HeloDomain      string `yaml:"helo_domain" mapstructure:"helo_domain"`
	MailFrom        string `yaml:"mail_from" mapstructure:"mail_from"`
	SkipSMTP        bool   `yaml:"skip_smtp" mapstructure:"skip_smtp"`
}

// StrategyConfig configures discovery strategy policy.
type StrategyConfig struct {
	AcceptTollFree bool   `yaml:"accept_toll_free" mapstructure:"accept_toll_free"`
	MaxExtraPages  int    `yaml:"max_extra_pages" mapstructure:"max_extra_pages"`
	PolicyFile     string `yaml:"policy_file" mapstructure:"policy_file"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port   int    `yaml:"port" mapstructure:"port"`
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// ExportConfig configures lead exports.
type ExportConfig struct {
	Dir    string `yaml:"dir" mapstructure:"dir"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MonitoringConfig configures background run-health alerting in serve mode.
type MonitoringConfig struct {
	Enabled                bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL             string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs      int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours    int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold   float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	RecordFailureThreshold float64 `yaml:"record_failure_threshold" mapstructure:"record_failure_threshold"`
	StuckRunMins           int     `yaml:"stuck_run_mins" mapstructure:"stuck_run_mins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leads.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("store.lock_file", "leadscraper.lock")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("transport.timeout_secs", 30)
	v.SetDefault("transport.min_delay_ms", 2000)
	v.SetDefault("transport.jitter_fraction", 0.5)
	v.SetDefault("transport.max_retries", 3)
	v.SetDefault("transport.initial_backoff_secs", 2.0)
	v.SetDefault("transport.max_backoff_secs", 30.0)
	v.SetDefault("transport.max_body_bytes", 5<<20)
	v.SetDefault("transport.breaker_failures", 5)
	v.SetDefault("transport.breaker_reset_secs", 60)
	v.SetDefault("browser.enabled", false)
	v.SetDefault("browser.page_timeout_secs", 30)
	v.SetDefault("browser.max_settle_ms", 5000)
	v.SetDefault("search.base_url", "https://www.google.com/search")
	v.SetDefault("search.num_results", 10)
	v.SetDefault("search.queries_per_minute", 20)
	v.SetDefault("batch.size", 5)
	v.SetDefault("batch.phase_two_workers", 7)
	v.SetDefault("batch.default_limit", 50)
	v.SetDefault("batch.stale_days", 30)
	v.SetDefault("batch.strategy_timeout_secs", 180)
	v.SetDefault("dedup.fuzzy_threshold", 85)
	v.SetDefault("dedup.candidate_limit", 50)
	v.SetDefault("verify.smtp_timeout_secs", 5)
	v.SetDefault("verify.smtp_port", 25)
	v.SetDefault("verify.helo_domain", "mail.verify.local")
	v.SetDefault("verify.mail_from", "verify@verify.local")
	v.SetDefault("strategy.accept_toll_free", true)
	v.SetDefault("strategy.max_extra_pages", 2)
	v.SetDefault("export.dir", "exports")
	v.SetDefault("export.format", "csv")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.record_failure_threshold", 0.5)
	v.SetDefault("monitoring.stuck_run_mins", 180)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs before it starts.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	switch mode {
	case "enrich", "serve":
		if c.Batch.Size < 1 {
			problems = append(problems, "batch.size must be at least 1")
		}
		if c.Batch.StrategyTimeoutSecs < 0 {
			problems = append(problems, "batch.strategy_timeout_secs must not be negative")
		}
		if c.Dedup.FuzzyThreshold < 0 || c.Dedup.FuzzyThreshold > 100 {
			problems = append(problems, "dedup.fuzzy_threshold must be within 0-100")
		}
		if c.Search.BaseURL == "" {
			problems = append(problems, "search.base_url is required")
		}
	}
	if mode == "serve" && (c.Server.Port < 1 || c.Server.Port > 65535) {
		problems = append(problems, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if mode == "serve" && c.Monitoring.Enabled && c.Monitoring.WebhookURL == "" {
		problems = append(problems, "monitoring.webhook_url is required when monitoring is enabled")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
