package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blok-blok-studio/leadscraper/internal/config"
	"github.com/blok-blok-studio/leadscraper/internal/ingest"
	"github.com/blok-blok-studio/leadscraper/internal/model"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"enrich", "re-enrich", "ingest", "serve", "stats", "export", "runs"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "leadscraper", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestEnrichCommand_Flags(t *testing.T) {
	require.NotNil(t, enrichCmd.Flags().Lookup("limit"))
	require.NotNil(t, enrichCmd.Flags().Lookup("ids"))

	days := reEnrichCmd.Flags().Lookup("days")
	require.NotNil(t, days)
	assert.Equal(t, "0", days.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestIngestCommand_Flags(t *testing.T) {
	flag := ingestCmd.Flags().Lookup("source")
	require.NotNil(t, flag)
	assert.Equal(t, "file", flag.DefValue)
}

func TestProducerFor(t *testing.T) {
	p, err := producerFor("file", "leads.csv")
	require.NoError(t, err)
	fp, ok := p.(*ingest.FileProducer)
	require.True(t, ok)
	assert.Equal(t, "leads.csv", fp.Path)

	_, err = producerFor("file", "")
	assert.Error(t, err)

	_, err = producerFor("googlemaps", "leads.csv")
	assert.Error(t, err)
}

func TestAcquireRunLock(t *testing.T) {
	path := t.TempDir() + "/leadscraper.lock"
	lock, err := acquireRunLock(path)
	require.NoError(t, err)

	_, err = acquireRunLock(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another enrichment run")

	require.NoError(t, lock.Unlock())
	again, err := acquireRunLock(path)
	require.NoError(t, err)
	_ = again.Unlock()
}

func TestTransportOptions(t *testing.T) {
	cfg = &config.Config{Transport: config.TransportConfig{
		TimeoutSecs:     15,
		MinDelayMs:      500,
		MaxRetries:      4,
		InitialBackoffS: 0.5,
		MaxBackoffS:     10,
		BreakerFailures: 3,
		BreakerResetS:   20,
	}}
	t.Cleanup(func() { cfg = nil })

	opts := transportOptions()
	assert.Equal(t, 15*time.Second, opts.Timeout)
	assert.Equal(t, 500*time.Millisecond, opts.MinDelay)
	assert.Equal(t, 4, opts.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, opts.Retry.InitialBackoff)
	assert.Equal(t, 10*time.Second, opts.Retry.MaxBackoff)
	assert.Nil(t, opts.Renderer)
}

func TestPipelineConfig(t *testing.T) {
	cfg = &config.Config{Batch: config.BatchConfig{Size: 4, PhaseTwoWorkers: 3, StrategyTimeoutSecs: 90}}
	t.Cleanup(func() { cfg = nil })

	pc := pipelineConfig()
	assert.Equal(t, 4, pc.BatchSize)
	assert.Equal(t, 3, pc.PhaseTwoWorkers)
	assert.Equal(t, 90*time.Second, pc.StrategyTimeout)
}

func TestStrategyPolicy_FileOverridesOnlyItsKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policy:\n  excluded_domains: [localdirectory.com]\n"), 0o644))
	cfg = &config.Config{Strategy: config.StrategyConfig{AcceptTollFree: false, MaxExtraPages: 6, PolicyFile: path}}
	t.Cleanup(func() { cfg = nil })

	p, err := strategyPolicy()
	require.NoError(t, err)
	assert.False(t, p.AcceptTollFree)
	assert.Equal(t, 6, p.MaxExtraPages)
	assert.True(t, p.Excluded("www.localdirectory.com"))

	cfg.Strategy.PolicyFile = ""
	p, err = strategyPolicy()
	require.NoError(t, err)
	assert.Equal(t, 6, p.MaxExtraPages)
}

func TestWriteRunSummary(t *testing.T) {
	stale := 3
	var buf bytes.Buffer
	writeRunSummary(&buf, &model.Run{
		ID:      "run-1",
		Kind:    model.RunKindReEnrich,
		Status:  model.RunStatusComplete,
		Summary: &model.Summary{Total: 3, Success: 2, Failed: 1, StaleFound: &stale},
	})
	out := buf.String()
	assert.Contains(t, out, "re_enrich")
	assert.Contains(t, out, "stale found")
	assert.Contains(t, out, "failed")
	assert.NotContains(t, out, "skipped")
}

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Kind:      model.RunKindEnrich,
			Status:    model.RunStatusComplete,
			Summary:   &model.Summary{Total: 5, Success: 4, Failed: 1},
			CreatedAt: now,
			UpdatedAt: now.Add(2 * time.Minute),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Kind:      model.RunKindIngest,
			Status:    model.RunStatusRunning,
			CreatedAt: now.Add(-time.Hour),
			UpdatedAt: now.Add(-time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	out := buf.String()
	assert.Contains(t, out, "abc12345")
	assert.NotContains(t, out, "abc12345-6789")
	assert.Contains(t, out, "enrich")
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "2m0s")
	assert.Contains(t, out, "ingest")
	assert.Contains(t, out, "2025-06-15 10:30")
}

func TestFormatStats(t *testing.T) {
	var buf bytes.Buffer
	formatStats(&buf, &model.Stats{
		TotalRecords:      4,
		EnrichedRecords:   3,
		UnenrichedRecords: 1,
		AvgQualityScore:   62.5,
		TopStates:         []model.CountByKey{{Key: "FL", Count: 3}, {Key: "TX", Count: 1}},
	})
	out := buf.String()
	assert.Contains(t, out, "3 (75.0%)")
	assert.Contains(t, out, "62.5")
	assert.Contains(t, out, "FL")
	assert.NotContains(t, out, "CATEGORY")
}
