package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/blok-blok-studio/leadscraper/internal/config"
	"github.com/blok-blok-studio/leadscraper/internal/model"
)

func TestChecker_CheckSendsAlerts(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	cfg := thresholds()
	cfg.WebhookURL = ts.URL
	cfg.LookbackWindowHours = 24

	st := &stubRuns{}
	for i := 0; i < 6; i++ {
		st.runs = append(st.runs, run("f", model.RunKindEnrich, model.RunStatusFailed, time.Hour, 0, 0))
	}
	checker := New(st, cfg)
	checker.collector.now = func() time.Time { return checkNow }

	assert.Equal(t, 1, checker.Check(context.Background()))
	assert.Equal(t, int32(1), received.Load())
}

func TestChecker_CheckCollectError(t *testing.T) {
	checker := New(&stubRuns{listErr: assert.AnError}, thresholds())
	assert.Equal(t, 0, checker.Check(context.Background()))
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	checker := New(&stubRuns{}, config.MonitoringConfig{
		CheckIntervalSecs:   1,
		LookbackWindowHours: 24,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_DefaultInterval(t *testing.T) {
	checker := New(&stubRuns{}, config.MonitoringConfig{})
	assert.NotNil(t, checker)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
}
