package transport

import (
	"time"

	"github.com/blok-blok-studio/leadscraper/internal/resilience"
)

func newTestClient(renderer Renderer) *Client {
	return NewClient(Options{
		Timeout: 2 * time.Second,
		Retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
		},
		Breaker:  resilience.BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute},
		Renderer: renderer,
	})
}
