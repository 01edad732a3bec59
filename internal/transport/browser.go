package transport

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BrowserConfig configures the headless browser.
type BrowserConfig struct {
	// Bin is the Chrome binary; empty lets the launcher find or download one.
	Bin string
	// PageTimeout bounds navigation plus readiness wait for one page.
	PageTimeout time.Duration
	// MaxSettle caps the extra settle delay a caller may request.
	MaxSettle time.Duration
}

// blockedResources are request types that never affect extracted content.
var blockedResources = map[proto.NetworkResourceType]bool{
	proto.NetworkResourceTypeImage:      true,
	proto.NetworkResourceTypeFont:       true,
	proto.NetworkResourceTypeMedia:      true,
	proto.NetworkResourceTypeStylesheet: true,
}

// Browser renders pages in one long-lived headless Chrome. The process is
// started on first use; every Render opens and closes its own page, so
// renders may run concurrently while start and shutdown are serialized.
type Browser struct {
	cfg BrowserConfig

	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewBrowser creates a Browser. Chrome is not launched until the first Render.
func NewBrowser(cfg BrowserConfig) *Browser {
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 30 * time.Second
	}
	if cfg.MaxSettle <= 0 {
		cfg.MaxSettle = 5 * time.Second
	}
	return &Browser{cfg: cfg}
}

func (b *Browser) handle() (*rod.Browser, error) {
	b.mu.RLock()
	rb, closed := b.browser, b.closed
	b.mu.RUnlock()
	if closed {
		return nil, eris.New("browser: closed")
	}
	if rb != nil {
		return rb, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, eris.New("browser: closed")
	}
	if b.browser != nil {
		return b.browser, nil
	}

	l := launcher.New().Headless(true).Set("disable-blink-features", "AutomationControlled")
	if b.cfg.Bin != "" {
		l = l.Bin(b.cfg.Bin)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, eris.Wrap(err, "browser: launch")
	}
	rb = rod.New().ControlURL(u)
	if err := rb.Connect(); err != nil {
		l.Cleanup()
		return nil, eris.Wrap(err, "browser: connect")
	}
	if err := rb.IgnoreCertErrors(true); err != nil {
		zap.L().Warn("browser: ignore cert errors failed", zap.Error(err))
	}

	b.browser, b.lnch = rb, l
	zap.L().Info("browser: launched headless chrome")
	return rb, nil
}

// Render loads rawURL, waits for readiness and returns the serialized DOM.
func (b *Browser) Render(ctx context.Context, rawURL string, wait WaitCondition) (*RenderedPage, error) {
	rb, err := b.handle()
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(rb)
	if err != nil {
		return nil, eris.Wrap(err, "browser: open page")
	}
	defer func() {
		if err := page.Close(); err != nil {
			zap.L().Debug("browser: close page", zap.Error(err))
		}
	}()

	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if blockedResources[h.Request.Type()] {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	defer func() { _ = router.Stop() }()

	pageCtx, cancel := context.WithTimeout(ctx, b.cfg.PageTimeout)
	defer cancel()
	p := page.Context(pageCtx)

	if err := p.Navigate(rawURL); err != nil {
		return nil, eris.Wrapf(err, "browser: navigate %s", rawURL)
	}
	if err := p.WaitLoad(); err != nil {
		zap.L().Debug("browser: wait load", zap.String("url", rawURL), zap.Error(err))
	}
	if wait.Selector != "" {
		if _, err := p.Element(wait.Selector); err != nil {
			return nil, eris.Wrapf(err, "browser: wait for %q", wait.Selector)
		}
	}
	if settle := min(wait.Settle, b.cfg.MaxSettle); settle > 0 {
		timer := time.NewTimer(settle)
		select {
		case <-pageCtx.Done():
			timer.Stop()
			return nil, eris.Wrap(pageCtx.Err(), "browser: settle")
		case <-timer.C:
		}
	}

	res, err := p.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, eris.Wrap(err, "browser: read dom")
	}

	final := rawURL
	if info, err := p.Info(); err == nil && info.URL != "" {
		final = info.URL
	}
	return &RenderedPage{URL: final, HTML: res.Value.Str()}, nil
}

// Close shuts Chrome down. Further renders fail.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.lnch != nil {
		b.lnch.Cleanup()
		b.lnch = nil
	}
	return eris.Wrap(err, "browser: close")
}
