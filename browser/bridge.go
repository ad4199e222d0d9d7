// CLAUDE:SUMMARY Live-page bridge: launches or connects to Chrome via Rod and injects compiled suppression CSS.
// Package browser bridges the in-memory suppression engine to a live
// Chrome page. It compiles applied rules to a stylesheet and injects it
// into pages opened through Rod, with stealth applied so the injected
// styles survive bot-detection scripts that probe for automation.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

const sheetID = "domveil-sheet"

// Config configures the bridge.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Headless controls local launch mode. Default: true.
	Headless bool

	// NavTimeout bounds each navigation. Default: 30s.
	NavTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Bridge manages a Chrome connection for live injection.
type Bridge struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewBridge creates a Bridge. Call Connect before opening pages.
func NewBridge(cfg Config) *Bridge {
	cfg.defaults()
	return &Bridge{cfg: cfg}
}

// Connect launches Chrome (or connects to a remote instance).
func (b *Bridge) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("browser: bridge is closed")
	}
	if b.browser != nil {
		return nil
	}

	wsURL := b.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(b.cfg.Headless)
		l = l.Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		b.lnch = l
		b.cfg.Logger.Info("browser: launched local chrome", "url", wsURL)
	} else {
		b.cfg.Logger.Info("browser: connecting to remote", "url", wsURL)
	}

	br := rod.New().ControlURL(wsURL).Context(ctx)
	if err := br.Connect(); err != nil {
		return fmt.Errorf("browser: connect: %w", err)
	}
	if err := br.IgnoreCertErrors(true); err != nil {
		b.cfg.Logger.Warn("browser: ignore cert errors failed", "error", err)
	}
	b.browser = br
	return nil
}

// Close shuts down Chrome.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			return fmt.Errorf("browser: close: %w", err)
		}
		b.browser = nil
	}
	if b.lnch != nil {
		b.lnch.Cleanup()
		b.lnch = nil
	}
	return nil
}

// Open navigates a new stealth page to pageURL and injects the given CSS.
// The caller owns the returned page and must Close it.
func (b *Bridge) Open(ctx context.Context, pageURL, css string) (*rod.Page, error) {
	b.mu.Lock()
	br := b.browser
	b.mu.Unlock()
	if br == nil {
		return nil, fmt.Errorf("browser: not connected")
	}

	page, err := stealth.Page(br)
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, b.cfg.NavTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		b.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	if err := Inject(ctx, page, css); err != nil {
		page.Close()
		return nil, err
	}
	return page, nil
}

// Inject installs (or replaces) the suppression stylesheet on a page.
// Idempotent: a second call swaps the sheet content in place.
func Inject(ctx context.Context, page *rod.Page, css string) error {
	_, err := page.Context(ctx).Eval(`(id, css) => {
		let el = document.getElementById(id);
		if (!el) {
			el = document.createElement('style');
			el.id = id;
			(document.head || document.documentElement).appendChild(el);
		}
		el.textContent = css;
	}`, sheetID, css)
	if err != nil {
		return fmt.Errorf("browser: inject stylesheet: %w", err)
	}
	return nil
}

// Eject removes the suppression stylesheet from a page.
func Eject(ctx context.Context, page *rod.Page) error {
	_, err := page.Context(ctx).Eval(`(id) => {
		const el = document.getElementById(id);
		if (el) el.remove();
	}`, sheetID)
	if err != nil {
		return fmt.Errorf("browser: eject stylesheet: %w", err)
	}
	return nil
}

// FetchDOM serialises the page's current DOM as outer HTML, letting the
// in-memory engine re-parse what the live page actually renders.
func FetchDOM(ctx context.Context, page *rod.Page) (string, error) {
	res, err := page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: fetch DOM: %w", err)
	}
	return res.Value.Str(), nil
}
