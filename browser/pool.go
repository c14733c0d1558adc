// Package browser owns the bounded pool of long-lived headless browser
// instances shared by the crawl pipeline. Browser startup is the dominant
// cost of automation, so instances are reused across many sequential page
// loads and only discarded when a liveness probe fails or they sit idle past
// the configured threshold.
package browser

import (
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/use-agent/dossier/config"
	"github.com/use-agent/dossier/models"
)

// Entry wraps one pooled browser instance. The pool owns every entry;
// callers borrow via Acquire and must Release, otherwise the entry is
// presumed lost and is force-closed on CloseAll.
type Entry struct {
	Browser  *rod.Browser
	lastUsed time.Time
	cleanup  func()
}

// LastUsed reports when the entry was last returned to the pool.
func (e *Entry) LastUsed() time.Time {
	return e.lastUsed
}

// Pool issues, returns and health-checks browser instances. It is safe for
// concurrent use; the only shared state is its own bookkeeping.
type Pool struct {
	cfg config.BrowserConfig

	mu       sync.Mutex
	idle     []*Entry
	borrowed map[*Entry]struct{}

	// launch and probe are swappable seams for tests.
	launch func() (*rod.Browser, func(), error)
	probe  func(*Entry) error
}

// NewPool creates a Pool. No browsers are started until the first Acquire.
func NewPool(cfg config.BrowserConfig) *Pool {
	if cfg.PoolSize < 1 {
		cfg.PoolSize = 1
	}
	p := &Pool{
		cfg:      cfg,
		borrowed: make(map[*Entry]struct{}),
	}
	p.launch = p.launchBrowser
	p.probe = probeLiveness
	return p
}

// Acquire returns a pooled, health-checked browser if one is idle, otherwise
// launches a fresh one. Entries failing the liveness probe are discarded, not
// returned. The only error Acquire can produce is a launch failure, which is
// fatal to the caller's pass.
func (p *Pool) Acquire() (*Entry, error) {
	p.evictExpired()

	for {
		p.mu.Lock()
		if len(p.idle) == 0 {
			p.mu.Unlock()
			break
		}
		entry := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		p.mu.Unlock()

		if err := p.probe(entry); err != nil {
			slog.Warn("pool: discarding stale browser", "error", err)
			closeEntry(entry)
			continue
		}

		p.mu.Lock()
		p.borrowed[entry] = struct{}{}
		p.mu.Unlock()
		return entry, nil
	}

	return p.acquireFresh()
}

func (p *Pool) acquireFresh() (*Entry, error) {
	attempts := 1 + p.cfg.LaunchRetries
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		b, cleanup, err := p.launch()
		if err == nil {
			entry := &Entry{Browser: b, lastUsed: time.Now(), cleanup: cleanup}
			p.mu.Lock()
			p.borrowed[entry] = struct{}{}
			p.mu.Unlock()
			return entry, nil
		}
		lastErr = err
		slog.Warn("pool: browser launch failed", "attempt", attempt, "error", err)
		if attempt < attempts {
			time.Sleep(p.cfg.LaunchBackoff)
		}
	}
	return nil, &models.LaunchError{Attempts: attempts, Err: lastErr}
}

// Release returns the entry to the pool if there is room, otherwise closes
// it. Always updates lastUsed.
func (p *Pool) Release(entry *Entry) {
	if entry == nil {
		return
	}
	entry.lastUsed = time.Now()

	p.mu.Lock()
	delete(p.borrowed, entry)
	if len(p.idle) < p.cfg.PoolSize {
		p.idle = append(p.idle, entry)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	closeEntry(entry)
}

// evictExpired removes and closes entries idle longer than the configured
// threshold. Called opportunistically before each Acquire.
func (p *Pool) evictExpired() {
	if p.cfg.IdleTimeout <= 0 {
		return
	}
	cutoff := time.Now().Add(-p.cfg.IdleTimeout)

	var expired []*Entry
	p.mu.Lock()
	kept := p.idle[:0]
	for _, entry := range p.idle {
		if entry.lastUsed.Before(cutoff) {
			expired = append(expired, entry)
		} else {
			kept = append(kept, entry)
		}
	}
	p.idle = kept
	p.mu.Unlock()

	for _, entry := range expired {
		slog.Debug("pool: evicting idle browser", "idle", time.Since(entry.lastUsed).Round(time.Second))
		closeEntry(entry)
	}
}

// CloseAll drains and closes every pooled and currently-borrowed instance.
// Used at process shutdown.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	entries := make([]*Entry, 0, len(p.idle)+len(p.borrowed))
	entries = append(entries, p.idle...)
	for entry := range p.borrowed {
		entries = append(entries, entry)
	}
	p.idle = nil
	p.borrowed = make(map[*Entry]struct{})
	p.mu.Unlock()

	for _, entry := range entries {
		closeEntry(entry)
	}
	slog.Info("pool: closed all browsers", "count", len(entries))
}

// Stats returns a point-in-time view of the pool.
func (p *Pool) Stats() models.PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return models.PoolStats{
		MaxSize:  p.cfg.PoolSize,
		Idle:     len(p.idle),
		Borrowed: len(p.borrowed),
	}
}

// launchBrowser starts a headless Chromium with the anti-automation flags
// masked and connects a rod client to it.
func (p *Pool) launchBrowser() (*rod.Browser, func(), error) {
	l := launcher.New().
		Headless(p.cfg.Headless).
		NoSandbox(p.cfg.NoSandbox)

	if p.cfg.BrowserBin != "" {
		l = l.Bin(p.cfg.BrowserBin)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, nil, err
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, nil, err
	}
	slog.Info("pool: browser launched", "controlURL", controlURL)

	return b, l.Kill, nil
}

// probeLiveness checks that the instance can still enumerate its open pages.
func probeLiveness(entry *Entry) error {
	_, err := entry.Browser.Pages()
	return err
}

// closeEntry is best-effort; bookkeeping errors must never cascade into
// crawl failures.
func closeEntry(entry *Entry) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("pool: panic while closing browser", "panic", r)
		}
	}()
	if entry.Browser != nil {
		if err := entry.Browser.Close(); err != nil {
			slog.Debug("pool: browser close", "error", err)
		}
	}
	if entry.cleanup != nil {
		entry.cleanup()
	}
}
