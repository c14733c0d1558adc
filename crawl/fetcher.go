package crawl

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/use-agent/dossier/auth"
	"github.com/use-agent/dossier/browser"
	"github.com/use-agent/dossier/config"
	"github.com/use-agent/dossier/models"
)

// Fetcher retrieves and parses one entity page. ok is false on a miss (the
// entity does not exist, is inaccessible, or the page did not parse). A
// non-nil error is inspected with passFatal to decide whether it aborts the
// surrounding domain pass.
type Fetcher interface {
	Fetch(ctx context.Context, d Domain, id int) (models.Record, bool, error)
}

// BrowserFetcher loads entity pages through pooled, authenticated browser
// sessions. Each fetch borrows its own session from the pool and returns it
// when done, so fetches within a batch can safely interleave.
type BrowserFetcher struct {
	pool    *browser.Pool
	auth    *auth.Authenticator
	site    config.SiteConfig
	limiter *rate.Limiter
}

// NewBrowserFetcher creates a BrowserFetcher. rps paces page loads against
// the remote host across all concurrent fetches.
func NewBrowserFetcher(pool *browser.Pool, authenticator *auth.Authenticator, site config.SiteConfig, rps float64) *BrowserFetcher {
	if rps <= 0 {
		rps = 1
	}
	return &BrowserFetcher{
		pool:    pool,
		auth:    authenticator,
		site:    site,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (f *BrowserFetcher) Fetch(ctx context.Context, d Domain, id int) (models.Record, bool, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return models.Record{}, false, err
	}

	entry, err := f.pool.Acquire()
	if err != nil {
		return models.Record{}, false, err
	}
	defer f.pool.Release(entry)

	target := f.site.BaseURL + d.PagePath(id)
	sess, err := f.auth.Establish(ctx, entry, target)
	if err != nil {
		return models.Record{}, false, err
	}
	defer sess.Close()

	rec, ok := d.Parser.Parse(sess.HTML)
	if !ok {
		return models.Record{}, false, nil
	}
	// The requested URL defines the identity; the parsed value is advisory.
	rec.ID = id
	return rec, true, nil
}

// passFatal reports whether a fetch error must abort the current domain
// pass. Launch failures and authentication failures are fatal; a lost
// connection on a single page is a per-item miss like any timeout.
func passFatal(err error) bool {
	var launchErr *models.LaunchError
	if errors.As(err, &launchErr) {
		return true
	}
	var authErr *models.AuthError
	if errors.As(err, &authErr) {
		return authErr.Code != models.ErrCodeConnectionLost
	}
	return false
}
