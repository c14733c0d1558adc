package auth

import (
	"time"

	"github.com/go-rod/rod"
	"github.com/use-agent/dossier/browser"
	"github.com/use-agent/dossier/models"
)

// Session is an authenticated, navigable handle bound to one pool entry. It
// is owned exclusively by whichever caller currently holds it and is never
// shared concurrently; callers return the underlying entry to the pool when
// the sequence of page loads is done.
type Session struct {
	Entry   *browser.Entry
	Page    *rod.Page
	Surface Surface

	Authenticated bool

	// Actions is the append-only diagnostic trail of the flow that produced
	// this session.
	Actions []models.Action

	// HTML is the rendered content of the target page captured at
	// authentication time.
	HTML string

	lastUsed time.Time
}

// Touch marks the session as just used.
func (s *Session) Touch() {
	s.lastUsed = time.Now()
}

// LastUsed reports when the session last loaded a page.
func (s *Session) LastUsed() time.Time {
	return s.lastUsed
}

// Close closes the session's page. The pool entry stays alive and must be
// released separately.
func (s *Session) Close() {
	if s.Page != nil {
		_ = s.Page.Close()
	}
}
