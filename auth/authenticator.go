// Package auth turns a pooled browser instance and a target URL into an
// authenticated session, or a typed, diagnosable failure. The login flow of
// the remote site is adversarial and not under our control, so the
// authenticator tries a cheap cookie fast-path before the full form flow and
// several "where did I actually end up" strategies before declaring failure.
// Every transition appends to an action log that is the only diagnostic
// surface callers get on failure.
package auth

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/dossier/browser"
	"github.com/use-agent/dossier/config"
	"github.com/use-agent/dossier/models"
)

// Authenticator drives the session-authentication state machine. It is
// stateless across attempts and safe for concurrent use.
type Authenticator struct {
	site       config.SiteConfig
	navTimeout time.Duration
	candidates []Candidate

	// probe, when set, pre-checks the stored session token over plain HTTP
	// before a browser is spent on the cookie fast-path.
	probe *TokenProbe
}

// New creates an Authenticator. It fails fast when a selector in the
// candidate list does not parse.
func New(site config.SiteConfig, navTimeout time.Duration) (*Authenticator, error) {
	if err := ValidateCandidates(DefaultCandidates); err != nil {
		return nil, err
	}
	return &Authenticator{
		site:       site,
		navTimeout: navTimeout,
		candidates: DefaultCandidates,
		probe:      NewTokenProbe(),
	}, nil
}

// Establish produces an authenticated session on the given pool entry,
// navigated to targetURL, or a typed *models.AuthError. Login-flow failures
// are not retried here: blind retry against an anti-bot system risks making
// detection worse, so the caller gets the full trail instead.
func (a *Authenticator) Establish(ctx context.Context, entry *browser.Entry, targetURL string) (*Session, error) {
	surface, page, err := newRodSurface(ctx, entry.Browser, a.site.BaseURL, a.navTimeout)
	if err != nil {
		return nil, models.NewAuthError(models.ErrCodeConnectionLost, "failed to open page on pooled browser", err)
	}

	sess := &Session{Entry: entry, Page: page, Surface: surface}
	actions, html, err := a.establish(ctx, surface, targetURL)
	sess.Actions = actions
	if err != nil {
		sess.Close()
		return nil, err
	}
	sess.Authenticated = true
	sess.HTML = html
	sess.Touch()
	return sess, nil
}

// trail is the append-only action log of one attempt.
type trail struct {
	actions []models.Action
}

func (t *trail) add(step string, success bool, data map[string]string) {
	t.actions = append(t.actions, models.NewAction(step, success, data))
}

// establish runs the state machine on any Surface. Returned actions always
// hold the full trail, success or failure.
func (a *Authenticator) establish(ctx context.Context, s Surface, targetURL string) ([]models.Action, string, error) {
	t := &trail{}

	// ── COOKIE_ATTEMPT ──────────────────────────────────────────────
	if a.site.SessionToken != "" {
		if html, ok := a.cookieAttempt(ctx, s, targetURL, t); ok {
			return t.actions, html, nil
		}
		// Fast-path failed; fall through to the full form flow.
	}

	// ── FORM_LOGIN ──────────────────────────────────────────────────
	if a.site.Username == "" || a.site.Password == "" {
		return t.actions, "", a.fail(s, t, models.ErrCodeMissingCredentials,
			"no usable session token and no credentials configured", false, nil)
	}

	loginURL := a.site.BaseURL + a.site.LoginPath
	if err := s.Navigate(loginURL); err != nil {
		t.add(models.StepFormLogin, false, map[string]string{"url": loginURL, "error": err.Error()})
		return t.actions, "", a.fail(s, t, models.ErrCodeConnectionLost,
			"could not reach the login surface", false, err)
	}
	t.add(models.StepFormLogin, true, map[string]string{"url": loginURL})

	// ── FIELD_DETECT ────────────────────────────────────────────────
	identitySel, identityTried := a.firstMatch(s, RoleIdentity)
	secretSel, secretTried := a.firstMatch(s, RoleSecret)
	if identitySel == "" || secretSel == "" {
		challenge := a.detectChallenge(s)
		t.add(models.StepFieldDetect, false, map[string]string{
			"tried_identity": strings.Join(identityTried, " "),
			"tried_secret":   strings.Join(secretTried, " "),
			"challenge":      boolStr(challenge),
		})
		return t.actions, "", a.fail(s, t, models.ErrCodeFieldsNotFound,
			"credential-entry controls not found on login surface", challenge, nil)
	}
	t.add(models.StepFieldDetect, true, map[string]string{
		"identity": identitySel,
		"secret":   secretSel,
	})

	// ── CREDENTIALS_SUBMIT ──────────────────────────────────────────
	if err := a.submitCredentials(s, identitySel, secretSel, t); err != nil {
		return t.actions, "", err
	}

	// ── TARGET_VERIFY ───────────────────────────────────────────────
	html, err := a.verifyTarget(s, targetURL, t)
	if err != nil {
		return t.actions, "", err
	}
	return t.actions, html, nil
}

// cookieAttempt installs the stored session cookie, navigates to the target
// and verifies arrival. Any failure is recorded and reported as a simple
// fallthrough to form login, never an error.
func (a *Authenticator) cookieAttempt(ctx context.Context, s Surface, targetURL string, t *trail) (string, bool) {
	if a.probe != nil {
		checkURL := a.site.BaseURL + a.site.ContextPath
		valid, err := a.probe.Valid(ctx, checkURL, a.site.SessionCookieName, a.site.SessionToken)
		if err != nil {
			// Preflight is advisory only.
			slog.Debug("auth: token preflight failed", "error", err)
		} else if !valid {
			t.add(models.StepCookieAttempt, false, map[string]string{"reason": "preflight rejected token"})
			return "", false
		}
	}

	domain := ""
	if u, err := url.Parse(a.site.BaseURL); err == nil {
		domain = u.Hostname()
	}
	if err := s.SetCookie(a.site.SessionCookieName, a.site.SessionToken, domain); err != nil {
		t.add(models.StepCookieAttempt, false, map[string]string{"reason": "set cookie: " + err.Error()})
		return "", false
	}
	if err := s.Navigate(targetURL); err != nil {
		t.add(models.StepCookieAttempt, false, map[string]string{"reason": "navigate: " + err.Error()})
		return "", false
	}

	loc := s.Location()
	if !samePath(loc, targetURL) {
		t.add(models.StepCookieAttempt, false, map[string]string{"location": loc})
		return "", false
	}
	html, err := s.HTML()
	if err != nil {
		t.add(models.StepCookieAttempt, false, map[string]string{"reason": "extract html: " + err.Error()})
		return "", false
	}
	t.add(models.StepCookieAttempt, true, map[string]string{"location": loc})
	return html, true
}

// submitCredentials fills the detected fields and submits, via the detected
// submit control or by pressing Enter in the secret field.
func (a *Authenticator) submitCredentials(s Surface, identitySel, secretSel string, t *trail) error {
	if err := s.Fill(identitySel, a.site.Username); err != nil {
		t.add(models.StepCredentialsSubmit, false, map[string]string{"error": "fill identity: " + err.Error()})
		return a.fail(s, t, models.ErrCodeConnectionLost, "could not fill credential fields", false, err)
	}
	if err := s.Fill(secretSel, a.site.Password); err != nil {
		t.add(models.StepCredentialsSubmit, false, map[string]string{"error": "fill secret: " + err.Error()})
		return a.fail(s, t, models.ErrCodeConnectionLost, "could not fill credential fields", false, err)
	}

	submitSel, _ := a.firstMatch(s, RoleSubmit)
	var submitErr error
	if submitSel != "" {
		submitErr = s.Click(submitSel)
	} else {
		// Implicit submit gesture.
		submitSel = "enter:" + secretSel
		submitErr = s.PressEnter(secretSel)
	}
	if submitErr != nil {
		t.add(models.StepCredentialsSubmit, false, map[string]string{"submit": submitSel, "error": submitErr.Error()})
		return a.fail(s, t, models.ErrCodeConnectionLost, "could not submit credentials", false, submitErr)
	}

	loc := s.Location()
	if samePath(loc, a.site.BaseURL+a.site.LoginPath) {
		t.add(models.StepCredentialsSubmit, false, map[string]string{"submit": submitSel, "location": loc})
		return a.fail(s, t, models.ErrCodeRejected, "credentials did not authenticate", false, nil)
	}
	t.add(models.StepCredentialsSubmit, true, map[string]string{"submit": submitSel, "location": loc})
	return nil
}

// verifyTarget tries to reach the originally requested location. Some
// server-side flows only finalize the session after an intermediate page is
// visited once, so a direct miss escalates through a context-establishing
// page and the site root before the attempt is declared a redirect-away.
func (a *Authenticator) verifyTarget(s Surface, targetURL string, t *trail) (string, error) {
	strategies := []struct {
		name string
		via  string
	}{
		{"direct", ""},
		{"via_context", a.site.BaseURL + a.site.ContextPath},
		{"via_root", a.site.BaseURL},
	}

	for _, strat := range strategies {
		if strat.via != "" {
			if err := s.Navigate(strat.via); err != nil {
				t.add(models.StepTargetVerify, false, map[string]string{"strategy": strat.name, "error": err.Error()})
				continue
			}
		}
		if err := s.Navigate(targetURL); err != nil {
			t.add(models.StepTargetVerify, false, map[string]string{"strategy": strat.name, "error": err.Error()})
			continue
		}
		loc := s.Location()
		if samePath(loc, targetURL) {
			t.add(models.StepTargetVerify, true, map[string]string{"strategy": strat.name, "location": loc})
			html, err := s.HTML()
			if err != nil {
				return "", a.fail(s, t, models.ErrCodeConnectionLost, "could not extract target page", false, err)
			}
			return html, nil
		}
		t.add(models.StepTargetVerify, false, map[string]string{"strategy": strat.name, "location": loc})
	}

	return "", a.fail(s, t, models.ErrCodeRedirectAway,
		"authenticated but never reached the requested location", false, nil)
}

// firstMatch tries the ordered candidates for a role and returns the first
// selector that matches, plus everything that was tried.
func (a *Authenticator) firstMatch(s Surface, role FieldRole) (string, []string) {
	var tried []string
	for _, sel := range candidatesFor(a.candidates, role) {
		tried = append(tried, sel)
		has, err := s.Has(sel)
		if err != nil {
			continue
		}
		if has {
			return sel, tried
		}
	}
	return "", tried
}

// detectChallenge scans the current page for known anti-automation marker
// ids, classes and field names.
func (a *Authenticator) detectChallenge(s Surface) bool {
	html, err := s.HTML()
	if err != nil || html == "" {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	for _, marker := range challengeMarkers {
		sel := `[id*="` + marker + `"], [class*="` + marker + `"], [name*="` + marker + `"], iframe[src*="` + marker + `"]`
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

// fail assembles the terminal AuthError: code, full action trail and a
// best-effort snapshot of the page the flow died on.
func (a *Authenticator) fail(s Surface, t *trail, code, msg string, challenge bool, err error) *models.AuthError {
	authErr := models.NewAuthError(code, msg, err)
	authErr.Challenge = challenge
	authErr.Actions = t.actions
	authErr.Snapshot = capturePageSnapshot(s)
	return authErr
}

// samePath reports whether two URLs point at the same path, ignoring query,
// fragment and trailing slashes.
func samePath(a, b string) bool {
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	trim := func(p string) string {
		p = strings.TrimSuffix(p, "/")
		if p == "" {
			p = "/"
		}
		return p
	}
	return trim(ua.Path) == trim(ub.Path)
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
