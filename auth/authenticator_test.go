package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/use-agent/dossier/config"
	"github.com/use-agent/dossier/models"
)

const (
	testBase    = "https://site.test"
	testTarget  = testBase + "/profile/42"
	testLogin   = testBase + "/login"
	testContext = testBase + "/main"
)

// fakeSurface scripts a login flow without a browser. Navigation before a
// successful submit is redirected through the redirects map; after submit it
// lands where asked.
type fakeSurface struct {
	loc       string
	loggedIn  bool
	redirects map[string]string // applied while logged out
	bounce    map[string]string // applied always, even after login
	pages     map[string]string // HTML per location
	present   map[string]bool   // selectors present on the login page
	postLogin string            // location after a successful submit

	rejectLogin bool // submit bounces back to the login page
	cookieErr   error
	navErr      map[string]error

	filled  map[string]string
	clicked []string
	cookies map[string]string
}

func (f *fakeSurface) Navigate(url string) error {
	if err := f.navErr[url]; err != nil {
		return err
	}
	f.loc = url
	if to, ok := f.bounce[url]; ok {
		f.loc = to
		return nil
	}
	if !f.loggedIn {
		if to, ok := f.redirects[url]; ok {
			f.loc = to
		}
	}
	return nil
}

func (f *fakeSurface) Location() string { return f.loc }
func (f *fakeSurface) Title() string    { return "Fake Page" }

func (f *fakeSurface) HTML() (string, error) {
	return f.pages[f.loc], nil
}

func (f *fakeSurface) SetCookie(name, value, domain string) error {
	if f.cookieErr != nil {
		return f.cookieErr
	}
	if f.cookies == nil {
		f.cookies = map[string]string{}
	}
	f.cookies[name] = value
	return nil
}

func (f *fakeSurface) Has(selector string) (bool, error) {
	return f.present[selector], nil
}

func (f *fakeSurface) Fill(selector, value string) error {
	if f.filled == nil {
		f.filled = map[string]string{}
	}
	f.filled[selector] = value
	return nil
}

func (f *fakeSurface) submit() {
	if f.rejectLogin {
		f.loc = testLogin
		return
	}
	f.loggedIn = true
	if f.postLogin != "" {
		f.loc = f.postLogin
	}
}

func (f *fakeSurface) Click(selector string) error {
	f.clicked = append(f.clicked, selector)
	f.submit()
	return nil
}

func (f *fakeSurface) PressEnter(selector string) error {
	f.clicked = append(f.clicked, "enter:"+selector)
	f.submit()
	return nil
}

func loginFormSurface() *fakeSurface {
	return &fakeSurface{
		redirects: map[string]string{testTarget: testLogin, testContext: testLogin},
		present: map[string]bool{
			`input[name="username"]`: true,
			`input[name="password"]`: true,
			`button[type="submit"]`:  true,
		},
		postLogin: testContext,
		pages:     map[string]string{testTarget: "<html><body>profile</body></html>"},
	}
}

func testAuthenticator(site config.SiteConfig) *Authenticator {
	// The HTTP preflight probe is left nil so the fake surface is the only
	// I/O in these tests.
	return &Authenticator{
		site:       site,
		navTimeout: time.Second,
		candidates: DefaultCandidates,
	}
}

func stepNames(actions []models.Action) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Step)
	}
	return out
}

func TestEstablish_CookieFastPath(t *testing.T) {
	a := testAuthenticator(config.SiteConfig{
		BaseURL:           testBase,
		LoginPath:         "/login",
		ContextPath:       "/main",
		SessionToken:      "tok-123",
		SessionCookieName: "PHPSESSID",
	})
	s := &fakeSurface{
		pages: map[string]string{testTarget: "<html><body>profile</body></html>"},
	}

	actions, html, err := a.establish(context.Background(), s, testTarget)
	require.NoError(t, err)
	require.Contains(t, html, "profile")
	require.Equal(t, "tok-123", s.cookies["PHPSESSID"])

	// The fast path must not touch the form flow at all.
	require.Equal(t, []string{models.StepCookieAttempt}, stepNames(actions))
	require.True(t, actions[0].Success)
}

func TestEstablish_StaleCookieFallsThroughToFormLogin(t *testing.T) {
	a := testAuthenticator(config.SiteConfig{
		BaseURL:           testBase,
		LoginPath:         "/login",
		ContextPath:       "/main",
		Username:          "ada",
		Password:          "hunter2",
		SessionToken:      "expired",
		SessionCookieName: "PHPSESSID",
	})
	s := loginFormSurface()

	actions, html, err := a.establish(context.Background(), s, testTarget)
	require.NoError(t, err)
	require.Contains(t, html, "profile")

	require.Equal(t, []string{
		models.StepCookieAttempt,
		models.StepFormLogin,
		models.StepFieldDetect,
		models.StepCredentialsSubmit,
		models.StepTargetVerify,
	}, stepNames(actions))
	require.False(t, actions[0].Success)
	require.True(t, actions[len(actions)-1].Success)

	require.Equal(t, "ada", s.filled[`input[name="username"]`])
	require.Equal(t, "hunter2", s.filled[`input[name="password"]`])
	require.Equal(t, []string{`button[type="submit"]`}, s.clicked)
}

func TestEstablish_MissingCredentials(t *testing.T) {
	a := testAuthenticator(config.SiteConfig{
		BaseURL:   testBase,
		LoginPath: "/login",
	})
	s := &fakeSurface{}

	_, _, err := a.establish(context.Background(), s, testTarget)

	var authErr *models.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, models.ErrCodeMissingCredentials, authErr.Code)
	require.NotNil(t, authErr.Snapshot)
}

func TestEstablish_FieldsNotFound(t *testing.T) {
	a := testAuthenticator(config.SiteConfig{
		BaseURL:   testBase,
		LoginPath: "/login",
		Username:  "ada",
		Password:  "hunter2",
	})
	s := &fakeSurface{
		pages: map[string]string{testLogin: "<html><body>maintenance</body></html>"},
	}

	_, _, err := a.establish(context.Background(), s, testTarget)

	var authErr *models.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, models.ErrCodeFieldsNotFound, authErr.Code)
	require.False(t, authErr.Challenge)

	// The failed detection itself is the last entry in the trail, with the
	// tried selector lists attached.
	last := authErr.Actions[len(authErr.Actions)-1]
	require.Equal(t, models.StepFieldDetect, last.Step)
	require.False(t, last.Success)
	require.Contains(t, last.Data["tried_identity"], `input[name="username"]`)
	require.Contains(t, last.Data["tried_secret"], `input[type="password"]`)
}

func TestEstablish_FieldsNotFoundFlagsChallenge(t *testing.T) {
	a := testAuthenticator(config.SiteConfig{
		BaseURL:   testBase,
		LoginPath: "/login",
		Username:  "ada",
		Password:  "hunter2",
	})
	s := &fakeSurface{
		pages: map[string]string{
			testLogin: `<html><body><div class="g-recaptcha" data-sitekey="x"></div></body></html>`,
		},
	}

	_, _, err := a.establish(context.Background(), s, testTarget)

	var authErr *models.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, models.ErrCodeFieldsNotFound, authErr.Code)
	require.True(t, authErr.Challenge)
}

func TestEstablish_RejectedCredentials(t *testing.T) {
	a := testAuthenticator(config.SiteConfig{
		BaseURL:   testBase,
		LoginPath: "/login",
		Username:  "ada",
		Password:  "wrong",
	})
	s := loginFormSurface()
	s.rejectLogin = true

	_, _, err := a.establish(context.Background(), s, testTarget)

	var authErr *models.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, models.ErrCodeRejected, authErr.Code)

	last := authErr.Actions[len(authErr.Actions)-1]
	require.Equal(t, models.StepCredentialsSubmit, last.Step)
	require.False(t, last.Success)
}

func TestEstablish_RedirectAwayAfterAllStrategies(t *testing.T) {
	a := testAuthenticator(config.SiteConfig{
		BaseURL:     testBase,
		LoginPath:   "/login",
		ContextPath: "/main",
		Username:    "ada",
		Password:    "hunter2",
	})
	s := loginFormSurface()
	// Even authenticated, the target keeps bouncing to the dashboard.
	s.pages = map[string]string{}
	s.bounce = map[string]string{testTarget: testBase + "/dashboard"}

	_, _, err := a.establish(context.Background(), s, testTarget)

	var authErr *models.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, models.ErrCodeRedirectAway, authErr.Code)

	var verifyFailures int
	for _, act := range authErr.Actions {
		if act.Step == models.StepTargetVerify && !act.Success {
			verifyFailures++
		}
	}
	require.Equal(t, 3, verifyFailures, "direct, via-context and via-root strategies must all be logged")
}

func TestEstablish_ImplicitSubmitWhenNoButton(t *testing.T) {
	a := testAuthenticator(config.SiteConfig{
		BaseURL:     testBase,
		LoginPath:   "/login",
		ContextPath: "/main",
		Username:    "ada",
		Password:    "hunter2",
	})
	s := loginFormSurface()
	s.present[`button[type="submit"]`] = false
	s.present[`input[type="submit"]`] = false
	s.present[`form button`] = false

	_, _, err := a.establish(context.Background(), s, testTarget)
	require.NoError(t, err)
	require.Equal(t, []string{`enter:input[name="password"]`}, s.clicked)
}

func TestEstablish_LoginPageUnreachable(t *testing.T) {
	a := testAuthenticator(config.SiteConfig{
		BaseURL:   testBase,
		LoginPath: "/login",
		Username:  "ada",
		Password:  "hunter2",
	})
	s := &fakeSurface{
		navErr: map[string]error{testLogin: errors.New("net::ERR_CONNECTION_REFUSED")},
	}

	_, _, err := a.establish(context.Background(), s, testTarget)

	var authErr *models.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, models.ErrCodeConnectionLost, authErr.Code)
}

func TestValidateCandidates(t *testing.T) {
	require.NoError(t, ValidateCandidates(DefaultCandidates))
	require.Error(t, ValidateCandidates([]Candidate{{Selector: `input[`, Role: RoleIdentity}}))
}

func TestSamePath(t *testing.T) {
	require.True(t, samePath(testTarget, testTarget))
	require.True(t, samePath(testTarget+"/", testTarget))
	require.True(t, samePath(testTarget+"?tab=votes", testTarget))
	require.False(t, samePath(testLogin, testTarget))
	require.True(t, samePath(testBase, testBase+"/"))
}
