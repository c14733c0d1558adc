package auth

import (
	"fmt"

	"github.com/andybalholm/cascadia"
)

// FieldRole identifies what a credential-entry control is for.
type FieldRole string

const (
	RoleIdentity FieldRole = "identity"
	RoleSecret   FieldRole = "secret"
	RoleSubmit   FieldRole = "submit"
)

// Candidate is one (selector, role) pair in the prioritized detection list.
// Candidates are tried in order; the first selector that matches an element
// on the login page wins for its role. The list is plain data so it can be
// tested and tuned without a browser.
type Candidate struct {
	Selector string
	Role     FieldRole
}

// DefaultCandidates covers the login-form markup variants the remote site
// has shipped over time, most specific first.
var DefaultCandidates = []Candidate{
	{`input[name="username"]`, RoleIdentity},
	{`input[name="email"]`, RoleIdentity},
	{`input[type="email"]`, RoleIdentity},
	{`#username`, RoleIdentity},
	{`input[type="text"][name*="user"]`, RoleIdentity},

	{`input[name="password"]`, RoleSecret},
	{`#password`, RoleSecret},
	{`input[type="password"]`, RoleSecret},

	{`button[type="submit"]`, RoleSubmit},
	{`input[type="submit"]`, RoleSubmit},
	{`form button`, RoleSubmit},
}

// challengeMarkers are element ids/classes/names whose presence on a login
// page indicates a known anti-automation challenge rather than a markup
// change.
var challengeMarkers = []string{
	"g-recaptcha",
	"h-captcha",
	"cf-turnstile",
	"cf-challenge",
	"challenge-form",
	"captcha",
}

// ValidateCandidates checks that every candidate selector parses as CSS.
// Called once at startup so a typo in the list fails fast instead of being
// reported as a fields-not-found login failure.
func ValidateCandidates(candidates []Candidate) error {
	for _, c := range candidates {
		if _, err := cascadia.Parse(c.Selector); err != nil {
			return fmt.Errorf("selector %q (%s): %w", c.Selector, c.Role, err)
		}
	}
	return nil
}

// candidatesFor returns the ordered selectors for one role.
func candidatesFor(candidates []Candidate, role FieldRole) []string {
	var out []string
	for _, c := range candidates {
		if c.Role == role {
			out = append(out, c.Selector)
		}
	}
	return out
}
