package auth

// Surface is the minimal navigable browser surface the authenticator drives.
// The production implementation wraps a rod page; tests substitute a scripted
// fake so the state machine is exercised without a browser.
type Surface interface {
	// Navigate loads the given URL and waits for the DOM to settle.
	Navigate(url string) error

	// Location returns the current page URL.
	Location() string

	// Title returns the current document title, best-effort.
	Title() string

	// HTML returns the rendered document, best-effort.
	HTML() (string, error)

	// SetCookie installs a cookie before navigation.
	SetCookie(name, value, domain string) error

	// Has reports whether at least one element matches the selector.
	Has(selector string) (bool, error)

	// Fill types the value into the element matching the selector.
	Fill(selector, value string) error

	// Click clicks the element matching the selector.
	Click(selector string) error

	// PressEnter presses Enter in the element matching the selector; the
	// implicit submit gesture used when no submit control is detected.
	PressEnter(selector string) error
}
