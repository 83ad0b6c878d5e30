package models

// LoginPageData is the view of the login page, derived entirely from the
// form credentials and the current request state.
type LoginPageData struct {
	// Title is the page title displayed in the browser tab
	Title string

	// Username and Password are bound to the two form inputs
	Username string
	Password string

	// SubmitDisabled is true exactly while a request is pending
	SubmitDisabled bool

	// SubmitLabel is "Loading..." while pending and "Login" otherwise
	SubmitLabel string

	// PendingLabel is shown in the browser while its own submission is in flight
	PendingLabel string

	// Error is the failure message; empty means no error line
	Error string

	// Polling asks the page to refresh the submit area until the request settles
	Polling bool

	// SignupURL is the static link to account creation
	SignupURL string
}
