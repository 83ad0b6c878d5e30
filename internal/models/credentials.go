package models

import "fmt"

// Form field names used by the login page inputs
const (
	FieldUsername = "username"
	FieldPassword = "password"
)

// Credentials is the username/password pair collected by the login form.
// It only lives in page state and in the body of the outbound login request.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// String redacts the password so credentials never end up in logs
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username: %q, Password: [redacted]}", c.Username)
}

// GoString keeps %#v from printing the password
func (c Credentials) GoString() string {
	return c.String()
}
