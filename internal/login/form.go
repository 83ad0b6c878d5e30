package login

import (
	"errors"
	"sync"

	"github.com/shindakun/btweet/internal/models"
)

// ErrUnknownField is returned by Form.Set for names other than username and password
var ErrUnknownField = errors.New("unknown login form field")

// Form holds the login form inputs for one mounted page.
// No validation is applied; empty values are kept as typed.
type Form struct {
	mu    sync.Mutex
	creds models.Credentials
}

// Set replaces one field and leaves the other unchanged
func (f *Form) Set(field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch field {
	case models.FieldUsername:
		f.creds.Username = value
	case models.FieldPassword:
		f.creds.Password = value
	default:
		return ErrUnknownField
	}
	return nil
}

// Credentials returns a copy of the current values
func (f *Form) Credentials() models.Credentials {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creds
}
