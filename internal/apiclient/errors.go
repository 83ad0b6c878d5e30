package apiclient

import "fmt"

// FallbackMessage is shown when the API gives no usable error message
const FallbackMessage = "Something went wrong"

// RequestError is the failure of a call to the B-Tweet API. Message is safe
// to show to the user; Err holds the underlying cause.
type RequestError struct {
	Status  int // HTTP status, 0 when no response was received
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("api request failed (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api request failed: %s", e.Message)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
