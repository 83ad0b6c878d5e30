package models

import "encoding/json"

// RequestPhase is the lifecycle phase of one login attempt
type RequestPhase string

const (
	RequestIdle      RequestPhase = "idle"
	RequestPending   RequestPhase = "pending"
	RequestSucceeded RequestPhase = "succeeded"
	RequestFailed    RequestPhase = "failed"
)

// RequestState is a tagged union over the login request phases.
// The payload is only set when Succeeded and the message only when Failed;
// values can only be built through the constructors below.
type RequestState struct {
	phase   RequestPhase
	payload json.RawMessage
	message string
}

// Idle is the state before any submission
func Idle() RequestState {
	return RequestState{phase: RequestIdle}
}

// Pending is the state while a request is in flight
func Pending() RequestState {
	return RequestState{phase: RequestPending}
}

// Succeeded carries the authenticated user payload returned by the API
func Succeeded(payload json.RawMessage) RequestState {
	p := make(json.RawMessage, len(payload))
	copy(p, payload)
	return RequestState{phase: RequestSucceeded, payload: p}
}

// Failed carries the human-readable error message shown under the form
func Failed(message string) RequestState {
	return RequestState{phase: RequestFailed, message: message}
}

// Phase returns the current phase. The zero value reports Idle.
func (s RequestState) Phase() RequestPhase {
	if s.phase == "" {
		return RequestIdle
	}
	return s.phase
}

func (s RequestState) IsIdle() bool      { return s.Phase() == RequestIdle }
func (s RequestState) IsPending() bool   { return s.phase == RequestPending }
func (s RequestState) IsSucceeded() bool { return s.phase == RequestSucceeded }
func (s RequestState) IsFailed() bool    { return s.phase == RequestFailed }

// Payload returns the success payload, or nil when not Succeeded
func (s RequestState) Payload() json.RawMessage {
	return s.payload
}

// Message returns the failure message, or "" when not Failed
func (s RequestState) Message() string {
	return s.message
}

// String returns the phase name
func (s RequestState) String() string {
	return string(s.Phase())
}
