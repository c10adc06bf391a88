// Package types holds the JSON envelopes shared by the API and its clients.
package types

// Success wraps every 2xx JSON body.
type Success struct {
	Data any `json:"data"`
}

// Problem is the error half of the envelope. RequestID echoes X-Request-Id so
// a till operator can quote it; Retryable tells the till whether resending
// the same request (with the same idempotency key) may succeed.
type Problem struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type Failure struct {
	Error Problem `json:"error"`
}
