package gateway

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for gateway calls.
var (
	// ErrMissingCredential is a fatal configuration error. It is never retried.
	ErrMissingCredential = errors.New("gateway: service credential is not configured")

	// ErrServiceStatus is matched by errors.Is for every *StatusError.
	ErrServiceStatus = errors.New("gateway: service returned a non-success status")
)

// Request is a single generative call.
type Request struct {
	// System is the fixed system instruction.
	System string
	// User is the per-call user instruction.
	User string
	// MaxOutputTokens bounds the completion length.
	MaxOutputTokens int
	// ExpectStructured asks the gateway to parse the completion.
	ExpectStructured bool
}

// Response is the outcome of a successful call.
type Response struct {
	// Text is the raw completion text.
	Text string
	// Parsed is the decoded structured value; valid only when HasParsed.
	Parsed any
	// HasParsed reports whether Text decoded as a structured value.
	HasParsed bool
	// InputUnits and OutputUnits are the service's usage counters.
	InputUnits  int
	OutputUnits int
}

// Gateway sends one request to the generative service.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Context: Call must honor cancellation/deadlines.
//   - Errors: missing credential, transport and non-success responses are errors;
//     unparseable structured output is not.
type Gateway interface {
	Call(ctx context.Context, req Request) (Response, error)
}

// Func adapts an ordinary function to the Gateway interface.
type Func func(ctx context.Context, req Request) (Response, error)

// Call invokes f.
func (f Func) Call(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// StatusError carries the status and body of a non-success response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway: service returned status %d: %s", e.StatusCode, e.Body)
}

// Is reports ErrServiceStatus.
func (e *StatusError) Is(target error) bool {
	return target == ErrServiceStatus
}

// newResponse builds a Response, parsing text when structured output was requested.
func newResponse(text string, inputUnits, outputUnits int, structured bool) Response {
	resp := Response{
		Text:        text,
		InputUnits:  inputUnits,
		OutputUnits: outputUnits,
	}
	if structured {
		resp.Parsed, resp.HasParsed = ParseStructured(text)
	}
	return resp
}

var _ Gateway = Func(nil)
