package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	stripe "github.com/stripe/stripe-go/v74"
)

// ValidationError aggregates every violated input rule. A request is either
// fully valid or rejected wholesale; partial acceptance never occurs.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

// UnsupportedCombinationError marks a valid request whose payment type and
// method pairing is disallowed. Raised before any processor call.
type UnsupportedCombinationError struct {
	Message string
}

func (e *UnsupportedCombinationError) Error() string {
	return e.Message
}

// ProcessorRequestError means the processor rejected the call shape. Detail
// is kept for the operational log; the client only sees the method name.
type ProcessorRequestError struct {
	Method string
	Detail string
}

func (e *ProcessorRequestError) Error() string {
	return fmt.Sprintf("processor rejected request for method %s: %s", e.Method, e.Detail)
}

// ProcessorUnavailableError means the processor could not be reached or
// answered with a server-side failure.
type ProcessorUnavailableError struct {
	Err error
}

func (e *ProcessorUnavailableError) Error() string {
	return "payment processor unavailable: " + e.Err.Error()
}

func (e *ProcessorUnavailableError) Unwrap() error {
	return e.Err
}

// classifyProcessorError translates a failed processor call into the error
// taxonomy. Invalid request shapes become ProcessorRequestError, server-side
// and transport failures become ProcessorUnavailableError, anything else
// passes through and surfaces as a generic failure at the handler boundary.
func classifyProcessorError(err error, method string) error {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		if sErr.Type == stripe.ErrorTypeInvalidRequest {
			return &ProcessorRequestError{Method: method, Detail: sErr.Msg}
		}
		return &ProcessorUnavailableError{Err: err}
	}

	var uErr *url.Error
	if errors.As(err, &uErr) || errors.Is(err, context.DeadlineExceeded) {
		return &ProcessorUnavailableError{Err: err}
	}
	return err
}
