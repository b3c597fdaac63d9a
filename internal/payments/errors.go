package payments

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pinaka-makhana/storefront/internal/restclient"
)

var (
	// ErrUnsupportedMethod rejects method ids outside the catalog before any side effect.
	ErrUnsupportedMethod = errors.New("payments: payment method not supported")
	// ErrProviderUnavailable signals a provider script or client library that could not be loaded.
	ErrProviderUnavailable = errors.New("payments: provider unavailable")
	// ErrCancelled signals that the customer closed the provider UI.
	ErrCancelled = errors.New("payments: payment cancelled")
	// ErrDeclined signals an explicit provider failure callback.
	ErrDeclined = errors.New("payments: payment declined")
	// ErrInitiation signals a server-side initiate call that answered without success.
	ErrInitiation = errors.New("payments: initialization failed")
)

// FailureKind classifies a failed payment attempt.
type FailureKind string

const (
	KindNetwork           FailureKind = "network"
	KindHTTP              FailureKind = "http"
	KindProviderSDK       FailureKind = "provider_sdk"
	KindProviderRejection FailureKind = "provider_rejection"
	KindValidation        FailureKind = "validation"
)

// Failure is the single error type returned by Orchestrator.Pay.
type Failure struct {
	Method MethodID
	Kind   FailureKind
	// Provider carries the provider's own error payload when it sent one.
	Provider map[string]any
	Err      error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s payment failed", f.Method)
	}
	return f.Err.Error()
}

func (f *Failure) Unwrap() error { return f.Err }

// Message is the text shown to the customer.
func (f *Failure) Message() string {
	if f == nil {
		return ""
	}
	var rerr *restclient.Error
	if errors.As(f.Err, &rerr) {
		return rerr.Message
	}
	var verr *ValidationError
	if errors.As(f.Err, &verr) {
		return verr.Error()
	}
	if desc, ok := f.Provider["description"].(string); ok && strings.TrimSpace(desc) != "" {
		return desc
	}
	return f.Error()
}

// ProviderError is returned by adapters when the provider reports a failure callback.
type ProviderError struct {
	Reason  error
	Payload map[string]any
}

func (e *ProviderError) Error() string {
	if desc, ok := e.Payload["description"].(string); ok && desc != "" {
		return fmt.Sprintf("%v: %s", e.Reason, desc)
	}
	return e.Reason.Error()
}

func (e *ProviderError) Unwrap() error { return e.Reason }

// ValidationError lists the checkout inputs that failed validation.
type ValidationError struct {
	fields map[string]string
}

func newValidationError() *ValidationError {
	return &ValidationError{fields: map[string]string{}}
}

func (e *ValidationError) add(field, message string) {
	if _, exists := e.fields[field]; !exists {
		e.fields[field] = message
	}
}

func (e *ValidationError) empty() bool { return len(e.fields) == 0 }

// Fields returns a copy of field → message.
func (e *ValidationError) Fields() map[string]string {
	out := make(map[string]string, len(e.fields))
	for k, v := range e.fields {
		out[k] = v
	}
	return out
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.fields))
	for k := range e.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.fields[k])
	}
	return strings.Join(parts, "; ")
}

// classify maps an adapter or backend error onto the failure taxonomy.
func classify(method MethodID, err error) *Failure {
	var existing *Failure
	if errors.As(err, &existing) {
		return existing
	}
	f := &Failure{Method: method, Err: err}

	var verr *ValidationError
	var perr *ProviderError
	var rerr *restclient.Error
	switch {
	case errors.As(err, &verr):
		f.Kind = KindValidation
	case errors.As(err, &perr):
		f.Kind = KindProviderRejection
		f.Provider = perr.Payload
	case errors.Is(err, ErrProviderUnavailable):
		f.Kind = KindProviderSDK
	case errors.Is(err, ErrCancelled), errors.Is(err, ErrDeclined), errors.Is(err, ErrInitiation):
		f.Kind = KindProviderRejection
	case errors.As(err, &rerr):
		if rerr.Kind == restclient.KindNetwork {
			f.Kind = KindNetwork
		} else {
			f.Kind = KindHTTP
		}
	default:
		f.Kind = KindNetwork
	}
	return f
}
