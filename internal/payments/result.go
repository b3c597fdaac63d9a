package payments

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Result statuses.
const (
	StatusAuthorized = "authorized"
	StatusRedirected = "redirected"
	StatusInitiated  = "initiated"
	StatusConfirmed  = "confirmed"
)

// Result is the normalized outcome of a successful payment call.
type Result struct {
	Method      MethodID        `json:"method"`
	Provider    string          `json:"provider"`
	PaymentID   string          `json:"paymentId,omitempty"`
	OrderID     string          `json:"orderId,omitempty"`
	Signature   string          `json:"signature,omitempty"`
	RedirectURL string          `json:"redirectUrl,omitempty"`
	Status      string          `json:"status,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// Outcome is the record published for every dispatched attempt.
type Outcome struct {
	AttemptID   string          `json:"attemptId,omitempty"`
	Method      MethodID        `json:"method"`
	Provider    string          `json:"provider,omitempty"`
	OrderID     string          `json:"orderId"`
	Amount      decimal.Decimal `json:"amount"`
	Succeeded   bool            `json:"succeeded"`
	Status      string          `json:"status,omitempty"`
	PaymentID   string          `json:"paymentId,omitempty"`
	FailureKind FailureKind     `json:"failureKind,omitempty"`
	Message     string          `json:"message,omitempty"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// OutcomeSink receives outcomes after each attempt. Errors are logged, never returned to the payer.
type OutcomeSink interface {
	PublishOutcome(ctx context.Context, outcome Outcome) error
}

type attemptKey struct{}

// WithAttempt tags ctx with the attempt id that browser-bridged adapters publish under.
func WithAttempt(ctx context.Context, attemptID string) context.Context {
	return context.WithValue(ctx, attemptKey{}, attemptID)
}

// AttemptFromContext returns the attempt id stored by WithAttempt.
func AttemptFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(attemptKey{}).(string)
	return id, ok && id != ""
}
