// Package bridge runs provider steps that must happen in the customer's browser. The
// orchestrator publishes an action on an attempt; the browser performs it and posts the
// provider callback back, which settles the waiting adapter.
package bridge

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pinaka-makhana/storefront/internal/payments"
)

var (
	ErrAttemptNotFound  = errors.New("bridge: payment attempt not found")
	ErrNoPendingAction  = errors.New("bridge: attempt has no pending action")
	ErrAttemptFinished  = errors.New("bridge: attempt already finished")
	ErrAttemptExpired   = errors.New("bridge: payment attempt expired")
	ErrMissingAttemptID = errors.New("bridge: context carries no attempt id")
)

// Status of an attempt as seen by the browser.
type Status string

const (
	StatusPending        Status = "pending"
	StatusActionRequired Status = "action_required"
	StatusProcessing     Status = "processing"
	StatusSucceeded      Status = "succeeded"
	StatusFailed         Status = "failed"
)

// Action kinds the browser knows how to perform.
const (
	ActionRazorpayOpen   = "razorpay.open"
	ActionGooglePaySheet = "googlepay.sheet"
	ActionPaytmInvoke    = "paytm.invoke"
	ActionRedirect       = "redirect"
)

// Action is an instruction for the browser.
type Action struct {
	Kind     string          `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
	IssuedAt time.Time       `json:"issuedAt"`
}

// Callback is what the browser reports once the provider UI settles.
type Callback struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// FailureView is the customer-facing form of a payment failure.
type FailureView struct {
	Kind    payments.FailureKind `json:"kind"`
	Message string               `json:"message"`
}

// Attempt is a snapshot of one checkout attempt.
type Attempt struct {
	ID        string            `json:"attemptId"`
	Method    payments.MethodID `json:"method"`
	OrderID   string            `json:"orderId"`
	Status    Status            `json:"status"`
	Action    *Action           `json:"action,omitempty"`
	Result    *payments.Result  `json:"result,omitempty"`
	Failure   *FailureView      `json:"failure,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// Terminal reports whether the attempt has a result or failure.
func (a Attempt) Terminal() bool {
	return a.Status == StatusSucceeded || a.Status == StatusFailed
}

type entry struct {
	attempt Attempt
	owner   string
	pending *payments.Future[Callback]
	changed chan struct{}
}

func (e *entry) notify() {
	close(e.changed)
	e.changed = make(chan struct{})
}

// Broker keeps in-flight attempts in memory, keyed by ULID.
type Broker struct {
	mu       sync.Mutex
	attempts map[string]*entry
	ttl      time.Duration
	clock    func() time.Time
	entropy  io.Reader
}

type BrokerOption func(*Broker)

func WithTTL(ttl time.Duration) BrokerOption {
	return func(b *Broker) {
		if ttl > 0 {
			b.ttl = ttl
		}
	}
}

func WithClock(clock func() time.Time) BrokerOption {
	return func(b *Broker) {
		if clock != nil {
			b.clock = clock
		}
	}
}

func NewBroker(opts ...BrokerOption) *Broker {
	b := &Broker{
		attempts: make(map[string]*entry),
		ttl:      30 * time.Minute,
		clock:    time.Now,
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// TTL is how long an attempt is kept.
func (b *Broker) TTL() time.Duration { return b.ttl }

// Begin registers a new attempt for owner (a session digest; empty for anonymous).
func (b *Broker) Begin(method payments.MethodID, orderID, owner string) Attempt {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock().UTC()
	id := ulid.MustNew(ulid.Timestamp(now), b.entropy).String()
	e := &entry{
		attempt: Attempt{
			ID:        id,
			Method:    method,
			OrderID:   orderID,
			Status:    StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
			ExpiresAt: now.Add(b.ttl),
		},
		owner:   owner,
		changed: make(chan struct{}),
	}
	b.attempts[id] = e
	return e.attempt
}

// Publish attaches action to the attempt and returns the future the browser callback settles.
func (b *Broker) Publish(id, kind string, payload any) (*payments.Future[Callback], error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.attempts[id]
	if !ok {
		return nil, ErrAttemptNotFound
	}
	if e.attempt.Terminal() {
		return nil, ErrAttemptFinished
	}
	if e.pending != nil {
		_ = e.pending.Reject(payments.ErrCancelled)
	}
	now := b.clock().UTC()
	e.pending = payments.NewFuture[Callback]()
	e.attempt.Action = &Action{Kind: kind, Payload: raw, IssuedAt: now}
	e.attempt.Status = StatusActionRequired
	e.attempt.UpdatedAt = now
	e.notify()
	return e.pending, nil
}

// Notify records a fire-and-forget action such as a redirect; nothing waits for it.
func (b *Broker) Notify(id, kind string, payload any) error {
	future, err := b.Publish(id, kind, payload)
	if err != nil {
		return err
	}
	b.mu.Lock()
	if e, ok := b.attempts[id]; ok && e.pending == future {
		e.pending = nil
	}
	b.mu.Unlock()
	return nil
}

// Complete settles the pending action with the browser's callback.
func (b *Broker) Complete(id, owner string, cb Callback) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.attempts[id]
	if !ok || e.owner != owner {
		return ErrAttemptNotFound
	}
	if e.attempt.Terminal() {
		return ErrAttemptFinished
	}
	if e.pending == nil {
		return ErrNoPendingAction
	}
	if err := e.pending.Resolve(cb); err != nil {
		return ErrNoPendingAction
	}
	e.pending = nil
	e.attempt.Action = nil
	e.attempt.Status = StatusProcessing
	e.attempt.UpdatedAt = b.clock().UTC()
	e.notify()
	return nil
}

// Finish records the orchestrator's verdict.
func (b *Broker) Finish(id string, result payments.Result, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.attempts[id]
	if !ok {
		return
	}
	now := b.clock().UTC()
	if err != nil {
		view := &FailureView{Kind: payments.KindNetwork, Message: err.Error()}
		var failure *payments.Failure
		if errors.As(err, &failure) {
			view = &FailureView{Kind: failure.Kind, Message: failure.Message()}
		}
		e.attempt.Status = StatusFailed
		e.attempt.Failure = view
		e.attempt.Result = nil
	} else {
		res := result
		e.attempt.Status = StatusSucceeded
		e.attempt.Result = &res
		e.attempt.Failure = nil
	}
	if e.pending != nil {
		_ = e.pending.Reject(ErrAttemptFinished)
		e.pending = nil
	}
	// a redirect stays visible so the browser can follow it
	if e.attempt.Action != nil && e.attempt.Action.Kind != ActionRedirect {
		e.attempt.Action = nil
	}
	e.attempt.UpdatedAt = now
	e.notify()
}

// Snapshot returns the attempt if owner may see it.
func (b *Broker) Snapshot(id, owner string) (Attempt, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.attempts[id]
	if !ok || e.owner != owner {
		return Attempt{}, false
	}
	return e.attempt, true
}

// Await blocks until the attempt needs the browser or has finished, then returns it.
func (b *Broker) Await(ctx context.Context, id string) (Attempt, error) {
	for {
		b.mu.Lock()
		e, ok := b.attempts[id]
		if !ok {
			b.mu.Unlock()
			return Attempt{}, ErrAttemptNotFound
		}
		snapshot := e.attempt
		changed := e.changed
		b.mu.Unlock()

		if snapshot.Status == StatusActionRequired || snapshot.Terminal() {
			return snapshot, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return snapshot, ctx.Err()
		}
	}
}

// Sweep drops attempts past their expiry and cancels anything still waiting on them.
func (b *Broker) Sweep(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for id, e := range b.attempts {
		if now.Before(e.attempt.ExpiresAt) {
			continue
		}
		if e.pending != nil {
			_ = e.pending.Reject(ErrAttemptExpired)
		}
		e.notify()
		delete(b.attempts, id)
		removed++
	}
	return removed
}

// Len returns the number of tracked attempts.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.attempts)
}
