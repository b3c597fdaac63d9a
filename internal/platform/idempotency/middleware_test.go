package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pinaka-makhana/storefront/internal/platform/requestctx"
)

var fixedTime = time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)

func newAttemptRequest(body, key, token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/checkout/payments", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	if token != "" {
		req = req.WithContext(requestctx.WithToken(req.Context(), token))
	}
	return req
}

func TestMiddlewareRequiresKey(t *testing.T) {
	called := false
	h := Middleware(NewMemoryStore())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, newAttemptRequest(`{"method":"cod"}`, "", "tok"))

	if called {
		t.Fatal("handler should not run without a key")
	}
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	assertErrorCode(t, rr.Body.Bytes(), "idempotency_key_required")
}

func TestMiddlewareOptionalKeyPassesThrough(t *testing.T) {
	called := false
	h := Middleware(NewMemoryStore(), WithOptionalKey())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusAccepted)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, newAttemptRequest(`{}`, "", ""))
	if !called || rr.Code != http.StatusAccepted {
		t.Fatalf("expected pass-through, called=%v code=%d", called, rr.Code)
	}
}

func TestMiddlewareReplaysCompletedAttempt(t *testing.T) {
	store := NewMemoryStore()
	calls := 0
	h := Middleware(store, WithClock(func() time.Time { return fixedTime }))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"attemptId":"01J"}`))
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, newAttemptRequest(`{"method":"razorpay"}`, "k-1", "tok"))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, newAttemptRequest(`{"method":"razorpay"}`, "k-1", "tok"))

	if calls != 1 {
		t.Fatalf("expected handler once, got %d", calls)
	}
	if second.Code != http.StatusAccepted {
		t.Fatalf("expected replayed 202, got %d", second.Code)
	}
	if second.Header().Get(replayHeader) != "true" {
		t.Fatal("expected replay header")
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replayed body mismatch: %q vs %q", second.Body.String(), first.Body.String())
	}
}

func TestMiddlewareRejectsReusedKeyWithDifferentBody(t *testing.T) {
	store := NewMemoryStore()
	h := Middleware(store)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	h.ServeHTTP(httptest.NewRecorder(), newAttemptRequest(`{"method":"cod"}`, "k-2", "tok"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, newAttemptRequest(`{"method":"upi"}`, "k-2", "tok"))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	assertErrorCode(t, rr.Body.Bytes(), "idempotency_key_conflict")
}

func TestMiddlewareScopesKeysPerCaller(t *testing.T) {
	calls := 0
	h := Middleware(NewMemoryStore())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusAccepted)
	}))
	h.ServeHTTP(httptest.NewRecorder(), newAttemptRequest(`{}`, "shared", "alice"))
	h.ServeHTTP(httptest.NewRecorder(), newAttemptRequest(`{}`, "shared", "bob"))
	if calls != 2 {
		t.Fatalf("expected independent callers, got %d calls", calls)
	}
}

func TestMiddlewareDoesNotCacheServerErrors(t *testing.T) {
	calls := 0
	h := Middleware(NewMemoryStore())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	first := httptest.NewRecorder()
	h.ServeHTTP(first, newAttemptRequest(`{}`, "k-3", "tok"))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, newAttemptRequest(`{}`, "k-3", "tok"))

	if first.Code != http.StatusBadGateway || second.Code != http.StatusAccepted || calls != 2 {
		t.Fatalf("unexpected codes %d/%d calls=%d", first.Code, second.Code, calls)
	}
}

func TestMemoryStoreInFlightAndSweep(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	outcome, _, err := store.Claim(ctx, "k", "fp", fixedTime, time.Minute)
	if err != nil || outcome != OutcomeClaimed {
		t.Fatalf("first claim = %v, %v", outcome, err)
	}
	outcome, _, err = store.Claim(ctx, "k", "fp", fixedTime.Add(time.Second), time.Minute)
	if err != nil || outcome != OutcomeInFlight {
		t.Fatalf("second claim = %v, %v", outcome, err)
	}

	removed, err := store.Sweep(ctx, fixedTime.Add(2*time.Minute), 0)
	if err != nil || removed != 1 {
		t.Fatalf("sweep removed %d, err %v", removed, err)
	}
	outcome, _, _ = store.Claim(ctx, "k", "other", fixedTime.Add(3*time.Minute), time.Minute)
	if outcome != OutcomeClaimed {
		t.Fatalf("expected fresh claim after sweep, got %v", outcome)
	}
}

func assertErrorCode(t *testing.T, body []byte, code string) {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if payload["error"] != code {
		t.Fatalf("expected error code %q, got %v", code, payload["error"])
	}
}
