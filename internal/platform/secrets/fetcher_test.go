package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeAccessor struct {
	mu     sync.Mutex
	values map[string]string
	errs   map[string]error
	calls  map[string]int
}

func newFakeAccessor() *fakeAccessor {
	return &fakeAccessor{values: map[string]string{}, errs: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeAccessor) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[req.GetName()]++
	if err, ok := f.errs[req.GetName()]; ok {
		return nil, err
	}
	value, ok := f.values[req.GetName()]
	if !ok {
		return nil, status.Error(codes.NotFound, "missing")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.GetName(),
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}, nil
}

func (f *fakeAccessor) Close() error { return nil }

func (f *fakeAccessor) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func TestResolveSecretCachesRemoteValue(t *testing.T) {
	ctx := context.Background()
	client := newFakeAccessor()
	resource := "projects/pinaka/secrets/razorpay-key/versions/latest"
	client.values[resource] = "rzp_live_123"

	f, err := NewFetcher(ctx, withAccessor(client), WithProject("pinaka"), WithFallbackFile(""))
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	defer f.Close()

	for i := 0; i < 2; i++ {
		got, err := f.ResolveSecret(ctx, "secret://razorpay-key")
		if err != nil {
			t.Fatalf("ResolveSecret: %v", err)
		}
		if got != "rzp_live_123" {
			t.Fatalf("unexpected value %q", got)
		}
	}
	if n := client.count(resource); n != 1 {
		t.Fatalf("expected one remote access, got %d", n)
	}

	f.Invalidate("secret://razorpay-key")
	if _, err := f.ResolveSecret(ctx, "secret://razorpay-key"); err != nil {
		t.Fatalf("ResolveSecret after invalidate: %v", err)
	}
	if n := client.count(resource); n != 2 {
		t.Fatalf("expected refetch after invalidate, got %d", n)
	}
}

func TestResolveSecretHonoursVersionAndProject(t *testing.T) {
	ctx := context.Background()
	client := newFakeAccessor()
	client.values["projects/other/secrets/paytm-mid/versions/3"] = "PINAKA03"

	f, err := NewFetcher(ctx, withAccessor(client), WithProject("pinaka"), WithFallbackFile(""))
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	got, err := f.ResolveSecret(ctx, "secret://paytm-mid?version=3&project=other")
	if err != nil || got != "PINAKA03" {
		t.Fatalf("ResolveSecret = %q, %v", got, err)
	}
}

func TestResolveSecretFallsBackOnPermissionDenied(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), ".secrets.local")
	if err := os.WriteFile(path, []byte("# local\nsecret://razorpay-key=rzp_local=\n"), 0o600); err != nil {
		t.Fatalf("write fallback: %v", err)
	}
	client := newFakeAccessor()
	client.errs["projects/pinaka/secrets/razorpay-key/versions/latest"] = status.Error(codes.PermissionDenied, "denied")

	f, err := NewFetcher(ctx, withAccessor(client), WithProject("pinaka"), WithFallbackFile(path))
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	got, err := f.ResolveSecret(ctx, "secret://razorpay-key")
	if err != nil {
		t.Fatalf("ResolveSecret: %v", err)
	}
	if got != "rzp_local=" {
		t.Fatalf("expected fallback value, got %q", got)
	}
}

func TestResolveSecretPropagatesHardErrors(t *testing.T) {
	ctx := context.Background()
	client := newFakeAccessor()
	client.errs["projects/pinaka/secrets/razorpay-key/versions/latest"] = status.Error(codes.InvalidArgument, "bad")

	f, err := NewFetcher(ctx, withAccessor(client), WithProject("pinaka"), WithFallbackFile(""))
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	_, err = f.ResolveSecret(ctx, "secret://razorpay-key")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected hard error, got %v", err)
	}
}

func TestResolveSecretFallbackOnlyWithoutProject(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), ".secrets.local")
	if err := os.WriteFile(path, []byte("paytm-mid=LOCAL01\n"), 0o600); err != nil {
		t.Fatalf("write fallback: %v", err)
	}
	f, err := NewFetcher(ctx, WithFallbackFile(path))
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	got, err := f.ResolveSecret(ctx, "secret://paytm-mid?version=7")
	if err != nil || got != "LOCAL01" {
		t.Fatalf("ResolveSecret = %q, %v", got, err)
	}
	if _, err := f.ResolveSecret(ctx, "secret://unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
