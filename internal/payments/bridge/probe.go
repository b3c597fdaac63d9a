package bridge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pinaka-makhana/storefront/internal/payments"
)

// Doer matches the subset of http.Client used by ScriptProbe.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// ScriptProbe checks that a provider's browser script is reachable. It fetches the
// script on every call.
type ScriptProbe struct {
	name   string
	url    string
	client Doer
}

func NewScriptProbe(name, url string, client Doer) *ScriptProbe {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &ScriptProbe{name: name, url: strings.TrimSpace(url), client: client}
}

// PaytmScriptURL returns the merchant-specific CheckoutJS URL.
func PaytmScriptURL(base, merchantID string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + "/" + strings.TrimSpace(merchantID) + ".js"
}

// URL returns the probed script URL.
func (p *ScriptProbe) URL() string { return p.url }

func (p *ScriptProbe) EnsureLoaded(ctx context.Context) error {
	if p.url == "" {
		return fmt.Errorf("%w: %s script URL not configured", payments.ErrProviderUnavailable, p.name)
	}
	status, err := p.fetch(ctx, http.MethodHead)
	if err == nil && (status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented) {
		status, err = p.fetch(ctx, http.MethodGet)
	}
	if err != nil {
		return fmt.Errorf("%w: %s script: %v", payments.ErrProviderUnavailable, p.name, err)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("%w: %s script returned %d", payments.ErrProviderUnavailable, p.name, status)
	}
	return nil
}

func (p *ScriptProbe) fetch(ctx context.Context, method string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Cache-Control", "no-cache")
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, nil
}
