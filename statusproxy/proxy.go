// Package statusproxy relays session status checks to the provider-issued
// polling URL stored in the session registry. Browsers cannot call the
// provider directly (CORS and credential scoping), so the desktop/QR flow
// polls this proxy instead.
package statusproxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/glideidentity/phone-auth-core/registry"
)

var (
	// ErrSessionNotFound reports a registry miss: the session expired or
	// prepare was never called.
	ErrSessionNotFound = errors.New("session not found")

	// ErrStatusCheckFailed reports that the outbound status call could not
	// be made or did not yield JSON. Distinct from an upstream 4xx/5xx,
	// which is relayed verbatim.
	ErrStatusCheckFailed = errors.New("status check failed")
)

// Result carries the upstream status code and decoded JSON body, relayed
// without translation.
type Result struct {
	StatusCode int
	Body       any
}

// Proxy looks up polling URLs in the session registry and forwards GETs to
// them. Safe for concurrent use; polls never mutate the registry.
type Proxy struct {
	registry *registry.SessionRegistry
	client   *http.Client
	log      *slog.Logger

	// devHeader, when configured, is attached to every outbound poll as
	// X-Glide-Environment. Used to target provider sandboxes.
	devHeader string
}

// Option configures a Proxy.
type Option func(*Proxy)

// WithHTTPClient overrides the outbound HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Proxy) {
		p.client = c
	}
}

// WithEnvironmentHeader sets the optional provider environment header value.
func WithEnvironmentHeader(v string) Option {
	return func(p *Proxy) {
		p.devHeader = v
	}
}

// New creates a Proxy backed by reg.
func New(reg *registry.SessionRegistry, log *slog.Logger, opts ...Option) *Proxy {
	p := &Proxy{
		registry: reg,
		client:   http.DefaultClient,
		log:      log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll checks the stored polling URL for sessionID and relays the upstream
// answer. Returns ErrSessionNotFound on a registry miss and
// ErrStatusCheckFailed when the upstream call itself fails.
func (p *Proxy) Poll(ctx context.Context, sessionID string) (*Result, error) {
	pollingURL, ok := p.registry.Get(sessionID)
	if !ok {
		p.log.Warn("no stored polling URL for session", "session", preview(sessionID))
		return nil, ErrSessionNotFound
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pollingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrStatusCheckFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	if p.devHeader != "" {
		req.Header.Set("X-Glide-Environment", p.devHeader)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStatusCheckFailed, err)
	}
	defer resp.Body.Close()

	var body any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decoding upstream body: %w", ErrStatusCheckFailed, err)
	}

	p.log.Debug("status check relayed", "session", preview(sessionID), "upstream_status", resp.StatusCode)
	return &Result{StatusCode: resp.StatusCode, Body: body}, nil
}

// preview truncates identifiers for logging.
func preview(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}
