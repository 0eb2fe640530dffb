// Package provider implements the HTTP client for the identity provider that
// verifies carrier credentials. The server handlers forward prepare, process,
// invoke and complete calls through this client; cryptographic verification
// of the carrier's signature happens entirely on the provider side.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/glideidentity/phone-auth-core/api"
)

// DefaultBaseURL points at the production provider API.
const DefaultBaseURL = "https://api.glideidentity.app"

// Client defines the provider operations the server consumes. Implemented by
// HTTPClient; a testify mock lives in mock.go.
type Client interface {
	Prepare(ctx context.Context, req *api.PrepareRequest) (*api.PrepareResponse, error)
	Process(ctx context.Context, req *api.ProcessRequest, bindingSecret string) (*api.ProcessResponse, error)
	ReportInvocation(ctx context.Context, sessionID string) (*api.InvokeResponse, error)
	Complete(ctx context.Context, sessionKey, feCode, aggCode string) error
	Configured() bool
}

// HTTPClient talks to the provider REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithBaseURL overrides the provider base URL.
func WithBaseURL(u string) Option {
	return func(c *HTTPClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		c.client = hc
	}
}

// NewHTTPClient creates a provider client authenticating with apiKey.
func NewHTTPClient(apiKey string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether credentials are present. The server stays up
// without them, answering health checks but failing auth calls.
func (c *HTTPClient) Configured() bool {
	return c.apiKey != ""
}

// Prepare opens an authentication session with the provider.
func (c *HTTPClient) Prepare(ctx context.Context, req *api.PrepareRequest) (*api.PrepareResponse, error) {
	var resp api.PrepareResponse
	if err := c.post(ctx, "/v1/phone-auth/prepare", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Process exchanges a credential for the verified result. The binding secret
// accompanies the call for the redirect strategy so the provider can match
// it against the hash received at prepare time.
func (c *HTTPClient) Process(ctx context.Context, req *api.ProcessRequest, bindingSecret string) (*api.ProcessResponse, error) {
	payload := struct {
		*api.ProcessRequest
		FeCode string `json:"fe_code,omitempty"`
	}{req, bindingSecret}

	path := "/v1/phone-auth/get-phone-number"
	if req.UseCase == api.UseCaseVerifyPhoneNumber {
		path = "/v1/phone-auth/verify-phone-number"
	}

	var resp api.ProcessResponse
	if err := c.post(ctx, path, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReportInvocation tells the provider a credential prompt was started.
func (c *HTTPClient) ReportInvocation(ctx context.Context, sessionID string) (*api.InvokeResponse, error) {
	var resp api.InvokeResponse
	err := c.post(ctx, "/v1/phone-auth/invocation", &api.InvokeRequest{SessionID: sessionID}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Complete finalizes a redirect-strategy session by pairing the
// cookie-carried binding secret with the aggregator code.
func (c *HTTPClient) Complete(ctx context.Context, sessionKey, feCode, aggCode string) error {
	payload := map[string]string{
		"session_key": sessionKey,
		"fe_code":     feCode,
		"agg_code":    aggCode,
	}
	return c.post(ctx, "/v1/phone-auth/complete", payload, nil)
}

func (c *HTTPClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return api.Transient(fmt.Errorf("calling provider %s: %w", path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeProviderError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding provider response from %s: %w", path, err)
	}
	return nil
}

// decodeProviderError turns a non-2xx provider answer into a structured
// ProviderError, keeping the provider's code and request id intact.
func decodeProviderError(resp *http.Response) error {
	pe := &api.ProviderError{Status: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil && len(raw) > 0 {
		if jsonErr := json.Unmarshal(raw, pe); jsonErr != nil {
			pe.Message = string(raw)
		}
	}
	if pe.Code == "" {
		pe.Code = api.CodeUnexpectedError
	}
	if pe.Message == "" {
		pe.Message = http.StatusText(resp.StatusCode)
	}
	if pe.Status == 0 {
		pe.Status = resp.StatusCode
	}
	return pe
}
