// Package clients provides the HTTP client for the phone-auth backend,
// consumed by the authflow orchestrator. It keeps a cookie jar so the
// HttpOnly binding cookie round-trips the way a browser would carry it.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/glideidentity/phone-auth-core/api"
	"github.com/glideidentity/phone-auth-core/httpserver"
)

// GatewayClient talks to the backend's phone-auth endpoints. It implements
// the orchestrator's Gateway interface.
type GatewayClient struct {
	baseURL string
	client  *http.Client
}

// Option configures a GatewayClient.
type Option func(*GatewayClient)

// WithHTTPClient overrides the underlying HTTP client. The caller is
// responsible for attaching a cookie jar if binding cookies matter.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *GatewayClient) {
		c.client = hc
	}
}

// NewGatewayClient creates a client for the backend at baseURL.
func NewGatewayClient(baseURL string, opts ...Option) (*GatewayClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	c := &GatewayClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second, Jar: jar},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Prepare opens an authentication session.
func (c *GatewayClient) Prepare(ctx context.Context, req *api.PrepareRequest) (*api.PrepareResponse, error) {
	var resp api.PrepareResponse
	if err := c.post(ctx, httpserver.RoutePrepare, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Invoke reports a credential prompt start. The backend answers 200 even on
// internal failure, so an error here means the call itself did not go out.
func (c *GatewayClient) Invoke(ctx context.Context, sessionID string) error {
	return c.post(ctx, httpserver.RouteInvoke, &api.InvokeRequest{SessionID: sessionID}, nil)
}

// Process exchanges a credential for the verified result. The binding secret,
// when one was issued, rides along in the cookie jar.
func (c *GatewayClient) Process(ctx context.Context, req *api.ProcessRequest) (*api.ProcessResponse, error) {
	var resp api.ProcessResponse
	if err := c.post(ctx, httpserver.RouteProcess, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// statusPath is the server's status route with its parameter placeholder
// stripped, so the client follows the server's routing table.
var statusPath = strings.TrimSuffix(httpserver.RouteStatus, "{sessionID}")

// Status polls the backend's status proxy for sessionID.
func (c *GatewayClient) Status(ctx context.Context, sessionID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+statusPath+sessionID, nil)
	if err != nil {
		return "", fmt.Errorf("building status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", api.Transient(fmt.Errorf("polling status: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", decodeBackendError(resp)
	}

	var status api.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", fmt.Errorf("decoding status response: %w", err)
	}
	return status.Status, nil
}

// Complete finalizes a redirect-strategy session. The binding secret travels
// via the cookie jar, matching what the completion page's fetch does.
func (c *GatewayClient) Complete(ctx context.Context, sessionKey, aggCode string) error {
	return c.post(ctx, httpserver.RouteComplete, &api.CompleteRequest{SessionKey: sessionKey, AggCode: aggCode}, nil)
}

func (c *GatewayClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding backend request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building backend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return api.Transient(fmt.Errorf("calling backend %s: %w", path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeBackendError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding backend response from %s: %w", path, err)
	}
	return nil
}

// decodeBackendError keeps the backend's error code and request id intact so
// the orchestrator can surface them unchanged.
func decodeBackendError(resp *http.Response) error {
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
	return pe
}
