package statusproxy

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glideidentity/phone-auth-core/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProxy(t *testing.T, opts ...Option) (*Proxy, *registry.SessionRegistry) {
	t.Helper()
	reg := registry.New(5*time.Minute, time.Minute, testLogger())
	return New(reg, testLogger(), opts...), reg
}

func TestPollUnknownSession(t *testing.T) {
	proxy, _ := newTestProxy(t)

	_, err := proxy.Poll(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestPollRelaysUpstreamBody(t *testing.T) {
	var gotAccept, gotEnv string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotEnv = r.Header.Get("X-Glide-Environment")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"pending"}`))
	}))
	defer upstream.Close()

	proxy, reg := newTestProxy(t, WithEnvironmentHeader("sandbox"))
	reg.Put("sess-1", upstream.URL)

	res, err := proxy.Poll(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, map[string]any{"status": "pending"}, res.Body)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, "sandbox", gotEnv)
}

func TestPollRelaysUpstreamErrorStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"SESSION_SUPERSEDED","message":"newer attempt exists"}`))
	}))
	defer upstream.Close()

	proxy, reg := newTestProxy(t)
	reg.Put("sess-1", upstream.URL)

	// Upstream 4xx is not an error here; it is relayed as-is.
	res, err := proxy.Poll(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Equal(t, map[string]any{"error": "SESSION_SUPERSEDED", "message": "newer attempt exists"}, res.Body)
}

func TestPollNetworkFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close() // connection refused from here on

	proxy, reg := newTestProxy(t)
	reg.Put("sess-1", upstream.URL)

	_, err := proxy.Poll(context.Background(), "sess-1")
	assert.ErrorIs(t, err, ErrStatusCheckFailed)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}

func TestPollNonJSONUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway timeout</html>"))
	}))
	defer upstream.Close()

	proxy, reg := newTestProxy(t)
	reg.Put("sess-1", upstream.URL)

	_, err := proxy.Poll(context.Background(), "sess-1")
	assert.ErrorIs(t, err, ErrStatusCheckFailed)
}

func TestPollDoesNotMutateRegistry(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"pending"}`))
	}))
	defer upstream.Close()

	proxy, reg := newTestProxy(t)
	reg.Put("sess-1", upstream.URL)

	for i := 0; i < 5; i++ {
		_, err := proxy.Poll(context.Background(), "sess-1")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, reg.Len())
}

func TestPollContextCancelled(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer upstream.Close()

	proxy, reg := newTestProxy(t)
	reg.Put("sess-1", upstream.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := proxy.Poll(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrStatusCheckFailed)
}
