package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/glideidentity/phone-auth-core/api"
	"github.com/glideidentity/phone-auth-core/binding"
	"github.com/glideidentity/phone-auth-core/metrics"
	"github.com/glideidentity/phone-auth-core/provider"
	"github.com/glideidentity/phone-auth-core/registry"
	"github.com/glideidentity/phone-auth-core/statusproxy"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// HandlerConfig carries the per-deployment knobs of the request handler.
type HandlerConfig struct {
	// DefaultPLMN is used for GetPhoneNumber when the caller supplies
	// neither a phone number nor a carrier. Nil disables the fallback.
	DefaultPLMN *api.PLMN

	// BindingCookieMaxAge is the binding cookie lifetime in seconds.
	// Zero falls back to binding.DefaultMaxAge (300).
	BindingCookieMaxAge int

	// ForceSecureCookies marks binding cookies Secure regardless of the
	// inbound scheme. For deployments behind proxies that strip
	// X-Forwarded-Proto.
	ForceSecureCookies bool
}

// Handler processes HTTP requests for the phone-auth session protocol. It
// forwards prepare/process/invoke/complete to the identity provider, keeps
// the session registry current, and enforces device binding.
type Handler struct {
	provider provider.Client
	registry *registry.SessionRegistry
	proxy    *statusproxy.Proxy
	log      *slog.Logger
	cfg      HandlerConfig

	completionPage []byte
}

// NewHandler creates a Handler with the given collaborators.
func NewHandler(pc provider.Client, reg *registry.SessionRegistry, proxy *statusproxy.Proxy, log *slog.Logger, cfg HandlerConfig) (*Handler, error) {
	if cfg.BindingCookieMaxAge <= 0 {
		cfg.BindingCookieMaxAge = binding.DefaultMaxAge
	}
	page, err := renderCompletionPage(RouteComplete)
	if err != nil {
		return nil, err
	}
	return &Handler{
		provider:       pc,
		registry:       reg,
		proxy:          proxy,
		log:            log,
		cfg:            cfg,
		completionPage: page,
	}, nil
}

// HandlePrepare starts an authentication session.
//
// The binding secret is generated here, before the provider call, so its
// digest can ride along on the prepare request. The raw secret reaches the
// browser only as an HttpOnly cookie; the response body is scrubbed.
func (h *Handler) HandlePrepare(w http.ResponseWriter, r *http.Request) {
	var req api.PrepareRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, api.CodeInvalidRequest, "Invalid request body", nil)
		return
	}
	if !req.UseCase.Valid() {
		h.writeError(w, http.StatusBadRequest, api.CodeValidationError,
			"use_case must be 'GetPhoneNumber' or 'VerifyPhoneNumber'", nil)
		return
	}

	h.log.Info("prepare request", "use_case", req.UseCase)

	if req.UseCase == api.UseCaseGetPhoneNumber && req.PhoneNumber == "" && req.PLMN.Empty() && h.cfg.DefaultPLMN != nil {
		h.log.Info("no phone_number or plmn provided, using default carrier",
			"mcc", h.cfg.DefaultPLMN.MCC, "mnc", h.cfg.DefaultPLMN.MNC)
		req.PLMN = h.cfg.DefaultPLMN
	}

	secret, hash, err := binding.NewSecret()
	if err != nil {
		h.log.Error("binding secret generation failed", "err", err)
		h.writeError(w, http.StatusInternalServerError, api.CodeUnexpectedError, "An unexpected error occurred", nil)
		return
	}
	req.BindingHash = hash

	resp, err := h.provider.Prepare(r.Context(), &req)
	if err != nil {
		metrics.PrepareErrorsTotal.Inc()
		h.relayError(w, "prepare", err)
		return
	}
	metrics.PreparesTotal.Inc()

	sessionKey := resp.Session.SessionKey
	h.log.Info("prepare success", "strategy", resp.AuthenticationStrategy, "session", preview(sessionKey))

	if resp.StatusURL != "" && sessionKey != "" {
		// Registered under both identifiers since status polls may use either.
		h.registry.Put(sessionKey, resp.StatusURL)
		if resp.Session.SessionID != "" && resp.Session.SessionID != sessionKey {
			h.registry.Put(resp.Session.SessionID, resp.StatusURL)
		}
	}

	if resp.AuthenticationStrategy == api.StrategyRedirect && sessionKey != "" {
		// Deployments where the provider issues its own binding code echo it
		// in fe_code; it supersedes the locally generated secret and must
		// not reach the browser in the body.
		if resp.FeCode != "" {
			secret = resp.FeCode
			resp.FeCode = ""
		}
		binding.SetCookie(w, binding.CookieName(sessionKey), secret,
			h.cfg.ForceSecureCookies || binding.SecureFromRequest(r), h.cfg.BindingCookieMaxAge)
		h.log.Info("device binding cookie set", "session", preview(sessionKey))
	}
	resp.FeCode = ""

	h.writeJSON(w, http.StatusOK, resp)
}

// HandleProcess exchanges a credential for the verified result. The binding
// secret, when present, is read from the cookie the browser attaches
// automatically; clients cannot supply it in the body.
func (h *Handler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	var req api.ProcessRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, api.CodeInvalidRequest, "Invalid request body", nil)
		return
	}
	if !req.UseCase.Valid() || req.Session.SessionKey == "" || req.Credential == "" {
		h.writeError(w, http.StatusBadRequest, api.CodeValidationError,
			"use_case, session, and credential are required", nil)
		return
	}

	h.log.Info("process request", "use_case", req.UseCase, "session", preview(req.Session.SessionKey))

	bindingSecret, ok := binding.ReadCookie(r.Header.Get("Cookie"), req.Session.SessionKey)
	if ok {
		h.log.Debug("device binding cookie found for process step")
	}

	result, err := h.provider.Process(r.Context(), &req, bindingSecret)
	if err != nil {
		metrics.ProcessErrorsTotal.Inc()
		h.relayError(w, "process", err)
		return
	}
	metrics.ProcessesTotal.Inc()

	h.log.Info("process success", "use_case", req.UseCase)
	h.writeJSON(w, http.StatusOK, result)
}

// HandleInvoke reports that a credential prompt was started. Best-effort by
// contract: the response is always 200 and failures are expressed in the
// body only, so a broken metrics path can never block authentication.
func (h *Handler) HandleInvoke(w http.ResponseWriter, r *http.Request) {
	var req api.InvokeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusOK, &api.InvokeResponse{Success: false, Reason: "invalid_request_body"})
		return
	}
	if req.SessionID == "" {
		h.log.Warn("invoke without session_id, skipping invocation report")
		h.writeJSON(w, http.StatusOK, &api.InvokeResponse{Success: false, Reason: "missing_session_id"})
		return
	}
	if !h.provider.Configured() {
		h.writeJSON(w, http.StatusOK, &api.InvokeResponse{Success: false, Reason: "client_not_configured"})
		return
	}

	h.log.Info("reporting invocation", "session", preview(req.SessionID))

	result, err := h.provider.ReportInvocation(r.Context(), req.SessionID)
	if err != nil {
		h.log.Error("invocation report failed (non-blocking)", "err", err)
		h.writeJSON(w, http.StatusOK, &api.InvokeResponse{Success: false, Error: err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleStatus proxies a session status poll to the provider-issued polling
// URL stored at prepare time.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		h.writeError(w, http.StatusBadRequest, api.CodeInvalidRequest, "Session ID is required", nil)
		return
	}
	metrics.StatusPollsTotal.Inc()

	result, err := h.proxy.Poll(r.Context(), sessionID)
	switch {
	case errors.Is(err, statusproxy.ErrSessionNotFound):
		h.writeError(w, http.StatusNotFound, api.CodeSessionNotFound,
			"Session not found. It may have expired or prepare was not called.", nil)
	case err != nil:
		h.log.Error("status check failed", "session", preview(sessionID), "err", err)
		h.writeError(w, http.StatusInternalServerError, api.CodeStatusCheckFailed, "Failed to check status", nil)
	default:
		h.writeJSON(w, result.StatusCode, result.Body)
	}
}

// HandleComplete finalizes a redirect-strategy session. It requires both the
// body-supplied aggregator code and the cookie-supplied binding secret; a
// missing cookie is a binding violation, not a validation error, because it
// indicates the completion is happening in a different browser than the
// prepare.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	var req api.CompleteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, api.CodeInvalidRequest, "Invalid request body", nil)
		return
	}
	if req.SessionKey == "" || req.AggCode == "" {
		h.writeError(w, http.StatusBadRequest, api.CodeMissingRequiredField,
			"session_key and agg_code are required", nil)
		return
	}

	feCode, ok := binding.ReadCookie(r.Header.Get("Cookie"), req.SessionKey)
	if !ok {
		metrics.BindingViolationsTotal.Inc()
		h.log.Error("complete rejected, device binding cookie missing", "session", preview(req.SessionKey))
		h.writeError(w, http.StatusForbidden, api.CodeMissingBindingCookie,
			"Device binding cookie is missing. The prepare and complete must happen in the same browser.", nil)
		return
	}

	h.log.Info("complete request", "session", preview(req.SessionKey))

	if err := h.provider.Complete(r.Context(), req.SessionKey, feCode, req.AggCode); err != nil {
		h.relayError(w, "complete", err)
		return
	}
	metrics.CompletionsTotal.Inc()

	// The cookie is not cleared: the process step still validates it, and
	// Max-Age retires it on its own.
	w.WriteHeader(http.StatusNoContent)
}

// HandleCompletionPage serves the static completion redirect page. The
// aggregator sends the browser here with agg_code and session_key in the URL
// fragment, which never reaches this server.
func (h *Handler) HandleCompletionPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.WriteHeader(http.StatusOK)
	w.Write(h.completionPage)
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status             string   `json:"status"`
	ProviderConfigured bool     `json:"providerConfigured"`
	Properties         []string `json:"properties"`
}

// HandleHealth reports service and provider configuration status.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, &HealthResponse{
		Status:             "ok",
		ProviderConfigured: h.provider.Configured(),
		Properties:         []string{"magicalAuth"},
	})
}

// relayError maps provider failures onto the response without inventing new
// codes: structured provider errors pass through with their own status and
// code, everything else collapses to a generic UNEXPECTED_ERROR with the
// detail kept server-side.
func (h *Handler) relayError(w http.ResponseWriter, op string, err error) {
	if pe, ok := api.AsProviderError(err); ok {
		h.log.Error("provider error", "op", op, "code", pe.Code, "status", pe.Status, "request_id", pe.RequestID)
		status := pe.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		h.writeError(w, status, pe.Code, pe.Message, pe.Details, pe.RequestID)
		return
	}
	h.log.Error("unexpected error", "op", op, "err", err)
	h.writeError(w, http.StatusInternalServerError, api.CodeUnexpectedError, "An unexpected error occurred", nil)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("writing response failed", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, details map[string]any, requestID ...string) {
	resp := api.ErrorResponse{Error: code, Message: message, Details: details}
	if len(requestID) > 0 {
		resp.RequestID = requestID[0]
	}
	h.writeJSON(w, status, &resp)
}

// preview truncates identifiers for logging.
func preview(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}
