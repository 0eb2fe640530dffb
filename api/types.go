package api

// UseCase selects which provider operation a credential is exchanged for.
type UseCase string

const (
	UseCaseGetPhoneNumber    UseCase = "GetPhoneNumber"
	UseCaseVerifyPhoneNumber UseCase = "VerifyPhoneNumber"
)

// Valid reports whether the use case is one the provider understands.
func (u UseCase) Valid() bool {
	return u == UseCaseGetPhoneNumber || u == UseCaseVerifyPhoneNumber
}

// Strategy is the sub-protocol variant chosen by the provider for a given
// device/browser combination.
type Strategy string

const (
	// StrategySameDevice runs the platform credential prompt directly.
	StrategySameDevice Strategy = "same_device"

	// StrategyDesktop hands off via QR code; the desktop browser polls the
	// session status until the phone completes authentication.
	StrategyDesktop Strategy = "desktop"

	// StrategyRedirect sends the mobile browser through the carrier and back
	// to the completion redirect page.
	StrategyRedirect Strategy = "redirect"
)

// OutOfBand reports whether the strategy completes on a separate channel,
// i.e. the original page learns the outcome by polling rather than from the
// credential prompt resolving in place.
func (s Strategy) OutOfBand() bool {
	return s == StrategyDesktop || s == StrategyRedirect
}

// PLMN identifies a carrier network by its mobile country and network codes.
// It selects which carrier to query when no phone number is supplied.
type PLMN struct {
	MCC string `json:"mcc"`
	MNC string `json:"mnc"`
}

// Empty reports whether either code is missing.
func (p *PLMN) Empty() bool {
	return p == nil || p.MCC == "" || p.MNC == ""
}

// ConsentData is displayed to the user by the platform prompt.
type ConsentData struct {
	ConsentText string `json:"consent_text,omitempty"`
	PolicyLink  string `json:"policy_link,omitempty"`
	PolicyText  string `json:"policy_text,omitempty"`
}

// SessionInfo identifies one authentication attempt with the provider.
// SessionKey is the opaque primary key; SessionID is a secondary identifier
// some provider endpoints (invoke, status) key on.
type SessionInfo struct {
	SessionKey string `json:"session_key"`
	SessionID  string `json:"session_id,omitempty"`
}

// PrepareRequest starts an authentication attempt.
type PrepareRequest struct {
	UseCase     UseCase      `json:"use_case"`
	PhoneNumber string       `json:"phone_number,omitempty"`
	PLMN        *PLMN        `json:"plmn,omitempty"`
	ConsentData *ConsentData `json:"consent_data,omitempty"`

	// BindingHash is the SHA-256 digest of the binding secret, forwarded to
	// the provider so it can later confirm a matching secret without the
	// secret itself ever transiting from the client. Populated by the server,
	// never by the browser.
	BindingHash string `json:"binding_hash,omitempty"`
}

// PrepareResponse is the provider's answer to a prepare call.
type PrepareResponse struct {
	AuthenticationStrategy Strategy    `json:"authentication_strategy"`
	Session                SessionInfo `json:"session"`

	// Data carries the strategy-specific prompt parameters (platform prompt
	// options, QR payload, carrier redirect URL). Opaque to this server.
	Data map[string]any `json:"data,omitempty"`

	// StatusURL is the provider-issued polling endpoint, present for
	// out-of-band strategies only.
	StatusURL string `json:"status_url,omitempty"`

	// FeCode echoes the binding secret for the redirect strategy. It is set
	// as an HttpOnly cookie and stripped before the response reaches the
	// browser.
	FeCode string `json:"fe_code,omitempty"`
}

// ProcessRequest exchanges an obtained credential for the verified result.
type ProcessRequest struct {
	UseCase    UseCase     `json:"use_case"`
	Session    SessionInfo `json:"session"`
	Credential string      `json:"credential"`
}

// ProcessResponse is the outcome of a successful credential exchange.
type ProcessResponse struct {
	PhoneNumber      string `json:"phone_number,omitempty"`
	Verified         *bool  `json:"verified,omitempty"`
	SimSwapSignal    string `json:"sim_swap_signal,omitempty"`
	DeviceSwapSignal string `json:"device_swap_signal,omitempty"`
}

// InvokeRequest reports that a credential prompt was started. Best-effort.
type InvokeRequest struct {
	SessionID string `json:"session_id"`
}

// InvokeResponse always reaches the caller with HTTP 200; failure is
// expressed in the body only.
type InvokeResponse struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CompleteRequest is posted by the completion redirect page. The binding
// secret is deliberately absent: it travels in the HttpOnly cookie.
type CompleteRequest struct {
	SessionKey string `json:"session_key"`
	AggCode    string `json:"agg_code"`
}

// StatusResponse is the shape of the provider's polling endpoint body. The
// status proxy relays bodies verbatim; this type exists for the client side.
type StatusResponse struct {
	Status string `json:"status"`
}

// Terminal poll statuses.
const (
	StatusApproved = "approved"
	StatusPending  = "pending"
	StatusDenied   = "denied"
)
