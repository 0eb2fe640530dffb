/*
Package httpserver implements the HTTP surface of the phone-auth session
protocol: the three-phase prepare/process exchange against the identity
provider, the status poll proxy for desktop/QR flows, and the device-binding
completion path for redirect flows.

# Endpoints

  - POST /api/phone-auth/prepare - open a session; stores the provider's
    polling URL in the session registry and, for the redirect strategy, sets
    the HttpOnly device-binding cookie
  - POST /api/phone-auth/process - exchange a credential for the verified
    phone number; the binding cookie is read back here when present
  - POST /api/phone-auth/invoke - best-effort invocation report, always 200
  - GET /api/phone-auth/status/{sessionID} - poll proxy; 404 SESSION_NOT_FOUND
    on a registry miss, 500 STATUS_CHECK_FAILED when the upstream call fails,
    upstream answers relayed verbatim otherwise
  - GET /glide-complete - completion redirect page (fragment parsing happens
    in the browser; the fragment never reaches this server)
  - POST /api/phone-auth/complete - finalize a redirect session; 403
    MISSING_BINDING_COOKIE when the binding cookie is absent
  - GET /api/health - service and provider configuration status
  - GET /livez, /readyz, /drain, /undrain - operational endpoints

# Device binding

The prepare handler generates a random secret, forwards only its SHA-256
digest to the provider, and hands the raw secret to the browser exclusively
as an HttpOnly, SameSite=Lax cookie named after the session. The complete and
process handlers read it back from the Cookie header. The secret never
appears in a response body, URL, or log line; a completion attempt from a
browser without the cookie is rejected as a binding violation, which is the
signature of a cross-origin replay.

# Lifecycle

Server is constructed with New, started with RunInBackground, and stopped
with Shutdown. The session registry's sweeper is owned by the caller (see
cmd/authserver), keeping teardown deterministic in tests.
*/
package httpserver
