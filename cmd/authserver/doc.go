// Package main (cmd/authserver) implements the phone-auth backend server.
//
// The server fronts the identity provider for the three-phase authentication
// protocol: prepare opens a session and issues the device-binding cookie,
// process exchanges a platform credential for the verified phone number, and
// the status proxy lets desktop/QR clients poll an out-of-band session
// through this backend instead of hitting the provider directly. A periodic
// sweeper expires sessions after their TTL.
//
// The provider API key comes from --glide-api-key, the GLIDE_API_KEY
// environment variable, or a .env file (an explicit --env-file overrides the
// environment). Without a key the server still starts and answers health
// checks, which keeps deployments debuggable before credentials are wired.
//
// The server implements graceful shutdown on SIGINT/SIGTERM and supports
// health checks, metrics collection, and optional profiling endpoints.
//
// Example usage:
//
//	authserver --listen-addr=0.0.0.0:4567 \
//	    --allowed-origins=https://app.example.com \
//	    --default-plmn=310/260 \
//	    --log-json
package main
