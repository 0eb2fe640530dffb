/*
Package authflow drives an authentication attempt through the three-phase
protocol from the client side: prepare against the backend, obtain a
credential (same-device platform prompt, or an out-of-band approval observed
through status polling), then process the credential into a verified phone
number.

The flow is an explicit state machine:

	Idle -> Preparing -> AwaitingCredential -> Processing -> Completed
	                  \-> Polling ----------/
	any active phase -> Failed | Cancelled

The orchestrator owns exactly one live attempt. Starting a new attempt tears
the previous one down, and every transition is stamped with the attempt's
generation so a late result from a superseded attempt is discarded instead of
committed. Timeouts are wall-clock deadlines fixed at the start of the
attempt; detecting a cross-device channel widens the deadline exactly once.
Transient network failures and credential denials are retried silently up to
a small bound without ever surfacing an intermediate failure; everything else
fails the attempt immediately with the provider's own error code.

Collaborators are injected as interfaces: Gateway for the backend calls (the
clients package provides the HTTP implementation) and CredentialSource for
the platform prompt.
*/
package authflow
