/*
Package api defines the wire types and error taxonomy shared by the
phone-auth server, the provider client, and the client-side orchestrator.

The three-phase protocol exchanges these shapes:

 1. prepare - PrepareRequest in, PrepareResponse out. The response selects a
    Strategy and opens a Session; for out-of-band strategies it also carries
    the provider's StatusURL for polling, and for the redirect strategy the
    binding secret (FeCode) which the server converts into an HttpOnly cookie
    and strips from the body.
 2. credential - obtained from the platform identity layer; opaque here.
 3. process - ProcessRequest in, ProcessResponse out, exchanging the
    credential for the verified phone number.

Errors follow a fixed taxonomy: validation failures and registry misses use
the Code* constants, provider-reported failures are relayed as ProviderError
without translation, and network-level failures eligible for silent retry are
wrapped in TransientError.
*/
package api
