// Package binding implements the device binding scheme for the redirect
// strategy. A high-entropy secret is issued per prepare call and travels
// exactly twice: once to the browser as a Set-Cookie header, and once back
// from the browser as a Cookie header on the process and complete steps.
// Only its SHA-256 digest is ever sent to the provider, so a stolen prepare
// response or a replayed completion from another browser cannot finish the
// session.
package binding

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

const (
	// cookiePrefix namespaces binding cookies; the suffix is derived from the
	// session key so concurrent sessions in one browser never collide.
	cookiePrefix = "_glide_bind_"

	// secretBytes is the entropy of the raw secret (256 bits).
	secretBytes = 32

	// DefaultMaxAge matches the session TTL: the cookie self-destructs
	// without server-side cleanup.
	DefaultMaxAge = 300
)

// Token is the issued binding material for one session.
type Token struct {
	// Secret is the raw value set as the cookie. It must never appear in a
	// response body, URL, or log line.
	Secret string

	// CookieName is the per-session cookie name.
	CookieName string

	// Hash is hex(SHA-256(Secret)), safe to forward to the provider.
	Hash string
}

// NewSecret generates a lower-case hex secret and its SHA-256 digest. The
// secret is generated before the provider call so the digest can ride along
// on the prepare request; the cookie name is derived later, once the
// provider has issued a session key.
func NewSecret() (secret, hash string, err error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generating binding secret: %w", err)
	}
	secret = hex.EncodeToString(buf)
	return secret, HashSecret(secret), nil
}

// HashSecret returns hex(SHA-256(secret)).
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// CookieName derives the per-session cookie name. The session key is hashed
// and truncated so the name stays short and free of characters illegal in
// cookie names regardless of the provider's key format.
func CookieName(sessionKey string) string {
	sum := sha256.Sum256([]byte(sessionKey))
	return cookiePrefix + hex.EncodeToString(sum[:8])
}

// Issue generates binding material for a known session key.
func Issue(sessionKey string) (Token, error) {
	secret, hash, err := NewSecret()
	if err != nil {
		return Token{}, err
	}
	return Token{
		Secret:     secret,
		CookieName: CookieName(sessionKey),
		Hash:       hash,
	}, nil
}

// SetCookie writes the binding cookie onto the response. HttpOnly keeps the
// secret away from page scripts; SameSite=Lax still attaches it on the
// top-level carrier redirect back to the completion page.
func SetCookie(w http.ResponseWriter, name, secret string, secure bool, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    strings.ToLower(secret),
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ReadCookie extracts the binding secret for sessionKey from a raw Cookie
// header. Malformed headers and missing cookies report false; this function
// never fails.
func ReadCookie(cookieHeader, sessionKey string) (string, bool) {
	if cookieHeader == "" || sessionKey == "" {
		return "", false
	}
	want := CookieName(sessionKey)
	for _, part := range strings.Split(cookieHeader, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		if name != want {
			continue
		}
		value = strings.Trim(value, `"`)
		if value == "" {
			return "", false
		}
		return value, true
	}
	return "", false
}

// SecureFromRequest decides the cookie's Secure flag from the inbound
// scheme, honoring the forwarded protocol set by TLS-terminating proxies.
func SecureFromRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
