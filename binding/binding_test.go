package binding

import (
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueProducesDistinctHighEntropySecrets(t *testing.T) {
	tok1, err := Issue("session-key-1")
	require.NoError(t, err)
	tok2, err := Issue("session-key-1")
	require.NoError(t, err)

	assert.NotEqual(t, tok1.Secret, tok2.Secret)
	assert.Len(t, tok1.Secret, secretBytes*2)
	assert.Equal(t, HashSecret(tok1.Secret), tok1.Hash)
	assert.NotEqual(t, tok1.Secret, tok1.Hash)
}

func TestCookieNameDeterministicAndLegal(t *testing.T) {
	name := CookieName(`weird key/with; illegal="chars"`)
	assert.Equal(t, name, CookieName(`weird key/with; illegal="chars"`))
	assert.True(t, strings.HasPrefix(name, "_glide_bind_"))
	assert.Regexp(t, regexp.MustCompile(`^[A-Za-z0-9_]+$`), name)

	assert.NotEqual(t, CookieName("session-a"), CookieName("session-b"))
}

func TestSetReadCookieRoundTrip(t *testing.T) {
	tok, err := Issue("sess-abc")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	SetCookie(w, tok.CookieName, tok.Secret, true, DefaultMaxAge)

	header := w.Header().Get("Set-Cookie")
	require.NotEmpty(t, header)
	assert.Contains(t, header, "HttpOnly")
	assert.Contains(t, header, "SameSite=Lax")
	assert.Contains(t, header, "Secure")
	assert.Contains(t, header, "Path=/")
	assert.Contains(t, header, "Max-Age=300")

	// Simulate the browser echoing the cookie back.
	cookieHeader := tok.CookieName + "=" + tok.Secret
	secret, ok := ReadCookie(cookieHeader, "sess-abc")
	require.True(t, ok)
	assert.Equal(t, tok.Secret, secret)
}

func TestSetCookieLowercasesSecret(t *testing.T) {
	w := httptest.NewRecorder()
	SetCookie(w, CookieName("sess"), "ABCDEF", false, DefaultMaxAge)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "=abcdef")
	assert.NotContains(t, w.Header().Get("Set-Cookie"), "Secure")
}

func TestReadCookieAmongOthers(t *testing.T) {
	tok, err := Issue("sess-1")
	require.NoError(t, err)

	header := "theme=dark; " + tok.CookieName + "=" + tok.Secret + "; _ga=GA1.2.3"
	secret, ok := ReadCookie(header, "sess-1")
	require.True(t, ok)
	assert.Equal(t, tok.Secret, secret)
}

func TestReadCookieAbsentOrMalformed(t *testing.T) {
	cases := map[string]string{
		"empty header":        "",
		"unrelated cookies":   "theme=dark; _ga=GA1.2.3",
		"no equals sign":      "garbage;;;",
		"wrong session":       CookieName("other-session") + "=deadbeef",
		"empty value":         CookieName("sess-1") + "=",
		"bare semicolons":     ";;;;",
		"name without value":  CookieName("sess-1"),
		"whitespace soup":     "   ;  = ;  ",
		"quoted empty value":  CookieName("sess-1") + `=""`,
		"prefix only, no key": "_glide_bind_=x",
	}
	for label, header := range cases {
		_, ok := ReadCookie(header, "sess-1")
		assert.False(t, ok, "%s: %q", label, header)
	}
}

func TestReadCookieEmptySessionKey(t *testing.T) {
	_, ok := ReadCookie("a=b", "")
	assert.False(t, ok)
}
