package httpserver

import (
	"bytes"
	"fmt"
	"text/template"
)

// completionSignalKey is the localStorage key the original tab watches for.
const completionSignalKey = "glide_auth_complete"

// completionPageTemplate is the page the aggregator redirects to after
// carrier-side authentication. The aggregator code and session key arrive in
// the URL fragment, which browsers never transmit, so neither value can leak
// through server logs or Referer headers. The page signals the originating
// tab through localStorage and posts the completion; the binding secret is
// attached by the browser as the HttpOnly cookie set during prepare.
const completionPageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Completing authentication</title>
</head>
<body>
<p id="msg">Completing authentication&hellip;</p>
<script>
(function () {
  "use strict";

  function show(text) {
    document.getElementById("msg").textContent = text;
  }

  var params = new URLSearchParams(window.location.hash.replace(/^#/, ""));
  var sessionKey = params.get("session_key");
  var aggCode = params.get("agg_code");

  if (!sessionKey || !aggCode) {
    show("Missing completion parameters. Please restart authentication.");
    return;
  }

  // Notify the originating tab. This is a signal only; the poll against the
  // status endpoint remains the source of truth.
  try {
    localStorage.setItem({{.SignalKey}}, JSON.stringify({
      session_key: sessionKey,
      completed_at: Date.now()
    }));
  } catch (e) {
    // Storage may be unavailable (private mode); the poll still resolves.
  }

  fetch({{.CompleteEndpoint}}, {
    method: "POST",
    credentials: "same-origin",
    headers: { "Content-Type": "application/json" },
    body: JSON.stringify({ session_key: sessionKey, agg_code: aggCode })
  }).then(function (res) {
    if (res.status === 204) {
      show("Authentication complete. You can close this tab.");
    } else if (res.status === 403) {
      show("This completion must happen in the browser that started authentication.");
    } else {
      show("Completion failed. Please restart authentication.");
    }
  }).catch(function () {
    show("Completion failed. Please check your connection and retry.");
  });
})();
</script>
</body>
</html>
`

// renderCompletionPage bakes the complete endpoint path into the page once,
// at handler construction.
func renderCompletionPage(completeEndpoint string) ([]byte, error) {
	tmpl, err := template.New("completion").Parse(completionPageTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing completion page template: %w", err)
	}
	var buf bytes.Buffer
	err = tmpl.Execute(&buf, struct {
		SignalKey        string
		CompleteEndpoint string
	}{
		SignalKey:        fmt.Sprintf("%q", completionSignalKey),
		CompleteEndpoint: fmt.Sprintf("%q", completeEndpoint),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering completion page: %w", err)
	}
	return buf.Bytes(), nil
}
