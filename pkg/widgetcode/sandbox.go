package widgetcode

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	SandboxMessageType   = "iframe-error"
	SandboxMessageSource = "ai-widget-preview"
)

var errorBridge = fmt.Sprintf(`<script>
(function () {
  function report(message) {
    try {
      window.parent.postMessage({ type: %[1]q, source: %[2]q, message: String(message) }, "*");
    } catch (e) {}
  }
  window.addEventListener("error", function (event) {
    report(event && event.message ? event.message : "Script error");
  });
  window.addEventListener("unhandledrejection", function (event) {
    var reason = event ? event.reason : undefined;
    report("Unhandled promise rejection: " + (reason && reason.message ? reason.message : reason));
  });
})();
</script>`, SandboxMessageType, SandboxMessageSource)

const sandboxShell = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
%s
<style>html, body { margin: 0; padding: 0; background: transparent; }</style>
</head>
<body>
%s
</body>
</html>`

var (
	headOpenRe = regexp.MustCompile(`(?i)<head(\s[^>]*)?>`)
	bodyOpenRe = regexp.MustCompile(`(?i)<body(\s[^>]*)?>`)
)

// WrapForSandbox injects the error bridge that reports uncaught script errors
// from the preview frame to its parent.
func WrapForSandbox(code string) string {
	if loc := headOpenRe.FindStringIndex(code); loc != nil {
		return code[:loc[1]] + "\n" + errorBridge + code[loc[1]:]
	}
	if loc := bodyOpenRe.FindStringIndex(code); loc != nil {
		return code[:loc[1]] + "\n" + errorBridge + code[loc[1]:]
	}
	return fmt.Sprintf(sandboxShell, errorBridge, strings.TrimSpace(code))
}
