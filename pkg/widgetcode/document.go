package widgetcode

import (
	"fmt"
	"regexp"
	"strings"
)

const documentShell = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<style>html, body { margin: 0; padding: 0; background: transparent; }</style>
</head>
<body>
%s
</body>
</html>`

var titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// EnsureFullDocument wraps fragments in a minimal document shell. Text that
// already starts with a doctype or an html tag is returned as is.
func EnsureFullDocument(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return ""
	}
	lower := asciiLower(trimmed)
	if strings.HasPrefix(lower, "<!doctype html") || strings.HasPrefix(lower, "<html") {
		return code
	}
	return fmt.Sprintf(documentShell, trimmed)
}

// Normalize is ExtractCode followed by EnsureFullDocument.
func Normalize(raw string) string {
	return EnsureFullDocument(ExtractCode(raw))
}

// Title returns the trimmed contents of the first <title> tag.
func Title(document string) (string, bool) {
	match := titleRe.FindStringSubmatch(document)
	if match == nil {
		return "", false
	}
	title := strings.TrimSpace(match[1])
	return title, title != ""
}
