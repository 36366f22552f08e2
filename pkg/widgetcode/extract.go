// Package widgetcode turns raw model output into renderable widget documents
// and prepares them for the sandboxed preview frame.
package widgetcode

import (
	"regexp"
	"strings"
)

const minFencedBlockLength = 30

var fencedBlockRe = regexp.MustCompile("(?s)```[\\w+-]*[ \\t]*\\r?\\n?(.*?)```")

var (
	documentMarkers = []string{"<!doctype html", "<html", "<body"}
	fragmentMarkers = []string{"<div", "<style", "<section", "<main"}
)

// ExtractCode picks the most plausible HTML document out of model output. It
// returns an empty string when nothing usable is found.
func ExtractCode(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	var code string
	if startsWithDocument(text) {
		code = text
	} else if block, ok := bestFencedBlock(text); ok {
		code = block
	} else {
		code = cutBeforeMarker(text)
	}

	code = stripTrailingFences(code)
	lower := asciiLower(code)
	if end := strings.LastIndex(lower, "</html>"); end >= 0 {
		code = code[:end+len("</html>")]
	}
	return strings.TrimSpace(code)
}

func bestFencedBlock(text string) (string, bool) {
	var best string
	var bestIsDocument, found bool
	for _, match := range fencedBlockRe.FindAllStringSubmatch(text, -1) {
		block := strings.TrimSpace(match[1])
		if len(block) < minFencedBlockLength {
			continue
		}
		isDocument := containsDocumentMarker(block)
		switch {
		case !found,
			isDocument && !bestIsDocument,
			isDocument == bestIsDocument && len(block) > len(best):
			best, bestIsDocument, found = block, isDocument, true
		}
	}
	return best, found
}

func cutBeforeMarker(text string) string {
	lower := asciiLower(text)
	for _, marker := range documentMarkers {
		if idx := strings.Index(lower, marker); idx >= 0 {
			return text[idx:]
		}
	}
	first := -1
	for _, marker := range fragmentMarkers {
		if idx := strings.Index(lower, marker); idx >= 0 && (first < 0 || idx < first) {
			first = idx
		}
	}
	if first >= 0 {
		return text[first:]
	}
	// Prose without any markup is not a widget.
	if !strings.Contains(text, "<") || !strings.Contains(text, ">") {
		return ""
	}
	return strings.TrimLeft(stripLeadingFence(text), " \t\r\n")
}

func stripLeadingFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		return text[nl+1:]
	}
	return ""
}

func stripTrailingFences(code string) string {
	code = strings.TrimSpace(code)
	for strings.HasSuffix(code, "```") {
		code = strings.TrimSpace(strings.TrimSuffix(code, "```"))
	}
	return code
}

func containsDocumentMarker(text string) bool {
	lower := asciiLower(text)
	for _, marker := range documentMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func startsWithDocument(text string) bool {
	lower := asciiLower(text)
	return strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html")
}

// asciiLower lowercases ASCII letters only, so byte offsets found in the
// result stay valid in the original text.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
