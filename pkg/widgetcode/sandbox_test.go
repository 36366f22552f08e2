package widgetcode

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapForSandbox_InjectsAfterHead(t *testing.T) {
	doc := `<!DOCTYPE html><html><head lang="en"><title>x</title></head><body>b</body></html>`

	got := WrapForSandbox(doc)

	headEnd := strings.Index(got, `<head lang="en">`) + len(`<head lang="en">`)
	assert.True(t, strings.HasPrefix(got[headEnd:], "\n<script>"))
	assert.Less(t, strings.Index(got, SandboxMessageType), strings.Index(got, "<title>"))
	assert.Equal(t, 1, strings.Count(got, SandboxMessageSource))
}

func TestWrapForSandbox_IgnoresHeaderTag(t *testing.T) {
	doc := `<body><header>top</header></body>`

	got := WrapForSandbox(doc)

	assert.True(t, strings.HasPrefix(got, "<body>\n<script>"))
	assert.Contains(t, got, "<header>top</header>")
}

func TestWrapForSandbox_WrapsFragment(t *testing.T) {
	got := WrapForSandbox("<div>hi</div>")

	assert.True(t, strings.HasPrefix(got, "<!DOCTYPE html>"))
	assert.Less(t, strings.Index(got, SandboxMessageType), strings.Index(got, "</head>"))
	assert.Contains(t, got, "<body>\n<div>hi</div>\n</body>")
}

func report(message string) []byte {
	raw, _ := json.Marshal(SandboxMessage{Type: SandboxMessageType, Source: SandboxMessageSource, Message: message})
	return raw
}

func TestErrorLog_FiltersEnvelope(t *testing.T) {
	log := NewErrorLog()

	assert.False(t, log.Record([]byte(`not json`)))
	assert.False(t, log.Record([]byte(`{"type":"iframe-error","source":"other","message":"x"}`)))
	assert.False(t, log.Record([]byte(`{"type":"resize","source":"ai-widget-preview","message":"x"}`)))
	assert.True(t, log.Record(report("ReferenceError: foo is not defined")))
	assert.Equal(t, []string{"ReferenceError: foo is not defined"}, log.Entries())
}

func TestErrorLog_DeduplicatesAndKeepsTrailingWindow(t *testing.T) {
	log := NewErrorLog()

	for i := 0; i < 7; i++ {
		assert.True(t, log.Record(report(fmt.Sprintf("error %d", i))))
	}
	assert.False(t, log.Record(report("error 6")))
	assert.False(t, log.Record(report("error 0")))

	assert.Equal(t, []string{"error 2", "error 3", "error 4", "error 5", "error 6"}, log.Entries())
}

func TestErrorLog_FixPrompt(t *testing.T) {
	log := NewErrorLog()
	assert.Equal(t, "", log.FixPrompt())

	log.Record(report("TypeError: a is null"))
	prompt := log.FixPrompt()
	assert.Contains(t, prompt, "- TypeError: a is null")

	log.Clear()
	assert.Empty(t, log.Entries())
	assert.True(t, log.Record(report("TypeError: a is null")))
}
