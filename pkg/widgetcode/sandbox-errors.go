package widgetcode

import (
	"encoding/json"
	"strings"
	"sync"
)

const maxSandboxErrors = 5

// SandboxMessage is the envelope the error bridge posts to the parent.
type SandboxMessage struct {
	Type    string `json:"type"`
	Source  string `json:"source"`
	Message string `json:"message"`
}

func (m SandboxMessage) IsErrorReport() bool {
	return m.Type == SandboxMessageType && m.Source == SandboxMessageSource
}

// ErrorLog keeps the most recent distinct runtime errors reported by a
// preview frame.
type ErrorLog struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	entries []string
}

func NewErrorLog() *ErrorLog {
	return &ErrorLog{
		seen:    make(map[string]struct{}),
		entries: make([]string, 0, maxSandboxErrors),
	}
}

// Record parses a raw bridge message. It returns false for anything that is
// not an error report or that was already recorded.
func (l *ErrorLog) Record(raw []byte) bool {
	var msg SandboxMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return false
	}
	return l.RecordMessage(msg)
}

func (l *ErrorLog) RecordMessage(msg SandboxMessage) bool {
	if !msg.IsErrorReport() || msg.Message == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[msg.Message]; ok {
		return false
	}
	l.seen[msg.Message] = struct{}{}
	l.entries = append(l.entries, msg.Message)
	if len(l.entries) > maxSandboxErrors {
		l.entries = l.entries[len(l.entries)-maxSandboxErrors:]
	}
	return true
}

func (l *ErrorLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := make([]string, len(l.entries))
	copy(entries, l.entries)
	return entries
}

func (l *ErrorLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = make(map[string]struct{})
	l.entries = l.entries[:0]
}

// FixPrompt builds the request that asks the model to repair the recorded
// errors. It is empty when nothing was recorded.
func (l *ErrorLog) FixPrompt() string {
	entries := l.Entries()
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("The widget throws these runtime errors in the preview. Fix them:\n")
	for _, entry := range entries {
		b.WriteString("- ")
		b.WriteString(entry)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
