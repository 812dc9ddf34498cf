package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Message is one entry of a session's message list. The set of implementations
// is closed: ClaudeMessage, GeminiMessage, CheckpointMessage, TextMessage and
// OpaqueMessage.
type Message interface {
	// Fragments returns the text pieces this entry contributes to the session's full text.
	Fragments() []string
	// Content returns the entry's content when it is a plain string.
	Content() (string, bool)
	IsUser() bool
	IsAssistant() bool
	// ToolCalls returns the number of tool or function invocations the entry carries.
	ToolCalls() int
	// Mapping reports whether the entry was a structured record rather than a bare value.
	Mapping() bool

	message()
}

// --- Claude (JSONL record) ---

// ClaudeMessage is one line of a Claude Code transcript.
type ClaudeMessage struct {
	Type      string
	Role      string
	Timestamp string

	content json.RawMessage
	nested  *claudeNested
}

type claudeNested struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// claudeLine is the JSON structure of a single JSONL line.
type claudeLine struct {
	Type      string          `json:"type"`
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	Timestamp json.RawMessage `json:"timestamp"`
	Message   json.RawMessage `json:"message"`
}

// DecodeClaudeRecord parses one transcript line. Lines that are not JSON objects are rejected.
func DecodeClaudeRecord(line []byte) (ClaudeMessage, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return ClaudeMessage{}, fmt.Errorf("record is not a JSON object")
	}
	var cl claudeLine
	if err := json.Unmarshal(line, &cl); err != nil {
		return ClaudeMessage{}, err
	}
	ts, _ := rawString(cl.Timestamp)
	m := ClaudeMessage{
		Type:      cl.Type,
		Role:      cl.Role,
		Timestamp: ts,
		content:   cl.Content,
	}
	if len(cl.Message) > 0 && cl.Message[0] == '{' {
		var n claudeNested
		if json.Unmarshal(cl.Message, &n) == nil {
			m.nested = &n
		}
	}
	return m, nil
}

func (m ClaudeMessage) Fragments() []string {
	if m.Type == "text" {
		s, _ := rawString(m.content)
		return []string{s}
	}
	if s, ok := rawString(m.content); ok {
		return []string{s}
	}
	if m.content == nil && m.nested != nil {
		if text := extractText(m.nested.Content); text != "" {
			return []string{text}
		}
	}
	return nil
}

func (m ClaudeMessage) Content() (string, bool) {
	if s, ok := rawString(m.content); ok {
		return s, true
	}
	if m.content != nil || m.nested == nil {
		return "", false
	}
	if s, ok := rawString(m.nested.Content); ok {
		return s, true
	}
	text := extractText(m.nested.Content)
	return text, text != ""
}

func (m ClaudeMessage) role() string {
	if m.Role == "" && m.nested != nil {
		return m.nested.Role
	}
	return m.Role
}

func (m ClaudeMessage) IsUser() bool {
	return m.role() == "user" || m.Type == "user"
}

func (m ClaudeMessage) IsAssistant() bool {
	r := m.role()
	return r == "assistant" || r == "model" || m.Type == "model"
}

func (m ClaudeMessage) ToolCalls() int {
	if m.Type == "tool_use" {
		return 1
	}
	if m.nested == nil {
		return 0
	}
	var blocks []struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(m.nested.Content, &blocks); err != nil {
		return 0
	}
	n := 0
	for _, b := range blocks {
		if b.Type == "tool_use" {
			n++
		}
	}
	return n
}

func (ClaudeMessage) Mapping() bool { return true }
func (ClaudeMessage) message()      {}

// --- Gemini (JSON list entries) ---

type geminiRecord struct {
	Type string
	Role string

	content json.RawMessage
	parts   []map[string]json.RawMessage
}

type geminiEntry struct {
	Type      string          `json:"type"`
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	Parts     json.RawMessage `json:"parts"`
	Timestamp json.RawMessage `json:"timestamp"`
}

func (r geminiRecord) Fragments() []string {
	if r.content != nil {
		if s, ok := rawString(r.content); ok {
			return []string{s}
		}
		return []string{compact(r.content)}
	}
	var out []string
	for _, p := range r.parts {
		if s, ok := rawString(p["text"]); ok {
			out = append(out, s)
		}
	}
	return out
}

func (r geminiRecord) Content() (string, bool) {
	return rawString(r.content)
}

func (r geminiRecord) IsUser() bool {
	return r.Role == "user" || r.Type == "user"
}

// IsAssistant also treats type "gemini", which Gemini CLI writes for model turns,
// as an assistant message.
func (r geminiRecord) IsAssistant() bool {
	return r.Role == "assistant" || r.Role == "model" || r.Type == "model" || r.Type == "gemini"
}

func (r geminiRecord) ToolCalls() int {
	n := 0
	for _, p := range r.parts {
		if _, ok := p["functionCall"]; ok {
			n++
		}
	}
	return n
}

func (geminiRecord) Mapping() bool { return true }

// GeminiMessage is one record of a Gemini CLI chats/session-*.json file.
type GeminiMessage struct {
	geminiRecord
	Timestamp string
}

func (GeminiMessage) message() {}

// CheckpointMessage is one record of a Gemini CLI checkpoint-*.json file.
// Checkpoint records carry no timestamp.
type CheckpointMessage struct {
	geminiRecord
}

func (CheckpointMessage) message() {}

// --- Bare list values ---

// TextMessage is a list entry that is a plain JSON string.
type TextMessage string

func (m TextMessage) Fragments() []string   { return []string{string(m)} }
func (TextMessage) Content() (string, bool) { return "", false }
func (TextMessage) IsUser() bool            { return false }
func (TextMessage) IsAssistant() bool       { return false }
func (TextMessage) ToolCalls() int          { return 0 }
func (TextMessage) Mapping() bool           { return false }
func (TextMessage) message()                {}

// OpaqueMessage is a list entry that is neither an object nor a string.
type OpaqueMessage json.RawMessage

func (OpaqueMessage) Fragments() []string     { return nil }
func (OpaqueMessage) Content() (string, bool) { return "", false }
func (OpaqueMessage) IsUser() bool            { return false }
func (OpaqueMessage) IsAssistant() bool       { return false }
func (OpaqueMessage) ToolCalls() int          { return 0 }
func (OpaqueMessage) Mapping() bool           { return false }
func (OpaqueMessage) message()                {}

// DecodeGeminiEntry converts one element of a Gemini message list.
// Objects become GeminiMessage, or CheckpointMessage when checkpoint is set.
func DecodeGeminiEntry(raw json.RawMessage, checkpoint bool) (Message, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return OpaqueMessage(raw), nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return TextMessage(s), nil
	case '{':
	default:
		return OpaqueMessage(raw), nil
	}

	var e geminiEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	rec := geminiRecord{Type: e.Type, Role: e.Role, content: e.Content}
	var parts []json.RawMessage
	if json.Unmarshal(e.Parts, &parts) == nil {
		for _, p := range parts {
			var part map[string]json.RawMessage
			if json.Unmarshal(p, &part) == nil {
				rec.parts = append(rec.parts, part)
			}
		}
	}
	if checkpoint {
		return CheckpointMessage{geminiRecord: rec}, nil
	}
	ts, _ := rawString(e.Timestamp)
	return GeminiMessage{geminiRecord: rec, Timestamp: ts}, nil
}

// --- helpers ---

func rawString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// extractText pulls human-readable text from a message's content field.
// User messages have a plain string; assistant messages have an array of blocks.
func extractText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	if s, ok := rawString(raw); ok {
		return s
	}

	var blocks []json.RawMessage
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}

	var parts []string
	for _, block := range blocks {
		var obj struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(block, &obj); err != nil {
			continue
		}
		if obj.Type == "text" && obj.Text != "" {
			parts = append(parts, obj.Text)
		}
	}
	return strings.Join(parts, "\n")
}
