package transcript

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assemblylook/internal/config"
	"assemblylook/internal/logging"
	"assemblylook/internal/model"
)

func writeFile(t *testing.T, path string, lines ...string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

func newTestReader(t *testing.T) (*Reader, string, string) {
	t.Helper()
	root := t.TempDir()
	claude := filepath.Join(root, "claude")
	gemini := filepath.Join(root, "gemini")
	return NewReader(config.SourcesConfig{Claude: claude, Gemini: gemini}, nil), claude, gemini
}

// --- ParseClaudeFile ---

func TestParseClaudeFile_WhenGivenRecords_ShouldBuildSession(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "abc-123.jsonl"),
		`{"type":"summary","summary":"no timestamp here"}`,
		`{"type":"user","timestamp":"2024-06-15T10:00:00Z","message":{"role":"user","content":"hi"}}`,
		`{"type":"assistant","timestamp":"2024-06-15T10:05:00Z","message":{"role":"assistant","content":[{"type":"text","text":"hello"}]}}`,
		`{"type":"file-history-snapshot"}`,
	)

	s, faults, err := ParseClaudeFile(path, "-home-me-proj")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Empty(t, faults)

	assert.Equal(t, model.SourceClaude, s.Kind)
	assert.Equal(t, "abc-123", s.ID)
	assert.Equal(t, "-home-me-proj", s.ProjectToken)
	assert.Equal(t, 4, s.MessageCount)
	assert.Len(t, s.Messages, s.MessageCount)
	assert.Equal(t, "2024-06-15T10:00:00Z", s.FirstTimestamp, "first record carrying a timestamp")
	assert.Equal(t, "2024-06-15T10:05:00Z", s.LastTimestamp, "last record carrying a timestamp")
	assert.Equal(t, path, s.SourcePath)
	assert.False(t, s.IsCheckpoint)
}

func TestParseClaudeFile_WhenLinesAreMalformed_ShouldSkipThemAndReportFaults(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "s.jsonl"),
		`{"type":"user","content":"ok"}`,
		`{not json`,
		``,
		`[1,2,3]`,
		`{"type":"assistant","content":"fine"}`,
	)

	s, faults, err := ParseClaudeFile(path, "tok")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 2, s.MessageCount)

	require.Len(t, faults, 2)
	assert.Equal(t, 2, faults[0].Line)
	assert.Equal(t, 4, faults[1].Line)
	assert.Equal(t, model.FaultLine, faults[0].Kind)
}

func TestParseClaudeFile_WhenNoValidRecords_ShouldReturnNilSession(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "empty.jsonl"), `garbage`, ``)

	s, faults, err := ParseClaudeFile(path, "tok")
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Len(t, faults, 1)
}

func TestParseClaudeFile_WhenNoTimestamps_ShouldLeaveThemEmpty(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "s.jsonl"), `{"type":"user","content":"x"}`)

	s, _, err := ParseClaudeFile(path, "tok")
	require.NoError(t, err)
	assert.Equal(t, "", s.FirstTimestamp)
	assert.Equal(t, "", s.LastTimestamp)
}

func TestParseClaudeFile_WhenHTMLExportExists_ShouldRecordIt(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "s.jsonl"), `{"type":"user","content":"x"}`)
	html := writeFile(t, filepath.Join(dir, "s.html"), `<html></html>`)

	s, _, err := ParseClaudeFile(path, "tok")
	require.NoError(t, err)
	assert.Equal(t, html, s.HTMLPath)
}

func TestParseClaudeFile_WhenFileMissing_ShouldReturnError(t *testing.T) {
	_, _, err := ParseClaudeFile(filepath.Join(t.TempDir(), "nope.jsonl"), "tok")
	assert.Error(t, err)
}

func TestParseClaudeFile_WhenLineExceedsTenMegabytes_ShouldStillReadIt(t *testing.T) {
	big := `{"type":"tool_result","content":"` + strings.Repeat("a", 11<<20) + `"}`
	path := writeFile(t, filepath.Join(t.TempDir(), "big.jsonl"),
		`{"type":"user","content":"start"}`,
		big,
		`{"type":"assistant","content":"done","timestamp":"2024-06-15T10:05:00Z"}`,
	)

	s, faults, err := ParseClaudeFile(path, "tok")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Empty(t, faults)
	assert.Equal(t, 3, s.MessageCount)
	assert.Equal(t, "2024-06-15T10:05:00Z", s.LastTimestamp)
}

func TestParseClaudeFile_WhenLastLineHasNoNewline_ShouldReadIt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"user","content":"a"}`+"\n"+`{"type":"user","content":"b"}`), 0644))

	s, faults, err := ParseClaudeFile(path, "tok")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Empty(t, faults)
	assert.Equal(t, 2, s.MessageCount)
}

// --- ParseGeminiSession ---

func TestParseGeminiSession_WhenGivenMessages_ShouldTakeTimestampsPositionally(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "chats", "session-2024-01.json"),
		`{"sessionId":"x","messages":[
			{"type":"user","content":"start","timestamp":"2024-01-02T09:00:00Z"},
			{"type":"gemini","content":"middle","timestamp":"2024-01-01T00:00:00Z"},
			{"type":"user","content":"end","timestamp":"2024-01-02T11:00:00Z"}
		]}`,
	)

	s, err := ParseGeminiSession(path, "f00dfeedcafe")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, model.SourceGemini, s.Kind)
	assert.Equal(t, "session-2024-01", s.ID)
	assert.Equal(t, "f00dfeedcafe", s.ProjectToken)
	assert.Equal(t, 3, s.MessageCount)
	assert.Equal(t, "2024-01-02T09:00:00Z", s.FirstTimestamp)
	assert.Equal(t, "2024-01-02T11:00:00Z", s.LastTimestamp)
	assert.False(t, s.IsCheckpoint)
}

func TestParseGeminiSession_WhenMessagesEmpty_ShouldReturnNil(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "session-1.json"), `{"messages":[]}`)

	s, err := ParseGeminiSession(path, "h")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestParseGeminiSession_WhenNotAnObject_ShouldReturnDecodeError(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "session-1.json"), `[{"content":"x"}]`)

	_, err := ParseGeminiSession(path, "h")
	require.Error(t, err)
	assert.Equal(t, model.FaultDecode, faultKind(err))
}

// --- ParseGeminiCheckpoint ---

func TestParseGeminiCheckpoint_ShouldUseModTimeForBothTimestamps(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "checkpoint-a.json"),
		`[{"role":"user","parts":[{"text":"hello"}]},"stray string",{"role":"model","parts":[{"text":"hi"}]}]`,
	)
	mtime := time.Date(2024, 2, 3, 4, 5, 6, 0, time.Local)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	s, err := ParseGeminiCheckpoint(path, "abcdef0123456789")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.True(t, s.IsCheckpoint)
	assert.Equal(t, "checkpoint-a", s.ID)
	assert.Equal(t, 3, s.MessageCount)
	assert.Equal(t, "2024-02-03T04:05:06", s.FirstTimestamp)
	assert.Equal(t, s.FirstTimestamp, s.LastTimestamp)

	_, isCheckpoint := s.Messages[0].(model.CheckpointMessage)
	assert.True(t, isCheckpoint)
	assert.Equal(t, model.TextMessage("stray string"), s.Messages[1])
}

func TestParseGeminiCheckpoint_WhenEmptyList_ShouldReturnNil(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "checkpoint-a.json"), `[]`)

	s, err := ParseGeminiCheckpoint(path, "h")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestParseGeminiCheckpoint_WhenNotAList_ShouldReturnDecodeError(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "checkpoint-a.json"), `{"messages":[]}`)

	_, err := ParseGeminiCheckpoint(path, "h")
	require.Error(t, err)
	assert.Equal(t, model.FaultDecode, faultKind(err))
}

// --- Reader ---

func TestReadAll_WhenRootsMissing_ShouldReturnEmptyWithoutFaults(t *testing.T) {
	r, _, _ := newTestReader(t)

	corpus, faults := r.ReadAll()
	assert.Empty(t, corpus.Claude)
	assert.Empty(t, corpus.Gemini)
	assert.Empty(t, faults)
}

func TestReadClaude_ShouldWalkProjectDirectoriesAndIsolateBadFiles(t *testing.T) {
	r, claude, _ := newTestReader(t)
	writeFile(t, filepath.Join(claude, "proj-a", "one.jsonl"), `{"type":"user","content":"a"}`)
	writeFile(t, filepath.Join(claude, "proj-a", "two.jsonl"), `{"type":"user","content":"b"}`, `{oops`)
	writeFile(t, filepath.Join(claude, "proj-a", "notes.txt"), `ignored`)
	writeFile(t, filepath.Join(claude, "proj-b", "three.jsonl"), `{"type":"user","content":"c"}`)
	require.NoError(t, os.MkdirAll(filepath.Join(claude, "proj-b", "subagents.jsonl"), 0755))
	writeFile(t, filepath.Join(claude, "stray.jsonl"), `{"type":"user"}`)

	sessions, faults := r.ReadClaude()
	require.Len(t, sessions, 3)
	assert.Equal(t, []string{"one", "two", "three"}, []string{sessions[0].ID, sessions[1].ID, sessions[2].ID})
	assert.Equal(t, "proj-a", sessions[0].ProjectToken)
	assert.Equal(t, "proj-b", sessions[2].ProjectToken)

	require.Len(t, faults, 1)
	assert.Equal(t, model.FaultLine, faults[0].Kind)
}

func TestReadClaude_WhenLineIsMalformed_ShouldLogWarning(t *testing.T) {
	var buf bytes.Buffer
	claude := filepath.Join(t.TempDir(), "claude")
	r := NewReader(config.SourcesConfig{Claude: claude}, logging.New(&buf, "warn"))
	writeFile(t, filepath.Join(claude, "proj", "s.jsonl"), `{"type":"user","content":"a"}`, `{oops`)

	_, faults := r.ReadClaude()
	require.Len(t, faults, 1)
	assert.Contains(t, buf.String(), "skipping malformed line")
	assert.Contains(t, buf.String(), "WARN")
}

func TestReadGemini_ShouldReadBothSubFormatsFromOneProject(t *testing.T) {
	r, _, gemini := newTestReader(t)
	hash := "0123456789abcdef"
	writeFile(t, filepath.Join(gemini, hash, "chats", "session-1.json"), `{"messages":[{"type":"user","content":"x","timestamp":"2024-01-01T00:00:00Z"}]}`)
	writeFile(t, filepath.Join(gemini, hash, "chats", "session-2.json"), `{"messages":`)
	writeFile(t, filepath.Join(gemini, hash, "chats", "other.json"), `{"messages":[{"content":"ignored"}]}`)
	writeFile(t, filepath.Join(gemini, hash, "checkpoint-x.json"), `[{"role":"user","parts":[{"text":"y"}]}]`)

	sessions, faults := r.ReadGemini()
	require.Len(t, sessions, 2)
	assert.False(t, sessions[0].IsCheckpoint)
	assert.True(t, sessions[1].IsCheckpoint)
	for _, s := range sessions {
		assert.Equal(t, hash, s.ProjectToken)
	}

	require.Len(t, faults, 1)
	assert.Equal(t, model.FaultDecode, faults[0].Kind)
	assert.True(t, strings.HasSuffix(faults[0].Path, "session-2.json"))
}
