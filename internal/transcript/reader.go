// Package transcript reads Claude Code and Gemini CLI session logs into canonical sessions.
package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"assemblylook/internal/config"
	"assemblylook/internal/logging"
	"assemblylook/internal/model"
)

// Reader walks both source-family directory trees.
type Reader struct {
	claudeDir string
	geminiDir string
	logger    *slog.Logger
}

// NewReader creates a Reader over the configured source directories.
func NewReader(src config.SourcesConfig, logger *slog.Logger) *Reader {
	return &Reader{
		claudeDir: src.Claude,
		geminiDir: src.Gemini,
		logger:    logging.OrDiscard(logger),
	}
}

// ReadAll parses every session of both families. Files and lines that cannot be
// parsed are omitted and reported as faults.
func (r *Reader) ReadAll() (model.Corpus, []model.Fault) {
	claude, claudeFaults := r.ReadClaude()
	gemini, geminiFaults := r.ReadGemini()
	return model.Corpus{Claude: claude, Gemini: gemini}, append(claudeFaults, geminiFaults...)
}

// ReadClaude parses <claude root>/<token>/*.jsonl.
func (r *Reader) ReadClaude() ([]model.Session, []model.Fault) {
	var sessions []model.Session
	var faults []model.Fault

	projects, ok, fault := r.projectDirs(r.claudeDir)
	if fault != nil {
		return nil, []model.Fault{*fault}
	}
	if !ok {
		return nil, nil
	}

	for _, token := range projects {
		projPath := filepath.Join(r.claudeDir, token)
		entries, err := os.ReadDir(projPath)
		if err != nil {
			faults = append(faults, r.fault(model.Fault{Path: projPath, Kind: model.FaultRead, Err: err}))
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
				continue
			}
			path := filepath.Join(projPath, e.Name())
			s, lineFaults, err := ParseClaudeFile(path, token)
			for _, lf := range lineFaults {
				r.logger.Warn("skipping malformed line", "path", lf.Path, "line", lf.Line, "error", lf.Err)
			}
			faults = append(faults, lineFaults...)
			if err != nil {
				faults = append(faults, r.fault(model.Fault{Path: path, Kind: model.FaultRead, Err: err}))
				continue
			}
			if s != nil {
				sessions = append(sessions, *s)
			}
		}
	}
	return sessions, faults
}

// ReadGemini parses <gemini root>/<hash>/chats/session-*.json and
// <gemini root>/<hash>/checkpoint-*.json.
func (r *Reader) ReadGemini() ([]model.Session, []model.Fault) {
	var sessions []model.Session
	var faults []model.Fault

	projects, ok, fault := r.projectDirs(r.geminiDir)
	if fault != nil {
		return nil, []model.Fault{*fault}
	}
	if !ok {
		return nil, nil
	}

	for _, hash := range projects {
		projPath := filepath.Join(r.geminiDir, hash)

		chats, _ := filepath.Glob(filepath.Join(projPath, "chats", "session-*.json"))
		for _, path := range chats {
			s, err := ParseGeminiSession(path, hash)
			if err != nil {
				faults = append(faults, r.fault(model.Fault{Path: path, Kind: faultKind(err), Err: err}))
				continue
			}
			if s != nil {
				sessions = append(sessions, *s)
			}
		}

		checkpoints, _ := filepath.Glob(filepath.Join(projPath, "checkpoint-*.json"))
		for _, path := range checkpoints {
			s, err := ParseGeminiCheckpoint(path, hash)
			if err != nil {
				faults = append(faults, r.fault(model.Fault{Path: path, Kind: faultKind(err), Err: err}))
				continue
			}
			if s != nil {
				sessions = append(sessions, *s)
			}
		}
	}
	return sessions, faults
}

// projectDirs lists the immediate subdirectories of root in lexical order.
// ok is false when root does not exist, which is not a fault.
func (r *Reader) projectDirs(root string) ([]string, bool, *model.Fault) {
	entries, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		r.logger.Debug("source root missing", "root", root)
		return nil, false, nil
	}
	if err != nil {
		f := r.fault(model.Fault{Path: root, Kind: model.FaultRead, Err: err})
		return nil, false, &f
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs, true, nil
}

func (r *Reader) fault(f model.Fault) model.Fault {
	r.logger.Warn("skipping session file", "path", f.Path, "kind", f.Kind, "error", f.Err)
	return f
}

// ParseClaudeFile reads one JSONL transcript. Malformed lines are skipped and
// returned as line faults; a file with no valid records yields a nil session.
func ParseClaudeFile(path, token string) (*model.Session, []model.Fault, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 1024*1024)

	var (
		messages    []model.Message
		faults      []model.Fault
		first, last string
		lineNo      int
	)

	// ReadBytes grows the buffer as needed, so lines of any length are read whole.
	for {
		line, readErr := br.ReadBytes('\n')
		if len(line) > 0 {
			lineNo++
			if rec, ok := decodeLine(path, lineNo, line, &faults); ok {
				if rec.Timestamp != "" {
					if first == "" {
						first = rec.Timestamp
					}
					last = rec.Timestamp
				}
				messages = append(messages, rec)
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return nil, faults, fmt.Errorf("read transcript: %w", readErr)
		}
	}

	if len(messages) == 0 {
		return nil, faults, nil
	}

	return &model.Session{
		Kind:           model.SourceClaude,
		ID:             stem(path),
		ProjectToken:   token,
		Messages:       messages,
		MessageCount:   len(messages),
		FirstTimestamp: first,
		LastTimestamp:  last,
		SourcePath:     path,
		HTMLPath:       htmlSibling(path),
	}, faults, nil
}

// decodeLine decodes one transcript line. Blank lines are ignored; malformed ones
// are appended to faults.
func decodeLine(path string, lineNo int, line []byte, faults *[]model.Fault) (model.ClaudeMessage, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return model.ClaudeMessage{}, false
	}
	rec, err := model.DecodeClaudeRecord(line)
	if err != nil {
		*faults = append(*faults, model.Fault{Path: path, Line: lineNo, Kind: model.FaultLine, Err: err})
		return model.ClaudeMessage{}, false
	}
	return rec, true
}

// errDecode marks failures in a file's JSON structure rather than in reading it.
var errDecode = errors.New("decode")

func faultKind(err error) model.FaultKind {
	if errors.Is(err, errDecode) {
		return model.FaultDecode
	}
	return model.FaultRead
}

// ParseGeminiSession reads a chats/session-*.json file: an object with a messages list.
// An empty list yields a nil session.
func ParseGeminiSession(path, hash string) (*model.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc struct {
		Messages []json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errDecode, path, err)
	}
	if len(doc.Messages) == 0 {
		return nil, nil
	}

	messages, err := decodeList(doc.Messages, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errDecode, path, err)
	}

	return &model.Session{
		Kind:           model.SourceGemini,
		ID:             stem(path),
		ProjectToken:   hash,
		Messages:       messages,
		MessageCount:   len(messages),
		FirstTimestamp: geminiTimestamp(messages[0]),
		LastTimestamp:  geminiTimestamp(messages[len(messages)-1]),
		SourcePath:     path,
		HTMLPath:       htmlSibling(path),
	}, nil
}

// ParseGeminiCheckpoint reads a checkpoint-*.json file: a bare message list without
// timestamps. The file's modification time stands in for both session timestamps.
func ParseGeminiCheckpoint(path, hash string) (*model.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errDecode, path, err)
	}
	if len(list) == 0 {
		return nil, nil
	}

	messages, err := decodeList(list, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errDecode, path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	ts := model.FormatCheckpoint(info.ModTime())

	return &model.Session{
		Kind:           model.SourceGemini,
		ID:             stem(path),
		ProjectToken:   hash,
		Messages:       messages,
		MessageCount:   len(messages),
		FirstTimestamp: ts,
		LastTimestamp:  ts,
		SourcePath:     path,
		HTMLPath:       htmlSibling(path),
		IsCheckpoint:   true,
	}, nil
}

func decodeList(raw []json.RawMessage, checkpoint bool) ([]model.Message, error) {
	messages := make([]model.Message, 0, len(raw))
	for i, r := range raw {
		m, err := model.DecodeGeminiEntry(r, checkpoint)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		messages = append(messages, m)
	}
	return messages, nil
}

func geminiTimestamp(m model.Message) string {
	if gm, ok := m.(model.GeminiMessage); ok {
		return gm.Timestamp
	}
	return ""
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// htmlSibling returns the path of an exported .html transcript next to path, if one exists.
func htmlSibling(path string) string {
	html := strings.TrimSuffix(path, filepath.Ext(path)) + ".html"
	if _, err := os.Stat(html); err != nil {
		return ""
	}
	return html
}
