// Package model defines the domain types shared across the application.
package model

import (
	"fmt"
	"strings"
	"time"
)

// SourceKind identifies which assistant produced a session log.
type SourceKind string

const (
	SourceClaude SourceKind = "claude"
	SourceGemini SourceKind = "gemini"
)

// Kinds lists every source kind in reporting order.
var Kinds = []SourceKind{SourceClaude, SourceGemini}

// Title returns the capitalized kind name used in summaries.
func (k SourceKind) Title() string {
	switch k {
	case SourceClaude:
		return "Claude"
	case SourceGemini:
		return "Gemini"
	case "":
		return "Unknown"
	}
	s := string(k)
	return strings.ToUpper(s[:1]) + s[1:]
}

// Session is one log file normalized into a canonical record.
// Later stages return enriched copies; a Session value is never mutated in place.
type Session struct {
	Kind         SourceKind
	ID           string
	ProjectToken string
	Messages     []Message

	// MessageCount is len(Messages) at read time and is never recomputed.
	MessageCount int

	// Timestamps are ISO-8601-like strings, empty when the source has none.
	FirstTimestamp string
	LastTimestamp  string

	SourcePath   string
	HTMLPath     string
	IsCheckpoint bool

	Project  *ProjectInfo
	Analysis *Analysis
}

// ProjectName returns the resolved project name, or "unknown" before resolution.
func (s Session) ProjectName() string {
	if s.Project == nil || s.Project.Name == "" {
		return "unknown"
	}
	return s.Project.Name
}

// Category classifies where a project lives on disk.
type Category string

const (
	CategoryWorkspace Category = "workspace"
	CategorySrc       Category = "src"
	CategoryShortcuts Category = "shortcuts"
	CategoryHome      Category = "home"
	CategoryOther     Category = "other"
	CategoryUnknown   Category = "unknown"
)

// ProjectInfo is the resolved identity of the project a session belongs to.
type ProjectInfo struct {
	Path          string
	Name          string
	Category      Category
	Exists        bool
	OriginalToken string
}

// Stats holds per-session message statistics.
type Stats struct {
	UserMessages      int
	AssistantMessages int
	ToolCalls         int
	WordCount         int
	AvgMessageLength  int
}

// Analysis is the content-derived view of a session.
type Analysis struct {
	IsAssemblyMode   bool
	Perspectives     []string
	AssemblyMentions int
	Summary          string
	FirstMessage     string
	LastMessage      string
	Stats            Stats
}

// HasPerspective reports whether the named perspective was detected.
func (a *Analysis) HasPerspective(name string) bool {
	for _, p := range a.Perspectives {
		if p == name {
			return true
		}
	}
	return false
}

// Corpus groups sessions by the source family that produced them.
type Corpus struct {
	Claude []Session
	Gemini []Session
}

// All returns Claude sessions followed by Gemini sessions.
func (c Corpus) All() []Session {
	out := make([]Session, 0, len(c.Claude)+len(c.Gemini))
	out = append(out, c.Claude...)
	return append(out, c.Gemini...)
}

// Of returns the sessions for one source kind.
func (c Corpus) Of(kind SourceKind) []Session {
	switch kind {
	case SourceClaude:
		return c.Claude
	case SourceGemini:
		return c.Gemini
	}
	return nil
}

// Len returns the total number of sessions.
func (c Corpus) Len() int {
	return len(c.Claude) + len(c.Gemini)
}

// FaultKind classifies a skipped input.
type FaultKind string

const (
	FaultRead   FaultKind = "read"
	FaultDecode FaultKind = "decode"
	FaultLine   FaultKind = "line"
)

// Fault records one input that was skipped while reading logs.
// Line is 1-based for line faults and 0 when the whole file was skipped.
type Fault struct {
	Path string
	Line int
	Kind FaultKind
	Err  error
}

func (f Fault) Error() string {
	msg := "skipped"
	if f.Err != nil {
		msg = f.Err.Error()
	}
	if f.Line > 0 {
		return fmt.Sprintf("%s %s:%d: %s", f.Kind, f.Path, f.Line, msg)
	}
	return fmt.Sprintf("%s %s: %s", f.Kind, f.Path, msg)
}

func (f Fault) Unwrap() error { return f.Err }

// CatalogHit is one session row returned by a catalog text search.
type CatalogHit struct {
	RunID          string
	Kind           SourceKind
	SessionID      string
	Project        string
	FirstTimestamp string
	Summary        string
	FirstMessage   string
}

// CatalogRun describes one indexed pipeline run.
type CatalogRun struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Sessions  int
	Faults    int
	Assembly  int
}
