// Package analysis detects Assembly Mode content and derives per-session summaries and statistics.
package analysis

import (
	"fmt"
	"sort"
	"strings"

	"assemblylook/internal/model"
)

const (
	maxPreviewRunes = 200

	assemblyMarker = "♠️🌿🎸🧵 G.MUSIC ASSEMBLY MODE"
	summarySep     = " | "

	noUserMessage = "No user message found"
	noMessages    = "No messages"
	noContent     = "No content"
)

// Analyzer computes an Analysis for a session. It holds no mutable state and is
// safe for concurrent use.
type Analyzer struct {
	patterns compiled
}

// New compiles the given pattern table.
func New(p Patterns) (*Analyzer, error) {
	c, err := compile(p)
	if err != nil {
		return nil, err
	}
	return &Analyzer{patterns: c}, nil
}

// Default returns an Analyzer over DefaultPatterns.
func Default() *Analyzer {
	a, err := New(DefaultPatterns())
	if err != nil {
		panic(err)
	}
	return a
}

// Enrich returns a copy of s with Analysis set.
func (a *Analyzer) Enrich(s model.Session) model.Session {
	res := a.Analyze(s)
	s.Analysis = &res
	return s
}

// Analyze inspects the messages of s. Project and MessageCount feed only the summary.
func (a *Analyzer) Analyze(s model.Session) model.Analysis {
	full := FullText(s.Messages)

	var res model.Analysis
	if a.patterns.assembly != nil {
		matches := a.patterns.assembly.FindAllStringIndex(full, -1)
		res.IsAssemblyMode = len(matches) > 0
		res.AssemblyMentions = len(matches)
	}
	for _, p := range a.patterns.perspectives {
		if p.re.MatchString(full) {
			res.Perspectives = append(res.Perspectives, p.name)
		}
	}

	res.FirstMessage = firstUserMessage(s.Messages)
	res.LastMessage = lastMessage(s.Messages)
	res.Summary = summarize(s, res.IsAssemblyMode, res.Perspectives)
	res.Stats = stats(s.Messages, full)
	return res
}

// FullText joins every message fragment with single spaces.
func FullText(messages []model.Message) string {
	var parts []string
	for _, m := range messages {
		parts = append(parts, m.Fragments()...)
	}
	return strings.Join(parts, " ")
}

func firstUserMessage(messages []model.Message) string {
	for _, m := range messages {
		if !m.Mapping() || !m.IsUser() {
			continue
		}
		if content, ok := m.Content(); ok {
			return Truncate(content, maxPreviewRunes)
		}
	}
	return noUserMessage
}

func lastMessage(messages []model.Message) string {
	if len(messages) == 0 {
		return noMessages
	}
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if !m.Mapping() {
			continue
		}
		if content, ok := m.Content(); ok && strings.TrimSpace(content) != "" {
			return Truncate(content, maxPreviewRunes)
		}
	}
	return noContent
}

// Truncate cuts s to limit runes and appends "..." when anything was removed.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func summarize(s model.Session, assembly bool, perspectives []string) string {
	parts := []string{fmt.Sprintf("%s session on %s", s.Kind.Title(), s.ProjectName())}
	if assembly {
		parts = append(parts, assemblyMarker)
		if len(perspectives) > 0 {
			names := make([]string, len(perspectives))
			for i, p := range perspectives {
				names[i] = capitalize(p)
			}
			parts = append(parts, "Perspectives: "+strings.Join(names, ", "))
		}
	}
	parts = append(parts, fmt.Sprintf("%d messages", s.MessageCount))
	return strings.Join(parts, summarySep)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}

func stats(messages []model.Message, full string) model.Stats {
	var st model.Stats
	for _, m := range messages {
		if !m.Mapping() {
			continue
		}
		switch {
		case m.IsUser():
			st.UserMessages++
		case m.IsAssistant():
			st.AssistantMessages++
		}
		st.ToolCalls += m.ToolCalls()
	}
	st.WordCount = len(strings.Fields(full))
	st.AvgMessageLength = st.WordCount / max(len(messages), 1)
	return st
}

// Assembly returns every Assembly Mode session of the corpus, most recent first.
func Assembly(c model.Corpus) []model.Session {
	var out []model.Session
	for _, s := range c.All() {
		if s.Analysis != nil && s.Analysis.IsAssemblyMode {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FirstTimestamp > out[j].FirstTimestamp
	})
	return out
}
