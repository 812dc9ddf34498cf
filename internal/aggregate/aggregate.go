// Package aggregate builds grouped views over an analysed corpus.
package aggregate

import (
	"sort"
	"strings"
	"time"

	"assemblylook/internal/model"
)

// UnknownDate is the bucket key for sessions without a usable first timestamp.
const UnknownDate = "unknown"

const dateLayout = "2006-01-02"

// ProjectGroup collects every session attributed to one project name.
type ProjectGroup struct {
	Name          string
	Project       *model.ProjectInfo
	Sessions      []model.Session
	Counts        map[model.SourceKind]int
	TotalMessages int
	FirstActivity string
	LastActivity  string
}

// DateBucket collects the sessions that started on one calendar day.
type DateBucket struct {
	Date     string
	Sessions []model.Session
}

// AssistantGroup collects the sessions of one source family.
type AssistantGroup struct {
	Kind          model.SourceKind
	Sessions      []model.Session
	Total         int
	TotalMessages int
}

// SortRecent orders sessions by first timestamp, newest first. Sessions without a
// timestamp sort last; ties keep their input order.
func SortRecent(sessions []model.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].FirstTimestamp > sessions[j].FirstTimestamp
	})
}

// ByProject groups the corpus by project name. Groups are ordered by their most recent
// activity; groups with no timestamps come last in first-seen order.
func ByProject(c model.Corpus) []ProjectGroup {
	index := make(map[string]int)
	var groups []ProjectGroup
	for _, s := range c.All() {
		name := s.ProjectName()
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, ProjectGroup{Name: name, Counts: make(map[model.SourceKind]int)})
		}
		g := &groups[i]
		g.Sessions = append(g.Sessions, s)
		g.Counts[s.Kind]++
		g.TotalMessages += s.MessageCount
		if ts := s.FirstTimestamp; ts != "" {
			if g.FirstActivity == "" || ts < g.FirstActivity {
				g.FirstActivity = ts
			}
			if ts > g.LastActivity {
				g.LastActivity = ts
			}
		}
	}

	for i := range groups {
		g := &groups[i]
		SortRecent(g.Sessions)
		g.Project = g.Sessions[0].Project
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].LastActivity > groups[j].LastActivity
	})
	return groups
}

// DateKey returns the calendar-day key of a timestamp: the text before the first
// "T", or the first ten characters when there is none.
func DateKey(ts string) string {
	if ts == "" {
		return UnknownDate
	}
	key := ts
	if i := strings.IndexByte(ts, 'T'); i >= 0 {
		key = ts[:i]
	} else if len(ts) > len(dateLayout) {
		key = ts[:len(dateLayout)]
	}
	if _, err := time.Parse(dateLayout, key); err != nil {
		return UnknownDate
	}
	return key
}

// ByDate buckets the corpus by the day of each session's first timestamp. Buckets are
// ordered by key in descending string order, which places UnknownDate first.
func ByDate(c model.Corpus) []DateBucket {
	index := make(map[string]int)
	var buckets []DateBucket
	for _, s := range c.All() {
		key := DateKey(s.FirstTimestamp)
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, DateBucket{Date: key})
		}
		buckets[i].Sessions = append(buckets[i].Sessions, s)
	}
	for i := range buckets {
		SortRecent(buckets[i].Sessions)
	}
	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Date > buckets[j].Date
	})
	return buckets
}

// ByAssistant splits the corpus into one group per source family, Claude first.
func ByAssistant(c model.Corpus) []AssistantGroup {
	out := make([]AssistantGroup, 0, len(model.Kinds))
	for _, kind := range model.Kinds {
		sessions := append([]model.Session(nil), c.Of(kind)...)
		SortRecent(sessions)
		g := AssistantGroup{Kind: kind, Sessions: sessions, Total: len(sessions)}
		for _, s := range sessions {
			g.TotalMessages += s.MessageCount
		}
		out = append(out, g)
	}
	return out
}

// Recent returns the n most recent sessions across both families.
func Recent(c model.Corpus, n int) []model.Session {
	if n <= 0 {
		return nil
	}
	all := c.All()
	SortRecent(all)
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// FindProject returns the group named name.
func FindProject(groups []ProjectGroup, name string) (ProjectGroup, bool) {
	for _, g := range groups {
		if g.Name == name {
			return g, true
		}
	}
	return ProjectGroup{}, false
}

// FindDate returns the bucket for key.
func FindDate(buckets []DateBucket, key string) (DateBucket, bool) {
	for _, b := range buckets {
		if b.Date == key {
			return b, true
		}
	}
	return DateBucket{}, false
}
