// Package project maps session project tokens back to workspace directories.
package project

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"assemblylook/internal/config"
	"assemblylook/internal/model"
)

// PathHint is one recognizable path template in message text. The first capture
// group is the project directory name, which is joined onto Root.
type PathHint struct {
	Pattern *regexp.Regexp
	Root    string
}

// DefaultHints returns the production templates in priority order: absolute
// workspace and src paths under the home root, then their ~-relative forms.
func DefaultHints(cfg config.Config) []PathHint {
	home := strings.TrimSuffix(cfg.Roots.Home, "/")
	if home == "" {
		home = strings.TrimSuffix(cfg.Token.DecodedRoot, "/")
	}
	q := regexp.QuoteMeta(home)
	return []PathHint{
		{Pattern: regexp.MustCompile(q + `/workspace/([^/\s]+)`), Root: cfg.Roots.Workspace},
		{Pattern: regexp.MustCompile(q + `/src/([^/\s]+)`), Root: cfg.Roots.Src},
		{Pattern: regexp.MustCompile(`~/workspace/([^/\s]+)`), Root: cfg.Roots.Workspace},
		{Pattern: regexp.MustCompile(`~/src/([^/\s]+)`), Root: cfg.Roots.Src},
	}
}

// Resolver assigns a ProjectInfo to each session.
type Resolver struct {
	roots     config.RootsConfig
	token     config.TokenConfig
	geminiDir string
	hints     []PathHint
}

// NewResolver creates a Resolver. A nil hints slice selects DefaultHints.
func NewResolver(cfg config.Config, hints []PathHint) *Resolver {
	if hints == nil {
		hints = DefaultHints(cfg)
	}
	return &Resolver{
		roots:     cfg.Roots,
		token:     cfg.Token,
		geminiDir: cfg.Sources.Gemini,
		hints:     hints,
	}
}

// Enrich returns a copy of s with Project set.
func (r *Resolver) Enrich(s model.Session) model.Session {
	info := r.Resolve(s.ProjectToken, s.Kind, s.Messages)
	s.Project = &info
	return s
}

// EnrichAll resolves every session of the corpus.
func (r *Resolver) EnrichAll(c model.Corpus) model.Corpus {
	return model.Corpus{
		Claude: r.enrichList(c.Claude),
		Gemini: r.enrichList(c.Gemini),
	}
}

func (r *Resolver) enrichList(in []model.Session) []model.Session {
	if in == nil {
		return nil
	}
	out := make([]model.Session, len(in))
	for i, s := range in {
		out[i] = r.Enrich(s)
	}
	return out
}

// Resolve maps a token to a project. Claude tokens are decoded; Gemini tokens are
// hashes, so the project is inferred from path-shaped text in messages.
func (r *Resolver) Resolve(token string, kind model.SourceKind, messages []model.Message) model.ProjectInfo {
	if kind == model.SourceGemini {
		return r.resolveGemini(token, messages)
	}
	return r.fromPath(r.Decode(token), token)
}

// Decode turns a Claude project folder name back into a path. Tokens without the
// encoded prefix are taken as literal paths.
func (r *Resolver) Decode(token string) string {
	if r.token.EncodedPrefix == "" || !strings.HasPrefix(token, r.token.EncodedPrefix) {
		return token
	}
	rest := strings.TrimPrefix(token, r.token.EncodedPrefix)
	return r.token.DecodedRoot + strings.ReplaceAll(rest, "-", "/")
}

func (r *Resolver) resolveGemini(hash string, messages []model.Message) model.ProjectInfo {
	if path, ok := r.Infer(messages); ok {
		return r.fromPath(path, hash)
	}

	short := hash
	if len(short) > 8 {
		short = short[:8]
	}
	return model.ProjectInfo{
		Path:          "unknown-" + short,
		Name:          "gemini-" + short,
		Category:      model.CategoryUnknown,
		Exists:        exists(filepath.Join(r.geminiDir, hash)),
		OriginalToken: hash,
	}
}

// Infer returns the first hinted project path found, scanning messages in order
// and trying hints in priority order within each message.
func (r *Resolver) Infer(messages []model.Message) (string, bool) {
	for _, m := range messages {
		text := hintText(m)
		if text == "" {
			continue
		}
		for _, h := range r.hints {
			if match := h.Pattern.FindStringSubmatch(text); len(match) > 1 {
				return filepath.Join(h.Root, match[1]), true
			}
		}
	}
	return "", false
}

func hintText(m model.Message) string {
	if s, ok := m.Content(); ok {
		return s
	}
	return strings.Join(m.Fragments(), " ")
}

func (r *Resolver) fromPath(raw, token string) model.ProjectInfo {
	path := raw
	if path != "" {
		path = filepath.Clean(path)
	}
	category, name := r.Categorize(path)
	return model.ProjectInfo{
		Path:          path,
		Name:          name,
		Category:      category,
		Exists:        path != "" && exists(path),
		OriginalToken: token,
	}
}

// Categorize classifies path against the configured roots. Roots are tried as
// string prefixes in order workspace, src, shortcuts; then home by equality.
func (r *Resolver) Categorize(path string) (model.Category, string) {
	switch {
	case r.roots.Workspace != "" && strings.HasPrefix(path, r.roots.Workspace):
		return model.CategoryWorkspace, firstSegment(path, r.roots.Workspace)
	case r.roots.Src != "" && strings.HasPrefix(path, r.roots.Src):
		return model.CategorySrc, firstSegment(path, r.roots.Src)
	case r.roots.Shortcuts != "" && strings.HasPrefix(path, r.roots.Shortcuts):
		return model.CategoryShortcuts, ".shortcuts"
	case r.roots.Home != "" && path == filepath.Clean(r.roots.Home):
		return model.CategoryHome, "home"
	}
	name := filepath.Base(path)
	if name == "." || name == "/" || name == "" {
		name = path
	}
	return model.CategoryOther, name
}

// firstSegment returns the first path element of path below root, or root's own
// name when path is root. A path that only shares root as a string prefix, such
// as root+"2/foo", is named by its base name.
func firstSegment(path, root string) string {
	rest := strings.TrimPrefix(path, root)
	if rest == "" {
		return filepath.Base(root)
	}
	if !strings.HasPrefix(rest, "/") && !strings.HasSuffix(root, "/") {
		return filepath.Base(path)
	}
	rel := strings.TrimPrefix(rest, "/")
	if rel == "" {
		return filepath.Base(root)
	}
	if i := strings.Index(rel, "/"); i >= 0 {
		return rel[:i]
	}
	return rel
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
