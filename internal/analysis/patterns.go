package analysis

import (
	"fmt"
	"regexp"
	"strings"
)

// Perspective is one named persona and the marker that signals it.
type Perspective struct {
	Name    string
	Pattern string
}

// Patterns is the detection table. Assembly alternatives are combined into one
// case-insensitive disjunction; each perspective is matched on its own.
type Patterns struct {
	Assembly     []string
	Perspectives []Perspective
}

// DefaultPatterns returns the production Assembly Mode table.
func DefaultPatterns() Patterns {
	return Patterns{
		Assembly: []string{
			`♠️.*🌿.*🎸.*🧵`,
			`G\.?MUSIC ASSEMBLY`,
			`ASSEMBLY MODE ACTIVE`,
			`Spiral Ensemble`,
			`♠️.*Nyro`,
			`🌿.*Aureon`,
			`🎸.*JamAI`,
			`🧵.*Synth`,
		},
		Perspectives: []Perspective{
			{Name: "nyro", Pattern: `♠️.*Nyro`},
			{Name: "aureon", Pattern: `🌿.*Aureon`},
			{Name: "jamai", Pattern: `🎸.*JamAI`},
			{Name: "synth", Pattern: `🧵.*Synth`},
		},
	}
}

type compiledPerspective struct {
	name string
	re   *regexp.Regexp
}

type compiled struct {
	assembly     *regexp.Regexp
	perspectives []compiledPerspective
}

func compile(p Patterns) (compiled, error) {
	var c compiled
	if len(p.Assembly) > 0 {
		re, err := regexp.Compile(`(?i)` + strings.Join(p.Assembly, "|"))
		if err != nil {
			return compiled{}, fmt.Errorf("compile assembly patterns: %w", err)
		}
		c.assembly = re
	}
	for _, ps := range p.Perspectives {
		re, err := regexp.Compile(`(?i)` + ps.Pattern)
		if err != nil {
			return compiled{}, fmt.Errorf("compile perspective %q: %w", ps.Name, err)
		}
		c.perspectives = append(c.perspectives, compiledPerspective{name: ps.Name, re: re})
	}
	return c, nil
}
