// Package pipeline runs the read, resolve, analyze and aggregate stages end to end.
package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"assemblylook/internal/aggregate"
	"assemblylook/internal/analysis"
	"assemblylook/internal/config"
	"assemblylook/internal/logging"
	"assemblylook/internal/model"
	"assemblylook/internal/project"
	"assemblylook/internal/transcript"
)

// Result is everything one run produces.
type Result struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	Corpus      model.Corpus
	ByProject   []aggregate.ProjectGroup
	ByDate      []aggregate.DateBucket
	ByAssistant []aggregate.AssistantGroup
	Assembly    []model.Session
	Faults      []model.Fault
}

// Pipeline wires the stages together.
type Pipeline struct {
	reader   *transcript.Reader
	resolver *project.Resolver
	analyzer *analysis.Analyzer
	workers  int
	logger   *slog.Logger
}

// Option customizes a Pipeline.
type Option func(*options)

type options struct {
	patterns *analysis.Patterns
	hints    []project.PathHint
}

// WithPatterns replaces the Assembly Mode detection table.
func WithPatterns(p analysis.Patterns) Option {
	return func(o *options) { o.patterns = &p }
}

// WithHints replaces the Gemini path hint templates.
func WithHints(h []project.PathHint) Option {
	return func(o *options) { o.hints = h }
}

// New builds a Pipeline from cfg.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	patterns := analysis.DefaultPatterns()
	if o.patterns != nil {
		patterns = *o.patterns
	}
	analyzer, err := analysis.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("build analyzer: %w", err)
	}

	logger = logging.OrDiscard(logger)
	return &Pipeline{
		reader:   transcript.NewReader(cfg.Sources, logger),
		resolver: project.NewResolver(cfg, o.hints),
		analyzer: analyzer,
		workers:  max(cfg.Analysis.Workers, 1),
		logger:   logger,
	}, nil
}

// Run executes every stage once.
func Run(cfg config.Config, logger *slog.Logger) (*Result, error) {
	p, err := New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return p.Run()
}

// Run reads both source trees and returns the analysed corpus with its views.
func (p *Pipeline) Run() (*Result, error) {
	res := &Result{RunID: uuid.NewString(), StartedAt: time.Now()}
	log := p.logger.With("run", res.RunID)

	corpus, faults := p.reader.ReadAll()
	log.Info("read sessions", "claude", len(corpus.Claude), "gemini", len(corpus.Gemini), "faults", len(faults))

	corpus = p.resolver.EnrichAll(corpus)

	claude, err := p.analyze(corpus.Claude)
	if err != nil {
		return nil, fmt.Errorf("analyze claude sessions: %w", err)
	}
	gemini, err := p.analyze(corpus.Gemini)
	if err != nil {
		return nil, fmt.Errorf("analyze gemini sessions: %w", err)
	}
	corpus = model.Corpus{Claude: claude, Gemini: gemini}

	res.Corpus = corpus
	res.Faults = faults
	res.ByProject = aggregate.ByProject(corpus)
	res.ByDate = aggregate.ByDate(corpus)
	res.ByAssistant = aggregate.ByAssistant(corpus)
	res.Assembly = analysis.Assembly(corpus)
	res.Duration = time.Since(res.StartedAt)

	log.Info("run complete",
		"sessions", corpus.Len(),
		"projects", len(res.ByProject),
		"assembly", len(res.Assembly),
		"duration", res.Duration)
	return res, nil
}

// analyze enriches sessions on up to p.workers goroutines, preserving order.
func (p *Pipeline) analyze(in []model.Session) ([]model.Session, error) {
	if in == nil {
		return nil, nil
	}
	out := make([]model.Session, len(in))
	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, s := range in {
		g.Go(func() error {
			out[i] = p.analyzer.Enrich(s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
