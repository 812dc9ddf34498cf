package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"assemblylook/internal/aggregate"
	"assemblylook/internal/analysis"
	"assemblylook/internal/config"
	"assemblylook/internal/logging"
	"assemblylook/internal/model"
	"assemblylook/internal/pipeline"
	"assemblylook/internal/store"
)

const banner = "♠️🌿🎸🧵 AssemblyLook - G.Music Session Tracker"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "assemblylook: %v\n", err)
		os.Exit(1)
	}
}

// app carries the configuration and logger resolved before any command runs.
type app struct {
	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "assemblylook",
		Short:         "Index Claude Code and Gemini CLI sessions and detect Assembly Mode",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logging.New(cmd.ErrOrStderr(), cfg.Log.Level)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.scan(cmd.OutOrStdout())
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "scan",
			Short: "Run the pipeline and print per-stage counts",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.scan(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "projects",
			Short: "List sessions grouped by project",
			RunE: func(cmd *cobra.Command, args []string) error {
				res, err := a.run()
				if err != nil {
					return err
				}
				printProjects(cmd.OutOrStdout(), res.ByProject)
				return nil
			},
		},
		&cobra.Command{
			Use:   "dates",
			Short: "List sessions grouped by start date",
			RunE: func(cmd *cobra.Command, args []string) error {
				res, err := a.run()
				if err != nil {
					return err
				}
				printDates(cmd.OutOrStdout(), res.ByDate)
				return nil
			},
		},
		recentCmd(a),
		&cobra.Command{
			Use:   "assembly",
			Short: "List Assembly Mode sessions, most recent first",
			RunE: func(cmd *cobra.Command, args []string) error {
				res, err := a.run()
				if err != nil {
					return err
				}
				if len(res.Assembly) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No Assembly Mode sessions.")
					return nil
				}
				printSessions(cmd.OutOrStdout(), res.Assembly)
				return nil
			},
		},
		&cobra.Command{
			Use:   "faults",
			Short: "List files and lines skipped while reading logs",
			RunE: func(cmd *cobra.Command, args []string) error {
				res, err := a.run()
				if err != nil {
					return err
				}
				printFaults(cmd.OutOrStdout(), res.Faults)
				return nil
			},
		},
		&cobra.Command{
			Use:   "index",
			Short: "Run the pipeline and write the result to the session catalog",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.index(cmd.OutOrStdout())
			},
		},
		searchCmd(a),
		runsCmd(a),
	)
	return root
}

func recentCmd(a *app) *cobra.Command {
	var (
		n            int
		since, until string
	)
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recent sessions across both assistants",
		RunE: func(cmd *cobra.Command, args []string) error {
			tf, err := model.ParseTimeFilter(since, until)
			if err != nil {
				return err
			}
			res, err := a.run()
			if err != nil {
				return err
			}
			sessions := filterSessions(aggregate.Recent(res.Corpus, res.Corpus.Len()), tf)
			if len(sessions) > n {
				sessions = sessions[:max(n, 0)]
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions.")
				return nil
			}
			printSessions(cmd.OutOrStdout(), sessions)
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "limit", "n", 20, "maximum sessions")
	cmd.Flags().StringVar(&since, "since", "", "only sessions started after (30m, 2h, 1d, 1w or a timestamp)")
	cmd.Flags().StringVar(&until, "until", "", "only sessions started before")
	return cmd
}

func searchCmd(a *app) *cobra.Command {
	var (
		pattern      string
		n            int
		since, until string
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Case-insensitive search over the latest indexed run",
		RunE: func(cmd *cobra.Command, args []string) error {
			tf, err := model.ParseTimeFilter(since, until)
			if err != nil {
				return err
			}
			st, err := store.OpenExisting(a.cfg.Catalog.Path)
			if err != nil {
				return catalogHint(err)
			}
			defer st.Close()

			hits, err := st.TextSearch(pattern, n, tf)
			if err != nil {
				return catalogHint(err)
			}
			if len(hits) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No results.")
				return nil
			}
			printHits(cmd.OutOrStdout(), hits)
			return nil
		},
	}
	cmd.Flags().StringVarP(&pattern, "text", "t", "", "substring to search for")
	cmd.Flags().IntVarP(&n, "limit", "n", 20, "maximum results")
	cmd.Flags().StringVar(&since, "since", "", "only sessions started after")
	cmd.Flags().StringVar(&until, "until", "", "only sessions started before")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func runsCmd(a *app) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List indexed runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.OpenExisting(a.cfg.Catalog.Path)
			if err != nil {
				return catalogHint(err)
			}
			defer st.Close()

			runs, err := st.Runs(n)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs.")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  sessions=%d faults=%d assembly=%d  (%s)\n",
					r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Sessions, r.Faults, r.Assembly, r.Duration)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "limit", "n", 10, "maximum runs")
	return cmd
}

// --- Command bodies ---

func (a *app) run() (*pipeline.Result, error) {
	res, err := pipeline.Run(a.cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("run pipeline: %w", err)
	}
	return res, nil
}

func (a *app) scan(w io.Writer) error {
	res, err := a.run()
	if err != nil {
		return err
	}

	fmt.Fprintln(w, banner)
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "\n[1/4] Reading sessions...\n")
	fmt.Fprintf(w, "  ✓ Found %d Claude sessions\n", len(res.Corpus.Claude))
	fmt.Fprintf(w, "  ✓ Found %d Gemini sessions\n", len(res.Corpus.Gemini))
	if len(res.Faults) > 0 {
		fmt.Fprintf(w, "  ! Skipped %d malformed inputs (see 'assemblylook faults')\n", len(res.Faults))
	}
	fmt.Fprintf(w, "\n[2/4] Mapping projects...\n")
	fmt.Fprintf(w, "  ✓ Mapped to %d unique projects\n", len(res.ByProject))
	fmt.Fprintf(w, "\n[3/4] Analyzing sessions...\n")
	fmt.Fprintf(w, "  ✓ Detected %d Assembly Mode sessions\n", len(res.Assembly))
	fmt.Fprintf(w, "\n[4/4] Aggregating data...\n")
	fmt.Fprintf(w, "  ✓ Organized into %d projects across %d dates\n", len(res.ByProject), len(res.ByDate))
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 60))
	return nil
}

func (a *app) index(w io.Writer) error {
	res, err := a.run()
	if err != nil {
		return err
	}

	st, err := store.Open(a.cfg.Catalog.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.InitSchema(); err != nil {
		return err
	}

	run := model.CatalogRun{
		ID:        res.RunID,
		StartedAt: res.StartedAt,
		Duration:  res.Duration,
		Sessions:  res.Corpus.Len(),
		Faults:    len(res.Faults),
		Assembly:  len(res.Assembly),
	}
	if err := st.SaveRun(run, res.Corpus.All(), res.Faults); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	fmt.Fprintf(w, "Indexed run %s: %d sessions, %d faults -> %s\n", run.ID, run.Sessions, run.Faults, a.cfg.Catalog.Path)
	return nil
}

// --- Helpers ---

func catalogHint(err error) error {
	switch {
	case errors.Is(err, store.ErrNoCatalog), errors.Is(err, store.ErrNoRuns):
		return fmt.Errorf("%w (run 'assemblylook index' first)", err)
	}
	return err
}

func filterSessions(sessions []model.Session, tf *model.TimeFilter) []model.Session {
	if tf == nil {
		return sessions
	}
	var out []model.Session
	for _, s := range sessions {
		if tf.Match(s.FirstTimestamp) {
			out = append(out, s)
		}
	}
	return out
}

func printProjects(w io.Writer, groups []aggregate.ProjectGroup) {
	if len(groups) == 0 {
		fmt.Fprintln(w, "No sessions.")
		return
	}
	for _, g := range groups {
		fmt.Fprintf(w, "%-28s claude=%-3d gemini=%-3d messages=%-5d last=%s\n",
			g.Name, g.Counts[model.SourceClaude], g.Counts[model.SourceGemini], g.TotalMessages, orDash(g.LastActivity))
	}
}

func printDates(w io.Writer, buckets []aggregate.DateBucket) {
	if len(buckets) == 0 {
		fmt.Fprintln(w, "No sessions.")
		return
	}
	for _, b := range buckets {
		fmt.Fprintf(w, "%-10s  %d sessions\n", b.Date, len(b.Sessions))
	}
}

func printSessions(w io.Writer, sessions []model.Session) {
	for i, s := range sessions {
		fmt.Fprintf(w, "[%d] %s  [%s]  %s  session=%s\n", i+1, orDash(s.FirstTimestamp), s.Kind, s.ProjectName(), shortID(s.ID))
		if s.Analysis != nil {
			fmt.Fprintf(w, "    %s\n", s.Analysis.Summary)
			fmt.Fprintf(w, "    %s\n", oneLine(s.Analysis.FirstMessage))
		}
		fmt.Fprintln(w)
	}
}

func printHits(w io.Writer, hits []model.CatalogHit) {
	for i, h := range hits {
		fmt.Fprintf(w, "[%d] %s  [%s]  %s  session=%s\n", i+1, orDash(h.FirstTimestamp), h.Kind, h.Project, shortID(h.SessionID))
		fmt.Fprintf(w, "    %s\n\n", h.Summary)
	}
}

func printFaults(w io.Writer, faults []model.Fault) {
	if len(faults) == 0 {
		fmt.Fprintln(w, "No faults.")
		return
	}
	for _, f := range faults {
		fmt.Fprintln(w, f.Error())
	}
}

// shortID trims long session ids for listings.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func oneLine(s string) string {
	return analysis.Truncate(strings.Join(strings.Fields(s), " "), 120)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
