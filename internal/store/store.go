// Package store persists pipeline runs to a DuckDB session catalog.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"assemblylook/internal/model"

	_ "github.com/duckdb/duckdb-go/v2"
)

var (
	// ErrNoCatalog is returned when the catalog file has not been created yet.
	ErrNoCatalog = errors.New("catalog not found")
	// ErrNoRuns is returned when the catalog holds no indexed run.
	ErrNoRuns = errors.New("no indexed runs")
)

// Store wraps a DuckDB connection holding the session catalog.
type Store struct {
	db *sql.DB
}

// Open creates a Store connected to the DuckDB file at dbPath, creating the parent
// directory if needed.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create catalog dir: %w", err)
		}
	}
	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

// OpenExisting is Open for readers: it fails with ErrNoCatalog instead of creating a file.
func OpenExisting(dbPath string) (*Store, error) {
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoCatalog, dbPath)
	}
	return Open(dbPath)
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InitSchema creates the catalog tables and indexes if they don't exist.
func (s *Store) InitSchema() error {
	if _, err := s.db.Exec(catalogSchema); err != nil {
		return fmt.Errorf("init catalog schema: %w", err)
	}
	return nil
}

// --- Run operations ---

// SaveRun writes one run with its sessions and faults atomically.
func (s *Store) SaveRun(run model.CatalogRun, sessions []model.Session, faults []model.Fault) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO runs (run_id, started_at, duration_ms, sessions, faults, assembly)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt, run.Duration.Milliseconds(), run.Sessions, run.Faults, run.Assembly); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO sessions (
			run_id, kind, session_id, project, project_path, category,
			first_ts, last_ts, first_at, message_count, is_checkpoint,
			is_assembly, assembly_mentions, perspectives,
			summary, first_message, last_message,
			user_messages, assistant_messages, tool_calls, word_count,
			source_path
		) VALUES (
			?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?,
			?, ?, ?,
			?, ?, ?, ?,
			?
		)`)
	if err != nil {
		return fmt.Errorf("prepare session insert: %w", err)
	}
	defer stmt.Close()

	for _, sess := range sessions {
		var (
			path, category string
			analysis       model.Analysis
		)
		if sess.Project != nil {
			path, category = sess.Project.Path, string(sess.Project.Category)
		}
		if sess.Analysis != nil {
			analysis = *sess.Analysis
		}
		if _, err := stmt.Exec(
			run.ID, string(sess.Kind), sess.ID, sess.ProjectName(), nullStr(path), nullStr(category),
			nullStr(sess.FirstTimestamp), nullStr(sess.LastTimestamp), nullTime(sess.FirstTimestamp),
			sess.MessageCount, sess.IsCheckpoint,
			analysis.IsAssemblyMode, analysis.AssemblyMentions, nullStr(strings.Join(analysis.Perspectives, ",")),
			nullStr(analysis.Summary), nullStr(analysis.FirstMessage), nullStr(analysis.LastMessage),
			analysis.Stats.UserMessages, analysis.Stats.AssistantMessages, analysis.Stats.ToolCalls, analysis.Stats.WordCount,
			sess.SourcePath,
		); err != nil {
			return fmt.Errorf("insert session %s: %w", sess.ID, err)
		}
	}

	for _, f := range faults {
		var msg string
		if f.Err != nil {
			msg = f.Err.Error()
		}
		if _, err := tx.Exec(`
			INSERT INTO faults (run_id, kind, path, line, error) VALUES (?, ?, ?, ?, ?)
		`, run.ID, string(f.Kind), f.Path, f.Line, nullStr(msg)); err != nil {
			return fmt.Errorf("insert fault %s: %w", f.Path, err)
		}
	}

	return tx.Commit()
}

// LatestRunID returns the most recently started run.
func (s *Store) LatestRunID() (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT run_id FROM runs ORDER BY started_at DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoRuns
	}
	if err != nil {
		return "", fmt.Errorf("latest run: %w", err)
	}
	return id, nil
}

// Runs lists indexed runs, newest first.
func (s *Store) Runs(limit int) ([]model.CatalogRun, error) {
	rows, err := s.db.Query(`
		SELECT run_id, started_at, duration_ms, sessions, faults, assembly
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CatalogRun
	for rows.Next() {
		var (
			r  model.CatalogRun
			ms int64
		)
		if err := rows.Scan(&r.ID, &r.StartedAt, &ms, &r.Sessions, &r.Faults, &r.Assembly); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- Search ---

// TextSearch performs a case-insensitive search over the summaries, previews and
// project names of the latest run's sessions.
func (s *Store) TextSearch(pattern string, limit int, tf *model.TimeFilter) ([]model.CatalogHit, error) {
	runID, err := s.LatestRunID()
	if err != nil {
		return nil, err
	}

	like := "%" + pattern + "%"
	params := []interface{}{runID, like, like, like, like}
	timeClause, params := appendTimeClauses(tf, "first_at", true, params)

	query := fmt.Sprintf(`
		SELECT run_id, kind, session_id, project, first_ts, summary, first_message
		FROM sessions
		WHERE run_id = ?
		  AND (summary ILIKE ? OR first_message ILIKE ? OR last_message ILIKE ? OR project ILIKE ?)
		%s
		ORDER BY first_ts DESC NULLS LAST, id
		LIMIT ?
	`, timeClause)

	params = append(params, limit)
	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CatalogHit
	for rows.Next() {
		var (
			h                         model.CatalogHit
			kind                      string
			firstTS, summary, preview sql.NullString
		)
		if err := rows.Scan(&h.RunID, &kind, &h.SessionID, &h.Project, &firstTS, &summary, &preview); err != nil {
			return nil, err
		}
		h.Kind = model.SourceKind(kind)
		h.FirstTimestamp = firstTS.String
		h.Summary = summary.String
		h.FirstMessage = preview.String
		out = append(out, h)
	}
	return out, rows.Err()
}

// --- helpers ---

// appendTimeClauses builds SQL fragments for time filtering.
// If hasWhere is true, clauses use "AND"; otherwise the first clause uses "WHERE".
func appendTimeClauses(tf *model.TimeFilter, tsCol string, hasWhere bool, params []interface{}) (string, []interface{}) {
	if tf == nil {
		return "", params
	}

	var clauses []string
	if tf.Since != nil {
		clauses = append(clauses, fmt.Sprintf("%s >= ?", tsCol))
		params = append(params, *tf.Since)
	}
	if tf.Until != nil {
		clauses = append(clauses, fmt.Sprintf("%s <= ?", tsCol))
		params = append(params, *tf.Until)
	}

	if len(clauses) == 0 {
		return "", params
	}

	var sb strings.Builder
	for i, c := range clauses {
		if i == 0 && !hasWhere {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		sb.WriteString(c)
	}
	return sb.String(), params
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nullTime parses a session timestamp for the first_at column; unparseable values are stored as NULL.
func nullTime(ts string) interface{} {
	t, ok := model.ParseTimestamp(ts)
	if !ok {
		return nil
	}
	return t
}
