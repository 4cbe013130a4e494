package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"booksync/internal/config"
)

// ErrNotFound reports a missing run.
var ErrNotFound = errors.New("run not found")

// Store manages run persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the run database configured in cfg.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.StorePath())
}

// OpenPath initializes or connects to the run database at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// CreateRun records a new running run. CreatedAt defaults to now.
func (s *Store) CreateRun(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("run id required")
	}
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	pipelineJSON, err := json.Marshal(run.Pipeline)
	if err != nil {
		return fmt.Errorf("marshal pipeline: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO runs (
            id, title, book_source, subtitle_source, status, pipeline_json,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		nullableString(run.Title),
		nullableString(run.BookSource),
		nullableString(run.SubtitleSource),
		StatusRunning,
		string(pipelineJSON),
		formatTime(run.CreatedAt),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateCounts records the sizes of the parsed inputs.
func (s *Store) UpdateCounts(ctx context.Context, id string, quotes, subtitles int) error {
	return s.exec(ctx, "update counts",
		`UPDATE runs SET quote_count = ?, subtitle_count = ?, updated_at = ? WHERE id = ?`,
		quotes, subtitles, formatTime(time.Now()), id)
}

// FinishRun marks a run finished with its result reference.
func (s *Store) FinishRun(ctx context.Context, id, ref string, matches int) error {
	now := formatTime(time.Now())
	return s.exec(ctx, "finish run",
		`UPDATE runs SET status = ?, result_ref = ?, match_count = ?, error_message = NULL,
             error_kind = NULL, updated_at = ?, finished_at = ?
         WHERE id = ? AND status = ?`,
		StatusFinished, nullableString(ref), matches, now, now, id, StatusRunning)
}

// FailRun marks a run failed.
func (s *Store) FailRun(ctx context.Context, id, message, kind string) error {
	now := formatTime(time.Now())
	return s.exec(ctx, "fail run",
		`UPDATE runs SET status = ?, error_message = ?, error_kind = ?, updated_at = ?, finished_at = ?
         WHERE id = ? AND status = ?`,
		StatusFailed, nullableString(message), nullableString(kind), now, now, id, StatusRunning)
}

func (s *Store) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// SaveMatches replaces the stored match set of a run.
func (s *Store) SaveMatches(ctx context.Context, id string, matches []MatchRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin matches tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM runs WHERE id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check run: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("save matches: %w", ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM matches WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("clear matches: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO matches (
            run_id, position, quote_index, subtitle_index, from_ms, score, scene, merged,
            quote_text, subtitle_text
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare match insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range matches {
		if _, err := stmt.ExecContext(ctx,
			id, i, m.QuoteIndex, m.SubtitleIndex, m.From.Milliseconds(), m.Score, m.Scene, m.Merged,
			nullableString(m.QuoteText), nullableString(m.SubtitleText),
		); err != nil {
			return fmt.Errorf("insert match %d: %w", i, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE runs SET match_count = ?, updated_at = ? WHERE id = ?`,
		len(matches), formatTime(time.Now()), id); err != nil {
		return fmt.Errorf("update match count: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit matches: %w", err)
	}
	return nil
}

// GetRun fetches a run by id, accepting a unique id prefix.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ORDER BY id = ? DESC LIMIT 2`,
		id, escapeLike(id)+"%", id)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	var found []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	switch {
	case len(found) == 0:
		return nil, ErrNotFound
	case found[0].ID == id || len(found) == 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
}

func escapeLike(value string) string {
	return strings.NewReplacer("%", "", "_", "").Replace(value)
}

// ListRuns returns runs newest first, optionally filtered by status. A
// non-positive limit returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int, statuses ...Status) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Matches returns the stored match set of a run in its original order.
func (s *Store) Matches(ctx context.Context, id string) ([]MatchRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT quote_index, subtitle_index, from_ms, score, scene, merged, quote_text, subtitle_text
         FROM matches WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var out []MatchRecord
	for rows.Next() {
		var (
			m        MatchRecord
			fromMS   int64
			quote    sql.NullString
			subtitle sql.NullString
		)
		if err := rows.Scan(&m.QuoteIndex, &m.SubtitleIndex, &fromMS, &m.Score, &m.Scene, &m.Merged, &quote, &subtitle); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.From = time.Duration(fromMS) * time.Millisecond
		m.QuoteText = quote.String
		m.SubtitleText = subtitle.String
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return out, nil
}

// DeleteRun removes a run and its matches.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	return s.exec(ctx, "delete run", `DELETE FROM runs WHERE id = ?`, id)
}

// MarkInterrupted fails every run still marked running. It is called at
// startup, when no run of a previous process can still be alive.
func (s *Store) MarkInterrupted(ctx context.Context) (int64, error) {
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error_message = ?, error_kind = ?, updated_at = ?, finished_at = ?
         WHERE status = ?`,
		StatusFailed, "interrupted", "transient", now, now, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted runs: %w", err)
	}
	return res.RowsAffected()
}

// PruneFinished removes finished and failed runs created before cutoff.
func (s *Store) PruneFinished(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE status != ? AND created_at < ?`,
		StatusRunning, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}
