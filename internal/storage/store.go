// Package storage persists practice sessions in a local SQLite database.
// A session row carries the prompt, the response, and the headline band
// scores; each criterion of an assessment is a child row removed with its
// session.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ahrav/go-ielts/internal/domain"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02 15:04:05.000000"

// Store is the SQLite session store. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("storage: create data dir: %w", err)
		}
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}
	// One writer; also keeps per-connection pragmas in force.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("storage: pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: migration: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSession validates and upserts a session, replacing its criterion
// rows.
func (s *Store) SaveSession(ctx context.Context, sess *domain.PracticeSession) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	row, err := toRow(sess)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cols := row.columns()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	updates := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		updates = append(updates, c+" = excluded."+c)
	}
	query := fmt.Sprintf(
		"INSERT INTO sessions (%s) VALUES (%s) ON CONFLICT(session_id) DO UPDATE SET %s",
		strings.Join(cols, ", "), placeholders, strings.Join(updates, ", "))
	if _, err := tx.ExecContext(ctx, query, row.values()...); err != nil {
		return fmt.Errorf("storage: save session %s: %w", sess.SessionID, err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM criteria_assessments WHERE session_id = ?", sess.SessionID); err != nil {
		return fmt.Errorf("storage: clear criteria: %w", err)
	}
	if sess.Assessment != nil {
		for _, c := range sess.Assessment.CriteriaScores {
			strengths, err := encodeJSON(c.Strengths)
			if err != nil {
				return err
			}
			areas, err := encodeJSON(c.AreasForImprovement)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO criteria_assessments
					(session_id, criterion_name, score, feedback, strengths, areas_for_improvement)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				sess.SessionID, c.CriterionName, c.Score, c.Feedback, strengths, areas); err != nil {
				return fmt.Errorf("storage: save criterion %s: %w", c.CriterionName, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

// GetSession loads one session. It returns domain.ErrSessionNotFound when
// no row matches.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.PracticeSession, error) {
	sessions, err := s.querySessions(ctx, "WHERE session_id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return &sessions[0], nil
}

// RecentSessions returns up to limit sessions, newest first, optionally
// restricted to the given statuses.
func (s *Store) RecentSessions(ctx context.Context, limit int, statuses ...domain.SessionStatus) ([]domain.PracticeSession, error) {
	if limit <= 0 {
		return nil, nil
	}
	var (
		where strings.Builder
		args  []any
	)
	if len(statuses) > 0 {
		where.WriteString("WHERE status IN (")
		for i, st := range statuses {
			if i > 0 {
				where.WriteString(", ")
			}
			where.WriteString("?")
			args = append(args, string(st))
		}
		where.WriteString(")")
	}
	where.WriteString(" ORDER BY created_at DESC LIMIT ?")
	args = append(args, limit)
	return s.querySessions(ctx, where.String(), args...)
}

// AllSessions returns every session, oldest first.
func (s *Store) AllSessions(ctx context.Context) ([]domain.PracticeSession, error) {
	return s.querySessions(ctx, "ORDER BY created_at ASC")
}

// SessionsBetween returns sessions created in [start, end], newest first.
func (s *Store) SessionsBetween(ctx context.Context, start, end time.Time) ([]domain.PracticeSession, error) {
	return s.querySessions(ctx, "WHERE created_at >= ? AND created_at <= ? ORDER BY created_at DESC",
		formatTime(start), formatTime(end))
}

// DeleteSession removes a session and its criterion rows. It reports
// whether a session was deleted.
func (s *Store) DeleteSession(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = ?", id)
	if err != nil {
		return false, fmt.Errorf("storage: delete session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage: delete session %s: %w", id, err)
	}
	return n > 0, nil
}

// CleanupOldSessions deletes cancelled and failed sessions created before
// cutoff and returns how many were removed. Completed sessions are kept.
func (s *Store) CleanupOldSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE created_at < ? AND status IN (?, ?)",
		formatTime(cutoff), string(domain.StatusCancelled), string(domain.StatusError))
	if err != nil {
		return 0, fmt.Errorf("storage: cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Info describes the database file and its contents.
type Info struct {
	Path                    string  `json:"database_path"`
	SizeMB                  float64 `json:"database_size_mb"`
	SessionCount            int     `json:"session_count"`
	CriteriaAssessmentCount int     `json:"criteria_assessment_count"`
}

// Info returns row counts and the file size.
func (s *Store) Info(ctx context.Context) (Info, error) {
	info := Info{Path: s.path}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&info.SessionCount); err != nil {
		return info, fmt.Errorf("storage: count sessions: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM criteria_assessments").Scan(&info.CriteriaAssessmentCount); err != nil {
		return info, fmt.Errorf("storage: count criteria: %w", err)
	}
	if st, err := os.Stat(s.path); err == nil {
		info.SizeMB = float64(st.Size()) / (1024 * 1024)
	}
	return info, nil
}

// Vacuum rebuilds the database file to reclaim space.
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("storage: vacuum: %w", err)
	}
	return nil
}

// querySessions selects sessions with the given clause, then attaches
// criterion rows once the session cursor is closed.
func (s *Store) querySessions(ctx context.Context, clause string, args ...any) ([]domain.PracticeSession, error) {
	query := "SELECT " + strings.Join(sessionRow{}.columns(), ", ") + " FROM sessions " + clause
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: query sessions: %w", err)
	}

	var scanned []sessionRow
	for rows.Next() {
		var r sessionRow
		if err := rows.Scan(r.scanTargets()...); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("storage: scan session: %w", err)
		}
		scanned = append(scanned, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("storage: iterate sessions: %w", err)
	}
	_ = rows.Close()

	sessions := make([]domain.PracticeSession, 0, len(scanned))
	for i := range scanned {
		sess, err := scanned[i].toSession()
		if err != nil {
			return nil, err
		}
		if sess.Assessment != nil {
			criteria, err := s.loadCriteria(ctx, sess.SessionID)
			if err != nil {
				return nil, err
			}
			sess.Assessment.CriteriaScores = criteria
		}
		sessions = append(sessions, *sess)
	}
	return sessions, nil
}

func (s *Store) loadCriteria(ctx context.Context, sessionID string) ([]domain.CriterionScore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT criterion_name, score, feedback, strengths, areas_for_improvement
		 FROM criteria_assessments WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("storage: query criteria: %w", err)
	}
	defer func() { _ = rows.Close() }()

	criteria := []domain.CriterionScore{}
	for rows.Next() {
		var (
			c                domain.CriterionScore
			strengths, areas sql.NullString
		)
		if err := rows.Scan(&c.CriterionName, &c.Score, &c.Feedback, &strengths, &areas); err != nil {
			return nil, fmt.Errorf("storage: scan criterion: %w", err)
		}
		if err := decodeJSON(strengths, &c.Strengths); err != nil {
			return nil, err
		}
		if err := decodeJSON(areas, &c.AreasForImprovement); err != nil {
			return nil, err
		}
		criteria = append(criteria, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate criteria: %w", err)
	}
	return criteria, nil
}

var errCorruptRow = errors.New("storage: corrupt session row")
