package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const migrationsSQL = `
CREATE TABLE IF NOT EXISTS sentences (
	id TEXT PRIMARY KEY,
	topic TEXT NOT NULL,
	script TEXT NOT NULL,
	phonetic TEXT NOT NULL DEFAULT '',
	translation TEXT NOT NULL DEFAULT '',
	audio_ref TEXT NOT NULL DEFAULT '',
	level INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_sentences_topic ON sentences(topic);

CREATE TABLE IF NOT EXISTS progress (
	user_id TEXT NOT NULL,
	sentence_id TEXT NOT NULL,
	date TEXT NOT NULL,
	score REAL NOT NULL,
	accuracy REAL,
	fluency REAL,
	completeness REAL,
	prosody REAL,
	times_practiced INTEGER NOT NULL DEFAULT 0,
	last_practiced_at TIMESTAMP,
	PRIMARY KEY (user_id, sentence_id)
);

CREATE TABLE IF NOT EXISTS daily_attempts (
	user_id TEXT NOT NULL,
	date TEXT NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (user_id, date)
);

CREATE TABLE IF NOT EXISTS applied_attempts (
	id TEXT NOT NULL,
	kind TEXT NOT NULL,
	user_id TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL,
	PRIMARY KEY (id, kind)
)`

// SQLite is the durable Repository implementation.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path and runs
// migrations.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &SQLite{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	for _, stmt := range strings.Split(migrationsSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error { return s.db.Close() }

// SetClock overrides the time source. Tests only.
func (s *SQLite) SetClock(now func() time.Time) { s.now = now }

func (s *SQLite) SentencesByTopic(ctx context.Context, topic string, max int) ([]Sentence, error) {
	q := `SELECT id, topic, script, phonetic, translation, audio_ref, level
	      FROM sentences WHERE topic = ? ORDER BY id`
	args := []any{topic}
	if max > 0 {
		q += ` LIMIT ?`
		args = append(args, max)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("reading sentences for %q: %w", topic, err)
	}
	defer rows.Close()

	var out []Sentence
	for rows.Next() {
		var sen Sentence
		if err := rows.Scan(&sen.ID, &sen.Topic, &sen.Script, &sen.Phonetic,
			&sen.Translation, &sen.AudioRef, &sen.Level); err != nil {
			return nil, err
		}
		out = append(out, sen)
	}
	return out, rows.Err()
}

func (s *SQLite) Progress(ctx context.Context, userID, sentenceID string) (*ProgressRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT sentence_id, date, score, accuracy, fluency, completeness, prosody,
		       times_practiced, last_practiced_at
		FROM progress WHERE user_id = ? AND sentence_id = ?`, userID, sentenceID)
	rec, err := scanProgress(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading progress: %w", err)
	}
	return rec, nil
}

func (s *SQLite) AllProgress(ctx context.Context, userID string) ([]ProgressRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sentence_id, date, score, accuracy, fluency, completeness, prosody,
		       times_practiced, last_practiced_at
		FROM progress WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("reading progress history: %w", err)
	}
	defer rows.Close()

	var out []ProgressRecord
	for rows.Next() {
		rec, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgress(r rowScanner) (*ProgressRecord, error) {
	var rec ProgressRecord
	var last sql.NullTime
	err := r.Scan(&rec.SentenceID, &rec.Date, &rec.Scores.Overall,
		&rec.Scores.Accuracy, &rec.Scores.Fluency, &rec.Scores.Completeness,
		&rec.Scores.Prosody, &rec.TimesPracticed, &last)
	if err != nil {
		return nil, err
	}
	if last.Valid {
		rec.LastPracticedAt = last.Time
	}
	return &rec, nil
}

// markApplied records an attempt ID for one write kind. Returns false
// when the ID was already applied (a replayed delivery).
func markApplied(tx *sql.Tx, id, kind, userID string, at time.Time) (bool, error) {
	res, err := tx.Exec(`INSERT OR IGNORE INTO applied_attempts (id, kind, user_id, applied_at)
	                     VALUES (?, ?, ?, ?)`, id, kind, userID, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLite) SaveProgress(ctx context.Context, userID string, a Attempt) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("saving progress: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	fresh, err := markApplied(tx, a.ID, "progress", userID, now)
	if err != nil {
		return fmt.Errorf("saving progress: %w", err)
	}
	if !fresh {
		return tx.Commit()
	}

	// Merge: counters accumulate, score fields are overwritten, missing
	// sub-metrics fall back to the stored ones.
	_, err = tx.Exec(`
		INSERT INTO progress (user_id, sentence_id, date, score, accuracy, fluency,
		                      completeness, prosody, times_practiced, last_practiced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(user_id, sentence_id) DO UPDATE SET
			date = excluded.date,
			score = excluded.score,
			accuracy = COALESCE(excluded.accuracy, progress.accuracy),
			fluency = COALESCE(excluded.fluency, progress.fluency),
			completeness = COALESCE(excluded.completeness, progress.completeness),
			prosody = COALESCE(excluded.prosody, progress.prosody),
			times_practiced = progress.times_practiced + 1,
			last_practiced_at = excluded.last_practiced_at`,
		userID, a.SentenceID, YMD(now), a.Scores.Overall, a.Scores.Accuracy,
		a.Scores.Fluency, a.Scores.Completeness, a.Scores.Prosody, now)
	if err != nil {
		return fmt.Errorf("saving progress: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) IncrementDailyAttempts(ctx context.Context, userID, date, attemptID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("incrementing attempts: %w", err)
	}
	defer tx.Rollback()

	fresh, err := markApplied(tx, attemptID, "attempts", userID, s.now())
	if err != nil {
		return fmt.Errorf("incrementing attempts: %w", err)
	}
	if !fresh {
		return tx.Commit()
	}

	_, err = tx.Exec(`
		INSERT INTO daily_attempts (user_id, date, attempts) VALUES (?, ?, 1)
		ON CONFLICT(user_id, date) DO UPDATE SET attempts = daily_attempts.attempts + 1`,
		userID, date)
	if err != nil {
		return fmt.Errorf("incrementing attempts: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) AttemptsOn(ctx context.Context, userID, date string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT attempts FROM daily_attempts WHERE user_id = ? AND date = ?`,
		userID, date).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading attempts: %w", err)
	}
	return n, nil
}

// ImportSentences bulk-inserts authored sentences, replacing records
// with matching IDs. Used by seeding, not by the practice session.
func (s *SQLite) ImportSentences(ctx context.Context, sentences []Sentence) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, sen := range sentences {
		_, err := tx.Exec(`
			INSERT OR REPLACE INTO sentences (id, topic, script, phonetic, translation, audio_ref, level)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sen.ID, sen.Topic, sen.Script, sen.Phonetic, sen.Translation, sen.AudioRef, sen.Level)
		if err != nil {
			return fmt.Errorf("importing sentence %s: %w", sen.ID, err)
		}
	}
	return tx.Commit()
}
