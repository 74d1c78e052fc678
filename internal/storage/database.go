package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/conorfennell/quizdeck/internal/progress"
	"github.com/conorfennell/quizdeck/internal/quiz"
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection is still usable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// LoadProgress returns the progress stored for a session.
// A session with no row yet gets the zero state.
func (db *DB) LoadProgress(ctx context.Context, sessionID string) (progress.State, error) {
	var (
		st       progress.State
		level    int
		l1, l2   bool
		l3       bool
		matching string
	)
	row := db.conn.QueryRowContext(ctx, `
		SELECT current_level, score, questions_answered, total_questions,
		       level1_completed, level2_completed, level3_completed, deck, matching
		FROM sessions WHERE id = ?
	`, sessionID)

	err := row.Scan(
		&level,
		&st.Score,
		&st.QuestionsAnswered,
		&st.TotalQuestions,
		&l1,
		&l2,
		&l3,
		&st.Deck,
		&matching,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return progress.State{}, nil
		}
		return progress.State{}, fmt.Errorf("failed to load progress for session %s: %w", sessionID, err)
	}

	st.CurrentLevel = progress.Level(level)
	st.Level1Completed = l1
	st.Level2Completed = l2
	st.Level3Completed = l3

	var m quiz.Matching
	if err := json.Unmarshal([]byte(matching), &m); err != nil {
		return progress.State{}, fmt.Errorf("failed to decode matching state for session %s: %w", sessionID, err)
	}
	st.Matching = m
	return st, nil
}

// SaveProgress inserts or replaces the progress stored for a session.
func (db *DB) SaveProgress(ctx context.Context, sessionID string, st progress.State) error {
	matching, err := json.Marshal(st.Matching)
	if err != nil {
		return fmt.Errorf("failed to encode matching state for session %s: %w", sessionID, err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO sessions (id, current_level, score, questions_answered, total_questions,
		                      level1_completed, level2_completed, level3_completed, deck, matching, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			current_level = excluded.current_level,
			score = excluded.score,
			questions_answered = excluded.questions_answered,
			total_questions = excluded.total_questions,
			level1_completed = excluded.level1_completed,
			level2_completed = excluded.level2_completed,
			level3_completed = excluded.level3_completed,
			deck = excluded.deck,
			matching = excluded.matching,
			updated_at = excluded.updated_at
	`,
		sessionID,
		int(st.CurrentLevel),
		st.Score,
		st.QuestionsAnswered,
		st.TotalQuestions,
		st.Level1Completed,
		st.Level2Completed,
		st.Level3Completed,
		st.Deck,
		string(matching),
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save progress for session %s: %w", sessionID, err)
	}
	return nil
}

// DeleteSessionsBefore removes sessions that have not been touched since cutoff
// and returns how many were removed.
func (db *DB) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE updated_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions before %s: %w", cutoff, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted sessions: %w", err)
	}
	return n, nil
}
