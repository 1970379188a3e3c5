package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/namikmesic/coach-stream/internal/history"
)

// SessionStore reads training sessions from the workout service's tables.
// It never writes to them.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

var _ history.Store = (*SessionStore)(nil)

// Session loads one session with its exercises and sets in insertion order.
// Exercises whose catalogue row is gone are named "Unknown".
func (s *SessionStore) Session(ctx context.Context, userID, sessionID int64) (history.Session, error) {
	var sess history.Session
	err := s.pool.QueryRow(ctx, `
		SELECT id, date, duration_seconds
		FROM trainingsession
		WHERE id = $1 AND user_id = $2`,
		sessionID, userID,
	).Scan(&sess.ID, &sess.Date, &sess.DurationSeconds)
	if errors.Is(err, pgx.ErrNoRows) {
		return history.Session{}, fmt.Errorf("session %d: %w", sessionID, history.ErrNotFound)
	}
	if err != nil {
		return history.Session{}, fmt.Errorf("query session %d: %w", sessionID, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT se.id,
		       COALESCE(e.name, 'Unknown'),
		       COALESCE(e.category, 'Unknown'),
		       ts.id,
		       COALESCE(ts.weight, 0),
		       COALESCE(ts.reps, 0),
		       COALESCE(ts.rest_seconds, 0),
		       COALESCE(ts.completed, FALSE)
		FROM sessionexercise se
		LEFT JOIN exercise e ON e.id = se.exercise_id
		LEFT JOIN trainingset ts ON ts.session_exercise_id = se.id
		WHERE se.session_id = $1
		ORDER BY se.id, ts.id`,
		sessionID,
	)
	if err != nil {
		return history.Session{}, fmt.Errorf("query exercises of session %d: %w", sessionID, err)
	}
	defer rows.Close()

	lastExercise := int64(-1)
	for rows.Next() {
		var (
			exerciseID int64
			name       string
			category   string
			setID      *int64
			set        history.Set
		)
		if err := rows.Scan(&exerciseID, &name, &category, &setID, &set.Weight, &set.Reps, &set.RestSeconds, &set.Completed); err != nil {
			return history.Session{}, fmt.Errorf("scan exercise row: %w", err)
		}
		if exerciseID != lastExercise {
			sess.Exercises = append(sess.Exercises, history.Exercise{Name: name, Category: category})
			lastExercise = exerciseID
		}
		if setID != nil {
			ex := &sess.Exercises[len(sess.Exercises)-1]
			ex.Sets = append(ex.Sets, set)
		}
	}
	if err := rows.Err(); err != nil {
		return history.Session{}, fmt.Errorf("read exercises of session %d: %w", sessionID, err)
	}

	return sess, nil
}

// Sessions lists the user's sessions newest first with the names of their
// exercises.
func (s *SessionStore) Sessions(ctx context.Context, userID int64) ([]history.Summary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ts.id, ts.date, ts.duration_seconds,
		       COALESCE(array_agg(e.name ORDER BY se.id) FILTER (WHERE e.name IS NOT NULL), '{}')
		FROM trainingsession ts
		LEFT JOIN sessionexercise se ON se.session_id = ts.id
		LEFT JOIN exercise e ON e.id = se.exercise_id
		WHERE ts.user_id = $1
		GROUP BY ts.id, ts.date, ts.duration_seconds
		ORDER BY ts.date DESC, ts.id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}

	summaries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (history.Summary, error) {
		var (
			sum  history.Summary
			date time.Time
		)
		if err := row.Scan(&sum.ID, &date, &sum.DurationSeconds, &sum.Exercises); err != nil {
			return history.Summary{}, err
		}
		sum.Date = date.Format(history.DateLayout)
		return sum, nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect sessions: %w", err)
	}
	return summaries, nil
}
