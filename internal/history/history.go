// Package history renders a user's past training sessions as a markdown
// block for the coach prompt. Sessions are owned by the workout service;
// this package only reads them through Store.
package history

import (
	"context"
	"errors"
	"time"
)

// DateLayout is how session dates appear in listings and rendered context.
const DateLayout = "2006-01-02 15:04"

var ErrNotFound = errors.New("history: session not found")

type Set struct {
	Weight      float64
	Reps        int
	RestSeconds int
	Completed   bool
}

type Exercise struct {
	Name     string
	Category string
	Sets     []Set
}

type Session struct {
	ID              int64
	Date            time.Time
	DurationSeconds int
	Exercises       []Exercise
}

// Summary is one row of the session picker.
type Summary struct {
	ID              int64    `json:"id"`
	Date            string   `json:"date"`
	DurationSeconds int      `json:"duration_seconds"`
	Exercises       []string `json:"exercises"`
}

// Store reads sessions belonging to a user. Session returns ErrNotFound for
// ids that do not exist or belong to someone else.
type Store interface {
	Session(ctx context.Context, userID, sessionID int64) (Session, error)
	Sessions(ctx context.Context, userID int64) ([]Summary, error)
}
