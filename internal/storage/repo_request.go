package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ChatRequestRecord is the analytics row for one relayed coach request.
type ChatRequestRecord struct {
	ID             uuid.UUID
	Timestamp      time.Time
	UserID         int64
	Source         string
	Model          string
	Outcome        string
	ErrorMessage   string
	SessionCount   int
	MessageCount   int
	Fragments      int
	ContentFrames  int
	ThinkingFrames int
	ContentBytes   int
	ReasoningBytes int
	FirstFrameMs   *int // nil when no text frame was sent
	DurationMs     int
}

// InsertChatRequestJob inserts the record once; a redelivered summary with
// the same id is ignored.
func InsertChatRequestJob(r *ChatRequestRecord) WriteJob {
	return WriteJobFunc(func(ctx context.Context, db DB) error {
		_, err := db.Exec(ctx, `
			INSERT INTO coach_requests (
				id, ts, user_id, source, model, outcome, error_message,
				session_count, message_count, fragments, content_frames,
				thinking_frames, content_bytes, reasoning_bytes,
				first_frame_ms, duration_ms
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
			ON CONFLICT (id) DO NOTHING`,
			r.ID, r.Timestamp, r.UserID, r.Source, nilIfEmpty(r.Model),
			r.Outcome, nilIfEmpty(r.ErrorMessage),
			r.SessionCount, r.MessageCount, r.Fragments, r.ContentFrames,
			r.ThinkingFrames, r.ContentBytes, r.ReasoningBytes,
			r.FirstFrameMs, r.DurationMs,
		)
		return err
	})
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
