package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/namikmesic/coach-stream/internal/jetstream"
	"github.com/namikmesic/coach-stream/internal/relay"
	"github.com/namikmesic/coach-stream/internal/storage"
	nats "github.com/nats-io/nats.go"
)

// ChatSummary describes one finished coach request. It carries counts and
// timings only, never prompt or response text.
type ChatSummary struct {
	RequestID      uuid.UUID `json:"request_id"`
	Timestamp      time.Time `json:"ts"`
	UserID         int64     `json:"user_id"`
	Source         string    `json:"source"`
	Model          string    `json:"model,omitempty"`
	Outcome        string    `json:"outcome"`
	Error          string    `json:"error,omitempty"`
	SessionCount   int       `json:"session_count"`
	MessageCount   int       `json:"message_count"`
	Fragments      int       `json:"fragments"`
	ContentFrames  int       `json:"content_frames"`
	ThinkingFrames int       `json:"thinking_frames"`
	ContentBytes   int       `json:"content_bytes"`
	ReasoningBytes int       `json:"reasoning_bytes"`
	FirstFrameMs   *int      `json:"first_frame_ms,omitempty"`
	DurationMs     int       `json:"duration_ms"`
}

// WithStats copies the relay outcome into the summary.
func (s ChatSummary) WithStats(st relay.Stats) ChatSummary {
	s.Outcome = string(st.Outcome)
	if st.Outcome == relay.OutcomeError && st.Err != nil {
		s.Error = st.Err.Error()
	}
	s.Fragments = st.Fragments
	s.ContentFrames = st.ContentFrames
	s.ThinkingFrames = st.ThinkingFrames
	s.ContentBytes = st.ContentBytes
	s.ReasoningBytes = st.ReasoningBytes
	if st.FirstFrame > 0 {
		ms := int(st.FirstFrame.Milliseconds())
		s.FirstFrameMs = &ms
	}
	s.DurationMs = int(st.Duration.Milliseconds())
	return s
}

func (s ChatSummary) record() *storage.ChatRequestRecord {
	return &storage.ChatRequestRecord{
		ID:             s.RequestID,
		Timestamp:      s.Timestamp,
		UserID:         s.UserID,
		Source:         s.Source,
		Model:          s.Model,
		Outcome:        s.Outcome,
		ErrorMessage:   s.Error,
		SessionCount:   s.SessionCount,
		MessageCount:   s.MessageCount,
		Fragments:      s.Fragments,
		ContentFrames:  s.ContentFrames,
		ThinkingFrames: s.ThinkingFrames,
		ContentBytes:   s.ContentBytes,
		ReasoningBytes: s.ReasoningBytes,
		FirstFrameMs:   s.FirstFrameMs,
		DurationMs:     s.DurationMs,
	}
}

// Publisher sends summaries to the COACH stream.
type Publisher struct {
	js nats.JetStreamContext
}

func NewPublisher(js nats.JetStreamContext) *Publisher {
	return &Publisher{js: js}
}

// Publish uses the request id as the message id, so a retried publish is
// stored once.
func (p *Publisher) Publish(ctx context.Context, s ChatSummary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	id := s.RequestID.String()
	if _, err := p.js.Publish(jetstream.SummarySubject(id), data, nats.Context(ctx), nats.MsgId(id)); err != nil {
		return fmt.Errorf("publish summary %s: %w", id, err)
	}
	return nil
}
