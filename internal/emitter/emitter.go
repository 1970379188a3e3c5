// Package emitter writes classified stream events to the client as
// server-sent events, one flushed frame per event.
package emitter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/namikmesic/coach-stream/internal/splitter"
)

type FrameType string

const (
	FrameContent  FrameType = "content"
	FrameThinking FrameType = "thinking"
	FrameDone     FrameType = "done"
	FrameError    FrameType = "error"
)

var (
	ErrClosed     = errors.New("emitter: stream already terminated")
	ErrNoFlusher  = errors.New("emitter: ResponseWriter does not implement http.Flusher")
	ErrEmptyFrame = errors.New("emitter: text frame without text")
)

// Frame is the JSON payload of one SSE data line.
type Frame struct {
	Type FrameType `json:"type"`
	Text string    `json:"text,omitempty"`
}

func (f Frame) Terminal() bool {
	return f.Type == FrameDone || f.Type == FrameError
}

// FromSegment maps a splitter segment to its wire frame.
func FromSegment(seg splitter.Segment) Frame {
	if seg.Class == splitter.Reasoning {
		return Frame{Type: FrameThinking, Text: seg.Text}
	}
	return Frame{Type: FrameContent, Text: seg.Text}
}

func Done() Frame {
	return Frame{Type: FrameDone}
}

func Error(err error) Frame {
	text := "unknown error"
	if err != nil && err.Error() != "" {
		text = err.Error()
	}
	return Frame{Type: FrameError, Text: text}
}

// Writer serves exactly one response. After a terminal frame every Emit
// returns ErrClosed.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
	frames  int
}

// New writes the event-stream headers and a 200 status. Intermediate
// buffering is disabled through X-Accel-Buffering.
func New(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrNoFlusher
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Writer{w: w, flusher: flusher}, nil
}

func (e *Writer) Emit(f Frame) error {
	if e.closed {
		return ErrClosed
	}
	if (f.Type == FrameContent || f.Type == FrameThinking) && f.Text == "" {
		return ErrEmptyFrame
	}

	data, err := marshalFrame(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if f.Terminal() {
		e.closed = true
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", data); err != nil {
		e.closed = true
		return fmt.Errorf("write frame: %w", err)
	}
	e.flusher.Flush()
	e.frames++
	return nil
}

// Frames returns how many frames were written.
func (e *Writer) Frames() int {
	return e.frames
}

// marshalFrame keeps '<', '>' and '&' literal; model output is full of them.
func marshalFrame(f Frame) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(f); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
