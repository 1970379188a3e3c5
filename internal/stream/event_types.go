package stream

// DoneMarker is the data payload OpenAI-compatible endpoints send as the last event.
const DoneMarker = "[DONE]"

// SSEEvent represents a single parsed SSE event from the stream.
type SSEEvent struct {
	Index     int    // ordinal within this response's stream
	EventType string // value of the event: field, empty when absent
	Data      string // data: lines joined with "\n"
	RawBytes  int    // byte length of this SSE frame
}

// IsDone reports whether the event is the terminal [DONE] marker.
func (e SSEEvent) IsDone() bool {
	return e.Data == DoneMarker
}
