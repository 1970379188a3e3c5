package stream

import (
	"bytes"
	"strings"
)

// Parser maintains state across chunks to handle partial SSE lines and
// events whose lines arrive in different reads.
type Parser struct {
	buffer     []byte
	eventIndex int
	eventType  string          // current event: field value
	data       strings.Builder // data: lines of the current event
	hasData    bool
	frameBytes int
}

func NewParser() *Parser {
	return &Parser{}
}

// ParseChunk processes raw bytes from the stream and yields complete SSE events.
// Comment lines (keep-alives such as ": ping") and events without data are dropped.
func (p *Parser) ParseChunk(chunk []byte) []SSEEvent {
	p.buffer = append(p.buffer, chunk...)
	var events []SSEEvent

	for {
		idx := bytes.IndexByte(p.buffer, '\n')
		if idx == -1 {
			break
		}

		line := string(p.buffer[:idx])
		p.buffer = p.buffer[idx+1:]
		if ev, ok := p.parseLine(line, idx+1); ok {
			events = append(events, ev)
		}
	}

	return events
}

// Flush ends the stream, returning an event left open by a body that did not
// end with a blank line.
func (p *Parser) Flush() (SSEEvent, bool) {
	if len(p.buffer) > 0 {
		line := string(p.buffer)
		n := len(p.buffer)
		p.buffer = nil
		if ev, ok := p.parseLine(line, n); ok {
			return ev, true
		}
	}
	return p.dispatch()
}

func (p *Parser) parseLine(line string, n int) (SSEEvent, bool) {
	line = strings.TrimRight(line, "\r")
	p.frameBytes += n

	if line == "" {
		// Empty line = event separator
		return p.dispatch()
	}

	if strings.HasPrefix(line, ":") {
		return SSEEvent{}, false
	}

	field, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")

	switch field {
	case "event":
		p.eventType = strings.TrimSpace(value)
	case "data":
		if p.hasData {
			p.data.WriteByte('\n')
		}
		p.data.WriteString(value)
		p.hasData = true
	}
	// id:, retry: and unknown fields are ignored.
	return SSEEvent{}, false
}

func (p *Parser) dispatch() (SSEEvent, bool) {
	defer p.reset()
	if !p.hasData {
		return SSEEvent{}, false
	}
	p.eventIndex++
	return SSEEvent{
		Index:     p.eventIndex,
		EventType: p.eventType,
		Data:      p.data.String(),
		RawBytes:  p.frameBytes,
	}, true
}

func (p *Parser) reset() {
	p.eventType = ""
	p.data.Reset()
	p.hasData = false
	p.frameBytes = 0
}
