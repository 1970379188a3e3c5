package splitter

import (
	"errors"
	"strings"
)

const (
	DefaultOpenTag  = "<think>"
	DefaultCloseTag = "</think>"
)

var ErrEmptyTag = errors.New("splitter: sentinel tags must not be empty")

// Class identifies which kind of text a segment carries.
type Class int

const (
	Content Class = iota
	Reasoning
)

func (c Class) String() string {
	if c == Reasoning {
		return "reasoning"
	}
	return "content"
}

// Segment is a classified span of the model output with the sentinels removed.
type Segment struct {
	Class Class
	Text  string
}

// Splitter separates reasoning spans delimited by an open/close sentinel pair
// from ordinary content in a stream of arbitrarily chunked fragments.
//
// Only the tail that could still be the beginning of a sentinel is held back
// between calls, so each Feed costs O(len(fragment)+len(tag)). Not safe for
// concurrent use; one Splitter serves one response.
type Splitter struct {
	open    string
	close   string
	inside  bool
	pending string // withheld tail, always a proper prefix of the awaited tag
}

func New(open, close string) (*Splitter, error) {
	if open == "" || close == "" {
		return nil, ErrEmptyTag
	}
	return &Splitter{open: open, close: close}, nil
}

// Feed consumes the next fragment and returns the segments whose
// classification is now final. Adjacent segments of the same class are merged
// and empty segments are never returned.
func (s *Splitter) Feed(fragment string) []Segment {
	buf := s.pending + fragment
	s.pending = ""

	var out []Segment
	for {
		tag := s.awaited()
		if i := strings.Index(buf, tag); i >= 0 {
			out = appendSegment(out, s.class(), buf[:i])
			buf = buf[i+len(tag):]
			// Nesting is not supported: inside a reasoning span only the
			// close tag is awaited, so a second open tag is plain text.
			s.inside = !s.inside
			continue
		}

		keep := partialTagSuffix(buf, tag)
		out = appendSegment(out, s.class(), buf[:len(buf)-keep])
		s.pending = buf[len(buf)-keep:]
		return out
	}
}

// Finish flushes the withheld tail at end of stream. An unterminated
// reasoning span is flushed as reasoning.
func (s *Splitter) Finish() []Segment {
	out := appendSegment(nil, s.class(), s.pending)
	s.pending = ""
	return out
}

// Inside reports whether the splitter is currently within a reasoning span.
func (s *Splitter) Inside() bool {
	return s.inside
}

func (s *Splitter) awaited() string {
	if s.inside {
		return s.close
	}
	return s.open
}

func (s *Splitter) class() Class {
	if s.inside {
		return Reasoning
	}
	return Content
}

func appendSegment(out []Segment, class Class, text string) []Segment {
	if text == "" {
		return out
	}
	if n := len(out); n > 0 && out[n-1].Class == class {
		out[n-1].Text += text
		return out
	}
	return append(out, Segment{Class: class, Text: text})
}

// partialTagSuffix returns the length of the longest proper prefix of tag
// that buf ends with.
func partialTagSuffix(buf, tag string) int {
	n := len(tag) - 1
	if len(buf) < n {
		n = len(buf)
	}
	for ; n > 0; n-- {
		if strings.HasSuffix(buf, tag[:n]) {
			return n
		}
	}
	return 0
}
