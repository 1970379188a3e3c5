// Package relay pumps fragments from a source through the splitter to the
// client, one request at a time.
package relay

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/namikmesic/coach-stream/internal/emitter"
	"github.com/namikmesic/coach-stream/internal/source"
	"github.com/namikmesic/coach-stream/internal/splitter"
)

// Emitter receives frames in order. *emitter.Writer implements it.
type Emitter interface {
	Emit(emitter.Frame) error
}

type Outcome string

const (
	OutcomeDone      Outcome = "done"
	OutcomeError     Outcome = "error"
	OutcomeCancelled Outcome = "cancelled"
)

// Stats describes one relayed response. It never carries response text.
type Stats struct {
	Outcome        Outcome
	Fragments      int
	ContentFrames  int
	ThinkingFrames int
	ContentBytes   int
	ReasoningBytes int
	FirstFrame     time.Duration // zero when no text frame was sent
	Duration       time.Duration
	Err            error
}

// Run opens the provider and relays its stream until the upstream ends,
// fails, or ctx is cancelled. Exactly one terminal frame (done or error) is
// emitted unless the client went away first, in which case nothing more is
// written and the context or write error is returned. The upstream stream is
// closed on every path.
func Run(ctx context.Context, p source.Provider, prompt source.Prompt, sp *splitter.Splitter, out Emitter) (Stats, error) {
	r := &run{start: time.Now(), sp: sp, out: out}
	err := r.relay(ctx, p, prompt)
	r.stats.Duration = time.Since(r.start)
	r.stats.Err = err
	return r.stats, err
}

type run struct {
	start time.Time
	sp    *splitter.Splitter
	out   Emitter
	stats Stats
}

func (r *run) relay(ctx context.Context, p source.Provider, prompt source.Prompt) error {
	s, err := p.Open(ctx, prompt)
	if err != nil {
		return r.fail(ctx, err)
	}
	defer s.Close()

	for {
		fragment, err := s.Next()
		if ctxErr := ctx.Err(); ctxErr != nil {
			r.stats.Outcome = OutcomeCancelled
			return ctxErr
		}
		if errors.Is(err, io.EOF) {
			if err := r.emitSegments(r.sp.Finish()); err != nil {
				return err
			}
			if err := r.emit(emitter.Done()); err != nil {
				return err
			}
			r.stats.Outcome = OutcomeDone
			return nil
		}
		if err != nil {
			return r.fail(ctx, err)
		}

		r.stats.Fragments++
		if err := r.emitSegments(r.sp.Feed(fragment)); err != nil {
			return err
		}
	}
}

// fail ends the response with an error frame. Text withheld as a possible
// partial tag is flushed first so nothing already received is lost.
func (r *run) fail(ctx context.Context, cause error) error {
	if ctx.Err() != nil || errors.Is(cause, context.Canceled) {
		r.stats.Outcome = OutcomeCancelled
		return cause
	}
	if err := r.emitSegments(r.sp.Finish()); err != nil {
		return err
	}
	if err := r.emit(emitter.Error(cause)); err != nil {
		return err
	}
	r.stats.Outcome = OutcomeError
	return cause
}

func (r *run) emitSegments(segments []splitter.Segment) error {
	for _, seg := range segments {
		if err := r.emit(emitter.FromSegment(seg)); err != nil {
			return err
		}
		if r.stats.FirstFrame == 0 {
			r.stats.FirstFrame = time.Since(r.start)
		}
		if seg.Class == splitter.Reasoning {
			r.stats.ThinkingFrames++
			r.stats.ReasoningBytes += len(seg.Text)
		} else {
			r.stats.ContentFrames++
			r.stats.ContentBytes += len(seg.Text)
		}
	}
	return nil
}

// emit marks the run cancelled when the client can no longer be written to.
func (r *run) emit(f emitter.Frame) error {
	if err := r.out.Emit(f); err != nil {
		r.stats.Outcome = OutcomeCancelled
		return err
	}
	return nil
}
