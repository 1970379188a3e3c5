// Package processor moves chat summaries from JetStream into storage, off
// the request path.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/namikmesic/coach-stream/internal/jetstream"
	"github.com/namikmesic/coach-stream/internal/storage"
	nats "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const (
	fetchBatch = 32
	fetchWait  = 2 * time.Second
)

var ErrBadSummary = errors.New("processor: malformed chat summary")

// Sink receives storage jobs. *storage.BatchWriter implements it.
type Sink interface {
	Enqueue(job storage.WriteJob)
}

// Processor handles background analytics for relayed requests.
type Processor struct {
	sink Sink
}

func New(sink Sink) *Processor {
	return &Processor{sink: sink}
}

// Handle decodes one published summary and queues its insert.
func (p *Processor) Handle(data []byte) error {
	var s ChatSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSummary, err)
	}
	if s.RequestID == uuid.Nil || s.Outcome == "" {
		return fmt.Errorf("%w: missing request id or outcome", ErrBadSummary)
	}

	p.sink.Enqueue(storage.InsertChatRequestJob(s.record()))

	log.Debug().
		Str("request_id", s.RequestID.String()).
		Str("outcome", s.Outcome).
		Msg("chat summary queued for storage")
	return nil
}

// StartConsumer pulls summaries from the durable consumer until ctx is
// cancelled. Malformed messages are terminated so they are not redelivered.
func (p *Processor) StartConsumer(ctx context.Context, js nats.JetStreamContext) error {
	sub, err := js.PullSubscribe(jetstream.SummaryFilter(), jetstream.SummaryConsumer,
		nats.BindStream(jetstream.StreamName),
		nats.AckExplicit(),
	)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", jetstream.SummaryConsumer, err)
	}

	log.Debug().Str("consumer", jetstream.SummaryConsumer).Msg("summary consumer started")
	for {
		if ctx.Err() != nil {
			return nil
		}

		msgs, err := p.fetch(ctx, sub)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
				return nil
			}
			log.Error().Err(err).Msg("fetch summaries failed")
			continue
		}

		for _, msg := range msgs {
			if err := p.Handle(msg.Data); err != nil {
				log.Error().Err(err).Str("subject", msg.Subject).Msg("dropping chat summary")
				msg.Term()
				continue
			}
			msg.Ack()
		}
	}
}

func (p *Processor) fetch(ctx context.Context, sub *nats.Subscription) ([]*nats.Msg, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchWait)
	defer cancel()
	return sub.Fetch(fetchBatch, nats.Context(fetchCtx))
}
