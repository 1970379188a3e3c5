package jetstream

import (
	"errors"
	"fmt"
	"time"

	nats "github.com/nats-io/nats.go"
)

const (
	StreamName    = "COACH"
	SubjectPrefix = "coach.chat."
	// SummaryConsumer is the durable name of the analytics consumer.
	SummaryConsumer = "coach-summaries"
)

// EnsureStream creates the work-queue stream for chat summaries. Messages
// are removed once acknowledged, or after a day if nobody consumes them.
func EnsureStream(js nats.JetStreamContext) error {
	_, err := js.AddStream(&nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectPrefix + ">"},
		Storage:   nats.FileStorage,
		MaxAge:    24 * time.Hour,
		Retention: nats.WorkQueuePolicy,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("add stream %s: %w", StreamName, err)
	}
	return nil
}

// SummarySubject is where the summary of one chat request is published.
func SummarySubject(requestID string) string {
	return SubjectPrefix + requestID
}

// SummaryFilter matches every summary subject.
func SummaryFilter() string {
	return SubjectPrefix + ">"
}
