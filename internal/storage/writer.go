package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// DB is the part of *pgxpool.Pool that write jobs and migrations need.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// WriteJob represents a unit of work to execute against the database.
type WriteJob interface {
	Execute(ctx context.Context, db DB) error
}

// WriteJobFunc adapts a function into a WriteJob.
type WriteJobFunc func(ctx context.Context, db DB) error

func (f WriteJobFunc) Execute(ctx context.Context, db DB) error {
	return f(ctx, db)
}

const flushTimeout = 10 * time.Second

// BatchWriter collects write jobs and flushes them in batches, either when a
// batch fills up or on every tick. Enqueue never blocks the caller.
type BatchWriter struct {
	db        DB
	jobs      chan WriteJob
	batchSize int
	flushMs   int
	wg        sync.WaitGroup

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

func NewBatchWriter(db DB, bufferSize, batchSize, flushMs int) *BatchWriter {
	if batchSize < 1 {
		batchSize = 1
	}
	if flushMs < 1 {
		flushMs = 100
	}
	w := &BatchWriter{
		db:        db,
		jobs:      make(chan WriteJob, bufferSize),
		batchSize: batchSize,
		flushMs:   flushMs,
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// Enqueue drops the job when the queue is full or the writer is shut down.
func (w *BatchWriter) Enqueue(job WriteJob) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.dropped.Add(1)
		log.Warn().Msg("writer shut down, dropping job")
		return
	}
	select {
	case w.jobs <- job:
	default:
		w.dropped.Add(1)
		log.Warn().Msg("write queue full, dropping job")
	}
}

// Dropped reports how many jobs were discarded so far.
func (w *BatchWriter) Dropped() int64 {
	return w.dropped.Load()
}

func (w *BatchWriter) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(time.Duration(w.flushMs) * time.Millisecond)
	defer ticker.Stop()

	batch := make([]WriteJob, 0, w.batchSize)

	for {
		select {
		case job, ok := <-w.jobs:
			if !ok {
				w.flush(batch)
				return
			}
			batch = append(batch, job)
			if len(batch) >= w.batchSize {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (w *BatchWriter) flush(batch []WriteJob) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	for _, job := range batch {
		if err := job.Execute(ctx, w.db); err != nil {
			log.Error().Err(err).Msg("write job failed")
		}
	}
	log.Debug().Int("jobs", len(batch)).Msg("write batch flushed")
}

// Shutdown flushes queued jobs and stops the writer. It is safe to call more
// than once.
func (w *BatchWriter) Shutdown() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
