package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/namikmesic/coach-stream/internal/coach"
	"github.com/namikmesic/coach-stream/internal/config"
	"github.com/namikmesic/coach-stream/internal/jetstream"
	"github.com/namikmesic/coach-stream/internal/processor"
	"github.com/namikmesic/coach-stream/internal/source"
	"github.com/namikmesic/coach-stream/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	ctx := context.Background()
	pool, err := storage.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	if err := storage.RunMigrations(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	natsServer, err := jetstream.NewServer(cfg.NATSStoreDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start embedded NATS")
	}

	nc, err := natsServer.Connect()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to embedded NATS")
	}

	js, err := nc.JetStream()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get JetStream context")
	}
	if err := jetstream.EnsureStream(js); err != nil {
		log.Fatal().Err(err).Msg("failed to create JetStream stream")
	}

	writer := storage.NewBatchWriter(pool, cfg.WriterBufferSize, cfg.WriterBatchSize, cfg.WriterFlushMs)
	proc := processor.New(writer)

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	defer consumerCancel()
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := proc.StartConsumer(consumerCtx, js); err != nil {
			log.Error().Err(err).Msg("summary consumer stopped")
		}
	}()

	handler, err := coach.NewHandler(cfg,
		coach.NewSources(cfg, source.NewHTTPClient()),
		storage.NewSessionStore(pool),
		processor.NewPublisher(js),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build handler")
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().
			Int("port", cfg.Port).
			Str("default_source", cfg.DefaultSource).
			Str("ollama", cfg.OllamaHost).
			Bool("remote_key", cfg.RemoteAPIKey != "").
			Msg("coach stream started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-done
	log.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	consumerCancel()
	<-consumerDone
	nc.Drain()
	natsServer.Shutdown()
	writer.Shutdown()
	if n := writer.Dropped(); n > 0 {
		log.Warn().Int64("jobs", n).Msg("write jobs dropped during run")
	}
	log.Info().Msg("shutdown complete")
}
