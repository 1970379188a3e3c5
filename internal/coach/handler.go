// Package coach serves the coach chat endpoint: it renders the selected
// workout history into a prompt, relays the model's answer as typed SSE
// frames, and publishes a summary of each request.
package coach

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/namikmesic/coach-stream/internal/config"
	"github.com/namikmesic/coach-stream/internal/emitter"
	"github.com/namikmesic/coach-stream/internal/history"
	"github.com/namikmesic/coach-stream/internal/processor"
	"github.com/namikmesic/coach-stream/internal/prompt"
	"github.com/namikmesic/coach-stream/internal/relay"
	"github.com/namikmesic/coach-stream/internal/source"
	"github.com/namikmesic/coach-stream/internal/splitter"
	"github.com/rs/zerolog/log"
)

const publishTimeout = 5 * time.Second

// Publisher receives one summary per finished chat request.
// *processor.Publisher implements it.
type Publisher interface {
	Publish(ctx context.Context, s processor.ChatSummary) error
}

// Handler routes the coach endpoints.
type Handler struct {
	cfg           *config.Config
	sources       source.Selector
	defaultSource source.Kind
	store         history.Store
	publisher     Publisher
	mux           *http.ServeMux
}

// NewHandler wires the routes. store and publisher may be nil: without a
// store no history is rendered and the session listing is unavailable;
// without a publisher summaries are only logged.
func NewHandler(cfg *config.Config, sources source.Selector, store history.Store, publisher Publisher) (*Handler, error) {
	kind, err := source.ParseKind(cfg.DefaultSource)
	if err != nil {
		return nil, err
	}
	if _, err := splitter.New(cfg.OpenTag, cfg.CloseTag); err != nil {
		return nil, err
	}

	h := &Handler{
		cfg:           cfg,
		sources:       sources,
		defaultSource: kind,
		store:         store,
		publisher:     publisher,
		mux:           http.NewServeMux(),
	}
	h.mux.HandleFunc("POST /coach/chat", h.handleChat)
	h.mux.HandleFunc("GET /coach/sessions", h.handleSessions)
	h.mux.HandleFunc("GET /healthz", h.handleHealth)
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New()
	ts := time.Now()

	user, err := userID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req, err := decodeChatRequest(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	kind := h.defaultSource
	if req.ModelSource != "" {
		if kind, err = source.ParseKind(req.ModelSource); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	provider, err := h.sources.Select(kind)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sp, err := splitter.New(h.cfg.OpenTag, h.cfg.CloseTag)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var historyMD string
	if len(req.SessionIDs) > 0 && h.store != nil {
		historyMD = history.Render(r.Context(), h.store, user, req.SessionIDs, h.cfg.HistoryLimit)
	}
	p := prompt.Build(h.cfg.SystemPrompt, historyMD, req.Messages, req.Question)

	out, err := emitter.New(w)
	if err != nil {
		log.Error().Err(err).Msg("response does not support streaming")
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	stats, _ := relay.Run(r.Context(), provider, p, sp, out)

	summary := processor.ChatSummary{
		RequestID:    requestID,
		Timestamp:    ts,
		UserID:       user,
		Source:       string(kind),
		Model:        modelFor(h.cfg, kind),
		SessionCount: len(req.SessionIDs),
		MessageCount: len(p.Messages),
	}.WithStats(stats)
	h.publish(r.Context(), summary)

	ev := log.Info()
	if stats.Outcome == relay.OutcomeError {
		ev = log.Warn().Err(stats.Err)
	}
	ev.Str("request_id", requestID.String()).
		Int64("user_id", user).
		Str("source", string(kind)).
		Str("outcome", string(stats.Outcome)).
		Int("fragments", stats.Fragments).
		Int("content_frames", stats.ContentFrames).
		Int("thinking_frames", stats.ThinkingFrames).
		Bool("history", historyMD != "").
		Dur("first_frame", stats.FirstFrame).
		Dur("duration", time.Since(ts)).
		Msg("coach chat")
}

// publish outlives the request context so summaries of cancelled requests
// are still recorded.
func (h *Handler) publish(ctx context.Context, s processor.ChatSummary) {
	if h.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := h.publisher.Publish(ctx, s); err != nil {
		log.Error().Err(err).Str("request_id", s.RequestID.String()).Msg("failed to publish chat summary")
	}
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if h.store == nil {
		http.Error(w, "session history unavailable", http.StatusServiceUnavailable)
		return
	}

	sessions, err := h.store.Sessions(r.Context(), user)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user).Msg("failed to list sessions")
		http.Error(w, "failed to list sessions", http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []history.Summary{}
	}
	for i := range sessions {
		if sessions[i].Exercises == nil {
			sessions[i].Exercises = []string{}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(sessions); err != nil {
		log.Debug().Err(err).Msg("failed to write session list")
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}
