package source_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/namikmesic/coach-stream/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ndjsonServer(t *testing.T, status int, lines ...string) (*httptest.Server, <-chan map[string]any) {
	t.Helper()
	bodies := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
			body = map[string]any{}
		}
		body["path"] = r.URL.Path
		bodies <- body
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(status)
		flusher, _ := w.(http.Flusher)
		for _, l := range lines {
			io.WriteString(w, l+"\n")
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, bodies
}

func TestOllama_StreamsContent(t *testing.T) {
	t.Parallel()
	srv, bodies := ndjsonServer(t, http.StatusOK,
		`{"model":"qwen3:8b","message":{"role":"assistant","content":"<think>"},"done":false}`,
		`{"model":"qwen3:8b","message":{"role":"assistant","content":""},"done":false}`,
		`{"model":"qwen3:8b","message":{"role":"assistant","content":"hmm</think>Do squats."},"done":false}`,
		`{"model":"qwen3:8b","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}`,
	)

	o := source.NewOllama(source.OllamaConfig{Host: srv.URL, Model: "qwen3:8b", NumCtx: 16000, Temperature: 0.7}, nil)
	s, err := o.Open(context.Background(), testPrompt)
	require.NoError(t, err)
	defer s.Close()

	got, err := collect(t, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"<think>", "hmm</think>Do squats."}, got)

	body := <-bodies
	assert.Equal(t, "/api/chat", body["path"])
	assert.Equal(t, "qwen3:8b", body["model"])
	assert.Equal(t, true, body["stream"])
	assert.Equal(t, map[string]any{"num_ctx": float64(16000), "temperature": 0.7}, body["options"])
}

func TestOllama_InBandError(t *testing.T) {
	t.Parallel()
	srv, _ := ndjsonServer(t, http.StatusOK,
		`{"message":{"content":"partial"},"done":false}`,
		`{"error":"model runner crashed"}`,
	)

	s, err := source.NewOllama(source.OllamaConfig{Host: srv.URL}, nil).Open(context.Background(), testPrompt)
	require.NoError(t, err)
	defer s.Close()

	got, err := collect(t, s)
	assert.Equal(t, []string{"partial"}, got)
	require.ErrorIs(t, err, source.ErrProtocol)
	assert.Contains(t, err.Error(), "model runner crashed")
}

func TestOllama_NonSuccessStatus(t *testing.T) {
	t.Parallel()
	srv, _ := ndjsonServer(t, http.StatusNotFound, `{"error":"model 'qwen3:8b' not found"}`)

	_, err := source.NewOllama(source.OllamaConfig{Host: srv.URL}, nil).Open(context.Background(), testPrompt)
	require.ErrorIs(t, err, source.ErrProtocol)
	assert.Contains(t, err.Error(), "not found")
}

func TestOllama_CutOffStream(t *testing.T) {
	t.Parallel()
	srv, _ := ndjsonServer(t, http.StatusOK, `{"message":{"content":"a"},"done":false}`)

	s, err := source.NewOllama(source.OllamaConfig{Host: srv.URL}, nil).Open(context.Background(), testPrompt)
	require.NoError(t, err)
	defer s.Close()

	got, err := collect(t, s)
	assert.Equal(t, []string{"a"}, got)
	assert.ErrorIs(t, err, source.ErrProtocol)
}

func TestOllama_MalformedLine(t *testing.T) {
	t.Parallel()
	srv, _ := ndjsonServer(t, http.StatusOK, `{"message":`+"\n"+`}`)

	s, err := source.NewOllama(source.OllamaConfig{Host: srv.URL}, nil).Open(context.Background(), testPrompt)
	require.NoError(t, err)
	defer s.Close()

	_, err = collect(t, s)
	assert.ErrorIs(t, err, source.ErrProtocol)
}

func TestOllama_NotConfigured(t *testing.T) {
	t.Parallel()
	_, err := source.NewOllama(source.OllamaConfig{}, nil).Open(context.Background(), testPrompt)
	assert.ErrorIs(t, err, source.ErrNotConfigured)

	_, err = source.NewOllama(source.OllamaConfig{Host: "localhost:11434"}, nil).Open(context.Background(), testPrompt)
	assert.ErrorIs(t, err, source.ErrNotConfigured)
}
