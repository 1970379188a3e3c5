package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/namikmesic/coach-stream/internal/stream"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// RemoteConfig holds full chat-completion endpoint URLs, e.g.
// https://api.openai.com/v1/chat/completions.
type RemoteConfig struct {
	URL         string
	APIKey      string
	FallbackURL string // key-less endpoint used when URL or APIKey is missing
	Model       string
	Temperature float64
}

// Remote streams from an OpenAI-compatible chat-completion endpoint over SSE.
type Remote struct {
	cfg    RemoteConfig
	client *http.Client
}

func NewRemote(cfg RemoteConfig, client *http.Client) *Remote {
	if client == nil {
		client = NewHTTPClient()
	}
	if (cfg.URL == "" || cfg.APIKey == "") && cfg.FallbackURL != "" {
		log.Debug().Str("url", cfg.FallbackURL).Msg("remote source has no credential, using key-less fallback")
	}
	return &Remote{cfg: cfg, client: client}
}

// endpoint picks the credentialed endpoint when fully configured and the
// key-less fallback otherwise.
func (r *Remote) endpoint() (url, apiKey string, err error) {
	switch {
	case r.cfg.URL != "" && r.cfg.APIKey != "":
		return r.cfg.URL, r.cfg.APIKey, nil
	case r.cfg.FallbackURL != "":
		return r.cfg.FallbackURL, "", nil
	}
	return "", "", fmt.Errorf("%w: remote endpoint needs a url and api key, or a fallback url", ErrNotConfigured)
}

func (r *Remote) Open(ctx context.Context, p Prompt) (Stream, error) {
	url, apiKey, err := r.endpoint()
	if err != nil {
		return nil, err
	}
	if _, err := buildTargetURL(url, ""); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}

	req := openai.ChatCompletionRequest{
		Model:       r.cfg.Model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(p.Messages)),
		Stream:      true,
		Temperature: float32(r.cfg.Temperature),
	}
	for _, m := range p.Messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := postJSON(ctx, r.client, url, upstreamHeaders(apiKey, "text/event-stream"), req, remoteErrorMessage)
	if err != nil {
		return nil, err
	}
	if err := checkEventStream(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return &remoteStream{
		ctx:    ctx,
		body:   resp.Body,
		parser: stream.NewParser(),
		buf:    make([]byte, 32*1024),
	}, nil
}

// remoteErrorMessage understands both {"error":{"message":...}} and
// {"error":"..."} bodies.
func remoteErrorMessage(body []byte) string {
	var resp openai.ErrorResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error != nil && resp.Error.Message != "" {
		return resp.Error.Message
	}
	return ollamaErrorMessage(body)
}

// checkEventStream rejects a successful reply that is not an event stream,
// typically a JSON error body sent with status 200. Unlabelled and text/plain
// bodies are let through; remoteStream still fails them if no event arrives.
func checkEventStream(resp *http.Response) error {
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return fmt.Errorf("%w: bad content type %q", ErrProtocol, ct)
	}
	switch mediaType {
	case "text/event-stream", "text/plain":
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	msg := remoteErrorMessage(raw)
	if msg == "" {
		msg = compact(string(raw))
	}
	if msg == "" {
		return fmt.Errorf("%w: expected text/event-stream, got %s", ErrProtocol, mediaType)
	}
	return fmt.Errorf("%w: expected text/event-stream, got %s: %s", ErrProtocol, mediaType, msg)
}

type remoteStream struct {
	ctx    context.Context
	body   io.ReadCloser
	parser *stream.Parser
	buf    []byte
	queue  []stream.SSEEvent
	tail   error // how the body ended: io.EOF or a read failure
	err    error // terminal result, io.EOF on clean end
	events int    // data events seen, [DONE] included
	head   []byte // start of the body, quoted when no event ever arrives
}

func (s *remoteStream) Next() (string, error) {
	for s.err == nil {
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue = s.queue[1:]
			s.events++
			if ev.IsDone() {
				s.err = io.EOF
				break
			}
			text, err := decodeDelta(ev.Data)
			if err != nil {
				s.err = err
				break
			}
			if text != "" {
				return text, nil
			}
			continue
		}

		if s.tail != nil {
			// Some compatible servers close the body without [DONE], but a
			// body without a single event is not a stream at all.
			s.err = s.tail
			if s.err == io.EOF && s.events == 0 {
				s.err = s.emptyStreamError()
			}
			break
		}

		n, err := s.body.Read(s.buf)
		if n > 0 {
			if room := errorBodyLimit - len(s.head); room > 0 {
				s.head = append(s.head, s.buf[:min(n, room)]...)
			}
			s.queue = append(s.queue, s.parser.ParseChunk(s.buf[:n])...)
		}
		if errors.Is(err, io.EOF) {
			if ev, ok := s.parser.Flush(); ok {
				s.queue = append(s.queue, ev)
			}
			s.tail = io.EOF
		} else if err != nil {
			s.tail = transportError(s.ctx, err)
		}
	}
	return "", s.err
}

func (s *remoteStream) emptyStreamError() error {
	msg := remoteErrorMessage(s.head)
	if msg == "" {
		msg = compact(string(s.head))
	}
	if msg == "" {
		return fmt.Errorf("%w: empty event stream", ErrProtocol)
	}
	return fmt.Errorf("%w: no events in response: %s", ErrProtocol, msg)
}

func (s *remoteStream) Close() error {
	return s.body.Close()
}

func decodeDelta(data string) (string, error) {
	var chunk openai.ChatCompletionStreamResponse
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return "", fmt.Errorf("%w: malformed event: %v", ErrProtocol, err)
	}
	if len(chunk.Choices) == 0 {
		if msg := remoteErrorMessage([]byte(data)); msg != "" {
			return "", fmt.Errorf("%w: %s", ErrProtocol, msg)
		}
		// usage-only or keep-alive chunk
		return "", nil
	}
	return chunk.Choices[0].Delta.Content, nil
}
