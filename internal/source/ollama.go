package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

type OllamaConfig struct {
	Host        string
	Model       string
	NumCtx      int
	Temperature float64
}

// Ollama streams from a local Ollama server's /api/chat endpoint, which
// answers with one JSON object per line.
type Ollama struct {
	cfg    OllamaConfig
	client *http.Client
}

func NewOllama(cfg OllamaConfig, client *http.Client) *Ollama {
	if client == nil {
		client = NewHTTPClient()
	}
	return &Ollama{cfg: cfg, client: client}
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	NumCtx      int     `json:"num_ctx,omitempty"`
	Temperature float64 `json:"temperature"`
}

type ollamaChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

func (o *Ollama) Open(ctx context.Context, p Prompt) (Stream, error) {
	if o.cfg.Host == "" {
		return nil, fmt.Errorf("%w: ollama host is empty", ErrNotConfigured)
	}
	url, err := buildTargetURL(o.cfg.Host, "/api/chat")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}

	req := ollamaRequest{
		Model:    o.cfg.Model,
		Messages: make([]ollamaMessage, 0, len(p.Messages)),
		Stream:   true,
		Options:  ollamaOptions{NumCtx: o.cfg.NumCtx, Temperature: o.cfg.Temperature},
	}
	for _, m := range p.Messages {
		req.Messages = append(req.Messages, ollamaMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := postJSON(ctx, o.client, url, upstreamHeaders("", "application/x-ndjson"), req, ollamaErrorMessage)
	if err != nil {
		return nil, err
	}
	return &ollamaStream{ctx: ctx, body: resp.Body, dec: json.NewDecoder(resp.Body)}, nil
}

func ollamaErrorMessage(body []byte) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	return parsed.Error
}

type ollamaStream struct {
	ctx  context.Context
	body io.ReadCloser
	dec  *json.Decoder
	err  error // terminal result, io.EOF on clean end
}

func (s *ollamaStream) Next() (string, error) {
	for s.err == nil {
		var chunk ollamaChunk
		if err := s.dec.Decode(&chunk); err != nil {
			if errors.Is(err, io.EOF) {
				// Ollama always ends with done:true; a bare EOF is a cut-off stream.
				s.err = fmt.Errorf("%w: stream ended before completion", ErrProtocol)
			} else {
				s.err = decodeError(s.ctx, err)
			}
			break
		}
		if chunk.Error != "" {
			s.err = fmt.Errorf("%w: %s", ErrProtocol, chunk.Error)
			break
		}
		if chunk.Done {
			s.err = io.EOF
			if chunk.Message.Content != "" {
				return chunk.Message.Content, nil
			}
			break
		}
		if chunk.Message.Content != "" {
			return chunk.Message.Content, nil
		}
	}
	return "", s.err
}

func (s *ollamaStream) Close() error {
	return s.body.Close()
}
