// Package source supplies raw text fragments from an upstream model, either
// a local Ollama process or a remote OpenAI-compatible endpoint.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind names an upstream variant. It is chosen explicitly per request.
type Kind string

const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
)

var (
	// ErrUnreachable wraps failures to connect to or read from the upstream.
	ErrUnreachable = errors.New("upstream unreachable")
	// ErrProtocol wraps non-success responses and malformed bodies.
	ErrProtocol = errors.New("upstream protocol error")
	// ErrNotConfigured is returned when a variant has neither endpoint nor fallback.
	ErrNotConfigured = errors.New("source not configured")
	// ErrUnknownKind is returned by ParseKind and Selector.Select.
	ErrUnknownKind = errors.New("unknown model source")
)

// ParseKind accepts the variant names used by clients. "web" is the name the
// browser client uses for the remote variant.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local", "ollama":
		return KindLocal, nil
	case "remote", "web":
		return KindRemote, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Message is one turn of the prompt sent upstream.
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

type Prompt struct {
	Messages []Message
}

// Stream yields fragments in arrival order. Next returns io.EOF after the
// last fragment. Close releases the upstream connection and is safe to call
// at any point.
type Stream interface {
	Next() (string, error)
	Close() error
}

// Provider opens a fragment stream for a prompt. Cancelling ctx aborts a
// blocked Next.
type Provider interface {
	Open(ctx context.Context, p Prompt) (Stream, error)
}

// Selector maps a Kind to its configured Provider.
type Selector map[Kind]Provider

func (s Selector) Select(kind Kind) (Provider, error) {
	p, ok := s[kind]
	if !ok || p == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return p, nil
}
