package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const errorBodyLimit = 4 << 10

// NewHTTPClient returns the client shared by both providers.
func NewHTTPClient() *http.Client {
	return &http.Client{
		// No timeout; generation can be long-lived and callers bound it with ctx
		Timeout: 0,
		// Don't follow redirects
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// postJSON sends body to url and returns the response of a 2xx reply.
// describe extracts a human-readable message from an error body.
func postJSON(ctx context.Context, client *http.Client, url string, header http.Header, body any, describe func([]byte) string) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode upstream request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create upstream request: %w", err)
	}
	req.Header = header

	resp, err := client.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		msg := describe(raw)
		if msg == "" {
			msg = compact(string(raw))
		}
		if msg == "" {
			return nil, fmt.Errorf("%w: http %d", ErrProtocol, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: http %d: %s", ErrProtocol, resp.StatusCode, msg)
	}
	return resp, nil
}

// transportError reports cancellation as the context's own error so callers
// can tell a disconnect from an upstream failure.
func transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

func decodeError(ctx context.Context, err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Errorf("%w: malformed body: %v", ErrProtocol, err)
	}
	return transportError(ctx, err)
}

func compact(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 240 {
		s = s[:240] + "..."
	}
	return s
}
