package coach

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/namikmesic/coach-stream/internal/prompt"
)

const (
	// UserHeader carries the caller's user id, set by the auth layer in
	// front of this service.
	UserHeader = "X-User-ID"

	maxBodyBytes = 1 << 20
)

var (
	ErrMissingUser   = errors.New("missing or invalid " + UserHeader + " header")
	ErrEmptyQuestion = errors.New("question must not be empty")
	ErrBadBody       = errors.New("invalid request body")
)

// ChatRequest is the body of POST /coach/chat.
type ChatRequest struct {
	Messages    []prompt.Turn `json:"messages"`
	SessionIDs  []int64       `json:"session_ids"`
	Question    string        `json:"question"`
	ModelSource string        `json:"model_source"`
}

func userID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get(UserHeader))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrMissingUser
	}
	return id, nil
}

func decodeChatRequest(w http.ResponseWriter, r *http.Request) (ChatRequest, error) {
	var req ChatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		return ChatRequest{}, fmt.Errorf("%w: %v", ErrBadBody, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return ChatRequest{}, fmt.Errorf("%w: trailing data after JSON object", ErrBadBody)
	}
	if strings.TrimSpace(req.Question) == "" {
		return ChatRequest{}, ErrEmptyQuestion
	}
	return req, nil
}
