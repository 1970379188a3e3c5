package source

import "net/http"

func upstreamHeaders(apiKey, accept string) http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set("Accept", accept)

	// Inject auth only when a key is configured; the fallback endpoint is key-less
	if apiKey != "" {
		h.Set("Authorization", "Bearer "+apiKey)
	}

	// Ask for an uncompressed body so fragments can be parsed as they arrive
	h.Set("Accept-Encoding", "identity")

	return h
}
