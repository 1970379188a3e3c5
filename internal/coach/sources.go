package coach

import (
	"net/http"

	"github.com/namikmesic/coach-stream/internal/config"
	"github.com/namikmesic/coach-stream/internal/source"
)

// NewSources builds both upstream variants from config. They share one
// client, which has no overall timeout because answers stream for minutes.
func NewSources(cfg *config.Config, client *http.Client) source.Selector {
	if client == nil {
		client = source.NewHTTPClient()
	}
	return source.Selector{
		source.KindLocal: source.NewOllama(source.OllamaConfig{
			Host:        cfg.OllamaHost,
			Model:       cfg.OllamaModel,
			NumCtx:      cfg.OllamaNumCtx,
			Temperature: cfg.Temperature,
		}, client),
		source.KindRemote: source.NewRemote(source.RemoteConfig{
			URL:         cfg.RemoteURL,
			APIKey:      cfg.RemoteAPIKey,
			FallbackURL: cfg.RemoteFallbackURL,
			Model:       cfg.RemoteModel,
			Temperature: cfg.Temperature,
		}, client),
	}
}

func modelFor(cfg *config.Config, kind source.Kind) string {
	if kind == source.KindLocal {
		return cfg.OllamaModel
	}
	return cfg.RemoteModel
}
