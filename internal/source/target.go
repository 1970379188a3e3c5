package source

import (
	"fmt"
	"net/url"
)

// buildTargetURL appends path to the base URL's own path, so a base such as
// https://host/openai keeps its prefix.
func buildTargetURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse upstream url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("parse upstream url: %q is not absolute", baseURL)
	}
	return u.JoinPath(path).String(), nil
}
