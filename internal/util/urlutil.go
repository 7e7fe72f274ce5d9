package util

import (
	"fmt"
	"net/url"
	"strings"
)

var youtubeHosts = map[string]bool{
	"youtube.com":          true,
	"m.youtube.com":        true,
	"music.youtube.com":    true,
	"youtu.be":             true,
	"youtube-nocookie.com": true,
}

// NormalizeVideoURL parses raw, defaulting the scheme to https, and checks
// that it targets a YouTube host. It returns the normalized URL string.
func NormalizeVideoURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty URL")
	}
	u, err := url.Parse(raw)
	if err == nil && (u.Scheme == "" || u.Host == "") {
		if u2, e2 := url.Parse("https://" + raw); e2 == nil {
			u = u2
		}
	}
	if err != nil || u == nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid URL %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid URL %q: scheme must be http or https", raw)
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if !youtubeHosts[host] {
		return "", fmt.Errorf("unsupported URL %q: only YouTube links are supported (youtube.com, youtu.be)", raw)
	}
	if host == "youtu.be" && strings.Trim(u.Path, "/") == "" {
		return "", fmt.Errorf("invalid URL %q: missing video id", raw)
	}
	return u.String(), nil
}
