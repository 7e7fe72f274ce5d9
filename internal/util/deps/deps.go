package deps

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

var (
	ErrDownloaderNotFound = errors.New("could not find yt-dlp or youtube-dl in PATH; please install yt-dlp")
	ErrFFmpegNotFound     = errors.New("could not find ffmpeg; please install ffmpeg")
)

// ffmpegFallbacks are checked when ffmpeg is not on PATH (container images
// and hosted environments often drop it next to the app).
var ffmpegFallbacks = []string{
	"/usr/bin/ffmpeg",
	"/usr/local/bin/ffmpeg",
	"./ffmpeg/ffmpeg",
	"./ffmpeg",
}

// FindDownloader returns the path to yt-dlp or youtube-dl.
// If customPath is non-empty, it tries that path or looks it up in PATH.
func FindDownloader(customPath string) (string, error) {
	if customPath != "" {
		return findCustom(customPath, "downloader")
	}
	if p, err := exec.LookPath("yt-dlp"); err == nil {
		return p, nil
	}
	if p, err := exec.LookPath("youtube-dl"); err == nil {
		return p, nil
	}
	return "", ErrDownloaderNotFound
}

// FindFFmpeg returns the path to ffmpeg: customPath if given, then PATH,
// then a few well-known locations.
func FindFFmpeg(customPath string) (string, error) {
	if customPath != "" {
		return findCustom(customPath, "ffmpeg")
	}
	if p, err := exec.LookPath("ffmpeg"); err == nil {
		return p, nil
	}
	for _, p := range ffmpegFallbacks {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	return "", ErrFFmpegNotFound
}

func findCustom(p, what string) (string, error) {
	if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
		return p, nil
	}
	if lp, err := exec.LookPath(p); err == nil {
		return lp, nil
	}
	return "", fmt.Errorf("could not find %s at %q", what, p)
}
