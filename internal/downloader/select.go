package downloader

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ytdash/internal/model"
)

// ErrNoOutput is returned when yt-dlp exits cleanly but left no media file.
var ErrNoOutput = errors.New("no output file found")

// SelectDownloadedFile finds the best media file in workdir.
// Partial downloads and sidecar files (subtitles, thumbnails, info JSON) are
// skipped. Audio downloads prefer audio extensions.
func SelectDownloadedFile(workdir string, kind model.DownloadKind) (string, error) {
	entries, err := os.ReadDir(workdir)
	if err != nil {
		return "", err
	}

	var candidates []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if IsPartial(name) || IsSidecar(name) {
			continue
		}
		candidates = append(candidates, filepath.Join(workdir, name))
	}
	if len(candidates) == 0 {
		return "", ErrNoOutput
	}

	audio := kind == model.KindAudio
	sort.SliceStable(candidates, func(i, j int) bool {
		pri := extPriority(filepath.Ext(candidates[i]), audio)
		prj := extPriority(filepath.Ext(candidates[j]), audio)
		if pri == prj {
			return candidates[i] < candidates[j]
		}
		return pri < prj
	})

	return candidates[0], nil
}

// IsPartial reports whether name is an in-progress yt-dlp file, including
// fragment files such as "x.mp4.part-Frag3".
func IsPartial(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range []string{".part", ".ytdl", ".temp", ".frag"} {
		if strings.HasSuffix(lower, s) || strings.Contains(lower, s+"-") {
			return true
		}
	}
	return false
}

// IsSidecar reports whether name is a subtitle, thumbnail or metadata file
// written next to the media.
func IsSidecar(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".vtt", ".srt", ".ass", ".lrc", ".jpg", ".jpeg", ".png", ".webp", ".json", ".description":
		return true
	}
	return false
}

// extPriority returns a priority score for file extensions (lower = better).
func extPriority(ext string, audio bool) int {
	ext = strings.ToLower(ext)
	video := map[string]int{".mp4": 0, ".mkv": 1, ".webm": 2, ".mov": 3, ".avi": 4, ".flv": 5}
	sound := map[string]int{".mp3": 0, ".m4a": 1, ".opus": 2, ".ogg": 3, ".flac": 4, ".wav": 5, ".aac": 6}

	first, second := video, sound
	if audio {
		first, second = sound, video
	}
	if p, ok := first[ext]; ok {
		return p
	}
	if p, ok := second[ext]; ok {
		return 10 + p
	}
	return 100
}
