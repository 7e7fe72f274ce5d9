package encoder

import (
	"path/filepath"
	"strconv"
	"strings"
)

// TrimSpec describes a cut of the input.
type TrimSpec struct {
	Start    float64 // seconds; 0 = from the beginning
	End      float64 // seconds; 0 = to the end
	Reencode bool    // false = stream copy (fast, keyframe-aligned)
}

// Duration returns the length of the cut, or 0 when it runs to the end of
// an input of unknown length.
func (t TrimSpec) Duration(sourceSec float64) float64 {
	switch {
	case t.End > 0:
		return t.End - t.Start
	case sourceSec > t.Start:
		return sourceSec - t.Start
	default:
		return 0
	}
}

// BuildTrimArgs constructs ffmpeg arguments that cut input into outputPath.
func BuildTrimArgs(inputPath, outputPath string, t TrimSpec, includeProgress bool) []string {
	args := []string{"-y", "-hide_banner"}
	if t.Start > 0 {
		args = append(args, "-ss", seconds(t.Start))
	}
	args = append(args, "-i", inputPath)
	if t.End > 0 {
		args = append(args, "-t", seconds(t.End-t.Start))
	}

	switch {
	case !t.Reencode:
		args = append(args, "-c", "copy", "-avoid_negative_ts", "make_zero")
	case isAudioExt(outputPath):
		args = append(args, "-vn")
	case isH264Container(outputPath):
		args = append(args,
			"-c:v", "libx264",
			"-preset", "veryfast",
			"-crf", "22",
			"-pix_fmt", "yuv420p",
			"-c:a", "aac",
			"-b:a", "192k",
		)
	}
	if ext := strings.ToLower(filepath.Ext(outputPath)); ext == ".mp4" || ext == ".m4a" || ext == ".mov" {
		args = append(args, "-movflags", "+faststart")
	}

	if includeProgress {
		args = append(args, "-progress", "pipe:1", "-nostats")
	}

	return append(args, outputPath)
}

// TrimmedPath returns the default output path for a trim of inputPath.
func TrimmedPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	return strings.TrimSuffix(inputPath, ext) + "_trimmed" + ext
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func isAudioExt(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".mp3", ".m4a", ".opus", ".ogg", ".flac", ".wav", ".aac":
		return true
	}
	return false
}

func isH264Container(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".mp4", ".mov", ".mkv":
		return true
	}
	return false
}
