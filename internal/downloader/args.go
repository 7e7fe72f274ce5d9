package downloader

import (
	"fmt"
	"path/filepath"
	"strings"

	"ytdash/internal/model"
	"ytdash/internal/util"
)

// UserAgent is sent with every request to avoid some extractor blocks.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Markers prefixed to the lines we ask yt-dlp to print. ParseLine keys on them.
const (
	markerProgress    = "[ytdash-progress]"
	markerPostprocess = "[ytdash-postprocess]"
	markerFile        = "[ytdash-file]"
)

var (
	downloadTemplate = "download:" + markerProgress + " " + strings.Join([]string{
		"%(progress.status)s",
		"%(progress.downloaded_bytes)s",
		"%(progress.total_bytes)s",
		"%(progress.total_bytes_estimate)s",
		"%(progress.speed)s",
		"%(progress.eta)s",
		"%(progress.filename)s",
	}, "|")
	postprocessTemplate = "postprocess:" + markerPostprocess + " %(progress.status)s|%(progress.postprocessor)s"
	finalPathTemplate   = "after_move:" + markerFile + " %(filepath)s"
)

// FormatSelector returns the yt-dlp -f expression for the requested options.
// An explicit FormatID always wins.
func FormatSelector(o model.DownloadOptions) string {
	if o.FormatID != "" {
		return o.FormatID
	}

	h := ""
	if o.MaxHeight > 0 {
		h = fmt.Sprintf("[height<=%d]", o.MaxHeight)
	}

	switch o.Kind {
	case model.KindAudio:
		return "bestaudio/best"
	case model.KindVideo:
		switch o.Container {
		case model.ContainerMP4, model.ContainerWebM:
			return fmt.Sprintf("bestvideo%s[ext=%s]/bestvideo%s", h, o.Container, h)
		default:
			return "bestvideo" + h
		}
	default:
		switch o.Container {
		case model.ContainerMP4:
			return fmt.Sprintf("bestvideo%s[ext=mp4]+bestaudio[ext=m4a]/best%s[ext=mp4]/bestvideo%s+bestaudio/best%s/best", h, h, h, h)
		case model.ContainerWebM:
			return fmt.Sprintf("bestvideo%s[ext=webm]+bestaudio[ext=webm]/best%s[ext=webm]/bestvideo%s+bestaudio/best%s/best", h, h, h, h)
		default:
			return fmt.Sprintf("bestvideo%s+bestaudio/best%s/best", h, h)
		}
	}
}

// OutputTemplate returns the -o template for workdir.
func OutputTemplate(workdir string, o model.DownloadOptions) string {
	name := "%(title)s"
	if o.CustomName != "" {
		name = util.SanitizeFilename(o.CustomName)
	}
	return filepath.Join(workdir, name+".%(ext)s")
}

// BuildArgs assembles the full yt-dlp argument list for one download.
func BuildArgs(url, workdir string, o model.DownloadOptions, ffmpegPath string) []string {
	args := []string{
		"--no-playlist",
		"--newline",
		"--progress",
		"--no-simulate",
		"-f", FormatSelector(o),
		"-o", OutputTemplate(workdir, o),
		"--progress-template", downloadTemplate,
		"--progress-template", postprocessTemplate,
		"--print", finalPathTemplate,
		"--add-header", "User-Agent:" + UserAgent,
	}
	if ffmpegPath != "" {
		args = append(args, "--ffmpeg-location", ffmpegPath)
	}

	switch o.Kind {
	case model.KindAudio:
		args = append(args, "-x")
		if o.AudioFormat != "" {
			args = append(args, "--audio-format", o.AudioFormat)
		}
		args = append(args, "--audio-quality", audioQuality(o.AudioQuality))
	case model.KindVideo:
		if o.Container == model.ContainerMP4 || o.Container == model.ContainerWebM {
			args = append(args, "--remux-video", string(o.Container))
		}
	default:
		if o.Container == model.ContainerMP4 || o.Container == model.ContainerWebM {
			args = append(args,
				"--merge-output-format", string(o.Container),
				"--remux-video", string(o.Container),
			)
		}
	}

	if o.WriteSubs || o.EmbedSubs {
		args = append(args, "--sub-langs", "en.*")
	}
	if o.WriteSubs {
		args = append(args, "--write-subs")
	}
	if o.EmbedSubs && o.Kind != model.KindAudio {
		args = append(args, "--embed-subs")
	}
	if o.WriteThumbnail {
		args = append(args, "--write-thumbnail")
	}
	if o.EmbedThumbnail {
		args = append(args, "--embed-thumbnail")
	}

	return append(args, "--", url)
}

// audioQuality maps "best" to yt-dlp's VBR 0 and kbps values to "<n>K".
func audioQuality(q string) string {
	switch q {
	case "", "best":
		return "0"
	default:
		return q + "K"
	}
}
