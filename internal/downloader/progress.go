package downloader

import (
	"math"
	"strconv"
	"strings"

	"ytdash/internal/progress"
)

// LineResult is what one line of yt-dlp output tells us.
type LineResult struct {
	// Event is set when the line reports progress.
	Event *progress.Event
	// Path is a file yt-dlp wrote or is writing.
	Path string
	// Final marks Path as the post-move location of the finished file.
	Final bool
}

// postprocessors are the bracketed tags yt-dlp prints while post-processing.
var postprocessors = map[string]bool{
	"Merger":              true,
	"ExtractAudio":        true,
	"VideoRemuxer":        true,
	"VideoConvertor":      true,
	"EmbedSubtitle":       true,
	"EmbedThumbnail":      true,
	"ThumbnailsConvertor": true,
	"Metadata":            true,
	"FixupM3u8":           true,
	"FixupM4a":            true,
	"FixupStretched":      true,
	"FixupDuplicateMoov":  true,
	"MoveFiles":           true,
}

// ParseLine parses one line of yt-dlp output. ok is false for lines that
// carry nothing we use.
func ParseLine(line string) (LineResult, bool) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return LineResult{}, false
	case strings.HasPrefix(line, markerFile):
		p := strings.TrimSpace(strings.TrimPrefix(line, markerFile))
		if p == "" || p == "NA" {
			return LineResult{}, false
		}
		return LineResult{Path: p, Final: true}, true
	case strings.HasPrefix(line, markerProgress):
		return parseTemplateProgress(strings.TrimSpace(strings.TrimPrefix(line, markerProgress)))
	case strings.HasPrefix(line, markerPostprocess):
		return parseTemplatePostprocess(strings.TrimSpace(strings.TrimPrefix(line, markerPostprocess)))
	case strings.HasPrefix(line, "[download]"):
		return parseLegacyDownload(strings.TrimSpace(strings.TrimPrefix(line, "[download]")))
	case strings.HasPrefix(line, "["):
		return parseLegacyPostprocess(line)
	}
	return LineResult{}, false
}

// status|downloaded|total|estimate|speed|eta|filename
func parseTemplateProgress(rest string) (LineResult, bool) {
	f := strings.SplitN(rest, "|", 7)
	if len(f) < 6 {
		return LineResult{}, false
	}

	ev := progress.Event{Phase: progress.PhaseDownloading}
	ev.BytesDone = intField(f[1])
	ev.BytesTotal = intField(f[2])
	if ev.BytesTotal == nil {
		ev.BytesTotal = intField(f[3])
	}
	ev.Speed = floatField(f[4])
	ev.ETA = intField(f[5])

	var path string
	if len(f) == 7 && f[6] != "NA" {
		path = strings.TrimSpace(f[6])
	}

	switch strings.TrimSpace(f[0]) {
	case "downloading":
	case "finished":
		// per-file completion; the operation itself may still post-process
		switch {
		case ev.BytesTotal != nil:
			ev.BytesDone = progress.Int64(*ev.BytesTotal)
		case ev.BytesDone != nil:
			ev.BytesTotal = progress.Int64(*ev.BytesDone)
		}
		ev.ETA = progress.Int64(0)
	default:
		return LineResult{}, false
	}
	return LineResult{Event: &ev, Path: path}, true
}

// status|postprocessor
func parseTemplatePostprocess(rest string) (LineResult, bool) {
	status, name, _ := strings.Cut(rest, "|")
	switch strings.TrimSpace(status) {
	case "started", "processing", "finished":
	default:
		return LineResult{}, false
	}
	name = strings.TrimSpace(name)
	if name == "NA" {
		name = ""
	}
	return LineResult{Event: &progress.Event{Phase: progress.PhasePostProcessing, Detail: name}}, true
}

// parseLegacyDownload handles the human-readable progress lines, e.g.
//
//	45.2% of ~10.00MiB at  1.50MiB/s ETA 00:04
//	100% of 10.00MiB in 00:03
//	Destination: /tmp/x/clip.f137.mp4
//	/tmp/x/clip.mp4 has already been downloaded
func parseLegacyDownload(rest string) (LineResult, bool) {
	if p, ok := strings.CutPrefix(rest, "Destination:"); ok {
		return LineResult{Path: strings.TrimSpace(p)}, true
	}
	if p, ok := strings.CutSuffix(rest, " has already been downloaded"); ok {
		ev := progress.Event{Phase: progress.PhaseDownloading, BytesDone: progress.Int64(1), BytesTotal: progress.Int64(1)}
		return LineResult{Event: &ev, Path: strings.TrimSpace(p)}, true
	}

	idx := strings.Index(rest, "%")
	if idx == -1 {
		return LineResult{}, false
	}
	pct, err := strconv.ParseFloat(strings.TrimSpace(rest[:idx]), 64)
	if err != nil || math.IsNaN(pct) {
		return LineResult{}, false
	}

	ev := progress.Event{Phase: progress.PhaseDownloading}

	if _, after, ok := strings.Cut(rest, " of "); ok {
		if total, ok := ParseSize(firstWord(after)); ok && total > 0 {
			ev.BytesTotal = progress.Int64(total)
			ev.BytesDone = progress.Int64(int64(math.Round(pct / 100 * float64(total))))
		}
	}
	if _, after, ok := strings.Cut(rest, " at "); ok {
		if speed, ok := ParseSize(strings.TrimSuffix(firstWord(after), "/s")); ok {
			v := float64(speed)
			ev.Speed = &v
		}
	}
	if _, after, ok := strings.Cut(rest, "ETA "); ok {
		if eta, err := parseETA(firstWord(after)); err == nil {
			ev.ETA = progress.Int64(eta)
		}
	}
	return LineResult{Event: &ev}, true
}

// parseLegacyPostprocess maps "[Merger] Merging formats into "x.mp4"" style lines.
func parseLegacyPostprocess(line string) (LineResult, bool) {
	end := strings.Index(line, "]")
	if end < 1 {
		return LineResult{}, false
	}
	tag := line[1:end]
	if !postprocessors[tag] {
		return LineResult{}, false
	}
	rest := strings.TrimSpace(line[end+1:])
	res := LineResult{Event: &progress.Event{Phase: progress.PhasePostProcessing, Detail: tag}}

	switch {
	case strings.HasPrefix(rest, "Merging formats into "):
		res.Path = strings.Trim(strings.TrimPrefix(rest, "Merging formats into "), `"`)
	case strings.HasPrefix(rest, "Destination:"):
		res.Path = strings.TrimSpace(strings.TrimPrefix(rest, "Destination:"))
	}
	return res, true
}

// ParseSize parses yt-dlp size strings such as "10.00MiB", "~1.5GB" or
// "512B". It returns false for "Unknown" and anything unparsable.
func ParseSize(s string) (int64, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "~")
	if s == "" || strings.EqualFold(s, "unknown") || s == "N/A" {
		return 0, false
	}

	i := 0
	for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
		i++
	}
	v, err := strconv.ParseFloat(s[:i], 64)
	if err != nil || v < 0 {
		return 0, false
	}
	mult, ok := sizeUnits[s[i:]]
	if !ok {
		return 0, false
	}
	return int64(math.Round(v * mult)), true
}

var sizeUnits = map[string]float64{
	"":    1,
	"B":   1,
	"KiB": 1 << 10,
	"MiB": 1 << 20,
	"GiB": 1 << 30,
	"TiB": 1 << 40,
	"KB":  1e3,
	"kB":  1e3,
	"MB":  1e6,
	"GB":  1e9,
	"TB":  1e12,
}

// parseETA parses duration strings like "00:04", "01:23:45", or plain seconds.
func parseETA(s string) (int64, error) {
	var total int64
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, strconv.ErrSyntax
	}
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return 0, err
		}
		if n < 0 {
			return 0, strconv.ErrRange
		}
		total = total*60 + n
	}
	return total, nil
}

func intField(s string) *int64 {
	v := floatField(s)
	if v == nil {
		return nil
	}
	return progress.Int64(int64(math.Round(*v)))
}

// floatField treats "NA", "None" and anything unparsable as absent.
func floatField(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "NA" || s == "None" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return nil
	}
	return &v
}

func firstWord(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ' '); i != -1 {
		return s[:i]
	}
	return s
}
