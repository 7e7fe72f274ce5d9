// Package cli holds flag definitions shared by the ytdash commands.
package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"ytdash/internal/model"
)

// BindDownloadFlags registers the per-download flags on fs. Defaults shown
// in help are the built-in ones; config file values apply when a flag is not
// given (see DownloadOptions).
func BindDownloadFlags(fs *pflag.FlagSet) {
	d := model.DefaultDownloadOptions()
	fs.StringP("type", "t", string(d.Kind), "What to download: video+audio, audio, video")
	fs.StringP("format", "f", "", "Explicit yt-dlp format spec (overrides --type/--max-height/--container)")
	fs.Int("max-height", d.MaxHeight, "Maximum video height in pixels (0 = no limit)")
	fs.String("container", string(d.Container), "Preferred container: mp4, webm, any")
	fs.String("audio-format", d.AudioFormat, "Audio format for --type audio: "+strings.Join(model.AudioFormats, ", "))
	fs.String("audio-quality", d.AudioQuality, "Audio quality: "+strings.Join(model.AudioQualities, ", "))
	fs.Bool("embed-subs", false, "Embed subtitles into the video")
	fs.Bool("embed-thumbnail", false, "Embed the thumbnail as cover art")
	fs.Bool("write-subs", false, "Save subtitles next to the output")
	fs.Bool("write-thumbnail", false, "Save the thumbnail next to the output")
	fs.StringP("name", "n", "", "Custom output file name (without extension)")
	fs.String("trim-start", "", "Trim start (seconds, MM:SS or HH:MM:SS)")
	fs.String("trim-end", "", "Trim end (seconds, MM:SS or HH:MM:SS)")
	fs.Bool("trim-reencode", false, "Re-encode when trimming for frame-accurate cuts")
}

// DownloadOptions overlays the flags explicitly set in fs on base and
// validates the result.
func DownloadOptions(fs *pflag.FlagSet, base model.DownloadOptions) (model.DownloadOptions, error) {
	o := base
	var err error

	str := func(name string, dst *string) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetString(name)
		}
	}
	boolean := func(name string, dst *bool) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetBool(name)
		}
	}

	var kind, container string
	str("type", &kind)
	str("container", &container)
	if kind != "" {
		o.Kind = model.DownloadKind(kind)
	}
	if container != "" {
		o.Container = model.Container(container)
	}
	str("format", &o.FormatID)
	str("audio-format", &o.AudioFormat)
	str("audio-quality", &o.AudioQuality)
	str("name", &o.CustomName)
	boolean("embed-subs", &o.EmbedSubs)
	boolean("embed-thumbnail", &o.EmbedThumbnail)
	boolean("write-subs", &o.WriteSubs)
	boolean("write-thumbnail", &o.WriteThumbnail)
	boolean("trim-reencode", &o.TrimReencode)
	if err == nil && fs.Changed("max-height") {
		o.MaxHeight, err = fs.GetInt("max-height")
	}
	if err != nil {
		return o, err
	}

	for _, t := range []struct {
		flag string
		dst  *float64
	}{
		{"trim-start", &o.TrimStart},
		{"trim-end", &o.TrimEnd},
	} {
		if !fs.Changed(t.flag) {
			continue
		}
		raw, _ := fs.GetString(t.flag)
		sec, perr := ParseTimestamp(raw)
		if perr != nil {
			return o, fmt.Errorf("invalid --%s: %w", t.flag, perr)
		}
		*t.dst = sec
	}
	return o.Normalize()
}

// ParseTimestamp parses "90", "90.5", "1:30" or "01:02:03.5" into seconds.
func ParseTimestamp(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%q: expected [[HH:]MM:]SS", s)
	}
	var total float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("%q: expected [[HH:]MM:]SS", s)
		}
		// minutes and seconds fields are bounded once a larger unit is present
		if i > 0 && v >= 60 {
			return 0, fmt.Errorf("%q: field %q out of range", s, p)
		}
		total = total*60 + v
	}
	return total, nil
}
