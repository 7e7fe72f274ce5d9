package model

import (
	"fmt"
	"strings"
)

// DownloadKind selects which streams an operation fetches.
type DownloadKind string

const (
	KindVideoAudio DownloadKind = "video+audio"
	KindAudio      DownloadKind = "audio"
	KindVideo      DownloadKind = "video"
)

// Container is the preferred output container for video downloads.
type Container string

const (
	ContainerMP4  Container = "mp4"
	ContainerWebM Container = "webm"
	ContainerAny  Container = "any"
)

// AudioFormats lists the accepted audio extraction targets.
var AudioFormats = []string{"mp3", "m4a", "wav", "flac", "ogg"}

// AudioQualities lists the accepted audio quality presets (kbps or "best").
var AudioQualities = []string{"best", "320", "256", "192", "128", "96"}

// MaxHeights lists the resolution caps offered by the UI; 0 means no limit.
var MaxHeights = []int{0, 2160, 1440, 1080, 720, 480}

// DownloadOptions carries every user-selectable knob for one operation.
type DownloadOptions struct {
	Kind      DownloadKind `json:"kind" mapstructure:"kind"`
	FormatID  string       `json:"format_id,omitempty" mapstructure:"format_id"` // explicit yt-dlp format spec; overrides Kind/MaxHeight/Container selection
	MaxHeight int          `json:"max_height" mapstructure:"max_height"`         // 0 = no limit
	Container Container    `json:"container" mapstructure:"container"`

	AudioFormat  string `json:"audio_format,omitempty" mapstructure:"audio_format"`
	AudioQuality string `json:"audio_quality,omitempty" mapstructure:"audio_quality"`

	EmbedSubs      bool `json:"embed_subs" mapstructure:"embed_subs"`
	EmbedThumbnail bool `json:"embed_thumbnail" mapstructure:"embed_thumbnail"`
	WriteSubs      bool `json:"write_subs" mapstructure:"write_subs"`
	WriteThumbnail bool `json:"write_thumbnail" mapstructure:"write_thumbnail"`

	CustomName string `json:"custom_name,omitempty" mapstructure:"custom_name"`

	TrimStart    float64 `json:"trim_start,omitempty" mapstructure:"trim_start"` // seconds; 0 = from the beginning
	TrimEnd      float64 `json:"trim_end,omitempty" mapstructure:"trim_end"`     // seconds; 0 = to the end
	TrimReencode bool    `json:"trim_reencode,omitempty" mapstructure:"trim_reencode"`
}

// DefaultDownloadOptions mirrors the dashboard defaults: video with audio,
// capped at 1080p, mp4 container.
func DefaultDownloadOptions() DownloadOptions {
	return DownloadOptions{
		Kind:         KindVideoAudio,
		MaxHeight:    1080,
		Container:    ContainerMP4,
		AudioFormat:  "mp3",
		AudioQuality: "best",
	}
}

// WantsTrim reports whether a trim step is requested.
func (o DownloadOptions) WantsTrim() bool {
	return o.TrimStart > 0 || o.TrimEnd > 0
}

// Normalize fills empty fields with defaults and validates the rest.
func (o DownloadOptions) Normalize() (DownloadOptions, error) {
	def := DefaultDownloadOptions()

	o.Kind = DownloadKind(strings.ToLower(strings.TrimSpace(string(o.Kind))))
	switch o.Kind {
	case "":
		o.Kind = def.Kind
	case KindVideoAudio, KindAudio, KindVideo:
	default:
		return o, fmt.Errorf("invalid download type %q (valid: video+audio|audio|video)", o.Kind)
	}

	o.Container = Container(strings.ToLower(strings.TrimSpace(string(o.Container))))
	switch o.Container {
	case "":
		o.Container = def.Container
	case ContainerMP4, ContainerWebM, ContainerAny:
	default:
		return o, fmt.Errorf("invalid container %q (valid: mp4|webm|any)", o.Container)
	}

	if o.MaxHeight < 0 {
		return o, fmt.Errorf("invalid max height %d", o.MaxHeight)
	}

	o.AudioFormat = strings.ToLower(strings.TrimSpace(o.AudioFormat))
	if o.AudioFormat == "" {
		o.AudioFormat = def.AudioFormat
	} else if !contains(AudioFormats, o.AudioFormat) {
		return o, fmt.Errorf("invalid audio format %q (valid: %s)", o.AudioFormat, strings.Join(AudioFormats, "|"))
	}

	o.AudioQuality = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(o.AudioQuality), "k"))
	if o.AudioQuality == "" {
		o.AudioQuality = def.AudioQuality
	} else if !contains(AudioQualities, o.AudioQuality) {
		return o, fmt.Errorf("invalid audio quality %q (valid: %s)", o.AudioQuality, strings.Join(AudioQualities, "|"))
	}

	o.FormatID = strings.TrimSpace(o.FormatID)
	o.CustomName = strings.TrimSpace(o.CustomName)

	if o.TrimStart < 0 || o.TrimEnd < 0 {
		return o, fmt.Errorf("trim points must not be negative")
	}
	if o.TrimEnd > 0 && o.TrimEnd <= o.TrimStart {
		return o, fmt.Errorf("trim end (%.2fs) must be after trim start (%.2fs)", o.TrimEnd, o.TrimStart)
	}
	return o, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
