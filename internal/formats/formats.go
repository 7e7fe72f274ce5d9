// Package formats organizes an extractor format list into the choices shown
// to the user.
package formats

import (
	"fmt"
	"sort"

	"ytdash/internal/model"
	"ytdash/internal/util/format"
)

// Option types.
const (
	TypePreset   = "preset"
	TypeVideo    = "video+audio"
	TypeCombined = "combined"
	TypeAudio    = "audio"
)

const (
	maxCombined = 5
	maxVideo    = 15
	maxAudio    = 8

	combinedMaxHeight = 720
)

// Option is one selectable format.
type Option struct {
	FormatID string  `json:"format_id"` // value for yt-dlp -f
	SourceID string  `json:"source_id,omitempty"`
	Type     string  `json:"type"`
	Quality  string  `json:"quality"`
	Ext      string  `json:"ext"`
	Height   int     `json:"height,omitempty"`
	ABR      int     `json:"abr,omitempty"`
	FPS      float64 `json:"fps,omitempty"`
	Codec    string  `json:"codec,omitempty"`
	Filesize int64   `json:"filesize,omitempty"`
	Display  string  `json:"display"`
}

// Catalogue groups the options of one video, each list highest quality first.
type Catalogue struct {
	Preset   []Option `json:"preset"`
	Video    []Option `json:"video"`
	Combined []Option `json:"combined"`
	Audio    []Option `json:"audio"`
}

// Build sorts info's formats into a Catalogue. Formats are deduplicated by
// height (video) or bitrate and extension (audio); the first one seen wins.
func Build(info model.VideoInfo) Catalogue {
	var c Catalogue
	seenVideo := map[int]bool{}
	seenCombined := map[int]bool{}
	seenAudio := map[string]bool{}

	for _, f := range info.Formats {
		switch {
		case f.HasVideo() && f.HasAudio() && f.Height > 0:
			if seenCombined[f.Height] || f.Height > combinedMaxHeight {
				continue
			}
			seenCombined[f.Height] = true
			c.Combined = append(c.Combined, Option{
				FormatID: f.FormatID,
				SourceID: f.FormatID,
				Type:     TypeCombined,
				Quality:  fmt.Sprintf("%dp", f.Height),
				Ext:      f.Ext,
				Height:   f.Height,
				FPS:      f.FPS,
				Filesize: f.Size(),
				Display:  fmt.Sprintf("%dp Combined (%s) - %s", f.Height, f.Ext, format.Size(f.Size())),
			})
		case f.HasVideo() && !f.HasAudio() && f.Height > 0:
			if seenVideo[f.Height] {
				continue
			}
			seenVideo[f.Height] = true
			c.Video = append(c.Video, Option{
				FormatID: f.FormatID + "+bestaudio",
				SourceID: f.FormatID,
				Type:     TypeVideo,
				Quality:  fmt.Sprintf("%dp", f.Height),
				Ext:      f.Ext,
				Height:   f.Height,
				FPS:      f.FPS,
				Codec:    truncate(f.VCodec, 15),
				Filesize: f.Size(),
				Display:  fmt.Sprintf("%dp HD (%s) - %s + Audio", f.Height, f.Ext, format.Size(f.Size())),
			})
		case f.HasAudio() && !f.HasVideo():
			abr := int(f.ABR)
			key := fmt.Sprintf("%d/%s", abr, f.Ext)
			if abr <= 0 || seenAudio[key] {
				continue
			}
			seenAudio[key] = true
			c.Audio = append(c.Audio, Option{
				FormatID: f.FormatID,
				SourceID: f.FormatID,
				Type:     TypeAudio,
				Quality:  fmt.Sprintf("%dkbps", abr),
				Ext:      f.Ext,
				ABR:      abr,
				Codec:    truncate(f.ACodec, 15),
				Filesize: f.Size(),
				Display:  fmt.Sprintf("Audio %dkbps (%s) - %s", abr, f.Ext, format.Size(f.Size())),
			})
		}
	}

	byHeight := func(list []Option) {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Height > list[j].Height })
	}
	byHeight(c.Video)
	byHeight(c.Combined)
	sort.SliceStable(c.Audio, func(i, j int) bool { return c.Audio[i].ABR > c.Audio[j].ABR })

	c.Video = head(c.Video, maxVideo)
	c.Combined = head(c.Combined, maxCombined)
	c.Audio = head(c.Audio, maxAudio)

	if len(c.Video) > 0 && c.Video[0].Height >= 1080 {
		c.Preset = append(c.Preset, Option{
			FormatID: "best[height<=1080]",
			Type:     TypePreset,
			Quality:  "Best ≤1080p",
			Ext:      "mp4",
			Display:  "Best quality ≤1080p (Recommended)",
		})
	}
	c.Preset = append(c.Preset, Option{
		FormatID: "best[height<=720]",
		Type:     TypePreset,
		Quality:  "Best ≤720p",
		Ext:      "mp4",
		Display:  "Best quality ≤720p (Fast)",
	})
	return c
}

// ForKind returns the options offered for a download type. Video-only
// choices drop the "+bestaudio" suffix so no audio track is merged.
func (c Catalogue) ForKind(kind model.DownloadKind) []Option {
	switch kind {
	case model.KindAudio:
		return append([]Option(nil), c.Audio...)
	case model.KindVideo:
		out := make([]Option, 0, len(c.Video))
		for _, o := range c.Video {
			o.FormatID = o.SourceID
			o.Type = "video"
			o.Display = fmt.Sprintf("%s Video only (%s) - %s", o.Quality, o.Ext, format.Size(o.Filesize))
			out = append(out, o)
		}
		return out
	default:
		out := make([]Option, 0, len(c.Preset)+len(c.Video)+len(c.Combined))
		out = append(out, c.Preset...)
		out = append(out, c.Video...)
		return append(out, c.Combined...)
	}
}

func head(list []Option, n int) []Option {
	if len(list) > n {
		return list[:n]
	}
	return list
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
