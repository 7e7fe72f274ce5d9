package downloader

import "ytdash/internal/model"

// YTDLPInfo mirrors fields from yt-dlp --dump-json output that we care about.
type YTDLPInfo struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Uploader    string        `json:"uploader"`
	Channel     string        `json:"channel"`
	Duration    float64       `json:"duration"`
	ViewCount   int64         `json:"view_count"`
	LikeCount   int64         `json:"like_count"`
	UploadDate  string        `json:"upload_date"`
	Thumbnail   string        `json:"thumbnail"`
	Description string        `json:"description"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	WebpageURL  string        `json:"webpage_url"`
	IsLive      bool          `json:"is_live"`
	Formats     []YTDLPFormat `json:"formats"`
}

// YTDLPFormat is one entry of the "formats" array. Numeric fields are
// floats because yt-dlp emits null or fractional values for several of them.
type YTDLPFormat struct {
	FormatID       string   `json:"format_id"`
	Ext            string   `json:"ext"`
	Width          *float64 `json:"width"`
	Height         *float64 `json:"height"`
	FPS            *float64 `json:"fps"`
	VCodec         string   `json:"vcodec"`
	ACodec         string   `json:"acodec"`
	ABR            *float64 `json:"abr"`
	Filesize       *float64 `json:"filesize"`
	FilesizeApprox *float64 `json:"filesize_approx"`
	FormatNote     string   `json:"format_note"`
}

func (i YTDLPInfo) toModel() model.VideoInfo {
	v := model.VideoInfo{
		ID:          i.ID,
		Title:       i.Title,
		Uploader:    i.Uploader,
		Channel:     i.Channel,
		Duration:    i.Duration,
		ViewCount:   i.ViewCount,
		LikeCount:   i.LikeCount,
		UploadDate:  i.UploadDate,
		Thumbnail:   i.Thumbnail,
		Description: i.Description,
		Width:       i.Width,
		Height:      i.Height,
		WebpageURL:  i.WebpageURL,
		IsLive:      i.IsLive,
	}
	if v.Uploader == "" {
		v.Uploader = i.Channel
	}
	for _, f := range i.Formats {
		v.Formats = append(v.Formats, model.Format{
			FormatID:       f.FormatID,
			Ext:            f.Ext,
			Width:          int(num(f.Width)),
			Height:         int(num(f.Height)),
			FPS:            num(f.FPS),
			VCodec:         f.VCodec,
			ACodec:         f.ACodec,
			ABR:            num(f.ABR),
			Filesize:       int64(num(f.Filesize)),
			FilesizeApprox: int64(num(f.FilesizeApprox)),
			FormatNote:     f.FormatNote,
		})
	}
	return v
}

func num(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
