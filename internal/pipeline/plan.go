package pipeline

import (
	"context"
	"errors"
	"fmt"

	"ytdash/internal/downloader"
	"ytdash/internal/encoder"
	"ytdash/internal/model"
	"ytdash/internal/util"
)

// Plan describes what Run would do for a URL, without downloading.
type Plan struct {
	URL            string                `json:"url"`
	Title          string                `json:"title"`
	Uploader       string                `json:"uploader"`
	ID             string                `json:"id"`
	DurationSec    float64               `json:"duration"`
	Options        model.DownloadOptions `json:"options"`
	FormatSelector string                `json:"format_selector"`
	OutputTemplate string                `json:"output_template"`
	DownloaderPath string                `json:"downloader_path"`
	DownloaderArgs []string              `json:"downloader_args"`
	FFmpegPath     string                `json:"ffmpeg_path,omitempty"`
	TrimArgs       []string              `json:"trim_args,omitempty"`
	OutDir         string                `json:"out_dir,omitempty"`
}

// Plan fetches metadata and returns the commands Run would execute.
func (s *Service) Plan(ctx context.Context, rawURL string, opts model.DownloadOptions) (Plan, error) {
	url, err := util.NormalizeVideoURL(rawURL)
	if err != nil {
		return Plan{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if opts, err = opts.Normalize(); err != nil {
		return Plan{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if s.dlPath == "" {
		return Plan{}, fmt.Errorf("%w: %w", ErrInvalidInput, errors.New("downloader path is required"))
	}

	info, err := downloader.FetchInfo(ctx, url, s.downloaderOptions(s.log, opts))
	if err != nil {
		return Plan{}, fmt.Errorf("%w: %w", ErrDownload, err)
	}

	const workdir = "<workdir>"
	p := Plan{
		URL:            url,
		Title:          info.Title,
		Uploader:       info.Uploader,
		ID:             info.ID,
		DurationSec:    info.Duration,
		Options:        opts,
		FormatSelector: downloader.FormatSelector(opts),
		OutputTemplate: downloader.OutputTemplate(workdir, opts),
		DownloaderPath: s.dlPath,
		DownloaderArgs: downloader.BuildArgs(url, workdir, opts, s.ffmpegPath),
		FFmpegPath:     s.ffmpegPath,
		OutDir:         s.outDir,
	}
	if opts.WantsTrim() {
		in := workdir + "/<download>"
		p.TrimArgs = encoder.BuildTrimArgs(in, encoder.TrimmedPath(in), encoder.TrimSpec{
			Start:    opts.TrimStart,
			End:      opts.TrimEnd,
			Reencode: opts.TrimReencode,
		}, false)
	}
	return p, nil
}

// Info validates rawURL and fetches its metadata without downloading.
func (s *Service) Info(ctx context.Context, rawURL string) (model.VideoInfo, error) {
	url, err := util.NormalizeVideoURL(rawURL)
	if err != nil {
		return model.VideoInfo{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if s.dlPath == "" {
		return model.VideoInfo{}, fmt.Errorf("%w: %w", ErrInvalidInput, errors.New("downloader path is required"))
	}
	info, err := downloader.FetchInfo(ctx, url, s.downloaderOptions(s.log, model.DownloadOptions{}))
	if err != nil {
		return model.VideoInfo{}, fmt.Errorf("%w: %w", ErrDownload, err)
	}
	return info, nil
}
