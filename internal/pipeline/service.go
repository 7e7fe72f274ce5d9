// Package pipeline runs one download operation end to end: metadata,
// download, optional trim, collection and delivery, reporting progress
// through a relay.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ytdash/internal/collector"
	"ytdash/internal/downloader"
	"ytdash/internal/encoder"
	"ytdash/internal/history"
	"ytdash/internal/model"
	"ytdash/internal/progress"
	"ytdash/internal/relay"
	"ytdash/internal/util"
)

// Errors classifying where an operation failed.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrDownload     = errors.New("download failed")
	ErrPostProcess  = errors.New("post-processing failed")
)

// Recorder stores finished operations.
type Recorder interface {
	Save(history.Entry) error
}

// Service orchestrates the metadata → download → trim → deliver workflow.
type Service struct {
	dlPath     string
	ffmpegPath string
	runner     util.CmdRunner
	log        zerolog.Logger
	recorder   Recorder
	outDir     string
	tempBase   string
	keepTemp   bool
	zip        bool
	verbose    bool
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithDownloaderPath sets the downloader (yt-dlp/youtube-dl) binary path.
func WithDownloaderPath(p string) Option {
	return func(s *Service) {
		s.dlPath = p
	}
}

// WithFFmpegPath sets the ffmpeg binary path.
func WithFFmpegPath(p string) Option {
	return func(s *Service) {
		s.ffmpegPath = p
	}
}

// WithRunner injects a custom command runner (useful for testing).
func WithRunner(r util.CmdRunner) Option {
	return func(s *Service) {
		s.runner = r
	}
}

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

// WithRecorder records every finished operation. A nil Recorder disables history.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// WithOutDir moves finished files into dir. Without it, outputs stay in the
// operation's workdir and the caller owns cleanup.
func WithOutDir(dir string) Option {
	return func(s *Service) {
		s.outDir = dir
	}
}

// WithTempBase sets the parent directory of per-operation workdirs.
func WithTempBase(dir string) Option {
	return func(s *Service) {
		s.tempBase = dir
	}
}

// WithKeepTemp keeps workdirs after delivery.
func WithKeepTemp(keep bool) Option {
	return func(s *Service) {
		s.keepTemp = keep
	}
}

// WithZip bundles multi-file outputs into one archive on delivery.
func WithZip(zip bool) Option {
	return func(s *Service) {
		s.zip = zip
	}
}

// WithVerbose logs subprocess output at debug level.
func WithVerbose(v bool) Option {
	return func(s *Service) {
		s.verbose = v
	}
}

// NewService constructs a new Service with the provided options.
func NewService(opts ...Option) *Service {
	s := &Service{log: zerolog.Nop(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if s.runner == nil {
		s.runner = &util.ExecRunner{Log: s.log}
	}
	return s
}

// Result is the outcome of one operation.
type Result struct {
	ID      string
	URL     string
	Info    model.VideoInfo
	Outputs []model.OutputFile
	// Workdir is set when outputs were left in place or temp files were kept.
	Workdir string
	State   progress.State
}

// Run executes one operation under a fresh id. See RunWithID.
func (s *Service) Run(ctx context.Context, url string, opts model.DownloadOptions, sink progress.Sink) (Result, error) {
	return s.RunWithID(ctx, uuid.NewString(), url, opts, sink)
}

// RunWithID executes one operation and blocks until it reaches a terminal
// phase. Every return path has delivered exactly one terminal state to sink.
func (s *Service) RunWithID(ctx context.Context, id, url string, opts model.DownloadOptions, sink progress.Sink) (Result, error) {
	log := s.log.With().Str("op", id).Logger()
	r := relay.New(id, sink, log)
	started := s.now()
	r.HandleEvent(progress.Event{Phase: progress.PhaseStarting})

	res, cause, err := s.run(ctx, r, log, id, url, opts)
	if err != nil {
		r.Fail(cause)
		log.Error().Err(err).Str("url", url).Msg("operation failed")
	} else {
		var out string
		if len(res.Outputs) > 0 {
			out = res.Outputs[0].Path
		}
		r.HandleEvent(progress.Event{Phase: progress.PhaseFinished, OutputPath: out})
		log.Info().Str("url", url).Str("output", out).Int("files", len(res.Outputs)).Msg("operation finished")
	}
	res.State = r.State()
	s.record(log, res, opts, started)
	return res, err
}

// run does the work. cause is the unwrapped error shown to the user; err
// additionally carries the stage classification.
func (s *Service) run(ctx context.Context, r *relay.Relay, log zerolog.Logger, id, rawURL string, opts model.DownloadOptions) (res Result, cause, err error) {
	res = Result{ID: id, URL: rawURL}

	url, err := util.NormalizeVideoURL(rawURL)
	if err != nil {
		return res, err, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	res.URL = url
	if opts, err = opts.Normalize(); err != nil {
		return res, err, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if s.dlPath == "" {
		err := errors.New("downloader path is required")
		return res, err, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if opts.WantsTrim() && s.ffmpegPath == "" {
		err := errors.New("ffmpeg is required for trimming")
		return res, err, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	dlOpts := s.downloaderOptions(log, opts)

	info, err := downloader.FetchInfo(ctx, url, dlOpts)
	if err != nil {
		return res, err, fmt.Errorf("%w: %w", ErrDownload, err)
	}
	res.Info = info
	log.Debug().Str("title", info.Title).Float64("duration", info.Duration).Msg("metadata fetched")

	dl, err := downloader.Download(ctx, url, dlOpts, r.HandleEvent)
	workdir := dl.Workdir
	defer func() {
		if workdir != "" && (s.keepTemp || (err == nil && s.outDir == "")) {
			res.Workdir = workdir
			return
		}
		if workdir != "" {
			_ = os.RemoveAll(workdir)
		}
	}()
	if err != nil {
		return res, err, fmt.Errorf("%w: %w", ErrDownload, err)
	}

	primary := dl.Path
	if opts.WantsTrim() {
		out, terr := encoder.Trim(ctx, primary, encoder.Options{
			FFmpegPath: s.ffmpegPath,
			Runner:     s.runner,
			Verbose:    s.verbose,
			Log:        log,
			SourceSec:  info.Duration,
			Trim: encoder.TrimSpec{
				Start:    opts.TrimStart,
				End:      opts.TrimEnd,
				Reencode: opts.TrimReencode,
			},
		}, r.HandleEvent)
		if terr != nil {
			err = terr
			return res, err, fmt.Errorf("%w: %w", ErrPostProcess, err)
		}
		if rerr := os.Remove(primary); rerr != nil {
			log.Debug().Err(rerr).Str("path", primary).Msg("failed to remove untrimmed download")
		}
		primary = out.Path
	}

	paths, err := collector.Collect(workdir, primary)
	if err != nil {
		return res, err, fmt.Errorf("%w: %w", ErrPostProcess, err)
	}

	if s.outDir == "" {
		res.Outputs, err = statAll(paths)
		if err != nil {
			return res, err, fmt.Errorf("%w: %w", ErrPostProcess, err)
		}
		return res, nil, nil
	}

	res.Outputs, err = collector.Deliver(paths, s.outDir, s.zip, bundleName(opts, info))
	if err != nil {
		return res, err, fmt.Errorf("%w: %w", ErrPostProcess, err)
	}
	return res, nil, nil
}

func (s *Service) downloaderOptions(log zerolog.Logger, opts model.DownloadOptions) downloader.Options {
	return downloader.Options{
		DownloaderPath: s.dlPath,
		FFmpegPath:     s.ffmpegPath,
		Runner:         s.runner,
		Verbose:        s.verbose,
		TempBase:       s.tempBase,
		Log:            log,
		Selection:      opts,
	}
}

func (s *Service) record(log zerolog.Logger, res Result, opts model.DownloadOptions, started time.Time) {
	if s.recorder == nil {
		return
	}
	id, err := uuid.Parse(res.ID)
	if err != nil {
		log.Warn().Err(err).Msg("history skipped: operation id is not a UUID")
		return
	}
	entry := history.Entry{
		ID:         id,
		URL:        res.URL,
		Title:      res.Info.Title,
		Kind:       opts.Kind,
		Phase:      res.State.Phase,
		Error:      res.State.Error,
		Outputs:    res.Outputs,
		StartedAt:  started,
		FinishedAt: s.now(),
	}
	if entry.Kind == "" {
		entry.Kind = model.KindVideoAudio
	}
	if err := s.recorder.Save(entry); err != nil {
		log.Warn().Err(err).Msg("failed to record history")
	}
}

func bundleName(opts model.DownloadOptions, info model.VideoInfo) string {
	if opts.CustomName != "" {
		return util.SanitizeFilename(opts.CustomName)
	}
	if strings.TrimSpace(info.Title) != "" {
		return util.SanitizeFilename(info.Title)
	}
	return ""
}

func statAll(paths []string) ([]model.OutputFile, error) {
	out := make([]model.OutputFile, 0, len(paths))
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		out = append(out, model.OutputFile{Path: p, Bytes: fi.Size()})
	}
	return out, nil
}
