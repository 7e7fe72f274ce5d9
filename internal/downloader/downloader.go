package downloader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"ytdash/internal/model"
	"ytdash/internal/progress"
	"ytdash/internal/util"
)

// Options controls downloader behavior.
type Options struct {
	DownloaderPath string // Path to yt-dlp or youtube-dl
	FFmpegPath     string // Passed as --ffmpeg-location when set
	Runner         util.CmdRunner
	Verbose        bool
	TempBase       string // Parent of per-download workdirs; empty = $TMPDIR/ytdash
	Log            zerolog.Logger

	Selection model.DownloadOptions
}

// Result describes a finished download.
type Result struct {
	Workdir string // temp dir owned by the caller
	Path    string // final media file inside Workdir
}

func (o Options) runner() util.CmdRunner {
	if o.Runner != nil {
		return o.Runner
	}
	return &util.ExecRunner{Log: o.Log}
}

// FetchInfo asks yt-dlp for the video's metadata and format list without
// downloading anything.
func FetchInfo(ctx context.Context, url string, opts Options) (model.VideoInfo, error) {
	if opts.DownloaderPath == "" {
		return model.VideoInfo{}, errors.New("downloader path is required")
	}
	args := []string{
		"--dump-json",
		"--no-playlist",
		"--no-warnings",
		"--add-header", "User-Agent:" + UserAgent,
		"--", url,
	}
	res, runErr := opts.runner().Run(ctx, util.CmdSpec{
		Path:    opts.DownloaderPath,
		Args:    args,
		Verbose: opts.Verbose,
	})
	if runErr != nil && len(res.Stdout) == 0 {
		if msg := util.LastLines(res.Stderr, 2); msg != "" && ctx.Err() == nil {
			return model.VideoInfo{}, fmt.Errorf("metadata fetch failed: %s: %w", msg, runErr)
		}
		return model.VideoInfo{}, fmt.Errorf("metadata fetch failed: %w", runErr)
	}

	info, err := decodeInfo(res.Stdout)
	if err != nil {
		return model.VideoInfo{}, err
	}
	return info.toModel(), nil
}

// decodeInfo parses --dump-json output. yt-dlp may print more than one JSON
// object; the last one with an id wins.
func decodeInfo(stdout []byte) (YTDLPInfo, error) {
	data := strings.TrimSpace(string(stdout))
	var info YTDLPInfo
	err := json.NewDecoder(strings.NewReader(data)).Decode(&info)
	if err == nil && info.ID != "" {
		return info, nil
	}
	if err == nil {
		err = errors.New("missing id")
	}

	lines := strings.Split(data, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		var tmp YTDLPInfo
		if json.Unmarshal([]byte(line), &tmp) == nil && tmp.ID != "" {
			return tmp, nil
		}
	}
	return YTDLPInfo{}, fmt.Errorf("parse metadata JSON: %w", err)
}

// Download runs yt-dlp in a fresh workdir and reports progress through
// onEvent. Only downloading and post-processing events are emitted; the
// caller decides when the operation has finished or failed.
//
// The returned Result carries Workdir even on error so the caller can clean up.
func Download(ctx context.Context, url string, opts Options, onEvent func(progress.Event)) (Result, error) {
	if opts.DownloaderPath == "" {
		return Result{}, errors.New("downloader path is required")
	}
	if onEvent == nil {
		onEvent = func(progress.Event) {}
	}

	workdir, err := util.MakeTempWorkdir(opts.TempBase, "dl")
	if err != nil {
		return Result{}, fmt.Errorf("create temp dir: %w", err)
	}
	out := Result{Workdir: workdir}

	var (
		mu        sync.Mutex
		finalPath string
		lastPath  string
		tracker   = newByteTracker()
	)
	handle := func(line string) {
		lr, ok := ParseLine(line)
		if !ok {
			return
		}
		mu.Lock()
		if lr.Path != "" {
			if lr.Final {
				finalPath = lr.Path
			} else {
				lastPath = lr.Path
			}
		}
		// stdout and stderr both feed here; emit under the lock to keep order
		if ev, emit := tracker.normalize(lr); emit {
			onEvent(ev)
		}
		mu.Unlock()
	}

	res, runErr := opts.runner().Run(ctx, util.CmdSpec{
		Path:       opts.DownloaderPath,
		Args:       BuildArgs(url, workdir, opts.Selection, opts.FFmpegPath),
		Dir:        workdir,
		Verbose:    opts.Verbose,
		StdoutLine: handle,
		StderrLine: handle,
	})
	if runErr != nil {
		if ctx.Err() != nil {
			return out, fmt.Errorf("download: %w", ctx.Err())
		}
		if msg := util.LastLines(res.Stderr, 2); msg != "" {
			return out, fmt.Errorf("downloader failed: %s: %w", msg, runErr)
		}
		return out, fmt.Errorf("downloader failed: %w", runErr)
	}

	mu.Lock()
	candidates := []string{finalPath, lastPath}
	mu.Unlock()
	for _, p := range candidates {
		if p == "" || IsPartial(p) {
			continue
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(workdir, p)
		}
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			out.Path = p
			return out, nil
		}
	}

	p, err := SelectDownloadedFile(workdir, opts.Selection.Kind)
	if err != nil {
		return out, fmt.Errorf("resolve download: %w", err)
	}
	out.Path = p
	opts.Log.Debug().Str("path", p).Msg("output path resolved by extension")
	return out, nil
}
