package encoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"ytdash/internal/model"
	"ytdash/internal/progress"
	"ytdash/internal/util"
)

// Options control ffmpeg execution.
type Options struct {
	FFmpegPath string
	Runner     util.CmdRunner
	Verbose    bool
	Log        zerolog.Logger
	OutputPath string  // empty = TrimmedPath(input)
	SourceSec  float64 // input duration, used for progress when trimming to the end
	Trim       TrimSpec
}

// Trim cuts input according to opts.Trim and reports progress through
// onEvent as post-processing events. Partial output is removed on failure.
func Trim(ctx context.Context, input string, opts Options, onEvent func(progress.Event)) (model.OutputFile, error) {
	if opts.FFmpegPath == "" {
		return model.OutputFile{}, errors.New("ffmpeg path is required")
	}
	if input == "" {
		return model.OutputFile{}, errors.New("input path is required")
	}
	if opts.Trim.Start < 0 || opts.Trim.End < 0 || (opts.Trim.End > 0 && opts.Trim.End <= opts.Trim.Start) {
		return model.OutputFile{}, fmt.Errorf("invalid trim range %.2fs-%.2fs", opts.Trim.Start, opts.Trim.End)
	}
	if onEvent == nil {
		onEvent = func(progress.Event) {}
	}

	out := opts.OutputPath
	if out == "" {
		out = TrimmedPath(input)
	}
	if err := util.EnsureDir(filepath.Dir(out)); err != nil {
		return model.OutputFile{}, fmt.Errorf("ensure output dir: %w", err)
	}

	runner := opts.Runner
	if runner == nil {
		runner = &util.ExecRunner{Log: opts.Log}
	}

	dur := opts.Trim.Duration(opts.SourceSec)
	var ps ProgressState
	onEvent(progress.Event{Phase: progress.PhasePostProcessing, Detail: "Trim"})

	res, runErr := runner.Run(ctx, util.CmdSpec{
		Path:    opts.FFmpegPath,
		Args:    BuildTrimArgs(input, out, opts.Trim, true),
		Verbose: opts.Verbose,
		StdoutLine: func(line string) {
			if ev, ok := ps.UpdateFromLine(line, dur); ok {
				onEvent(ev)
			}
		},
	})
	if runErr != nil {
		// Delete incomplete file
		_ = util.RemoveIfExists(out)
		if ctx.Err() != nil {
			return model.OutputFile{}, fmt.Errorf("trim: %w", ctx.Err())
		}
		if msg := util.LastLines(res.Stderr, 1); msg != "" {
			return model.OutputFile{}, fmt.Errorf("ffmpeg failed: %s: %w", msg, runErr)
		}
		return model.OutputFile{}, fmt.Errorf("ffmpeg failed: %w", runErr)
	}

	fi, err := os.Stat(out)
	if err != nil {
		return model.OutputFile{}, fmt.Errorf("stat output: %w", err)
	}
	opts.Log.Debug().Str("output", out).Int64("bytes", fi.Size()).Msg("trim complete")
	return model.OutputFile{Path: out, Bytes: fi.Size()}, nil
}
