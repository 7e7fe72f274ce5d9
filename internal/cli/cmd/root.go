package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ytdash/internal/cli"
	"ytdash/internal/config"
	"ytdash/internal/dirs"
	"ytdash/internal/history"
	"ytdash/internal/logging"
	"ytdash/internal/model"
	"ytdash/internal/util/deps"
)

const (
	ExitOK               = 0
	ExitCLIError         = 1
	ExitMissingDep       = 2
	ExitDownloadError    = 3
	ExitPostProcessError = 4
)

// ExitError wraps an error with a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// app is the state shared by every subcommand, filled in by loadConfig.
type app struct {
	configDir string // tests point this at a temp dir
	v         *viper.Viper
	settings  config.Settings
	log       zerolog.Logger
	stderr    io.Writer
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&app{})
}

func newRootCmdWith(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "ytdash [urls...]",
		Short: "Download YouTube videos and audio with live progress",
		Long: "ytdash downloads YouTube videos or audio through yt-dlp, shows live progress for every " +
			"link, optionally trims the result with ffmpeg and collects it (plus subtitles and thumbnails) " +
			"into your output directory. Run `ytdash serve` to drive the same workflow over HTTP.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		Args:              cobra.ArbitraryArgs,
		PersistentPreRunE: a.loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return a.runDownload(cmd, args)
		},
	}

	pf := root.PersistentFlags()
	pf.StringP("out-dir", "o", dirs.DefaultOutputDir(), "Output directory")
	pf.BoolP("verbose", "v", false, "Log subprocess commands and output")
	pf.String("log-level", "", "Log level: trace, debug, info, warn, error")
	pf.String("dl-binary", "", "Path to yt-dlp or youtube-dl")
	pf.String("ffmpeg-binary", "", "Path to ffmpeg")
	pf.IntP("jobs", "j", 1, "Max concurrent downloads")
	pf.Bool("no-history", false, "Do not record downloads in the history database")

	// `ytdash <url>` behaves like `ytdash download <url>`.
	bindDownloadCmdFlags(root)

	root.AddCommand(newDownloadCmd(a))
	root.AddCommand(newInfoCmd(a))
	root.AddCommand(newServeCmd(a))
	root.AddCommand(newHistoryCmd(a))
	root.AddCommand(newDoctorCmd(a))
	root.AddCommand(newCompletionCmd())

	return root
}

// Execute runs the CLI with the provided context.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func (a *app) loadConfig(cmd *cobra.Command, _ []string) error {
	a.v = config.New(a.configDir)
	if err := config.BindFlags(a.v, cmd.Flags()); err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}
	s, err := config.Load(a.v)
	if err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}
	a.settings = s
	if a.stderr == nil {
		a.stderr = cmd.ErrOrStderr()
	}
	a.log = logging.New(logging.Options{
		Level:   s.LogLevel,
		Verbose: s.Verbose,
		Out:     a.stderr,
	})
	a.log.Debug().Str("config", a.v.ConfigFileUsed()).Int("jobs", s.Jobs).Msg("configuration loaded")
	return nil
}

// tools locates yt-dlp and, when needFFmpeg is set, ffmpeg.
func (a *app) tools(needFFmpeg bool) (dl, ff string, err error) {
	dl, err = deps.FindDownloader(a.settings.DLBinary)
	if err != nil {
		return "", "", &ExitError{Code: ExitMissingDep, Err: err}
	}
	ff, err = deps.FindFFmpeg(a.settings.FFmpegBinary)
	if err != nil {
		if needFFmpeg {
			return "", "", &ExitError{Code: ExitMissingDep, Err: err}
		}
		a.log.Warn().Err(err).Msg("ffmpeg not found; merging and conversions may fail")
		ff = ""
	}
	return dl, ff, nil
}

// openHistory opens the history store unless disabled. A store that cannot
// be opened is logged and skipped; history never blocks a download.
func (a *app) openHistory() *history.Store {
	if a.settings.NoHistory {
		return nil
	}
	path := dirs.HistoryPath()
	if err := dirs.Ensure(dirs.StateDir()); err != nil {
		a.log.Warn().Err(err).Msg("history disabled")
		return nil
	}
	st, err := history.Open(path)
	if err != nil {
		a.log.Warn().Err(err).Str("path", path).Msg("history disabled")
		return nil
	}
	return st
}

func (a *app) downloadOptions(cmd *cobra.Command) (opts model.DownloadOptions, err error) {
	opts, err = cli.DownloadOptions(cmd.Flags(), a.settings.Download)
	if err != nil {
		return opts, &ExitError{Code: ExitCLIError, Err: err}
	}
	return opts, nil
}

func ensureDir(path string) error {
	if path == "" {
		path = "."
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("failed to create output dir: %w", err)}
	}
	return nil
}
