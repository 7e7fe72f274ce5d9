package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ytdash/internal/cli"
	"ytdash/internal/dirs"
	"ytdash/internal/pipeline"
	"ytdash/internal/progress"
	"ytdash/internal/ui"
	"ytdash/internal/util"
	"ytdash/internal/util/format"
)

func newDownloadCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "download [urls...]",
		Aliases: []string{"dl", "get"},
		Short:   "Download one or more YouTube links",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDownload(cmd, args)
		},
	}
	bindDownloadCmdFlags(cmd)
	return cmd
}

func bindDownloadCmdFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	cli.BindDownloadFlags(fs)
	fs.Bool("zip", false, "Bundle the output and its sidecar files into one zip")
	fs.Bool("keep-temp", false, "Keep the per-download working directory")
	fs.Bool("no-ui", false, "Disable the TUI; print plain progress lines")
	fs.Bool("dry-run", false, "Show what would run without downloading")
}

func (a *app) runDownload(cmd *cobra.Command, args []string) error {
	urls := make([]string, 0, len(args))
	for _, raw := range args {
		u, err := util.NormalizeVideoURL(raw)
		if err != nil {
			return &ExitError{Code: ExitCLIError, Err: err}
		}
		urls = append(urls, u)
	}
	opts, err := a.downloadOptions(cmd)
	if err != nil {
		return err
	}

	zip, _ := cmd.Flags().GetBool("zip")
	keepTemp, _ := cmd.Flags().GetBool("keep-temp")
	noUI, _ := cmd.Flags().GetBool("no-ui")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	dl, ff, err := a.tools(opts.WantsTrim())
	if err != nil {
		return err
	}

	svcOpts := []pipeline.Option{
		pipeline.WithDownloaderPath(dl),
		pipeline.WithFFmpegPath(ff),
		pipeline.WithLogger(a.log),
		pipeline.WithOutDir(a.settings.OutDir),
		pipeline.WithTempBase(dirs.TempBaseDir()),
		pipeline.WithKeepTemp(keepTemp),
		pipeline.WithZip(zip),
		pipeline.WithVerbose(a.settings.Verbose),
	}

	if dryRun {
		svc := pipeline.NewService(svcOpts...)
		return a.printPlans(cmd, svc, urls, opts)
	}

	if err := ensureDir(a.settings.OutDir); err != nil {
		return err
	}
	if err := dirs.Ensure(dirs.TempBaseDir()); err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}
	if st := a.openHistory(); st != nil {
		defer st.Close()
		svcOpts = append(svcOpts, pipeline.WithRecorder(st))
	}
	jobs := a.settings.Jobs
	useTUI := !noUI && isTerminal(os.Stdout)
	if useTUI && !a.settings.Verbose {
		// log lines would tear the TUI; failures still show in each row
		svcOpts = append(svcOpts, pipeline.WithLogger(zerolog.Nop()))
	}
	svc := pipeline.NewService(svcOpts...)

	var results []pipeline.Result
	if useTUI {
		results, err = ui.Run(cmd.Context(), urls, jobs, func(ctx context.Context, sinkFor pipeline.SinkFactory) ([]pipeline.Result, error) {
			return svc.RunBatch(ctx, urls, opts, jobs, sinkFor)
		})
	} else {
		results, err = svc.RunBatch(cmd.Context(), urls, opts, jobs, lineSinks(a.stderr, len(urls)))
	}

	printSaved(cmd.OutOrStdout(), results)
	return exitFor(err)
}

// lineSinks labels each URL's progress lines with its batch position.
func lineSinks(w io.Writer, n int) pipeline.SinkFactory {
	return func(i int, _ string, _ string) progress.Sink {
		return ui.NewLineSink(w, fmt.Sprintf("[%d/%d]", i+1, n))
	}
}

func printSaved(w io.Writer, results []pipeline.Result) {
	for _, r := range results {
		for _, o := range r.Outputs {
			fmt.Fprintf(w, "Saved: %s (%s)\n", o.Path, format.HumanizeBytes(o.Bytes))
		}
		if r.Workdir != "" {
			fmt.Fprintf(w, "Kept temp dir: %s\n", r.Workdir)
		}
	}
}

// exitFor maps a (possibly joined) batch error to an exit code. Download
// failures take precedence over post-processing ones.
func exitFor(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pipeline.ErrDownload):
		return &ExitError{Code: ExitDownloadError, Err: err}
	case errors.Is(err, pipeline.ErrPostProcess):
		return &ExitError{Code: ExitPostProcessError, Err: err}
	case errors.Is(err, pipeline.ErrInvalidInput):
		return &ExitError{Code: ExitCLIError, Err: err}
	default:
		return &ExitError{Code: ExitDownloadError, Err: err}
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
