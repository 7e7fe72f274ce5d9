package cmd

import (
	"github.com/spf13/cobra"

	"ytdash/internal/dirs"
	"ytdash/internal/pipeline"
	"ytdash/internal/server"
	"ytdash/internal/session"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the download API over HTTP",
		Long: "serve starts a JSON HTTP API: POST /api/v1/downloads starts a download, " +
			"GET /api/v1/downloads/{id} reports its live progress, and GET /api/v1/downloads/{id}/file " +
			"returns the result (a zip when there are several files).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dl, ff, err := a.tools(false)
			if err != nil {
				return err
			}
			if err := dirs.Ensure(dirs.TempBaseDir()); err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}

			opts := []pipeline.Option{
				pipeline.WithDownloaderPath(dl),
				pipeline.WithFFmpegPath(ff),
				pipeline.WithLogger(a.log),
				pipeline.WithTempBase(dirs.TempBaseDir()),
				pipeline.WithVerbose(a.settings.Verbose),
			}
			var hist server.HistoryLister
			if st := a.openHistory(); st != nil {
				defer st.Close()
				opts = append(opts, pipeline.WithRecorder(st))
				hist = st
			}
			svc := pipeline.NewService(opts...)

			mgr := session.NewManager(svc, a.settings.Jobs, a.log)
			defer mgr.Close()

			srv := server.New(mgr, svc, hist, a.log)
			if err := srv.ListenAndServe(cmd.Context(), a.settings.Server.Addr); err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			return nil
		},
	}
	cmd.Flags().String("addr", server.DefaultAddr, "Listen address")
	return cmd
}
