package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ytdash/internal/dirs"
	"ytdash/internal/util"
)

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose external dependencies (yt-dlp/youtube-dl, ffmpeg)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dl, ff, err := a.tools(true)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Downloader: %s %s\n", dl, version(cmd.Context(), dl, "--version"))
			fmt.Fprintf(out, "FFmpeg:     %s %s\n", ff, version(cmd.Context(), ff, "-version"))
			fmt.Fprintf(out, "Config dir: %s\n", dirs.ConfigDir())
			fmt.Fprintf(out, "History:    %s\n", dirs.HistoryPath())
			fmt.Fprintf(out, "Temp dir:   %s\n", dirs.TempBaseDir())
			fmt.Fprintf(out, "Output dir: %s\n", a.settings.OutDir)
			return nil
		},
	}
}

// version returns the first output line of `bin flag`, in parentheses.
func version(ctx context.Context, bin, flag string) string {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	res, err := util.NewDefaultRunner().Run(ctx, util.CmdSpec{Path: bin, Args: []string{flag}})
	if err != nil {
		return "(version unknown)"
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(res.Stdout)), "\n")
	return "(" + line + ")"
}
