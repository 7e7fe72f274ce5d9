package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"ytdash/internal/model"
	"ytdash/internal/pipeline"
)

// printPlans resolves and prints the dry-run plan of every URL.
func (a *app) printPlans(cmd *cobra.Command, svc *pipeline.Service, urls []string, opts model.DownloadOptions) error {
	w := cmd.OutOrStdout()
	for i, u := range urls {
		p, err := svc.Plan(cmd.Context(), u, opts)
		if err != nil {
			return exitFor(fmt.Errorf("%s: %w", u, err))
		}
		if i > 0 {
			fmt.Fprintln(w)
		}
		printPlan(w, p)
	}
	return nil
}

// printPlan outputs a dry-run plan of actions without executing them.
func printPlan(w io.Writer, p pipeline.Plan) {
	fmt.Fprintln(w, "Dry-run plan:")
	fmt.Fprintf(w, "- URL:            %s\n", p.URL)
	fmt.Fprintf(w, "- Title:          %s\n", p.Title)
	if p.Uploader != "" {
		fmt.Fprintf(w, "- Uploader:       %s\n", p.Uploader)
	}
	if p.DurationSec > 0 {
		fmt.Fprintf(w, "- Duration:       %s\n", clock(p.DurationSec))
	}
	fmt.Fprintf(w, "- Type:           %s\n", p.Options.Kind)
	fmt.Fprintf(w, "- Format:         %s\n", p.FormatSelector)
	if p.Options.Kind == model.KindAudio {
		fmt.Fprintf(w, "- Audio:          %s (%s)\n", p.Options.AudioFormat, p.Options.AudioQuality)
	}
	fmt.Fprintf(w, "- Output:         %s\n", p.OutputTemplate)
	if p.OutDir != "" {
		fmt.Fprintf(w, "- Output dir:     %s\n", p.OutDir)
	}
	fmt.Fprintf(w, "- Downloader:     %s %s\n", p.DownloaderPath, strings.Join(p.DownloaderArgs, " "))
	if len(p.TrimArgs) > 0 {
		fmt.Fprintf(w, "- Trim:           %s..%s\n", clock(p.Options.TrimStart), trimEnd(p.Options.TrimEnd))
		fmt.Fprintf(w, "- FFmpeg:         %s %s\n", p.FFmpegPath, strings.Join(p.TrimArgs, " "))
	}
}

func trimEnd(sec float64) string {
	if sec <= 0 {
		return "end"
	}
	return clock(sec)
}

// clock renders seconds as H:MM:SS or M:SS.
func clock(sec float64) string {
	total := int(sec + 0.5)
	h, m, s := total/3600, total%3600/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
