package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ytdash/internal/formats"
	"ytdash/internal/model"
	"ytdash/internal/pipeline"
	"ytdash/internal/util/format"
)

func newInfoCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <url>",
		Short: "Show video metadata and the available formats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			dl, ff, err := a.tools(false)
			if err != nil {
				return err
			}
			svc := pipeline.NewService(
				pipeline.WithDownloaderPath(dl),
				pipeline.WithFFmpegPath(ff),
				pipeline.WithLogger(a.log),
				pipeline.WithVerbose(a.settings.Verbose),
			)
			info, err := svc.Info(cmd.Context(), args[0])
			if err != nil {
				return exitFor(err)
			}
			cat := formats.Build(info)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Info    model.VideoInfo   `json:"info"`
					Formats formats.Catalogue `json:"formats"`
				}{info, cat})
			}
			printInfo(cmd.OutOrStdout(), info, cat)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print metadata and formats as JSON")
	return cmd
}

func printInfo(w io.Writer, info model.VideoInfo, cat formats.Catalogue) {
	fmt.Fprintf(w, "Title:     %s\n", info.Title)
	if info.Uploader != "" {
		fmt.Fprintf(w, "Uploader:  %s\n", info.Uploader)
	}
	if info.Duration > 0 {
		fmt.Fprintf(w, "Duration:  %s\n", clock(info.Duration))
	}
	if info.ViewCount > 0 {
		fmt.Fprintf(w, "Views:     %d\n", info.ViewCount)
	}
	if info.UploadDate != "" {
		fmt.Fprintf(w, "Uploaded:  %s\n", info.UploadDate)
	}
	if info.IsLive {
		fmt.Fprintln(w, "Live:      yes")
	}

	sections := []struct {
		title string
		opts  []formats.Option
	}{
		{"Presets", cat.Preset},
		{"Video", cat.Video},
		{"Video + audio", cat.Combined},
		{"Audio", cat.Audio},
	}
	for _, s := range sections {
		if len(s.opts) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n", s.title)
		for _, o := range s.opts {
			size := ""
			if o.Filesize > 0 {
				size = "  ~" + format.HumanizeBytes(o.Filesize)
			}
			fmt.Fprintf(w, "  %-22s %s%s\n", o.FormatID, o.Display, size)
		}
	}
}
