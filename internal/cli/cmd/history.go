package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ytdash/internal/dirs"
	"ytdash/internal/history"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past downloads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			wipe, _ := cmd.Flags().GetBool("clear")

			if err := dirs.Ensure(dirs.StateDir()); err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			st, err := history.Open(dirs.HistoryPath())
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			defer st.Close()

			if wipe {
				n, err := st.Clear()
				if err != nil {
					return &ExitError{Code: ExitCLIError, Err: err}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", n)
				return nil
			}

			entries, err := st.List(limit)
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			printHistory(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().IntP("limit", "l", 20, "Number of entries to show (0 = all)")
	cmd.Flags().Bool("clear", false, "Delete all history entries")
	return cmd
}

func printHistory(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No downloads recorded yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FINISHED\tSTATUS\tTYPE\tTITLE\tOUTPUT")
	for _, e := range entries {
		status := string(e.Phase)
		out := e.Error
		if len(e.Outputs) > 0 {
			out = filepath.Base(e.Outputs[0].Path)
		}
		title := e.Title
		if title == "" {
			title = e.URL
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.FinishedAt.Local().Format("2006-01-02 15:04"), status, e.Kind, shorten(title, 40), out)
	}
	_ = tw.Flush()
}

func shorten(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}
