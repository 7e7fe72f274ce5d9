package ui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"ytdash/internal/pipeline"
)

// BatchFunc runs every URL, reporting each one's relay states to the sink
// returned by sinkFor. It is normally a closure over pipeline.Service.RunBatch.
type BatchFunc func(ctx context.Context, sinkFor pipeline.SinkFactory) ([]pipeline.Result, error)

// Run shows the TUI while run downloads urls and returns the batch outcome.
// Quitting the TUI early cancels the batch and waits for it to unwind.
func Run(ctx context.Context, urls []string, jobs int, run BatchFunc) ([]pipeline.Result, error) {
	m := NewModel(ctx, urls, jobs)
	defer m.cancel()

	done := make(chan batchDoneMsg, 1)
	go func() {
		results, err := run(m.ctx, m.SinkFor)
		out := batchDoneMsg{results: results, err: err}
		done <- out
		// queued behind every terminal state of the batch
		select {
		case m.eventCh <- out:
		case <-m.ctx.Done():
		}
	}()

	prog := tea.NewProgram(m, tea.WithContext(m.ctx))
	_, err := prog.Run()
	// Past this point nothing reads eventCh; cancelling unblocks the sinks.
	m.cancel()
	res := <-done
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return res.results, fmt.Errorf("tui: %w", err)
	}
	return res.results, res.err
}
