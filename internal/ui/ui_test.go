package ui

import (
	"bytes"
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytdash/internal/model"
	"ytdash/internal/pipeline"
	"ytdash/internal/progress"
)

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func TestModel_AppliesStatesPerRow(t *testing.T) {
	m := NewModel(context.Background(), []string{"https://youtu.be/a", "https://youtu.be/b"}, 2)

	m, _ = update(t, m, jobStateMsg{index: 1, state: progress.State{
		Phase:            progress.PhaseDownloading,
		FractionComplete: 0.5,
		DisplaySpeed:     "1.0 MB/s",
		DisplayETA:       "10s",
		Message:          "Downloading 50.0%",
	}})

	assert.False(t, m.jobs[0].started)
	assert.True(t, m.jobs[1].started)
	assert.Equal(t, 0.5, m.jobs[1].state.FractionComplete)

	view := m.View()
	assert.Contains(t, view, "Downloads: 0/2 done")
	assert.Contains(t, view, "50.0%")
	assert.Contains(t, view, "1.0 MB/s")
}

func TestModel_TerminalRowIsFinal(t *testing.T) {
	m := NewModel(context.Background(), []string{"u"}, 1)

	m, _ = update(t, m, jobStateMsg{index: 0, state: progress.State{Phase: progress.PhaseFinished, FractionComplete: 1, Terminal: true, Message: "Saved: a.mp4"}})
	m, _ = update(t, m, jobStateMsg{index: 0, state: progress.State{Phase: progress.PhaseDownloading, FractionComplete: 0.2}})

	assert.Equal(t, progress.PhaseFinished, m.jobs[0].state.Phase)
	assert.Contains(t, m.View(), "Saved: a.mp4")
	assert.Contains(t, m.View(), "1/1 done")
}

func TestModel_IgnoresOutOfRangeIndex(t *testing.T) {
	m := NewModel(context.Background(), []string{"u"}, 1)
	require.NotPanics(t, func() {
		update(t, m, jobStateMsg{index: 3, state: progress.State{Phase: progress.PhaseDownloading}})
	})
}

func TestModel_BatchDoneQuits(t *testing.T) {
	m := NewModel(context.Background(), []string{"u"}, 1)
	res := []pipeline.Result{{Outputs: []model.OutputFile{{Path: "/out/a.mp4"}}}}

	m, cmd := update(t, m, batchDoneMsg{results: res})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, m.done)
	assert.Contains(t, m.View(), "/out/a.mp4")
}

func TestModel_QuitCancels(t *testing.T) {
	m := NewModel(context.Background(), []string{"u"}, 1)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.True(t, m.aborted)
	assert.Error(t, m.ctx.Err())
}

func TestTeaSink_DropsIntermediateWhenFull(t *testing.T) {
	ch := make(chan tea.Msg, 1)
	s := teaSink{ctx: context.Background(), ch: ch, index: 0}

	s.Update(progress.State{Phase: progress.PhaseDownloading, FractionComplete: 0.1})
	s.Update(progress.State{Phase: progress.PhaseDownloading, FractionComplete: 0.2})

	require.Len(t, ch, 1)
	got := (<-ch).(jobStateMsg)
	assert.Equal(t, 0.1, got.state.FractionComplete)
}

func TestTeaSink_TerminalBlocksUntilDelivered(t *testing.T) {
	ch := make(chan tea.Msg, 1)
	ch <- jobStateMsg{}
	s := teaSink{ctx: context.Background(), ch: ch, index: 2}

	delivered := make(chan struct{})
	go func() {
		s.Update(progress.State{Phase: progress.PhaseFinished, Terminal: true})
		close(delivered)
	}()

	select {
	case <-delivered:
		t.Fatal("terminal state was not blocking")
	case <-time.After(20 * time.Millisecond):
	}
	<-ch
	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("terminal state never delivered")
	}
	got := (<-ch).(jobStateMsg)
	assert.Equal(t, 2, got.index)
	assert.True(t, got.state.Terminal)
}

func TestTeaSink_TerminalGivesUpOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := teaSink{ctx: ctx, ch: make(chan tea.Msg), index: 0}
	s.Update(progress.State{Phase: progress.PhaseErrored, Terminal: true})
}

func TestLineSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewLineSink(&buf, "[1/1]")

	s.Update(progress.State{Phase: progress.PhaseStarting, Message: "Starting"})
	s.Update(progress.State{Phase: progress.PhaseDownloading, FractionComplete: 0.101, DisplaySpeed: "1.0 MB/s", DisplayETA: "5s"})
	s.Update(progress.State{Phase: progress.PhaseDownloading, FractionComplete: 0.105, DisplaySpeed: "1.0 MB/s", DisplayETA: "5s"})
	s.Update(progress.State{Phase: progress.PhaseFinished, FractionComplete: 1, Terminal: true, OutputPath: "/out/clip.mp4"})

	assert.Equal(t,
		"[1/1] Starting\n"+
			"[1/1]  10.1%  1.0 MB/s  ETA 5s\n"+
			"[1/1] ✓ clip.mp4\n",
		buf.String())
}

func TestLineSink_Error(t *testing.T) {
	var buf bytes.Buffer
	s := NewLineSink(&buf, "x")
	s.Update(progress.State{Phase: progress.PhaseErrored, Terminal: true, Error: "boom", Message: "Failed: boom"})
	assert.Equal(t, "x ✗ Failed: boom\n", buf.String())
}
