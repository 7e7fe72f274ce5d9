package ui

import (
	"context"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"ytdash/internal/progress"
)

// teaSink forwards relay states for one row into the program's event channel.
// Intermediate states are dropped when the channel is full; terminal states
// block until delivered or ctx ends.
type teaSink struct {
	ctx   context.Context
	ch    chan<- tea.Msg
	index int
}

func (s teaSink) Update(st progress.State) {
	msg := jobStateMsg{index: s.index, state: st}
	if st.Terminal {
		select {
		case s.ch <- msg:
		case <-s.ctx.Done():
		}
		return
	}
	select {
	case s.ch <- msg:
	default:
	}
}

// LineSink prints one plain line per meaningful change, for --no-ui runs and
// non-terminal outputs. It prints on phase changes, on whole-percent steps
// and on the terminal state.
type LineSink struct {
	mu      sync.Mutex
	w       io.Writer
	label   string
	phase   progress.Phase
	percent int
}

// NewLineSink returns a LineSink prefixing each line with label.
func NewLineSink(w io.Writer, label string) *LineSink {
	return &LineSink{w: w, label: label, percent: -1}
}

// Update implements progress.Sink.
func (s *LineSink) Update(st progress.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pct := int(math.Floor(st.Percent()))
	if st.Phase == s.phase && pct == s.percent && !st.Terminal {
		return
	}
	s.phase, s.percent = st.Phase, pct

	switch {
	case st.Terminal && st.Error != "":
		fmt.Fprintf(s.w, "%s ✗ %s\n", s.label, st.Message)
	case st.Terminal:
		fmt.Fprintf(s.w, "%s ✓ %s\n", s.label, filepath.Base(st.OutputPath))
	case st.Phase == progress.PhaseDownloading:
		fmt.Fprintf(s.w, "%s %5.1f%%  %s  ETA %s\n", s.label, st.Percent(), st.DisplaySpeed, st.DisplayETA)
	default:
		fmt.Fprintf(s.w, "%s %s\n", s.label, st.Message)
	}
}
