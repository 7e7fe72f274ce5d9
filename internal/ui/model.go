package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"ytdash/internal/pipeline"
	"ytdash/internal/progress"
)

type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	jobs  []*jobState
	jobsN int

	done    bool
	aborted bool
	results []pipeline.Result
	err     error

	width, height int
	styles        Styles

	// fed by teaSink and the batch goroutine
	eventCh chan tea.Msg
}

// NewModel returns a model with one row per URL. jobs is only displayed;
// the batch runner enforces concurrency.
func NewModel(ctx context.Context, urls []string, jobs int) Model {
	c, cancel := context.WithCancel(ctx)
	sty := defaultStyles()

	rows := make([]*jobState, 0, len(urls))
	for _, u := range urls {
		rows = append(rows, newJobState(u, sty))
	}
	if jobs <= 0 {
		jobs = 1
	}
	return Model{
		ctx:     c,
		cancel:  cancel,
		jobs:    rows,
		jobsN:   jobs,
		styles:  sty,
		eventCh: make(chan tea.Msg, 256),
	}
}

func (m Model) Init() tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(m.jobs)+1)
	for _, js := range m.jobs {
		cmds = append(cmds, js.spinner.Tick)
	}
	cmds = append(cmds, m.listenEventsCmd())
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.aborted = true
			m.cancel()
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case jobStateMsg:
		if msg.index >= 0 && msg.index < len(m.jobs) {
			js := m.jobs[msg.index]
			// a late intermediate state never overwrites a terminal one
			if !js.state.Terminal {
				js.state = msg.state
				js.started = true
			}
		}
		return m, m.listenEventsCmd()

	case batchDoneMsg:
		m.done = true
		m.results = msg.results
		m.err = msg.err
		return m, tea.Quit
	}

	var cmds []tea.Cmd
	for _, js := range m.jobs {
		var c tea.Cmd
		js.spinner, c = js.spinner.Update(msg)
		if c != nil {
			cmds = append(cmds, c)
		}
	}
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	summary := m.viewSummary()
	if summary != "" {
		return m.viewHeader() + "\n\n" + m.viewJobs() + "\n" + summary
	}
	return m.viewHeader() + "\n\n" + m.viewJobs()
}

func (m Model) listenEventsCmd() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return nil
		case msg := <-m.eventCh:
			return msg
		}
	}
}

// SinkFor returns the sink that feeds row i.
func (m Model) SinkFor(i int, _ string, _ string) progress.Sink {
	return teaSink{ctx: m.ctx, ch: m.eventCh, index: i}
}
