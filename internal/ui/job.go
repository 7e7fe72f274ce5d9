package ui

import (
	bubblesprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"

	"ytdash/internal/progress"
	"ytdash/internal/util/format"
)

// jobState is one rendered row. state is the latest relay state for the URL.
type jobState struct {
	url     string
	state   progress.State
	started bool

	spinner spinner.Model
	bar     bubblesprogress.Model
}

func newJobState(url string, styles Styles) *jobState {
	sp := spinner.New()
	sp.Style = styles.Spinner
	bar := bubblesprogress.New(
		bubblesprogress.WithDefaultGradient(),
		bubblesprogress.WithWidth(40),
	)
	return &jobState{
		url: url,
		state: progress.State{
			Phase:        progress.PhaseStarting,
			DisplaySpeed: format.UnknownSpeed,
			DisplayETA:   format.UnknownETA,
			Message:      "Queued",
		},
		spinner: sp,
		bar:     bar,
	}
}

func (js *jobState) failed() bool {
	return js.state.Phase == progress.PhaseErrored
}
