package ui

import (
	"ytdash/internal/pipeline"
	"ytdash/internal/progress"
)

type jobStateMsg struct {
	index int
	state progress.State
}

type batchDoneMsg struct {
	results []pipeline.Result
	err     error
}
