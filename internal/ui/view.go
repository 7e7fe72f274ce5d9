package ui

import (
	"fmt"
	"strings"

	"ytdash/internal/progress"
)

func (m Model) viewHeader() string {
	done, failed := 0, 0
	for _, js := range m.jobs {
		if js.state.Terminal {
			done++
		}
		if js.failed() {
			failed++
		}
	}
	title := m.styles.Title.Render("ytdash • YouTube downloader")
	status := fmt.Sprintf("Downloads: %d/%d done", done, len(m.jobs))
	if failed > 0 {
		status += fmt.Sprintf(", %d failed", failed)
	}
	status += fmt.Sprintf(" • jobs: %d • q: quit", m.jobsN)
	return title + "\n" + m.styles.Subtitle.Render(status)
}

func (m Model) viewJobs() string {
	var b strings.Builder
	for _, js := range m.jobs {
		b.WriteString(m.viewJob(js))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewJob(js *jobState) string {
	st := js.state
	phaseStyle := m.styles.JobInfo
	switch st.Phase {
	case progress.PhaseStarting:
		phaseStyle = m.styles.StageMeta
	case progress.PhaseDownloading:
		phaseStyle = m.styles.StageDL
	case progress.PhasePostProcessing:
		phaseStyle = m.styles.StageEnc
	case progress.PhaseFinished:
		phaseStyle = m.styles.Success
	case progress.PhaseErrored:
		phaseStyle = m.styles.Error
	}

	left := m.styles.JobTitle.Render(truncate(js.url, 48))
	phase := phaseStyle.Render(string(st.Phase))

	var right string
	switch {
	case st.Phase == progress.PhaseFinished:
		right = js.bar.ViewAs(1) + " " + m.styles.Success.Render("✓ done")
	case st.Phase == progress.PhaseErrored:
		right = m.styles.Error.Render("✗ error")
	case !js.started:
		right = m.styles.Spinner.Render(js.spinner.View()) + " " + m.styles.Faint.Render("waiting")
	case st.Phase == progress.PhaseDownloading:
		right = fmt.Sprintf("%s %5.1f%%  %s  ETA %s",
			js.bar.ViewAs(st.FractionComplete), st.Percent(), st.DisplaySpeed, st.DisplayETA)
	default:
		right = m.styles.Spinner.Render(js.spinner.View()) + " " + js.bar.ViewAs(st.FractionComplete)
	}

	line1 := fmt.Sprintf("%s  %s", left, phase)
	line2 := m.styles.JobInfo.Render(st.Message)
	return m.styles.Box.Render(line1 + "\n" + right + "\n" + line2)
}

func (m Model) viewSummary() string {
	var saved []string
	for _, r := range m.results {
		for _, o := range r.Outputs {
			saved = append(saved, o.Path)
		}
	}
	if len(saved) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Subtitle.Render("✓ Saved files:"))
	b.WriteString("\n")
	for _, path := range saved {
		b.WriteString(m.styles.Success.Render("  • " + path))
		b.WriteString("\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if n <= 0 || len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}
