package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytdash/internal/dirs"
	"ytdash/internal/history"
	"ytdash/internal/model"
	"ytdash/internal/pipeline"
	"ytdash/internal/progress"
)

func isolate(t *testing.T) {
	t.Helper()
	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(root, "state"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(root, "cache"))
	xdg.Reload()
	t.Cleanup(xdg.Reload)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	isolate(t)
	var out, errOut bytes.Buffer
	a := &app{configDir: t.TempDir(), stderr: &errOut}
	root := newRootCmdWith(a)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var ee *ExitError
	require.True(t, errors.As(err, &ee), "want ExitError, got %v", err)
	return ee.Code
}

func TestExecute_NoArgsShowsHelp(t *testing.T) {
	out, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "ytdash [urls...]")
	assert.Contains(t, out, "serve")
}

func TestExecute_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "unsupported url", args: []string{"https://example.com/watch?v=1"}, want: ExitCLIError},
		{name: "bad type", args: []string{"--type", "podcast", "https://youtu.be/abc"}, want: ExitCLIError},
		{name: "bad trim", args: []string{"download", "--trim-start", "1:00", "--trim-end", "0:30", "https://youtu.be/abc"}, want: ExitCLIError},
		{name: "missing downloader", args: []string{"--dl-binary", "/nonexistent/yt-dlp", "https://youtu.be/abc"}, want: ExitMissingDep},
		{name: "info missing downloader", args: []string{"info", "--dl-binary", "/nonexistent/yt-dlp", "https://youtu.be/abc"}, want: ExitMissingDep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.want, exitCode(t, err))
		})
	}
}

func TestExitFor(t *testing.T) {
	dl := fmt.Errorf("https://youtu.be/a: %w", pipeline.ErrDownload)
	pp := fmt.Errorf("https://youtu.be/b: %w", pipeline.ErrPostProcess)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "download", err: dl, want: ExitDownloadError},
		{name: "post-process", err: pp, want: ExitPostProcessError},
		{name: "download wins in a batch", err: errors.Join(pp, dl), want: ExitDownloadError},
		{name: "invalid input", err: pipeline.ErrInvalidInput, want: ExitCLIError},
		{name: "other", err: errors.New("boom"), want: ExitDownloadError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(t, exitFor(tt.err)))
		})
	}
	assert.NoError(t, exitFor(nil))
}

func TestHistoryCmd(t *testing.T) {
	isolate(t)
	require.NoError(t, dirs.Ensure(dirs.StateDir()))
	st, err := history.Open(dirs.HistoryPath())
	require.NoError(t, err)
	require.NoError(t, st.Save(history.Entry{
		ID:         uuid.New(),
		URL:        "https://youtu.be/abc",
		Title:      "Lecture One",
		Kind:       model.KindAudio,
		Phase:      progress.PhaseFinished,
		Outputs:    []model.OutputFile{{Path: "/music/Lecture_One.mp3", Bytes: 10}},
		FinishedAt: time.Now(),
	}))
	require.NoError(t, st.Close())

	var out bytes.Buffer
	root := newRootCmdWith(&app{configDir: t.TempDir(), stderr: &bytes.Buffer{}})
	root.SetOut(&out)
	root.SetArgs([]string{"history"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Lecture One")
	assert.Contains(t, out.String(), "Lecture_One.mp3")
	assert.Contains(t, out.String(), "finished")

	out.Reset()
	root = newRootCmdWith(&app{configDir: t.TempDir(), stderr: &bytes.Buffer{}})
	root.SetOut(&out)
	root.SetArgs([]string{"history", "--clear"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "Removed 1 entries\n", out.String())
}

func TestCompletion(t *testing.T) {
	out, err := execute(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "ytdash")

	_, err = execute(t, "completion", "tcsh")
	assert.Error(t, err)
}

func TestPrintPlan(t *testing.T) {
	var buf bytes.Buffer
	printPlan(&buf, pipeline.Plan{
		URL:            "https://youtu.be/abc",
		Title:          "Clip",
		DurationSec:    125,
		Options:        model.DownloadOptions{Kind: model.KindAudio, AudioFormat: "mp3", AudioQuality: "best", TrimStart: 5},
		FormatSelector: "bestaudio/best",
		OutputTemplate: "<workdir>/%(title)s.%(ext)s",
		DownloaderPath: "/usr/bin/yt-dlp",
		DownloaderArgs: []string{"-f", "bestaudio/best"},
		FFmpegPath:     "/usr/bin/ffmpeg",
		TrimArgs:       []string{"-ss", "5"},
	})
	out := buf.String()
	assert.Contains(t, out, "- Title:          Clip")
	assert.Contains(t, out, "- Duration:       2:05")
	assert.Contains(t, out, "- Audio:          mp3 (best)")
	assert.Contains(t, out, "- Trim:           0:05..end")
	assert.Contains(t, out, "/usr/bin/ffmpeg -ss 5")
}

func TestClock(t *testing.T) {
	assert.Equal(t, "0:00", clock(0))
	assert.Equal(t, "1:30", clock(90))
	assert.Equal(t, "1:01:01", clock(3661))
}

func TestPrintHistory_Empty(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, nil)
	assert.Equal(t, "No downloads recorded yet.\n", buf.String())
}
