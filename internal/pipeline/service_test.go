package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytdash/internal/history"
	"ytdash/internal/model"
	"ytdash/internal/progress"
	"ytdash/internal/util"
)

const (
	dlPath  = "/bin/yt-dlp"
	ffPath  = "/bin/ffmpeg"
	metaJS  = `{"id":"abc123","title":"Sample Clip","uploader":"Up","duration":60}`
	testURL = "https://www.youtube.com/watch?v=abc123"
)

type recordingSink struct {
	mu     sync.Mutex
	states []progress.State
}

func (r *recordingSink) Update(s progress.State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recordingSink) last() progress.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[len(r.states)-1]
}

func (r *recordingSink) terminalCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.states {
		if s.Terminal {
			n++
		}
	}
	return n
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (f *fakeRecorder) Save(e history.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

// fakeRunner simulates yt-dlp and ffmpeg.
type fakeRunner struct {
	t          *testing.T
	metaJSON   string
	files      []string // written into the download workdir
	dlErr      string   // stderr of a failing download
	ffmpegFail bool
	dropInput  bool // ffmpeg deletes its input, as if cleaned up elsewhere

	mu    sync.Mutex
	calls []util.CmdSpec
}

func (f *fakeRunner) Run(ctx context.Context, spec util.CmdSpec) (util.CmdResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, spec)
	f.mu.Unlock()

	switch spec.Path {
	case dlPath:
		if contains(spec.Args, "--dump-json") {
			meta := f.metaJSON
			if meta == "" {
				meta = metaJS
			}
			return util.CmdResult{Stdout: []byte(meta + "\n")}, nil
		}
		if f.dlErr != "" {
			return util.CmdResult{Code: 1, Stderr: []byte(f.dlErr)},
				fmt.Errorf("%w (exit 1): %w", util.ErrCommandFailed, errors.New("exit status 1"))
		}
		if spec.Dir == "" {
			f.t.Fatalf("downloader run missing working dir")
		}
		files := f.files
		if len(files) == 0 {
			files = []string{"Sample Clip.mp4"}
		}
		for _, name := range files {
			require.NoError(f.t, os.WriteFile(filepath.Join(spec.Dir, name), []byte("downloaded"), 0o644))
		}
		if spec.StdoutLine != nil {
			spec.StdoutLine("[ytdash-progress] downloading|0|1000|NA|NA|NA|x.mp4")
			spec.StdoutLine("[ytdash-progress] downloading|500|1000|NA|1048576|1|x.mp4")
			spec.StdoutLine("[ytdash-progress] finished|1000|1000|NA|NA|NA|x.mp4")
			spec.StdoutLine("[ytdash-postprocess] started|Merger")
			spec.StdoutLine("[ytdash-file] " + filepath.Join(spec.Dir, files[0]))
		}
		return util.CmdResult{}, nil
	case ffPath:
		out := spec.Args[len(spec.Args)-1]
		if f.ffmpegFail {
			return util.CmdResult{Code: 1, Stderr: []byte("Conversion failed!")},
				fmt.Errorf("%w (exit 1): %w", util.ErrCommandFailed, errors.New("exit status 1"))
		}
		require.NoError(f.t, os.WriteFile(out, make([]byte, 256), 0o644))
		if f.dropInput {
			for i, a := range spec.Args {
				if a == "-i" && i+1 < len(spec.Args) {
					require.NoError(f.t, os.Remove(spec.Args[i+1]))
				}
			}
		}
		if spec.StdoutLine != nil {
			spec.StdoutLine("out_time_us=5000000")
			spec.StdoutLine("progress=end")
		}
		return util.CmdResult{}, nil
	}
	return util.CmdResult{}, errors.New("unexpected tool path: " + spec.Path)
}

func contains(ss []string, q string) bool {
	for _, s := range ss {
		if s == q {
			return true
		}
	}
	return false
}

func newTestService(t *testing.T, fr *fakeRunner, extra ...Option) *Service {
	t.Helper()
	opts := append([]Option{
		WithDownloaderPath(dlPath),
		WithFFmpegPath(ffPath),
		WithRunner(fr),
		WithTempBase(t.TempDir()),
	}, extra...)
	return NewService(opts...)
}

func TestNewService_WithOptions(t *testing.T) {
	r := &fakeRunner{}
	rec := &fakeRecorder{}
	s := NewService(
		WithDownloaderPath(dlPath),
		WithFFmpegPath(ffPath),
		WithRunner(r),
		WithRecorder(rec),
		WithOutDir("out"),
		WithKeepTemp(true),
		WithZip(true),
		WithVerbose(true),
	)
	assert.Equal(t, dlPath, s.dlPath)
	assert.Equal(t, ffPath, s.ffmpegPath)
	assert.Equal(t, "out", s.outDir)
	assert.True(t, s.keepTemp)
	assert.True(t, s.zip)
	assert.True(t, s.verbose)
	assert.Same(t, r, s.runner)
	assert.Same(t, rec, s.recorder)

	assert.NotNil(t, NewService().runner, "default runner")
}

func TestRun_DeliversToOutDir(t *testing.T) {
	outDir := t.TempDir()
	fr := &fakeRunner{t: t}
	rec := &fakeRecorder{}
	sink := &recordingSink{}
	s := newTestService(t, fr, WithOutDir(outDir), WithRecorder(rec))

	res, err := s.Run(context.Background(), testURL, model.DefaultDownloadOptions(), sink)
	require.NoError(t, err)

	require.Len(t, res.Outputs, 1)
	assert.Equal(t, filepath.Join(outDir, "Sample Clip.mp4"), res.Outputs[0].Path)
	assert.FileExists(t, res.Outputs[0].Path)
	assert.Empty(t, res.Workdir, "workdir removed after delivery")
	assert.Equal(t, "Sample Clip", res.Info.Title)

	last := sink.last()
	assert.Equal(t, progress.PhaseFinished, last.Phase)
	assert.Equal(t, 1.0, last.FractionComplete)
	assert.Equal(t, "Saved: Sample Clip.mp4", last.Message)
	assert.Equal(t, 1, sink.terminalCount())
	assert.Equal(t, last, res.State)

	for i := 1; i < len(sink.states); i++ {
		assert.GreaterOrEqual(t, sink.states[i].FractionComplete, sink.states[i-1].FractionComplete)
	}

	require.Len(t, rec.entries, 1)
	assert.Equal(t, res.ID, rec.entries[0].ID.String())
	assert.Equal(t, progress.PhaseFinished, rec.entries[0].Phase)
	assert.Equal(t, "Sample Clip", rec.entries[0].Title)
}

func TestRun_KeepsWorkdirWithoutOutDir(t *testing.T) {
	fr := &fakeRunner{t: t, files: []string{"Sample Clip.mp4", "Sample Clip.en.vtt"}}
	s := newTestService(t, fr)

	opts := model.DefaultDownloadOptions()
	opts.WriteSubs = true
	res, err := s.Run(context.Background(), testURL, opts, nil)
	require.NoError(t, err)

	require.NotEmpty(t, res.Workdir)
	assert.DirExists(t, res.Workdir)
	require.Len(t, res.Outputs, 2)
	assert.Equal(t, "Sample Clip.mp4", filepath.Base(res.Outputs[0].Path))
	assert.Equal(t, "Sample Clip.en.vtt", filepath.Base(res.Outputs[1].Path))
}

func TestRun_ZipBundlesSidecars(t *testing.T) {
	outDir := t.TempDir()
	fr := &fakeRunner{t: t, files: []string{"Sample Clip.mp4", "Sample Clip.webp"}}
	s := newTestService(t, fr, WithOutDir(outDir), WithZip(true))

	res, err := s.Run(context.Background(), testURL, model.DefaultDownloadOptions(), nil)
	require.NoError(t, err)
	require.Len(t, res.Outputs, 1)
	assert.Equal(t, filepath.Join(outDir, "Sample_Clip.zip"), res.Outputs[0].Path)
}

func TestRun_Trim(t *testing.T) {
	outDir := t.TempDir()
	fr := &fakeRunner{t: t}
	sink := &recordingSink{}
	s := newTestService(t, fr, WithOutDir(outDir))

	opts := model.DefaultDownloadOptions()
	opts.TrimStart = 5
	opts.TrimEnd = 10
	res, err := s.Run(context.Background(), testURL, opts, sink)
	require.NoError(t, err)

	require.Len(t, res.Outputs, 1)
	assert.Equal(t, "Sample Clip_trimmed.mp4", filepath.Base(res.Outputs[0].Path))
	assert.NoFileExists(t, filepath.Join(outDir, "Sample Clip.mp4"))

	var sawTrim bool
	for _, st := range sink.states {
		if strings.HasPrefix(st.Message, "Processing (Trim") {
			sawTrim = true
		}
	}
	assert.True(t, sawTrim)
}

func TestRun_TrimLogsFailedCleanup(t *testing.T) {
	var logs bytes.Buffer
	fr := &fakeRunner{t: t, dropInput: true}
	s := newTestService(t, fr, WithOutDir(t.TempDir()), WithLogger(zerolog.New(&logs).Level(zerolog.DebugLevel)))

	opts := model.DefaultDownloadOptions()
	opts.TrimStart = 5
	res, err := s.Run(context.Background(), testURL, opts, nil)
	require.NoError(t, err)

	require.Len(t, res.Outputs, 1)
	assert.Equal(t, "Sample Clip_trimmed.mp4", filepath.Base(res.Outputs[0].Path))
	assert.Contains(t, logs.String(), "failed to remove untrimmed download")
}

func TestRun_DownloadFailure(t *testing.T) {
	fr := &fakeRunner{t: t, dlErr: "ERROR: [youtube] abc123: Private video\n"}
	rec := &fakeRecorder{}
	sink := &recordingSink{}
	s := newTestService(t, fr, WithRecorder(rec))

	res, err := s.Run(context.Background(), testURL, model.DefaultDownloadOptions(), sink)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDownload)
	assert.Empty(t, res.Workdir, "failed workdir removed")

	last := sink.last()
	assert.Equal(t, progress.PhaseErrored, last.Phase)
	assert.Contains(t, last.Error, "Private video")
	assert.NotContains(t, last.Error, ErrDownload.Error(), "stage prefix not shown to the user")
	assert.Equal(t, 1, sink.terminalCount())

	require.Len(t, rec.entries, 1)
	assert.Equal(t, progress.PhaseErrored, rec.entries[0].Phase)
}

func TestRun_TrimFailure(t *testing.T) {
	fr := &fakeRunner{t: t, ffmpegFail: true}
	s := newTestService(t, fr, WithOutDir(t.TempDir()))

	opts := model.DefaultDownloadOptions()
	opts.TrimStart = 1
	_, err := s.Run(context.Background(), testURL, opts, nil)
	assert.ErrorIs(t, err, ErrPostProcess)
}

func TestRun_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		url  string
		opts model.DownloadOptions
		svc  []Option
	}{
		{name: "non-youtube URL", url: "https://example.com/video"},
		{name: "bad kind", url: testURL, opts: model.DownloadOptions{Kind: "hologram"}},
		{name: "trim without ffmpeg", url: testURL, opts: model.DownloadOptions{TrimStart: 3}, svc: []Option{WithFFmpegPath("")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := &fakeRunner{t: t}
			sink := &recordingSink{}
			s := newTestService(t, fr, tt.svc...)

			_, err := s.Run(context.Background(), tt.url, tt.opts, sink)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, progress.PhaseErrored, sink.last().Phase)
			assert.Empty(t, fr.calls, "no subprocess started")
		})
	}
}

func TestRun_MissingDownloader(t *testing.T) {
	s := NewService(WithRunner(&fakeRunner{t: t}))
	_, err := s.Run(context.Background(), testURL, model.DownloadOptions{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "downloader path is required")
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fr := &fakeRunner{t: t, dlErr: "killed"}
	sink := &recordingSink{}
	s := newTestService(t, fr)

	_, err := s.Run(ctx, testURL, model.DefaultDownloadOptions(), sink)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "cancelled", sink.last().Error)
}

func TestRunWithID_NonUUIDSkipsHistory(t *testing.T) {
	rec := &fakeRecorder{}
	s := newTestService(t, &fakeRunner{t: t}, WithRecorder(rec))

	res, err := s.RunWithID(context.Background(), "job-1", testURL, model.DefaultDownloadOptions(), nil)
	require.NoError(t, err)
	assert.Equal(t, "job-1", res.ID)
	assert.Empty(t, rec.entries)
}

func TestRunBatch(t *testing.T) {
	outDir := t.TempDir()
	fr := &fakeRunner{t: t}
	s := newTestService(t, fr, WithOutDir(outDir))

	var mu sync.Mutex
	sinks := map[int]*recordingSink{}
	urls := []string{testURL, "https://example.com/nope", "youtu.be/xyz"}

	results, err := s.RunBatch(context.Background(), urls, model.DefaultDownloadOptions(), 2,
		func(i int, id, url string) progress.Sink {
			mu.Lock()
			defer mu.Unlock()
			_, perr := uuid.Parse(id)
			assert.NoError(t, perr)
			sinks[i] = &recordingSink{}
			return sinks[i]
		})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "example.com")
	require.Len(t, results, 3)

	assert.Equal(t, progress.PhaseFinished, sinks[0].last().Phase)
	assert.Equal(t, progress.PhaseErrored, sinks[1].last().Phase)
	assert.Equal(t, progress.PhaseFinished, sinks[2].last().Phase)
	assert.Equal(t, "https://youtu.be/xyz", results[2].URL)
	assert.NotEqual(t, results[0].ID, results[2].ID)
}

func TestPlan(t *testing.T) {
	fr := &fakeRunner{t: t}
	s := newTestService(t, fr, WithOutDir("/out"))

	opts := model.DefaultDownloadOptions()
	opts.TrimEnd = 30
	p, err := s.Plan(context.Background(), testURL, opts)
	require.NoError(t, err)

	assert.Equal(t, "Sample Clip", p.Title)
	assert.Equal(t, "abc123", p.ID)
	assert.Contains(t, p.FormatSelector, "height<=1080")
	assert.Contains(t, p.DownloaderArgs, testURL)
	assert.NotEmpty(t, p.TrimArgs)
	assert.Equal(t, "/out", p.OutDir)

	require.Len(t, fr.calls, 1, "only metadata fetched")
	assert.Contains(t, fr.calls[0].Args, "--dump-json")
}

func TestInfo(t *testing.T) {
	fr := &fakeRunner{t: t}
	s := newTestService(t, fr)

	info, err := s.Info(context.Background(), "youtu.be/abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", info.ID)
	require.Len(t, fr.calls, 1)
	assert.Contains(t, fr.calls[0].Args, "https://youtu.be/abc123")

	_, err = s.Info(context.Background(), "ftp://youtube.com/x")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
