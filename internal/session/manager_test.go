package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytdash/internal/model"
	"ytdash/internal/pipeline"
	"ytdash/internal/progress"
	"ytdash/internal/relay"
)

// blockingRunner drives a relay like the pipeline does, finishing only when
// release is closed or the context is cancelled.
type blockingRunner struct {
	t       *testing.T
	release chan struct{}
	running atomic.Int32
	peak    atomic.Int32
}

func newBlockingRunner(t *testing.T) *blockingRunner {
	return &blockingRunner{t: t, release: make(chan struct{})}
}

func (b *blockingRunner) RunWithID(ctx context.Context, id, url string, opts model.DownloadOptions, sink progress.Sink) (pipeline.Result, error) {
	n := b.running.Add(1)
	defer b.running.Add(-1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			break
		}
	}

	r := relay.New(id, sink, zerolog.Nop())
	r.HandleEvent(progress.Event{Phase: progress.PhaseStarting})
	r.HandleEvent(progress.Event{Phase: progress.PhaseDownloading, BytesDone: progress.Int64(1), BytesTotal: progress.Int64(2)})

	select {
	case <-b.release:
	case <-ctx.Done():
		r.Fail(ctx.Err())
		return pipeline.Result{ID: id, URL: url}, ctx.Err()
	}

	dir := b.t.TempDir()
	wd := filepath.Join(dir, "work")
	require.NoError(b.t, os.MkdirAll(wd, 0o755))
	out := filepath.Join(wd, "clip.mp4")
	require.NoError(b.t, os.WriteFile(out, []byte("x"), 0o644))
	r.HandleEvent(progress.Event{Phase: progress.PhaseFinished, OutputPath: out})
	return pipeline.Result{
		ID:      id,
		URL:     url,
		Info:    model.VideoInfo{Title: "Clip"},
		Outputs: []model.OutputFile{{Path: out, Bytes: 1}},
		Workdir: wd,
		State:   r.State(),
	}, nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestManager_StartGetOutputsRemove(t *testing.T) {
	br := newBlockingRunner(t)
	m := NewManager(br, 1, zerolog.Nop())
	defer m.Close()

	id, err := m.Start(context.Background(), "https://youtu.be/a", model.DefaultDownloadOptions())
	require.NoError(t, err)

	snap, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, snap.ID)
	assert.False(t, snap.State.Terminal)

	waitFor(t, func() bool {
		s, _ := m.Get(id)
		return s.State.Phase == progress.PhaseDownloading
	})
	_, err = m.Outputs(id)
	assert.ErrorIs(t, err, ErrRunning)
	assert.ErrorIs(t, m.Remove(id), ErrRunning)

	close(br.release)
	snap, err = m.Wait(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, progress.PhaseFinished, snap.State.Phase)
	assert.Equal(t, 1.0, snap.State.FractionComplete)
	assert.Equal(t, "Clip", snap.Title)

	outs, err := m.Outputs(id)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	workdir := filepath.Dir(outs[0].Path)
	assert.DirExists(t, workdir)

	require.NoError(t, m.Remove(id))
	assert.NoDirExists(t, workdir)
	_, err = m.Get(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_QueuedState(t *testing.T) {
	br := newBlockingRunner(t)
	m := NewManager(br, 1, zerolog.Nop())
	defer m.Close()

	first, err := m.Start(context.Background(), "https://youtu.be/a", model.DownloadOptions{})
	require.NoError(t, err)
	waitFor(t, func() bool { return br.running.Load() == 1 })

	second, err := m.Start(context.Background(), "https://youtu.be/b", model.DownloadOptions{})
	require.NoError(t, err)

	snap, err := m.Get(second)
	require.NoError(t, err)
	assert.Equal(t, "Queued", snap.State.Message)
	assert.Equal(t, progress.PhaseStarting, snap.State.Phase)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, first, list[0].ID)
	assert.Equal(t, second, list[1].ID)

	close(br.release)
	_, err = m.Wait(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, int32(1), br.peak.Load(), "jobs limit respected")
}

func TestManager_ConcurrencyLimit(t *testing.T) {
	br := newBlockingRunner(t)
	m := NewManager(br, 2, zerolog.Nop())
	defer m.Close()

	var ids []string
	for i := 0; i < 4; i++ {
		id, err := m.Start(context.Background(), "https://youtu.be/x", model.DownloadOptions{})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	waitFor(t, func() bool { return br.running.Load() == 2 })
	close(br.release)
	for _, id := range ids {
		_, err := m.Wait(context.Background(), id)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), br.peak.Load())
}

func TestManager_Cancel(t *testing.T) {
	br := newBlockingRunner(t)
	m := NewManager(br, 1, zerolog.Nop())
	defer m.Close()

	running, err := m.Start(context.Background(), "https://youtu.be/a", model.DownloadOptions{})
	require.NoError(t, err)
	queued, err := m.Start(context.Background(), "https://youtu.be/b", model.DownloadOptions{})
	require.NoError(t, err)
	waitFor(t, func() bool { return br.running.Load() == 1 })

	for _, id := range []string{queued, running} {
		ok, err := m.Cancel(id)
		require.NoError(t, err)
		assert.True(t, ok)

		snap, err := m.Wait(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, progress.PhaseErrored, snap.State.Phase)
		assert.Equal(t, "cancelled", snap.State.Error)
	}

	ok, err := m.Cancel(running)
	require.NoError(t, err)
	assert.False(t, ok, "already finished")

	_, err = m.Outputs(running)
	assert.ErrorIs(t, err, ErrNoOutput)

	_, err = m.Cancel("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_Close(t *testing.T) {
	br := newBlockingRunner(t)
	m := NewManager(br, 1, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Start(context.Background(), "https://youtu.be/a", model.DownloadOptions{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.NoError(t, m.Close())
	assert.Empty(t, m.List())
	assert.Equal(t, int32(0), br.running.Load())

	_, err := m.Start(context.Background(), "https://youtu.be/a", model.DownloadOptions{})
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, m.Close(), "idempotent")
}

func TestManager_StartWithDoneContext(t *testing.T) {
	m := NewManager(newBlockingRunner(t), 1, zerolog.Nop())
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Start(ctx, "https://youtu.be/a", model.DownloadOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
