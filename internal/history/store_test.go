package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytdash/internal/model"
	"ytdash/internal/progress"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_DirectoryPath(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.Error(t, err)
}

func TestSaveFind(t *testing.T) {
	s := openStore(t)
	e := Entry{
		ID:         uuid.New(),
		URL:        "https://youtu.be/abc",
		Title:      "Clip",
		Kind:       model.KindAudio,
		Phase:      progress.PhaseFinished,
		Outputs:    []model.OutputFile{{Path: "/out/clip.mp3", Bytes: 42}},
		StartedAt:  time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2024, 1, 1, 10, 1, 0, 0, time.UTC),
	}
	require.NoError(t, s.Save(e))

	got, err := s.Find(e.ID)
	require.NoError(t, err)
	assert.Equal(t, e, got)

	_, err = s.Find(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSave_NilID(t *testing.T) {
	s := openStore(t)
	assert.Error(t, s.Save(Entry{}))
}

func TestListNewestFirst(t *testing.T) {
	s := openStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		id := uuid.New()
		ids = append(ids, id)
		require.NoError(t, s.Save(Entry{ID: id, FinishedAt: base.Add(time.Duration(i) * time.Hour)}))
	}

	all, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, ids[4], all[0].ID)
	assert.Equal(t, ids[0], all[4].ID)

	top, err := s.List(2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, ids[3], top[1].ID)
}

func TestDeleteClear(t *testing.T) {
	s := openStore(t)
	a, b := uuid.New(), uuid.New()
	require.NoError(t, s.Save(Entry{ID: a}))
	require.NoError(t, s.Save(Entry{ID: b}))

	require.NoError(t, s.Delete(a))
	assert.ErrorIs(t, s.Delete(a), ErrNotFound)

	n, err := s.Clear()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := s.List(0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	id := uuid.New()
	require.NoError(t, s.Save(Entry{ID: id, URL: "u"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Find(id)
	require.NoError(t, err)
	assert.Equal(t, "u", got.URL)
}
