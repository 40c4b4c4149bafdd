package takes

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pas-de-deux/cadence"
	"pas-de-deux/performance"
)

func TestSaveListLoad(t *testing.T) {
	s := &Store{Dir: t.TempDir()}

	older := performance.Take{
		ID:      "a",
		Started: time.Date(2024, 1, 15, 14, 30, 0, 0, time.Local),
		Events:  []performance.TakeEvent{{At: time.Second, Stream: cadence.Left, Kind: performance.EventKey}},
		Counter: performance.CounterState{Counter: 2, Stack: []int{3}},
	}
	newer := performance.Take{
		ID:      "b",
		Name:    "night run: 2",
		Started: time.Date(2024, 1, 16, 9, 0, 5, 0, time.Local),
	}

	name, err := s.Save(older)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15_14-30-00.json", name)

	name, err = s.Save(newer)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-16_09-00-05_night-run--2.json", name)

	// Unrelated files are skipped
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir, "bad.json"), []byte("{}"), 0644))

	saves, err := s.List()
	require.NoError(t, err)
	require.Len(t, saves, 2)
	assert.Equal(t, "night-run--2", saves[0].Name)
	assert.Equal(t, "", saves[1].Name)

	latest, err := s.Load("")
	require.NoError(t, err)
	assert.Equal(t, "b", latest.ID)

	got, err := s.Load(saves[1].Filename)
	require.NoError(t, err)
	assert.Equal(t, older.Counter, got.Counter)
	assert.Equal(t, older.Events, got.Events)

	require.NoError(t, s.Delete(saves[0].Filename))
	saves, err = s.List()
	require.NoError(t, err)
	assert.Len(t, saves, 1)
}

func TestListMissingDir(t *testing.T) {
	s := &Store{Dir: filepath.Join(t.TempDir(), "nope")}
	saves, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, saves)

	_, err = s.Load("")
	assert.Error(t, err)
}

func TestLoadRejectsBadJSON(t *testing.T) {
	s := &Store{Dir: t.TempDir()}
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir, "2024-01-15_14-30-00.json"), []byte("{"), 0644))
	_, err := s.Load("")
	assert.Error(t, err)
}
