package storage

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *Storage {
	t.Helper()
	s, err := OpenInMemory(zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPreferencesDefaults(t *testing.T) {
	s := openMemory(t)
	prefs, err := s.LoadPreferences()
	require.NoError(t, err)
	assert.Equal(t, DefaultPreferences(), prefs)
}

func TestPreferencesRoundTrip(t *testing.T) {
	s := openMemory(t)
	prefs := DefaultPreferences()
	prefs.HashMB = 256
	prefs.OwnBook = false
	prefs.BookFile = "/tmp/book.bin"
	prefs.Tablebase = TablebaseLichess
	require.NoError(t, s.SavePreferences(prefs))
	assert.False(t, prefs.UpdatedAt.IsZero())

	got, err := s.LoadPreferences()
	require.NoError(t, err)
	assert.Equal(t, 256, got.HashMB)
	assert.False(t, got.OwnBook)
	assert.Equal(t, "/tmp/book.bin", got.BookFile)
	assert.Equal(t, TablebaseLichess, got.Tablebase)
	assert.True(t, prefs.UpdatedAt.Equal(got.UpdatedAt))
}

func TestRecordSearch(t *testing.T) {
	s := openMemory(t)
	require.NoError(t, s.RecordSearch(SearchRecord{Nodes: 1000, Time: time.Second}))
	require.NoError(t, s.RecordSearch(SearchRecord{Book: true}))
	require.NoError(t, s.RecordSearch(SearchRecord{Nodes: 500, Time: time.Second, Tablebase: true}))

	stats, err := s.LoadStats()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.Searches)
	assert.Equal(t, uint64(1500), stats.Nodes)
	assert.Equal(t, uint64(1), stats.BookHits)
	assert.Equal(t, uint64(1), stats.TablebaseHits)
	assert.Equal(t, 2*time.Second, stats.SearchTime)
	assert.InDelta(t, 750.0, stats.NodesPerSecond(), 1e-9)
	assert.False(t, stats.LastSearch.IsZero())
}

func TestOpenPersists(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, zerolog.Nop())
	require.NoError(t, err)
	prefs := DefaultPreferences()
	prefs.HashMB = 16
	require.NoError(t, s.SavePreferences(prefs))
	require.NoError(t, s.RecordSearch(SearchRecord{Nodes: 42}))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "second close is a no-op")

	s, err = Open(dir, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()
	got, err := s.LoadPreferences()
	require.NoError(t, err)
	assert.Equal(t, 16, got.HashMB)
	stats, err := s.LoadStats()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), stats.Nodes)
}

func TestEmptyStats(t *testing.T) {
	var stats Stats
	assert.Zero(t, stats.NodesPerSecond())
}

func TestDataPaths(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG layout is Linux only")
	}
	base := t.TempDir()
	t.Setenv("XDG_DATA_HOME", base)

	dataDir, err := GetDataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, appName), dataDir)
	assert.DirExists(t, dataDir)

	dbDir, err := DatabaseDir(dataDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dataDir, "db"), dbDir)
	_, err = os.Stat(dbDir)
	assert.NoError(t, err)
}
