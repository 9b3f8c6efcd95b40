package uci

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hailam/chesscore/internal/board"
	"github.com/hailam/chesscore/internal/book"
	"github.com/hailam/chesscore/internal/engine"
	"github.com/hailam/chesscore/internal/storage"
	"github.com/hailam/chesscore/internal/tablebase"
)

func newTestUCI(t *testing.T, store *storage.Storage) *UCI {
	t.Helper()
	return New(Config{
		Engine: engine.NewEngine(engine.Config{HashMB: 4}),
		Store:  store,
		Logger: zerolog.Nop(),
	})
}

// run feeds script to u and returns the output lines.
func run(t *testing.T, u *UCI, script ...string) []string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, u.Run(strings.NewReader(strings.Join(script, "\n")+"\n"), &out))
	return strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
}

func lineWithPrefix(lines []string, prefix string) (string, bool) {
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			return l, true
		}
	}
	return "", false
}

func TestHandshake(t *testing.T) {
	lines := run(t, newTestUCI(t, nil), "uci", "isready")
	assert.Equal(t, "id name chesscore", lines[0])
	assert.Contains(t, lines, "option name Hash type spin default 64 min 1 max 4096")
	assert.Contains(t, lines, "option name OwnBook type check default true")
	assert.Contains(t, lines, "option name BookFile type string default <empty>")
	assert.Contains(t, lines, "option name Tablebase type combo default none var none var lichess")
	assert.Equal(t, []string{"uciok", "readyok"}, lines[len(lines)-2:])
}

func TestGoDepth(t *testing.T) {
	lines := run(t, newTestUCI(t, nil), "position startpos moves e2e4", "go depth 3")
	best, ok := lineWithPrefix(lines, "bestmove ")
	require.True(t, ok, lines)

	pos := board.NewPosition()
	require.NoError(t, pos.ApplyMoves("e2e4"))
	m, err := pos.ParseMove(strings.TrimPrefix(best, "bestmove "))
	require.NoError(t, err)
	assert.True(t, pos.IsLegal(m))

	info, ok := lineWithPrefix(lines, "info depth 3 ")
	require.True(t, ok, lines)
	assert.Contains(t, info, " score cp ")
	assert.Contains(t, info, " pv ")
}

func TestGoMateInOne(t *testing.T) {
	lines := run(t, newTestUCI(t, nil), "position fen 6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1", "go depth 3")
	assert.Equal(t, "bestmove a1a8", lines[len(lines)-1])
	info, ok := lineWithPrefix(lines, "info depth 1 ")
	require.True(t, ok, lines)
	assert.Contains(t, info, "score mate 1")
}

func TestGoNoLegalMoves(t *testing.T) {
	lines := run(t, newTestUCI(t, nil), "position fen k7/8/1Q6/8/8/8/8/6K1 b - - 0 1", "go movetime 50")
	assert.Equal(t, []string{"bestmove 0000"}, lines)
}

func TestRejectedPositionKeepsCurrent(t *testing.T) {
	lines := run(t, newTestUCI(t, nil),
		"position startpos moves e2e4",
		"position startpos moves e7e5 e2e5",
		"position fen 8/8/8 w - -",
		"position sideways",
		"d",
	)
	var infos []string
	for _, l := range lines {
		if strings.HasPrefix(l, "info string ") {
			infos = append(infos, l)
		}
	}
	require.Len(t, infos, 3)
	assert.Contains(t, infos[0], "illegal move")
	assert.Contains(t, infos[1], "invalid FEN")
	assert.Contains(t, infos[2], "unknown keyword")

	fen, ok := lineWithPrefix(lines, "Fen: ")
	require.True(t, ok)
	assert.Equal(t, "Fen: rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1", fen)
}

// syncBuffer is a bytes.Buffer safe for concurrent Write and String.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestInfiniteHoldsBestMoveUntilStop(t *testing.T) {
	u := newTestUCI(t, nil)
	r, w := io.Pipe()
	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- u.Run(r, &out) }()

	// The search ends at once with no legal move but must not answer yet.
	_, err := io.WriteString(w, "position fen k7/8/1Q6/8/8/8/8/6K1 b - - 0 1\ngo infinite\nisready\n")
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return strings.Contains(out.String(), "readyok") }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.NotContains(t, out.String(), "bestmove")

	_, err = io.WriteString(w, "stop\n")
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return strings.Contains(out.String(), "bestmove 0000") }, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Close())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, 1, strings.Count(out.String(), "bestmove"))
}

func TestQuitStopsInfiniteSearch(t *testing.T) {
	lines := run(t, newTestUCI(t, nil), "go infinite", "quit", "isready")
	best, ok := lineWithPrefix(lines, "bestmove ")
	require.True(t, ok, lines)
	assert.NotEqual(t, "bestmove 0000", best)
	assert.NotContains(t, lines, "readyok", "commands after quit are not read")
}

func openStore(t *testing.T) *storage.Storage {
	t.Helper()
	store, err := storage.OpenInMemory(zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSetOptionHashPersists(t *testing.T) {
	store := openStore(t)
	u := newTestUCI(t, store)
	run(t, u, "setoption name Hash value 16", "setoption name Hash value 999999")

	prefs, err := store.LoadPreferences()
	require.NoError(t, err)
	assert.Equal(t, maxHashMB, prefs.HashMB)

	lines := run(t, u, "setoption name Hash value lots", "uci")
	assert.True(t, strings.HasPrefix(lines[0], "info string "), lines[0])
	assert.Contains(t, lines, "option name Hash type spin default 4096 min 1 max 4096")
}

func TestBookOptionsStopRunningSearch(t *testing.T) {
	lines := run(t, newTestUCI(t, nil),
		"position startpos",
		"go movetime 300",
		"setoption name OwnBook value false",
		"setoption name BookFile value <empty>",
		"isready",
	)
	best, ready := -1, -1
	for i, l := range lines {
		switch {
		case strings.HasPrefix(l, "bestmove "):
			require.Equal(t, -1, best, "one bestmove per go: %v", lines)
			best = i
		case l == "readyok":
			ready = i
		}
	}
	require.NotEqual(t, -1, best, lines)
	assert.NotEqual(t, "bestmove 0000", lines[best])
	assert.Less(t, best, ready, "search finished before the book changed")
}

func TestSetOptionUnknown(t *testing.T) {
	lines := run(t, newTestUCI(t, nil), "setoption name Contempt value 10", "frobnicate")
	assert.Equal(t, []string{"info string unknown option Contempt", "info string unknown command frobnicate"}, lines)
}

func TestOwnBook(t *testing.T) {
	start := board.NewPosition()
	path := filepath.Join(t.TempDir(), "book.bin")
	var buf bytes.Buffer
	require.NoError(t, book.Write(&buf, []book.Entry{
		{Key: start.Hash, Move: board.NewMove(board.C2, board.C4), Weight: 1},
	}))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	store := openStore(t)
	u := newTestUCI(t, store)
	lines := run(t, u, "setoption name BookFile value "+path, "position startpos", "go depth 4")
	assert.Equal(t, []string{"bestmove c2c4"}, lines)

	stats, err := store.LoadStats()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Searches)
	assert.Equal(t, uint64(1), stats.BookHits)

	lines = run(t, u, "setoption name OwnBook value false", "go depth 1")
	best, ok := lineWithPrefix(lines, "bestmove ")
	require.True(t, ok)
	_, ok = lineWithPrefix(lines, "info depth 1")
	assert.True(t, ok, "searched instead of using the book: %s", best)

	prefs, err := store.LoadPreferences()
	require.NoError(t, err)
	assert.False(t, prefs.OwnBook)
	assert.Equal(t, path, prefs.BookFile)

	lines = run(t, u, "setoption name OwnBook value true", "setoption name BookFile value /does/not/exist")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "info string book: open"), lines[0])
}

type stubProber struct {
	tablebase.NoopProber
}

func (stubProber) MaxPieces() int { return 5 }

func TestSetOptionTablebase(t *testing.T) {
	var modes []string
	store := openStore(t)
	u := New(Config{
		Engine: engine.NewEngine(engine.Config{HashMB: 4}),
		Store:  store,
		NewProber: func(mode string) (tablebase.Prober, error) {
			modes = append(modes, mode)
			if mode == storage.TablebaseLichess {
				return stubProber{}, nil
			}
			return DefaultProberFactory(zerolog.Nop())(mode)
		},
		Logger: zerolog.Nop(),
	})

	lines := run(t, u, "setoption name Tablebase value lichess", "setoption name Tablebase value syzygy")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "unknown tablebase mode")
	assert.Equal(t, []string{storage.TablebaseNone, storage.TablebaseLichess, "syzygy"}, modes)

	prefs, err := store.LoadPreferences()
	require.NoError(t, err)
	assert.Equal(t, storage.TablebaseLichess, prefs.Tablebase, "a rejected mode is not saved")
}

func TestSetOptionDebug(t *testing.T) {
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	u := newTestUCI(t, nil)
	run(t, u, "setoption name Debug value true")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	run(t, u, "setoption name Debug value false")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestPerft(t *testing.T) {
	lines := run(t, newTestUCI(t, nil), "perft 3")
	assert.Contains(t, lines, "e2e4: 600")
	assert.Contains(t, lines, "Nodes searched: 8902")

	lines = run(t, newTestUCI(t, nil), "perft zero")
	assert.Equal(t, []string{"info string perft: depth must be a positive integer"}, lines)
}

func TestParseGo(t *testing.T) {
	limits, err := parseGo(strings.Fields("wtime 60000 btime 30000 winc 1000 binc 500 movestogo 20"))
	require.NoError(t, err)
	assert.Equal(t, [2]time.Duration{time.Minute, 30 * time.Second}, limits.Time)
	assert.Equal(t, [2]time.Duration{time.Second, 500 * time.Millisecond}, limits.Inc)
	assert.Equal(t, 20, limits.MovesToGo)

	limits, err = parseGo(strings.Fields("depth 7 nodes 5000 movetime 250 infinite"))
	require.NoError(t, err)
	assert.Equal(t, engine.SearchLimits{Depth: 7, Nodes: 5000, MoveTime: 250 * time.Millisecond, Infinite: true}, limits)

	limits, err = parseGo(strings.Fields("wtime -20 ponder"))
	require.NoError(t, err)
	assert.Equal(t, time.Millisecond, limits.Time[board.White], "a flagged clock still searches")

	_, err = parseGo([]string{"depth"})
	assert.Error(t, err)
	_, err = parseGo([]string{"nodes", "many"})
	assert.Error(t, err)
}

func TestParseSetOption(t *testing.T) {
	name, value := parseSetOption(strings.Fields("name Book File value /tmp/my book.bin"))
	assert.Equal(t, "Book File", name)
	assert.Equal(t, "/tmp/my book.bin", value)

	name, value = parseSetOption(strings.Fields("name Clear Hash"))
	assert.Equal(t, "Clear Hash", name)
	assert.Empty(t, value)
}
