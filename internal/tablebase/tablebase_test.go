package tablebase

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hailam/chesscore/internal/board"
)

const kqkFEN = "8/8/8/8/8/2k5/8/K6Q w - - 0 1"

func mustParse(t *testing.T, fen string) *board.Position {
	t.Helper()
	pos, err := board.ParseFEN(fen)
	require.NoError(t, err)
	return pos
}

func TestNoopProber(t *testing.T) {
	var p NoopProber
	pos := board.NewPosition()
	assert.False(t, p.Probeable(pos))
	assert.Zero(t, p.MaxPieces())
	assert.False(t, p.Probe(pos).Found)
	assert.False(t, p.ProbeRoot(pos).Found)
}

func TestProbeable(t *testing.T) {
	assert.Equal(t, 32, CountPieces(board.NewPosition()))
	assert.False(t, Probeable(board.NewPosition(), 32), "castling rights exclude a position")
	assert.True(t, Probeable(mustParse(t, kqkFEN), 3))
	assert.False(t, Probeable(mustParse(t, kqkFEN), 2))
	assert.False(t, Probeable(mustParse(t, "r3k3/8/8/8/8/8/8/4K3 b q - 0 1"), 7))
}

func TestWDLToScore(t *testing.T) {
	const win = 28000
	tests := []struct {
		wdl  WDL
		ply  int
		want int
	}{
		{WDLWin, 0, win},
		{WDLWin, 10, win - 10},
		{WDLCursedWin, 3, 1},
		{WDLDraw, 3, 0},
		{WDLBlessedLoss, 3, -1},
		{WDLLoss, 4, -win + 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WDLToScore(tt.wdl, win, tt.ply), "%s at ply %d", tt.wdl, tt.ply)
	}
}

func TestCategoryToWDL(t *testing.T) {
	tests := map[string]WDL{
		"win":          WDLWin,
		"cursed-win":   WDLCursedWin,
		"maybe-win":    WDLCursedWin,
		"draw":         WDLDraw,
		"blessed-loss": WDLBlessedLoss,
		"loss":         WDLLoss,
	}
	for category, want := range tests {
		got, ok := categoryToWDL(category)
		assert.True(t, ok, category)
		assert.Equal(t, want, got, category)
	}
	_, ok := categoryToWDL("unknown")
	assert.False(t, ok)
}

// newServer serves body for every request and counts them.
func newServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/standard", r.URL.Path)
		assert.Equal(t, kqkFEN, r.URL.Query().Get("fen"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

const winBody = `{"category":"win","dtz":5,"moves":[
	{"uci":"h1h3","category":"loss","dtz":-4},
	{"uci":"h1h2","category":"draw","dtz":null}]}`

func TestHTTPProberProbe(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, winBody)
	p := NewHTTPProber(srv.URL+"/", zerolog.Nop())

	res := p.Probe(mustParse(t, kqkFEN))
	assert.Equal(t, ProbeResult{Found: true, WDL: WDLWin, DTZ: 5}, res)

	root := p.ProbeRoot(mustParse(t, kqkFEN))
	require.True(t, root.Found)
	assert.Equal(t, "h1h3", root.Move.String())
	assert.Equal(t, WDLWin, root.WDL)
	assert.Equal(t, int32(2), calls.Load())

	assert.False(t, p.Probe(board.NewPosition()).Found)
	assert.Equal(t, int32(2), calls.Load(), "unprobeable positions are not sent")
}

func TestHTTPProberFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{}`},
		{"bad json", http.StatusOK, `{"category":`},
		{"unknown category", http.StatusOK, `{"category":"unknown","moves":[]}`},
		{"no moves", http.StatusOK, `{"category":"draw","moves":[]}`},
		{"bad move", http.StatusOK, `{"category":"win","moves":[{"uci":"a1a1","category":"loss"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newServer(t, tt.status, tt.body)
			p := NewHTTPProber(srv.URL, zerolog.Nop())
			assert.False(t, p.ProbeRoot(mustParse(t, kqkFEN)).Found)
		})
	}
}

func TestHTTPProberTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	p := NewHTTPProber(srv.URL, zerolog.Nop())
	p.Timeout = 20 * time.Millisecond
	start := time.Now()
	assert.False(t, p.Probe(mustParse(t, kqkFEN)).Found)
	assert.Less(t, time.Since(start), time.Second)
}

type countingProber struct {
	probes, roots int
}

func (c *countingProber) Probeable(pos *board.Position) bool { return Probeable(pos, 5) }

func (c *countingProber) Probe(*board.Position) ProbeResult {
	c.probes++
	return ProbeResult{Found: true, WDL: WDLWin, DTZ: 3}
}

func (c *countingProber) ProbeRoot(*board.Position) RootResult {
	c.roots++
	return RootResult{Found: true, Move: board.NewMove(board.H1, board.H3), WDL: WDLWin}
}

func (c *countingProber) MaxPieces() int { return 5 }

func TestCachedProber(t *testing.T) {
	inner := &countingProber{}
	cp, err := NewCachedProber(inner, 64)
	require.NoError(t, err)
	t.Cleanup(cp.Close)

	pos := mustParse(t, kqkFEN)
	first := cp.Probe(pos)
	second := cp.Probe(pos)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.probes)

	cp.ProbeRoot(pos)
	root := cp.ProbeRoot(pos)
	assert.Equal(t, "h1h3", root.Move.String())
	assert.Equal(t, 1, inner.roots)

	assert.Equal(t, uint64(2), cp.Hits())
	assert.Equal(t, uint64(2), cp.Misses())
	assert.InDelta(t, 50.0, cp.HitRate(), 1e-9)
	assert.Equal(t, 5, cp.MaxPieces())

	assert.False(t, cp.Probe(board.NewPosition()).Found)
	assert.Equal(t, 1, inner.probes, "unprobeable positions bypass the cache")

	cp.Clear()
	assert.Zero(t, cp.HitRate())
	cp.Probe(pos)
	assert.Equal(t, 2, inner.probes)
}
