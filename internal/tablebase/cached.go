package tablebase

import (
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/rs/zerolog"

	"github.com/hailam/chesscore/internal/board"
)

// CachedProber wraps another prober with bounded caches keyed by the
// position hash. Misses are cached too, so an unreachable server is not
// asked twice about the same position.
type CachedProber struct {
	inner  Prober
	probes *ristretto.Cache[uint64, ProbeResult]
	roots  *ristretto.Cache[uint64, RootResult]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCachedProber creates a cached prober holding roughly maxEntries
// results of each kind.
func NewCachedProber(inner Prober, maxEntries int) (*CachedProber, error) {
	if maxEntries < 1 {
		maxEntries = 1
	}
	probes, err := newCache[ProbeResult](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("tablebase: probe cache: %w", err)
	}
	roots, err := newCache[RootResult](maxEntries)
	if err != nil {
		probes.Close()
		return nil, fmt.Errorf("tablebase: root cache: %w", err)
	}
	return &CachedProber{inner: inner, probes: probes, roots: roots}, nil
}

// NewCachedLichessProber creates a cached Lichess prober with default cache size.
func NewCachedLichessProber(logger zerolog.Logger) (*CachedProber, error) {
	return NewCachedProber(NewLichessProber(logger), 100000)
}

func newCache[V any](maxEntries int) (*ristretto.Cache[uint64, V], error) {
	return ristretto.NewCache(&ristretto.Config[uint64, V]{
		NumCounters:        int64(maxEntries) * 10,
		MaxCost:            int64(maxEntries),
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
}

func (cp *CachedProber) Probeable(pos *board.Position) bool {
	return cp.inner.Probeable(pos)
}

func (cp *CachedProber) Probe(pos *board.Position) ProbeResult {
	if !cp.inner.Probeable(pos) {
		return ProbeResult{}
	}
	if r, ok := cp.probes.Get(pos.Hash); ok {
		cp.hits.Add(1)
		return r
	}
	cp.misses.Add(1)
	r := cp.inner.Probe(pos)
	cp.probes.Set(pos.Hash, r, 1)
	cp.probes.Wait()
	return r
}

// ProbeRoot results carry a move, which is only meaningful for the exact
// position; a hash collision is caught by the engine's legality check.
func (cp *CachedProber) ProbeRoot(pos *board.Position) RootResult {
	if !cp.inner.Probeable(pos) {
		return RootResult{}
	}
	if r, ok := cp.roots.Get(pos.Hash); ok {
		cp.hits.Add(1)
		return r
	}
	cp.misses.Add(1)
	r := cp.inner.ProbeRoot(pos)
	cp.roots.Set(pos.Hash, r, 1)
	cp.roots.Wait()
	return r
}

func (cp *CachedProber) MaxPieces() int {
	return cp.inner.MaxPieces()
}

// Hits returns the number of lookups answered from the cache.
func (cp *CachedProber) Hits() uint64 { return cp.hits.Load() }

// Misses returns the number of lookups forwarded to the inner prober.
func (cp *CachedProber) Misses() uint64 { return cp.misses.Load() }

// HitRate returns the cache hit rate as a percentage.
func (cp *CachedProber) HitRate() float64 {
	hits, misses := cp.hits.Load(), cp.misses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses) * 100
}

// Clear drops every cached result and resets the counters.
func (cp *CachedProber) Clear() {
	cp.probes.Clear()
	cp.roots.Clear()
	cp.hits.Store(0)
	cp.misses.Store(0)
}

// Close stops the cache goroutines. The prober must not be used afterwards.
func (cp *CachedProber) Close() {
	cp.probes.Close()
	cp.roots.Close()
}
