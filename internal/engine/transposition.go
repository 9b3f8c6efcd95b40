package engine

import (
	"github.com/hailam/chesscore/internal/board"
)

// TTFlag indicates the type of bound stored in the transposition table.
type TTFlag uint8

const (
	TTExact      TTFlag = iota // Exact score
	TTLowerBound               // Failed high (beta cutoff)
	TTUpperBound               // Failed low
)

func (f TTFlag) String() string {
	switch f {
	case TTExact:
		return "exact"
	case TTLowerBound:
		return "lower"
	case TTUpperBound:
		return "upper"
	}
	return "?"
}

// ttEntrySize is the in-memory size of TTEntry, used to turn megabytes into
// an entry count.
const ttEntrySize = 16

// TTEntry represents an entry in the transposition table. Age 0 marks a
// slot that was never written.
type TTEntry struct {
	Key      uint64     // Full 64-bit Zobrist hash
	BestMove board.Move // Best move found
	Score    int16      // Score (bounded by flag), mate scores relative to the node
	Depth    int8       // Search depth
	Flag     TTFlag     // Type of bound
	Age      uint8      // Generation that wrote the entry
}

// TranspositionTable is a fixed-size, direct-mapped hash table of search
// results. It is owned by a single search goroutine and takes no locks.
type TranspositionTable struct {
	entries    []TTEntry
	mask       uint64
	generation uint8
}

// NewTranspositionTable creates a transposition table with the given size in MB.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	if sizeMB < 1 {
		sizeMB = 1
	}
	return NewTranspositionTableEntries(uint64(sizeMB) * 1024 * 1024 / ttEntrySize)
}

// NewTranspositionTableEntries creates a table holding n entries, rounded
// down to a power of two (minimum 1).
func NewTranspositionTableEntries(n uint64) *TranspositionTable {
	n = roundDownToPowerOf2(max(n, 1))
	return &TranspositionTable{
		entries:    make([]TTEntry, n),
		mask:       n - 1,
		generation: 1,
	}
}

// roundDownToPowerOf2 rounds n down to the nearest power of 2.
func roundDownToPowerOf2(n uint64) uint64 {
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return (n + 1) >> 1
}

// Probe looks up hash. The stored move is returned whenever the key
// matches; the score is usable only when the entry is at least depth deep
// and its bound is compatible with the (alpha, beta) window. Mate scores
// are converted back to distances from the root using ply.
func (tt *TranspositionTable) Probe(hash uint64, depth, ply, alpha, beta int) (score int, move board.Move, usable bool) {
	e := &tt.entries[hash&tt.mask]
	if e.Age == 0 || e.Key != hash {
		return 0, board.NoMove, false
	}
	move = e.BestMove
	if int(e.Depth) < depth {
		return 0, move, false
	}
	score = scoreFromTT(int(e.Score), ply)
	switch e.Flag {
	case TTExact:
		usable = true
	case TTUpperBound:
		usable = score <= alpha
	case TTLowerBound:
		usable = score >= beta
	}
	return score, move, usable
}

// Entry returns the raw slot for hash and whether it holds that key.
func (tt *TranspositionTable) Entry(hash uint64) (TTEntry, bool) {
	e := tt.entries[hash&tt.mask]
	return e, e.Age != 0 && e.Key == hash
}

// Store saves a search result. An empty slot or one holding the same key is
// always overwritten; otherwise the new entry replaces the old one only if
// it is strictly deeper or the old one belongs to an earlier generation.
func (tt *TranspositionTable) Store(hash uint64, depth, ply, score int, flag TTFlag, move board.Move) {
	e := &tt.entries[hash&tt.mask]
	if e.Age != 0 && e.Key != hash && depth <= int(e.Depth) && e.Age == tt.generation {
		return
	}
	e.Key = hash
	e.BestMove = move
	e.Score = int16(scoreToTT(score, ply))
	e.Depth = int8(min(depth, 127))
	e.Flag = flag
	e.Age = tt.generation
}

// NewSearch advances the generation. It wraps around without ever taking
// the value 0, which is reserved for empty slots.
func (tt *TranspositionTable) NewSearch() {
	tt.generation++
	if tt.generation == 0 {
		tt.generation = 1
	}
}

// Generation returns the current generation.
func (tt *TranspositionTable) Generation() uint8 {
	return tt.generation
}

// Clear empties the table and resets the generation.
func (tt *TranspositionTable) Clear() {
	clear(tt.entries)
	tt.generation = 1
}

// HashFull returns the permille of sampled entries written in the current
// generation.
func (tt *TranspositionTable) HashFull() int {
	sample := min(len(tt.entries), 1000)
	used := 0
	for i := 0; i < sample; i++ {
		if tt.entries[i].Age == tt.generation {
			used++
		}
	}
	return used * 1000 / sample
}

// Size returns the number of entries in the table.
func (tt *TranspositionTable) Size() uint64 {
	return uint64(len(tt.entries))
}

// scoreToTT makes a mate score relative to the storing node.
func scoreToTT(score, ply int) int {
	if score > MateScore-MaxPly {
		return score + ply
	}
	if score < -MateScore+MaxPly {
		return score - ply
	}
	return score
}

// scoreFromTT makes a stored mate score relative to the root again.
func scoreFromTT(score, ply int) int {
	if score > MateScore-MaxPly {
		return score - ply
	}
	if score < -MateScore+MaxPly {
		return score + ply
	}
	return score
}
