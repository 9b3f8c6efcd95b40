// Package tablebase looks up endgame results for positions with few pieces.
package tablebase

import (
	"github.com/hailam/chesscore/internal/board"
)

// WDL represents Win/Draw/Loss result, from the side to move.
type WDL int

const (
	WDLLoss        WDL = -2
	WDLBlessedLoss WDL = -1 // Loss that the 50-move rule turns into a draw
	WDLDraw        WDL = 0
	WDLCursedWin   WDL = 1 // Win that the 50-move rule turns into a draw
	WDLWin         WDL = 2
)

func (w WDL) String() string {
	switch w {
	case WDLLoss:
		return "loss"
	case WDLBlessedLoss:
		return "blessed-loss"
	case WDLDraw:
		return "draw"
	case WDLCursedWin:
		return "cursed-win"
	case WDLWin:
		return "win"
	}
	return "unknown"
}

// ProbeResult contains the result of a tablebase probe.
type ProbeResult struct {
	Found bool
	WDL   WDL
	DTZ   int // Distance to zeroing move (pawn move or capture)
}

// RootResult contains the best move from tablebase at root position.
type RootResult struct {
	Found bool
	Move  board.Move
	WDL   WDL
	DTZ   int
}

// Prober is the interface for tablebase probing.
type Prober interface {
	// Probeable reports whether pos is covered: few enough pieces and no
	// castling rights.
	Probeable(pos *board.Position) bool

	// Probe looks up a position in the tablebase.
	Probe(pos *board.Position) ProbeResult

	// ProbeRoot finds the move that best preserves the tablebase result.
	ProbeRoot(pos *board.Position) RootResult

	// MaxPieces returns the maximum number of pieces supported, kings
	// included.
	MaxPieces() int
}

// Probeable is the coverage rule shared by the probers.
func Probeable(pos *board.Position, maxPieces int) bool {
	return pos.CastlingRights == board.NoCastling && CountPieces(pos) <= maxPieces
}

// WDLToScore converts a WDL result to a search score. win is the score of
// a certain win at the root; results further from the root score closer to
// zero. Cursed wins and blessed losses score as small edges, not mates.
func WDLToScore(wdl WDL, win, ply int) int {
	switch wdl {
	case WDLWin:
		return win - ply
	case WDLCursedWin:
		return 1
	case WDLBlessedLoss:
		return -1
	case WDLLoss:
		return -win + ply
	}
	return 0
}

// NoopProber is a prober that always returns "not found".
// Use this as a placeholder when tablebases are not available.
type NoopProber struct{}

func (NoopProber) Probeable(*board.Position) bool { return false }

func (NoopProber) Probe(*board.Position) ProbeResult { return ProbeResult{} }

func (NoopProber) ProbeRoot(*board.Position) RootResult { return RootResult{} }

func (NoopProber) MaxPieces() int { return 0 }

// CountPieces returns the total number of pieces on the board.
func CountPieces(pos *board.Position) int {
	return pos.AllOccupied.PopCount()
}
