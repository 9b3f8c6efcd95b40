package engine

import (
	"github.com/hailam/chesscore/internal/board"
)

// Move ordering priorities
const (
	TTMoveScore     = 10000000 // TT move gets highest priority
	GoodCaptureBase = 1000000  // Base score for captures that do not lose material
	PromotionBase   = 950000   // Quiet promotions
	KillerScore1    = 900000   // First killer move
	KillerScore2    = 800000   // Second killer move
	CheckScore      = 700000   // Quiet moves that give check
	BadCaptureBase  = -100000  // Losing captures
)

// historyLimit triggers halving of the whole history table.
const historyLimit = 400000

// MVV-LVA (Most Valuable Victim - Least Valuable Attacker) scores
// Higher score = search first
var mvvLva = [6][6]int{
	//       P    N    B    R    Q    K  (attacker)
	/* P */ {15, 14, 14, 13, 12, 11},
	/* N */ {25, 24, 24, 23, 22, 21},
	/* B */ {35, 34, 34, 33, 32, 31},
	/* R */ {45, 44, 44, 43, 42, 41},
	/* Q */ {55, 54, 54, 53, 52, 51},
	/* K */ {0, 0, 0, 0, 0, 0},
}

// MoveOrderer holds the heuristics that survive between nodes of a search.
type MoveOrderer struct {
	// Killer moves (quiet moves that caused beta cutoffs)
	killers [MaxPly][2]board.Move

	// History heuristic (indexed by [from][to])
	history [64][64]int
}

// NewMoveOrderer creates a new move orderer.
func NewMoveOrderer() *MoveOrderer {
	return &MoveOrderer{}
}

// Clear drops the killers and ages the history for a new search.
func (mo *MoveOrderer) Clear() {
	mo.killers = [MaxPly][2]board.Move{}
	mo.ageHistory()
}

// Reset forgets everything, as for a new game.
func (mo *MoveOrderer) Reset() {
	*mo = MoveOrderer{}
}

func (mo *MoveOrderer) ageHistory() {
	for i := range mo.history {
		for j := range mo.history[i] {
			mo.history[i][j] /= 2
		}
	}
}

// ScoreMoves writes an ordering score for every move of moves into scores.
func (mo *MoveOrderer) ScoreMoves(pos *board.Position, moves *board.MoveList, scores []int, ply int, ttMove board.Move) {
	for i := 0; i < moves.Len(); i++ {
		scores[i] = mo.scoreMove(pos, moves.Get(i), ply, ttMove)
	}
}

func (mo *MoveOrderer) scoreMove(pos *board.Position, m board.Move, ply int, ttMove board.Move) int {
	if m == ttMove {
		return TTMoveScore
	}

	if pos.IsCapture(m) {
		attacker := pos.PieceAt(m.From()).Type()
		victim := board.Pawn
		if !m.IsEnPassant() {
			victim = pos.PieceAt(m.To()).Type()
		}
		score := mvvLva[victim][attacker] * 1000
		if m.IsPromotion() {
			score += pieceValues[m.Promotion()]
		}
		if pieceValues[attacker] > pieceValues[victim] && SEE(pos, m) < 0 {
			return BadCaptureBase + score
		}
		return GoodCaptureBase + score
	}

	if m.IsPromotion() {
		return PromotionBase + int(m.Promotion())*100
	}

	if ply < MaxPly {
		if m == mo.killers[ply][0] {
			return KillerScore1
		}
		if m == mo.killers[ply][1] {
			return KillerScore2
		}
	}

	if pos.GivesCheck(m) {
		return CheckScore
	}
	return mo.history[m.From()][m.To()]
}

// PickMove selects the best remaining move and moves it to position index.
// This allows lazy move sorting (only sort as much as needed).
func PickMove(moves *board.MoveList, scores []int, index int) {
	best := index
	for j := index + 1; j < moves.Len(); j++ {
		if scores[j] > scores[best] {
			best = j
		}
	}
	if best != index {
		moves.Swap(index, best)
		scores[index], scores[best] = scores[best], scores[index]
	}
}

// UpdateKillers adds a killer move at the given ply.
func (mo *MoveOrderer) UpdateKillers(m board.Move, ply int) {
	if ply >= MaxPly || mo.killers[ply][0] == m {
		return
	}
	mo.killers[ply][1] = mo.killers[ply][0]
	mo.killers[ply][0] = m
}

// Killers returns the two killer moves stored at ply.
func (mo *MoveOrderer) Killers(ply int) (board.Move, board.Move) {
	if ply >= MaxPly {
		return board.NoMove, board.NoMove
	}
	return mo.killers[ply][0], mo.killers[ply][1]
}

// UpdateHistory rewards a quiet move that caused a cutoff, or penalizes one
// that was searched before it.
func (mo *MoveOrderer) UpdateHistory(m board.Move, depth int, isGood bool) {
	from, to := m.From(), m.To()
	bonus := depth * depth
	if isGood {
		mo.history[from][to] += bonus
		if mo.history[from][to] > historyLimit {
			mo.ageHistory()
		}
		return
	}
	mo.history[from][to] = max(mo.history[from][to]-bonus, -historyLimit)
}

// HistoryScore returns the history score for a move.
func (mo *MoveOrderer) HistoryScore(m board.Move) int {
	return mo.history[m.From()][m.To()]
}
