// Package engine implements the position evaluator, transposition table and
// alpha-beta search that choose a move.
package engine

import (
	"github.com/hailam/chesscore/internal/board"
)

// Evaluator scores a position statically, in centipawns, from the point of
// view of the side to move.
type Evaluator interface {
	Evaluate(pos *board.Position) int
}

// Evaluation constants
const (
	PawnValue   = 100
	KnightValue = 320
	BishopValue = 330
	RookValue   = 500
	QueenValue  = 900
	KingValue   = 20000
)

// Piece values array for quick lookup
var pieceValues = [7]int{PawnValue, KnightValue, BishopValue, RookValue, QueenValue, KingValue, 0}

// Endgame material shifts value from minor pieces towards pawns and rooks.
var endgameValues = [7]int{120, 300, 320, 530, 950, 0, 0}

// Phase weight per piece type; 24 is a full set of pieces.
var phaseWeight = [7]int{0, 1, 1, 2, 4, 0, 0}

const (
	maxPhase   = 24
	tempoBonus = 10
)

// MaterialEvaluator counts material only.
type MaterialEvaluator struct{}

// Evaluate implements Evaluator.
func (MaterialEvaluator) Evaluate(pos *board.Position) int {
	score := pos.Material()
	if pos.SideToMove == board.Black {
		return -score
	}
	return score
}

// PSTEvaluator scores material and piece placement, interpolating between
// middlegame and endgame tables by the remaining non-pawn material.
type PSTEvaluator struct{}

// Evaluate implements Evaluator.
func (PSTEvaluator) Evaluate(pos *board.Position) int {
	var mg, eg, phase int
	for c := board.White; c <= board.Black; c++ {
		sign := 1
		if c == board.Black {
			sign = -1
		}
		for pt := board.Pawn; pt <= board.King; pt++ {
			bb := pos.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				// Tables are written rank 8 first, as seen by White.
				idx := sq
				if c == board.White {
					idx = sq.Mirror()
				}
				mg += sign * (pieceValues[pt]*btoi(pt != board.King) + mgTables[pt][idx])
				eg += sign * (endgameValues[pt] + egTables[pt][idx])
				phase += phaseWeight[pt]
			}
		}
	}
	phase = min(phase, maxPhase)
	score := (mg*phase + eg*(maxPhase-phase)) / maxPhase
	if pos.SideToMove == board.Black {
		score = -score
	}
	return score + tempoBonus
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Piece-Square Tables, rank 8 first, from White's perspective.

var pawnPST = [64]int{
	0, 0, 0, 0, 0, 0, 0, 0,
	50, 50, 50, 50, 50, 50, 50, 50,
	10, 10, 20, 30, 30, 20, 10, 10,
	5, 5, 10, 25, 25, 10, 5, 5,
	0, 0, 0, 20, 20, 0, 0, 0,
	5, -5, -10, 0, 0, -10, -5, 5,
	5, 10, 10, -20, -20, 10, 10, 5,
	0, 0, 0, 0, 0, 0, 0, 0,
}

// Passed pawns matter more once pieces come off.
var pawnEndgamePST = [64]int{
	0, 0, 0, 0, 0, 0, 0, 0,
	80, 80, 80, 80, 80, 80, 80, 80,
	50, 50, 50, 50, 50, 50, 50, 50,
	30, 30, 30, 30, 30, 30, 30, 30,
	15, 15, 15, 15, 15, 15, 15, 15,
	5, 5, 5, 5, 5, 5, 5, 5,
	0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0,
}

var knightPST = [64]int{
	-50, -40, -30, -30, -30, -30, -40, -50,
	-40, -20, 0, 0, 0, 0, -20, -40,
	-30, 0, 10, 15, 15, 10, 0, -30,
	-30, 5, 15, 20, 20, 15, 5, -30,
	-30, 0, 15, 20, 20, 15, 0, -30,
	-30, 5, 10, 15, 15, 10, 5, -30,
	-40, -20, 0, 5, 5, 0, -20, -40,
	-50, -40, -30, -30, -30, -30, -40, -50,
}

var bishopPST = [64]int{
	-20, -10, -10, -10, -10, -10, -10, -20,
	-10, 0, 0, 0, 0, 0, 0, -10,
	-10, 0, 5, 10, 10, 5, 0, -10,
	-10, 5, 5, 10, 10, 5, 5, -10,
	-10, 0, 10, 10, 10, 10, 0, -10,
	-10, 10, 10, 10, 10, 10, 10, -10,
	-10, 5, 0, 0, 0, 0, 5, -10,
	-20, -10, -10, -10, -10, -10, -10, -20,
}

var rookPST = [64]int{
	0, 0, 0, 0, 0, 0, 0, 0,
	5, 10, 10, 10, 10, 10, 10, 5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	0, 0, 0, 5, 5, 0, 0, 0,
}

var queenPST = [64]int{
	-20, -10, -10, -5, -5, -10, -10, -20,
	-10, 0, 0, 0, 0, 0, 0, -10,
	-10, 0, 5, 5, 5, 5, 0, -10,
	-5, 0, 5, 5, 5, 5, 0, -5,
	0, 0, 5, 5, 5, 5, 0, -5,
	-10, 5, 5, 5, 5, 5, 0, -10,
	-10, 0, 5, 0, 0, 0, 0, -10,
	-20, -10, -10, -5, -5, -10, -10, -20,
}

// King stays sheltered while queens are on.
var kingMidgamePST = [64]int{
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-20, -30, -30, -40, -40, -30, -30, -20,
	-10, -20, -20, -20, -20, -20, -20, -10,
	20, 20, 0, 0, 0, 0, 20, 20,
	20, 30, 10, 0, 0, 10, 30, 20,
}

// King centralizes in the endgame.
var kingEndgamePST = [64]int{
	-50, -40, -30, -20, -20, -30, -40, -50,
	-30, -20, -10, 0, 0, -10, -20, -30,
	-30, -10, 20, 30, 30, 20, -10, -30,
	-30, -10, 30, 40, 40, 30, -10, -30,
	-30, -10, 30, 40, 40, 30, -10, -30,
	-30, -10, 20, 30, 30, 20, -10, -30,
	-30, -30, 0, 0, 0, 0, -30, -30,
	-50, -30, -30, -30, -30, -30, -30, -50,
}

var (
	mgTables = [6]*[64]int{&pawnPST, &knightPST, &bishopPST, &rookPST, &queenPST, &kingMidgamePST}
	egTables = [6]*[64]int{&pawnEndgamePST, &knightPST, &bishopPST, &rookPST, &queenPST, &kingEndgamePST}
)

// SEE (Static Exchange Evaluation) estimates the material outcome of the
// capture sequence started by m on its target square, from the mover's side.
func SEE(pos *board.Position, m board.Move) int {
	from, to := m.From(), m.To()
	attacker := pos.PieceAt(from)
	if attacker == board.NoPiece {
		return 0
	}

	var gain [32]int
	switch {
	case m.IsEnPassant():
		gain[0] = PawnValue
	case pos.PieceAt(to) != board.NoPiece:
		gain[0] = pieceValues[pos.PieceAt(to).Type()]
	default:
		return 0
	}
	if m.IsPromotion() {
		gain[0] += pieceValues[m.Promotion()] - PawnValue
	}

	occupied := pos.AllOccupied &^ board.SquareBB(from)
	onSquare := pieceValues[attacker.Type()]
	side := attacker.Color().Other()
	d := 0
	for d < len(gain)-1 {
		sq, pt := leastValuableAttacker(pos, to, side, occupied)
		if sq == board.NoSquare {
			break
		}
		d++
		gain[d] = onSquare - gain[d-1]
		if max(-gain[d-1], gain[d]) < 0 {
			break
		}
		occupied &^= board.SquareBB(sq)
		onSquare = pieceValues[pt]
		side = side.Other()
	}
	for ; d > 0; d-- {
		gain[d-1] = -max(-gain[d-1], gain[d])
	}
	return gain[0]
}

// leastValuableAttacker finds the cheapest piece of side attacking target
// through occupied, so x-rays appear as pieces are removed.
func leastValuableAttacker(pos *board.Position, target board.Square, side board.Color, occupied board.Bitboard) (board.Square, board.PieceType) {
	attackers := pos.AttackersByColor(target, side, occupied) & occupied
	if attackers == 0 {
		return board.NoSquare, board.NoPieceType
	}
	for pt := board.Pawn; pt <= board.King; pt++ {
		if bb := attackers & pos.Pieces[side][pt]; bb != 0 {
			return bb.LSB(), pt
		}
	}
	return board.NoSquare, board.NoPieceType
}
