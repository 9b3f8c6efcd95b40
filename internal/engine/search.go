package engine

import (
	"sync/atomic"
	"time"

	"github.com/hailam/chesscore/internal/board"
)

// Search constants
const (
	Infinity  = 30000
	MateScore = 29000
	MaxPly    = 128
)

const (
	maxQuiescencePly = 32
	stopCheckMask    = 2048 - 1
	deltaMargin      = 200
)

// Options selects the optional parts of the search. The zero value is the
// pure alpha-beta search: no transposition table, no quiescence, no null
// move.
type Options struct {
	UseTT      bool
	Quiescence bool
	NullMove   bool
}

// DefaultOptions enables every search feature.
var DefaultOptions = Options{UseTT: true, Quiescence: true, NullMove: true}

// Pure reports whether no optional feature is enabled.
func (o Options) Pure() bool {
	return !o.UseTT && !o.Quiescence && !o.NullMove
}

// PVTable stores the principal variation.
type PVTable struct {
	length [MaxPly + 1]int
	moves  [MaxPly + 1][MaxPly + 1]board.Move
}

func (pv *PVTable) update(ply int, m board.Move) {
	pv.moves[ply][ply] = m
	for i := ply + 1; i < pv.length[ply+1]; i++ {
		pv.moves[ply][i] = pv.moves[ply+1][i]
	}
	pv.length[ply] = max(pv.length[ply+1], ply+1)
}

// Searcher performs fail-soft negamax alpha-beta on one position. It is
// not safe for concurrent use apart from Stop.
type Searcher struct {
	tt      *TranspositionTable
	eval    Evaluator
	orderer *MoveOrderer
	opts    Options

	pos       *board.Position
	pv        PVTable
	moves     [MaxPly + 1]board.MoveList
	scores    [MaxPly + 1][board.MaxMoves]int
	history   []uint64
	rootBest  board.Move
	rootScore int

	nodes     uint64
	nodeLimit uint64
	deadline  time.Time
	stopFlag  atomic.Bool
	stopped   bool
}

// NewSearcher creates a searcher. tt may be nil when opts.UseTT is false.
func NewSearcher(tt *TranspositionTable, eval Evaluator, opts Options) *Searcher {
	if eval == nil {
		eval = PSTEvaluator{}
	}
	if tt == nil {
		opts.UseTT = false
	}
	return &Searcher{
		tt:      tt,
		eval:    eval,
		orderer: NewMoveOrderer(),
		opts:    opts,
	}
}

// Stop asks a running search to return. Safe to call from any goroutine.
func (s *Searcher) Stop() {
	s.stopFlag.Store(true)
}

// Stopped reports whether the last search was interrupted.
func (s *Searcher) Stopped() bool {
	return s.stopped
}

// Nodes returns the number of nodes searched since Prepare.
func (s *Searcher) Nodes() uint64 {
	return s.nodes
}

// SetHistory records the hashes of positions that preceded the root but are
// not on its undo stack, oldest first, for repetition detection.
func (s *Searcher) SetHistory(hashes []uint64) {
	s.history = append(s.history[:0], hashes...)
}

// Prepare readies the searcher for a new search of pos. A zero nodeLimit or
// deadline means unlimited. The stop flag is cleared.
func (s *Searcher) Prepare(pos *board.Position, nodeLimit uint64, deadline time.Time) {
	s.pos = pos
	s.nodes = 0
	s.nodeLimit = nodeLimit
	s.deadline = deadline
	s.stopped = false
	s.stopFlag.Store(false)
	s.rootBest = board.NoMove
	s.orderer.Clear()
}

// SearchDepth runs one full-depth search of the prepared position within
// (alpha, beta) and returns the best root move and its score. After an
// interruption the move is the best among the root moves already searched,
// or NoMove.
func (s *Searcher) SearchDepth(depth, alpha, beta int) (board.Move, int) {
	prevBest := s.rootBest
	s.rootBest = board.NoMove
	s.rootScore = -Infinity
	s.pv.length[0] = 0
	score := s.negamax(depth, 0, alpha, beta, prevBest)
	if s.stopped {
		return s.rootBest, s.rootScore
	}
	return s.rootBest, score
}

// PV returns the principal variation of the last completed search.
func (s *Searcher) PV() []board.Move {
	out := make([]board.Move, s.pv.length[0])
	copy(out, s.pv.moves[0][:s.pv.length[0]])
	return out
}

// checkStop polls the stop conditions every 2048 nodes.
func (s *Searcher) checkStop() bool {
	if s.stopped {
		return true
	}
	if s.nodes&stopCheckMask != 0 {
		return false
	}
	switch {
	case s.stopFlag.Load():
		s.stopped = true
	case s.nodeLimit > 0 && s.nodes >= s.nodeLimit:
		s.stopped = true
	case !s.deadline.IsZero() && time.Now().After(s.deadline):
		s.stopped = true
	}
	return s.stopped
}

// isRepetition reports whether the current position occurred before since
// the last irreversible move, on the undo stack or in the game history.
func (s *Searcher) isRepetition() bool {
	pos := s.pos
	if pos.RepetitionCount() > 0 {
		return true
	}
	n, window := pos.Ply(), pos.ReversiblePlies()
	for back := n + 1; back <= window; back++ {
		if back%2 != 0 {
			continue
		}
		k := back - n
		if k > len(s.history) {
			break
		}
		if s.history[len(s.history)-k] == pos.Hash {
			return true
		}
	}
	return false
}

func (s *Searcher) evaluate() int {
	return s.eval.Evaluate(s.pos)
}

func (s *Searcher) negamax(depth, ply, alpha, beta int, hint board.Move) int {
	pos := s.pos
	s.nodes++
	if s.checkStop() {
		return 0
	}
	s.pv.length[ply] = ply

	if ply > 0 {
		if pos.IsInsufficientMaterial() || s.isRepetition() {
			return 0
		}
		if pos.HalfMoveClock >= 100 {
			if pos.InCheck() && !pos.HasLegalMoves() {
				return -MateScore + ply
			}
			return 0
		}
	}
	if ply >= MaxPly {
		return s.evaluate()
	}
	if depth <= 0 {
		if s.opts.Quiescence {
			return s.quiescence(ply, 0, alpha, beta)
		}
		if !pos.HasLegalMoves() {
			if pos.InCheck() {
				return -MateScore + ply
			}
			return 0
		}
		return s.evaluate()
	}

	ttMove := hint
	if s.opts.UseTT {
		score, move, usable := s.tt.Probe(pos.Hash, depth, ply, alpha, beta)
		if usable && ply > 0 {
			return score
		}
		if move != board.NoMove {
			ttMove = move
		}
	}

	inCheck := pos.InCheck()

	if s.opts.NullMove && ply > 0 && depth >= 3 && !inCheck &&
		pos.LastMove() != board.NoMove && pos.HasNonPawnMaterial() &&
		beta < MateScore-MaxPly && s.evaluate() >= beta {
		r := 2 + depth/4
		pos.MakeNullMove()
		score := -s.negamax(depth-1-r, ply+1, -beta, -beta+1, board.NoMove)
		pos.UnmakeNullMove()
		if s.stopped {
			return 0
		}
		if score >= beta {
			if score > MateScore-MaxPly {
				score = beta
			}
			return score
		}
	}

	moves := &s.moves[ply]
	pos.GenerateLegalMovesInto(moves)
	if moves.Len() == 0 {
		if inCheck {
			return -MateScore + ply
		}
		return 0
	}

	scores := s.scores[ply][:moves.Len()]
	s.orderer.ScoreMoves(pos, moves, scores, ply, ttMove)

	origAlpha := alpha
	bestScore := -Infinity
	bestMove := board.NoMove
	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, scores, i)
		m := moves.Get(i)
		quiet := pos.IsQuiet(m)

		pos.MakeMove(m)
		score := -s.negamax(depth-1, ply+1, -beta, -alpha, board.NoMove)
		pos.UnmakeMove()
		if s.stopped {
			return 0
		}

		if score > bestScore {
			bestScore = score
			bestMove = m
			if ply == 0 {
				s.rootBest, s.rootScore = m, score
			}
		}
		if score > alpha {
			alpha = score
			s.pv.update(ply, m)
		}
		if alpha >= beta {
			if quiet {
				s.orderer.UpdateKillers(m, ply)
				s.orderer.UpdateHistory(m, depth, true)
				for j := 0; j < i; j++ {
					if prev := moves.Get(j); pos.IsQuiet(prev) {
						s.orderer.UpdateHistory(prev, depth, false)
					}
				}
			}
			break
		}
	}

	if s.opts.UseTT {
		flag := TTUpperBound
		switch {
		case bestScore >= beta:
			flag = TTLowerBound
		case bestScore > origAlpha:
			flag = TTExact
		}
		s.tt.Store(pos.Hash, depth, ply, bestScore, flag, bestMove)
	}
	return bestScore
}

// quiescence resolves captures, and checks at its first ply, until the
// position is quiet enough for the static evaluation.
func (s *Searcher) quiescence(ply, qply, alpha, beta int) int {
	pos := s.pos
	s.nodes++
	if s.checkStop() {
		return 0
	}
	s.pv.length[ply] = ply
	if ply >= MaxPly || qply >= maxQuiescencePly {
		return s.evaluate()
	}

	inCheck := pos.InCheck()
	moves := &s.moves[ply]
	bestScore := -Infinity
	standPat := 0
	if inCheck {
		pos.GenerateLegalMovesInto(moves)
		if moves.Len() == 0 {
			return -MateScore + ply
		}
	} else {
		standPat = s.evaluate()
		if standPat >= beta {
			return standPat
		}
		alpha = max(alpha, standPat)
		bestScore = standPat
		if qply == 0 {
			pos.GenerateNoisyMovesInto(moves)
		} else {
			pos.GenerateCapturesInto(moves)
		}
	}

	scores := s.scores[ply][:moves.Len()]
	s.orderer.ScoreMoves(pos, moves, scores, MaxPly, board.NoMove)

	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, scores, i)
		m := moves.Get(i)

		if !inCheck && pos.IsCapture(m) && !m.IsPromotion() {
			gain := PawnValue
			if !m.IsEnPassant() {
				gain = pieceValues[pos.PieceAt(m.To()).Type()]
			}
			if standPat+gain+deltaMargin < alpha {
				continue
			}
		}

		pos.MakeMove(m)
		score := -s.quiescence(ply+1, qply+1, -beta, -alpha)
		pos.UnmakeMove()
		if s.stopped {
			return 0
		}

		if score > bestScore {
			bestScore = score
		}
		if score > alpha {
			alpha = score
			s.pv.update(ply, m)
		}
		if alpha >= beta {
			break
		}
	}
	return bestScore
}
