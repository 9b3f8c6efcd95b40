package engine

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/hailam/chesscore/internal/board"
	"github.com/hailam/chesscore/internal/tablebase"
)

// SearchInfo contains information about the current search.
type SearchInfo struct {
	Depth    int
	Score    int
	Nodes    uint64
	Time     time.Duration
	PV       []board.Move
	HashFull int // Permille of hash table used
}

// SearchLimits specifies constraints on the search. Zero fields are
// unlimited; clock fields are indexed by board.Color.
type SearchLimits struct {
	Depth     int           // Maximum depth
	Nodes     uint64        // Maximum nodes
	MoveTime  time.Duration // Fixed time for this move
	Infinite  bool          // Search until stopped
	Time      [2]time.Duration
	Inc       [2]time.Duration
	MovesToGo int
}

// Source tells where a Result's move came from.
type Source uint8

const (
	SourceNone Source = iota
	SourceSearch
	SourceBook
	SourceTablebase
)

func (s Source) String() string {
	switch s {
	case SourceSearch:
		return "search"
	case SourceBook:
		return "book"
	case SourceTablebase:
		return "tablebase"
	}
	return "none"
}

// Result is the outcome of one search.
type Result struct {
	Move   board.Move
	Score  int
	Depth  int // Deepest completed iteration
	Nodes  uint64
	Time   time.Duration
	PV     []board.Move
	Source Source
}

// Book supplies opening moves. The engine checks legality itself.
type Book interface {
	Probe(pos *board.Position) (board.Move, bool)
}

// Config holds the engine's construction parameters.
type Config struct {
	HashMB    int       // Transposition table size, default 64
	Evaluator Evaluator // Default PSTEvaluator
	Options   *Options  // Default DefaultOptions
	Book      Book
	Tablebase tablebase.Prober
	Logger    *zerolog.Logger
}

// Engine is the chess AI engine.
type Engine struct {
	tt       *TranspositionTable
	searcher *Searcher
	tm       *TimeManager
	eval     Evaluator
	book     Book
	tb       tablebase.Prober
	history  []uint64
	log      zerolog.Logger

	// Callbacks
	OnInfo func(SearchInfo)
}

// NewEngine creates an engine from cfg.
func NewEngine(cfg Config) *Engine {
	if cfg.HashMB <= 0 {
		cfg.HashMB = 64
	}
	if cfg.Evaluator == nil {
		cfg.Evaluator = PSTEvaluator{}
	}
	opts := DefaultOptions
	if cfg.Options != nil {
		opts = *cfg.Options
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("component", "engine").Logger()
	}
	tt := NewTranspositionTable(cfg.HashMB)
	return &Engine{
		tt:       tt,
		searcher: NewSearcher(tt, cfg.Evaluator, opts),
		tm:       NewTimeManager(),
		eval:     cfg.Evaluator,
		book:     cfg.Book,
		tb:       cfg.Tablebase,
		log:      log,
	}
}

// SetBook replaces the opening book; nil disables it.
func (e *Engine) SetBook(b Book) {
	e.book = b
}

// SetTablebase replaces the endgame prober; nil disables it.
func (e *Engine) SetTablebase(p tablebase.Prober) {
	e.tb = p
}

// SetHashSize reallocates the transposition table.
func (e *Engine) SetHashSize(sizeMB int) {
	e.tt = NewTranspositionTable(sizeMB)
	e.searcher.tt = e.tt
	e.log.Debug().Int("mb", sizeMB).Uint64("entries", e.tt.Size()).Msg("hash resized")
}

// SetPositionHistory records hashes of game positions before the searched
// position that are not on its undo stack, oldest first.
func (e *Engine) SetPositionHistory(hashes []uint64) {
	e.history = append(e.history[:0], hashes...)
}

// GetBestMove searches pos for at most budget and returns the move to play.
// It returns NoMove only when pos has no legal move.
func (e *Engine) GetBestMove(pos *board.Position, budget time.Duration) board.Move {
	return e.SearchWithLimits(pos, SearchLimits{MoveTime: budget}).Move
}

// SearchWithLimits finds the best move with specific search limits. pos is
// not modified.
func (e *Engine) SearchWithLimits(pos *board.Position, limits SearchLimits) Result {
	return e.Search(context.Background(), pos, limits)
}

// Search is SearchWithLimits that also stops when ctx is done, even if ctx
// is cancelled before the search starts. The result is still usable.
func (e *Engine) Search(ctx context.Context, pos *board.Position, limits SearchLimits) Result {
	start := time.Now()
	root := pos.Copy()
	legal := root.GenerateLegalMoves()
	if legal.Len() == 0 {
		return Result{Move: board.NoMove}
	}

	if r, ok := e.probeBook(root); ok {
		return r
	}
	if r, ok := e.probeTablebase(root); ok {
		return r
	}

	gamePly := (root.FullMoveNumber-1)*2 + int(root.SideToMove)
	e.tm.Init(limits, root.SideToMove, gamePly)
	e.tt.NewSearch()
	e.searcher.Prepare(root, limits.Nodes, e.tm.Deadline())
	e.searcher.SetHistory(e.history)
	release := context.AfterFunc(ctx, e.searcher.Stop)
	defer release()

	maxDepth := MaxPly - 1
	if limits.Depth > 0 {
		maxDepth = min(limits.Depth, maxDepth)
	}

	// Aspiration window parameters
	const initialWindow = 50

	res := Result{Source: SourceSearch}
	partial := board.NoMove
	stability := 0
	for depth := 1; depth <= maxDepth; depth++ {
		var move board.Move
		var score int
		if depth >= 5 && res.Move != board.NoMove {
			alpha, beta := res.Score-initialWindow, res.Score+initialWindow
		widen:
			for {
				move, score = e.searcher.SearchDepth(depth, alpha, beta)
				switch {
				case e.searcher.Stopped():
					break widen
				case score <= alpha && alpha > -Infinity:
					alpha = -Infinity
				case score >= beta && beta < Infinity:
					beta = Infinity
				default:
					break widen
				}
			}
		} else {
			move, score = e.searcher.SearchDepth(depth, -Infinity, Infinity)
		}

		if e.searcher.Stopped() {
			if move != board.NoMove {
				partial = move
			}
			break
		}
		if move == board.NoMove {
			break
		}

		if move == res.Move {
			stability++
		} else {
			stability = 0
		}
		res.Move, res.Score, res.Depth = move, score, depth
		res.PV = e.searcher.PV()

		if e.OnInfo != nil {
			e.OnInfo(SearchInfo{
				Depth:    depth,
				Score:    score,
				Nodes:    e.searcher.Nodes(),
				Time:     time.Since(start),
				PV:       res.PV,
				HashFull: e.tt.HashFull(),
			})
		}

		if !limits.Infinite && (score > MateScore-MaxPly || score < -MateScore+MaxPly) {
			break
		}
		e.tm.AdjustForStability(stability, limits.MoveTime > 0)
		if limits.MoveTime == 0 && e.tm.PastOptimum() {
			break
		}
	}

	if res.Move == board.NoMove {
		// Interrupted before depth 1 completed.
		res.Move = partial
		if res.Move == board.NoMove {
			res.Move = legal.Get(0)
		}
		res.PV = []board.Move{res.Move}
	}
	res.Nodes = e.searcher.Nodes()
	res.Time = time.Since(start)

	if ev := e.log.Debug(); ev.Enabled() {
		ev.Str("move", res.Move.String()).
			Str("san", root.SAN(res.Move)).
			Int("score", res.Score).
			Int("depth", res.Depth).
			Uint64("nodes", res.Nodes).
			Dur("time", res.Time).
			Int("hashfull", e.tt.HashFull()).
			Msg("search done")
	}
	return res
}

func (e *Engine) probeBook(pos *board.Position) (Result, bool) {
	if e.book == nil {
		return Result{}, false
	}
	m, ok := e.book.Probe(pos)
	if !ok {
		return Result{}, false
	}
	if !pos.IsLegal(m) {
		e.log.Warn().Str("move", m.String()).Str("fen", pos.ToFEN()).Msg("book move is not legal")
		return Result{}, false
	}
	e.log.Debug().Str("move", m.String()).Msg("book move")
	return Result{Move: m, PV: []board.Move{m}, Source: SourceBook}, true
}

func (e *Engine) probeTablebase(pos *board.Position) (Result, bool) {
	if e.tb == nil || !e.tb.Probeable(pos) {
		return Result{}, false
	}
	rr := e.tb.ProbeRoot(pos)
	if !rr.Found {
		return Result{}, false
	}
	if !pos.IsLegal(rr.Move) {
		e.log.Warn().Str("move", rr.Move.String()).Str("fen", pos.ToFEN()).Msg("tablebase move is not legal")
		return Result{}, false
	}
	score := tablebase.WDLToScore(rr.WDL, MateScore-MaxPly, 1)
	e.log.Debug().Str("move", rr.Move.String()).Stringer("wdl", rr.WDL).Msg("tablebase move")
	return Result{Move: rr.Move, Score: score, PV: []board.Move{rr.Move}, Source: SourceTablebase}, true
}

// Stop stops the current search. Safe to call from another goroutine.
func (e *Engine) Stop() {
	e.searcher.Stop()
}

// Clear forgets everything learned in previous searches, as for a new game.
func (e *Engine) Clear() {
	e.tt.Clear()
	e.searcher.orderer.Reset()
	e.history = e.history[:0]
}

// Perft counts leaf nodes of the legal move tree (for debugging move
// generation).
func (e *Engine) Perft(pos *board.Position, depth int) uint64 {
	return pos.Perft(depth)
}

// Evaluate returns the static evaluation of a position, side to move
// relative.
func (e *Engine) Evaluate(pos *board.Position) int {
	return e.eval.Evaluate(pos)
}

// HashFull returns the permille of the transposition table in use.
func (e *Engine) HashFull() int {
	return e.tt.HashFull()
}

// IsMateScore reports whether score encodes a forced mate.
func IsMateScore(score int) bool {
	return score > MateScore-MaxPly || score < -MateScore+MaxPly
}

// MateIn converts a mate score to UCI's signed move count: positive when
// the side to move mates.
func MateIn(score int) int {
	if score > 0 {
		return (MateScore - score + 1) / 2
	}
	return -(MateScore + score + 1) / 2
}

// ScoreToString converts a score to a human-readable string.
func ScoreToString(score int) string {
	if IsMateScore(score) {
		if n := MateIn(score); n < 0 {
			return "Mated in " + strconv.Itoa(-n)
		}
		return "Mate in " + strconv.Itoa(MateIn(score))
	}
	sign := ""
	if score < 0 {
		sign = "-"
		score = -score
	}
	return sign + strconv.Itoa(score/100) + "." + fmtCentis(score%100)
}

func fmtCentis(c int) string {
	if c < 10 {
		return "0" + strconv.Itoa(c)
	}
	return strconv.Itoa(c)
}
