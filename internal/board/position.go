package board

import (
	"fmt"
	"slices"
	"strings"
)

// CastlingRights is a set of the four independent castling flags.
type CastlingRights uint8

const (
	WhiteKingSideCastle CastlingRights = 1 << iota
	WhiteQueenSideCastle
	BlackKingSideCastle
	BlackQueenSideCastle

	NoCastling  CastlingRights = 0
	AllCastling                = WhiteKingSideCastle | WhiteQueenSideCastle | BlackKingSideCastle | BlackQueenSideCastle
)

// String renders the FEN castling field.
func (cr CastlingRights) String() string {
	if cr == NoCastling {
		return "-"
	}
	var sb strings.Builder
	for i, c := range "KQkq" {
		if cr&(1<<i) != 0 {
			sb.WriteRune(c)
		}
	}
	return sb.String()
}

// castleLost[sq] lists the rights that disappear when a move starts or ends
// on sq: the king's home square drops both of that side's rights, a rook's
// home square drops the matching one.
var castleLost [64]CastlingRights

func init() {
	castleLost[E1] = WhiteKingSideCastle | WhiteQueenSideCastle
	castleLost[H1] = WhiteKingSideCastle
	castleLost[A1] = WhiteQueenSideCastle
	castleLost[E8] = BlackKingSideCastle | BlackQueenSideCastle
	castleLost[H8] = BlackKingSideCastle
	castleLost[A8] = BlackQueenSideCastle
}

// castlingRookSquares returns the rook's origin and destination for a
// castling move whose king lands on kingTo.
func castlingRookSquares(kingTo Square) (from, to Square) {
	switch kingTo {
	case G1:
		return H1, F1
	case C1:
		return A1, D1
	case G8:
		return H8, F8
	default:
		return A8, D8
	}
}

// UndoRecord holds what MakeMove cannot recompute when reverting a ply.
// Move is NoMove for a null move.
type UndoRecord struct {
	Move           Move
	Captured       Piece
	EnPassant      Square
	CastlingRights CastlingRights
	HalfMoveClock  int
	Hash           uint64
}

// Position is a complete, mutable chess position. It is not safe for
// concurrent use; give each goroutine its own Copy.
type Position struct {
	Pieces      [2][6]Bitboard
	Occupied    [2]Bitboard
	AllOccupied Bitboard

	SideToMove     Color
	CastlingRights CastlingRights
	EnPassant      Square
	HalfMoveClock  int
	FullMoveNumber int

	Hash       uint64
	KingSquare [2]Square

	undo []UndoRecord
}

// NewPosition returns the standard starting position.
func NewPosition() *Position {
	pos, err := ParseFEN(StartFEN)
	if err != nil {
		panic(err)
	}
	return pos
}

func newEmptyPosition() *Position {
	return &Position{
		EnPassant:      NoSquare,
		FullMoveNumber: 1,
		KingSquare:     [2]Square{NoSquare, NoSquare},
		undo:           make([]UndoRecord, 0, 128),
	}
}

// Copy returns an independent deep copy, undo history included.
func (p *Position) Copy() *Position {
	np := *p
	np.undo = slices.Clone(p.undo)
	return &np
}

// Ply is the number of moves currently on the undo stack.
func (p *Position) Ply() int {
	return len(p.undo)
}

// LastMove returns the most recently applied move, or NoMove.
func (p *Position) LastMove() Move {
	if len(p.undo) == 0 {
		return NoMove
	}
	return p.undo[len(p.undo)-1].Move
}

// PieceAt returns the piece on sq, or NoPiece.
func (p *Position) PieceAt(sq Square) Piece {
	bb := SquareBB(sq)
	if p.AllOccupied&bb == 0 {
		return NoPiece
	}
	c := White
	if p.Occupied[Black]&bb != 0 {
		c = Black
	}
	for pt := Pawn; pt <= King; pt++ {
		if p.Pieces[c][pt]&bb != 0 {
			return NewPiece(pt, c)
		}
	}
	return NoPiece
}

// put and remove keep masks, king cache and hash in step.
func (p *Position) put(c Color, pt PieceType, sq Square) {
	bb := SquareBB(sq)
	p.Pieces[c][pt] |= bb
	p.Occupied[c] |= bb
	p.AllOccupied |= bb
	p.Hash ^= zobristPiece[c][pt][sq]
	if pt == King {
		p.KingSquare[c] = sq
	}
}

func (p *Position) remove(c Color, pt PieceType, sq Square) {
	bb := SquareBB(sq)
	p.Pieces[c][pt] &^= bb
	p.Occupied[c] &^= bb
	p.AllOccupied &^= bb
	p.Hash ^= zobristPiece[c][pt][sq]
}

func (p *Position) setEnPassant(sq Square) {
	if p.EnPassant != NoSquare {
		p.Hash ^= zobristEnPassant[p.EnPassant.File()]
	}
	p.EnPassant = sq
	if sq != NoSquare {
		p.Hash ^= zobristEnPassant[sq.File()]
	}
}

// MakeMove applies a pseudo-legal move generated for this position and
// pushes an UndoRecord. It does not check legality; pair it with
// UnmakeMove.
func (p *Position) MakeMove(m Move) {
	us := p.SideToMove
	them := us.Other()
	from, to := m.From(), m.To()
	pt := p.PieceAt(from).Type()

	rec := UndoRecord{
		Move:           m,
		Captured:       NoPiece,
		EnPassant:      p.EnPassant,
		CastlingRights: p.CastlingRights,
		HalfMoveClock:  p.HalfMoveClock,
		Hash:           p.Hash,
	}

	p.remove(us, pt, from)
	if m.IsEnPassant() {
		capSq := enPassantVictim(to, us)
		p.remove(them, Pawn, capSq)
		rec.Captured = NewPiece(Pawn, them)
	} else if captured := p.PieceAt(to); captured != NoPiece {
		p.remove(them, captured.Type(), to)
		rec.Captured = captured
	}

	placed := pt
	if m.IsPromotion() {
		placed = m.Promotion()
	}
	p.put(us, placed, to)

	if m.IsCastling() {
		rookFrom, rookTo := castlingRookSquares(to)
		p.remove(us, Rook, rookFrom)
		p.put(us, Rook, rookTo)
	}

	if lost := castleLost[from] | castleLost[to]; p.CastlingRights&lost != 0 {
		p.Hash ^= castlingKey(p.CastlingRights)
		p.CastlingRights &^= lost
		p.Hash ^= castlingKey(p.CastlingRights)
	}

	ep := NoSquare
	if pt == Pawn && (to == from+16 || from == to+16) {
		ep = (from + to) / 2
	}
	p.setEnPassant(ep)

	if pt == Pawn || rec.Captured != NoPiece {
		p.HalfMoveClock = 0
	} else {
		p.HalfMoveClock++
	}
	if us == Black {
		p.FullMoveNumber++
	}

	p.SideToMove = them
	p.Hash ^= zobristSideToMove

	p.undo = append(p.undo, rec)
	if debugChecks {
		p.mustBeConsistent("MakeMove " + m.String())
	}
}

// UnmakeMove reverts the most recent MakeMove or MakeNullMove. It panics
// when there is nothing to undo.
func (p *Position) UnmakeMove() {
	n := len(p.undo)
	if n == 0 {
		panic("board: UnmakeMove called with an empty undo stack")
	}
	rec := p.undo[n-1]
	p.undo = p.undo[:n-1]

	us := p.SideToMove.Other()
	p.SideToMove = us

	if m := rec.Move; m != NoMove {
		from, to := m.From(), m.To()
		if us == Black {
			p.FullMoveNumber--
		}
		if m.IsCastling() {
			rookFrom, rookTo := castlingRookSquares(to)
			p.remove(us, Rook, rookTo)
			p.put(us, Rook, rookFrom)
		}

		placed := p.PieceAt(to).Type()
		p.remove(us, placed, to)
		if m.IsPromotion() {
			placed = Pawn
		}
		p.put(us, placed, from)

		if rec.Captured != NoPiece {
			capSq := to
			if m.IsEnPassant() {
				capSq = enPassantVictim(to, us)
			}
			p.put(us.Other(), rec.Captured.Type(), capSq)
		}
	}

	p.CastlingRights = rec.CastlingRights
	p.EnPassant = rec.EnPassant
	p.HalfMoveClock = rec.HalfMoveClock
	p.Hash = rec.Hash

	if debugChecks {
		p.mustBeConsistent("UnmakeMove")
	}
}

// MakeNullMove passes the turn. It must not be called while in check.
func (p *Position) MakeNullMove() {
	p.undo = append(p.undo, UndoRecord{
		Move:           NoMove,
		Captured:       NoPiece,
		EnPassant:      p.EnPassant,
		CastlingRights: p.CastlingRights,
		HalfMoveClock:  p.HalfMoveClock,
		Hash:           p.Hash,
	})
	p.setEnPassant(NoSquare)
	p.SideToMove = p.SideToMove.Other()
	p.Hash ^= zobristSideToMove
}

// UnmakeNullMove reverts MakeNullMove.
func (p *Position) UnmakeNullMove() {
	p.UnmakeMove()
}

// enPassantVictim is the square of the pawn removed by an en passant
// capture landing on to, made by color us.
func enPassantVictim(to Square, us Color) Square {
	if us == White {
		return to - 8
	}
	return to + 8
}

// RepetitionCount returns how many earlier positions in the undo history
// equal the current one. Only positions since the last irreversible move
// are considered.
func (p *Position) RepetitionCount() int {
	count := 0
	n := len(p.undo)
	limit := min(p.ReversiblePlies(), n)
	for back := 2; back <= limit; back += 2 {
		if p.undo[n-back].Hash == p.Hash {
			count++
		}
	}
	return count
}

// ReversiblePlies is how far back, in plies, the current position could
// have occurred before: the half-move clock, cut short at the most recent
// null move on the undo stack.
func (p *Position) ReversiblePlies() int {
	n := len(p.undo)
	for back := 1; back <= min(p.HalfMoveClock, n); back++ {
		if p.undo[n-back].Move == NoMove {
			return back - 1
		}
	}
	return p.HalfMoveClock
}

// Material returns White's material minus Black's, kings excluded.
func (p *Position) Material() int {
	score := 0
	for pt := Pawn; pt < King; pt++ {
		score += (p.Pieces[White][pt].PopCount() - p.Pieces[Black][pt].PopCount()) * PieceValue[pt]
	}
	return score
}

// HasNonPawnMaterial reports whether the side to move owns a piece other
// than pawns and king.
func (p *Position) HasNonPawnMaterial() bool {
	own := &p.Pieces[p.SideToMove]
	return own[Knight]|own[Bishop]|own[Rook]|own[Queen] != 0
}

// IsInsufficientMaterial reports positions where neither side can mate:
// bare kings, or a single minor piece against a bare king.
func (p *Position) IsInsufficientMaterial() bool {
	heavy := p.Pieces[White][Pawn] | p.Pieces[Black][Pawn] |
		p.Pieces[White][Rook] | p.Pieces[Black][Rook] |
		p.Pieces[White][Queen] | p.Pieces[Black][Queen]
	if heavy != 0 {
		return false
	}
	minors := p.Pieces[White][Knight] | p.Pieces[White][Bishop] |
		p.Pieces[Black][Knight] | p.Pieces[Black][Bishop]
	return !minors.Several()
}

// String draws the board with rank 8 on top, followed by the FEN.
func (p *Position) String() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		fmt.Fprintf(&sb, "%d  ", rank+1)
		for file := 0; file < 8; file++ {
			sb.WriteString(p.PieceAt(NewSquare(file, rank)).String())
			sb.WriteByte(' ')
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("\n   a b c d e f g h\n\n")
	fmt.Fprintf(&sb, "Fen: %s\nKey: %016X\n", p.ToFEN(), p.Hash)
	return sb.String()
}

// CheckInvariants verifies the structural invariants of the position and
// returns the first violation found.
func (p *Position) CheckInvariants() error {
	var occ [2]Bitboard
	var seen Bitboard
	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			bb := p.Pieces[c][pt]
			if seen&bb != 0 {
				return fmt.Errorf("board: %s %s mask overlaps another piece", c, pt)
			}
			seen |= bb
			occ[c] |= bb
		}
		if occ[c] != p.Occupied[c] {
			return fmt.Errorf("board: %s occupancy %#x, pieces give %#x", c, uint64(p.Occupied[c]), uint64(occ[c]))
		}
		if kings := p.Pieces[c][King]; kings.PopCount() != 1 || kings.LSB() != p.KingSquare[c] {
			return fmt.Errorf("board: %s king cache %s disagrees with king mask %#x", c, p.KingSquare[c], uint64(kings))
		}
	}
	if occ[White]|occ[Black] != p.AllOccupied {
		return fmt.Errorf("board: total occupancy %#x, colors give %#x", uint64(p.AllOccupied), uint64(occ[White]|occ[Black]))
	}
	if h := p.ComputeHash(); h != p.Hash {
		return fmt.Errorf("board: incremental hash %016x, recomputed %016x", p.Hash, h)
	}
	return nil
}

func (p *Position) mustBeConsistent(op string) {
	if err := p.CheckInvariants(); err != nil {
		panic(fmt.Sprintf("%s: %v\n%s", op, err, p))
	}
}
