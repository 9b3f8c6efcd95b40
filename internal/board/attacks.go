package board

// Leaper attack tables and square-pair geometry, filled once at init and
// read-only afterwards.
var (
	knightAttacks [64]Bitboard
	kingAttacks   [64]Bitboard
	pawnAttacks   [2][64]Bitboard

	betweenBB [64][64]Bitboard // squares strictly between two aligned squares
	lineBB    [64][64]Bitboard // full edge-to-edge line through two aligned squares
)

func init() {
	for sq := A1; sq <= H8; sq++ {
		b := SquareBB(sq)

		knightAttacks[sq] = (b<<17)&notFileA | (b<<15)&notFileH |
			(b>>15)&notFileA | (b>>17)&notFileH |
			(b<<10)&notFileAB | (b<<6)&notFileGH |
			(b>>6)&notFileAB | (b>>10)&notFileGH

		kingAttacks[sq] = b.North() | b.South() | b.East() | b.West() |
			b.NorthEast() | b.NorthWest() | b.SouthEast() | b.SouthWest()

		pawnAttacks[White][sq] = b.NorthEast() | b.NorthWest()
		pawnAttacks[Black][sq] = b.SouthEast() | b.SouthWest()
	}
	initMagics()
	initLines()
}

// initLines uses the slider tables, so it runs after initMagics.
func initLines() {
	for a := A1; a <= H8; a++ {
		for b := A1; b <= H8; b++ {
			if a == b {
				continue
			}
			pair := SquareBB(a) | SquareBB(b)
			switch {
			case RookAttacks(a, 0).IsSet(b):
				betweenBB[a][b] = RookAttacks(a, pair) & RookAttacks(b, pair)
				lineBB[a][b] = (RookAttacks(a, 0) & RookAttacks(b, 0)) | pair
			case BishopAttacks(a, 0).IsSet(b):
				betweenBB[a][b] = BishopAttacks(a, pair) & BishopAttacks(b, pair)
				lineBB[a][b] = (BishopAttacks(a, 0) & BishopAttacks(b, 0)) | pair
			}
		}
	}
}

func KnightAttacks(sq Square) Bitboard { return knightAttacks[sq] }
func KingAttacks(sq Square) Bitboard   { return kingAttacks[sq] }

// PawnAttacks returns the squares a c pawn on sq captures on.
func PawnAttacks(sq Square, c Color) Bitboard { return pawnAttacks[c][sq] }

// Between returns the squares strictly between a and b, or Empty when they
// do not share a rank, file or diagonal.
func Between(a, b Square) Bitboard { return betweenBB[a][b] }

// Line returns the full line through a and b, or Empty when not aligned.
func Line(a, b Square) Bitboard { return lineBB[a][b] }

// AttackersByColor returns the pieces of color c attacking sq, computing
// slider rays against the given occupancy.
func (p *Position) AttackersByColor(sq Square, c Color, occupied Bitboard) Bitboard {
	own := &p.Pieces[c]
	return pawnAttacks[c.Other()][sq]&own[Pawn] |
		knightAttacks[sq]&own[Knight] |
		kingAttacks[sq]&own[King] |
		BishopAttacks(sq, occupied)&(own[Bishop]|own[Queen]) |
		RookAttacks(sq, occupied)&(own[Rook]|own[Queen])
}

// IsSquareAttacked reports whether any piece of byColor attacks sq.
func (p *Position) IsSquareAttacked(sq Square, byColor Color) bool {
	return p.AttackersByColor(sq, byColor, p.AllOccupied) != 0
}

// Checkers returns the enemy pieces giving check to the side to move.
func (p *Position) Checkers() Bitboard {
	us := p.SideToMove
	return p.AttackersByColor(p.KingSquare[us], us.Other(), p.AllOccupied)
}

// InCheck reports whether the side to move is in check.
func (p *Position) InCheck() bool {
	return p.Checkers() != 0
}
