package board

// Move packs a move into 16 bits:
//
//	bits 0-5   origin square
//	bits 6-11  destination square
//	bits 12-13 promotion piece (knight, bishop, rook, queen)
//	bits 14-15 flag (normal, promotion, en passant, castling)
//
// A Move only has meaning relative to the position it was generated from.
type Move uint16

const (
	FlagNormal    uint16 = 0 << 14
	FlagPromotion uint16 = 1 << 14
	FlagEnPassant uint16 = 2 << 14
	FlagCastling  uint16 = 3 << 14
)

// NoMove is the zero move; a1a1 is never generated.
const NoMove Move = 0

func NewMove(from, to Square) Move {
	return Move(from) | Move(to)<<6
}

// NewPromotion builds a promotion to promo, which must be Knight..Queen.
func NewPromotion(from, to Square, promo PieceType) Move {
	return Move(from) | Move(to)<<6 | Move(promo-Knight)<<12 | Move(FlagPromotion)
}

func NewEnPassant(from, to Square) Move {
	return Move(from) | Move(to)<<6 | Move(FlagEnPassant)
}

// NewCastling builds a castling move expressed as the king's two-square step.
func NewCastling(from, to Square) Move {
	return Move(from) | Move(to)<<6 | Move(FlagCastling)
}

func (m Move) From() Square      { return Square(m & 0x3F) }
func (m Move) To() Square        { return Square((m >> 6) & 0x3F) }
func (m Move) Flag() uint16      { return uint16(m) & 0xC000 }
func (m Move) IsPromotion() bool { return m.Flag() == FlagPromotion }
func (m Move) IsCastling() bool  { return m.Flag() == FlagCastling }
func (m Move) IsEnPassant() bool { return m.Flag() == FlagEnPassant }

// Promotion returns the promoted-to piece type. Only meaningful when
// IsPromotion is true.
func (m Move) Promotion() PieceType {
	return PieceType((m>>12)&3) + Knight
}

// String renders long algebraic notation: "e2e4", "e7e8q", "0000" for NoMove.
func (m Move) String() string {
	if m == NoMove {
		return "0000"
	}
	s := m.From().String() + m.To().String()
	if m.IsPromotion() {
		s += string("nbrq"[m.Promotion()-Knight])
	}
	return s
}

// IsCapture reports whether m removes an enemy piece in pos.
func (p *Position) IsCapture(m Move) bool {
	return m.IsEnPassant() || p.AllOccupied.IsSet(m.To())
}

// IsQuiet reports whether m is neither a capture nor a promotion.
func (p *Position) IsQuiet(m Move) bool {
	return !p.IsCapture(m) && !m.IsPromotion()
}

// ParseMove resolves long algebraic text against the legal moves of p.
// The position is not modified.
func (p *Position) ParseMove(s string) (Move, error) {
	if !wellFormedMove(s) {
		return NoMove, &MoveError{Move: s, Err: ErrMalformedMove}
	}
	moves := p.GenerateLegalMoves()
	for i := 0; i < moves.Len(); i++ {
		if m := moves.Get(i); m.String() == s {
			return m, nil
		}
	}
	return NoMove, &MoveError{Move: s, Err: ErrIllegalMove}
}

func wellFormedMove(s string) bool {
	if len(s) != 4 && len(s) != 5 {
		return false
	}
	if _, ok := ParseSquare(s[0:2]); !ok {
		return false
	}
	if _, ok := ParseSquare(s[2:4]); !ok {
		return false
	}
	if len(s) == 5 {
		switch s[4] {
		case 'n', 'b', 'r', 'q':
		default:
			return false
		}
	}
	return true
}

// MaxMoves bounds the number of moves in any reachable position.
const MaxMoves = 256

// MoveList is a fixed-capacity move buffer that avoids allocation in search.
type MoveList struct {
	moves [MaxMoves]Move
	count int
}

func NewMoveList() *MoveList {
	return &MoveList{}
}

func (ml *MoveList) Add(m Move) {
	ml.moves[ml.count] = m
	ml.count++
}

func (ml *MoveList) Len() int          { return ml.count }
func (ml *MoveList) Get(i int) Move    { return ml.moves[i] }
func (ml *MoveList) Set(i int, m Move) { ml.moves[i] = m }
func (ml *MoveList) Swap(i, j int)     { ml.moves[i], ml.moves[j] = ml.moves[j], ml.moves[i] }
func (ml *MoveList) Clear()            { ml.count = 0 }

func (ml *MoveList) Contains(m Move) bool {
	for i := 0; i < ml.count; i++ {
		if ml.moves[i] == m {
			return true
		}
	}
	return false
}

// Slice returns a view of the stored moves, valid until the list changes.
func (ml *MoveList) Slice() []Move {
	return ml.moves[:ml.count]
}
