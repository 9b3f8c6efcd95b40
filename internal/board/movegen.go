package board

type genMode uint8

const (
	genAll genMode = iota
	genCaptures
)

// GeneratePseudoLegalMoves returns every move that obeys piece movement
// rules, including ones that leave the mover's king attacked. Castling is
// only emitted when fully legal.
func (p *Position) GeneratePseudoLegalMoves() *MoveList {
	ml := NewMoveList()
	p.generate(ml, genAll)
	return ml
}

// GenerateLegalMoves returns the legal moves of the side to move.
func (p *Position) GenerateLegalMoves() *MoveList {
	ml := NewMoveList()
	p.GenerateLegalMovesInto(ml)
	return ml
}

// GenerateLegalMovesInto fills ml with the legal moves, reusing its storage.
// Legality is decided by applying each pseudo-legal move, testing whether
// the mover's king is attacked, and reverting.
func (p *Position) GenerateLegalMovesInto(ml *MoveList) {
	ml.Clear()
	p.generate(ml, genAll)
	p.filterLegal(ml)
}

// GenerateCapturesInto fills ml with the legal captures, en passant
// and capturing promotions included.
func (p *Position) GenerateCapturesInto(ml *MoveList) {
	ml.Clear()
	p.generate(ml, genCaptures)
	p.filterLegal(ml)
}

// GenerateNoisyMoves returns the legal moves that capture or give check.
func (p *Position) GenerateNoisyMoves() *MoveList {
	ml := NewMoveList()
	p.GenerateNoisyMovesInto(ml)
	return ml
}

// GenerateNoisyMovesInto is GenerateNoisyMoves into a caller-owned list.
func (p *Position) GenerateNoisyMovesInto(ml *MoveList) {
	ml.Clear()
	p.generate(ml, genAll)
	us := p.SideToMove
	n := 0
	for i := 0; i < ml.Len(); i++ {
		m := ml.Get(i)
		capture := p.IsCapture(m)
		p.MakeMove(m)
		legal := !p.IsSquareAttacked(p.KingSquare[us], us.Other())
		check := legal && !capture && p.InCheck()
		p.UnmakeMove()
		if legal && (capture || check) {
			ml.Set(n, m)
			n++
		}
	}
	ml.count = n
}

// filterLegal compacts ml down to the moves that do not leave the mover in check.
func (p *Position) filterLegal(ml *MoveList) {
	n := 0
	for i := 0; i < ml.Len(); i++ {
		if m := ml.Get(i); p.leavesKingSafe(m) {
			ml.Set(n, m)
			n++
		}
	}
	ml.count = n
}

func (p *Position) leavesKingSafe(m Move) bool {
	us := p.SideToMove
	p.MakeMove(m)
	safe := !p.IsSquareAttacked(p.KingSquare[us], us.Other())
	p.UnmakeMove()
	return safe
}

// GivesCheck reports whether the pseudo-legal move m leaves the opponent in
// check, by direct attack or by uncovering a slider.
func (p *Position) GivesCheck(m Move) bool {
	if m.IsPromotion() || m.IsCastling() || m.IsEnPassant() {
		p.MakeMove(m)
		check := p.InCheck()
		p.UnmakeMove()
		return check
	}
	us := p.SideToMove
	ksq := p.KingSquare[us.Other()]
	from, to := m.From(), m.To()
	occ := p.AllOccupied&^SquareBB(from) | SquareBB(to)

	switch pt := p.PieceAt(from).Type(); pt {
	case Pawn:
		if pawnAttacks[us][to].IsSet(ksq) {
			return true
		}
	case Knight:
		if knightAttacks[to].IsSet(ksq) {
			return true
		}
	case Bishop:
		if BishopAttacks(to, occ).IsSet(ksq) {
			return true
		}
	case Rook:
		if RookAttacks(to, occ).IsSet(ksq) {
			return true
		}
	case Queen:
		if QueenAttacks(to, occ).IsSet(ksq) {
			return true
		}
	}

	// Only a piece leaving a line through the king can uncover a check.
	line := Line(from, ksq)
	if line == 0 || line.IsSet(to) {
		return false
	}
	own := &p.Pieces[us]
	sliders := BishopAttacks(ksq, occ)&(own[Bishop]|own[Queen]) |
		RookAttacks(ksq, occ)&(own[Rook]|own[Queen])
	return sliders&^SquareBB(from) != 0
}

// IsLegal reports whether m is one of the legal moves of p. Intended for
// moves from outside the generator (book, hash table, user input).
func (p *Position) IsLegal(m Move) bool {
	if m == NoMove {
		return false
	}
	return p.GenerateLegalMoves().Contains(m)
}

// HasLegalMoves stops at the first legal move found.
func (p *Position) HasLegalMoves() bool {
	var ml MoveList
	p.generate(&ml, genAll)
	for i := 0; i < ml.Len(); i++ {
		if p.leavesKingSafe(ml.Get(i)) {
			return true
		}
	}
	return false
}

func (p *Position) IsCheckmate() bool { return p.InCheck() && !p.HasLegalMoves() }
func (p *Position) IsStalemate() bool { return !p.InCheck() && !p.HasLegalMoves() }

// IsDraw reports a position drawn by rule: stalemate, the fifty-move rule,
// insufficient material, or threefold repetition within the undo history.
func (p *Position) IsDraw() bool {
	if p.IsInsufficientMaterial() || p.RepetitionCount() >= 2 {
		return true
	}
	if !p.HasLegalMoves() {
		return !p.InCheck()
	}
	return p.HalfMoveClock >= 100
}

func (p *Position) generate(ml *MoveList, mode genMode) {
	us := p.SideToMove
	targets := ^p.Occupied[us]
	if mode == genCaptures {
		targets = p.Occupied[us.Other()]
	}

	for pt := Pawn; pt <= King; pt++ {
		pieces := p.Pieces[us][pt]
		switch pt {
		case Pawn:
			p.generatePawnMoves(ml, us, pieces, mode)
		case Knight, Bishop, Rook, Queen, King:
			for pieces != 0 {
				from := pieces.PopLSB()
				addMoves(ml, from, p.attacksFrom(pt, from)&targets)
			}
		}
	}
	if mode == genAll {
		p.generateCastlingMoves(ml, us)
	}
}

// attacksFrom dispatches on piece type using the current occupancy.
func (p *Position) attacksFrom(pt PieceType, sq Square) Bitboard {
	switch pt {
	case Knight:
		return knightAttacks[sq]
	case Bishop:
		return BishopAttacks(sq, p.AllOccupied)
	case Rook:
		return RookAttacks(sq, p.AllOccupied)
	case Queen:
		return QueenAttacks(sq, p.AllOccupied)
	case King:
		return kingAttacks[sq]
	}
	panic("board: attacksFrom called for " + pt.String())
}

func addMoves(ml *MoveList, from Square, targets Bitboard) {
	for targets != 0 {
		ml.Add(NewMove(from, targets.PopLSB()))
	}
}

func addPromotions(ml *MoveList, from, to Square) {
	ml.Add(NewPromotion(from, to, Queen))
	ml.Add(NewPromotion(from, to, Rook))
	ml.Add(NewPromotion(from, to, Bishop))
	ml.Add(NewPromotion(from, to, Knight))
}

// addPawnMoves turns a destination set into moves whose origin is
// destination - delta, splitting off promotions.
func addPawnMoves(ml *MoveList, targets Bitboard, delta int, promoRank Bitboard) {
	for targets != 0 {
		to := targets.PopLSB()
		from := Square(int(to) - delta)
		if promoRank.IsSet(to) {
			addPromotions(ml, from, to)
		} else {
			ml.Add(NewMove(from, to))
		}
	}
}

func (p *Position) generatePawnMoves(ml *MoveList, us Color, pawns Bitboard, mode genMode) {
	enemies := p.Occupied[us.Other()]
	empty := ^p.AllOccupied

	var attackW, attackE Bitboard
	var up, west, east int
	var doubleRank, promoRank Bitboard
	if us == White {
		attackW, attackE = pawns.NorthWest()&enemies, pawns.NorthEast()&enemies
		up, west, east = 8, 7, 9
		doubleRank, promoRank = Rank3, Rank8
	} else {
		attackW, attackE = pawns.SouthWest()&enemies, pawns.SouthEast()&enemies
		up, west, east = -8, -9, -7
		doubleRank, promoRank = Rank6, Rank1
	}

	if mode == genAll {
		push1 := pawns.Forward(us) & empty
		push2 := (push1 & doubleRank).Forward(us) & empty
		addPawnMoves(ml, push1, up, promoRank)
		addPawnMoves(ml, push2, 2*up, 0)
	}
	addPawnMoves(ml, attackW, west, promoRank)
	addPawnMoves(ml, attackE, east, promoRank)

	if p.EnPassant != NoSquare {
		attackers := pawnAttacks[us.Other()][p.EnPassant] & pawns
		for attackers != 0 {
			ml.Add(NewEnPassant(attackers.PopLSB(), p.EnPassant))
		}
	}
}

type castlePath struct {
	right  CastlingRights
	kingTo Square
	rook   Square
	safe   [3]Square
}

var castlePaths = [2][2]castlePath{
	White: {
		{WhiteKingSideCastle, G1, H1, [3]Square{E1, F1, G1}},
		{WhiteQueenSideCastle, C1, A1, [3]Square{E1, D1, C1}},
	},
	Black: {
		{BlackKingSideCastle, G8, H8, [3]Square{E8, F8, G8}},
		{BlackQueenSideCastle, C8, A8, [3]Square{E8, D8, C8}},
	},
}

// generateCastlingMoves emits castling only when the right is held, the
// squares between king and rook are empty, and none of the squares the king
// stands on, crosses or lands on is attacked.
func (p *Position) generateCastlingMoves(ml *MoveList, us Color) {
	them := us.Other()
	from := p.KingSquare[us]
paths:
	for _, cp := range castlePaths[us] {
		if p.CastlingRights&cp.right == 0 || p.AllOccupied&Between(from, cp.rook) != 0 {
			continue
		}
		for _, sq := range cp.safe {
			if p.IsSquareAttacked(sq, them) {
				continue paths
			}
		}
		ml.Add(NewCastling(from, cp.kingTo))
	}
}
