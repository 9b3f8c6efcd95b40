package board

import "strings"

// SAN renders a legal move of p in Standard Algebraic Notation, with
// check and mate suffixes.
func (p *Position) SAN(m Move) string {
	if m == NoMove {
		return "--"
	}
	from, to := m.From(), m.To()
	pt := p.PieceAt(from).Type()

	var sb strings.Builder
	switch {
	case m.IsCastling() && to > from:
		sb.WriteString("O-O")
	case m.IsCastling():
		sb.WriteString("O-O-O")
	default:
		capture := p.IsCapture(m)
		if pt == Pawn {
			if capture {
				sb.WriteByte(byte('a' + from.File()))
			}
		} else {
			sb.WriteByte("PNBRQK"[pt])
			sb.WriteString(p.disambiguation(m, pt))
		}
		if capture {
			sb.WriteByte('x')
		}
		sb.WriteString(to.String())
		if m.IsPromotion() {
			sb.WriteByte('=')
			sb.WriteByte("PNBRQK"[m.Promotion()])
		}
	}

	p.MakeMove(m)
	if p.InCheck() {
		if p.HasLegalMoves() {
			sb.WriteByte('+')
		} else {
			sb.WriteByte('#')
		}
	}
	p.UnmakeMove()
	return sb.String()
}

// disambiguation returns the origin file, rank or square needed to tell m
// apart from other legal moves of the same piece type to the same square.
func (p *Position) disambiguation(m Move, pt PieceType) string {
	from := m.From()
	var rivals Bitboard
	moves := p.GenerateLegalMoves()
	for i := 0; i < moves.Len(); i++ {
		other := moves.Get(i)
		if other.To() == m.To() && other.From() != from && p.Pieces[p.SideToMove][pt].IsSet(other.From()) {
			rivals |= SquareBB(other.From())
		}
	}
	switch {
	case rivals == 0:
		return ""
	case rivals&FileMask[from.File()] == 0:
		return from.String()[:1]
	case rivals&RankMask[from.Rank()] == 0:
		return from.String()[1:]
	default:
		return from.String()
	}
}

// ParseSAN resolves Standard Algebraic Notation against the legal moves of
// p. Check marks and annotation glyphs are ignored.
func (p *Position) ParseSAN(s string) (Move, error) {
	text := strings.TrimRight(strings.TrimSpace(s), "+#!?")
	moves := p.GenerateLegalMoves()

	if text == "O-O" || text == "0-0" || text == "O-O-O" || text == "0-0-0" {
		long := len(text) == 5
		for i := 0; i < moves.Len(); i++ {
			m := moves.Get(i)
			if m.IsCastling() && (m.To() < m.From()) == long {
				return m, nil
			}
		}
		return NoMove, &MoveError{Move: s, Err: ErrIllegalMove}
	}

	promo := NoPieceType
	if i := strings.IndexByte(text, '='); i >= 0 {
		if i+2 != len(text) {
			return NoMove, &MoveError{Move: s, Err: ErrMalformedMove}
		}
		promo = sanPiece(text[i+1])
		if promo == NoPieceType || promo == Pawn || promo == King {
			return NoMove, &MoveError{Move: s, Err: ErrMalformedMove}
		}
		text = text[:i]
	}

	pt := Pawn
	if text != "" && text[0] >= 'A' && text[0] <= 'Z' {
		if pt = sanPiece(text[0]); pt == NoPieceType {
			return NoMove, &MoveError{Move: s, Err: ErrMalformedMove}
		}
		text = text[1:]
	}
	text = strings.Replace(text, "x", "", 1)
	if len(text) < 2 {
		return NoMove, &MoveError{Move: s, Err: ErrMalformedMove}
	}
	to, ok := ParseSquare(text[len(text)-2:])
	if !ok {
		return NoMove, &MoveError{Move: s, Err: ErrMalformedMove}
	}
	fileHint, rankHint := -1, -1
	for _, c := range text[:len(text)-2] {
		switch {
		case c >= 'a' && c <= 'h':
			fileHint = int(c - 'a')
		case c >= '1' && c <= '8':
			rankHint = int(c - '1')
		default:
			return NoMove, &MoveError{Move: s, Err: ErrMalformedMove}
		}
	}

	found := NoMove
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		from := m.From()
		switch {
		case m.To() != to || m.IsCastling() || p.PieceAt(from).Type() != pt:
			continue
		case fileHint >= 0 && from.File() != fileHint, rankHint >= 0 && from.Rank() != rankHint:
			continue
		case m.IsPromotion() != (promo != NoPieceType):
			continue
		case m.IsPromotion() && m.Promotion() != promo:
			continue
		}
		if found != NoMove {
			return NoMove, &MoveError{Move: s, Err: ErrMalformedMove}
		}
		found = m
	}
	if found == NoMove {
		return NoMove, &MoveError{Move: s, Err: ErrIllegalMove}
	}
	return found, nil
}

func sanPiece(c byte) PieceType {
	if i := strings.IndexByte("PNBRQK", c); i >= 0 {
		return PieceType(i)
	}
	return NoPieceType
}
