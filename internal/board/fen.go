package board

import (
	"strconv"
	"strings"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ParseFEN builds a position from Forsyth-Edwards Notation. The placement,
// side, castling and en passant fields are required; the two clocks default
// to 0 and 1. Any error is a *FENError and matches ErrInvalidFEN.
func ParseFEN(fen string) (*Position, error) {
	fields := strings.Fields(fen)
	if len(fields) < 4 || len(fields) > 6 {
		return nil, fenError("record", fen, "want 4 to 6 fields, got %d", len(fields))
	}

	pos := newEmptyPosition()
	if err := parsePlacement(pos, fields[0]); err != nil {
		return nil, err
	}

	switch fields[1] {
	case "w":
		pos.SideToMove = White
	case "b":
		pos.SideToMove = Black
	default:
		return nil, fenError("side to move", fields[1], "want w or b")
	}

	if err := parseCastling(pos, fields[2]); err != nil {
		return nil, err
	}
	if err := parseEnPassant(pos, fields[3]); err != nil {
		return nil, err
	}

	if len(fields) > 4 {
		n, err := strconv.Atoi(fields[4])
		if err != nil || n < 0 {
			return nil, fenError("halfmove clock", fields[4], "want a non-negative integer")
		}
		pos.HalfMoveClock = n
	}
	if len(fields) > 5 {
		n, err := strconv.Atoi(fields[5])
		if err != nil || n < 1 {
			return nil, fenError("fullmove number", fields[5], "want a positive integer")
		}
		pos.FullMoveNumber = n
	}

	if err := validateMaterial(pos); err != nil {
		return nil, err
	}
	pos.Hash = pos.ComputeHash()
	return pos, nil
}

func parsePlacement(pos *Position, placement string) error {
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return fenError("placement", placement, "want 8 ranks, got %d", len(ranks))
	}
	for i, row := range ranks {
		rank := 7 - i
		file := 0
		prevDigit := false
		for j := 0; j < len(row); j++ {
			c := row[j]
			if c >= '1' && c <= '8' {
				if prevDigit {
					return fenError("placement", row, "consecutive digits in rank %d", rank+1)
				}
				prevDigit = true
				file += int(c - '0')
				continue
			}
			prevDigit = false
			piece := PieceFromChar(c)
			if piece == NoPiece {
				return fenError("placement", row, "unknown piece %q", c)
			}
			if file > 7 {
				return fenError("placement", row, "rank %d is wider than 8 squares", rank+1)
			}
			pos.put(piece.Color(), piece.Type(), NewSquare(file, rank))
			file++
		}
		if file != 8 {
			return fenError("placement", row, "rank %d covers %d squares, want 8", rank+1, file)
		}
	}
	return nil
}

// castleHome lists, per right, the squares the king and rook must stand on.
var castleHome = [4]struct{ king, rook Square }{
	{E1, H1}, {E1, A1}, {E8, H8}, {E8, A8},
}

func parseCastling(pos *Position, field string) error {
	if field == "-" {
		return nil
	}
	last := -1
	for i := 0; i < len(field); i++ {
		idx := strings.IndexByte("KQkq", field[i])
		if idx < 0 {
			return fenError("castling", field, "unknown right %q", field[i])
		}
		right := CastlingRights(1 << idx)
		if pos.CastlingRights&right != 0 {
			return fenError("castling", field, "right %q repeated", field[i])
		}
		if idx < last {
			return fenError("castling", field, "rights must be in KQkq order")
		}
		last = idx
		c := White
		if idx >= 2 {
			c = Black
		}
		home := castleHome[idx]
		if !pos.Pieces[c][King].IsSet(home.king) || !pos.Pieces[c][Rook].IsSet(home.rook) {
			return fenError("castling", field, "right %q without king on %s and rook on %s", field[i], home.king, home.rook)
		}
		pos.CastlingRights |= right
	}
	return nil
}

// parseEnPassant accepts a target only where a pawn of the side that just
// moved could have arrived by a double push.
func parseEnPassant(pos *Position, field string) error {
	if field == "-" {
		return nil
	}
	sq, ok := ParseSquare(field)
	if !ok {
		return fenError("en passant", field, "not a square")
	}
	mover := pos.SideToMove.Other()
	if sq.RelativeRank(mover) != 2 {
		return fenError("en passant", field, "target must be on rank %d when %s is to move", A3.RelativeRank(mover)+1, pos.SideToMove)
	}
	pawnSq := enPassantVictim(sq, pos.SideToMove)
	origin := enPassantVictim(sq, mover)
	if !pos.Pieces[mover][Pawn].IsSet(pawnSq) || pos.AllOccupied&(SquareBB(sq)|SquareBB(origin)) != 0 {
		return fenError("en passant", field, "no pawn could have just double-pushed past it")
	}
	pos.EnPassant = sq
	return nil
}

func validateMaterial(pos *Position) error {
	for c := White; c <= Black; c++ {
		if n := pos.Pieces[c][King].PopCount(); n != 1 {
			return fenError("placement", "", "%s has %d kings, want 1", c, n)
		}
		if n := pos.Occupied[c].PopCount(); n > 16 {
			return fenError("placement", "", "%s has %d pieces", c, n)
		}
	}
	if (pos.Pieces[White][Pawn]|pos.Pieces[Black][Pawn])&(Rank1|Rank8) != 0 {
		return fenError("placement", "", "pawn on the first or last rank")
	}
	them := pos.SideToMove.Other()
	if pos.IsSquareAttacked(pos.KingSquare[them], pos.SideToMove) {
		return fenError("side to move", "", "%s is in check but not to move", them)
	}
	return nil
}

// ToFEN serializes all six FEN fields.
func (p *Position) ToFEN() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			piece := p.PieceAt(NewSquare(file, rank))
			if piece == NoPiece {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteString(piece.String())
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}

	if p.SideToMove == White {
		sb.WriteString(" w ")
	} else {
		sb.WriteString(" b ")
	}
	sb.WriteString(p.CastlingRights.String())
	sb.WriteByte(' ')
	sb.WriteString(p.EnPassant.String())
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(p.HalfMoveClock))
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(p.FullMoveNumber))
	return sb.String()
}

// ApplyMoves plays a sequence of long algebraic moves. Either every move is
// applied or, on the first bad one, the position is left as it was and the
// *MoveError is returned.
func (p *Position) ApplyMoves(moves ...string) error {
	scratch := p.Copy()
	for _, s := range moves {
		m, err := scratch.ParseMove(s)
		if err != nil {
			return err
		}
		scratch.MakeMove(m)
	}
	*p = *scratch
	return nil
}
