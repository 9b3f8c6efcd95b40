package board

import (
	"errors"
	"testing"
)

var roundTripFENs = []string{
	StartFEN,
	"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1",
	"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
	"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
	"r3k2r/Pppp1ppp/1b3nbN/nP6/BBP1P3/q4N2/Pp1P2PP/R2Q1RK1 w kq - 0 1",
	"rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8",
	"rnb1kbnr/pppp1ppp/8/4p3/6Pq/8/PPPPP2P/RNBQKBNR w KQkq - 1 3",
	"8/8/8/8/k2Pp2R/8/8/4K3 b - d3 0 1",
	"4k3/8/8/8/8/8/8/4K2R w K - 12 47",
}

func TestFENRoundTrip(t *testing.T) {
	for _, fen := range roundTripFENs {
		t.Run(fen, func(t *testing.T) {
			pos, err := ParseFEN(fen)
			if err != nil {
				t.Fatalf("ParseFEN: %v", err)
			}
			if got := pos.ToFEN(); got != fen {
				t.Errorf("ToFEN = %q, want %q", got, fen)
			}
			if err := pos.CheckInvariants(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestFENDefaultsClocks(t *testing.T) {
	pos, err := ParseFEN("8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - -")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	if pos.HalfMoveClock != 0 || pos.FullMoveNumber != 1 {
		t.Errorf("clocks = %d %d, want 0 1", pos.HalfMoveClock, pos.FullMoveNumber)
	}
}

func TestFENRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		fen   string
		field string
	}{
		{"empty", "", "record"},
		{"too few fields", "8/8/8/8/8/8/8/8 w", "record"},
		{"seven ranks", "8/8/8/8/8/8/4K2k w - - 0 1", "placement"},
		{"wide rank", "rnbqkbnr/ppppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", "placement"},
		{"short rank", "rnbqkbnr/ppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", "placement"},
		{"bad piece", "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNX w KQkq - 0 1", "placement"},
		{"no white king", "4k3/8/8/8/8/8/8/8 w - - 0 1", "placement"},
		{"two black kings", "3kk3/8/8/8/8/8/8/4K3 w - - 0 1", "placement"},
		{"pawn on back rank", "P3k3/8/8/8/8/8/8/4K3 w - - 0 1", "placement"},
		{"bad side", "4k3/8/8/8/8/8/8/4K3 x - - 0 1", "side to move"},
		{"bad castling char", "4k3/8/8/8/8/8/8/4K3 w X - 0 1", "castling"},
		{"repeated right", "4k2r/8/8/8/8/8/8/4K2R w KK - 0 1", "castling"},
		{"rights out of order", "r3k2r/8/8/8/8/8/8/R3K2R w QKkq - 0 1", "castling"},
		{"colors out of order", "r3k2r/8/8/8/8/8/8/R3K2R w kKQ - 0 1", "castling"},
		{"right without rook", "4k3/8/8/8/8/8/8/4K3 w K - 0 1", "castling"},
		{"ep not a square", "4k3/8/8/8/8/8/8/4K3 w - z9 0 1", "en passant"},
		{"ep wrong rank", "4k3/8/8/8/4P3/8/8/4K3 b - e4 0 1", "en passant"},
		{"ep without pawn", "4k3/8/8/8/8/8/8/4K3 b - e3 0 1", "en passant"},
		{"negative halfmove", "4k3/8/8/8/8/8/8/4K3 w - - -1 1", "halfmove clock"},
		{"text halfmove", "4k3/8/8/8/8/8/8/4K3 w - - x 1", "halfmove clock"},
		{"zero fullmove", "4k3/8/8/8/8/8/8/4K3 w - - 0 0", "fullmove number"},
		{"opponent in check", "4k3/8/8/8/8/8/8/4R1K1 w - - 0 1", "side to move"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pos, err := ParseFEN(tc.fen)
			if err == nil {
				t.Fatalf("ParseFEN(%q) succeeded", tc.fen)
			}
			if pos != nil {
				t.Error("a position was returned alongside the error")
			}
			if !errors.Is(err, ErrInvalidFEN) {
				t.Errorf("error %v does not match ErrInvalidFEN", err)
			}
			var fe *FENError
			if !errors.As(err, &fe) {
				t.Fatalf("error %T is not a *FENError", err)
			}
			if fe.Field != tc.field {
				t.Errorf("field = %q, want %q (%v)", fe.Field, tc.field, err)
			}
		})
	}
}

func TestParseMove(t *testing.T) {
	pos := NewPosition()

	m, err := pos.ParseMove("e2e4")
	if err != nil {
		t.Fatalf("ParseMove(e2e4): %v", err)
	}
	if m.From() != E2 || m.To() != E4 || m.Flag() != FlagNormal {
		t.Errorf("ParseMove(e2e4) = %v flag %d", m, m.Flag())
	}

	for _, s := range []string{"", "e2", "e2e9", "i2i4", "e7e8k", "e2e4qq"} {
		if _, err := pos.ParseMove(s); !errors.Is(err, ErrMalformedMove) {
			t.Errorf("ParseMove(%q) error = %v, want ErrMalformedMove", s, err)
		}
	}
	for _, s := range []string{"e2e5", "e1g1", "a1a3", "e7e5"} {
		_, err := pos.ParseMove(s)
		if !errors.Is(err, ErrIllegalMove) {
			t.Errorf("ParseMove(%q) error = %v, want ErrIllegalMove", s, err)
		}
		var me *MoveError
		if !errors.As(err, &me) || me.Move != s {
			t.Errorf("ParseMove(%q) error does not carry the move text", s)
		}
	}
	if pos.ToFEN() != StartFEN {
		t.Error("ParseMove modified the position")
	}
}

func TestParseMoveSpecialFlags(t *testing.T) {
	pos, err := ParseFEN("r3k2r/1P6/8/3pP3/8/8/8/R3K2R w KQkq d6 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	tests := []struct {
		text string
		flag uint16
	}{
		{"e1g1", FlagCastling},
		{"e1c1", FlagCastling},
		{"e5d6", FlagEnPassant},
		{"b7b8n", FlagPromotion},
		{"b7a8q", FlagPromotion},
	}
	for _, tc := range tests {
		m, err := pos.ParseMove(tc.text)
		if err != nil {
			t.Errorf("ParseMove(%s): %v", tc.text, err)
			continue
		}
		if m.Flag() != tc.flag || m.String() != tc.text {
			t.Errorf("ParseMove(%s) = %v flag %#x, want flag %#x", tc.text, m, m.Flag(), tc.flag)
		}
	}
}

func TestApplyMovesIsAllOrNothing(t *testing.T) {
	pos := NewPosition()
	err := pos.ApplyMoves("e2e4", "e7e5", "e1e3")
	if !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("ApplyMoves error = %v, want ErrIllegalMove", err)
	}
	if pos.ToFEN() != StartFEN || pos.Ply() != 0 {
		t.Errorf("position changed after a rejected move list: %s", pos.ToFEN())
	}

	if err := pos.ApplyMoves("e2e4", "e7e5", "g1f3"); err != nil {
		t.Fatal(err)
	}
	want := "rnbqkbnr/pppp1ppp/8/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R b KQkq - 1 2"
	if got := pos.ToFEN(); got != want {
		t.Errorf("FEN = %q, want %q", got, want)
	}
}
