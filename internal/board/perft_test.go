package board

import "testing"

func TestPerftStartingPosition(t *testing.T) {
	pos := NewPosition()

	tests := []struct {
		depth    int
		expected uint64
	}{
		{1, 20},
		{2, 400},
		{3, 8902},
		{4, 197281},
	}

	for _, tc := range tests {
		t.Run("", func(t *testing.T) {
			if got := pos.Perft(tc.depth); got != tc.expected {
				t.Errorf("perft(%d) = %d, want %d", tc.depth, got, tc.expected)
			}
		})
	}
	if pos.ToFEN() != StartFEN || pos.Ply() != 0 {
		t.Errorf("perft left the position modified: %s (ply %d)", pos.ToFEN(), pos.Ply())
	}
}

func TestPerftKnownPositions(t *testing.T) {
	tests := []struct {
		name   string
		fen    string
		counts []uint64
	}{
		{
			name:   "kiwipete",
			fen:    "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
			counts: []uint64{48, 2039, 97862},
		},
		{
			name:   "position3",
			fen:    "8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
			counts: []uint64{14, 191, 2812, 43238},
		},
		{
			name:   "position4",
			fen:    "r3k2r/Pppp1ppp/1b3nbN/nP6/BBP1P3/q4N2/Pp1P2PP/R2Q1RK1 w kq - 0 1",
			counts: []uint64{6, 264, 9467},
		},
		{
			name:   "position5",
			fen:    "rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8",
			counts: []uint64{44, 1486, 62379},
		},
		{
			name:   "en passant pin",
			fen:    "8/8/8/8/k2Pp2R/8/8/4K3 b - d3 0 1",
			counts: []uint64{6, 94},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pos, err := ParseFEN(tc.fen)
			if err != nil {
				t.Fatalf("ParseFEN: %v", err)
			}
			for i, want := range tc.counts {
				if got := pos.Perft(i + 1); got != want {
					t.Errorf("perft(%d) = %d, want %d", i+1, got, want)
				}
			}
		})
	}
}

// The e4 pawn may not capture en passant: removing both pawns from the
// fourth rank would expose the a4 king to the h4 rook.
func TestEnPassantHorizontalPin(t *testing.T) {
	pos, err := ParseFEN("8/8/8/8/k2Pp2R/8/8/4K3 b - d3 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	moves := pos.GenerateLegalMoves()
	for _, m := range moves.Slice() {
		if m.IsEnPassant() {
			t.Errorf("en passant %v should be illegal", m)
		}
	}
}

func TestDivideSumsToPerft(t *testing.T) {
	pos := NewPosition()
	var total uint64
	entries := pos.Divide(3)
	if len(entries) != 20 {
		t.Fatalf("divide returned %d root moves, want 20", len(entries))
	}
	for _, e := range entries {
		total += e.Nodes
	}
	if total != 8902 {
		t.Errorf("divide total = %d, want 8902", total)
	}
}

func BenchmarkPerftStart4(b *testing.B) {
	pos := NewPosition()
	for i := 0; i < b.N; i++ {
		pos.Perft(4)
	}
}

func BenchmarkGenerateLegalMoves(b *testing.B) {
	pos, _ := ParseFEN("r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")
	var ml MoveList
	for i := 0; i < b.N; i++ {
		pos.GenerateLegalMovesInto(&ml)
	}
}
