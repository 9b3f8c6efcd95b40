package board

// Perft counts the leaf nodes of the legal move tree to the given depth.
// The position is restored before returning.
func (p *Position) Perft(depth int) uint64 {
	if depth <= 0 {
		return 1
	}
	buffers := make([]MoveList, depth)
	return p.perft(depth, buffers)
}

func (p *Position) perft(depth int, buffers []MoveList) uint64 {
	ml := &buffers[depth-1]
	p.GenerateLegalMovesInto(ml)
	if depth == 1 {
		return uint64(ml.Len())
	}
	var nodes uint64
	for i := 0; i < ml.Len(); i++ {
		p.MakeMove(ml.Get(i))
		nodes += p.perft(depth-1, buffers)
		p.UnmakeMove()
	}
	return nodes
}

// DivideEntry is the subtree size below one root move.
type DivideEntry struct {
	Move  Move
	Nodes uint64
}

// Divide runs perft below each legal root move, in generation order.
func (p *Position) Divide(depth int) []DivideEntry {
	if depth < 1 {
		return nil
	}
	moves := p.GenerateLegalMoves()
	out := make([]DivideEntry, 0, moves.Len())
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		p.MakeMove(m)
		out = append(out, DivideEntry{Move: m, Nodes: p.Perft(depth - 1)})
		p.UnmakeMove()
	}
	return out
}
