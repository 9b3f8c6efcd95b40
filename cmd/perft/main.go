// Command perft counts the leaf nodes of the legal move tree, splitting the
// root moves across goroutines.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/chesscore/internal/board"
)

var (
	fen     = flag.String("fen", board.StartFEN, "position to count from")
	moves   = flag.String("moves", "", "space separated SAN moves played from -fen first")
	depth   = flag.Int("depth", 5, "perft depth")
	divide  = flag.Bool("divide", false, "print the count below each root move")
	workers = flag.Int("workers", runtime.GOMAXPROCS(0), "parallel root moves")
)

func main() {
	flag.Parse()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()

	pos, err := board.ParseFEN(*fen)
	if err != nil {
		logger.Error().Err(err).Msg("bad position")
		os.Exit(2)
	}
	if err := playSAN(pos, *moves); err != nil {
		logger.Error().Err(err).Msg("bad move list")
		os.Exit(2)
	}
	if *depth < 1 {
		logger.Error().Int("depth", *depth).Msg("depth must be at least 1")
		os.Exit(2)
	}

	start := time.Now()
	entries, err := parallelDivide(context.Background(), pos, *depth, *workers)
	if err != nil {
		logger.Error().Err(err).Msg("perft failed")
		os.Exit(1)
	}
	elapsed := time.Since(start)

	var total uint64
	for _, e := range entries {
		if *divide {
			fmt.Printf("%s (%s): %d\n", e.Move, pos.SAN(e.Move), e.Nodes)
		}
		total += e.Nodes
	}
	fmt.Printf("Nodes: %d\n", total)
	logger.Info().
		Int("depth", *depth).
		Uint64("nodes", total).
		Dur("time", elapsed).
		Float64("mnps", float64(total)/elapsed.Seconds()/1e6).
		Msg("perft done")
}

// playSAN applies the whitespace separated SAN moves in list to pos. On error
// pos is left unchanged.
func playSAN(pos *board.Position, list string) error {
	played := 0
	for _, text := range strings.Fields(list) {
		m, err := pos.ParseSAN(text)
		if err != nil {
			for ; played > 0; played-- {
				pos.UnmakeMove()
			}
			return fmt.Errorf("perft: move %d: %w", played+1, err)
		}
		pos.MakeMove(m)
		played++
	}
	return nil
}

// parallelDivide is Position.Divide with each root move counted on its own
// copy of pos. Entries are in generation order.
func parallelDivide(ctx context.Context, pos *board.Position, depth, workers int) ([]board.DivideEntry, error) {
	moves := pos.GenerateLegalMoves()
	entries := make([]board.DivideEntry, moves.Len())

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p := pos.Copy()
			p.MakeMove(m)
			entries[i] = board.DivideEntry{Move: m, Nodes: p.Perft(depth - 1)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}
