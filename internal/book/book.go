// Package book reads opening books of fixed 16-byte records and picks
// book moves for a position.
package book

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"slices"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/hailam/chesscore/internal/board"
)

// RecordSize is the on-disk size of one entry:
//
//	8 bytes position key (engine Zobrist hash)
//	2 bytes move code
//	2 bytes weight
//	4 bytes learn data
//
// All fields are big-endian and records are sorted by key.
const RecordSize = 16

// ErrTruncated is returned when a book ends inside a record.
var ErrTruncated = errors.New("book: truncated record")

// Entry is a single book record.
type Entry struct {
	Key    uint64
	Move   board.Move
	Weight uint16
	Learn  uint32
}

// Book is an in-memory opening book. It is safe for use by one goroutine.
type Book struct {
	entries []Entry // sorted by Key
	rng     *rand.Rand
	logger  zerolog.Logger
}

// Option configures a Book.
type Option func(*Book)

// WithRand sets the source used for weighted move selection.
func WithRand(rng *rand.Rand) Option {
	return func(b *Book) { b.rng = rng }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(b *Book) { b.logger = logger.With().Str("component", "book").Logger() }
}

// New builds a book from entries, which need not be sorted.
func New(entries []Entry, opts ...Option) *Book {
	b := &Book{
		entries: slices.Clone(entries),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.rng == nil {
		b.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	sortEntries(b.entries)
	return b
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
}

// Load reads a book file.
func Load(path string, opts ...Option) (*Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("book: open: %w", err)
	}
	defer f.Close()
	b, err := Read(bufio.NewReader(f), opts...)
	if err != nil {
		return nil, err
	}
	b.logger.Info().Str("path", path).Int("entries", b.Len()).Msg("opening book loaded")
	return b, nil
}

// Read decodes records from r until EOF. Records with an undecodable move
// code are skipped.
func Read(r io.Reader, opts ...Option) (*Book, error) {
	var entries []Entry
	var rec [RecordSize]byte
	skipped := 0
	for {
		_, err := io.ReadFull(r, rec[:])
		if err == io.EOF {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w after %d records", ErrTruncated, len(entries))
		}
		if err != nil {
			return nil, fmt.Errorf("book: read: %w", err)
		}
		m := decodeMove(binary.BigEndian.Uint16(rec[8:10]))
		if m == board.NoMove {
			skipped++
			continue
		}
		entries = append(entries, Entry{
			Key:    binary.BigEndian.Uint64(rec[0:8]),
			Move:   m,
			Weight: binary.BigEndian.Uint16(rec[10:12]),
			Learn:  binary.BigEndian.Uint32(rec[12:16]),
		})
	}
	b := New(entries, opts...)
	if skipped > 0 {
		b.logger.Warn().Int("skipped", skipped).Msg("book records with invalid moves")
	}
	return b, nil
}

// Write encodes entries to w, sorted by key.
func Write(w io.Writer, entries []Entry) error {
	sorted := slices.Clone(entries)
	sortEntries(sorted)
	bw := bufio.NewWriter(w)
	var rec [RecordSize]byte
	for _, e := range sorted {
		binary.BigEndian.PutUint64(rec[0:8], e.Key)
		binary.BigEndian.PutUint16(rec[8:10], encodeMove(e.Move))
		binary.BigEndian.PutUint16(rec[10:12], e.Weight)
		binary.BigEndian.PutUint32(rec[12:16], e.Learn)
		if _, err := bw.Write(rec[:]); err != nil {
			return fmt.Errorf("book: write: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("book: write: %w", err)
	}
	return nil
}

// Move codes:
//
//	bits 0-5   destination square
//	bits 6-11  origin square
//	bits 12-14 promotion piece (0 none, 1 knight, 2 bishop, 3 rook, 4 queen)
//
// Castling is the king's two-square step; king-takes-rook codes from other
// writers are accepted on read.
func encodeMove(m board.Move) uint16 {
	code := uint16(m.To()) | uint16(m.From())<<6
	if m.IsPromotion() {
		code |= uint16(m.Promotion()-board.Knight+1) << 12
	}
	return code
}

func decodeMove(code uint16) board.Move {
	to := board.Square(code & 0x3F)
	from := board.Square((code >> 6) & 0x3F)
	promo := (code >> 12) & 7
	if from == to || promo > 4 {
		return board.NoMove
	}
	if promo > 0 {
		return board.NewPromotion(from, to, board.Knight+board.PieceType(promo-1))
	}
	return board.NewMove(from, to)
}

// Len returns the number of entries.
func (b *Book) Len() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}

// lookup returns the entries stored for key.
func (b *Book) lookup(key uint64) []Entry {
	lo := sort.Search(len(b.entries), func(i int) bool { return b.entries[i].Key >= key })
	hi := lo
	for hi < len(b.entries) && b.entries[hi].Key == key {
		hi++
	}
	return b.entries[lo:hi]
}

// Moves returns the legal book moves for pos, highest weight first. Each
// returned Move carries the flags of the matching generated move.
func (b *Book) Moves(pos *board.Position) []Entry {
	if b == nil {
		return nil
	}
	var out []Entry
	for _, e := range b.lookup(pos.Hash) {
		m := resolve(pos, e.Move)
		if m == board.NoMove {
			b.logger.Debug().Str("move", e.Move.String()).Str("fen", pos.ToFEN()).Msg("illegal book move")
			continue
		}
		e.Move = m
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out
}

// Probe picks a legal book move for pos with probability proportional to
// its weight. When every weight is zero the first move is returned.
func (b *Book) Probe(pos *board.Position) (board.Move, bool) {
	moves := b.Moves(pos)
	if len(moves) == 0 {
		return board.NoMove, false
	}

	total := 0
	for _, e := range moves {
		total += int(e.Weight)
	}
	if total == 0 {
		return moves[0].Move, true
	}

	r := b.rng.Intn(total)
	for _, e := range moves {
		r -= int(e.Weight)
		if r < 0 {
			return e.Move, true
		}
	}
	return moves[0].Move, true
}

// resolve finds the legal move of pos matching m's squares and promotion.
func resolve(pos *board.Position, m board.Move) board.Move {
	legal := pos.GenerateLegalMoves()
	for i := 0; i < legal.Len(); i++ {
		lm := legal.Get(i)
		if lm.IsCastling() && lm.From() == m.From() && castlingRookSquare(lm.To()) == m.To() {
			return lm
		}
		if lm.From() != m.From() || lm.To() != m.To() || lm.IsPromotion() != m.IsPromotion() {
			continue
		}
		if !m.IsPromotion() || lm.Promotion() == m.Promotion() {
			return lm
		}
	}
	return board.NoMove
}

// castlingRookSquare maps a castling king destination to the rook's square.
func castlingRookSquare(kingTo board.Square) board.Square {
	if kingTo.File() == 6 {
		return kingTo + 1
	}
	return kingTo - 2
}
