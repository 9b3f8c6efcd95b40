package board

import "fmt"

// Magic describes one square's slot in a shared slider attack array:
// attacks = table[Offset + ((occ & Mask) * Magic) >> Shift].
type Magic struct {
	Mask   Bitboard
	Magic  uint64
	Shift  uint8
	Offset uint32
}

func (m *Magic) index(occupied Bitboard) uint32 {
	return m.Offset + uint32((uint64(occupied&m.Mask)*m.Magic)>>m.Shift)
}

var (
	bishopMagics [64]Magic
	rookMagics   [64]Magic

	bishopTable [5248]Bitboard
	rookTable   [102400]Bitboard
)

var bishopMagicNumbers = [64]uint64{
	0x0002020202020200, 0x0002020202020000, 0x0004010202000000, 0x0004040080000000,
	0x0001104000000000, 0x0000821040000000, 0x0000410410400000, 0x0000104104104000,
	0x0000040404040400, 0x0000020202020200, 0x0000040102020000, 0x0000040400800000,
	0x0000011040000000, 0x0000008210400000, 0x0000004104104000, 0x0000002082082000,
	0x0004000808080800, 0x0002000404040400, 0x0001000202020200, 0x0000800802004000,
	0x0000800400A00000, 0x0000200100884000, 0x0000400082082000, 0x0000200041041000,
	0x0002080010101000, 0x0001040008080800, 0x0000208004010400, 0x0000404004010200,
	0x0000840000802000, 0x0000404002011000, 0x0000808001041000, 0x0000404000820800,
	0x0001041000202000, 0x0000820800101000, 0x0000104400080800, 0x0000020080080080,
	0x0000404040040100, 0x0000808100020100, 0x0001010100020800, 0x0000808080010400,
	0x0000820820004000, 0x0000410410002000, 0x0000082088001000, 0x0000002011000800,
	0x0000080100400400, 0x0001010101000200, 0x0002020202000400, 0x0001010101000200,
	0x0000410410400000, 0x0000208208200000, 0x0000002084100000, 0x0000000020880000,
	0x0000001002020000, 0x0000040408020000, 0x0004040404040000, 0x0002020202020000,
	0x0000104104104000, 0x0000002082082000, 0x0000000020841000, 0x0000000000208800,
	0x0000000010020200, 0x0000000404080200, 0x0000040404040400, 0x0002020202020200,
}

var rookMagicNumbers = [64]uint64{
	0x0080001020400080, 0x0040001000200040, 0x0080081000200080, 0x0080040800100080,
	0x0080020400080080, 0x0080010200040080, 0x0080008001000200, 0x0080002040800100,
	0x0000800020400080, 0x0000400020005000, 0x0000801000200080, 0x0000800800100080,
	0x0000800400080080, 0x0000800200040080, 0x0000800100020080, 0x0000800040800100,
	0x0000208000400080, 0x0000404000201000, 0x0000808010002000, 0x0000808008001000,
	0x0000808004000800, 0x0000808002000400, 0x0000010100020004, 0x0000020000408104,
	0x0000208080004000, 0x0000200040005000, 0x0000100080200080, 0x0000080080100080,
	0x0000040080080080, 0x0000020080040080, 0x0000010080800200, 0x0000800080004100,
	0x0000204000800080, 0x0000200040401000, 0x0000100080802000, 0x0000080080801000,
	0x0000040080800800, 0x0000020080800400, 0x0000020001010004, 0x0000800040800100,
	0x0000204000808000, 0x0000200040008080, 0x0000100020008080, 0x0000080010008080,
	0x0000040008008080, 0x0000020004008080, 0x0000010002008080, 0x0000004081020004,
	0x0000204000800080, 0x0000200040008080, 0x0000100020008080, 0x0000080010008080,
	0x0000040008008080, 0x0000020004008080, 0x0000800100020080, 0x0000800041000080,
	0x00FFFCDDFCED714A, 0x007FFCDDFCED714A, 0x003FFFCDFFD88096, 0x0000040810002101,
	0x0001000204080011, 0x0001000204000801, 0x0001000082000401, 0x0001FFFAABFAD1A2,
}

var (
	bishopDirs = [4][2]int{{1, 1}, {-1, 1}, {1, -1}, {-1, -1}}
	rookDirs   = [4][2]int{{0, 1}, {0, -1}, {1, 0}, {-1, 0}}
)

func initMagics() {
	initSlider(bishopMagics[:], bishopTable[:], bishopMagicNumbers[:], bishopDirs, "bishop")
	initSlider(rookMagics[:], rookTable[:], rookMagicNumbers[:], rookDirs, "rook")
}

// initSlider fills one slider's attack array. Every occupancy subset of every
// mask is enumerated; two subsets that land on the same index must agree on
// the attack set, otherwise the magic constant is broken and init panics.
func initSlider(magics []Magic, table []Bitboard, numbers []uint64, dirs [4][2]int, name string) {
	var offset uint32
	for sq := A1; sq <= H8; sq++ {
		mask := slidingAttacks(sq, 0, dirs) &^ edgesFor(sq)
		n := mask.PopCount()
		magics[sq] = Magic{
			Mask:   mask,
			Magic:  numbers[sq],
			Shift:  uint8(64 - n),
			Offset: offset,
		}

		size := uint32(1) << n
		if int(offset+size) > len(table) {
			panic(fmt.Sprintf("board: %s attack table overflow at %s", name, sq))
		}
		for i := uint32(0); i < size; i++ {
			occ := indexToOccupancy(i, mask)
			attacks := slidingAttacks(sq, occ, dirs)
			idx := magics[sq].index(occ)
			if table[idx] != 0 && table[idx] != attacks {
				panic(fmt.Sprintf("board: %s magic for %s collides on occupancy %#x", name, sq, uint64(occ)))
			}
			table[idx] = attacks
		}
		offset += size
	}
}

// edgesFor returns the board edges that never affect a slider on sq:
// the outer files and ranks, minus the ones sq itself stands on.
func edgesFor(sq Square) Bitboard {
	return ((Rank1 | Rank8) &^ RankMask[sq.Rank()]) | ((FileA | FileH) &^ FileMask[sq.File()])
}

// indexToOccupancy maps the bits of index onto the squares of mask.
func indexToOccupancy(index uint32, mask Bitboard) Bitboard {
	var occ Bitboard
	for i := 0; mask != 0; i++ {
		sq := mask.PopLSB()
		if index&(1<<i) != 0 {
			occ |= SquareBB(sq)
		}
	}
	return occ
}

// slidingAttacks ray-casts from sq in each direction until a blocker.
// Only used while building tables.
func slidingAttacks(sq Square, occupied Bitboard, dirs [4][2]int) Bitboard {
	var attacks Bitboard
	for _, d := range dirs {
		f, r := sq.File()+d[0], sq.Rank()+d[1]
		for f >= 0 && f <= 7 && r >= 0 && r <= 7 {
			s := SquareBB(NewSquare(f, r))
			attacks |= s
			if occupied&s != 0 {
				break
			}
			f += d[0]
			r += d[1]
		}
	}
	return attacks
}

// BishopAttacks returns the squares a bishop on sq attacks given occupancy.
func BishopAttacks(sq Square, occupied Bitboard) Bitboard {
	return bishopTable[bishopMagics[sq].index(occupied)]
}

// RookAttacks returns the squares a rook on sq attacks given occupancy.
func RookAttacks(sq Square, occupied Bitboard) Bitboard {
	return rookTable[rookMagics[sq].index(occupied)]
}

// QueenAttacks is the union of bishop and rook attacks.
func QueenAttacks(sq Square, occupied Bitboard) Bitboard {
	return BishopAttacks(sq, occupied) | RookAttacks(sq, occupied)
}
