package filter

// Word-parallel emptiness/match predicates (spec.md §4.1), specialized per
// fingerprint width. Each is the classical SWAR "is there a zero byte"
// trick generalized to W-byte lanes:
//
//	has_zero_W(x) = (x - ONES_W) &^ x & HIGH_W
//
// where ONES_W has a 1 in the low byte of each W-byte lane and HIGH_W has a
// 1 in the high bit of each W-byte lane. These are fast-path shortcuts: a
// nonzero result only tells the caller a matching lane exists somewhere in
// the word, so callers that need its index (insertion) still scan lanes
// linearly to find it.

const (
	ones1 uint32 = 0x01010101
	high1 uint32 = 0x80808080

	ones2 uint64 = 0x0001000100010001
	high2 uint64 = 0x8000800080008000

	ones4 uint64 = 0x0000000100000001
	high4 uint64 = 0x8000000080000000
)

func hasZero32(x uint32) uint32 {
	return (x - ones1) &^ x & high1
}

func hasZero64w2(x uint64) uint64 {
	return (x - ones2) &^ x & high2
}

func hasZero64w4(x uint64) uint64 {
	return (x - ones4) &^ x & high4
}

// broadcast1 replicates a 1-byte value into all four lanes of a 32-bit
// word: broadcast_W(n) = (all_ones / max_W) * n.
func broadcast1(n uint32) uint32 {
	return n * 0x01010101
}

// broadcast2 replicates a 2-byte value into all four 2-byte lanes of a
// 64-bit word.
func broadcast2(n uint64) uint64 {
	return n * 0x0001000100010001
}

// broadcast4 replicates a 4-byte value into both 4-byte lanes of a 64-bit
// word.
func broadcast4(n uint64) uint64 {
	return n * 0x0000000100000001
}

func hasValue32(word, n uint32) uint32 {
	return hasZero32(word ^ broadcast1(n))
}

func hasValue64w2(word, n uint64) uint64 {
	return hasZero64w2(word ^ broadcast2(n))
}

func hasValue64w4(word, n uint64) uint64 {
	return hasZero64w4(word ^ broadcast4(n))
}
