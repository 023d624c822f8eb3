package filter

import "math/rand"

// Filter is one cuckoo filter: a flat, zero-initialized byte buffer
// partitioned into fixed-size buckets, plus the geometry needed to address
// them. It holds no locks (spec.md §5) — callers serialize writers against
// a given Filter themselves; two readers may run concurrently only if the
// caller additionally excludes writers.
type Filter struct {
	fpWidth    FPWidth
	slots      uint8  // bucket_slots, derived from fpWidth
	numBuckets uint64 // power of two
	storage    []byte
	isMulti    bool // reserved for format compatibility; always false here

	maxEvictionAttempts uint32
	rng                 *rand.Rand
}

// newFilter allocates a zeroed filter of the given geometry. numBuckets
// must already be a validated power of two; callers (the façade) are
// responsible for deriving and checking it.
func newFilter(w FPWidth, numBuckets uint64, maxEvictionAttempts uint32, rng *rand.Rand) (*Filter, error) {
	slots, err := bucketSlots(w)
	if err != nil {
		return nil, err
	}
	if !isPowerOfTwo(numBuckets) {
		return nil, &FilterError{Op: "init", Code: ErrBadSize, Message: "num_buckets must be a power of two"}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Filter{
		fpWidth:             w,
		slots:               slots,
		numBuckets:          numBuckets,
		storage:             make([]byte, numBuckets*uint64(slots)*uint64(w)),
		maxEvictionAttempts: maxEvictionAttempts,
		rng:                 rng,
	}, nil
}

// bucketStride is the number of bytes spanned by one bucket.
func (f *Filter) bucketStride() uint64 {
	return uint64(f.slots) * uint64(f.fpWidth)
}

func (f *Filter) bucketOffset(b uint64) uint64 {
	return b * f.bucketStride()
}

// readSlot returns the fingerprint stored at slot i of the bucket at byte
// offset off, in native (little-endian) byte order.
func (f *Filter) readSlot(off uint64, i uint8) uint32 {
	base := off + uint64(i)*uint64(f.fpWidth)
	switch f.fpWidth {
	case FPWidth1:
		return uint32(f.storage[base])
	case FPWidth2:
		return uint32(f.storage[base]) | uint32(f.storage[base+1])<<8
	default: // FPWidth4
		return uint32(f.storage[base]) | uint32(f.storage[base+1])<<8 |
			uint32(f.storage[base+2])<<16 | uint32(f.storage[base+3])<<24
	}
}

func (f *Filter) writeSlot(off uint64, i uint8, fp uint32) {
	base := off + uint64(i)*uint64(f.fpWidth)
	switch f.fpWidth {
	case FPWidth1:
		f.storage[base] = byte(fp)
	case FPWidth2:
		f.storage[base] = byte(fp)
		f.storage[base+1] = byte(fp >> 8)
	default: // FPWidth4
		f.storage[base] = byte(fp)
		f.storage[base+1] = byte(fp >> 8)
		f.storage[base+2] = byte(fp >> 16)
		f.storage[base+3] = byte(fp >> 24)
	}
}

// readWord loads the whole bucket at off as one machine word for the
// word-parallel has-zero/has-value predicates.
func (f *Filter) readWord(off uint64) uint64 {
	switch f.fpWidth {
	case FPWidth1:
		return uint64(uint32(f.storage[off]) | uint32(f.storage[off+1])<<8 |
			uint32(f.storage[off+2])<<16 | uint32(f.storage[off+3])<<24)
	default:
		var w uint64
		for i := 0; i < 8; i++ {
			w |= uint64(f.storage[off+uint64(i)]) << (8 * i)
		}
		return w
	}
}

func (f *Filter) hasZeroSlot(off uint64) bool {
	switch f.fpWidth {
	case FPWidth1:
		return hasZero32(uint32(f.readWord(off))) != 0
	case FPWidth2:
		return hasZero64w2(f.readWord(off)) != 0
	default:
		return hasZero64w4(f.readWord(off)) != 0
	}
}

func (f *Filter) hasValueSlot(off uint64, fp uint32) bool {
	switch f.fpWidth {
	case FPWidth1:
		return hasValue32(uint32(f.readWord(off)), fp) != 0
	case FPWidth2:
		return hasValue64w2(f.readWord(off), uint64(fp)) != 0
	default:
		return hasValue64w4(f.readWord(off), uint64(fp)) != 0
	}
}

// insertIntoBucket scans bucket b in index order and stores fp in the
// first empty slot. Reports whether it found room.
func (f *Filter) insertIntoBucket(b uint64, fp uint32) bool {
	off := f.bucketOffset(b)
	if !f.hasZeroSlot(off) {
		return false
	}
	for i := uint8(0); i < f.slots; i++ {
		if f.readSlot(off, i) == 0 {
			f.writeSlot(off, i, fp)
			return true
		}
	}
	return false
}

// alt returns the other candidate bucket for fp given one of its buckets b.
func (f *Filter) alt(b uint64, fp uint32) uint64 {
	return altBucket(b, fp, f.fpWidth, f.numBuckets)
}

// insert implements spec.md §4.4: try the primary bucket, then the
// alternative, then the bounded random-eviction loop. h must already be
// reduced into [0, numBuckets) and fp must already be nonzero.
func (f *Filter) insert(h uint64, fp uint32) bool {
	if f.insertIntoBucket(h, fp) {
		return true
	}
	altH := f.alt(h, fp)
	if f.insertIntoBucket(altH, fp) {
		return true
	}

	currentBucket := altH
	carried := fp
	for n := uint32(0); n < f.maxEvictionAttempts; n++ {
		off := f.bucketOffset(currentBucket)
		slot := uint8(f.rng.Intn(int(f.slots)))

		displaced := f.readSlot(off, slot)
		f.writeSlot(off, slot, carried)

		if displaced == 0 {
			return true
		}

		carried = displaced
		currentBucket = f.alt(currentBucket, carried)
	}
	return false
}

// lookup implements spec.md §4.5.
func (f *Filter) lookup(h uint64, fp uint32) bool {
	if f.hasValueSlot(f.bucketOffset(h), fp) {
		return true
	}
	return f.hasValueSlot(f.bucketOffset(f.alt(h, fp)), fp)
}

// deleteFromBucket clears the first slot in bucket b equal to fp.
func (f *Filter) deleteFromBucket(b uint64, fp uint32) bool {
	off := f.bucketOffset(b)
	for i := uint8(0); i < f.slots; i++ {
		if f.readSlot(off, i) == fp {
			f.writeSlot(off, i, 0)
			return true
		}
	}
	return false
}

// delete implements spec.md §4.6.
func (f *Filter) delete(h uint64, fp uint32) bool {
	if f.deleteFromBucket(h, fp) {
		return true
	}
	return f.deleteFromBucket(f.alt(h, fp), fp)
}

// occupiedSlots counts nonzero slots across the whole filter. Backs
// CuckooFilter.Occupied, LoadFactor and GetStats.
func (f *Filter) occupiedSlots() uint64 {
	var n uint64
	for b := uint64(0); b < f.numBuckets; b++ {
		off := f.bucketOffset(b)
		for i := uint8(0); i < f.slots; i++ {
			if f.readSlot(off, i) != 0 {
				n++
			}
		}
	}
	return n
}
