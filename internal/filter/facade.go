package filter

import (
	"context"
	"math"
	"math/rand"

	"github.com/cespare/xxhash/v2"

	"cuckoofilter/internal/logging"
)

// CuckooFilter is the host-facing handle: the façade of spec.md §4.7,
// wrapping the raw engine with argument normalization, a name for
// diagnostics, and the degraded-after-overflow bookkeeping spec.md §7
// calls for.
type CuckooFilter struct {
	Name string

	f        *Filter
	degraded bool

	addOps, checkOps, removeOps      uint64
	successfulAdds, failedAdds       uint64
	successfulRemoves, failedRemoves uint64
}

// Init creates a new filter. byteSize must be a multiple of
// bucket_slots*fp_width for the given width, and the resulting bucket
// count must be a power of two. It returns the handle and the implied
// capacity (slot count = num_buckets * bucket_slots).
func Init(name string, byteSize uint64, fpWidth FPWidth) (*CuckooFilter, uint64, error) {
	return InitWithSeed(name, byteSize, fpWidth, DefaultMaxEvictionAttempts, nil)
}

// InitWithSeed is Init with an overridable eviction budget and an
// injectable PRNG, so callers (and tests) can get reproducible eviction
// behavior per spec.md §5 / §9 ("expose a per-filter seed hook").
func InitWithSeed(name string, byteSize uint64, fpWidth FPWidth, maxEvictionAttempts uint32, rng *rand.Rand) (*CuckooFilter, uint64, error) {
	slots, err := bucketSlots(fpWidth)
	if err != nil {
		return nil, 0, err
	}
	stride := uint64(slots) * uint64(fpWidth)
	if stride == 0 || byteSize%stride != 0 {
		return nil, 0, &FilterError{Op: "init", Code: ErrBadSize, Message: "byte_size must be a multiple of bucket_slots * fp_width"}
	}
	numBuckets := byteSize / stride

	f, err := newFilter(fpWidth, numBuckets, maxEvictionAttempts, rng)
	if err != nil {
		return nil, 0, err
	}

	cf := &CuckooFilter{Name: name, f: f}
	return cf, numBuckets * uint64(slots), nil
}

// normalize reduces a raw hash into [0, numBuckets) and truncates a raw
// fingerprint to the low fp_width bytes, substituting 1 for a truncated
// value of zero (the zero sentinel denotes an empty slot and must never be
// stored). add, check and remove of the same raw arguments agree because
// they all funnel through this.
func (cf *CuckooFilter) normalize(rawHash, rawFP uint64) (uint64, uint32) {
	h := rawHash & (cf.f.numBuckets - 1)
	mask := uint64(1)<<(8*uint(cf.f.fpWidth)) - 1
	fp := uint32(rawFP & mask)
	if fp == 0 {
		fp = 1
	}
	return h, fp
}

// Add inserts a (raw_hash, raw_fp) pair. Returns ErrTooFullError if the
// eviction budget was exhausted — state has already mutated by then (a
// displaced fingerprint's previous occupant is lost), so the filter must
// be treated as degraded from this point on (spec.md §4.4, §7).
func (cf *CuckooFilter) Add(rawHash, rawFP uint64) error {
	cf.addOps++
	h, fp := cf.normalize(rawHash, rawFP)
	if cf.f.insert(h, fp) {
		cf.successfulAdds++
		return nil
	}
	cf.failedAdds++
	cf.degraded = true
	logging.Warn(context.Background(), cf.Name, logging.ActionAdd,
		"insert exceeded eviction budget, filter is degraded",
		map[string]interface{}{"load_factor": cf.LoadFactor()})
	return ErrTooFullError
}

// Check reports whether (raw_hash, raw_fp) might be a member.
func (cf *CuckooFilter) Check(rawHash, rawFP uint64) bool {
	cf.checkOps++
	h, fp := cf.normalize(rawHash, rawFP)
	return cf.f.lookup(h, fp)
}

// Remove deletes (raw_hash, raw_fp) if present. Returns ErrNotFoundError
// otherwise — which, per spec.md §7, may simply mean the item was evicted
// during an earlier overflow, making this a useful consistency signal
// rather than necessarily a caller bug.
func (cf *CuckooFilter) Remove(rawHash, rawFP uint64) error {
	cf.removeOps++
	h, fp := cf.normalize(rawHash, rawFP)
	if cf.f.delete(h, fp) {
		cf.successfulRemoves++
		return nil
	}
	cf.failedRemoves++
	logging.Warn(context.Background(), cf.Name, logging.ActionRemove,
		"delete found no matching fingerprint",
		map[string]interface{}{"degraded": cf.degraded})
	return ErrNotFoundError
}

// Dump returns a read-only view of the filter's storage buffer.
func (cf *CuckooFilter) Dump() []byte {
	view := make([]byte, len(cf.f.storage))
	copy(view, cf.f.storage)
	return view
}

// Encode renders the full spec.md §6 wire format (is_multi, fp_width,
// length-prefixed storage), for hosts that persist a filter as an opaque
// blob rather than through internal/persistence's snapshot container.
func (cf *CuckooFilter) Encode() []byte {
	return cf.f.dumpBytes()
}

// Decode reconstructs a filter from Encode's output. encodingVersion must
// match EncodingVersion; the eviction budget and PRNG are not part of the
// wire format and are reset to defaults on load.
func Decode(name string, data []byte, encodingVersion int) (*CuckooFilter, uint64, error) {
	f, err := loadBytes(data, encodingVersion, DefaultMaxEvictionAttempts)
	if err != nil {
		return nil, 0, err
	}
	f.rng = rand.New(rand.NewSource(1))
	return &CuckooFilter{Name: name, f: f}, f.numBuckets * uint64(f.slots), nil
}

// Free releases the filter's storage. Go's GC reclaims the memory once
// nothing else references the CuckooFilter; this exists so callers that
// want the engine's init/free symmetry (spec.md §3 "destroyed by free,
// which releases storage then the filter header") have an explicit point
// to call.
func (cf *CuckooFilter) Free() {
	cf.f = nil
}

// Size returns the capacity in fingerprint slots (num_buckets * bucket_slots).
func (cf *CuckooFilter) Size() uint64 {
	slots, _ := bucketSlots(cf.f.fpWidth)
	return cf.f.numBuckets * uint64(slots)
}

// Occupied returns the number of currently-filled slots.
func (cf *CuckooFilter) Occupied() uint64 {
	return cf.f.occupiedSlots()
}

// LoadFactor returns occupied slots divided by capacity.
func (cf *CuckooFilter) LoadFactor() float64 {
	cap := cf.Size()
	if cap == 0 {
		return 0
	}
	return float64(cf.Occupied()) / float64(cap)
}

// FalsePositiveRate returns the standard cuckoo-filter bound,
// approximately 2*bucket_slots / 2^(8*fp_width).
func (cf *CuckooFilter) FalsePositiveRate() float64 {
	slots, _ := bucketSlots(cf.f.fpWidth)
	return 2 * float64(slots) / math.Pow(2, float64(8*cf.f.fpWidth))
}

// Degraded reports whether this filter has ever returned ErrTooFullError;
// per spec.md §7, check results can no longer be trusted to be free of
// false negatives once this is true.
func (cf *CuckooFilter) Degraded() bool {
	return cf.degraded
}

// Stats is a snapshot of the filter's operational counters.
type Stats struct {
	Name              string
	Size              uint64
	Occupied          uint64
	LoadFactor        float64
	FalsePositiveRate float64
	Degraded          bool
	AddOps            uint64
	CheckOps          uint64
	RemoveOps         uint64
	SuccessfulAdds    uint64
	FailedAdds        uint64
	SuccessfulRemoves uint64
	FailedRemoves     uint64
}

// GetStats returns a Stats snapshot.
func (cf *CuckooFilter) GetStats() Stats {
	return Stats{
		Name:              cf.Name,
		Size:              cf.Size(),
		Occupied:          cf.Occupied(),
		LoadFactor:        cf.LoadFactor(),
		FalsePositiveRate: cf.FalsePositiveRate(),
		Degraded:          cf.degraded,
		AddOps:            cf.addOps,
		CheckOps:          cf.checkOps,
		RemoveOps:         cf.removeOps,
		SuccessfulAdds:    cf.successfulAdds,
		FailedAdds:        cf.failedAdds,
		SuccessfulRemoves: cf.successfulRemoves,
		FailedRemoves:     cf.failedRemoves,
	}
}

// --- Host-side key hashing convenience -------------------------------
//
// spec.md §4.2 is explicit that the engine "imposes no opinion on how
// external keys are mapped to (primary_bucket, fingerprint) pairs — that
// is the host's hash design." AddKey/CheckKey/RemoveKey are exactly that
// host-side design, supplied as a ready default so callers that only have
// a []byte key (rather than an already-computed hash/fingerprint pair)
// don't have to invent one. They are layered entirely on top of Add/Check/
// Remove and do not change engine semantics.

// keyToHashFP derives a (raw_hash, raw_fp) pair from an arbitrary byte
// key using xxhash, mirroring the teacher's own CuckooFilter.hash /
// CuckooFilter.fingerprint split: the whole 64-bit sum is the bucket hash
// (Add masks it down to its low bits), and the XOR of its upper and lower
// 32-bit halves seeds the fingerprint, so the two are not trivially
// correlated.
func keyToHashFP(key []byte) (uint64, uint64) {
	sum := xxhash.Sum64(key)
	rawHash := sum
	rawFP := uint64(uint32(sum>>32) ^ uint32(sum))
	return rawHash, rawFP
}

// AddKey hashes key with xxhash and inserts it.
func (cf *CuckooFilter) AddKey(key []byte) error {
	h, fp := keyToHashFP(key)
	return cf.Add(h, fp)
}

// CheckKey hashes key with xxhash and checks membership.
func (cf *CuckooFilter) CheckKey(key []byte) bool {
	h, fp := keyToHashFP(key)
	return cf.Check(h, fp)
}

// RemoveKey hashes key with xxhash and removes it.
func (cf *CuckooFilter) RemoveKey(key []byte) error {
	h, fp := keyToHashFP(key)
	return cf.Remove(h, fp)
}

// RecommendFPWidth estimates the fingerprint width needed to hit
// targetFPR at the given bucket size, following the original module's
// CF.UTILS estimator (log2(1/targetFPR) + log(2*bucketSlots) bits),
// rounded up to the nearest supported width in {1, 2, 4} bytes.
func RecommendFPWidth(targetFPR float64, bucketSlots uint8) FPWidth {
	bits := math.Log2(1/targetFPR) + math.Log(2*float64(bucketSlots))
	switch {
	case bits <= 8:
		return FPWidth1
	case bits <= 16:
		return FPWidth2
	default:
		return FPWidth4
	}
}
