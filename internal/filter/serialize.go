package filter

import "encoding/binary"

// dumpBytes renders the filter as the spec.md §6 wire format: is_multi
// (u64) | fp_width (u64) | length-prefixed storage, little-endian. This is
// the engine's own wire format, independent of whatever file container a
// host layers on top of it (see internal/persistence).
func (f *Filter) dumpBytes() []byte {
	buf := make([]byte, 8+8+8+len(f.storage))
	binary.LittleEndian.PutUint64(buf[0:8], boolToU64(f.isMulti))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(f.fpWidth))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(len(f.storage)))
	copy(buf[24:], f.storage)
	return buf
}

// loadBytes reconstructs a filter from dumpBytes' output. It rejects any
// encoding whose version tag does not match EncodingVersion — callers pass
// that tag separately since the host layer, not this payload, carries it
// (e.g. a module type's encver; internal/persistence passes
// EncodingVersion itself, as its snapshot header does not record it).
func loadBytes(data []byte, encodingVersion int, maxEvictionAttempts uint32) (*Filter, error) {
	if encodingVersion != EncodingVersion {
		return nil, &FilterError{Op: "load", Code: ErrBadEncoding, Message: "unknown encoding version"}
	}
	if len(data) < 24 {
		return nil, &FilterError{Op: "load", Code: ErrBadEncoding, Message: "truncated header"}
	}

	isMulti := binary.LittleEndian.Uint64(data[0:8]) != 0
	fpWidth := FPWidth(binary.LittleEndian.Uint64(data[8:16]))
	length := binary.LittleEndian.Uint64(data[16:24])

	slots, err := bucketSlots(fpWidth)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)-24) < length {
		return nil, &FilterError{Op: "load", Code: ErrBadEncoding, Message: "truncated storage buffer"}
	}

	stride := uint64(slots) * uint64(fpWidth)
	if stride == 0 || length%stride != 0 {
		return nil, &FilterError{Op: "load", Code: ErrBadSize, Message: "storage length not a multiple of bucket size"}
	}
	numBuckets := length / stride
	if !isPowerOfTwo(numBuckets) {
		return nil, &FilterError{Op: "load", Code: ErrBadSize, Message: "num_buckets must be a power of two"}
	}

	storage := make([]byte, length)
	copy(storage, data[24:24+length])

	return &Filter{
		fpWidth:             fpWidth,
		slots:               slots,
		numBuckets:          numBuckets,
		storage:             storage,
		isMulti:             isMulti,
		maxEvictionAttempts: maxEvictionAttempts,
	}, nil
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
