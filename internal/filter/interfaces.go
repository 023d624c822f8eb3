// Package filter implements a cuckoo filter: a compact probabilistic set
// that supports membership testing and deletion with no false negatives,
// at the cost of a small, bounded false positive rate. The engine
// (geometry.go, bitops.go, hash.go, filter.go, serialize.go) is a
// self-contained byte-addressable data structure with no locks and no
// opinion on key hashing; facade.go layers a host-friendly handle,
// diagnostics, and an optional default key-hashing convenience on top.
package filter

// ProbabilisticFilter is the minimal key-based membership surface that
// CuckooFilter's convenience wrapper (AddKey/CheckKey/RemoveKey) satisfies.
// Implementations guarantee no false negatives: CheckKey never answers
// false for a key that was added and not since removed or evicted past the
// eviction budget. CheckKey may answer true for a key never added.
type ProbabilisticFilter interface {
	AddKey(key []byte) error
	CheckKey(key []byte) bool
	RemoveKey(key []byte) error
}

var _ ProbabilisticFilter = (*CuckooFilter)(nil)

// FilterConfig is the filter-relevant subset of the host's YAML
// configuration. Unlike the size/resize knobs a growable structure would
// need, this engine is fixed-capacity once initialized (spec.md has no
// resize operation), so there is no EnableAutoResize or MemoryBudgetPercent
// here — callers size the filter once, up front, via ByteSize or SizeToken.
type FilterConfig struct {
	Name                    string  `yaml:"name"`
	ByteSize                uint64  `yaml:"byte_size"`
	SizeToken               string  `yaml:"size_token"`
	FingerprintWidth        uint8   `yaml:"fingerprint_width"`
	TargetFalsePositiveRate float64 `yaml:"target_false_positive_rate"`
	MaxEvictionAttempts     uint32  `yaml:"max_eviction_attempts"`
}

// DefaultCuckooConfig returns a configuration targeting a 0.1% false
// positive rate with 2-byte fingerprints, a reasonable general-purpose
// default for GUID-shaped keys.
func DefaultCuckooConfig(name string, byteSize uint64) *FilterConfig {
	return &FilterConfig{
		Name:                    name,
		ByteSize:                byteSize,
		FingerprintWidth:        2,
		TargetFalsePositiveRate: 0.001,
		MaxEvictionAttempts:     DefaultMaxEvictionAttempts,
	}
}

// resolveFPWidth picks a FingerprintWidth if one was configured, otherwise
// recommends one from TargetFalsePositiveRate via RecommendFPWidth.
func (c *FilterConfig) resolveFPWidth(bucketSlots uint8) FPWidth {
	switch c.FingerprintWidth {
	case 1, 2, 4:
		return FPWidth(c.FingerprintWidth)
	default:
		if c.TargetFalsePositiveRate > 0 {
			return RecommendFPWidth(c.TargetFalsePositiveRate, bucketSlots)
		}
		return FPWidth2
	}
}

// resolveByteSize returns ByteSize if set, else parses SizeToken.
func (c *FilterConfig) resolveByteSize() (uint64, error) {
	if c.ByteSize > 0 {
		return c.ByteSize, nil
	}
	if c.SizeToken != "" {
		return ParseSizeToken(c.SizeToken)
	}
	return 0, &FilterError{Op: "config", Code: ErrBadSize, Message: "either byte_size or size_token must be set"}
}

// NewFromConfig builds a CuckooFilter from a FilterConfig, resolving a
// size token and/or a target false positive rate into concrete geometry.
// bucket_slots for the width guess defaults to 4 (the width-1/width-2
// bucket size) since the width is not yet known when estimating it.
func NewFromConfig(cfg *FilterConfig) (*CuckooFilter, uint64, error) {
	if cfg == nil {
		return nil, 0, &FilterError{Op: "config", Code: ErrBadSize, Message: "config must not be nil"}
	}
	width := cfg.resolveFPWidth(4)
	byteSize, err := cfg.resolveByteSize()
	if err != nil {
		return nil, 0, err
	}
	maxAttempts := cfg.MaxEvictionAttempts
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxEvictionAttempts
	}
	return InitWithSeed(cfg.Name, byteSize, width, maxAttempts, nil)
}
