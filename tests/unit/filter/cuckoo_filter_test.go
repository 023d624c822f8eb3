package filter_test

import (
	"fmt"
	"math/rand"
	"testing"

	"cuckoofilter/internal/filter"
)

func mustInit(t *testing.T, name string, byteSize uint64, width filter.FPWidth) (*filter.CuckooFilter, uint64) {
	t.Helper()
	cf, capacity, err := filter.Init(name, byteSize, width)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return cf, capacity
}

func TestEmptyFilterLookupMisses(t *testing.T) {
	cf, _ := mustInit(t, "empty", 256, filter.FPWidth2)
	if cf.Check(12345, 999) {
		t.Error("Check on an empty filter must never report true")
	}
}

func TestAddCheckRemove(t *testing.T) {
	cf, _ := mustInit(t, "basic", 1024, filter.FPWidth2)

	rawHash, rawFP := uint64(42), uint64(0xABCD)

	if cf.Check(rawHash, rawFP) {
		t.Fatal("key should not be present before Add")
	}
	if err := cf.Add(rawHash, rawFP); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if !cf.Check(rawHash, rawFP) {
		t.Fatal("key should be present after Add")
	}
	if err := cf.Remove(rawHash, rawFP); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if cf.Check(rawHash, rawFP) {
		t.Error("key should not be present after Remove (no hash collision expected here)")
	}
	if err := cf.Remove(rawHash, rawFP); err == nil {
		t.Error("Remove of an already-removed key should return ErrNotFoundError")
	} else if err != filter.ErrNotFoundError {
		t.Errorf("expected ErrNotFoundError, got %v", err)
	}
}

func TestZeroFingerprintIsSubstituted(t *testing.T) {
	cf, _ := mustInit(t, "zerofp", 256, filter.FPWidth1)

	// a raw fingerprint of exactly 0 must not be stored as the empty
	// sentinel; it should round-trip as if it had been 1.
	if err := cf.Add(7, 0); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if !cf.Check(7, 0) {
		t.Error("zero-fingerprint key should be found after normalization to 1")
	}
	if !cf.Check(7, 1) {
		t.Error("a truncated fingerprint of 1 and of 0 normalize to the same stored value")
	}
}

func TestAddKeyThenCheckKeyFindsItem(t *testing.T) {
	cf, capacity := mustInit(t, "alt", 4096, filter.FPWidth1)
	_ = capacity

	for i := 0; i < 1000; i++ {
		key := []byte(fmt.Sprintf("item-%d", i))
		if err := cf.AddKey(key); err != nil {
			continue // filter may legitimately fill up; that's covered elsewhere
		}
		if !cf.CheckKey(key) {
			t.Fatalf("item %d missing immediately after AddKey", i)
		}
	}
}

func TestFillAndOverflowDegradesGracefully(t *testing.T) {
	// Deliberately tiny so the eviction budget is exhausted quickly.
	cf, capacity := mustInit(t, "tiny", 16, filter.FPWidth1)

	added := 0
	var overflowErr error
	for i := uint64(0); i < capacity*4; i++ {
		if err := cf.Add(i, i+1); err != nil {
			overflowErr = err
			break
		}
		added++
	}

	if overflowErr == nil {
		t.Fatal("expected the tiny filter to eventually overflow")
	}
	if overflowErr != filter.ErrTooFullError {
		t.Errorf("expected ErrTooFullError, got %v", overflowErr)
	}
	if !cf.Degraded() {
		t.Error("filter should report Degraded() true after an overflow")
	}
}

func TestRecollectionUnderLoad(t *testing.T) {
	cf, capacity := mustInit(t, "load", 8192, filter.FPWidth2)

	n := int(capacity / 2) // stay well under capacity to avoid overflow noise
	keys := make([][]byte, n)
	for i := 0; i < n; i++ {
		keys[i] = []byte(fmt.Sprintf("recollect-%d", i))
		if err := cf.AddKey(keys[i]); err != nil {
			t.Fatalf("AddKey(%d) failed: %v", i, err)
		}
	}

	for i, key := range keys {
		if !cf.CheckKey(key) {
			t.Errorf("key %d (%s) should still be found under load", i, key)
		}
	}
}

func TestLoadFactorAndStats(t *testing.T) {
	cf, capacity := mustInit(t, "stats", 1024, filter.FPWidth2)

	for i := uint64(0); i < capacity/2; i++ {
		if err := cf.Add(i, i+1); err != nil {
			t.Fatalf("Add(%d) failed: %v", i, err)
		}
	}

	stats := cf.GetStats()
	if stats.Occupied == 0 {
		t.Error("expected nonzero occupied slots after inserts")
	}
	if stats.LoadFactor <= 0 || stats.LoadFactor > 1 {
		t.Errorf("load factor out of range: %v", stats.LoadFactor)
	}
	if stats.AddOps == 0 {
		t.Error("expected AddOps to reflect the inserts performed")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cf, _ := mustInit(t, "roundtrip", 2048, filter.FPWidth2)

	for i := uint64(0); i < 50; i++ {
		if err := cf.Add(i, i+1); err != nil {
			t.Fatalf("Add(%d) failed: %v", i, err)
		}
	}

	encoded := cf.Encode()
	restored, capacity, err := filter.Decode("roundtrip", encoded, filter.EncodingVersion)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if capacity != cf.Size() {
		t.Errorf("capacity mismatch after round-trip: got %d, want %d", capacity, cf.Size())
	}

	for i := uint64(0); i < 50; i++ {
		if !restored.Check(i, i+1) {
			t.Errorf("key %d missing after round-trip", i)
		}
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	cf, _ := mustInit(t, "badver", 256, filter.FPWidth1)
	encoded := cf.Encode()

	if _, _, err := filter.Decode("badver", encoded, filter.EncodingVersion+1); err == nil {
		t.Error("expected an error decoding an unrecognized encoding version")
	}
}

func TestInitRejectsNonPowerOfTwoBuckets(t *testing.T) {
	// width 1 -> 4 slots/bucket, stride 4; 12 bytes => 3 buckets, not a power of two.
	if _, _, err := filter.Init("bad", 12, filter.FPWidth1); err == nil {
		t.Error("expected Init to reject a byte_size implying a non-power-of-two bucket count")
	}
}

func TestInitRejectsBadFPWidth(t *testing.T) {
	if _, _, err := filter.Init("bad", 256, filter.FPWidth(3)); err == nil {
		t.Error("expected Init to reject an unsupported fingerprint width")
	}
}

func TestSizeTokens(t *testing.T) {
	cf, capacity, err := filter.InitWithSeed("tok", mustSizeToken(t, "1M"), filter.FPWidth2, filter.DefaultMaxEvictionAttempts, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("Init with size token failed: %v", err)
	}
	if capacity == 0 {
		t.Error("expected nonzero capacity")
	}
	_ = cf
}

func mustSizeToken(t *testing.T, token string) uint64 {
	t.Helper()
	n, err := filter.ParseSizeToken(token)
	if err != nil {
		t.Fatalf("ParseSizeToken(%q) failed: %v", token, err)
	}
	return n
}

func TestRecommendFPWidth(t *testing.T) {
	cases := []struct {
		fpr    float64
		bucket uint8
		want   filter.FPWidth
	}{
		{0.3, 4, filter.FPWidth1},
		{0.001, 4, filter.FPWidth2},
		{0.0000001, 4, filter.FPWidth4},
	}
	for _, c := range cases {
		got := filter.RecommendFPWidth(c.fpr, c.bucket)
		if got != c.want {
			t.Errorf("RecommendFPWidth(%v, %d) = %v, want %v", c.fpr, c.bucket, got, c.want)
		}
	}
}
