// Package persistence wraps a single filter's Encode/Decode wire format
// (internal/filter's spec.md §6 format) in a versioned, compressed,
// checksummed file container, and manages the on-disk snapshot directory:
// naming, rotation, and picking the most recent snapshot on load.
package persistence

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"

	"cuckoofilter/internal/filter"
	"cuckoofilter/pkg/config"
)

// SnapshotHeader describes the container wrapped around one filter's
// Encode() output. Checksum covers the encoded payload only, after
// decompression, so a bit flip in the compressed stream is caught by
// gzip's own CRC and a bit flip in the decompressed payload is caught
// here.
type SnapshotHeader struct {
	FormatVersion int
	FilterName    string
	EncodedAt     time.Time
	Checksum      uint64
}

const formatVersion = 1

// SnapshotManager saves and loads filter snapshots under a configured
// directory, named by filter and timestamp.
type SnapshotManager struct {
	cfg     config.PersistenceConfig
	dataDir string
}

// NewSnapshotManager builds a manager rooted at cfg.SnapshotDir (default
// "snapshots"), resolved under dataDir when relative. It does not touch the
// filesystem; Save creates the directory.
func NewSnapshotManager(cfg config.PersistenceConfig, dataDir string) *SnapshotManager {
	dir := cfg.SnapshotDir
	if dir == "" {
		dir = "snapshots"
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(dataDir, dir)
	}
	return &SnapshotManager{cfg: cfg, dataDir: dir}
}

// Save writes cf's current state to a new snapshot file, then prunes old
// snapshots for the same filter name beyond RetainSnapshots.
func (sm *SnapshotManager) Save(cf *filter.CuckooFilter) (string, error) {
	if err := os.MkdirAll(sm.dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	payload := cf.Encode()
	header := SnapshotHeader{
		FormatVersion: formatVersion,
		FilterName:    cf.Name,
		EncodedAt:     time.Now(),
		Checksum:      xxhash.Sum64(payload),
	}

	filename := fmt.Sprintf("%s-%s.cfsnap", cf.Name, header.EncodedAt.Format("20060102-150405.000000000"))
	path := filepath.Join(sm.dataDir, filename)
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot file: %w", err)
	}

	level := sm.cfg.CompressionLevel
	if level == 0 {
		level = gzip.DefaultCompression
	}
	gz, err := gzip.NewWriterLevel(f, level)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to create gzip writer: %w", err)
	}

	if err := writeHeader(gz, header); err != nil {
		gz.Close()
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write snapshot header: %w", err)
	}
	if _, err := gz.Write(payload); err != nil {
		gz.Close()
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write snapshot payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to finalize gzip stream: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to sync snapshot file: %w", err)
	}
	f.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("failed to finalize snapshot: %w", err)
	}

	if err := sm.prune(cf.Name); err != nil {
		return path, fmt.Errorf("snapshot written but pruning old snapshots failed: %w", err)
	}
	return path, nil
}

// Load reads the most recent snapshot for filterName, verifying its
// checksum and reconstructing the filter via filter.Decode.
func (sm *SnapshotManager) Load(filterName string) (*filter.CuckooFilter, uint64, error) {
	path, err := sm.latest(filterName)
	if err != nil {
		return nil, 0, err
	}
	if path == "" {
		return nil, 0, fmt.Errorf("no snapshot found for filter %q", filterName)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	header, err := readHeader(gz)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read snapshot header: %w", err)
	}
	if header.FormatVersion != formatVersion {
		return nil, 0, fmt.Errorf("unsupported snapshot format version %d", header.FormatVersion)
	}

	payload, err := io.ReadAll(gz)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read snapshot payload: %w", err)
	}
	if xxhash.Sum64(payload) != header.Checksum {
		return nil, 0, fmt.Errorf("snapshot checksum mismatch for %s", path)
	}

	return filter.Decode(header.FilterName, payload, filter.EncodingVersion)
}

func (sm *SnapshotManager) latest(filterName string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(sm.dataDir, filterName+"-*.cfsnap"))
	if err != nil {
		return "", fmt.Errorf("failed to search for snapshots: %w", err)
	}
	if len(matches) == 0 {
		return "", nil
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

func (sm *SnapshotManager) prune(filterName string) error {
	if sm.cfg.RetainSnapshots <= 0 {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(sm.dataDir, filterName+"-*.cfsnap"))
	if err != nil {
		return err
	}
	if len(matches) <= sm.cfg.RetainSnapshots {
		return nil
	}
	sort.Strings(matches)
	toRemove := matches[:len(matches)-sm.cfg.RetainSnapshots]
	for _, path := range toRemove {
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	return nil
}

// writeHeader/readHeader use a tiny fixed layout rather than gob or JSON:
// version(u32) | name_len(u32) | name | encoded_at_unix_nano(i64) | checksum(u64).
func writeHeader(w io.Writer, h SnapshotHeader) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint32(h.FormatVersion)); err != nil {
		return err
	}
	name := []byte(h.FilterName)
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(name))); err != nil {
		return err
	}
	buf.Write(name)
	if err := binary.Write(&buf, binary.LittleEndian, h.EncodedAt.UnixNano()); err != nil {
		return err
	}
	if err := binary.Write(&buf, binary.LittleEndian, h.Checksum); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func readHeader(r io.Reader) (SnapshotHeader, error) {
	var h SnapshotHeader
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return h, err
	}
	h.FormatVersion = int(version)

	var nameLen uint32
	if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return h, err
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return h, err
	}
	h.FilterName = string(name)

	var encodedAtNano int64
	if err := binary.Read(r, binary.LittleEndian, &encodedAtNano); err != nil {
		return h, err
	}
	h.EncodedAt = time.Unix(0, encodedAtNano)

	if err := binary.Read(r, binary.LittleEndian, &h.Checksum); err != nil {
		return h, err
	}
	return h, nil
}
