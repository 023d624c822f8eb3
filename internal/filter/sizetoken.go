package filter

import "fmt"

// sizeTokens maps the host-visible capacity shorthand to a byte count,
// grounded on the original module's CF.INIT size-class table (powers of
// two from 1 KiB up to 8 GiB).
var sizeTokens = map[string]uint64{
	"1K": 1 << 10, "2K": 2 << 10, "4K": 4 << 10, "8K": 8 << 10,
	"16K": 16 << 10, "32K": 32 << 10, "64K": 64 << 10, "128K": 128 << 10,
	"256K": 256 << 10, "512K": 512 << 10,
	"1M": 1 << 20, "2M": 2 << 20, "4M": 4 << 20, "8M": 8 << 20,
	"16M": 16 << 20, "32M": 32 << 20, "64M": 64 << 20, "128M": 128 << 20,
	"256M": 256 << 20, "512M": 512 << 20,
	"1G": 1 << 30, "2G": 2 << 30, "4G": 4 << 30, "8G": 8 << 30,
}

// ParseSizeToken resolves a capacity shorthand (e.g. "64M") to a byte
// count. This is purely a host convenience layered on top of Init's raw
// byteSize parameter; the engine itself has no notion of size classes.
func ParseSizeToken(token string) (uint64, error) {
	n, ok := sizeTokens[token]
	if !ok {
		return 0, &FilterError{Op: "size_token", Code: ErrBadSize, Message: fmt.Sprintf("unrecognized size token %q", token)}
	}
	return n, nil
}
