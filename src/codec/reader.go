package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/mosaicnetworks/neonode/src/common"
)

var (
	// ErrUnexpectedEOF is returned when a read needs more bytes than remain.
	ErrUnexpectedEOF = errors.New("unexpected end of buffer")
	// ErrVarintTooLarge is returned when a decoded count exceeds the caller's
	// bound.
	ErrVarintTooLarge = errors.New("varint exceeds maximum")
	// ErrTrailingData is returned by FromBytesStrict.
	ErrTrailingData = errors.New("trailing data after value")
)

// BinReader consumes a fixed buffer.
type BinReader struct {
	buf []byte
	pos int
	Err error
}

// NewBinReader ...
func NewBinReader(b []byte) *BinReader {
	return &BinReader{buf: b}
}

// Len returns the number of unread bytes.
func (r *BinReader) Len() int {
	return len(r.buf) - r.pos
}

// next returns the next n bytes without copying them, or nil after setting
// Err.
func (r *BinReader) next(n int) []byte {
	if r.Err != nil {
		return nil
	}
	if n < 0 || n > r.Len() {
		r.Err = fmt.Errorf("%w: need %d bytes, have %d", ErrUnexpectedEOF, n, r.Len())
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

// ReadU8 ...
func (r *BinReader) ReadU8() uint8 {
	b := r.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// ReadBool returns true for any non-zero byte.
func (r *BinReader) ReadBool() bool {
	return r.ReadU8() != 0
}

// ReadU16LE ...
func (r *BinReader) ReadU16LE() uint16 {
	b := r.next(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// ReadU16BE ...
func (r *BinReader) ReadU16BE() uint16 {
	b := r.next(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

// ReadU32LE ...
func (r *BinReader) ReadU32LE() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// ReadU64LE ...
func (r *BinReader) ReadU64LE() uint64 {
	b := r.next(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// ReadI64LE ...
func (r *BinReader) ReadI64LE() int64 {
	return int64(r.ReadU64LE())
}

// ReadBytes returns a copy of the next n bytes.
func (r *BinReader) ReadBytes(n int) []byte {
	b := r.next(n)
	if b == nil || n == 0 {
		return nil
	}
	res := make([]byte, n)
	copy(res, b)
	return res
}

// ReadVarUint decodes a variable length integer and fails if it is larger
// than max.
func (r *BinReader) ReadVarUint(max uint64) uint64 {
	var v uint64
	switch fb := r.ReadU8(); fb {
	case 0xfd:
		v = uint64(r.ReadU16LE())
	case 0xfe:
		v = uint64(r.ReadU32LE())
	case 0xff:
		v = r.ReadU64LE()
	default:
		v = uint64(fb)
	}
	if r.Err != nil {
		return 0
	}
	if v > max {
		r.Err = fmt.Errorf("%w: %d > %d", ErrVarintTooLarge, v, max)
		return 0
	}
	return v
}

// ReadVarBytes reads a length prefixed byte string of at most max bytes.
func (r *BinReader) ReadVarBytes(max int) []byte {
	n := r.ReadVarUint(uint64(max))
	if r.Err != nil {
		return nil
	}
	return r.ReadBytes(int(n))
}

// ReadString reads a length prefixed string of at most max bytes.
func (r *BinReader) ReadString(max int) string {
	return string(r.ReadVarBytes(max))
}

// ReadUint160 ...
func (r *BinReader) ReadUint160() (u common.Uint160) {
	if b := r.next(common.Uint160Size); b != nil {
		copy(u[:], b)
	}
	return u
}

// ReadUint256 ...
func (r *BinReader) ReadUint256() (u common.Uint256) {
	if b := r.next(common.Uint256Size); b != nil {
		copy(u[:], b)
	}
	return u
}

// ReadUint256Array reads a counted list of at most max hashes.
func (r *BinReader) ReadUint256Array(max int) []common.Uint256 {
	n := r.ReadVarUint(uint64(max))
	if r.Err != nil {
		return nil
	}
	hs := make([]common.Uint256, 0, n)
	for i := uint64(0); i < n && r.Err == nil; i++ {
		hs = append(hs, r.ReadUint256())
	}
	if r.Err != nil {
		return nil
	}
	return hs
}

// ReadCount reads an array length bounded by max and by the unread bytes,
// assuming every item takes at least one byte.
func (r *BinReader) ReadCount(max int) int {
	if max > r.Len() {
		max = r.Len()
	}
	if max < 0 {
		max = 0
	}
	n := r.ReadVarUint(uint64(max))
	if n > math.MaxInt32 {
		return 0
	}
	return int(n)
}
