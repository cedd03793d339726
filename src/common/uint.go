package common

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// Uint160Size is the length in bytes of a Uint160 (script hashes).
	Uint160Size = 20
	// Uint256Size is the length in bytes of a Uint256 (block, transaction and
	// asset identifiers).
	Uint256Size = 32
)

// ErrInvalidLength is returned when a hash type is built from a buffer of the
// wrong size.
var ErrInvalidLength = errors.New("invalid hash length")

// Uint160 is a 160 bit little-endian number stored as raw bytes. The byte
// order is the serialized order.
type Uint160 [Uint160Size]byte

// Uint256 is a 256 bit little-endian number stored as raw bytes.
type Uint256 [Uint256Size]byte

// Uint160DecodeBytes builds a Uint160 from its serialized bytes.
func Uint160DecodeBytes(b []byte) (u Uint160, err error) {
	if len(b) != Uint160Size {
		return u, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidLength, Uint160Size, len(b))
	}
	copy(u[:], b)
	return u, nil
}

// Uint160DecodeString parses the reversed hex form produced by String. The 0x
// prefix is optional.
func Uint160DecodeString(s string) (Uint160, error) {
	b, err := decodeReversed(s, Uint160Size)
	if err != nil {
		return Uint160{}, err
	}
	return Uint160DecodeBytes(b)
}

// Bytes returns a copy of the serialized bytes.
func (u Uint160) Bytes() []byte {
	b := make([]byte, Uint160Size)
	copy(b, u[:])
	return b
}

// String returns the big-endian hex form with a 0x prefix.
func (u Uint160) String() string {
	return "0x" + reversedHex(u[:])
}

// Equals ...
func (u Uint160) Equals(other Uint160) bool {
	return u == other
}

// CompareTo orders hashes as numbers, starting from the most significant
// (last) byte.
func (u Uint160) CompareTo(other Uint160) int {
	return compareReversed(u[:], other[:])
}

// Less ...
func (u Uint160) Less(other Uint160) bool {
	return u.CompareTo(other) < 0
}

// HashCode returns the little-endian uint32 made of the first four bytes.
func (u Uint160) HashCode() uint32 {
	return binary.LittleEndian.Uint32(u[:4])
}

// IsZero ...
func (u Uint160) IsZero() bool {
	return u == Uint160{}
}

// Uint256DecodeBytes builds a Uint256 from its serialized bytes.
func Uint256DecodeBytes(b []byte) (u Uint256, err error) {
	if len(b) != Uint256Size {
		return u, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidLength, Uint256Size, len(b))
	}
	copy(u[:], b)
	return u, nil
}

// Uint256DecodeString parses the reversed hex form produced by String.
func Uint256DecodeString(s string) (Uint256, error) {
	b, err := decodeReversed(s, Uint256Size)
	if err != nil {
		return Uint256{}, err
	}
	return Uint256DecodeBytes(b)
}

// Bytes returns a copy of the serialized bytes.
func (u Uint256) Bytes() []byte {
	b := make([]byte, Uint256Size)
	copy(b, u[:])
	return b
}

// String returns the big-endian hex form with a 0x prefix.
func (u Uint256) String() string {
	return "0x" + reversedHex(u[:])
}

// Equals ...
func (u Uint256) Equals(other Uint256) bool {
	return u == other
}

// CompareTo orders hashes as numbers, starting from the most significant
// (last) byte.
func (u Uint256) CompareTo(other Uint256) int {
	return compareReversed(u[:], other[:])
}

// Less ...
func (u Uint256) Less(other Uint256) bool {
	return u.CompareTo(other) < 0
}

// HashCode returns the little-endian uint32 made of the first four bytes.
func (u Uint256) HashCode() uint32 {
	return binary.LittleEndian.Uint32(u[:4])
}

// IsZero ...
func (u Uint256) IsZero() bool {
	return u == Uint256{}
}

func compareReversed(a, b []byte) int {
	for i := len(a) - 1; i >= 0; i-- {
		if a[i] > b[i] {
			return 1
		}
		if a[i] < b[i] {
			return -1
		}
	}
	return 0
}

func reversedHex(b []byte) string {
	r := make([]byte, len(b))
	for i := range b {
		r[len(b)-1-i] = b[i]
	}
	return hex.EncodeToString(r)
}

func decodeReversed(s string, size int) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != size*2 {
		return nil, fmt.Errorf("%w: expected %d hex characters, got %d", ErrInvalidLength, size*2, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return b, nil
}
