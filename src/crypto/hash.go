package crypto

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/mosaicnetworks/neonode/src/common"
	"golang.org/x/crypto/ripemd160"
)

// SHA256 returns the SHA256 hash of the data.
func SHA256(data []byte) []byte {
	hasher := sha256.New()
	hasher.Write(data)
	hash := hasher.Sum(nil)
	return hash
}

// Hash256 returns the double SHA256 of the data. Block, transaction and
// message checksums are all built on it.
func Hash256(data []byte) common.Uint256 {
	var u common.Uint256
	copy(u[:], chainhash.DoubleHashB(data))
	return u
}

// Hash160 returns RIPEMD160(SHA256(data)), the script hash of a contract or
// verification script.
func Hash160(data []byte) common.Uint160 {
	var u common.Uint160
	h := ripemd160.New()
	h.Write(SHA256(data))
	copy(u[:], h.Sum(nil))
	return u
}

// Checksum returns the first four bytes of Hash256(data) read as a
// little-endian uint32.
func Checksum(data []byte) uint32 {
	h := chainhash.DoubleHashB(data)
	return binary.LittleEndian.Uint32(h[:4])
}

// SimpleHashFromTwoHashes returns the Hash256 of the concatenation of left
// and right.
func SimpleHashFromTwoHashes(left, right common.Uint256) common.Uint256 {
	buf := make([]byte, 0, 2*common.Uint256Size)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return Hash256(buf)
}
