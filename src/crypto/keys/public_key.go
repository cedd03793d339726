package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"errors"
	"sort"

	"github.com/mosaicnetworks/neonode/src/common"
)

// CompressedSize is the length of a compressed public key.
const CompressedSize = 33

// ErrInvalidPublicKey is returned for bytes that do not encode a curve point.
var ErrInvalidPublicKey = errors.New("invalid public key")

// DecodePublicKey parses a compressed or uncompressed SEC encoded point.
func DecodePublicKey(b []byte) (*ecdsa.PublicKey, error) {
	var x, y = elliptic.UnmarshalCompressed(Curve(), b)
	if x == nil {
		x, y = elliptic.Unmarshal(Curve(), b)
	}
	if x == nil {
		return nil, ErrInvalidPublicKey
	}
	return &ecdsa.PublicKey{Curve: Curve(), X: x, Y: y}, nil
}

// EncodeCompressed returns the 33 byte form of pub.
func EncodeCompressed(pub *ecdsa.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	return elliptic.MarshalCompressed(Curve(), pub.X, pub.Y)
}

// PublicKeyHex returns the hexadecimal reprentation of the compressed form of
// the public key
func PublicKeyHex(pub *ecdsa.PublicKey) string {
	return common.EncodeToString(EncodeCompressed(pub))
}

// SortPublicKeys orders keys by X then Y, the order in which they appear in a
// multi-signature script.
func SortPublicKeys(pubs []*ecdsa.PublicKey) {
	sort.Slice(pubs, func(i, j int) bool {
		if c := pubs[i].X.Cmp(pubs[j].X); c != 0 {
			return c < 0
		}
		return pubs[i].Y.Cmp(pubs[j].Y) < 0
	})
}
