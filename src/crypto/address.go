package crypto

import (
	"bytes"
	"errors"

	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mr-tron/base58"
)

// AddressVersion is the leading byte of every account address.
const AddressVersion byte = 0x17

var (
	// ErrInvalidAddress ...
	ErrInvalidAddress = errors.New("invalid address")
	// ErrAddressChecksum ...
	ErrAddressChecksum = errors.New("address checksum mismatch")
)

// AddressFromScriptHash returns the base58check form of a script hash.
func AddressFromScriptHash(h common.Uint160) string {
	buf := make([]byte, 0, 1+common.Uint160Size+4)
	buf = append(buf, AddressVersion)
	buf = append(buf, h[:]...)
	sum := Hash256(buf)
	buf = append(buf, sum[:4]...)
	return base58.Encode(buf)
}

// ScriptHashFromAddress parses an address produced by AddressFromScriptHash.
func ScriptHashFromAddress(addr string) (common.Uint160, error) {
	raw, err := base58.Decode(addr)
	if err != nil {
		return common.Uint160{}, ErrInvalidAddress
	}
	if len(raw) != 1+common.Uint160Size+4 || raw[0] != AddressVersion {
		return common.Uint160{}, ErrInvalidAddress
	}
	body, sum := raw[:len(raw)-4], raw[len(raw)-4:]
	want := Hash256(body)
	if !bytes.Equal(want[:4], sum) {
		return common.Uint160{}, ErrAddressChecksum
	}
	return common.Uint160DecodeBytes(body[1:])
}
