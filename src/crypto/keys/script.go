package keys

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/crypto"
)

// Opcodes used by standard verification scripts.
const (
	opPushBytes33    = 0x21
	opPushBytes64    = 0x40
	opPush1          = 0x51
	opPush16         = 0x60
	opCheckSig       = 0xac
	opCheckMultiSig  = 0xae
	signatureSize    = 64
	maxMultiSigCount = 1024
)

// ErrNonStandardScript is returned for verification scripts that are neither
// single nor multi-signature scripts.
var ErrNonStandardScript = errors.New("non-standard verification script")

// SignatureScript returns PUSHBYTES33 <key> CHECKSIG.
func SignatureScript(pub *ecdsa.PublicKey) []byte {
	script := make([]byte, 0, CompressedSize+2)
	script = append(script, opPushBytes33)
	script = append(script, EncodeCompressed(pub)...)
	return append(script, opCheckSig)
}

// MultiSigScript returns the m-out-of-n script over pubs. Keys are sorted in
// place.
func MultiSigScript(m int, pubs []*ecdsa.PublicKey) ([]byte, error) {
	n := len(pubs)
	if m < 1 || m > n || n > maxMultiSigCount {
		return nil, fmt.Errorf("invalid multi-signature parameters m=%d n=%d", m, n)
	}
	SortPublicKeys(pubs)

	script := pushInt(nil, m)
	for _, p := range pubs {
		script = append(script, opPushBytes33)
		script = append(script, EncodeCompressed(p)...)
	}
	script = pushInt(script, n)
	return append(script, opCheckMultiSig), nil
}

// ScriptHash returns the Hash160 of a verification script.
func ScriptHash(script []byte) common.Uint160 {
	return crypto.Hash160(script)
}

func pushInt(script []byte, v int) []byte {
	if v >= 1 && v <= 16 {
		return append(script, byte(opPush1-1+v))
	}
	// small positive integers as minimal little-endian byte strings
	var b []byte
	for x := v; x > 0; x >>= 8 {
		b = append(b, byte(x))
	}
	if b[len(b)-1]&0x80 != 0 {
		b = append(b, 0)
	}
	script = append(script, byte(len(b)))
	return append(script, b...)
}

func readInt(script []byte) (int, []byte, error) {
	if len(script) == 0 {
		return 0, nil, ErrNonStandardScript
	}
	op := script[0]
	if op >= opPush1 && op <= opPush16 {
		return int(op - opPush1 + 1), script[1:], nil
	}
	if op == 0 || op > 2 || len(script) < 1+int(op) {
		return 0, nil, ErrNonStandardScript
	}
	v := 0
	for i := int(op); i >= 1; i-- {
		v = v<<8 | int(script[i])
	}
	return v, script[1+int(op):], nil
}

// parseVerification returns the required signature count and the keys of a
// standard verification script.
func parseVerification(script []byte) (int, [][]byte, error) {
	if len(script) == CompressedSize+2 && script[0] == opPushBytes33 && script[len(script)-1] == opCheckSig {
		return 1, [][]byte{script[1 : 1+CompressedSize]}, nil
	}
	if len(script) == 0 || script[len(script)-1] != opCheckMultiSig {
		return 0, nil, ErrNonStandardScript
	}
	m, rest, err := readInt(script)
	if err != nil {
		return 0, nil, err
	}
	var pubs [][]byte
	for len(rest) > 0 && rest[0] == opPushBytes33 {
		if len(rest) < 1+CompressedSize {
			return 0, nil, ErrNonStandardScript
		}
		pubs = append(pubs, rest[1:1+CompressedSize])
		rest = rest[1+CompressedSize:]
	}
	n, rest, err := readInt(rest)
	if err != nil {
		return 0, nil, err
	}
	if len(rest) != 1 || n != len(pubs) || m < 1 || m > n {
		return 0, nil, ErrNonStandardScript
	}
	return m, pubs, nil
}
