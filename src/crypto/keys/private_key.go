package keys

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

// GenerateECDSAKey creates a new P-256 private key.
func GenerateECDSAKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(Curve(), rand.Reader)
}

// DumpPrivateKey returns the 32-byte big-endian scalar of priv.
func DumpPrivateKey(priv *ecdsa.PrivateKey) []byte {
	if priv == nil {
		return nil
	}
	return priv.D.FillBytes(make([]byte, (priv.Params().BitSize+7)/8))
}

// ParsePrivateKey rebuilds a key from the scalar returned by DumpPrivateKey.
func ParsePrivateKey(d []byte) (*ecdsa.PrivateKey, error) {
	curve := Curve()
	params := curve.Params()
	if len(d)*8 != params.BitSize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", params.BitSize/8, len(d))
	}

	k := new(big.Int).SetBytes(d)
	if k.Sign() == 0 || k.Cmp(params.N) >= 0 {
		return nil, errors.New("private key out of range")
	}

	priv := &ecdsa.PrivateKey{D: k}
	priv.PublicKey.Curve = curve
	priv.PublicKey.X, priv.PublicKey.Y = curve.ScalarBaseMult(d)
	return priv, nil
}

// PrivateKeyHex ...
func PrivateKeyHex(key *ecdsa.PrivateKey) string {
	return hex.EncodeToString(DumpPrivateKey(key))
}
