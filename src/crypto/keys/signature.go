package keys

import (
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/mosaicnetworks/neonode/src/crypto"
)

// ErrWitnessVerification is returned when a witness does not authorize the
// signed message.
var ErrWitnessVerification = errors.New("witness verification failed")

// Sign signs SHA256(message) and returns the 64 byte r||s form.
func Sign(priv *ecdsa.PrivateKey, message []byte) ([]byte, error) {
	r, s, err := ecdsa.Sign(rand.Reader, priv, crypto.SHA256(message))
	if err != nil {
		return nil, err
	}
	sig := make([]byte, signatureSize)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:])
	return sig, nil
}

// Verify checks a 64 byte r||s signature of SHA256(message).
func Verify(pub *ecdsa.PublicKey, message, sig []byte) bool {
	if pub == nil || len(sig) != signatureSize {
		return false
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	return ecdsa.Verify(pub, crypto.SHA256(message), r, s)
}

// SignatureInvocation returns the invocation script pushing sigs in order.
func SignatureInvocation(sigs ...[]byte) []byte {
	var script []byte
	for _, sig := range sigs {
		script = append(script, opPushBytes64)
		script = append(script, sig...)
	}
	return script
}

// VerifyWitness checks an invocation script against a standard verification
// script for message. Signatures must appear in key order, as with
// CHECKMULTISIG.
func VerifyWitness(message, invocation, verification []byte) error {
	m, pubs, err := parseVerification(verification)
	if err != nil {
		return err
	}

	var sigs [][]byte
	for rest := invocation; len(rest) > 0; rest = rest[1+signatureSize:] {
		if rest[0] != opPushBytes64 || len(rest) < 1+signatureSize {
			return ErrNonStandardScript
		}
		sigs = append(sigs, rest[1:1+signatureSize])
	}
	if len(sigs) < m {
		return ErrWitnessVerification
	}

	i, j := 0, 0
	for i < m && j < len(pubs) {
		pub, err := DecodePublicKey(pubs[j])
		if err != nil {
			return err
		}
		if Verify(pub, message, sigs[i]) {
			i++
		}
		j++
		if m-i > len(pubs)-j {
			break
		}
	}
	if i < m {
		return ErrWitnessVerification
	}
	return nil
}
