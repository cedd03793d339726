package keys

import (
	"crypto/elliptic"
)

/*
Account and validator keys are ECDSA keys on the secp256r1 (NIST P-256) curve.
Points travel in their compressed SEC form: a 0x02 or 0x03 prefix followed by
the 32 byte X coordinate.
*/

// Curve returns the elliptic.Curve used by every key.
func Curve() elliptic.Curve {
	return elliptic.P256()
}
