package state

import (
	"github.com/mosaicnetworks/neonode/src/codec"
	"github.com/mosaicnetworks/neonode/src/common"
)

// Validator is a consensus candidate.
type Validator struct {
	PublicKey  []byte
	Registered bool
	Votes      common.Fixed8
}

// EncodeBinary ...
func (v *Validator) EncodeBinary(w *codec.BinWriter) {
	writeVersion(w)
	w.WriteECPoint(v.PublicKey)
	w.WriteBool(v.Registered)
	w.WriteI64LE(int64(v.Votes))
}

// DecodeBinary ...
func (v *Validator) DecodeBinary(r *codec.BinReader) {
	readVersion(r)
	v.PublicKey = r.ReadECPoint()
	v.Registered = r.ReadBool()
	v.Votes = common.Fixed8(r.ReadI64LE())
}
