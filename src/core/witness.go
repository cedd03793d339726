package core

import (
	"github.com/mosaicnetworks/neonode/src/codec"
	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/crypto"
)

const maxScriptLength = 65536

// Witness is the invocation and verification script pair authorizing a block
// or a transaction.
type Witness struct {
	InvocationScript   []byte
	VerificationScript []byte
}

// EncodeBinary ...
func (w *Witness) EncodeBinary(bw *codec.BinWriter) {
	bw.WriteVarBytes(w.InvocationScript)
	bw.WriteVarBytes(w.VerificationScript)
}

// DecodeBinary ...
func (w *Witness) DecodeBinary(br *codec.BinReader) {
	w.InvocationScript = br.ReadVarBytes(maxScriptLength)
	w.VerificationScript = br.ReadVarBytes(maxScriptLength)
}

// ScriptHash returns the hash of the verification script.
func (w *Witness) ScriptHash() common.Uint160 {
	return crypto.Hash160(w.VerificationScript)
}
