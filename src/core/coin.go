package core

import (
	"fmt"

	"github.com/mosaicnetworks/neonode/src/codec"
	"github.com/mosaicnetworks/neonode/src/common"
)

// CoinReference points to an output of a previous transaction.
type CoinReference struct {
	PrevHash  common.Uint256
	PrevIndex uint16
}

// EncodeBinary ...
func (c *CoinReference) EncodeBinary(w *codec.BinWriter) {
	w.WriteUint256(c.PrevHash)
	w.WriteU16LE(c.PrevIndex)
}

// DecodeBinary ...
func (c *CoinReference) DecodeBinary(r *codec.BinReader) {
	c.PrevHash = r.ReadUint256()
	c.PrevIndex = r.ReadU16LE()
}

// Output is an amount of an asset paid to a script hash.
type Output struct {
	AssetID    common.Uint256
	Value      common.Fixed8
	ScriptHash common.Uint160
}

// EncodeBinary ...
func (o *Output) EncodeBinary(w *codec.BinWriter) {
	w.WriteUint256(o.AssetID)
	w.WriteI64LE(int64(o.Value))
	w.WriteUint160(o.ScriptHash)
}

// DecodeBinary ...
func (o *Output) DecodeBinary(r *codec.BinReader) {
	o.AssetID = r.ReadUint256()
	o.Value = common.Fixed8(r.ReadI64LE())
	o.ScriptHash = r.ReadUint160()
	if r.Err == nil && o.Value <= 0 {
		r.Err = fmt.Errorf("output value must be positive, got %s", o.Value)
	}
}
