package state

import (
	"github.com/mosaicnetworks/neonode/src/codec"
	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/core"
)

// Asset is a registered asset and its remaining issuable supply.
type Asset struct {
	ID         common.Uint256
	AssetType  core.AssetType
	Name       string
	Amount     common.Fixed8
	Available  common.Fixed8
	Precision  uint8
	FeeMode    uint8
	Fee        common.Fixed8
	FeeAddress common.Uint160
	Owner      []byte
	Admin      common.Uint160
	Issuer     common.Uint160
	Expiration uint32
	IsFrozen   bool
}

// EncodeBinary ...
func (a *Asset) EncodeBinary(w *codec.BinWriter) {
	writeVersion(w)
	w.WriteUint256(a.ID)
	w.WriteU8(uint8(a.AssetType))
	w.WriteString(a.Name)
	w.WriteI64LE(int64(a.Amount))
	w.WriteI64LE(int64(a.Available))
	w.WriteU8(a.Precision)
	w.WriteU8(a.FeeMode)
	w.WriteI64LE(int64(a.Fee))
	w.WriteUint160(a.FeeAddress)
	w.WriteECPoint(a.Owner)
	w.WriteUint160(a.Admin)
	w.WriteUint160(a.Issuer)
	w.WriteU32LE(a.Expiration)
	w.WriteBool(a.IsFrozen)
}

// DecodeBinary ...
func (a *Asset) DecodeBinary(r *codec.BinReader) {
	readVersion(r)
	a.ID = r.ReadUint256()
	a.AssetType = core.AssetType(r.ReadU8())
	a.Name = r.ReadString(1024)
	a.Amount = common.Fixed8(r.ReadI64LE())
	a.Available = common.Fixed8(r.ReadI64LE())
	a.Precision = r.ReadU8()
	a.FeeMode = r.ReadU8()
	a.Fee = common.Fixed8(r.ReadI64LE())
	a.FeeAddress = r.ReadUint160()
	a.Owner = r.ReadECPoint()
	a.Admin = r.ReadUint160()
	a.Issuer = r.ReadUint160()
	a.Expiration = r.ReadU32LE()
	a.IsFrozen = r.ReadBool()
}
