package core

import (
	"fmt"

	"github.com/mosaicnetworks/neonode/src/codec"
)

// AttrUsage identifies the meaning and the encoding of an attribute.
type AttrUsage uint8

// Attribute usages.
const (
	ContractHash   AttrUsage = 0x00
	ECDH02         AttrUsage = 0x02
	ECDH03         AttrUsage = 0x03
	Script         AttrUsage = 0x20
	Vote           AttrUsage = 0x30
	DescriptionURL AttrUsage = 0x81
	Description    AttrUsage = 0x90
	Hash1          AttrUsage = 0xa1
	Hash15         AttrUsage = 0xaf
	Remark         AttrUsage = 0xf0
	Remark15       AttrUsage = 0xff
)

const maxAttributeData = 65535

// Attribute is a typed piece of data attached to a transaction.
type Attribute struct {
	Usage AttrUsage
	Data  []byte
}

// fixedSize returns the data length of fixed size usages, or 0.
func (u AttrUsage) fixedSize() int {
	switch {
	case u == ContractHash, u == Vote, u == ECDH02, u == ECDH03:
		return 32
	case u >= Hash1 && u <= Hash15:
		return 32
	case u == Script:
		return 20
	}
	return 0
}

// EncodeBinary ...
func (a *Attribute) EncodeBinary(w *codec.BinWriter) {
	w.WriteU8(uint8(a.Usage))
	switch {
	case a.Usage.fixedSize() > 0:
		if len(a.Data) != a.Usage.fixedSize() {
			w.Err = fmt.Errorf("attribute %#x needs %d bytes, has %d", a.Usage, a.Usage.fixedSize(), len(a.Data))
			return
		}
		w.WriteBytes(a.Data)
	case a.Usage == DescriptionURL:
		if len(a.Data) > 0xff {
			w.Err = fmt.Errorf("description url too long: %d", len(a.Data))
			return
		}
		w.WriteU8(uint8(len(a.Data)))
		w.WriteBytes(a.Data)
	case a.Usage == Description || a.Usage >= Remark:
		w.WriteVarBytes(a.Data)
	default:
		w.Err = fmt.Errorf("unknown attribute usage %#x", a.Usage)
	}
}

// DecodeBinary ...
func (a *Attribute) DecodeBinary(r *codec.BinReader) {
	a.Usage = AttrUsage(r.ReadU8())
	if r.Err != nil {
		return
	}
	switch {
	case a.Usage.fixedSize() > 0:
		a.Data = r.ReadBytes(a.Usage.fixedSize())
	case a.Usage == DescriptionURL:
		a.Data = r.ReadBytes(int(r.ReadU8()))
	case a.Usage == Description || a.Usage >= Remark:
		a.Data = r.ReadVarBytes(maxAttributeData)
	default:
		r.Err = fmt.Errorf("unknown attribute usage %#x", a.Usage)
	}
}
