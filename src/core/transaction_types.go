package core

import (
	"errors"
	"fmt"

	"github.com/mosaicnetworks/neonode/src/codec"
	"github.com/mosaicnetworks/neonode/src/common"
)

// ErrEmptyClaims is returned when a claim transaction claims nothing.
var ErrEmptyClaims = errors.New("claim transaction without claims")

// MinerTx pays the block's network fees to the primary validator. The nonce
// keeps miner transactions of different blocks distinct.
type MinerTx struct {
	Nonce uint32
}

func (t *MinerTx) encode(w *codec.BinWriter, _ uint8) { w.WriteU32LE(t.Nonce) }
func (t *MinerTx) decode(r *codec.BinReader, _ uint8) { t.Nonce = r.ReadU32LE() }

// IssueTx distributes newly issued units of an asset through its outputs.
type IssueTx struct{}

func (t *IssueTx) encode(*codec.BinWriter, uint8) {}
func (t *IssueTx) decode(*codec.BinReader, uint8) {}

// ContractTx is a plain transfer.
type ContractTx struct{}

func (t *ContractTx) encode(*codec.BinWriter, uint8) {}
func (t *ContractTx) decode(*codec.BinReader, uint8) {}

// ClaimTx claims the utility token generated by spent governing coins.
type ClaimTx struct {
	Claims []CoinReference
}

func (t *ClaimTx) encode(w *codec.BinWriter, _ uint8) {
	codec.WriteArray(w, t.Claims)
}

func (t *ClaimTx) decode(r *codec.BinReader, _ uint8) {
	t.Claims = codec.ReadArray[CoinReference](r, maxTransactionIO)
	if r.Err == nil && len(t.Claims) == 0 {
		r.Err = ErrEmptyClaims
	}
}

// EnrollmentTx registers a validator candidate.
type EnrollmentTx struct {
	PublicKey []byte
}

func (t *EnrollmentTx) encode(w *codec.BinWriter, _ uint8) { w.WriteECPoint(t.PublicKey) }
func (t *EnrollmentTx) decode(r *codec.BinReader, _ uint8) { t.PublicKey = r.ReadECPoint() }

// AssetType ...
type AssetType uint8

// Asset types.
const (
	CreditFlag     AssetType = 0x40
	DutyFlag       AssetType = 0x80
	GoverningToken AssetType = 0x00
	UtilityToken   AssetType = 0x01
	Currency       AssetType = 0x08
	Share          AssetType = DutyFlag | 0x10
	Invoice        AssetType = DutyFlag | 0x18
	Token          AssetType = CreditFlag | 0x20
)

const maxAssetName = 1024

// RegisterTx creates a new asset.
type RegisterTx struct {
	AssetType AssetType
	Name      string
	Amount    common.Fixed8
	Precision uint8
	Owner     []byte
	Admin     common.Uint160
}

func (t *RegisterTx) encode(w *codec.BinWriter, _ uint8) {
	w.WriteU8(uint8(t.AssetType))
	w.WriteString(t.Name)
	w.WriteI64LE(int64(t.Amount))
	w.WriteU8(t.Precision)
	w.WriteECPoint(t.Owner)
	w.WriteUint160(t.Admin)
}

func (t *RegisterTx) decode(r *codec.BinReader, _ uint8) {
	t.AssetType = AssetType(r.ReadU8())
	t.Name = r.ReadString(maxAssetName)
	t.Amount = common.Fixed8(r.ReadI64LE())
	t.Precision = r.ReadU8()
	t.Owner = r.ReadECPoint()
	t.Admin = r.ReadUint160()
}

// DescriptorType selects the record a StateDescriptor changes.
type DescriptorType uint8

// Descriptor targets.
const (
	AccountStateType   DescriptorType = 0x40
	ValidatorStateType DescriptorType = 0x48
)

// StateDescriptor is one change carried by a StateTx: votes of an account or
// registration of a validator.
type StateDescriptor struct {
	Type  DescriptorType
	Key   []byte
	Field string
	Value []byte
}

// EncodeBinary ...
func (d *StateDescriptor) EncodeBinary(w *codec.BinWriter) {
	w.WriteU8(uint8(d.Type))
	w.WriteVarBytes(d.Key)
	w.WriteString(d.Field)
	w.WriteVarBytes(d.Value)
}

// DecodeBinary ...
func (d *StateDescriptor) DecodeBinary(r *codec.BinReader) {
	d.Type = DescriptorType(r.ReadU8())
	d.Key = r.ReadVarBytes(100)
	d.Field = r.ReadString(32)
	d.Value = r.ReadVarBytes(65535)
	if r.Err == nil && d.Type != AccountStateType && d.Type != ValidatorStateType {
		r.Err = fmt.Errorf("invalid state descriptor type %#x", uint8(d.Type))
	}
}

// StateTx carries account vote and validator registration changes.
type StateTx struct {
	Descriptors []StateDescriptor
}

func (t *StateTx) encode(w *codec.BinWriter, _ uint8) {
	codec.WriteArray(w, t.Descriptors)
}

func (t *StateTx) decode(r *codec.BinReader, _ uint8) {
	t.Descriptors = codec.ReadArray[StateDescriptor](r, 16)
}

const maxPublishField = 252

// PublishTx deploys a contract.
type PublishTx struct {
	Script      []byte
	ParamList   []byte
	ReturnType  uint8
	NeedStorage bool
	Name        string
	CodeVersion string
	Author      string
	Email       string
	Description string
}

func (t *PublishTx) encode(w *codec.BinWriter, version uint8) {
	w.WriteVarBytes(t.Script)
	w.WriteVarBytes(t.ParamList)
	w.WriteU8(t.ReturnType)
	if version >= 1 {
		w.WriteBool(t.NeedStorage)
	}
	w.WriteString(t.Name)
	w.WriteString(t.CodeVersion)
	w.WriteString(t.Author)
	w.WriteString(t.Email)
	w.WriteString(t.Description)
}

func (t *PublishTx) decode(r *codec.BinReader, version uint8) {
	t.Script = r.ReadVarBytes(codec.MaxVarBytes)
	t.ParamList = r.ReadVarBytes(codec.MaxArraySize)
	t.ReturnType = r.ReadU8()
	if version >= 1 {
		t.NeedStorage = r.ReadBool()
	}
	t.Name = r.ReadString(maxPublishField)
	t.CodeVersion = r.ReadString(maxPublishField)
	t.Author = r.ReadString(maxPublishField)
	t.Email = r.ReadString(maxPublishField)
	t.Description = r.ReadString(65536)
}

// InvocationTx runs a script in the contract engine. Version 1 adds the gas
// the sender pays for execution.
type InvocationTx struct {
	Script []byte
	Gas    common.Fixed8
}

func (t *InvocationTx) encode(w *codec.BinWriter, version uint8) {
	w.WriteVarBytes(t.Script)
	if version >= 1 {
		w.WriteI64LE(int64(t.Gas))
	}
}

func (t *InvocationTx) decode(r *codec.BinReader, version uint8) {
	t.Script = r.ReadVarBytes(65536)
	if len(t.Script) == 0 && r.Err == nil {
		r.Err = errors.New("invocation transaction without script")
		return
	}
	if version >= 1 {
		t.Gas = common.Fixed8(r.ReadI64LE())
		if r.Err == nil && t.Gas < 0 {
			r.Err = fmt.Errorf("negative invocation gas %s", t.Gas)
		}
	}
}
