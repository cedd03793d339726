package state

import (
	"github.com/mosaicnetworks/neonode/src/codec"
	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/crypto"
)

// ContractProperties is a bit set of contract capabilities.
type ContractProperties uint8

// Contract capabilities.
const (
	HasStorage       ContractProperties = 1 << 0
	HasDynamicInvoke ContractProperties = 1 << 1
	Payable          ContractProperties = 1 << 2
)

// Contract is a deployed script and its metadata.
type Contract struct {
	Script      []byte
	ParamList   []byte
	ReturnType  uint8
	Properties  ContractProperties
	Name        string
	CodeVersion string
	Author      string
	Email       string
	Description string
}

// ScriptHash is the key of the contract.
func (c *Contract) ScriptHash() common.Uint160 {
	return crypto.Hash160(c.Script)
}

// HasStorage ...
func (c *Contract) HasStorage() bool {
	return c.Properties&HasStorage != 0
}

// EncodeBinary ...
func (c *Contract) EncodeBinary(w *codec.BinWriter) {
	writeVersion(w)
	w.WriteVarBytes(c.Script)
	w.WriteVarBytes(c.ParamList)
	w.WriteU8(c.ReturnType)
	w.WriteU8(uint8(c.Properties))
	w.WriteString(c.Name)
	w.WriteString(c.CodeVersion)
	w.WriteString(c.Author)
	w.WriteString(c.Email)
	w.WriteString(c.Description)
}

// DecodeBinary ...
func (c *Contract) DecodeBinary(r *codec.BinReader) {
	readVersion(r)
	c.Script = r.ReadVarBytes(codec.MaxVarBytes)
	c.ParamList = r.ReadVarBytes(codec.MaxArraySize)
	c.ReturnType = r.ReadU8()
	c.Properties = ContractProperties(r.ReadU8())
	c.Name = r.ReadString(codec.MaxStringLen)
	c.CodeVersion = r.ReadString(codec.MaxStringLen)
	c.Author = r.ReadString(codec.MaxStringLen)
	c.Email = r.ReadString(codec.MaxStringLen)
	c.Description = r.ReadString(codec.MaxStringLen)
}

// StorageItem is one value of a contract's key-value storage.
type StorageItem struct {
	Value []byte
}

// EncodeBinary ...
func (s *StorageItem) EncodeBinary(w *codec.BinWriter) {
	writeVersion(w)
	w.WriteVarBytes(s.Value)
}

// DecodeBinary ...
func (s *StorageItem) DecodeBinary(r *codec.BinReader) {
	readVersion(r)
	s.Value = r.ReadVarBytes(codec.MaxVarBytes)
}

// StorageKey returns the key of a storage item: the contract script hash
// followed by the item key.
func StorageKey(contract common.Uint160, key []byte) []byte {
	k := make([]byte, 0, common.Uint160Size+len(key))
	k = append(k, contract[:]...)
	return append(k, key...)
}
