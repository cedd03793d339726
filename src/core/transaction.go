package core

import (
	"fmt"

	"github.com/mosaicnetworks/neonode/src/codec"
	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/crypto"
)

// TXType is the kind byte of a transaction.
type TXType uint8

// Transaction kinds.
const (
	MinerType      TXType = 0x00
	IssueType      TXType = 0x01
	ClaimType      TXType = 0x02
	EnrollmentType TXType = 0x20
	RegisterType   TXType = 0x40
	ContractType   TXType = 0x80
	StateType      TXType = 0x90
	PublishType    TXType = 0xd0
	InvocationType TXType = 0xd1
)

func (t TXType) String() string {
	switch t {
	case MinerType:
		return "MinerTransaction"
	case IssueType:
		return "IssueTransaction"
	case ClaimType:
		return "ClaimTransaction"
	case EnrollmentType:
		return "EnrollmentTransaction"
	case RegisterType:
		return "RegisterTransaction"
	case ContractType:
		return "ContractTransaction"
	case StateType:
		return "StateTransaction"
	case PublishType:
		return "PublishTransaction"
	case InvocationType:
		return "InvocationTransaction"
	}
	return fmt.Sprintf("UnknownTransaction(%#x)", uint8(t))
}

const (
	maxTransactionAttributes = 16
	maxTransactionIO         = 0xffff
	maxTransactionWitnesses  = 0xffff
)

// TxData holds the kind specific fields of a transaction. The transaction
// version is passed because some kinds grow fields in later versions.
type TxData interface {
	encode(w *codec.BinWriter, version uint8)
	decode(r *codec.BinReader, version uint8)
}

// Transaction is the unit of state change.
type Transaction struct {
	Type       TXType
	Version    uint8
	Data       TxData
	Attributes []Attribute
	Inputs     []CoinReference
	Outputs    []Output
	Scripts    []Witness

	hash   common.Uint256
	hashed bool
}

// NewTransaction returns an empty transaction of the kind carried by data.
func NewTransaction(data TxData) *Transaction {
	return &Transaction{Type: typeOf(data), Data: data}
}

// Hash returns the double SHA256 of the unsigned encoding.
func (tx *Transaction) Hash() common.Uint256 {
	if !tx.hashed {
		tx.hash = crypto.Hash256(tx.HashData())
		tx.hashed = true
	}
	return tx.hash
}

// HashData returns the unsigned encoding, the message signed by witnesses.
func (tx *Transaction) HashData() []byte {
	w := codec.NewBinWriter()
	tx.encodeUnsigned(w)
	return w.Bytes()
}

func (tx *Transaction) encodeUnsigned(w *codec.BinWriter) {
	w.WriteU8(uint8(tx.Type))
	w.WriteU8(tx.Version)
	if tx.Data == nil {
		w.Err = fmt.Errorf("%s has no data", tx.Type)
		return
	}
	tx.Data.encode(w, tx.Version)
	codec.WriteArray(w, tx.Attributes)
	codec.WriteArray(w, tx.Inputs)
	codec.WriteArray(w, tx.Outputs)
}

// EncodeBinary ...
func (tx *Transaction) EncodeBinary(w *codec.BinWriter) {
	tx.encodeUnsigned(w)
	codec.WriteArray(w, tx.Scripts)
}

// DecodeBinary ...
func (tx *Transaction) DecodeBinary(r *codec.BinReader) {
	tx.Type = TXType(r.ReadU8())
	tx.Version = r.ReadU8()
	if r.Err != nil {
		return
	}
	tx.Data = dataFor(tx.Type)
	if tx.Data == nil {
		r.Err = fmt.Errorf("unknown transaction type %#x", uint8(tx.Type))
		return
	}
	tx.Data.decode(r, tx.Version)
	tx.Attributes = codec.ReadArray[Attribute](r, maxTransactionAttributes)
	tx.Inputs = codec.ReadArray[CoinReference](r, maxTransactionIO)
	tx.Outputs = codec.ReadArray[Output](r, maxTransactionIO)
	tx.Scripts = codec.ReadArray[Witness](r, maxTransactionWitnesses)
	if r.Err == nil {
		tx.hashed = false
		tx.Hash()
	}
}

// Bytes returns the full encoding.
func (tx *Transaction) Bytes() ([]byte, error) {
	return codec.ToBytes(tx)
}

// NewTransactionFromBytes decodes a full transaction.
func NewTransactionFromBytes(b []byte) (*Transaction, error) {
	tx := new(Transaction)
	if err := codec.FromBytesStrict(b, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// References groups the inputs of tx by previous transaction hash.
func (tx *Transaction) References() map[common.Uint256][]CoinReference {
	refs := make(map[common.Uint256][]CoinReference)
	for _, in := range tx.Inputs {
		refs[in.PrevHash] = append(refs[in.PrevHash], in)
	}
	return refs
}

// SystemFee returns the fee burned by this transaction, the invocation gas
// for invocation transactions.
func (tx *Transaction) SystemFee(fees map[TXType]common.Fixed8) common.Fixed8 {
	if inv, ok := tx.Data.(*InvocationTx); ok {
		return inv.Gas
	}
	return fees[tx.Type]
}

func typeOf(data TxData) TXType {
	switch data.(type) {
	case *MinerTx:
		return MinerType
	case *IssueTx:
		return IssueType
	case *ClaimTx:
		return ClaimType
	case *EnrollmentTx:
		return EnrollmentType
	case *RegisterTx:
		return RegisterType
	case *ContractTx:
		return ContractType
	case *StateTx:
		return StateType
	case *PublishTx:
		return PublishType
	case *InvocationTx:
		return InvocationType
	}
	panic(fmt.Sprintf("unknown transaction data %T", data))
}

func dataFor(t TXType) TxData {
	switch t {
	case MinerType:
		return new(MinerTx)
	case IssueType:
		return new(IssueTx)
	case ClaimType:
		return new(ClaimTx)
	case EnrollmentType:
		return new(EnrollmentTx)
	case RegisterType:
		return new(RegisterTx)
	case ContractType:
		return new(ContractTx)
	case StateType:
		return new(StateTx)
	case PublishType:
		return new(PublishTx)
	case InvocationType:
		return new(InvocationTx)
	}
	return nil
}
