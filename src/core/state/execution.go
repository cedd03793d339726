package state

import (
	"github.com/mosaicnetworks/neonode/src/codec"
	"github.com/mosaicnetworks/neonode/src/common"
)

// Trigger is the reason a script is executed.
type Trigger uint8

// Triggers.
const (
	TriggerVerification Trigger = 0x00
	TriggerApplication  Trigger = 0x10
)

// VMState is the outcome of an execution.
type VMState uint8

// Outcomes.
const (
	VMHalt  VMState = 1 << 0
	VMFault VMState = 1 << 1
)

func (s VMState) String() string {
	switch s {
	case VMHalt:
		return "HALT"
	case VMFault:
		return "FAULT"
	}
	return "NONE"
}

// NotifyEvent is a notification emitted by a contract.
type NotifyEvent struct {
	ScriptHash common.Uint160
	Payload    []byte
}

// EncodeBinary ...
func (e *NotifyEvent) EncodeBinary(w *codec.BinWriter) {
	w.WriteUint160(e.ScriptHash)
	w.WriteVarBytes(e.Payload)
}

// DecodeBinary ...
func (e *NotifyEvent) DecodeBinary(r *codec.BinReader) {
	e.ScriptHash = r.ReadUint160()
	e.Payload = r.ReadVarBytes(codec.MaxVarBytes)
}

// Execution is the recorded result of running an invocation transaction.
type Execution struct {
	TxHash      common.Uint256
	Trigger     Trigger
	VMState     VMState
	GasConsumed common.Fixed8
	Error       string
	Events      []NotifyEvent
}

// Success ...
func (e *Execution) Success() bool {
	return e.VMState == VMHalt
}

// EncodeBinary ...
func (e *Execution) EncodeBinary(w *codec.BinWriter) {
	writeVersion(w)
	w.WriteUint256(e.TxHash)
	w.WriteU8(uint8(e.Trigger))
	w.WriteU8(uint8(e.VMState))
	w.WriteI64LE(int64(e.GasConsumed))
	w.WriteString(e.Error)
	codec.WriteArray(w, e.Events)
}

// DecodeBinary ...
func (e *Execution) DecodeBinary(r *codec.BinReader) {
	readVersion(r)
	e.TxHash = r.ReadUint256()
	e.Trigger = Trigger(r.ReadU8())
	e.VMState = VMState(r.ReadU8())
	e.GasConsumed = common.Fixed8(r.ReadI64LE())
	e.Error = r.ReadString(codec.MaxStringLen)
	e.Events = codec.ReadArray[NotifyEvent](r, codec.MaxArraySize)
}
