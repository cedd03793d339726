package codec

import (
	"bytes"
	"encoding/binary"

	"github.com/btcsuite/btcd/wire"
	"github.com/mosaicnetworks/neonode/src/common"
)

// BinWriter accumulates an encoding in a growable buffer.
type BinWriter struct {
	buf     bytes.Buffer
	scratch [8]byte
	Err     error
}

// NewBinWriter ...
func NewBinWriter() *BinWriter {
	return &BinWriter{}
}

// Bytes returns the encoded bytes. The slice aliases the internal buffer.
func (w *BinWriter) Bytes() []byte {
	return w.buf.Bytes()
}

// Len ...
func (w *BinWriter) Len() int {
	return w.buf.Len()
}

// WriteU8 ...
func (w *BinWriter) WriteU8(v uint8) {
	if w.Err != nil {
		return
	}
	w.Err = w.buf.WriteByte(v)
}

// WriteBool writes 1 for true and 0 for false.
func (w *BinWriter) WriteBool(v bool) {
	if v {
		w.WriteU8(1)
		return
	}
	w.WriteU8(0)
}

// WriteU16LE ...
func (w *BinWriter) WriteU16LE(v uint16) {
	binary.LittleEndian.PutUint16(w.scratch[:2], v)
	w.WriteBytes(w.scratch[:2])
}

// WriteU16BE is only used for port numbers.
func (w *BinWriter) WriteU16BE(v uint16) {
	binary.BigEndian.PutUint16(w.scratch[:2], v)
	w.WriteBytes(w.scratch[:2])
}

// WriteU32LE ...
func (w *BinWriter) WriteU32LE(v uint32) {
	binary.LittleEndian.PutUint32(w.scratch[:4], v)
	w.WriteBytes(w.scratch[:4])
}

// WriteU64LE ...
func (w *BinWriter) WriteU64LE(v uint64) {
	binary.LittleEndian.PutUint64(w.scratch[:8], v)
	w.WriteBytes(w.scratch[:8])
}

// WriteI64LE ...
func (w *BinWriter) WriteI64LE(v int64) {
	w.WriteU64LE(uint64(v))
}

// WriteBytes writes b as is, without a length prefix.
func (w *BinWriter) WriteBytes(b []byte) {
	if w.Err != nil {
		return
	}
	_, w.Err = w.buf.Write(b)
}

// WriteVarUint writes v in the variable length integer form.
func (w *BinWriter) WriteVarUint(v uint64) {
	if w.Err != nil {
		return
	}
	w.Err = wire.WriteVarInt(&w.buf, 0, v)
}

// WriteVarBytes writes a length prefixed byte string.
func (w *BinWriter) WriteVarBytes(b []byte) {
	w.WriteVarUint(uint64(len(b)))
	w.WriteBytes(b)
}

// WriteString writes a length prefixed UTF-8 string.
func (w *BinWriter) WriteString(s string) {
	w.WriteVarBytes([]byte(s))
}

// WriteUint160 ...
func (w *BinWriter) WriteUint160(u common.Uint160) {
	w.WriteBytes(u[:])
}

// WriteUint256 ...
func (w *BinWriter) WriteUint256(u common.Uint256) {
	w.WriteBytes(u[:])
}

// WriteUint256Array writes a counted list of hashes.
func (w *BinWriter) WriteUint256Array(hs []common.Uint256) {
	w.WriteVarUint(uint64(len(hs)))
	for _, h := range hs {
		w.WriteUint256(h)
	}
}

// VarUintSize returns the number of bytes v takes in the variable length
// integer form.
func VarUintSize(v uint64) int {
	return wire.VarIntSerializeSize(v)
}
