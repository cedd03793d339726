package core

import (
	"errors"
	"fmt"

	"github.com/mosaicnetworks/neonode/src/codec"
	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/crypto"
)

var (
	// ErrMissingWitness is returned when the witness marker byte is not 1.
	ErrMissingWitness = errors.New("block witness marker must be 1")
	// ErrHeaderPadding is returned when a header is not followed by a zero
	// transaction count.
	ErrHeaderPadding = errors.New("header must end with a zero byte")
)

// Header is a block without its transactions.
type Header struct {
	Version       uint32
	PrevHash      common.Uint256
	MerkleRoot    common.Uint256
	Timestamp     uint32
	Index         uint32
	ConsensusData uint64
	NextConsensus common.Uint160
	Witness       Witness

	hash   common.Uint256
	hashed bool
}

// Hash returns the double SHA256 of the unsigned header.
func (h *Header) Hash() common.Uint256 {
	if !h.hashed {
		h.hash = crypto.Hash256(h.HashData())
		h.hashed = true
	}
	return h.hash
}

// HashData returns the unsigned encoding, the message signed by the
// witness.
func (h *Header) HashData() []byte {
	w := codec.NewBinWriter()
	h.encodeUnsigned(w)
	return w.Bytes()
}

func (h *Header) encodeUnsigned(w *codec.BinWriter) {
	w.WriteU32LE(h.Version)
	w.WriteUint256(h.PrevHash)
	w.WriteUint256(h.MerkleRoot)
	w.WriteU32LE(h.Timestamp)
	w.WriteU32LE(h.Index)
	w.WriteU64LE(h.ConsensusData)
	w.WriteUint160(h.NextConsensus)
}

func (h *Header) decodeUnsigned(r *codec.BinReader) {
	h.Version = r.ReadU32LE()
	h.PrevHash = r.ReadUint256()
	h.MerkleRoot = r.ReadUint256()
	h.Timestamp = r.ReadU32LE()
	h.Index = r.ReadU32LE()
	h.ConsensusData = r.ReadU64LE()
	h.NextConsensus = r.ReadUint160()
}

// encodeBase writes the unsigned part and the witness.
func (h *Header) encodeBase(w *codec.BinWriter) {
	h.encodeUnsigned(w)
	w.WriteU8(1)
	h.Witness.EncodeBinary(w)
}

func (h *Header) decodeBase(r *codec.BinReader) {
	h.decodeUnsigned(r)
	if m := r.ReadU8(); r.Err == nil && m != 1 {
		r.Err = fmt.Errorf("%w: got %d", ErrMissingWitness, m)
		return
	}
	h.Witness.DecodeBinary(r)
	if r.Err == nil {
		h.hashed = false
		h.Hash()
	}
}

// EncodeBinary writes the header as it travels in a headers message: the
// block base followed by a zero transaction count.
func (h *Header) EncodeBinary(w *codec.BinWriter) {
	h.encodeBase(w)
	w.WriteU8(0)
}

// DecodeBinary ...
func (h *Header) DecodeBinary(r *codec.BinReader) {
	h.decodeBase(r)
	if pad := r.ReadU8(); r.Err == nil && pad != 0 {
		r.Err = ErrHeaderPadding
	}
}
