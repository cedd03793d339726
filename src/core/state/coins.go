package state

import (
	"sort"

	"github.com/mosaicnetworks/neonode/src/codec"
	"github.com/mosaicnetworks/neonode/src/common"
)

// CoinState is a bit set describing one output of a transaction.
type CoinState uint8

// Coin flags.
const (
	CoinConfirmed CoinState = 1 << 0
	CoinSpent     CoinState = 1 << 1
	CoinClaimed   CoinState = 1 << 2
	CoinLocked    CoinState = 1 << 3
	CoinFrozen    CoinState = 1 << 4
	CoinWatchOnly CoinState = 1 << 5
)

// UnspentCoins tracks the outputs of one transaction.
type UnspentCoins struct {
	Items []CoinState
}

// NewUnspentCoins returns n confirmed outputs.
func NewUnspentCoins(n int) *UnspentCoins {
	u := &UnspentCoins{Items: make([]CoinState, n)}
	for i := range u.Items {
		u.Items[i] = CoinConfirmed
	}
	return u
}

// IsSpent reports whether output i has been consumed. Unknown outputs count
// as spent.
func (u *UnspentCoins) IsSpent(i uint16) bool {
	return int(i) >= len(u.Items) || u.Items[i]&CoinSpent != 0
}

// AllSpent ...
func (u *UnspentCoins) AllSpent() bool {
	for _, s := range u.Items {
		if s&CoinSpent == 0 {
			return false
		}
	}
	return true
}

// EncodeBinary ...
func (u *UnspentCoins) EncodeBinary(w *codec.BinWriter) {
	writeVersion(w)
	w.WriteVarUint(uint64(len(u.Items)))
	for _, s := range u.Items {
		w.WriteU8(uint8(s))
	}
}

// DecodeBinary ...
func (u *UnspentCoins) DecodeBinary(r *codec.BinReader) {
	readVersion(r)
	n := r.ReadCount(0xffff)
	u.Items = make([]CoinState, n)
	for i := range u.Items {
		u.Items[i] = CoinState(r.ReadU8())
	}
}

// SpentCoins records, for the governing asset outputs of one transaction,
// the height at which each output was spent. Claims use it to compute the
// generated utility token.
type SpentCoins struct {
	TxHash   common.Uint256
	TxHeight uint32
	Items    map[uint16]uint32
}

// NewSpentCoins ...
func NewSpentCoins(h common.Uint256, height uint32) *SpentCoins {
	return &SpentCoins{TxHash: h, TxHeight: height, Items: make(map[uint16]uint32)}
}

// EncodeBinary writes items in output index order.
func (s *SpentCoins) EncodeBinary(w *codec.BinWriter) {
	writeVersion(w)
	w.WriteUint256(s.TxHash)
	w.WriteU32LE(s.TxHeight)

	idx := make([]int, 0, len(s.Items))
	for i := range s.Items {
		idx = append(idx, int(i))
	}
	sort.Ints(idx)

	w.WriteVarUint(uint64(len(idx)))
	for _, i := range idx {
		w.WriteU16LE(uint16(i))
		w.WriteU32LE(s.Items[uint16(i)])
	}
}

// DecodeBinary ...
func (s *SpentCoins) DecodeBinary(r *codec.BinReader) {
	readVersion(r)
	s.TxHash = r.ReadUint256()
	s.TxHeight = r.ReadU32LE()
	n := r.ReadCount(0xffff)
	s.Items = make(map[uint16]uint32, n)
	for i := 0; i < n && r.Err == nil; i++ {
		k := r.ReadU16LE()
		s.Items[k] = r.ReadU32LE()
	}
}
