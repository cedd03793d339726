package state

import (
	"fmt"
	"sort"

	"github.com/mosaicnetworks/neonode/src/codec"
	"github.com/mosaicnetworks/neonode/src/common"
)

const stateVersion uint8 = 0

func writeVersion(w *codec.BinWriter) {
	w.WriteU8(stateVersion)
}

func readVersion(r *codec.BinReader) {
	if v := r.ReadU8(); r.Err == nil && v != stateVersion {
		r.Err = fmt.Errorf("unsupported state version %d", v)
	}
}

// Account holds the balances and votes of a script hash.
type Account struct {
	ScriptHash common.Uint160
	IsFrozen   bool
	Votes      [][]byte
	Balances   map[common.Uint256]common.Fixed8
}

// NewAccount returns an empty account for h.
func NewAccount(h common.Uint160) *Account {
	return &Account{
		ScriptHash: h,
		Balances:   make(map[common.Uint256]common.Fixed8),
	}
}

// Balance ...
func (a *Account) Balance(asset common.Uint256) common.Fixed8 {
	return a.Balances[asset]
}

// AddBalance adds delta, which may be negative, to the balance of asset.
func (a *Account) AddBalance(asset common.Uint256, delta common.Fixed8) {
	if a.Balances == nil {
		a.Balances = make(map[common.Uint256]common.Fixed8)
	}
	a.Balances[asset] += delta
}

// IsEmpty reports whether the account can be dropped from storage.
func (a *Account) IsEmpty() bool {
	if a.IsFrozen || len(a.Votes) > 0 {
		return false
	}
	for _, v := range a.Balances {
		if v != 0 {
			return false
		}
	}
	return true
}

// EncodeBinary writes balances in asset id order.
func (a *Account) EncodeBinary(w *codec.BinWriter) {
	writeVersion(w)
	w.WriteUint160(a.ScriptHash)
	w.WriteBool(a.IsFrozen)
	w.WriteVarUint(uint64(len(a.Votes)))
	for _, v := range a.Votes {
		w.WriteECPoint(v)
	}

	assets := make([]common.Uint256, 0, len(a.Balances))
	for id := range a.Balances {
		assets = append(assets, id)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Less(assets[j]) })

	w.WriteVarUint(uint64(len(assets)))
	for _, id := range assets {
		w.WriteUint256(id)
		w.WriteI64LE(int64(a.Balances[id]))
	}
}

// DecodeBinary ...
func (a *Account) DecodeBinary(r *codec.BinReader) {
	readVersion(r)
	a.ScriptHash = r.ReadUint160()
	a.IsFrozen = r.ReadBool()

	n := r.ReadCount(1024)
	a.Votes = nil
	for i := 0; i < n && r.Err == nil; i++ {
		a.Votes = append(a.Votes, r.ReadECPoint())
	}

	n = r.ReadCount(codec.MaxArraySize)
	a.Balances = make(map[common.Uint256]common.Fixed8, n)
	for i := 0; i < n && r.Err == nil; i++ {
		id := r.ReadUint256()
		a.Balances[id] = common.Fixed8(r.ReadI64LE())
	}
}
