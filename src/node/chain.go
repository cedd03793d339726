package node

import (
	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/core"
	"github.com/mosaicnetworks/neonode/src/ledger"
)

// Chain is the part of the ledger sessions read from and submit to.
// *ledger.Blockchain implements it.
type Chain interface {
	Height() uint32
	HeaderHeight() uint32
	GetHeaderHash(i uint32) (common.Uint256, bool)
	GetHeader(h common.Uint256) (*core.Header, error)
	GetBlock(h common.Uint256) (*core.Block, error)
	GetTransaction(h common.Uint256) (*core.Transaction, uint32, error)
	ContainsBlock(h common.Uint256) bool
	ContainsTransaction(h common.Uint256) bool
	MemPool() *ledger.MemPool
	SubmitTransaction(tx *core.Transaction) error
}

var _ Chain = (*ledger.Blockchain)(nil)
