package sync

import (
	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/core"
	"github.com/mosaicnetworks/neonode/src/ledger"
	nnet "github.com/mosaicnetworks/neonode/src/net"
	"github.com/mosaicnetworks/neonode/src/node"
)

// Chain is the part of the ledger the sync manager reads and feeds.
type Chain interface {
	Height() uint32
	HeaderHeight() uint32
	CurrentHeaderHash() common.Uint256
	GetHeaderHash(index uint32) (common.Uint256, bool)
	AddHeaders(headers []*core.Header) (int, error)
	TryPersist(block *core.Block) (ledger.PersistResult, error)
}

var _ Chain = (*ledger.Blockchain)(nil)

// Peer is a connected node requests can be sent to.
type Peer interface {
	ID() string
	BestHeight() uint32
	GetHeaders(start common.Uint256) error
	GetData(t nnet.InvType, hashes []common.Uint256) error
}

var _ Peer = (*node.Node)(nil)

// Peers is the pool of connected nodes. GetNextNode and GetNodeByID return
// nil when no node qualifies. RankNodes orders the nodes that have height
// the way GetNextNode picks them; Nodes is in no particular order.
type Peers interface {
	GetNextNode(height uint32) Peer
	GetNodeByID(id string) Peer
	RankNodes(height uint32) []Peer
	Nodes() []Peer
	AddNodeTimeoutCount(id string)
	AddNodeErrorCount(id string)
	ReplaceNode(id string)
}

// NodePeers exposes a node.Manager as Peers.
func NodePeers(m *node.Manager) Peers {
	return &nodePeers{m: m}
}

type nodePeers struct {
	m *node.Manager
}

func (p *nodePeers) GetNextNode(height uint32) Peer {
	if n := p.m.GetNextNode(height); n != nil {
		return n
	}
	return nil
}

func (p *nodePeers) GetNodeByID(id string) Peer {
	if n := p.m.GetNodeByID(id); n != nil {
		return n
	}
	return nil
}

func (p *nodePeers) RankNodes(height uint32) []Peer {
	return asPeers(p.m.RankNodes(height))
}

func (p *nodePeers) Nodes() []Peer {
	return asPeers(p.m.Nodes())
}

func asPeers(nodes []*node.Node) []Peer {
	res := make([]Peer, len(nodes))
	for i, n := range nodes {
		res[i] = n
	}
	return res
}

func (p *nodePeers) AddNodeTimeoutCount(id string) {
	p.m.AddNodeTimeoutCount(id)
}

func (p *nodePeers) AddNodeErrorCount(id string) {
	p.m.AddNodeErrorCount(id)
}

func (p *nodePeers) ReplaceNode(id string) {
	if n := p.m.GetNodeByID(id); n != nil {
		p.m.ReplaceNode(n)
	}
}
