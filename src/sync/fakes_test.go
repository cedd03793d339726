package sync

import (
	"errors"
	"sort"
	gosync "sync"
	"testing"
	"time"

	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/core"
	"github.com/mosaicnetworks/neonode/src/ledger"
	nnet "github.com/mosaicnetworks/neonode/src/net"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu gosync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Unix(1500000000, 0)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// makeBlocks returns a chain of n+1 blocks starting at index 0, hashed up
// front so they can be shared between goroutines.
func makeBlocks(t *testing.T, n int) []*core.Block {
	genesis, err := core.NewBlock(core.Header{Timestamp: 1468595301}, []*core.Transaction{
		core.NewTransaction(&core.MinerTx{Nonce: 0}),
	})
	require.NoError(t, err)
	genesis.Hash()

	blocks := []*core.Block{genesis}
	for i := 1; i <= n; i++ {
		prev := blocks[i-1]
		b, err := core.NewBlock(core.Header{
			PrevHash:      prev.Hash(),
			Timestamp:     prev.Timestamp + 15,
			Index:         uint32(i),
			ConsensusData: uint64(i),
		}, []*core.Transaction{core.NewTransaction(&core.MinerTx{Nonce: uint32(i)})})
		require.NoError(t, err)
		b.Hash()
		blocks = append(blocks, b)
	}
	return blocks
}

func headersOf(blocks []*core.Block) []*core.Header {
	res := make([]*core.Header, len(blocks))
	for i, b := range blocks {
		res[i] = b.GetHeader()
	}
	return res
}

// fakeChain keeps a header hash list and a block height.
type fakeChain struct {
	mu         gosync.Mutex
	height     uint32
	hashes     []common.Uint256
	persisted  []uint32
	addErr     error
	persistErr error
}

func newFakeChain(genesis *core.Block) *fakeChain {
	return &fakeChain{hashes: []common.Uint256{genesis.Hash()}}
}

func (c *fakeChain) Height() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

func (c *fakeChain) HeaderHeight() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint32(len(c.hashes) - 1)
}

func (c *fakeChain) CurrentHeaderHash() common.Uint256 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hashes[len(c.hashes)-1]
}

func (c *fakeChain) GetHeaderHash(index uint32) (common.Uint256, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if int(index) >= len(c.hashes) {
		return common.Uint256{}, false
	}
	return c.hashes[index], true
}

func (c *fakeChain) AddHeaders(headers []*core.Header) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.addErr != nil {
		return 0, c.addErr
	}
	added := 0
	for _, h := range headers {
		if int(h.Index) != len(c.hashes) {
			continue
		}
		c.hashes = append(c.hashes, h.Hash())
		added++
	}
	return added, nil
}

func (c *fakeChain) TryPersist(block *core.Block) (ledger.PersistResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case block.Index <= c.height:
		return ledger.ResultAlreadyPersisted, nil
	case block.Index != c.height+1:
		return ledger.ResultOutOfOrder, nil
	case c.persistErr != nil:
		c.persisted = append(c.persisted, 0)
		return ledger.ResultOutOfOrder, c.persistErr
	}
	c.height = block.Index
	c.persisted = append(c.persisted, block.Index)
	return ledger.ResultPersisted, nil
}

func (c *fakeChain) setHeight(h uint32) {
	c.mu.Lock()
	c.height = h
	c.mu.Unlock()
}

func (c *fakeChain) persistCalls() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint32(nil), c.persisted...)
}

type fakePeer struct {
	id   string
	best uint32

	mu         gosync.Mutex
	headerReqs []common.Uint256
	dataReqs   [][]common.Uint256
}

func (p *fakePeer) ID() string         { return p.id }
func (p *fakePeer) BestHeight() uint32 { return p.best }

func (p *fakePeer) GetHeaders(start common.Uint256) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.headerReqs = append(p.headerReqs, start)
	return nil
}

func (p *fakePeer) GetData(_ nnet.InvType, hashes []common.Uint256) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dataReqs = append(p.dataReqs, append([]common.Uint256(nil), hashes...))
	return nil
}

func (p *fakePeer) headerRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.headerReqs)
}

func (p *fakePeer) dataRequests() [][]common.Uint256 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]common.Uint256(nil), p.dataReqs...)
}

// fakePeers prefers nodes in the order they were given.
type fakePeers struct {
	mu       gosync.Mutex
	nodes    []*fakePeer
	timeouts map[string]int
	errors   map[string]int
	replaced []string
}

func newFakePeers(nodes ...*fakePeer) *fakePeers {
	return &fakePeers{
		nodes:    nodes,
		timeouts: make(map[string]int),
		errors:   make(map[string]int),
	}
}

func (p *fakePeers) GetNextNode(height uint32) Peer {
	for _, n := range p.nodes {
		if n.best >= height {
			return n
		}
	}
	return nil
}

func (p *fakePeers) GetNodeByID(id string) Peer {
	for _, n := range p.nodes {
		if n.id == id {
			return n
		}
	}
	return nil
}

func (p *fakePeers) RankNodes(height uint32) []Peer {
	var res []Peer
	for _, n := range p.nodes {
		if n.best >= height {
			res = append(res, n)
		}
	}
	return res
}

// Nodes is ordered by id like the node manager, whatever the preference.
func (p *fakePeers) Nodes() []Peer {
	res := make([]Peer, len(p.nodes))
	for i, n := range p.nodes {
		res[i] = n
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID() < res[j].ID() })
	return res
}

func (p *fakePeers) AddNodeTimeoutCount(id string) {
	p.mu.Lock()
	p.timeouts[id]++
	p.mu.Unlock()
}

func (p *fakePeers) AddNodeErrorCount(id string) {
	p.mu.Lock()
	p.errors[id]++
	p.mu.Unlock()
}

func (p *fakePeers) ReplaceNode(id string) {
	p.mu.Lock()
	p.replaced = append(p.replaced, id)
	p.mu.Unlock()
}

func (p *fakePeers) timeoutCount(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timeouts[id]
}

func (p *fakePeers) errorCount(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errors[id]
}

func (p *fakePeers) replacedNodes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.replaced...)
}
