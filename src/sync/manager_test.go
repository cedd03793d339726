package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"testing"
	"time"

	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/core"
	"github.com/mosaicnetworks/neonode/src/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

type fixture struct {
	blocks []*core.Block
	chain  *fakeChain
	peers  *fakePeers
	clock  *fakeClock
	m      *Manager
}

func newFixture(t *testing.T, blocks int, nodes ...*fakePeer) *fixture {
	f := &fixture{
		blocks: makeBlocks(t, blocks),
		peers:  newFakePeers(nodes...),
		clock:  newClock(),
	}
	f.chain = newFakeChain(f.blocks[0])

	conf := TestConfig()
	conf.Now = f.clock.now
	f.m = NewManager(conf, f.chain, f.peers, nil, common.NewTestEntry(t, common.TestLogLevel))
	return f
}

// knowHeaders adds the headers of blocks 1 to n to the chain.
func (f *fixture) knowHeaders(t *testing.T, n int) {
	added, err := f.chain.AddHeaders(headersOf(f.blocks[1 : n+1]))
	require.NoError(t, err)
	require.Equal(t, n, added)
}

func concurrently(n int, f func(i int)) {
	var start, done gosync.WaitGroup
	start.Add(1)
	done.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer done.Done()
			start.Wait()
			f(i)
		}(i)
	}
	start.Done()
	done.Wait()
}

func TestHeadersConcurrentReceipt(t *testing.T) {
	a := &fakePeer{id: "a", best: 10}
	f := newFixture(t, 10, a)

	f.m.SyncHeaders()
	require.Equal(t, 1, a.headerRequests())
	require.True(t, f.m.Status().HeaderRequest)

	// a second call does not send while the first is outstanding
	f.m.SyncHeaders()
	assert.Equal(t, 1, a.headerRequests())

	const n = 5
	headers := headersOf(f.blocks[1:])
	statuses := make([]HeaderStatus, n)
	concurrently(n, func(i int) {
		statuses[i] = f.m.OnHeadersReceived("a", headers)
	})

	counts := make(map[HeaderStatus]int)
	for _, s := range statuses {
		counts[s]++
	}
	assert.Equal(t, 1, counts[HeadersAccepted])
	assert.Equal(t, n-1, counts[HeadersAlreadyHandled])
	assert.Equal(t, uint32(10), f.chain.HeaderHeight())
	assert.False(t, f.m.Status().HeaderRequest)
}

func TestHeadersDiscarded(t *testing.T) {
	a := &fakePeer{id: "a", best: 10}
	f := newFixture(t, 10, a)
	headers := headersOf(f.blocks[1:])

	assert.Equal(t, HeadersNotRequested, f.m.OnHeadersReceived("a", headers))

	f.m.SyncHeaders()
	assert.Equal(t, HeadersHeightMismatch, f.m.OnHeadersReceived("a", headers[4:]))
	assert.True(t, f.m.Status().HeaderRequest)

	assert.Equal(t, HeadersEmpty, f.m.OnHeadersReceived("a", nil))
	assert.False(t, f.m.Status().HeaderRequest)

	f.chain.addErr = errBoom
	f.m.SyncHeaders()
	assert.Equal(t, HeadersRejected, f.m.OnHeadersReceived("a", headers))
	assert.Equal(t, 1, f.peers.errorCount("a"))
	assert.Equal(t, uint32(0), f.chain.HeaderHeight())
}

func TestSyncHeadersLookAhead(t *testing.T) {
	a := &fakePeer{id: "a", best: 10}
	f := newFixture(t, 10, a)
	f.m.conf.HeaderMaxLookAhead = 4
	f.knowHeaders(t, 4)

	f.m.SyncHeaders()
	assert.Equal(t, 0, a.headerRequests())

	f.chain.setHeight(1)
	f.m.SyncHeaders()
	assert.Equal(t, 1, a.headerRequests())
}

func TestSyncHeadersChainAheadOfHeaders(t *testing.T) {
	a := &fakePeer{id: "a", best: 10}
	f := newFixture(t, 10, a)
	f.knowHeaders(t, 2)
	f.chain.setHeight(5)

	f.m.SyncHeaders()
	assert.Equal(t, 1, a.headerRequests())
}

func TestSyncHeadersNeedsHigherNode(t *testing.T) {
	a := &fakePeer{id: "a", best: 3}
	f := newFixture(t, 3, a)
	f.knowHeaders(t, 3)

	f.m.SyncHeaders()
	assert.Equal(t, 0, a.headerRequests())
	assert.False(t, f.m.Status().HeaderRequest)
}

func TestHeaderTimeoutRetriesOnOtherNode(t *testing.T) {
	a := &fakePeer{id: "a", best: 10}
	b := &fakePeer{id: "b", best: 10}
	f := newFixture(t, 10, a, b)

	f.m.SyncHeaders()
	require.Equal(t, 1, a.headerRequests())

	f.m.CheckTimeout()
	assert.Equal(t, 0, f.peers.timeoutCount("a"))

	f.clock.advance(f.m.conf.HeaderRequestTimeout + time.Millisecond)
	f.m.CheckTimeout()
	assert.Equal(t, 1, f.peers.timeoutCount("a"))
	assert.Equal(t, 1, b.headerRequests())
	assert.True(t, f.m.Status().HeaderRequest)

	// the retry has its own deadline
	f.m.CheckTimeout()
	assert.Equal(t, 1, f.peers.timeoutCount("a"))
	assert.Equal(t, 0, f.peers.timeoutCount("b"))

	assert.Equal(t, HeadersAccepted, f.m.OnHeadersReceived("b", headersOf(f.blocks[1:])))
}

func TestHeaderTimeoutRetriesBestRankedNode(t *testing.T) {
	a := &fakePeer{id: "a", best: 10}
	b := &fakePeer{id: "b", best: 10}
	c := &fakePeer{id: "c", best: 10}
	// c ranks above b although b has the lower id
	f := newFixture(t, 10, a, c, b)

	f.m.SyncHeaders()
	require.Equal(t, 1, a.headerRequests())

	f.clock.advance(f.m.conf.HeaderRequestTimeout + time.Millisecond)
	f.m.CheckTimeout()
	assert.Equal(t, 1, c.headerRequests())
	assert.Equal(t, 0, b.headerRequests())
}

func TestHeaderTimeoutClearedWithoutOtherNode(t *testing.T) {
	a := &fakePeer{id: "a", best: 10}
	f := newFixture(t, 10, a)

	f.m.SyncHeaders()
	f.clock.advance(f.m.conf.HeaderRequestTimeout)
	f.m.CheckTimeout()

	assert.Equal(t, 1, f.peers.timeoutCount("a"))
	assert.Equal(t, 1, a.headerRequests())
	assert.False(t, f.m.Status().HeaderRequest)
}

func TestHeaderTimeoutSuperseded(t *testing.T) {
	a := &fakePeer{id: "a", best: 10}
	b := &fakePeer{id: "b", best: 10}
	f := newFixture(t, 10, a, b)

	f.m.SyncHeaders()
	f.knowHeaders(t, 10)

	f.clock.advance(time.Minute)
	f.m.CheckTimeout()

	assert.Equal(t, 0, f.peers.timeoutCount("a"))
	assert.Equal(t, 0, b.headerRequests())
	assert.False(t, f.m.Status().HeaderRequest)
}

func TestBlocksConcurrentReceipt(t *testing.T) {
	a := &fakePeer{id: "a", best: 5}
	f := newFixture(t, 6, a)
	f.knowHeaders(t, 5)

	f.m.SyncBlocks()
	reqs := a.dataRequests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0], 5)
	assert.Equal(t, f.blocks[1].Hash(), reqs[0][0])
	assert.Equal(t, 5, f.m.Status().BlocksInFlight)

	// everything is in flight already
	f.m.SyncBlocks()
	assert.Len(t, a.dataRequests(), 1)

	const n = 5
	statuses := make([]BlockStatus, n)
	concurrently(n, func(i int) {
		statuses[i] = f.m.OnBlockReceived("a", f.blocks[1])
	})

	counts := make(map[BlockStatus]int)
	for _, s := range statuses {
		counts[s]++
	}
	assert.Equal(t, 1, counts[BlockAccepted])
	assert.Equal(t, n-1, counts[BlockAlreadyCached])

	st := f.m.Status()
	assert.Equal(t, 1, st.CachedBlocks)
	assert.Equal(t, 4, st.BlocksInFlight)

	assert.Equal(t, BlockNotRequested, f.m.OnBlockReceived("a", f.blocks[6]))
	assert.Equal(t, BlockAlreadyPersisted, f.m.OnBlockReceived("a", f.blocks[0]))
}

func TestSyncBlocksRespectsLimits(t *testing.T) {
	a := &fakePeer{id: "a", best: 20}
	f := newFixture(t, 20, a)
	f.m.conf.BlockNetworkReqLimit = 4
	f.m.conf.BlockMaxCacheSize = 6
	f.knowHeaders(t, 20)

	f.m.SyncBlocks()
	f.m.SyncBlocks()
	f.m.SyncBlocks()

	reqs := a.dataRequests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[0], 4)
	assert.Len(t, reqs[1], 2)
	assert.Equal(t, f.blocks[5].Hash(), reqs[1][0])
	assert.Equal(t, 6, f.m.Status().BlocksInFlight)
}

func TestSyncBlocksTrimsToBestNode(t *testing.T) {
	a := &fakePeer{id: "a", best: 3}
	f := newFixture(t, 6, a)
	f.knowHeaders(t, 6)

	f.m.SyncBlocks()

	reqs := a.dataRequests()
	require.Len(t, reqs, 1)
	assert.Len(t, reqs[0], 3)
}

func TestBlockTimeoutOncePerBatch(t *testing.T) {
	a := &fakePeer{id: "a", best: 5}
	b := &fakePeer{id: "b", best: 5}
	f := newFixture(t, 5, a, b)
	f.knowHeaders(t, 5)

	f.m.SyncBlocks()
	require.Len(t, a.dataRequests(), 1)
	require.Equal(t, BlockAccepted, f.m.OnBlockReceived("a", f.blocks[1]))
	require.Equal(t, BlockAccepted, f.m.OnBlockReceived("a", f.blocks[2]))

	f.clock.advance(f.m.conf.BlockRequestTimeout + time.Millisecond)
	f.m.CheckTimeout()

	assert.Equal(t, 1, f.peers.timeoutCount("a"))
	retries := b.dataRequests()
	require.Len(t, retries, 1)
	assert.Equal(t, []common.Uint256{
		f.blocks[3].Hash(),
		f.blocks[4].Hash(),
		f.blocks[5].Hash(),
	}, retries[0])

	// a late answer from a still lands in the retried flight
	assert.Equal(t, BlockAccepted, f.m.OnBlockReceived("a", f.blocks[3]))
	assert.Equal(t, 2, f.m.Status().BlocksInFlight)
}

func TestBlockTimeoutPrunesPersisted(t *testing.T) {
	a := &fakePeer{id: "a", best: 5}
	b := &fakePeer{id: "b", best: 5}
	f := newFixture(t, 5, a, b)
	f.knowHeaders(t, 5)

	f.m.SyncBlocks()
	f.chain.setHeight(5)

	f.clock.advance(time.Minute)
	f.m.CheckTimeout()

	assert.Equal(t, 0, f.peers.timeoutCount("a"))
	assert.Len(t, b.dataRequests(), 0)
	st := f.m.Status()
	assert.Equal(t, 0, st.BlockRequests)
	assert.Equal(t, 0, st.BlocksInFlight)
}

func TestBlockTimeoutClearedWithoutOtherNode(t *testing.T) {
	a := &fakePeer{id: "a", best: 5}
	f := newFixture(t, 5, a)
	f.knowHeaders(t, 5)

	f.m.SyncBlocks()
	f.clock.advance(time.Minute)
	f.m.CheckTimeout()

	assert.Equal(t, 1, f.peers.timeoutCount("a"))
	assert.Len(t, a.dataRequests(), 1)
	assert.Equal(t, 0, f.m.Status().BlocksInFlight)
}

func TestPersisterDrainsInOrder(t *testing.T) {
	a := &fakePeer{id: "a", best: 5}
	f := newFixture(t, 5, a)
	f.knowHeaders(t, 5)

	require.NoError(t, f.m.Start(context.Background()))
	t.Cleanup(func() { f.m.Shutdown() })

	require.Eventually(t, func() bool {
		return f.m.Status().BlocksInFlight == 5
	}, waitFor, tick)

	for i := 5; i >= 1; i-- {
		require.Equal(t, BlockAccepted, f.m.OnBlockReceived("a", f.blocks[i]))
	}

	require.Eventually(t, func() bool {
		return f.chain.Height() == 5
	}, waitFor, tick)
	assert.Equal(t, []uint32{1, 2, 3, 4, 5}, f.chain.persistCalls())
	assert.Equal(t, 0, f.m.Status().CachedBlocks)

	require.NoError(t, f.m.Shutdown())
}

func TestPersisterStopsOnError(t *testing.T) {
	a := &fakePeer{id: "a", best: 2}
	f := newFixture(t, 2, a)
	f.knowHeaders(t, 2)
	f.chain.mu.Lock()
	f.chain.persistErr = errBoom
	f.chain.mu.Unlock()

	require.NoError(t, f.m.Start(context.Background()))

	require.Eventually(t, func() bool {
		return f.m.Status().BlocksInFlight == 2
	}, waitFor, tick)
	require.Equal(t, BlockAccepted, f.m.OnBlockReceived("a", f.blocks[1]))

	require.Eventually(t, func() bool {
		return len(f.chain.persistCalls()) == 1
	}, waitFor, tick)

	// the persister is gone, the block stays cached
	require.Equal(t, BlockAccepted, f.m.OnBlockReceived("a", f.blocks[2]))
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, f.chain.persistCalls(), 1)
	assert.Equal(t, uint32(0), f.chain.Height())

	assert.ErrorIs(t, f.m.Shutdown(), errBoom)
}

func TestPersisterDropsInvalidBlock(t *testing.T) {
	a := &fakePeer{id: "a", best: 1}
	f := newFixture(t, 1, a)
	f.knowHeaders(t, 1)
	f.chain.mu.Lock()
	f.chain.persistErr = fmt.Errorf("transaction: %w", ledger.ErrUnknownInput)
	f.chain.mu.Unlock()

	require.NoError(t, f.m.Start(context.Background()))
	t.Cleanup(func() { f.m.Shutdown() })

	require.Eventually(t, func() bool {
		return f.m.Status().BlocksInFlight == 1
	}, waitFor, tick)
	require.Equal(t, BlockAccepted, f.m.OnBlockReceived("a", f.blocks[1]))

	require.Eventually(t, func() bool {
		return f.peers.errorCount("a") == 1
	}, waitFor, tick)
	assert.Len(t, f.chain.persistCalls(), 1)
	assert.Equal(t, 0, f.m.Status().CachedBlocks)

	f.chain.mu.Lock()
	f.chain.persistErr = nil
	f.chain.mu.Unlock()

	// the height is asked for again and the persister is still running
	require.Eventually(t, func() bool {
		return len(a.dataRequests()) == 2
	}, waitFor, tick)
	require.Equal(t, BlockAccepted, f.m.OnBlockReceived("a", f.blocks[1]))
	require.Eventually(t, func() bool {
		return f.chain.Height() == 1
	}, waitFor, tick)

	require.NoError(t, f.m.Shutdown())
}

func TestHealthReplacesAllNodes(t *testing.T) {
	a := &fakePeer{id: "a", best: 5}
	b := &fakePeer{id: "b", best: 5}
	f := newFixture(t, 5, a, b)

	f.m.CheckHealth()
	f.m.CheckHealth()
	assert.Empty(t, f.peers.replacedNodes())

	f.chain.setHeight(1)
	f.m.CheckHealth()
	f.m.CheckHealth()
	f.m.CheckHealth()
	assert.Empty(t, f.peers.replacedNodes())

	f.m.CheckHealth()
	assert.Equal(t, []string{"a", "b"}, f.peers.replacedNodes())
}

func TestStartShutdown(t *testing.T) {
	f := newFixture(t, 1)

	assert.Equal(t, ErrNotStarted, f.m.Shutdown())
	require.NoError(t, f.m.Start(context.Background()))
	assert.Equal(t, ErrAlreadyStarted, f.m.Start(context.Background()))
	assert.NoError(t, f.m.Shutdown())
	assert.NoError(t, f.m.Shutdown())
}
