package neonode

import (
	"context"
	"testing"
	"time"

	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/config"
	"github.com/mosaicnetworks/neonode/src/core"
	nnet "github.com/mosaicnetworks/neonode/src/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNode(t *testing.T, network *nnet.InmemNetwork, addr string, seeds ...string) *Node {
	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.Seeds = seeds
	conf.Notifications = true

	stream, err := network.Listen(addr)
	require.NoError(t, err)

	n := NewNode(conf)
	n.Stream = stream
	require.NoError(t, n.Init())
	t.Cleanup(func() { n.Shutdown() })
	return n
}

func extend(t *testing.T, n *Node, count int) {
	tip := n.Chain.Genesis().GetHeader()
	for i := 0; i < count; i++ {
		b, err := core.NewBlock(core.Header{
			PrevHash:      tip.Hash(),
			Timestamp:     tip.Timestamp + 15,
			Index:         tip.Index + 1,
			ConsensusData: uint64(tip.Index + 1),
			NextConsensus: tip.NextConsensus,
		}, []*core.Transaction{core.NewTransaction(&core.MinerTx{Nonce: tip.Index + 1})})
		require.NoError(t, err)
		require.NoError(t, n.Chain.Persist(b))
		tip = b.GetHeader()
	}
}

func TestNodesSync(t *testing.T) {
	network := nnet.NewInmemNetwork()
	a := newTestNode(t, network, "127.0.0.1:3001")
	b := newTestNode(t, network, "127.0.0.1:3002", "127.0.0.1:3001")
	extend(t, a, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))

	require.Eventually(t, func() bool {
		return b.Chain.Height() == 8
	}, 5*time.Second, 10*time.Millisecond)

	want, _ := a.Chain.GetHeaderHash(8)
	got, _ := b.Chain.GetHeaderHash(8)
	assert.Equal(t, want, got)

	require.Eventually(t, func() bool {
		h, ok := b.Notifications.Height()
		return ok && h == 8
	}, time.Second, 10*time.Millisecond)

	assert.NoError(t, b.Shutdown())
	assert.NoError(t, a.Shutdown())
	assert.Nil(t, a.Store)
}

func TestRunStopsWithContext(t *testing.T) {
	n := newTestNode(t, nnet.NewInmemNetwork(), "127.0.0.1:3003")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestInitUnknownStore(t *testing.T) {
	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.Store = "floppy"

	n := NewNode(conf)
	assert.Error(t, n.Init())
	assert.Nil(t, n.Chain)
}

func TestStartBeforeInit(t *testing.T) {
	n := NewNode(config.NewTestConfig(t, common.TestLogLevel))
	assert.Equal(t, ErrNotInitialized, n.Start(context.Background()))
}
