package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mosaicnetworks/neonode/src/codec"
	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/core"
	"github.com/mosaicnetworks/neonode/src/events"
	nnet "github.com/mosaicnetworks/neonode/src/net"
	"github.com/sirupsen/logrus"
)

var (
	// ErrSelfConnection is returned when the remote advertises our nonce.
	ErrSelfConnection = errors.New("connected to self")
	// ErrDisconnected is returned by sends on a closed session.
	ErrDisconnected = errors.New("node disconnected")
	// ErrUnexpectedCommand is returned when a message arrives in a state
	// that does not accept it.
	ErrUnexpectedCommand = errors.New("unexpected command")
	// ErrReplaced is the disconnect reason of nodes replaced by the manager.
	ErrReplaced = errors.New("node replaced")
	// ErrQualityCheckDone is the disconnect reason of quality-check sessions.
	ErrQualityCheckDone = errors.New("quality check complete")

	errShutdown = errors.New("manager shutting down")
)

type outgoing struct {
	msg  *nnet.Message
	done chan struct{}
}

// Node is a session with one remote peer.
type Node struct {
	state

	id       atomic.Value
	conn     net.Conn
	manager  *Manager
	conf     *Config
	outbound bool
	quality  bool

	weight      *NodeWeight
	bestHeight  uint32
	lastRequest int64
	remote      *nnet.VersionPayload

	sendCh chan outgoing
	ctx    context.Context
	cancel context.CancelFunc

	disconnectOnce sync.Once
	errLock        sync.Mutex
	err            error
	doneCh         chan struct{}
}

func newNode(m *Manager, conn net.Conn, addr string, outbound, quality bool) *Node {
	ctx, cancel := context.WithCancel(m.ctx)
	n := &Node{
		conn:     conn,
		manager:  m,
		conf:     m.conf,
		outbound: outbound,
		quality:  quality,
		weight:   NewNodeWeight(m.now),
		sendCh:   make(chan outgoing, m.conf.SendQueueSize),
		ctx:      ctx,
		cancel:   cancel,
		doneCh:   make(chan struct{}),
	}
	n.setID(addr)
	return n
}

// ID is the address of the remote node: the dialed address for outbound
// sessions, the remote host and advertised port for inbound ones.
func (n *Node) ID() string {
	return n.id.Load().(string)
}

func (n *Node) setID(id string) {
	n.id.Store(id)
}

func (n *Node) log() *logrus.Entry {
	return n.manager.logger.WithField("node", n.ID())
}

// State ...
func (n *Node) State() State {
	return n.getState()
}

// Outbound reports whether we dialed the node.
func (n *Node) Outbound() bool {
	return n.outbound
}

// Version returns the version message the remote sent, nil before the
// handshake.
func (n *Node) Version() *nnet.VersionPayload {
	if n.getState() < AwaitingVerack {
		return nil
	}
	return n.remote
}

// BestHeight is the highest block height the remote has claimed.
func (n *Node) BestHeight() uint32 {
	return atomic.LoadUint32(&n.bestHeight)
}

func (n *Node) updateBestHeight(h uint32) {
	for {
		cur := atomic.LoadUint32(&n.bestHeight)
		if h <= cur || atomic.CompareAndSwapUint32(&n.bestHeight, cur, h) {
			return
		}
	}
}

// Weight ...
func (n *Node) Weight() *NodeWeight {
	return n.weight
}

// Done is closed once the session has released its connection.
func (n *Node) Done() <-chan struct{} {
	return n.doneCh
}

// Err returns the reason the session was disconnected.
func (n *Node) Err() error {
	n.errLock.Lock()
	defer n.errLock.Unlock()
	return n.err
}

func (n *Node) run() {
	defer n.finish()

	n.goFunc(n.writeLoop)
	n.goFunc(n.watch)

	if err := n.handshake(); err != nil {
		n.log().WithError(err).Debug("Handshake failed")
		n.manager.handshakeFailed(n, err)
		n.Disconnect(err)
		return
	}

	if n.quality {
		n.flush()
		n.manager.qualityPassed(n)
		n.Disconnect(ErrQualityCheckDone)
		return
	}

	if err := n.manager.AddConnectedNode(n); err != nil {
		n.Disconnect(err)
		return
	}

	n.readLoop()
}

func (n *Node) finish() {
	n.Disconnect(ErrDisconnected)
	n.waitRoutines()
	n.setState(Closed)
	close(n.doneCh)
	n.manager.sessionDone(n)
}

// watch ends the session when the manager context is cancelled.
func (n *Node) watch() {
	<-n.ctx.Done()
	n.Disconnect(errShutdown)
}

func (n *Node) handshake() error {
	n.setState(AwaitingVersion)

	version := &nnet.VersionPayload{
		Version:     nnet.ProtocolVersion,
		Services:    nnet.ServiceNodeNetwork,
		Timestamp:   uint32(n.manager.now().Unix()),
		Port:        n.manager.port,
		Nonce:       n.manager.nonce,
		UserAgent:   n.conf.UserAgent,
		StartHeight: n.manager.chain.Height(),
		Relay:       n.conf.Relay,
	}
	if err := n.send(nnet.CmdVersion, version); err != nil {
		return err
	}

	msg, err := n.readHandshake(nnet.CmdVersion)
	if err != nil {
		return err
	}
	remote := new(nnet.VersionPayload)
	if err := msg.Decode(remote); err != nil {
		return err
	}
	if remote.Nonce == n.manager.nonce {
		return ErrSelfConnection
	}
	n.remote = remote
	n.updateBestHeight(remote.StartHeight)
	if !n.outbound {
		if host, _, err := net.SplitHostPort(n.conn.RemoteAddr().String()); err == nil {
			n.setID(net.JoinHostPort(host, strconv.Itoa(int(remote.Port))))
		}
	}
	n.setState(AwaitingVerack)

	if err := n.send(nnet.CmdVerack, nil); err != nil {
		return err
	}
	if _, err := n.readHandshake(nnet.CmdVerack); err != nil {
		return err
	}

	if err := n.conn.SetReadDeadline(time.Time{}); err != nil {
		return err
	}
	n.setState(Ready)

	n.log().WithFields(logrus.Fields{
		"user_agent": remote.UserAgent,
		"height":     remote.StartHeight,
		"outbound":   n.outbound,
	}).Debug("Handshake complete")
	return nil
}

func (n *Node) readHandshake(command string) (*nnet.Message, error) {
	if err := n.conn.SetReadDeadline(time.Now().Add(n.conf.HandshakeTimeout)); err != nil {
		return nil, err
	}
	msg, err := n.readMessage()
	if err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", command, err)
	}
	if msg.Command != command {
		return nil, fmt.Errorf("%w: %s while waiting for %s", ErrUnexpectedCommand, msg.Command, command)
	}
	return msg, nil
}

func (n *Node) readMessage() (*nnet.Message, error) {
	return nnet.ReadMessage(n.conn, n.conf.Magic, n.conf.MaxPayload)
}

func (n *Node) readLoop() {
	for {
		msg, err := n.readMessage()
		if err != nil {
			n.Disconnect(err)
			return
		}
		if err := n.handle(msg); err != nil {
			n.Disconnect(err)
			return
		}
	}
}

func (n *Node) writeLoop() {
	for {
		select {
		case o := <-n.sendCh:
			if o.msg == nil {
				close(o.done)
				continue
			}
			if n.conf.WriteTimeout > 0 {
				n.conn.SetWriteDeadline(time.Now().Add(n.conf.WriteTimeout))
			}
			if err := nnet.WriteMessage(n.conn, o.msg); err != nil {
				n.Disconnect(fmt.Errorf("write %s: %w", o.msg.Command, err))
				return
			}
		case <-n.ctx.Done():
			return
		}
	}
}

// flush waits until every queued message has been written.
func (n *Node) flush() {
	done := make(chan struct{})
	select {
	case n.sendCh <- outgoing{done: done}:
	case <-n.ctx.Done():
		return
	}
	select {
	case <-done:
	case <-n.ctx.Done():
	case <-time.After(n.conf.HandshakeTimeout):
	}
}

func (n *Node) message(command string, payload codec.Serializable) (*nnet.Message, error) {
	return nnet.NewMessage(n.conf.Magic, command, payload)
}

// send queues a message, waiting for room in the queue.
func (n *Node) send(command string, payload codec.Serializable) error {
	if n.ctx.Err() != nil {
		return ErrDisconnected
	}
	msg, err := n.message(command, payload)
	if err != nil {
		return err
	}
	select {
	case n.sendCh <- outgoing{msg: msg}:
		return nil
	case <-n.ctx.Done():
		return ErrDisconnected
	}
}

// trySend queues a message unless the queue is full.
func (n *Node) trySend(command string, payload codec.Serializable) bool {
	if n.getState() != Ready {
		return false
	}
	msg, err := n.message(command, payload)
	if err != nil {
		return false
	}
	select {
	case n.sendCh <- outgoing{msg: msg}:
		return true
	default:
		return false
	}
}

// Disconnect ends the session. Only the first call has an effect.
func (n *Node) Disconnect(reason error) {
	n.disconnectOnce.Do(func() {
		n.errLock.Lock()
		n.err = reason
		n.errLock.Unlock()

		if !n.quality || reason != ErrQualityCheckDone {
			n.setState(Disconnecting)
		}
		n.cancel()
		n.conn.Close()
		n.manager.RemoveConnectedNode(n)

		entry := n.log().WithField("state", n.getState().String())
		if reason != nil && reason != errShutdown && reason != ErrQualityCheckDone {
			entry = entry.WithError(reason)
		}
		entry.Debug("Disconnected")
	})
}

// GetHeaders asks for the headers following start.
func (n *Node) GetHeaders(start common.Uint256) error {
	n.markRequest()
	return n.send(nnet.CmdGetHeaders, &nnet.GetBlocksPayload{HashStart: []common.Uint256{start}})
}

// GetBlocks asks for an inventory of the blocks following start.
func (n *Node) GetBlocks(start common.Uint256) error {
	n.markRequest()
	return n.send(nnet.CmdGetBlocks, &nnet.GetBlocksPayload{HashStart: []common.Uint256{start}})
}

// GetData asks for the items of an inventory.
func (n *Node) GetData(t nnet.InvType, hashes []common.Uint256) error {
	n.markRequest()
	return n.send(nnet.CmdGetData, &nnet.InvPayload{Type: t, Hashes: hashes})
}

// SendPing reports our height and asks for the remote's.
func (n *Node) SendPing() error {
	return n.send(nnet.CmdPing, n.pingPayload())
}

// SendGetAddr asks the remote for addresses.
func (n *Node) SendGetAddr() error {
	return n.send(nnet.CmdGetAddr, nil)
}

func (n *Node) pingPayload() *nnet.PingPayload {
	return &nnet.PingPayload{
		LastBlockIndex: n.manager.chain.Height(),
		Timestamp:      uint32(n.manager.now().Unix()),
		Nonce:          n.manager.nonce,
	}
}

func (n *Node) markRequest() {
	n.weight.AppendRequestTime()
	atomic.StoreInt64(&n.lastRequest, n.manager.now().UnixNano())
}

// recordSpeed derives a transfer speed from the size of a response and the
// time since the last request.
func (n *Node) recordSpeed(size int) {
	start := atomic.LoadInt64(&n.lastRequest)
	if start == 0 {
		return
	}
	elapsed := time.Duration(n.manager.now().UnixNano() - start)
	if elapsed <= 0 {
		return
	}
	n.weight.AppendSpeed(float64(size) / elapsed.Seconds())
}

func (n *Node) handle(msg *nnet.Message) error {
	chain := n.manager.chain

	switch msg.Command {
	case nnet.CmdAddr:
		var p nnet.AddrPayload
		if err := msg.Decode(&p); err != nil {
			return err
		}
		n.manager.learnAddresses(p.Addresses)

	case nnet.CmdGetAddr:
		return n.send(nnet.CmdAddr, n.manager.addrPayload(n))

	case nnet.CmdInv:
		var p nnet.InvPayload
		if err := msg.Decode(&p); err != nil {
			return err
		}
		return n.handleInv(&p)

	case nnet.CmdGetData:
		var p nnet.InvPayload
		if err := msg.Decode(&p); err != nil {
			return err
		}
		return n.handleGetData(&p)

	case nnet.CmdGetHeaders:
		var p nnet.GetBlocksPayload
		if err := msg.Decode(&p); err != nil {
			return err
		}
		return n.handleGetHeaders(&p)

	case nnet.CmdGetBlocks:
		var p nnet.GetBlocksPayload
		if err := msg.Decode(&p); err != nil {
			return err
		}
		return n.handleGetBlocks(&p)

	case nnet.CmdHeaders:
		var p nnet.HeadersPayload
		if err := msg.Decode(&p); err != nil {
			return err
		}
		n.recordSpeed(len(msg.Payload))
		if len(p.Headers) > 0 {
			n.updateBestHeight(p.Headers[len(p.Headers)-1].Index)
		}
		n.publish(events.HeadersReceivedEvent{NodeID: n.ID(), Headers: p.Headers})

	case nnet.CmdBlock:
		block := new(core.Block)
		if err := msg.Decode(block); err != nil {
			return err
		}
		n.recordSpeed(len(msg.Payload))
		n.updateBestHeight(block.Index)
		n.publish(events.BlockReceivedEvent{NodeID: n.ID(), Block: block})

	case nnet.CmdTx:
		tx := new(core.Transaction)
		if err := msg.Decode(tx); err != nil {
			return err
		}
		if err := chain.SubmitTransaction(tx); err != nil {
			n.log().WithError(err).WithField("tx", tx.Hash().String()).Debug("Transaction refused")
		}

	case nnet.CmdMempool:
		txs := chain.MemPool().Transactions()
		hashes := make([]common.Uint256, 0, len(txs))
		for _, tx := range txs {
			if len(hashes) == nnet.MaxInvHashes {
				break
			}
			hashes = append(hashes, tx.Hash())
		}
		if len(hashes) > 0 {
			return n.send(nnet.CmdInv, &nnet.InvPayload{Type: nnet.InvTx, Hashes: hashes})
		}

	case nnet.CmdPing:
		var p nnet.PingPayload
		if err := msg.Decode(&p); err != nil {
			return err
		}
		n.updateBestHeight(p.LastBlockIndex)
		return n.send(nnet.CmdPong, n.pingPayload())

	case nnet.CmdPong:
		var p nnet.PingPayload
		if err := msg.Decode(&p); err != nil {
			return err
		}
		n.updateBestHeight(p.LastBlockIndex)

	case nnet.CmdVersion, nnet.CmdVerack:
		return fmt.Errorf("%w: %s after handshake", ErrUnexpectedCommand, msg.Command)

	default:
		n.log().WithField("command", msg.Command).Debug("Ignoring message")
	}
	return nil
}

func (n *Node) publish(e events.Event) {
	if n.manager.bus != nil {
		n.manager.bus.Publish(e)
	}
}

func (n *Node) handleInv(p *nnet.InvPayload) error {
	chain := n.manager.chain

	switch p.Type {
	case nnet.InvTx:
		pool := chain.MemPool()
		var unknown []common.Uint256
		for _, h := range p.Hashes {
			if !pool.Contains(h) && !chain.ContainsTransaction(h) {
				unknown = append(unknown, h)
			}
		}
		if len(unknown) > 0 {
			return n.send(nnet.CmdGetData, &nnet.InvPayload{Type: nnet.InvTx, Hashes: unknown})
		}

	case nnet.InvBlock:
		for _, h := range p.Hashes {
			if chain.ContainsBlock(h) {
				continue
			}
			if header, err := chain.GetHeader(h); err == nil {
				n.updateBestHeight(header.Index)
			}
			n.publish(events.BlockAnnouncedEvent{NodeID: n.ID(), Hash: h})
		}
	}
	return nil
}

func (n *Node) handleGetData(p *nnet.InvPayload) error {
	chain := n.manager.chain

	for _, h := range p.Hashes {
		switch p.Type {
		case nnet.InvBlock:
			block, err := chain.GetBlock(h)
			if err != nil {
				continue
			}
			if err := n.send(nnet.CmdBlock, block); err != nil {
				return err
			}
		case nnet.InvTx:
			tx, ok := chain.MemPool().Get(h)
			if !ok {
				var err error
				if tx, _, err = chain.GetTransaction(h); err != nil {
					continue
				}
			}
			if err := n.send(nnet.CmdTx, tx); err != nil {
				return err
			}
		}
	}
	return nil
}

// locate returns the height of the first locator hash on our header chain.
func (n *Node) locate(locator []common.Uint256) (uint32, bool) {
	chain := n.manager.chain
	for _, h := range locator {
		header, err := chain.GetHeader(h)
		if err != nil {
			continue
		}
		if indexed, ok := chain.GetHeaderHash(header.Index); ok && indexed == h {
			return header.Index, true
		}
	}
	return 0, false
}

func (n *Node) handleGetHeaders(p *nnet.GetBlocksPayload) error {
	chain := n.manager.chain

	start, ok := n.locate(p.HashStart)
	if !ok {
		return nil
	}
	var headers []*core.Header
	for i := start + 1; len(headers) < nnet.MaxHeadersCount; i++ {
		h, ok := chain.GetHeaderHash(i)
		if !ok {
			break
		}
		header, err := chain.GetHeader(h)
		if err != nil {
			break
		}
		headers = append(headers, header)
		if h == p.HashStop {
			break
		}
	}
	if len(headers) == 0 {
		return nil
	}
	return n.send(nnet.CmdHeaders, &nnet.HeadersPayload{Headers: headers})
}

func (n *Node) handleGetBlocks(p *nnet.GetBlocksPayload) error {
	chain := n.manager.chain

	start, ok := n.locate(p.HashStart)
	if !ok {
		return nil
	}
	height := chain.Height()
	var hashes []common.Uint256
	for i := start + 1; i <= height && len(hashes) < nnet.MaxInvHashes; i++ {
		h, ok := chain.GetHeaderHash(i)
		if !ok {
			break
		}
		hashes = append(hashes, h)
		if h == p.HashStop {
			break
		}
	}
	if len(hashes) == 0 {
		return nil
	}
	return n.send(nnet.CmdInv, &nnet.InvPayload{Type: nnet.InvBlock, Hashes: hashes})
}
