package node

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/events"
	nnet "github.com/mosaicnetworks/neonode/src/net"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrAlreadyConnected is returned when a second session to the same
	// address completes its handshake.
	ErrAlreadyConnected = errors.New("node already connected")
	// ErrPoolFull is returned when MaxPeers sessions are already Ready.
	ErrPoolFull = errors.New("connection pool full")
	// ErrNotStarted ...
	ErrNotStarted = errors.New("manager not started")
)

type queuedAddr struct {
	addr    string
	quality bool
}

// Manager owns the sessions of the process and the addresses it knows.
type Manager struct {
	conf   *Config
	stream nnet.StreamLayer
	chain  Chain
	bus    *events.Bus
	logger *logrus.Entry
	nonce  uint32
	port   uint16
	self   string
	book   *AddressBook
	now    func() time.Time

	mu          sync.RWMutex
	sessions    map[*Node]struct{}
	connected   map[string]*Node
	queued      map[string]bool
	known       []string
	knownSet    map[string]struct{}
	bad         map[string]time.Time
	exhaustedAt time.Time

	queueCh     chan queuedAddr
	ctx         context.Context
	cancel      context.CancelFunc
	group       *errgroup.Group
	routines    sync.WaitGroup
	unsubscribe []func()
	stopOnce    sync.Once
	stopErr     error
}

// NewManager ...
func NewManager(conf *Config, stream nnet.StreamLayer, chain Chain, bus *events.Bus, logger *logrus.Entry) *Manager {
	if logger == nil {
		logger = logrus.NewEntry(conf.Logger)
	}

	nonce := conf.Nonce
	for nonce == 0 {
		var b [4]byte
		if _, err := rand.Read(b[:]); err != nil {
			panic(err)
		}
		nonce = binary.LittleEndian.Uint32(b[:])
	}

	m := &Manager{
		conf:      conf,
		stream:    stream,
		chain:     chain,
		bus:       bus,
		logger:    logger,
		nonce:     nonce,
		self:      stream.AdvertiseAddr(),
		now:       time.Now,
		sessions:  make(map[*Node]struct{}),
		connected: make(map[string]*Node),
		queued:    make(map[string]bool),
		knownSet:  make(map[string]struct{}),
		bad:       make(map[string]time.Time),
		queueCh:   make(chan queuedAddr, 4*conf.MaxPeers+16),
	}
	if _, port, err := net.SplitHostPort(m.self); err == nil {
		if p, err := strconv.Atoi(port); err == nil {
			m.port = uint16(p)
		}
	}
	if conf.AddressBook != "" {
		m.book = NewAddressBook(conf.AddressBook)
	}
	return m
}

// Nonce identifies this process in version messages.
func (m *Manager) Nonce() uint32 {
	return m.nonce
}

// Start loads the known addresses and launches the background routines.
// They stop when ctx is cancelled or Shutdown is called.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.group = new(errgroup.Group)

	if m.book != nil {
		addrs, err := m.book.Load()
		if err != nil {
			m.logger.WithError(err).Warn("Cannot read address book")
		}
		m.AddKnownAddresses(addrs)
	}
	m.AddKnownAddresses(m.conf.Seeds)

	if m.bus != nil {
		m.unsubscribe = append(m.unsubscribe,
			m.bus.Subscribe(events.TransactionAdded, m.onTransactionAdded),
			m.bus.Subscribe(events.PersistCompleted, m.onPersistCompleted),
		)
	}

	m.group.Go(m.acceptLoop)
	m.group.Go(m.queueLoop)
	m.group.Go(func() error {
		return m.every(m.conf.PoolCheckInterval, m.checkPool)
	})
	m.group.Go(func() error {
		return m.every(m.conf.PeerQueryInterval, m.queryPeers)
	})

	m.logger.WithFields(logrus.Fields{
		"address": m.self,
		"nonce":   m.nonce,
		"known":   m.KnownCount(),
	}).Info("Node manager started")
	return nil
}

// Shutdown stops the background routines, disconnects every session and
// saves the address book.
func (m *Manager) Shutdown() error {
	if m.cancel == nil {
		return ErrNotStarted
	}
	m.stopOnce.Do(func() {
		m.stopErr = m.shutdown()
	})
	return m.stopErr
}

func (m *Manager) shutdown() error {
	saved := m.addressesToSave()
	m.cancel()
	m.stream.Close()

	err := m.group.Wait()
	m.routines.Wait()

	for _, unsub := range m.unsubscribe {
		unsub()
	}
	m.unsubscribe = nil

	if m.book != nil {
		if serr := m.book.Save(saved); serr != nil {
			m.logger.WithError(serr).Warn("Cannot save address book")
		}
	}
	m.logger.Debug("Node manager stopped")
	return err
}

func (m *Manager) every(interval time.Duration, f func()) error {
	f()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			f()
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Manager) acceptLoop() error {
	for {
		conn, err := m.stream.Accept()
		if err != nil {
			if m.ctx.Err() != nil {
				return nil
			}
			return err
		}

		if m.ConnectedCount() >= m.conf.MaxPeers {
			m.logger.WithField("remote", conn.RemoteAddr().String()).Debug("Pool full, refusing connection")
			conn.Close()
			continue
		}
		m.startSession(conn, conn.RemoteAddr().String(), false, false)
	}
}

func (m *Manager) queueLoop() error {
	for {
		select {
		case q := <-m.queueCh:
			m.group.Go(func() error {
				m.connect(q)
				return nil
			})
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Manager) connect(q queuedAddr) {
	conn, err := m.stream.Dial(q.addr, m.conf.ConnectTimeout)
	if err != nil {
		m.logger.WithError(err).WithField("node", q.addr).Debug("Cannot connect")
		m.mu.Lock()
		delete(m.queued, q.addr)
		m.bad[q.addr] = m.now()
		m.mu.Unlock()
		return
	}
	m.startSession(conn, q.addr, true, q.quality)
}

func (m *Manager) startSession(conn net.Conn, addr string, outbound, quality bool) {
	n := newNode(m, conn, addr, outbound, quality)

	m.mu.Lock()
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.sessions[n] = struct{}{}
	m.routines.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.routines.Done()
		n.run()
	}()
}

func (m *Manager) sessionDone(n *Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, n)
	if n.outbound {
		delete(m.queued, n.ID())
	}
}

// QueueForConnection schedules a connection to addr. Quality checks only
// handshake; success makes the address known, failure makes it bad. It
// returns false when the address is ourself, connected or already queued.
func (m *Manager) QueueForConnection(addr string, qualityCheck bool) bool {
	if m.ctx == nil {
		return false
	}

	m.mu.Lock()
	if addr == m.self {
		m.mu.Unlock()
		return false
	}
	if _, ok := m.connected[addr]; ok {
		m.mu.Unlock()
		return false
	}
	if _, ok := m.queued[addr]; ok {
		m.mu.Unlock()
		return false
	}
	m.queued[addr] = qualityCheck
	m.mu.Unlock()

	select {
	case m.queueCh <- queuedAddr{addr: addr, quality: qualityCheck}:
		return true
	case <-m.ctx.Done():
		m.mu.Lock()
		delete(m.queued, addr)
		m.mu.Unlock()
		return false
	}
}

// AddConnectedNode registers a session that completed its handshake.
func (m *Manager) AddConnectedNode(n *Node) error {
	id := n.ID()

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.queued, id)
	if existing, ok := m.connected[id]; ok && existing != n {
		return ErrAlreadyConnected
	}
	if len(m.connected) >= m.conf.MaxPeers {
		return ErrPoolFull
	}
	m.connected[id] = n
	delete(m.bad, id)
	m.removeKnownLocked(id)

	m.logger.WithFields(logrus.Fields{
		"node":      id,
		"outbound":  n.outbound,
		"height":    n.BestHeight(),
		"connected": len(m.connected),
	}).Info("Node connected")
	return nil
}

// RemoveConnectedNode unregisters n. The address is marked bad.
func (m *Manager) RemoveConnectedNode(n *Node) {
	id := n.ID()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected[id] != n {
		return
	}
	delete(m.connected, id)
	m.bad[id] = m.now()

	m.logger.WithFields(logrus.Fields{
		"node":      id,
		"connected": len(m.connected),
	}).Info("Node disconnected")
}

func (m *Manager) handshakeFailed(n *Node, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.outbound {
		delete(m.queued, n.ID())
		m.bad[n.ID()] = m.now()
		m.removeKnownLocked(n.ID())
	}
}

func (m *Manager) qualityPassed(n *Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := n.ID()
	delete(m.queued, id)
	delete(m.bad, id)
	m.addKnownLocked(id)
}

// ReplaceNode disconnects n, marks its address bad and queues a known
// address in its place.
func (m *Manager) ReplaceNode(n *Node) {
	m.mu.Lock()
	m.bad[n.ID()] = m.now()
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"node":   n.ID(),
		"weight": n.weight.String(),
	}).Info("Replacing node")
	n.Disconnect(ErrReplaced)

	m.mu.Lock()
	addr, ok := m.popKnownLocked()
	m.mu.Unlock()
	if ok {
		m.QueueForConnection(addr, false)
	}
}

// AddNodeErrorCount records a bad response from the node with id and
// replaces it past MaxNodeErrorCount.
func (m *Manager) AddNodeErrorCount(id string) {
	n := m.GetNodeByID(id)
	if n == nil {
		return
	}
	if n.weight.AddError() > m.conf.MaxNodeErrorCount {
		m.ReplaceNode(n)
	}
}

// AddNodeTimeoutCount records a request the node with id did not answer in
// time and replaces it past MaxNodeTimeoutCount.
func (m *Manager) AddNodeTimeoutCount(id string) {
	n := m.GetNodeByID(id)
	if n == nil {
		return
	}
	if n.weight.AddTimeout() > m.conf.MaxNodeTimeoutCount {
		m.ReplaceNode(n)
	}
}

// AddNodeSpeed records a transfer speed in bytes per second.
func (m *Manager) AddNodeSpeed(id string, speed float64) {
	if n := m.GetNodeByID(id); n != nil {
		n.weight.AppendSpeed(speed)
	}
}

// GetNextNode returns the best weighted node that has height, or nil.
func (m *Manager) GetNextNode(height uint32) *Node {
	return selectNode(m.Nodes(), height)
}

// RankNodes returns the nodes that have height, best weighted first.
func (m *Manager) RankNodes(height uint32) []*Node {
	return rankNodes(m.Nodes(), height)
}

// GetNodeByID ...
func (m *Manager) GetNodeByID(id string) *Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected[id]
}

// Nodes returns the connected nodes ordered by id.
func (m *Manager) Nodes() []*Node {
	m.mu.RLock()
	nodes := make([]*Node, 0, len(m.connected))
	for _, n := range m.connected {
		nodes = append(nodes, n)
	}
	m.mu.RUnlock()

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
	return nodes
}

// ConnectedCount ...
func (m *Manager) ConnectedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connected)
}

// QueuedCount ...
func (m *Manager) QueuedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.queued)
}

// KnownCount ...
func (m *Manager) KnownCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.known)
}

// BadCount ...
func (m *Manager) BadCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bad)
}

// KnownAddresses returns the known addresses in the order they will be
// tried.
func (m *Manager) KnownAddresses() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.known...)
}

// BadAddresses ...
func (m *Manager) BadAddresses() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]string, 0, len(m.bad))
	for addr := range m.bad {
		res = append(res, addr)
	}
	sort.Strings(res)
	return res
}

// AddKnownAddresses adds addresses that are neither ourself, connected,
// queued nor bad.
func (m *Manager) AddKnownAddresses(addrs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, addr := range addrs {
		if _, ok := m.bad[addr]; ok {
			continue
		}
		m.addKnownLocked(addr)
	}
}

func (m *Manager) addKnownLocked(addr string) {
	if addr == "" || addr == m.self {
		return
	}
	if _, ok := m.connected[addr]; ok {
		return
	}
	if _, ok := m.queued[addr]; ok {
		return
	}
	if _, ok := m.knownSet[addr]; ok {
		return
	}
	m.known = append(m.known, addr)
	m.knownSet[addr] = struct{}{}
}

func (m *Manager) removeKnownLocked(addr string) {
	if _, ok := m.knownSet[addr]; !ok {
		return
	}
	delete(m.knownSet, addr)
	for i, a := range m.known {
		if a == addr {
			m.known = append(m.known[:i:i], m.known[i+1:]...)
			return
		}
	}
}

func (m *Manager) popKnownLocked() (string, bool) {
	for len(m.known) > 0 {
		addr := m.known[0]
		m.known = m.known[1:]
		delete(m.knownSet, addr)

		if _, ok := m.connected[addr]; ok {
			continue
		}
		if _, ok := m.queued[addr]; ok {
			continue
		}
		return addr, true
	}
	return "", false
}

// checkPool queues known addresses while the pool is short of MaxPeers. When
// no known address is left and fewer than MinPeers are connected, the bad
// addresses become known again after RecycleGrace.
func (m *Manager) checkPool() {
	m.mu.Lock()
	var next []string
	for len(m.connected)+len(m.queued)+len(next) < m.conf.MaxPeers {
		addr, ok := m.popKnownLocked()
		if !ok {
			break
		}
		next = append(next, addr)
	}

	if len(m.known) == 0 && len(next) == 0 && len(m.connected) < m.conf.MinPeers {
		now := m.now()
		switch {
		case m.exhaustedAt.IsZero():
			m.exhaustedAt = now
		case now.Sub(m.exhaustedAt) >= m.conf.RecycleGrace:
			m.recycleLocked()
			m.exhaustedAt = time.Time{}
		}
	} else {
		m.exhaustedAt = time.Time{}
	}
	m.mu.Unlock()

	for _, addr := range next {
		m.QueueForConnection(addr, false)
	}
}

func (m *Manager) recycleLocked() {
	addrs := make([]string, 0, len(m.bad))
	for addr := range m.bad {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	m.bad = make(map[string]time.Time)
	for _, addr := range addrs {
		m.addKnownLocked(addr)
	}
	m.logger.WithField("addresses", len(addrs)).Info("Recycling bad addresses")
}

func (m *Manager) queryPeers() {
	for _, n := range m.Nodes() {
		if err := n.SendGetAddr(); err != nil {
			continue
		}
		n.SendPing()
	}
}

// learnAddresses handles an addr message.
func (m *Manager) learnAddresses(addrs []nnet.NetworkAddressWithTime) {
	list := make([]string, 0, len(addrs))
	for i := range addrs {
		list = append(list, addrs[i].Address())
	}
	m.AddKnownAddresses(list)
}

// addrPayload answers a getaddr from n with connected and known addresses.
func (m *Manager) addrPayload(n *Node) *nnet.AddrPayload {
	candidates := make([]string, 0, nnet.MaxAddrCount)
	for _, other := range m.Nodes() {
		if other != n {
			candidates = append(candidates, other.ID())
		}
	}
	candidates = append(candidates, m.KnownAddresses()...)

	ts := uint32(m.now().Unix())
	p := &nnet.AddrPayload{}
	for _, addr := range candidates {
		if len(p.Addresses) == nnet.MaxAddrCount {
			break
		}
		na, err := nnet.NewNetworkAddress(addr, ts, nnet.ServiceNodeNetwork)
		if err != nil {
			continue
		}
		p.Addresses = append(p.Addresses, na)
	}
	return p
}

// Relay announces inv to every connected node that asked for relay. It
// returns the number of nodes the announcement was queued for.
func (m *Manager) Relay(inv *nnet.InvPayload) int {
	count := 0
	for _, n := range m.Nodes() {
		if v := n.Version(); v != nil && !v.Relay {
			continue
		}
		if n.trySend(nnet.CmdInv, inv) {
			count++
		}
	}
	return count
}

func (m *Manager) onTransactionAdded(e events.Event) {
	ev := e.(events.TransactionAddedEvent)
	m.Relay(&nnet.InvPayload{Type: nnet.InvTx, Hashes: []common.Uint256{ev.Transaction.Hash()}})
}

// onPersistCompleted announces new blocks once the chain has caught up with
// its headers.
func (m *Manager) onPersistCompleted(e events.Event) {
	ev := e.(events.PersistCompletedEvent)
	if ev.Block.Index < m.chain.HeaderHeight() {
		return
	}
	m.Relay(&nnet.InvPayload{Type: nnet.InvBlock, Hashes: []common.Uint256{ev.Block.Hash()}})
}

func (m *Manager) addressesToSave() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]string, 0, len(m.connected)+len(m.known))
	for addr := range m.connected {
		res = append(res, addr)
	}
	sort.Strings(res)
	return append(res, m.known...)
}
