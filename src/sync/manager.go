package sync

import (
	"context"
	"errors"
	"sort"
	gosync "sync"
	"time"

	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/core"
	"github.com/mosaicnetworks/neonode/src/events"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotStarted is returned by Shutdown before Start.
	ErrNotStarted = errors.New("sync manager not started")
	// ErrAlreadyStarted ...
	ErrAlreadyStarted = errors.New("sync manager already started")
)

// RequestInfo is one request sent to one node. Height is the first height
// asked for. Block requests carry one FlightInfo per requested hash.
type RequestInfo struct {
	ID      uint64
	NodeID  string
	Height  uint32
	Start   time.Time
	Flights map[common.Uint256]*FlightInfo
}

// FlightInfo is one requested block that has not arrived yet.
type FlightInfo struct {
	Hash    common.Uint256
	Height  uint32
	Request *RequestInfo
}

// cachedBlock is a received block waiting for the persister, with the node
// that sent it.
type cachedBlock struct {
	block  *core.Block
	nodeID string
}

// Status is a snapshot of the sync manager.
type Status struct {
	Height         uint32
	HeaderHeight   uint32
	HeaderRequest  bool
	BlockRequests  int
	BlocksInFlight int
	CachedBlocks   int
}

// Manager downloads headers and blocks from the peer pool and feeds them to
// the chain.
type Manager struct {
	conf   *Config
	chain  Chain
	peers  Peers
	bus    *events.Bus
	logger *logrus.Entry
	now    func() time.Time

	// mu guards the request tables, the block cache and the health counters
	mu gosync.Mutex

	headerRequest *RequestInfo
	headerHandled bool
	lastHeader    uint32

	nextRequest uint64
	requests    map[uint64]*RequestInfo
	flights     map[common.Uint256]*FlightInfo
	inFlight    map[uint32]*FlightInfo
	cache       map[uint32]cachedBlock
	persisting  uint32

	healthHeight   uint32
	healthFailures int

	headersCh chan events.HeadersReceivedEvent
	persistCh chan struct{}
	kickCh    chan struct{}

	ctx         context.Context
	cancel      context.CancelFunc
	group       *errgroup.Group
	unsubscribe []func()
	stopOnce    gosync.Once
	stopErr     error
}

// NewManager ...
func NewManager(conf *Config, chain Chain, peers Peers, bus *events.Bus, logger *logrus.Entry) *Manager {
	initPrometheusMetrics()

	now := conf.Now
	if now == nil {
		now = time.Now
	}
	queue := conf.HeadersQueueSize
	if queue <= 0 {
		queue = DefaultHeadersQueueSize
	}

	return &Manager{
		conf:      conf,
		chain:     chain,
		peers:     peers,
		bus:       bus,
		logger:    logger,
		now:       now,
		requests:  make(map[uint64]*RequestInfo),
		flights:   make(map[common.Uint256]*FlightInfo),
		inFlight:  make(map[uint32]*FlightInfo),
		cache:     make(map[uint32]cachedBlock),
		headersCh: make(chan events.HeadersReceivedEvent, queue),
		persistCh: make(chan struct{}, 1),
		kickCh:    make(chan struct{}, 1),
	}
}

// Start subscribes to the bus and launches the sync tick, the headers
// worker, the block persister and the health watchdog. They run until ctx is
// cancelled or Shutdown is called.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.group = new(errgroup.Group)
	m.healthHeight = m.chain.Height()
	m.mu.Unlock()

	if m.bus != nil {
		m.unsubscribe = append(m.unsubscribe,
			m.bus.Subscribe(events.HeadersReceived, m.onHeadersReceived),
			m.bus.Subscribe(events.BlockReceived, m.onBlockReceived),
			m.bus.Subscribe(events.BlockAnnounced, m.onBlockAnnounced),
		)
	}

	m.group.Go(m.syncLoop)
	m.group.Go(m.headersLoop)
	m.group.Go(m.persistLoop)
	m.group.Go(m.healthLoop)

	m.logger.WithFields(logrus.Fields{
		"height":        m.chain.Height(),
		"header_height": m.chain.HeaderHeight(),
	}).Debug("Sync manager started")
	return nil
}

// Shutdown stops the background tasks and waits for them. It returns the
// error that stopped the block persister, if any.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel == nil {
		return ErrNotStarted
	}

	m.stopOnce.Do(func() {
		for _, unsubscribe := range m.unsubscribe {
			unsubscribe()
		}
		cancel()
		m.stopErr = m.group.Wait()
		m.logger.Debug("Sync manager stopped")
	})
	return m.stopErr
}

// Status ...
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Height:         m.chain.Height(),
		HeaderHeight:   m.chain.HeaderHeight(),
		HeaderRequest:  m.headerRequest != nil,
		BlockRequests:  len(m.requests),
		BlocksInFlight: len(m.flights),
		CachedBlocks:   len(m.cache),
	}
}

func (m *Manager) syncLoop() error {
	ticker := time.NewTicker(m.conf.SyncInterval)
	defer ticker.Stop()

	for {
		m.CheckTimeout()
		m.SyncHeaders()
		m.SyncBlocks()

		select {
		case <-m.ctx.Done():
			return nil
		case <-ticker.C:
		case <-m.kickCh:
		}
	}
}

func (m *Manager) healthLoop() error {
	ticker := time.NewTicker(m.conf.BlockHealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return nil
		case <-ticker.C:
			m.CheckHealth()
		}
	}
}

// kick wakes the sync loop before its next tick.
func (m *Manager) kick() {
	select {
	case m.kickCh <- struct{}{}:
	default:
	}
}

// pickPeer returns the best node that has height, other than exclude.
func (m *Manager) pickPeer(height uint32, exclude string) Peer {
	if exclude == "" {
		return m.peers.GetNextNode(height)
	}
	for _, p := range m.peers.RankNodes(height) {
		if p.ID() != exclude {
			return p
		}
	}
	return nil
}

func (m *Manager) newRequestLocked(nodeID string, height uint32) *RequestInfo {
	m.nextRequest++
	return &RequestInfo{
		ID:     m.nextRequest,
		NodeID: nodeID,
		Height: height,
		Start:  m.now(),
	}
}

// CheckTimeout expires the requests that have waited longer than their
// timeout. The node that did not answer has its timeout count raised once
// per request, and what is still missing is asked of another node. When no
// other node has it the request is simply dropped.
func (m *Manager) CheckTimeout() {
	m.checkHeaderTimeout()
	m.checkBlockTimeout()
}

// CheckHealth counts the calls during which the chain did not grow. When
// BlockHealthFailures is reached every connected node is replaced.
func (m *Manager) CheckHealth() {
	height := m.chain.Height()

	m.mu.Lock()
	if height != m.healthHeight {
		m.healthHeight = height
		m.healthFailures = 0
		m.mu.Unlock()
		return
	}
	m.healthFailures++
	failures := m.healthFailures
	stalled := failures >= m.conf.BlockHealthFailures
	if stalled {
		m.healthFailures = 0
	}
	m.mu.Unlock()

	if !stalled {
		m.logger.WithFields(logrus.Fields{
			"height":   height,
			"failures": failures,
		}).Debug("Block height did not advance")
		return
	}

	nodes := m.peers.Nodes()
	m.logger.WithFields(logrus.Fields{
		"height": height,
		"nodes":  len(nodes),
	}).Warn("Block height stalled, replacing all nodes")
	prometheusHealthReplacements.Inc()

	for _, p := range nodes {
		m.peers.ReplaceNode(p.ID())
	}
}

func (m *Manager) onHeadersReceived(e events.Event) {
	ev := e.(events.HeadersReceivedEvent)
	select {
	case m.headersCh <- ev:
	default:
		m.logger.WithField("node", ev.NodeID).Debug("Headers queue full, dropping headers")
	}
}

func (m *Manager) headersLoop() error {
	for {
		select {
		case <-m.ctx.Done():
			return nil
		case ev := <-m.headersCh:
			m.OnHeadersReceived(ev.NodeID, ev.Headers)
		}
	}
}

func (m *Manager) onBlockReceived(e events.Event) {
	ev := e.(events.BlockReceivedEvent)
	m.OnBlockReceived(ev.NodeID, ev.Block)
}

func (m *Manager) onBlockAnnounced(events.Event) {
	m.kick()
}

func sortedRequestIDs(requests map[uint64]*RequestInfo) []uint64 {
	ids := make([]uint64, 0, len(requests))
	for id := range requests {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
