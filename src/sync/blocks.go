package sync

import (
	"fmt"
	"runtime"
	"sort"

	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/core"
	"github.com/mosaicnetworks/neonode/src/ledger"
	nnet "github.com/mosaicnetworks/neonode/src/net"
	"github.com/sirupsen/logrus"
)

// SyncBlocks requests the blocks whose headers are known but which are not
// stored, cached or in flight. A request holds at most BlockNetworkReqLimit
// hashes and the cache plus the flights never exceed BlockMaxCacheSize.
func (m *Manager) SyncBlocks() {
	m.mu.Lock()
	height, headerHeight := m.chain.Height(), m.chain.HeaderHeight()
	limit := m.conf.BlockMaxCacheSize - len(m.cache) - len(m.flights)
	if limit > m.conf.BlockNetworkReqLimit {
		limit = m.conf.BlockNetworkReqLimit
	}
	var heights []uint32
	for h := height + 1; h <= headerHeight && len(heights) < limit; h++ {
		if m.pendingLocked(h) {
			continue
		}
		heights = append(heights, h)
	}
	m.mu.Unlock()

	if len(heights) > 0 {
		m.requestBlocks(heights, "")
	}
}

// pendingLocked reports whether the block at height is cached, in flight or
// being persisted.
func (m *Manager) pendingLocked(height uint32) bool {
	if _, ok := m.cache[height]; ok {
		return true
	}
	if _, ok := m.inFlight[height]; ok {
		return true
	}
	return height == m.persisting
}

// requestBlocks sends a single getdata for heights to the best node other
// than exclude. Heights that became stored or pending meanwhile are skipped.
// It reports whether a request went out.
func (m *Manager) requestBlocks(heights []uint32, exclude string) bool {
	m.mu.Lock()
	height := m.chain.Height()
	wanted := make([]uint32, 0, len(heights))
	for _, h := range heights {
		if h > height && !m.pendingLocked(h) {
			wanted = append(wanted, h)
		}
	}
	if len(wanted) == 0 {
		m.mu.Unlock()
		return false
	}

	p := m.pickPeer(wanted[len(wanted)-1], exclude)
	if p == nil {
		// nobody has the whole batch; ask for the part the best node has
		if p = m.pickPeer(wanted[0], exclude); p == nil {
			m.mu.Unlock()
			return false
		}
		best := p.BestHeight()
		n := sort.Search(len(wanted), func(i int) bool { return wanted[i] > best })
		wanted = wanted[:n]
	}

	req := m.newRequestLocked(p.ID(), wanted[0])
	req.Flights = make(map[common.Uint256]*FlightInfo, len(wanted))
	hashes := make([]common.Uint256, 0, len(wanted))
	for _, h := range wanted {
		hash, ok := m.chain.GetHeaderHash(h)
		if !ok {
			break
		}
		f := &FlightInfo{Hash: hash, Height: h, Request: req}
		req.Flights[hash] = f
		m.flights[hash] = f
		m.inFlight[h] = f
		hashes = append(hashes, hash)
	}
	if len(hashes) == 0 {
		m.mu.Unlock()
		return false
	}
	m.requests[req.ID] = req
	prometheusBlocksInFlight.Set(float64(len(m.flights)))
	m.mu.Unlock()

	if err := p.GetData(nnet.InvBlock, hashes); err != nil {
		m.logger.WithError(err).WithField("node", p.ID()).Debug("Sending getdata failed")

		m.mu.Lock()
		m.dropRequestLocked(req)
		m.mu.Unlock()

		m.peers.AddNodeErrorCount(p.ID())
		return false
	}

	m.logger.WithFields(logrus.Fields{
		"node":  p.ID(),
		"from":  wanted[0],
		"count": len(hashes),
	}).Debug("Requested blocks")
	return true
}

// landLocked removes f from the flight tables and its request, dropping the
// request with its last flight.
func (m *Manager) landLocked(f *FlightInfo) {
	delete(m.flights, f.Hash)
	if m.inFlight[f.Height] == f {
		delete(m.inFlight, f.Height)
	}
	req := f.Request
	delete(req.Flights, f.Hash)
	if len(req.Flights) == 0 {
		delete(m.requests, req.ID)
	}
	prometheusBlocksInFlight.Set(float64(len(m.flights)))
}

func (m *Manager) dropRequestLocked(req *RequestInfo) {
	for _, f := range req.Flights {
		m.landLocked(f)
	}
	delete(m.requests, req.ID)
}

// OnBlockReceived caches a requested block for the persister. Of several
// identical answers only the first is accepted; the others find the block
// cached or already stored.
func (m *Manager) OnBlockReceived(nodeID string, block *core.Block) BlockStatus {
	hash := block.Hash()

	m.mu.Lock()
	status := m.receiveLocked(nodeID, hash, block)
	cached := len(m.cache)
	m.mu.Unlock()

	fields := logrus.Fields{
		"node":   nodeID,
		"index":  block.Index,
		"status": status.String(),
	}
	if status != BlockAccepted {
		prometheusDiscarded.WithLabelValues("block", status.String()).Inc()
		m.logger.WithFields(fields).Debug("Block discarded")
		return status
	}

	prometheusCachedBlocks.Set(float64(cached))
	m.logger.WithFields(fields).Debug("Block cached")

	select {
	case m.persistCh <- struct{}{}:
	default:
	}
	return status
}

func (m *Manager) receiveLocked(nodeID string, hash common.Uint256, block *core.Block) BlockStatus {
	f, requested := m.flights[hash]
	if requested {
		m.landLocked(f)
	}

	if block.Index <= m.chain.Height() || block.Index == m.persisting {
		return BlockAlreadyPersisted
	}
	if _, ok := m.cache[block.Index]; ok {
		return BlockAlreadyCached
	}
	if !requested {
		return BlockNotRequested
	}
	m.cache[block.Index] = cachedBlock{block: block, nodeID: nodeID}
	return BlockAccepted
}

func (m *Manager) checkBlockTimeout() {
	type expired struct {
		nodeID  string
		heights []uint32
	}

	now := m.now()
	var batches []expired
	pruned := 0

	m.mu.Lock()
	height := m.chain.Height()
	for _, id := range sortedRequestIDs(m.requests) {
		req := m.requests[id]
		if now.Sub(req.Start) < m.conf.BlockRequestTimeout {
			continue
		}
		var missing []uint32
		for _, f := range req.Flights {
			if f.Height > height && !m.cachedLocked(f.Height) {
				missing = append(missing, f.Height)
			}
		}
		m.dropRequestLocked(req)
		if len(missing) == 0 {
			pruned++
			continue
		}
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		batches = append(batches, expired{nodeID: req.NodeID, heights: missing})
	}
	m.mu.Unlock()

	if pruned > 0 {
		m.logger.WithField("requests", pruned).Debug("Pruned answered block requests")
	}

	for _, b := range batches {
		m.logger.WithFields(logrus.Fields{
			"node":    b.nodeID,
			"from":    b.heights[0],
			"missing": len(b.heights),
		}).Info("Block request timed out")
		prometheusTimeouts.WithLabelValues("blocks").Inc()
		m.peers.AddNodeTimeoutCount(b.nodeID)

		if m.requestBlocks(b.heights, b.nodeID) {
			prometheusRetries.WithLabelValues("blocks").Inc()
		} else {
			m.logger.WithField("from", b.heights[0]).Debug("No node to retry blocks with")
		}
	}
}

func (m *Manager) cachedLocked(height uint32) bool {
	_, ok := m.cache[height]
	return ok || height == m.persisting
}

func (m *Manager) persistLoop() error {
	for {
		select {
		case <-m.ctx.Done():
			return nil
		case <-m.persistCh:
		}

		if err := m.persistCached(); err != nil {
			m.logger.WithError(err).Error("Block persister stopped")
			return err
		}
		m.kick()
	}
}

// persistCached hands the cached blocks to the chain in height order until
// the next height is missing. A block the chain rejects is dropped, its
// sender is charged an error and the height is requested again. Any other
// failure is returned and stops the persister.
func (m *Manager) persistCached() error {
	for m.ctx.Err() == nil {
		cb, ok := m.nextCached()
		if !ok {
			return nil
		}
		block := cb.block

		res, err := m.chain.TryPersist(block)

		m.mu.Lock()
		m.persisting = 0
		if res == ledger.ResultOutOfOrder && err == nil {
			m.cache[block.Index] = cb
		}
		m.mu.Unlock()

		if err != nil && ledger.IsInvalidBlock(err) {
			m.logger.WithError(err).WithFields(logrus.Fields{
				"node":  cb.nodeID,
				"index": block.Index,
			}).Warn("Block rejected by the chain")
			prometheusDiscarded.WithLabelValues("block", "Invalid").Inc()
			m.peers.AddNodeErrorCount(cb.nodeID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("persist block %d: %w", block.Index, err)
		}
		if res == ledger.ResultOutOfOrder {
			return nil
		}
		if res == ledger.ResultPersisted {
			prometheusBlocksPersisted.Inc()
		}

		runtime.Gosched()
	}
	return nil
}

// nextCached takes the block following the chain out of the cache and drops
// cached blocks the chain has passed.
func (m *Manager) nextCached() (cachedBlock, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.chain.Height() + 1
	for h := range m.cache {
		if h < next {
			delete(m.cache, h)
		}
	}
	cb, ok := m.cache[next]
	if ok {
		delete(m.cache, next)
		m.persisting = next
	}
	prometheusCachedBlocks.Set(float64(len(m.cache)))
	return cb, ok
}
