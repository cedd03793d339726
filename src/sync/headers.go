package sync

import (
	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/core"
	"github.com/sirupsen/logrus"
)

// SyncHeaders asks the best node for the headers following the header chain.
// Nothing is sent while a header request is outstanding, when the header
// chain is HeaderMaxLookAhead ahead of the blocks, or when no node is higher.
func (m *Manager) SyncHeaders() {
	m.mu.Lock()
	if m.headerRequest != nil {
		m.mu.Unlock()
		return
	}
	start := m.chain.CurrentHeaderHash()
	headerHeight := m.chain.HeaderHeight()
	// the chain may have persisted past the header height read above
	if height := m.chain.Height(); headerHeight > height && headerHeight-height >= m.conf.HeaderMaxLookAhead {
		m.mu.Unlock()
		return
	}
	p := m.pickPeer(headerHeight+1, "")
	if p == nil {
		m.mu.Unlock()
		return
	}
	req := m.newRequestLocked(p.ID(), headerHeight+1)
	m.headerRequest = req
	m.mu.Unlock()

	m.sendHeaderRequest(p, req, start)
}

func (m *Manager) sendHeaderRequest(p Peer, req *RequestInfo, start common.Uint256) {
	if err := p.GetHeaders(start); err != nil {
		m.logger.WithError(err).WithField("node", p.ID()).Debug("Sending getheaders failed")

		m.mu.Lock()
		if m.headerRequest == req {
			m.headerRequest = nil
		}
		m.mu.Unlock()

		m.peers.AddNodeErrorCount(p.ID())
		return
	}

	m.logger.WithFields(logrus.Fields{
		"node":   p.ID(),
		"height": req.Height,
	}).Debug("Requested headers")
}

// OnHeadersReceived hands headers to the chain if they answer the
// outstanding header request. Of several identical answers only the first is
// accepted; the others are reported as HeadersAlreadyHandled.
func (m *Manager) OnHeadersReceived(nodeID string, headers []*core.Header) HeaderStatus {
	if len(headers) == 0 {
		m.mu.Lock()
		if req := m.headerRequest; req != nil && req.NodeID == nodeID {
			m.headerRequest = nil
		}
		m.mu.Unlock()
		return m.discardHeaders(nodeID, headers, HeadersEmpty)
	}

	if status := m.claimHeaders(headers[0].Index); status != HeadersAccepted {
		return m.discardHeaders(nodeID, headers, status)
	}

	added, err := m.chain.AddHeaders(headers)
	if err != nil {
		m.logger.WithError(err).WithFields(logrus.Fields{
			"node":  nodeID,
			"added": added,
			"count": len(headers),
		}).Warn("Invalid headers")
		m.peers.AddNodeErrorCount(nodeID)
		if added == 0 {
			return m.discardHeaders(nodeID, headers, HeadersRejected)
		}
	}

	prometheusHeadersAdded.Add(float64(added))
	m.logger.WithFields(logrus.Fields{
		"node":          nodeID,
		"added":         added,
		"header_height": m.chain.HeaderHeight(),
	}).Debug("Headers added")

	m.kick()
	return HeadersAccepted
}

// claimHeaders clears the outstanding request if first is the height it
// asked for.
func (m *Manager) claimHeaders(first uint32) HeaderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	req := m.headerRequest
	switch {
	case req != nil && req.Height == first:
		m.headerRequest = nil
		m.headerHandled = true
		m.lastHeader = first
		return HeadersAccepted
	case m.headerHandled && first <= m.lastHeader:
		return HeadersAlreadyHandled
	case req == nil:
		return HeadersNotRequested
	default:
		return HeadersHeightMismatch
	}
}

func (m *Manager) discardHeaders(nodeID string, headers []*core.Header, status HeaderStatus) HeaderStatus {
	prometheusDiscarded.WithLabelValues("headers", status.String()).Inc()

	fields := logrus.Fields{
		"node":   nodeID,
		"count":  len(headers),
		"status": status.String(),
	}
	if len(headers) > 0 {
		fields["first"] = headers[0].Index
	}
	m.logger.WithFields(fields).Debug("Headers discarded")
	return status
}

func (m *Manager) checkHeaderTimeout() {
	now := m.now()

	m.mu.Lock()
	req := m.headerRequest
	if req == nil || now.Sub(req.Start) < m.conf.HeaderRequestTimeout {
		m.mu.Unlock()
		return
	}
	m.headerRequest = nil
	superseded := m.chain.HeaderHeight() >= req.Height
	m.mu.Unlock()

	if superseded {
		m.logger.WithField("height", req.Height).Debug("Header request superseded")
		return
	}

	m.logger.WithFields(logrus.Fields{
		"node":   req.NodeID,
		"height": req.Height,
	}).Info("Header request timed out")
	prometheusTimeouts.WithLabelValues("headers").Inc()
	m.peers.AddNodeTimeoutCount(req.NodeID)

	m.retryHeaders(req)
}

func (m *Manager) retryHeaders(failed *RequestInfo) {
	m.mu.Lock()
	if m.headerRequest != nil {
		m.mu.Unlock()
		return
	}
	p := m.pickPeer(failed.Height, failed.NodeID)
	if p == nil {
		m.mu.Unlock()
		m.logger.WithField("height", failed.Height).Debug("No node to retry headers with")
		return
	}
	req := m.newRequestLocked(p.ID(), failed.Height)
	m.headerRequest = req
	start := m.chain.CurrentHeaderHash()
	m.mu.Unlock()

	prometheusRetries.WithLabelValues("headers").Inc()
	m.sendHeaderRequest(p, req, start)
}
