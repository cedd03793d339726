package net

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

var (
	// ErrListenerClosed is returned by Accept and Dial once a layer is closed.
	ErrListenerClosed = errors.New("listener closed")
	// ErrConnectionRefused is returned when no layer listens on the address.
	ErrConnectionRefused = errors.New("connection refused")
)

// InmemNetwork routes connections between InmemStreamLayers of the same
// process. Addresses must parse as TCP addresses so remote endpoints look
// like real ones.
type InmemNetwork struct {
	sync.RWMutex
	layers map[string]*InmemStreamLayer
}

// NewInmemNetwork ...
func NewInmemNetwork() *InmemNetwork {
	return &InmemNetwork{layers: make(map[string]*InmemStreamLayer)}
}

// Listen creates a layer reachable at addr.
func (n *InmemNetwork) Listen(addr string) (*InmemStreamLayer, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}

	n.Lock()
	defer n.Unlock()
	if _, ok := n.layers[addr]; ok {
		return nil, fmt.Errorf("address %s already in use", addr)
	}
	l := &InmemStreamLayer{
		network:  n,
		addr:     tcpAddr,
		acceptCh: make(chan net.Conn, 16),
		shutdown: make(chan struct{}),
	}
	n.layers[addr] = l
	return l, nil
}

func (n *InmemNetwork) lookup(addr string) (*InmemStreamLayer, bool) {
	n.RLock()
	defer n.RUnlock()
	l, ok := n.layers[addr]
	return l, ok
}

func (n *InmemNetwork) remove(l *InmemStreamLayer) {
	n.Lock()
	defer n.Unlock()
	if n.layers[l.addr.String()] == l {
		delete(n.layers, l.addr.String())
	}
}

// InmemStreamLayer implements StreamLayer on top of net.Pipe.
type InmemStreamLayer struct {
	network  *InmemNetwork
	addr     *net.TCPAddr
	acceptCh chan net.Conn

	shutdownLock sync.Mutex
	shutdown     chan struct{}
	closed       bool
}

// Dial implements the StreamLayer interface.
func (l *InmemStreamLayer) Dial(address string, timeout time.Duration) (net.Conn, error) {
	target, ok := l.network.lookup(address)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConnectionRefused, address)
	}

	local, remote := net.Pipe()
	in := &inmemConn{Conn: remote, local: target.addr, remote: l.addr}
	out := &inmemConn{Conn: local, local: l.addr, remote: target.addr}

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case target.acceptCh <- in:
		return out, nil
	case <-target.shutdown:
		return nil, fmt.Errorf("%w: %s", ErrConnectionRefused, address)
	case <-l.shutdown:
		return nil, ErrListenerClosed
	case <-timer:
		return nil, fmt.Errorf("dial %s: i/o timeout", address)
	}
}

// Accept implements the net.Listener interface.
func (l *InmemStreamLayer) Accept() (net.Conn, error) {
	select {
	case c := <-l.acceptCh:
		return c, nil
	case <-l.shutdown:
		return nil, ErrListenerClosed
	}
}

// Close implements the net.Listener interface.
func (l *InmemStreamLayer) Close() error {
	l.shutdownLock.Lock()
	defer l.shutdownLock.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	close(l.shutdown)
	l.network.remove(l)
	return nil
}

// Addr implements the net.Listener interface.
func (l *InmemStreamLayer) Addr() net.Addr {
	return l.addr
}

// AdvertiseAddr implements the StreamLayer interface.
func (l *InmemStreamLayer) AdvertiseAddr() string {
	return l.addr.String()
}

type inmemConn struct {
	net.Conn
	local  net.Addr
	remote net.Addr
}

func (c *inmemConn) LocalAddr() net.Addr  { return c.local }
func (c *inmemConn) RemoteAddr() net.Addr { return c.remote }
