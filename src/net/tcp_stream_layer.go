package net

import (
	"errors"
	"net"
	"time"
)

// keepAlivePeriod applies to dialed and accepted peer connections. Neo
// sessions stay open for hours with long quiet stretches.
const keepAlivePeriod = 30 * time.Second

var (
	errNotAdvertisable = errors.New("local bind address is not advertisable")
	errNotTCP          = errors.New("local address is not a TCP address")
)

// TCPStreamLayer is the StreamLayer used on real networks.
type TCPStreamLayer struct {
	advertise string
	listener  *net.TCPListener
	dialer    net.Dialer
}

// NewTCPStreamLayer binds bindAddr. The advertise address, or the bound
// address when advertise is empty, must be a concrete TCP address since it is
// what other nodes are told to dial.
func NewTCPStreamLayer(bindAddr string, advertise string) (*TCPStreamLayer, error) {
	if advertise != "" {
		if err := checkAdvertisable(advertise); err != nil {
			return nil, err
		}
	}

	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	if advertise == "" {
		if err := checkAdvertisable(ln.Addr().String()); err != nil {
			ln.Close()
			return nil, err
		}
	}

	return &TCPStreamLayer{
		advertise: advertise,
		listener:  ln.(*net.TCPListener),
		dialer:    net.Dialer{KeepAlive: keepAlivePeriod},
	}, nil
}

func checkAdvertisable(addr string) error {
	resolved, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return errNotTCP
	}
	if resolved.IP == nil || resolved.IP.IsUnspecified() {
		return errNotAdvertisable
	}
	return nil
}

// Dial opens an outbound peer connection.
func (t *TCPStreamLayer) Dial(address string, timeout time.Duration) (net.Conn, error) {
	d := t.dialer
	d.Timeout = timeout
	return d.Dial("tcp", address)
}

// Accept waits for the next inbound peer connection.
func (t *TCPStreamLayer) Accept() (net.Conn, error) {
	conn, err := t.listener.AcceptTCP()
	if err != nil {
		return nil, err
	}
	conn.SetKeepAlive(true)
	conn.SetKeepAlivePeriod(keepAlivePeriod)
	return conn, nil
}

// Close stops the listener. Established connections are not affected.
func (t *TCPStreamLayer) Close() error {
	return t.listener.Close()
}

// Addr ...
func (t *TCPStreamLayer) Addr() net.Addr {
	return t.listener.Addr()
}

// AdvertiseAddr is the address sent to peers in addr messages.
func (t *TCPStreamLayer) AdvertiseAddr() string {
	if t.advertise != "" {
		return t.advertise
	}
	return t.listener.Addr().String()
}
