package net

import (
	"net"
	"time"
)

// StreamLayer carries Neo peer sessions. Accept yields inbound connections
// from the bind address; each connection then carries framed messages in
// both directions until one side closes it.
type StreamLayer interface {
	net.Listener

	// Dial opens an outbound session to a peer address. It gives up after
	// timeout.
	Dial(address string, timeout time.Duration) (net.Conn, error)

	// AdvertiseAddr is the address this node tells peers to dial.
	AdvertiseAddr() string
}
