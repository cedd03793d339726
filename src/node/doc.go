// Package node manages the connections of a neonode process to its peers.
//
// Sessions
//
// A Node is one connection. It starts in the Connecting state, sends a
// version message and waits for the remote version (AwaitingVersion), answers
// with verack and waits for the remote verack (AwaitingVerack). A session
// whose remote advertises our own nonce is a connection to ourself and is
// dropped. Once both sides have acknowledged, the session is Ready and serves
// messages until it is disconnected. Disconnection always goes through one
// path, whatever triggered it: a protocol error, a manager decision, or the
// remote closing the connection.
//
// Quality-check sessions only prove that an address speaks the protocol. They
// close as soon as the handshake completes.
//
// Manager
//
// The Manager keeps the number of Ready sessions between MinPeers and
// MaxPeers. Addresses are either connected, queued for connection, known
// (learned from seeds, addr messages or the address book) or bad. Sessions
// that misbehave accumulate error and timeout counts; past a threshold the
// node is replaced by another known address. When the known list runs dry
// while the pool is short, bad addresses are given another chance after a
// grace period.
//
// Requests for data are sent to the node with the highest NodeWeight that
// claims to have the requested height.
package node
