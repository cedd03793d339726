// Package net implements the wire protocol spoken between nodes.
//
// Every message is framed by a 24 byte header:
//
//	magic    uint32 LE  network identifier
//	command  [12]byte   ASCII, zero padded
//	length   uint32 LE  payload length
//	checksum uint32 LE  first 4 bytes of SHA256(SHA256(payload))
//
// followed by the payload. Payloads are encoded with the codec package.
//
// Connections are provided by a StreamLayer. TCPStreamLayer is the production
// implementation; InmemStreamLayer connects nodes of the same process through
// net.Pipe and is used in tests.
package net
