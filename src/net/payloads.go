package net

import (
	"errors"
	"net"
	"strconv"

	"github.com/mosaicnetworks/neonode/src/codec"
	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/core"
)

// Payload limits.
const (
	MaxAddrCount    = 200
	MaxInvHashes    = 500
	MaxHeadersCount = 2000
	MaxLocatorSize  = 16
	MaxUserAgentLen = 1024
)

// ProtocolVersion is advertised in the version message.
const ProtocolVersion uint32 = 0

// ServiceNodeNetwork marks a node that serves the full chain.
const ServiceNodeNetwork uint64 = 1

// ErrInvalidInvType ...
var ErrInvalidInvType = errors.New("invalid inventory type")

// VersionPayload opens a handshake.
type VersionPayload struct {
	Version     uint32
	Services    uint64
	Timestamp   uint32
	Port        uint16
	Nonce       uint32
	UserAgent   string
	StartHeight uint32
	Relay       bool
}

// EncodeBinary ...
func (p *VersionPayload) EncodeBinary(w *codec.BinWriter) {
	w.WriteU32LE(p.Version)
	w.WriteU64LE(p.Services)
	w.WriteU32LE(p.Timestamp)
	w.WriteU16LE(p.Port)
	w.WriteU32LE(p.Nonce)
	w.WriteString(p.UserAgent)
	w.WriteU32LE(p.StartHeight)
	w.WriteBool(p.Relay)
}

// DecodeBinary ...
func (p *VersionPayload) DecodeBinary(r *codec.BinReader) {
	p.Version = r.ReadU32LE()
	p.Services = r.ReadU64LE()
	p.Timestamp = r.ReadU32LE()
	p.Port = r.ReadU16LE()
	p.Nonce = r.ReadU32LE()
	p.UserAgent = r.ReadString(MaxUserAgentLen)
	p.StartHeight = r.ReadU32LE()
	p.Relay = r.ReadBool()
}

// NetworkAddressWithTime is one entry of an addr message. IPv4 addresses are
// stored IPv4-mapped in the 16 byte field and the port is big-endian.
type NetworkAddressWithTime struct {
	Timestamp uint32
	Services  uint64
	IP        [16]byte
	Port      uint16
}

// NewNetworkAddress builds an entry from a host:port string.
func NewNetworkAddress(addr string, timestamp uint32, services uint64) (NetworkAddressWithTime, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return NetworkAddressWithTime{}, err
	}
	na := NetworkAddressWithTime{
		Timestamp: timestamp,
		Services:  services,
		Port:      uint16(tcpAddr.Port),
	}
	copy(na.IP[:], tcpAddr.IP.To16())
	return na, nil
}

// Address returns the host:port form.
func (na *NetworkAddressWithTime) Address() string {
	return net.JoinHostPort(net.IP(na.IP[:]).String(), strconv.Itoa(int(na.Port)))
}

// EncodeBinary ...
func (na *NetworkAddressWithTime) EncodeBinary(w *codec.BinWriter) {
	w.WriteU32LE(na.Timestamp)
	w.WriteU64LE(na.Services)
	w.WriteBytes(na.IP[:])
	w.WriteU16BE(na.Port)
}

// DecodeBinary ...
func (na *NetworkAddressWithTime) DecodeBinary(r *codec.BinReader) {
	na.Timestamp = r.ReadU32LE()
	na.Services = r.ReadU64LE()
	copy(na.IP[:], r.ReadBytes(16))
	na.Port = r.ReadU16BE()
}

// AddrPayload ...
type AddrPayload struct {
	Addresses []NetworkAddressWithTime
}

// EncodeBinary ...
func (p *AddrPayload) EncodeBinary(w *codec.BinWriter) {
	codec.WriteArray(w, p.Addresses)
}

// DecodeBinary ...
func (p *AddrPayload) DecodeBinary(r *codec.BinReader) {
	p.Addresses = codec.ReadArray[NetworkAddressWithTime](r, MaxAddrCount)
}

// InvType is the kind of inventory an inv or getdata message refers to.
type InvType uint8

// Inventory types.
const (
	InvTx        InvType = 0x01
	InvBlock     InvType = 0x02
	InvConsensus InvType = 0xe0
)

func (t InvType) String() string {
	switch t {
	case InvTx:
		return "tx"
	case InvBlock:
		return "block"
	case InvConsensus:
		return "consensus"
	default:
		return "unknown(" + strconv.Itoa(int(t)) + ")"
	}
}

// InvPayload is the payload of inv and getdata.
type InvPayload struct {
	Type   InvType
	Hashes []common.Uint256
}

// EncodeBinary ...
func (p *InvPayload) EncodeBinary(w *codec.BinWriter) {
	w.WriteU8(uint8(p.Type))
	w.WriteUint256Array(p.Hashes)
}

// DecodeBinary ...
func (p *InvPayload) DecodeBinary(r *codec.BinReader) {
	p.Type = InvType(r.ReadU8())
	switch p.Type {
	case InvTx, InvBlock, InvConsensus:
	default:
		if r.Err == nil {
			r.Err = ErrInvalidInvType
		}
		return
	}
	p.Hashes = r.ReadUint256Array(MaxInvHashes)
}

// GetBlocksPayload is the payload of getheaders and getblocks. The remote
// answers with what follows the first start hash it knows, up to HashStop
// or its limit when HashStop is zero.
type GetBlocksPayload struct {
	HashStart []common.Uint256
	HashStop  common.Uint256
}

// EncodeBinary ...
func (p *GetBlocksPayload) EncodeBinary(w *codec.BinWriter) {
	w.WriteUint256Array(p.HashStart)
	w.WriteUint256(p.HashStop)
}

// DecodeBinary ...
func (p *GetBlocksPayload) DecodeBinary(r *codec.BinReader) {
	p.HashStart = r.ReadUint256Array(MaxLocatorSize)
	p.HashStop = r.ReadUint256()
}

// HeadersPayload ...
type HeadersPayload struct {
	Headers []*core.Header
}

// EncodeBinary ...
func (p *HeadersPayload) EncodeBinary(w *codec.BinWriter) {
	codec.WritePtrArray(w, p.Headers)
}

// DecodeBinary ...
func (p *HeadersPayload) DecodeBinary(r *codec.BinReader) {
	p.Headers = codec.ReadPtrArray[core.Header](r, MaxHeadersCount)
}

// PingPayload is the payload of ping and pong.
type PingPayload struct {
	LastBlockIndex uint32
	Timestamp      uint32
	Nonce          uint32
}

// EncodeBinary ...
func (p *PingPayload) EncodeBinary(w *codec.BinWriter) {
	w.WriteU32LE(p.LastBlockIndex)
	w.WriteU32LE(p.Timestamp)
	w.WriteU32LE(p.Nonce)
}

// DecodeBinary ...
func (p *PingPayload) DecodeBinary(r *codec.BinReader) {
	p.LastBlockIndex = r.ReadU32LE()
	p.Timestamp = r.ReadU32LE()
	p.Nonce = r.ReadU32LE()
}
