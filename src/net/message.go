package net

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/mosaicnetworks/neonode/src/codec"
	"github.com/mosaicnetworks/neonode/src/crypto"
)

const (
	headerSize  = 24
	commandSize = 12

	// DefaultMaxPayload is the largest payload accepted by ReadMessage unless
	// the caller asks otherwise.
	DefaultMaxPayload uint32 = 0x02000000
)

// Commands.
const (
	CmdVersion    = "version"
	CmdVerack     = "verack"
	CmdAddr       = "addr"
	CmdGetAddr    = "getaddr"
	CmdInv        = "inv"
	CmdGetData    = "getdata"
	CmdGetHeaders = "getheaders"
	CmdGetBlocks  = "getblocks"
	CmdHeaders    = "headers"
	CmdBlock      = "block"
	CmdTx         = "tx"
	CmdConsensus  = "consensus"
	CmdMempool    = "mempool"
	CmdPing       = "ping"
	CmdPong       = "pong"
)

var (
	// ErrChecksumMismatch ...
	ErrChecksumMismatch = errors.New("message checksum mismatch")
	// ErrMagicMismatch ...
	ErrMagicMismatch = errors.New("message magic mismatch")
	// ErrPayloadTooLarge ...
	ErrPayloadTooLarge = errors.New("message payload too large")
	// ErrInvalidCommand ...
	ErrInvalidCommand = errors.New("invalid message command")
)

// Message is one framed protocol message.
type Message struct {
	Magic   uint32
	Command string
	Payload []byte
}

// NewMessage encodes payload, which may be nil, into a message.
func NewMessage(magic uint32, command string, payload codec.Serializable) (*Message, error) {
	m := &Message{Magic: magic, Command: command}
	if payload != nil {
		data, err := codec.ToBytes(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", command, err)
		}
		m.Payload = data
	}
	return m, nil
}

// Decode decodes the payload into s. Trailing bytes are an error.
func (m *Message) Decode(s codec.Serializable) error {
	if err := codec.FromBytesStrict(m.Payload, s); err != nil {
		return fmt.Errorf("decode %s: %w", m.Command, err)
	}
	return nil
}

// WriteMessage writes the framed message to w in a single Write.
func WriteMessage(w io.Writer, m *Message) error {
	cmd, err := encodeCommand(m.Command)
	if err != nil {
		return err
	}

	buf := make([]byte, headerSize+len(m.Payload))
	binary.LittleEndian.PutUint32(buf[0:4], m.Magic)
	copy(buf[4:16], cmd[:])
	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(m.Payload)))
	binary.LittleEndian.PutUint32(buf[20:24], crypto.Checksum(m.Payload))
	copy(buf[headerSize:], m.Payload)

	_, err = w.Write(buf)
	return err
}

// ReadMessage reads one message from r. The header is checked before the
// payload is read, so an oversized or foreign message costs no allocation.
func ReadMessage(r io.Reader, magic uint32, maxPayload uint32) (*Message, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	if got := binary.LittleEndian.Uint32(header[0:4]); got != magic {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrMagicMismatch, got, magic)
	}
	cmd, err := decodeCommand(header[4:16])
	if err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(header[16:20])
	if length > maxPayload {
		return nil, fmt.Errorf("%w: %s of %d bytes", ErrPayloadTooLarge, cmd, length)
	}
	checksum := binary.LittleEndian.Uint32(header[20:24])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	if crypto.Checksum(payload) != checksum {
		return nil, fmt.Errorf("%w: %s", ErrChecksumMismatch, cmd)
	}

	return &Message{Magic: magic, Command: cmd, Payload: payload}, nil
}

func encodeCommand(s string) ([commandSize]byte, error) {
	var cmd [commandSize]byte
	if len(s) == 0 || len(s) > commandSize {
		return cmd, fmt.Errorf("%w: %q", ErrInvalidCommand, s)
	}
	for i := 0; i < len(s); i++ {
		if s[i] <= 0x20 || s[i] >= 0x7f {
			return cmd, fmt.Errorf("%w: %q", ErrInvalidCommand, s)
		}
	}
	copy(cmd[:], s)
	return cmd, nil
}

func decodeCommand(b []byte) (string, error) {
	n := bytes.IndexByte(b, 0)
	if n < 0 {
		n = len(b)
	}
	for _, c := range b[n:] {
		if c != 0 {
			return "", fmt.Errorf("%w: %q", ErrInvalidCommand, b)
		}
	}
	s := string(b[:n])
	if _, err := encodeCommand(s); err != nil {
		return "", err
	}
	return s, nil
}
