package net

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/mosaicnetworks/neonode/src/crypto"
)

const testMagic uint32 = 7630401

func TestMessageRoundTrip(t *testing.T) {
	ping := &PingPayload{LastBlockIndex: 10, Timestamp: 1500000000, Nonce: 42}
	msg, err := NewMessage(testMagic, CmdPing, ping)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteMessage(&buf, msg); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()
	if len(raw) != headerSize+12 {
		t.Fatalf("framed length should be %d, not %d", headerSize+12, len(raw))
	}
	if got := binary.LittleEndian.Uint32(raw[0:4]); got != testMagic {
		t.Fatalf("magic should be %d, not %d", testMagic, got)
	}
	if !bytes.Equal(raw[4:16], []byte("ping\x00\x00\x00\x00\x00\x00\x00\x00")) {
		t.Fatalf("bad command field %q", raw[4:16])
	}
	if got := binary.LittleEndian.Uint32(raw[20:24]); got != crypto.Checksum(msg.Payload) {
		t.Fatalf("bad checksum %x", got)
	}

	back, err := ReadMessage(&buf, testMagic, DefaultMaxPayload)
	if err != nil {
		t.Fatal(err)
	}
	if back.Command != CmdPing {
		t.Fatalf("command should be %s, not %s", CmdPing, back.Command)
	}
	var p PingPayload
	if err := back.Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p != *ping {
		t.Fatalf("payload should be %+v, not %+v", *ping, p)
	}
}

func TestMessageEmptyPayload(t *testing.T) {
	msg, err := NewMessage(testMagic, CmdVerack, nil)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteMessage(&buf, msg); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != headerSize {
		t.Fatalf("verack should be a bare header, got %d bytes", buf.Len())
	}
	back, err := ReadMessage(&buf, testMagic, DefaultMaxPayload)
	if err != nil {
		t.Fatal(err)
	}
	if back.Command != CmdVerack || len(back.Payload) != 0 {
		t.Fatalf("bad message %+v", back)
	}
}

func framed(t *testing.T, cmd string, payload []byte) []byte {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, &Message{Magic: testMagic, Command: cmd, Payload: payload}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestReadMessageChecksumMismatch(t *testing.T) {
	raw := framed(t, CmdTx, []byte{1, 2, 3, 4})
	raw[len(raw)-1] ^= 0xff

	_, err := ReadMessage(bytes.NewReader(raw), testMagic, DefaultMaxPayload)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestReadMessageMagicMismatch(t *testing.T) {
	raw := framed(t, CmdTx, []byte{1})

	_, err := ReadMessage(bytes.NewReader(raw), testMagic+1, DefaultMaxPayload)
	if !errors.Is(err, ErrMagicMismatch) {
		t.Fatalf("expected ErrMagicMismatch, got %v", err)
	}
}

func TestReadMessagePayloadTooLarge(t *testing.T) {
	raw := framed(t, CmdBlock, make([]byte, 64))

	_, err := ReadMessage(bytes.NewReader(raw), testMagic, 63)
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestReadMessageTruncated(t *testing.T) {
	raw := framed(t, CmdBlock, make([]byte, 64))

	_, err := ReadMessage(bytes.NewReader(raw[:len(raw)-1]), testMagic, DefaultMaxPayload)
	if err != io.ErrUnexpectedEOF {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
	_, err = ReadMessage(bytes.NewReader(raw[:10]), testMagic, DefaultMaxPayload)
	if err != io.ErrUnexpectedEOF {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestInvalidCommands(t *testing.T) {
	for _, cmd := range []string{"", "toolongcommand", "sp ace", "caf\xe9"} {
		err := WriteMessage(io.Discard, &Message{Magic: testMagic, Command: cmd})
		if !errors.Is(err, ErrInvalidCommand) {
			t.Fatalf("%q: expected ErrInvalidCommand, got %v", cmd, err)
		}
	}

	// bytes after the zero padding
	raw := framed(t, CmdTx, nil)
	raw[4+len(CmdTx)+1] = 'x'
	_, err := ReadMessage(bytes.NewReader(raw), testMagic, DefaultMaxPayload)
	if !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("expected ErrInvalidCommand, got %v", err)
	}
}

func TestFullLengthCommand(t *testing.T) {
	raw := framed(t, "abcdefghijkl", nil)
	msg, err := ReadMessage(bytes.NewReader(raw), testMagic, DefaultMaxPayload)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Command != "abcdefghijkl" {
		t.Fatalf("bad command %q", msg.Command)
	}
}

func TestDecodeTrailingBytes(t *testing.T) {
	msg, err := NewMessage(testMagic, CmdPing, &PingPayload{})
	if err != nil {
		t.Fatal(err)
	}
	msg.Payload = append(msg.Payload, 0)
	if err := msg.Decode(&PingPayload{}); err == nil {
		t.Fatal("decoding a payload with trailing bytes should fail")
	}
}
