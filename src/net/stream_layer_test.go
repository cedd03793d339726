package net

import (
	"errors"
	"io"
	"testing"
	"time"
)

func TestTCPStreamLayer_BadAddr(t *testing.T) {
	_, err := NewTCPStreamLayer("0.0.0.0:0", "")
	if err != errNotAdvertisable {
		t.Fatalf("err: %v", err)
	}
}

func TestTCPStreamLayer_WithAdvertise(t *testing.T) {
	stream, err := NewTCPStreamLayer("0.0.0.0:0", "127.0.0.1:12345")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer stream.Close()
	if stream.AdvertiseAddr() != "127.0.0.1:12345" {
		t.Fatalf("bad: %v", stream.AdvertiseAddr())
	}
}

func TestTCPStreamLayer_Message(t *testing.T) {
	stream, err := NewTCPStreamLayer("127.0.0.1:0", "")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer stream.Close()

	errCh := make(chan error, 1)
	go func() {
		conn, err := stream.Accept()
		if err != nil {
			errCh <- err
			return
		}
		defer conn.Close()
		msg, err := ReadMessage(conn, testMagic, DefaultMaxPayload)
		if err == nil && msg.Command != CmdGetAddr {
			err = errors.New("unexpected command " + msg.Command)
		}
		errCh <- err
	}()

	conn, err := stream.Dial(stream.AdvertiseAddr(), time.Second)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer conn.Close()
	if err := WriteMessage(conn, &Message{Magic: testMagic, Command: CmdGetAddr}); err != nil {
		t.Fatalf("err: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("err: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestInmemStreamLayer(t *testing.T) {
	network := NewInmemNetwork()
	a, err := network.Listen("127.0.0.1:1001")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	b, err := network.Listen("127.0.0.1:1002")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if _, err := network.Listen("127.0.0.1:1002"); err == nil {
		t.Fatal("listening twice on an address should fail")
	}

	accepted := make(chan error, 1)
	go func() {
		conn, err := b.Accept()
		if err != nil {
			accepted <- err
			return
		}
		if conn.RemoteAddr().String() != "127.0.0.1:1001" {
			accepted <- errors.New("bad remote address " + conn.RemoteAddr().String())
			return
		}
		buf := make([]byte, 4)
		_, err = io.ReadFull(conn, buf)
		accepted <- err
	}()

	conn, err := a.Dial("127.0.0.1:1002", time.Second)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if conn.RemoteAddr().String() != "127.0.0.1:1002" {
		t.Fatalf("bad remote address %s", conn.RemoteAddr())
	}
	if _, err := conn.Write([]byte("ping")); err != nil {
		t.Fatalf("err: %v", err)
	}
	if err := <-accepted; err != nil {
		t.Fatalf("err: %v", err)
	}

	if _, err := a.Dial("127.0.0.1:1003", time.Second); !errors.Is(err, ErrConnectionRefused) {
		t.Fatalf("expected ErrConnectionRefused, got %v", err)
	}

	b.Close()
	if _, err := b.Accept(); err != ErrListenerClosed {
		t.Fatalf("expected ErrListenerClosed, got %v", err)
	}
	if _, err := a.Dial("127.0.0.1:1002", time.Second); !errors.Is(err, ErrConnectionRefused) {
		t.Fatalf("expected ErrConnectionRefused, got %v", err)
	}
}
