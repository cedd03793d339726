package node

import (
	"sync"
	"sync/atomic"
)

// State is the position of a session in its lifecycle.
type State uint32

const (
	// Connecting is the state before the version message is sent.
	Connecting State = iota
	// AwaitingVersion waits for the remote version message.
	AwaitingVersion
	// AwaitingVerack waits for the remote verack message.
	AwaitingVerack
	// Ready sessions serve protocol messages.
	Ready
	// Disconnecting sessions are stopping their routines.
	Disconnecting
	// Closed sessions have released their connection.
	Closed
)

// String ...
func (s State) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case AwaitingVersion:
		return "AwaitingVersion"
	case AwaitingVerack:
		return "AwaitingVerack"
	case Ready:
		return "Ready"
	case Disconnecting:
		return "Disconnecting"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

type state struct {
	state State
	wg    sync.WaitGroup
}

func (b *state) getState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

func (b *state) setState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}

// Start a goroutine and add it to waitgroup
func (b *state) goFunc(f func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		f()
	}()
}

func (b *state) waitRoutines() {
	b.wg.Wait()
}
