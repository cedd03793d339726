// Package events is a typed publish/subscribe bus connecting the node
// sessions, the sync manager and the ledger.
//
// The set of event kinds is closed. Handlers subscribe to one kind and are
// called synchronously, in subscription order, on the publishing goroutine.
// A handler that needs to do slow work must hand it off.
package events

import (
	"fmt"
	"sync"

	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/core"
	"github.com/mosaicnetworks/neonode/src/core/state"
	"github.com/sirupsen/logrus"
)

// Kind identifies an event variant.
type Kind uint8

// Event kinds.
const (
	// HeadersReceived carries a headers message from a peer.
	HeadersReceived Kind = iota
	// BlockReceived carries a block message from a peer.
	BlockReceived
	// BlockAnnounced is published when a peer announces a block by inventory.
	BlockAnnounced
	// TransactionAdded is published when a transaction enters the memory
	// pool and should be relayed.
	TransactionAdded
	// PersistCompleted is published after a block has been committed.
	PersistCompleted
	// ContractNotify carries a notification emitted by a contract, published
	// after the block containing it has been committed.
	ContractNotify

	numKinds
)

var kindNames = [numKinds]string{
	"HeadersReceived",
	"BlockReceived",
	"BlockAnnounced",
	"TransactionAdded",
	"PersistCompleted",
	"ContractNotify",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Event is implemented by every variant.
type Event interface {
	Kind() Kind
}

// HeadersReceivedEvent ...
type HeadersReceivedEvent struct {
	NodeID  string
	Headers []*core.Header
}

// BlockReceivedEvent ...
type BlockReceivedEvent struct {
	NodeID string
	Block  *core.Block
}

// BlockAnnouncedEvent ...
type BlockAnnouncedEvent struct {
	NodeID string
	Hash   common.Uint256
}

// TransactionAddedEvent ...
type TransactionAddedEvent struct {
	Transaction *core.Transaction
}

// PersistCompletedEvent ...
type PersistCompletedEvent struct {
	Block        *core.Block
	Executions   []*state.Execution
	Transactions int
}

// ContractNotifyEvent ...
type ContractNotifyEvent struct {
	BlockIndex uint32
	TxHash     common.Uint256
	Notify     state.NotifyEvent
}

// Kind ...
func (HeadersReceivedEvent) Kind() Kind { return HeadersReceived }

// Kind ...
func (BlockReceivedEvent) Kind() Kind { return BlockReceived }

// Kind ...
func (BlockAnnouncedEvent) Kind() Kind { return BlockAnnounced }

// Kind ...
func (TransactionAddedEvent) Kind() Kind { return TransactionAdded }

// Kind ...
func (PersistCompletedEvent) Kind() Kind { return PersistCompleted }

// Kind ...
func (ContractNotifyEvent) Kind() Kind { return ContractNotify }

// Handler receives events of the kind it subscribed to.
type Handler func(Event)

type subscription struct {
	id uint64
	h  Handler
}

// Bus dispatches events to subscribers.
type Bus struct {
	mu       sync.RWMutex
	handlers [numKinds][]subscription
	nextID   uint64
	logger   *logrus.Entry
}

// NewBus ...
func NewBus(logger *logrus.Entry) *Bus {
	return &Bus{logger: logger}
}

// Subscribe registers h for kind and returns the function that removes it.
func (b *Bus) Subscribe(kind Kind, h Handler) func() {
	if kind >= numKinds {
		panic(fmt.Sprintf("subscribe to unknown event kind %d", kind))
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[kind] = append(b.handlers[kind], subscription{id: id, h: h})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.handlers[kind]
		for i, s := range subs {
			if s.id == id {
				b.handlers[kind] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish calls every handler of e's kind. A panicking handler is logged and
// does not prevent later handlers from running.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := b.handlers[e.Kind()]
	b.mu.RUnlock()

	for _, s := range subs {
		b.call(s.h, e)
	}
}

// Subscribers returns the number of handlers registered for kind.
func (b *Bus) Subscribers(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[kind])
}

func (b *Bus) call(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.WithFields(logrus.Fields{
				"event": e.Kind().String(),
				"panic": r,
			}).Error("event handler panicked")
		}
	}()
	h(e)
}
