// Package neonode assembles a node from its configuration: the chain
// database, the ledger, the event bus, the peer-to-peer transport, the node
// manager and the sync manager.
package neonode

import (
	"context"
	"errors"
	"fmt"

	"github.com/mosaicnetworks/neonode/src/config"
	"github.com/mosaicnetworks/neonode/src/events"
	"github.com/mosaicnetworks/neonode/src/ledger"
	nnet "github.com/mosaicnetworks/neonode/src/net"
	"github.com/mosaicnetworks/neonode/src/node"
	"github.com/mosaicnetworks/neonode/src/notifications"
	"github.com/mosaicnetworks/neonode/src/storage"
	nsync "github.com/mosaicnetworks/neonode/src/sync"
	"github.com/sirupsen/logrus"
)

// ErrNotInitialized is returned when Run or Start is called before Init.
var ErrNotInitialized = errors.New("node not initialized")

// Node is the context object of a neonode process. Fields left nil before
// Init are created from Config; a Stream set beforehand is used as is.
type Node struct {
	Config        *config.Config
	Store         storage.Store
	Bus           *events.Bus
	Chain         *ledger.Blockchain
	Notifications *notifications.Index
	Stream        nnet.StreamLayer
	NodeManager   *node.Manager
	SyncManager   *nsync.Manager

	// Engine runs invocation transactions. Nil halts them.
	Engine ledger.Engine
	// Policy filters transactions before they enter the memory pool.
	Policy ledger.Policy

	logger  *logrus.Entry
	started bool
}

// NewNode ...
func NewNode(conf *config.Config) *Node {
	return &Node{
		Config: conf,
		logger: conf.Logger(),
	}
}

func (n *Node) initStore() error {
	kind := storage.Kind(n.Config.Store)

	n.logger.WithFields(logrus.Fields{
		"store": kind,
		"path":  n.Config.DatabaseDir,
	}).Debug("Opening chain database")

	store, err := storage.Open(kind,
		n.Config.DatabaseDir,
		storage.Options{NoSync: n.Config.NoSync},
		n.logger.WithField("component", "storage"))
	if err != nil {
		return fmt.Errorf("open %s store: %w", kind, err)
	}
	n.Store = store
	return nil
}

func (n *Node) initLedger() error {
	n.Bus = events.NewBus(n.logger.WithField("component", "events"))

	chain, err := ledger.NewBlockchain(n.Store,
		n.Config.LedgerConfig(),
		n.Engine,
		n.Bus,
		n.logger.WithField("component", "ledger"))
	if err != nil {
		return err
	}
	if n.Config.VerifyWitnesses {
		chain.SetWitnessVerifier(ledger.ScriptWitnessVerifier{})
	}
	if n.Policy != nil {
		chain.SetPolicy(n.Policy)
	}
	n.Chain = chain

	n.logger.WithFields(logrus.Fields{
		"height":        chain.Height(),
		"header_height": chain.HeaderHeight(),
	}).Info("Chain loaded")
	return nil
}

func (n *Node) initNotifications() error {
	if !n.Config.Notifications {
		return nil
	}
	idx, err := notifications.NewIndex(n.Store,
		[]byte{byte(ledger.NotificationIndex)},
		n.logger.WithField("component", "notifications"))
	if err != nil {
		return err
	}
	idx.Subscribe(n.Bus)
	n.Notifications = idx
	return nil
}

func (n *Node) initTransport() error {
	if n.Stream != nil {
		return nil
	}
	stream, err := nnet.NewTCPStreamLayer(n.Config.BindAddr, n.Config.AdvertiseAddr)
	if err != nil {
		return err
	}
	n.Stream = stream
	return nil
}

func (n *Node) initManagers() error {
	n.NodeManager = node.NewManager(n.Config.NodeConfig(),
		n.Stream,
		n.Chain,
		n.Bus,
		n.logger.WithField("component", "node"))

	n.SyncManager = nsync.NewManager(n.Config.SyncConfig(),
		n.Chain,
		nsync.NodePeers(n.NodeManager),
		n.Bus,
		n.logger.WithField("component", "sync"))
	return nil
}

// Init builds every component. On error the components built so far are
// closed.
func (n *Node) Init() error {
	steps := []func() error{
		n.initStore,
		n.initLedger,
		n.initNotifications,
		n.initTransport,
		n.initManagers,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			n.close()
			return err
		}
	}
	return nil
}

// Start connects to the network and starts syncing.
func (n *Node) Start(ctx context.Context) error {
	if n.NodeManager == nil {
		return ErrNotInitialized
	}
	if err := n.NodeManager.Start(ctx); err != nil {
		return err
	}
	if err := n.SyncManager.Start(ctx); err != nil {
		n.NodeManager.Shutdown()
		return err
	}
	n.started = true

	n.logger.WithFields(logrus.Fields{
		"listen": n.Stream.AdvertiseAddr(),
		"nonce":  n.NodeManager.Nonce(),
	}).Info("Node started")
	return nil
}

// Run starts the node and blocks until ctx is cancelled, then shuts down.
func (n *Node) Run(ctx context.Context) error {
	if err := n.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return n.Shutdown()
}

// Shutdown stops the sync manager, then the node manager, and closes the
// database. The first error is returned.
func (n *Node) Shutdown() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	if n.started {
		keep(n.SyncManager.Shutdown())
		keep(n.NodeManager.Shutdown())
		n.started = false
	} else if n.Stream != nil {
		keep(n.Stream.Close())
	}
	keep(n.close())

	n.logger.Info("Node stopped")
	return first
}

func (n *Node) close() error {
	if n.Notifications != nil {
		n.Notifications.Close()
		n.Notifications = nil
	}
	if n.Store == nil {
		return nil
	}
	err := n.Store.Close()
	n.Store = nil
	return err
}
