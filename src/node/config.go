package node

import (
	"testing"
	"time"

	"github.com/mosaicnetworks/neonode/src/common"
	nnet "github.com/mosaicnetworks/neonode/src/net"
	"github.com/sirupsen/logrus"
)

// Defaults.
const (
	DefaultMinPeers            = 5
	DefaultMaxPeers            = 10
	DefaultHandshakeTimeout    = 3 * time.Second
	DefaultConnectTimeout      = 5 * time.Second
	DefaultWriteTimeout        = 10 * time.Second
	DefaultPeerQueryInterval   = 15 * time.Second
	DefaultPoolCheckInterval   = 10 * time.Second
	DefaultRecycleGrace        = 60 * time.Second
	DefaultMaxNodeErrorCount   = 5
	DefaultMaxNodeTimeoutCount = 15
	DefaultUserAgent           = "/neonode:0.1.0/"
	DefaultSendQueueSize       = 64
)

// Config holds the settings of the Manager and its sessions.
type Config struct {
	Magic               uint32        `mapstructure:"magic"`
	Seeds               []string      `mapstructure:"seeds"`
	MinPeers            int           `mapstructure:"min-peers"`
	MaxPeers            int           `mapstructure:"max-peers"`
	HandshakeTimeout    time.Duration `mapstructure:"handshake-timeout"`
	ConnectTimeout      time.Duration `mapstructure:"connect-timeout"`
	WriteTimeout        time.Duration `mapstructure:"write-timeout"`
	PeerQueryInterval   time.Duration `mapstructure:"peer-query-interval"`
	PoolCheckInterval   time.Duration `mapstructure:"pool-check-interval"`
	RecycleGrace        time.Duration `mapstructure:"recycle-grace"`
	MaxNodeErrorCount   int           `mapstructure:"max-node-errors"`
	MaxNodeTimeoutCount int           `mapstructure:"max-node-timeouts"`
	UserAgent           string        `mapstructure:"user-agent"`
	Relay               bool          `mapstructure:"relay"`
	SendQueueSize       int           `mapstructure:"send-queue-size"`
	MaxPayload          uint32        `mapstructure:"max-payload"`

	// AddressBook is the file known addresses are loaded from and saved to.
	// Empty disables persistence.
	AddressBook string `mapstructure:"address-book"`

	// Nonce identifies this process in version messages. Zero picks a random
	// one.
	Nonce uint32

	Logger *logrus.Logger
}

// DefaultConfig ...
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.InfoLevel

	return &Config{
		Magic:               7630401,
		MinPeers:            DefaultMinPeers,
		MaxPeers:            DefaultMaxPeers,
		HandshakeTimeout:    DefaultHandshakeTimeout,
		ConnectTimeout:      DefaultConnectTimeout,
		WriteTimeout:        DefaultWriteTimeout,
		PeerQueryInterval:   DefaultPeerQueryInterval,
		PoolCheckInterval:   DefaultPoolCheckInterval,
		RecycleGrace:        DefaultRecycleGrace,
		MaxNodeErrorCount:   DefaultMaxNodeErrorCount,
		MaxNodeTimeoutCount: DefaultMaxNodeTimeoutCount,
		UserAgent:           DefaultUserAgent,
		Relay:               true,
		SendQueueSize:       DefaultSendQueueSize,
		MaxPayload:          nnet.DefaultMaxPayload,
		Logger:              logger,
	}
}

// TestConfig returns a config with short timeouts and a logger writing to t.
func TestConfig(t testing.TB) *Config {
	config := DefaultConfig()
	config.HandshakeTimeout = 500 * time.Millisecond
	config.ConnectTimeout = 500 * time.Millisecond
	config.PeerQueryInterval = time.Hour
	config.PoolCheckInterval = time.Hour
	config.Logger = common.NewTestLogger(t, common.TestLogLevel)
	return config
}
