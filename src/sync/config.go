package sync

import (
	"time"
)

// Defaults.
const (
	DefaultHeaderMaxLookAhead   uint32 = 6000
	DefaultHeaderRequestTimeout        = 5 * time.Second
	DefaultBlockMaxCacheSize           = 500
	DefaultBlockNetworkReqLimit        = 500
	DefaultBlockRequestTimeout         = 5 * time.Second
	DefaultSyncInterval                = 1 * time.Second
	DefaultBlockHealthInterval         = 15 * time.Second
	DefaultBlockHealthFailures         = 3
	DefaultHeadersQueueSize            = 16
)

// Config holds the sync manager settings.
type Config struct {
	// HeaderMaxLookAhead is how far the header chain may run ahead of the
	// block chain before header requests pause.
	HeaderMaxLookAhead   uint32        `mapstructure:"header-lookahead"`
	HeaderRequestTimeout time.Duration `mapstructure:"header-timeout"`
	BlockMaxCacheSize    int           `mapstructure:"block-cache-size"`
	BlockNetworkReqLimit int           `mapstructure:"block-request-limit"`
	BlockRequestTimeout  time.Duration `mapstructure:"block-timeout"`
	SyncInterval         time.Duration `mapstructure:"sync-interval"`
	BlockHealthInterval  time.Duration `mapstructure:"health-interval"`

	// BlockHealthFailures is the number of consecutive health intervals
	// without a new block after which every connected node is replaced.
	BlockHealthFailures int `mapstructure:"health-failures"`

	// HeadersQueueSize bounds the header messages waiting for the ledger.
	HeadersQueueSize int `mapstructure:"headers-queue-size"`

	// Now is the clock requests are timed with. Nil means time.Now.
	Now func() time.Time `mapstructure:"-"`
}

// DefaultConfig ...
func DefaultConfig() *Config {
	return &Config{
		HeaderMaxLookAhead:   DefaultHeaderMaxLookAhead,
		HeaderRequestTimeout: DefaultHeaderRequestTimeout,
		BlockMaxCacheSize:    DefaultBlockMaxCacheSize,
		BlockNetworkReqLimit: DefaultBlockNetworkReqLimit,
		BlockRequestTimeout:  DefaultBlockRequestTimeout,
		SyncInterval:         DefaultSyncInterval,
		BlockHealthInterval:  DefaultBlockHealthInterval,
		BlockHealthFailures:  DefaultBlockHealthFailures,
		HeadersQueueSize:     DefaultHeadersQueueSize,
	}
}

// TestConfig ticks fast and times requests out after 200ms.
func TestConfig() *Config {
	config := DefaultConfig()
	config.HeaderRequestTimeout = 200 * time.Millisecond
	config.BlockRequestTimeout = 200 * time.Millisecond
	config.SyncInterval = 20 * time.Millisecond
	config.BlockHealthInterval = time.Hour
	return config
}
