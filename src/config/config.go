package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/ledger"
	"github.com/mosaicnetworks/neonode/src/node"
	"github.com/mosaicnetworks/neonode/src/storage"
	nsync "github.com/mosaicnetworks/neonode/src/sync"
	"github.com/mosaicnetworks/neonode/src/version"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultDatabaseFile is the default name of the folder or file holding
	// the chain database.
	DefaultDatabaseFile = "chain_db"

	// DefaultInfoLogFile receives info and above when logging to files.
	DefaultInfoLogFile = "info.log"

	// DefaultDebugLogFile receives debug when logging to files.
	DefaultDebugLogFile = "debug.log"
)

// Default configuration values.
const (
	DefaultLogLevel         = "info"
	DefaultBindAddr         = "0.0.0.0:10333"
	DefaultAdvertiseAddr    = "127.0.0.1:10333"
	DefaultStore            = string(storage.BadgerKind)
	DefaultCacheSize        = ledger.DefaultBlockCacheSize
	DefaultMemPoolSize      = ledger.DefaultMemPoolSize
	DefaultVerifyHeaders    = true
	DefaultVerifyWitnesses  = false
	DefaultNotifications    = false
	DefaultHandshakeTimeout = node.DefaultHandshakeTimeout
	DefaultConnectTimeout   = node.DefaultConnectTimeout
)

// Config contains all the configuration properties of a neonode process.
type Config struct {
	// DataDir is the top-level directory holding configuration and data.
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile additionally writes the logs to info.log and debug.log in
	// DataDir.
	LogFile bool `mapstructure:"log-file"`

	// BindAddr is the local address:port peers connect to.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is the address:port announced to peers when BindAddr is
	// not routable.
	AdvertiseAddr string `mapstructure:"advertise"`

	// Magic identifies the network. Messages carrying another magic are
	// dropped.
	Magic uint32 `mapstructure:"magic"`

	// Seeds are dialled at startup, before the address book.
	Seeds []string `mapstructure:"seeds"`

	MinPeers         int           `mapstructure:"min-peers"`
	MaxPeers         int           `mapstructure:"max-peers"`
	HandshakeTimeout time.Duration `mapstructure:"handshake-timeout"`
	ConnectTimeout   time.Duration `mapstructure:"timeout"`
	UserAgent        string        `mapstructure:"user-agent"`

	// Store is the storage engine: badger, leveldb, bolt or memory.
	Store string `mapstructure:"store"`

	// DatabaseDir is the path of the chain database.
	DatabaseDir string `mapstructure:"db"`

	// NoSync lets the database acknowledge commits before they reach disk.
	// Blocks announced as persisted can then be lost in a crash.
	NoSync bool `mapstructure:"no-sync"`

	// CacheSize is the number of decoded blocks kept in memory.
	CacheSize int `mapstructure:"cache-size"`

	// MemPoolSize bounds the unconfirmed transactions.
	MemPoolSize int `mapstructure:"mempool-size"`

	// VerifyHeaders checks linkage and timestamps of downloaded headers.
	VerifyHeaders bool `mapstructure:"verify-headers"`

	// VerifyWitnesses also checks the signatures of downloaded headers.
	VerifyWitnesses bool `mapstructure:"verify-witnesses"`

	// Notifications keeps an index of contract notifications.
	Notifications bool `mapstructure:"notifications"`

	// Sync overrides the timing of the sync manager.
	Sync nsync.Config `mapstructure:"sync"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	nodeDefaults := node.DefaultConfig()

	config := &Config{
		DataDir:          DefaultDataDir(),
		LogLevel:         DefaultLogLevel,
		BindAddr:         DefaultBindAddr,
		AdvertiseAddr:    DefaultAdvertiseAddr,
		Magic:            ledger.DefaultMagic,
		MinPeers:         nodeDefaults.MinPeers,
		MaxPeers:         nodeDefaults.MaxPeers,
		HandshakeTimeout: DefaultHandshakeTimeout,
		ConnectTimeout:   DefaultConnectTimeout,
		UserAgent:        version.UserAgent(),
		Store:            DefaultStore,
		DatabaseDir:      DefaultDatabaseDir(),
		CacheSize:        DefaultCacheSize,
		MemPoolSize:      DefaultMemPoolSize,
		VerifyHeaders:    DefaultVerifyHeaders,
		VerifyWitnesses:  DefaultVerifyWitnesses,
		Notifications:    DefaultNotifications,
		Sync:             *nsync.DefaultConfig(),
	}

	return config
}

// NewTestConfig returns a config object with default values, an in-memory
// store, fast sync timing and a logger writing to t.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.Store = string(storage.MemoryKind)
	config.HandshakeTimeout = 500 * time.Millisecond
	config.ConnectTimeout = 500 * time.Millisecond
	config.Sync = *nsync.TestConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level directory, and updates the database
// directory if it is currently set to the default value. A database
// directory set to something else was chosen explicitly and is kept.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultDatabaseFile)
	}
}

// AddressBookFile returns the full path of the address book.
func (c *Config) AddressBookFile() string {
	return filepath.Join(c.DataDir, node.AddressBookFile)
}

// InfoLogFile ...
func (c *Config) InfoLogFile() string {
	return filepath.Join(c.DataDir, DefaultInfoLogFile)
}

// DebugLogFile ...
func (c *Config) DebugLogFile() string {
	return filepath.Join(c.DataDir, DefaultDebugLogFile)
}

// LedgerConfig returns the settings of the chain. Everything not exposed
// here is the MainNet default.
func (c *Config) LedgerConfig() ledger.Config {
	conf := ledger.DefaultConfig()
	conf.Magic = c.Magic
	conf.VerifyHeaders = c.VerifyHeaders
	conf.BlockCacheSize = c.CacheSize
	conf.MemPoolSize = c.MemPoolSize
	return conf
}

// NodeConfig returns the settings of the node manager. The address book is
// only kept with a persistent store.
func (c *Config) NodeConfig() *node.Config {
	conf := node.DefaultConfig()
	conf.Magic = c.Magic
	conf.Seeds = append([]string(nil), c.Seeds...)
	conf.MinPeers = c.MinPeers
	conf.MaxPeers = c.MaxPeers
	conf.HandshakeTimeout = c.HandshakeTimeout
	conf.ConnectTimeout = c.ConnectTimeout
	conf.UserAgent = c.UserAgent
	conf.Logger = c.Logger().Logger
	if c.Store != string(storage.MemoryKind) {
		conf.AddressBook = c.AddressBookFile()
	}
	return conf
}

// SyncConfig ...
func (c *Config) SyncConfig() *nsync.Config {
	conf := c.Sync
	return &conf
}

// Logger returns a formatted logrus Entry, with prefix set to "neonode".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
	}
	return c.logger.WithField("prefix", "neonode")
}

// DefaultDatabaseDir returns the default path of the chain database.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultDatabaseFile)
}

// DefaultDataDir return the default directory name for top-level neonode
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".NeoNode")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "NeoNode")
		} else {
			return filepath.Join(home, ".neonode")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
