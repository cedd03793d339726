package commands

import (
	"github.com/mosaicnetworks/neonode/src/config"
	"github.com/sirupsen/logrus"
)

// configFileName is looked up in the data directory with any extension viper
// understands.
const configFileName = "neonode"

// CLIConfig is what viper unmarshals flags and the config file into. The
// node settings sit at the top level of the file.
type CLIConfig struct {
	Node config.Config `mapstructure:",squash"`
}

// NewDefaultCLIConfig ...
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Node: *config.NewDefaultConfig(),
	}
}

// logFields lists the settings a run starts with.
func (c *CLIConfig) logFields() logrus.Fields {
	n := &c.Node
	return logrus.Fields{
		"neonode.DataDir":         n.DataDir,
		"neonode.BindAddr":        n.BindAddr,
		"neonode.AdvertiseAddr":   n.AdvertiseAddr,
		"neonode.Magic":           n.Magic,
		"neonode.Seeds":           n.Seeds,
		"neonode.MinPeers":        n.MinPeers,
		"neonode.MaxPeers":        n.MaxPeers,
		"neonode.Store":           n.Store,
		"neonode.DatabaseDir":     n.DatabaseDir,
		"neonode.NoSync":          n.NoSync,
		"neonode.CacheSize":       n.CacheSize,
		"neonode.LogLevel":        n.LogLevel,
		"neonode.VerifyHeaders":   n.VerifyHeaders,
		"neonode.VerifyWitnesses": n.VerifyWitnesses,
		"neonode.Notifications":   n.Notifications,
	}
}
