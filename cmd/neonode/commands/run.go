package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mosaicnetworks/neonode/src/neonode"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a neonode node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runNode,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runNode(cmd *cobra.Command, args []string) error {
	engine := neonode.NewNode(&_config.Node)

	if err := engine.Init(); err != nil {
		_config.Node.Logger().Error("Cannot initialize node:", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return engine.Run(ctx)
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.Node.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.Node.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().Bool("log-file", _config.Node.LogFile, "Also write logs to info.log and debug.log in the datadir")

	// Network
	cmd.Flags().StringP("listen", "l", _config.Node.BindAddr, "Listen IP:Port for P2P connections")
	cmd.Flags().StringP("advertise", "a", _config.Node.AdvertiseAddr, "Advertise IP:Port for P2P connections")
	cmd.Flags().Uint32("magic", _config.Node.Magic, "Network magic")
	cmd.Flags().StringSlice("seeds", _config.Node.Seeds, "Comma-separated IP:Port of seed nodes")
	cmd.Flags().Int("min-peers", _config.Node.MinPeers, "Connected peers below which bad addresses are retried")
	cmd.Flags().Int("max-peers", _config.Node.MaxPeers, "Max number of connected peers")
	cmd.Flags().DurationP("timeout", "t", _config.Node.ConnectTimeout, "TCP connect timeout")
	cmd.Flags().Duration("handshake-timeout", _config.Node.HandshakeTimeout, "Version handshake timeout")
	cmd.Flags().String("user-agent", _config.Node.UserAgent, "User agent announced to peers")

	// Store
	cmd.Flags().String("store", _config.Node.Store, "Storage engine: badger, leveldb, bolt or memory")
	cmd.Flags().String("db", _config.Node.DatabaseDir, "Database directory")
	cmd.Flags().Bool("no-sync", _config.Node.NoSync, "Do not wait for database commits to reach disk (unsafe)")
	cmd.Flags().Int("cache-size", _config.Node.CacheSize, "Number of decoded blocks kept in memory")
	cmd.Flags().Int("mempool-size", _config.Node.MemPoolSize, "Max number of unconfirmed transactions")

	// Chain
	cmd.Flags().Bool("verify-headers", _config.Node.VerifyHeaders, "Check linkage and timestamps of downloaded headers")
	cmd.Flags().Bool("verify-witnesses", _config.Node.VerifyWitnesses, "Check the signatures of downloaded headers")
	cmd.Flags().Bool("notifications", _config.Node.Notifications, "Index contract notifications")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.Node.SetDataDir(_config.Node.DataDir)

	if _config.Node.LogFile {
		addLogFiles(_config.Node.Logger().Logger)
	}

	_config.Node.Logger().WithFields(_config.logFields()).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/neonode.toml (.json, .yaml also work)
	viper.SetConfigName(configFileName)       // name of config file (without extension)
	viper.AddConfigPath(_config.Node.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Node.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Node.Logger().Debugf("No config file found in: %s", _config.Node.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}

// addLogFiles sends info and debug entries to files in the datadir as well.
func addLogFiles(logger *logrus.Logger) {
	pathMap := lfshook.PathMap{}

	if err := os.MkdirAll(_config.Node.DataDir, 0700); err != nil {
		logger.WithError(err).Warn("Cannot create datadir, logging to stderr only")
		return
	}

	infoFile := _config.Node.InfoLogFile()
	if f, err := os.OpenFile(infoFile, os.O_CREATE|os.O_WRONLY, 0666); err != nil {
		logger.Info("Failed to open ", infoFile, ", using default stderr")
	} else {
		f.Close()
		pathMap[logrus.InfoLevel] = infoFile
		pathMap[logrus.WarnLevel] = infoFile
		pathMap[logrus.ErrorLevel] = infoFile
	}

	debugFile := _config.Node.DebugLogFile()
	if f, err := os.OpenFile(debugFile, os.O_CREATE|os.O_WRONLY, 0666); err != nil {
		logger.Info("Failed to open ", debugFile, ", using default stderr")
	} else {
		f.Close()
		pathMap[logrus.DebugLevel] = debugFile
	}

	logger.Hooks.Add(lfshook.NewHook(
		pathMap,
		&logrus.TextFormatter{},
	))
}
