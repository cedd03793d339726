// Package config defines the configuration of a neonode process.
//
// Whether the node is embedded in Go code or started from the command line,
// every option travels in the Config object defined here. Config lays out
// the data directory, which holds:
//
//  neonode.toml   // (optional) the options, also read as .yaml or .json
//  chain_db       // the chain database, unless --db points elsewhere
//  addrbook.json  // the addresses of peers known to be good
//  info.log       // (with --log-file) info and above
//  debug.log      // (with --log-file) debug
package config
