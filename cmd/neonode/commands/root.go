package commands

import (
	"github.com/spf13/cobra"
)

var _config = NewDefaultCLIConfig()

// RootCmd groups the neonode subcommands. Flags are parsed level by level so
// a subcommand sees the flags given before it.
var RootCmd = &cobra.Command{
	Use:   "neonode",
	Short: "Neo 2.x full node",
	Long: `neonode keeps a Neo 2.x ledger in sync with the peer network.

The run command reads neonode.toml, neonode.yaml or neonode.json from the
data directory; command line flags override the file.`,
	TraverseChildren: true,
}
