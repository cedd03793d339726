package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mosaicnetworks/neonode/src/crypto"
	"github.com/mosaicnetworks/neonode/src/crypto/keys"
	"github.com/spf13/cobra"
)

var (
	privKeyFile           string
	defaultPrivateKeyFile = filepath.Join(_config.Node.DataDir, "priv_key")
)

// NewKeygenCmd produces a KeygenCmd which creates a key pair
func NewKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create new key pair",
		RunE:  keygen,
	}

	AddKeygenFlags(cmd)

	return cmd
}

//AddKeygenFlags adds flags to the keygen command
func AddKeygenFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&privKeyFile, "priv", defaultPrivateKeyFile, "File where the private key will be written")
}

func keygen(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(privKeyFile); err == nil {
		return fmt.Errorf("A key already lives under: %s", filepath.Dir(privKeyFile))
	}

	key, err := keys.GenerateECDSAKey()
	if err != nil {
		return fmt.Errorf("Error generating ECDSA key: %s", err)
	}

	if err := os.MkdirAll(filepath.Dir(privKeyFile), 0700); err != nil {
		return fmt.Errorf("Writing private key: %s", err)
	}

	if err := os.WriteFile(privKeyFile, []byte(keys.PrivateKeyHex(key)), 0600); err != nil {
		return fmt.Errorf("Writing private key: %s", err)
	}

	fmt.Printf("Your private key has been saved to: %s\n", privKeyFile)

	script := keys.SignatureScript(&key.PublicKey)
	fmt.Printf("Public key: %s\n", keys.PublicKeyHex(&key.PublicKey))
	fmt.Printf("Address:    %s\n", crypto.AddressFromScriptHash(keys.ScriptHash(script)))

	return nil
}
