package ledger

import (
	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/core"
)

const (
	// DefaultMagic is the MainNet network magic.
	DefaultMagic uint32 = 7630401
	// DefaultBlockCacheSize is the number of decoded blocks kept for reads.
	DefaultBlockCacheSize = 200
	// DefaultMemPoolSize ...
	DefaultMemPoolSize = 50000
	// headerBatchSize is the number of hashes in one stored chunk of the
	// header index.
	headerBatchSize = 2000
	// registerValidity is the number of blocks a registered asset lives.
	registerValidity = 2000000
)

// DefaultStandbyValidators are the MainNet standby validators.
var DefaultStandbyValidators = []string{
	"03b209fd4f53a7170ea4444e0cb0a6bb6a53c2bd016926989cf85f9b0fba17a70c",
	"02df48f60e8f3e01c48ff40b9b7f1310d7a8b2a193188befe1c2e3df740e895093",
	"03b8d9d5771d8f513aa0869b9cc8d50986403b78c6da36890638c3d46a5adce04a",
	"02ca0e27697b9c248f6f16e085fd0061e26f44da85b58ee835c110caa5ec3ba554",
	"024c7b7fb6c310fccf1ba33b082519d82964ea93868d676662d4a59ad548df0e7d",
	"02aaec38470f6aad0042c6e877cfd8087d2676b0f516fddd362801b9bd3936399e",
	"02486fd15702c4490a26703112a5cc1d0923fd697a33406bd5a1c00e0013b09a70",
}

// DefaultSystemFees are the fees burned per transaction kind. Invocation
// transactions pay their own gas.
func DefaultSystemFees() map[core.TXType]common.Fixed8 {
	return map[core.TXType]common.Fixed8{
		core.EnrollmentType: common.Fixed8FromInt64(1000),
		core.IssueType:      common.Fixed8FromInt64(500),
		core.PublishType:    common.Fixed8FromInt64(500),
		core.RegisterType:   common.Fixed8FromInt64(10000),
	}
}

// Config holds the protocol settings of a chain.
type Config struct {
	// Magic identifies the network.
	Magic uint32
	// StandbyValidators are the hex public keys that sign the genesis block
	// and own the governing token.
	StandbyValidators []string
	// SystemFees per transaction kind.
	SystemFees map[core.TXType]common.Fixed8
	// VerifyHeaders turns on linkage and timestamp checks in AddHeaders.
	VerifyHeaders bool
	// BlockCacheSize bounds the decoded block cache.
	BlockCacheSize int
	// MemPoolSize bounds the number of unconfirmed transactions.
	MemPoolSize int
}

// DefaultConfig returns the MainNet settings.
func DefaultConfig() Config {
	return Config{
		Magic:             DefaultMagic,
		StandbyValidators: append([]string(nil), DefaultStandbyValidators...),
		SystemFees:        DefaultSystemFees(),
		VerifyHeaders:     true,
		BlockCacheSize:    DefaultBlockCacheSize,
		MemPoolSize:       DefaultMemPoolSize,
	}
}

func (c *Config) normalize() {
	if c.SystemFees == nil {
		c.SystemFees = DefaultSystemFees()
	}
	if c.BlockCacheSize <= 0 {
		c.BlockCacheSize = DefaultBlockCacheSize
	}
	if c.MemPoolSize <= 0 {
		c.MemPoolSize = DefaultMemPoolSize
	}
	if len(c.StandbyValidators) == 0 {
		c.StandbyValidators = append([]string(nil), DefaultStandbyValidators...)
	}
}
