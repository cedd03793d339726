package ledger

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"

	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/core"
	"github.com/mosaicnetworks/neonode/src/crypto"
	"github.com/mosaicnetworks/neonode/src/crypto/keys"
)

const (
	genesisTimestamp uint32 = 1468595301
	genesisNonce     uint32 = 2083236893
	opPushT          byte   = 0x51
	opPushF          byte   = 0x00

	governingTokenName = `[{"lang":"zh-CN","name":"小蚁股"},{"lang":"en","name":"AntShare"}]`
	utilityTokenName   = `[{"lang":"zh-CN","name":"小蚁币"},{"lang":"en","name":"AntCoin"}]`
)

var (
	governingTokenAmount = common.Fixed8FromInt64(100000000)
	utilityTokenAmount   = common.Fixed8FromInt64(100000000)
)

// standbyValidators decodes the configured validator keys.
func (c *Config) standbyValidators() ([]*ecdsa.PublicKey, error) {
	res := make([]*ecdsa.PublicKey, 0, len(c.StandbyValidators))
	for _, s := range c.StandbyValidators {
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("standby validator %q: %w", s, err)
		}
		pub, err := keys.DecodePublicKey(b)
		if err != nil {
			return nil, fmt.Errorf("standby validator %q: %w", s, err)
		}
		res = append(res, pub)
	}
	return res, nil
}

// ConsensusScript returns the multi-signature script over validators that
// needs n - (n-1)/3 signatures.
func ConsensusScript(validators []*ecdsa.PublicKey) ([]byte, error) {
	n := len(validators)
	pubs := append([]*ecdsa.PublicKey(nil), validators...)
	return keys.MultiSigScript(n-(n-1)/3, pubs)
}

// createGenesisBlock builds the first block from the configured validators.
// The result depends only on the configuration.
func createGenesisBlock(cfg Config) (*core.Block, error) {
	validators, err := cfg.standbyValidators()
	if err != nil {
		return nil, err
	}
	consensus, err := ConsensusScript(validators)
	if err != nil {
		return nil, err
	}

	governing := core.NewTransaction(&core.RegisterTx{
		AssetType: core.GoverningToken,
		Name:      governingTokenName,
		Amount:    governingTokenAmount,
		Precision: 0,
		Owner:     nil,
		Admin:     crypto.Hash160([]byte{opPushT}),
	})
	utility := core.NewTransaction(&core.RegisterTx{
		AssetType: core.UtilityToken,
		Name:      utilityTokenName,
		Amount:    utilityTokenAmount,
		Precision: 8,
		Owner:     nil,
		Admin:     crypto.Hash160([]byte{opPushF}),
	})

	issue := core.NewTransaction(&core.IssueTx{})
	issue.Outputs = []core.Output{{
		AssetID:    governing.Hash(),
		Value:      governingTokenAmount,
		ScriptHash: crypto.Hash160(consensus),
	}}
	issue.Scripts = []core.Witness{{VerificationScript: []byte{opPushT}}}

	header := core.Header{
		Timestamp:     genesisTimestamp,
		ConsensusData: uint64(genesisNonce),
		NextConsensus: crypto.Hash160(consensus),
		Witness:       core.Witness{VerificationScript: []byte{opPushT}},
	}
	txs := []*core.Transaction{
		core.NewTransaction(&core.MinerTx{Nonce: genesisNonce}),
		governing,
		utility,
		issue,
	}
	return core.NewBlock(header, txs)
}
