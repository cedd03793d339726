package ledger

import (
	"fmt"

	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/core"
	"github.com/mosaicnetworks/neonode/src/core/state"
	"github.com/mosaicnetworks/neonode/src/crypto/keys"
)

type (
	accountCache   = DataCache[state.Account, *state.Account]
	assetCache     = DataCache[state.Asset, *state.Asset]
	contractCache  = DataCache[state.Contract, *state.Contract]
	storageCache   = DataCache[state.StorageItem, *state.StorageItem]
	unspentCache   = DataCache[state.UnspentCoins, *state.UnspentCoins]
	spentCache     = DataCache[state.SpentCoins, *state.SpentCoins]
	validatorCache = DataCache[state.Validator, *state.Validator]
)

// StateView is the contract visible state of a block being persisted. An
// Engine reads and writes through it. Changes made to a view handed to
// Execute are kept only if the execution succeeds.
type StateView struct {
	Block     *core.Block
	Accounts  *accountCache
	Assets    *assetCache
	Contracts *contractCache
	Storages  *storageCache
}

func (v *StateView) child() *StateView {
	return &StateView{
		Block:     v.Block,
		Accounts:  v.Accounts.NewChild(),
		Assets:    v.Assets.NewChild(),
		Contracts: v.Contracts.NewChild(),
		Storages:  v.Storages.NewChild(),
	}
}

func (v *StateView) commit() {
	v.Accounts.Commit()
	v.Assets.Commit()
	v.Contracts.Commit()
	v.Storages.Commit()
}

// DestroyContract removes contract h and all its storage items.
func (v *StateView) DestroyContract(h common.Uint160) error {
	c, err := v.Contracts.TryGet(h[:])
	if err != nil || c == nil {
		return err
	}
	v.Contracts.Delete(h[:])
	if !c.HasStorage() {
		return nil
	}
	items, err := v.Storages.Find(h[:])
	if err != nil {
		return err
	}
	for k := range items {
		v.Storages.Delete([]byte(k))
	}
	return nil
}

// ExecutionResult is what an Engine reports for one invocation.
type ExecutionResult struct {
	Success     bool
	GasConsumed common.Fixed8
	Events      []state.NotifyEvent
	// Destroyed lists contracts the script destroyed.
	Destroyed []common.Uint160
	Error     string
}

// Engine runs invocation scripts.
type Engine interface {
	Execute(trigger state.Trigger, tx *core.Transaction, view *StateView, gas common.Fixed8) (*ExecutionResult, error)
}

// NoopEngine halts every script without touching state. Nodes that only
// relay and index blocks use it.
type NoopEngine struct{}

// Execute ...
func (NoopEngine) Execute(state.Trigger, *core.Transaction, *StateView, common.Fixed8) (*ExecutionResult, error) {
	return &ExecutionResult{Success: true}, nil
}

// Policy accepts or rejects a transaction before it enters the memory pool.
type Policy interface {
	Check(tx *core.Transaction, chain *Blockchain) error
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(tx *core.Transaction, chain *Blockchain) error

// Check ...
func (f PolicyFunc) Check(tx *core.Transaction, chain *Blockchain) error {
	return f(tx, chain)
}

// WitnessVerifier checks the witness of a header against the one before it.
type WitnessVerifier interface {
	VerifyHeader(h, prev *core.Header) error
}

// ScriptWitnessVerifier verifies standard signature and multi-signature
// witnesses, and that the witness is the one the previous header designated.
type ScriptWitnessVerifier struct{}

// VerifyHeader ...
func (ScriptWitnessVerifier) VerifyHeader(h, prev *core.Header) error {
	if got := h.Witness.ScriptHash(); got != prev.NextConsensus {
		return fmt.Errorf("%w: witness %s, want %s", ErrHeaderVerification, got, prev.NextConsensus)
	}
	if err := keys.VerifyWitness(h.HashData(), h.Witness.InvocationScript, h.Witness.VerificationScript); err != nil {
		return fmt.Errorf("%w: %v", ErrHeaderVerification, err)
	}
	return nil
}

func executeSafely(e Engine, tx *core.Transaction, view *StateView, gas common.Fixed8) (res *ExecutionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("engine panic: %v", r)
		}
	}()
	return e.Execute(state.TriggerApplication, tx, view, gas)
}
