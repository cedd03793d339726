package ledger

import (
	"fmt"
	"time"

	"github.com/mosaicnetworks/neonode/src/codec"
	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/core"
	"github.com/mosaicnetworks/neonode/src/core/state"
	"github.com/mosaicnetworks/neonode/src/events"
	"github.com/mosaicnetworks/neonode/src/storage"
	"github.com/sirupsen/logrus"
)

// TryPersist persists block if it is the next one. Blocks at or below the
// current height, and blocks further ahead, are reported without error.
func (bc *Blockchain) TryPersist(block *core.Block) (PersistResult, error) {
	bc.persistLock.Lock()
	defer bc.persistLock.Unlock()

	bc.mu.RLock()
	next := bc.height + 1
	initialized := bc.initialized
	bc.mu.RUnlock()

	switch {
	case initialized && block.Index < next:
		return ResultAlreadyPersisted, nil
	case initialized && block.Index > next:
		return ResultOutOfOrder, nil
	}

	if err := bc.persist(block); err != nil {
		return ResultOutOfOrder, err
	}
	return ResultPersisted, nil
}

// Persist applies block on top of the current block and makes it current.
// Everything the block changes is written in one batch; if it fails nothing
// is changed.
func (bc *Blockchain) Persist(block *core.Block) error {
	bc.persistLock.Lock()
	defer bc.persistLock.Unlock()
	return bc.persist(block)
}

type persistedOutput struct {
	out    core.Output
	height uint32
}

// blockState is the working state of one persist.
type blockState struct {
	*StateView
	block      *core.Block
	unspent    *unspentCache
	spent      *spentCache
	validators *validatorCache
	pending    map[common.Uint256]*core.Transaction
	executions []*state.Execution
	notifies   []events.ContractNotifyEvent
}

func (bc *Blockchain) persist(block *core.Block) error {
	start := time.Now()
	hash := block.Hash()

	bc.mu.RLock()
	expected := bc.height + 1
	if !bc.initialized {
		expected = 0
	}
	headerCount := uint32(len(bc.headerIndex))
	var indexed common.Uint256
	if block.Index < headerCount {
		indexed = bc.headerIndex[block.Index]
	}
	bc.mu.RUnlock()

	if block.Index != expected {
		return fmt.Errorf("%w: got %d, want %d", ErrInvalidBlockIndex, block.Index, expected)
	}
	if block.Index < headerCount && indexed != hash {
		return fmt.Errorf("%w: block %s at %d", ErrBlockMismatch, hash, block.Index)
	}

	// the block may also be the next header
	var newHeader []*core.Header
	if block.Index == headerCount {
		bc.headersLock.Lock()
		defer bc.headersLock.Unlock()

		bc.mu.RLock()
		prev := bc.lastHeader
		headerCount = uint32(len(bc.headerIndex))
		bc.mu.RUnlock()
		if block.Index != headerCount {
			// headers were added meanwhile; retry as a known header
			return bc.persistKnown(block, start)
		}
		h := block.GetHeader()
		if err := bc.verifyHeader(h, prev); err != nil {
			return err
		}
		newHeader = []*core.Header{h}
	}

	return bc.persistBlock(block, newHeader, start)
}

func (bc *Blockchain) persistKnown(block *core.Block, start time.Time) error {
	bc.mu.RLock()
	indexed := bc.headerIndex[block.Index]
	bc.mu.RUnlock()
	if indexed != block.Hash() {
		return fmt.Errorf("%w: block %s at %d", ErrBlockMismatch, block.Hash(), block.Index)
	}
	return bc.persistBlock(block, nil, start)
}

func (bc *Blockchain) persistBlock(block *core.Block, newHeader []*core.Header, start time.Time) error {
	hash := block.Hash()

	bc.mu.Lock()
	bc.persisting = block
	bc.mu.Unlock()
	defer func() {
		bc.mu.Lock()
		bc.persisting = nil
		bc.mu.Unlock()
	}()

	batch := bc.store.NewBatch()
	defer batch.Discard()

	bs := &blockState{
		StateView: &StateView{
			Block:     block,
			Accounts:  NewDataCache[state.Account](STAccount, bc.store),
			Assets:    NewDataCache[state.Asset](STAsset, bc.store),
			Contracts: NewDataCache[state.Contract](STContract, bc.store),
			Storages:  NewDataCache[state.StorageItem](STStorage, bc.store),
		},
		block:      block,
		unspent:    NewDataCache[state.UnspentCoins](STCoin, bc.store),
		spent:      NewDataCache[state.SpentCoins](STSpentCoin, bc.store),
		validators: NewDataCache[state.Validator](STValidator, bc.store),
		pending:    make(map[common.Uint256]*core.Transaction, len(block.Transactions)),
	}

	sysFee := common.Fixed8(0)
	if block.Index > 0 {
		prevFee, _, err := bc.readBlockRecord(block.PrevHash)
		if err != nil {
			return fmt.Errorf("previous block: %w", err)
		}
		sysFee = prevFee
	}

	for _, tx := range block.Transactions {
		sysFee += tx.SystemFee(bc.config.SystemFees)

		data, err := codec.ToBytes(tx)
		if err != nil {
			return err
		}
		w := codec.NewBinWriter()
		w.WriteU32LE(block.Index)
		w.WriteBytes(data)
		batch.Put(txKey(tx.Hash()), w.Bytes())

		if err := bc.applyTransaction(bs, tx); err != nil {
			return fmt.Errorf("transaction %s: %w", tx.Hash(), err)
		}
		bs.pending[tx.Hash()] = tx
	}

	bs.Accounts.DeleteWhere(func(a *state.Account) bool { return a.IsEmpty() })
	bs.unspent.DeleteWhere(func(u *state.UnspentCoins) bool { return u.AllSpent() })

	for _, c := range []interface{ WriteTo(storage.Batch) error }{
		bs.Accounts, bs.Assets, bs.Contracts, bs.Storages,
		bs.unspent, bs.spent, bs.validators,
	} {
		if err := c.WriteTo(batch); err != nil {
			return err
		}
	}

	for _, exec := range bs.executions {
		data, err := codec.ToBytes(exec)
		if err != nil {
			return err
		}
		batch.Put(executionKey(exec.TxHash), data)
	}

	rec, err := blockRecord(sysFee, block.Trim)
	if err != nil {
		return err
	}
	batch.Put(blockKey(hash), rec)
	batch.Put([]byte{byte(SYSCurrentBlock)}, pointerValue(hash, block.Index))

	var stored uint32
	if len(newHeader) > 0 {
		stored = bc.stageHeaders(batch, newHeader)
	}

	if err := batch.Commit(); err != nil {
		bc.logger.WithError(err).WithField("height", block.Index).Error("Persist failed")
		return fmt.Errorf("persist block %d: %w", block.Index, err)
	}

	if len(newHeader) > 0 {
		bc.applyHeaders(newHeader, stored)
	}

	bc.mu.Lock()
	bc.initialized = true
	bc.height = block.Index
	bc.currentBlockHash = hash
	bc.totalTxs += uint64(len(block.Transactions))
	bc.mu.Unlock()

	bc.blockCache.Add(hash, block)
	bc.pool.RemoveBlock(block)

	prometheusBlockHeight.Set(float64(block.Index))
	prometheusPersistedTxs.Add(float64(len(block.Transactions)))
	prometheusPersistDuration.Observe(time.Since(start).Seconds())
	prometheusMemPoolSize.Set(float64(bc.pool.Count()))

	bc.logger.WithFields(logrus.Fields{
		"height":       block.Index,
		"hash":         hash.String(),
		"transactions": len(block.Transactions),
	}).Debug("Persisted block")

	bc.dispatch(bs)
	return nil
}

// dispatch runs after the block is durable.
func (bc *Blockchain) dispatch(bs *blockState) {
	ev := events.PersistCompletedEvent{
		Block:        bs.block,
		Executions:   bs.executions,
		Transactions: len(bs.block.Transactions),
	}

	if bc.bus != nil {
		for _, n := range bs.notifies {
			bc.bus.Publish(n)
		}
		bc.bus.Publish(ev)
	}

	bc.subsLock.RLock()
	subs := make([]func(events.PersistCompletedEvent), 0, len(bc.persistSubs))
	for _, f := range bc.persistSubs {
		subs = append(subs, f)
	}
	bc.subsLock.RUnlock()

	for _, f := range subs {
		f(ev)
	}
}

func (bc *Blockchain) applyTransaction(bs *blockState, tx *core.Transaction) error {
	th := tx.Hash()
	bs.unspent.Add(th[:], state.NewUnspentCoins(len(tx.Outputs)))

	for _, out := range tx.Outputs {
		acct, err := bs.Accounts.GetAndChange(out.ScriptHash[:], newAccount(out.ScriptHash))
		if err != nil {
			return err
		}
		acct.AddBalance(out.AssetID, out.Value)
		if out.AssetID == bc.governingToken {
			if err := bc.addVotes(bs, acct.Votes, out.Value); err != nil {
				return err
			}
		}
	}

	spent, err := bc.spendInputs(bs, tx)
	if err != nil {
		return err
	}

	switch d := tx.Data.(type) {
	case *core.RegisterTx:
		bs.Assets.Add(th[:], &state.Asset{
			ID:         th,
			AssetType:  d.AssetType,
			Name:       d.Name,
			Amount:     d.Amount,
			Precision:  d.Precision,
			Owner:      d.Owner,
			Admin:      d.Admin,
			Issuer:     d.Admin,
			Expiration: bs.block.Index + 1 + registerValidity,
		})

	case *core.IssueTx:
		for id, amount := range transactionResults(tx, spent) {
			if amount >= 0 {
				continue
			}
			asset, err := bs.Assets.GetAndChange(id[:], nil)
			if err != nil {
				return err
			}
			if asset == nil {
				return fmt.Errorf("%w: issue of %s", ErrUnknownAsset, id)
			}
			asset.Available -= amount
		}

	case *core.ClaimTx:
		for _, c := range d.Claims {
			sc, err := bs.spent.GetAndChange(c.PrevHash[:], nil)
			if err != nil {
				return err
			}
			if sc == nil {
				continue
			}
			delete(sc.Items, c.PrevIndex)
			if len(sc.Items) == 0 {
				bs.spent.Delete(c.PrevHash[:])
			}
		}

	case *core.EnrollmentTx:
		v, err := bs.validators.GetAndChange(d.PublicKey, newValidator(d.PublicKey))
		if err != nil {
			return err
		}
		v.Registered = true

	case *core.StateTx:
		for i := range d.Descriptors {
			if err := bc.applyDescriptor(bs, &d.Descriptors[i]); err != nil {
				return err
			}
		}

	case *core.PublishTx:
		contract := &state.Contract{
			Script:      d.Script,
			ParamList:   d.ParamList,
			ReturnType:  d.ReturnType,
			Name:        d.Name,
			CodeVersion: d.CodeVersion,
			Author:      d.Author,
			Email:       d.Email,
			Description: d.Description,
		}
		if d.NeedStorage {
			contract.Properties |= state.HasStorage
		}
		h := contract.ScriptHash()
		if _, err := bs.Contracts.GetAndChange(h[:], func() *state.Contract { return contract }); err != nil {
			return err
		}

	case *core.InvocationTx:
		bc.invoke(bs, tx, d)
	}
	return nil
}

// spendInputs marks the outputs referenced by tx as spent and debits their
// owners. Outputs of earlier transactions of the same block are visible.
func (bc *Blockchain) spendInputs(bs *blockState, tx *core.Transaction) ([]persistedOutput, error) {
	res := make([]persistedOutput, 0, len(tx.Inputs))
	for _, in := range tx.Inputs {
		prev, height, err := bc.lookupTransaction(bs, in.PrevHash)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownInput, err)
		}
		if int(in.PrevIndex) >= len(prev.Outputs) {
			return nil, fmt.Errorf("%w: %s:%d", ErrUnknownInput, in.PrevHash, in.PrevIndex)
		}

		coins, err := bs.unspent.GetAndChange(in.PrevHash[:], nil)
		if err != nil {
			return nil, err
		}
		if coins == nil || coins.IsSpent(in.PrevIndex) {
			return nil, fmt.Errorf("%w: %s:%d", ErrUnknownInput, in.PrevHash, in.PrevIndex)
		}
		coins.Items[in.PrevIndex] |= state.CoinSpent

		out := prev.Outputs[in.PrevIndex]
		if out.AssetID == bc.governingToken {
			ph, idx := in.PrevHash, in.PrevIndex
			sc, err := bs.spent.GetAndChange(ph[:], func() *state.SpentCoins {
				return state.NewSpentCoins(ph, height)
			})
			if err != nil {
				return nil, err
			}
			sc.Items[idx] = bs.block.Index
		}

		acct, err := bs.Accounts.GetAndChange(out.ScriptHash[:], newAccount(out.ScriptHash))
		if err != nil {
			return nil, err
		}
		acct.AddBalance(out.AssetID, -out.Value)
		if out.AssetID == bc.governingToken {
			if err := bc.addVotes(bs, acct.Votes, -out.Value); err != nil {
				return nil, err
			}
		}
		res = append(res, persistedOutput{out: out, height: height})
	}
	return res, nil
}

func (bc *Blockchain) lookupTransaction(bs *blockState, h common.Uint256) (*core.Transaction, uint32, error) {
	if tx, ok := bs.pending[h]; ok {
		return tx, bs.block.Index, nil
	}
	return bc.GetTransaction(h)
}

// transactionResults returns, per asset, inputs minus outputs. Negative
// amounts are created by the transaction.
func transactionResults(tx *core.Transaction, spent []persistedOutput) map[common.Uint256]common.Fixed8 {
	res := make(map[common.Uint256]common.Fixed8)
	for _, s := range spent {
		res[s.out.AssetID] += s.out.Value
	}
	for _, out := range tx.Outputs {
		res[out.AssetID] -= out.Value
	}
	for id, v := range res {
		if v == 0 {
			delete(res, id)
		}
	}
	return res
}

func (bc *Blockchain) addVotes(bs *blockState, votes [][]byte, delta common.Fixed8) error {
	for _, pub := range votes {
		v, err := bs.validators.GetAndChange(pub, newValidator(pub))
		if err != nil {
			return err
		}
		v.Votes += delta
	}
	return nil
}

func (bc *Blockchain) applyDescriptor(bs *blockState, d *core.StateDescriptor) error {
	switch d.Type {
	case core.AccountStateType:
		if d.Field != "Votes" {
			return fmt.Errorf("%w: unknown account field %q", ErrInvalidDescriptor, d.Field)
		}
		h, err := common.Uint160DecodeBytes(d.Key)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
		}
		r := codec.NewBinReader(d.Value)
		n := r.ReadCount(1024)
		votes := make([][]byte, 0, n)
		for i := 0; i < n && r.Err == nil; i++ {
			votes = append(votes, r.ReadECPoint())
		}
		if r.Err != nil {
			return fmt.Errorf("%w: votes: %v", ErrInvalidDescriptor, r.Err)
		}

		acct, err := bs.Accounts.GetAndChange(h[:], newAccount(h))
		if err != nil {
			return err
		}
		balance := acct.Balance(bc.governingToken)
		if err := bc.addVotes(bs, acct.Votes, -balance); err != nil {
			return err
		}
		acct.Votes = votes
		return bc.addVotes(bs, acct.Votes, balance)

	case core.ValidatorStateType:
		if d.Field != "Registered" {
			return fmt.Errorf("%w: unknown validator field %q", ErrInvalidDescriptor, d.Field)
		}
		v, err := bs.validators.GetAndChange(d.Key, newValidator(d.Key))
		if err != nil {
			return err
		}
		v.Registered = len(d.Value) > 0 && d.Value[0] != 0
	}
	return nil
}

// invoke runs an invocation in a child layer of the block state. The layer is
// merged only when the execution succeeds; a failed or panicking execution
// leaves the block state as it was.
func (bc *Blockchain) invoke(bs *blockState, tx *core.Transaction, d *core.InvocationTx) {
	th := tx.Hash()
	exec := &state.Execution{
		TxHash:  th,
		Trigger: state.TriggerApplication,
		VMState: state.VMFault,
	}

	child := bs.StateView.child()
	res, err := executeSafely(bc.engine, tx, child, d.Gas)
	switch {
	case err != nil:
		exec.Error = err.Error()
	case res == nil:
		exec.Error = "engine returned no result"
	default:
		exec.GasConsumed = res.GasConsumed
		exec.Error = res.Error
		if res.Success {
			for _, h := range res.Destroyed {
				if err = child.DestroyContract(h); err != nil {
					exec.Error = err.Error()
					break
				}
			}
			if err == nil {
				child.commit()
				exec.VMState = state.VMHalt
				exec.Events = res.Events
			}
		}
	}

	if !exec.Success() {
		bc.logger.WithFields(logrus.Fields{
			"tx":    th.String(),
			"error": exec.Error,
		}).Debug("Invocation faulted")
	}

	bs.executions = append(bs.executions, exec)
	for _, ev := range exec.Events {
		bs.notifies = append(bs.notifies, events.ContractNotifyEvent{
			BlockIndex: bs.block.Index,
			TxHash:     th,
			Notify:     ev,
		})
	}
}

func newAccount(h common.Uint160) func() *state.Account {
	return func() *state.Account { return state.NewAccount(h) }
}

func newValidator(pub []byte) func() *state.Validator {
	return func() *state.Validator {
		return &state.Validator{PublicKey: append([]byte(nil), pub...)}
	}
}
