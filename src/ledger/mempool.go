package ledger

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/core"
	"github.com/mosaicnetworks/neonode/src/events"
	"github.com/sirupsen/logrus"
)

// MemPool holds verified transactions waiting for a block. It remembers the
// outputs they spend and claim so conflicting transactions are refused.
type MemPool struct {
	sync.RWMutex
	capacity int
	txs      map[common.Uint256]*core.Transaction
	spent    map[core.CoinReference]common.Uint256
	claimed  map[core.CoinReference]common.Uint256
}

// NewMemPool ...
func NewMemPool(capacity int) *MemPool {
	return &MemPool{
		capacity: capacity,
		txs:      make(map[common.Uint256]*core.Transaction),
		spent:    make(map[core.CoinReference]common.Uint256),
		claimed:  make(map[core.CoinReference]common.Uint256),
	}
}

// Count ...
func (p *MemPool) Count() int {
	p.RLock()
	defer p.RUnlock()
	return len(p.txs)
}

// Contains ...
func (p *MemPool) Contains(h common.Uint256) bool {
	p.RLock()
	defer p.RUnlock()
	_, ok := p.txs[h]
	return ok
}

// Get ...
func (p *MemPool) Get(h common.Uint256) (*core.Transaction, bool) {
	p.RLock()
	defer p.RUnlock()
	tx, ok := p.txs[h]
	return tx, ok
}

// Transactions returns the pooled transactions in hash order.
func (p *MemPool) Transactions() []*core.Transaction {
	p.RLock()
	defer p.RUnlock()
	res := make([]*core.Transaction, 0, len(p.txs))
	for _, tx := range p.txs {
		res = append(res, tx)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Hash().Less(res[j].Hash())
	})
	return res
}

// Add inserts tx unless it conflicts with a pooled transaction.
func (p *MemPool) Add(tx *core.Transaction) error {
	p.Lock()
	defer p.Unlock()

	h := tx.Hash()
	if _, ok := p.txs[h]; ok {
		return ErrAlreadyExists
	}
	if len(p.txs) >= p.capacity {
		return ErrPoolFull
	}
	for _, in := range tx.Inputs {
		if _, ok := p.spent[in]; ok {
			return fmt.Errorf("%w: %s:%d", ErrDoubleSpend, in.PrevHash, in.PrevIndex)
		}
	}
	claims := claimsOf(tx)
	for _, c := range claims {
		if _, ok := p.claimed[c]; ok {
			return fmt.Errorf("%w: %s:%d", ErrPoolConflict, c.PrevHash, c.PrevIndex)
		}
	}

	p.txs[h] = tx
	for _, in := range tx.Inputs {
		p.spent[in] = h
	}
	for _, c := range claims {
		p.claimed[c] = h
	}
	return nil
}

// Remove ...
func (p *MemPool) Remove(h common.Uint256) {
	p.Lock()
	defer p.Unlock()
	p.remove(h)
}

func (p *MemPool) remove(h common.Uint256) {
	tx, ok := p.txs[h]
	if !ok {
		return
	}
	delete(p.txs, h)
	for _, in := range tx.Inputs {
		delete(p.spent, in)
	}
	for _, c := range claimsOf(tx) {
		delete(p.claimed, c)
	}
}

// RemoveBlock drops the transactions of block and every pooled transaction
// that spends or claims the same outputs.
func (p *MemPool) RemoveBlock(block *core.Block) {
	p.Lock()
	defer p.Unlock()

	for _, tx := range block.Transactions {
		p.remove(tx.Hash())
		for _, in := range tx.Inputs {
			if other, ok := p.spent[in]; ok {
				p.remove(other)
			}
		}
		for _, c := range claimsOf(tx) {
			if other, ok := p.claimed[c]; ok {
				p.remove(other)
			}
		}
	}
}

func claimsOf(tx *core.Transaction) []core.CoinReference {
	if c, ok := tx.Data.(*core.ClaimTx); ok {
		return c.Claims
	}
	return nil
}

// SubmitTransaction verifies tx against the persisted state and the memory
// pool and, if it is acceptable, pools it and announces it for relay.
func (bc *Blockchain) SubmitTransaction(tx *core.Transaction) error {
	if tx.Type == core.MinerType {
		return ErrMinerTransaction
	}
	h := tx.Hash()
	if bc.pool.Contains(h) || bc.ContainsTransaction(h) {
		return ErrAlreadyExists
	}

	if err := bc.verifyTransaction(tx); err != nil {
		return err
	}
	if bc.policy != nil {
		if err := bc.policy.Check(tx, bc); err != nil {
			return fmt.Errorf("%w: %v", ErrPolicy, err)
		}
	}
	if err := bc.pool.Add(tx); err != nil {
		return err
	}
	prometheusMemPoolSize.Set(float64(bc.pool.Count()))

	bc.logger.WithFields(logrus.Fields{
		"tx":   h.String(),
		"type": tx.Type.String(),
	}).Debug("Transaction added to pool")

	if bc.bus != nil {
		bc.bus.Publish(events.TransactionAddedEvent{Transaction: tx})
	}
	return nil
}

func (bc *Blockchain) verifyTransaction(tx *core.Transaction) error {
	seen := make(map[core.CoinReference]struct{}, len(tx.Inputs))
	spent := make([]persistedOutput, 0, len(tx.Inputs))
	for _, in := range tx.Inputs {
		if _, ok := seen[in]; ok {
			return fmt.Errorf("%w: %s:%d spent twice", ErrDoubleSpend, in.PrevHash, in.PrevIndex)
		}
		seen[in] = struct{}{}

		coins, err := bc.GetUnspentCoins(in.PrevHash)
		if err != nil || coins.IsSpent(in.PrevIndex) {
			return fmt.Errorf("%w: %s:%d", ErrUnknownInput, in.PrevHash, in.PrevIndex)
		}
		prev, height, err := bc.GetTransaction(in.PrevHash)
		if err != nil || int(in.PrevIndex) >= len(prev.Outputs) {
			return fmt.Errorf("%w: %s:%d", ErrUnknownInput, in.PrevHash, in.PrevIndex)
		}
		spent = append(spent, persistedOutput{out: prev.Outputs[in.PrevIndex], height: height})
	}

	for _, out := range tx.Outputs {
		if _, err := bc.GetAssetState(out.AssetID); err != nil {
			return fmt.Errorf("%w: %s", ErrUnknownAsset, out.AssetID)
		}
	}

	for _, c := range claimsOf(tx) {
		sc, err := bc.GetSpentCoins(c.PrevHash)
		if err != nil {
			return fmt.Errorf("%w: claim %s:%d", ErrUnknownInput, c.PrevHash, c.PrevIndex)
		}
		if _, ok := sc.Items[c.PrevIndex]; !ok {
			return fmt.Errorf("%w: claim %s:%d", ErrUnknownInput, c.PrevHash, c.PrevIndex)
		}
	}

	results := transactionResults(tx, spent)
	fee := tx.SystemFee(bc.config.SystemFees)
	for id, amount := range results {
		switch {
		case tx.Type == core.IssueType, tx.Type == core.ClaimType && id == bc.utilityToken:
			continue
		case id == bc.utilityToken:
			if amount < fee {
				return fmt.Errorf("%w: fee %s not covered", ErrBalance, fee)
			}
		case amount < 0:
			return fmt.Errorf("%w: asset %s", ErrBalance, id)
		}
	}
	if _, ok := results[bc.utilityToken]; !ok && fee > 0 && tx.Type != core.IssueType {
		return fmt.Errorf("%w: fee %s not covered", ErrBalance, fee)
	}
	return nil
}
