package ledger

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/mosaicnetworks/neonode/src/codec"
	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/core"
	"github.com/mosaicnetworks/neonode/src/core/state"
	"github.com/mosaicnetworks/neonode/src/crypto"
	"github.com/mosaicnetworks/neonode/src/crypto/keys"
	"github.com/mosaicnetworks/neonode/src/events"
	"github.com/mosaicnetworks/neonode/src/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testChain struct {
	t         *testing.T
	bc        *Blockchain
	bus       *events.Bus
	store     storage.Store
	cfg       Config
	key       *ecdsa.PrivateKey
	consensus []byte
	tip       *core.Header
	nonce     uint32
}

func newTestChain(t *testing.T, engine Engine) *testChain {
	key, err := keys.GenerateECDSAKey()
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.StandbyValidators = []string{hex.EncodeToString(keys.EncodeCompressed(&key.PublicKey))}
	cfg.MemPoolSize = 10

	store, err := storage.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c := &testChain{
		t:     t,
		bus:   events.NewBus(common.NewTestEntry(t, common.TestLogLevel)),
		store: store,
		cfg:   cfg,
		key:   key,
	}
	c.consensus, err = ConsensusScript([]*ecdsa.PublicKey{&key.PublicKey})
	require.NoError(t, err)

	c.bc = c.open(engine)
	c.tip = c.bc.Genesis().GetHeader()
	return c
}

func (c *testChain) open(engine Engine) *Blockchain {
	bc, err := NewBlockchain(c.store, c.cfg, engine, c.bus, common.NewTestEntry(c.t, common.TestLogLevel))
	require.NoError(c.t, err)
	bc.SetWitnessVerifier(ScriptWitnessVerifier{})
	return bc
}

// nextBlock builds and signs the block after the current tip. A miner
// transaction keeps every block non-empty and unique.
func (c *testChain) nextBlock(txs ...*core.Transaction) *core.Block {
	c.nonce++
	all := append([]*core.Transaction{core.NewTransaction(&core.MinerTx{Nonce: c.nonce})}, txs...)
	header := core.Header{
		PrevHash:      c.tip.Hash(),
		Timestamp:     c.tip.Timestamp + 15,
		Index:         c.tip.Index + 1,
		ConsensusData: uint64(c.nonce),
		NextConsensus: crypto.Hash160(c.consensus),
	}
	b, err := core.NewBlock(header, all)
	require.NoError(c.t, err)

	sig, err := keys.Sign(c.key, b.HashData())
	require.NoError(c.t, err)
	b.Witness = core.Witness{
		InvocationScript:   keys.SignatureInvocation(sig),
		VerificationScript: c.consensus,
	}
	c.tip = b.GetHeader()
	return b
}

func (c *testChain) persist(txs ...*core.Transaction) *core.Block {
	b := c.nextBlock(txs...)
	require.NoError(c.t, c.bc.Persist(b))
	return b
}

func (c *testChain) issueTx() *core.Transaction {
	return c.bc.Genesis().Transactions[3]
}

func transfer(in core.CoinReference, asset common.Uint256, outs ...core.Output) *core.Transaction {
	tx := core.NewTransaction(&core.ContractTx{})
	tx.Inputs = []core.CoinReference{in}
	for _, o := range outs {
		o.AssetID = asset
		tx.Outputs = append(tx.Outputs, o)
	}
	return tx
}

func scriptHash(b byte) common.Uint160 {
	return crypto.Hash160([]byte{b})
}

func TestNewBlockchainPersistsGenesis(t *testing.T) {
	c := newTestChain(t, nil)
	bc := c.bc

	assert.Equal(t, uint32(0), bc.Height())
	assert.Equal(t, uint32(0), bc.HeaderHeight())
	assert.Equal(t, bc.Genesis().Hash(), bc.CurrentBlockHash())
	assert.Equal(t, bc.Genesis().Hash(), bc.CurrentHeaderHash())

	b, err := bc.GetBlockByHeight(0)
	require.NoError(t, err)
	assert.Equal(t, bc.Genesis().Hash(), b.Hash())
	assert.Len(t, b.Transactions, 4)

	neo, err := bc.GetAssetState(bc.GoverningToken())
	require.NoError(t, err)
	assert.Equal(t, core.GoverningToken, neo.AssetType)
	assert.Equal(t, governingTokenAmount, neo.Amount)
	assert.Equal(t, governingTokenAmount, neo.Available)
	assert.Equal(t, uint32(1+registerValidity), neo.Expiration)

	gas, err := bc.GetAssetState(bc.UtilityToken())
	require.NoError(t, err)
	assert.Equal(t, common.Fixed8(0), gas.Available)

	acct, err := bc.GetAccountState(crypto.Hash160(c.consensus))
	require.NoError(t, err)
	assert.Equal(t, governingTokenAmount, acct.Balance(bc.GoverningToken()))

	version, err := c.store.Get([]byte{byte(SYSVersion)})
	require.NoError(t, err)
	assert.Equal(t, schemaVersion, string(version))
}

func TestGenesisIsDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	a, err := createGenesisBlock(cfg)
	require.NoError(t, err)
	b, err := createGenesisBlock(cfg)
	require.NoError(t, err)
	assert.Equal(t, a.Hash(), b.Hash())
	assert.Equal(t, uint32(0), a.Index)
}

func TestPersistHeightIsMonotonic(t *testing.T) {
	c := newTestChain(t, nil)

	var blocks []*core.Block
	for i := 1; i <= 5; i++ {
		b := c.persist()
		blocks = append(blocks, b)
		require.Equal(t, uint32(i), c.bc.Height())
		require.Equal(t, b.Hash(), c.bc.CurrentBlockHash())
	}
	assert.Equal(t, uint32(5), c.bc.HeaderHeight())
	assert.Equal(t, uint64(4+5), c.bc.TotalTransactions())

	res, err := c.bc.TryPersist(blocks[2])
	require.NoError(t, err)
	assert.Equal(t, ResultAlreadyPersisted, res)

	c.nextBlock()
	ahead := c.nextBlock()
	res, err = c.bc.TryPersist(ahead)
	require.NoError(t, err)
	assert.Equal(t, ResultOutOfOrder, res)
	assert.Equal(t, uint32(5), c.bc.Height())

	err = c.bc.Persist(ahead)
	assert.True(t, errors.Is(err, ErrInvalidBlockIndex))

	for i, b := range blocks {
		got, err := c.bc.GetBlockByHeight(uint32(i + 1))
		require.NoError(t, err)
		assert.Equal(t, b.Hash(), got.Hash())
	}
}

func TestEndToEndTransfers(t *testing.T) {
	c := newTestChain(t, nil)
	bc := c.bc
	issue := c.issueTx()
	neo := bc.GoverningToken()
	owner := crypto.Hash160(c.consensus)
	alice := scriptHash(1)

	tx1 := transfer(core.CoinReference{PrevHash: issue.Hash(), PrevIndex: 0}, neo,
		core.Output{Value: common.Fixed8FromInt64(40), ScriptHash: alice},
		core.Output{Value: governingTokenAmount - common.Fixed8FromInt64(40), ScriptHash: owner},
	)
	// spends an output of a transaction in the same block
	tx2 := transfer(core.CoinReference{PrevHash: tx1.Hash(), PrevIndex: 0}, neo,
		core.Output{Value: common.Fixed8FromInt64(40), ScriptHash: scriptHash(2)},
	)
	b := c.persist(tx1, tx2)

	_, err := bc.GetAccountState(alice)
	assert.True(t, common.IsStore(err, common.KeyNotFound), "empty account is dropped")

	bob, err := bc.GetAccountState(scriptHash(2))
	require.NoError(t, err)
	assert.Equal(t, common.Fixed8FromInt64(40), bob.Balance(neo))

	rest, err := bc.GetAccountState(owner)
	require.NoError(t, err)
	assert.Equal(t, governingTokenAmount-common.Fixed8FromInt64(40), rest.Balance(neo))

	// the issue output is fully spent
	_, err = bc.GetUnspentCoins(issue.Hash())
	assert.True(t, common.IsStore(err, common.KeyNotFound))

	coins, err := bc.GetUnspentCoins(tx1.Hash())
	require.NoError(t, err)
	assert.True(t, coins.IsSpent(0))
	assert.False(t, coins.IsSpent(1))

	spent, err := bc.GetSpentCoins(issue.Hash())
	require.NoError(t, err)
	assert.Equal(t, uint32(0), spent.TxHeight)
	assert.Equal(t, b.Index, spent.Items[0])

	got, height, err := bc.GetTransaction(tx2.Hash())
	require.NoError(t, err)
	assert.Equal(t, b.Index, height)
	assert.Equal(t, tx2.Hash(), got.Hash())
	assert.True(t, bc.ContainsTransaction(tx1.Hash()))

	// double spend in a later block fails and leaves the chain as it was
	bad := transfer(core.CoinReference{PrevHash: issue.Hash(), PrevIndex: 0}, neo,
		core.Output{Value: 1, ScriptHash: alice})
	err = bc.Persist(c.nextBlock(bad))
	assert.True(t, errors.Is(err, ErrUnknownInput))
	assert.True(t, IsInvalidBlock(err))
	assert.Equal(t, b.Index, bc.Height())
	assert.False(t, bc.ContainsTransaction(bad.Hash()))
}

func TestSystemFeeAccumulates(t *testing.T) {
	c := newTestChain(t, nil)
	genesisFee, err := c.bc.GetSysFeeAmount(c.bc.Genesis().Hash())
	require.NoError(t, err)

	reg := core.NewTransaction(&core.RegisterTx{
		AssetType: core.Token,
		Name:      "token",
		Amount:    common.Fixed8FromInt64(1000),
		Precision: 8,
		Admin:     scriptHash(3),
	})
	b := c.persist(reg)

	fee, err := c.bc.GetSysFeeAmount(b.Hash())
	require.NoError(t, err)
	assert.Equal(t, genesisFee+common.Fixed8FromInt64(10000), fee)

	asset, err := c.bc.GetAssetState(reg.Hash())
	require.NoError(t, err)
	assert.Equal(t, "token", asset.Name)
	assert.Equal(t, scriptHash(3), asset.Issuer)
	assert.Equal(t, b.Index+1+registerValidity, asset.Expiration)
}

func TestAddHeadersAheadOfBlocks(t *testing.T) {
	c := newTestChain(t, nil)

	var blocks []*core.Block
	var headers []*core.Header
	for i := 0; i < 3; i++ {
		b := c.nextBlock()
		blocks = append(blocks, b)
		headers = append(headers, b.GetHeader())
	}

	n, err := c.bc.AddHeaders(headers)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, uint32(3), c.bc.HeaderHeight())
	assert.Equal(t, uint32(0), c.bc.Height())

	// known headers are skipped
	n, err = c.bc.AddHeaders(headers)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	h, err := c.bc.GetHeader(blocks[1].Hash())
	require.NoError(t, err)
	assert.Equal(t, uint32(2), h.Index)

	_, err = c.bc.GetBlock(blocks[1].Hash())
	assert.True(t, common.IsStore(err, common.KeyNotFound))
	assert.False(t, c.bc.ContainsBlock(blocks[1].Hash()))

	for _, b := range blocks {
		res, err := c.bc.TryPersist(b)
		require.NoError(t, err)
		assert.Equal(t, ResultPersisted, res)
	}
	assert.Equal(t, uint32(3), c.bc.Height())
	assert.True(t, c.bc.ContainsBlock(blocks[1].Hash()))
}

func TestAddHeadersStopsAtGap(t *testing.T) {
	c := newTestChain(t, nil)
	h1 := c.nextBlock().GetHeader()
	c.nextBlock()
	h3 := c.nextBlock().GetHeader()

	n, err := c.bc.AddHeaders([]*core.Header{h3})
	assert.Equal(t, 0, n)
	assert.True(t, errors.Is(err, ErrHeaderOutOfOrder))

	n, err = c.bc.AddHeaders([]*core.Header{h1, h3})
	assert.Equal(t, 1, n)
	assert.True(t, errors.Is(err, ErrHeaderOutOfOrder))
	assert.Equal(t, uint32(1), c.bc.HeaderHeight())
}

func TestAddHeadersVerification(t *testing.T) {
	c := newTestChain(t, nil)

	b := c.nextBlock()
	unlinked := *b.GetHeader()
	unlinked.PrevHash = common.Uint256{1}
	_, err := c.bc.AddHeaders([]*core.Header{&unlinked})
	assert.True(t, errors.Is(err, ErrHeaderVerification))

	other, err := keys.GenerateECDSAKey()
	require.NoError(t, err)
	forged := *b.GetHeader()
	sig, err := keys.Sign(other, forged.HashData())
	require.NoError(t, err)
	forged.Witness.InvocationScript = keys.SignatureInvocation(sig)
	_, err = c.bc.AddHeaders([]*core.Header{&forged})
	assert.True(t, errors.Is(err, ErrHeaderVerification))

	n, err := c.bc.AddHeaders([]*core.Header{b.GetHeader()})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReopenRestoresChain(t *testing.T) {
	c := newTestChain(t, nil)
	c.persist()
	b2 := c.persist()
	h3 := c.nextBlock().GetHeader()
	_, err := c.bc.AddHeaders([]*core.Header{h3})
	require.NoError(t, err)

	bc := c.open(nil)
	assert.Equal(t, uint32(2), bc.Height())
	assert.Equal(t, uint32(3), bc.HeaderHeight())
	assert.Equal(t, b2.Hash(), bc.CurrentBlockHash())
	assert.Equal(t, h3.Hash(), bc.CurrentHeaderHash())
}

func TestHeaderIndexChunks(t *testing.T) {
	c := newTestChain(t, nil)
	c.cfg.VerifyHeaders = false
	c.bc = c.open(nil)

	headers := make([]*core.Header, 0, headerBatchSize+10)
	for i := 0; i < headerBatchSize+10; i++ {
		c.tip = &core.Header{
			PrevHash:  c.tip.Hash(),
			Timestamp: c.tip.Timestamp + 1,
			Index:     c.tip.Index + 1,
		}
		headers = append(headers, c.tip)
	}
	n, err := c.bc.AddHeaders(headers)
	require.NoError(t, err)
	require.Equal(t, len(headers), n)

	_, err = c.store.Get(headerListKey(0))
	require.NoError(t, err)

	bc := c.open(nil)
	assert.Equal(t, uint32(headerBatchSize+10), bc.HeaderHeight())
	h, ok := bc.GetHeaderHash(headerBatchSize + 5)
	require.True(t, ok)
	assert.Equal(t, headers[headerBatchSize+4].Hash(), h)

	// a missing chunk is rebuilt from the stored headers
	require.NoError(t, c.store.Delete(headerListKey(0)))
	bc = c.open(nil)
	assert.Equal(t, uint32(headerBatchSize+10), bc.HeaderHeight())
	h, ok = bc.GetHeaderHash(1)
	require.True(t, ok)
	assert.Equal(t, headers[0].Hash(), h)
	_, err = c.store.Get(headerListKey(0))
	assert.NoError(t, err)
}

func TestSchemaVersionMismatch(t *testing.T) {
	c := newTestChain(t, nil)
	require.NoError(t, c.store.Put([]byte{byte(SYSVersion)}, []byte("neonode/0")))

	_, err := NewBlockchain(c.store, c.cfg, nil, nil, common.NewTestEntry(t, common.TestLogLevel))
	assert.True(t, errors.Is(err, ErrSchemaVersion))
}

func TestEventsFollowCommit(t *testing.T) {
	c := newTestChain(t, nil)

	var seen []uint32
	c.bus.Subscribe(events.PersistCompleted, func(e events.Event) {
		ev := e.(events.PersistCompletedEvent)
		assert.Equal(t, ev.Block.Index, c.bc.Height())
		assert.True(t, c.bc.ContainsBlock(ev.Block.Hash()))
		seen = append(seen, ev.Block.Index)
	})

	var direct int
	unsubscribe := c.bc.SubscribePersistCompleted(func(events.PersistCompletedEvent) { direct++ })

	c.persist()
	c.persist()
	unsubscribe()
	c.persist()

	assert.Equal(t, []uint32{1, 2, 3}, seen)
	assert.Equal(t, 2, direct)
}

type engineFunc func(tx *core.Transaction, view *StateView) (*ExecutionResult, error)

func (f engineFunc) Execute(_ state.Trigger, tx *core.Transaction, view *StateView, _ common.Fixed8) (*ExecutionResult, error) {
	return f(tx, view)
}

func invocation(script ...byte) *core.Transaction {
	tx := core.NewTransaction(&core.InvocationTx{Script: script})
	tx.Version = 1
	return tx
}

func TestInvocationChangesKeptOnlyOnSuccess(t *testing.T) {
	contract := scriptHash(9)
	engine := engineFunc(func(tx *core.Transaction, view *StateView) (*ExecutionResult, error) {
		script := tx.Data.(*core.InvocationTx).Script
		view.Storages.Add(state.StorageKey(contract, script), &state.StorageItem{Value: script})
		switch script[0] {
		case 0x01:
			return &ExecutionResult{
				Success: true,
				Events:  []state.NotifyEvent{{ScriptHash: contract, Payload: []byte("hi")}},
			}, nil
		case 0x02:
			return &ExecutionResult{Success: false, Error: "fault"}, nil
		case 0x03:
			return nil, errors.New("engine error")
		}
		panic("bad script")
	})
	c := newTestChain(t, engine)

	var notifies []events.ContractNotifyEvent
	c.bus.Subscribe(events.ContractNotify, func(e events.Event) {
		ev := e.(events.ContractNotifyEvent)
		assert.Equal(t, ev.BlockIndex, c.bc.Height())
		notifies = append(notifies, ev)
	})

	ok, fault, failed, panicked := invocation(0x01), invocation(0x02), invocation(0x03), invocation(0x04)
	b := c.persist(ok, fault, failed, panicked)

	item, err := c.bc.GetStorageItem(contract, []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, item.Value)

	for _, s := range []byte{0x02, 0x03, 0x04} {
		_, err := c.bc.GetStorageItem(contract, []byte{s})
		assert.True(t, common.IsStore(err, common.KeyNotFound), "script %x", s)
	}

	exec, err := c.bc.GetExecutionResult(ok.Hash())
	require.NoError(t, err)
	assert.True(t, exec.Success())
	assert.Len(t, exec.Events, 1)

	for _, tx := range []*core.Transaction{fault, failed, panicked} {
		exec, err := c.bc.GetExecutionResult(tx.Hash())
		require.NoError(t, err)
		assert.Equal(t, state.VMFault, exec.VMState)
		assert.NotEmpty(t, exec.Error)
	}

	require.Len(t, notifies, 1)
	assert.Equal(t, b.Index, notifies[0].BlockIndex)
	assert.Equal(t, ok.Hash(), notifies[0].TxHash)
}

func TestDestroyContractRemovesStorage(t *testing.T) {
	script := []byte{0x51, 0x66}
	var contract common.Uint160
	engine := engineFunc(func(tx *core.Transaction, view *StateView) (*ExecutionResult, error) {
		switch tx.Data.(*core.InvocationTx).Script[0] {
		case 0x01:
			view.Storages.Add(state.StorageKey(contract, []byte("a")), &state.StorageItem{Value: []byte{1}})
			view.Storages.Add(state.StorageKey(contract, []byte("b")), &state.StorageItem{Value: []byte{2}})
			return &ExecutionResult{Success: true}, nil
		default:
			return &ExecutionResult{Success: true, Destroyed: []common.Uint160{contract}}, nil
		}
	})
	c := newTestChain(t, engine)

	publish := core.NewTransaction(&core.PublishTx{Script: script, NeedStorage: true, Name: "c"})
	publish.Version = 1
	c.persist(publish)

	contract = crypto.Hash160(script)
	cs, err := c.bc.GetContract(contract)
	require.NoError(t, err)
	assert.True(t, cs.HasStorage())

	c.persist(invocation(0x01))
	_, err = c.bc.GetStorageItem(contract, []byte("a"))
	require.NoError(t, err)

	c.persist(invocation(0x02))
	_, err = c.bc.GetContract(contract)
	assert.True(t, common.IsStore(err, common.KeyNotFound))
	for _, k := range []string{"a", "b"} {
		_, err = c.bc.GetStorageItem(contract, []byte(k))
		assert.True(t, common.IsStore(err, common.KeyNotFound))
	}
}

func TestEnrollmentAndVotes(t *testing.T) {
	c := newTestChain(t, nil)
	neo := c.bc.GoverningToken()
	owner := crypto.Hash160(c.consensus)
	pub := keys.EncodeCompressed(&c.key.PublicKey)

	c.persist(core.NewTransaction(&core.EnrollmentTx{PublicKey: pub}))

	vote := core.NewTransaction(&core.StateTx{Descriptors: []core.StateDescriptor{{
		Type:  core.AccountStateType,
		Key:   owner.Bytes(),
		Field: "Votes",
		Value: newVotes(pub),
	}}})
	c.persist(vote)

	validators, err := c.bc.GetValidators()
	require.NoError(t, err)
	require.Len(t, validators, 1)
	assert.True(t, validators[0].Registered)
	assert.Equal(t, governingTokenAmount, validators[0].Votes)

	// moving governing tokens moves their votes
	tx := transfer(core.CoinReference{PrevHash: c.issueTx().Hash(), PrevIndex: 0}, neo,
		core.Output{Value: common.Fixed8FromInt64(10), ScriptHash: scriptHash(5)},
		core.Output{Value: governingTokenAmount - common.Fixed8FromInt64(10), ScriptHash: owner},
	)
	c.persist(tx)

	validators, err = c.bc.GetValidators()
	require.NoError(t, err)
	assert.Equal(t, governingTokenAmount-common.Fixed8FromInt64(10), validators[0].Votes)
}

func newVotes(pubs ...[]byte) []byte {
	w := codec.NewBinWriter()
	w.WriteVarUint(uint64(len(pubs)))
	for _, p := range pubs {
		w.WriteECPoint(p)
	}
	return w.Bytes()
}

var errDiskFull = errors.New("disk full")

// failingStore makes every batch commit fail while fail is set.
type failingStore struct {
	storage.Store
	fail bool
}

func (s *failingStore) NewBatch() storage.Batch {
	return &failingBatch{Batch: s.Store.NewBatch(), store: s}
}

type failingBatch struct {
	storage.Batch
	store *failingStore
}

func (b *failingBatch) Commit() error {
	if b.store.fail {
		return errDiskFull
	}
	return b.Batch.Commit()
}

func TestPersistCommitFailureLeavesChain(t *testing.T) {
	c := newTestChain(t, nil)
	failing := &failingStore{Store: c.store}
	c.store = failing
	c.bc = c.open(nil)
	bc := c.bc

	neo := bc.GoverningToken()
	owner := crypto.Hash160(c.consensus)
	issue := c.issueTx()
	tx := transfer(core.CoinReference{PrevHash: issue.Hash(), PrevIndex: 0}, neo,
		core.Output{Value: common.Fixed8FromInt64(5), ScriptHash: scriptHash(3)},
		core.Output{Value: governingTokenAmount - common.Fixed8FromInt64(5), ScriptHash: owner},
	)
	require.NoError(t, bc.SubmitTransaction(tx))

	var completed int
	c.bus.Subscribe(events.PersistCompleted, func(events.Event) { completed++ })

	height, headerHeight := bc.Height(), bc.HeaderHeight()
	current := bc.CurrentBlockHash()
	before, err := bc.GetAccountState(owner)
	require.NoError(t, err)

	b := c.nextBlock(tx)
	failing.fail = true
	err = bc.Persist(b)
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("Persist should return the commit error, got %v", err)
	}
	assert.False(t, IsInvalidBlock(err), "a storage failure does not reject the block")

	assert.Equal(t, height, bc.Height())
	assert.Equal(t, headerHeight, bc.HeaderHeight())
	assert.Equal(t, current, bc.CurrentBlockHash())
	assert.False(t, bc.ContainsBlock(b.Hash()))
	assert.False(t, bc.ContainsTransaction(tx.Hash()))
	assert.True(t, bc.MemPool().Contains(tx.Hash()))
	assert.Equal(t, 0, completed)

	coins, err := bc.GetUnspentCoins(issue.Hash())
	require.NoError(t, err)
	assert.False(t, coins.IsSpent(0))
	after, err := bc.GetAccountState(owner)
	require.NoError(t, err)
	assert.Equal(t, before.Balance(neo), after.Balance(neo))
	_, err = bc.GetAccountState(scriptHash(3))
	assert.True(t, common.IsStore(err, common.KeyNotFound))

	// the same block goes through once the store recovers
	failing.fail = false
	require.NoError(t, bc.Persist(b))
	assert.Equal(t, b.Index, bc.Height())
	assert.Equal(t, b.Index, bc.HeaderHeight())
	assert.Equal(t, 1, completed)
	assert.False(t, bc.MemPool().Contains(tx.Hash()))

	dest, err := bc.GetAccountState(scriptHash(3))
	require.NoError(t, err)
	assert.Equal(t, common.Fixed8FromInt64(5), dest.Balance(neo))
}
