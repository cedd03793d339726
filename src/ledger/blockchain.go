package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/mosaicnetworks/neonode/src/codec"
	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/core"
	"github.com/mosaicnetworks/neonode/src/core/state"
	"github.com/mosaicnetworks/neonode/src/events"
	"github.com/mosaicnetworks/neonode/src/storage"
	"github.com/sirupsen/logrus"
)

// Blockchain is the persisted chain of blocks and the state they produce.
//
// Headers run ahead of blocks: the header index holds the hash of every known
// header, while height is the index of the last block whose transactions have
// been applied. Persist is the only writer of state and runs one block at a
// time.
type Blockchain struct {
	config   Config
	store    storage.Store
	engine   Engine
	bus      *events.Bus
	verifier WitnessVerifier
	policy   Policy
	logger   *logrus.Entry

	genesis        *core.Block
	governingToken common.Uint256
	utilityToken   common.Uint256

	// mu guards the fields below it
	mu                sync.RWMutex
	initialized       bool
	height            uint32
	currentBlockHash  common.Uint256
	headerIndex       []common.Uint256
	storedHeaderCount uint32
	lastHeader        *core.Header
	persisting        *core.Block
	totalTxs          uint64

	persistLock sync.Mutex
	headersLock sync.Mutex

	blockCache *lru.Cache
	pool       *MemPool

	subsLock    sync.RWMutex
	subsNextID  uint64
	persistSubs map[uint64]func(events.PersistCompletedEvent)
}

// NewBlockchain opens the chain kept in store. An empty store is initialized
// with the genesis block built from cfg. A nil engine halts every invocation,
// a nil bus publishes nothing.
func NewBlockchain(store storage.Store,
	cfg Config,
	engine Engine,
	bus *events.Bus,
	logger *logrus.Entry) (*Blockchain, error) {

	cfg.normalize()

	genesis, err := createGenesisBlock(cfg)
	if err != nil {
		return nil, fmt.Errorf("genesis block: %w", err)
	}

	cache, err := lru.New(cfg.BlockCacheSize)
	if err != nil {
		return nil, err
	}

	if engine == nil {
		engine = NoopEngine{}
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	initPrometheusMetrics()

	bc := &Blockchain{
		config:         cfg,
		store:          store,
		engine:         engine,
		bus:            bus,
		logger:         logger,
		genesis:        genesis,
		governingToken: genesis.Transactions[1].Hash(),
		utilityToken:   genesis.Transactions[2].Hash(),
		blockCache:     cache,
		pool:           NewMemPool(cfg.MemPoolSize),
		persistSubs:    make(map[uint64]func(events.PersistCompletedEvent)),
	}

	if err := bc.init(); err != nil {
		return nil, err
	}

	bc.logger.WithFields(logrus.Fields{
		"height":        bc.Height(),
		"header_height": bc.HeaderHeight(),
	}).Info("Blockchain ready")

	return bc, nil
}

// SetWitnessVerifier makes AddHeaders verify header witnesses. It must be
// called before headers are added.
func (bc *Blockchain) SetWitnessVerifier(v WitnessVerifier) {
	bc.verifier = v
}

// SetPolicy installs the admission policy of SubmitTransaction.
func (bc *Blockchain) SetPolicy(p Policy) {
	bc.policy = p
}

func (bc *Blockchain) init() error {
	version, err := bc.store.Get([]byte{byte(SYSVersion)})
	if errors.Is(err, storage.ErrNotFound) {
		if _, err := bc.store.Get([]byte{byte(SYSCurrentBlock)}); err == nil {
			return fmt.Errorf("%w: chain data without version", ErrSchemaVersion)
		}
		bc.logger.Info("Initializing new chain")
		if err := bc.store.Put([]byte{byte(SYSVersion)}, []byte(schemaVersion)); err != nil {
			return err
		}
		return bc.Persist(bc.genesis)
	}
	if err != nil {
		return err
	}
	if string(version) != schemaVersion {
		return fmt.Errorf("%w: %q", ErrSchemaVersion, version)
	}
	return bc.load()
}

func (bc *Blockchain) load() error {
	blockHash, height, err := bc.readPointer(SYSCurrentBlock)
	if err != nil {
		return fmt.Errorf("current block: %w", err)
	}

	headerHash, _, err := bc.readPointer(SYSCurrentHeader)
	if errors.Is(err, storage.ErrNotFound) {
		headerHash = blockHash
	} else if err != nil {
		return fmt.Errorf("current header: %w", err)
	}

	stored, err := bc.readHeaderChunks()
	if err != nil {
		return err
	}

	index, err := bc.walkBack(headerHash, stored)
	if err != nil {
		bc.logger.WithError(err).Warn("Header index inconsistent, rebuilding")
		stored = nil
		if index, err = bc.walkBack(headerHash, nil); err != nil {
			return err
		}
	}

	if len(index) == 0 || index[0] != bc.genesis.Hash() {
		return fmt.Errorf("%w: genesis block does not match configuration", ErrCorruptHeaderIndex)
	}
	if int(height) >= len(index) || index[height] != blockHash {
		return fmt.Errorf("%w: current block %s not indexed at %d", ErrCorruptHeaderIndex, blockHash, height)
	}

	tip, err := bc.GetHeader(headerHash)
	if err != nil {
		return err
	}

	bc.mu.Lock()
	bc.initialized = true
	bc.height = height
	bc.currentBlockHash = blockHash
	bc.headerIndex = index
	bc.storedHeaderCount = uint32(len(stored))
	bc.lastHeader = tip
	bc.mu.Unlock()

	// rewrite chunks dropped by a rebuild
	if len(index)-len(stored) >= headerBatchSize {
		batch := bc.store.NewBatch()
		defer batch.Discard()
		count := bc.stageHeaderChunks(batch, nil)
		if err := batch.Commit(); err != nil {
			return err
		}
		bc.mu.Lock()
		bc.storedHeaderCount = count
		bc.mu.Unlock()
	}

	prometheusBlockHeight.Set(float64(height))
	prometheusHeaderHeight.Set(float64(len(index) - 1))
	return nil
}

// readHeaderChunks returns the stored part of the header index. Chunks are
// read in order until one is missing.
func (bc *Blockchain) readHeaderChunks() ([]common.Uint256, error) {
	var index []common.Uint256
	for start := uint32(0); ; start += headerBatchSize {
		data, err := bc.store.Get(headerListKey(start))
		if errors.Is(err, storage.ErrNotFound) {
			return index, nil
		}
		if err != nil {
			return nil, err
		}
		r := codec.NewBinReader(data)
		hashes := r.ReadUint256Array(headerBatchSize)
		if r.Err != nil || len(hashes) != headerBatchSize {
			bc.logger.WithField("start", start).Warn("Dropping malformed header chunk")
			return index, nil
		}
		index = append(index, hashes...)
	}
}

// walkBack follows previous hashes from the header tip down to the end of the
// stored index, and returns the full index.
func (bc *Blockchain) walkBack(tip common.Uint256, stored []common.Uint256) ([]common.Uint256, error) {
	floor := uint32(len(stored))
	var tail []common.Uint256

	h, err := bc.GetHeader(tip)
	if err != nil {
		return nil, err
	}
	if h.Index+1 < floor {
		return nil, fmt.Errorf("%w: header tip %d below stored index %d", ErrCorruptHeaderIndex, h.Index, floor)
	}
	if h.Index+1 == floor && stored[floor-1] != tip {
		return nil, fmt.Errorf("%w: header tip is not the last stored hash", ErrCorruptHeaderIndex)
	}

	for h.Index >= floor {
		tail = append(tail, h.Hash())
		if h.Index == 0 {
			break
		}
		if h.Index == floor {
			if stored[floor-1] != h.PrevHash {
				return nil, fmt.Errorf("%w: header %d does not link to stored index", ErrCorruptHeaderIndex, h.Index)
			}
			break
		}
		prev, err := bc.GetHeader(h.PrevHash)
		if err != nil {
			return nil, fmt.Errorf("%w: header %d: %v", ErrCorruptHeaderIndex, h.Index-1, err)
		}
		if prev.Index+1 != h.Index {
			return nil, fmt.Errorf("%w: header %d links to %d", ErrCorruptHeaderIndex, h.Index, prev.Index)
		}
		h = prev
	}

	index := make([]common.Uint256, 0, len(stored)+len(tail))
	index = append(index, stored...)
	for i := len(tail) - 1; i >= 0; i-- {
		index = append(index, tail[i])
	}
	return index, nil
}

func (bc *Blockchain) readPointer(p KeyPrefix) (common.Uint256, uint32, error) {
	data, err := bc.store.Get([]byte{byte(p)})
	if err != nil {
		return common.Uint256{}, 0, err
	}
	r := codec.NewBinReader(data)
	h := r.ReadUint256()
	i := r.ReadU32LE()
	return h, i, r.Err
}

func pointerValue(h common.Uint256, index uint32) []byte {
	w := codec.NewBinWriter()
	w.WriteUint256(h)
	w.WriteU32LE(index)
	return w.Bytes()
}

/*******************************************************************************
Reads
*******************************************************************************/

// Height returns the index of the current block.
func (bc *Blockchain) Height() uint32 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.height
}

// HeaderHeight returns the index of the highest known header.
func (bc *Blockchain) HeaderHeight() uint32 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return uint32(len(bc.headerIndex) - 1)
}

// CurrentBlockHash ...
func (bc *Blockchain) CurrentBlockHash() common.Uint256 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.currentBlockHash
}

// CurrentHeaderHash ...
func (bc *Blockchain) CurrentHeaderHash() common.Uint256 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.headerIndex[len(bc.headerIndex)-1]
}

// GetHeaderHash returns the hash of the header at index i.
func (bc *Blockchain) GetHeaderHash(i uint32) (common.Uint256, bool) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	if int(i) >= len(bc.headerIndex) {
		return common.Uint256{}, false
	}
	return bc.headerIndex[i], true
}

// HeaderHashes returns up to count header hashes starting at index from.
func (bc *Blockchain) HeaderHashes(from uint32, count int) []common.Uint256 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	if int(from) >= len(bc.headerIndex) || count <= 0 {
		return nil
	}
	end := int(from) + count
	if end > len(bc.headerIndex) {
		end = len(bc.headerIndex)
	}
	return append([]common.Uint256(nil), bc.headerIndex[from:end]...)
}

// Genesis ...
func (bc *Blockchain) Genesis() *core.Block {
	return bc.genesis
}

// GoverningToken returns the id of the governing asset.
func (bc *Blockchain) GoverningToken() common.Uint256 {
	return bc.governingToken
}

// UtilityToken returns the id of the utility asset.
func (bc *Blockchain) UtilityToken() common.Uint256 {
	return bc.utilityToken
}

// PersistingBlock returns the block being persisted, if any.
func (bc *Blockchain) PersistingBlock() *core.Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.persisting
}

// TotalTransactions returns the number of transactions persisted since the
// chain was opened.
func (bc *Blockchain) TotalTransactions() uint64 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.totalTxs
}

// MemPool ...
func (bc *Blockchain) MemPool() *MemPool {
	return bc.pool
}

func (bc *Blockchain) readBlockRecord(h common.Uint256) (common.Fixed8, *core.TrimmedBlock, error) {
	data, err := bc.store.Get(blockKey(h))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil, common.NewStoreErr("Block", common.KeyNotFound, h.String())
	}
	if err != nil {
		return 0, nil, err
	}
	r := codec.NewBinReader(data)
	fee := common.Fixed8(r.ReadI64LE())
	tb := new(core.TrimmedBlock)
	tb.DecodeBinary(r)
	if r.Err != nil {
		return 0, nil, fmt.Errorf("%w: %v", common.NewStoreErr("Block", common.Corrupted, h.String()), r.Err)
	}
	return fee, tb, nil
}

func blockRecord(fee common.Fixed8, write func(*codec.BinWriter)) ([]byte, error) {
	w := codec.NewBinWriter()
	w.WriteI64LE(int64(fee))
	write(w)
	return w.Bytes(), w.Err
}

// GetHeader returns the header of hash, whether or not its block is known.
func (bc *Blockchain) GetHeader(h common.Uint256) (*core.Header, error) {
	if b, ok := bc.blockCache.Get(h); ok {
		return b.(*core.Block).GetHeader(), nil
	}
	_, tb, err := bc.readBlockRecord(h)
	if err != nil {
		return nil, err
	}
	return &tb.Header, nil
}

// GetBlock returns the full block of hash.
func (bc *Blockchain) GetBlock(h common.Uint256) (*core.Block, error) {
	if b, ok := bc.blockCache.Get(h); ok {
		return b.(*core.Block), nil
	}
	_, tb, err := bc.readBlockRecord(h)
	if err != nil {
		return nil, err
	}
	if tb.IsHeaderOnly() {
		return nil, common.NewStoreErr("Block", common.KeyNotFound, h.String())
	}

	block := &core.Block{Header: tb.Header}
	for _, th := range tb.Hashes {
		tx, _, err := bc.GetTransaction(th)
		if err != nil {
			return nil, fmt.Errorf("block %s: %w", h, err)
		}
		block.Transactions = append(block.Transactions, tx)
	}
	bc.blockCache.Add(h, block)
	return block, nil
}

// GetBlockByHeight returns the persisted block at index i.
func (bc *Blockchain) GetBlockByHeight(i uint32) (*core.Block, error) {
	bc.mu.RLock()
	if !bc.initialized || i > bc.height {
		bc.mu.RUnlock()
		return nil, common.NewStoreErr("Block", common.KeyNotFound, fmt.Sprint(i))
	}
	h := bc.headerIndex[i]
	bc.mu.RUnlock()
	return bc.GetBlock(h)
}

// ContainsBlock reports whether the full block of hash is persisted.
func (bc *Blockchain) ContainsBlock(h common.Uint256) bool {
	if _, ok := bc.blockCache.Get(h); ok {
		return true
	}
	_, tb, err := bc.readBlockRecord(h)
	return err == nil && !tb.IsHeaderOnly()
}

// GetSysFeeAmount returns the system fees burned up to and including the
// block of hash.
func (bc *Blockchain) GetSysFeeAmount(h common.Uint256) (common.Fixed8, error) {
	fee, _, err := bc.readBlockRecord(h)
	return fee, err
}

// GetTransaction returns a persisted transaction and the index of its block.
func (bc *Blockchain) GetTransaction(h common.Uint256) (*core.Transaction, uint32, error) {
	data, err := bc.store.Get(txKey(h))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, 0, common.NewStoreErr("Transaction", common.KeyNotFound, h.String())
	}
	if err != nil {
		return nil, 0, err
	}
	r := codec.NewBinReader(data)
	height := r.ReadU32LE()
	tx := new(core.Transaction)
	tx.DecodeBinary(r)
	if r.Err != nil {
		return nil, 0, fmt.Errorf("%w: %v", common.NewStoreErr("Transaction", common.Corrupted, h.String()), r.Err)
	}
	return tx, height, nil
}

// ContainsTransaction ...
func (bc *Blockchain) ContainsTransaction(h common.Uint256) bool {
	_, err := bc.store.Get(txKey(h))
	return err == nil
}

func getState[T any, PT serializable[T]](r storage.Reader, p KeyPrefix, key []byte, name string) (*T, error) {
	data, err := r.Get(makeKey(p, key))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, common.NewStoreErr(name, common.KeyNotFound, fmt.Sprintf("%x", key))
	}
	if err != nil {
		return nil, err
	}
	v := new(T)
	if err := codec.FromBytes(data, PT(v)); err != nil {
		return nil, fmt.Errorf("%w: %v", common.NewStoreErr(name, common.Corrupted, fmt.Sprintf("%x", key)), err)
	}
	return v, nil
}

// GetAccountState ...
func (bc *Blockchain) GetAccountState(h common.Uint160) (*state.Account, error) {
	return getState[state.Account](bc.store, STAccount, h[:], "Account")
}

// GetAssetState ...
func (bc *Blockchain) GetAssetState(id common.Uint256) (*state.Asset, error) {
	return getState[state.Asset](bc.store, STAsset, id[:], "Asset")
}

// GetContract ...
func (bc *Blockchain) GetContract(h common.Uint160) (*state.Contract, error) {
	return getState[state.Contract](bc.store, STContract, h[:], "Contract")
}

// GetStorageItem ...
func (bc *Blockchain) GetStorageItem(contract common.Uint160, key []byte) (*state.StorageItem, error) {
	return getState[state.StorageItem](bc.store, STStorage, state.StorageKey(contract, key), "Storage")
}

// GetUnspentCoins ...
func (bc *Blockchain) GetUnspentCoins(h common.Uint256) (*state.UnspentCoins, error) {
	return getState[state.UnspentCoins](bc.store, STCoin, h[:], "UnspentCoins")
}

// GetSpentCoins ...
func (bc *Blockchain) GetSpentCoins(h common.Uint256) (*state.SpentCoins, error) {
	return getState[state.SpentCoins](bc.store, STSpentCoin, h[:], "SpentCoins")
}

// GetExecutionResult returns the recorded execution of an invocation
// transaction.
func (bc *Blockchain) GetExecutionResult(h common.Uint256) (*state.Execution, error) {
	return getState[state.Execution](bc.store, STExecution, h[:], "Execution")
}

// GetValidators returns every validator record in public key order.
func (bc *Blockchain) GetValidators() ([]*state.Validator, error) {
	var (
		res       []*state.Validator
		decodeErr error
	)
	err := bc.store.Seek([]byte{byte(STValidator)}, storage.IterOptions{}, func(_, v []byte) bool {
		val := new(state.Validator)
		if decodeErr = codec.FromBytes(v, val); decodeErr != nil {
			return false
		}
		res = append(res, val)
		return true
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	sort.Slice(res, func(i, j int) bool {
		return string(res[i].PublicKey) < string(res[j].PublicKey)
	})
	return res, nil
}

// SubscribePersistCompleted registers f to be called after every persisted
// block. It returns the function that removes f.
func (bc *Blockchain) SubscribePersistCompleted(f func(events.PersistCompletedEvent)) func() {
	bc.subsLock.Lock()
	bc.subsNextID++
	id := bc.subsNextID
	bc.persistSubs[id] = f
	bc.subsLock.Unlock()

	return func() {
		bc.subsLock.Lock()
		delete(bc.persistSubs, id)
		bc.subsLock.Unlock()
	}
}
