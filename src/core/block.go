package core

import (
	"errors"
	"fmt"

	"github.com/mosaicnetworks/neonode/src/codec"
	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/crypto"
)

// MaxTransactionsPerBlock bounds decoding of untrusted blocks.
const MaxTransactionsPerBlock = 0xffff

// ErrMerkleMismatch is returned when a block's merkle root does not commit to
// its transactions.
var ErrMerkleMismatch = errors.New("merkle root does not match transactions")

// Block is a header and its ordered transactions.
type Block struct {
	Header
	Transactions []*Transaction
}

// NewBlock returns a block over txs with the merkle root filled in.
func NewBlock(h Header, txs []*Transaction) (*Block, error) {
	b := &Block{Header: h, Transactions: txs}
	if err := b.RebuildMerkleRoot(); err != nil {
		return nil, err
	}
	return b, nil
}

// RebuildMerkleRoot recomputes the merkle root and resets the cached hash.
func (b *Block) RebuildMerkleRoot() error {
	root, err := crypto.MerkleRoot(b.TransactionHashes())
	if err != nil {
		return err
	}
	b.MerkleRoot = root
	b.hashed = false
	return nil
}

// TransactionHashes ...
func (b *Block) TransactionHashes() []common.Uint256 {
	hs := make([]common.Uint256, len(b.Transactions))
	for i, tx := range b.Transactions {
		hs[i] = tx.Hash()
	}
	return hs
}

// GetHeader returns a copy of the header.
func (b *Block) GetHeader() *Header {
	h := b.Header
	return &h
}

// EncodeBinary ...
func (b *Block) EncodeBinary(w *codec.BinWriter) {
	b.encodeBase(w)
	codec.WritePtrArray(w, b.Transactions)
}

// DecodeBinary decodes a block and checks its merkle root.
func (b *Block) DecodeBinary(r *codec.BinReader) {
	b.decodeBase(r)
	b.Transactions = codec.ReadPtrArray[Transaction](r, MaxTransactionsPerBlock)
	if r.Err != nil {
		return
	}
	root, err := crypto.MerkleRoot(b.TransactionHashes())
	if err != nil {
		r.Err = err
		return
	}
	if root != b.MerkleRoot {
		r.Err = fmt.Errorf("%w: block %d declares %s, computed %s", ErrMerkleMismatch, b.Index, b.MerkleRoot, root)
	}
}

// NewBlockFromBytes ...
func NewBlockFromBytes(data []byte) (*Block, error) {
	b := new(Block)
	if err := codec.FromBytesStrict(data, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Trim returns the storage form of the block: the header base followed by the
// transaction hashes.
func (b *Block) Trim(w *codec.BinWriter) {
	b.encodeBase(w)
	w.WriteUint256Array(b.TransactionHashes())
}

// TrimmedBlock is a block whose transactions are only referenced by hash.
type TrimmedBlock struct {
	Header
	Hashes []common.Uint256
}

// EncodeBinary ...
func (t *TrimmedBlock) EncodeBinary(w *codec.BinWriter) {
	t.encodeBase(w)
	w.WriteUint256Array(t.Hashes)
}

// DecodeBinary ...
func (t *TrimmedBlock) DecodeBinary(r *codec.BinReader) {
	t.decodeBase(r)
	t.Hashes = r.ReadUint256Array(MaxTransactionsPerBlock)
}

// IsHeaderOnly reports whether only the header of this block is known.
func (t *TrimmedBlock) IsHeaderOnly() bool {
	return len(t.Hashes) == 0
}
