package ledger

import "errors"

var (
	// ErrSchemaVersion is returned when the store was written by an
	// incompatible version. The database is never wiped automatically.
	ErrSchemaVersion = errors.New("unsupported database schema version")
	// ErrInvalidBlockIndex is returned by Persist for a block that is not the
	// next one.
	ErrInvalidBlockIndex = errors.New("block is not the next block")
	// ErrHeaderOutOfOrder ...
	ErrHeaderOutOfOrder = errors.New("header does not follow the header chain")
	// ErrHeaderVerification ...
	ErrHeaderVerification = errors.New("header verification failed")
	// ErrUnknownInput is returned when an input references an unknown or
	// already spent output.
	ErrUnknownInput = errors.New("input references an unknown or spent output")
	// ErrDoubleSpend is returned when a transaction spends an output already
	// spent by a pooled transaction.
	ErrDoubleSpend = errors.New("input already spent by a pooled transaction")
	// ErrAlreadyExists ...
	ErrAlreadyExists = errors.New("transaction already known")
	// ErrPolicy wraps policy rejections.
	ErrPolicy = errors.New("transaction rejected by policy")
	// ErrMinerTransaction ...
	ErrMinerTransaction = errors.New("miner transactions are not relayed")
	// ErrUnknownAsset ...
	ErrUnknownAsset = errors.New("output pays an unknown asset")
	// ErrBalance is returned when a transaction creates value it cannot.
	ErrBalance = errors.New("outputs exceed inputs")
	// ErrPoolFull ...
	ErrPoolFull = errors.New("memory pool is full")
	// ErrCorruptHeaderIndex is returned when the header hash list cannot be
	// rebuilt from stored headers.
	ErrCorruptHeaderIndex = errors.New("stored header chain is broken")
	// ErrBlockMismatch is returned when a block does not match the header
	// already indexed at its height.
	ErrBlockMismatch = errors.New("block does not match the header chain")
	// ErrPoolConflict is returned when a transaction claims an output already
	// claimed by a pooled transaction.
	ErrPoolConflict = errors.New("claim conflicts with a pooled transaction")
	// ErrInvalidDescriptor is returned for a state descriptor that names an
	// unknown field or carries a malformed value.
	ErrInvalidDescriptor = errors.New("invalid state descriptor")
)

// invalidBlockErrs are the errors Persist returns for a block that can never
// be applied on top of the current chain, as opposed to a storage failure.
var invalidBlockErrs = []error{
	ErrInvalidBlockIndex,
	ErrBlockMismatch,
	ErrHeaderOutOfOrder,
	ErrHeaderVerification,
	ErrUnknownInput,
	ErrUnknownAsset,
	ErrInvalidDescriptor,
}

// IsInvalidBlock reports whether err rejects the block itself. Any other
// Persist error comes from the store.
func IsInvalidBlock(err error) bool {
	for _, target := range invalidBlockErrs {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// PersistResult tells a caller of TryPersist what happened to a block.
type PersistResult int

const (
	// ResultPersisted means the block is now the current block.
	ResultPersisted PersistResult = iota
	// ResultAlreadyPersisted means a block at that height is already stored.
	ResultAlreadyPersisted
	// ResultOutOfOrder means the block is ahead of the next expected height.
	ResultOutOfOrder
)

func (r PersistResult) String() string {
	switch r {
	case ResultPersisted:
		return "Persisted"
	case ResultAlreadyPersisted:
		return "AlreadyPersisted"
	case ResultOutOfOrder:
		return "OutOfOrder"
	}
	return "Unknown"
}
