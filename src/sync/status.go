package sync

import "fmt"

// HeaderStatus tells what OnHeadersReceived did with a headers message.
type HeaderStatus int

// Header statuses.
const (
	// HeadersAccepted means the headers answered the outstanding request
	// and were handed to the ledger.
	HeadersAccepted HeaderStatus = iota
	// HeadersEmpty means the message carried no header.
	HeadersEmpty
	// HeadersNotRequested means no header request is outstanding.
	HeadersNotRequested
	// HeadersHeightMismatch means the first header is not the one requested.
	HeadersHeightMismatch
	// HeadersAlreadyHandled means another response to the same request was
	// accepted first.
	HeadersAlreadyHandled
	// HeadersRejected means the ledger refused every header.
	HeadersRejected
)

var headerStatusNames = [...]string{
	"Accepted",
	"Empty",
	"NotRequested",
	"HeightMismatch",
	"AlreadyHandled",
	"Rejected",
}

func (s HeaderStatus) String() string {
	if s >= 0 && int(s) < len(headerStatusNames) {
		return headerStatusNames[s]
	}
	return fmt.Sprintf("HeaderStatus(%d)", int(s))
}

// BlockStatus tells what OnBlockReceived did with a block.
type BlockStatus int

// Block statuses.
const (
	// BlockAccepted means the block was requested and is now cached.
	BlockAccepted BlockStatus = iota
	// BlockNotRequested means no flight is waiting for the block.
	BlockNotRequested
	// BlockAlreadyCached means a block at that height is already cached.
	BlockAlreadyCached
	// BlockAlreadyPersisted means the ledger already holds that height.
	BlockAlreadyPersisted
)

var blockStatusNames = [...]string{
	"Accepted",
	"NotRequested",
	"AlreadyCached",
	"AlreadyPersisted",
}

func (s BlockStatus) String() string {
	if s >= 0 && int(s) < len(blockStatusNames) {
		return blockStatusNames[s]
	}
	return fmt.Sprintf("BlockStatus(%d)", int(s))
}
