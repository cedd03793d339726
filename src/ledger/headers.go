package ledger

import (
	"fmt"

	"github.com/mosaicnetworks/neonode/src/codec"
	"github.com/mosaicnetworks/neonode/src/common"
	"github.com/mosaicnetworks/neonode/src/core"
	"github.com/mosaicnetworks/neonode/src/storage"
	"github.com/sirupsen/logrus"
)

// AddHeaders appends headers to the header chain and returns how many were
// accepted. Headers already known are skipped. Processing stops at the first
// header that does not extend the chain, with ErrHeaderOutOfOrder, or fails
// verification, with ErrHeaderVerification; headers accepted before it are
// kept.
func (bc *Blockchain) AddHeaders(headers []*core.Header) (int, error) {
	bc.headersLock.Lock()
	defer bc.headersLock.Unlock()

	bc.mu.RLock()
	next := uint32(len(bc.headerIndex))
	prev := bc.lastHeader
	bc.mu.RUnlock()

	var (
		accepted []*core.Header
		stopErr  error
	)
	for _, h := range headers {
		want := next + uint32(len(accepted))
		if h.Index < want {
			continue
		}
		if h.Index > want {
			stopErr = fmt.Errorf("%w: got %d, want %d", ErrHeaderOutOfOrder, h.Index, want)
			break
		}
		if err := bc.verifyHeader(h, prev); err != nil {
			stopErr = err
			break
		}
		accepted = append(accepted, h)
		prev = h
	}

	if len(accepted) == 0 {
		return 0, stopErr
	}

	batch := bc.store.NewBatch()
	defer batch.Discard()

	for _, h := range accepted {
		rec, err := blockRecord(0, func(w *codec.BinWriter) {
			(&core.TrimmedBlock{Header: *h}).EncodeBinary(w)
		})
		if err != nil {
			return 0, err
		}
		batch.Put(blockKey(h.Hash()), rec)
	}
	stored := bc.stageHeaders(batch, accepted)

	if err := batch.Commit(); err != nil {
		return 0, fmt.Errorf("add headers: %w", err)
	}
	bc.applyHeaders(accepted, stored)

	bc.logger.WithFields(logrus.Fields{
		"count":         len(accepted),
		"header_height": accepted[len(accepted)-1].Index,
	}).Debug("Added headers")

	return len(accepted), stopErr
}

func (bc *Blockchain) verifyHeader(h, prev *core.Header) error {
	if prev == nil {
		if h.Index != 0 {
			return fmt.Errorf("%w: chain has no genesis header", ErrHeaderOutOfOrder)
		}
		return nil
	}
	if !bc.config.VerifyHeaders {
		return nil
	}
	if h.PrevHash != prev.Hash() {
		return fmt.Errorf("%w: header %d does not link to %s", ErrHeaderVerification, h.Index, prev.Hash())
	}
	if h.Timestamp <= prev.Timestamp {
		return fmt.Errorf("%w: header %d timestamp %d not after %d", ErrHeaderVerification, h.Index, h.Timestamp, prev.Timestamp)
	}
	if bc.verifier != nil {
		return bc.verifier.VerifyHeader(h, prev)
	}
	return nil
}

// stageHeaders writes the header tip pointer and any completed chunk of the
// header index into b. It returns the stored header count once b commits.
// The caller holds headersLock.
func (bc *Blockchain) stageHeaders(b storage.Batch, headers []*core.Header) uint32 {
	tip := headers[len(headers)-1]
	b.Put([]byte{byte(SYSCurrentHeader)}, pointerValue(tip.Hash(), tip.Index))

	hashes := make([]common.Uint256, len(headers))
	for i, h := range headers {
		hashes[i] = h.Hash()
	}
	return bc.stageHeaderChunks(b, hashes)
}

// stageHeaderChunks writes every full chunk of the header index, extended by
// pending, that is not stored yet.
func (bc *Blockchain) stageHeaderChunks(b storage.Batch, pending []common.Uint256) uint32 {
	bc.mu.RLock()
	stored := bc.storedHeaderCount
	all := make([]common.Uint256, 0, len(bc.headerIndex)-int(stored)+len(pending))
	all = append(all, bc.headerIndex[stored:]...)
	bc.mu.RUnlock()
	all = append(all, pending...)

	for len(all) >= headerBatchSize {
		w := codec.NewBinWriter()
		w.WriteUint256Array(all[:headerBatchSize])
		b.Put(headerListKey(stored), w.Bytes())
		stored += headerBatchSize
		all = all[headerBatchSize:]
	}
	return stored
}

func (bc *Blockchain) applyHeaders(headers []*core.Header, stored uint32) {
	bc.mu.Lock()
	for _, h := range headers {
		bc.headerIndex = append(bc.headerIndex, h.Hash())
	}
	bc.lastHeader = headers[len(headers)-1]
	bc.storedHeaderCount = stored
	height := len(bc.headerIndex) - 1
	bc.mu.Unlock()

	prometheusHeaderHeight.Set(float64(height))
}
