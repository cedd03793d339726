package ledger

import (
	"encoding/binary"

	"github.com/mosaicnetworks/neonode/src/common"
)

// KeyPrefix is the first byte of every ledger key and selects a table.
type KeyPrefix byte

// Tables.
const (
	DataBlock        KeyPrefix = 0x01
	DataTransaction  KeyPrefix = 0x02
	STAccount        KeyPrefix = 0x40
	STCoin           KeyPrefix = 0x44
	STSpentCoin      KeyPrefix = 0x45
	STValidator      KeyPrefix = 0x48
	STAsset          KeyPrefix = 0x4c
	STContract       KeyPrefix = 0x50
	STStorage        KeyPrefix = 0x70
	STExecution      KeyPrefix = 0x71
	IXHeaderHashList KeyPrefix = 0x80
	// NotificationIndex is reserved for the notification side index, which
	// shares the database through a prefixed view.
	NotificationIndex KeyPrefix = 0x90
	SYSCurrentBlock   KeyPrefix = 0xc0
	SYSCurrentHeader  KeyPrefix = 0xc1
	SYSVersion        KeyPrefix = 0xf0
)

// schemaVersion is stored under SYSVersion. A database written with a
// different value is refused.
const schemaVersion = "neonode/1"

func makeKey(p KeyPrefix, k []byte) []byte {
	key := make([]byte, 0, 1+len(k))
	key = append(key, byte(p))
	return append(key, k...)
}

func blockKey(h common.Uint256) []byte {
	return makeKey(DataBlock, h[:])
}

func txKey(h common.Uint256) []byte {
	return makeKey(DataTransaction, h[:])
}

func executionKey(h common.Uint256) []byte {
	return makeKey(STExecution, h[:])
}

func headerListKey(start uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], start)
	return makeKey(IXHeaderHashList, b[:])
}
