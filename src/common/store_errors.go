package common

import (
	"errors"
	"fmt"
)

// StoreErrType ...
type StoreErrType uint32

const (
	// KeyNotFound ...
	KeyNotFound StoreErrType = iota
	// KeyAlreadyExists ...
	KeyAlreadyExists
	// Corrupted is used when a stored value cannot be decoded.
	Corrupted
	// SchemaMismatch ...
	SchemaMismatch
)

var storeErrNames = map[StoreErrType]string{
	KeyNotFound:      "not found",
	KeyAlreadyExists: "already exists",
	Corrupted:        "corrupted",
	SchemaMismatch:   "schema mismatch",
}

// StoreErr is returned by the ledger read paths. It names the kind of record
// that was looked up and its key.
type StoreErr struct {
	dataType string
	errType  StoreErrType
	key      string
}

// NewStoreErr ...
func NewStoreErr(dataType string, errType StoreErrType, key string) StoreErr {
	return StoreErr{dataType: dataType, errType: errType, key: key}
}

// Type ...
func (e StoreErr) Type() StoreErrType {
	return e.errType
}

func (e StoreErr) Error() string {
	return fmt.Sprintf("%s %s: %s", e.dataType, e.key, storeErrNames[e.errType])
}

// IsStore reports whether err, or an error it wraps, is a StoreErr of type t.
func IsStore(err error, t StoreErrType) bool {
	var storeErr StoreErr
	return errors.As(err, &storeErr) && storeErr.errType == t
}
