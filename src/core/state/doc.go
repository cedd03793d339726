// Package state defines the mutable records the ledger keeps next to the
// chain: accounts, assets, contracts, contract storage, coin states and
// validators. Every record starts with a one byte format version.
package state
