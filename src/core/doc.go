// Package core defines blocks, headers and transactions together with their
// binary forms.
//
// Identities are double SHA256 hashes of the unsigned encoding: a header
// without its witness, a transaction without its witnesses. Hashes are
// computed once, when a value is decoded or first asked for its hash, so a
// value must not be modified after it has been hashed.
package core
