// Package keys implements the public key cryptography used to authorize
// blocks and transactions.
//
// Keys are ECDSA keys on the secp256r1 curve. A key is bound to an account
// through a verification script (a single signature check or an m-out-of-n
// multi-signature check) whose Hash160 is the account's script hash. The
// package builds those standard scripts and verifies witnesses that use them.
package keys
