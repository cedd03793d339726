// Package sync downloads the chain from connected peers.
//
// Headers and blocks are fetched by two independent pipelines. At most one
// header request is outstanding at a time; block requests are batched, at
// most BlockNetworkReqLimit hashes each, and the blocks they return wait in a
// bounded cache until the persister hands them to the ledger in height
// order.
//
// Every outstanding request carries the time it was sent. A periodic check
// compares it against a deadline, penalises the peer that did not answer and
// retries the missing data on another peer. Duplicate or unsolicited
// responses are discarded with a status code telling why.
package sync
