package rpc

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jabolina/yail-go/pkg/yail/envelope"
)

// handle is a generational reference into Server.rpcs, replacing the raw
// pointer back-reference the source keeps from TxCtx to its RpcContext
// (§9 "Raw pointer back-references" design note). It is valid only as
// long as the rpcEntry it names has not been replaced.
type handle struct {
	rpcID   string
	version uint64
}

const (
	txOK = iota
	txDelayed
	txDone
)

// Tx is the per-request transaction context (§3 "TxCtx"): created on each
// inbound request, carrying the transport session, a back-reference to
// its RpcContext, the request id, and a status used to track whether a
// reply has been sent (§8 invariant 6, "Delayed reply").
type Tx struct {
	id        uuid.UUID
	session   Session
	h         handle
	requestID uint32
	common    envelope.RPCCommon

	status int32 // atomic: txOK | txDelayed | txDone
}

// ID returns the transaction's opaque identity, used as the delayed-reply
// map key.
func (t *Tx) ID() uuid.UUID { return t.id }

// tryFinish transitions the tx to "done" exactly once; the first caller
// wins, every subsequent caller observes false (§8 invariant 6:
// "subsequent calls with the same tx are an error").
func (t *Tx) tryFinish() bool {
	for {
		cur := atomic.LoadInt32(&t.status)
		if cur == txDone {
			return false
		}
		if atomic.CompareAndSwapInt32(&t.status, cur, txDone) {
			return true
		}
	}
}

func (t *Tx) markDelayed() {
	atomic.StoreInt32(&t.status, txDelayed)
}
