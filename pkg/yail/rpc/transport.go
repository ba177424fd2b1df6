// Package rpc implements the RPC client/server engine from §4.9/§4.10:
// request id assignment, envelope building, synchronous and asynchronous
// calls, per-service acceptance, per-request transaction contexts, and
// delayed replies.
package rpc

import "time"

// Session is the opaque, transport-owned handle identifying one inflight
// request on the server side (§3 "TxCtx": transport_session_handle). The
// server core never inspects it, only passes it back to ServerSend.
type Session = interface{}

// Transport is the RPC transport contract from §6.
type Transport interface {
	// ClientSendAndReceive sends req to ep and blocks for a response, up
	// to timeout (0 == forever).
	ClientSendAndReceive(ep string, req []byte, timeout time.Duration) ([]byte, error)

	// AsyncClientSendAndReceive is the asynchronous counterpart.
	AsyncClientSendAndReceive(ep string, req []byte, cb func([]byte, error))

	// ServerSetReceiveHandler installs the callback invoked once per
	// fully-read inbound request.
	ServerSetReceiveHandler(cb func(session Session, req []byte))

	// ServerAdd starts (or, for refcounted transports, re-references)
	// accepting connections on ep.
	ServerAdd(ep string) error

	// ServerRemove drops a reference to ep, tearing it down at zero.
	ServerRemove(ep string) error

	// ServerSend writes the final response for session and ends it.
	ServerSend(session Session, res []byte) error
}
