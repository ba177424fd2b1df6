package rpc

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jabolina/yail-go/pkg/yail/definition"
	rpcerr "github.com/jabolina/yail-go/pkg/yail/errors"
	"github.com/jabolina/yail-go/pkg/yail/envelope"
)

// rpcEntry is one registered RPC's server-side context (§3 "RpcContext").
type rpcEntry struct {
	serviceName, rpcName, rpcTypeName string
	handler                           func(tx *Tx, reqData []byte)
	version                           uint64

	delayedMu sync.Mutex
	delayed   map[uuid.UUID]*Tx
}

// Server is the RPC server core (§4.10): per-service acceptance, per-
// request transaction contexts, and delayed replies.
type Server struct {
	transport Transport
	log       definition.Logger

	mu   sync.Mutex
	rpcs map[string]*rpcEntry
}

// NewServer constructs a Server over transport, installing the dispatch
// handler immediately.
func NewServer(transport Transport, log definition.Logger) *Server {
	s := &Server{
		transport: transport,
		log:       log,
		rpcs:      make(map[string]*rpcEntry),
	}
	transport.ServerSetReceiveHandler(s.dispatch)
	return s
}

// AddProvider starts accepting connections on endpoint (§4.10
// "add_provider").
func (s *Server) AddProvider(endpoint string) error {
	return s.transport.ServerAdd(endpoint)
}

// RemoveProvider stops accepting connections on endpoint.
func (s *Server) RemoveProvider(endpoint string) error {
	return s.transport.ServerRemove(endpoint)
}

// AddRPC registers handler under (serviceName, rpcName, rpcTypeName).
// Duplicate registration is a programmer error (§4.10, §7).
func (s *Server) AddRPC(serviceName, rpcName, rpcTypeName string, handler func(tx *Tx, reqData []byte)) {
	rpcID := envelope.RPCID(serviceName, rpcName, rpcTypeName)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rpcs[rpcID]; exists {
		rpcerr.Raise("duplicate rpc registration for %s", rpcID)
	}
	s.rpcs[rpcID] = &rpcEntry{
		serviceName: serviceName,
		rpcName:     rpcName,
		rpcTypeName: rpcTypeName,
		handler:     handler,
		delayed:     make(map[uuid.UUID]*Tx),
	}
}

// dispatch implements §4.10's request-dispatch algorithm.
func (s *Server) dispatch(session Session, reqBytes []byte) {
	req, err := envelope.UnmarshalRequest(reqBytes)
	if err != nil {
		s.log.Warnf("rpc server: dropping malformed request: %v", err)
		return
	}
	if req.Version != envelope.CurrentVersion {
		s.log.Warnf("rpc server: dropping request with unsupported version %d", req.Version)
		return
	}

	rpcID := envelope.RPCID(req.ServiceName, req.RpcName, req.RpcTypeName)

	s.mu.Lock()
	entry, ok := s.rpcs[rpcID]
	s.mu.Unlock()
	if !ok {
		s.log.Warnf("rpc server: unknown rpc %s, dropping (client will time out)", rpcID)
		return
	}

	tx := &Tx{
		id:        uuid.New(),
		session:   session,
		h:         handle{rpcID: rpcID, version: entry.version},
		requestID: req.ID,
		common:    req.RPCCommon,
	}

	entry.handler(tx, req.Data)

	if tx.status == txDelayed {
		entry.delayedMu.Lock()
		entry.delayed[tx.id] = tx
		entry.delayedMu.Unlock()
	}
}

func (s *Server) resolve(h handle) (*rpcEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.rpcs[h.rpcID]
	if !ok || entry.version != h.version {
		return nil, false
	}
	return entry, true
}

func (s *Server) removeDelayed(entry *rpcEntry, tx *Tx) {
	entry.delayedMu.Lock()
	delete(entry.delayed, tx.id)
	entry.delayedMu.Unlock()
}

// ReplyOK sends a successful response carrying resData, validating that
// (serviceName, rpcName, rpcTypeName) matches the transaction's original
// request (§4.10 "reply_ok": "RpcMismatch on disagreement").
func (s *Server) ReplyOK(tx *Tx, serviceName, rpcName, rpcTypeName string, resData []byte) error {
	return s.reply(tx, serviceName, rpcName, rpcTypeName, true, resData)
}

// ReplyError sends a failure response carrying errMsg as the response
// body, with status=false.
func (s *Server) ReplyError(tx *Tx, serviceName, rpcName, rpcTypeName string, errMsg string) error {
	return s.reply(tx, serviceName, rpcName, rpcTypeName, false, []byte(errMsg))
}

func (s *Server) reply(tx *Tx, serviceName, rpcName, rpcTypeName string, status bool, data []byte) error {
	if serviceName != tx.common.ServiceName || rpcName != tx.common.RpcName || rpcTypeName != tx.common.RpcTypeName {
		return rpcerr.NewRPC(rpcerr.RPCSystemError, "rpc mismatch: reply does not match transaction's rpc")
	}
	if !tx.tryFinish() {
		return rpcerr.NewRPC(rpcerr.RPCSystemError, "transaction already replied")
	}

	entry, ok := s.resolve(tx.h)
	if ok {
		s.removeDelayed(entry, tx)
	}

	resp := &envelope.RPCResponse{
		RPCCommon: tx.common,
		Status:    status,
		Data:      data,
	}
	buf, err := envelope.MarshalResponse(resp)
	if err != nil {
		return rpcerr.NewRPC(rpcerr.RPCSerializationFailed, err.Error())
	}
	if err := s.transport.ServerSend(tx.session, buf); err != nil {
		return rpcerr.NewRPC(rpcerr.RPCSystemError, err.Error())
	}
	return nil
}

// ReplyDelayed marks tx as delayed: no response is sent now, and the
// transaction is retained under its RpcContext until a later ReplyOK or
// ReplyError resolves it (§4.10 "reply_delayed", §8 invariant 6).
func (s *Server) ReplyDelayed(tx *Tx, serviceName, rpcName, rpcTypeName string) error {
	if serviceName != tx.common.ServiceName || rpcName != tx.common.RpcName || rpcTypeName != tx.common.RpcTypeName {
		return rpcerr.NewRPC(rpcerr.RPCSystemError, "rpc mismatch: reply does not match transaction's rpc")
	}
	tx.markDelayed()
	return nil
}
