package yailtest

import (
	"fmt"
	"sync"
	"time"

	"github.com/jabolina/yail-go/pkg/yail/rpc"
)

// RPCHub is an in-process stand-in for a real RPC transport (UNIX-domain
// or otherwise): endpoints are plain strings, and ClientSendAndReceive
// dispatches directly to whichever server registered that endpoint,
// skipping sockets and framing entirely.
type RPCHub struct {
	mu        sync.Mutex
	endpoints map[string]func(session rpc.Session, req []byte)
	receive   func(session rpc.Session, req []byte)
}

// NewRPCHub builds an empty hub.
func NewRPCHub() *RPCHub { return &RPCHub{endpoints: make(map[string]func(rpc.Session, []byte))} }

// FakeRPCTransport implements rpc.Transport entirely in memory, backed by
// a shared RPCHub.
type FakeRPCTransport struct {
	hub *RPCHub
}

// NewFakeRPCTransport builds a transport over hub. Every Server/Client
// pair that should be able to reach each other must share the same hub.
func NewFakeRPCTransport(hub *RPCHub) *FakeRPCTransport {
	return &FakeRPCTransport{hub: hub}
}

func (t *FakeRPCTransport) ServerSetReceiveHandler(cb func(session rpc.Session, req []byte)) {
	t.hub.mu.Lock()
	t.hub.receive = cb
	t.hub.mu.Unlock()
}

func (t *FakeRPCTransport) ServerAdd(endpoint string) error {
	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()
	if t.hub.receive == nil {
		return fmt.Errorf("fakerpc: ServerAdd(%s) called before ServerSetReceiveHandler", endpoint)
	}
	t.hub.endpoints[endpoint] = t.hub.receive
	return nil
}

func (t *FakeRPCTransport) ServerRemove(endpoint string) error {
	t.hub.mu.Lock()
	delete(t.hub.endpoints, endpoint)
	t.hub.mu.Unlock()
	return nil
}

type fakeSession struct {
	resultCh chan []byte
}

func (t *FakeRPCTransport) ServerSend(session rpc.Session, res []byte) error {
	sess, ok := session.(*fakeSession)
	if !ok {
		return fmt.Errorf("fakerpc: invalid session")
	}
	sess.resultCh <- res
	return nil
}

func (t *FakeRPCTransport) ClientSendAndReceive(endpoint string, req []byte, timeout time.Duration) ([]byte, error) {
	t.hub.mu.Lock()
	handler, ok := t.hub.endpoints[endpoint]
	t.hub.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("fakerpc: unknown endpoint %s", endpoint)
	}

	sess := &fakeSession{resultCh: make(chan []byte, 1)}
	go handler(sess, req)

	if timeout <= 0 {
		return <-sess.resultCh, nil
	}
	select {
	case res := <-sess.resultCh:
		return res, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("fakerpc: call to %s timed out", endpoint)
	}
}

func (t *FakeRPCTransport) AsyncClientSendAndReceive(endpoint string, req []byte, cb func([]byte, error)) {
	go func() {
		buf, err := t.ClientSendAndReceive(endpoint, req, 0)
		cb(buf, err)
	}()
}
