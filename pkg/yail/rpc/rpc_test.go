package rpc_test

import (
	"testing"
	"time"

	"github.com/jabolina/yail-go/internal/yailtest"
	"github.com/jabolina/yail-go/pkg/yail/codec/jsoncodec"
	"github.com/jabolina/yail-go/pkg/yail/definition"
	rpcerr "github.com/jabolina/yail-go/pkg/yail/errors"
	"github.com/jabolina/yail-go/pkg/yail/locator"
	"github.com/jabolina/yail-go/pkg/yail/rpc"
)

type addReq struct{ A, B int }
type addRes struct{ Sum int }

func addDescriptor() rpc.Descriptor[addReq, addRes] {
	return rpc.New[addReq, addRes]("add", jsoncodec.New[addReq]("add.req"), jsoncodec.New[addRes]("add.res"))
}

func TestCallSuccess(t *testing.T) {
	hub := yailtest.NewRPCHub()
	log := definition.NewDefaultLogger()

	server := rpc.NewServer(yailtest.NewFakeRPCTransport(hub), log)
	if err := server.AddProvider("svc-a"); err != nil {
		t.Fatalf("AddProvider: %v", err)
	}
	descriptor := addDescriptor()
	provider := rpc.RegisterProvider(server, "svc-a", descriptor, func(tx *rpc.Tx, req addReq) {
		_ = provider.ReplyOK(tx, addRes{Sum: req.A + req.B})
	})

	loc := locator.New(nil)
	if err := loc.Insert("svc-a", "svc-a"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	client := rpc.NewClient(yailtest.NewFakeRPCTransport(hub), loc, log)

	res, err := rpc.Call(client, "svc-a", descriptor, addReq{A: 2, B: 3}, time.Second)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if res.Sum != 5 {
		t.Fatalf("res.Sum = %d, want 5", res.Sum)
	}
}

func TestCallUnknownService(t *testing.T) {
	hub := yailtest.NewRPCHub()
	log := definition.NewDefaultLogger()
	loc := locator.New(nil)
	client := rpc.NewClient(yailtest.NewFakeRPCTransport(hub), loc, log)

	_, err := rpc.Call(client, "missing", addDescriptor(), addReq{}, time.Second)
	if err == nil {
		t.Fatalf("expected error for unregistered service")
	}
	rerr, ok := err.(*rpcerr.RPCError)
	if !ok || rerr.Code != rpcerr.RPCSystemError {
		t.Fatalf("err = %v, want RPCSystemError", err)
	}
}

func TestDelayedReply(t *testing.T) {
	hub := yailtest.NewRPCHub()
	log := definition.NewDefaultLogger()

	server := rpc.NewServer(yailtest.NewFakeRPCTransport(hub), log)
	_ = server.AddProvider("svc-b")

	descriptor := addDescriptor()
	ready := make(chan struct{})
	var provider *rpc.Provider[addReq, addRes]
	provider = rpc.RegisterProvider(server, "svc-b", descriptor, func(tx *rpc.Tx, req addReq) {
		_ = provider.ReplyDelayed(tx)
		close(ready)
		go func() {
			time.Sleep(10 * time.Millisecond)
			_ = provider.ReplyOK(tx, addRes{Sum: req.A * req.B})
		}()
	})

	loc := locator.New(nil)
	_ = loc.Insert("svc-b", "svc-b")
	client := rpc.NewClient(yailtest.NewFakeRPCTransport(hub), loc, log)

	res, err := rpc.Call(client, "svc-b", descriptor, addReq{A: 3, B: 4}, time.Second)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if res.Sum != 12 {
		t.Fatalf("res.Sum = %d, want 12", res.Sum)
	}
	<-ready
}

func TestReplyTwiceIsError(t *testing.T) {
	hub := yailtest.NewRPCHub()
	log := definition.NewDefaultLogger()
	server := rpc.NewServer(yailtest.NewFakeRPCTransport(hub), log)
	_ = server.AddProvider("svc-c")

	descriptor := addDescriptor()
	secondErr := make(chan error, 1)
	var provider *rpc.Provider[addReq, addRes]
	provider = rpc.RegisterProvider(server, "svc-c", descriptor, func(tx *rpc.Tx, req addReq) {
		_ = provider.ReplyOK(tx, addRes{Sum: req.A + req.B})
		secondErr <- provider.ReplyOK(tx, addRes{Sum: 0})
	})

	loc := locator.New(nil)
	_ = loc.Insert("svc-c", "svc-c")
	client := rpc.NewClient(yailtest.NewFakeRPCTransport(hub), loc, log)

	if _, err := rpc.Call(client, "svc-c", descriptor, addReq{A: 1, B: 1}, time.Second); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if err := <-secondErr; err == nil {
		t.Fatalf("second reply on the same transaction should fail")
	}
}

func TestFailureResponse(t *testing.T) {
	hub := yailtest.NewRPCHub()
	log := definition.NewDefaultLogger()
	server := rpc.NewServer(yailtest.NewFakeRPCTransport(hub), log)
	_ = server.AddProvider("svc-d")

	descriptor := addDescriptor()
	var provider *rpc.Provider[addReq, addRes]
	provider = rpc.RegisterProvider(server, "svc-d", descriptor, func(tx *rpc.Tx, req addReq) {
		_ = provider.ReplyError(tx, "nope")
	})

	loc := locator.New(nil)
	_ = loc.Insert("svc-d", "svc-d")
	client := rpc.NewClient(yailtest.NewFakeRPCTransport(hub), loc, log)

	_, err := rpc.Call(client, "svc-d", descriptor, addReq{}, time.Second)
	rerr, ok := err.(*rpcerr.RPCError)
	if !ok || rerr.Code != rpcerr.RPCFailureResponse {
		t.Fatalf("err = %v, want RPCFailureResponse", err)
	}
}
