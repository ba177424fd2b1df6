package unixdomain_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jabolina/yail-go/pkg/yail/definition"
	"github.com/jabolina/yail-go/pkg/yail/rpc"
	"github.com/jabolina/yail-go/pkg/yail/transport/unixdomain"
)

func TestClientServerRoundTrip(t *testing.T) {
	log := definition.NewDefaultLogger()
	ep := filepath.Join(t.TempDir(), "svc.sock")

	server := unixdomain.New(log)
	server.ServerSetReceiveHandler(func(session rpc.Session, req []byte) {
		_ = server.ServerSend(session, append([]byte("echo:"), req...))
	})
	if err := server.ServerAdd(ep); err != nil {
		t.Fatalf("ServerAdd: %v", err)
	}
	defer server.ServerRemove(ep)

	client := unixdomain.New(log)
	res, err := client.ClientSendAndReceive(ep, []byte("ping"), time.Second)
	if err != nil {
		t.Fatalf("ClientSendAndReceive: %v", err)
	}
	if string(res) != "echo:ping" {
		t.Fatalf("res = %q, want %q", res, "echo:ping")
	}
}

func TestRefcountedServerAdd(t *testing.T) {
	log := definition.NewDefaultLogger()
	ep := filepath.Join(t.TempDir(), "svc.sock")

	server := unixdomain.New(log)
	server.ServerSetReceiveHandler(func(session rpc.Session, req []byte) {
		_ = server.ServerSend(session, req)
	})
	if err := server.ServerAdd(ep); err != nil {
		t.Fatalf("ServerAdd (1st): %v", err)
	}
	if err := server.ServerAdd(ep); err != nil {
		t.Fatalf("ServerAdd (2nd, refcounted): %v", err)
	}

	if err := server.ServerRemove(ep); err != nil {
		t.Fatalf("ServerRemove (1st): %v", err)
	}

	client := unixdomain.New(log)
	if _, err := client.ClientSendAndReceive(ep, []byte("still up"), time.Second); err != nil {
		t.Fatalf("expected endpoint to still be live after one ServerRemove: %v", err)
	}

	if err := server.ServerRemove(ep); err != nil {
		t.Fatalf("ServerRemove (2nd): %v", err)
	}
	if _, err := client.ClientSendAndReceive(ep, []byte("torn down"), time.Second); err == nil {
		t.Fatalf("expected dial failure after final ServerRemove")
	}
}

func TestClientTimeoutWhenServerNeverReplies(t *testing.T) {
	log := definition.NewDefaultLogger()
	ep := filepath.Join(t.TempDir(), "svc.sock")

	server := unixdomain.New(log)
	server.ServerSetReceiveHandler(func(session rpc.Session, req []byte) {
		// Never replies; the client's timer should win the race.
	})
	if err := server.ServerAdd(ep); err != nil {
		t.Fatalf("ServerAdd: %v", err)
	}
	defer server.ServerRemove(ep)

	client := unixdomain.New(log)
	_, err := client.ClientSendAndReceive(ep, []byte("hang"), 20*time.Millisecond)
	if err != unixdomain.ErrTimedOut {
		t.Fatalf("err = %v, want ErrTimedOut", err)
	}
}

func TestDefaultEndpoint(t *testing.T) {
	log := definition.NewDefaultLogger()
	tr := unixdomain.New(log, unixdomain.WithBaseDir("/srv/yail"))
	ep, ok := tr.DefaultEndpoint("my-service")
	if !ok || ep != "/srv/yail/my-service" {
		t.Fatalf("DefaultEndpoint() = %q, %v", ep, ok)
	}
}
