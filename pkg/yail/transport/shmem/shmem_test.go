package shmem_test

import (
	"testing"
	"time"

	"github.com/jabolina/yail-go/pkg/yail/definition"
	"github.com/jabolina/yail-go/pkg/yail/transport/shmem"
)

func TestSendReceiveAcrossTwoTransports(t *testing.T) {
	dir := t.TempDir()
	log := definition.NewDefaultLogger()

	a, err := shmem.New(dir, "domain", log)
	if err != nil {
		t.Fatalf("New(a): %v", err)
	}
	defer a.Close()

	b, err := shmem.New(dir, "domain", log)
	if err != nil {
		t.Fatalf("New(b): %v", err)
	}
	defer b.Close()

	const topic = "domain\x1ftopic\x1ftype"
	if err := b.AddTopic(topic); err != nil {
		t.Fatalf("AddTopic: %v", err)
	}

	recvCh := make(chan []byte, 1)
	b.AsyncReceive(func(err error, payload []byte) {
		if err != nil {
			t.Errorf("AsyncReceive: %v", err)
			return
		}
		recvCh <- payload
	})

	if err := a.Send(topic, []byte("hello"), time.Second); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case payload := <-recvCh:
		if string(payload) != "hello" {
			t.Fatalf("payload = %q, want hello", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("receive never completed")
	}
}

func TestSendFiltersOnTopicInterest(t *testing.T) {
	dir := t.TempDir()
	log := definition.NewDefaultLogger()

	a, err := shmem.New(dir, "domain2", log)
	if err != nil {
		t.Fatalf("New(a): %v", err)
	}
	defer a.Close()

	b, err := shmem.New(dir, "domain2", log)
	if err != nil {
		t.Fatalf("New(b): %v", err)
	}
	defer b.Close()

	// b never calls AddTopic, so a's send should reach nobody; this just
	// exercises that Send does not block or error when there are no
	// interested peers.
	if err := a.Send("domain2\x1fnobody-wants-this\x1ftype", []byte("x"), time.Second); err != nil {
		t.Fatalf("Send with no interested peers: %v", err)
	}
}

func TestRegistryPrunesClosedPeer(t *testing.T) {
	dir := t.TempDir()
	log := definition.NewDefaultLogger()

	a, err := shmem.New(dir, "domain3", log)
	if err != nil {
		t.Fatalf("New(a): %v", err)
	}
	defer a.Close()

	b, err := shmem.New(dir, "domain3", log)
	if err != nil {
		t.Fatalf("New(b): %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close(b): %v", err)
	}

	// Re-registering should observe b pruned from the registry rather than
	// accumulating a stale entry; this is exercised indirectly by a's
	// AddTopic succeeding without error after b tore itself down.
	if err := a.AddTopic("domain3\x1fsome-topic\x1ftype"); err != nil {
		t.Fatalf("AddTopic after peer close: %v", err)
	}
}
