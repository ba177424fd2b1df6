package pubsub_test

import (
	"testing"
	"time"

	"github.com/jabolina/yail-go/internal/yailtest"
	"github.com/jabolina/yail-go/pkg/yail/codec/jsoncodec"
	pserr "github.com/jabolina/yail-go/pkg/yail/errors"
	"github.com/jabolina/yail-go/pkg/yail/pubsub"
)

type greeting struct {
	Text string
}

func TestSendReceiveVolatile(t *testing.T) {
	hub := yailtest.NewPubSubHub()

	pubSvc, err := pubsub.NewService("domain-a", yailtest.NewFakePubSubTransport(hub))
	if err != nil {
		t.Fatalf("NewService (pub): %v", err)
	}
	subSvc, err := pubsub.NewService("domain-a", yailtest.NewFakePubSubTransport(hub))
	if err != nil {
		t.Fatalf("NewService (sub): %v", err)
	}
	defer pubSvc.Shutdown()
	defer subSvc.Shutdown()

	facet := jsoncodec.New[greeting]("greeting")
	topic := pubsub.TopicInfo{Name: "hello", QoS: pubsub.Volatile()}

	writer, err := pubsub.NewDataWriter[greeting](pubSvc.Publisher, facet, topic)
	if err != nil {
		t.Fatalf("NewDataWriter: %v", err)
	}
	defer writer.Close()

	reader, err := pubsub.NewDataReader[greeting](subSvc.Subscriber, facet, topic)
	if err != nil {
		t.Fatalf("NewDataReader: %v", err)
	}
	defer reader.Close()

	if err := writer.Send(greeting{Text: "hi"}, time.Second); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got, err := reader.Receive(time.Second)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if got.Text != "hi" {
		t.Fatalf("got %+v, want Text=hi", got)
	}
}

func TestReceiveTimeoutIsCancelled(t *testing.T) {
	hub := yailtest.NewPubSubHub()
	svc, err := pubsub.NewService("domain-b", yailtest.NewFakePubSubTransport(hub))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	defer svc.Shutdown()

	facet := jsoncodec.New[greeting]("greeting")
	topic := pubsub.TopicInfo{Name: "quiet", QoS: pubsub.Volatile()}
	reader, err := pubsub.NewDataReader[greeting](svc.Subscriber, facet, topic)
	if err != nil {
		t.Fatalf("NewDataReader: %v", err)
	}
	defer reader.Close()

	_, err = reader.Receive(20 * time.Millisecond)
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	perr, ok := err.(*pserr.PubSubError)
	if !ok || perr.Code != pserr.PubSubCancelled {
		t.Fatalf("err = %v, want PubSubCancelled", err)
	}
}

func TestDurableReaderReplaysHistory(t *testing.T) {
	hub := yailtest.NewPubSubHub()
	pubSvc, err := pubsub.NewService("domain-c", yailtest.NewFakePubSubTransport(hub))
	if err != nil {
		t.Fatalf("NewService (pub): %v", err)
	}
	defer pubSvc.Shutdown()

	facet := jsoncodec.New[greeting]("greeting")
	topic := pubsub.TopicInfo{Name: "durable", QoS: pubsub.Transient(2)}

	writer, err := pubsub.NewDataWriter[greeting](pubSvc.Publisher, facet, topic)
	if err != nil {
		t.Fatalf("NewDataWriter: %v", err)
	}
	defer writer.Close()

	for _, text := range []string{"one", "two"} {
		if err := writer.Send(greeting{Text: text}, time.Second); err != nil {
			t.Fatalf("Send(%s): %v", text, err)
		}
	}

	// A late subscriber joins after both messages were already sent; its
	// TRANSIENT_LOCAL reader should still observe the history ring replay.
	subSvc, err := pubsub.NewService("domain-c", yailtest.NewFakePubSubTransport(hub))
	if err != nil {
		t.Fatalf("NewService (sub): %v", err)
	}
	defer subSvc.Shutdown()

	reader, err := pubsub.NewDataReader[greeting](subSvc.Subscriber, facet, topic)
	if err != nil {
		t.Fatalf("NewDataReader: %v", err)
	}
	defer reader.Close()

	first, err := reader.Receive(time.Second)
	if err != nil {
		t.Fatalf("Receive 1: %v", err)
	}
	second, err := reader.Receive(time.Second)
	if err != nil {
		t.Fatalf("Receive 2: %v", err)
	}
	if first.Text != "one" || second.Text != "two" {
		t.Fatalf("replay order wrong: %+v, %+v", first, second)
	}
}

func TestAsyncReceiveCancel(t *testing.T) {
	hub := yailtest.NewPubSubHub()
	svc, err := pubsub.NewService("domain-d", yailtest.NewFakePubSubTransport(hub))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	defer svc.Shutdown()

	facet := jsoncodec.New[greeting]("greeting")
	topic := pubsub.TopicInfo{Name: "cancelme", QoS: pubsub.Volatile()}
	reader, err := pubsub.NewDataReader[greeting](svc.Subscriber, facet, topic)
	if err != nil {
		t.Fatalf("NewDataReader: %v", err)
	}
	defer reader.Close()

	resultCh := make(chan error, 1)
	reader.AsyncReceive(func(err error, _ greeting) { resultCh <- err })
	reader.Cancel()

	select {
	case err := <-resultCh:
		perr, ok := err.(*pserr.PubSubError)
		if !ok || perr.Code != pserr.PubSubCancelled {
			t.Fatalf("err = %v, want PubSubCancelled", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("cancelled async receive never completed")
	}
}
