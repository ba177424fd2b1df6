package yailtest

import (
	"sync"
	"time"

	pserr "github.com/jabolina/yail-go/pkg/yail/errors"
)

// PubSubHub is an in-process stand-in for a real PubSub transport (shmem
// or UDP): every FakePubSubTransport sharing a Hub behaves like separate
// processes on the same bus, broadcasting to every other member
// registered for a given topic. Tests use this instead of standing up a
// real shmem/UDP transport.
type PubSubHub struct {
	mu      sync.Mutex
	members []*FakePubSubTransport
}

// NewPubSubHub builds an empty hub.
func NewPubSubHub() *PubSubHub { return &PubSubHub{} }

func (h *PubSubHub) join(t *FakePubSubTransport) {
	h.mu.Lock()
	h.members = append(h.members, t)
	h.mu.Unlock()
}

func (h *PubSubHub) broadcast(from *FakePubSubTransport, topicID string, payload []byte) {
	h.mu.Lock()
	members := make([]*FakePubSubTransport, len(h.members))
	copy(members, h.members)
	h.mu.Unlock()

	for _, m := range members {
		if m == from {
			continue
		}
		m.deliver(topicID, payload)
	}
}

// FakePubSubTransport implements pubsub.Transport entirely in memory.
type FakePubSubTransport struct {
	hub *PubSubHub

	mu     sync.Mutex
	topics map[string]struct{}

	deliverCh chan []byte
}

// NewFakePubSubTransport joins hub as a new member.
func NewFakePubSubTransport(hub *PubSubHub) *FakePubSubTransport {
	t := &FakePubSubTransport{
		hub:       hub,
		topics:    make(map[string]struct{}),
		deliverCh: make(chan []byte, 256),
	}
	hub.join(t)
	return t
}

func (t *FakePubSubTransport) AddTopic(topicID string) error {
	t.mu.Lock()
	t.topics[topicID] = struct{}{}
	t.mu.Unlock()
	return nil
}

func (t *FakePubSubTransport) RemoveTopic(topicID string) error {
	t.mu.Lock()
	delete(t.topics, topicID)
	t.mu.Unlock()
	return nil
}

func (t *FakePubSubTransport) Send(topicID string, payload []byte, timeout time.Duration) error {
	t.hub.broadcast(t, topicID, payload)
	return nil
}

func (t *FakePubSubTransport) AsyncSend(topicID string, payload []byte, cb func(error)) {
	t.hub.broadcast(t, topicID, payload)
	cb(nil)
}

func (t *FakePubSubTransport) deliver(topicID string, payload []byte) {
	t.mu.Lock()
	_, wanted := t.topics[topicID]
	t.mu.Unlock()
	if !wanted {
		return
	}
	select {
	case t.deliverCh <- payload:
	default:
	}
}

func (t *FakePubSubTransport) AsyncReceive(cb func(error, []byte)) {
	go func() {
		payload, ok := <-t.deliverCh
		if !ok {
			cb(pserr.NewPubSub(pserr.PubSubSystemError, "transport closed"), nil)
			return
		}
		cb(nil, payload)
	}()
}

// Close stops accepting deliveries; any blocked AsyncReceive observes a
// closed-transport error.
func (t *FakePubSubTransport) Close() {
	close(t.deliverCh)
}
