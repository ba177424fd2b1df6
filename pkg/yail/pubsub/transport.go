package pubsub

import "time"

// Transport is the PubSub transport contract from §6. Implementations are
// selected at construction time (shmem, udp, or a test fake); the
// publisher/subscriber never know which one they're driving.
type Transport interface {
	// AddTopic / RemoveTopic are optional filtering hints the transport
	// may use to avoid fanning out traffic for topics nobody reads
	// locally (the shmem transport relies on this; UDP ignores it).
	AddTopic(topicID string) error
	RemoveTopic(topicID string) error

	// Send is the synchronous, best-effort fanout primitive.
	Send(topicID string, payload []byte, timeout time.Duration) error

	// AsyncSend is the asynchronous counterpart. Completions for a single
	// topicID/writer are guaranteed to fire in enqueue order (§5
	// "Ordering guarantees"), which is what lets the publisher dequeue
	// the head of its per-writer send queue on each completion.
	AsyncSend(topicID string, payload []byte, cb func(error))

	// AsyncReceive delivers one envelope at a time, FIFO per source. The
	// subscriber calls this once at construction time and keeps
	// re-arming it from within cb.
	AsyncReceive(cb func(error, []byte))
}
