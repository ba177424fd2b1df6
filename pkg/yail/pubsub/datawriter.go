package pubsub

import (
	"time"

	"github.com/jabolina/yail-go/pkg/yail/codec"
	pserr "github.com/jabolina/yail-go/pkg/yail/errors"
)

// DataWriter is the typed, per-process publishing endpoint for a topic
// (§3 "Data writer"). It is non-copyable by convention (holds an opaque
// identity) and moveable; callers create it under a Service and destroy it
// before the Service.
type DataWriter[T any] struct {
	id      ID
	topicID string
	topic   TopicInfo
	facet   codec.Facet[T]
	pub     *Publisher
}

// NewDataWriter registers a new data writer for topic under pub, using
// facet to encode values of T.
func NewDataWriter[T any](pub *Publisher, facet codec.Facet[T], topic TopicInfo) (*DataWriter[T], error) {
	id := NewID()
	topicID, err := pub.AddWriter(id, topic.Name, facet.Name(), topic.QoS)
	if err != nil {
		return nil, err
	}
	topic.TypeName = facet.Name()
	return &DataWriter[T]{id: id, topicID: topicID, topic: topic, facet: facet, pub: pub}, nil
}

// ID returns the writer's opaque identity.
func (w *DataWriter[T]) ID() ID { return w.id }

// TopicID returns the wire topic_id this writer publishes on.
func (w *DataWriter[T]) TopicID() string { return w.topicID }

// Send synchronously publishes value, blocking up to timeout (0 ==
// forever).
func (w *DataWriter[T]) Send(value T, timeout time.Duration) error {
	payload, err := w.facet.Encode(value)
	if err != nil {
		return pserr.NewPubSub(pserr.PubSubSerializationFailed, err.Error())
	}
	return w.pub.Send(w.id, w.topicID, payload, timeout)
}

// AsyncSend asynchronously publishes value, invoking cb on completion.
func (w *DataWriter[T]) AsyncSend(value T, cb func(error)) {
	payload, err := w.facet.Encode(value)
	if err != nil {
		cb(pserr.NewPubSub(pserr.PubSubSerializationFailed, err.Error()))
		return
	}
	w.pub.AsyncSend(w.id, w.topicID, payload, cb)
}

// Close destroys the writer. The caller must ensure no operations are
// outstanding (§5 "Destroying a writer/reader never blocks on in-flight
// transport I/O ... destruction requires that no ops be outstanding").
func (w *DataWriter[T]) Close() {
	w.pub.RemoveWriter(w.id, w.topicID)
}
