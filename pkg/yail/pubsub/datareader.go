package pubsub

import (
	"time"

	"github.com/jabolina/yail-go/pkg/yail/codec"
	pserr "github.com/jabolina/yail-go/pkg/yail/errors"
)

// DataReader is the typed, per-process subscribing endpoint for a topic
// (§3 "Data reader").
type DataReader[T any] struct {
	id      ID
	topicID string
	facet   codec.Facet[T]
	sub     *Subscriber
}

// NewDataReader registers a new data reader for topic under sub, using
// facet to decode incoming payloads into T.
func NewDataReader[T any](sub *Subscriber, facet codec.Facet[T], topic TopicInfo) (*DataReader[T], error) {
	id := NewID()
	topicID, err := sub.AddReader(id, topic.Name, facet.Name(), topic.QoS)
	if err != nil {
		return nil, err
	}
	return &DataReader[T]{id: id, topicID: topicID, facet: facet, sub: sub}, nil
}

// ID returns the reader's opaque identity.
func (r *DataReader[T]) ID() ID { return r.id }

// TopicID returns the wire topic_id this reader subscribes to.
func (r *DataReader[T]) TopicID() string { return r.topicID }

// Receive synchronously waits for and decodes the next payload, up to
// timeout (0 == forever).
func (r *DataReader[T]) Receive(timeout time.Duration) (T, error) {
	var zero T
	payload, err := r.sub.Receive(r.id, r.topicID, timeout)
	if err != nil {
		return zero, err
	}
	value, err := r.facet.Decode(payload)
	if err != nil {
		return zero, pserr.NewPubSub(pserr.PubSubDeserializationFailed, err.Error())
	}
	return value, nil
}

// AsyncReceive asynchronously waits for and decodes the next payload.
func (r *DataReader[T]) AsyncReceive(cb func(error, T)) {
	r.sub.AsyncReceive(r.id, r.topicID, func(err error, payload []byte) {
		var zero T
		if err != nil {
			cb(err, zero)
			return
		}
		value, decErr := r.facet.Decode(payload)
		if decErr != nil {
			cb(pserr.NewPubSub(pserr.PubSubDeserializationFailed, decErr.Error()), zero)
			return
		}
		cb(nil, value)
	})
}

// Cancel completes every pending async receive for this reader with
// Cancelled.
func (r *DataReader[T]) Cancel() {
	r.sub.Cancel(r.id, r.topicID)
}

// Close destroys the reader. See DataWriter.Close for the outstanding-ops
// contract.
func (r *DataReader[T]) Close() {
	r.sub.RemoveReader(r.id, r.topicID)
}
