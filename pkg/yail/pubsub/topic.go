package pubsub

import "github.com/google/uuid"

// Durability is the sole QoS axis a Topic carries (§3).
type Durability int

const (
	// NONE means no retention: a late subscriber sees nothing published
	// before it subscribed.
	NONE Durability = iota
	// TRANSIENT_LOCAL retains the last Depth successfully built envelopes
	// per topic, replayed to a newly subscribed durable reader.
	TRANSIENT_LOCAL
)

// QoS pairs a durability mode with its depth (meaningful only for
// TRANSIENT_LOCAL).
type QoS struct {
	Durability Durability
	Depth      int
}

// Transient builds a TRANSIENT_LOCAL QoS with the given positive depth.
func Transient(depth int) QoS {
	if depth <= 0 {
		depth = 1
	}
	return QoS{Durability: TRANSIENT_LOCAL, Depth: depth}
}

// Volatile builds the NONE QoS, the default for topics that don't need
// replay.
func Volatile() QoS {
	return QoS{Durability: NONE}
}

// TopicInfo is the (name, type_name, qos) triple identifying a topic
// within a domain (§3 "Topic<T>").
type TopicInfo struct {
	Name     string
	TypeName string
	QoS      QoS
}

// ID is the opaque, process-unique identity used by the publisher and
// subscriber to demultiplex writer/reader operations (§9 "opaque
// identifiers" design note: an engine-owned handle, compared never
// dereferenced — we use a uuid rather than a raw pointer).
type ID = uuid.UUID

// NewID allocates a fresh opaque identity for a data writer, data reader,
// or any other per-process endpoint the engine must address.
func NewID() ID { return uuid.New() }
