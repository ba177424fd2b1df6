// Package envelope implements the wire framing from §4.3: the versioned
// PubSub data envelope, the builtin subscription-announcement payload, the
// RPC request/response framing, and the 4-byte length-prefixed stream
// framing used by the UNIX-domain transport.
package envelope

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jabolina/yail-go/pkg/yail/buffer"
)

// CurrentVersion is the only envelope version this implementation
// produces or accepts.
const CurrentVersion = 1

// Kind discriminates envelope payloads on the wire.
type Kind uint8

const (
	KindData Kind = iota
)

// Header is the common versioned header carried by every PubSub envelope.
type Header struct {
	Version uint8 `json:"version"`
	Kind    Kind  `json:"kind"`
	// ID is monotonic per-publisher. Exposed for diagnostics only; the
	// spec's Open Questions explicitly say duplicate detection is not
	// required at the receiver.
	ID uint32 `json:"id"`
}

// Data is the PubSub payload carried inside a KindData envelope.
type Data struct {
	Domain        string `json:"domain"`
	TopicName     string `json:"topic_name"`
	TopicTypeName string `json:"topic_type_name"`
	TopicData     []byte `json:"topic_data"`
}

// Envelope is the full framed PubSub message.
type Envelope struct {
	Header Header `json:"header"`
	Data   Data   `json:"data"`
}

// TopicID computes the wire identity topic_id = domain ‖ name ‖ type_name.
func TopicID(domain, name, typeName string) string {
	return domain + "\x1f" + name + "\x1f" + typeName
}

// Marshal serializes the envelope to its wire form (JSON; the spec treats
// on-wire encoding of the envelope itself as an implementation detail, and
// JSON is what the teacher repo uses throughout for structured messages).
func Marshal(e *Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal parses a wire-form envelope, rejecting unsupported versions and
// kinds per §4.3 ("Receivers reject version≠1 and unknown kind ... and
// drop").
func Unmarshal(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("envelope: parse failed: %w", err)
	}
	if e.Header.Version != CurrentVersion {
		return nil, fmt.Errorf("envelope: unsupported version %d", e.Header.Version)
	}
	if e.Header.Kind != KindData {
		return nil, fmt.Errorf("envelope: unknown kind %d", e.Header.Kind)
	}
	return &e, nil
}

// SubscriptionAnnouncement is the payload published on the builtin
// "__INTERNAL_SUBSCRIPTION__" topic whenever a durable reader is created.
type SubscriptionAnnouncement struct {
	Domain        string `json:"domain"`
	TopicName     string `json:"topic_name"`
	TopicTypeName string `json:"topic_type_name"`
}

// BuiltinSubscriptionTopic is the reserved topic name for subscription
// announcements.
const BuiltinSubscriptionTopic = "__INTERNAL_SUBSCRIPTION__"

// WriteFramed writes a 4-byte big-endian length prefix followed by
// payload, the stream framing §4.3 specifies for RPC traffic on the
// UNIX-domain transport. The prefix and payload are assembled into one
// buffer sized up front so the write reaches the socket as a single call.
func WriteFramed(w io.Writer, payload []byte) error {
	buf := buffer.New(4 + len(payload))
	var lenBytes [4]byte
	binary.BigEndian.PutUint32(lenBytes[:], uint32(len(payload)))
	buf.Append(lenBytes[:])
	buf.Append(payload)
	_, err := w.Write(buf.Bytes())
	return err
}

// ReadFramed reads one length-prefixed message from r, sizing its buffer
// from the length prefix before reading the payload in directly.
func ReadFramed(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := buffer.New(int(n))
	if _, err := io.ReadFull(r, buf.Next(int(n))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
