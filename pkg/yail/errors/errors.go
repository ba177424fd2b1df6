// Package errors defines the two stable, transport-independent error
// taxonomies shared by the pubsub and rpc engines. Ordinals are part of the
// wire contract between peers and must never be renumbered.
package errors

import "fmt"

// PubSubCode is a stable ordinal identifying a PubSub failure kind.
type PubSubCode int

const (
	PubSubSuccess PubSubCode = iota
	PubSubSystemError
	PubSubUnknownDataWriter
	PubSubUnknownDataReader
	PubSubUnknownTopic
	PubSubSerializationFailed
	PubSubDeserializationFailed
	// PubSubCancelled is returned by synchronous waits that expire and
	// delivered to asynchronous receives that are explicitly cancelled
	// (synchronous waits are never cancelled explicitly). It is not part
	// of the wire contract (§6 lists
	// the transport-facing ordinals only) but shares this taxonomy because
	// callers switch on PubSubCode uniformly.
	PubSubCancelled
)

func (c PubSubCode) String() string {
	switch c {
	case PubSubSuccess:
		return "Success"
	case PubSubSystemError:
		return "SystemError"
	case PubSubUnknownDataWriter:
		return "UnknownDataWriter"
	case PubSubUnknownDataReader:
		return "UnknownDataReader"
	case PubSubUnknownTopic:
		return "UnknownTopic"
	case PubSubSerializationFailed:
		return "SerializationFailed"
	case PubSubDeserializationFailed:
		return "DeserializationFailed"
	case PubSubCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// PubSubError is the concrete error type surfaced by the pubsub engine.
type PubSubError struct {
	Code     PubSubCode
	Message  string
	Location string // optional: file:line of the originating call, debug only
}

func (e *PubSubError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("pubsub: %s: %s (%s)", e.Code, e.Message, e.Location)
	}
	return fmt.Sprintf("pubsub: %s: %s", e.Code, e.Message)
}

// Is allows errors.Is(err, errors.NewPubSub(code, "")) style comparisons by
// matching on Code alone.
func (e *PubSubError) Is(target error) bool {
	t, ok := target.(*PubSubError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewPubSub builds a PubSubError carrying the given code and message.
func NewPubSub(code PubSubCode, message string) *PubSubError {
	return &PubSubError{Code: code, Message: message}
}

// NewPubSubAt is NewPubSub with a debug-only location tag.
func NewPubSubAt(code PubSubCode, message, location string) *PubSubError {
	return &PubSubError{Code: code, Message: message, Location: location}
}

// RPCCode is a stable ordinal identifying an RPC failure kind.
type RPCCode int

const (
	RPCSuccess RPCCode = iota
	RPCSystemError
	RPCUnknownRpc
	RPCFailureResponse
	RPCInvalidResponse
	RPCSerializationFailed
	RPCDeserializationFailed
	// RPCCancelled mirrors PubSubCancelled in the taxonomy. The rpc client
	// does not produce it: a call whose transport times out fails with
	// RPCSystemError.
	RPCCancelled
)

func (c RPCCode) String() string {
	switch c {
	case RPCSuccess:
		return "Success"
	case RPCSystemError:
		return "SystemError"
	case RPCUnknownRpc:
		return "UnknownRpc"
	case RPCFailureResponse:
		return "FailureResponse"
	case RPCInvalidResponse:
		return "InvalidResponse"
	case RPCSerializationFailed:
		return "SerializationFailed"
	case RPCDeserializationFailed:
		return "DeserializationFailed"
	case RPCCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// RPCError is the concrete error type surfaced by the rpc engine.
type RPCError struct {
	Code     RPCCode
	Message  string
	Location string
}

func (e *RPCError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("rpc: %s: %s (%s)", e.Code, e.Message, e.Location)
	}
	return fmt.Sprintf("rpc: %s: %s", e.Code, e.Message)
}

func (e *RPCError) Is(target error) bool {
	t, ok := target.(*RPCError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewRPC builds an RPCError carrying the given code and message.
func NewRPC(code RPCCode, message string) *RPCError {
	return &RPCError{Code: code, Message: message}
}

// NewRPCAt is NewRPC with a debug-only location tag.
func NewRPCAt(code RPCCode, message, location string) *RPCError {
	return &RPCError{Code: code, Message: message, Location: location}
}

// Fault is raised for programmer errors the spec classifies as unchecked
// (duplicate writer/reader registration, duplicate rpc registration, an
// unparseable locator minimum version); a duplicate service name in the
// locator is returned as an error instead. These are panics, not returned
// errors, mirroring the teacher's own
// sentinel-error-plus-panic style for invariant violations.
type Fault struct {
	Message string
}

func (f *Fault) Error() string { return f.Message }

// Raise panics with a *Fault, used for the programmer-error paths §7
// classifies as "may be raised as unchecked faults rather than returned".
func Raise(format string, args ...interface{}) {
	panic(&Fault{Message: fmt.Sprintf(format, args...)})
}
