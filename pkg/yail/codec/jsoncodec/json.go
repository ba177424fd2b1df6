// Package jsoncodec implements codec.Facet using encoding/json, the same
// serialization the teacher repo uses for its own wire payloads
// (go-mcast's core/transport.go and types/state_machine.go both round-trip
// through encoding/json).
package jsoncodec

import "encoding/json"

// Facet is a codec.Facet[T] backed by encoding/json. name is the stable
// wire identity advertised for T; it must match across every peer that
// publishes or subscribes to topics of this type.
type Facet[T any] struct {
	name string
}

// New builds a JSON-backed facet for T, advertised on the wire as name.
func New[T any](name string) *Facet[T] {
	return &Facet[T]{name: name}
}

func (f *Facet[T]) Name() string    { return f.name }
func (f *Facet[T]) IsBuiltin() bool { return false }

func (f *Facet[T]) Encode(value T) ([]byte, error) {
	return json.Marshal(value)
}

func (f *Facet[T]) Decode(data []byte) (T, error) {
	var out T
	err := json.Unmarshal(data, &out)
	return out, err
}

// builtinFacet marks a Facet as representing an internal type, used only
// for the subscription-announcement payload (§4.3).
type builtinFacet[T any] struct {
	*Facet[T]
}

// NewBuiltin builds a JSON-backed facet flagged IsBuiltin() == true.
func NewBuiltin[T any](name string) *builtinFacet[T] {
	return &builtinFacet[T]{Facet: New[T](name)}
}

func (f *builtinFacet[T]) IsBuiltin() bool { return true }
