// Package msgpackcodec implements codec.Facet using
// github.com/hashicorp/go-msgpack/codec, the reflection-based encoder the
// corpus's serf RPC client uses for its own request/response envelopes.
// It is offered as a faster default for users who would rather not
// hand-write a facet for every type.
package msgpackcodec

import (
	"bytes"

	"github.com/hashicorp/go-msgpack/codec"
)

var handle = &codec.MsgpackHandle{}

// Facet is a codec.Facet[T] backed by go-msgpack.
type Facet[T any] struct {
	name string
}

// New builds a msgpack-backed facet for T, advertised on the wire as name.
func New[T any](name string) *Facet[T] {
	return &Facet[T]{name: name}
}

func (f *Facet[T]) Name() string    { return f.name }
func (f *Facet[T]) IsBuiltin() bool { return false }

func (f *Facet[T]) Encode(value T) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, handle)
	if err := enc.Encode(value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *Facet[T]) Decode(data []byte) (T, error) {
	var out T
	dec := codec.NewDecoder(bytes.NewReader(data), handle)
	err := dec.Decode(&out)
	return out, err
}
