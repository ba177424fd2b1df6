package buffer

import (
	"bytes"
	"testing"
)

func TestAppendAndReadN(t *testing.T) {
	b := New(4)
	b.Append([]byte("hello"))
	b.Append([]byte("world"))

	if got, want := b.Len(), len("helloworld"); got != want {
		t.Fatalf("Len() = %d, want %d", got, want)
	}

	chunk, ok := b.ReadN(5)
	if !ok || !bytes.Equal(chunk, []byte("hello")) {
		t.Fatalf("ReadN(5) = %q, %v", chunk, ok)
	}

	chunk, ok = b.ReadN(5)
	if !ok || !bytes.Equal(chunk, []byte("world")) {
		t.Fatalf("ReadN(5) = %q, %v", chunk, ok)
	}

	if _, ok := b.ReadN(1); ok {
		t.Fatalf("ReadN past end should fail")
	}
}

func TestReset(t *testing.T) {
	b := Wrap([]byte("data"))
	b.ReadN(2)
	b.Reset()
	if b.Len() != 0 || b.Remaining() != 0 {
		t.Fatalf("Reset left Len=%d Remaining=%d, want 0,0", b.Len(), b.Remaining())
	}
}

func TestClone(t *testing.T) {
	b := Wrap([]byte("abc"))
	c := b.Clone()
	c.Bytes()[0] = 'z'
	if b.Bytes()[0] == 'z' {
		t.Fatalf("Clone shared backing array with original")
	}
}

func TestGrowPreservesContent(t *testing.T) {
	b := New(0)
	for i := 0; i < 100; i++ {
		b.Append([]byte{byte(i)})
	}
	if b.Len() != 100 {
		t.Fatalf("Len() = %d, want 100", b.Len())
	}
	for i := 0; i < 100; i++ {
		if b.Bytes()[i] != byte(i) {
			t.Fatalf("byte %d = %d, want %d", i, b.Bytes()[i], i)
		}
	}
}
