package msgpackcodec

import "testing"

type reading struct {
	Sensor string
	Value  float64
}

func TestRoundTrip(t *testing.T) {
	f := New[reading]("reading")
	data, err := f.Encode(reading{Sensor: "temp", Value: 21.5})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := f.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != (reading{Sensor: "temp", Value: 21.5}) {
		t.Fatalf("got %+v", got)
	}
}

func TestDecodeMalformed(t *testing.T) {
	f := New[reading]("reading")
	if _, err := f.Decode(nil); err == nil {
		t.Fatalf("expected decode error for malformed input")
	}
}
