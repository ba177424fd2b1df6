package envelope

import (
	"bytes"
	"testing"
)

func TestMarshalRoundTrip(t *testing.T) {
	env := &Envelope{
		Header: Header{Version: CurrentVersion, Kind: KindData, ID: 42},
		Data: Data{
			Domain:        "d",
			TopicName:     "t",
			TopicTypeName: "tt",
			TopicData:     []byte("payload"),
		},
	}
	buf, err := Marshal(env)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(buf)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Header.ID != 42 || string(got.Data.TopicData) != "payload" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestUnmarshalRejectsUnsupportedVersion(t *testing.T) {
	env := &Envelope{Header: Header{Version: 99, Kind: KindData}}
	buf, _ := Marshal(env)
	if _, err := Unmarshal(buf); err == nil {
		t.Fatalf("expected rejection of unsupported version")
	}
}

func TestUnmarshalRejectsUnknownKind(t *testing.T) {
	env := &Envelope{Header: Header{Version: CurrentVersion, Kind: Kind(7)}}
	buf, _ := Marshal(env)
	if _, err := Unmarshal(buf); err == nil {
		t.Fatalf("expected rejection of unknown kind")
	}
}

func TestTopicIDStable(t *testing.T) {
	a := TopicID("dom", "name", "type")
	b := TopicID("dom", "name", "type")
	if a != b {
		t.Fatalf("TopicID not deterministic: %q != %q", a, b)
	}
	if TopicID("dom", "name", "type") == TopicID("domname", "", "type") {
		t.Fatalf("TopicID must not collide across component boundaries")
	}
}

func TestWriteReadFramed(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFramed(&buf, []byte("hello")); err != nil {
		t.Fatalf("WriteFramed: %v", err)
	}
	if err := WriteFramed(&buf, []byte("world!")); err != nil {
		t.Fatalf("WriteFramed: %v", err)
	}

	first, err := ReadFramed(&buf)
	if err != nil || string(first) != "hello" {
		t.Fatalf("ReadFramed = %q, %v", first, err)
	}
	second, err := ReadFramed(&buf)
	if err != nil || string(second) != "world!" {
		t.Fatalf("ReadFramed = %q, %v", second, err)
	}
}

func TestRPCCommonMatches(t *testing.T) {
	a := RPCCommon{Version: 1, ID: 5, ServiceName: "s", RpcName: "r", RpcTypeName: "t"}
	b := a
	if !a.Matches(b) {
		t.Fatalf("identical commons should match")
	}
	b.ID = 6
	if a.Matches(b) {
		t.Fatalf("commons with different ids should not match")
	}
}

func TestRPCRequestResponseRoundTrip(t *testing.T) {
	req := &RPCRequest{
		RPCCommon: RPCCommon{Version: CurrentVersion, ID: 1, ServiceName: "svc", RpcName: "add", RpcTypeName: "int->int"},
		Data:      []byte("7"),
	}
	buf, err := MarshalRequest(req)
	if err != nil {
		t.Fatalf("MarshalRequest: %v", err)
	}
	got, err := UnmarshalRequest(buf)
	if err != nil || !got.RPCCommon.Matches(req.RPCCommon) {
		t.Fatalf("UnmarshalRequest mismatch: %+v, %v", got, err)
	}

	res := &RPCResponse{RPCCommon: req.RPCCommon, Status: true, Data: []byte("14")}
	buf, err = MarshalResponse(res)
	if err != nil {
		t.Fatalf("MarshalResponse: %v", err)
	}
	gotRes, err := UnmarshalResponse(buf)
	if err != nil || !gotRes.Status || string(gotRes.Data) != "14" {
		t.Fatalf("UnmarshalResponse mismatch: %+v, %v", gotRes, err)
	}
}
