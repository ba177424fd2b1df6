package envelope

import "encoding/json"

// RPCCommon is the header shared by every RPC request and response (§4.3).
type RPCCommon struct {
	Version     uint8  `json:"version"`
	ID          uint32 `json:"id"`
	ServiceName string `json:"service_name"`
	RpcName     string `json:"rpc_name"`
	RpcTypeName string `json:"rpc_type_name"`
}

// Matches reports whether two commons correlate to the same logical call:
// same version, id and name-triple, the rule §4.3 gives the client for
// validating a response against its request.
func (c RPCCommon) Matches(other RPCCommon) bool {
	return c.Version == other.Version &&
		c.ID == other.ID &&
		c.ServiceName == other.ServiceName &&
		c.RpcName == other.RpcName &&
		c.RpcTypeName == other.RpcTypeName
}

// RPCID computes the wire identity rpc_id = service_name ‖ rpc_name ‖ rpc_type_name.
func RPCID(serviceName, rpcName, rpcTypeName string) string {
	return serviceName + "\x1f" + rpcName + "\x1f" + rpcTypeName
}

// RPCRequest is the on-wire RPC request envelope.
type RPCRequest struct {
	RPCCommon
	Data []byte `json:"data"`
}

// RPCResponse is the on-wire RPC response envelope.
type RPCResponse struct {
	RPCCommon
	Status bool   `json:"status"`
	Data   []byte `json:"data"`
}

// MarshalRequest serializes an RPCRequest to its wire form.
func MarshalRequest(r *RPCRequest) ([]byte, error) { return json.Marshal(r) }

// UnmarshalRequest parses a wire-form RPCRequest.
func UnmarshalRequest(data []byte) (*RPCRequest, error) {
	var r RPCRequest
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// MarshalResponse serializes an RPCResponse to its wire form.
func MarshalResponse(r *RPCResponse) ([]byte, error) { return json.Marshal(r) }

// UnmarshalResponse parses a wire-form RPCResponse.
func UnmarshalResponse(data []byte) (*RPCResponse, error) {
	var r RPCResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
