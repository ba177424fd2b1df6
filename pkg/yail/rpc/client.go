package rpc

import (
	"sync/atomic"
	"time"

	"github.com/jabolina/yail-go/internal/invoker"
	"github.com/jabolina/yail-go/pkg/yail/definition"
	rpcerr "github.com/jabolina/yail-go/pkg/yail/errors"
	"github.com/jabolina/yail-go/pkg/yail/envelope"
)

// Locator resolves a service name to a transport endpoint and gates calls
// behind a minimum-protocol-version check, matching §4.12's service-locator
// trait. The full insert/duplicate-detection surface lives in package
// locator; rpc.Client only needs this narrower view of it.
type Locator interface {
	Resolve(serviceName string) (string, error)
	CheckCompatible(clientVersion string) error
}

// ClientVersion is the protocol version this client build advertises to a
// Locator's CheckCompatible gate (§9/§4.12: a locator configured with
// WithMinimumVersion rejects an incompatible client before it ever dials).
const ClientVersion = "1.0.0"

// Client is the RPC client core (§4.9): request id assignment, envelope
// building, synchronous and asynchronous calls.
type Client struct {
	transport Transport
	locator   Locator
	log       definition.Logger
	nextID    uint32 // monotonic per-client
	version   string
}

// NewClient constructs a Client over transport, resolving service names
// through locator. Advertises ClientVersion unless overridden with
// WithVersion.
func NewClient(transport Transport, locator Locator, log definition.Logger) *Client {
	return &Client{transport: transport, locator: locator, log: log, version: ClientVersion}
}

// WithVersion overrides the protocol version this client advertises to the
// locator's compatibility gate.
func (c *Client) WithVersion(v string) *Client {
	c.version = v
	return c
}

// Call synchronously invokes descriptor on serviceName with req, blocking
// up to timeout (0 == forever), per §4.9's call algorithm.
func Call[Req, Res any](c *Client, serviceName string, descriptor Descriptor[Req, Res], req Req, timeout time.Duration) (Res, error) {
	var zero Res

	if err := c.locator.CheckCompatible(c.version); err != nil {
		return zero, err
	}

	reqData, err := descriptor.ReqFacet.Encode(req)
	if err != nil {
		return zero, rpcerr.NewRPC(rpcerr.RPCSerializationFailed, err.Error())
	}

	id := atomic.AddUint32(&c.nextID, 1)
	common := envelope.RPCCommon{
		Version:     envelope.CurrentVersion,
		ID:          id,
		ServiceName: serviceName,
		RpcName:     descriptor.Name,
		RpcTypeName: descriptor.TypeName(),
	}
	reqBuf, err := envelope.MarshalRequest(&envelope.RPCRequest{RPCCommon: common, Data: reqData})
	if err != nil {
		return zero, rpcerr.NewRPC(rpcerr.RPCSerializationFailed, err.Error())
	}

	ep, err := c.locator.Resolve(serviceName)
	if err != nil {
		return zero, rpcerr.NewRPC(rpcerr.RPCSystemError, err.Error())
	}

	resBuf, err := c.transport.ClientSendAndReceive(ep, reqBuf, timeout)
	if err != nil {
		return zero, rpcerr.NewRPC(rpcerr.RPCSystemError, err.Error())
	}

	return decodeResponse(descriptor, common, resBuf)
}

// AsyncCall asynchronously invokes descriptor, delivering the result to
// cb. It mirrors Call (§4.9 "async_call mirrors the above") by running the
// synchronous path on a spawned goroutine and signalling completion
// through cb rather than a return value.
func AsyncCall[Req, Res any](c *Client, serviceName string, descriptor Descriptor[Req, Res], req Req, timeout time.Duration, cb func(Res, error)) {
	invoker.Instance().Spawn(func() {
		res, err := Call(c, serviceName, descriptor, req, timeout)
		cb(res, err)
	})
}

func decodeResponse[Req, Res any](descriptor Descriptor[Req, Res], sent envelope.RPCCommon, resBuf []byte) (Res, error) {
	var zero Res

	resp, err := envelope.UnmarshalResponse(resBuf)
	if err != nil {
		return zero, rpcerr.NewRPC(rpcerr.RPCInvalidResponse, err.Error())
	}
	if !sent.Matches(resp.RPCCommon) {
		return zero, rpcerr.NewRPC(rpcerr.RPCInvalidResponse, "response does not correlate to request")
	}

	if !resp.Status {
		return zero, rpcerr.NewRPC(rpcerr.RPCFailureResponse, string(resp.Data))
	}

	res, err := descriptor.ResFacet.Decode(resp.Data)
	if err != nil {
		return zero, rpcerr.NewRPC(rpcerr.RPCDeserializationFailed, err.Error())
	}
	return res, nil
}
