package rpc

import (
	rpcerr "github.com/jabolina/yail-go/pkg/yail/errors"
)

// Provider is the typed view over a registered RPC on the server side: it
// decodes requests with ReqFacet and encodes replies with ResFacet before
// delegating to the raw Server API.
type Provider[Req, Res any] struct {
	server      *Server
	serviceName string
	descriptor  Descriptor[Req, Res]
}

// Handler is the typed user callback for one RPC: it receives the
// transaction and the already-decoded request.
type Handler[Req any] func(tx *Tx, req Req)

// RegisterProvider registers descriptor under serviceName on server. The
// supplied handler receives decoded requests; decode failures are
// surfaced to the client as a FailureResponse carrying the
// DeserializationFailed message without invoking handler.
func RegisterProvider[Req, Res any](server *Server, serviceName string, descriptor Descriptor[Req, Res], handler Handler[Req]) *Provider[Req, Res] {
	p := &Provider[Req, Res]{server: server, serviceName: serviceName, descriptor: descriptor}
	server.AddRPC(serviceName, descriptor.Name, descriptor.TypeName(), func(tx *Tx, reqData []byte) {
		req, err := descriptor.ReqFacet.Decode(reqData)
		if err != nil {
			_ = p.ReplyError(tx, rpcerr.NewRPC(rpcerr.RPCDeserializationFailed, err.Error()).Error())
			return
		}
		handler(tx, req)
	})
	return p
}

// ReplyOK encodes res and sends a successful response for tx.
func (p *Provider[Req, Res]) ReplyOK(tx *Tx, res Res) error {
	data, err := p.descriptor.ResFacet.Encode(res)
	if err != nil {
		return rpcerr.NewRPC(rpcerr.RPCSerializationFailed, err.Error())
	}
	return p.server.ReplyOK(tx, p.serviceName, p.descriptor.Name, p.descriptor.TypeName(), data)
}

// ReplyError sends a failure response carrying errMsg.
func (p *Provider[Req, Res]) ReplyError(tx *Tx, errMsg string) error {
	return p.server.ReplyError(tx, p.serviceName, p.descriptor.Name, p.descriptor.TypeName(), errMsg)
}

// ReplyDelayed defers the response; the handler (or anyone holding tx)
// must later call exactly one of ReplyOK or ReplyError.
func (p *Provider[Req, Res]) ReplyDelayed(tx *Tx) error {
	return p.server.ReplyDelayed(tx, p.serviceName, p.descriptor.Name, p.descriptor.TypeName())
}
